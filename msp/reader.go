package msp

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/manogenome/Spectra/metadata"
)

// Reader provides streaming access to an MSP library.
type Reader struct {
	br        *bufio.Reader
	lineNum   int
	offset    int64 // position after the last consumed line
	lineStart int64 // position of the last consumed line
	cur       *Entry
	err       error
}

// NewReader creates a streaming reader over an MSP source.
func NewReader(r io.Reader) *Reader {
	return &Reader{br: bufio.NewReader(r)}
}

// Next advances to the next entry. It returns false at the end of the
// source or on error; Err tells the two apart.
func (r *Reader) Next() bool {
	if r.err != nil {
		return false
	}
	r.cur = nil

	e, err := r.readEntry()
	if err != nil {
		if !errors.Is(err, io.EOF) {
			r.err = err
		}
		return false
	}

	r.cur = e
	return true
}

// Entry returns the entry Next advanced to.
func (r *Reader) Entry() *Entry {
	return r.cur
}

// Err returns the first error encountered while reading.
func (r *Reader) Err() error {
	return r.err
}

// ReadAll decodes every entry of an MSP source.
func ReadAll(src io.Reader) ([]*Entry, error) {
	r := NewReader(src)
	var entries []*Entry
	for r.Next() {
		entries = append(entries, r.Entry())
	}
	if err := r.Err(); err != nil {
		return nil, err
	}
	return entries, nil
}

// readLine consumes one line and keeps the byte accounting exact, CRLF
// included, so entry offsets can be used for ranged re-reads.
func (r *Reader) readLine() (string, error) {
	s, err := r.br.ReadString('\n')
	if len(s) > 0 {
		r.lineNum++
		r.lineStart = r.offset
		r.offset += int64(len(s))
	}
	if err != nil {
		if err == io.EOF && len(s) > 0 {
			// Final line without a trailing newline.
			return strings.TrimRight(s, "\r\n"), nil
		}
		return "", err
	}
	return strings.TrimRight(s, "\r\n"), nil
}

func (r *Reader) readEntry() (*Entry, error) {
	var (
		e        *Entry
		numPeaks int
		inPeaks  bool
	)

	for {
		line, err := r.readLine()
		if err != nil {
			if errors.Is(err, io.EOF) {
				if e == nil {
					return nil, io.EOF
				}
				if inPeaks {
					return nil, r.syntaxf("peak table ends after %d of %d peaks", e.Peaks.Len(), numPeaks)
				}
				return nil, r.syntaxf("entry %q has no peak table", e.Name)
			}
			return nil, err
		}

		t := strings.TrimSpace(line)

		if e == nil {
			// Between entries: skip blanks and comment lines.
			if t == "" || strings.HasPrefix(t, "#") {
				continue
			}
			e = &Entry{Fields: make(metadata.Document), Offset: r.lineStart}
		}

		if !inPeaks {
			if t == "" {
				return nil, r.syntaxf("entry %q has no peak table", e.Name)
			}
			key, value, ok := splitHeaderLine(t)
			if !ok {
				return nil, r.syntaxf("malformed header line %q", t)
			}
			switch normalizeKey(key) {
			case "numpeaks":
				n, err := strconv.Atoi(value)
				if err != nil || n < 0 {
					return nil, r.syntaxf("invalid peak count %q", value)
				}
				numPeaks = n
				inPeaks = true
				if numPeaks == 0 {
					e.Length = r.offset - e.Offset
					return e, nil
				}
			case "name":
				e.Name = value
				parseNameCharge(e.Fields, value)
			case "comment", "comments":
				parseComment(e.Fields, value)
			default:
				setHeaderField(e.Fields, key, value)
			}
			continue
		}

		if t == "" {
			return nil, r.syntaxf("peak table ends after %d of %d peaks", e.Peaks.Len(), numPeaks)
		}
		mz, intensity, err := parsePeakLine(t)
		if err != nil {
			return nil, r.syntaxf("%v", err)
		}
		e.Peaks.Mz = append(e.Peaks.Mz, mz)
		e.Peaks.Intensity = append(e.Peaks.Intensity, intensity)
		if e.Peaks.Len() == numPeaks {
			e.Length = r.offset - e.Offset
			return e, nil
		}
	}
}

func (r *Reader) syntaxf(format string, args ...any) error {
	return &SyntaxError{Line: r.lineNum, Msg: fmt.Sprintf(format, args...)}
}

func splitHeaderLine(line string) (key, value string, ok bool) {
	i := strings.Index(line, ":")
	if i <= 0 {
		return "", "", false
	}
	return strings.TrimSpace(line[:i]), strings.TrimSpace(line[i+1:]), true
}

// parseComment decodes the whitespace-separated key=value pairs of a
// Comment line. Tokens without a '=' are ignored.
func parseComment(fields metadata.Document, comment string) {
	for _, token := range strings.Fields(comment) {
		key, value, ok := strings.Cut(token, "=")
		if !ok || key == "" {
			continue
		}
		setCommentField(fields, key, value)
	}
}

// parseNameCharge picks the precursor charge out of SEQUENCE/CHARGE
// shaped names. Free-text names pass through untouched, and an explicit
// Charge comment key wins because comments decode after the name.
func parseNameCharge(fields metadata.Document, name string) {
	seq, chargeStr, ok := strings.Cut(name, "/")
	if !ok || seq == "" {
		return
	}
	charge, err := strconv.Atoi(chargeStr)
	if err != nil {
		return
	}
	fields[metadata.FieldPrecursorCharge] = metadata.Int(int64(charge))
}

// parsePeakLine decodes "mz intensity" with an optional trailing
// annotation column, which is ignored.
func parsePeakLine(line string) (mz, intensity float64, err error) {
	fields := strings.Fields(line)
	if len(fields) < 2 {
		return 0, 0, fmt.Errorf("malformed peak line %q", line)
	}
	mz, err = strconv.ParseFloat(fields[0], 64)
	if err != nil {
		return 0, 0, fmt.Errorf("invalid m/z %q", fields[0])
	}
	intensity, err = strconv.ParseFloat(fields[1], 64)
	if err != nil {
		return 0, 0, fmt.Errorf("invalid intensity %q", fields[1])
	}
	return mz, intensity, nil
}
