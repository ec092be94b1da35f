package msp

import (
	"bufio"
	"io"
	"math"
	"slices"
	"strconv"
	"strings"

	"github.com/manogenome/Spectra/metadata"
)

// Writer encodes entries to an MSP library.
//
// The output dialect is the one the Reader decodes: Name, optional MW,
// a single Comment line with key=value pairs, "Num peaks" and one peak
// per line, entries separated by a blank line.
type Writer struct {
	bw *bufio.Writer
}

// NewWriter creates a Writer on top of w. Call Flush when done.
func NewWriter(w io.Writer) *Writer {
	return &Writer{bw: bufio.NewWriter(w)}
}

// Write encodes one entry. Core variables with a Comment key mapping
// are written under that key; remaining scalar fields are written under
// their own name. Fields MSP cannot carry (arrays, strings containing
// whitespace or '=', the storage location fields) are dropped.
func (w *Writer) Write(e *Entry) error {
	if err := e.Peaks.Validate(); err != nil {
		return err
	}

	name := e.Name
	if name == "" {
		name = "Unknown"
	}
	w.writeField("Name", name)

	if mw, ok := e.Fields["mw"].AsFloat64(); ok {
		w.writeField("MW", formatFloat(mw))
	}

	if comment := encodeComment(e.Fields); comment != "" {
		w.writeField("Comment", comment)
	}

	w.writeField("Num peaks", strconv.Itoa(e.Peaks.Len()))
	for i := range e.Peaks.Mz {
		w.bw.WriteString(formatFloat(e.Peaks.Mz[i]))
		w.bw.WriteByte('\t')
		w.bw.WriteString(formatFloat(e.Peaks.Intensity[i]))
		w.bw.WriteByte('\n')
	}
	w.bw.WriteByte('\n')

	return w.bw.Flush()
}

// Flush writes any buffered output.
func (w *Writer) Flush() error {
	return w.bw.Flush()
}

func (w *Writer) writeField(key, value string) {
	w.bw.WriteString(key)
	w.bw.WriteString(": ")
	w.bw.WriteString(value)
	w.bw.WriteByte('\n')
}

// encodeComment renders the Comment pairs deterministically: mapped
// core variables first in canonical order, then the remaining fields
// sorted by name.
func encodeComment(fields metadata.Document) string {
	var parts []string

	for _, ck := range commentKeys {
		v, ok := fields[ck.field]
		if !ok || v.IsNull() {
			continue
		}
		if s, ok := formatCommentValue(ck.field, v); ok {
			parts = append(parts, ck.key+"="+s)
		}
	}

	extras := make([]string, 0, len(fields))
	for name := range fields {
		if commentFieldSet[name] || skippedFields[name] {
			continue
		}
		extras = append(extras, name)
	}
	slices.Sort(extras)
	for _, name := range extras {
		if s, ok := formatCommentValue(name, fields[name]); ok {
			parts = append(parts, name+"="+s)
		}
	}

	return strings.Join(parts, " ")
}

// skippedFields never appear in output: name and mw have their own
// lines, the storage fields describe where data currently lives rather
// than the spectrum itself.
var skippedFields = map[string]bool{
	"name":                    true,
	"mw":                      true,
	metadata.FieldDataStorage: true,
	metadata.FieldDataOrigin:  true,
}

func formatCommentValue(field string, v metadata.Value) (string, bool) {
	if field == metadata.FieldPolarity {
		p, ok := v.AsInt64()
		if !ok {
			return "", false
		}
		switch p {
		case metadata.PolarityPositive:
			return "Positive", true
		case metadata.PolarityNegative:
			return "Negative", true
		}
		return "", false
	}

	switch v.Kind {
	case metadata.KindInt:
		return strconv.FormatInt(v.I64, 10), true
	case metadata.KindFloat:
		if math.IsNaN(v.F64) {
			return "", false
		}
		return formatFloat(v.F64), true
	case metadata.KindBool:
		return strconv.FormatBool(v.B), true
	case metadata.KindString:
		s := v.StringValue()
		if s == "" || strings.ContainsAny(s, " \t=") {
			return "", false
		}
		return s, true
	default:
		return "", false
	}
}

func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'g', -1, 64)
}
