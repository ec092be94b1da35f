package msp

import (
	"fmt"

	"github.com/manogenome/Spectra/metadata"
	"github.com/manogenome/Spectra/peaks"
)

// Entry is one decoded library record.
type Entry struct {
	// Name is the entry's Name line, verbatim.
	Name string

	// Fields holds the decoded header and comment fields. Well-known
	// keys are stored under the core spectra variable names; unknown
	// keys keep their original spelling.
	Fields metadata.Document

	// Peaks is the decoded peak table, in file order.
	Peaks peaks.Matrix

	// Offset and Length delimit the entry's bytes in the source, from
	// the first header line through the last peak line. Re-decoding
	// exactly that range yields the same entry.
	Offset int64
	Length int64
}

// SyntaxError reports a malformed library with the offending line.
type SyntaxError struct {
	Line int
	Msg  string
}

func (e *SyntaxError) Error() string {
	return fmt.Sprintf("msp: line %d: %s", e.Line, e.Msg)
}
