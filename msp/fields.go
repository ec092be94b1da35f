package msp

import (
	"strconv"
	"strings"

	"github.com/manogenome/Spectra/metadata"
)

// normalizeKey collapses the spelling variants seen across library
// producers ("Num Peaks", "Num peaks", "NUM_PEAKS") onto one lookup
// form.
func normalizeKey(key string) string {
	var b strings.Builder
	b.Grow(len(key))
	for _, c := range key {
		if c == ' ' || c == '_' || c == '-' {
			continue
		}
		if c >= 'A' && c <= 'Z' {
			c += 'a' - 'A'
		}
		b.WriteRune(c)
	}
	return b.String()
}

// setHeaderField decodes one "Key: value" header line into the field
// document. Unknown keys are kept under their original spelling.
func setHeaderField(fields metadata.Document, key, value string) {
	switch normalizeKey(key) {
	case "precursormz", "parentmz":
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			fields[metadata.FieldPrecursorMz] = metadata.Float(f)
			return
		}
	case "retentiontime":
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			fields[metadata.FieldRtime] = metadata.Float(f)
			return
		}
	case "mw":
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			fields["mw"] = metadata.Float(f)
			return
		}
	}
	fields[key] = parseScalar(value)
}

// setCommentField decodes one key=value pair from a Comment line.
func setCommentField(fields metadata.Document, key, value string) {
	switch normalizeKey(key) {
	case "parent", "precursormz":
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			fields[metadata.FieldPrecursorMz] = metadata.Float(f)
			return
		}
	case "charge", "precursorcharge":
		if n, err := strconv.Atoi(strings.TrimSuffix(value, "+")); err == nil {
			fields[metadata.FieldPrecursorCharge] = metadata.Int(int64(n))
			return
		}
	case "collisionenergy", "ce":
		if f, err := strconv.ParseFloat(strings.TrimSuffix(value, "%"), 64); err == nil {
			fields[metadata.FieldCollisionEnergy] = metadata.Float(f)
			return
		}
	case "retentiontime", "rt", "irt":
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			fields[metadata.FieldRtime] = metadata.Float(f)
			return
		}
	case "polarity", "ionmode":
		if p, ok := parsePolarity(value); ok {
			fields[metadata.FieldPolarity] = metadata.Int(p)
			return
		}
	case "mslevel":
		if n, err := strconv.Atoi(strings.TrimPrefix(strings.ToUpper(value), "MS")); err == nil {
			fields[metadata.FieldMsLevel] = metadata.Int(int64(n))
			return
		}
	}
	fields[key] = parseScalar(value)
}

func parsePolarity(value string) (int64, bool) {
	switch strings.ToLower(value) {
	case "positive", "pos", "p", "+", "1":
		return metadata.PolarityPositive, true
	case "negative", "neg", "n", "-", "0":
		return metadata.PolarityNegative, true
	default:
		return 0, false
	}
}

// parseScalar keeps unknown values typed when they parse as numbers.
func parseScalar(value string) metadata.Value {
	if n, err := strconv.ParseInt(value, 10, 64); err == nil {
		return metadata.Int(n)
	}
	if f, err := strconv.ParseFloat(value, 64); err == nil {
		return metadata.Float(f)
	}
	return metadata.String(value)
}

// commentKeys maps core spectra variables onto the Comment keys the
// Writer emits, in output order. The Reader understands each of them.
var commentKeys = []struct {
	field string
	key   string
}{
	{metadata.FieldPrecursorMz, "Parent"},
	{metadata.FieldPrecursorCharge, "Charge"},
	{metadata.FieldCollisionEnergy, "Collision_energy"},
	{metadata.FieldRtime, "RetentionTime"},
	{metadata.FieldPolarity, "Polarity"},
	{metadata.FieldMsLevel, "MsLevel"},
}

var commentFieldSet = func() map[string]bool {
	m := make(map[string]bool, len(commentKeys))
	for _, ck := range commentKeys {
		m[ck.field] = true
	}
	return m
}()
