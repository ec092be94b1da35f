package metadata

import (
	"errors"
	"fmt"
)

// Core spectra variable names. Core variables are always queryable on a
// collection: when a field is absent from storage the typed accessors
// return the documented missing sentinel instead of failing. Assignments
// to core variables are type checked.
const (
	FieldMsLevel                 = "msLevel"
	FieldRtime                   = "rtime"
	FieldAcquisitionNum          = "acquisitionNum"
	FieldScanIndex               = "scanIndex"
	FieldDataStorage             = "dataStorage"
	FieldDataOrigin              = "dataOrigin"
	FieldCentroided              = "centroided"
	FieldSmoothed                = "smoothed"
	FieldPolarity                = "polarity"
	FieldPrecScanNum             = "precScanNum"
	FieldPrecursorMz             = "precursorMz"
	FieldPrecursorIntensity      = "precursorIntensity"
	FieldPrecursorCharge         = "precursorCharge"
	FieldCollisionEnergy         = "collisionEnergy"
	FieldIsolationWindowLowerMz  = "isolationWindowLowerMz"
	FieldIsolationWindowTargetMz = "isolationWindowTargetMz"
	FieldIsolationWindowUpperMz  = "isolationWindowUpperMz"
)

// Polarity values stored in the polarity field.
const (
	PolarityNegative = 0
	PolarityPositive = 1
	PolarityMissing  = -1
)

// ErrTypeMismatch is returned when a value assigned to a core spectra
// variable does not match the variable's declared type.
var ErrTypeMismatch = errors.New("metadata: value type mismatch")

// FieldType defines the expected value type of a metadata field.
type FieldType uint8

const (
	FieldTypeAny FieldType = iota
	FieldTypeInt
	FieldTypeFloat
	FieldTypeString
	FieldTypeBool
	FieldTypeArray
)

// String returns the string representation of the FieldType.
func (t FieldType) String() string {
	switch t {
	case FieldTypeAny:
		return "Any"
	case FieldTypeInt:
		return "Int"
	case FieldTypeFloat:
		return "Float"
	case FieldTypeString:
		return "String"
	case FieldTypeBool:
		return "Bool"
	case FieldTypeArray:
		return "Array"
	default:
		return "Unknown"
	}
}

// coreFields lists the core spectra variables in canonical order, with
// their declared types.
var coreFields = []struct {
	name string
	typ  FieldType
}{
	{FieldMsLevel, FieldTypeInt},
	{FieldRtime, FieldTypeFloat},
	{FieldAcquisitionNum, FieldTypeInt},
	{FieldScanIndex, FieldTypeInt},
	{FieldDataStorage, FieldTypeString},
	{FieldDataOrigin, FieldTypeString},
	{FieldCentroided, FieldTypeBool},
	{FieldSmoothed, FieldTypeBool},
	{FieldPolarity, FieldTypeInt},
	{FieldPrecScanNum, FieldTypeInt},
	{FieldPrecursorMz, FieldTypeFloat},
	{FieldPrecursorIntensity, FieldTypeFloat},
	{FieldPrecursorCharge, FieldTypeInt},
	{FieldCollisionEnergy, FieldTypeFloat},
	{FieldIsolationWindowLowerMz, FieldTypeFloat},
	{FieldIsolationWindowTargetMz, FieldTypeFloat},
	{FieldIsolationWindowUpperMz, FieldTypeFloat},
}

var coreTypes = func() map[string]FieldType {
	m := make(map[string]FieldType, len(coreFields))
	for _, f := range coreFields {
		m[f.name] = f.typ
	}
	return m
}()

// CoreFields returns the names of all core spectra variables in
// canonical order.
func CoreFields() []string {
	names := make([]string, len(coreFields))
	for i, f := range coreFields {
		names[i] = f.name
	}
	return names
}

// IsCoreField reports whether name is a core spectra variable.
func IsCoreField(name string) bool {
	_, ok := coreTypes[name]
	return ok
}

// CoreFieldType returns the declared type of a core spectra variable.
func CoreFieldType(name string) (FieldType, bool) {
	t, ok := coreTypes[name]
	return t, ok
}

// CheckField validates a value against a field's declared type. Extra
// (non-core) fields accept any value. Null is always valid: it is the
// missing sentinel for every field.
func CheckField(name string, v Value) error {
	expected, ok := coreTypes[name]
	if !ok {
		return nil
	}
	if !checkKind(v.Kind, expected) {
		return fmt.Errorf("field %q holds %s, expected %s: %w", name, v.Kind, expected, ErrTypeMismatch)
	}
	return nil
}

func checkKind(k Kind, expected FieldType) bool {
	if k == KindNull {
		return true
	}
	switch expected {
	case FieldTypeAny:
		return true
	case FieldTypeInt:
		return k == KindInt
	case FieldTypeFloat:
		return k == KindFloat || k == KindInt // Allow upgrading Int to Float
	case FieldTypeString:
		return k == KindString
	case FieldTypeBool:
		return k == KindBool
	case FieldTypeArray:
		return k == KindArray
	}
	return false
}
