package metadata

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCoreFields(t *testing.T) {
	fields := CoreFields()
	require.Len(t, fields, 17)
	assert.Equal(t, FieldMsLevel, fields[0])
	assert.Contains(t, fields, FieldIsolationWindowUpperMz)

	assert.True(t, IsCoreField(FieldRtime))
	assert.False(t, IsCoreField("instrumentSerial"))
}

func TestCoreFieldType(t *testing.T) {
	typ, ok := CoreFieldType(FieldMsLevel)
	require.True(t, ok)
	assert.Equal(t, FieldTypeInt, typ)

	typ, ok = CoreFieldType(FieldDataStorage)
	require.True(t, ok)
	assert.Equal(t, FieldTypeString, typ)

	_, ok = CoreFieldType("whatever")
	assert.False(t, ok)
}

func TestCheckField(t *testing.T) {
	tests := []struct {
		name    string
		field   string
		value   Value
		wantErr bool
	}{
		{name: "int for msLevel", field: FieldMsLevel, value: Int(2)},
		{name: "string for msLevel", field: FieldMsLevel, value: String("two"), wantErr: true},
		{name: "float for rtime", field: FieldRtime, value: Float(12.5)},
		{name: "int widens to float", field: FieldRtime, value: Int(12)},
		{name: "bool for centroided", field: FieldCentroided, value: Bool(true)},
		{name: "float for centroided", field: FieldCentroided, value: Float(1), wantErr: true},
		{name: "null always valid", field: FieldPrecursorMz, value: Null()},
		{name: "extra field any type", field: "vendor", value: Float(1.0)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := CheckField(tt.field, tt.value)
			if tt.wantErr {
				require.ErrorIs(t, err, ErrTypeMismatch)
			} else {
				require.NoError(t, err)
			}
		})
	}
}
