package codec

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/manogenome/Spectra/metadata"
)

func TestCodecs_Interchangeable(t *testing.T) {
	doc := metadata.Document{
		metadata.FieldMsLevel:     metadata.Int(2),
		metadata.FieldRtime:       metadata.Float(12.5),
		metadata.FieldCentroided:  metadata.Bool(true),
		metadata.FieldDataStorage: metadata.String("<memory>"),
		"tags": metadata.Array([]metadata.Value{
			metadata.String("a"), metadata.Int(7),
		}),
	}

	for _, enc := range []Codec{JSON{}, GoJSON{}} {
		data, err := enc.Marshal(doc)
		require.NoError(t, err)

		// Bytes written by one codec decode with the other.
		for _, dec := range []Codec{JSON{}, GoJSON{}} {
			var got metadata.Document
			require.NoError(t, dec.Unmarshal(data, &got),
				"%s -> %s", enc.Name(), dec.Name())
			assert.Equal(t, doc, got)
		}
	}
}

func TestDefault(t *testing.T) {
	require.NotNil(t, Default)
	assert.Equal(t, "go-json", Default.Name())
}
