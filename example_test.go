package spectra_test

import (
	"context"
	"fmt"
	"log"
	"math"

	spectra "github.com/manogenome/Spectra"
	"github.com/manogenome/Spectra/metadata"
	"github.com/manogenome/Spectra/peaks"
	"github.com/manogenome/Spectra/processing"
)

func Example() {
	ctx := context.Background()

	tbl, err := metadata.FromColumns(3, map[string][]metadata.Value{
		metadata.FieldMsLevel: {metadata.Int(1), metadata.Int(2), metadata.Int(2)},
		metadata.FieldRtime:   {metadata.Float(12.5), metadata.Float(30.0), metadata.Float(61.2)},
	})
	if err != nil {
		log.Fatal(err)
	}

	s, err := spectra.New(tbl, []peaks.Matrix{
		{Mz: []float64{120.0, 350.5}, Intensity: []float64{200, 30}},
		{Mz: []float64{75.2, 210.7, 445.1}, Intensity: []float64{4, 1200, 80}},
		{Mz: []float64{98.3}, Intensity: []float64{55}},
	})
	if err != nil {
		log.Fatal(err)
	}

	// Keep MS2 spectra eluting before 60 s, drop noise peaks lazily.
	ms2, err := s.FilterMsLevel(2)
	if err != nil {
		log.Fatal(err)
	}
	early, err := ms2.FilterRt(0, 60)
	if err != nil {
		log.Fatal(err)
	}
	clean := early.AddProcessing(processing.FilterIntensityRange(50, math.Inf(1)))

	pk, err := clean.Peaks(ctx)
	if err != nil {
		log.Fatal(err)
	}

	fmt.Println("spectra:", clean.Len())
	fmt.Println("peaks:", pk[0].Mz)
	// Output:
	// spectra: 1
	// peaks: [210.7 445.1]
}
