// Package msp decodes and encodes MSP text spectral libraries.
//
// MSP is the line-oriented interchange format of NIST-style spectral
// libraries: each entry is a header block (Name, MW, Comment, Num peaks)
// followed by one peak per line. The Comment field carries arbitrary
// key=value pairs, which is where most tools put precursor and retention
// information.
//
// The Reader streams entries without loading the whole library:
//
//	r := msp.NewReader(f)
//	for r.Next() {
//	    e := r.Entry()
//	    // e.Fields, e.Peaks, e.Offset/e.Length
//	}
//	if err := r.Err(); err != nil {
//	    return err
//	}
//
// Every decoded entry records its byte range in the source, so storage
// layers can index a library once and later re-read single entries with
// ranged reads instead of rescanning the file.
//
// Well-known header and comment keys are mapped onto the core spectra
// variable names of the metadata package (Parent -> precursorMz,
// Collision_energy -> collisionEnergy, ...); everything else is kept
// under its original key. The Writer inverts the mapping; fields MSP
// cannot represent are dropped.
package msp
