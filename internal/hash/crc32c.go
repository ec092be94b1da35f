// Package hash holds the checksum used by the store file formats.
//
// Headers and payloads are framed with CRC32-Castagnoli, which Go's
// crc32 package computes with hardware instructions where the CPU has
// them. One polynomial for every on-disk frame keeps readers and
// writers from ever disagreeing on the table.
package hash

import (
	"hash"
	"hash/crc32"
)

var castagnoli = crc32.MakeTable(crc32.Castagnoli)

// CRC32C returns the CRC32-Castagnoli checksum of data.
func CRC32C(data []byte) uint32 {
	return crc32.Checksum(data, castagnoli)
}

// NewCRC32C returns a streaming CRC32-Castagnoli hash for framing
// payloads written in chunks.
func NewCRC32C() hash.Hash32 {
	return crc32.New(castagnoli)
}
