// Package integrity contains the radiation-tolerance primitives: the CRC32
// used to seal persisted state and the triple-modular-redundancy (TMR) cells
// that let mission-critical RAM survive single-event upsets.
package integrity

import "hash/crc32"

// Checksum computes the CRC-32/ISO-HDLC checksum of data: reflected
// polynomial 0xEDB88320, initial value 0xFFFFFFFF, final XOR 0xFFFFFFFF.
// This is the same variant Ethernet and ZIP use; the canonical check value
// for "123456789" is 0xCBF43926.
func Checksum(data []byte) uint32 {
	return crc32.ChecksumIEEE(data)
}

// Verify reports whether data checksums to want.
func Verify(data []byte, want uint32) bool {
	return Checksum(data) == want
}
