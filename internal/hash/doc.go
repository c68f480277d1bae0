// Package hash provides CRC32-Castagnoli (CRC32C) checksums for chunk
// payload integrity.
//
// CRC32C is hardware accelerated on x86 (SSE4.2) and ARM (CRC
// extension) and detects all single-bit, double-bit and odd-bit errors,
// plus burst errors up to 32 bits. Every persisted chunk carries a
// CRC32C over its payload; readers verify it before decoding.
//
// One-shot:
//
//	checksum := hash.CRC32C(data)
//
// Streaming:
//
//	h := hash.NewCRC32C()
//	h.Write(header)
//	h.Write(payload)
//	checksum := h.Sum32()
package hash
