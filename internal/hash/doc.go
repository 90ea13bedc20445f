// Package hash provides the checksums used to protect persisted rows.
//
// All checksums use CRC32-Castagnoli (CRC32C), which Go accelerates in
// hardware on x86 (SSE4.2) and ARM64 (CRC extension).
//
// For one-shot checksums:
//
//	checksum := hash.CRC32C(data)
//
// For row records, the key is part of the checksummed bytes:
//
//	checksum := hash.Row(key, payload)
package hash
