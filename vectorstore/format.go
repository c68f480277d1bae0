package vectorstore

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"

	"github.com/hupe1980/memvec/codec"
	"github.com/hupe1980/memvec/internal/hash"
	"github.com/hupe1980/memvec/model"
)

// Chunk object layout:
//
//	[magic "MVCH" 4B][version u8][compression u8][reserved u16]
//	[dimension u32][count u32][crc32c u32]
//	[payload: block-header + (possibly compressed) records]
//
// The CRC covers the stored payload bytes. The uncompressed record
// stream is, per record:
//
//	[id u64][vector float32 x dimension][metadata length u32][metadata JSON]
//
// All integers are little-endian.
const (
	chunkMagic         = "MVCH"
	chunkFormatVersion = 1
	chunkHeaderSize    = 20
)

var (
	// ErrBadChunk is returned for structurally invalid chunk objects.
	ErrBadChunk = errors.New("vectorstore: malformed chunk")
	// ErrChecksumMismatch is returned when a chunk payload fails CRC
	// verification.
	ErrChecksumMismatch = errors.New("vectorstore: chunk checksum mismatch")
)

// EncodeChunk serializes records into a chunk object. All records must
// share the given dimension.
func EncodeChunk(records []model.VectorRecord, dimension int, compression Compression, c codec.Codec) ([]byte, error) {
	if c == nil {
		c = codec.Default
	}
	if dimension <= 0 {
		return nil, fmt.Errorf("%w: invalid dimension %d", ErrBadChunk, dimension)
	}

	raw := make([]byte, 0, len(records)*(8+4*dimension+4))
	var scratch [8]byte
	for _, rec := range records {
		if len(rec.Vector) != dimension {
			return nil, fmt.Errorf("%w: record %v has dimension %d, chunk dimension %d",
				ErrBadChunk, rec.ID, len(rec.Vector), dimension)
		}

		binary.LittleEndian.PutUint64(scratch[:8], uint64(rec.ID))
		raw = append(raw, scratch[:8]...)

		for _, v := range rec.Vector {
			binary.LittleEndian.PutUint32(scratch[:4], math.Float32bits(v))
			raw = append(raw, scratch[:4]...)
		}

		var md []byte
		if len(rec.Metadata) > 0 {
			var err error
			md, err = c.Marshal(rec.Metadata)
			if err != nil {
				return nil, fmt.Errorf("vectorstore: encode metadata for %v: %w", rec.ID, err)
			}
		}
		binary.LittleEndian.PutUint32(scratch[:4], uint32(len(md)))
		raw = append(raw, scratch[:4]...)
		raw = append(raw, md...)
	}

	payload, err := compressPayload(raw, compression)
	if err != nil {
		return nil, err
	}

	out := make([]byte, chunkHeaderSize, chunkHeaderSize+len(payload))
	copy(out[0:4], chunkMagic)
	out[4] = chunkFormatVersion
	out[5] = byte(compression)
	// out[6:8] reserved
	binary.LittleEndian.PutUint32(out[8:12], uint32(dimension))
	binary.LittleEndian.PutUint32(out[12:16], uint32(len(records)))
	binary.LittleEndian.PutUint32(out[16:20], hash.CRC32C(payload))

	return append(out, payload...), nil
}

// DecodeChunk deserializes a chunk object, verifying magic, version and
// checksum. Returns the records and the chunk dimension.
func DecodeChunk(data []byte, c codec.Codec) ([]model.VectorRecord, int, error) {
	if c == nil {
		c = codec.Default
	}
	if len(data) < chunkHeaderSize {
		return nil, 0, fmt.Errorf("%w: %d bytes is smaller than header", ErrBadChunk, len(data))
	}
	if string(data[0:4]) != chunkMagic {
		return nil, 0, fmt.Errorf("%w: bad magic", ErrBadChunk)
	}
	if data[4] != chunkFormatVersion {
		return nil, 0, fmt.Errorf("%w: unsupported version %d", ErrBadChunk, data[4])
	}

	compression := Compression(data[5])
	dimension := int(binary.LittleEndian.Uint32(data[8:12]))
	count := int(binary.LittleEndian.Uint32(data[12:16]))
	wantCRC := binary.LittleEndian.Uint32(data[16:20])

	payload := data[chunkHeaderSize:]
	if !hash.Verify(payload, wantCRC) {
		return nil, 0, ErrChecksumMismatch
	}

	raw, err := decompressPayload(payload, compression)
	if err != nil {
		return nil, 0, err
	}

	records := make([]model.VectorRecord, 0, count)
	off := 0
	for i := 0; i < count; i++ {
		if off+8+4*dimension+4 > len(raw) {
			return nil, 0, fmt.Errorf("%w: truncated record %d", ErrBadChunk, i)
		}

		id := model.VectorID(binary.LittleEndian.Uint64(raw[off:]))
		off += 8

		vec := make([]float32, dimension)
		for j := range vec {
			vec[j] = math.Float32frombits(binary.LittleEndian.Uint32(raw[off:]))
			off += 4
		}

		mdLen := int(binary.LittleEndian.Uint32(raw[off:]))
		off += 4

		var metadata map[string]interface{}
		if mdLen > 0 {
			if off+mdLen > len(raw) {
				return nil, 0, fmt.Errorf("%w: truncated metadata in record %d", ErrBadChunk, i)
			}
			if err := c.Unmarshal(raw[off:off+mdLen], &metadata); err != nil {
				return nil, 0, fmt.Errorf("vectorstore: decode metadata for %v: %w", id, err)
			}
			off += mdLen
		}

		records = append(records, model.VectorRecord{ID: id, Vector: vec, Metadata: metadata})
	}

	return records, dimension, nil
}
