// Package codec centralizes metadata and manifest encoding.
//
// Codec selection is a breaking-change boundary: bytes persisted with
// one codec may not decode with another.
package codec

// Codec encodes/decodes values.
// Implementations must be safe for concurrent use.
type Codec interface {
	Marshal(v any) ([]byte, error)
	Unmarshal(data []byte, v any) error
	Name() string
}
