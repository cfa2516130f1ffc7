// Package security holds the resource bounds applied while reading
// untrusted PDF input.
package security

import (
	"errors"
	"time"
)

// ErrEncrypted is returned for documents with an /Encrypt dictionary.
// Pages of encrypted documents are never copied.
var ErrEncrypted = errors.New("encrypted documents are not supported")

// Limits bounds the work done on one input. Zero fields are unlimited,
// except that a zero Limits as a whole means DefaultLimits.
type Limits struct {
	MaxDecompressedSize int64 // bytes produced by one filter chain
	MaxIndirectDepth    int   // array and dictionary nesting
	MaxXRefDepth        int   // /Prev sections followed
	MaxArraySize        int
	MaxDictSize         int
	MaxStringLength     int64
	MaxStreamLength     int64 // raw bytes between stream and endstream
	MaxParseTime        time.Duration
}

// DefaultLimits suits page-level splitting and merging of ordinary
// documents.
func DefaultLimits() Limits {
	return Limits{
		MaxDecompressedSize: 100 << 20,
		MaxIndirectDepth:    100,
		MaxXRefDepth:        50,
		MaxArraySize:        100_000,
		MaxDictSize:         10_000,
		MaxStringLength:     10 << 20,
		MaxStreamLength:     50 << 20,
		MaxParseTime:        5 * time.Minute,
	}
}
