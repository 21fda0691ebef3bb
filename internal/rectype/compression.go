package rectype

import "bytes"

// Compression identifies the compression applied to a flat stream.
type Compression uint8

const (
	CompressionNone Compression = iota
	CompressionGzip
	CompressionZstd
	CompressionS2
	CompressionLZ4
)

// String returns the human-readable name of the compression algorithm.
func (c Compression) String() string {
	switch c {
	case CompressionNone:
		return "none"
	case CompressionGzip:
		return "gzip"
	case CompressionZstd:
		return "zstd"
	case CompressionS2:
		return "s2"
	case CompressionLZ4:
		return "lz4"
	default:
		return "unknown"
	}
}

// Valid reports whether c names a supported algorithm.
func (c Compression) Valid() bool {
	return c <= CompressionLZ4
}

var (
	magicGzip   = []byte{0x1f, 0x8b}
	magicZstd   = []byte{0x28, 0xb5, 0x2f, 0xfd}
	magicLZ4    = []byte{0x04, 0x22, 0x4d, 0x18}
	magicS2     = []byte("\xff\x06\x00\x00S2sTwO")
	magicSnappy = []byte("\xff\x06\x00\x00sNaPpY")
)

// MagicLen is the number of leading bytes needed by the sniffing helpers.
const MagicLen = 10

// DetectCompression identifies a compressed stream by its leading bytes.
// Anything unrecognized is treated as uncompressed.
func DetectCompression(head []byte) Compression {
	switch {
	case bytes.HasPrefix(head, magicZstd):
		return CompressionZstd
	case bytes.HasPrefix(head, magicLZ4):
		return CompressionLZ4
	case bytes.HasPrefix(head, magicS2), bytes.HasPrefix(head, magicSnappy):
		return CompressionS2
	case bytes.HasPrefix(head, magicGzip):
		return CompressionGzip
	default:
		return CompressionNone
	}
}
