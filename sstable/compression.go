package sstable

import (
	"fmt"
	"sync"

	"github.com/klauspost/compress/snappy"
	"github.com/klauspost/compress/zstd"
)

// compressionType is the one-byte tag stored in every block trailer
// identifying how the preceding payload is encoded.
type compressionType byte

const (
	compressionNone   compressionType = 0
	compressionSnappy compressionType = 1
	compressionZstd   compressionType = 2
)

// Compression selects the codec a table builder uses for data, index
// and metaindex blocks. Filter blocks are always stored uncompressed
// regardless of this setting.
type Compression int

const (
	// NoCompression stores every block payload verbatim.
	NoCompression Compression = iota
	// SnappyCompression uses snappy, favoring decompression speed.
	SnappyCompression
	// ZstdCompression uses zstd, favoring compression ratio.
	ZstdCompression
)

func (c Compression) tag() compressionType {
	switch c {
	case SnappyCompression:
		return compressionSnappy
	case ZstdCompression:
		return compressionZstd
	default:
		return compressionNone
	}
}

// compress encodes raw using c, reusing scratch as scratch space when
// possible. It returns the encoded payload and the compressionType tag
// that must be recorded alongside it.
func compress(c Compression, raw, scratch []byte) ([]byte, compressionType, error) {
	switch c {
	case SnappyCompression:
		return snappy.Encode(scratch[:0], raw), compressionSnappy, nil
	case ZstdCompression:
		enc, err := zstdEncoder()
		if err != nil {
			return nil, compressionNone, err
		}
		return enc.EncodeAll(raw, scratch[:0]), compressionZstd, nil
	default:
		return raw, compressionNone, nil
	}
}

// decompress decodes payload according to tag. Unknown tags are a
// structural error: the table references a codec this build doesn't
// understand.
func decompress(tag compressionType, payload []byte) ([]byte, error) {
	switch tag {
	case compressionNone:
		return payload, nil
	case compressionSnappy:
		decoded, err := snappy.Decode(nil, payload)
		if err != nil {
			return nil, fmt.Errorf("%w: snappy: %v", ErrCorruption, err)
		}
		return decoded, nil
	case compressionZstd:
		dec, err := zstdDecoder()
		if err != nil {
			return nil, err
		}
		decoded, err := dec.DecodeAll(payload, nil)
		if err != nil {
			return nil, fmt.Errorf("%w: zstd: %v", ErrCorruption, err)
		}
		return decoded, nil
	default:
		return nil, fmt.Errorf("%w: unknown compression type %d", ErrCorruption, tag)
	}
}

// zstdEncoder and zstdDecoder are process-wide: klauspost/compress/zstd
// encoders and decoders are expensive to construct and are documented
// as safe for concurrent use once built.
var (
	zstdEncoderOnce sync.Once
	sharedZstdEncoder    *zstd.Encoder
	sharedZstdEncoderErr error

	zstdDecoderOnce sync.Once
	sharedZstdDecoder    *zstd.Decoder
	sharedZstdDecoderErr error
)

func zstdEncoder() (*zstd.Encoder, error) {
	zstdEncoderOnce.Do(func() {
		sharedZstdEncoder, sharedZstdEncoderErr = zstd.NewWriter(nil)
	})
	return sharedZstdEncoder, sharedZstdEncoderErr
}

func zstdDecoder() (*zstd.Decoder, error) {
	zstdDecoderOnce.Do(func() {
		sharedZstdDecoder, sharedZstdDecoderErr = zstd.NewReader(nil)
	})
	return sharedZstdDecoder, sharedZstdDecoderErr
}
