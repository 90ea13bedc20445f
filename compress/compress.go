package compress

import (
	"encoding/binary"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
)

// Kind defines the compression algorithm applied to stored rows.
type Kind uint8

const (
	// None stores rows verbatim, without a header.
	None Kind = 0
	// LZ4 uses LZ4 block compression (fast, modest ratio).
	LZ4 Kind = 1
	// ZSTD uses zstd (better ratio, slower).
	ZSTD Kind = 2
)

// HeaderSize is the size of the frame header written by Encode for
// compressing kinds: [uncompressed uint32][compressed uint32].
// A compressed size of 0 means the payload is stored raw.
const HeaderSize = 8

var (
	// ErrCorrupt is returned when a frame cannot be decoded.
	ErrCorrupt = errors.New("compress: corrupt frame")
	// ErrSizeMismatch is returned when a frame decodes to the wrong length.
	ErrSizeMismatch = errors.New("compress: decoded size mismatch")
)

func (k Kind) String() string {
	switch k {
	case None:
		return "none"
	case LZ4:
		return "lz4"
	case ZSTD:
		return "zstd"
	default:
		return fmt.Sprintf("kind(%d)", uint8(k))
	}
}

// ParseKind parses "none", "lz4" or "zstd" (case-insensitive). The empty
// string is None.
func ParseKind(s string) (Kind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "none":
		return None, nil
	case "lz4":
		return LZ4, nil
	case "zstd":
		return ZSTD, nil
	default:
		return None, fmt.Errorf("compress: unknown kind %q", s)
	}
}

var (
	zstdEncoderPool sync.Pool
	zstdDecoderPool sync.Pool
)

func getZstdEncoder() *zstd.Encoder {
	if v := zstdEncoderPool.Get(); v != nil {
		return v.(*zstd.Encoder)
	}
	enc, _ := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	return enc
}

func getZstdDecoder() *zstd.Decoder {
	if v := zstdDecoderPool.Get(); v != nil {
		return v.(*zstd.Decoder)
	}
	dec, _ := zstd.NewReader(nil)
	return dec
}

// MaxEncodedLen returns the largest frame Encode produces for n input bytes.
func MaxEncodedLen(kind Kind, n int) int {
	if kind == None {
		return n
	}
	return HeaderSize + n
}

// Encode frames data for storage. With None the input is returned as is.
// Otherwise the payload is compressed, or stored raw when compression
// saves less than 10%.
func Encode(kind Kind, data []byte) ([]byte, error) {
	if kind == None {
		return data, nil
	}

	var compressed []byte
	switch kind {
	case LZ4:
		buf := make([]byte, lz4.CompressBlockBound(len(data)))
		n, err := lz4.CompressBlock(data, buf, nil)
		if err != nil {
			return nil, err
		}
		compressed = buf[:n]
	case ZSTD:
		enc := getZstdEncoder()
		compressed = enc.EncodeAll(data, nil)
		zstdEncoderPool.Put(enc)
	default:
		return nil, fmt.Errorf("compress: unknown kind %d", kind)
	}

	if len(compressed) == 0 || float64(len(compressed)) > float64(len(data))*0.9 {
		out := make([]byte, HeaderSize+len(data))
		binary.LittleEndian.PutUint32(out[0:], uint32(len(data)))
		copy(out[HeaderSize:], data)
		return out, nil
	}

	out := make([]byte, HeaderSize+len(compressed))
	binary.LittleEndian.PutUint32(out[0:], uint32(len(data)))
	binary.LittleEndian.PutUint32(out[4:], uint32(len(compressed)))
	copy(out[HeaderSize:], compressed)
	return out, nil
}

// Decode reverses Encode into dst, which must have exactly the original
// length.
func Decode(kind Kind, frame []byte, dst []byte) error {
	if kind == None {
		if len(frame) != len(dst) {
			return ErrSizeMismatch
		}
		copy(dst, frame)
		return nil
	}

	if len(frame) < HeaderSize {
		return ErrCorrupt
	}
	raw := binary.LittleEndian.Uint32(frame[0:])
	stored := binary.LittleEndian.Uint32(frame[4:])
	if int(raw) != len(dst) {
		return ErrSizeMismatch
	}
	payload := frame[HeaderSize:]

	if stored == 0 {
		if len(payload) < int(raw) {
			return ErrCorrupt
		}
		copy(dst, payload[:raw])
		return nil
	}
	if len(payload) < int(stored) {
		return ErrCorrupt
	}
	payload = payload[:stored]

	switch kind {
	case LZ4:
		n, err := lz4.UncompressBlock(payload, dst)
		if err != nil {
			return fmt.Errorf("%w: %v", ErrCorrupt, err)
		}
		if n != len(dst) {
			return ErrSizeMismatch
		}
	case ZSTD:
		dec := getZstdDecoder()
		defer zstdDecoderPool.Put(dec)

		decoded, err := dec.DecodeAll(payload, dst[:0])
		if err != nil {
			return fmt.Errorf("%w: %v", ErrCorrupt, err)
		}
		if len(decoded) != len(dst) {
			return ErrSizeMismatch
		}
	default:
		return fmt.Errorf("compress: unknown kind %d", kind)
	}
	return nil
}
