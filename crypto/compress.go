package crypto

import (
	"bytes"
	"compress/zlib"
	"fmt"
	"io"

	"github.com/flux-johnm/net-ssh/wire"
)

// Compression catalog names.
const (
	CompressionNone = "none"
	CompressionZlib = "zlib"
)

// Compressor transforms packet payloads before encryption and after
// decryption. One instance serves one direction.
type Compressor interface {
	Compress(payload []byte) ([]byte, error)
	Decompress(payload []byte) ([]byte, error)
}

// SupportedCompression lists compression names in no particular order.
func SupportedCompression() []string {
	return []string{CompressionNone, CompressionZlib}
}

// NewCompressor constructs the compressor for a negotiated name.
func NewCompressor(name string) (Compressor, error) {
	switch name {
	case CompressionNone:
		return noneCompressor{}, nil
	case CompressionZlib:
		return zlibCompressor{}, nil
	default:
		return nil, fmt.Errorf("%w: compression %q", ErrUnknownAlgorithm, name)
	}
}

type noneCompressor struct{}

func (noneCompressor) Compress(payload []byte) ([]byte, error)   { return payload, nil }
func (noneCompressor) Decompress(payload []byte) ([]byte, error) { return payload, nil }

// zlibCompressor wraps each payload in a self-contained zlib stream.
type zlibCompressor struct{}

func (zlibCompressor) Compress(payload []byte) ([]byte, error) {
	var buf bytes.Buffer
	w := zlib.NewWriter(&buf)
	if _, err := w.Write(payload); err != nil {
		return nil, fmt.Errorf("crypto: zlib compress: %w", err)
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("crypto: zlib compress: %w", err)
	}
	return buf.Bytes(), nil
}

func (zlibCompressor) Decompress(payload []byte) ([]byte, error) {
	r, err := zlib.NewReader(bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("%w: zlib header: %v", ErrBadPacket, err)
	}
	defer r.Close()

	out, err := io.ReadAll(io.LimitReader(r, wire.MaxPacketSize+1))
	if err != nil {
		return nil, fmt.Errorf("%w: zlib stream: %v", ErrBadPacket, err)
	}
	if len(out) > wire.MaxPacketSize {
		return nil, fmt.Errorf("%w: decompressed payload exceeds packet limit", ErrBadPacket)
	}
	return out, nil
}
