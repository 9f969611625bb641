package cache

import (
	"bytes"
	"fmt"
	"io"
	"strings"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zlib"
)

// BufferSize is the chunk size used for every body copy. Eager and streamed
// compression both feed the compressor in chunks of this size so that the two
// paths produce identical bytes.
const BufferSize = 32 * 1024

const compressionLevel = gzip.DefaultCompression

// NegotiateCompression picks a coding from an Accept-Encoding header value.
// gzip wins over deflate; anything else means identity.
func NegotiateCompression(acceptEncoding string) Compression {
	ae := strings.ToLower(acceptEncoding)
	switch {
	case strings.Contains(ae, "gzip"):
		return CompressionGzip
	case strings.Contains(ae, "deflate"):
		return CompressionDeflate
	default:
		return CompressionNone
	}
}

type nopWriteCloser struct{ io.Writer }

func (nopWriteCloser) Close() error { return nil }

// NewWriter wraps w in a compressor for c. Closing the writer flushes the
// compressed stream but does not close w.
func NewWriter(w io.Writer, c Compression) (io.WriteCloser, error) {
	switch c {
	case CompressionNone:
		return nopWriteCloser{w}, nil
	case CompressionGzip:
		return gzip.NewWriterLevel(w, compressionLevel)
	case CompressionDeflate:
		return zlib.NewWriterLevel(w, compressionLevel)
	default:
		return nil, fmt.Errorf("unknown compression %d", c)
	}
}

// CopyChunks copies src to dst in BufferSize chunks.
func CopyChunks(dst io.Writer, src io.Reader) (int64, error) {
	return io.CopyBuffer(onlyWriter{dst}, onlyReader{src}, make([]byte, BufferSize))
}

// onlyWriter and onlyReader hide ReadFrom/WriteTo so CopyBuffer always uses
// the chunk buffer.
type onlyWriter struct{ io.Writer }

type onlyReader struct{ io.Reader }

// CompressReader compresses everything read from r.
func CompressReader(r io.Reader, c Compression) ([]byte, error) {
	var compressed bytes.Buffer
	zw, err := NewWriter(&compressed, c)
	if err != nil {
		return nil, err
	}
	if _, err := CopyChunks(zw, r); err != nil {
		return nil, err
	}
	if err := zw.Close(); err != nil {
		return nil, err
	}
	return compressed.Bytes(), nil
}

// CompressData compresses data in memory.
func CompressData(data []byte, c Compression) ([]byte, error) {
	return CompressReader(bytes.NewReader(data), c)
}

// DecompressData reverses CompressData.
func DecompressData(data []byte, c Compression) ([]byte, error) {
	var r io.ReadCloser
	var err error
	switch c {
	case CompressionNone:
		return data, nil
	case CompressionGzip:
		r, err = gzip.NewReader(bytes.NewReader(data))
	case CompressionDeflate:
		r, err = zlib.NewReader(bytes.NewReader(data))
	default:
		return nil, fmt.Errorf("unknown compression %d", c)
	}
	if err != nil {
		return nil, err
	}
	defer r.Close()

	return io.ReadAll(r)
}
