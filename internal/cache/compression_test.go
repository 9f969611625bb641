package cache

import (
	"bytes"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNegotiateCompression(t *testing.T) {
	tests := []struct {
		header string
		want   Compression
	}{
		{"", CompressionNone},
		{"gzip", CompressionGzip},
		{"deflate, gzip;q=0.5", CompressionGzip},
		{"DEFLATE", CompressionDeflate},
		{"br", CompressionNone},
		{"identity", CompressionNone},
	}
	for _, tt := range tests {
		t.Run(tt.header, func(t *testing.T) {
			assert.Equal(t, tt.want, NegotiateCompression(tt.header))
		})
	}
}

func TestCompressionStrings(t *testing.T) {
	assert.Equal(t, "", CompressionNone.ContentEncoding())
	assert.Equal(t, "gzip", CompressionGzip.ContentEncoding())
	assert.Equal(t, "deflate", CompressionDeflate.ContentEncoding())
	assert.Equal(t, "gzip:a/b.css", CacheKey{Compression: CompressionGzip, Path: "a/b.css"}.String())
}

// slowReader returns at most n bytes per Read, like a network-backed file.
type slowReader struct {
	r io.Reader
	n int
}

func (s *slowReader) Read(p []byte) (int, error) {
	if len(p) > s.n {
		p = p[:s.n]
	}
	return s.r.Read(p)
}

func TestEagerAndStreamedCompressionMatch(t *testing.T) {
	data := []byte(strings.Repeat("body { color: red; } /* padding */\n", 5000))

	for _, c := range []Compression{CompressionGzip, CompressionDeflate} {
		t.Run(c.String(), func(t *testing.T) {
			eager, err := CompressData(data, c)
			require.NoError(t, err)

			var streamed bytes.Buffer
			zw, err := NewWriter(&streamed, c)
			require.NoError(t, err)
			_, err = CopyChunks(zw, bytes.NewReader(data))
			require.NoError(t, err)
			require.NoError(t, zw.Close())

			assert.Equal(t, eager, streamed.Bytes())

			plain, err := DecompressData(eager, c)
			require.NoError(t, err)
			assert.Equal(t, data, plain)
		})
	}
}

func TestCompressionIsDeterministic(t *testing.T) {
	data := bytes.Repeat([]byte("0123456789abcdef"), 10000)

	a, err := CompressData(data, CompressionGzip)
	require.NoError(t, err)
	b, err := CompressReader(&slowReader{r: bytes.NewReader(data), n: 7000}, CompressionGzip)
	require.NoError(t, err)

	plainA, err := DecompressData(a, CompressionGzip)
	require.NoError(t, err)
	plainB, err := DecompressData(b, CompressionGzip)
	require.NoError(t, err)
	assert.Equal(t, plainA, plainB)
}

func TestNoneWriterPassesThrough(t *testing.T) {
	var buf bytes.Buffer
	w, err := NewWriter(&buf, CompressionNone)
	require.NoError(t, err)
	_, err = w.Write([]byte("plain"))
	require.NoError(t, err)
	require.NoError(t, w.Close())
	assert.Equal(t, "plain", buf.String())
}
