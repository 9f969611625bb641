package cache

import (
	"bytes"
	"io"
	"time"
)

// Compression is the content coding of a stored or transmitted representation.
type Compression int

const (
	CompressionNone Compression = iota
	CompressionGzip
	CompressionDeflate
)

var compressions = [...]Compression{CompressionNone, CompressionGzip, CompressionDeflate}

func (c Compression) String() string {
	switch c {
	case CompressionGzip:
		return "gzip"
	case CompressionDeflate:
		return "deflate"
	default:
		return "identity"
	}
}

// ContentEncoding returns the Content-Encoding header value, empty for identity.
func (c Compression) ContentEncoding() string {
	if c == CompressionNone {
		return ""
	}
	return c.String()
}

// CacheKey separates the representations of one path by at-rest compression.
type CacheKey struct {
	Compression Compression
	Path        string
}

func (k CacheKey) String() string {
	return k.Compression.String() + ":" + k.Path
}

// FileEntity is an immutable snapshot of a file ready to be served.
type FileEntity struct {
	Path         string
	LastModified time.Time
	ContentType  string

	// ETag is computed from the uncompressed source bytes and is unquoted.
	ETag string

	// ContentLength is the length of the stored representation and SourceSize
	// the length of the file in the source.
	ContentLength int64
	SourceSize    int64

	// Data holds the stored representation when the file is served from memory.
	Data        []byte
	Compression Compression
}

// Materialized reports whether the body is held in memory.
func (e *FileEntity) Materialized() bool {
	return e.Data != nil
}

// Reader returns a fresh reader over the materialized body.
func (e *FileEntity) Reader() io.ReadSeeker {
	return bytes.NewReader(e.Data)
}
