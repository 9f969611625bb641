package storage

import (
	"context"
	"io"
	"mime"
	"path"

	"github.com/gabriel-vasile/mimetype"
)

const DefaultContentType = "application/octet-stream"

// ContentType resolves the MIME type for name from its extension. When the
// extension is unknown the first bytes of the file are sniffed.
func ContentType(ctx context.Context, src Source, name string) string {
	if ct := mime.TypeByExtension(path.Ext(name)); ct != "" {
		return ct
	}
	f, err := src.Open(ctx, name)
	if err != nil {
		return DefaultContentType
	}
	defer f.Close()
	return SniffContentType(f)
}

// SniffContentType detects the MIME type from content.
func SniffContentType(r io.Reader) string {
	mt, err := mimetype.DetectReader(r)
	if err != nil || mt == nil {
		return DefaultContentType
	}
	return mt.String()
}
