package transmit

import (
	"context"
	"io"

	"github.com/muandane/estatic/internal/ranges"
)

const (
	crlf            = "\r\n"
	closingBoundary = "--" + Boundary + "--" + crlf
)

func partHeader(contentType string, spec ranges.Spec, total int64) string {
	return "--" + Boundary + crlf +
		"Content-Type: " + contentType + crlf +
		"Content-Range: " + spec.ContentRange(total) + crlf +
		crlf
}

// MultipartLength is the exact size of the multipart/byteranges body for specs.
func MultipartLength(contentType string, total int64, specs []ranges.Spec) int64 {
	var n int64
	for _, spec := range specs {
		n += int64(len(partHeader(contentType, spec, total))) + spec.Length() + int64(len(crlf))
	}
	return n + int64(len(closingBoundary))
}

func writeMultipart(ctx context.Context, dst io.Writer, src io.ReadSeeker, contentType string, total int64, specs []ranges.Spec) error {
	for _, spec := range specs {
		if err := writeString(ctx, dst, partHeader(contentType, spec, total)); err != nil {
			return err
		}
		if err := copyRange(ctx, dst, src, spec.Start, spec.Length()); err != nil {
			return err
		}
		if err := writeString(ctx, dst, crlf); err != nil {
			return err
		}
	}
	return writeString(ctx, dst, closingBoundary)
}

func writeString(ctx context.Context, dst io.Writer, s string) error {
	if ctx.Err() != nil {
		return errDisconnected
	}
	_, err := io.WriteString(dst, s)
	return err
}
