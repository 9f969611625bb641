// Package transmit writes entity bodies as full, single-range or multipart
// responses.
package transmit

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/muandane/estatic/internal/cache"
	"github.com/muandane/estatic/internal/ranges"
	"github.com/muandane/estatic/internal/storage"
)

// Boundary separates the parts of a multipart/byteranges body.
const Boundary = "q1w2e3r4t5y6u7i8o9p0"

const MultipartContentType = "multipart/byteranges; boundary=" + Boundary

var (
	// ErrCompressedRange means a range was requested over a compressed
	// representation. Callers must serve ranges from identity entities.
	ErrCompressedRange = errors.New("range requested over compressed entity")

	// ErrUnsupportedCombination means the entity is stored in one coding and
	// the client negotiated another.
	ErrUnsupportedCombination = errors.New("stored and negotiated compression differ")

	// ErrTransmission wraps failures after the status line was written.
	ErrTransmission = errors.New("transmission failed")
)

var errDisconnected = errors.New("client disconnected")

type Options struct {
	OpenRetries int
	RetryDelay  time.Duration
	Logger      *slog.Logger
}

type Transmitter struct {
	src  storage.Source
	opts Options
	log  *slog.Logger
}

func New(src storage.Source, opts Options) *Transmitter {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.OpenRetries < 1 {
		opts.OpenRetries = 1
	}
	if opts.RetryDelay <= 0 {
		opts.RetryDelay = storage.DefaultRetryDelay
	}
	return &Transmitter{src: src, opts: opts, log: opts.Logger.With("component", "transmit")}
}

// Request describes one response body. An empty Ranges means the full entity.
type Request struct {
	Entity     *cache.FileEntity
	Negotiated cache.Compression
	Ranges     []ranges.Spec
	Head       bool
}

// Send writes the representation headers, the status and the body. Errors
// returned without ErrTransmission happened before anything was written.
// A client disconnect ends the body early and is not reported.
func (t *Transmitter) Send(ctx context.Context, w http.ResponseWriter, req Request) error {
	e := req.Entity
	if len(req.Ranges) > 0 && e.Compression != cache.CompressionNone {
		return ErrCompressedRange
	}
	if len(req.Ranges) == 0 && e.Compression != cache.CompressionNone && e.Compression != req.Negotiated {
		return fmt.Errorf("%w: stored %s, negotiated %s", ErrUnsupportedCombination, e.Compression, req.Negotiated)
	}

	body, err := t.open(ctx, e)
	if err != nil {
		return err
	}
	defer body.Close()

	// Only identity entities are compressed on the fly.
	encode := e.Compression == cache.CompressionNone && req.Negotiated != cache.CompressionNone

	h := w.Header()
	if ce := e.Compression.ContentEncoding(); ce != "" {
		h.Set("Content-Encoding", ce)
	} else if encode {
		h.Set("Content-Encoding", req.Negotiated.ContentEncoding())
	}

	var status int
	var length int64
	var write func(io.Writer) error

	switch len(req.Ranges) {
	case 0:
		status, length = http.StatusOK, e.ContentLength
		h.Set("Content-Type", e.ContentType)
		write = func(dst io.Writer) error {
			return copyRange(ctx, dst, body, 0, e.ContentLength)
		}
	case 1:
		spec := req.Ranges[0]
		status, length = http.StatusPartialContent, spec.Length()
		h.Set("Content-Type", e.ContentType)
		h.Set("Content-Range", spec.ContentRange(e.ContentLength))
		write = func(dst io.Writer) error {
			return copyRange(ctx, dst, body, spec.Start, spec.Length())
		}
	default:
		status, length = http.StatusPartialContent, MultipartLength(e.ContentType, e.ContentLength, req.Ranges)
		h.Set("Content-Type", MultipartContentType)
		write = func(dst io.Writer) error {
			return writeMultipart(ctx, dst, body, e.ContentType, e.ContentLength, req.Ranges)
		}
	}

	if encode {
		h.Del("Content-Length")
	} else {
		h.Set("Content-Length", strconv.FormatInt(length, 10))
	}
	w.WriteHeader(status)

	if req.Head {
		return nil
	}

	if err := t.writeBody(w, req.Negotiated, encode, write); err != nil {
		if errors.Is(err, errDisconnected) {
			t.log.Debug("client went away", "path", e.Path)
			return nil
		}
		return fmt.Errorf("%w: %s: %w", ErrTransmission, e.Path, err)
	}
	return nil
}

func (t *Transmitter) writeBody(w io.Writer, c cache.Compression, encode bool, write func(io.Writer) error) error {
	if !encode {
		return write(w)
	}
	zw, err := cache.NewWriter(w, c)
	if err != nil {
		return err
	}
	if err := write(zw); err != nil {
		return err
	}
	return zw.Close()
}

func (t *Transmitter) open(ctx context.Context, e *cache.FileEntity) (storage.File, error) {
	if e.Materialized() {
		return nopCloser{bytes.NewReader(e.Data)}, nil
	}
	f, err := storage.OpenWithRetry(ctx, t.src, e.Path, t.opts.OpenRetries, t.opts.RetryDelay)
	if err != nil {
		if storage.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", cache.ErrNotFound, e.Path)
		}
		return nil, err
	}
	return f, nil
}

type nopCloser struct{ *bytes.Reader }

func (nopCloser) Close() error { return nil }

// copyRange copies length bytes starting at offset from src to dst in
// cache.BufferSize chunks, checking ctx before every write.
func copyRange(ctx context.Context, dst io.Writer, src io.ReadSeeker, offset, length int64) error {
	if _, err := src.Seek(offset, io.SeekStart); err != nil {
		return err
	}
	buf := make([]byte, cache.BufferSize)
	for length > 0 {
		n := int64(len(buf))
		if length < n {
			n = length
		}
		read, err := io.ReadFull(src, buf[:n])
		if read > 0 {
			if ctx.Err() != nil {
				return errDisconnected
			}
			if _, werr := dst.Write(buf[:read]); werr != nil {
				return werr
			}
			length -= int64(read)
		}
		if err != nil {
			if errors.Is(err, io.ErrUnexpectedEOF) || errors.Is(err, io.EOF) {
				return fmt.Errorf("source truncated, %d bytes missing", length)
			}
			return err
		}
	}
	return nil
}
