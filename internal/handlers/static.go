package handlers

import (
	"errors"
	"log/slog"
	"net/http"
	"path"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/muandane/estatic/internal/cache"
	"github.com/muandane/estatic/internal/conditional"
	"github.com/muandane/estatic/internal/config"
	"github.com/muandane/estatic/internal/ranges"
	"github.com/muandane/estatic/internal/storage"
	"github.com/muandane/estatic/internal/transmit"
)

const allowedMethods = "GET, HEAD"

// entityHeaders are dropped when a request fails after they were set.
var entityHeaders = []string{
	"Cache-Control", "Expires", "Last-Modified", "ETag", "Accept-Ranges", "Vary",
	"Content-Type", "Content-Length", "Content-Encoding", "Content-Range",
}

type StaticOptions struct {
	ForbiddenExtensions []string
	Clock               cache.Clock
	Logger              *slog.Logger
}

// StaticHandler serves files from an entity store with conditional and range
// request support.
type StaticHandler struct {
	store     *cache.Store
	policies  *config.PolicyTable
	tx        *transmit.Transmitter
	forbidden map[string]struct{}
	clock     cache.Clock
	logger    *slog.Logger
}

func NewStaticHandler(store *cache.Store, tx *transmit.Transmitter, opts StaticOptions) (*StaticHandler, error) {
	if store == nil || tx == nil {
		return nil, errors.New("store and transmitter cannot be nil")
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Clock == nil {
		opts.Clock = cache.SystemClock
	}

	forbidden := make(map[string]struct{}, len(opts.ForbiddenExtensions))
	for _, ext := range opts.ForbiddenExtensions {
		if ext = config.NormalizeExtension(ext); ext != "" {
			forbidden[ext] = struct{}{}
		}
	}

	return &StaticHandler{
		store:     store,
		policies:  store.Policies(),
		tx:        tx,
		forbidden: forbidden,
		clock:     opts.Clock,
		logger:    opts.Logger,
	}, nil
}

// Gin adapts the handler for use as a gin route or NoRoute handler.
func (h *StaticHandler) Gin() gin.HandlerFunc {
	return gin.WrapH(h)
}

func (h *StaticHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	name := storage.CleanPath(r.URL.Path)

	logger := h.logger.With(
		"method", r.Method,
		"path", name,
		"remote_addr", r.RemoteAddr,
	)

	status := h.serve(w, r, name, logger)

	logger.Info("request completed",
		"status", status,
		"duration", time.Since(start).String(),
	)
}

func (h *StaticHandler) serve(w http.ResponseWriter, r *http.Request, name string, logger *slog.Logger) int {
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		w.Header().Set("Allow", allowedMethods)
		return writeDisposition(w, conditional.MethodNotAllowed)
	}

	ext := strings.ToLower(path.Ext(name))
	if _, ok := h.forbidden[ext]; ok {
		return writeDisposition(w, conditional.Forbidden)
	}

	rule := h.policies.Resolve(ext)
	negotiated := cache.CompressionNone
	if rule.Compress {
		negotiated = cache.NegotiateCompression(r.Header.Get("Accept-Encoding"))
	}

	hdrs := conditional.FromRequest(r.Header)

	// Ranges are always cut from the identity representation.
	stored := negotiated
	if hdrs.Range != "" {
		stored = cache.CompressionNone
	}

	entity, err := h.store.GetOrCreate(r.Context(), name, stored)
	if err != nil {
		return h.fail(w, logger, err)
	}

	parsed := ranges.Parse(hdrs.Range, entity.ContentLength)
	if parsed.Kind == ranges.Unsatisfiable {
		w.Header().Set("Content-Range", ranges.UnsatisfiedContentRange(entity.ContentLength))
		return writeDisposition(w, conditional.RangeNotSatisfiable)
	}

	d := conditional.Evaluate(hdrs, conditional.Entity{
		LastModified: entity.LastModified,
		ETag:         entity.ETag,
	})
	if !d.HasBody() {
		return writeDisposition(w, d)
	}

	h.setCachingHeaders(w.Header(), entity, rule)

	req := transmit.Request{
		Entity:     entity,
		Negotiated: negotiated,
		Head:       r.Method == http.MethodHead,
	}
	if d == conditional.PartialContent {
		req.Ranges = parsed.Specs
	}

	if err := h.tx.Send(r.Context(), w, req); err != nil {
		if errors.Is(err, transmit.ErrTransmission) {
			logger.Error("response aborted", "error", err)
			return d.Status()
		}
		for _, k := range entityHeaders {
			w.Header().Del(k)
		}
		return h.fail(w, logger, err)
	}
	return d.Status()
}

func (h *StaticHandler) setCachingHeaders(hdr http.Header, e *cache.FileEntity, rule config.PolicyRule) {
	maxAge := int64(rule.Expires / time.Second)
	hdr.Set("Cache-Control", "public, must-revalidate, proxy-revalidate, max-age="+strconv.FormatInt(maxAge, 10))
	hdr.Set("Expires", h.clock.Now().Add(rule.Expires).UTC().Format(http.TimeFormat))
	hdr.Set("Last-Modified", e.LastModified.UTC().Format(http.TimeFormat))
	hdr.Set("ETag", `"`+e.ETag+`"`)
	hdr.Set("Accept-Ranges", "bytes")
	if rule.Compress {
		hdr.Set("Vary", "Accept-Encoding")
	}
}

func (h *StaticHandler) fail(w http.ResponseWriter, logger *slog.Logger, err error) int {
	status := statusForError(err)
	if status == http.StatusInternalServerError {
		logger.Error("failed to serve file", "error", err)
	} else {
		logger.Debug("request rejected", "error", err, "status", status)
	}
	w.WriteHeader(status)
	return status
}

func writeDisposition(w http.ResponseWriter, d conditional.Disposition) int {
	status := d.Status()
	w.WriteHeader(status)
	return status
}
