package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"io"
	"time"

	"github.com/muandane/estatic/internal/config"
)

// TruncateModTime drops sub-second precision. Conditional request dates only
// carry whole seconds, so finer timestamps would never compare equal.
func TruncateModTime(t time.Time) time.Time {
	return t.UTC().Truncate(time.Second)
}

// ComputeETag derives the entity tag. For content hashes r must yield the
// uncompressed file bytes; for modification-time tags r is ignored.
func ComputeETag(r io.Reader, method config.ETagMethod, lastModified time.Time) (string, error) {
	switch method {
	case config.ETagLastModified:
		return TruncateModTime(lastModified).Format(time.RFC3339), nil
	case config.ETagContentHash:
		if r == nil {
			return "", errors.New("content hash etag needs a reader")
		}
		h := sha256.New()
		if _, err := CopyChunks(h, r); err != nil {
			return "", err
		}
		return hex.EncodeToString(h.Sum(nil)), nil
	default:
		return "", errors.New("unknown etag method " + method.String())
	}
}
