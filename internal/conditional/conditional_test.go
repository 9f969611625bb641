package conditional

import (
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

const tag = "abc123"

var (
	modified = time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	entity   = Entity{LastModified: modified, ETag: tag}
	before   = modified.Add(-time.Hour).Format(http.TimeFormat)
	same     = modified.Format(http.TimeFormat)
	after    = modified.Add(time.Hour).Format(http.TimeFormat)
)

func TestEvaluate(t *testing.T) {
	tests := []struct {
		name string
		h    Headers
		want Disposition
	}{
		{"plain", Headers{}, Ok},
		{"range", Headers{Range: "bytes=0-4"}, PartialContent},

		{"if-range matching tag", Headers{Range: "bytes=0-4", IfRange: `"` + tag + `"`}, PartialContent},
		{"if-range stale tag", Headers{Range: "bytes=0-4", IfRange: `"old"`}, Ok},
		{"if-range weak tag", Headers{Range: "bytes=0-4", IfRange: `W/"` + tag + `"`}, Ok},
		{"if-range date not newer", Headers{Range: "bytes=0-4", IfRange: same}, PartialContent},
		{"if-range date newer entity", Headers{Range: "bytes=0-4", IfRange: before}, Ok},
		{"if-range without range ignored", Headers{IfRange: `"old"`}, Ok},
		{"if-range stale beats if-none-match", Headers{Range: "bytes=0-4", IfRange: `"old"`, IfNoneMatch: `"` + tag + `"`}, Ok},

		{"ims entity newer", Headers{IfModifiedSince: before}, Ok},
		{"ims entity newer with range", Headers{Range: "bytes=0-4", IfModifiedSince: before}, Ok},
		{"ims not modified", Headers{IfModifiedSince: same}, NotModified},
		{"ims later date", Headers{IfModifiedSince: after}, NotModified},
		{"ims unparsable is absent", Headers{IfModifiedSince: "yesterday"}, Ok},
		{"ims fresh skips if-match", Headers{IfModifiedSince: same, IfMatch: `"other"`}, NotModified},
		{"ims newer skips if-none-match", Headers{IfModifiedSince: before, IfNoneMatch: `"` + tag + `"`}, Ok},

		{"inm match", Headers{IfNoneMatch: `"` + tag + `"`}, NotModified},
		{"inm match in list", Headers{IfNoneMatch: `"x", "` + tag + `"`}, NotModified},
		{"inm star", Headers{IfNoneMatch: "*"}, NotModified},
		{"inm weak match", Headers{IfNoneMatch: `W/"` + tag + `"`}, NotModified},
		{"inm no match still present", Headers{IfNoneMatch: `"other"`}, NotModified},
		{"inm with range", Headers{Range: "bytes=0-4", IfNoneMatch: `"` + tag + `"`}, NotModified},

		{"ius modified after", Headers{IfUnmodifiedSince: before}, PreconditionFailed},
		{"ius passes", Headers{IfUnmodifiedSince: after}, NotModified},
		{"ius equal passes", Headers{IfUnmodifiedSince: same}, NotModified},
		{"ius unparsable is absent", Headers{IfUnmodifiedSince: "garbage"}, Ok},
		{"unless-modified-since modified after", Headers{UnlessModifiedSince: before}, PreconditionFailed},
		{"unless-modified-since passes", Headers{UnlessModifiedSince: after}, NotModified},
		{"ius with range", Headers{Range: "bytes=0-4", IfUnmodifiedSince: before}, PreconditionFailed},

		{"if-match no match", Headers{IfMatch: `"other"`}, PreconditionFailed},
		{"if-match match", Headers{IfMatch: `"other", "` + tag + `"`}, NotModified},
		{"if-match star", Headers{IfMatch: "*"}, NotModified},
		{"if-match no match with range", Headers{Range: "bytes=0-4", IfMatch: `"other"`}, PreconditionFailed},

		{"precondition failed wins over not modified", Headers{IfUnmodifiedSince: before, IfMatch: `"other"`}, PreconditionFailed},
		{"not modified blocks later preconditions", Headers{IfNoneMatch: tag, IfMatch: `"other"`}, NotModified},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Evaluate(tt.h, entity))
		})
	}
}

func TestEvaluateIgnoresSubSecondModTime(t *testing.T) {
	e := Entity{LastModified: modified.Add(900 * time.Millisecond), ETag: tag}
	assert.Equal(t, NotModified, Evaluate(Headers{IfModifiedSince: same}, e))
}

func TestFromRequest(t *testing.T) {
	h := http.Header{}
	h.Set("Range", "bytes=1-2")
	h.Set("If-Range", `"a"`)
	h.Set("If-Modified-Since", same)
	h.Set("If-Unmodified-Since", after)
	h.Set("Unless-Modified-Since", before)
	h.Set("If-Match", "*")
	h.Set("If-None-Match", `"b"`)

	assert.Equal(t, Headers{
		Range:               "bytes=1-2",
		IfRange:             `"a"`,
		IfModifiedSince:     same,
		IfUnmodifiedSince:   after,
		UnlessModifiedSince: before,
		IfMatch:             "*",
		IfNoneMatch:         `"b"`,
	}, FromRequest(h))
}

func TestDispositionStatus(t *testing.T) {
	tests := map[Disposition]int{
		Ok:                  200,
		PartialContent:      206,
		NotModified:         304,
		Forbidden:           403,
		NotFound:            404,
		MethodNotAllowed:    405,
		PreconditionFailed:  412,
		TooLarge:            413,
		RangeNotSatisfiable: 416,
	}
	for d, status := range tests {
		assert.Equal(t, status, d.Status(), d.String())
	}
	assert.True(t, Ok.HasBody())
	assert.True(t, PartialContent.HasBody())
	assert.False(t, NotModified.HasBody())
	assert.Equal(t, "Not Modified", NotModified.String())
}
