// Package conditional decides the response disposition for conditional and
// range requests against a cached entity.
package conditional

import (
	"net/http"
	"strings"
	"time"
)

// Headers holds the request headers that take part in validation.
type Headers struct {
	Range               string
	IfRange             string
	IfModifiedSince     string
	IfUnmodifiedSince   string
	UnlessModifiedSince string
	IfMatch             string
	IfNoneMatch         string
}

func FromRequest(h http.Header) Headers {
	return Headers{
		Range:               h.Get("Range"),
		IfRange:             h.Get("If-Range"),
		IfModifiedSince:     h.Get("If-Modified-Since"),
		IfUnmodifiedSince:   h.Get("If-Unmodified-Since"),
		UnlessModifiedSince: h.Get("Unless-Modified-Since"),
		IfMatch:             h.Get("If-Match"),
		IfNoneMatch:         h.Get("If-None-Match"),
	}
}

// Entity is the validator state of the representation being served.
type Entity struct {
	LastModified time.Time
	ETag         string
}

// check is the result of one precondition. present is false when the header
// was absent or could not be parsed.
type check struct {
	present bool
	passed  bool
}

// Evaluate runs the preconditions in order.
//
// A request carrying any precondition that was evaluated, and that did not
// force a full body through If-Modified-Since or If-Range, resolves to
// NotModified even when every precondition passed.
func Evaluate(h Headers, e Entity) Disposition {
	lastModified := e.LastModified.UTC().Truncate(time.Second)

	status := Ok
	if h.Range != "" {
		status = PartialContent
	}

	if ir := checkIfRange(h, e.ETag, lastModified); ir.present && !ir.passed {
		return Ok
	}

	ims := checkModifiedSince(h.IfModifiedSince, lastModified)
	if ims.present {
		if ims.passed {
			return Ok
		}
		status = NotModified
	}

	var inm, ius, ums, im check
	if status.successful() {
		if inm = checkIfNoneMatch(h.IfNoneMatch, e.ETag); inm.present && !inm.passed {
			status = NotModified
		}
	}
	if status.successful() {
		if ius = checkUnmodifiedSince(h.IfUnmodifiedSince, lastModified); ius.present && !ius.passed {
			status = PreconditionFailed
		}
	}
	if status.successful() {
		if ums = checkUnmodifiedSince(h.UnlessModifiedSince, lastModified); ums.present && !ums.passed {
			status = PreconditionFailed
		}
	}
	if status.successful() {
		if im = checkIfMatch(h.IfMatch, e.ETag); im.present && !im.passed {
			status = PreconditionFailed
		}
	}

	switch {
	case status == PreconditionFailed:
		return PreconditionFailed
	case status == NotModified:
		return NotModified
	case ims.present || inm.present || ius.present || ums.present || im.present:
		return NotModified
	}
	return status
}

// checkIfRange passes when the entity is unchanged since the date or its tag
// strongly equals the supplied one. It is ignored without a Range header.
func checkIfRange(h Headers, etag string, lastModified time.Time) check {
	if h.Range == "" || h.IfRange == "" {
		return check{}
	}
	if t, ok := parseDate(h.IfRange); ok {
		return check{present: true, passed: !lastModified.After(t)}
	}
	tag := strings.TrimSpace(h.IfRange)
	if strings.HasPrefix(tag, "W/") {
		return check{present: true}
	}
	return check{present: true, passed: strings.ReplaceAll(tag, `"`, "") == etag}
}

// checkModifiedSince passes when the entity is newer than the date.
func checkModifiedSince(value string, lastModified time.Time) check {
	t, ok := parseDate(value)
	if !ok {
		return check{}
	}
	return check{present: true, passed: lastModified.After(t)}
}

// checkUnmodifiedSince passes when the entity is not newer than the date.
func checkUnmodifiedSince(value string, lastModified time.Time) check {
	t, ok := parseDate(value)
	if !ok {
		return check{}
	}
	return check{present: true, passed: !lastModified.After(t)}
}

// checkIfNoneMatch fails when any listed tag, or *, matches.
func checkIfNoneMatch(value, etag string) check {
	if strings.TrimSpace(value) == "" {
		return check{}
	}
	return check{present: true, passed: !matchesAny(value, etag)}
}

// checkIfMatch passes when any listed tag, or *, matches.
func checkIfMatch(value, etag string) check {
	if strings.TrimSpace(value) == "" {
		return check{}
	}
	return check{present: true, passed: matchesAny(value, etag)}
}

func matchesAny(list, etag string) bool {
	for _, tag := range strings.Split(list, ",") {
		tag = unquote(tag)
		if tag == "*" || tag == etag {
			return true
		}
	}
	return false
}

// unquote strips whitespace, a weak prefix and double quotes from a tag.
func unquote(tag string) string {
	tag = strings.TrimSpace(tag)
	tag = strings.TrimPrefix(tag, "W/")
	return strings.ReplaceAll(tag, `"`, "")
}

func parseDate(value string) (time.Time, bool) {
	value = strings.TrimSpace(value)
	if value == "" {
		return time.Time{}, false
	}
	t, err := http.ParseTime(value)
	if err != nil {
		return time.Time{}, false
	}
	return t.UTC(), true
}
