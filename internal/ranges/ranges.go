// Package ranges parses and validates byte-range request headers.
package ranges

import (
	"strconv"
	"strings"
)

const prefix = "bytes="

// Spec is an inclusive byte range.
type Spec struct {
	Start int64
	End   int64
}

func (s Spec) Length() int64 {
	return s.End - s.Start + 1
}

// ContentRange formats the Content-Range value for s against a total length.
func (s Spec) ContentRange(total int64) string {
	return "bytes " + strconv.FormatInt(s.Start, 10) + "-" + strconv.FormatInt(s.End, 10) + "/" + strconv.FormatInt(total, 10)
}

// UnsatisfiedContentRange is the Content-Range value sent with a 416.
func UnsatisfiedContentRange(total int64) string {
	return "bytes */" + strconv.FormatInt(total, 10)
}

type Kind int

const (
	NoRange Kind = iota
	Ranges
	Unsatisfiable
)

func (k Kind) String() string {
	switch k {
	case Ranges:
		return "ranges"
	case Unsatisfiable:
		return "unsatisfiable"
	default:
		return "none"
	}
}

// Result is the outcome of parsing a Range header. Specs is only set for Ranges
// and keeps the order, duplicates and overlaps of the request.
type Result struct {
	Kind  Kind
	Specs []Spec
}

var unsatisfiable = Result{Kind: Unsatisfiable}

// Parse parses header against a representation of length bytes. Ranges that
// fall outside the representation are rejected, not clamped.
func Parse(header string, length int64) Result {
	header = strings.TrimSpace(header)
	if header == "" {
		return Result{Kind: NoRange}
	}
	if len(header) < len(prefix) || !strings.EqualFold(header[:len(prefix)], prefix) {
		return unsatisfiable
	}

	var specs []Spec
	for _, part := range strings.Split(header[len(prefix):], ",") {
		spec, ok := parseSpec(strings.TrimSpace(part), length)
		if !ok {
			return unsatisfiable
		}
		specs = append(specs, spec)
	}
	return Result{Kind: Ranges, Specs: specs}
}

func parseSpec(s string, length int64) (Spec, bool) {
	first, last, ok := strings.Cut(s, "-")
	if !ok || strings.Contains(last, "-") {
		return Spec{}, false
	}
	first, last = strings.TrimSpace(first), strings.TrimSpace(last)

	var spec Spec
	switch {
	case first == "" && last == "":
		return Spec{}, false
	case first == "":
		n, ok := parseOffset(last)
		if !ok {
			return Spec{}, false
		}
		spec = Spec{Start: length - n, End: length - 1}
	case last == "":
		n, ok := parseOffset(first)
		if !ok {
			return Spec{}, false
		}
		spec = Spec{Start: n, End: length - 1}
	default:
		start, ok := parseOffset(first)
		if !ok {
			return Spec{}, false
		}
		end, ok := parseOffset(last)
		if !ok {
			return Spec{}, false
		}
		spec = Spec{Start: start, End: end}
	}

	if spec.Start < 0 || spec.Start > spec.End || spec.End > length-1 {
		return Spec{}, false
	}
	return spec, true
}

func parseOffset(s string) (int64, bool) {
	if s == "" || s[0] == '+' {
		return 0, false
	}
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil || n < 0 {
		return 0, false
	}
	return n, true
}

// TotalLength sums the bytes covered by specs.
func TotalLength(specs []Spec) int64 {
	var n int64
	for _, s := range specs {
		n += s.Length()
	}
	return n
}
