package conditional

import "net/http"

// Disposition is the outcome of validating a request against an entity.
type Disposition int

const (
	Ok Disposition = iota
	NotModified
	PreconditionFailed
	PartialContent
	RangeNotSatisfiable
	MethodNotAllowed
	Forbidden
	NotFound
	TooLarge
)

var statuses = map[Disposition]int{
	Ok:                  http.StatusOK,
	NotModified:         http.StatusNotModified,
	PreconditionFailed:  http.StatusPreconditionFailed,
	PartialContent:      http.StatusPartialContent,
	RangeNotSatisfiable: http.StatusRequestedRangeNotSatisfiable,
	MethodNotAllowed:    http.StatusMethodNotAllowed,
	Forbidden:           http.StatusForbidden,
	NotFound:            http.StatusNotFound,
	TooLarge:            http.StatusRequestEntityTooLarge,
}

// Status returns the HTTP status code for d.
func (d Disposition) Status() int {
	if s, ok := statuses[d]; ok {
		return s
	}
	return http.StatusInternalServerError
}

func (d Disposition) String() string {
	return http.StatusText(d.Status())
}

// HasBody reports whether the response carries the entity.
func (d Disposition) HasBody() bool {
	return d == Ok || d == PartialContent
}

func (d Disposition) successful() bool {
	return d == Ok || d == PartialContent
}
