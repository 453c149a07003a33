package transport

import (
	"errors"
	"sort"
	"strings"
	"time"
)

var (
	// ErrTransportUnavailable is returned when no transport backend could be obtained.
	ErrTransportUnavailable = errors.New("http transport not available")

	// ErrClosed is reported by transports that were asked to start after Close.
	ErrClosed = errors.New("transport closed")
)

// Transport executes requests asynchronously.
//
// Start hands req to the backend and returns immediately. If it returns true,
// onComplete is invoked exactly once, from a goroutine owned by the transport.
// If it returns false the request was never accepted and onComplete is never
// invoked.
type Transport interface {
	Start(req *Request, onComplete func(Outcome)) bool

	Close() error
}

// Header is a single request header. Names keep the case they were supplied with.
type Header struct {
	Name  string
	Value string
}

// Headers is an ordered header list.
type Headers []Header

// Get returns the value of the first header whose name matches exactly.
func (h Headers) Get(name string) (string, bool) {
	for _, hd := range h {
		if hd.Name == name {
			return hd.Value, true
		}
	}
	return "", false
}

// Has reports whether a header with the given name is present, ignoring case.
func (h Headers) Has(name string) bool {
	for _, hd := range h {
		if strings.EqualFold(hd.Name, name) {
			return true
		}
	}
	return false
}

// Set replaces the first header with an exactly matching name, or appends one.
func (h Headers) Set(name, value string) Headers {
	for i := range h {
		if h[i].Name == name {
			h[i].Value = value
			return h
		}
	}
	return append(h, Header{Name: name, Value: value})
}

// Clone returns a copy that shares nothing with h.
func (h Headers) Clone() Headers {
	if h == nil {
		return nil
	}
	return append(Headers(nil), h...)
}

// HeadersFromMap builds an ordered list from a map, sorted by name.
func HeadersFromMap(m map[string]string) Headers {
	if len(m) == 0 {
		return nil
	}
	names := make([]string, 0, len(m))
	for k := range m {
		names = append(names, k)
	}
	sort.Strings(names)
	out := make(Headers, 0, len(names))
	for _, k := range names {
		out = append(out, Header{Name: k, Value: m[k]})
	}
	return out
}

// Request is a transport-ready request produced by the request builder.
type Request struct {
	ID      string
	URL     string
	Method  string
	Body    string
	Headers Headers
	Timeout time.Duration
}

// Outcome is the raw result a transport reports on completion.
// Nothing in it has been validated.
type Outcome struct {
	Succeeded      bool
	StatusCode     int
	HeaderLines    []string
	Body           string
	ElapsedSeconds float64
	RequestURL     string

	// Err is the transport-level failure, if any. Informational only.
	Err error
}

// HeaderLines renders headers as "Name: value" lines, one per value, in
// sorted name order.
func HeaderLines(h map[string][]string) []string {
	names := make([]string, 0, len(h))
	for k := range h {
		names = append(names, k)
	}
	sort.Strings(names)
	lines := make([]string, 0, len(names))
	for _, k := range names {
		for _, v := range h[k] {
			lines = append(lines, k+": "+v)
		}
	}
	return lines
}
