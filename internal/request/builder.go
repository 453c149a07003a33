package request

import (
	"strings"
	"time"

	"github.com/raysh454/asyncreq/internal/transport"
)

const (
	// DefaultTimeout applies to every request. Callers cannot override it.
	DefaultTimeout = 30 * time.Second

	DefaultUserAgent   = "asyncreq/1.0"
	DefaultContentType = "application/json"
)

// Builder turns validated specs into transport requests.
type Builder struct {
	UserAgent string
}

// DefaultBuilder returns the builder used by the client.
func DefaultBuilder() *Builder {
	return &Builder{UserAgent: DefaultUserAgent}
}

// Build copies spec into a transport request. Caller headers are applied
// verbatim and in order; defaults are appended only for names the caller did
// not set. spec is not modified.
func (b *Builder) Build(spec Spec) *transport.Request {
	headers := spec.Headers.Clone()

	if spec.Body != "" && !headers.Has("Content-Type") {
		headers = append(headers, transport.Header{Name: "Content-Type", Value: DefaultContentType})
	}
	ua := b.UserAgent
	if ua == "" {
		ua = DefaultUserAgent
	}
	if !headers.Has("User-Agent") {
		headers = append(headers, transport.Header{Name: "User-Agent", Value: ua})
	}

	return &transport.Request{
		URL:     spec.URL,
		Method:  strings.ToUpper(spec.Method),
		Body:    spec.Body,
		Headers: headers,
		Timeout: DefaultTimeout,
	}
}
