package request

import (
	"strings"

	"github.com/raysh454/asyncreq/internal/transport"
)

// Method is an HTTP verb accepted by the client.
type Method string

const (
	MethodGet     Method = "GET"
	MethodPost    Method = "POST"
	MethodPut     Method = "PUT"
	MethodDelete  Method = "DELETE"
	MethodPatch   Method = "PATCH"
	MethodHead    Method = "HEAD"
	MethodOptions Method = "OPTIONS"
)

var supportedMethods = []Method{
	MethodGet, MethodPost, MethodPut, MethodDelete, MethodPatch, MethodHead, MethodOptions,
}

// SupportedMethods returns the accepted verbs in a fixed order.
func SupportedMethods() []Method {
	return append([]Method(nil), supportedMethods...)
}

// ParseMethod upper-cases s and reports whether it is a supported verb.
func ParseMethod(s string) (Method, bool) {
	m := Method(strings.ToUpper(s))
	for _, sm := range supportedMethods {
		if sm == m {
			return m, true
		}
	}
	return m, false
}

// Spec describes a request as the caller supplied it.
// Method is kept as a plain string so that unsupported verbs can be reported.
type Spec struct {
	URL     string
	Method  string
	Body    string
	Headers transport.Headers
}
