package request

import (
	"fmt"
	"strings"
)

// ValidationKind identifies which rule a Spec broke.
type ValidationKind string

const (
	EmptyURL             ValidationKind = "empty_url"
	InvalidURLScheme     ValidationKind = "invalid_url_scheme"
	InvalidURLEmpty      ValidationKind = "invalid_url_empty"
	InvalidURLCharacters ValidationKind = "invalid_url_characters"
	InvalidMethodEmpty   ValidationKind = "invalid_method_empty"
	UnsupportedMethod    ValidationKind = "unsupported_method"
)

// ValidationError is returned by Validate. Message is meant for end users.
type ValidationError struct {
	Kind    ValidationKind
	Message string
}

func (e *ValidationError) Error() string { return e.Message }

// msgInvalidURLFormat is reported for every URL shape failure; Kind tells
// them apart.
const msgInvalidURLFormat = "Invalid URL format. URL must start with http:// or https://"

const (
	schemeHTTP  = "http://"
	schemeHTTPS = "https://"
)

// Validate checks spec without touching the network. Rules are applied in
// order and the first failure is returned as a *ValidationError.
func Validate(spec Spec) error {
	if err := validateURL(spec.URL); err != nil {
		return err
	}

	if spec.Method == "" {
		return &ValidationError{Kind: InvalidMethodEmpty, Message: "HTTP method cannot be empty"}
	}
	if _, ok := ParseMethod(spec.Method); !ok {
		return &ValidationError{
			Kind:    UnsupportedMethod,
			Message: fmt.Sprintf("Unsupported HTTP method: %s", spec.Method),
		}
	}
	return nil
}

func validateURL(url string) *ValidationError {
	if url == "" {
		return &ValidationError{Kind: EmptyURL, Message: "URL cannot be empty"}
	}

	rest, ok := stripScheme(url)
	if !ok {
		return &ValidationError{
			Kind:    InvalidURLScheme,
			Message: msgInvalidURLFormat,
		}
	}
	if rest == "" {
		return &ValidationError{
			Kind:    InvalidURLEmpty,
			Message: msgInvalidURLFormat,
		}
	}
	if strings.ContainsAny(rest, " <>") {
		return &ValidationError{
			Kind:    InvalidURLCharacters,
			Message: msgInvalidURLFormat,
		}
	}
	return nil
}

// stripScheme removes a leading http:// or https://. ok is false when neither
// prefix is present.
func stripScheme(url string) (rest string, ok bool) {
	switch {
	case strings.HasPrefix(url, schemeHTTPS):
		return url[len(schemeHTTPS):], true
	case strings.HasPrefix(url, schemeHTTP):
		return url[len(schemeHTTP):], true
	default:
		return url, false
	}
}

// IsValidURL reports whether url passes the URL rules of Validate.
func IsValidURL(url string) bool {
	return validateURL(url) == nil
}

// ExtractDomain returns the part of url between the scheme and the first
// '/' or '?'. URLs without a known scheme are cut the same way.
//
// Examples:
//
//	ExtractDomain("https://api.example.com/v1/data?x=1") → "api.example.com"
//	ExtractDomain("http://x.com")                        → "x.com"
func ExtractDomain(url string) string {
	rest, _ := stripScheme(url)
	if i := strings.IndexAny(rest, "/?"); i >= 0 {
		return rest[:i]
	}
	return rest
}
