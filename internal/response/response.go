package response

import (
	"fmt"
	"strings"

	"github.com/raysh454/asyncreq/internal/transport"
)

// ErrorKind classifies why a request did not succeed.
type ErrorKind string

const (
	KindNone                 ErrorKind = ""
	KindValidation           ErrorKind = "validation"
	KindTransportUnavailable ErrorKind = "transport_unavailable"
	KindTransportStart       ErrorKind = "transport_start"
	KindNetwork              ErrorKind = "network"
	KindHTTP                 ErrorKind = "http"
)

// Result is the normalized outcome of one request.
// Success holds exactly when the transport succeeded and StatusCode is 2xx;
// ErrorMessage is empty exactly when Success is true.
type Result struct {
	Success        bool              `json:"success"`
	StatusCode     int               `json:"status_code"`
	Body           string            `json:"body"`
	Headers        map[string]string `json:"headers,omitempty"`
	ErrorMessage   string            `json:"error_message,omitempty"`
	ElapsedSeconds float64           `json:"elapsed_seconds"`
	Kind           ErrorKind         `json:"kind,omitempty"`
	URL            string            `json:"url,omitempty"`
}

// Normalize converts a raw transport outcome into a Result.
func Normalize(o transport.Outcome) Result {
	if !o.Succeeded {
		return Result{
			Success:        false,
			StatusCode:     0,
			ErrorMessage:   fmt.Sprintf("Network error: Request failed to complete (URL: %s)", o.RequestURL),
			ElapsedSeconds: o.ElapsedSeconds,
			Kind:           KindNetwork,
			URL:            o.RequestURL,
		}
	}

	r := Result{
		Success:        IsSuccessStatus(o.StatusCode),
		StatusCode:     o.StatusCode,
		Body:           o.Body,
		Headers:        ParseHeaderLines(o.HeaderLines),
		ElapsedSeconds: o.ElapsedSeconds,
		URL:            o.RequestURL,
	}
	if !r.Success {
		r.Kind = KindHTTP
		r.ErrorMessage = fmt.Sprintf("HTTP Error %d: %s", o.StatusCode, DescribeStatus(o.StatusCode))
	}
	return r
}

// ParseHeaderLines splits each line on the first ": ". Lines without the
// separator are dropped and the first occurrence of a name wins.
func ParseHeaderLines(lines []string) map[string]string {
	headers := make(map[string]string, len(lines))
	for _, line := range lines {
		name, value, ok := strings.Cut(line, ": ")
		if !ok {
			continue
		}
		if _, seen := headers[name]; seen {
			continue
		}
		headers[name] = value
	}
	return headers
}

// Failure synthesizes a Result for requests that never produced a transport
// outcome. StatusCode is always 0.
func Failure(kind ErrorKind, message, url string) Result {
	return Result{
		Success:      false,
		StatusCode:   0,
		ErrorMessage: message,
		Kind:         kind,
		URL:          url,
	}
}
