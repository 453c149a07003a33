package cli

import (
	"flag"
	"fmt"
	"io"
	"strings"

	"github.com/raysh454/asyncreq/internal/transport"
)

// CLIArgs are the command-line arguments for a single request or server run.
type CLIArgs struct {
	// URL is the request target. Required unless Serve is set.
	URL string

	// Method is passed through as given; validation happens in the pipeline.
	Method string

	Body        string
	ContentType string

	// Headers are the -H values in the order they were given.
	Headers transport.Headers

	// Backend overrides the configured transport backend when non-empty.
	Backend string

	// Concurrency overrides the transport's worker limit; 0 means "use config default".
	Concurrency int

	// Serve runs the API server instead of a single request.
	Serve  bool
	Listen string

	// HistoryPath is the SQLite journal location; empty disables history.
	HistoryPath string

	LogLevel string

	// RawArgs is the original args slice (useful for debugging/tests).
	RawArgs []string
}

// headerFlag collects repeated -H "Name: value" flags.
type headerFlag struct {
	headers *transport.Headers
}

func (h headerFlag) String() string {
	if h.headers == nil {
		return ""
	}
	parts := make([]string, 0, len(*h.headers))
	for _, hd := range *h.headers {
		parts = append(parts, hd.Name+": "+hd.Value)
	}
	return strings.Join(parts, ", ")
}

func (h headerFlag) Set(v string) error {
	name, value, ok := strings.Cut(v, ":")
	name = strings.TrimSpace(name)
	if !ok || name == "" {
		return fmt.Errorf("header %q must look like \"Name: value\"", v)
	}
	*h.headers = append(*h.headers, transport.Header{Name: name, Value: strings.TrimSpace(value)})
	return nil
}

// ParseArgs parses a slice of args and returns CLIArgs. Use in tests by passing
// arbitrary slices. The function is deterministic and does not read os.Args.
func ParseArgs(args []string) (*CLIArgs, error) {
	fs := flag.NewFlagSet("asyncreq", flag.ContinueOnError)
	out := &CLIArgs{RawArgs: args}

	fs.StringVar(&out.URL, "url", "", "Request URL (required unless -serve)")
	fs.StringVar(&out.Method, "method", "GET", "HTTP method")
	fs.StringVar(&out.Body, "body", "", "Request body")
	fs.StringVar(&out.ContentType, "content-type", "", "Content-Type for the body (default application/json)")
	fs.Var(headerFlag{headers: &out.Headers}, "H", "Request header \"Name: value\" (repeatable)")
	fs.StringVar(&out.Backend, "backend", "", "Transport backend: nethttp|chromedp")
	fs.IntVar(&out.Concurrency, "concurrency", 0, "Transport concurrency (0=use default)")
	fs.BoolVar(&out.Serve, "serve", false, "Run the API server")
	fs.StringVar(&out.Listen, "listen", "", "API listen address (default from config)")
	fs.StringVar(&out.HistoryPath, "history", "", "SQLite history database path (empty disables history)")
	fs.StringVar(&out.LogLevel, "log-level", "info", "Log level: debug|info|warn|error")

	fs.SetOutput(io.Discard)

	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	if !out.Serve && strings.TrimSpace(out.URL) == "" {
		return nil, fmt.Errorf("missing required -url argument")
	}
	if out.Concurrency < 0 {
		return nil, fmt.Errorf("-concurrency must not be negative")
	}
	if out.ContentType != "" {
		out.Headers = setContentType(out.Headers, out.ContentType)
	}

	return out, nil
}

// setContentType adds ct unless a -H already supplied a content type.
func setContentType(h transport.Headers, ct string) transport.Headers {
	if h.Has("Content-Type") {
		return h
	}
	return append(h, transport.Header{Name: "Content-Type", Value: ct})
}
