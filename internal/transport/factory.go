package transport

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/raysh454/asyncreq/internal/logging"
)

// BackendConstructor constructs a Transport given the config and logger.
type BackendConstructor func(cfg Config, logger logging.Logger) (Transport, error)

var (
	mu       sync.RWMutex
	registry = map[string]BackendConstructor{}
)

// RegisterBackend registers a named backend constructor. Name is lower-cased
// internally. Calling RegisterBackend with the same name overwrites the previous
// constructor.
func RegisterBackend(name string, ctor BackendConstructor) {
	if name == "" || ctor == nil {
		return
	}
	mu.Lock()
	defer mu.Unlock()
	registry[strings.ToLower(name)] = ctor
}

// RegisterDefaultBackends registers the nethttp and chromedp backends.
func RegisterDefaultBackends() {
	RegisterBackend(string(BackendNetHTTP), func(cfg Config, logger logging.Logger) (Transport, error) {
		return NewNetHTTPTransport(cfg, logger, nil), nil
	})
	RegisterBackend(string(BackendChromedp), func(cfg Config, logger logging.Logger) (Transport, error) {
		t, err := NewChromedpTransport(cfg, logger)
		if err != nil {
			return nil, fmt.Errorf("create chromedp transport: %w", err)
		}
		return t, nil
	})
}

// NewTransport constructs the configured backend. Every failure wraps
// ErrTransportUnavailable.
func NewTransport(cfg Config, logger logging.Logger) (Transport, error) {
	backend := strings.ToLower(strings.TrimSpace(string(cfg.Backend)))
	if backend == "" {
		backend = string(BackendNetHTTP)
	}

	mu.RLock()
	ctor, ok := registry[backend]
	mu.RUnlock()
	if !ok || ctor == nil {
		return nil, fmt.Errorf("%w: backend %q not registered: available backends=%v",
			ErrTransportUnavailable, backend, ListBackends())
	}

	t, err := ctor(cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("%w: construct backend %q: %w", ErrTransportUnavailable, backend, err)
	}
	if t == nil {
		return nil, fmt.Errorf("%w: %w", ErrTransportUnavailable, errors.New("constructor returned nil"))
	}
	return t, nil
}

// ListBackends returns the registered backend names, sorted.
func ListBackends() []string {
	mu.RLock()
	defer mu.RUnlock()
	out := make([]string, 0, len(registry))
	for k := range registry {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
