package transport

import "time"

type Backend string

const (
	BackendNetHTTP  Backend = "nethttp"
	BackendChromedp Backend = "chromedp"
)

// Config selects and tunes a transport backend.
type Config struct {
	Backend Backend

	// MaxConcurrency bounds the number of requests in flight. 0 means 8.
	MaxConcurrency int

	// IdleAfter is how long the chromedp backend waits for network silence
	// before capturing the page.
	IdleAfter time.Duration

	// Headless toggles the chromedp browser window.
	Headless bool
}

// DefaultConfig returns a Config using the net/http backend.
func DefaultConfig() Config {
	return Config{
		Backend:        BackendNetHTTP,
		MaxConcurrency: 8,
		IdleAfter:      2 * time.Second,
		Headless:       true,
	}
}
