package server

import (
	"strings"
	"sync"

	"github.com/raysh454/asyncreq/internal/request"
	"github.com/raysh454/asyncreq/internal/response"
)

// hub fans finished requests out to websocket subscribers.
type hub struct {
	mu   sync.Mutex
	subs map[chan ResultEvent]struct{}
}

func newHub() *hub {
	return &hub{subs: make(map[chan ResultEvent]struct{})}
}

func (h *hub) subscribe() chan ResultEvent {
	ch := make(chan ResultEvent, 16)
	h.mu.Lock()
	h.subs[ch] = struct{}{}
	h.mu.Unlock()
	return ch
}

func (h *hub) unsubscribe(ch chan ResultEvent) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.subs[ch]; ok {
		delete(h.subs, ch)
		close(ch)
	}
}

// Observe implements client.Observer. Slow subscribers miss events rather
// than stall the execution loop.
func (h *hub) Observe(id string, spec request.Spec, r response.Result) {
	ev := ResultEvent{ID: id, Method: strings.ToUpper(spec.Method), Result: r}
	h.mu.Lock()
	defer h.mu.Unlock()
	for ch := range h.subs {
		select {
		case ch <- ev:
		default:
		}
	}
}

func (h *hub) closeAll() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for ch := range h.subs {
		delete(h.subs, ch)
		close(ch)
	}
}
