package httpapi

import (
	"sync"

	"github.com/novacare/nova/internal/protocol"
)

// MonitorHub fans call lifecycle events out to connected dashboard sockets.
// Publish never blocks the turn path; a slow subscriber loses events rather
// than stalling calls.
type MonitorHub struct {
	mu   sync.RWMutex
	subs map[chan protocol.MonitorEvent]struct{}
}

func NewMonitorHub() *MonitorHub {
	return &MonitorHub{subs: make(map[chan protocol.MonitorEvent]struct{})}
}

func (h *MonitorHub) Publish(evt protocol.MonitorEvent) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for ch := range h.subs {
		select {
		case ch <- evt:
		default:
		}
	}
}

func (h *MonitorHub) Subscribe() chan protocol.MonitorEvent {
	ch := make(chan protocol.MonitorEvent, 64)
	h.mu.Lock()
	h.subs[ch] = struct{}{}
	h.mu.Unlock()
	return ch
}

func (h *MonitorHub) Unsubscribe(ch chan protocol.MonitorEvent) {
	h.mu.Lock()
	if _, ok := h.subs[ch]; ok {
		delete(h.subs, ch)
		close(ch)
	}
	h.mu.Unlock()
}

func (h *MonitorHub) SubscriberCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs)
}
