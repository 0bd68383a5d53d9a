package wsink

import "sync"

// Hub fans job execution events out to the WebSocket clients watching each
// job topic. Subscriptions are strictly per-topic: a client attaches to
// exactly one job's feed and never sees another job's events, so there is
// no broadcast path and no global client registry to serialize — a plain
// read-write mutex over the topic map is the whole synchronization story.
type Hub struct {
	mu          sync.RWMutex
	subscribers map[string]map[*Client]struct{}
}

// NewHub returns an empty Hub, ready for Publish and client attachment.
func NewHub() *Hub {
	return &Hub{subscribers: make(map[string]map[*Client]struct{})}
}

// attach registers c under its topic. Called from Client.Serve.
func (h *Hub) attach(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	set := h.subscribers[c.topic]
	if set == nil {
		set = make(map[*Client]struct{})
		h.subscribers[c.topic] = set
	}
	set[c] = struct{}{}
}

// detach removes c from its topic, dropping the topic entry once empty.
func (h *Hub) detach(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	set := h.subscribers[c.topic]
	delete(set, c)
	if len(set) == 0 {
		delete(h.subscribers, c.topic)
	}
}

// Publish delivers msg to every client attached to topic. Safe to call from
// any goroutine. A client whose write queue is full is disconnected rather
// than waited on: the engine's consumer goroutines must never block on a
// slow frontend. Disconnection happens outside the lock.
func (h *Hub) Publish(topic string, msg Message) {
	h.mu.RLock()
	var stalled []*Client
	for c := range h.subscribers[topic] {
		if !c.enqueue(msg) {
			stalled = append(stalled, c)
		}
	}
	h.mu.RUnlock()

	for _, c := range stalled {
		c.shutdown()
	}
}

// CloseAll disconnects every attached client. Called on process shutdown;
// each client's Serve then returns and detaches itself.
func (h *Hub) CloseAll() {
	h.mu.RLock()
	var all []*Client
	for _, set := range h.subscribers {
		for c := range set {
			all = append(all, c)
		}
	}
	h.mu.RUnlock()

	for _, c := range all {
		c.shutdown()
	}
}

// ConnectedCount returns the current number of attached WebSocket clients.
func (h *Hub) ConnectedCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	n := 0
	for _, set := range h.subscribers {
		n += len(set)
	}
	return n
}
