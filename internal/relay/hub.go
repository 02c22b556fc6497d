package relay

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

const publishTimeout = 2 * time.Second

// Hub is the Connection Set plus fan-out.
type Hub struct {
	peers     map[string]Peer // every open connection, key: peer ID
	mu        sync.RWMutex    // guards peers; held only to add, remove or enumerate
	logger    *slog.Logger    // structured logger for client and broadcast events
	publisher Publisher       // forwards local frames to other instances, nil when clustering is off
}

// NewHub creates an empty hub.
func NewHub() *Hub {
	return &Hub{
		peers:  make(map[string]Peer),
		logger: slog.Default(),
	}
}

// SetLogger replaces the hub logger.
func (h *Hub) SetLogger(logger *slog.Logger) {
	h.logger = logger
}

// SetPublisher installs the cross-instance publisher. Call before serving.
func (h *Hub) SetPublisher(p Publisher) {
	h.publisher = p
}

// Add registers a peer.
func (h *Hub) Add(p Peer) {
	h.mu.Lock()
	h.peers[p.ID()] = p
	count := len(h.peers)
	h.mu.Unlock()

	h.logger.Info("client_added",
		"client_id", p.ID(),
		"connections", count,
	)
}

// Remove unregisters a peer. It reports whether the peer was a member, so
// calling it twice is harmless.
func (h *Hub) Remove(p Peer) bool {
	h.mu.Lock()
	current, ok := h.peers[p.ID()]
	if ok && current == p { // only remove this exact peer, not one that reused the ID
		delete(h.peers, p.ID())
	}
	count := len(h.peers)
	h.mu.Unlock()

	if !ok || current != p {
		return false
	}
	h.logger.Info("client_removed",
		"client_id", p.ID(),
		"connections", count,
	)
	return true
}

// Count returns the number of open peers.
func (h *Hub) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.peers)
}

// Broadcast forwards f to every peer except from and returns how many peers
// accepted it. Peer failures are logged and skipped. When a publisher is
// installed the frame is also published for other instances.
func (h *Hub) Broadcast(from Peer, f Frame) int {
	fromID := ""
	if from != nil {
		fromID = from.ID()
	}
	delivered := h.fanOut(fromID, f)

	h.logger.Debug("message_relayed",
		"client_id", fromID,
		"size", len(f.Data),
		"delivered", delivered,
	)

	if h.publisher != nil {
		ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
		defer cancel()
		if err := h.publisher.Publish(ctx, f); err != nil {
			h.logger.Warn("failed_to_publish_broadcast",
				"client_id", fromID,
				"error", err.Error(),
			)
		}
	}
	return delivered
}

// Deliver forwards a frame that originated on another instance to every local
// peer. It is never published again.
func (h *Hub) Deliver(f Frame) int {
	return h.fanOut("", f)
}

// Sends are non-blocking, so enumerating under the read lock is short and a
// peer removed with Remove can never be handed a frame afterwards.
func (h *Hub) fanOut(excludeID string, f Frame) int {
	h.mu.RLock()
	defer h.mu.RUnlock()

	delivered := 0
	for id, p := range h.peers {
		if id == excludeID {
			continue
		}
		if err := p.Send(f); err != nil {
			h.logger.Warn("failed_to_send_broadcast",
				"client_id", id,
				"error", err.Error(),
			)
			continue
		}
		delivered++
	}
	return delivered
}

// CloseAll closes every peer and empties the set.
func (h *Hub) CloseAll() {
	h.mu.Lock()
	peers := h.peers
	h.peers = make(map[string]Peer)
	h.mu.Unlock()

	for id, p := range peers {
		if err := p.Close(); err != nil {
			h.logger.Debug("client_close_error",
				"client_id", id,
				"error", err.Error(),
			)
		}
		h.logger.Info("client_connection_closed",
			"client_id", id,
		)
	}
}
