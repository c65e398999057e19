// Package retransmit tracks outbound fragments awaiting acknowledgement so
// that a NACK can be answered with a retransmission of the exact packet
// that was dropped. Unlike the reassembler's timer-free design, history
// entries are also resolved explicitly by ACK — there is no background
// timeout loop here: retransmission in this protocol is NACK-driven, not
// timeout-driven.
package retransmit

import (
	"log/slog"
	"sync"

	"github.com/overlaymesh/trackerd/overlay"
)

type key struct {
	fragmentIndex uint64
	session       overlay.SessionID
}

// History records every fragment packet sent, until it is acknowledged or
// explicitly dropped.
type History struct {
	log *slog.Logger
	mu  sync.Mutex
	in  map[key]overlay.Packet
}

// New creates an empty History. A nil logger falls back to slog.Default().
func New(logger *slog.Logger) *History {
	if logger == nil {
		logger = slog.Default()
	}
	return &History{
		log: logger.WithGroup("retransmit"),
		in:  make(map[key]overlay.Packet),
	}
}

// Track records p as sent. Callers must only call this after the
// corresponding enqueue has already succeeded — on enqueue failure the
// packet was never sent, and no history entry should exist for it.
func (h *History) Track(fragmentIndex uint64, session overlay.SessionID, p overlay.Packet) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.in[key{fragmentIndex, session}] = p.Clone()
}

// Resolve removes the history entry for (fragmentIndex, session), as
// happens on a matching ACK. Returns true if an entry was present.
func (h *History) Resolve(fragmentIndex uint64, session overlay.SessionID) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	k := key{fragmentIndex, session}
	if _, ok := h.in[k]; !ok {
		h.log.Debug("ack for unknown fragment", "index", fragmentIndex, "session", session)
		return false
	}
	delete(h.in, k)
	return true
}

// Lookup returns the packet previously sent for (fragmentIndex, session),
// for use when a NACK requires retransmission. Returns false if no entry
// exists — a NACK for an unknown fragment is logged and dropped.
func (h *History) Lookup(fragmentIndex uint64, session overlay.SessionID) (overlay.Packet, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	p, ok := h.in[key{fragmentIndex, session}]
	if !ok {
		h.log.Debug("nack for unknown fragment", "index", fragmentIndex, "session", session)
		return overlay.Packet{}, false
	}
	return p, true
}

// Count returns the number of outstanding (unacknowledged) fragments.
func (h *History) Count() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.in)
}

// Clear drops every history entry, as happens implicitly on process exit.
func (h *History) Clear() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.in = make(map[key]overlay.Packet)
}
