// Package neighbor tracks this server's directly-connected links: a
// NodeId-keyed table of outbound channels, mutated only by controller
// commands (AddSender / RemoveSender).
package neighbor

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/overlaymesh/trackerd/overlay"
)

// ErrUnknownNeighbor is returned by Send when there is no channel registered
// for the requested next hop.
var ErrUnknownNeighbor = errors.New("neighbor: unknown next hop")

// ErrQueueFull is returned by Send when the neighbor's channel has no spare
// capacity — the neighbor is known, but momentarily cannot accept traffic.
var ErrQueueFull = errors.New("neighbor: send queue full")

// DefaultQueueCapacity is the channel capacity used by AddSender when the
// caller does not need a specific buffer size.
const DefaultQueueCapacity = 64

// Manager owns the neighbor map: NodeId -> send channel. It is the only
// thing allowed to mutate that map, mirroring the invariant that
// session-scoped neighbor state changes only on controller command.
type Manager struct {
	log       *slog.Logger
	mu        sync.RWMutex
	neighbors map[overlay.NodeId]chan overlay.Packet
}

// New creates an empty Manager. A nil logger falls back to slog.Default().
func New(logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{
		log:       logger.WithGroup("neighbor"),
		neighbors: make(map[overlay.NodeId]chan overlay.Packet),
	}
}

// AddSender registers (or replaces) the outbound channel for a neighbor,
// allocated with DefaultQueueCapacity, and returns the channel so the
// caller can drive its read side.
func (m *Manager) AddSender(id overlay.NodeId) chan overlay.Packet {
	m.mu.Lock()
	defer m.mu.Unlock()
	ch := make(chan overlay.Packet, DefaultQueueCapacity)
	m.neighbors[id] = ch
	return ch
}

// ErrAlreadyNeighbor is returned by SetSender when id is already registered.
var ErrAlreadyNeighbor = errors.New("neighbor: already registered")

// ErrNotNeighbor is returned by RemoveSender when id has no registered
// channel (the controller asked to remove a sender it never added).
var ErrNotNeighbor = errors.New("neighbor: not registered")

// SetSender registers an externally-provided channel for id, as when the
// controller's AddSender command hands over a transport-owned channel
// rather than asking the manager to allocate one. Returns ErrAlreadyNeighbor
// if id is already registered.
func (m *Manager) SetSender(id overlay.NodeId, ch chan overlay.Packet) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.neighbors[id]; ok {
		return fmt.Errorf("%w: %s", ErrAlreadyNeighbor, id)
	}
	m.neighbors[id] = ch
	return nil
}

// RemoveSender drops a neighbor. Any packets still queued on its channel
// are abandoned. Returns ErrNotNeighbor if id was not registered.
func (m *Manager) RemoveSender(id overlay.NodeId) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.neighbors[id]; !ok {
		return fmt.Errorf("%w: %s", ErrNotNeighbor, id)
	}
	delete(m.neighbors, id)
	return nil
}

// Neighbors returns the set of currently known next hops.
func (m *Manager) Neighbors() []overlay.NodeId {
	m.mu.RLock()
	defer m.mu.RUnlock()
	ids := make([]overlay.NodeId, 0, len(m.neighbors))
	for id := range m.neighbors {
		ids = append(ids, id)
	}
	return ids
}

// Count returns the number of known neighbors.
func (m *Manager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.neighbors)
}

// Send enqueues a value copy of p onto nextHop's channel. It never blocks:
// an unregistered neighbor or a full channel both return an error, leaving
// it to the caller to decide on a controller-shortcut fallback.
func (m *Manager) Send(nextHop overlay.NodeId, p overlay.Packet) error {
	m.mu.RLock()
	ch, ok := m.neighbors[nextHop]
	m.mu.RUnlock()
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownNeighbor, nextHop)
	}

	select {
	case ch <- p.Clone():
		return nil
	default:
		return fmt.Errorf("%w: %s", ErrQueueFull, nextHop)
	}
}
