// Package channel implements transport.Transport over a pair of in-process
// Go channels: the common case for this module, where every "transport" is
// actually a direct neighbor link inside one simulation process rather than
// a real network carrying bytes.
package channel

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/overlaymesh/trackerd/overlay"
	"github.com/overlaymesh/trackerd/transport"
)

// Compile-time interface check.
var _ transport.Transport = (*Transport)(nil)

// DefaultBufferSize is a channel capacity for Send and Recv. Config has no
// buffer-size field and New creates no channels, so nothing in this package
// reads it: the caller creates both channels.
const DefaultBufferSize = 256

// Config configures a channel Transport.
type Config struct {
	// Send is the channel this transport publishes outbound packets to. It
	// is bidirectional so SendPacket can drop the oldest queued packet when
	// the channel is full.
	Send chan overlay.Packet
	// Recv is the channel this transport reads inbound packets from.
	Recv <-chan overlay.Packet
	// Logger falls back to slog.Default() if nil.
	Logger *slog.Logger
}

// Transport implements transport.Transport by writing to Send and reading
// from Recv. Unlike a real link it cannot disconnect on its own; IsConnected
// reflects only whether Start has run and Stop has not.
type Transport struct {
	cfg Config
	log *slog.Logger

	mu            sync.RWMutex
	connected     bool
	cancel        context.CancelFunc
	packetHandler transport.PacketHandler
	stateHandler  transport.StateHandler
}

// New creates a channel Transport. Send and Recv must both be set.
func New(cfg Config) *Transport {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Transport{cfg: cfg, log: cfg.Logger.WithGroup("channel")}
}

// Start begins draining Recv into the packet handler until ctx is canceled
// or Stop is called.
func (t *Transport) Start(ctx context.Context) error {
	if t.cfg.Send == nil || t.cfg.Recv == nil {
		return errors.New("channel transport: Send and Recv are both required")
	}

	runCtx, cancel := context.WithCancel(ctx)
	t.mu.Lock()
	t.cancel = cancel
	t.connected = true
	handler := t.stateHandler
	t.mu.Unlock()

	if handler != nil {
		handler(t, transport.EventConnected)
	}

	go t.run(runCtx)
	return nil
}

func (t *Transport) run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case p, ok := <-t.cfg.Recv:
			if !ok {
				t.mu.Lock()
				t.connected = false
				handler := t.stateHandler
				t.mu.Unlock()
				if handler != nil {
					handler(t, transport.EventDisconnected)
				}
				return
			}
			t.mu.RLock()
			handler := t.packetHandler
			t.mu.RUnlock()
			if handler != nil {
				handler(p, transport.PacketSourceChannel)
			}
		}
	}
}

// Stop cancels the drain goroutine started by Start.
func (t *Transport) Stop() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.cancel != nil {
		t.cancel()
	}
	t.connected = false
	return nil
}

// IsConnected reports whether Start has run and Stop has not.
func (t *Transport) IsConnected() bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.connected
}

// SetPacketHandler sets the callback for packets read from Recv.
func (t *Transport) SetPacketHandler(fn transport.PacketHandler) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.packetHandler = fn
}

// SetStateHandler sets the callback for connect/disconnect transitions.
func (t *Transport) SetStateHandler(fn transport.StateHandler) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.stateHandler = fn
}

// SendPacket writes packet to Send, falling back to dropping the oldest
// queued packet and retrying once if Send is full — preferable to blocking
// the caller's event loop on a momentarily saturated neighbor link.
func (t *Transport) SendPacket(packet overlay.Packet) error {
	if !t.IsConnected() {
		return errors.New("channel transport: not started")
	}

	select {
	case t.cfg.Send <- packet:
		return nil
	default:
	}

	select {
	case <-t.cfg.Send:
		t.log.Warn("send buffer full, dropped oldest queued packet")
	default:
	}

	select {
	case t.cfg.Send <- packet:
		return nil
	default:
		return errors.New("channel transport: send buffer full")
	}
}
