package tracker

import (
	"log/slog"
	"time"

	"github.com/overlaymesh/trackerd/overlay"
	"github.com/overlaymesh/trackerd/overlay/clock"
)

// Config wires together everything one server instance needs. Channels are
// provided by the controller (or cmd/tracker-node's wiring) rather than
// created internally, so tests can drive a server with in-process channels.
type Config struct {
	ID overlay.NodeId

	// ControllerRecv delivers Commands from the controller; ControllerSend
	// carries Events back to it.
	ControllerRecv <-chan Command
	ControllerSend chan<- Event

	// PacketRecv delivers packets addressed to this node from any neighbor.
	PacketRecv <-chan overlay.Packet

	// InitialNeighbors seeds the neighbor table before the first flood,
	// keyed by neighbor id.
	InitialNeighbors map[overlay.NodeId]chan overlay.Packet

	// FloodInterval overrides tracker/flood's default 60s period; zero keeps
	// the default.
	FloodInterval time.Duration

	// Clock overrides the flood scheduler's time source; nil uses the
	// system clock.
	Clock *clock.Clock

	// LoopSleep is the brief pause C9 takes when neither a command nor a
	// packet was ready, to avoid a busy spin. Defaults to 1ms.
	LoopSleep time.Duration

	// ChunkSize overrides tracker/chunks.DefaultChunkSize for video
	// streaming; zero keeps the default.
	ChunkSize int

	// DBRoot is the root directory under which this server's bbolt file is
	// created, at DBRoot/server-{ID}/tracker.db.
	DBRoot string

	Logger *slog.Logger
}
