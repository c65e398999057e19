// Package tracker implements the content-tracking server: the cooperative
// main loop and the handlers wired around the overlay primitives (packets,
// reassembly, retransmission) and the domain collaborators (routing,
// neighbor table, flood scheduler, content database).
package tracker

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/overlaymesh/trackerd/overlay"
	"github.com/overlaymesh/trackerd/overlay/retransmit"
	"github.com/overlaymesh/trackerd/overlay/reassembly"
	"github.com/overlaymesh/trackerd/tracker/db"
	"github.com/overlaymesh/trackerd/tracker/flood"
	"github.com/overlaymesh/trackerd/tracker/neighbor"
	"github.com/overlaymesh/trackerd/tracker/routing"
)

const defaultLoopSleep = time.Millisecond

// Server owns one node's worth of tracker state: the content database, the
// routing adapter, the neighbor table, outbound history, and the inbound
// reassembly buffers. It runs as a single cooperative task; nothing here is
// safe to call concurrently with Run.
type Server struct {
	id overlay.NodeId
	log *slog.Logger

	controllerRecv <-chan Command
	controllerSend chan<- Event
	packetRecv     <-chan overlay.Packet

	loopSleep time.Duration
	chunkSize int

	db          *db.Database
	routing     *routing.Adapter
	neighbors   *neighbor.Manager
	history     *retransmit.History
	reassembler *reassembly.Reassembler
	scheduler   *flood.Scheduler
	serializer  *overlay.Serializer
	counters    Counters

	terminated bool
}

// New constructs a Server from cfg and an already-opened database. The
// database's lifetime is owned by the caller; Server never closes it.
func New(cfg Config, database *db.Database) (*Server, error) {
	if cfg.ControllerRecv == nil || cfg.ControllerSend == nil || cfg.PacketRecv == nil {
		return nil, fmt.Errorf("tracker: Config missing a required channel")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.WithGroup("tracker").With("node", cfg.ID)

	loopSleep := cfg.LoopSleep
	if loopSleep <= 0 {
		loopSleep = defaultLoopSleep
	}

	s := &Server{
		id:             cfg.ID,
		log:            logger,
		controllerRecv: cfg.ControllerRecv,
		controllerSend: cfg.ControllerSend,
		packetRecv:     cfg.PacketRecv,
		loopSleep:      loopSleep,
		chunkSize:      cfg.ChunkSize,
		db:             database,
		routing:        routing.New(cfg.ID, logger),
		neighbors:      neighbor.New(logger),
		history:        retransmit.New(logger),
		reassembler:    reassembly.New(),
		serializer:     overlay.NewSerializer(),
	}
	s.scheduler = flood.New(flood.Config{Interval: cfg.FloodInterval, Logger: logger}, cfg.Clock)

	for id, ch := range cfg.InitialNeighbors {
		if err := s.neighbors.SetSender(id, ch); err != nil {
			s.log.Error("seeding initial neighbor", "peer", id, "error", err)
		}
	}

	return s, nil
}

// Run drives the cooperative main loop (C9) until a Crash command sets
// terminated. It blocks the calling goroutine.
func (s *Server) Run() {
	s.initFlood()

	for !s.terminated {
		if s.scheduler.Due() {
			s.initFlood()
		}

		idle := true
		select {
		case cmd := <-s.controllerRecv:
			s.handleCommand(cmd)
			idle = false
		default:
		}

		select {
		case p := <-s.packetRecv:
			s.handlePacket(p)
			idle = false
		default:
		}

		if idle {
			time.Sleep(s.loopSleep)
		}
	}
}

// sendPacket is the single outbound path (C2): enqueue to the neighbor, and
// on failure fall back to a controller shortcut for non-fragment control
// packets only. Returns nil whenever the packet was handed off one way or
// the other, so callers can decide whether to record retransmission history.
func (s *Server) sendPacket(nextHop overlay.NodeId, p overlay.Packet) error {
	err := s.neighbors.Send(nextHop, p)
	if err == nil {
		s.counters.PacketsSent.Add(1)
		s.notify(PacketSent{NextHop: nextHop, Packet: p})
		return nil
	}

	if p.Kind == overlay.KindMsgFragment {
		s.log.Warn("fragment enqueue failed, not shortcut", "next_hop", nextHop, "kind", p.Kind, "error", err)
		return err
	}

	s.log.Warn("control packet enqueue failed, falling back to controller shortcut", "next_hop", nextHop, "kind", p.Kind, "error", err)
	s.notify(ControllerShortcut{NextHop: nextHop, Packet: p})
	return nil
}

func (s *Server) notify(ev Event) {
	select {
	case s.controllerSend <- ev:
	default:
		s.log.Warn("controller event channel full, dropping event")
	}
}

// sendMessage disassembles msg into fragments along the best known path to
// dest, sending and recording each one in outbound history.
func (s *Server) sendMessage(dest overlay.NodeId, msg any) error {
	path, ok := s.routing.BestPath(s.id, dest)
	if !ok {
		return fmt.Errorf("no path from %s to %s", s.id, dest)
	}

	header := overlay.RoutingHeader{Hops: path, HopIndex: 1}
	session := s.serializer.NextSessionID()
	packets, err := s.serializer.Disassemble(msg, header, session)
	if err != nil {
		return fmt.Errorf("disassembling message: %w", err)
	}

	for _, p := range packets {
		nextHop, ok := p.RoutingHeader.CurrentHop()
		if !ok {
			s.log.Error("disassembled packet has no next hop", "session", session)
			continue
		}
		if err := s.sendPacket(nextHop, p); err != nil {
			s.log.Warn("sending fragment failed, leaving unrecorded", "session", session, "fragment", p.Fragment.FragmentIndex, "error", err)
			continue
		}
		s.history.Track(p.Fragment.FragmentIndex, session, p)
	}
	return nil
}

func (s *Server) handleCommand(cmd Command) {
	switch c := cmd.(type) {
	case AddSender:
		if err := s.neighbors.SetSender(c.ID, c.Channel); err != nil {
			s.log.Error("AddSender", "peer", c.ID, "error", err)
			return
		}
		s.initFlood()
	case RemoveSender:
		if err := s.neighbors.RemoveSender(c.ID); err != nil {
			s.log.Error("RemoveSender", "peer", c.ID, "error", err)
			return
		}
		s.initFlood()
	case Crash:
		s.terminated = true
	case SetPacketDropRate:
		s.log.Warn("SetPacketDropRate is unhandled by this server", "rate", c.Rate)
	default:
		s.log.Error("unknown command", "command", fmt.Sprintf("%T", cmd))
	}
}

func (s *Server) handlePacket(p overlay.Packet) {
	if p.Kind == overlay.KindFloodRequest {
		s.handleFloodRequest(p)
		return
	}

	s.counters.PacketsRecv.Add(1)

	dest, ok := p.RoutingHeader.Destination()
	if !ok || dest != s.id {
		s.log.Warn("dropping packet not addressed to this node", "kind", p.Kind, "header", p.RoutingHeader)
		return
	}

	switch p.Kind {
	case overlay.KindMsgFragment:
		s.counters.Fragments.Add(1)
		s.handleFragment(p)
	case overlay.KindAck:
		s.counters.Acks.Add(1)
		s.handleAck(p)
	case overlay.KindNack:
		s.counters.Nacks.Add(1)
		s.handleNack(p)
	case overlay.KindFloodResponse:
		s.handleFloodResponse(p)
	default:
		s.log.Error("unknown packet kind", "kind", p.Kind)
	}
}
