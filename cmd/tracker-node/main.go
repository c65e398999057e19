// Command tracker-node runs a single content-tracking server: it opens (or
// creates) the node's embedded database, optionally seeds it from a JSON
// manifest, wires up a neighbor transport, and runs the cooperative main
// loop until interrupted.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/overlaymesh/trackerd/overlay"
	"github.com/overlaymesh/trackerd/tracker"
	"github.com/overlaymesh/trackerd/tracker/db"
	"github.com/overlaymesh/trackerd/tracker/seed"
	"github.com/overlaymesh/trackerd/transport"
	"github.com/overlaymesh/trackerd/transport/mqtt"
)

func main() {
	cfg, err := parseFlags(os.Args[1:])
	if err != nil {
		os.Exit(2)
	}

	log := newLogger(cfg.logLevel)
	nodeID := overlay.NodeId(cfg.nodeID)

	database, err := db.Open(cfg.dbRoot, uint8(cfg.nodeID), log)
	if err != nil {
		log.Error("opening database", "error", err)
		os.Exit(1)
	}
	defer database.Close()

	if cfg.manifestPath != "" {
		manifest, err := seed.LoadManifest(cfg.manifestPath)
		if err != nil {
			log.Error("loading seed manifest", "error", err)
			os.Exit(1)
		}
		if err := seed.Seed(database, nodeID, cfg.contentPath, manifest, log); err != nil {
			log.Error("seeding database", "error", err)
			os.Exit(1)
		}
	}

	cmdCh := make(chan tracker.Command, 16)
	evtCh := make(chan tracker.Event, 16)
	pktCh := make(chan overlay.Packet, 256)

	initialNeighbors := make(map[overlay.NodeId]chan overlay.Packet)

	var tr transport.Transport
	var peerID overlay.NodeId
	var neighborSend chan overlay.Packet
	if cfg.transportKind == "mqtt" {
		peerID = overlay.NodeId(cfg.peerID)
		neighborSend = make(chan overlay.Packet, 64)
		initialNeighbors[peerID] = neighborSend
		tr = mqtt.New(mqtt.Config{
			Broker:      cfg.mqttBroker,
			MeshID:      cfg.mqttMeshID,
			Logger:      log,
			TopicPrefix: mqtt.DefaultTopicPrefix,
		})
		tr.SetPacketHandler(func(p overlay.Packet, _ transport.PacketSource) {
			select {
			case pktCh <- p:
			default:
				log.Warn("inbound packet queue full, dropping packet")
			}
		})
	}

	srv, err := tracker.New(tracker.Config{
		ID:               nodeID,
		ControllerRecv:   cmdCh,
		ControllerSend:   evtCh,
		PacketRecv:       pktCh,
		InitialNeighbors: initialNeighbors,
		FloodInterval:    cfg.floodInterval,
		ChunkSize:        0,
		DBRoot:           cfg.dbRoot,
		Logger:           log,
	}, database)
	if err != nil {
		log.Error("constructing server", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if tr != nil {
		if err := tr.Start(ctx); err != nil {
			log.Error("starting transport", "error", err)
			os.Exit(1)
		}
		defer tr.Stop()
		go pumpNeighborSend(ctx, neighborSend, tr, log)
	}

	go logEvents(ctx, evtCh, log)

	go srv.Run()
	log.Info("tracker-node started", "id", nodeID, "transport", cfg.transportKind)

	<-ctx.Done()
	log.Info("shutdown signal received")
	cmdCh <- tracker.Crash{}
	time.Sleep(50 * time.Millisecond)
}

// pumpNeighborSend drains a neighbor's outbound channel onto the transport
// until ctx is canceled.
func pumpNeighborSend(ctx context.Context, ch <-chan overlay.Packet, tr transport.Transport, log *slog.Logger) {
	for {
		select {
		case <-ctx.Done():
			return
		case p := <-ch:
			if err := tr.SendPacket(p); err != nil {
				log.Warn("sending packet over transport", "error", err)
			}
		}
	}
}

func logEvents(ctx context.Context, evtCh <-chan tracker.Event, log *slog.Logger) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev := <-evtCh:
			switch e := ev.(type) {
			case tracker.ControllerShortcut:
				log.Warn("controller shortcut", "next_hop", e.NextHop, "kind", e.Packet.Kind)
			case tracker.PacketSent:
				log.Debug("packet sent", "next_hop", e.NextHop, "kind", e.Packet.Kind)
			default:
				log.Debug("event", "event", fmt.Sprintf("%T", ev))
			}
		}
	}
}

func newLogger(level string) *slog.Logger {
	var lvl slog.Level
	switch level {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl}))
}
