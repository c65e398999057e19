package main

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"time"
)

// cliConfig holds flag values prior to translation into tracker.Config and
// the transport wiring, so main can validate before anything is opened.
type cliConfig struct {
	nodeID        uint
	dbRoot        string
	manifestPath  string
	contentPath   string
	floodInterval time.Duration
	logLevel      string

	transportKind string
	mqttBroker    string
	mqttMeshID    string
	peerID        uint
}

func parseFlags(args []string) (*cliConfig, error) {
	fs := flag.NewFlagSet("tracker-node", flag.ContinueOnError)
	fs.SetOutput(os.Stdout)

	cfg := &cliConfig{}
	fs.UintVar(&cfg.nodeID, "id", 0, "this node's overlay id (1-254)")
	fs.StringVar(&cfg.dbRoot, "db-root", "data", "root directory for this node's content database")
	fs.StringVar(&cfg.manifestPath, "manifest", "", "path to a JSON seed manifest to load at startup (optional)")
	fs.StringVar(&cfg.contentPath, "content", "content", "root directory holding the seed manifest's payload files")
	fs.DurationVar(&cfg.floodInterval, "flood-interval", 0, "topology flood period (default: tracker/flood's own default)")
	fs.StringVar(&cfg.logLevel, "log-level", "info", "log level: debug|info|warn|error")

	fs.StringVar(&cfg.transportKind, "transport", "none", "neighbor transport: none|mqtt")
	fs.StringVar(&cfg.mqttBroker, "mqtt-broker", "", "MQTT broker URL, e.g. tcp://localhost:1883 (transport=mqtt)")
	fs.StringVar(&cfg.mqttMeshID, "mqtt-mesh-id", "", "MQTT mesh id shared by every node on this overlay (transport=mqtt)")
	fs.UintVar(&cfg.peerID, "peer-id", 0, "overlay id of the neighbor reached through the transport (transport=mqtt)")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	if cfg.nodeID == 0 || cfg.nodeID > 254 {
		return nil, errors.New("id must be between 1 and 254")
	}
	switch cfg.logLevel {
	case "debug", "info", "warn", "error":
	default:
		return nil, fmt.Errorf("invalid log-level %q", cfg.logLevel)
	}
	switch cfg.transportKind {
	case "none":
	case "mqtt":
		if cfg.mqttBroker == "" || cfg.mqttMeshID == "" {
			return nil, errors.New("transport=mqtt requires -mqtt-broker and -mqtt-mesh-id")
		}
		if cfg.peerID == 0 || cfg.peerID > 254 {
			return nil, errors.New("transport=mqtt requires -peer-id between 1 and 254")
		}
	default:
		return nil, fmt.Errorf("invalid transport %q, want none|mqtt", cfg.transportKind)
	}

	return cfg, nil
}
