// Package flood manages flood-discovery timing and flood id allocation: the
// 60-second periodic re-discovery, forced re-discovery on topology-changing
// controller commands or routing errors, and collision-free flood id draws.
package flood

import (
	"log/slog"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/overlaymesh/trackerd/overlay"
	"github.com/overlaymesh/trackerd/overlay/clock"
)

// DefaultInterval is the elapsed real time between periodic
// flood-discovery rounds.
const DefaultInterval = 60 * time.Second

// Config configures a Scheduler.
type Config struct {
	// Interval is the periodic flood-discovery interval. Default: 60s.
	Interval time.Duration

	// Logger falls back to slog.Default() if nil.
	Logger *slog.Logger
}

// Scheduler tracks when the next periodic flood-discovery round is due and
// hands out flood ids guaranteed unique within the process. Unlike the
// teacher's advert scheduler, it runs no background ticker: the server's
// main loop is a single cooperative loop, so Due is polled once per
// iteration rather than firing from a goroutine.
type Scheduler struct {
	cfg   Config
	log   *slog.Logger
	clock *clock.Clock

	mu       sync.Mutex
	nextFire time.Time
	used     map[overlay.FloodID]struct{}
}

// New creates a Scheduler. clk may be nil, in which case a system clock is
// used. The returned scheduler is due immediately (a flood is always
// triggered at server start).
func New(cfg Config, clk *clock.Clock) *Scheduler {
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultInterval
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	if clk == nil {
		clk = clock.New()
	}
	return &Scheduler{
		cfg:   cfg,
		log:   logger.WithGroup("flood"),
		clock: clk,
		used:  make(map[overlay.FloodID]struct{}),
	}
}

// Due reports whether the periodic flood-discovery interval has elapsed.
// The zero-value nextFire (never set) is always due, so a fresh Scheduler
// fires on the server's first loop iteration.
func (s *Scheduler) Due() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.nextFire.IsZero() || !s.clock.Now().Before(s.nextFire)
}

// Reset pushes the next periodic round Interval out from now. Called after
// every flood-discovery round, whether periodic or forced.
func (s *Scheduler) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextFire = s.clock.Now().Add(s.cfg.Interval)
}

// NextFloodID draws a flood id by random selection, retrying on collision
// with any id already used by this process, and records it as used.
func (s *Scheduler) NextFloodID() overlay.FloodID {
	s.mu.Lock()
	defer s.mu.Unlock()
	for {
		id := overlay.FloodID(rand.Uint64())
		if _, collide := s.used[id]; collide {
			continue
		}
		s.used[id] = struct{}{}
		return id
	}
}

// UsedCount returns the number of flood ids drawn so far, for diagnostics.
func (s *Scheduler) UsedCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.used)
}
