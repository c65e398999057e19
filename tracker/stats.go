package tracker

import "sync/atomic"

// Counters tracks packet-flow statistics for one server, safe for
// concurrent reads while Run mutates them from its single goroutine.
type Counters struct {
	PacketsSent atomic.Uint32
	PacketsRecv atomic.Uint32
	Fragments   atomic.Uint32
	Acks        atomic.Uint32
	Nacks       atomic.Uint32
	FloodsSent  atomic.Uint32
}

// CountersSnapshot is a plain-value copy of Counters for reading.
type CountersSnapshot struct {
	PacketsSent uint32
	PacketsRecv uint32
	Fragments   uint32
	Acks        uint32
	Nacks       uint32
	FloodsSent  uint32
}

// Snapshot returns a plain-value copy of the counters. Each field is loaded
// atomically on its own; the fields are not read together as one unit.
func (c *Counters) Snapshot() CountersSnapshot {
	return CountersSnapshot{
		PacketsSent: c.PacketsSent.Load(),
		PacketsRecv: c.PacketsRecv.Load(),
		Fragments:   c.Fragments.Load(),
		Acks:        c.Acks.Load(),
		Nacks:       c.Nacks.Load(),
		FloodsSent:  c.FloodsSent.Load(),
	}
}

// Stats returns a snapshot of this server's packet-flow counters.
func (s *Server) Stats() CountersSnapshot {
	return s.counters.Snapshot()
}
