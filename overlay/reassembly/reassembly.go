// Package reassembly collects MsgFragment packets into complete fragment
// runs, keyed per (source, session), and reports when a run is ready to be
// handed to the serializer for assembly into a typed message.
package reassembly

import (
	"fmt"
	"sync"

	"github.com/overlaymesh/trackerd/overlay"
)

type key struct {
	source  overlay.NodeId
	session overlay.SessionID
}

type state struct {
	fragments map[uint64]overlay.Fragment
	expected  uint64
}

// Reassembler buffers in-flight fragment runs. There is no timeout on
// partial buffers by design (spec: "a client that never completes a
// message leaves dormant state") — callers that want a cap on memory use
// can set MaxBufferedFragments.
type Reassembler struct {
	mu      sync.Mutex
	pending map[key]*state

	// MaxBufferedFragments caps the number of fragments accepted across all
	// pending runs. Zero means unbounded. When the cap would be exceeded,
	// HandleFragment drops the oldest-started run to make room.
	MaxBufferedFragments int

	order []key // insertion order of pending runs, for the eviction above
}

// New creates an empty Reassembler with no buffer cap.
func New() *Reassembler {
	return &Reassembler{pending: make(map[key]*state)}
}

// HandleFragment appends frag to the run identified by (source, session).
// It returns the complete, index-ordered fragment list and true once the
// run's announced total has been reached; otherwise it returns nil, false.
func (r *Reassembler) HandleFragment(source overlay.NodeId, session overlay.SessionID, frag overlay.Fragment) ([]overlay.Fragment, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	k := key{source: source, session: session}
	st, exists := r.pending[k]
	if !exists {
		st = &state{
			fragments: make(map[uint64]overlay.Fragment, frag.TotalNFragments),
			expected:  frag.TotalNFragments,
		}
		r.pending[k] = st
		r.order = append(r.order, k)
	}
	st.fragments[frag.FragmentIndex] = frag
	r.evictIfNeeded(k)

	if uint64(len(st.fragments)) < st.expected {
		return nil, false
	}

	ordered := make([]overlay.Fragment, st.expected)
	for i := uint64(0); i < st.expected; i++ {
		f, ok := st.fragments[i]
		if !ok {
			// Enough distinct indices were counted, but one of them lies at
			// or beyond the announced total, so an index below it is still
			// missing. Keep waiting rather than assembling a gap.
			return nil, false
		}
		ordered[i] = f
	}

	delete(r.pending, k)
	r.removeFromOrder(k)
	return ordered, true
}

// evictIfNeeded drops the oldest-started runs (other than the one just
// touched, keep) until the buffer is back under the cap or nothing else
// can be evicted.
func (r *Reassembler) evictIfNeeded(keep key) {
	if r.MaxBufferedFragments <= 0 {
		return
	}
	for r.totalBuffered() > r.MaxBufferedFragments {
		idx := -1
		for i, o := range r.order {
			if o != keep {
				idx = i
				break
			}
		}
		if idx == -1 {
			return
		}
		oldest := r.order[idx]
		r.order = append(r.order[:idx], r.order[idx+1:]...)
		delete(r.pending, oldest)
	}
}

func (r *Reassembler) totalBuffered() int {
	n := 0
	for _, st := range r.pending {
		n += len(st.fragments)
	}
	return n
}

func (r *Reassembler) removeFromOrder(k key) {
	for i, o := range r.order {
		if o == k {
			r.order = append(r.order[:i], r.order[i+1:]...)
			return
		}
	}
}

// PendingCount returns the number of in-progress reassemblies.
func (r *Reassembler) PendingCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.pending)
}

// Drop discards the buffer for (source, session), if any. Used when a
// session is known to be abandoned.
func (r *Reassembler) Drop(source overlay.NodeId, session overlay.SessionID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	k := key{source: source, session: session}
	delete(r.pending, k)
	r.removeFromOrder(k)
}

// Clear discards every in-progress reassembly, as happens implicitly on
// process exit (Crash sets terminated; buffers are dropped with the loop).
func (r *Reassembler) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.pending = make(map[key]*state)
	r.order = nil
}

func (k key) String() string {
	return fmt.Sprintf("(%s,%d)", k.source, k.session)
}
