package overlay

import (
	"bytes"
	"encoding/gob"
	"fmt"
	"sort"
	"sync/atomic"
)

// Serializer is the disassembler/assembler the rest of the engine treats as
// a black box: it turns an application message into an ordered run of
// fragments bound to a routing header and session id, and reassembles
// fragments back into a typed message. It also hands out session ids,
// unique per outgoing message for the lifetime of this process.
type Serializer struct {
	nextSession atomic.Uint64
}

// NewSerializer creates a Serializer with a fresh session counter.
func NewSerializer() *Serializer {
	return &Serializer{}
}

// NextSessionID returns a session id unique among everything this
// Serializer has issued so far.
func (s *Serializer) NextSessionID() SessionID {
	return SessionID(s.nextSession.Add(1))
}

// Disassemble encodes msg and splits it into a sequence of MsgFragment
// packets addressed via header, under session. msg's concrete type must
// have been registered with gob.Register so Assemble can recover it.
func (s *Serializer) Disassemble(msg any, header RoutingHeader, session SessionID) ([]Packet, error) {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(&msg); err != nil {
		return nil, fmt.Errorf("encoding message: %w", err)
	}

	data := buf.Bytes()
	total := (len(data) + MaxFragmentPayload - 1) / MaxFragmentPayload
	if total == 0 {
		total = 1 // a message may legitimately encode to zero bytes
	}

	packets := make([]Packet, 0, total)
	for i := 0; i < total; i++ {
		start := i * MaxFragmentPayload
		end := start + MaxFragmentPayload
		if end > len(data) {
			end = len(data)
		}
		packets = append(packets, Packet{
			RoutingHeader: header,
			SessionID:     session,
			Kind:          KindMsgFragment,
			Fragment:      NewFragment(uint64(i), uint64(total), data[start:end]),
		})
	}
	return packets, nil
}

// Assemble concatenates fragments in index order and decodes the result
// into a typed message. Fragments need not arrive pre-sorted.
func Assemble(fragments []Fragment) (any, error) {
	if len(fragments) == 0 {
		return nil, fmt.Errorf("assemble: no fragments")
	}

	sorted := append([]Fragment(nil), fragments...)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].FragmentIndex < sorted[j].FragmentIndex
	})

	var buf bytes.Buffer
	for i, f := range sorted {
		if uint64(i) != f.FragmentIndex {
			return nil, fmt.Errorf("assemble: missing fragment at index %d", i)
		}
		buf.Write(f.Bytes())
	}

	var out any
	if err := gob.NewDecoder(&buf).Decode(&out); err != nil {
		return nil, fmt.Errorf("decoding message: %w", err)
	}
	return out, nil
}
