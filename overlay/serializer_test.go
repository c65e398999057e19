package overlay

import (
	"encoding/gob"
	"strings"
	"testing"
)

type testMessage struct {
	Name  string
	Count int
}

func init() {
	gob.Register(testMessage{})
}

func TestSerializerRoundTrip(t *testing.T) {
	s := NewSerializer()
	session := s.NextSessionID()
	header := RoutingHeader{Hops: []NodeId{1, 2, 3}, HopIndex: 1}

	msg := testMessage{Name: "hello", Count: 42}
	packets, err := s.Disassemble(msg, header, session)
	if err != nil {
		t.Fatalf("Disassemble: %v", err)
	}
	if len(packets) != 1 {
		t.Fatalf("expected 1 fragment for a small message, got %d", len(packets))
	}

	frags := make([]Fragment, len(packets))
	for i, p := range packets {
		if p.Kind != KindMsgFragment {
			t.Fatalf("packet %d: kind = %s, want MsgFragment", i, p.Kind)
		}
		if p.SessionID != session {
			t.Fatalf("packet %d: session = %d, want %d", i, p.SessionID, session)
		}
		frags[i] = p.Fragment
	}

	got, err := Assemble(frags)
	if err != nil {
		t.Fatalf("Assemble: %v", err)
	}
	decoded, ok := got.(testMessage)
	if !ok {
		t.Fatalf("Assemble returned %T, want testMessage", got)
	}
	if decoded != msg {
		t.Fatalf("Assemble = %+v, want %+v", decoded, msg)
	}
}

func TestSerializerMultiFragment(t *testing.T) {
	s := NewSerializer()
	session := s.NextSessionID()
	header := RoutingHeader{Hops: []NodeId{1, 2}, HopIndex: 1}

	msg := testMessage{Name: strings.Repeat("x", 2000), Count: 7}
	packets, err := s.Disassemble(msg, header, session)
	if err != nil {
		t.Fatalf("Disassemble: %v", err)
	}
	if len(packets) < 2 {
		t.Fatalf("expected multiple fragments for a large message, got %d", len(packets))
	}
	for i, p := range packets {
		if int(p.Fragment.TotalNFragments) != len(packets) {
			t.Fatalf("packet %d: total = %d, want %d", i, p.Fragment.TotalNFragments, len(packets))
		}
		if int(p.Fragment.FragmentIndex) != i {
			t.Fatalf("packet %d: index = %d, want %d", i, p.Fragment.FragmentIndex, i)
		}
		if len(p.Fragment.Bytes()) > MaxFragmentPayload {
			t.Fatalf("packet %d: fragment payload too large: %d bytes", i, len(p.Fragment.Bytes()))
		}
	}

	// Shuffle before reassembling to prove order doesn't matter.
	frags := make([]Fragment, len(packets))
	for i, p := range packets {
		frags[len(packets)-1-i] = p.Fragment
	}

	got, err := Assemble(frags)
	if err != nil {
		t.Fatalf("Assemble: %v", err)
	}
	if decoded, ok := got.(testMessage); !ok || decoded != msg {
		t.Fatalf("Assemble = %+v, want %+v", got, msg)
	}
}

func TestSerializerSessionIDsUnique(t *testing.T) {
	s := NewSerializer()
	seen := make(map[SessionID]bool)
	for i := 0; i < 100; i++ {
		id := s.NextSessionID()
		if seen[id] {
			t.Fatalf("duplicate session id %d", id)
		}
		seen[id] = true
	}
}

func TestAssembleMissingFragment(t *testing.T) {
	frags := []Fragment{
		NewFragment(0, 2, []byte("a")),
		NewFragment(2, 2, []byte("b")), // index 1 missing
	}
	if _, err := Assemble(frags); err == nil {
		t.Fatal("expected error for missing fragment index, got nil")
	}
}

func TestAssembleEmpty(t *testing.T) {
	if _, err := Assemble(nil); err == nil {
		t.Fatal("expected error assembling zero fragments, got nil")
	}
}
