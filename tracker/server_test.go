package tracker

import (
	"testing"

	"github.com/overlaymesh/trackerd/overlay"
	"github.com/overlaymesh/trackerd/tracker/db"
	"github.com/overlaymesh/trackerd/tracker/proto"
)

func newTestServer(t *testing.T, id overlay.NodeId) (*Server, *db.Database, chan Command, chan Event, chan overlay.Packet) {
	t.Helper()
	database, err := db.Open(t.TempDir(), uint8(id), nil)
	if err != nil {
		t.Fatalf("db.Open: %v", err)
	}
	t.Cleanup(func() { database.Close() })

	cmdCh := make(chan Command, 16)
	evtCh := make(chan Event, 16)
	pktCh := make(chan overlay.Packet, 16)

	srv, err := New(Config{
		ID:             id,
		ControllerRecv: cmdCh,
		ControllerSend: evtCh,
		PacketRecv:     pktCh,
	}, database)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return srv, database, cmdCh, evtCh, pktCh
}

func songFile(title string) proto.FileMetadata {
	meta := db.SongMeta{Title: title, Artist: "", Duration: 0}
	meta.ID = meta.CompactHash()
	return proto.FileMetadata{Song: meta}
}

// Scenario 1: subscribe then RequestFileList round-trip.
func TestSubscribeThenRequestFileListRoundTrip(t *testing.T) {
	srv, database, _, _, _ := newTestServer(t, 10)

	alpha := songFile("Alpha")
	if _, err := database.InsertSongFileEntry(alpha.Song, 10); err != nil {
		t.Fatalf("seeding song: %v", err)
	}

	srv.handleSubscribeClient(proto.SubscribeClient{
		ClientID:       20,
		ClientType:     db.ClientTypeSong,
		AvailableFiles: []proto.FileMetadata{alpha},
	})

	known, err := database.ContainsClient(20)
	if err != nil || !known {
		t.Fatalf("expected client 20 to be known, got %v err %v", known, err)
	}

	entry, ok, err := database.GetSongEntry(alpha.Song.ID)
	if err != nil || !ok {
		t.Fatalf("expected song entry, got ok=%v err=%v", ok, err)
	}
	if _, has10 := entry.Peers[10]; !has10 {
		t.Fatal("expected peer 10 (server) in entry")
	}
	if _, has20 := entry.Peers[20]; !has20 {
		t.Fatal("expected peer 20 (client) in entry")
	}

	// Wire a direct link so RequestFileList's response has somewhere to go.
	srv.routing.UpdateGraph([]overlay.PathHop{
		{Node: 10, Type: overlay.NodeTypeServer},
		{Node: 20, Type: overlay.NodeTypeClient},
	})
	neighborCh := make(chan overlay.Packet, 8)
	if err := srv.neighbors.SetSender(20, neighborCh); err != nil {
		t.Fatalf("SetSender: %v", err)
	}

	srv.handleRequestFileList(proto.RequestFileList{ClientID: 20})

	var frags []overlay.Fragment
	for {
		select {
		case p := <-neighborCh:
			frags = append(frags, p.Fragment)
			continue
		default:
		}
		break
	}
	if len(frags) == 0 {
		t.Fatal("expected at least one fragment delivered to neighbor 20")
	}
	msg, err := overlay.Assemble(frags)
	if err != nil {
		t.Fatalf("Assemble: %v", err)
	}
	resp, ok := msg.(proto.ResponseFileList)
	if !ok {
		t.Fatalf("assembled message type = %T, want ResponseFileList", msg)
	}
	if len(resp.Files) != 1 || resp.Files[0].Song.Title != "Alpha" {
		t.Fatalf("ResponseFileList = %+v", resp)
	}
}

// Scenario 1 (zero-id path): a client submitting a file with id=0 is
// accepted, not rejected as a hash mismatch, and the stored entry is keyed
// by the server's freshly computed hash.
func TestSubscribeZeroIDAutoAssignsHash(t *testing.T) {
	srv, database, _, _, _ := newTestServer(t, 10)

	unassigned := proto.FileMetadata{Song: db.SongMeta{Title: "Alpha"}}
	srv.handleSubscribeClient(proto.SubscribeClient{
		ClientID:       20,
		ClientType:     db.ClientTypeSong,
		AvailableFiles: []proto.FileMetadata{unassigned},
	})

	want := db.SongMeta{Title: "Alpha"}.CompactHash()
	entry, ok, err := database.GetSongEntry(want)
	if err != nil || !ok {
		t.Fatalf("expected song entry keyed by computed hash %s, ok=%v err=%v", want, ok, err)
	}
	if _, has20 := entry.Peers[20]; !has20 {
		t.Fatal("expected peer 20 in the auto-assigned entry")
	}

	info, ok, err := database.GetClient(20)
	if err != nil || !ok {
		t.Fatalf("GetClient: ok=%v err=%v", ok, err)
	}
	if _, has := info.SharedFiles[want]; !has {
		t.Fatalf("expected client 20's shared files to include %s, got %v", want, info.SharedFiles)
	}
}

// Scenario 2: unsubscribe strips the client's peer contribution but keeps
// the entry alive for the server's own copy.
func TestUnsubscribeStripsPeer(t *testing.T) {
	srv, database, _, _, _ := newTestServer(t, 10)

	alpha := songFile("Alpha")
	if _, err := database.InsertSongFileEntry(alpha.Song, 10); err != nil {
		t.Fatalf("seeding song: %v", err)
	}
	srv.handleSubscribeClient(proto.SubscribeClient{
		ClientID:       20,
		ClientType:     db.ClientTypeSong,
		AvailableFiles: []proto.FileMetadata{alpha},
	})

	srv.handleUnsubscribeClient(proto.UnsubscribeClient{ClientID: 20})

	if known, _ := database.ContainsClient(20); known {
		t.Fatal("expected client 20 to be removed")
	}
	entry, ok, err := database.GetSongEntry(alpha.Song.ID)
	if err != nil || !ok {
		t.Fatalf("expected entry to survive, ok=%v err=%v", ok, err)
	}
	if _, has20 := entry.Peers[20]; has20 {
		t.Fatal("expected peer 20 to be stripped")
	}
	if _, has10 := entry.Peers[10]; !has10 {
		t.Fatal("expected peer 10 to remain")
	}
}

// Scenario 3: a Dropped NACK penalizes the reporting node and retransmits
// along a freshly computed best path, updating outbound history in place.
func TestNackDroppedRetransmitsAlongFreshPath(t *testing.T) {
	srv, _, _, _, _ := newTestServer(t, 10)

	// Direct 10->3->4->20 plus an alternate 10->5->20 so a fresh path is
	// available once node 3 is penalized.
	srv.routing.UpdateGraph([]overlay.PathHop{
		{Node: 10, Type: overlay.NodeTypeServer},
		{Node: 3, Type: overlay.NodeTypeDrone},
		{Node: 4, Type: overlay.NodeTypeDrone},
		{Node: 20, Type: overlay.NodeTypeClient},
	})
	srv.routing.UpdateGraph([]overlay.PathHop{
		{Node: 10, Type: overlay.NodeTypeServer},
		{Node: 5, Type: overlay.NodeTypeDrone},
		{Node: 20, Type: overlay.NodeTypeClient},
	})
	for i := 0; i < 10; i++ {
		srv.routing.NodeNack(3)
	}

	neighborCh := make(chan overlay.Packet, 8)
	if err := srv.neighbors.SetSender(3, neighborCh); err != nil {
		t.Fatalf("SetSender: %v", err)
	}
	if err := srv.neighbors.SetSender(5, make(chan overlay.Packet, 8)); err != nil {
		t.Fatalf("SetSender: %v", err)
	}

	original := overlay.Packet{
		RoutingHeader: overlay.RoutingHeader{Hops: []overlay.NodeId{10, 3, 4, 20}, HopIndex: 1},
		SessionID:     7,
		Kind:          overlay.KindMsgFragment,
		Fragment:      overlay.NewFragment(0, 1, []byte("hello")),
	}
	srv.history.Track(0, 7, original)

	nack := overlay.Packet{
		RoutingHeader: overlay.RoutingHeader{Hops: []overlay.NodeId{3, 10}, HopIndex: 1},
		SessionID:     7,
		Kind:          overlay.KindNack,
		Nack:          overlay.Nack{FragmentIndex: 0, Kind: overlay.NackDropped},
	}
	srv.handleNack(nack)

	updated, ok := srv.history.Lookup(0, 7)
	if !ok {
		t.Fatal("expected outbound history entry to survive retransmit")
	}
	if dest, _ := updated.RoutingHeader.Destination(); dest != 20 {
		t.Fatalf("retransmitted packet destination = %s, want 20", dest)
	}
	if updated.RoutingHeader.Hops[0] != 10 {
		t.Fatalf("retransmitted header should still originate at 10, got %v", updated.RoutingHeader.Hops)
	}
}

// Scenario 4: with one neighbor, initFlood emits exactly one FloodRequest
// toward it carrying a fresh flood id and the single-hop path trace.
func TestInitFloodEmitsOneRequestPerNeighbor(t *testing.T) {
	srv, _, _, _, _ := newTestServer(t, 10)
	ch := make(chan overlay.Packet, 8)
	if err := srv.neighbors.SetSender(3, ch); err != nil {
		t.Fatalf("SetSender: %v", err)
	}

	srv.initFlood()
	// New() already calls initFlood internally? No: New does not call it,
	// only Run does. Drain whatever initFlood above queued.
	var got overlay.Packet
	select {
	case got = <-ch:
	default:
		t.Fatal("expected a FloodRequest on the neighbor channel")
	}
	if got.Kind != overlay.KindFloodRequest {
		t.Fatalf("kind = %s, want FloodRequest", got.Kind)
	}
	if len(got.FloodRequest.PathTrace) != 1 || got.FloodRequest.PathTrace[0].Node != 10 {
		t.Fatalf("path trace = %v, want [(10,Server)]", got.FloodRequest.PathTrace)
	}

	select {
	case extra := <-ch:
		t.Fatalf("expected exactly one FloodRequest, got extra %v", extra)
	default:
	}
}

// Scenario 5: a hash mismatch rejects the file but still creates the client
// record with an empty shared-files set.
func TestSubscribeHashMismatchRejectsFile(t *testing.T) {
	srv, database, _, _, _ := newTestServer(t, 10)

	bad := proto.FileMetadata{Song: db.SongMeta{ID: 0xDEAD, Title: "Beta"}}
	srv.handleSubscribeClient(proto.SubscribeClient{
		ClientID:       21,
		ClientType:     db.ClientTypeSong,
		AvailableFiles: []proto.FileMetadata{bad},
	})

	info, ok, err := database.GetClient(21)
	if err != nil || !ok {
		t.Fatalf("expected client 21 to be created, ok=%v err=%v", ok, err)
	}
	if len(info.SharedFiles) != 0 {
		t.Fatalf("expected no shared files, got %v", info.SharedFiles)
	}
	if _, ok, _ := database.GetSongEntry(0xDEAD); ok {
		t.Fatal("expected no song entry to be created for a mismatched hash")
	}
}

func TestSubscribeTwiceWarnsAndNoops(t *testing.T) {
	srv, database, _, _, _ := newTestServer(t, 10)
	alpha := songFile("Alpha")

	srv.handleSubscribeClient(proto.SubscribeClient{ClientID: 20, ClientType: db.ClientTypeSong, AvailableFiles: []proto.FileMetadata{alpha}})
	srv.handleSubscribeClient(proto.SubscribeClient{ClientID: 20, ClientType: db.ClientTypeSong, AvailableFiles: []proto.FileMetadata{alpha}})

	info, ok, err := database.GetClient(20)
	if err != nil || !ok {
		t.Fatalf("GetClient: ok=%v err=%v", ok, err)
	}
	if len(info.SharedFiles) != 1 {
		t.Fatalf("expected idempotent single shared file, got %v", info.SharedFiles)
	}
}

func TestHandleCommandAddAndRemoveSenderTriggerFlood(t *testing.T) {
	srv, _, _, _, _ := newTestServer(t, 10)
	ch := make(chan overlay.Packet, 8)

	before := srv.scheduler.UsedCount()
	srv.handleCommand(AddSender{ID: 3, Channel: ch})
	if srv.neighbors.Count() != 1 {
		t.Fatalf("Count() = %d, want 1", srv.neighbors.Count())
	}
	if srv.scheduler.UsedCount() != before+1 {
		t.Fatal("expected AddSender to trigger a flood")
	}

	srv.handleCommand(RemoveSender{ID: 3})
	if srv.neighbors.Count() != 0 {
		t.Fatalf("Count() = %d, want 0", srv.neighbors.Count())
	}
	if srv.scheduler.UsedCount() != before+2 {
		t.Fatal("expected RemoveSender to trigger a flood")
	}
}

func TestHandleCommandCrashTerminates(t *testing.T) {
	srv, _, _, _, _ := newTestServer(t, 10)
	srv.handleCommand(Crash{})
	if !srv.terminated {
		t.Fatal("expected Crash to set terminated")
	}
}
