package tracker

import (
	"github.com/overlaymesh/trackerd/overlay"
	"github.com/overlaymesh/trackerd/tracker/proto"
)

// handleFragment implements C4: ACK before reassembly is attempted, then
// dispatch into C7/C8 once every fragment for (source, session) is in.
func (s *Server) handleFragment(p overlay.Packet) {
	source, ok := firstHop(p.RoutingHeader)
	if !ok {
		s.log.Error("fragment with empty routing header")
		return
	}

	ack := overlay.Packet{
		RoutingHeader: p.RoutingHeader.Reversed(),
		SessionID:     p.SessionID,
		Kind:          overlay.KindAck,
		Ack:           overlay.Ack{FragmentIndex: p.Fragment.FragmentIndex},
	}
	if nextHop, ok := ack.RoutingHeader.CurrentHop(); ok {
		_ = s.sendPacket(nextHop, ack)
	}

	fragments, complete := s.reassembler.HandleFragment(source, p.SessionID, p.Fragment)
	if !complete {
		return
	}

	msg, err := overlay.Assemble(fragments)
	if err != nil {
		s.log.Error("assembling message failed", "source", source, "session", p.SessionID, "error", err)
		return
	}
	s.dispatchMessage(msg)
}

// firstHop returns hops[0], the originator of a routing header.
func firstHop(h overlay.RoutingHeader) (overlay.NodeId, bool) {
	if len(h.Hops) == 0 {
		return 0, false
	}
	return h.Hops[0], true
}

func (s *Server) dispatchMessage(msg any) {
	switch m := msg.(type) {
	case proto.SubscribeClient:
		s.handleSubscribeClient(m)
	case proto.UnsubscribeClient:
		s.handleUnsubscribeClient(m)
	case proto.UpdateFileList:
		s.handleUpdateFileList(m)
	case proto.RequestFileList:
		s.handleRequestFileList(m)
	case proto.RequestPeerList:
		s.handleRequestPeerList(m)
	case proto.ChunkRequest:
		s.handleChunkRequest(m)
	default:
		s.log.Error("reassembled message of unrecognized type")
	}
}

// handleAck implements the ACK half of C5: the outstanding copy is simply
// forgotten. A missing entry (duplicate or late ACK) is logged, not fatal.
func (s *Server) handleAck(p overlay.Packet) {
	s.history.Resolve(p.Ack.FragmentIndex, p.SessionID)
}

// handleNack implements the NACK half of C5.
func (s *Server) handleNack(p overlay.Packet) {
	pkt, ok := s.history.Lookup(p.Nack.FragmentIndex, p.SessionID)
	if !ok {
		return
	}

	switch p.Nack.Kind {
	case overlay.NackDropped:
		if origin, ok := firstHop(p.RoutingHeader); ok {
			s.routing.NodeNack(origin)
		}
		s.retransmit(pkt, p.Nack.FragmentIndex, p.SessionID)
	case overlay.NackErrorInRouting:
		s.log.Warn("routing error reported, triggering fresh flood", "node", p.Nack.Node)
		s.initFlood()
		s.retransmit(pkt, p.Nack.FragmentIndex, p.SessionID)
	case overlay.NackDestinationIsDrone:
		s.log.Warn("nack: destination is a drone", "fragment", p.Nack.FragmentIndex, "session", p.SessionID)
	case overlay.NackUnexpectedRecipient:
		s.log.Warn("nack: unexpected recipient", "node", p.Nack.Node, "fragment", p.Nack.FragmentIndex, "session", p.SessionID)
	default:
		s.log.Error("unknown nack kind", "kind", p.Nack.Kind)
	}
}

// retransmit recomputes the best path to the packet's destination, falling
// back to its existing header if none is found, then resends and refreshes
// the outbound-history entry with the header actually used.
func (s *Server) retransmit(pkt overlay.Packet, fragmentIndex uint64, session overlay.SessionID) {
	header := pkt.RoutingHeader
	if dest, ok := pkt.RoutingHeader.Destination(); ok {
		if path, ok := s.routing.BestPath(s.id, dest); ok {
			header = overlay.RoutingHeader{Hops: path, HopIndex: 1}
		}
	}
	pkt.RoutingHeader = header

	nextHop, ok := header.CurrentHop()
	if !ok {
		s.log.Error("retransmit: no next hop in routing header", "session", session, "fragment", fragmentIndex)
		return
	}
	if err := s.sendPacket(nextHop, pkt); err != nil {
		s.log.Warn("retransmit failed", "next_hop", nextHop, "error", err)
		return
	}
	s.history.Track(fragmentIndex, session, pkt)
}
