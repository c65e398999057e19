package tracker

import "github.com/overlaymesh/trackerd/overlay"

// initFlood implements the init_flood half of C6: a fresh flood id, a
// broadcast FloodRequest to every neighbor with an empty routing header,
// and a reset of the flood-discovery timer.
func (s *Server) initFlood() {
	floodID := s.scheduler.NextFloodID()
	req := overlay.Packet{
		Kind: overlay.KindFloodRequest,
		FloodRequest: overlay.FloodRequest{
			FloodID:   floodID,
			Initiator: s.id,
			PathTrace: []overlay.PathHop{{Node: s.id, Type: overlay.NodeTypeServer}},
		},
	}

	for _, peer := range s.neighbors.Neighbors() {
		if err := s.sendPacket(peer, req); err != nil {
			s.log.Warn("flood request enqueue failed", "peer", peer, "error", err)
		}
	}
	s.scheduler.Reset()
	s.counters.FloodsSent.Add(1)
}

// handleFloodRequest appends this node to the trace and returns a
// FloodResponse source-routed back to the initiator.
func (s *Server) handleFloodRequest(p overlay.Packet) {
	trace := append(append([]overlay.PathHop(nil), p.FloodRequest.PathTrace...), overlay.PathHop{Node: s.id, Type: overlay.NodeTypeServer})

	hops := make([]overlay.NodeId, len(trace))
	for i, hop := range trace {
		hops[i] = hop.Node
	}
	header := overlay.RoutingHeader{Hops: hops}.Reversed()

	resp := overlay.Packet{
		RoutingHeader: header,
		Kind:          overlay.KindFloodResponse,
		FloodResponse: overlay.FloodResponse{
			FloodID:   p.FloodRequest.FloodID,
			PathTrace: trace,
		},
	}
	nextHop, ok := resp.RoutingHeader.CurrentHop()
	if !ok {
		s.log.Error("flood response has no next hop", "flood_id", p.FloodRequest.FloodID)
		return
	}
	_ = s.sendPacket(nextHop, resp)
}

// handleFloodResponse feeds the accumulated path trace into the routing
// adapter.
func (s *Server) handleFloodResponse(p overlay.Packet) {
	s.routing.UpdateGraph(p.FloodResponse.PathTrace)
}
