package overlay

import "fmt"

// SessionID identifies one application-level message's fragment stream.
// It only needs to be unique at the originator, for the lifetime of the
// reassembly it names — there is no cross-session replay protection.
type SessionID uint64

// FloodID identifies one flood-discovery round, unique within a process.
type FloodID uint64

// MaxFragmentPayload bounds the data carried by a single MsgFragment, a
// deliberate homage to the source protocol's per-fragment budget rather
// than a hardware constraint in this overlay.
const MaxFragmentPayload = 184

// NodeType classifies a hop recorded in a flood path trace.
type NodeType uint8

const (
	NodeTypeClient NodeType = iota
	NodeTypeDrone
	NodeTypeServer
)

func (t NodeType) String() string {
	switch t {
	case NodeTypeClient:
		return "client"
	case NodeTypeDrone:
		return "drone"
	case NodeTypeServer:
		return "server"
	default:
		return "unknown"
	}
}

// RoutingHeader is an explicit, source-chosen hop list. hops[0] is the
// originator, hops[len(hops)-1] the final destination, and hop_index names
// the next hop to forward to (1 = the first drone on the path).
type RoutingHeader struct {
	Hops     []NodeId
	HopIndex int
}

// Destination returns the final hop, or false if the header is empty.
func (h RoutingHeader) Destination() (NodeId, bool) {
	if len(h.Hops) == 0 {
		return 0, false
	}
	return h.Hops[len(h.Hops)-1], true
}

// CurrentHop returns the hop named by HopIndex, or false if out of range.
func (h RoutingHeader) CurrentHop() (NodeId, bool) {
	if h.HopIndex < 0 || h.HopIndex >= len(h.Hops) {
		return 0, false
	}
	return h.Hops[h.HopIndex], true
}

// Reversed returns a new header with the hop order reversed and HopIndex
// reset to 1 (the first hop out from whoever now holds the header), the
// shape used to build ACKs and chunk responses.
func (h RoutingHeader) Reversed() RoutingHeader {
	rev := make([]NodeId, len(h.Hops))
	for i, hop := range h.Hops {
		rev[len(h.Hops)-1-i] = hop
	}
	return RoutingHeader{Hops: rev, HopIndex: 1}
}

func (h RoutingHeader) String() string {
	return fmt.Sprintf("%v@%d", h.Hops, h.HopIndex)
}

// Kind distinguishes the payload carried by a Packet.
type Kind uint8

const (
	KindMsgFragment Kind = iota
	KindAck
	KindNack
	KindFloodRequest
	KindFloodResponse
)

func (k Kind) String() string {
	switch k {
	case KindMsgFragment:
		return "MsgFragment"
	case KindAck:
		return "Ack"
	case KindNack:
		return "Nack"
	case KindFloodRequest:
		return "FloodRequest"
	case KindFloodResponse:
		return "FloodResponse"
	default:
		return "Unknown"
	}
}

// NackKind distinguishes why a fragment was not delivered.
type NackKind uint8

const (
	NackDropped NackKind = iota
	NackDestinationIsDrone
	NackErrorInRouting
	NackUnexpectedRecipient
)

func (k NackKind) String() string {
	switch k {
	case NackDropped:
		return "Dropped"
	case NackDestinationIsDrone:
		return "DestinationIsDrone"
	case NackErrorInRouting:
		return "ErrorInRouting"
	case NackUnexpectedRecipient:
		return "UnexpectedRecipient"
	default:
		return "Unknown"
	}
}

// Fragment is the payload of a KindMsgFragment packet.
type Fragment struct {
	FragmentIndex    uint64
	TotalNFragments  uint64
	Data             [MaxFragmentPayload]byte
	Length           uint64
}

// Bytes returns the valid slice of fragment data.
func (f Fragment) Bytes() []byte {
	return f.Data[:f.Length]
}

// NewFragment builds a Fragment from a data slice, which must fit within
// MaxFragmentPayload.
func NewFragment(index, total uint64, data []byte) Fragment {
	var frag Fragment
	frag.FragmentIndex = index
	frag.TotalNFragments = total
	frag.Length = uint64(len(data))
	copy(frag.Data[:], data)
	return frag
}

// Ack is the payload of a KindAck packet.
type Ack struct {
	FragmentIndex uint64
}

// Nack is the payload of a KindNack packet.
type Nack struct {
	FragmentIndex uint64
	Kind          NackKind
	Node          NodeId // populated for ErrorInRouting / UnexpectedRecipient
}

// PathHop is one entry of a flood path trace.
type PathHop struct {
	Node NodeId
	Type NodeType
}

// FloodRequest is the payload of a KindFloodRequest packet. It is routed by
// the drone mesh independently of any RoutingHeader, which is left empty.
type FloodRequest struct {
	FloodID    FloodID
	Initiator  NodeId
	PathTrace  []PathHop
}

// FloodResponse is the payload of a KindFloodResponse packet, returned
// source-routed along the reversed path trace.
type FloodResponse struct {
	FloodID   FloodID
	PathTrace []PathHop
}

// Packet is the unit of transport between directly-connected neighbors.
type Packet struct {
	RoutingHeader RoutingHeader
	SessionID     SessionID
	Kind          Kind

	Fragment      Fragment
	Ack           Ack
	Nack          Nack
	FloodRequest  FloodRequest
	FloodResponse FloodResponse
}

// Clone returns a deep copy suitable for independent mutation (e.g. the
// retransmission history keeping a copy distinct from the one enqueued to
// a neighbor's channel).
func (p Packet) Clone() Packet {
	clone := p
	clone.RoutingHeader.Hops = append([]NodeId(nil), p.RoutingHeader.Hops...)
	if p.Kind == KindFloodRequest {
		clone.FloodRequest.PathTrace = append([]PathHop(nil), p.FloodRequest.PathTrace...)
	}
	if p.Kind == KindFloodResponse {
		clone.FloodResponse.PathTrace = append([]PathHop(nil), p.FloodResponse.PathTrace...)
	}
	return clone
}

func (p Packet) String() string {
	return fmt.Sprintf("Packet{kind=%s session=%d header=%s}", p.Kind, p.SessionID, p.RoutingHeader)
}
