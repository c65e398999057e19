// Package routing is the concrete routing adapter the server calls into for
// path discovery: it maintains a weighted directed graph of the mesh as
// learned from flood-discovery traces, answers shortest-path queries, and
// applies a reliability penalty to nodes implicated in a Dropped NACK.
package routing

import (
	"log/slog"
	"sync"

	"gonum.org/v1/gonum/graph"
	"gonum.org/v1/gonum/graph/path"
	"gonum.org/v1/gonum/graph/simple"

	"github.com/overlaymesh/trackerd/overlay"
)

const (
	// DefaultEdgeWeight is the weight assigned to a link freshly confirmed
	// by a flood-discovery trace.
	DefaultEdgeWeight = 1.0

	// NackPenaltyFactor multiplies a node's outgoing edge weights on a
	// Dropped NACK, making the routing adapter prefer other paths.
	NackPenaltyFactor = 2.0

	// MaxEdgeWeight bounds how unreliable a link can be made to look, so a
	// node that is merely having a bad run is never permanently unusable.
	MaxEdgeWeight = 32.0
)

// Adapter is a gonum-backed weighted directed graph of the mesh.
type Adapter struct {
	log  *slog.Logger
	mu   sync.Mutex
	self overlay.NodeId
	g    *simple.WeightedDirectedGraph
}

// New creates an Adapter for a server identified by self. A nil logger
// falls back to slog.Default().
func New(self overlay.NodeId, logger *slog.Logger) *Adapter {
	if logger == nil {
		logger = slog.Default()
	}
	return &Adapter{
		log:  logger.WithGroup("routing"),
		self: self,
		g:    simple.NewWeightedDirectedGraph(0, 0),
	}
}

func nodeOf(id overlay.NodeId) graph.Node {
	return simple.Node(int64(id))
}

func (a *Adapter) ensureNode(id overlay.NodeId) {
	if a.g.Node(int64(id)) == nil {
		a.g.AddNode(nodeOf(id))
	}
}

// UpdateGraph folds a flood-response path trace into the graph: every
// consecutive pair of hops gets a bidirectional edge (the mesh forwards
// both ways), confirmed at DefaultEdgeWeight unless a prior NACK penalty
// had raised it higher, in which case the confirmed link is trusted again
// and the weight is reset down to the default.
func (a *Adapter) UpdateGraph(trace []overlay.PathHop) {
	a.mu.Lock()
	defer a.mu.Unlock()

	for _, hop := range trace {
		a.ensureNode(hop.Node)
	}

	for i := 0; i+1 < len(trace); i++ {
		u, v := trace[i].Node, trace[i+1].Node
		if u == v {
			continue
		}
		a.confirmEdge(u, v)
		a.confirmEdge(v, u)
	}
}

func (a *Adapter) confirmEdge(u, v overlay.NodeId) {
	a.g.SetWeightedEdge(simple.WeightedEdge{
		F: nodeOf(u),
		T: nodeOf(v),
		W: DefaultEdgeWeight,
	})
}

// BestPath returns the shortest known path from `from` to `to`, inclusive
// of both endpoints, in hop order. Returns false if no path is known.
func (a *Adapter) BestPath(from, to overlay.NodeId) ([]overlay.NodeId, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()

	fromNode := a.g.Node(int64(from))
	toNode := a.g.Node(int64(to))
	if fromNode == nil || toNode == nil {
		return nil, false
	}

	shortest := path.DijkstraFrom(fromNode, a.g)
	nodes, _ := shortest.To(toNode.ID())
	if len(nodes) == 0 {
		return nil, false
	}

	hops := make([]overlay.NodeId, len(nodes))
	for i, n := range nodes {
		hops[i] = overlay.NodeId(n.ID())
	}
	return hops, true
}

// NodeNack bumps the outgoing edge weights of node, as the result of a
// Dropped NACK naming it as the point of failure. The bump is bounded so a
// node can never become permanently unroutable from a single bad streak.
func (a *Adapter) NodeNack(node overlay.NodeId) {
	a.mu.Lock()
	defer a.mu.Unlock()

	n := a.g.Node(int64(node))
	if n == nil {
		return
	}

	to := a.g.From(n.ID())
	for to.Next() {
		other := to.Node()
		edge := a.g.WeightedEdge(n.ID(), other.ID())
		if edge == nil {
			continue
		}
		newWeight := edge.Weight() * NackPenaltyFactor
		if newWeight > MaxEdgeWeight {
			newWeight = MaxEdgeWeight
		}
		a.g.SetWeightedEdge(simple.WeightedEdge{F: n, T: other, W: newWeight})
	}
	a.log.Debug("applied nack penalty", "node", node)
}

// HasNode reports whether node has been learned about, for diagnostics.
func (a *Adapter) HasNode(node overlay.NodeId) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.g.Node(int64(node)) != nil
}
