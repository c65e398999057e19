// Package overlay provides the domain-agnostic primitives shared by every
// layer of the content tracker: node and file identifiers, the packet and
// routing-header shapes, and the fragment serializer. It has no knowledge
// of trackers, databases, or chunk requests — those live in package
// tracker and its subpackages.
package overlay

import "fmt"

// NodeId identifies an overlay participant (drone, client, or server).
// The mesh is small enough that a single byte is sufficient, and keeps
// routing-header hop lists wire-compatible with a plain byte slice.
type NodeId uint8

// String returns a human-readable form of the id.
func (n NodeId) String() string {
	return fmt.Sprintf("node-%d", uint8(n))
}

// IsZero reports whether the id is the zero value (uninitialized).
func (n NodeId) IsZero() bool {
	return n == 0
}

// FileHash is a 16-bit, non-cryptographic digest used to identify a file.
// Zero means "unassigned": on insert with a zero hash the database computes
// and assigns one from the file's metadata.
type FileHash uint16

// IsZero reports whether the hash is unassigned.
func (h FileHash) IsZero() bool {
	return h == 0
}

// String returns the hash in hexadecimal.
func (h FileHash) String() string {
	return fmt.Sprintf("%04x", uint16(h))
}
