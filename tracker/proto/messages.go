// Package proto defines the five tracker messages and the chunk-request
// pipeline's wire types. These are plain data: the handlers that interpret
// them live in package tracker, which owns the database, routing adapter,
// and neighbor map they need.
package proto

import (
	"encoding/gob"

	"github.com/overlaymesh/trackerd/overlay"
	"github.com/overlaymesh/trackerd/tracker/db"
)

func init() {
	gob.Register(SubscribeClient{})
	gob.Register(UnsubscribeClient{})
	gob.Register(UpdateFileList{})
	gob.Register(RequestFileList{})
	gob.Register(RequestPeerList{})
	gob.Register(ResponseFileList{})
	gob.Register(ResponsePeerList{})
	gob.Register(ChunkRequest{})
	gob.Register(ChunkResponse{})
}

// Status tags a file's change in an UpdateFileList entry.
type Status uint8

const (
	StatusNew Status = iota
	StatusDeleted
)

func (s Status) String() string {
	if s == StatusDeleted {
		return "deleted"
	}
	return "new"
}

// FileMetadata is the closed tagged variant carried over the wire: exactly
// one of Song/Video is meaningful, chosen by IsVideo.
type FileMetadata struct {
	IsVideo bool
	Song    db.SongMeta
	Video   db.VideoMeta
}

// ID returns the metadata's FileHash regardless of kind.
func (m FileMetadata) ID() overlay.FileHash {
	if m.IsVideo {
		return m.Video.ID
	}
	return m.Song.ID
}

// CompactHash returns the metadata's computed digest regardless of kind.
func (m FileMetadata) CompactHash() overlay.FileHash {
	if m.IsVideo {
		return m.Video.CompactHash()
	}
	return m.Song.CompactHash()
}

// SubscribeClient announces a client and the files it already shares.
type SubscribeClient struct {
	ClientID       overlay.NodeId
	ClientType     db.ClientType
	AvailableFiles []FileMetadata
}

// UnsubscribeClient removes a client and its contribution to every peer set.
type UnsubscribeClient struct {
	ClientID overlay.NodeId
}

// UpdateFileList announces incremental file changes for an already-known
// client.
type UpdateFileList struct {
	ClientID     overlay.NodeId
	UpdatedFiles []struct {
		File   FileMetadata
		Status Status
	}
}

// RequestFileList asks for the full metadata list of the client's type.
type RequestFileList struct {
	ClientID overlay.NodeId
}

// RequestPeerList asks for the set of peers (and paths to them) sharing a
// given file.
type RequestPeerList struct {
	ClientID overlay.NodeId
	FileHash overlay.FileHash
}

// ResponseFileList answers RequestFileList.
type ResponseFileList struct {
	Files []FileMetadata
}

// PeerPath names one peer and the best known path to reach it.
type PeerPath struct {
	ClientID overlay.NodeId
	Path     []overlay.NodeId
}

// ResponsePeerList answers RequestPeerList.
type ResponsePeerList struct {
	FileHash overlay.FileHash
	Peers    []PeerPath
}

// ChunkKind distinguishes a chunk request for specific song segments from
// one for the entire stream. A song request must use ChunkIndexes; a video
// request is always served as the entire stream, whatever its kind.
type ChunkKind uint8

const (
	ChunkAll ChunkKind = iota
	ChunkIndexes
)

// ChunkRequest asks for one or more chunks of a file.
type ChunkRequest struct {
	ClientID  overlay.NodeId
	FileHash  overlay.FileHash
	Kind      ChunkKind
	Indexes   []uint32 // meaningful only when Kind == ChunkIndexes
}

// ChunkResponse carries one numbered chunk of data.
type ChunkResponse struct {
	FileHash   overlay.FileHash
	ChunkIndex uint32
	Data       []byte
}
