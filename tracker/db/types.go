// Package db is the content database: typed, bbolt-backed trees for
// clients, songs, and videos, with hash-addressed entries, companion
// payload keys, and peer-set maintenance.
package db

import (
	"fmt"

	"github.com/overlaymesh/trackerd/overlay"
)

// ClientType tags which typed tree a client's shared files belong to.
type ClientType uint8

const (
	ClientTypeSong ClientType = iota
	ClientTypeVideo
)

func (t ClientType) String() string {
	switch t {
	case ClientTypeSong:
		return "song"
	case ClientTypeVideo:
		return "video"
	default:
		return "unknown"
	}
}

// SongMeta is the structural metadata for a song, used to compute its
// compact hash when one isn't already assigned.
type SongMeta struct {
	ID       overlay.FileHash
	Title    string
	Artist   string
	Duration uint32 // seconds
}

// CompactHash computes the 16-bit digest of the song's structural fields,
// independent of ID.
func (m SongMeta) CompactHash() overlay.FileHash {
	return overlay.FileHash(overlay.Fletcher16(songHashInput(m)))
}

func songHashInput(m SongMeta) []byte {
	return []byte(fmt.Sprintf("song|%s|%s|%d", m.Title, m.Artist, m.Duration))
}

// VideoMeta is the structural metadata for a video.
type VideoMeta struct {
	ID         overlay.FileHash
	Title      string
	Resolution string
	Duration   uint32 // seconds
}

// CompactHash computes the 16-bit digest of the video's structural fields,
// independent of ID.
func (m VideoMeta) CompactHash() overlay.FileHash {
	return overlay.FileHash(overlay.Fletcher16(videoHashInput(m)))
}

func videoHashInput(m VideoMeta) []byte {
	return []byte(fmt.Sprintf("video|%s|%s|%d", m.Title, m.Resolution, m.Duration))
}

// SongEntry is a songs-tree value: metadata plus the set of nodes known to
// hold a copy.
type SongEntry struct {
	Metadata SongMeta
	Peers    map[overlay.NodeId]struct{}
}

// VideoEntry is a video-tree value.
type VideoEntry struct {
	Metadata VideoMeta
	Peers    map[overlay.NodeId]struct{}
}

// ClientInfo is a clients-tree value.
type ClientInfo struct {
	Type        ClientType
	SharedFiles map[overlay.FileHash]struct{}
}

func newPeerSet(initial ...overlay.NodeId) map[overlay.NodeId]struct{} {
	s := make(map[overlay.NodeId]struct{}, len(initial))
	for _, id := range initial {
		s[id] = struct{}{}
	}
	return s
}
