package tracker

import (
	"fmt"

	"github.com/overlaymesh/trackerd/tracker/chunks"
	"github.com/overlaymesh/trackerd/tracker/db"
	"github.com/overlaymesh/trackerd/tracker/proto"
)

// handleChunkRequest implements C8: song segments are fetched by explicit
// index, video is read whole and split by the chunker. For video the best
// path is checked once up front and then resolved again by sendMessage for
// every chunk; for song it is resolved per requested segment.
func (s *Server) handleChunkRequest(m proto.ChunkRequest) {
	info, ok, err := s.db.GetClient(m.ClientID)
	if err != nil {
		s.log.Error("ChunkRequest: looking up client", "client", m.ClientID, "error", err)
		return
	}
	if !ok {
		s.log.Warn("ChunkRequest: unknown client", "client", m.ClientID)
		return
	}

	if info.Type == db.ClientTypeVideo {
		s.serveVideoChunks(m)
		return
	}
	s.serveSongChunks(m)
}

func (s *Server) serveSongChunks(m proto.ChunkRequest) {
	if m.Kind != proto.ChunkIndexes {
		s.log.Error("ChunkRequest: song request with All is invalid", "client", m.ClientID, "file", m.FileHash)
		return
	}

	for _, n := range m.Indexes {
		data, ok, err := s.db.GetSongPayload(m.FileHash, n)
		if err != nil || !ok {
			s.log.Error("ChunkRequest: missing song segment", "client", m.ClientID, "file", m.FileHash, "segment", n, "error", err)
			continue
		}
		resp := proto.ChunkResponse{FileHash: m.FileHash, ChunkIndex: n, Data: data}
		if err := s.sendMessage(m.ClientID, resp); err != nil {
			s.log.Error("ChunkRequest: sending song segment", "client", m.ClientID, "segment", n, "error", err)
		}
	}
}

func (s *Server) serveVideoChunks(m proto.ChunkRequest) {
	data, ok, err := s.db.GetVideoPayload(m.FileHash)
	if err != nil || !ok {
		s.log.Error("ChunkRequest: missing video payload", "client", m.ClientID, "file", m.FileHash, "error", err)
		return
	}

	if _, ok := s.routing.BestPath(s.id, m.ClientID); !ok {
		s.log.Error(fmt.Sprintf("ChunkRequest: no path to client %s", m.ClientID))
		return
	}

	c := chunks.New(data, s.chunkSize)
	index := uint32(0)
	for {
		chunk, ok := c.Next()
		if !ok {
			break
		}
		resp := proto.ChunkResponse{FileHash: m.FileHash, ChunkIndex: index, Data: chunk}
		if err := s.sendMessage(m.ClientID, resp); err != nil {
			s.log.Error("ChunkRequest: sending video chunk", "client", m.ClientID, "index", index, "error", err)
		}
		index++
	}
}
