package tracker

import (
	"github.com/overlaymesh/trackerd/overlay"
	"github.com/overlaymesh/trackerd/tracker/db"
	"github.com/overlaymesh/trackerd/tracker/proto"
)

// verifyHash rejects a FileMetadata whose declared id does not match its
// own compact hash, per the hash-mismatch policy of C7. A zero id means
// "unassigned" and always passes — insertFile's DB layer computes and
// assigns the real hash for it.
func verifyHash(m proto.FileMetadata) bool {
	if m.ID().IsZero() {
		return true
	}
	return m.ID() == m.CompactHash()
}

func (s *Server) insertFile(m proto.FileMetadata, peer overlay.NodeId) (overlay.FileHash, error) {
	if m.IsVideo {
		return s.db.InsertVideoFileEntry(m.Video, peer)
	}
	return s.db.InsertSongFileEntry(m.Song, peer)
}

func (s *Server) removeFile(m proto.FileMetadata) error {
	if m.IsVideo {
		return s.db.RemoveVideo(m.ID())
	}
	return s.db.RemoveSong(m.ID())
}

func (s *Server) handleSubscribeClient(m proto.SubscribeClient) {
	known, err := s.db.ContainsClient(m.ClientID)
	if err != nil {
		s.log.Error("SubscribeClient: checking client", "client", m.ClientID, "error", err)
		return
	}
	if known {
		s.log.Warn("SubscribeClient: client already known", "client", m.ClientID)
		return
	}

	shared := make(map[overlay.FileHash]struct{}, len(m.AvailableFiles))
	for _, file := range m.AvailableFiles {
		if !verifyHash(file) {
			s.log.Error("SubscribeClient: hash mismatch, skipping file", "client", m.ClientID, "declared", file.ID())
			continue
		}
		hash, err := s.insertFile(file, m.ClientID)
		if err != nil {
			s.log.Error("SubscribeClient: inserting file", "client", m.ClientID, "error", err)
			continue
		}
		shared[hash] = struct{}{}
	}

	info := db.ClientInfo{SharedFiles: shared}
	if m.ClientType == db.ClientTypeVideo {
		info.Type = db.ClientTypeVideo
	} else {
		info.Type = db.ClientTypeSong
	}
	if err := s.db.InsertClient(m.ClientID, info); err != nil {
		s.log.Error("SubscribeClient: inserting client", "client", m.ClientID, "error", err)
	}
}

func (s *Server) handleUnsubscribeClient(m proto.UnsubscribeClient) {
	info, ok, err := s.db.GetClient(m.ClientID)
	if err != nil {
		s.log.Error("UnsubscribeClient: looking up client", "client", m.ClientID, "error", err)
		return
	}
	if !ok {
		s.log.Warn("UnsubscribeClient: unknown client", "client", m.ClientID)
		return
	}

	var stripErr error
	if info.Type == db.ClientTypeVideo {
		stripErr = s.db.RemovePeerFromVideos(m.ClientID)
	} else {
		stripErr = s.db.RemovePeerFromSongs(m.ClientID)
	}
	if stripErr != nil {
		s.log.Error("UnsubscribeClient: stripping peer", "client", m.ClientID, "error", stripErr)
	}
	if err := s.db.RemoveClient(m.ClientID); err != nil {
		s.log.Error("UnsubscribeClient: removing client", "client", m.ClientID, "error", err)
	}
}

func (s *Server) handleUpdateFileList(m proto.UpdateFileList) {
	known, err := s.db.ContainsClient(m.ClientID)
	if err != nil {
		s.log.Error("UpdateFileList: checking client", "client", m.ClientID, "error", err)
		return
	}
	if !known {
		s.log.Warn("UpdateFileList: unknown client", "client", m.ClientID)
		return
	}

	for _, entry := range m.UpdatedFiles {
		if !verifyHash(entry.File) {
			s.log.Error("UpdateFileList: hash mismatch, skipping file", "client", m.ClientID, "declared", entry.File.ID())
			continue
		}
		switch entry.Status {
		case proto.StatusNew:
			if _, err := s.insertFile(entry.File, m.ClientID); err != nil {
				s.log.Error("UpdateFileList: inserting file", "client", m.ClientID, "error", err)
			}
		case proto.StatusDeleted:
			if err := s.removeFile(entry.File); err != nil {
				s.log.Error("UpdateFileList: removing file", "client", m.ClientID, "error", err)
			}
		}
	}
}

func (s *Server) handleRequestFileList(m proto.RequestFileList) {
	info, ok, err := s.db.GetClient(m.ClientID)
	if err != nil {
		s.log.Error("RequestFileList: looking up client", "client", m.ClientID, "error", err)
		return
	}
	if !ok {
		s.log.Warn("RequestFileList: unknown client", "client", m.ClientID)
		return
	}

	var files []proto.FileMetadata
	if info.Type == db.ClientTypeVideo {
		metas, err := s.db.GetAllVideosMetadata()
		if err != nil {
			s.log.Error("RequestFileList: listing videos", "error", err)
			return
		}
		for _, meta := range metas {
			files = append(files, proto.FileMetadata{IsVideo: true, Video: meta})
		}
	} else {
		metas, err := s.db.GetAllSongsMetadata()
		if err != nil {
			s.log.Error("RequestFileList: listing songs", "error", err)
			return
		}
		for _, meta := range metas {
			files = append(files, proto.FileMetadata{Song: meta})
		}
	}

	if err := s.sendMessage(m.ClientID, proto.ResponseFileList{Files: files}); err != nil {
		s.log.Error("RequestFileList: sending response", "client", m.ClientID, "error", err)
	}
}

func (s *Server) handleRequestPeerList(m proto.RequestPeerList) {
	info, ok, err := s.db.GetClient(m.ClientID)
	if err != nil {
		s.log.Error("RequestPeerList: looking up client", "client", m.ClientID, "error", err)
		return
	}
	if !ok {
		s.log.Warn("RequestPeerList: unknown client", "client", m.ClientID)
		return
	}

	var peerIDs []overlay.NodeId
	if info.Type == db.ClientTypeVideo {
		entry, ok, err := s.db.GetVideoEntry(m.FileHash)
		if err != nil || !ok {
			s.log.Error("RequestPeerList: looking up video entry", "file", m.FileHash, "error", err)
			return
		}
		for peer := range entry.Peers {
			peerIDs = append(peerIDs, peer)
		}
	} else {
		entry, ok, err := s.db.GetSongEntry(m.FileHash)
		if err != nil || !ok {
			s.log.Error("RequestPeerList: looking up song entry", "file", m.FileHash, "error", err)
			return
		}
		for peer := range entry.Peers {
			peerIDs = append(peerIDs, peer)
		}
	}

	var peers []proto.PeerPath
	for _, peer := range peerIDs {
		path, ok := s.routing.BestPath(peer, m.ClientID)
		if !ok {
			s.log.Warn("RequestPeerList: no path to client, skipping peer", "peer", peer, "client", m.ClientID)
			continue
		}
		peers = append(peers, proto.PeerPath{ClientID: peer, Path: path})
	}

	resp := proto.ResponsePeerList{FileHash: m.FileHash, Peers: peers}
	if err := s.sendMessage(m.ClientID, resp); err != nil {
		s.log.Error("RequestPeerList: sending response", "client", m.ClientID, "error", err)
	}
}
