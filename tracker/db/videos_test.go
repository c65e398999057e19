package db

import (
	"testing"

	"github.com/overlaymesh/trackerd/overlay"
)

func TestInsertVideoFileEntryAssignsHashWhenZero(t *testing.T) {
	d := openTestDB(t)
	meta := VideoMeta{Title: "Launch", Resolution: "1080p"}

	hash, err := d.InsertVideoFileEntry(meta, 10)
	if err != nil {
		t.Fatalf("InsertVideoFileEntry: %v", err)
	}
	if hash != meta.CompactHash() {
		t.Fatalf("hash = %s, want %s", hash, meta.CompactHash())
	}

	entry, ok, err := d.GetVideoEntry(hash)
	if err != nil || !ok {
		t.Fatalf("GetVideoEntry: ok=%v err=%v", ok, err)
	}
	if entry.Metadata.ID != hash {
		t.Fatalf("stored metadata.ID = %s, want %s", entry.Metadata.ID, hash)
	}
}

func TestVideoPayloadRoundTrip(t *testing.T) {
	d := openTestDB(t)
	hash := overlay.FileHash(7)
	blob := make([]byte, 1024)
	for i := range blob {
		blob[i] = byte(i)
	}

	if err := d.InsertVideoPayload(hash, blob); err != nil {
		t.Fatalf("InsertVideoPayload: %v", err)
	}

	got, ok, err := d.GetVideoPayload(hash)
	if err != nil || !ok {
		t.Fatalf("GetVideoPayload: ok=%v err=%v", ok, err)
	}
	if len(got) != len(blob) {
		t.Fatalf("len(got) = %d, want %d", len(got), len(blob))
	}
	for i := range blob {
		if got[i] != blob[i] {
			t.Fatalf("byte %d mismatch", i)
		}
	}
}

func TestGetAllVideosMetadataSkipsPayloadKeys(t *testing.T) {
	d := openTestDB(t)
	hash, _ := d.InsertVideoFileEntry(VideoMeta{Title: "Launch"}, 1)
	d.InsertVideoPayload(hash, []byte("blob"))

	metas, err := d.GetAllVideosMetadata()
	if err != nil {
		t.Fatalf("GetAllVideosMetadata: %v", err)
	}
	if len(metas) != 1 {
		t.Fatalf("expected exactly 1 metadata entry, got %d", len(metas))
	}
}

func TestRemovePeerFromVideosKeepsEntryWithEmptyPeers(t *testing.T) {
	d := openTestDB(t)
	hash, _ := d.InsertVideoFileEntry(VideoMeta{Title: "Launch"}, 1)

	if err := d.RemovePeerFromVideos(1); err != nil {
		t.Fatalf("RemovePeerFromVideos: %v", err)
	}

	entry, ok, _ := d.GetVideoEntry(hash)
	if !ok {
		t.Fatal("expected entry to be kept")
	}
	if len(entry.Peers) != 0 {
		t.Fatalf("expected empty peer set, got %v", entry.Peers)
	}
}
