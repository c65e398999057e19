package seed

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/overlaymesh/trackerd/tracker/db"
)

func writeFile(t *testing.T, path string, contents string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("MkdirAll: %v", err)
	}
	if err := os.WriteFile(path, []byte(contents), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
}

func TestSeedSongAndVideo(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "songs", "alpha", "stream.m3u8"), "#EXTM3U")
	writeFile(t, filepath.Join(root, "songs", "alpha", "segment0.ts"), "seg0-data")
	writeFile(t, filepath.Join(root, "songs", "alpha", "segment1.ts"), "seg1-data")
	writeFile(t, filepath.Join(root, "videos", "beta.mp4"), "video-bytes")

	database, err := db.Open(t.TempDir(), 1, nil)
	if err != nil {
		t.Fatalf("db.Open: %v", err)
	}
	defer database.Close()

	manifest := Manifest{
		Songs:  []SongSeed{{Title: "Alpha", Artist: "Someone", Duration: 180}},
		Videos: []VideoSeed{{Title: "Beta", Resolution: "1080p", Duration: 600}},
	}
	if err := Seed(database, 1, root, manifest, nil); err != nil {
		t.Fatalf("Seed: %v", err)
	}

	songs, err := database.GetAllSongsMetadata()
	if err != nil || len(songs) != 1 {
		t.Fatalf("GetAllSongsMetadata: %v, %v", songs, err)
	}
	entry, ok, err := database.GetSongEntry(songs[0].ID)
	if err != nil || !ok {
		t.Fatalf("GetSongEntry: ok=%v err=%v", ok, err)
	}
	if _, has := entry.Peers[1]; !has {
		t.Fatal("expected server 1 to be a peer of the seeded song")
	}

	manifestPayload, ok, err := database.GetSongPayload(songs[0].ID, 0)
	if err != nil || !ok || string(manifestPayload) != "#EXTM3U" {
		t.Fatalf("manifest payload = %q ok=%v err=%v", manifestPayload, ok, err)
	}
	seg0, ok, err := database.GetSongPayload(songs[0].ID, 1)
	if err != nil || !ok || string(seg0) != "seg0-data" {
		t.Fatalf("segment 0 payload = %q ok=%v err=%v", seg0, ok, err)
	}
	seg1, ok, err := database.GetSongPayload(songs[0].ID, 2)
	if err != nil || !ok || string(seg1) != "seg1-data" {
		t.Fatalf("segment 1 payload = %q ok=%v err=%v", seg1, ok, err)
	}

	videos, err := database.GetAllVideosMetadata()
	if err != nil || len(videos) != 1 {
		t.Fatalf("GetAllVideosMetadata: %v, %v", videos, err)
	}
	videoData, ok, err := database.GetVideoPayload(videos[0].ID)
	if err != nil || !ok || string(videoData) != "video-bytes" {
		t.Fatalf("video payload = %q ok=%v err=%v", videoData, ok, err)
	}
}

func TestSeedMissingManifestFile(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "songs", "alpha", "segment0.ts"), "seg0")

	database, err := db.Open(t.TempDir(), 1, nil)
	if err != nil {
		t.Fatalf("db.Open: %v", err)
	}
	defer database.Close()

	manifest := Manifest{Songs: []SongSeed{{Title: "Alpha"}}}
	if err := Seed(database, 1, root, manifest, nil); err != nil {
		t.Fatalf("Seed should log and continue, not fail: %v", err)
	}
	songs, err := database.GetAllSongsMetadata()
	if err != nil || len(songs) != 0 {
		t.Fatalf("expected no songs seeded, got %v err %v", songs, err)
	}
}
