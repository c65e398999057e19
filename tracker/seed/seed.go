// Package seed loads a server's initial content catalog from disk: a JSON
// manifest naming songs and videos, plus the on-disk file-tree layout
// spec.md §6 describes for locating their payload bytes.
package seed

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/overlaymesh/trackerd/overlay"
	"github.com/overlaymesh/trackerd/tracker/db"
)

// SongSeed names one song's structural metadata, as read from the JSON
// manifest; its payload lives on disk under LocalPath/songs/{normalized}/.
type SongSeed struct {
	Title    string `json:"title"`
	Artist   string `json:"artist"`
	Duration uint32 `json:"duration"`
}

// VideoSeed names one video's structural metadata; its payload lives at
// LocalPath/videos/{normalized}.mp4.
type VideoSeed struct {
	Title      string `json:"title"`
	Resolution string `json:"resolution"`
	Duration   uint32 `json:"duration"`
}

// Manifest is the JSON document naming every song and video a server seeds
// at startup.
type Manifest struct {
	Songs  []SongSeed  `json:"songs"`
	Videos []VideoSeed `json:"videos"`
}

// LoadManifest reads and parses a seed manifest from path.
func LoadManifest(path string) (Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Manifest{}, fmt.Errorf("reading manifest %s: %w", path, err)
	}
	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return Manifest{}, fmt.Errorf("parsing manifest %s: %w", path, err)
	}
	return m, nil
}

// normalize matches original_source/src/database/insert_songs.rs's
// title-to-directory-name rule: lowercase, spaces stripped.
func normalize(title string) string {
	return strings.ToLower(strings.ReplaceAll(title, " ", ""))
}

// Seed clears database and loads every song and video named in manifest,
// reading payload bytes from the on-disk layout rooted at localPath, with
// self recorded as the first peer of every seeded file.
func Seed(database *db.Database, self overlay.NodeId, localPath string, manifest Manifest, logger *slog.Logger) error {
	if logger == nil {
		logger = slog.Default()
	}
	log := logger.WithGroup("seed")

	if err := database.Clear(); err != nil {
		return fmt.Errorf("clearing database: %w", err)
	}

	for _, song := range manifest.Songs {
		if err := seedSong(database, self, localPath, song, log); err != nil {
			log.Error("seeding song", "title", song.Title, "error", err)
			continue
		}
	}
	for _, video := range manifest.Videos {
		if err := seedVideo(database, self, localPath, video, log); err != nil {
			log.Error("seeding video", "title", video.Title, "error", err)
			continue
		}
	}
	return nil
}

func seedSong(database *db.Database, self overlay.NodeId, localPath string, song SongSeed, log *slog.Logger) error {
	dir := filepath.Join(localPath, "songs", normalize(song.Title))
	entries, err := os.ReadDir(dir)
	if err != nil {
		return fmt.Errorf("reading song directory %s: %w", dir, err)
	}

	var manifestFile string
	segments := make(map[int]string)
	for _, e := range entries {
		name := e.Name()
		switch {
		case strings.HasSuffix(name, ".m3u8"):
			manifestFile = name
		case strings.HasPrefix(name, "segment") && strings.HasSuffix(name, ".ts"):
			numStr := strings.TrimSuffix(strings.TrimPrefix(name, "segment"), ".ts")
			n, err := strconv.Atoi(numStr)
			if err != nil {
				log.Warn("unrecognized segment filename, skipping", "file", name)
				continue
			}
			segments[n] = name
		}
	}
	if manifestFile == "" {
		return fmt.Errorf("no .m3u8 manifest found in %s", dir)
	}

	hash, err := database.InsertSongFileEntry(db.SongMeta{Title: song.Title, Artist: song.Artist, Duration: song.Duration}, self)
	if err != nil {
		return fmt.Errorf("inserting song entry: %w", err)
	}

	manifestData, err := os.ReadFile(filepath.Join(dir, manifestFile))
	if err != nil {
		return fmt.Errorf("reading manifest file: %w", err)
	}
	if err := database.InsertSongPayload(hash, 0, manifestData); err != nil {
		return fmt.Errorf("inserting manifest payload: %w", err)
	}

	nums := make([]int, 0, len(segments))
	for n := range segments {
		nums = append(nums, n)
	}
	sort.Ints(nums)
	for _, n := range nums {
		data, err := os.ReadFile(filepath.Join(dir, segments[n]))
		if err != nil {
			return fmt.Errorf("reading segment %d: %w", n, err)
		}
		if err := database.InsertSongPayload(hash, uint32(n+1), data); err != nil {
			return fmt.Errorf("inserting segment %d payload: %w", n, err)
		}
	}

	log.Info("seeded song", "title", song.Title, "hash", hash, "segments", len(nums))
	return nil
}

func seedVideo(database *db.Database, self overlay.NodeId, localPath string, video VideoSeed, log *slog.Logger) error {
	path := filepath.Join(localPath, "videos", normalize(video.Title)+".mp4")
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading video file %s: %w", path, err)
	}

	hash, err := database.InsertVideoFileEntry(db.VideoMeta{Title: video.Title, Resolution: video.Resolution, Duration: video.Duration}, self)
	if err != nil {
		return fmt.Errorf("inserting video entry: %w", err)
	}
	if err := database.InsertVideoPayload(hash, data); err != nil {
		return fmt.Errorf("inserting video payload: %w", err)
	}

	log.Info("seeded video", "title", video.Title, "hash", hash, "bytes", len(data))
	return nil
}
