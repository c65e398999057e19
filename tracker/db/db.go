package db

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"go.etcd.io/bbolt"
)

var (
	clientsBucket = []byte("clients")
	songsBucket   = []byte("songs")
	videoBucket   = []byte("video")

	allBuckets = [][]byte{clientsBucket, songsBucket, videoBucket}
)

// Database is one server's embedded content store: a single bbolt file
// under root/server-{id}/tracker.db, holding the clients, songs, and video
// buckets described by spec.md's Database.
type Database struct {
	log  *slog.Logger
	bolt *bbolt.DB
}

// Open creates or opens the database for serverID at
// root/server-{id}/tracker.db (with root "db", the directory is
// "db/server-{id}"). Failure here is fatal to the
// process, matching spec.md's "Database open failure at construction".
func Open(root string, serverID uint8, logger *slog.Logger) (*Database, error) {
	if logger == nil {
		logger = slog.Default()
	}
	dir := filepath.Join(root, fmt.Sprintf("server-%d", serverID))
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating database directory: %w", err)
	}

	bdb, err := bbolt.Open(filepath.Join(dir, "tracker.db"), 0o644, &bbolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	err = bdb.Update(func(tx *bbolt.Tx) error {
		for _, name := range allBuckets {
			if _, err := tx.CreateBucketIfNotExists(name); err != nil {
				return fmt.Errorf("creating bucket %q: %w", name, err)
			}
		}
		return nil
	})
	if err != nil {
		bdb.Close()
		return nil, err
	}

	return &Database{log: logger.WithGroup("db"), bolt: bdb}, nil
}

// Close flushes and closes the underlying store.
func (d *Database) Close() error {
	return d.bolt.Close()
}

// Clear empties every bucket, as done unconditionally before seeding on
// init. Failure here logs and aborts the run, not the process.
func (d *Database) Clear() error {
	return d.bolt.Update(func(tx *bbolt.Tx) error {
		for _, name := range allBuckets {
			if err := tx.DeleteBucket(name); err != nil && err != bbolt.ErrBucketNotFound {
				return fmt.Errorf("clearing bucket %q: %w", name, err)
			}
			if _, err := tx.CreateBucket(name); err != nil {
				return fmt.Errorf("recreating bucket %q: %w", name, err)
			}
		}
		return nil
	})
}

// entryKey is the 2-byte big-endian encoding of a FileHash, the key under
// which a FileEntry is stored.
func entryKey(hash uint16) []byte {
	return []byte{byte(hash >> 8), byte(hash)}
}

// isEntryKey reports whether key is an entry key (exactly 2 bytes) as
// opposed to a payload key ("ts{n}:{hash}" / "pl:{hash}"), which is always
// a longer ASCII string with a non-numeric prefix.
func isEntryKey(key []byte) bool {
	return len(key) == 2
}

func decodeEntryKey(key []byte) uint16 {
	return uint16(key[0])<<8 | uint16(key[1])
}
