package db

import (
	"fmt"

	"go.etcd.io/bbolt"

	"github.com/overlaymesh/trackerd/overlay"
)

func songPayloadKey(segment uint32, hash overlay.FileHash) []byte {
	return []byte(fmt.Sprintf("ts%d:%d", segment, uint16(hash)))
}

// GetSongEntry retrieves the entry stored at hash. ok is false if absent.
func (d *Database) GetSongEntry(hash overlay.FileHash) (entry SongEntry, ok bool, err error) {
	err = d.bolt.View(func(tx *bbolt.Tx) error {
		data := tx.Bucket(songsBucket).Get(entryKey(uint16(hash)))
		if data == nil {
			return nil
		}
		ok = true
		return decodeGob(data, &entry)
	})
	return
}

// InsertSongFileEntry inserts or merges a song entry. If meta.ID is zero,
// a hash is computed from the metadata's structural fields and assigned.
// If an entry already exists at the resulting hash, peer is added to its
// peer set (union, idempotent); otherwise a fresh entry is created with
// peer as its sole member. Returns the (possibly newly-assigned) hash.
func (d *Database) InsertSongFileEntry(meta SongMeta, peer overlay.NodeId) (overlay.FileHash, error) {
	hash := meta.ID
	if hash.IsZero() {
		hash = meta.CompactHash()
		meta.ID = hash
	}

	existing, ok, err := d.GetSongEntry(hash)
	if err != nil {
		return 0, err
	}

	entry := SongEntry{Metadata: meta}
	if ok {
		entry.Peers = existing.Peers
		if entry.Peers == nil {
			entry.Peers = newPeerSet()
		}
	} else {
		entry.Peers = newPeerSet()
	}
	entry.Peers[peer] = struct{}{}

	data, err := encodeGob(entry)
	if err != nil {
		return 0, fmt.Errorf("serializing song entry %s: %w", hash, err)
	}
	err = d.bolt.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(songsBucket).Put(entryKey(uint16(hash)), data)
	})
	if err != nil {
		return 0, err
	}
	return hash, nil
}

// InsertSongPayload stores segment n's bytes ("ts0" is the playlist
// manifest, "ts{k+1}" is media segment k).
func (d *Database) InsertSongPayload(hash overlay.FileHash, segment uint32, data []byte) error {
	return d.bolt.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(songsBucket).Put(songPayloadKey(segment, hash), data)
	})
}

// GetSongPayload retrieves segment n's bytes for the given hash.
func (d *Database) GetSongPayload(hash overlay.FileHash, segment uint32) (data []byte, ok bool, err error) {
	err = d.bolt.View(func(tx *bbolt.Tx) error {
		v := tx.Bucket(songsBucket).Get(songPayloadKey(segment, hash))
		if v == nil {
			return nil
		}
		ok = true
		data = append([]byte(nil), v...)
		return nil
	})
	return
}

// GetAllSongsMetadata returns the metadata of every song entry, skipping
// payload keys.
func (d *Database) GetAllSongsMetadata() ([]SongMeta, error) {
	var metas []SongMeta
	err := d.bolt.View(func(tx *bbolt.Tx) error {
		return tx.Bucket(songsBucket).ForEach(func(k, v []byte) error {
			if !isEntryKey(k) {
				return nil
			}
			var entry SongEntry
			if err := decodeGob(v, &entry); err != nil {
				d.log.Error("corrupt song entry, skipping", "key", decodeEntryKey(k), "error", err)
				return nil
			}
			metas = append(metas, entry.Metadata)
			return nil
		})
	})
	return metas, err
}

// RemoveSong deletes a song entry (not its payload keys).
func (d *Database) RemoveSong(hash overlay.FileHash) error {
	return d.bolt.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(songsBucket).Delete(entryKey(uint16(hash)))
	})
}

// RemovePeerFromSongs strips peer from every song entry's peer set. Entries
// whose peer set becomes empty are kept, since files are server-owned too.
func (d *Database) RemovePeerFromSongs(peer overlay.NodeId) error {
	return d.bolt.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(songsBucket)
		type update struct {
			key  []byte
			data []byte
		}
		var updates []update
		err := b.ForEach(func(k, v []byte) error {
			if !isEntryKey(k) {
				return nil
			}
			var entry SongEntry
			if err := decodeGob(v, &entry); err != nil {
				d.log.Error("corrupt song entry, skipping", "key", decodeEntryKey(k), "error", err)
				return nil
			}
			if _, present := entry.Peers[peer]; !present {
				return nil
			}
			delete(entry.Peers, peer)
			data, err := encodeGob(entry)
			if err != nil {
				return fmt.Errorf("serializing song entry: %w", err)
			}
			updates = append(updates, update{key: append([]byte(nil), k...), data: data})
			return nil
		})
		if err != nil {
			return err
		}
		for _, u := range updates {
			if err := b.Put(u.key, u.data); err != nil {
				return err
			}
		}
		return nil
	})
}
