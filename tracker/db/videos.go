package db

import (
	"fmt"

	"go.etcd.io/bbolt"

	"github.com/overlaymesh/trackerd/overlay"
)

func videoPayloadKey(hash overlay.FileHash) []byte {
	return []byte(fmt.Sprintf("pl:%d", uint16(hash)))
}

// GetVideoEntry retrieves the entry stored at hash. ok is false if absent.
func (d *Database) GetVideoEntry(hash overlay.FileHash) (entry VideoEntry, ok bool, err error) {
	err = d.bolt.View(func(tx *bbolt.Tx) error {
		data := tx.Bucket(videoBucket).Get(entryKey(uint16(hash)))
		if data == nil {
			return nil
		}
		ok = true
		return decodeGob(data, &entry)
	})
	return
}

// InsertVideoFileEntry inserts or merges a video entry, assigning a hash
// from the metadata's structural fields if meta.ID is zero. Mirrors
// InsertSongFileEntry, supplying the video branch the original reference
// left as a TODO.
func (d *Database) InsertVideoFileEntry(meta VideoMeta, peer overlay.NodeId) (overlay.FileHash, error) {
	hash := meta.ID
	if hash.IsZero() {
		hash = meta.CompactHash()
		meta.ID = hash
	}

	existing, ok, err := d.GetVideoEntry(hash)
	if err != nil {
		return 0, err
	}

	entry := VideoEntry{Metadata: meta}
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
		return 0, fmt.Errorf("serializing video entry %s: %w", hash, err)
	}
	err = d.bolt.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(videoBucket).Put(entryKey(uint16(hash)), data)
	})
	if err != nil {
		return 0, err
	}
	return hash, nil
}

// InsertVideoPayload stores the monolithic video blob.
func (d *Database) InsertVideoPayload(hash overlay.FileHash, data []byte) error {
	return d.bolt.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(videoBucket).Put(videoPayloadKey(hash), data)
	})
}

// GetVideoPayload retrieves the monolithic video blob.
func (d *Database) GetVideoPayload(hash overlay.FileHash) (data []byte, ok bool, err error) {
	err = d.bolt.View(func(tx *bbolt.Tx) error {
		v := tx.Bucket(videoBucket).Get(videoPayloadKey(hash))
		if v == nil {
			return nil
		}
		ok = true
		data = append([]byte(nil), v...)
		return nil
	})
	return
}

// GetAllVideosMetadata returns the metadata of every video entry, skipping
// payload keys.
func (d *Database) GetAllVideosMetadata() ([]VideoMeta, error) {
	var metas []VideoMeta
	err := d.bolt.View(func(tx *bbolt.Tx) error {
		return tx.Bucket(videoBucket).ForEach(func(k, v []byte) error {
			if !isEntryKey(k) {
				return nil
			}
			var entry VideoEntry
			if err := decodeGob(v, &entry); err != nil {
				d.log.Error("corrupt video entry, skipping", "key", decodeEntryKey(k), "error", err)
				return nil
			}
			metas = append(metas, entry.Metadata)
			return nil
		})
	})
	return metas, err
}

// RemoveVideo deletes a video entry (not its payload key).
func (d *Database) RemoveVideo(hash overlay.FileHash) error {
	return d.bolt.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(videoBucket).Delete(entryKey(uint16(hash)))
	})
}

// RemovePeerFromVideos strips peer from every video entry's peer set.
func (d *Database) RemovePeerFromVideos(peer overlay.NodeId) error {
	return d.bolt.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(videoBucket)
		type update struct {
			key  []byte
			data []byte
		}
		var updates []update
		err := b.ForEach(func(k, v []byte) error {
			if !isEntryKey(k) {
				return nil
			}
			var entry VideoEntry
			if err := decodeGob(v, &entry); err != nil {
				d.log.Error("corrupt video entry, skipping", "key", decodeEntryKey(k), "error", err)
				return nil
			}
			if _, present := entry.Peers[peer]; !present {
				return nil
			}
			delete(entry.Peers, peer)
			data, err := encodeGob(entry)
			if err != nil {
				return fmt.Errorf("serializing video entry: %w", err)
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
