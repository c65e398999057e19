package db

import (
	"bytes"
	"encoding/gob"
	"fmt"

	"go.etcd.io/bbolt"

	"github.com/overlaymesh/trackerd/overlay"
)

func clientKey(id overlay.NodeId) []byte {
	return []byte{byte(id)}
}

func encodeGob(v any) ([]byte, error) {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(v); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func decodeGob(data []byte, v any) error {
	return gob.NewDecoder(bytes.NewReader(data)).Decode(v)
}

// InsertClient stores (or replaces) a client's record.
func (d *Database) InsertClient(id overlay.NodeId, info ClientInfo) error {
	data, err := encodeGob(info)
	if err != nil {
		return fmt.Errorf("serializing client %s: %w", id, err)
	}
	return d.bolt.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(clientsBucket).Put(clientKey(id), data)
	})
}

// GetClient retrieves a client's record. ok is false if the client is
// unknown.
func (d *Database) GetClient(id overlay.NodeId) (info ClientInfo, ok bool, err error) {
	err = d.bolt.View(func(tx *bbolt.Tx) error {
		data := tx.Bucket(clientsBucket).Get(clientKey(id))
		if data == nil {
			return nil
		}
		ok = true
		return decodeGob(data, &info)
	})
	return
}

// ContainsClient reports whether id is a known client.
func (d *Database) ContainsClient(id overlay.NodeId) (bool, error) {
	var found bool
	err := d.bolt.View(func(tx *bbolt.Tx) error {
		found = tx.Bucket(clientsBucket).Get(clientKey(id)) != nil
		return nil
	})
	return found, err
}

// RemoveClient deletes a client's record. It does not touch any typed
// tree's peer sets — callers strip the client from peer sets separately
// (UnsubscribeClient's own responsibility per spec.md §4.6).
func (d *Database) RemoveClient(id overlay.NodeId) error {
	return d.bolt.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(clientsBucket).Delete(clientKey(id))
	})
}
