package store

import (
	"fmt"
	"path/filepath"
	"strings"

	bolt "go.etcd.io/bbolt"
)

// bucketKV is the single bucket every key lands in. The persistence layout
// ("snapshot/<schema_ver>/<ts>", "delta/<origin_peer>/<ts>", "meta/self")
// is entirely a naming convention over flat keys, not a bucket-per-kind
// split — a Sink has to support scan-by-arbitrary-prefix, which a single
// lexicographically-ordered bucket gives for free via bbolt's cursor.
var bucketKV = []byte("kv")

// BoltSink is a bbolt-backed Sink: one bucket-backed file under the
// data directory, db.Update for writes and db.View for reads.
type BoltSink struct {
	db *bolt.DB
}

// NewBoltSink opens (creating if absent) a bbolt database under dataDir.
func NewBoltSink(dataDir string) (*BoltSink, error) {
	dbPath := filepath.Join(dataDir, "horao.db")
	db, err := bolt.Open(dbPath, 0600, nil)
	if err != nil {
		return nil, fmt.Errorf("store: open database: %w", err)
	}
	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucketKV)
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("store: create bucket: %w", err)
	}
	return &BoltSink{db: db}, nil
}

// Put writes value at key, overwriting any prior value.
func (s *BoltSink) Put(key string, value []byte) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketKV).Put([]byte(key), value)
	})
}

// Get returns the value at key, or ok=false if absent.
func (s *BoltSink) Get(key string) ([]byte, bool, error) {
	var value []byte
	err := s.db.View(func(tx *bolt.Tx) error {
		v := tx.Bucket(bucketKV).Get([]byte(key))
		if v == nil {
			return nil
		}
		value = append([]byte(nil), v...)
		return nil
	})
	if err != nil {
		return nil, false, err
	}
	return value, value != nil, nil
}

// Scan returns every key/value pair whose key starts with prefix, in key
// order.
func (s *BoltSink) Scan(prefix string) ([]KV, error) {
	var out []KV
	err := s.db.View(func(tx *bolt.Tx) error {
		c := tx.Bucket(bucketKV).Cursor()
		p := []byte(prefix)
		for k, v := c.Seek(p); k != nil && strings.HasPrefix(string(k), prefix); k, v = c.Next() {
			out = append(out, KV{Key: string(k), Value: append([]byte(nil), v...)})
		}
		return nil
	})
	return out, err
}

// Close closes the underlying database file.
func (s *BoltSink) Close() error {
	return s.db.Close()
}
