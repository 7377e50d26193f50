package identity

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	bolt "go.etcd.io/bbolt"
)

var bucketIdentity = []byte("identity")

// BoltKV implements KV on a single bbolt file.  Writes are transactional, so
// a crash between mint and persist never leaves a half-written id behind.
type BoltKV struct {
	db *bolt.DB
}

// OpenBoltKV opens (or creates) the identity database at path.  The parent
// directory is created when missing.
func OpenBoltKV(path string) (*BoltKV, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, fmt.Errorf("identity: create dir: %w", err)
	}
	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("identity: bbolt open: %w", err)
	}
	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucketIdentity)
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("identity: create bucket: %w", err)
	}
	return &BoltKV{db: db}, nil
}

// Close closes the underlying bbolt database.
func (b *BoltKV) Close() error {
	return b.db.Close()
}

func (b *BoltKV) Get(key string) (string, bool, error) {
	var (
		value string
		found bool
	)
	err := b.db.View(func(tx *bolt.Tx) error {
		v := tx.Bucket(bucketIdentity).Get([]byte(key))
		if v != nil {
			// v is only valid inside the transaction.
			value = string(v)
			found = true
		}
		return nil
	})
	if err != nil {
		return "", false, fmt.Errorf("identity: get %s: %w", key, err)
	}
	return value, found, nil
}

func (b *BoltKV) Set(key, value string) error {
	err := b.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketIdentity).Put([]byte(key), []byte(value))
	})
	if err != nil {
		return fmt.Errorf("identity: set %s: %w", key, err)
	}
	return nil
}

func (b *BoltKV) Remove(key string) error {
	err := b.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketIdentity).Delete([]byte(key))
	})
	if err != nil {
		return fmt.Errorf("identity: remove %s: %w", key, err)
	}
	return nil
}
