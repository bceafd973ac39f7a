package blob

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.etcd.io/bbolt"

	"ragledger/internal/models"
)

var (
	objectsBucket = []byte("objects")
	metaBucket    = []byte("meta")
)

// BoltStore keeps documents in a single bbolt file for local runs.
type BoltStore struct {
	db *bbolt.DB
}

func NewBoltStore(path string) (*BoltStore, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create %s: %w", dir, err)
		}
	}
	db, err := bbolt.Open(path, 0o600, &bbolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("failed to open blob store %s: %w", path, err)
	}
	err = db.Update(func(tx *bbolt.Tx) error {
		for _, name := range [][]byte{objectsBucket, metaBucket} {
			if _, err := tx.CreateBucketIfNotExists(name); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to init blob store: %w", err)
	}
	return &BoltStore{db: db}, nil
}

func (s *BoltStore) Name() string { return "local" }

func (s *BoltStore) Upload(_ context.Context, key string, body []byte, meta Metadata) error {
	metaJSON, err := json.Marshal(meta)
	if err != nil {
		return fmt.Errorf("failed to encode metadata: %w", err)
	}
	return s.db.Update(func(tx *bbolt.Tx) error {
		if err := tx.Bucket(objectsBucket).Put([]byte(key), body); err != nil {
			return fmt.Errorf("failed to store %s: %w", key, err)
		}
		return tx.Bucket(metaBucket).Put([]byte(key), metaJSON)
	})
}

func (s *BoltStore) List(_ context.Context, prefix string) ([]Object, error) {
	var objects []Object
	err := s.db.View(func(tx *bbolt.Tx) error {
		c := tx.Bucket(objectsBucket).Cursor()
		p := []byte(prefix)
		for k, _ := c.Seek(p); k != nil && bytes.HasPrefix(k, p); k, _ = c.Next() {
			objects = append(objects, Object{Key: string(k)})
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list %s: %w", prefix, err)
	}
	return objects, nil
}

func (s *BoltStore) Download(_ context.Context, key, dir string) (string, error) {
	var body []byte
	err := s.db.View(func(tx *bbolt.Tx) error {
		v := tx.Bucket(objectsBucket).Get([]byte(key))
		if v == nil {
			return fmt.Errorf("%w: %s", models.ErrNotFound, key)
		}
		// v is only valid inside the transaction
		body = append([]byte(nil), v...)
		return nil
	})
	if err != nil {
		return "", err
	}
	return writeTemp(dir, key, bytes.NewReader(body))
}

// Metadata returns what was stored with key.
func (s *BoltStore) Metadata(key string) (Metadata, error) {
	var meta Metadata
	err := s.db.View(func(tx *bbolt.Tx) error {
		v := tx.Bucket(metaBucket).Get([]byte(key))
		if v == nil {
			return fmt.Errorf("%w: %s", models.ErrNotFound, key)
		}
		return json.Unmarshal(v, &meta)
	})
	return meta, err
}

func (s *BoltStore) Ping(context.Context) error {
	return s.db.View(func(tx *bbolt.Tx) error {
		if tx.Bucket(objectsBucket) == nil {
			return fmt.Errorf("bucket %s missing", objectsBucket)
		}
		return nil
	})
}

func (s *BoltStore) Close() error {
	return s.db.Close()
}

var _ Store = (*BoltStore)(nil)
