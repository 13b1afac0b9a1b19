package snapshot

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	bolt "go.etcd.io/bbolt"

	"veriflow/internal/session"
	"veriflow/pkg/domain"
	"veriflow/pkg/platform/sentinel"
)

var boltBucket = []byte("snapshots")

// BoltStore persists snapshots in a local bbolt file. This is the durable
// fallback for single-node deployments without Redis; expired entries are
// pruned lazily on load.
type BoltStore struct {
	db  *bolt.DB
	now func() time.Time
}

func NewBolt(path string) (*BoltStore, error) {
	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("open snapshot db: %w", err)
	}
	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(boltBucket)
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("create snapshot bucket: %w", err)
	}
	return &BoltStore{db: db, now: time.Now}, nil
}

func (s *BoltStore) Save(ctx context.Context, snap *session.Snapshot) error {
	raw, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("marshal snapshot: %w", err)
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(boltBucket).Put([]byte(snap.SessionID.String()), raw)
	})
}

func (s *BoltStore) Load(ctx context.Context, id domain.SessionID) (*session.Snapshot, error) {
	var snap session.Snapshot
	err := s.db.View(func(tx *bolt.Tx) error {
		raw := tx.Bucket(boltBucket).Get([]byte(id.String()))
		if raw == nil {
			return sentinel.ErrNotFound
		}
		return json.Unmarshal(raw, &snap)
	})
	if err != nil {
		return nil, err
	}
	if snap.Expired(s.now()) {
		_ = s.Delete(ctx, id)
		return nil, sentinel.ErrExpired
	}
	return &snap, nil
}

func (s *BoltStore) Delete(ctx context.Context, id domain.SessionID) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(boltBucket).Delete([]byte(id.String()))
	})
}

func (s *BoltStore) Close() error { return s.db.Close() }
