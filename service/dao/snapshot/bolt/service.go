package bolt

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/viant/onboard/model"
	"github.com/viant/onboard/service/dao"
	"github.com/viant/onboard/service/dao/criteria"
	bbolt "go.etcd.io/bbolt"
)

// DefaultBucket holds snapshots unless configured otherwise.
const DefaultBucket = "snapshots"

// Service stores snapshots in a bbolt database, one JSON value per key.
type Service struct {
	db     *bbolt.DB
	bucket []byte
}

var _ dao.Service[string, model.Snapshot] = (*Service)(nil)

// Open opens (or creates) the database at filename.
func Open(filename string, bucket string) (*Service, error) {
	if bucket == "" {
		bucket = DefaultBucket
	}
	db, err := bbolt.Open(filename, 0644, &bbolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("failed to open bolt database %s: %w", filename, err)
	}
	ret := &Service{db: db, bucket: []byte(bucket)}
	err = db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(ret.bucket)
		return err
	})
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create bucket %s: %w", bucket, err)
	}
	return ret, nil
}

// Close releases the database.
func (s *Service) Close() error {
	return s.db.Close()
}

// Save persists a snapshot
func (s *Service) Save(_ context.Context, snapshot *model.Snapshot) error {
	if snapshot == nil {
		return dao.ErrNilEntity
	}
	if snapshot.Key == "" {
		return dao.ErrInvalidID
	}
	data, err := json.Marshal(snapshot)
	if err != nil {
		return fmt.Errorf("failed to marshal snapshot: %w", err)
	}
	return s.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(s.bucket).Put([]byte(snapshot.Key), data)
	})
}

// Load retrieves a snapshot
func (s *Service) Load(_ context.Context, key string) (*model.Snapshot, error) {
	if key == "" {
		return nil, dao.ErrInvalidID
	}
	var ret *model.Snapshot
	err := s.db.View(func(tx *bbolt.Tx) error {
		data := tx.Bucket(s.bucket).Get([]byte(key))
		if data == nil {
			return fmt.Errorf("snapshot %s: %w", key, dao.ErrNotFound)
		}
		ret = &model.Snapshot{}
		return json.Unmarshal(data, ret)
	})
	if err != nil {
		return nil, err
	}
	return ret, nil
}

// Delete removes a snapshot
func (s *Service) Delete(_ context.Context, key string) error {
	if key == "" {
		return dao.ErrInvalidID
	}
	return s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(s.bucket)
		if b.Get([]byte(key)) == nil {
			return fmt.Errorf("snapshot %s: %w", key, dao.ErrNotFound)
		}
		return b.Delete([]byte(key))
	})
}

// List returns all snapshots matching parameters, ordered by key
func (s *Service) List(_ context.Context, parameters ...*dao.Parameter) ([]*model.Snapshot, error) {
	var ret []*model.Snapshot
	err := s.db.View(func(tx *bbolt.Tx) error {
		c := tx.Bucket(s.bucket).Cursor()
		for k, v := c.First(); k != nil; k, v = c.Next() {
			snapshot := &model.Snapshot{}
			if err := json.Unmarshal(v, snapshot); err != nil {
				return fmt.Errorf("failed to unmarshal snapshot %s: %w", k, err)
			}
			if criteria.MatchSnapshot(snapshot, parameters) {
				ret = append(ret, snapshot)
			}
		}
		return nil
	})
	return ret, err
}
