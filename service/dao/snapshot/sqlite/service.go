package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/viant/onboard/model"
	"github.com/viant/onboard/service/dao"
	"github.com/viant/onboard/service/dao/criteria"
	_ "modernc.org/sqlite"
)

// DriverName is the database/sql driver registered by modernc.org/sqlite.
const DriverName = "sqlite"

// Service stores snapshots in a SQLite table.
type Service struct {
	db *sql.DB
}

var _ dao.Service[string, model.Snapshot] = (*Service)(nil)

// Open opens the database at dsn (":memory:" for an in-memory database)
// and prepares the schema.
func Open(ctx context.Context, dsn string) (*Service, error) {
	db, err := sql.Open(DriverName, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite %s: %w", dsn, err)
	}
	db.SetMaxOpenConns(1)
	ret, err := New(ctx, db)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	return ret, nil
}

// New wraps db and creates the snapshot table when missing.
func New(ctx context.Context, db *sql.DB) (*Service, error) {
	ret := &Service{db: db}
	if err := ret.initSchema(ctx); err != nil {
		return nil, fmt.Errorf("failed to init snapshot schema: %w", err)
	}
	return ret, nil
}

func (s *Service) initSchema(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS snapshots (
			snapshot_key TEXT PRIMARY KEY,
			current_step_id TEXT NOT NULL,
			data BLOB NOT NULL,
			saved_at INTEGER NOT NULL
		);`,
	)
	return err
}

// Close releases the database.
func (s *Service) Close() error {
	return s.db.Close()
}

// Save inserts or replaces a snapshot
func (s *Service) Save(ctx context.Context, snapshot *model.Snapshot) error {
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
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO snapshots (snapshot_key, current_step_id, data, saved_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(snapshot_key) DO UPDATE SET current_step_id = excluded.current_step_id, data = excluded.data, saved_at = excluded.saved_at`,
		snapshot.Key,
		snapshot.CurrentStepID,
		data,
		snapshot.SavedAt.UnixNano(),
	)
	return err
}

// Load retrieves a snapshot
func (s *Service) Load(ctx context.Context, key string) (*model.Snapshot, error) {
	if key == "" {
		return nil, dao.ErrInvalidID
	}
	var data []byte
	err := s.db.QueryRowContext(ctx, `SELECT data FROM snapshots WHERE snapshot_key = ?`, key).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("snapshot %s: %w", key, dao.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return decode(data)
}

// Delete removes a snapshot
func (s *Service) Delete(ctx context.Context, key string) error {
	if key == "" {
		return dao.ErrInvalidID
	}
	res, err := s.db.ExecContext(ctx, `DELETE FROM snapshots WHERE snapshot_key = ?`, key)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return fmt.Errorf("snapshot %s: %w", key, dao.ErrNotFound)
	}
	return nil
}

// List returns snapshots matching parameters, most recently saved first
func (s *Service) List(ctx context.Context, parameters ...*dao.Parameter) ([]*model.Snapshot, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT data FROM snapshots ORDER BY saved_at DESC, snapshot_key`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ret []*model.Snapshot
	for rows.Next() {
		var data []byte
		if err := rows.Scan(&data); err != nil {
			return nil, err
		}
		snapshot, err := decode(data)
		if err != nil {
			return nil, err
		}
		if criteria.MatchSnapshot(snapshot, parameters) {
			ret = append(ret, snapshot)
		}
	}
	return ret, rows.Err()
}

// Prune removes snapshots saved before cutoff and returns how many were removed.
func (s *Service) Prune(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM snapshots WHERE saved_at < ?`, cutoff.UnixNano())
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func decode(data []byte) (*model.Snapshot, error) {
	ret := &model.Snapshot{}
	if err := json.Unmarshal(data, ret); err != nil {
		return nil, fmt.Errorf("failed to unmarshal snapshot: %w", err)
	}
	return ret, nil
}
