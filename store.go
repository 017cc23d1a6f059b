package onboard

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/viant/onboard/model"
	"github.com/viant/onboard/service/dao"
	"github.com/viant/onboard/service/dao/criteria"
	"github.com/viant/onboard/service/dao/snapshot/bolt"
	"github.com/viant/onboard/service/dao/snapshot/fs"
	"github.com/viant/onboard/service/dao/snapshot/sqlite"
	"github.com/viant/onboard/service/dao/store"
)

// NewStore builds the snapshot store selected by cfg. It returns nil when no
// backend is configured. Stores holding resources implement io.Closer.
func NewStore(ctx context.Context, cfg PersistenceConfig, logger *slog.Logger) (dao.Service[string, model.Snapshot], error) {
	switch cfg.Backend {
	case "":
		return nil, nil
	case BackendMemory:
		return store.NewMemoryStore[string, model.Snapshot](snapshotKey, cfg.TTL, store.WithFilter[string, model.Snapshot](criteria.MatchSnapshot)), nil
	case BackendFS:
		ret, err := fs.New(cfg.URL, logger)
		if err != nil {
			return nil, err
		}
		return ret, nil
	case BackendBolt:
		ret, err := bolt.Open(cfg.URL, cfg.Bucket)
		if err != nil {
			return nil, err
		}
		return ret, nil
	case BackendSQLite:
		ret, err := sqlite.Open(ctx, cfg.URL)
		if err != nil {
			return nil, err
		}
		return ret, nil
	}
	return nil, fmt.Errorf("unsupported persistence backend: %q", cfg.Backend)
}

func snapshotKey(snapshot *model.Snapshot) string {
	return snapshot.Key
}
