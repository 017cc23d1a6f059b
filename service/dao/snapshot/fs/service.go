package fs

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"path"
	"strings"
	"sync"

	"github.com/viant/afs"
	"github.com/viant/afs/file"
	"github.com/viant/afs/option"
	"github.com/viant/afs/url"
	"github.com/viant/onboard/internal/logkeys"
	"github.com/viant/onboard/model"
	"github.com/viant/onboard/service/dao"
	"github.com/viant/onboard/service/dao/criteria"
)

// Service stores snapshots as JSON files under a base URL
type Service struct {
	basePath string
	fs       afs.Service
	logger   *slog.Logger
	mu       sync.RWMutex
}

// Ensure Service implements dao.Service
var _ dao.Service[string, model.Snapshot] = (*Service)(nil)

// Save persists a snapshot
func (s *Service) Save(ctx context.Context, snapshot *model.Snapshot) error {
	if snapshot == nil {
		return dao.ErrNilEntity
	}
	if snapshot.Key == "" {
		return dao.ErrInvalidID
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := json.Marshal(snapshot)
	if err != nil {
		return fmt.Errorf("failed to marshal snapshot: %w", err)
	}

	filePath := s.snapshotPath(snapshot.Key)
	if err = s.fs.Upload(ctx, filePath, file.DefaultFileOsMode, bytes.NewReader(data)); err != nil {
		return fmt.Errorf("failed to save snapshot to file %s: %w", filePath, err)
	}
	return nil
}

// Load retrieves a snapshot
func (s *Service) Load(ctx context.Context, key string) (*model.Snapshot, error) {
	if key == "" {
		return nil, dao.ErrInvalidID
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	filePath := s.snapshotPath(key)
	exists, err := s.fs.Exists(ctx, filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to check if snapshot exists: %w", err)
	}
	if !exists {
		return nil, fmt.Errorf("snapshot %s: %w", key, dao.ErrNotFound)
	}

	data, err := s.fs.DownloadWithURL(ctx, filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to read snapshot file: %w", err)
	}

	var snapshot model.Snapshot
	if err := json.Unmarshal(data, &snapshot); err != nil {
		return nil, fmt.Errorf("failed to unmarshal snapshot data: %w", err)
	}
	return &snapshot, nil
}

// Delete removes a snapshot
func (s *Service) Delete(ctx context.Context, key string) error {
	if key == "" {
		return dao.ErrInvalidID
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	filePath := s.snapshotPath(key)
	exists, err := s.fs.Exists(ctx, filePath)
	if err != nil {
		return fmt.Errorf("failed to check if snapshot exists: %w", err)
	}
	if !exists {
		return fmt.Errorf("snapshot %s: %w", key, dao.ErrNotFound)
	}
	if err := s.fs.Delete(ctx, filePath); err != nil {
		return fmt.Errorf("failed to delete snapshot file: %w", err)
	}
	return nil
}

// List returns all snapshots matching parameters
func (s *Service) List(ctx context.Context, parameters ...*dao.Parameter) ([]*model.Snapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	objects, err := s.fs.List(ctx, s.basePath, option.NewRecursive(true))
	if err != nil {
		return nil, fmt.Errorf("failed to list snapshot files: %w", err)
	}

	var snapshots []*model.Snapshot
	for _, object := range objects {
		if object.IsDir() || !strings.HasSuffix(object.Name(), ".json") {
			continue
		}
		data, err := s.fs.Download(ctx, object)
		if err != nil {
			s.logger.WarnContext(ctx, "failed to read snapshot file", slog.String("url", object.URL()), slog.Any(logkeys.Error, err))
			continue
		}
		var snapshot model.Snapshot
		if err := json.Unmarshal(data, &snapshot); err != nil {
			s.logger.WarnContext(ctx, "failed to unmarshal snapshot", slog.String("url", object.URL()), slog.Any(logkeys.Error, err))
			continue
		}
		if !criteria.MatchSnapshot(&snapshot, parameters) {
			continue
		}
		snapshots = append(snapshots, &snapshot)
	}
	return snapshots, nil
}

func (s *Service) snapshotPath(key string) string {
	return url.Join(s.basePath, fmt.Sprintf("%s.json", path.Base(key)))
}

// New creates a file based snapshot store rooted at basePath
func New(basePath string, logger *slog.Logger) (*Service, error) {
	if basePath == "" {
		return nil, fmt.Errorf("base path cannot be empty")
	}
	if logger == nil {
		logger = slog.Default()
	}
	fs := afs.New()
	basePath = url.Normalize(basePath, file.Scheme)

	ctx := context.Background()
	exists, _ := fs.Exists(ctx, basePath)
	if !exists {
		if err := fs.Create(ctx, basePath, file.DefaultDirOsMode, true); err != nil {
			return nil, fmt.Errorf("failed to create base directory: %w", err)
		}
	}
	return &Service{basePath: basePath, fs: fs, logger: logger}, nil
}
