package state

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/jgivc/tagsync/internal/entity"
	"github.com/jgivc/tagsync/internal/storage/jsonfile"
	"github.com/spf13/afero"
)

const (
	StateFileName    = "state.json"
	SnapshotFileName = "tags.json"
)

// stateStore persists the last sync time and the raw tag snapshot of the
// last catalog query.
type stateStore struct {
	fs       afero.Fs
	cacheDir string
	log      *slog.Logger
}

func NewStateStore(fs afero.Fs, cacheDir string, log *slog.Logger) *stateStore {
	return &stateStore{
		fs:       fs,
		cacheDir: cacheDir,
		log:      log.With(slog.String("item", "StateStore")),
	}
}

// LoadState returns the zero state when no sync has been recorded yet.
func (s *stateStore) LoadState(_ context.Context) (*entity.SyncState, error) {
	var st entity.SyncState

	path := filepath.Join(s.cacheDir, StateFileName)
	found, err := jsonfile.Load(s.fs, path, &st)
	if err != nil {
		return nil, fmt.Errorf("cannot load sync state: %w", err)
	}

	if !found {
		s.log.Info("Sync state not found, doing a full sync", slog.String("path", path))
	}

	return &st, nil
}

func (s *stateStore) SaveState(_ context.Context, st *entity.SyncState) error {
	if err := jsonfile.Save(s.fs, filepath.Join(s.cacheDir, StateFileName), st); err != nil {
		return fmt.Errorf("cannot save sync state: %w", err)
	}

	return nil
}

func (s *stateStore) LoadSnapshot(_ context.Context) ([]*entity.Tag, error) {
	var tags []*entity.Tag
	if _, err := jsonfile.Load(s.fs, filepath.Join(s.cacheDir, SnapshotFileName), &tags); err != nil {
		return nil, fmt.Errorf("cannot load tag snapshot: %w", err)
	}

	return tags, nil
}

func (s *stateStore) SaveSnapshot(_ context.Context, tags []*entity.Tag) error {
	if tags == nil {
		tags = []*entity.Tag{}
	}

	if err := jsonfile.Save(s.fs, filepath.Join(s.cacheDir, SnapshotFileName), tags); err != nil {
		return fmt.Errorf("cannot save tag snapshot: %w", err)
	}

	return nil
}
