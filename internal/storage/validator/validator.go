package validator

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/jgivc/tagsync/internal/storage/jsonfile"
	"github.com/spf13/afero"
)

const FileName = "etags.json"

// fileStore keeps the url -> validator map as a flat JSON object.
type fileStore struct {
	fs   afero.Fs
	path string
	log  *slog.Logger
}

func NewFileStore(fs afero.Fs, cacheDir string, log *slog.Logger) *fileStore {
	return &fileStore{
		fs:   fs,
		path: filepath.Join(cacheDir, FileName),
		log:  log.With(slog.String("item", "ValidatorFileStore")),
	}
}

func (s *fileStore) Load(_ context.Context) (map[string]string, error) {
	validators := make(map[string]string)

	found, err := jsonfile.Load(s.fs, s.path, &validators)
	if err != nil {
		return nil, fmt.Errorf("cannot load validators: %w", err)
	}

	if !found {
		s.log.Info("Validator cache not found, starting empty", slog.String("path", s.path))
	}

	if validators == nil {
		validators = make(map[string]string)
	}

	return validators, nil
}

func (s *fileStore) Save(_ context.Context, validators map[string]string) error {
	if validators == nil {
		validators = map[string]string{}
	}

	if err := jsonfile.Save(s.fs, s.path, validators); err != nil {
		return fmt.Errorf("cannot save validators: %w", err)
	}

	return nil
}
