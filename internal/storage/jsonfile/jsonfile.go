package jsonfile

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/afero"
)

const tempSuffix = ".tmp"

// Load decodes the JSON file at path into v. It returns false without an
// error when the file does not exist.
func Load(fs afero.Fs, path string, v any) (bool, error) {
	data, err := afero.ReadFile(fs, path)
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}

		return false, fmt.Errorf("cannot read %s: %w", path, err)
	}

	if err := json.Unmarshal(data, v); err != nil {
		return false, fmt.Errorf("cannot decode %s: %w", path, err)
	}

	return true, nil
}

// Save encodes v as indented JSON and replaces path atomically through a
// temporary file in the same directory.
func Save(fs afero.Fs, path string, v any) error {
	if err := fs.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("cannot create dir for %s: %w", path, err)
	}

	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("cannot encode %s: %w", path, err)
	}

	tmp := path + tempSuffix
	if err := afero.WriteFile(fs, tmp, data, 0o644); err != nil {
		return fmt.Errorf("cannot write %s: %w", tmp, err)
	}

	if err := fs.Rename(tmp, path); err != nil {
		fs.Remove(tmp)

		return fmt.Errorf("cannot replace %s: %w", path, err)
	}

	return nil
}
