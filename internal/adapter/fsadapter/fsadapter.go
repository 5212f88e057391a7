package fsadapter

import (
	"fmt"
	"image"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	_ "golang.org/x/image/webp"

	"github.com/jgivc/tagsync/internal/entity"
	"github.com/jgivc/tagsync/internal/util"
	"github.com/spf13/afero"
)

const (
	AltDirName = "alt"

	sniffPartSize = 3072
	tempPattern   = ".download-*"
)

var (
	duplicateMarkerRegexp = regexp.MustCompile(`\s\(\d+\)$`)
)

type fsAdapter struct {
	fs  afero.Fs
	dir string
	log *slog.Logger
}

func NewFSAdapter(dir string, log *slog.Logger) *fsAdapter {
	return NewFSAdapterWithFS(afero.NewOsFs(), dir, log)
}

func NewFSAdapterWithFS(fs afero.Fs, dir string, log *slog.Logger) *fsAdapter {
	return &fsAdapter{
		fs:  fs,
		dir: dir,
		log: log.With(slog.String("item", "FSAdapter")),
	}
}

func (a *fsAdapter) Path(name string) string {
	return filepath.Join(a.dir, name)
}

// Exists reports whether a regular file with the given name is present in the
// asset directory. Unknown is returned together with the stat error.
func (a *fsAdapter) Exists(name string) (entity.Existence, error) {
	info, err := a.fs.Stat(a.Path(name))
	if err == nil {
		if info.IsDir() {
			return entity.Missing, nil
		}

		return entity.Exists, nil
	}

	if os.IsNotExist(err) {
		return entity.Missing, nil
	}

	return entity.Unknown, err
}

// Scan returns the canonical names of all files in the asset directory: the
// extension is split off, the rest normalized and the extension put back.
func (a *fsAdapter) Scan() (map[string]struct{}, error) {
	entries, err := afero.ReadDir(a.fs, a.dir)
	if err != nil {
		return nil, fmt.Errorf("cannot read asset dir: %w", err)
	}

	names := make(map[string]struct{}, len(entries))
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}

		ext := filepath.Ext(entry.Name())
		base := strings.TrimSuffix(entry.Name(), ext)
		names[util.CleanFileName(base)+ext] = struct{}{}
	}

	return names, nil
}

// List returns the raw names of the regular files in the asset directory.
func (a *fsAdapter) List() ([]string, error) {
	entries, err := afero.ReadDir(a.fs, a.dir)
	if err != nil {
		return nil, fmt.Errorf("cannot read asset dir: %w", err)
	}

	names := make([]string, 0, len(entries))
	for _, entry := range entries {
		if entry.Mode().IsRegular() {
			names = append(names, entry.Name())
		}
	}

	return names, nil
}

// ScanAlt returns the names that have a curated alternate in the alt
// directory. A missing or unreadable directory yields an empty set.
func (a *fsAdapter) ScanAlt() map[string]struct{} {
	names := make(map[string]struct{})

	entries, err := afero.ReadDir(a.fs, a.Path(AltDirName))
	if err != nil {
		a.log.Debug("Cannot read alt dir", slog.Any("error", err))

		return names
	}

	for _, entry := range entries {
		name := strings.TrimSuffix(entry.Name(), filepath.Ext(entry.Name()))
		name = duplicateMarkerRegexp.ReplaceAllString(name, "")
		names[name] = struct{}{}
	}

	return names
}

// Probe looks for <base>.<ext> for every known extension and returns the
// matches per category in priority order.
func (a *fsAdapter) Probe(base string) (images []*entity.LocalAsset, videos []*entity.LocalAsset) {
	images = a.probe(base, entity.ImageExtensions, entity.CategoryImage)
	videos = a.probe(base, entity.VideoExtensions, entity.CategoryVideo)

	return images, videos
}

func (a *fsAdapter) probe(base string, exts []string, category entity.Category) []*entity.LocalAsset {
	var assets []*entity.LocalAsset
	for _, ext := range exts {
		name := base + "." + ext

		state, err := a.Exists(name)
		switch state {
		case entity.Exists:
			assets = append(assets, &entity.LocalAsset{Name: name, Extension: ext, Category: category})
		case entity.Unknown:
			a.log.Error("Cannot check file", slog.String("name", name), slog.Any("error", err))
		}
	}

	return assets
}

// RemoveRaw deletes an extensionless file left behind by an earlier run.
func (a *fsAdapter) RemoveRaw(base string) (bool, error) {
	state, err := a.Exists(base)
	if state != entity.Exists {
		return false, err
	}

	if err := a.fs.Remove(a.Path(base)); err != nil {
		return false, fmt.Errorf("cannot remove %s: %w", base, err)
	}

	return true, nil
}

func (a *fsAdapter) Checksum(name string) (string, error) {
	file, err := a.fs.Open(a.Path(name))
	if err != nil {
		return "", fmt.Errorf("cannot open %s: %w", name, err)
	}
	defer file.Close()

	return util.Checksum(file)
}

// Head returns the leading bytes of a file, enough for signature sniffing.
func (a *fsAdapter) Head(name string) ([]byte, error) {
	file, err := a.fs.Open(a.Path(name))
	if err != nil {
		return nil, fmt.Errorf("cannot open %s: %w", name, err)
	}
	defer file.Close()

	buffer := make([]byte, sniffPartSize)
	n, err := io.ReadFull(file, buffer)
	if err != nil && err != io.EOF && err != io.ErrUnexpectedEOF {
		return nil, fmt.Errorf("cannot read %s: %w", name, err)
	}

	return buffer[:n], nil
}

// Write stores r under name through a temporary file and a rename, so a
// partially received body never replaces an existing file.
func (a *fsAdapter) Write(name string, r io.Reader) (int64, error) {
	if err := a.fs.MkdirAll(a.dir, 0o755); err != nil {
		return 0, fmt.Errorf("cannot create asset dir: %w", err)
	}

	tmp, err := afero.TempFile(a.fs, a.dir, tempPattern)
	if err != nil {
		return 0, fmt.Errorf("cannot create temp file: %w", err)
	}

	n, err := io.Copy(tmp, r)
	if err != nil {
		tmp.Close()
		a.fs.Remove(tmp.Name())

		return 0, fmt.Errorf("cannot write %s: %w", name, err)
	}

	if err := tmp.Close(); err != nil {
		a.fs.Remove(tmp.Name())

		return 0, fmt.Errorf("cannot close temp file: %w", err)
	}

	if err := a.fs.Rename(tmp.Name(), a.Path(name)); err != nil {
		a.fs.Remove(tmp.Name())

		return 0, fmt.Errorf("cannot rename temp file to %s: %w", name, err)
	}

	return n, nil
}

// Rename replaces the file called to with the file called from.
func (a *fsAdapter) Rename(from, to string) error {
	if err := a.fs.Rename(a.Path(from), a.Path(to)); err != nil {
		return fmt.Errorf("cannot rename %s to %s: %w", from, to, err)
	}

	return nil
}

// ImageDimensions decodes the image header. Formats without a registered
// decoder (svg, avif) give nil.
func (a *fsAdapter) ImageDimensions(name string) *entity.Dimensions {
	file, err := a.fs.Open(a.Path(name))
	if err != nil {
		a.log.Error("Cannot open image", slog.String("name", name), slog.Any("error", err))

		return nil
	}
	defer file.Close()

	cfg, _, err := image.DecodeConfig(file)
	if err != nil {
		a.log.Debug("Cannot decode image config", slog.String("name", name), slog.Any("error", err))

		return nil
	}

	return &entity.Dimensions{Width: cfg.Width, Height: cfg.Height}
}
