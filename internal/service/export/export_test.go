package export

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/jgivc/tagsync/internal/adapter/fsadapter"
	"github.com/jgivc/tagsync/internal/adapter/mdadapter"
	"github.com/jgivc/tagsync/internal/common"
	"github.com/jgivc/tagsync/internal/entity"
	"github.com/jgivc/tagsync/internal/storage/state"
	"github.com/jgivc/tagsync/internal/storage/validator"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/require"
)

const (
	cacheDir   = "/cache"
	assetDir   = "/tags"
	exportPath = "/cache/tags-export.json"
)

type failingValidators struct{}

func (failingValidators) Save(context.Context, map[string]string) error {
	return errors.New("disk full")
}

func strPtr(s string) *string {
	return &s
}

func newTestService(t *testing.T, fs afero.Fs, validators ValidatorStore) *ExportService {
	t.Helper()

	log := slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{}))
	if validators == nil {
		validators = validator.NewFileStore(fs, cacheDir, log)
	}

	renderer, err := mdadapter.NewRenderer()
	require.NoError(t, err)

	return NewExportService(
		fs,
		validators,
		state.NewStateStore(fs, cacheDir, log),
		fsadapter.NewFSAdapterWithFS(fs, assetDir, log),
		renderer,
		Config{CacheDir: cacheDir, ExportPath: exportPath},
		log,
	)
}

func testOutput() *entity.SyncOutput {
	started := time.Date(2024, 5, 1, 3, 0, 0, 0, time.UTC)

	return &entity.SyncOutput{
		Result: &entity.RunResult{
			ID:         "run-1",
			StartedAt:  started,
			FinishedAt: started.Add(time.Second),
			Tags:       2,
			Outcomes:   map[entity.Outcome]int{entity.OutcomeDownloaded: 1, entity.OutcomeCacheHit: 1},
			Collisions: []string{"Foo/Bar"},
		},
		Inventory: entity.Inventory{
			"Foo Bar": {Img: strPtr("/tags/Foo_Bar.jpg"), Aliases: []string{}, StashID: strPtr("sid")},
			"Clip":    {Vid: strPtr("Clip.webm"), Aliases: []string{}},
			"Hidden":  {Ignore: true, Aliases: []string{}},
		},
		Validators: map[string]string{"https://x/img?id=1": "e1"},
		Tags:       []*entity.Tag{{ID: "1", Name: "Foo Bar", ImageURL: "https://x/img?id=1"}},
		Scanned:    map[string]struct{}{"Foo_Bar.jpg": {}, "Old.png": {}, "Stray.jpg": {}},
		Claimed:    map[string]struct{}{"Foo_Bar.jpg": {}, "Clip.webm": {}},
	}
}

func TestExport(t *testing.T) {
	fs := afero.NewMemMapFs()
	s := newTestService(t, fs, nil)

	out := testOutput()
	require.NoError(t, s.Export(context.Background(), out))

	require.Equal(t, []string{"Old.png", "Stray.jpg"}, out.Result.Orphans)
	require.Equal(t, []string{"Clip"}, out.Result.MissingStashID)

	data, err := afero.ReadFile(fs, exportPath)
	require.NoError(t, err)

	var inv map[string]map[string]any
	require.NoError(t, json.Unmarshal(data, &inv))
	require.Equal(t, "Foo_Bar.jpg", inv["Foo Bar"]["img"])
	require.Nil(t, inv["Foo Bar"]["vid"])
	require.Equal(t, "Clip.webm", inv["Clip"]["vid"])
	require.Equal(t, true, inv["Hidden"]["ignore"])
	require.Equal(t, []any{}, inv["Hidden"]["aliases"])
	require.Contains(t, inv["Hidden"], "imgDimensions")

	// the caller's inventory keeps full paths
	require.Equal(t, "/tags/Foo_Bar.jpg", *out.Inventory["Foo Bar"].Img)

	log := slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{}))
	st, err := state.NewStateStore(fs, cacheDir, log).LoadState(context.Background())
	require.NoError(t, err)
	require.True(t, out.Result.StartedAt.Equal(st.LastSync))

	validators, err := validator.NewFileStore(fs, cacheDir, log).Load(context.Background())
	require.NoError(t, err)
	require.Equal(t, "e1", validators["https://x/img?id=1"])

	report, err := afero.ReadFile(fs, filepath.Join(cacheDir, ReportFileName))
	require.NoError(t, err)
	require.Contains(t, string(report), "run_id: run-1")
	require.Contains(t, string(report), "| downloaded | 1 |")
	require.Contains(t, string(report), `- Foo/Bar`)
	require.Contains(t, string(report), "## Orphan files (2)")

	entries, err := afero.ReadDir(fs, cacheDir)
	require.NoError(t, err)
	for _, e := range entries {
		require.NotEqual(t, ".tmp", filepath.Ext(e.Name()))
	}
}

func TestExportContinuesAfterFailure(t *testing.T) {
	fs := afero.NewMemMapFs()
	s := newTestService(t, fs, failingValidators{})

	err := s.Export(context.Background(), testOutput())
	require.Error(t, err)
	require.Contains(t, err.Error(), "disk full")

	ok, err := afero.Exists(fs, exportPath)
	require.NoError(t, err)
	require.True(t, ok)
}

func TestInventory(t *testing.T) {
	fs := afero.NewMemMapFs()
	s := newTestService(t, fs, nil)

	_, err := s.Inventory(context.Background())
	require.ErrorIs(t, err, common.ErrInventoryNotFound)

	require.NoError(t, s.Export(context.Background(), testOutput()))

	data, err := s.Inventory(context.Background())
	require.NoError(t, err)
	require.Contains(t, string(data), `"Foo Bar"`)
}

func TestReport(t *testing.T) {
	fs := afero.NewMemMapFs()
	s := newTestService(t, fs, nil)

	_, err := s.Report(context.Background())
	require.ErrorIs(t, err, common.ErrReportNotFound)

	require.NoError(t, s.Export(context.Background(), testOutput()))

	page, err := s.Report(context.Background())
	require.NoError(t, err)
	require.Contains(t, page, "<title>Sync 2024-05-01 03:00:00</title>")
	require.Contains(t, page, "<td>downloaded</td>")
	require.Contains(t, page, "<li>Clip</li>")
}

func TestValidate(t *testing.T) {
	fs := afero.NewMemMapFs()
	s := newTestService(t, fs, nil)

	_, err := s.Validate(context.Background())
	require.ErrorIs(t, err, common.ErrInventoryNotFound)

	require.NoError(t, s.Export(context.Background(), testOutput()))

	require.NoError(t, fs.MkdirAll(filepath.Join(assetDir, fsadapter.AltDirName), os.ModeDir))
	for _, name := range []string{"Foo_Bar.jpg", "Clip.webm", "Stray.jpg", "Foo_Bar"} {
		require.NoError(t, afero.WriteFile(fs, filepath.Join(assetDir, name), []byte("x"), 0o644))
	}

	extra, err := s.Validate(context.Background())
	require.NoError(t, err)
	require.Equal(t, []string{"Foo_Bar", "Stray.jpg"}, extra)
}

func TestEscapeMarkdown(t *testing.T) {
	require.Equal(t, `Foo\_Bar \[1\] \*x\*`, escapeMarkdown("Foo_Bar [1] *x*"))
}
