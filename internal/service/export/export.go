package export

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/jgivc/tagsync/internal/common"
	"github.com/jgivc/tagsync/internal/entity"
	"github.com/jgivc/tagsync/internal/storage/jsonfile"
	"github.com/spf13/afero"
	"gopkg.in/yaml.v2"
)

const ReportFileName = "report.md"

var reportOutcomes = []entity.Outcome{
	entity.OutcomeDownloaded,
	entity.OutcomeUpdated,
	entity.OutcomeNotModified,
	entity.OutcomeCacheHit,
	entity.OutcomeSeeded,
	entity.OutcomeSkippedDefault,
	entity.OutcomeCollision,
	entity.OutcomeFailed,
}

type ValidatorStore interface {
	Save(ctx context.Context, validators map[string]string) error
}

type StateStore interface {
	SaveState(ctx context.Context, st *entity.SyncState) error
	SaveSnapshot(ctx context.Context, tags []*entity.Tag) error
}

type AssetLister interface {
	List() ([]string, error)
}

type Renderer interface {
	Render(src []byte) (string, error)
}

type Config struct {
	CacheDir   string
	ExportPath string
}

type ExportService struct {
	fs         afero.Fs
	validators ValidatorStore
	state      StateStore
	assets     AssetLister
	renderer   Renderer
	cfg        Config
	log        *slog.Logger
}

func NewExportService(fs afero.Fs, validators ValidatorStore, state StateStore, assets AssetLister, renderer Renderer, cfg Config, log *slog.Logger) *ExportService {
	return &ExportService{
		fs:         fs,
		validators: validators,
		state:      state,
		assets:     assets,
		renderer:   renderer,
		cfg:        cfg,
		log:        log.With(slog.String("item", "ExportService")),
	}
}

// Export persists everything a run produced. Every part is attempted even
// when an earlier one fails; the returned error joins all failures.
func (s *ExportService) Export(ctx context.Context, out *entity.SyncOutput) error {
	result := out.Result
	result.Orphans = orphans(out.Scanned, out.Claimed)
	result.MissingStashID = missingStashIDs(out.Inventory)

	var errs []error

	if err := s.validators.Save(ctx, out.Validators); err != nil {
		errs = append(errs, err)
	}

	if err := s.state.SaveState(ctx, &entity.SyncState{LastSync: result.StartedAt}); err != nil {
		errs = append(errs, err)
	}

	if err := s.state.SaveSnapshot(ctx, out.Tags); err != nil {
		errs = append(errs, err)
	}

	if err := jsonfile.Save(s.fs, s.cfg.ExportPath, bareNames(out.Inventory)); err != nil {
		errs = append(errs, fmt.Errorf("cannot save inventory: %w", err))
	}

	if err := s.saveReport(buildReport(result)); err != nil {
		errs = append(errs, err)
	}

	for _, tag := range result.MissingStashID {
		s.log.Warn("Tag has no stash id", slog.String("tag", tag))
	}
	for _, name := range result.Orphans {
		s.log.Warn("Orphan file", slog.String("file", name))
	}

	s.log.Info("Exported",
		slog.String("run_id", result.ID),
		slog.String("inventory", s.cfg.ExportPath),
		slog.Int("entries", len(out.Inventory)),
		slog.Int("orphans", len(result.Orphans)),
		slog.Int("missing_stash_id", len(result.MissingStashID)),
	)

	return errors.Join(errs...)
}

// Inventory returns the last exported inventory document as stored.
func (s *ExportService) Inventory(_ context.Context) ([]byte, error) {
	data, err := afero.ReadFile(s.fs, s.cfg.ExportPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, common.ErrInventoryNotFound
		}

		return nil, fmt.Errorf("cannot read inventory: %w", err)
	}

	return data, nil
}

// Report renders the last run report to HTML.
func (s *ExportService) Report(_ context.Context) (string, error) {
	data, err := afero.ReadFile(s.fs, s.reportPath())
	if err != nil {
		if os.IsNotExist(err) {
			return "", common.ErrReportNotFound
		}

		return "", fmt.Errorf("cannot read report: %w", err)
	}

	return s.renderer.Render(data)
}

// Validate lists files in the asset directory that no inventory entry
// references.
func (s *ExportService) Validate(_ context.Context) ([]string, error) {
	var inv entity.Inventory
	found, err := jsonfile.Load(s.fs, s.cfg.ExportPath, &inv)
	if err != nil {
		return nil, fmt.Errorf("cannot load inventory: %w", err)
	}
	if !found {
		return nil, common.ErrInventoryNotFound
	}

	referenced := make(map[string]struct{}, len(inv)*2)
	for _, entry := range inv {
		if entry == nil {
			continue
		}
		if entry.Img != nil {
			referenced[*entry.Img] = struct{}{}
		}
		if entry.Vid != nil {
			referenced[*entry.Vid] = struct{}{}
		}
	}

	files, err := s.assets.List()
	if err != nil {
		return nil, err
	}

	var extra []string
	for _, name := range files {
		if _, ok := referenced[name]; !ok {
			extra = append(extra, name)
		}
	}
	sort.Strings(extra)

	return extra, nil
}

func (s *ExportService) saveReport(report []byte) error {
	if err := s.fs.MkdirAll(s.cfg.CacheDir, 0o755); err != nil {
		return fmt.Errorf("cannot create cache dir: %w", err)
	}

	if err := afero.WriteFile(s.fs, s.reportPath(), report, 0o644); err != nil {
		return fmt.Errorf("cannot save report: %w", err)
	}

	return nil
}

func (s *ExportService) reportPath() string {
	return filepath.Join(s.cfg.CacheDir, ReportFileName)
}

// bareNames copies the inventory with img and vid reduced to base names.
func bareNames(inv entity.Inventory) entity.Inventory {
	out := make(entity.Inventory, len(inv))
	for name, entry := range inv {
		e := *entry
		e.Img = baseName(entry.Img)
		e.Vid = baseName(entry.Vid)
		out[name] = &e
	}

	return out
}

func baseName(p *string) *string {
	if p == nil {
		return nil
	}
	b := filepath.Base(*p)

	return &b
}

func orphans(scanned, claimed map[string]struct{}) []string {
	out := []string{}
	for name := range scanned {
		if _, ok := claimed[name]; !ok {
			out = append(out, name)
		}
	}
	sort.Strings(out)

	return out
}

func missingStashIDs(inv entity.Inventory) []string {
	out := []string{}
	for name, entry := range inv {
		if !entry.Ignore && entry.StashID == nil {
			out = append(out, name)
		}
	}
	sort.Strings(out)

	return out
}

type reportMeta struct {
	Title     string `yaml:"title"`
	RunID     string `yaml:"run_id"`
	StartedAt string `yaml:"started_at"`
	Tags      int    `yaml:"tags"`
	Errors    int    `yaml:"errors"`
}

func buildReport(result *entity.RunResult) []byte {
	meta := reportMeta{
		Title:     "Sync " + result.StartedAt.Format(time.DateTime),
		RunID:     result.ID,
		StartedAt: result.StartedAt.Format(time.RFC3339),
		Tags:      result.Tags,
		Errors:    result.Errors,
	}

	var buf bytes.Buffer

	// Marshal of a flat struct of strings and ints cannot fail.
	fm, _ := yaml.Marshal(&meta)
	buf.WriteString("---\n")
	buf.Write(fm)
	buf.WriteString("---\n\n")

	fmt.Fprintf(&buf, "# %s\n\n", meta.Title)
	fmt.Fprintf(&buf, "Took %s, %d tags queried, %d carried from the last snapshot.\n\n",
		result.FinishedAt.Sub(result.StartedAt).Round(time.Millisecond), result.Tags, result.Carried)

	buf.WriteString("## Outcomes\n\n| Outcome | Count |\n|---|---:|\n")
	for _, o := range reportOutcomes {
		fmt.Fprintf(&buf, "| %s | %d |\n", o, result.Outcomes[o])
	}

	writeList(&buf, "Tags without stash id", result.MissingStashID)
	writeList(&buf, "Orphan files", result.Orphans)
	writeList(&buf, "Name collisions", result.Collisions)

	return buf.Bytes()
}

func writeList(buf *bytes.Buffer, title string, items []string) {
	fmt.Fprintf(buf, "\n## %s (%d)\n\n", title, len(items))
	if len(items) == 0 {
		buf.WriteString("None.\n")

		return
	}

	for _, item := range items {
		fmt.Fprintf(buf, "- %s\n", escapeMarkdown(item))
	}
}

var markdownEscaper = strings.NewReplacer(
	`\`, `\\`, "*", `\*`, "_", `\_`, "`", "\\`", "[", `\[`, "]", `\]`, "<", "&lt;", "#", `\#`,
)

func escapeMarkdown(s string) string {
	return markdownEscaper.Replace(s)
}
