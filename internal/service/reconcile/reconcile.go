package reconcile

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/jgivc/tagsync/internal/adapter/mediatype"
	"github.com/jgivc/tagsync/internal/common"
	"github.com/jgivc/tagsync/internal/entity"
	"github.com/jgivc/tagsync/internal/util"
)

type Catalog interface {
	FindTags(ctx context.Context, since time.Time) ([]*entity.Tag, error)
	TagIDs(ctx context.Context) (map[string]struct{}, error)
}

type Fetcher interface {
	Fetch(ctx context.Context, url, token string, sink func(r io.Reader) (int64, error)) (*entity.FetchResult, error)
}

type AssetStore interface {
	Scan() (map[string]struct{}, error)
	ScanAlt() map[string]struct{}
	Probe(base string) (images []*entity.LocalAsset, videos []*entity.LocalAsset)
	RemoveRaw(base string) (bool, error)
	Checksum(name string) (string, error)
	Head(name string) ([]byte, error)
	Write(name string, r io.Reader) (int64, error)
	Rename(from, to string) error
	ImageDimensions(name string) *entity.Dimensions
}

type ValidatorStore interface {
	Load(ctx context.Context) (map[string]string, error)
}

type StateStore interface {
	LoadState(ctx context.Context) (*entity.SyncState, error)
	LoadSnapshot(ctx context.Context) ([]*entity.Tag, error)
}

type Exporter interface {
	Export(ctx context.Context, out *entity.SyncOutput) error
}

// Options control a single run.
type Options struct {
	Recheck  bool       // send stored validators as If-None-Match
	Force    bool       // refetch everything
	FullScan bool       // ignore the last sync time
	Since    *time.Time // explicit lower bound for the catalog query
}

type Config struct {
	ExcludePrefixes []string
}

var nowFunc = time.Now

type Engine struct {
	running    atomic.Bool
	catalog    Catalog
	fetcher    Fetcher
	assets     AssetStore
	validators ValidatorStore
	state      StateStore
	exporter   Exporter
	cfg        Config
	log        *slog.Logger
}

func NewEngine(catalog Catalog, fetcher Fetcher, assets AssetStore, validators ValidatorStore, state StateStore, exporter Exporter, cfg Config, log *slog.Logger) *Engine {
	return &Engine{
		catalog:    catalog,
		fetcher:    fetcher,
		assets:     assets,
		validators: validators,
		state:      state,
		exporter:   exporter,
		cfg:        cfg,
		log:        log.With(slog.String("item", "Engine")),
	}
}

// Running reports whether a run is in progress.
func (e *Engine) Running() bool {
	return e.running.Load()
}

// Run reconciles the asset directory with the catalog. Only one run may be
// active at a time; a second caller gets common.ErrSyncAlreadyRunning.
// A failed catalog query aborts the run before anything is written.
func (e *Engine) Run(ctx context.Context, opts Options) (*entity.RunResult, error) {
	if !e.running.CompareAndSwap(false, true) {
		return nil, common.ErrSyncAlreadyRunning
	}
	defer e.running.Store(false)

	return e.run(ctx, opts)
}

// Start takes the run guard and runs in the background. It returns
// common.ErrSyncAlreadyRunning without starting anything when a run is active.
func (e *Engine) Start(opts Options) error {
	if !e.running.CompareAndSwap(false, true) {
		return common.ErrSyncAlreadyRunning
	}

	go func() {
		defer e.running.Store(false)

		if _, err := e.run(context.Background(), opts); err != nil {
			e.log.Error("Background sync failed", slog.Any("error", err))
		}
	}()

	return nil
}

func (e *Engine) run(ctx context.Context, opts Options) (*entity.RunResult, error) {
	result := &entity.RunResult{
		ID:        uuid.NewString(),
		StartedAt: nowFunc(),
		Outcomes:  make(map[entity.Outcome]int),
	}
	log := e.log.With(slog.String("run_id", result.ID))
	log.Info("Start sync", slog.Bool("recheck", opts.Recheck), slog.Bool("force", opts.Force), slog.Bool("full_scan", opts.FullScan))

	since := e.since(ctx, opts, log)

	validators, err := e.validators.Load(ctx)
	if err != nil {
		log.Error("Cannot load validators, starting empty", slog.Any("error", err))
		validators = make(map[string]string)
	}

	snapshot, err := e.state.LoadSnapshot(ctx)
	if err != nil {
		log.Error("Cannot load tag snapshot", slog.Any("error", err))
	}

	tags, err := e.catalog.FindTags(ctx, since)
	if err != nil {
		log.Error("Cannot query catalog", slog.Any("error", err))

		return nil, fmt.Errorf("cannot query catalog: %w", err)
	}

	scanned, err := e.assets.Scan()
	if err != nil {
		log.Error("Cannot scan asset dir", slog.Any("error", err))
		scanned = make(map[string]struct{})
	}

	r := &run{
		engine:     e,
		opts:       opts,
		log:        log,
		result:     result,
		validators: validators,
		previous:   indexByID(snapshot),
		alt:        e.assets.ScanAlt(),
		scanned:    scanned,
		inventory:  make(entity.Inventory, len(tags)),
		claimed:    make(map[string]struct{}),
		owners:     make(map[string]string),
	}

	carried := carriedTags(snapshot, tags, since)
	if len(carried) > 0 {
		carried = e.dropDeleted(ctx, log, carried)
	}
	for _, tag := range tags {
		r.process(ctx, tag, opts)
	}

	// Tags the incremental query did not return still belong in the
	// inventory. They never trigger a conditional request.
	carriedOpts := opts
	carriedOpts.Recheck = false
	for _, tag := range carried {
		r.process(ctx, tag, carriedOpts)
	}

	result.Tags = len(tags)
	result.Carried = len(carried)
	result.FinishedAt = nowFunc()

	out := &entity.SyncOutput{
		Result:     result,
		Inventory:  r.inventory,
		Validators: validators,
		Tags:       append(carried, tags...),
		Scanned:    scanned,
		Claimed:    r.claimed,
	}

	if err := e.exporter.Export(ctx, out); err != nil {
		log.Error("Cannot export results", slog.Any("error", err))

		return result, fmt.Errorf("cannot export results: %w", err)
	}

	log.Info("Sync done",
		slog.Int("tags", result.Tags),
		slog.Int("carried", result.Carried),
		slog.Int("errors", result.Errors),
		slog.Duration("took", result.FinishedAt.Sub(result.StartedAt)),
	)

	return result, nil
}

// dropDeleted removes carried tags that no longer exist in the catalog. When
// the id query fails the carried set is kept as is.
func (e *Engine) dropDeleted(ctx context.Context, log *slog.Logger, carried []*entity.Tag) []*entity.Tag {
	ids, err := e.catalog.TagIDs(ctx)
	if err != nil {
		log.Error("Cannot query catalog tag ids, keeping carried tags", slog.Any("error", err))

		return carried
	}

	live := carried[:0]
	for _, tag := range carried {
		if _, ok := ids[tag.ID]; ok {
			live = append(live, tag)
		} else {
			log.Info("Drop deleted tag", slog.String("tag", tag.Name), slog.String("id", tag.ID))
		}
	}

	return live
}

func (e *Engine) since(ctx context.Context, opts Options, log *slog.Logger) time.Time {
	if opts.Force || opts.FullScan {
		return time.Time{}
	}

	if opts.Since != nil {
		return *opts.Since
	}

	st, err := e.state.LoadState(ctx)
	if err != nil {
		log.Error("Cannot load sync state, doing a full sync", slog.Any("error", err))

		return time.Time{}
	}

	return st.LastSync
}

// run holds the bookkeeping of one Engine.Run call.
type run struct {
	engine     *Engine
	opts       Options
	log        *slog.Logger
	result     *entity.RunResult
	validators map[string]string
	previous   map[string]*entity.Tag
	alt        map[string]struct{}
	scanned    map[string]struct{}
	inventory  entity.Inventory
	claimed    map[string]struct{}
	owners     map[string]string // normalized name -> tag name
}

func (r *run) process(ctx context.Context, tag *entity.Tag, opts Options) {
	log := r.log.With(slog.String("tag", tag.Name))
	assets := r.engine.assets

	if isDefaultImage(tag.ImageURL) {
		log.Debug("Skip default image")
		r.result.Count(entity.OutcomeSkippedDefault)

		return
	}

	base := util.CleanFileName(tag.Name)

	entry := &entity.InventoryEntry{
		Ignore:  tag.IgnoreAutoTag || hasAnyPrefix(tag.Name, r.engine.cfg.ExcludePrefixes),
		Alt:     r.hasAlt(tag.Name, base),
		Aliases: tag.Aliases,
		StashID: tag.FirstStashID(),
	}
	if entry.Aliases == nil {
		entry.Aliases = []string{}
	}
	r.inventory[tag.Name] = entry

	if owner, taken := r.owners[base]; taken && owner != tag.Name {
		log.Error("File name already used by another tag", slog.String("file", base), slog.String("owner", owner))
		r.result.Collisions = append(r.result.Collisions, tag.Name)
		r.result.Count(entity.OutcomeCollision)

		return
	}
	r.owners[base] = tag.Name

	if removed, err := assets.RemoveRaw(base); err != nil {
		log.Error("Cannot remove raw file", slog.String("file", base), slog.Any("error", err))
	} else if removed {
		log.Info("Removed raw file", slog.String("file", base))
		delete(r.scanned, base)
	}

	images, videos := assets.Probe(base)
	r.claim(log, images)
	r.claim(log, videos)

	var local *entity.LocalAsset
	if len(images) > 0 {
		local = images[0]
		entry.Img = &images[0].Name
	}
	if len(videos) > 0 {
		if local == nil {
			local = videos[0]
		}
		entry.Vid = &videos[0].Name
	}

	token, hasToken := r.validators[tag.ImageURL]
	action := Decide(local != nil, hasToken, r.urlChanged(tag), opts)
	log.Debug("Decided", slog.String("action", action.String()))

	switch action {
	case ActionSkip:
		r.result.Count(entity.OutcomeCacheHit)
	case ActionSeed:
		sum, err := assets.Checksum(local.Name)
		if err != nil {
			log.Error("Cannot compute checksum", slog.String("file", local.Name), slog.Any("error", err))
			r.result.Count(entity.OutcomeFailed)

			break
		}
		r.validators[tag.ImageURL] = sum
		r.result.Count(entity.OutcomeSeeded)
	case ActionFetch:
		r.fetch(ctx, log, tag, base, "", entry)
	case ActionConditional:
		r.fetch(ctx, log, tag, base, token, entry)
	}

	if entry.Img != nil {
		entry.ImgDimensions = assets.ImageDimensions(*entry.Img)
	}
}

func (r *run) fetch(ctx context.Context, log *slog.Logger, tag *entity.Tag, base, token string, entry *entity.InventoryEntry) {
	assets := r.engine.assets

	res, err := r.engine.fetcher.Fetch(ctx, tag.ImageURL, token, func(body io.Reader) (int64, error) {
		return assets.Write(base, body)
	})
	if err != nil {
		log.Error("Cannot download", slog.String("url", tag.ImageURL), slog.Any("error", err))
		r.result.Count(entity.OutcomeFailed)

		return
	}

	if res.ETag != "" {
		r.validators[tag.ImageURL] = res.ETag
	}

	if res.NotModified {
		r.result.Count(entity.OutcomeNotModified)

		return
	}

	head, err := assets.Head(base)
	if err != nil {
		log.Error("Cannot read downloaded file", slog.String("file", base), slog.Any("error", err))
		r.result.Count(entity.OutcomeFailed)

		return
	}

	ext, err := mediatype.Resolve(res.ContentType, head)
	if err != nil {
		log.Error("Cannot resolve file type, keeping raw file", slog.String("file", base), slog.Any("error", err))
		r.result.Count(entity.OutcomeFailed)

		return
	}

	name := base + "." + ext
	if err := assets.Rename(base, name); err != nil {
		log.Error("Cannot rename downloaded file", slog.String("file", name), slog.Any("error", err))
		r.result.Count(entity.OutcomeFailed)

		return
	}
	r.claimed[name] = struct{}{}

	switch entity.CategoryOf(ext) {
	case entity.CategoryImage:
		entry.Img = &name
	case entity.CategoryVideo:
		entry.Vid = &name
	}

	log.Info("Downloaded", slog.String("file", name), slog.Int64("size", res.Size))

	if token != "" {
		r.result.Count(entity.OutcomeUpdated)
	} else {
		r.result.Count(entity.OutcomeDownloaded)
	}
}

func (r *run) claim(log *slog.Logger, assets []*entity.LocalAsset) {
	if len(assets) > 1 {
		names := make([]string, 0, len(assets))
		for _, a := range assets {
			names = append(names, a.Name)
		}
		log.Error("Multiple files match tag", slog.String("category", assets[0].Category.String()), slog.Any("files", names), slog.String("using", assets[0].Name))
	}

	for _, a := range assets {
		r.claimed[a.Name] = struct{}{}
	}
}

func (r *run) hasAlt(name, base string) bool {
	if _, ok := r.alt[name]; ok {
		return true
	}
	_, ok := r.alt[base]

	return ok
}

// urlChanged is true when the last snapshot knew this tag under another image URL.
func (r *run) urlChanged(tag *entity.Tag) bool {
	if tag.ID == "" {
		return false
	}

	prev, ok := r.previous[tag.ID]

	return ok && prev.ImageURL != tag.ImageURL
}

func indexByID(tags []*entity.Tag) map[string]*entity.Tag {
	index := make(map[string]*entity.Tag, len(tags))
	for _, tag := range tags {
		if tag.ID != "" {
			index[tag.ID] = tag
		}
	}

	return index
}

// carriedTags returns snapshot tags the catalog query did not return. A full
// query (zero since) returns the whole catalog, so nothing is carried.
func carriedTags(snapshot, fresh []*entity.Tag, since time.Time) []*entity.Tag {
	if since.IsZero() {
		return nil
	}

	seen := make(map[string]struct{}, len(fresh))
	for _, tag := range fresh {
		seen[tag.ID] = struct{}{}
	}

	var carried []*entity.Tag
	for _, tag := range snapshot {
		if _, ok := seen[tag.ID]; !ok {
			carried = append(carried, tag)
		}
	}

	return carried
}
