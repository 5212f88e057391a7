package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/jgivc/tagsync/internal/adapter/fetcher"
	"github.com/jgivc/tagsync/internal/adapter/fsadapter"
	"github.com/jgivc/tagsync/internal/adapter/mdadapter"
	"github.com/jgivc/tagsync/internal/adapter/stash"
	"github.com/jgivc/tagsync/internal/common"
	"github.com/jgivc/tagsync/internal/config"
	"github.com/jgivc/tagsync/internal/entity"
	httphandler "github.com/jgivc/tagsync/internal/handler/http"
	rvalidator "github.com/jgivc/tagsync/internal/repository/validator"
	"github.com/jgivc/tagsync/internal/scheduler"
	"github.com/jgivc/tagsync/internal/service/export"
	"github.com/jgivc/tagsync/internal/service/reconcile"
	"github.com/jgivc/tagsync/internal/storage/state"
	svalidator "github.com/jgivc/tagsync/internal/storage/validator"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/afero"
	"gopkg.in/natefinch/lumberjack.v2"
)

const (
	stopTimeout = 5 * time.Second
)

type validatorStore interface {
	reconcile.ValidatorStore
	export.ValidatorStore
}

type App struct {
	cfgPath   string
	cfg       *config.Config
	srv       *http.Server
	engine    *reconcile.Engine
	exporter  *export.ExportService
	scheduler *scheduler.Scheduler
	rdb       *redis.Client
	logFile   io.Closer
	log       *slog.Logger
}

func New(cfgPath string) *App {
	return &App{
		cfgPath: cfgPath,
	}
}

// Init loads the configuration and wires the services. It is called by Start
// and must be called before RunOnce or Validate.
func (a *App) Init() error {
	cfg, err := config.Load(a.cfgPath)
	if err != nil {
		return err
	}
	a.cfg = cfg

	log, err := a.newLogger()
	if err != nil {
		return err
	}
	a.log = log

	validators, err := a.newValidatorStore()
	if err != nil {
		return err
	}

	osFs := afero.NewOsFs()
	assets := fsadapter.NewFSAdapter(cfg.Sync.AssetDir, log)
	states := state.NewStateStore(osFs, cfg.Sync.CacheDir, log)

	renderer, err := mdadapter.NewRenderer()
	if err != nil {
		return err
	}

	a.exporter = export.NewExportService(
		osFs,
		validators,
		states,
		assets,
		renderer,
		export.Config{CacheDir: cfg.Sync.CacheDir, ExportPath: cfg.Sync.ExportPath},
		log,
	)

	a.engine = reconcile.NewEngine(
		stash.NewClient(cfg.Catalog.URL, cfg.Catalog.APIKey, cfg.Catalog.Timeout, log),
		fetcher.NewFetcher(cfg.Catalog.APIKey, cfg.Sync.FetchTimeout, log),
		assets,
		validators,
		states,
		a.exporter,
		reconcile.Config{ExcludePrefixes: cfg.Sync.ExcludePrefixes},
		log,
	)

	return nil
}

func (a *App) newLogger() (*slog.Logger, error) {
	lo := &slog.HandlerOptions{}
	switch a.cfg.Log.Level {
	case config.LogLevelInfo:
		lo.Level = slog.LevelInfo
	case config.LogLevelWarn:
		lo.Level = slog.LevelWarn
	case config.LogLevelError:
		lo.Level = slog.LevelError
	case config.LogLevelDebug:
		lo.Level = slog.LevelDebug
	default:
		return nil, fmt.Errorf("unknown log level %q", a.cfg.Log.Level)
	}

	var w io.Writer = os.Stderr
	if a.cfg.Log.File != "" {
		lj := &lumberjack.Logger{
			Filename:   a.cfg.Log.File,
			MaxSize:    a.cfg.Log.MaxSizeMB,
			MaxBackups: a.cfg.Log.MaxBackups,
		}
		a.logFile = lj
		w = io.MultiWriter(os.Stderr, lj)
	}

	return slog.New(slog.NewTextHandler(w, lo)), nil
}

func (a *App) newValidatorStore() (validatorStore, error) {
	if a.cfg.Sync.ValidatorStore != config.ValidatorStoreRedis {
		return svalidator.NewFileStore(afero.NewOsFs(), a.cfg.Sync.CacheDir, a.log), nil
	}

	opt, err := redis.ParseURL(a.cfg.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("cannot parse redis url: %w", err)
	}

	rdb := redis.NewClient(opt)
	if _, err := rdb.Ping(context.Background()).Result(); err != nil {
		rdb.Close()

		return nil, fmt.Errorf("cannot connect to redis: %w", err)
	}
	a.rdb = rdb

	return rvalidator.NewValidatorRepository(rdb, a.log), nil
}

// Options returns the run options configured as defaults.
func (a *App) Options() reconcile.Options {
	return reconcile.Options{
		Recheck: a.cfg.Sync.Recheck,
		Force:   a.cfg.Sync.Force,
	}
}

func (a *App) Start() {
	if err := a.Init(); err != nil {
		panic(err)
	}

	log := a.log
	defaults := a.Options()

	mux := http.NewServeMux()
	mux.Handle("POST /sync/{$}", httphandler.NewSyncHandler(a.engine, defaults, log))
	mux.Handle("POST /sync/async/{$}", httphandler.NewAsyncSyncHandler(a.engine, defaults, log))
	mux.Handle("GET /inventory/{$}", httphandler.NewInventoryHandler(a.exporter, log))
	mux.Handle("GET /report/{$}", httphandler.NewReportHandler(a.exporter, log))

	a.srv = &http.Server{
		Addr:    a.cfg.Listen,
		Handler: mux,
	}

	if a.cfg.Scheduler.Enabled {
		s, err := scheduler.NewScheduler(a.engine, a.cfg.Scheduler.At, defaults, log)
		if err != nil {
			panic(err)
		}
		a.scheduler = s
		a.scheduler.Start()
	}

	go func() {
		log.Info("Start listen", slog.String("addr", a.cfg.Listen))

		if err := a.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("Could not serve", slog.String("listen_addr", a.cfg.Listen), slog.Any("error", err))
			os.Exit(2)
		}
	}()
}

// Sync runs a sync with the configured defaults. Used by the signal trigger.
func (a *App) Sync() {
	if a.engine == nil {
		return
	}

	if _, err := a.engine.Run(context.Background(), a.Options()); err != nil {
		if errors.Is(err, common.ErrSyncAlreadyRunning) {
			a.log.Warn("Sync process has already started")

			return
		}

		a.log.Error("Sync failed", slog.Any("error", err))
	}
}

func (a *App) RunOnce(ctx context.Context, opts reconcile.Options) (*entity.RunResult, error) {
	return a.engine.Run(ctx, opts)
}

func (a *App) Validate(ctx context.Context) ([]string, error) {
	return a.exporter.Validate(ctx)
}

func (a *App) Stop() {
	ctx, cancel := context.WithTimeout(context.Background(), stopTimeout)
	defer cancel()

	if a.scheduler != nil {
		a.scheduler.Stop()
	}

	if a.srv != nil {
		a.srv.Shutdown(ctx)
	}

	if a.rdb != nil {
		a.rdb.Close()
	}

	if a.logFile != nil {
		a.logFile.Close()
	}
}
