package httphandler

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/jgivc/tagsync/internal/common"
	"github.com/jgivc/tagsync/internal/entity"
	"github.com/jgivc/tagsync/internal/service/reconcile"
)

type SyncService interface {
	Run(ctx context.Context, opts reconcile.Options) (*entity.RunResult, error)
	Start(opts reconcile.Options) error
}

type InventoryService interface {
	Inventory(ctx context.Context) ([]byte, error)
}

type ReportService interface {
	Report(ctx context.Context) (string, error)
}

// NewSyncHandler runs a sync and answers with the run result when it is done.
// The run is detached from the request, a client disconnect does not stop it.
func NewSyncHandler(srv SyncService, defaults reconcile.Options, log *slog.Logger) http.HandlerFunc {
	log = log.With(slog.String("handler", "SyncHandler"))

	return func(w http.ResponseWriter, r *http.Request) {
		result, err := srv.Run(context.Background(), optionsFromQuery(r, defaults))
		if err != nil {
			switch {
			case errors.Is(err, common.ErrSyncAlreadyRunning):
				http.Error(w, "Sync process has already started", http.StatusConflict)
			default:
				log.Error("Sync failed", slog.Any("error", err))
				http.Error(w, "Sync failed", http.StatusInternalServerError)
			}

			return
		}

		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(result); err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
		}
	}
}

// NewAsyncSyncHandler starts a sync in the background and returns at once.
func NewAsyncSyncHandler(srv SyncService, defaults reconcile.Options, log *slog.Logger) http.HandlerFunc {
	log = log.With(slog.String("handler", "AsyncSyncHandler"))

	return func(w http.ResponseWriter, r *http.Request) {
		if err := srv.Start(optionsFromQuery(r, defaults)); err != nil {
			switch {
			case errors.Is(err, common.ErrSyncAlreadyRunning):
				http.Error(w, "Sync process has already started", http.StatusConflict)
			default:
				log.Error("Cannot start sync", slog.Any("error", err))
				http.Error(w, "Cannot start sync", http.StatusInternalServerError)
			}

			return
		}

		w.WriteHeader(http.StatusAccepted)
		w.Write([]byte("started"))
	}
}

func NewInventoryHandler(srv InventoryService, log *slog.Logger) http.HandlerFunc {
	log = log.With(slog.String("handler", "InventoryHandler"))

	return func(w http.ResponseWriter, r *http.Request) {
		data, err := srv.Inventory(r.Context())
		if err != nil {
			switch {
			case errors.Is(err, common.ErrInventoryNotFound):
				http.Error(w, "Inventory not found", http.StatusNotFound)
			default:
				log.Error("Cannot get inventory", slog.Any("error", err))
				http.Error(w, "Cannot get inventory", http.StatusInternalServerError)
			}

			return
		}

		w.Header().Set("Content-Type", "application/json")
		w.Write(data)
	}
}

func NewReportHandler(srv ReportService, log *slog.Logger) http.HandlerFunc {
	log = log.With(slog.String("handler", "ReportHandler"))

	return func(w http.ResponseWriter, r *http.Request) {
		content, err := srv.Report(r.Context())
		if err != nil {
			switch {
			case errors.Is(err, common.ErrReportNotFound):
				http.Error(w, "Report not found", http.StatusNotFound)
			default:
				log.Error("Cannot get report", slog.Any("error", err))
				http.Error(w, "Cannot get report", http.StatusInternalServerError)
			}

			return
		}

		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.Write([]byte(content))
	}
}

// optionsFromQuery overrides defaults with the recheck, force and full query
// flags. Unparsable values leave the default in place.
func optionsFromQuery(r *http.Request, defaults reconcile.Options) reconcile.Options {
	opts := defaults
	q := r.URL.Query()

	flags := map[string]*bool{
		"recheck": &opts.Recheck,
		"force":   &opts.Force,
		"full":    &opts.FullScan,
	}
	for name, dst := range flags {
		if !q.Has(name) {
			continue
		}
		if v, err := strconv.ParseBool(q.Get(name)); err == nil {
			*dst = v
		}
	}

	return opts
}
