package httphandler

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/jgivc/tagsync/internal/common"
	"github.com/jgivc/tagsync/internal/entity"
	"github.com/jgivc/tagsync/internal/service/reconcile"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type MockSyncService struct {
	mock.Mock
	ctxErr error
}

func (m *MockSyncService) Run(ctx context.Context, opts reconcile.Options) (*entity.RunResult, error) {
	m.ctxErr = ctx.Err()
	args := m.Called(opts)

	var res *entity.RunResult
	if r, ok := args.Get(0).(*entity.RunResult); ok {
		res = r
	}

	return res, args.Error(1)
}

func (m *MockSyncService) Start(opts reconcile.Options) error {
	return m.Called(opts).Error(0)
}

type MockExportService struct {
	mock.Mock
}

func (m *MockExportService) Inventory(context.Context) ([]byte, error) {
	args := m.Called()

	var data []byte
	if d, ok := args.Get(0).([]byte); ok {
		data = d
	}

	return data, args.Error(1)
}

func (m *MockExportService) Report(context.Context) (string, error) {
	args := m.Called()

	return args.String(0), args.Error(1)
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{}))
}

func TestSyncHandler(t *testing.T) {
	srv := new(MockSyncService)
	srv.On("Run", reconcile.Options{Recheck: true, Force: true}).
		Return(&entity.RunResult{ID: "run-1", Tags: 3}, nil).Once()

	h := NewSyncHandler(srv, reconcile.Options{Recheck: true}, testLogger())

	rec := httptest.NewRecorder()
	h(rec, httptest.NewRequest(http.MethodPost, "/sync/?force=1", nil))

	srv.AssertExpectations(t)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var res entity.RunResult
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&res))
	require.Equal(t, "run-1", res.ID)
	require.Equal(t, 3, res.Tags)
}

func TestSyncHandlerOutlivesRequest(t *testing.T) {
	srv := new(MockSyncService)
	srv.On("Run", mock.Anything).Return(&entity.RunResult{ID: "run-1"}, nil).Once()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	req := httptest.NewRequest(http.MethodPost, "/sync/", nil).WithContext(ctx)

	rec := httptest.NewRecorder()
	NewSyncHandler(srv, reconcile.Options{}, testLogger())(rec, req)

	srv.AssertExpectations(t)
	require.NoError(t, srv.ctxErr)
	require.Equal(t, http.StatusOK, rec.Code)
}

func TestSyncHandlerErrors(t *testing.T) {
	testCases := []struct {
		name   string
		err    error
		status int
	}{
		{name: "already running", err: common.ErrSyncAlreadyRunning, status: http.StatusConflict},
		{name: "catalog failure", err: errors.New("cannot query catalog"), status: http.StatusInternalServerError},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			srv := new(MockSyncService)
			srv.On("Run", mock.Anything).Return(nil, tc.err)

			rec := httptest.NewRecorder()
			NewSyncHandler(srv, reconcile.Options{}, testLogger())(rec, httptest.NewRequest(http.MethodPost, "/sync/", nil))

			require.Equal(t, tc.status, rec.Code)
		})
	}
}

func TestAsyncSyncHandler(t *testing.T) {
	srv := new(MockSyncService)
	srv.On("Start", reconcile.Options{FullScan: true}).Return(nil).Once()

	rec := httptest.NewRecorder()
	NewAsyncSyncHandler(srv, reconcile.Options{Recheck: true}, testLogger())(rec, httptest.NewRequest(http.MethodPost, "/sync/async/?full=true&recheck=0", nil))

	srv.AssertExpectations(t)
	require.Equal(t, http.StatusAccepted, rec.Code)
	srv.AssertNotCalled(t, "Run", mock.Anything)
}

func TestAsyncSyncHandlerErrors(t *testing.T) {
	testCases := []struct {
		name   string
		err    error
		status int
	}{
		{name: "already running", err: common.ErrSyncAlreadyRunning, status: http.StatusConflict},
		{name: "other", err: errors.New("broken"), status: http.StatusInternalServerError},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			srv := new(MockSyncService)
			srv.On("Start", mock.Anything).Return(tc.err)

			rec := httptest.NewRecorder()
			NewAsyncSyncHandler(srv, reconcile.Options{}, testLogger())(rec, httptest.NewRequest(http.MethodPost, "/sync/async/", nil))

			require.Equal(t, tc.status, rec.Code)
		})
	}
}

func TestInventoryHandler(t *testing.T) {
	srv := new(MockExportService)
	srv.On("Inventory").Return([]byte(`{"Foo":{}}`), nil).Once()
	srv.On("Inventory").Return(nil, common.ErrInventoryNotFound).Once()

	h := NewInventoryHandler(srv, testLogger())

	rec := httptest.NewRecorder()
	h(rec, httptest.NewRequest(http.MethodGet, "/inventory/", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	require.JSONEq(t, `{"Foo":{}}`, rec.Body.String())

	rec = httptest.NewRecorder()
	h(rec, httptest.NewRequest(http.MethodGet, "/inventory/", nil))
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestReportHandler(t *testing.T) {
	srv := new(MockExportService)
	srv.On("Report").Return("<html></html>", nil).Once()
	srv.On("Report").Return("", common.ErrReportNotFound).Once()
	srv.On("Report").Return("", errors.New("broken")).Once()

	h := NewReportHandler(srv, testLogger())

	rec := httptest.NewRecorder()
	h(rec, httptest.NewRequest(http.MethodGet, "/report/", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "<html></html>", rec.Body.String())

	rec = httptest.NewRecorder()
	h(rec, httptest.NewRequest(http.MethodGet, "/report/", nil))
	require.Equal(t, http.StatusNotFound, rec.Code)

	rec = httptest.NewRecorder()
	h(rec, httptest.NewRequest(http.MethodGet, "/report/", nil))
	require.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestOptionsFromQuery(t *testing.T) {
	defaults := reconcile.Options{Recheck: true}

	r := httptest.NewRequest(http.MethodPost, "/sync/?recheck=false&force=yes", nil)
	require.Equal(t, reconcile.Options{}, optionsFromQuery(r, defaults))

	r = httptest.NewRequest(http.MethodPost, "/sync/", nil)
	require.Equal(t, defaults, optionsFromQuery(r, defaults))
}
