package db

import (
	"compress/gzip"
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/spectrum.report/internal/spectro"
	"github.com/banshee-data/spectrum.report/internal/spectro/l4reference"
	"github.com/banshee-data/spectrum.report/internal/testutil"
)

func newTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := NewDB(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("Failed to create database: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func TestNewDB_MigratesToLatest(t *testing.T) {
	db := newTestDB(t)

	latest, err := LatestMigrationVersion()
	require.NoError(t, err)
	assert.Equal(t, uint(3), latest)

	version, dirty, err := db.MigrateVersion()
	require.NoError(t, err)
	assert.False(t, dirty)
	assert.Equal(t, latest, version)

	// Re-running is a no-op.
	require.NoError(t, db.MigrateUp())
}

func TestMigrateDown(t *testing.T) {
	db := newTestDB(t)

	require.NoError(t, db.MigrateDown())
	version, _, err := db.MigrateVersion()
	require.NoError(t, err)
	assert.Equal(t, uint(2), version)

	_, err = db.ListCalibrations(context.Background(), 0)
	assert.Error(t, err, "calibration_runs should be dropped")

	require.NoError(t, db.MigrateUp())
	_, err = db.ListCalibrations(context.Background(), 0)
	assert.NoError(t, err)
}

func TestPragmas(t *testing.T) {
	db := newTestDB(t)

	var mode string
	require.NoError(t, db.QueryRow("PRAGMA journal_mode").Scan(&mode))
	assert.Equal(t, "wal", strings.ToLower(mode))
}

func TestReferences(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	ref, err := spectro.NewReferenceSpectrum("halogen", []float64{400, 500, 600}, []float64{0.2, 0.6, 1})
	require.NoError(t, err)
	info, err := db.SaveReference(ctx, ref, "import")
	require.NoError(t, err)
	assert.Equal(t, 3, info.Rows)
	assert.Equal(t, 400.0, info.MinNM)
	assert.Equal(t, 600.0, info.MaxNM)

	got, err := db.GetReference(ctx, info.ID)
	require.NoError(t, err)
	assert.Equal(t, ref, got)

	list, err := db.ListReferences(ctx)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, *info, list[0])

	require.NoError(t, db.DeleteReference(ctx, info.ID))
	_, err = db.GetReference(ctx, info.ID)
	assert.True(t, errors.Is(err, ErrNotFound))
	assert.True(t, errors.Is(db.DeleteReference(ctx, info.ID), ErrNotFound))
}

func TestExports(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	s := testutil.FlatSpectrum(spectro.Grid{StartNM: 500, EndNM: 504, StepNM: 1}, 0.25)
	s.Seq = 42
	s.Start = time.Date(2026, 3, 1, 12, 0, 0, 500, time.UTC)
	peaks := []spectro.Feature{{Wavelength: 502, Intensity: 0.25, Prominence: 0.1, Bin: 2}}

	saved, err := db.SaveExport(ctx, "lamp", s, peaks, nil)
	require.NoError(t, err)

	got, err := db.GetExport(ctx, saved.ID)
	require.NoError(t, err)
	assert.Equal(t, "lamp", got.Name)
	assert.Equal(t, "intensity", got.Mode)
	assert.Equal(t, uint64(42), got.FrameSeq)
	assert.Equal(t, 5, got.Bins)
	assert.True(t, s.Start.Equal(got.Captured))
	assert.Equal(t, peaks, got.Peaks)
	assert.Empty(t, got.Dips)
	assert.True(t, strings.HasPrefix(got.CSV, "wavelength,intensity,r,g,b,flags\n"), got.CSV)

	// The stored table reads back as a reference.
	ref, err := l4reference.ReadReferenceCSV(strings.NewReader(got.CSV), "lamp")
	require.NoError(t, err)
	assert.Equal(t, 5, ref.Len())

	_, err = db.SaveExport(ctx, "second", s, nil, nil)
	require.NoError(t, err)
	list, err := db.ListExports(ctx, 1)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "second", list[0].Name)
	assert.Empty(t, list[0].CSV)

	require.NoError(t, db.DeleteExport(ctx, saved.ID))
	_, err = db.GetExport(ctx, saved.ID)
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestCalibrations(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	f := &l4reference.Factors{
		Reference:   "halogen",
		Scale:       1,
		Wavelengths: []float64{400, 401},
		Values:      []float64{2, 1},
		Unreliable:  []bool{false, true},
	}
	run, err := db.RecordCalibration(ctx, f)
	require.NoError(t, err)
	assert.Equal(t, 1, run.UnreliableBins)

	runs, err := db.ListCalibrations(ctx, 10)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, run.ID, runs[0].ID)
	assert.Equal(t, 2, runs[0].Bins)
	assert.Nil(t, runs[0].Factors)
}

func TestAdminRoutes(t *testing.T) {
	db := newTestDB(t)
	mux := http.NewServeMux()
	require.NoError(t, db.AttachAdminRoutes(mux))

	for _, path := range []string{"/debug/backup", "/debug/tailsql/"} {
		rec := httptest.NewRecorder()
		mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
		// tsweb may refuse non-tailnet callers; the route must still exist.
		assert.NotEqual(t, http.StatusNotFound, rec.Code, path)
	}
}

func TestServeBackup(t *testing.T) {
	db := newTestDB(t)

	rec := httptest.NewRecorder()
	db.serveBackup(rec, httptest.NewRequest(http.MethodGet, "/debug/backup", nil))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Contains(t, rec.Header().Get("Content-Disposition"), "backup-")

	gz, err := gzip.NewReader(rec.Body)
	require.NoError(t, err)
	data, err := io.ReadAll(gz)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(data), "SQLite format 3"))
}
