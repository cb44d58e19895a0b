package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/spectrum.report/internal/config"
	"github.com/banshee-data/spectrum.report/internal/db"
	"github.com/banshee-data/spectrum.report/internal/feed"
	"github.com/banshee-data/spectrum.report/internal/spectro"
	"github.com/banshee-data/spectrum.report/internal/spectro/l1frames"
	"github.com/banshee-data/spectrum.report/internal/spectro/pipeline"
	"github.com/banshee-data/spectrum.report/internal/testutil"
	"github.com/banshee-data/spectrum.report/internal/timeutil"
)

const waitFor = 5 * time.Second

const flatReferenceCSV = "wavelength,value\n300,1\n800,1\n"

// blockingSource never produces a frame; it keeps a session running until
// detached.
type blockingSource struct {
	once   sync.Once
	closed chan struct{}
}

func newBlockingSource() *blockingSource { return &blockingSource{closed: make(chan struct{})} }

func (s *blockingSource) Name() string { return "blocking" }

func (s *blockingSource) Next(ctx context.Context) (*spectro.Frame, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-s.closed:
		return nil, errors.New("closed")
	}
}

func (s *blockingSource) Close() error {
	s.once.Do(func() { close(s.closed) })
	return nil
}

type testEnv struct {
	srv   *Server
	coord *pipeline.Coordinator
	store *db.DB
	hub   *feed.Hub
	mux   *http.ServeMux
}

type envOptions struct {
	store  bool
	source SourceFactory
}

// syntheticFactory yields finite synthetic sessions of six frames.
func syntheticFactory() (l1frames.FrameSource, error) {
	src := l1frames.NewSyntheticSource(timeutil.NewMockClock(time.Unix(0, 0)), 3)
	src.Height = 30
	src.MaxFrames = 6
	return src, nil
}

func newTestEnv(t *testing.T, o envOptions) *testEnv {
	t.Helper()
	cfg := config.DefaultConfig()
	cfg.VerticalWindow = &[2]int{10, 20}
	pc, err := cfg.ToPipelineConfig()
	require.NoError(t, err)
	coord, err := pipeline.NewCoordinator(pc, timeutil.NewMockClock(time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- coord.Run(ctx) }()
	t.Cleanup(func() {
		cancel()
		<-done
	})
	require.Eventually(t, func() bool {
		_, err := coord.CalibrationFactors(context.Background())
		return !errors.Is(err, spectro.ErrNotRunning)
	}, waitFor, time.Millisecond)

	env := &testEnv{coord: coord, hub: feed.NewHub(0)}
	if o.store {
		store, err := db.NewDB(filepath.Join(t.TempDir(), "spectrum.db"))
		require.NoError(t, err)
		t.Cleanup(func() { store.Close() })
		env.store = store
	}
	env.srv = NewServer(coord, env.store, env.hub, cfg, o.source)
	env.mux = env.srv.ServeMux()
	return env
}

func (e *testEnv) do(t *testing.T, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var r *http.Request
	if body == "" {
		r = httptest.NewRequest(method, path, nil)
	} else {
		r = httptest.NewRequest(method, path, strings.NewReader(body))
	}
	w := httptest.NewRecorder()
	e.mux.ServeHTTP(w, r)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &v), "body: %s", w.Body.String())
	return v
}

// capture runs one finite synthetic session and waits for its last frame.
func (e *testEnv) capture(t *testing.T) *pipeline.Snapshot {
	t.Helper()
	w := e.do(t, http.MethodPost, "/api/start", "")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	require.Eventually(t, func() bool {
		snap := e.coord.Latest()
		return snap.State == pipeline.StateIdle && snap.Spectrum != nil && snap.Spectrum.Seq == 6
	}, waitFor, time.Millisecond)
	return e.coord.Latest()
}

func TestState(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t, envOptions{})

	w := env.do(t, http.MethodGet, "/api/state", "")
	testutil.AssertStatusCode(t, w.Code, http.StatusOK)
	st := decode[map[string]interface{}](t, w)
	assert.Equal(t, "idle", st["state"])
	assert.Equal(t, false, st["calibrated"])

	w = env.do(t, http.MethodPost, "/api/state", "")
	testutil.AssertStatusCode(t, w.Code, http.StatusMethodNotAllowed)
}

func TestStats(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t, envOptions{})

	w := env.do(t, http.MethodGet, "/api/stats", "")
	testutil.AssertStatusCode(t, w.Code, http.StatusOK)
	resp := decode[StatsResponse](t, w)
	assert.Equal(t, pipeline.DefaultQueueDepth, resp.Pipeline.QueueDepth)
	require.NotNil(t, resp.Feed)
	assert.Equal(t, 0, resp.Feed.Clients)
}

func TestSpectrumEndpoints_NoSpectrum(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t, envOptions{})

	for _, path := range []string{"/api/spectrum", "/api/spectrum.csv", "/api/spectrum.png", "/api/features", "/charts/spectrum"} {
		w := env.do(t, http.MethodGet, path, "")
		assert.Equal(t, http.StatusConflict, w.Code, path)
	}
}

func TestSpectrumEndpoints(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t, envOptions{source: syntheticFactory})
	snap := env.capture(t)

	w := env.do(t, http.MethodGet, "/api/spectrum", "")
	testutil.AssertStatusCode(t, w.Code, http.StatusOK)
	resp := decode[SpectrumResponse](t, w)
	assert.Equal(t, uint64(6), resp.Seq)
	assert.Equal(t, "intensity", resp.Mode)
	assert.Len(t, resp.Wavelengths, 371)
	assert.Len(t, resp.Values, 371)
	assert.Len(t, resp.Flags, 371)
	assert.Len(t, resp.R, 371)
	assert.Equal(t, len(snap.Peaks), len(resp.Peaks))

	w = env.do(t, http.MethodGet, "/api/spectrum.csv", "")
	testutil.AssertStatusCode(t, w.Code, http.StatusOK)
	assert.Equal(t, "text/csv", w.Header().Get("Content-Type"))
	lines := strings.Split(strings.TrimSpace(w.Body.String()), "\n")
	assert.Equal(t, "wavelength,intensity,r,g,b,flags", lines[0])
	assert.Len(t, lines, 372)

	w = env.do(t, http.MethodGet, "/api/spectrum.png", "")
	testutil.AssertStatusCode(t, w.Code, http.StatusOK)
	assert.Equal(t, "image/png", w.Header().Get("Content-Type"))
	assert.True(t, bytes.HasPrefix(w.Body.Bytes(), []byte("\x89PNG")))

	w = env.do(t, http.MethodGet, "/charts/spectrum", "")
	testutil.AssertStatusCode(t, w.Code, http.StatusOK)
	assert.Contains(t, w.Body.String(), "Live Spectrum")

	w = env.do(t, http.MethodGet, "/api/features", "")
	testutil.AssertStatusCode(t, w.Code, http.StatusOK)
	features := decode[FeaturesResponse](t, w)
	assert.Equal(t, uint64(6), features.Seq)
	assert.NotNil(t, features.Dips)
}

func TestControl(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t, envOptions{source: func() (l1frames.FrameSource, error) { return newBlockingSource(), nil }})

	w := env.do(t, http.MethodPost, "/api/pause", "")
	testutil.AssertStatusCode(t, w.Code, http.StatusConflict)

	steps := []struct {
		path  string
		state string
	}{
		{"/api/start", "running"},
		{"/api/pause", "paused"},
		{"/api/resume", "running"},
		{"/api/stop", "idle"},
	}
	for _, s := range steps {
		w := env.do(t, http.MethodPost, s.path, "")
		require.Equal(t, http.StatusOK, w.Code, "%s: %s", s.path, w.Body.String())
		st := decode[StateResponse](t, w)
		assert.Equal(t, s.state, st.State.String(), s.path)
	}

	w = env.do(t, http.MethodGet, "/api/start", "")
	testutil.AssertStatusCode(t, w.Code, http.StatusMethodNotAllowed)
}

func TestStart_Errors(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t, envOptions{})
	w := env.do(t, http.MethodPost, "/api/start", "")
	testutil.AssertStatusCode(t, w.Code, http.StatusServiceUnavailable)

	env = newTestEnv(t, envOptions{source: func() (l1frames.FrameSource, error) { return newBlockingSource(), nil }})
	testutil.AssertStatusCode(t, env.do(t, http.MethodPost, "/api/start", "").Code, http.StatusOK)
	w = env.do(t, http.MethodPost, "/api/start", "")
	testutil.AssertStatusCode(t, w.Code, http.StatusConflict)
}

func TestConfig(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t, envOptions{})

	w := env.do(t, http.MethodGet, "/api/config", "")
	testutil.AssertStatusCode(t, w.Code, http.StatusOK)
	cfg := decode[config.SpectrometerConfig](t, w)
	assert.Equal(t, [2]int{10, 20}, cfg.GetVerticalWindow())

	w = env.do(t, http.MethodPut, "/api/config", `{"output_grid":{"start_nm":400,"end_nm":600,"step_nm":2}}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, spectro.Grid{StartNM: 400, EndNM: 600, StepNM: 2}, env.coord.Config().Grid)
	assert.Equal(t, [2]int{10, 20}, env.srv.Config().GetVerticalWindow(), "omitted fields keep their value")

	tests := []struct {
		name string
		body string
	}{
		{"invalid value", `{"queue_depth":0}`},
		{"unknown field", `{"bogus":1}`},
		{"non-monotonic calibration", `{"calibration_points":[{"pixel":400,"wavelength":500},{"pixel":300,"wavelength":600}]}`},
		{"malformed", `{"output_grid":`},
		{"unrepresentable grid", `{"output_grid":{"start_nm":0,"end_nm":1e300,"step_nm":1e-300}}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := env.do(t, http.MethodPut, "/api/config", tt.body)
			testutil.AssertStatusCode(t, w.Code, http.StatusBadRequest)
		})
	}
	assert.Equal(t, spectro.Grid{StartNM: 400, EndNM: 600, StepNM: 2}, env.coord.Config().Grid, "rejected updates change nothing")
	assert.Equal(t, pipeline.DefaultQueueDepth, env.coord.Config().QueueDepth)

	w = env.do(t, http.MethodDelete, "/api/config", "")
	testutil.AssertStatusCode(t, w.Code, http.StatusMethodNotAllowed)
}

func TestReference(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t, envOptions{})

	w := env.do(t, http.MethodGet, "/api/reference", "")
	testutil.AssertStatusCode(t, w.Code, http.StatusNotFound)

	w = env.do(t, http.MethodPut, "/api/reference?name=flat", flatReferenceCSV)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	ref := decode[ReferenceResponse](t, w)
	assert.Equal(t, ReferenceResponse{Name: "flat", Rows: 2, MinNM: 300, MaxNM: 800}, ref)

	w = env.do(t, http.MethodGet, "/api/reference.csv", "")
	testutil.AssertStatusCode(t, w.Code, http.StatusOK)
	assert.Equal(t, flatReferenceCSV, w.Body.String())

	w = env.do(t, http.MethodPut, "/api/reference", "wavelength,value\n500,1\n400,1\n")
	testutil.AssertStatusCode(t, w.Code, http.StatusBadRequest)
	w = env.do(t, http.MethodPut, "/api/reference?save=true", flatReferenceCSV)
	testutil.AssertStatusCode(t, w.Code, http.StatusServiceUnavailable)

	w = env.do(t, http.MethodDelete, "/api/reference", "")
	testutil.AssertStatusCode(t, w.Code, http.StatusOK)
	assert.Nil(t, env.coord.Reference())
}

func TestTungstenReference(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t, envOptions{})

	w := env.do(t, http.MethodPost, "/api/reference/tungsten?temp=3000&step=5", "")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	ref := decode[ReferenceResponse](t, w)
	assert.Equal(t, "tungsten-3000K", ref.Name)
	assert.Equal(t, 340.0, ref.MinNM)
	assert.Equal(t, "tungsten-3000K", env.coord.Reference().Name)

	for _, q := range []string{"temp=100", "temp=abc", "step=-1", "step=1e-300"} {
		w := env.do(t, http.MethodPost, "/api/reference/tungsten?"+q, "")
		assert.Equal(t, http.StatusBadRequest, w.Code, q)
	}
}

func TestStoredReferences(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t, envOptions{store: true})

	w := env.do(t, http.MethodPost, "/api/reference/tungsten?save=true", "")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	saved := decode[ReferenceResponse](t, w)
	require.NotEmpty(t, saved.ID)
	env.coord.ClearReference()

	w = env.do(t, http.MethodGet, "/api/references", "")
	testutil.AssertStatusCode(t, w.Code, http.StatusOK)
	list := decode[[]db.ReferenceInfo](t, w)
	require.Len(t, list, 1)
	assert.Equal(t, "tungsten", list[0].Source)

	w = env.do(t, http.MethodGet, "/api/references/"+saved.ID, "")
	testutil.AssertStatusCode(t, w.Code, http.StatusOK)
	assert.True(t, strings.HasPrefix(w.Body.String(), "wavelength,value\n"))

	w = env.do(t, http.MethodPost, "/api/references/"+saved.ID+"/use", "")
	testutil.AssertStatusCode(t, w.Code, http.StatusOK)
	require.NotNil(t, env.coord.Reference())
	assert.Equal(t, saved.Name, env.coord.Reference().Name)

	w = env.do(t, http.MethodDelete, "/api/references/"+saved.ID, "")
	testutil.AssertStatusCode(t, w.Code, http.StatusNoContent)
	w = env.do(t, http.MethodGet, "/api/references/"+saved.ID, "")
	testutil.AssertStatusCode(t, w.Code, http.StatusNotFound)
	w = env.do(t, http.MethodPost, "/api/references/missing/use", "")
	testutil.AssertStatusCode(t, w.Code, http.StatusNotFound)
}

func TestCalibrationAndZero(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t, envOptions{store: true, source: syntheticFactory})

	w := env.do(t, http.MethodPost, "/api/calibration", "")
	testutil.AssertStatusCode(t, w.Code, http.StatusConflict) // no reference

	env.do(t, http.MethodPut, "/api/reference?name=flat", flatReferenceCSV)
	w = env.do(t, http.MethodPost, "/api/calibration", "")
	testutil.AssertStatusCode(t, w.Code, http.StatusConflict) // no spectrum

	env.capture(t)
	w = env.do(t, http.MethodPost, "/api/calibration", "")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	cal := decode[CalibrationResponse](t, w)
	assert.True(t, cal.Active)
	assert.Equal(t, "flat", cal.Reference)
	assert.Equal(t, 371, cal.Bins)
	assert.NotEmpty(t, cal.RunID)
	assert.True(t, env.coord.Latest().Calibrated)

	w = env.do(t, http.MethodGet, "/api/calibration", "")
	testutil.AssertStatusCode(t, w.Code, http.StatusOK)
	assert.True(t, decode[CalibrationResponse](t, w).Active)

	w = env.do(t, http.MethodGet, "/api/calibrations", "")
	testutil.AssertStatusCode(t, w.Code, http.StatusOK)
	assert.Len(t, decode[[]db.CalibrationRun](t, w), 1)

	w = env.do(t, http.MethodPost, "/api/zero", "")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	st := decode[StateResponse](t, w)
	assert.True(t, st.ZeroReference)
	assert.Equal(t, "absorbance", st.Mode)

	w = env.do(t, http.MethodDelete, "/api/zero", "")
	testutil.AssertStatusCode(t, w.Code, http.StatusOK)
	assert.Equal(t, "intensity", decode[StateResponse](t, w).Mode)

	w = env.do(t, http.MethodDelete, "/api/calibration", "")
	testutil.AssertStatusCode(t, w.Code, http.StatusOK)
	assert.False(t, decode[CalibrationResponse](t, w).Active)
	assert.False(t, env.coord.Latest().Calibrated)
}

func TestCaptureReference(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t, envOptions{source: syntheticFactory})
	env.capture(t)

	w := env.do(t, http.MethodPost, "/api/reference/capture", "")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "capture-6", decode[ReferenceResponse](t, w).Name)
}

func TestExports(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t, envOptions{source: syntheticFactory})
	w := env.do(t, http.MethodGet, "/api/exports", "")
	testutil.AssertStatusCode(t, w.Code, http.StatusServiceUnavailable)

	env = newTestEnv(t, envOptions{store: true, source: syntheticFactory})
	w = env.do(t, http.MethodPost, "/api/exports", "")
	testutil.AssertStatusCode(t, w.Code, http.StatusConflict)

	env.capture(t)
	w = env.do(t, http.MethodPost, "/api/exports?name=lamp", "")
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	saved := decode[db.Export](t, w)
	assert.Equal(t, "lamp", saved.Name)
	assert.Equal(t, uint64(6), saved.FrameSeq)

	w = env.do(t, http.MethodGet, "/api/exports?limit=10", "")
	testutil.AssertStatusCode(t, w.Code, http.StatusOK)
	assert.Len(t, decode[[]db.Export](t, w), 1)
	w = env.do(t, http.MethodGet, "/api/exports?limit=0", "")
	testutil.AssertStatusCode(t, w.Code, http.StatusBadRequest)

	w = env.do(t, http.MethodGet, "/api/exports/"+saved.ID, "")
	testutil.AssertStatusCode(t, w.Code, http.StatusOK)
	assert.True(t, strings.HasPrefix(w.Body.String(), "wavelength,intensity,r,g,b,flags\n"))
	assert.Equal(t, `attachment; filename="lamp.csv"`, w.Header().Get("Content-Disposition"))

	w = env.do(t, http.MethodGet, "/api/exports/"+saved.ID+"?format=json", "")
	testutil.AssertStatusCode(t, w.Code, http.StatusOK)
	assert.Equal(t, "lamp", decode[db.Export](t, w).Name)

	w = env.do(t, http.MethodDelete, "/api/exports/"+saved.ID, "")
	testutil.AssertStatusCode(t, w.Code, http.StatusNoContent)
	w = env.do(t, http.MethodGet, "/api/exports/"+saved.ID, "")
	testutil.AssertStatusCode(t, w.Code, http.StatusNotFound)
}

func TestWriteError(t *testing.T) {
	t.Parallel()

	tests := []struct {
		err  error
		want int
	}{
		{spectro.Invalidf("grid", "bad"), http.StatusBadRequest},
		{&spectro.NonMonotonicError{What: "x", Index: 1}, http.StatusBadRequest},
		{db.ErrNotFound, http.StatusNotFound},
		{spectro.ErrNotRunning, http.StatusServiceUnavailable},
		{spectro.ErrNoSpectrum, http.StatusConflict},
		{spectro.ErrNoReference, http.StatusConflict},
		{spectro.ErrInvalidState, http.StatusConflict},
		{&spectro.DeviceError{Op: "read", Err: errors.New("unplugged")}, http.StatusBadGateway},
		{context.DeadlineExceeded, http.StatusGatewayTimeout},
		{errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		w := httptest.NewRecorder()
		writeError(w, tt.err)
		assert.Equal(t, tt.want, w.Code, tt.err.Error())
	}
}

func TestLoggingMiddleware(t *testing.T) {
	var buf bytes.Buffer
	SetLogWriters(nil, &buf, nil)
	t.Cleanup(func() { SetLogWriters(nil, nil, nil) })

	h := LoggingMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))
	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/state?x=1", nil))

	assert.Equal(t, http.StatusTeapot, w.Code)
	assert.Contains(t, buf.String(), `"status":418`)
	assert.Contains(t, buf.String(), `"uri":"/api/state?x=1"`)
}
