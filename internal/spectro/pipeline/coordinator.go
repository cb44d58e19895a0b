package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/banshee-data/spectrum.report/internal/spectro"
	"github.com/banshee-data/spectrum.report/internal/spectro/l1frames"
	"github.com/banshee-data/spectrum.report/internal/spectro/l2signal"
	"github.com/banshee-data/spectrum.report/internal/spectro/l4reference"
	"github.com/banshee-data/spectrum.report/internal/spectro/l5features"
	"github.com/banshee-data/spectrum.report/internal/timeutil"
)

// StatsInterval is how often Run logs cumulative counters.
const StatsInterval = 5 * time.Second

// PublishHook receives every snapshot on the processing goroutine. Hooks
// must not block.
type PublishHook func(*Snapshot)

type captureSession struct {
	session uint64
	id      string
	source  l1frames.FrameSource
	cancel  context.CancelFunc
	done    chan struct{}
}

type command struct {
	fn    func(p *processor) (interface{}, error)
	reply chan commandResult
}

type commandResult struct {
	val interface{}
	err error
}

// processor is the state owned by the processing goroutine.
type processor struct {
	cfg            *compiled
	session        uint64
	temporal       *l2signal.TemporalStage
	calibration    l4reference.CalibrationEngine
	absorption     l4reference.AbsorptionEngine
	lastMapped     *spectro.Spectrum // after wavelength mapping
	lastCalibrated *spectro.Spectrum // after calibration, before absorbance
}

// Coordinator runs the spectrometer pipeline.
type Coordinator struct {
	clock timeutil.Clock

	// mu guards attach/detach transitions and the capture session.
	mu      sync.Mutex
	capture *captureSession
	lastErr error

	state atomic.Int32
	// session is the most recently attached session. live is the session
	// whose frames may still be published: Detach and device errors clear
	// it, end of stream does not, so queued frames of a finite source flush.
	session  atomic.Uint64
	live     atomic.Uint64
	frameSeq atomic.Uint64

	// cfgMu makes UpdateConfig's stores of current, pending and the inbox
	// depth one step, so Config reports the snapshot that will be applied.
	cfgMu   sync.Mutex
	current atomic.Pointer[compiled]
	pending atomic.Pointer[compiled]
	ref     atomic.Pointer[spectro.ReferenceSpectrum]

	inbox *inbox
	cmds  chan command

	// pubMu serialises publication so Seq and State stay consistent.
	pubMu  sync.Mutex
	pubSeq uint64
	hooks  []PublishHook
	latest atomic.Pointer[Snapshot]

	running atomic.Bool
	proc    processor

	captured      atomic.Uint64
	processed     atomic.Uint64
	pausedDrops   atomic.Uint64
	staleDrops    atomic.Uint64
	invalidFrames atomic.Uint64
	published     atomic.Uint64
	lastLatency   atomic.Int64
}

// NewCoordinator validates cfg and returns an idle coordinator. A nil clock
// uses the wall clock.
func NewCoordinator(cfg Config, clock timeutil.Clock) (*Coordinator, error) {
	comp, err := compile(cfg)
	if err != nil {
		return nil, err
	}
	if clock == nil {
		clock = timeutil.RealClock{}
	}
	temporal, err := l2signal.NewTemporalStage(comp.cfg.Filter)
	if err != nil {
		return nil, err
	}
	c := &Coordinator{
		clock: clock,
		inbox: newInbox(comp.cfg.QueueDepth),
		cmds:  make(chan command),
	}
	c.current.Store(comp)
	c.proc = processor{cfg: comp, temporal: temporal}
	c.latest.Store(&Snapshot{State: StateIdle, Published: clock.Now()})
	return c, nil
}

// OnPublish registers a hook called with every published snapshot.
func (c *Coordinator) OnPublish(h PublishHook) {
	c.pubMu.Lock()
	c.hooks = append(c.hooks, h)
	c.pubMu.Unlock()
}

// State returns the lifecycle state.
func (c *Coordinator) State() State { return State(c.state.Load()) }

// Err returns the device error that ended the last session, if any.
func (c *Coordinator) Err() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastErr
}

// Latest returns the most recently published snapshot. It never returns nil.
func (c *Coordinator) Latest() *Snapshot { return c.latest.Load() }

// Config returns the most recently accepted configuration.
func (c *Coordinator) Config() Config { return c.current.Load().cfg }

// Reference returns the stored reference spectrum, or nil.
func (c *Coordinator) Reference() *spectro.ReferenceSpectrum { return c.ref.Load() }

// Stats returns a copy of the counters.
func (c *Coordinator) Stats() Stats {
	return Stats{
		FramesCaptured:  c.captured.Load(),
		FramesProcessed: c.processed.Load(),
		FramesDropped:   c.inbox.Dropped(),
		FramesPaused:    c.pausedDrops.Load(),
		FramesStale:     c.staleDrops.Load(),
		FramesInvalid:   c.invalidFrames.Load(),
		Published:       c.published.Load(),
		LastLatency:     time.Duration(c.lastLatency.Load()),
		Queued:          c.inbox.Len(),
		QueueDepth:      c.inbox.Cap(),
	}
}

// UpdateConfig validates cfg and schedules it for the next frame boundary.
// An invalid cfg is rejected and the previous configuration stays active.
func (c *Coordinator) UpdateConfig(cfg Config) error {
	comp, err := compile(cfg)
	if err != nil {
		return err
	}
	c.cfgMu.Lock()
	c.current.Store(comp)
	c.pending.Store(comp)
	c.inbox.Resize(comp.cfg.QueueDepth)
	c.cfgMu.Unlock()
	diagf("config accepted: grid %.1f-%.1f/%.2f nm, depth %d, filter %v", comp.cfg.Grid.StartNM,
		comp.cfg.Grid.EndNM, comp.cfg.Grid.StepNM, comp.cfg.Filter.Depth, comp.cfg.Filter.Enabled)
	return nil
}

func (c *Coordinator) setState(s State, err error) {
	c.state.Store(int32(s))
	c.lastErr = err
}

// Attach starts capturing from src. It is only valid when idle.
func (c *Coordinator) Attach(src l1frames.FrameSource) error {
	c.mu.Lock()
	if c.State() != StateIdle {
		c.mu.Unlock()
		return fmt.Errorf("attach %s while %s: %w", src.Name(), c.State(), spectro.ErrInvalidState)
	}
	ctx, cancel := context.WithCancel(context.Background())
	cs := &captureSession{
		session: c.session.Add(1),
		id:      uuid.NewString(),
		source:  src,
		cancel:  cancel,
		done:    make(chan struct{}),
	}
	c.capture = cs
	c.live.Store(cs.session)
	if n := c.inbox.Drain(); n > 0 {
		c.staleDrops.Add(uint64(n))
	}
	c.setState(StateRunning, nil)
	c.mu.Unlock()

	diagf("attached %s (session %s)", src.Name(), cs.id)
	c.publishState()
	go c.captureLoop(ctx, cs)
	return nil
}

// Detach stops capture and returns to idle. Detaching while idle is a no-op.
func (c *Coordinator) Detach() error {
	c.mu.Lock()
	cs := c.capture
	if cs == nil {
		c.mu.Unlock()
		return nil
	}
	c.capture = nil
	c.live.Store(0)
	c.setState(StateIdle, nil)
	c.mu.Unlock()

	cs.cancel()
	if err := cs.source.Close(); err != nil {
		opsf("close %s: %v", cs.source.Name(), err)
	}
	<-cs.done
	if n := c.inbox.Drain(); n > 0 {
		c.staleDrops.Add(uint64(n))
	}
	diagf("detached %s (session %s)", cs.source.Name(), cs.id)
	c.publishState()
	return nil
}

// Pause stops processing new frames; frames captured while paused are
// dropped.
func (c *Coordinator) Pause() error {
	return c.transition(StateRunning, StatePaused)
}

// Resume continues a paused session.
func (c *Coordinator) Resume() error {
	return c.transition(StatePaused, StateRunning)
}

func (c *Coordinator) transition(from, to State) error {
	c.mu.Lock()
	if c.State() != from {
		cur := c.State()
		c.mu.Unlock()
		return fmt.Errorf("%s while %s: %w", to, cur, spectro.ErrInvalidState)
	}
	c.state.Store(int32(to))
	c.mu.Unlock()
	diagf("state %s -> %s", from, to)
	c.publishState()
	return nil
}

// endSession is called by the capture goroutine when its source ends.
func (c *Coordinator) endSession(cs *captureSession, err error) {
	c.mu.Lock()
	if c.capture != cs {
		c.mu.Unlock()
		return
	}
	c.capture = nil
	if err != nil {
		c.live.Store(0)
	}
	c.setState(StateIdle, err)
	c.mu.Unlock()

	if cerr := cs.source.Close(); cerr != nil {
		opsf("close %s: %v", cs.source.Name(), cerr)
	}
	c.publishState()
}

func (c *Coordinator) captureLoop(ctx context.Context, cs *captureSession) {
	defer close(cs.done)
	for {
		f, err := cs.source.Next(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			if errors.Is(err, io.EOF) {
				diagf("%s: end of stream", cs.source.Name())
				c.endSession(cs, nil)
				return
			}
			derr := &spectro.DeviceError{Op: "read " + cs.source.Name(), Err: err}
			opsf("%v", derr)
			c.endSession(cs, derr)
			return
		}
		f.Seq = c.frameSeq.Add(1)
		f.Session = cs.session
		c.captured.Add(1)

		if c.State() == StatePaused {
			c.pausedDrops.Add(1)
			continue
		}
		if c.inbox.Push(f) {
			tracef("inbox full, dropped oldest frame before seq %d", f.Seq)
		}
	}
}

// Run is the processing loop. It returns when ctx is cancelled, after
// detaching any source. Only one Run may be active at a time.
func (c *Coordinator) Run(ctx context.Context) error {
	if !c.running.CompareAndSwap(false, true) {
		return errors.New("pipeline: Run already active")
	}
	defer c.running.Store(false)

	ticker := c.clock.NewTicker(StatsInterval)
	defer ticker.Stop()
	var lastPublished uint64
	lastTick := c.clock.Now()

	for {
		select {
		case <-ctx.Done():
			if err := c.Detach(); err != nil {
				opsf("detach on shutdown: %v", err)
			}
			return ctx.Err()
		case cmd := <-c.cmds:
			c.applyPending()
			val, err := cmd.fn(&c.proc)
			cmd.reply <- commandResult{val: val, err: err}
		case <-c.inbox.Ready():
			if f, ok := c.inbox.Pop(); ok {
				c.processFrame(f)
			}
		case now := <-ticker.C():
			pub := c.published.Load()
			elapsed := now.Sub(lastTick).Seconds()
			fps := 0.0
			if elapsed > 0 {
				fps = float64(pub-lastPublished) / elapsed
			}
			lastPublished, lastTick = pub, now
			st := c.Stats()
			diagf("state=%s captured=%d processed=%d dropped=%d paused=%d stale=%d fps=%.1f latency=%v",
				c.State(), st.FramesCaptured, st.FramesProcessed, st.FramesDropped, st.FramesPaused,
				st.FramesStale, fps, st.LastLatency)
		}
	}
}

// do runs fn on the processing goroutine between frames.
func (c *Coordinator) do(ctx context.Context, fn func(p *processor) (interface{}, error)) (interface{}, error) {
	if !c.running.Load() {
		return nil, spectro.ErrNotRunning
	}
	cmd := command{fn: fn, reply: make(chan commandResult, 1)}
	select {
	case c.cmds <- cmd:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	select {
	case res := <-cmd.reply:
		return res.val, res.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// SetReference stores the reference used by Calibrate.
func (c *Coordinator) SetReference(ref *spectro.ReferenceSpectrum) {
	c.ref.Store(ref)
	diagf("reference set: %s (%d rows)", ref.Name, ref.Len())
}

// ClearReference forgets the stored reference. Active calibration factors
// are kept.
func (c *Coordinator) ClearReference() {
	c.ref.Store(nil)
}

// Calibrate computes calibration factors from the stored reference and the
// current live spectrum.
func (c *Coordinator) Calibrate(ctx context.Context) (*l4reference.Factors, error) {
	ref := c.ref.Load()
	if ref == nil {
		return nil, spectro.ErrNoReference
	}
	v, err := c.do(ctx, func(p *processor) (interface{}, error) {
		if p.lastMapped == nil {
			return nil, spectro.ErrNoSpectrum
		}
		f, err := p.calibration.Set(ref, p.cfg.cfg.ReferenceScale, p.lastMapped)
		if err != nil {
			return nil, err
		}
		// The zero reference was taken before calibration changed.
		p.absorption.Clear()
		diagf("calibrated against %s: %d of %d bins unreliable", ref.Name, f.UnreliableCount(), len(f.Values))
		c.republish(p)
		return f, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*l4reference.Factors), nil
}

// ClearCalibration restores pass-through.
func (c *Coordinator) ClearCalibration(ctx context.Context) error {
	_, err := c.do(ctx, func(p *processor) (interface{}, error) {
		p.calibration.Clear()
		c.republish(p)
		return nil, nil
	})
	return err
}

// CalibrationFactors returns the active factors, or nil.
func (c *Coordinator) CalibrationFactors(ctx context.Context) (*l4reference.Factors, error) {
	v, err := c.do(ctx, func(p *processor) (interface{}, error) {
		return p.calibration.Factors(), nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*l4reference.Factors), nil
}

// SetZeroReference stores the current post-calibration spectrum as the
// absorbance zero.
func (c *Coordinator) SetZeroReference(ctx context.Context) error {
	_, err := c.do(ctx, func(p *processor) (interface{}, error) {
		if p.lastCalibrated == nil {
			return nil, spectro.ErrNoSpectrum
		}
		if err := p.absorption.Set(p.lastCalibrated); err != nil {
			return nil, err
		}
		diagf("zero reference set from frame %d", p.lastCalibrated.Seq)
		c.republish(p)
		return nil, nil
	})
	return err
}

// ClearZeroReference returns to intensity mode.
func (c *Coordinator) ClearZeroReference(ctx context.Context) error {
	_, err := c.do(ctx, func(p *processor) (interface{}, error) {
		p.absorption.Clear()
		c.republish(p)
		return nil, nil
	})
	return err
}

// applyPending swaps in a pending configuration. Called only from Run.
func (c *Coordinator) applyPending() {
	next := c.pending.Swap(nil)
	if next == nil {
		return
	}
	p := &c.proc
	old := p.cfg.cfg
	cfg := next.cfg

	if old.Extract != cfg.Extract || !old.Condition.Equal(cfg.Condition) {
		p.temporal.ClearHistory()
	}
	if err := p.temporal.Configure(cfg.Filter); err != nil {
		// compile validated the filter, so this is a programming error.
		opsf("filter configure: %v", err)
	}
	if old.Grid != cfg.Grid {
		if p.calibration.Active() || p.absorption.Active() {
			diagf("output grid changed; clearing calibration and zero reference")
		}
		p.calibration.Clear()
		p.absorption.Clear()
		p.lastMapped, p.lastCalibrated = nil, nil
	}
	p.cfg = next
}

func (c *Coordinator) processFrame(f *spectro.Frame) {
	if f.Session != c.live.Load() {
		c.staleDrops.Add(1)
		return
	}
	if c.State() == StatePaused {
		c.pausedDrops.Add(1)
		return
	}
	start := c.clock.Now()
	c.applyPending()

	p := &c.proc
	if f.Session != p.session {
		p.temporal.Reset()
		p.session = f.Session
		p.lastMapped, p.lastCalibrated = nil, nil
	}
	cfg := p.cfg.cfg

	curves, err := l1frames.Extract(f, cfg.Extract)
	if err != nil {
		c.invalidFrames.Add(1)
		opsf("frame %d: %v", f.Seq, err)
		return
	}
	conditioned := l2signal.Condition(curves, cfg.Condition)
	filtered := p.temporal.Process(conditioned)
	spec := p.cfg.mapper.Map(filtered)
	spec.Seq, spec.Session, spec.Start, spec.End = f.Seq, f.Session, f.Start, f.End
	p.lastMapped = spec.Clone()

	c.processed.Add(1)
	if c.finish(p, spec, true) {
		latency := c.clock.Since(start)
		c.lastLatency.Store(int64(latency))
		tracef("frame %d published in %v", f.Seq, latency)
	}
}

// republish re-derives the published spectrum from the last mapped frame
// after a command changed calibration or absorbance state.
func (c *Coordinator) republish(p *processor) {
	if p.lastMapped == nil {
		return
	}
	c.finish(p, p.lastMapped.Clone(), false)
}

// finish applies calibration, absorbance and feature extraction, then
// publishes. It reports whether the snapshot was published.
func (c *Coordinator) finish(p *processor, spec *spectro.Spectrum, live bool) bool {
	p.calibration.Apply(spec)
	p.lastCalibrated = spec.Clone()
	p.absorption.Apply(spec)
	if n := spec.Sanitize(); n > 0 {
		opsf("frame %d: replaced %d non-finite values", spec.Seq, n)
	}
	peaks, dips := l5features.Extract(spec, p.cfg.cfg.Features)
	return c.publish(p, spec, peaks, dips, live)
}

// publish stores a spectrum snapshot. Fresh frames must belong to the live
// session; republished spectra only to the latest attached one.
func (c *Coordinator) publish(p *processor, spec *spectro.Spectrum, peaks, dips []spectro.Feature, live bool) bool {
	c.pubMu.Lock()
	defer c.pubMu.Unlock()

	want := c.session.Load()
	if live {
		want = c.live.Load()
	}
	if want == 0 || spec.Session != want {
		return false
	}
	st := c.State()
	prev := c.latest.Load()
	c.pubSeq++
	snap := &Snapshot{
		Seq:           c.pubSeq,
		State:         st,
		Source:        prev.Source,
		SessionID:     prev.SessionID,
		Err:           prev.Err,
		Published:     c.clock.Now(),
		Spectrum:      spec,
		Peaks:         peaks,
		Dips:          dips,
		Calibrated:    p.calibration.Active(),
		ZeroReference: p.absorption.Active(),
	}
	if ref := c.ref.Load(); ref != nil {
		snap.Reference = ref.Name
	}
	c.store(snap)
	return true
}

// publishState republishes the previous snapshot with the current state.
func (c *Coordinator) publishState() {
	c.mu.Lock()
	cs, lastErr := c.capture, c.lastErr
	c.mu.Unlock()

	c.pubMu.Lock()
	defer c.pubMu.Unlock()
	prev := c.latest.Load()
	snap := *prev
	c.pubSeq++
	snap.Seq = c.pubSeq
	snap.State = c.State()
	snap.Err = lastErr
	snap.Published = c.clock.Now()
	if cs != nil {
		snap.Source, snap.SessionID = cs.source.Name(), cs.id
	}
	if ref := c.ref.Load(); ref != nil {
		snap.Reference = ref.Name
	} else {
		snap.Reference = ""
	}
	c.store(&snap)
}

// store must be called with pubMu held.
func (c *Coordinator) store(snap *Snapshot) {
	c.latest.Store(snap)
	c.published.Add(1)
	for _, h := range c.hooks {
		h(snap)
	}
}
