// Package engine implements LoopEngine: the orchestrator that owns every
// other component, runs the five concurrent loops, and serves the command
// handler catalog.
package engine

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/iltempo/oiduna-loop/internal/clockgen"
	"github.com/iltempo/oiduna-loop/internal/command"
	"github.com/iltempo/oiduna-loop/internal/destination"
	"github.com/iltempo/oiduna-loop/internal/drift"
	"github.com/iltempo/oiduna-loop/internal/message"
	"github.com/iltempo/oiduna-loop/internal/metrics"
	"github.com/iltempo/oiduna-loop/internal/midiout"
	"github.com/iltempo/oiduna-loop/internal/noteoff"
	"github.com/iltempo/oiduna-loop/internal/oscout"
	"github.com/iltempo/oiduna-loop/internal/runtime"
	"github.com/iltempo/oiduna-loop/internal/scheduler"
	"github.com/iltempo/oiduna-loop/internal/stepproc"
	"github.com/iltempo/oiduna-loop/internal/telemetry"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

// Step-loop thresholds; the clock generator carries its own,
// tighter thresholds internally.
const (
	StepDriftResetThreshold   = 50 * time.Millisecond
	StepDriftWarningThreshold = 20 * time.Millisecond

	HeartbeatInterval = 5 * time.Second

	commandBackoffFloor   = time.Millisecond
	commandBackoffCeiling = 50 * time.Millisecond

	notLoopIdleSleep = time.Millisecond
)

// Hook is a pre-supplied transform applied, in order, to the messages due
// at the current step before they reach the router.
// Discovery of hooks is the embedding layer's job, never the engine's.
type Hook func(msgs []message.ScheduledMessage, bpm float64, step int) []message.ScheduledMessage

// Config collects everything LoopEngine needs at construction time; no
// value here is ever read back from engine state.
type Config struct {
	DestinationsPath  string
	LegacyMidiPort    string // port name opened for NoteScheduler/ClockGenerator/panic; empty disables legacy MIDI
	LegacyOscHost     string
	LegacyOscPort     int
	LegacyOscAddress  string // defaults to "/dirt/play"
	TelemetryCapacity int
	Hooks             []Hook
	Metrics           *metrics.Metrics
}

// Engine is the single owning handle for the whole runtime. Command
// handlers are methods on it; telemetry consumers drain its Queue
// directly: there are no hidden globals.
type Engine struct {
	cfg Config
	log zerolog.Logger

	state     *runtime.State
	scheduler *scheduler.MessageScheduler
	router    *destination.Router
	commands  command.Source
	Telemetry *telemetry.Queue
	metrics   *metrics.Metrics
	hooks     []Hook

	legacyMidi midiout.Output
	legacyOsc  oscout.Output
	noteSched  *noteoff.Scheduler
	clock      *clockgen.Generator
	stepProc   *stepproc.StepProcessor

	stepTracker *drift.Tracker

	mu          sync.Mutex
	started     bool
	running     atomic.Bool
	connPrev    map[string]bool
	lastDropped int
}

// New wires every collaborator but opens nothing — ports and sockets are
// connected by Start.
func New(cfg Config, commands command.Source, log zerolog.Logger) *Engine {
	if cfg.TelemetryCapacity <= 0 {
		cfg.TelemetryCapacity = 256
	}
	if cfg.LegacyOscAddress == "" {
		cfg.LegacyOscAddress = "/dirt/play"
	}
	return &Engine{
		cfg:         cfg,
		log:         log,
		state:       runtime.New(),
		scheduler:   scheduler.New(),
		router:      destination.NewRouter(log),
		commands:    commands,
		Telemetry:   telemetry.NewQueue(cfg.TelemetryCapacity),
		metrics:     cfg.Metrics,
		hooks:       cfg.Hooks,
		stepTracker: drift.New(StepDriftResetThreshold, StepDriftWarningThreshold),
		connPrev:    map[string]bool{},
	}
}

// Start connects senders and the legacy outputs, loads destination
// configuration, and is idempotent with respect to a second call.
func (e *Engine) Start() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.started {
		return nil
	}

	e.legacyMidi = e.openLegacyMidi()
	e.noteSched = noteoff.New(e.legacyMidi)
	e.clock = clockgen.New(e.legacyMidi)
	e.clock.IsPlaying = func() bool { return e.state.Playback() == runtime.Playing }
	e.clock.PulseDuration = e.state.PulseDuration
	e.clock.OnDrift = e.onClockDrift

	e.legacyOsc = e.openLegacyOsc()
	e.stepProc = stepproc.New(e.legacyOsc, e.cfg.LegacyOscAddress)

	if e.cfg.DestinationsPath != "" {
		cfgDest, errs := destination.LoadConfig(e.cfg.DestinationsPath)
		for _, err := range errs {
			e.log.Warn().Err(err).Msg("destination config entry rejected")
		}
		if cfgDest != nil {
			e.router.Load(cfgDest)
		}
	}

	e.started = true
	return nil
}

func (e *Engine) openLegacyMidi() midiout.Output {
	if e.cfg.LegacyMidiPort == "" {
		return midiout.Null{}
	}
	port, err := midiout.OpenByName(e.cfg.LegacyMidiPort)
	if err != nil {
		e.log.Warn().Err(err).Str("port_name", e.cfg.LegacyMidiPort).Msg("legacy midi port open failed, continuing without it")
		return midiout.Null{}
	}
	return port
}

func (e *Engine) openLegacyOsc() oscout.Output {
	if e.cfg.LegacyOscHost == "" {
		return oscout.Null{}
	}
	return oscout.Dial(e.cfg.LegacyOscHost, e.cfg.LegacyOscPort)
}

// Stop marks the engine not-running, performs a Stop transition if
// currently playing, and disconnects every sender.
func (e *Engine) Stop() {
	e.running.Store(false)
	if e.state.Playback() == runtime.Playing {
		e.state.Stop(time.Now())
		_ = e.legacyMidi.SendStop()
	}
	if e.noteSched != nil {
		_ = e.noteSched.ClearAll()
	}
	if e.router != nil {
		e.router.Close()
	}
	if e.legacyMidi != nil {
		_ = e.legacyMidi.Close()
	}
	if e.legacyOsc != nil {
		_ = e.legacyOsc.Close()
	}
}

// Run cooperatively runs the five loops until ctx is cancelled. Each loop
// catches its own errors; Run only returns when ctx is done or a
// loop panics past its own recover, which should not happen.
func (e *Engine) Run(ctx context.Context) error {
	e.running.Store(true)
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error { return e.commandLoop(ctx) })
	g.Go(func() error { return e.stepLoop(ctx) })
	g.Go(func() error { return e.clock.Run(ctx) })
	g.Go(func() error { return e.noteOffLoop(ctx) })
	g.Go(func() error { return e.heartbeatLoop(ctx) })

	return g.Wait()
}

// LoadDestinations re-reads and re-registers the router configuration.
// Exposed for tests and for an embedding layer that wants to reload after
// a SIGHUP equivalent; the core itself never calls this on a timer.
func (e *Engine) LoadDestinations(path string) []error {
	cfg, errs := destination.LoadConfig(path)
	if cfg != nil {
		e.router.Load(cfg)
	}
	return errs
}

func (e *Engine) publishError(code, msg string) {
	e.Telemetry.Publish(telemetry.Error(code, msg))
}

func (e *Engine) onClockDrift(ev drift.Event) {
	e.publishError(telemetry.ErrCodeClockDriftReset, "clock loop drift reset, direction="+ev.Direction)
	if e.metrics != nil {
		e.metrics.DriftResetTotal.WithLabelValues("clock").Inc()
	}
}
