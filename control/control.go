// Package control runs the lathe's fixed-cadence control loop.
//
// One goroutine owns every piece of mutable state: axis offsets, the feed and
// direction selectors, held jog buttons. Each tick it issues an asynchronous
// hardware poll and sends the commands the tick produced; poll completions,
// operator intents and ticks are all handled on that goroutine. Polls carry the
// tick index they were issued on and a completion older than one already
// applied is dropped.
//
// Hardware failures never stop the loop. A failed poll leaves the position as
// it was and a failed command is logged; the next tick tries again.
package control

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/jt05610/lathe/axis"
	"github.com/jt05610/lathe/cycle"
	"github.com/jt05610/lathe/feed"
	"github.com/jt05610/lathe/hal"
	"github.com/jt05610/lathe/jog"
	"github.com/jt05610/lathe/metrics"
	"github.com/jt05610/lathe/tools"
	"github.com/jt05610/lathe/units"
	"go.uber.org/zap"
)

const (
	DefaultPeriod = 33333333 * time.Nanosecond

	maxInflight = 4
	queueSize   = 256
)

var (
	ErrAlreadyRunning  = errors.New("control loop already running")
	ErrNotRunning      = errors.New("control loop not running")
	ErrNoSample        = errors.New("no axis sample yet")
	ErrNoExecutor      = errors.New("no cycle executor")
	ErrProgramRunning  = errors.New("a program is running")
	ErrHardwareFaulted = errors.New("hardware reports an error")
)

// Executor runs generated cycles.
type Executor interface {
	Execute(ctx context.Context, p cycle.Params) error
}

type Config struct {
	HAL      hal.Client
	Executor Executor
	Tools    tools.ToolOffsets
	// System is the unit system of every length the loop is given.
	System units.System

	// Period is the tick cadence, DefaultPeriod when zero.
	Period time.Duration
	// PollTimeout and SendTimeout bound each hardware call. Both default to
	// fifteen periods.
	PollTimeout time.Duration
	SendTimeout time.Duration

	Ramp      jog.Ramp
	Pitch     Pitch
	Selection feed.Selection
	Menu      Menu

	// Now is the clock used for jog ramps, time.Now when nil.
	Now    func() time.Time
	Logger *zap.Logger
}

type submission struct {
	intent Intent
	done   chan struct{}
}

type session struct {
	cancel  context.CancelFunc
	done    chan struct{}
	intents chan submission
}

type poll struct {
	idx    uint64
	sample axis.Sample
	err    error
}

type Loop struct {
	hal      hal.Client
	executor Executor
	system   units.System
	period   time.Duration
	pollTO   time.Duration
	sendTO   time.Duration
	now      func() time.Time
	logger   *zap.Logger

	mu       sync.Mutex
	core     *core
	session  atomic.Pointer[session]
	snapshot atomic.Pointer[Snapshot]
}

func New(cfg Config) *Loop {
	if cfg.Period <= 0 {
		cfg.Period = DefaultPeriod
	}
	if cfg.PollTimeout <= 0 {
		cfg.PollTimeout = 15 * cfg.Period
	}
	if cfg.SendTimeout <= 0 {
		cfg.SendTimeout = 15 * cfg.Period
	}
	if cfg.Ramp == (jog.Ramp{}) {
		cfg.Ramp = jog.DefaultRamp
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	l := &Loop{
		hal:      cfg.HAL,
		executor: cfg.Executor,
		system:   cfg.System,
		period:   cfg.Period,
		pollTO:   cfg.PollTimeout,
		sendTO:   cfg.SendTimeout,
		now:      cfg.Now,
		logger:   cfg.Logger,
		core:     newCore(cfg.Tools, cfg.Ramp, cfg.Selection, cfg.Menu, cfg.Pitch),
	}
	l.snapshot.Store(l.core.snapshot(false))
	return l
}

// Running reports whether the loop is polling.
func (l *Loop) Running() bool {
	return l.session.Load() != nil
}

// Snapshot returns the state published after the loop's last action.
func (l *Loop) Snapshot() Snapshot {
	return *l.snapshot.Load()
}

// Start moves the loop from idle to polling.
func (l *Loop) Start(ctx context.Context) error {
	if l.hal == nil {
		return errors.New("control: no hardware client")
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.session.Load() != nil {
		return ErrAlreadyRunning
	}
	ctx, cancel := context.WithCancel(ctx)
	s := &session{
		cancel:  cancel,
		done:    make(chan struct{}),
		intents: make(chan submission),
	}
	l.core.refresh = true
	l.session.Store(s)
	l.logger.Info("Starting control loop", zap.Duration("period", l.period))
	go l.run(ctx, s)
	return nil
}

// Stop cancels the ticker and waits for the loop goroutine to exit. No tick
// runs and no state is read once Stop returns.
func (l *Loop) Stop() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	s := l.session.Load()
	if s == nil {
		return ErrNotRunning
	}
	s.cancel()
	<-s.done
	l.session.CompareAndSwap(s, nil)
	l.logger.Info("Stopped control loop")
	return nil
}

// Done is closed when the current session ends, whether by Stop or by the
// context given to Start. It is nil when the loop is idle.
func (l *Loop) Done() <-chan struct{} {
	if s := l.session.Load(); s != nil {
		return s.done
	}
	return nil
}

// Do submits an intent and waits until the loop has applied it.
func (l *Loop) Do(ctx context.Context, i Intent) error {
	if err := i.validate(); err != nil {
		return err
	}
	s := l.session.Load()
	if s == nil {
		return ErrNotRunning
	}
	sub := submission{intent: i, done: make(chan struct{})}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-s.done:
		return ErrNotRunning
	case s.intents <- sub:
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-s.done:
		return ErrNotRunning
	case <-sub.done:
		return nil
	}
}

func (l *Loop) publish(running bool) {
	l.snapshot.Store(l.core.snapshot(running))
}

func (l *Loop) run(ctx context.Context, s *session) {
	defer close(s.done)
	c := l.core
	ticker := time.NewTicker(l.period)
	defer ticker.Stop()

	polls := make(chan poll, maxInflight)
	inflight := make(chan struct{}, maxInflight)
	var pollers sync.WaitGroup
	defer pollers.Wait()

	tx := make(chan *hal.Out, queueSize)
	halt := make(chan struct{})
	var sender sync.WaitGroup
	sender.Add(1)
	go func() {
		defer sender.Done()
		l.dispatch(halt, tx)
	}()

	l.publish(true)
	metrics.Running.Set(1)
	for {
		select {
		case <-ctx.Done():
			close(halt)
			sender.Wait()
			l.shutdown(c)
			l.session.CompareAndSwap(s, nil)
			l.publish(false)
			metrics.Running.Set(0)
			return
		case <-ticker.C:
			if ctx.Err() != nil {
				continue
			}
			metrics.Ticks.Inc()
			idx, cmds := c.step(l.now())
			select {
			case inflight <- struct{}{}:
				pollers.Add(1)
				go func() {
					defer pollers.Done()
					defer func() { <-inflight }()
					l.poll(ctx, idx, polls)
				}()
			default:
				metrics.Polls.WithLabelValues("skipped").Inc()
				l.logger.Debug("Skipping poll, hardware is slow", zap.Uint64("tick", idx))
			}
			for _, cmd := range cmds {
				select {
				case tx <- cmd:
				default:
					metrics.Commands.WithLabelValues("dropped").Inc()
					l.logger.Error("Command queue full, dropping command", zap.Uint64("tick", idx))
				}
			}
			l.publish(true)
		case p := <-polls:
			if p.err != nil {
				metrics.Polls.WithLabelValues("error").Inc()
				l.logger.Debug("Poll failed", zap.Uint64("tick", p.idx), zap.Error(p.err))
				continue
			}
			if !c.observe(p.idx, p.sample) {
				metrics.Polls.WithLabelValues("stale").Inc()
				l.logger.Debug("Dropping stale sample", zap.Uint64("tick", p.idx), zap.Uint64("applied", c.applied))
				continue
			}
			metrics.Polls.WithLabelValues("ok").Inc()
			l.publish(true)
		case sub := <-s.intents:
			sub.intent.apply(c, l.now())
			l.logger.Debug("Applied intent", zap.String("intent", sub.intent.Name()))
			l.publish(true)
			close(sub.done)
		}
	}
}

func (l *Loop) poll(ctx context.Context, idx uint64, out chan<- poll) {
	ctx, cancel := context.WithTimeout(ctx, l.pollTO)
	defer cancel()
	start := time.Now()
	sample, err := l.hal.Poll(ctx)
	metrics.PollDuration.Observe(time.Since(start).Seconds())
	select {
	case out <- poll{idx: idx, sample: sample, err: err}:
	case <-ctx.Done():
	}
}

func (l *Loop) send(cmd *hal.Out) {
	ctx, cancel := context.WithTimeout(context.Background(), l.sendTO)
	defer cancel()
	if err := l.hal.Send(ctx, cmd); err != nil {
		metrics.Commands.WithLabelValues("failed").Inc()
		l.logger.Warn("Command failed", zap.Error(err))
		return
	}
	metrics.Commands.WithLabelValues("sent").Inc()
}

// dispatch sends commands one at a time, in order, until halt closes. Commands
// still queued when it does are sent before it returns.
func (l *Loop) dispatch(halt <-chan struct{}, tx <-chan *hal.Out) {
	for {
		select {
		case <-halt:
			for {
				select {
				case cmd := <-tx:
					l.send(cmd)
				default:
					return
				}
			}
		case cmd := <-tx:
			l.send(cmd)
		}
	}
}

// shutdown stops a jog still held, or released with its stop not yet sent, so
// the axis does not keep moving after the loop is gone.
func (l *Loop) shutdown(c *core) {
	if c.jog.Held() || c.jog.TakeStops() > 0 {
		c.jog.Reset()
		l.send(stopCommand())
	}
}

// ready checks that a cycle may be generated and returns the position to
// generate it from.
func (l *Loop) ready() (axis.Position, error) {
	if l.executor == nil {
		return axis.Position{}, ErrNoExecutor
	}
	snap := l.snapshot.Load()
	switch {
	case !snap.Running:
		return axis.Position{}, ErrNotRunning
	case !snap.Sampled:
		return axis.Position{}, ErrNoSample
	case snap.ProgramRunning:
		return axis.Position{}, ErrProgramRunning
	case snap.ErrorState:
		return axis.Position{}, ErrHardwareFaulted
	}
	return snap.Position, nil
}

func (l *Loop) execute(ctx context.Context, p cycle.Params) error {
	if err := l.executor.Execute(ctx, p); err != nil {
		metrics.Cycles.WithLabelValues(p.Kind().String(), "error").Inc()
		l.logger.Warn("Cycle dispatch failed", zap.Stringer("kind", p.Kind()), zap.Error(err))
		return err
	}
	metrics.Cycles.WithLabelValues(p.Kind().String(), "ok").Inc()
	fields := []zap.Field{zap.Stringer("kind", p.Kind()), zap.Int("passes", p.Passes())}
	if s, ok := p.(cycle.Scheduled); ok {
		fields = append(fields, zap.Float64s("depths", s.Depths()), zap.Float64("depth", s.TotalDepth()))
	}
	l.logger.Info("Dispatched cycle", fields...)
	return nil
}

// Thread converts in to the loop's unit system, validates it, generates a
// threading cycle from the current position and hands it to the executor.
// Nothing is sent when validation fails.
func (l *Loop) Thread(ctx context.Context, in *cycle.ThreadingInput) (*cycle.ThreadingParams, error) {
	if err := in.ConvertTo(l.system); err != nil {
		return nil, err
	}
	if err := validation(cycle.Threading, in.Validate(l.system)); err != nil {
		return nil, err
	}
	pos, err := l.ready()
	if err != nil {
		return nil, err
	}
	p, err := in.Generate(pos, l.system)
	if err != nil {
		return nil, err
	}
	return p, l.execute(ctx, p)
}

// Turn is Thread for turning cycles.
func (l *Loop) Turn(ctx context.Context, in *cycle.TurningInput) (*cycle.TurningParams, error) {
	if err := in.ConvertTo(l.system); err != nil {
		return nil, err
	}
	if err := validation(cycle.Turning, in.Validate()); err != nil {
		return nil, err
	}
	pos, err := l.ready()
	if err != nil {
		return nil, err
	}
	p, err := in.Generate(pos)
	if err != nil {
		return nil, err
	}
	return p, l.execute(ctx, p)
}

func validation(k cycle.Kind, msgs []string) error {
	if len(msgs) == 0 {
		return nil
	}
	return &cycle.ValidationError{Kind: k, Messages: msgs}
}
