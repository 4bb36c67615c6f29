package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/google/uuid"
	"github.com/rewired-gh/zonewatch/internal/logger"
	"github.com/rewired-gh/zonewatch/internal/models"
)

// endTimeout bounds the best-effort remote stop call.
const endTimeout = 5 * time.Second

// ErrStartAborted is returned by Start when Stop was called before the
// remote start completed.
var ErrStartAborted = errors.New("analysis start aborted")

// ApplyFunc receives every accepted update. It runs with the session lock
// held, so it must not call back into the session.
type ApplyFunc func(mode Mode, u *models.FrameUpdate)

// Options configures a Session.
type Options struct {
	Mode     Mode
	Source   Source
	Interval time.Duration
	Clock    clock.Clock
	// Ready checks start preconditions; a nil Ready always passes.
	Ready func() error
	// OnStart runs without the session lock once preconditions passed and
	// the session is Starting, before the remote start and the first poll.
	OnStart func(mode Mode)
	Apply   ApplyFunc
}

// Session is one analysis state machine. It is safe for concurrent use.
type Session struct {
	mode     Mode
	source   Source
	interval time.Duration
	clock    clock.Clock
	ready    func() error
	onStart  func(mode Mode)
	apply    ApplyFunc

	mu        sync.Mutex
	state     State
	runID     string
	cancel    context.CancelFunc
	polled    int
	total     int
	lastFrame int
	lastErr   error
	endReason error
	startedAt time.Time
	listeners []func(Info)

	wg sync.WaitGroup
}

// New creates an idle Session.
func New(opts Options) *Session {
	clk := opts.Clock
	if clk == nil {
		clk = clock.New()
	}
	return &Session{
		mode:     opts.Mode,
		source:   opts.Source,
		interval: opts.Interval,
		clock:    clk,
		ready:    opts.Ready,
		onStart:  opts.OnStart,
		apply:    opts.Apply,
	}
}

// Mode returns the session's analysis mode.
func (s *Session) Mode() Mode {
	return s.mode
}

// OnStateChange registers a callback invoked after every state transition.
func (s *Session) OnStateChange(fn func(Info)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listeners = append(s.listeners, fn)
}

// Status returns the current state.
func (s *Session) Status() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Info returns a view of the session.
func (s *Session) Info() Info {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.infoLocked()
}

func (s *Session) infoLocked() Info {
	info := Info{
		Mode:         s.mode.String(),
		State:        s.state.String(),
		RunID:        s.runID,
		FramesPolled: s.polled,
		TotalFrames:  s.total,
		LastFrame:    s.lastFrame,
		StartedAt:    s.startedAt,
	}
	if s.lastErr != nil {
		info.LastError = s.lastErr.Error()
	}
	if s.endReason != nil {
		info.EndReason = s.endReason.Error()
	}
	return info
}

// Start begins remote analysis and the poll loop. It returns
// models.ErrAlreadyRunning, without spawning a second poller, when the
// session is Starting or Running.
func (s *Session) Start(ctx context.Context) error {
	s.mu.Lock()
	switch s.state {
	case Starting, Running:
		s.mu.Unlock()
		return models.ErrAlreadyRunning
	case Stopping:
		s.mu.Unlock()
		return fmt.Errorf("%w: %s analysis is stopping", models.ErrPreconditionFailed, s.mode)
	}
	if s.ready != nil {
		if err := s.ready(); err != nil {
			s.mu.Unlock()
			return err
		}
	}

	runID := uuid.New().String()
	pollCtx, cancel := context.WithCancel(context.Background())
	s.state = Starting
	s.runID = runID
	s.cancel = cancel
	s.polled, s.total, s.lastFrame = 0, 0, 0
	s.lastErr = nil
	s.endReason = nil
	s.startedAt = s.clock.Now()
	s.mu.Unlock()
	s.emit()

	if s.onStart != nil {
		s.onStart(s.mode)
	}

	// The remote start follows the caller's ctx and is also aborted by Stop.
	beginCtx, cancelBegin := context.WithCancel(pollCtx)
	release := context.AfterFunc(ctx, cancelBegin)
	total, err := s.source.Begin(beginCtx)
	release()
	cancelBegin()

	s.mu.Lock()
	if s.runID != runID || s.state != Starting {
		s.mu.Unlock()
		if err != nil {
			return fmt.Errorf("%w: %w", ErrStartAborted, err)
		}
		return ErrStartAborted
	}
	if err != nil {
		s.state = Idle
		s.lastErr = err
		s.runID = ""
		s.cancel = nil
		s.mu.Unlock()
		cancel()
		s.emit()
		logger.Warn("Failed to start %s analysis: %v", s.mode, err)
		return err
	}
	s.state = Running
	s.total = total
	s.wg.Add(1)
	go s.poll(pollCtx, runID)
	s.mu.Unlock()
	s.emit()

	logger.Info("Started %s analysis (run %s, interval %v, total frames %d)", s.mode, runID, s.interval, total)
	return nil
}

// Stop cancels the poll loop, then stops remote analysis best effort, and
// leaves the session Idle. Once Stop returns no further update is applied.
// Stopping a session that is not active is a no-op.
func (s *Session) Stop(ctx context.Context) error {
	s.mu.Lock()
	if s.state != Starting && s.state != Running {
		s.mu.Unlock()
		return nil
	}
	s.state = Stopping
	cancel := s.cancel
	s.cancel = nil
	s.mu.Unlock()
	s.emit()

	if cancel != nil {
		cancel()
	}
	s.wg.Wait()

	s.end(ctx)

	s.mu.Lock()
	if s.state == Stopping {
		s.state = Idle
		s.runID = ""
	}
	s.mu.Unlock()
	s.emit()

	logger.Info("Stopped %s analysis", s.mode)
	return nil
}

// EndReason reports why the last run ended on its own: models.ErrSessionFinished
// for a completed source, the poll error for a failed one. It is nil while a
// run is active and after an explicit Stop.
func (s *Session) EndReason() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.endReason
}

// Wait blocks until the current poll goroutine, if any, has exited.
func (s *Session) Wait() {
	s.wg.Wait()
}

// end stops remote analysis; failures are only logged.
func (s *Session) end(ctx context.Context) {
	endCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), endTimeout)
	defer cancel()
	if err := s.source.End(endCtx); err != nil {
		logger.Warn("Failed to stop %s analysis on backend: %v", s.mode, err)
	}
}

func (s *Session) emit() {
	s.mu.Lock()
	info := s.infoLocked()
	listeners := make([]func(Info), len(s.listeners))
	copy(listeners, s.listeners)
	s.mu.Unlock()

	for _, fn := range listeners {
		fn(info)
	}
}
