package session

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/rewired-gh/zonewatch/internal/models"
)

// fakeBackend scripts the vision backend. Every Next call is reported on
// calls so tests can step the mock clock deterministically.
type fakeBackend struct {
	mu        sync.Mutex
	token     bool
	total     int
	startErr  error
	holdStart bool
	next      func(ctx context.Context, n int) (*models.FrameUpdate, error)
	nextCount int
	stopCount int
	events    []string
	calls     chan int
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{
		token: true,
		total: 300,
		calls: make(chan int, 100),
		next: func(ctx context.Context, n int) (*models.FrameUpdate, error) {
			return &models.FrameUpdate{ZoneCounts: map[models.ZoneID]int{"1": n}, FrameNumber: n}, nil
		},
	}
}

func (f *fakeBackend) record(event string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, event)
}

func (f *fakeBackend) Events() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.events...)
}

func (f *fakeBackend) HasCredential() bool { return f.token }

func (f *fakeBackend) StartAnalysis(ctx context.Context) (int, error) {
	f.record("start_analysis")
	if f.holdStart {
		<-ctx.Done()
		return 0, ctx.Err()
	}
	return f.total, f.startErr
}

func (f *fakeBackend) nextUpdate(ctx context.Context) (*models.FrameUpdate, error) {
	f.mu.Lock()
	f.nextCount++
	n := f.nextCount
	f.mu.Unlock()
	u, err := f.next(ctx, n)
	f.calls <- n
	return u, err
}

func (f *fakeBackend) NextFrame(ctx context.Context) (*models.FrameUpdate, error) {
	return f.nextUpdate(ctx)
}

func (f *fakeBackend) LiveAnalysis(ctx context.Context) (*models.FrameUpdate, error) {
	return f.nextUpdate(ctx)
}

func (f *fakeBackend) StopAnalysis(ctx context.Context) error {
	f.mu.Lock()
	f.stopCount++
	f.mu.Unlock()
	f.record("stop_analysis")
	return nil
}

func (f *fakeBackend) UploadVideo(ctx context.Context, filename string, video io.Reader) (string, error) {
	f.record("upload_video")
	return "Uploaded and ready for analysis", nil
}

func (f *fakeBackend) StartLiveStream(ctx context.Context) (string, error) {
	f.record("start_live_stream")
	return "Live stream started", nil
}

func (f *fakeBackend) StopLiveStream(ctx context.Context) (string, error) {
	f.record("stop_live_stream")
	return "Live stream stopped", nil
}

func (f *fakeBackend) DailySummary(ctx context.Context) (*models.DailySummary, error) {
	return &models.DailySummary{TotalEntries: 10, TotalExits: 8, HourlyByZone: map[string]models.HourlySeries{}}, nil
}

func (f *fakeBackend) stops() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.stopCount
}

// waitCall waits for the next Next call.
func waitCall(t *testing.T, f *fakeBackend) int {
	t.Helper()
	select {
	case n := <-f.calls:
		return n
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for poll")
		return 0
	}
}

// expectNoCall fails if a Next call happens within a short window.
func expectNoCall(t *testing.T, f *fakeBackend) {
	t.Helper()
	select {
	case n := <-f.calls:
		t.Fatalf("unexpected poll #%d", n)
	case <-time.After(50 * time.Millisecond):
	}
}

func waitState(t *testing.T, s *Session, want State) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if s.Status() == want {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatalf("session state = %s, expected %s", s.Status(), want)
}

type applyCounter struct {
	mu      sync.Mutex
	applied []int
}

func (a *applyCounter) apply(mode Mode, u *models.FrameUpdate) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.applied = append(a.applied, u.FrameNumber)
}

func (a *applyCounter) count() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.applied)
}

func waitApplied(t *testing.T, a *applyCounter, want int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if a.count() >= want {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatalf("applied %d updates, expected %d", a.count(), want)
}

func newRecordedSession(f *fakeBackend, clk clock.Clock, a *applyCounter) *Session {
	return New(Options{
		Mode:     ModeRecorded,
		Source:   RecordedSource{Backend: f},
		Interval: 100 * time.Millisecond,
		Clock:    clk,
		Apply:    a.apply,
	})
}

// ─── Start / poll cadence ───────────────────────────────────────────────────

func TestStart_AlreadyRunningKeepsSinglePoller(t *testing.T) {
	f := newFakeBackend()
	mock := clock.NewMock()
	a := &applyCounter{}
	s := newRecordedSession(f, mock, a)

	if err := s.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	waitCall(t, f) // immediate first tick

	if err := s.Start(context.Background()); !errors.Is(err, models.ErrAlreadyRunning) {
		t.Fatalf("Expected ErrAlreadyRunning, got %v", err)
	}

	for i := 0; i < 5; i++ {
		mock.Add(100 * time.Millisecond)
		waitCall(t, f)
	}
	expectNoCall(t, f)
	waitApplied(t, a, 6)

	if err := s.Stop(context.Background()); err != nil {
		t.Fatalf("Stop failed: %v", err)
	}
	if got := a.count(); got != 6 {
		t.Errorf("Expected 6 applied updates, got %d", got)
	}
	if info := s.Info(); info.FramesPolled != 6 || info.TotalFrames != 300 {
		t.Errorf("Unexpected info %+v", info)
	}
}

func TestPoll_SlowFetchDropsTicks(t *testing.T) {
	f := newFakeBackend()
	entered := make(chan struct{})
	release := make(chan struct{})
	f.next = func(ctx context.Context, n int) (*models.FrameUpdate, error) {
		if n == 2 {
			close(entered)
			select {
			case <-release:
			case <-ctx.Done():
			}
		}
		return &models.FrameUpdate{ZoneCounts: map[models.ZoneID]int{"1": n}, FrameNumber: n}, nil
	}
	mock := clock.NewMock()
	a := &applyCounter{}
	s := newRecordedSession(f, mock, a)

	if err := s.Start(context.Background()); err != nil {
		t.Fatal(err)
	}
	waitCall(t, f)
	mock.Add(100 * time.Millisecond)
	<-entered

	// Five periods elapse while the second fetch is outstanding.
	mock.Add(500 * time.Millisecond)
	close(release)

	if n := waitCall(t, f); n != 2 {
		t.Fatalf("Expected poll #2 to complete, got #%d", n)
	}
	if n := waitCall(t, f); n != 3 {
		t.Fatalf("Expected one catch-up poll, got #%d", n)
	}
	expectNoCall(t, f)
	waitApplied(t, a, 3)

	if err := s.Stop(context.Background()); err != nil {
		t.Fatalf("Stop failed: %v", err)
	}
}

func TestStart_BeginFailureReturnsToIdle(t *testing.T) {
	f := newFakeBackend()
	f.startErr = &models.BackendError{StatusCode: 404, Message: "No uploaded video found for analysis. Please upload one."}
	s := newRecordedSession(f, clock.NewMock(), &applyCounter{})

	err := s.Start(context.Background())
	if !errors.Is(err, models.ErrBackendRejected) {
		t.Fatalf("Expected backend rejection, got %v", err)
	}
	if s.Status() != Idle {
		t.Errorf("Expected Idle, got %s", s.Status())
	}
	if s.Info().LastError == "" {
		t.Error("Expected last error to be recorded")
	}
	expectNoCall(t, f)
}

func TestStart_ReadyCheck(t *testing.T) {
	f := newFakeBackend()
	s := New(Options{
		Mode:     ModeRecorded,
		Source:   RecordedSource{Backend: f},
		Interval: time.Second,
		Clock:    clock.NewMock(),
		Ready: func() error {
			return models.ErrPreconditionFailed
		},
	})
	if err := s.Start(context.Background()); !errors.Is(err, models.ErrPreconditionFailed) {
		t.Fatalf("Expected ErrPreconditionFailed, got %v", err)
	}
	if s.Status() != Idle {
		t.Errorf("Expected no state change, got %s", s.Status())
	}
	if len(f.Events()) != 0 {
		t.Errorf("No backend call expected, got %v", f.Events())
	}
}

// ─── Stop ────────────────────────────────────────────────────────────────────

func TestStop_DiscardsLateResponse(t *testing.T) {
	f := newFakeBackend()
	inFlight := make(chan struct{})
	f.next = func(ctx context.Context, n int) (*models.FrameUpdate, error) {
		if n == 2 {
			close(inFlight)
			// The response "arrives" only after the session was stopped.
			<-ctx.Done()
			return &models.FrameUpdate{ZoneCounts: map[models.ZoneID]int{"1": 99}, FrameNumber: n}, nil
		}
		return &models.FrameUpdate{ZoneCounts: map[models.ZoneID]int{"1": n}, FrameNumber: n}, nil
	}
	mock := clock.NewMock()
	a := &applyCounter{}
	s := newRecordedSession(f, mock, a)

	if err := s.Start(context.Background()); err != nil {
		t.Fatal(err)
	}
	waitCall(t, f)
	mock.Add(100 * time.Millisecond)
	<-inFlight

	if err := s.Stop(context.Background()); err != nil {
		t.Fatalf("Stop failed: %v", err)
	}
	waitCall(t, f)

	applied := a.count()
	if applied != 1 {
		t.Errorf("Expected only the first update applied, got %d", applied)
	}
	mock.Add(time.Second)
	expectNoCall(t, f)
	if a.count() != applied {
		t.Error("Update applied after Stop returned")
	}
	if s.Status() != Idle {
		t.Errorf("Expected Idle, got %s", s.Status())
	}
	if f.stops() != 1 {
		t.Errorf("Expected one remote stop, got %d", f.stops())
	}
}

func TestStop_DuringStartAborts(t *testing.T) {
	f := newFakeBackend()
	f.holdStart = true
	s := newRecordedSession(f, clock.NewMock(), &applyCounter{})

	errc := make(chan error, 1)
	go func() { errc <- s.Start(context.Background()) }()
	waitState(t, s, Starting)

	if err := s.Stop(context.Background()); err != nil {
		t.Fatalf("Stop failed: %v", err)
	}
	if err := <-errc; !errors.Is(err, ErrStartAborted) {
		t.Errorf("Expected ErrStartAborted, got %v", err)
	}
	if s.Status() != Idle {
		t.Errorf("Expected Idle, got %s", s.Status())
	}
	expectNoCall(t, f)
}

func TestStop_IdleIsNoop(t *testing.T) {
	f := newFakeBackend()
	s := newRecordedSession(f, clock.NewMock(), &applyCounter{})
	if err := s.Stop(context.Background()); err != nil {
		t.Errorf("Expected nil, got %v", err)
	}
	if f.stops() != 0 {
		t.Error("Idle stop must not call the backend")
	}
}

// ─── Self-terminating runs ──────────────────────────────────────────────────

func TestFinishedStopsRemoteAnalysis(t *testing.T) {
	f := newFakeBackend()
	f.next = func(ctx context.Context, n int) (*models.FrameUpdate, error) {
		if n == 3 {
			return &models.FrameUpdate{Finished: true}, nil
		}
		return &models.FrameUpdate{ZoneCounts: map[models.ZoneID]int{"1": 1}, FrameNumber: n}, nil
	}
	mock := clock.NewMock()
	a := &applyCounter{}
	s := newRecordedSession(f, mock, a)

	var mu sync.Mutex
	var states []string
	s.OnStateChange(func(info Info) {
		mu.Lock()
		states = append(states, info.State)
		mu.Unlock()
	})

	if err := s.Start(context.Background()); err != nil {
		t.Fatal(err)
	}
	waitCall(t, f)
	mock.Add(100 * time.Millisecond)
	waitCall(t, f)
	mock.Add(100 * time.Millisecond)
	waitCall(t, f)

	waitState(t, s, Finished)
	s.Wait()
	if !errors.Is(s.EndReason(), models.ErrSessionFinished) {
		t.Errorf("Expected ErrSessionFinished end reason, got %v", s.EndReason())
	}
	if info := s.Info(); info.LastError != "" || info.EndReason != models.ErrSessionFinished.Error() {
		t.Errorf("Completion must not be reported as an error: %+v", info)
	}
	if a.count() != 2 {
		t.Errorf("Expected 2 applied updates, got %d", a.count())
	}
	if f.stops() != 1 {
		t.Errorf("Expected best-effort stop call, got %d", f.stops())
	}
	mock.Add(time.Second)
	expectNoCall(t, f)

	mu.Lock()
	last := states[len(states)-1]
	mu.Unlock()
	if last != "finished" {
		t.Errorf("Expected last state change finished, got %v", states)
	}

	// Finished is restartable.
	if err := s.Start(context.Background()); err != nil {
		t.Errorf("Restart after finish failed: %v", err)
	}
	if s.EndReason() != nil {
		t.Error("Restart should clear the end reason")
	}
	_ = s.Stop(context.Background())
}

func TestPollErrorMovesToErrored(t *testing.T) {
	f := newFakeBackend()
	f.next = func(ctx context.Context, n int) (*models.FrameUpdate, error) {
		if n == 2 {
			return nil, models.ErrNetwork
		}
		return &models.FrameUpdate{ZoneCounts: map[models.ZoneID]int{}}, nil
	}
	mock := clock.NewMock()
	s := newRecordedSession(f, mock, &applyCounter{})

	if err := s.Start(context.Background()); err != nil {
		t.Fatal(err)
	}
	waitCall(t, f)
	mock.Add(100 * time.Millisecond)
	waitCall(t, f)

	waitState(t, s, Errored)
	s.Wait()
	if f.stops() != 1 {
		t.Errorf("Expected best-effort stop call, got %d", f.stops())
	}
	if s.Info().LastError == "" {
		t.Error("Expected last error")
	}
	if !errors.Is(s.EndReason(), models.ErrNetwork) {
		t.Errorf("Expected poll error as end reason, got %v", s.EndReason())
	}
	mock.Add(time.Second)
	expectNoCall(t, f)

	if err := s.Start(context.Background()); err != nil {
		t.Errorf("Restart after error failed: %v", err)
	}
	if s.Info().LastError != "" {
		t.Error("Restart should clear the last error")
	}
	_ = s.Stop(context.Background())
}

func TestLiveSourceHasNoRemoteSession(t *testing.T) {
	f := newFakeBackend()
	s := New(Options{
		Mode:     ModeLive,
		Source:   LiveSource{Backend: f},
		Interval: time.Second,
		Clock:    clock.NewMock(),
	})
	if err := s.Start(context.Background()); err != nil {
		t.Fatal(err)
	}
	waitCall(t, f)
	if err := s.Stop(context.Background()); err != nil {
		t.Fatal(err)
	}
	for _, e := range f.Events() {
		if e == "start_analysis" || e == "stop_analysis" {
			t.Errorf("Live mode must not call %s", e)
		}
	}
}

func TestStateStrings(t *testing.T) {
	tests := map[State]string{
		Idle: "idle", Starting: "starting", Running: "running",
		Stopping: "stopping", Finished: "finished", Errored: "errored",
	}
	for st, want := range tests {
		if st.String() != want {
			t.Errorf("%d.String() = %s, expected %s", st, st.String(), want)
		}
	}
	if m, ok := ParseMode("live"); !ok || m != ModeLive {
		t.Error("ParseMode(live) failed")
	}
	if _, ok := ParseMode("camera"); ok {
		t.Error("ParseMode should reject unknown modes")
	}
}
