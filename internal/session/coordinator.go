package session

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/rewired-gh/zonewatch/internal/logger"
	"github.com/rewired-gh/zonewatch/internal/models"
	"github.com/rewired-gh/zonewatch/internal/monitor"
)

// ErrSessionActive is returned when the daily summary is loaded while a
// session is running; the summary would overwrite live hourly data.
var ErrSessionActive = errors.New("an analysis session is running")

// pendingAlerts bounds the queue between polling and notification delivery.
const pendingAlerts = 64

// Backend is everything the Coordinator needs from the vision client.
type Backend interface {
	AnalysisBackend
	UploadVideo(ctx context.Context, filename string, video io.Reader) (string, error)
	StartLiveStream(ctx context.Context) (string, error)
	StopLiveStream(ctx context.Context) (string, error)
	DailySummary(ctx context.Context) (*models.DailySummary, error)
}

// Zones is the view of the zone collection the Coordinator needs.
type Zones interface {
	monitor.NameResolver
	Len() int
}

// FrameSink receives the decoded imagery of every accepted update.
type FrameSink interface {
	WriteFrame(mode Mode, u *models.FrameUpdate) error
}

// Recorder receives operational measurements.
type Recorder interface {
	ObserveState(mode string, state string)
	ObserveFrame(mode string, snap monitor.Snapshot)
	ObserveAlerts(alerts []models.Alert)
	ObserveReset()
}

// CoordinatorOptions configures a Coordinator. Nil Notifier, Sink and
// Recorder are allowed.
type CoordinatorOptions struct {
	Backend          Backend
	Zones            Zones
	Clock            clock.Clock
	RecordedInterval time.Duration
	LiveInterval     time.Duration
	Aggregator       *monitor.Aggregator
	Dispatcher       *monitor.Dispatcher
	Notifier         monitor.Notifier
	Sink             FrameSink
	Recorder         Recorder
	// VideoReady marks a video as already uploaded in an earlier run.
	VideoReady bool
}

// Status is the coordinator-wide view served by the status API.
type Status struct {
	Visible   string             `json:"visible"`
	Sessions  []Info             `json:"sessions"`
	Stats     monitor.Snapshot   `json:"stats"`
	Alerts    []models.Alert     `json:"alerts"`
	Occupancy []models.Occupancy `json:"occupancy,omitempty"`
}

// Coordinator owns the live and recorded sessions and feeds both into one
// Aggregator and Dispatcher.
type Coordinator struct {
	backend  Backend
	zones    Zones
	agg      *monitor.Aggregator
	alerts   *monitor.Dispatcher
	notifier monitor.Notifier
	sink     FrameSink
	recorder Recorder

	sessions map[Mode]*Session
	pending  chan []models.Alert

	mu           sync.Mutex
	visible      Mode
	videoReady   bool
	streamActive bool
}

// NewCoordinator builds both sessions.
func NewCoordinator(opts CoordinatorOptions) *Coordinator {
	clk := opts.Clock
	if clk == nil {
		clk = clock.New()
	}
	c := &Coordinator{
		backend:    opts.Backend,
		zones:      opts.Zones,
		agg:        opts.Aggregator,
		alerts:     opts.Dispatcher,
		notifier:   opts.Notifier,
		sink:       opts.Sink,
		recorder:   opts.Recorder,
		pending:    make(chan []models.Alert, pendingAlerts),
		videoReady: opts.VideoReady,
	}
	if c.agg == nil {
		c.agg = monitor.NewAggregator(clk)
	}
	if c.alerts == nil {
		c.alerts = monitor.NewDispatcher(clk, 7, 3*time.Second)
	}

	c.sessions = map[Mode]*Session{
		ModeRecorded: New(Options{
			Mode:     ModeRecorded,
			Source:   RecordedSource{Backend: opts.Backend},
			Interval: opts.RecordedInterval,
			Clock:    clk,
			Ready:    c.readyRecorded,
			OnStart:  c.started,
			Apply:    c.apply,
		}),
		ModeLive: New(Options{
			Mode:     ModeLive,
			Source:   LiveSource{Backend: opts.Backend},
			Interval: opts.LiveInterval,
			Clock:    clk,
			Ready:    c.readyLive,
			OnStart:  c.started,
			Apply:    c.apply,
		}),
	}
	if c.recorder != nil {
		for _, s := range c.sessions {
			s.OnStateChange(func(info Info) {
				c.recorder.ObserveState(info.Mode, info.State)
			})
		}
	}
	return c
}

// Session returns the session for a mode.
func (c *Coordinator) Session(mode Mode) *Session {
	return c.sessions[mode]
}

// Aggregator returns the shared Aggregator.
func (c *Coordinator) Aggregator() *monitor.Aggregator {
	return c.agg
}

// Dispatcher returns the shared Dispatcher.
func (c *Coordinator) Dispatcher() *monitor.Dispatcher {
	return c.alerts
}

// Visible returns the mode currently shown to the operator.
func (c *Coordinator) Visible() Mode {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.visible
}

// SetVisible switches the displayed mode. Running sessions are unaffected.
func (c *Coordinator) SetVisible(mode Mode) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.visible = mode
}

// Start starts the session for mode and makes it visible.
func (c *Coordinator) Start(ctx context.Context, mode Mode) error {
	c.SetVisible(mode)
	return c.sessions[mode].Start(ctx)
}

// Stop stops the session for mode. Statistics and alerts are reset when
// this call stopped an active session and no other session remains active.
// Stopping an inactive session leaves the kept statistics alone.
func (c *Coordinator) Stop(ctx context.Context, mode Mode) error {
	s := c.sessions[mode]
	wasActive := s.Status().Active()
	if err := s.Stop(ctx); err != nil {
		return err
	}
	if wasActive && !c.anyActive() {
		c.resetStats()
	}
	return nil
}

// Shutdown stops both sessions.
func (c *Coordinator) Shutdown(ctx context.Context) {
	for _, mode := range []Mode{ModeLive, ModeRecorded} {
		if err := c.sessions[mode].Stop(ctx); err != nil {
			logger.Warn("Failed to stop %s analysis: %v", mode, err)
		}
	}
}

// UploadVideo uploads a recording and enables recorded analysis.
func (c *Coordinator) UploadVideo(ctx context.Context, filename string, video io.Reader) (string, error) {
	if !c.backend.HasCredential() {
		return "", models.ErrAuthRequired
	}
	msg, err := c.backend.UploadVideo(ctx, filename, video)
	if err != nil {
		return "", err
	}
	c.mu.Lock()
	c.videoReady = true
	c.mu.Unlock()
	return msg, nil
}

// StartStream starts the backend's camera stream.
func (c *Coordinator) StartStream(ctx context.Context) (string, error) {
	if !c.backend.HasCredential() {
		return "", models.ErrAuthRequired
	}
	msg, err := c.backend.StartLiveStream(ctx)
	if err != nil {
		return "", err
	}
	c.mu.Lock()
	c.streamActive = true
	c.mu.Unlock()
	return msg, nil
}

// StopStream stops live analysis first, then the camera stream. The remote
// stop is best effort: the stream is considered stopped either way.
func (c *Coordinator) StopStream(ctx context.Context) error {
	if err := c.Stop(ctx, ModeLive); err != nil {
		return err
	}
	c.mu.Lock()
	c.streamActive = false
	c.mu.Unlock()

	if _, err := c.backend.StopLiveStream(ctx); err != nil {
		logger.Warn("Failed to stop live stream on backend: %v", err)
	}
	return nil
}

// LoadSummary fetches the daily summary and seeds the Aggregator with it.
// It is refused while any session is active.
func (c *Coordinator) LoadSummary(ctx context.Context) (monitor.Snapshot, error) {
	if c.anyActive() {
		return monitor.Snapshot{}, ErrSessionActive
	}
	summary, err := c.backend.DailySummary(ctx)
	if err != nil {
		return monitor.Snapshot{}, err
	}
	return c.IngestSummary(summary)
}

// IngestSummary seeds the Aggregator unless a session is active.
func (c *Coordinator) IngestSummary(summary *models.DailySummary) (monitor.Snapshot, error) {
	if c.anyActive() {
		return monitor.Snapshot{}, ErrSessionActive
	}
	if err := summary.Validate(); err != nil {
		return monitor.Snapshot{}, fmt.Errorf("%w: %v", models.ErrBackendRejected, err)
	}
	return c.agg.IngestSummary(summary), nil
}

// Status returns sessions, statistics and active alerts. capacityFor may be
// nil to omit occupancy.
func (c *Coordinator) Status(capacityFor func(zone string) int) Status {
	st := Status{
		Visible: c.Visible().String(),
		Sessions: []Info{
			c.sessions[ModeLive].Info(),
			c.sessions[ModeRecorded].Info(),
		},
		Stats:  c.agg.Snapshot(),
		Alerts: c.alerts.Active(),
	}
	if capacityFor != nil {
		st.Occupancy = c.agg.Occupancy(capacityFor)
	}
	return st
}

// Run delivers fired alerts to the Notifier until ctx is done.
func (c *Coordinator) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case alerts := <-c.pending:
			if c.notifier == nil {
				continue
			}
			if err := c.notifier.Notify(ctx, alerts); err != nil {
				logger.Error("Failed to deliver %d alert(s): %v", len(alerts), err)
			}
		}
	}
}

// started begins a fresh run's statistics, unless the other session is
// active and still feeding the shared Aggregator. Statistics of a Finished
// or Errored run stay inspectable until then.
func (c *Coordinator) started(mode Mode) {
	for m, s := range c.sessions {
		if m != mode && s.Status().Active() {
			return
		}
	}
	c.resetStats()
}

func (c *Coordinator) resetStats() {
	c.agg.Reset()
	c.alerts.Clear()
	if c.recorder != nil {
		c.recorder.ObserveReset()
	}
}

func (c *Coordinator) anyActive() bool {
	for _, s := range c.sessions {
		if s.Status().Active() {
			return true
		}
	}
	return false
}

func (c *Coordinator) readyCommon() error {
	if c.zones == nil || c.zones.Len() == 0 {
		return fmt.Errorf("%w: save at least one zone first", models.ErrPreconditionFailed)
	}
	if !c.backend.HasCredential() {
		return fmt.Errorf("%w: %w", models.ErrPreconditionFailed, models.ErrAuthRequired)
	}
	return nil
}

func (c *Coordinator) readyRecorded() error {
	if err := c.readyCommon(); err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.videoReady {
		return fmt.Errorf("%w: upload a video first", models.ErrPreconditionFailed)
	}
	return nil
}

func (c *Coordinator) readyLive() error {
	if err := c.readyCommon(); err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.streamActive {
		return fmt.Errorf("%w: start the live stream first", models.ErrPreconditionFailed)
	}
	return nil
}

// apply runs under the owning session's lock.
func (c *Coordinator) apply(mode Mode, u *models.FrameUpdate) {
	if c.sink != nil {
		if err := c.sink.WriteFrame(mode, u); err != nil {
			logger.Warn("Failed to write %s frame: %v", mode, err)
		}
	}

	snap := c.agg.Ingest(u.ZoneCounts, c.zones)
	fired := c.alerts.Evaluate(snap.ZoneData)

	if c.recorder != nil {
		c.recorder.ObserveFrame(mode.String(), snap)
		if len(fired) > 0 {
			c.recorder.ObserveAlerts(fired)
		}
	}
	if len(fired) == 0 {
		return
	}
	for _, a := range fired {
		logger.Info("Alert: %s has %d people (threshold %d)", a.Zone, a.Count, a.Threshold)
	}
	select {
	case c.pending <- fired:
	default:
		logger.Warn("Alert queue full, dropping %d alert(s)", len(fired))
	}
}
