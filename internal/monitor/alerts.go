package monitor

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/google/uuid"
	"github.com/rewired-gh/zonewatch/internal/logger"
	"github.com/rewired-gh/zonewatch/internal/models"
)

// Notifier delivers fired alerts somewhere outside the process.
type Notifier interface {
	Notify(ctx context.Context, alerts []models.Alert) error
}

// LogNotifier writes fired alerts to the log.
type LogNotifier struct{}

// Notify logs each alert at warn level.
func (LogNotifier) Notify(ctx context.Context, alerts []models.Alert) error {
	for _, a := range alerts {
		logger.Warn("High traffic in %s: %d people (threshold %d)", a.Zone, a.Count, a.Threshold)
	}
	return nil
}

// Dispatcher keeps at most one active alert per zone name. An alert stays
// active for the display duration; while active, further crossings of the
// same zone are suppressed. There is no hysteresis: once expired, the next
// evaluation over threshold fires again.
type Dispatcher struct {
	mu        sync.Mutex
	clock     clock.Clock
	threshold int
	duration  time.Duration
	active    map[string]models.Alert
}

// NewDispatcher creates a Dispatcher firing at counts >= threshold.
func NewDispatcher(clk clock.Clock, threshold int, duration time.Duration) *Dispatcher {
	if clk == nil {
		clk = clock.New()
	}
	return &Dispatcher{
		clock:     clk,
		threshold: threshold,
		duration:  duration,
		active:    make(map[string]models.Alert),
	}
}

// Threshold returns the global alert threshold.
func (d *Dispatcher) Threshold() int {
	return d.threshold
}

// Evaluate checks per-zone counts and returns the alerts that fired on this
// call, sorted by zone name. Expired alerts are pruned first.
func (d *Dispatcher) Evaluate(zoneData map[string]int) []models.Alert {
	now := d.clock.Now()

	d.mu.Lock()
	defer d.mu.Unlock()

	d.pruneLocked(now)

	var fired []models.Alert
	for zone, count := range zoneData {
		if count < d.threshold {
			continue
		}
		if _, exists := d.active[zone]; exists {
			continue
		}
		alert := models.Alert{
			ID:        uuid.New().String(),
			Zone:      zone,
			Count:     count,
			Threshold: d.threshold,
			RaisedAt:  now,
			ExpiresAt: now.Add(d.duration),
		}
		d.active[zone] = alert
		fired = append(fired, alert)
	}

	sort.Slice(fired, func(i, j int) bool { return fired[i].Zone < fired[j].Zone })
	return fired
}

// Active returns the alerts that have not yet expired, sorted by zone name.
func (d *Dispatcher) Active() []models.Alert {
	now := d.clock.Now()

	d.mu.Lock()
	defer d.mu.Unlock()

	d.pruneLocked(now)
	out := make([]models.Alert, 0, len(d.active))
	for _, a := range d.active {
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Zone < out[j].Zone })
	return out
}

// Clear drops all active alerts.
func (d *Dispatcher) Clear() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.active = make(map[string]models.Alert)
}

func (d *Dispatcher) pruneLocked(now time.Time) {
	for zone, a := range d.active {
		if !a.Active(now) {
			delete(d.active, zone)
		}
	}
}
