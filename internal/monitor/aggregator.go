// Package monitor folds per-poll zone counts into running statistics and
// raises capacity alerts.
//
// The Aggregator is the only writer of analysis statistics: polling sessions
// call Ingest with the raw count map of each frame, and the daily summary is
// loaded with IngestSummary between sessions. The Dispatcher evaluates the
// latest per-zone counts against a global threshold and keeps at most one
// active alert per zone until its display duration elapses.
package monitor

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/rewired-gh/zonewatch/internal/models"
)

// NameResolver maps backend zone ids to zone names.
type NameResolver interface {
	NameFor(id models.ZoneID) (string, bool)
}

// PlaceholderName is the name shown for a zone id with no known zone.
func PlaceholderName(id models.ZoneID) string {
	return fmt.Sprintf("Zone %s", id)
}

// Snapshot is a copy of the aggregated statistics.
type Snapshot struct {
	CurrentCount   int                            `json:"current_count"`
	PeakCount      int                            `json:"peak_count"`
	TotalEntries   int                            `json:"total_entries"`
	TotalExits     int                            `json:"total_exits"`
	ZoneData       map[string]int                 `json:"zone_data"`
	HourlyZoneData map[string]models.HourlySeries `json:"hourly_zone_data"`
	UpdatedAt      time.Time                      `json:"updated_at"`
}

func newSnapshot() Snapshot {
	return Snapshot{
		ZoneData:       make(map[string]int),
		HourlyZoneData: make(map[string]models.HourlySeries),
	}
}

func (s Snapshot) clone() Snapshot {
	out := s
	out.ZoneData = make(map[string]int, len(s.ZoneData))
	for k, v := range s.ZoneData {
		out.ZoneData[k] = v
	}
	// HourlySeries is an array, so plain assignment copies it
	out.HourlyZoneData = make(map[string]models.HourlySeries, len(s.HourlyZoneData))
	for k, v := range s.HourlyZoneData {
		out.HourlyZoneData[k] = v
	}
	return out
}

// Aggregator accumulates statistics. It is safe for concurrent use.
type Aggregator struct {
	mu    sync.RWMutex
	clock clock.Clock
	stats Snapshot
}

// NewAggregator creates an empty Aggregator. The clock determines the
// hour-of-day slot each ingest writes to.
func NewAggregator(clk clock.Clock) *Aggregator {
	if clk == nil {
		clk = clock.New()
	}
	return &Aggregator{
		clock: clk,
		stats: newSnapshot(),
	}
}

// Ingest applies one poll's raw counts:
//   - ids are resolved to names, unknown ids get PlaceholderName
//   - current count is the sum of the poll, peak is the running maximum
//   - zone data is replaced by this poll's counts
//   - the current hour's slot is overwritten for zones present in this poll
//
// Ids that resolve to the same name are summed.
func (a *Aggregator) Ingest(raw map[models.ZoneID]int, names NameResolver) Snapshot {
	resolved := make(map[string]int, len(raw))
	total := 0
	for id, count := range raw {
		name, ok := "", false
		if names != nil {
			name, ok = names.NameFor(id)
		}
		if !ok {
			name = PlaceholderName(id)
		}
		resolved[name] += count
		total += count
	}

	now := a.clock.Now()
	hour := now.Hour()

	a.mu.Lock()
	defer a.mu.Unlock()

	a.stats.CurrentCount = total
	if total > a.stats.PeakCount {
		a.stats.PeakCount = total
	}
	a.stats.ZoneData = resolved
	for name, count := range resolved {
		series := a.stats.HourlyZoneData[name]
		series[hour] = float64(count)
		a.stats.HourlyZoneData[name] = series
	}
	a.stats.UpdatedAt = now

	return a.stats.clone()
}

// IngestSummary seeds the daily counters and hourly series from the
// backend's summary. It overwrites rather than merges, so callers must not
// invoke it while a session is running.
func (a *Aggregator) IngestSummary(summary *models.DailySummary) Snapshot {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.stats.TotalEntries = summary.TotalEntries
	a.stats.TotalExits = summary.TotalExits
	a.stats.HourlyZoneData = make(map[string]models.HourlySeries, len(summary.HourlyByZone))
	for name, series := range summary.HourlyByZone {
		a.stats.HourlyZoneData[name] = series
	}
	a.stats.UpdatedAt = a.clock.Now()

	return a.stats.clone()
}

// Reset zeroes all counters and clears all maps.
func (a *Aggregator) Reset() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.stats = newSnapshot()
}

// Snapshot returns a copy of the current statistics.
func (a *Aggregator) Snapshot() Snapshot {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.stats.clone()
}

// Occupancy returns each zone's latest count against its capacity, sorted
// by zone name. Capacities below 1 are treated as 1.
func (a *Aggregator) Occupancy(capacityFor func(zone string) int) []models.Occupancy {
	a.mu.RLock()
	defer a.mu.RUnlock()

	out := make([]models.Occupancy, 0, len(a.stats.ZoneData))
	for name, count := range a.stats.ZoneData {
		capacity := capacityFor(name)
		if capacity < 1 {
			capacity = 1
		}
		out = append(out, models.Occupancy{
			Zone:     name,
			Count:    count,
			Capacity: capacity,
			Percent:  float64(count) * 100 / float64(capacity),
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Zone < out[j].Zone })
	return out
}
