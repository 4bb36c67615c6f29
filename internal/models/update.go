package models

import (
	"errors"
	"fmt"
	"time"
)

// HoursPerDay is the length of every hourly series.
const HoursPerDay = 24

// HourlySeries holds one value per hour-of-day slot.
type HourlySeries [HoursPerDay]float64

// FrameUpdate is one decoded analysis update: the rendered imagery plus the
// raw per-zone people counts for that frame.
type FrameUpdate struct {
	Overlay     []byte         // JPEG
	Heatmap     []byte         // JPEG, may be empty
	ZoneCounts  map[ZoneID]int
	FrameNumber int
	Finished    bool
	ReceivedAt  time.Time
}

// Total returns the sum of all zone counts.
func (u *FrameUpdate) Total() int {
	total := 0
	for _, c := range u.ZoneCounts {
		total += c
	}
	return total
}

// Validate checks that counts are non-negative.
func (u *FrameUpdate) Validate() error {
	for id, c := range u.ZoneCounts {
		if c < 0 {
			return fmt.Errorf("zone %s count must not be negative", id)
		}
	}
	return nil
}

// DailySummary is the backend's cumulative view of the current day.
type DailySummary struct {
	TotalEntries int
	TotalExits   int
	HourlyByZone map[string]HourlySeries
}

// Validate checks that counters are non-negative.
func (s *DailySummary) Validate() error {
	if s.TotalEntries < 0 {
		return errors.New("total entries must not be negative")
	}
	if s.TotalExits < 0 {
		return errors.New("total exits must not be negative")
	}
	return nil
}

// Profile is one account from the backend's profile listing.
type Profile struct {
	Username  string `json:"username"`
	Email     string `json:"email"`
	Status    string `json:"status"`
	IsCurrent bool   `json:"is_current"`
}
