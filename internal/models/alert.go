package models

import "time"

// Alert is a capacity alert raised for one zone. At most one alert per zone
// name is active at a time.
type Alert struct {
	ID        string    `json:"id"`
	Zone      string    `json:"zone"`
	Count     int       `json:"count"`
	Threshold int       `json:"threshold"`
	RaisedAt  time.Time `json:"raised_at"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Active reports whether the alert is still displayed at now.
func (a *Alert) Active(now time.Time) bool {
	return now.Before(a.ExpiresAt)
}

// Occupancy is a zone's current count relative to its capacity.
type Occupancy struct {
	Zone     string  `json:"zone"`
	Count    int     `json:"count"`
	Capacity int     `json:"capacity"`
	Percent  float64 `json:"percent"`
}

// Level buckets occupancy the way the dashboard colours it.
func (o *Occupancy) Level() string {
	switch {
	case o.Percent > 90:
		return "critical"
	case o.Percent > 70:
		return "warning"
	default:
		return "normal"
	}
}
