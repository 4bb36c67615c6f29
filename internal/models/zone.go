// Package models defines the core domain entities for the zonewatch coordinator.
// These models represent zone geometry, backend analysis updates, aggregated
// statistics inputs, and capacity alerts. Models that cross the backend boundary
// carry built-in validation so malformed payloads are rejected where they arrive.
//
// Terminology:
//   - Point: a pixel coordinate in the displayed frame's backing space.
//   - Zone: a named 4-point polygon over the frame.
//   - ZoneID: the backend's identifier for a saved zone.
package models

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// ZonePoints is the exact number of vertices a saved zone has.
const ZonePoints = 4

// Point is a pixel coordinate in frame space.
type Point struct {
	X int `json:"x"`
	Y int `json:"y"`
}

// ZoneID identifies a zone on the backend. The backend emits ids as JSON
// numbers in zone listings and as string keys in count maps, so both forms
// decode into the same value.
type ZoneID string

// UnmarshalJSON accepts either a JSON number or a JSON string.
func (id *ZoneID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*id = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*id = ZoneID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("zone id must be a number or string: %w", err)
	}
	if _, err := strconv.ParseInt(n.String(), 10, 64); err != nil {
		return fmt.Errorf("zone id must be an integer: %s", n.String())
	}
	*id = ZoneID(n.String())
	return nil
}

func (id ZoneID) String() string {
	return string(id)
}

// Zone is a named polygon of exactly four points. ID is empty until the zone
// has been persisted by the backend.
type Zone struct {
	ID          ZoneID  `json:"id,omitempty"`
	Name        string  `json:"name"`
	Coordinates []Point `json:"coordinates"`
}

// Persisted reports whether the backend has assigned this zone an id.
func (z *Zone) Persisted() bool {
	return z.ID != ""
}

// Validate checks that the zone has a name and exactly four non-negative points.
func (z *Zone) Validate() error {
	if strings.TrimSpace(z.Name) == "" {
		return errors.New("zone name must not be empty")
	}
	if len(z.Coordinates) != ZonePoints {
		return fmt.Errorf("zone must have exactly %d points, got %d", ZonePoints, len(z.Coordinates))
	}
	for i, p := range z.Coordinates {
		if p.X < 0 || p.Y < 0 {
			return fmt.Errorf("point %d (%d,%d) must not be negative", i, p.X, p.Y)
		}
	}
	return nil
}

// Clone returns a deep copy of the zone.
func (z Zone) Clone() Zone {
	pts := make([]Point, len(z.Coordinates))
	copy(pts, z.Coordinates)
	z.Coordinates = pts
	return z
}
