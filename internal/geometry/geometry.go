// Package geometry owns zone drawing: the in-progress polygon an operator is
// capturing, and the mapping from screen coordinates on a rendering surface
// into the pixel space of the frame being displayed.
//
// A Draft accepts at most four points and only completes into a models.Zone
// once it has exactly four points and a name. Drafts are owned by a single
// input handler and are not safe for concurrent use.
package geometry

import (
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/rewired-gh/zonewatch/internal/models"
)

// ErrOutOfBounds is returned when a point falls outside the current frame.
var ErrOutOfBounds = errors.New("point is outside the frame")

// ScreenPoint is a pointer position in the rendering surface's client space.
type ScreenPoint struct {
	X float64
	Y float64
}

// Rect is the displayed placement of a surface in client space.
type Rect struct {
	Left   float64
	Top    float64
	Width  float64
	Height float64
}

// Size is a surface's backing pixel size, i.e. the frame resolution.
type Size struct {
	Width  float64
	Height float64
}

// FrameSurface maps screen positions into frame pixel space. It is supplied
// by whatever renders the frame.
type FrameSurface interface {
	ToFrameSpace(sp ScreenPoint) (models.Point, error)
}

// LayoutFunc reports the surface's current displayed rectangle and backing size.
type LayoutFunc func() (displayed Rect, backing Size)

// LinearSurface scales client coordinates by backing/displayed size. Layout is
// queried on every conversion so display resizes are always reflected.
type LinearSurface struct {
	Layout LayoutFunc
}

// NewLinearSurface creates a surface that reads its layout from fn.
func NewLinearSurface(fn LayoutFunc) *LinearSurface {
	return &LinearSurface{Layout: fn}
}

// ToFrameSpace converts sp to a rounded frame pixel coordinate in
// [0, width-1] x [0, height-1]. A position on the surface's far edge maps to
// the last pixel; anything beyond the surface is ErrOutOfBounds.
func (s *LinearSurface) ToFrameSpace(sp ScreenPoint) (models.Point, error) {
	if s.Layout == nil {
		return models.Point{}, errors.New("surface has no layout")
	}
	rect, backing := s.Layout()
	if rect.Width <= 0 || rect.Height <= 0 {
		return models.Point{}, fmt.Errorf("surface is not displayed (%.0fx%.0f)", rect.Width, rect.Height)
	}
	if backing.Width <= 0 || backing.Height <= 0 {
		return models.Point{}, fmt.Errorf("frame has no size (%.0fx%.0f)", backing.Width, backing.Height)
	}

	x := (sp.X - rect.Left) / rect.Width * backing.Width
	y := (sp.Y - rect.Top) / rect.Height * backing.Height
	if x < 0 || y < 0 || x > backing.Width || y > backing.Height {
		return models.Point{}, fmt.Errorf("%w: (%.0f,%.0f) in %.0fx%.0f", ErrOutOfBounds, x, y, backing.Width, backing.Height)
	}

	maxX, maxY := int(backing.Width)-1, int(backing.Height)-1
	return models.Point{
		X: min(int(math.Round(x)), maxX),
		Y: min(int(math.Round(y)), maxY),
	}, nil
}

// Draft is a polygon being captured point by point.
type Draft struct {
	points []models.Point
}

// AddPoint appends p if the draft holds fewer than four points. A full draft
// returns models.ErrCapacityExceeded and is left unchanged.
func (d *Draft) AddPoint(p models.Point) error {
	if len(d.points) >= models.ZonePoints {
		return models.ErrCapacityExceeded
	}
	if p.X < 0 || p.Y < 0 {
		return fmt.Errorf("%w: (%d,%d)", ErrOutOfBounds, p.X, p.Y)
	}
	d.points = append(d.points, p)
	return nil
}

// AddScreenPoint converts sp through surface and appends the result.
func (d *Draft) AddScreenPoint(surface FrameSurface, sp ScreenPoint) (models.Point, error) {
	if len(d.points) >= models.ZonePoints {
		return models.Point{}, models.ErrCapacityExceeded
	}
	p, err := surface.ToFrameSpace(sp)
	if err != nil {
		return models.Point{}, err
	}
	if err := d.AddPoint(p); err != nil {
		return models.Point{}, err
	}
	return p, nil
}

// Points returns a copy of the captured points.
func (d *Draft) Points() []models.Point {
	out := make([]models.Point, len(d.points))
	copy(out, d.points)
	return out
}

// Len returns the number of captured points.
func (d *Draft) Len() int {
	return len(d.points)
}

// Clear discards the draft.
func (d *Draft) Clear() {
	d.points = nil
}

// Complete builds an unsaved zone from the draft. The draft is not cleared;
// callers clear it once the zone has been persisted.
func (d *Draft) Complete(name string) (models.Zone, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return models.Zone{}, fmt.Errorf("%w: enter a zone name", models.ErrIncompleteZone)
	}
	if len(d.points) != models.ZonePoints {
		return models.Zone{}, fmt.Errorf("%w: select exactly %d points, have %d",
			models.ErrIncompleteZone, models.ZonePoints, len(d.points))
	}
	return models.Zone{Name: name, Coordinates: d.Points()}, nil
}

// Centroid returns the arithmetic mean of pts, where zone labels are drawn.
func Centroid(pts []models.Point) (x, y float64) {
	if len(pts) == 0 {
		return 0, 0
	}
	for _, p := range pts {
		x += float64(p.X)
		y += float64(p.Y)
	}
	n := float64(len(pts))
	return x / n, y / n
}
