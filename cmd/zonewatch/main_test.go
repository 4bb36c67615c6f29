package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/rewired-gh/zonewatch/internal/geometry"
	"github.com/rewired-gh/zonewatch/internal/models"
	"github.com/rewired-gh/zonewatch/internal/session"
)

func TestFrameDirSink(t *testing.T) {
	dir := t.TempDir()
	sink, err := newFrameDirSink(filepath.Join(dir, "frames"))
	if err != nil {
		t.Fatal(err)
	}

	if err := sink.WriteFrame(session.ModeLive, &models.FrameUpdate{Overlay: []byte("one")}); err != nil {
		t.Fatal(err)
	}
	if err := sink.WriteFrame(session.ModeLive, &models.FrameUpdate{Overlay: []byte("two"), Heatmap: []byte("heat")}); err != nil {
		t.Fatal(err)
	}

	overlay, err := os.ReadFile(filepath.Join(dir, "frames", "live-overlay.jpg"))
	if err != nil || string(overlay) != "two" {
		t.Errorf("Expected latest overlay, got %q (%v)", overlay, err)
	}
	heatmap, err := os.ReadFile(filepath.Join(dir, "frames", "live-heatmap.jpg"))
	if err != nil || string(heatmap) != "heat" {
		t.Errorf("Expected heatmap, got %q (%v)", heatmap, err)
	}

	entries, _ := os.ReadDir(filepath.Join(dir, "frames"))
	if len(entries) != 2 {
		t.Errorf("Expected no temp files left behind, got %d entries", len(entries))
	}
}

func TestParsePair(t *testing.T) {
	x, y, err := parsePair("12, 34", ",")
	if err != nil || x != 12 || y != 34 {
		t.Errorf("parsePair = %v, %v, %v", x, y, err)
	}
	if _, _, err := parsePair("12", ","); err == nil {
		t.Error("Expected error for a single value")
	}
	if _, _, err := parsePair("1280x720", "x"); err != nil {
		t.Errorf("Unexpected error: %v", err)
	}
}

func TestStaticSurface(t *testing.T) {
	surface, err := staticSurface("0,0,640,360", "1280x720")
	if err != nil {
		t.Fatal(err)
	}
	p, err := surface.ToFrameSpace(geometry.ScreenPoint{X: 320, Y: 180})
	if err != nil {
		t.Fatal(err)
	}
	if p.X != 640 || p.Y != 360 {
		t.Errorf("Expected (640,360), got %+v", p)
	}
	if _, err := staticSurface("0,0,640", "1280x720"); err == nil {
		t.Error("Expected error for short display size")
	}
}
