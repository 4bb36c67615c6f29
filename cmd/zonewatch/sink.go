package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/rewired-gh/zonewatch/internal/models"
	"github.com/rewired-gh/zonewatch/internal/session"
)

// frameDirSink keeps the latest overlay and heatmap of each session as JPEG
// files, e.g. live-overlay.jpg. Files are replaced atomically so a viewer
// never reads a partial image.
type frameDirSink struct {
	dir string
}

func newFrameDirSink(dir string) (*frameDirSink, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create frame directory: %w", err)
	}
	return &frameDirSink{dir: dir}, nil
}

func (s *frameDirSink) WriteFrame(mode session.Mode, u *models.FrameUpdate) error {
	if len(u.Overlay) > 0 {
		if err := s.replace(fmt.Sprintf("%s-overlay.jpg", mode), u.Overlay); err != nil {
			return err
		}
	}
	if len(u.Heatmap) > 0 {
		if err := s.replace(fmt.Sprintf("%s-heatmap.jpg", mode), u.Heatmap); err != nil {
			return err
		}
	}
	return nil
}

func (s *frameDirSink) replace(name string, data []byte) error {
	tmp, err := os.CreateTemp(s.dir, name+".*")
	if err != nil {
		return err
	}
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())
		return err
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmp.Name())
		return err
	}
	return os.Rename(tmp.Name(), filepath.Join(s.dir, name))
}
