package session

import (
	"context"

	"github.com/rewired-gh/zonewatch/internal/models"
)

// Source is the remote side of one analysis mode.
type Source interface {
	// Begin starts remote analysis and returns the total frame count when
	// the mode has one (0 otherwise).
	Begin(ctx context.Context) (int, error)
	// Next fetches one update.
	Next(ctx context.Context) (*models.FrameUpdate, error)
	// End stops remote analysis. It is called best effort.
	End(ctx context.Context) error
}

// AnalysisBackend is the subset of the vision client that analysis uses.
type AnalysisBackend interface {
	HasCredential() bool
	StartAnalysis(ctx context.Context) (int, error)
	NextFrame(ctx context.Context) (*models.FrameUpdate, error)
	StopAnalysis(ctx context.Context) error
	LiveAnalysis(ctx context.Context) (*models.FrameUpdate, error)
}

// RecordedSource drives analysis of the uploaded video.
type RecordedSource struct {
	Backend AnalysisBackend
}

func (s RecordedSource) Begin(ctx context.Context) (int, error) {
	return s.Backend.StartAnalysis(ctx)
}

func (s RecordedSource) Next(ctx context.Context) (*models.FrameUpdate, error) {
	return s.Backend.NextFrame(ctx)
}

func (s RecordedSource) End(ctx context.Context) error {
	return s.Backend.StopAnalysis(ctx)
}

// LiveSource drives the live-feed analysis. The backend keeps no analysis
// session for it: each request analyses the latest camera frame, so Begin
// and End have nothing to do.
type LiveSource struct {
	Backend AnalysisBackend
}

func (s LiveSource) Begin(ctx context.Context) (int, error) {
	return 0, nil
}

func (s LiveSource) Next(ctx context.Context) (*models.FrameUpdate, error) {
	return s.Backend.LiveAnalysis(ctx)
}

func (s LiveSource) End(ctx context.Context) error {
	return nil
}
