package session

import (
	"context"

	"github.com/rewired-gh/zonewatch/internal/logger"
	"github.com/rewired-gh/zonewatch/internal/models"
)

// poll runs the tick loop for one run. The first tick fires immediately.
// Each fetch completes before the loop waits for the next tick, so at most
// one request is in flight per session; ticks that elapse during a slow
// fetch are dropped by the ticker rather than queued.
func (s *Session) poll(ctx context.Context, runID string) {
	defer s.wg.Done()

	ticker := s.clock.Ticker(s.interval)
	defer ticker.Stop()

	for {
		if !s.tick(ctx, runID) {
			return
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// tick fetches and applies one update. It returns false when the loop must end.
func (s *Session) tick(ctx context.Context, runID string) bool {
	u, err := s.source.Next(ctx)
	if ctx.Err() != nil {
		// Stopped while the request was in flight; the result is stale.
		return false
	}

	s.mu.Lock()
	if s.runID != runID || s.state != Running {
		s.mu.Unlock()
		return false
	}

	if err != nil {
		s.finishLocked(err)
		logger.Error("%s analysis poll failed: %v", s.mode, err)
		s.wrapUp(ctx, runID, Errored)
		return false
	}
	if u.Finished {
		s.finishLocked(nil)
		logger.Info("%s analysis finished after %d frames", s.mode, s.polled)
		s.wrapUp(ctx, runID, Finished)
		return false
	}

	s.polled++
	s.lastFrame = u.FrameNumber
	if s.apply != nil {
		s.apply(s.mode, u)
	}
	s.mu.Unlock()
	return true
}

// finishLocked moves a run that ended on its own into Stopping while the
// remote stop call is made; wrapUp then settles the final state. A nil err
// means the source completed.
func (s *Session) finishLocked(err error) {
	s.state = Stopping
	s.lastErr = err
	s.endReason = err
	if err == nil {
		s.endReason = models.ErrSessionFinished
	}
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
}

// wrapUp is entered with the lock held and releases it. It issues the
// best-effort remote stop, then records the terminal state unless Stop has
// taken over in the meantime.
func (s *Session) wrapUp(ctx context.Context, runID string, final State) {
	s.mu.Unlock()
	s.emit()

	s.end(ctx)

	s.mu.Lock()
	if s.runID == runID && s.state == Stopping {
		s.state = final
	}
	s.mu.Unlock()
	s.emit()
}
