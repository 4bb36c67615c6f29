package vision

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/rewired-gh/zonewatch/internal/models"
)

type startAnalysisResponse struct {
	Message     string `json:"message"`
	TotalFrames *int   `json:"total_frames"`
}

type frameResponse struct {
	ZoneCounts   map[models.ZoneID]int `json:"zone_counts"`
	OverlayFrame string                `json:"overlay_frame"`
	HeatmapFrame string                `json:"heatmap_frame"`
	FrameNumber  int                   `json:"frame_number"`
	Finished     bool                  `json:"finished"`
	Message      string                `json:"message"`
	Error        string                `json:"error"`
}

type summaryResponse struct {
	TotalEntries *int                 `json:"total_entries"`
	TotalExits   *int                 `json:"total_exits"`
	HourlyTrend  map[string][]float64 `json:"hourly_trend_by_zone"`
}

// StartAnalysis opens a recorded-video analysis session on the backend and
// returns the video's frame count.
func (c *Client) StartAnalysis(ctx context.Context) (int, error) {
	var resp startAnalysisResponse
	if err := c.call(ctx, request{method: http.MethodPost, path: "/start_analysis", auth: true}, &resp); err != nil {
		return 0, err
	}
	if resp.TotalFrames == nil || *resp.TotalFrames < 0 {
		return 0, malformed("/start_analysis", errors.New("missing or negative total_frames"))
	}
	return *resp.TotalFrames, nil
}

// NextFrame pulls the next analyzed frame of the recorded session. A reply
// flagged finished is returned as an update with Finished set, even when the
// backend pairs it with a non-success status.
func (c *Client) NextFrame(ctx context.Context) (*models.FrameUpdate, error) {
	return c.frame(ctx, http.MethodGet, "/get_frame_data")
}

// LiveAnalysis analyzes the current live camera frame and returns the result.
func (c *Client) LiveAnalysis(ctx context.Context) (*models.FrameUpdate, error) {
	return c.frame(ctx, http.MethodPost, "/start_live_analysis")
}

func (c *Client) frame(ctx context.Context, method, path string) (*models.FrameUpdate, error) {
	resp, err := c.do(ctx, request{method: method, path: path, auth: true})
	if err != nil {
		return nil, err
	}

	var fr frameResponse
	decodeErr := json.Unmarshal(resp.body, &fr)
	if decodeErr == nil && fr.Finished {
		return &models.FrameUpdate{Finished: true, FrameNumber: fr.FrameNumber, ReceivedAt: time.Now()}, nil
	}
	if !resp.ok() {
		return nil, resp.rejection()
	}
	if decodeErr != nil {
		return nil, malformed(path, decodeErr)
	}
	return decodeFrame(path, &fr)
}

func decodeFrame(path string, fr *frameResponse) (*models.FrameUpdate, error) {
	if fr.ZoneCounts == nil {
		return nil, malformed(path, errors.New("missing zone_counts"))
	}
	overlay, err := base64.StdEncoding.DecodeString(fr.OverlayFrame)
	if err != nil {
		return nil, malformed(path, fmt.Errorf("overlay_frame: %w", err))
	}
	heatmap, err := base64.StdEncoding.DecodeString(fr.HeatmapFrame)
	if err != nil {
		return nil, malformed(path, fmt.Errorf("heatmap_frame: %w", err))
	}

	update := &models.FrameUpdate{
		Overlay:     overlay,
		Heatmap:     heatmap,
		ZoneCounts:  fr.ZoneCounts,
		FrameNumber: fr.FrameNumber,
		ReceivedAt:  time.Now(),
	}
	if err := update.Validate(); err != nil {
		return nil, malformed(path, err)
	}
	return update, nil
}

// StopAnalysis ends the backend's analysis session.
func (c *Client) StopAnalysis(ctx context.Context) error {
	_, err := c.postMessage(ctx, "/stop_analysis")
	return err
}

// DailySummary fetches today's cumulative entries, exits, and per-zone
// hourly averages.
func (c *Client) DailySummary(ctx context.Context) (*models.DailySummary, error) {
	var resp summaryResponse
	if err := c.call(ctx, request{method: http.MethodGet, path: "/get_daily_summary", auth: true}, &resp); err != nil {
		return nil, err
	}
	if resp.TotalEntries == nil || resp.TotalExits == nil {
		return nil, malformed("/get_daily_summary", errors.New("missing totals"))
	}

	summary := &models.DailySummary{
		TotalEntries: *resp.TotalEntries,
		TotalExits:   *resp.TotalExits,
		HourlyByZone: make(map[string]models.HourlySeries, len(resp.HourlyTrend)),
	}
	for zone, values := range resp.HourlyTrend {
		if len(values) != models.HoursPerDay {
			return nil, malformed("/get_daily_summary",
				fmt.Errorf("zone %q has %d hourly values, expected %d", zone, len(values), models.HoursPerDay))
		}
		var series models.HourlySeries
		copy(series[:], values)
		summary.HourlyByZone[zone] = series
	}
	if err := summary.Validate(); err != nil {
		return nil, malformed("/get_daily_summary", err)
	}
	return summary, nil
}
