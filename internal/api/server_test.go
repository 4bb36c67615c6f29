package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rewired-gh/zonewatch/internal/models"
	"github.com/rewired-gh/zonewatch/internal/monitor"
	"github.com/rewired-gh/zonewatch/internal/session"
)

type fakeController struct {
	startErr error
	started  []session.Mode
	stopped  []session.Mode
}

func (f *fakeController) Status(capacityFor func(string) int) session.Status {
	st := session.Status{
		Visible: "live",
		Sessions: []session.Info{
			{Mode: "live", State: "running", FramesPolled: 4},
			{Mode: "recorded", State: "idle"},
		},
		Stats:  monitor.Snapshot{CurrentCount: 5, PeakCount: 9, ZoneData: map[string]int{"Entrance": 5}},
		Alerts: []models.Alert{{ID: "a", Zone: "Entrance", Count: 9, Threshold: 7}},
	}
	if capacityFor != nil {
		st.Occupancy = []models.Occupancy{{Zone: "Entrance", Count: 5, Capacity: capacityFor("Entrance"), Percent: 10}}
	}
	return st
}

func (f *fakeController) Start(ctx context.Context, mode session.Mode) error {
	f.started = append(f.started, mode)
	return f.startErr
}

func (f *fakeController) Stop(ctx context.Context, mode session.Mode) error {
	f.stopped = append(f.stopped, mode)
	return nil
}

type fakeZones []models.Zone

func (z fakeZones) Snapshot() []models.Zone { return z }

func newTestServer(ctl *fakeController) http.Handler {
	zones := fakeZones{{ID: "1", Name: "Entrance", Coordinates: []models.Point{{X: 0, Y: 0}, {X: 1, Y: 0}, {X: 1, Y: 1}, {X: 0, Y: 1}}}}
	metrics := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("zonewatch_current_count 5\n"))
	})
	return New(":0", ctl, zones, func(string) int { return 50 }, metrics).Handler()
}

func do(t *testing.T, h http.Handler, method, path string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(method, path, nil))
	return rec
}

func TestStatus(t *testing.T) {
	h := newTestServer(&fakeController{})
	rec := do(t, h, http.MethodGet, "/status")
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", rec.Code)
	}

	var st session.Status
	if err := json.NewDecoder(rec.Body).Decode(&st); err != nil {
		t.Fatalf("Failed to decode status: %v", err)
	}
	if st.Visible != "live" || len(st.Sessions) != 2 || st.Stats.PeakCount != 9 {
		t.Errorf("Unexpected status %+v", st)
	}
	if len(st.Occupancy) != 1 || st.Occupancy[0].Capacity != 50 {
		t.Errorf("Expected occupancy with capacity, got %+v", st.Occupancy)
	}
}

func TestZonesAndAlerts(t *testing.T) {
	h := newTestServer(&fakeController{})

	var zones []models.Zone
	rec := do(t, h, http.MethodGet, "/zones")
	if err := json.NewDecoder(rec.Body).Decode(&zones); err != nil {
		t.Fatal(err)
	}
	if len(zones) != 1 || zones[0].Name != "Entrance" {
		t.Errorf("Unexpected zones %+v", zones)
	}

	var alerts []models.Alert
	rec = do(t, h, http.MethodGet, "/alerts")
	if err := json.NewDecoder(rec.Body).Decode(&alerts); err != nil {
		t.Fatal(err)
	}
	if len(alerts) != 1 || alerts[0].Zone != "Entrance" {
		t.Errorf("Unexpected alerts %+v", alerts)
	}
}

func TestMetricsMounted(t *testing.T) {
	rec := do(t, newTestServer(&fakeController{}), http.MethodGet, "/metrics")
	if rec.Code != http.StatusOK || rec.Body.String() != "zonewatch_current_count 5\n" {
		t.Errorf("Unexpected metrics response %d %q", rec.Code, rec.Body.String())
	}
}

func TestSessionControl(t *testing.T) {
	ctl := &fakeController{}
	h := newTestServer(ctl)

	if rec := do(t, h, http.MethodPost, "/sessions/live/start"); rec.Code != http.StatusAccepted {
		t.Errorf("Expected 202, got %d", rec.Code)
	}
	if rec := do(t, h, http.MethodPost, "/sessions/recorded/stop"); rec.Code != http.StatusOK {
		t.Errorf("Expected 200, got %d", rec.Code)
	}
	if rec := do(t, h, http.MethodPost, "/sessions/camera/start"); rec.Code != http.StatusNotFound {
		t.Errorf("Expected 404 for unknown mode, got %d", rec.Code)
	}
	if len(ctl.started) != 1 || ctl.started[0] != session.ModeLive {
		t.Errorf("Unexpected starts %v", ctl.started)
	}
	if len(ctl.stopped) != 1 || ctl.stopped[0] != session.ModeRecorded {
		t.Errorf("Unexpected stops %v", ctl.stopped)
	}
}

func TestSessionStartErrors(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"already running", models.ErrAlreadyRunning, http.StatusConflict},
		{"precondition", models.ErrPreconditionFailed, http.StatusPreconditionFailed},
		{"auth", models.ErrAuthRequired, http.StatusUnauthorized},
		{"start without login", fmt.Errorf("%w: %w", models.ErrPreconditionFailed, models.ErrAuthRequired), http.StatusPreconditionFailed},
		{"backend", &models.BackendError{StatusCode: 404, Message: "No uploaded video found"}, http.StatusBadGateway},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(t, newTestServer(&fakeController{startErr: tt.err}), http.MethodPost, "/sessions/recorded/start")
			if rec.Code != tt.want {
				t.Errorf("Expected %d, got %d", tt.want, rec.Code)
			}
			var body HttpErrResponse
			if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
				t.Fatal(err)
			}
			if body.ErrorText != tt.err.Error() {
				t.Errorf("Expected error text %q, got %q", tt.err.Error(), body.ErrorText)
			}
		})
	}
}
