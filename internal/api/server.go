// Package api serves the coordinator's state over HTTP: session status,
// statistics, active alerts, zones, and Prometheus metrics. It also accepts
// start/stop requests so a dashboard can drive the sessions.
package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/render"
	"github.com/rewired-gh/zonewatch/internal/logger"
	"github.com/rewired-gh/zonewatch/internal/models"
	"github.com/rewired-gh/zonewatch/internal/session"
)

// Controller is the coordinator surface the API drives.
type Controller interface {
	Status(capacityFor func(zone string) int) session.Status
	Start(ctx context.Context, mode session.Mode) error
	Stop(ctx context.Context, mode session.Mode) error
}

// ZoneLister lists the saved zones.
type ZoneLister interface {
	Snapshot() []models.Zone
}

// Server is the status API.
type Server struct {
	addr        string
	ctl         Controller
	zones       ZoneLister
	capacityFor func(zone string) int
	metrics     http.Handler
}

// New creates a Server. metrics may be nil.
func New(addr string, ctl Controller, zones ZoneLister, capacityFor func(string) int, metrics http.Handler) *Server {
	return &Server{
		addr:        addr,
		ctl:         ctl,
		zones:       zones,
		capacityFor: capacityFor,
		metrics:     metrics,
	}
}

// Handler builds the router.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Second))

	r.Get("/status", s.apiStatus)
	r.Get("/alerts", s.apiAlerts)
	r.Get("/zones", s.apiZones)
	r.Route("/sessions/{mode}", func(r chi.Router) {
		r.Post("/start", s.apiSessionStart)
		r.Post("/stop", s.apiSessionStop)
	})
	if s.metrics != nil {
		r.Method(http.MethodGet, "/metrics", s.metrics)
	}
	return r
}

// Run serves until ctx is done, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errc := make(chan error, 1)
	go func() {
		logger.Info("Status API listening on %s", s.addr)
		errc <- srv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	return nil
}

func (s *Server) apiStatus(w http.ResponseWriter, r *http.Request) {
	render.JSON(w, r, s.ctl.Status(s.capacityFor))
}

func (s *Server) apiAlerts(w http.ResponseWriter, r *http.Request) {
	render.JSON(w, r, s.ctl.Status(nil).Alerts)
}

func (s *Server) apiZones(w http.ResponseWriter, r *http.Request) {
	render.JSON(w, r, s.zones.Snapshot())
}

func (s *Server) apiSessionStart(w http.ResponseWriter, r *http.Request) {
	mode, ok := session.ParseMode(chi.URLParam(r, "mode"))
	if !ok {
		_ = render.Render(w, r, httpErrNotFound(errors.New("unknown session mode")))
		return
	}
	if err := s.ctl.Start(r.Context(), mode); err != nil {
		_ = render.Render(w, r, httpErrFor(err))
		return
	}
	render.Status(r, http.StatusAccepted)
	render.JSON(w, r, s.sessionInfo(mode))
}

func (s *Server) apiSessionStop(w http.ResponseWriter, r *http.Request) {
	mode, ok := session.ParseMode(chi.URLParam(r, "mode"))
	if !ok {
		_ = render.Render(w, r, httpErrNotFound(errors.New("unknown session mode")))
		return
	}
	if err := s.ctl.Stop(r.Context(), mode); err != nil {
		_ = render.Render(w, r, httpErrFor(err))
		return
	}
	render.JSON(w, r, s.sessionInfo(mode))
}

func (s *Server) sessionInfo(mode session.Mode) session.Info {
	for _, info := range s.ctl.Status(nil).Sessions {
		if info.Mode == mode.String() {
			return info
		}
	}
	return session.Info{Mode: mode.String()}
}
