package api

import (
	"errors"
	"net/http"

	"github.com/go-chi/render"
	"github.com/rewired-gh/zonewatch/internal/models"
	"github.com/rewired-gh/zonewatch/internal/session"
)

// HttpErrResponse is the JSON body of every error reply.
type HttpErrResponse struct {
	Err            error  `json:"-"`
	HTTPStatusCode int    `json:"-"`
	ErrorText      string `json:"error"`
}

func (e *HttpErrResponse) Render(w http.ResponseWriter, r *http.Request) error {
	render.Status(r, e.HTTPStatusCode)
	return nil
}

func httpErrNotFound(err error) render.Renderer {
	return &HttpErrResponse{Err: err, HTTPStatusCode: http.StatusNotFound, ErrorText: err.Error()}
}

// httpErrFor maps the coordinator's error taxonomy onto status codes.
func httpErrFor(err error) render.Renderer {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, models.ErrAlreadyRunning), errors.Is(err, session.ErrSessionActive):
		status = http.StatusConflict
	case errors.Is(err, models.ErrPreconditionFailed):
		status = http.StatusPreconditionFailed
	case errors.Is(err, models.ErrAuthRequired):
		status = http.StatusUnauthorized
	case errors.Is(err, models.ErrNetwork):
		status = http.StatusBadGateway
	case errors.Is(err, models.ErrBackendRejected):
		status = http.StatusBadGateway
	}
	return &HttpErrResponse{Err: err, HTTPStatusCode: status, ErrorText: err.Error()}
}
