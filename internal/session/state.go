// Package session runs remote analysis sessions against the vision backend.
//
// A Session is a small state machine that owns at most one poll goroutine.
// Two sessions run side by side, one for the live camera and one for a
// recorded video; the Coordinator wires both into a shared Aggregator and
// Dispatcher.
//
// State transitions:
//
//	Idle/Finished/Errored --Start--> Starting --remote start ok--> Running
//	Starting --remote start failed--> Idle
//	Running --poll reports finished--> Finished
//	Running --poll failed--> Errored
//	Starting/Running --Stop--> Stopping --> Idle
//
// Every Start mints a run id. A poll result is applied only while the
// session is still Running under the same run id, so results that arrive
// after Stop are discarded.
package session

import (
	"time"
)

// Mode selects which remote analysis a session drives.
type Mode int

const (
	// ModeRecorded analyses a previously uploaded video.
	ModeRecorded Mode = iota
	// ModeLive analyses the live camera stream.
	ModeLive
)

func (m Mode) String() string {
	if m == ModeLive {
		return "live"
	}
	return "recorded"
}

// ParseMode maps "live" or "recorded" to a Mode.
func ParseMode(s string) (Mode, bool) {
	switch s {
	case "live":
		return ModeLive, true
	case "recorded":
		return ModeRecorded, true
	default:
		return ModeRecorded, false
	}
}

// State is the lifecycle state of a session.
type State int

const (
	Idle State = iota
	Starting
	Running
	Stopping
	Finished
	Errored
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Starting:
		return "starting"
	case Running:
		return "running"
	case Stopping:
		return "stopping"
	case Finished:
		return "finished"
	case Errored:
		return "errored"
	default:
		return "unknown"
	}
}

// Active reports whether the session holds (or is acquiring) a poll task.
func (s State) Active() bool {
	return s == Starting || s == Running || s == Stopping
}

// Info is a point-in-time view of a session.
type Info struct {
	Mode         string    `json:"mode"`
	State        string    `json:"state"`
	RunID        string    `json:"run_id,omitempty"`
	FramesPolled int       `json:"frames_polled"`
	TotalFrames  int       `json:"total_frames,omitempty"`
	LastFrame    int       `json:"last_frame,omitempty"`
	LastError    string    `json:"last_error,omitempty"`
	EndReason    string    `json:"end_reason,omitempty"`
	StartedAt    time.Time `json:"started_at,omitempty"`
}
