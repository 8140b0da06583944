// Package health derives per-stream connection quality from ICE state
// and inbound packet liveness, and escalates frozen streams to a single
// ICE restart.
package health

import (
	"log/slog"
	"time"
)

// Quality grades one remote stream's connection.
type Quality int

const (
	QualityUnknown Quality = iota
	QualityPoor
	QualityGood
	QualityExcellent
)

func (q Quality) String() string {
	switch q {
	case QualityPoor:
		return "poor"
	case QualityGood:
		return "good"
	case QualityExcellent:
		return "excellent"
	default:
		return "unknown"
	}
}

const (
	// SweepInterval is how often the session loop should call Sweep. A
	// check counts as missed when no packet arrived since the previous
	// sweep.
	SweepInterval = time.Second

	// staleChecks is how many consecutive missed checks escalate to an
	// ICE restart, so remediation lands at roughly three seconds of
	// silence.
	staleChecks = 3
)

// LivenessSource reports the last inbound packet time per participant.
type LivenessSource interface {
	LastActivity(participantID string) (time.Time, bool)
}

type streamHealth struct {
	quality   Quality
	stale     int
	restarted bool
}

// Monitor tracks stream quality for every connected peer. It is driven
// entirely by the session loop: ICE notes as they drain, one Sweep per
// interval.
type Monitor struct {
	liveness LivenessSource
	restart  func(participantID string) error
	streams  map[string]*streamHealth
}

func NewMonitor(liveness LivenessSource, restart func(participantID string) error) *Monitor {
	return &Monitor{
		liveness: liveness,
		restart:  restart,
		streams:  make(map[string]*streamHealth),
	}
}

// Track begins monitoring a participant's stream at unknown quality.
func (m *Monitor) Track(participantID string) {
	if _, ok := m.streams[participantID]; ok {
		return
	}
	m.streams[participantID] = &streamHealth{quality: QualityUnknown}
}

// Forget stops monitoring a departed participant.
func (m *Monitor) Forget(participantID string) {
	delete(m.streams, participantID)
}

// NoteICEState regrades the stream from an ICE connection state change.
// Reaching a connected state ends any staleness episode.
func (m *Monitor) NoteICEState(participantID, iceState string) {
	s, ok := m.streams[participantID]
	if !ok {
		s = &streamHealth{}
		m.streams[participantID] = s
	}

	switch iceState {
	case "completed":
		s.quality = QualityExcellent
	case "connected":
		s.quality = QualityGood
	case "new", "checking":
		s.quality = QualityUnknown
	default:
		s.quality = QualityPoor
	}

	if s.quality == QualityGood || s.quality == QualityExcellent {
		s.stale = 0
		s.restarted = false
	}
}

// Quality returns the current grade. A stream in a staleness episode
// reads as poor regardless of its last ICE grade.
func (m *Monitor) Quality(participantID string) Quality {
	s, ok := m.streams[participantID]
	if !ok {
		return QualityUnknown
	}
	if s.stale >= staleChecks {
		return QualityPoor
	}
	return s.quality
}

// Sweep runs one liveness check over every live stream. A stream that
// has gone staleChecks consecutive sweeps without traffic gets exactly
// one ICE restart for the episode; fresh traffic or an ICE reconnect
// arms it again. Returns the participants restarted this sweep.
func (m *Monitor) Sweep(now time.Time) []string {
	var restarted []string
	for id, s := range m.streams {
		if s.quality != QualityGood && s.quality != QualityExcellent {
			continue
		}

		last, ok := m.liveness.LastActivity(id)
		if !ok {
			// No packet seen yet; negotiation may still be settling.
			continue
		}

		if now.Sub(last) < SweepInterval {
			s.stale = 0
			s.restarted = false
			continue
		}

		s.stale++
		if s.stale < staleChecks || s.restarted {
			continue
		}

		s.restarted = true
		slog.Warn("Stream frozen, restarting ICE", "peer", id, "stale_checks", s.stale)
		if err := m.restart(id); err != nil {
			slog.Warn("ICE restart failed", "peer", id, "error", err)
		}
		restarted = append(restarted, id)
	}
	return restarted
}
