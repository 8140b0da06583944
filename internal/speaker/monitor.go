// Package speaker grades local microphone activity. It runs a small
// frequency analysis over the latest capture window and smooths the
// resulting level so the speaking indicator does not flicker between
// syllables.
package speaker

import (
	"math"

	"github.com/huddlemesh/huddle/internal/media"
)

const (
	// smoothing weights the previous level against the fresh analysis.
	smoothing = 0.8

	// speakingThreshold is the smoothed level above which the
	// participant counts as speaking.
	speakingThreshold = 0.1
)

// Monitor computes a smoothed audio level in [0, 1] from an
// AudioSampler. Poll is called from the session loop on its analysis
// tick; Monitor itself is not safe for concurrent use.
type Monitor struct {
	sampler media.AudioSampler
	level   float64
}

func NewMonitor(sampler media.AudioSampler) *Monitor {
	return &Monitor{sampler: sampler}
}

// SetSampler swaps the audio source, e.g. after reacquiring devices.
// A nil sampler lets the level decay to silence.
func (m *Monitor) SetSampler(sampler media.AudioSampler) {
	m.sampler = sampler
}

// Poll analyzes the latest capture window and folds it into the
// smoothed level. Returns the new level and whether it crosses the
// speaking threshold.
func (m *Monitor) Poll() (float64, bool) {
	var raw float64
	if m.sampler != nil {
		raw = analyze(m.sampler.Samples())
	}
	m.level = smoothing*m.level + (1-smoothing)*raw
	return m.level, m.Speaking()
}

// Level returns the current smoothed level.
func (m *Monitor) Level() float64 { return m.level }

// Speaking reports whether the smoothed level is above the threshold.
func (m *Monitor) Speaking() bool { return m.level > speakingThreshold }

// analyze returns the spectral energy of the window normalized to
// [0, 1]. A full-scale sine lands around 0.7; silence at 0.
func analyze(samples []float32) float64 {
	n := len(samples)
	if n == 0 {
		return 0
	}

	half := n / 2
	var energy float64
	for k := 1; k <= half; k++ {
		var re, im float64
		for i, s := range samples {
			angle := -2 * math.Pi * float64(k) * float64(i) / float64(n)
			re += float64(s) * math.Cos(angle)
			im += float64(s) * math.Sin(angle)
		}
		energy += 2 * (re*re + im*im)
	}

	level := math.Sqrt(energy) / float64(n)
	return math.Min(level, 1)
}
