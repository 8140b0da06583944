package media

import (
	"context"
	"math"
	"sync"
	"time"

	pion "github.com/pion/webrtc/v4"
	"github.com/pion/webrtc/v4/pkg/media"
)

const (
	audioFrameInterval = 20 * time.Millisecond
	videoFrameInterval = 66 * time.Millisecond // ~15 fps
	analysisWindow     = 256
)

// SyntheticProvider produces generated tracks: a tone-modulated audio
// track and a pattern video track. It exists for headless operation
// and local mesh testing where no capture hardware is present; the
// payloads keep RTP flowing but are not meaningful encodings.
type SyntheticProvider struct {
	// ToneAmplitude scales the generated audio envelope in [0, 1].
	// Zero produces silence.
	ToneAmplitude float64
}

var _ CaptureProvider = (*SyntheticProvider)(nil)

func (p *SyntheticProvider) Microphone(_ context.Context) (CapturedTrack, error) {
	track, err := pion.NewTrackLocalStaticSample(
		pion.RTPCodecCapability{MimeType: pion.MimeTypeOpus, ClockRate: 48000, Channels: 2},
		"audio", "huddle-local",
	)
	if err != nil {
		return nil, err
	}
	t := newSyntheticTrack(track, pion.RTPCodecTypeAudio, audioFrameInterval)
	t.amplitude = p.ToneAmplitude
	go t.run()
	return t, nil
}

func (p *SyntheticProvider) Camera(_ context.Context) (CapturedTrack, error) {
	return p.videoTrack("camera")
}

func (p *SyntheticProvider) Screen(_ context.Context) (CapturedTrack, error) {
	return p.videoTrack("screen")
}

func (p *SyntheticProvider) videoTrack(id string) (CapturedTrack, error) {
	track, err := pion.NewTrackLocalStaticSample(
		pion.RTPCodecCapability{MimeType: pion.MimeTypeVP8, ClockRate: 90000},
		id, "huddle-local",
	)
	if err != nil {
		return nil, err
	}
	t := newSyntheticTrack(track, pion.RTPCodecTypeVideo, videoFrameInterval)
	go t.run()
	return t, nil
}

// syntheticTrack generates frames on a fixed cadence until stopped.
type syntheticTrack struct {
	track     *pion.TrackLocalStaticSample
	kind      pion.RTPCodecType
	interval  time.Duration
	amplitude float64

	mu      sync.Mutex
	enabled bool
	window  []float32
	phase   float64
	stopped bool
	stop    chan struct{}
}

func newSyntheticTrack(track *pion.TrackLocalStaticSample, kind pion.RTPCodecType, interval time.Duration) *syntheticTrack {
	return &syntheticTrack{
		track:    track,
		kind:     kind,
		interval: interval,
		enabled:  true,
		window:   make([]float32, analysisWindow),
		stop:     make(chan struct{}),
	}
}

func (t *syntheticTrack) TrackLocal() pion.TrackLocal { return t.track }

func (t *syntheticTrack) Kind() pion.RTPCodecType { return t.kind }

func (t *syntheticTrack) SetEnabled(enabled bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.enabled = enabled
}

func (t *syntheticTrack) Enabled() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.enabled
}

func (t *syntheticTrack) Stop() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.stopped {
		return
	}
	t.stopped = true
	close(t.stop)
}

// Samples returns a copy of the latest audio analysis window.
func (t *syntheticTrack) Samples() []float32 {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]float32, len(t.window))
	copy(out, t.window)
	return out
}

func (t *syntheticTrack) run() {
	ticker := time.NewTicker(t.interval)
	defer ticker.Stop()

	frame := make([]byte, 480)
	for {
		select {
		case <-t.stop:
			return
		case <-ticker.C:
			t.generate(frame)
			t.track.WriteSample(media.Sample{Data: frame, Duration: t.interval})
		}
	}
}

// generate fills the frame and, for audio, refreshes the analysis
// window with a 440Hz tone scaled by the amplitude (zero when muted).
func (t *syntheticTrack) generate(frame []byte) {
	t.mu.Lock()
	defer t.mu.Unlock()

	amp := t.amplitude
	if !t.enabled {
		amp = 0
	}
	if t.kind == pion.RTPCodecTypeAudio {
		for i := range t.window {
			t.phase += 2 * math.Pi * 440 / 48000
			t.window[i] = float32(amp * math.Sin(t.phase))
		}
	}
	for i := range frame {
		frame[i] = byte(int(t.phase*31) + i)
	}
}
