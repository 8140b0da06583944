// Package media owns the local audio/video track set: acquisition,
// mute toggles, and camera/screen switching. Capture hardware sits
// behind the CaptureProvider interface so the engine runs identically
// against real devices, the synthetic provider, and test stubs.
package media

import (
	"context"
	"errors"

	pion "github.com/pion/webrtc/v4"
)

var (
	// ErrDeviceUnavailable reports that capture devices are missing or
	// permission was denied. Fatal to full participation, not to the
	// process: callers degrade to audio-only or avatar-only.
	ErrDeviceUnavailable = errors.New("capture device unavailable")

	// ErrToggleInFlight reports a video-source switch racing another.
	ErrToggleInFlight = errors.New("video source switch already in flight")

	// ErrNoTrack reports a toggle against a track that was never
	// acquired.
	ErrNoTrack = errors.New("no such local track")
)

// VideoSource identifies the active outgoing video. Exactly one source
// is active at a time.
type VideoSource int

const (
	SourceCamera VideoSource = iota
	SourceScreen
)

func (s VideoSource) String() string {
	switch s {
	case SourceCamera:
		return "camera"
	case SourceScreen:
		return "screen"
	default:
		return "unknown"
	}
}

// Constraints selects which kinds of media to acquire.
type Constraints struct {
	Audio bool
	Video bool
}

// CapturedTrack is one live local track: a pion track plus control of
// the underlying capture.
type CapturedTrack interface {
	// TrackLocal is the pion track attached to peer connections.
	TrackLocal() pion.TrackLocal

	// Kind reports audio or video.
	Kind() pion.RTPCodecType

	// SetEnabled flips the mute flag. A disabled track keeps its
	// capture running but sends silence/black, so no renegotiation
	// happens.
	SetEnabled(enabled bool)
	Enabled() bool

	// Stop ends the hardware capture. The track must not be reused.
	Stop()
}

// CaptureProvider opens capture devices.
type CaptureProvider interface {
	Microphone(ctx context.Context) (CapturedTrack, error)
	Camera(ctx context.Context) (CapturedTrack, error)
	Screen(ctx context.Context) (CapturedTrack, error)
}

// AudioSampler is implemented by audio tracks that expose their most
// recent PCM window for level analysis.
type AudioSampler interface {
	// Samples returns the latest analysis window, normalized to
	// [-1, 1]. The returned slice is a copy.
	Samples() []float32
}
