package media

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	pion "github.com/pion/webrtc/v4"
)

// Controller owns the local MediaTrackSet: at most one audio track and
// one video track, with exactly one of {camera, screen} active as the
// video source. All mutations are applied atomically under the lock
// before anything is propagated to peers.
type Controller struct {
	provider CaptureProvider

	mu        sync.Mutex
	audio     CapturedTrack
	video     CapturedTrack
	source    VideoSource
	switching bool
	closed    bool
}

// NewController creates a controller over the given capture provider.
func NewController(provider CaptureProvider) *Controller {
	return &Controller{provider: provider, source: SourceCamera}
}

// Acquire opens the requested devices. Failure of one kind degrades
// (missing camera renders as avatar downstream); only when every
// requested kind fails does Acquire return ErrDeviceUnavailable.
func (c *Controller) Acquire(ctx context.Context, constraints Constraints) error {
	var audio, video CapturedTrack
	var lastErr error

	if constraints.Video {
		track, err := c.provider.Camera(ctx)
		if err != nil {
			slog.Warn("camera unavailable, continuing without video", "error", err)
			lastErr = err
		} else {
			video = track
		}
	}
	if constraints.Audio {
		track, err := c.provider.Microphone(ctx)
		if err != nil {
			slog.Warn("microphone unavailable, continuing without audio", "error", err)
			lastErr = err
		} else {
			audio = track
		}
	}

	if audio == nil && video == nil && (constraints.Audio || constraints.Video) {
		return fmt.Errorf("%w: %v", ErrDeviceUnavailable, lastErr)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.audio = audio
	c.video = video
	c.source = SourceCamera
	return nil
}

// ToggleAudio flips the audio mute flag and returns the new enabled
// state. No renegotiation happens.
func (c *Controller) ToggleAudio() (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.audio == nil {
		return false, ErrNoTrack
	}
	enabled := !c.audio.Enabled()
	c.audio.SetEnabled(enabled)
	return enabled, nil
}

// ToggleVideo flips the video mute flag and returns the new enabled
// state.
func (c *Controller) ToggleVideo() (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.video == nil {
		return false, ErrNoTrack
	}
	enabled := !c.video.Enabled()
	c.video.SetEnabled(enabled)
	return enabled, nil
}

// SwitchVideoSource replaces the active video track with the target
// source and returns the replacement for propagation to every peer
// link. The previous track's capture is stopped. Concurrent switches
// are rejected with ErrToggleInFlight; the switch completes as one
// unit before any other reader observes the new source.
func (c *Controller) SwitchVideoSource(ctx context.Context, target VideoSource) (CapturedTrack, error) {
	c.mu.Lock()
	if c.switching {
		c.mu.Unlock()
		return nil, ErrToggleInFlight
	}
	if c.video != nil && c.source == target {
		current := c.video
		c.mu.Unlock()
		return current, nil
	}
	c.switching = true
	c.mu.Unlock()

	var replacement CapturedTrack
	var err error
	switch target {
	case SourceScreen:
		replacement, err = c.provider.Screen(ctx)
	default:
		replacement, err = c.provider.Camera(ctx)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.switching = false
	if err != nil {
		return nil, fmt.Errorf("%w: acquire %s: %v", ErrDeviceUnavailable, target, err)
	}

	if c.video != nil {
		c.video.Stop()
	}
	c.video = replacement
	c.source = target
	return replacement, nil
}

// Source reports the active video source.
func (c *Controller) Source() VideoSource {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.source
}

// HasAudio and HasVideo report track presence (camera-less
// participants render as avatars, not errors).
func (c *Controller) HasAudio() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.audio != nil
}

func (c *Controller) HasVideo() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.video != nil
}

// AudioEnabled reports the audio mute flag.
func (c *Controller) AudioEnabled() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.audio != nil && c.audio.Enabled()
}

// VideoEnabled reports the video mute flag.
func (c *Controller) VideoEnabled() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.video != nil && c.video.Enabled()
}

// Tracks returns the pion tracks to attach to a new peer connection.
func (c *Controller) Tracks() []pion.TrackLocal {
	c.mu.Lock()
	defer c.mu.Unlock()
	var tracks []pion.TrackLocal
	if c.audio != nil {
		tracks = append(tracks, c.audio.TrackLocal())
	}
	if c.video != nil {
		tracks = append(tracks, c.video.TrackLocal())
	}
	return tracks
}

// AudioSampler exposes the audio track's level window when supported.
func (c *Controller) AudioSampler() AudioSampler {
	c.mu.Lock()
	defer c.mu.Unlock()
	if sampler, ok := c.audio.(AudioSampler); ok {
		return sampler
	}
	return nil
}

// Close stops all capture. Idempotent.
func (c *Controller) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	if c.audio != nil {
		c.audio.Stop()
		c.audio = nil
	}
	if c.video != nil {
		c.video.Stop()
		c.video = nil
	}
}
