// Package effects tracks the locally applied visual effects: one
// background mode and one style filter, each with exactly one active
// selection. Applying an effect changes only how the presentation
// layer renders video; the media sent to peers is untouched.
package effects

import (
	"errors"
	"fmt"
	"strings"
)

// BackgroundKind discriminates the background mode.
type BackgroundKind string

const (
	BackgroundNone  BackgroundKind = "none"
	BackgroundBlur  BackgroundKind = "blur"
	BackgroundImage BackgroundKind = "image"
)

// BlurLevel grades background blur intensity.
type BlurLevel string

const (
	BlurLight    BlurLevel = "light"
	BlurModerate BlurLevel = "moderate"
	BlurMax      BlurLevel = "max"
)

// blurRadii maps blur levels to render radii in pixels.
var blurRadii = map[BlurLevel]int{
	BlurLight:    5,
	BlurModerate: 10,
	BlurMax:      20,
}

// Background is the active background selection.
type Background struct {
	Kind BackgroundKind
	Blur BlurLevel // set when Kind == BackgroundBlur
	URL  string    // set when Kind == BackgroundImage
}

// Filter enumerates the style filters.
type Filter string

const (
	FilterNone     Filter = "none"
	FilterBrighten Filter = "brighten"
	FilterDarken   Filter = "darken"
	FilterContrast Filter = "increase-contrast"
	FilterGray     Filter = "grayscale"
	FilterSepia    Filter = "sepia"
	FilterSoftBlur Filter = "soft-blur"
	FilterHue      Filter = "hue-rotate"
	FilterInvert   Filter = "invert"
	FilterSaturate Filter = "saturate"
)

// filterCSS maps each style filter to its render directive.
var filterCSS = map[Filter]string{
	FilterNone:     "none",
	FilterBrighten: "brightness(120%)",
	FilterDarken:   "brightness(80%)",
	FilterContrast: "contrast(120%)",
	FilterGray:     "grayscale(100%)",
	FilterSepia:    "sepia(100%)",
	FilterSoftBlur: "blur(2px)",
	FilterHue:      "hue-rotate(90deg)",
	FilterInvert:   "invert(100%)",
	FilterSaturate: "saturate(150%)",
}

// Brightness and contrast are adjustable percentages on top of the
// filter selection; 100 is neutral.
const (
	AdjustMin     = 50
	AdjustMax     = 150
	adjustNeutral = 100
)

// ErrUnknownEffect reports an effect id outside the catalogs.
var ErrUnknownEffect = errors.New("unknown effect")

// ErrOutOfRange reports an adjustment percentage outside [AdjustMin, AdjustMax].
var ErrOutOfRange = errors.New("adjustment out of range")

// Descriptor is the render instruction the presentation layer applies
// to local video. Read-only snapshot.
type Descriptor struct {
	Background Background
	Filter     Filter

	// Brightness and Contrast are the adjustment percentages.
	Brightness int
	Contrast   int

	// FilterCSS is the CSS-style directive combining the active filter
	// with any non-neutral adjustments.
	FilterCSS string

	// BlurRadius is the background blur radius in pixels, zero when
	// the background is not a blur.
	BlurRadius int
}

// Pipeline holds the active selections. Not safe for concurrent use;
// the orchestrator serializes all mutations on its event loop.
type Pipeline struct {
	background Background
	filter     Filter
	brightness int
	contrast   int
}

// NewPipeline starts with both categories at none and neutral
// adjustments.
func NewPipeline() *Pipeline {
	return &Pipeline{
		background: Background{Kind: BackgroundNone},
		filter:     FilterNone,
		brightness: adjustNeutral,
		contrast:   adjustNeutral,
	}
}

// SetBackground replaces the background selection.
func (p *Pipeline) SetBackground(bg Background) error {
	switch bg.Kind {
	case BackgroundNone:
		p.background = Background{Kind: BackgroundNone}
	case BackgroundBlur:
		if _, ok := blurRadii[bg.Blur]; !ok {
			return fmt.Errorf("%w: blur level %q", ErrUnknownEffect, bg.Blur)
		}
		p.background = bg
	case BackgroundImage:
		if bg.URL == "" {
			return fmt.Errorf("%w: virtual background without image url", ErrUnknownEffect)
		}
		p.background = bg
	default:
		return fmt.Errorf("%w: background %q", ErrUnknownEffect, bg.Kind)
	}
	return nil
}

// SetFilter replaces the style filter selection.
func (p *Pipeline) SetFilter(f Filter) error {
	if _, ok := filterCSS[f]; !ok {
		return fmt.Errorf("%w: filter %q", ErrUnknownEffect, f)
	}
	p.filter = f
	return nil
}

// SetBrightness sets the brightness percentage.
func (p *Pipeline) SetBrightness(percent int) error {
	if percent < AdjustMin || percent > AdjustMax {
		return fmt.Errorf("%w: brightness %d%%", ErrOutOfRange, percent)
	}
	p.brightness = percent
	return nil
}

// SetContrast sets the contrast percentage.
func (p *Pipeline) SetContrast(percent int) error {
	if percent < AdjustMin || percent > AdjustMax {
		return fmt.Errorf("%w: contrast %d%%", ErrOutOfRange, percent)
	}
	p.contrast = percent
	return nil
}

// Reset restores both categories to none and the adjustments to
// neutral.
func (p *Pipeline) Reset() {
	p.background = Background{Kind: BackgroundNone}
	p.filter = FilterNone
	p.brightness = adjustNeutral
	p.contrast = adjustNeutral
}

// Descriptor snapshots the active selections for rendering.
func (p *Pipeline) Descriptor() Descriptor {
	d := Descriptor{
		Background: p.background,
		Filter:     p.filter,
		Brightness: p.brightness,
		Contrast:   p.contrast,
		FilterCSS:  p.renderFilter(),
	}
	if p.background.Kind == BackgroundBlur {
		d.BlurRadius = blurRadii[p.background.Blur]
	}
	return d
}

// renderFilter combines the filter preset with the non-neutral
// adjustments into one directive, space-separated in apply order.
func (p *Pipeline) renderFilter() string {
	parts := make([]string, 0, 3)
	if p.filter != FilterNone {
		parts = append(parts, filterCSS[p.filter])
	}
	if p.brightness != adjustNeutral {
		parts = append(parts, fmt.Sprintf("brightness(%d%%)", p.brightness))
	}
	if p.contrast != adjustNeutral {
		parts = append(parts, fmt.Sprintf("contrast(%d%%)", p.contrast))
	}
	if len(parts) == 0 {
		return "none"
	}
	return strings.Join(parts, " ")
}
