package effects

import (
	"errors"
	"testing"
)

func TestPipelineStartsAtNone(t *testing.T) {
	p := NewPipeline()
	d := p.Descriptor()
	if d.Background.Kind != BackgroundNone || d.Filter != FilterNone {
		t.Fatalf("initial descriptor = %+v, want none/none", d)
	}
	if d.FilterCSS != "none" {
		t.Errorf("FilterCSS = %q, want none", d.FilterCSS)
	}
}

func TestCategoriesAreIndependent(t *testing.T) {
	p := NewPipeline()
	if err := p.SetBackground(Background{Kind: BackgroundBlur, Blur: BlurModerate}); err != nil {
		t.Fatalf("SetBackground: %v", err)
	}
	if err := p.SetFilter(FilterSepia); err != nil {
		t.Fatalf("SetFilter: %v", err)
	}

	d := p.Descriptor()
	if d.Background.Kind != BackgroundBlur || d.BlurRadius != 10 {
		t.Errorf("background = %+v radius %d, want blur/10", d.Background, d.BlurRadius)
	}
	if d.Filter != FilterSepia || d.FilterCSS != "sepia(100%)" {
		t.Errorf("filter = %s css %q, want sepia", d.Filter, d.FilterCSS)
	}

	// Replacing one category leaves the other alone.
	if err := p.SetFilter(FilterInvert); err != nil {
		t.Fatalf("SetFilter: %v", err)
	}
	if d := p.Descriptor(); d.Background.Kind != BackgroundBlur {
		t.Errorf("background reset by filter change: %+v", d.Background)
	}
}

func TestVirtualBackgroundRequiresURL(t *testing.T) {
	p := NewPipeline()
	err := p.SetBackground(Background{Kind: BackgroundImage})
	if !errors.Is(err, ErrUnknownEffect) {
		t.Fatalf("SetBackground without url = %v, want ErrUnknownEffect", err)
	}
	if err := p.SetBackground(Background{Kind: BackgroundImage, URL: "https://example.com/office.png"}); err != nil {
		t.Fatalf("SetBackground with url: %v", err)
	}
}

func TestUnknownSelectionsRejected(t *testing.T) {
	p := NewPipeline()
	if err := p.SetFilter(Filter("vignette")); !errors.Is(err, ErrUnknownEffect) {
		t.Errorf("SetFilter(vignette) = %v, want ErrUnknownEffect", err)
	}
	if err := p.SetBackground(Background{Kind: BackgroundBlur, Blur: BlurLevel("extreme")}); !errors.Is(err, ErrUnknownEffect) {
		t.Errorf("SetBackground(extreme blur) = %v, want ErrUnknownEffect", err)
	}
}

func TestAdjustmentsFoldIntoDirective(t *testing.T) {
	p := NewPipeline()
	if err := p.SetBrightness(130); err != nil {
		t.Fatalf("SetBrightness: %v", err)
	}
	if got, want := p.Descriptor().FilterCSS, "brightness(130%)"; got != want {
		t.Errorf("FilterCSS = %q, want %q", got, want)
	}

	if err := p.SetFilter(FilterSepia); err != nil {
		t.Fatalf("SetFilter: %v", err)
	}
	if err := p.SetContrast(80); err != nil {
		t.Fatalf("SetContrast: %v", err)
	}
	d := p.Descriptor()
	if got, want := d.FilterCSS, "sepia(100%) brightness(130%) contrast(80%)"; got != want {
		t.Errorf("FilterCSS = %q, want %q", got, want)
	}
	if d.Brightness != 130 || d.Contrast != 80 {
		t.Errorf("adjustments = %d/%d, want 130/80", d.Brightness, d.Contrast)
	}

	// Neutral adjustments disappear from the directive.
	p.SetBrightness(100)
	p.SetContrast(100)
	if got, want := p.Descriptor().FilterCSS, "sepia(100%)"; got != want {
		t.Errorf("FilterCSS = %q, want %q", got, want)
	}
}

func TestAdjustmentRangeEnforced(t *testing.T) {
	p := NewPipeline()
	for _, percent := range []int{49, 151, 0, -10} {
		if err := p.SetBrightness(percent); !errors.Is(err, ErrOutOfRange) {
			t.Errorf("SetBrightness(%d) = %v, want ErrOutOfRange", percent, err)
		}
		if err := p.SetContrast(percent); !errors.Is(err, ErrOutOfRange) {
			t.Errorf("SetContrast(%d) = %v, want ErrOutOfRange", percent, err)
		}
	}
	for _, percent := range []int{50, 150, 100} {
		if err := p.SetBrightness(percent); err != nil {
			t.Errorf("SetBrightness(%d) = %v, want nil", percent, err)
		}
	}
}

func TestResetRestoresBothCategories(t *testing.T) {
	p := NewPipeline()
	p.SetBackground(Background{Kind: BackgroundBlur, Blur: BlurMax})
	p.SetFilter(FilterGray)
	p.SetBrightness(140)
	p.SetContrast(60)

	p.Reset()
	d := p.Descriptor()
	if d.Background.Kind != BackgroundNone || d.Filter != FilterNone || d.BlurRadius != 0 {
		t.Fatalf("descriptor after Reset = %+v, want none/none", d)
	}
	if d.Brightness != 100 || d.Contrast != 100 || d.FilterCSS != "none" {
		t.Errorf("adjustments after Reset = %d/%d css %q, want 100/100 none", d.Brightness, d.Contrast, d.FilterCSS)
	}
}
