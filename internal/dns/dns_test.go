package dns

import (
	"context"
	"errors"
	"testing"
)

func TestPickAddressPrefersIPv4(t *testing.T) {
	tests := []struct {
		name  string
		addrs []string
		want  string
	}{
		{"v4 only", []string{"93.184.216.34"}, "93.184.216.34"},
		{"v6 before v4", []string{"2606:2800:220:1::1", "93.184.216.34"}, "93.184.216.34"},
		{"v6 only falls back", []string{"2606:2800:220:1::1"}, "2606:2800:220:1::1"},
	}

	for _, tt := range tests {
		got, err := pickAddress(tt.addrs)
		if err != nil {
			t.Errorf("%s: pickAddress = %v", tt.name, err)
			continue
		}
		if got != tt.want {
			t.Errorf("%s: pickAddress = %q, want %q", tt.name, got, tt.want)
		}
	}
}

func TestPickAddressEmpty(t *testing.T) {
	if _, err := pickAddress(nil); !errors.Is(err, ErrNoAddresses) {
		t.Errorf("pickAddress(nil) = %v, want ErrNoAddresses", err)
	}
}

func TestResolvePassesLiteralsThrough(t *testing.T) {
	for _, literal := range []string{"127.0.0.1", "10.0.0.7", "::1"} {
		got, err := Resolve(context.Background(), literal)
		if err != nil {
			t.Errorf("Resolve(%q) = %v", literal, err)
			continue
		}
		if got != literal {
			t.Errorf("Resolve(%q) = %q, want passthrough", literal, got)
		}
	}
}
