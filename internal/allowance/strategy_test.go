package allowance

import "testing"

func defaultStrategy() Strategy {
	return Strategy{
		ConservativeThreshold: 0.30,
		AggressiveThreshold:   0.70,
		ConservativeMinEdge:   0.05,
		NormalMinEdge:         0.02,
		AggressiveMinEdge:     0.01,
	}
}

func TestStrategy_ModeFor(t *testing.T) {
	t.Parallel()

	s := defaultStrategy()

	tests := []struct {
		name      string
		remaining float64
		limit     float64
		want      Mode
	}{
		{name: "nearly-exhausted", remaining: 1.0, limit: 10.0, want: ModeConservative},
		{name: "below-conservative-band", remaining: 2.9, limit: 10.0, want: ModeConservative},
		{name: "exactly-conservative-threshold", remaining: 3.0, limit: 10.0, want: ModeNormal},
		{name: "mid-band", remaining: 5.0, limit: 10.0, want: ModeNormal},
		{name: "exactly-aggressive-threshold", remaining: 7.0, limit: 10.0, want: ModeNormal},
		{name: "above-aggressive-band", remaining: 7.1, limit: 10.0, want: ModeAggressive},
		{name: "untouched-limit", remaining: 10.0, limit: 10.0, want: ModeAggressive},
		{name: "zero-limit", remaining: 0.0, limit: 0.0, want: ModeConservative},
		{name: "negative-limit", remaining: 1.0, limit: -1.0, want: ModeConservative},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := s.ModeFor(tt.remaining, tt.limit); got != tt.want {
				t.Errorf("ModeFor(%f, %f) = %q, want %q", tt.remaining, tt.limit, got, tt.want)
			}
		})
	}
}

func TestStrategy_MinEdge(t *testing.T) {
	t.Parallel()

	s := defaultStrategy()

	tests := []struct {
		name string
		mode Mode
		want float64
	}{
		{name: "conservative", mode: ModeConservative, want: 0.05},
		{name: "normal", mode: ModeNormal, want: 0.02},
		{name: "aggressive", mode: ModeAggressive, want: 0.01},
		{name: "unknown-defaults-conservative", mode: Mode("BOGUS"), want: 0.05},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := s.MinEdge(tt.mode); got != tt.want {
				t.Errorf("MinEdge(%q) = %f, want %f", tt.mode, got, tt.want)
			}
		})
	}
}
