package allowance

// Mode is the trading posture derived from remaining allowance.
type Mode string

const (
	ModeConservative Mode = "CONSERVATIVE"
	ModeNormal       Mode = "NORMAL"
	ModeAggressive   Mode = "AGGRESSIVE"
)

// Strategy maps remaining allowance to a mode and each mode to the minimum
// edge a signal must clear before it is traded.
type Strategy struct {
	ConservativeThreshold float64
	AggressiveThreshold   float64
	ConservativeMinEdge   float64
	NormalMinEdge         float64
	AggressiveMinEdge     float64
}

// ModeFor returns the mode for the given remaining allowance against the
// daily limit. Strictly below the conservative threshold the agent trades
// conservatively; strictly above the aggressive threshold it trades
// aggressively. A zero or missing limit always selects the conservative mode.
func (s Strategy) ModeFor(remaining, limit float64) Mode {
	if limit <= 0 {
		return ModeConservative
	}

	fraction := remaining / limit
	switch {
	case fraction < s.ConservativeThreshold:
		return ModeConservative
	case fraction > s.AggressiveThreshold:
		return ModeAggressive
	default:
		return ModeNormal
	}
}

// MinEdge returns the minimum spread a signal must carry to trade in the
// given mode.
func (s Strategy) MinEdge(mode Mode) float64 {
	switch mode {
	case ModeAggressive:
		return s.AggressiveMinEdge
	case ModeNormal:
		return s.NormalMinEdge
	default:
		return s.ConservativeMinEdge
	}
}
