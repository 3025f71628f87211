package risk

// DrawdownState is the drawdown circuit breaker state. It is a
// level-based state machine with no cooldown timer, distinct from the
// count-based resilience breaker in the safety package.
type DrawdownState int

const (
	StateGreen DrawdownState = iota
	StateYellow
	StateRed
)

func (s DrawdownState) String() string {
	switch s {
	case StateGreen:
		return "GREEN"
	case StateYellow:
		return "YELLOW"
	case StateRed:
		return "RED"
	default:
		return "UNKNOWN"
	}
}

// SizeMultiplier returns the position size multiplier the state
// imposes. Each level's multiplier is at most its predecessor's.
func (s DrawdownState) SizeMultiplier() float64 {
	switch s {
	case StateGreen:
		return 1.0
	case StateYellow:
		return 0.5
	default:
		return 0.0
	}
}

// DrawdownBreaker maps the current daily drawdown percentage onto
// GREEN/YELLOW/RED against three configured thresholds
// (level1 >= level2 >= level3, all negative). Recovery is automatic:
// the next check with an improved drawdown steps the state back down.
type DrawdownBreaker struct {
	level1 float64
	level2 float64
	level3 float64
	state  DrawdownState
}

// NewDrawdownBreaker creates a breaker with the given thresholds.
func NewDrawdownBreaker(level1, level2, level3 float64) *DrawdownBreaker {
	return &DrawdownBreaker{
		level1: level1,
		level2: level2,
		level3: level3,
		state:  StateGreen,
	}
}

// Check re-evaluates the state for the given drawdown percentage and
// returns the new state. More negative means worse.
func (b *DrawdownBreaker) Check(drawdownPct float64) DrawdownState {
	switch {
	case drawdownPct <= b.level3:
		b.state = StateRed
	case drawdownPct <= b.level2:
		b.state = StateYellow
	case drawdownPct <= b.level1:
		b.state = StateYellow
	default:
		b.state = StateGreen
	}
	return b.state
}

// State returns the current state without re-evaluating.
func (b *DrawdownBreaker) State() DrawdownState {
	return b.state
}

// CanTrade reports whether new positions may be opened.
func (b *DrawdownBreaker) CanTrade() bool {
	return b.state != StateRed
}
