package indicators

// EMA is an exponential moving average with Wilder-style smoothing,
// updated one value at a time.
type EMA struct {
	period      int
	multiplier  float64
	lastValue   float64
	initialized bool
}

// NewEMA creates a new EMA with the given period.
func NewEMA(period int) *EMA {
	return &EMA{
		period:     period,
		multiplier: 2.0 / (float64(period) + 1.0),
	}
}

// UpdateSingle feeds one value into the average and returns the new value.
func (e *EMA) UpdateSingle(value float64) float64 {
	if !e.initialized {
		e.lastValue = value
		e.initialized = true
		return e.lastValue
	}
	e.lastValue = (value-e.lastValue)*e.multiplier + e.lastValue
	return e.lastValue
}

// GetLastValue returns the last computed average.
func (e *EMA) GetLastValue() float64 {
	return e.lastValue
}

// ResetState clears the average for a fresh data period.
func (e *EMA) ResetState() {
	e.lastValue = 0
	e.initialized = false
}
