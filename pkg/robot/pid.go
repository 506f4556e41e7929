package robot

// PID is a feedback controller where each term and the output are
// limited to ±Limit.
type PID struct {
	Kp, Ki, Kd float64
	Limit      float64
	Setpoint   float64

	integral float64
	prev     float64
	hasPrev  bool
}

// NewPID creates a PID with gains [p, i, d].
func NewPID(gains [3]float64, limit float64) *PID {
	return &PID{Kp: gains[0], Ki: gains[1], Kd: gains[2], Limit: limit}
}

// SetGains replaces the gains, keeping the accumulated state.
func (p *PID) SetGains(gains [3]float64) {
	p.Kp, p.Ki, p.Kd = gains[0], gains[1], gains[2]
}

// Update computes the output for a measurement.
func (p *PID) Update(measured float64) float64 {
	err := p.Setpoint - measured
	out := p.clamp(p.Kp * err)
	p.integral = p.clamp(p.integral + p.Ki*err)
	out += p.integral
	if p.hasPrev {
		// derivative on measurement, a set point change causes no kick.
		out += p.clamp(-p.Kd * (measured - p.prev))
	}
	p.prev, p.hasPrev = measured, true
	return p.clamp(out)
}

// Reset clears accumulated state.
func (p *PID) Reset() {
	p.integral, p.prev, p.hasPrev = 0, 0, false
}

func (p *PID) clamp(v float64) float64 {
	switch {
	case v > p.Limit:
		return p.Limit
	case v < -p.Limit:
		return -p.Limit
	}
	return v
}
