package chargepoint

import "time"

// Meter is the energy register of the connector, in Wh. It advances at a constant
// power while running. Not safe for concurrent use; the session queue owns it.
type Meter struct {
	power   int
	value   float64
	since   time.Time
	running bool
}

func NewMeter(power int) *Meter {
	return &Meter{power: power}
}

func (m *Meter) Start(now time.Time) int {
	if !m.running {
		m.running = true
		m.since = now
	}
	return m.Read(now)
}

func (m *Meter) Stop(now time.Time) int {
	if m.running {
		m.value += m.delta(now)
		m.running = false
	}
	return int(m.value)
}

func (m *Meter) Read(now time.Time) int {
	if !m.running {
		return int(m.value)
	}
	return int(m.value + m.delta(now))
}

func (m *Meter) delta(now time.Time) float64 {
	elapsed := now.Sub(m.since)
	if elapsed < 0 {
		return 0
	}
	return float64(m.power) * elapsed.Hours()
}
