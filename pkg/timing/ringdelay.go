package timing

import (
	"log/slog"
	"time"
)

// RingDelayMeter accumulates the round-trip delay measurement for one
// port: each Observe call takes one MST transmission timestamp and the
// corresponding loopback-returned MST reception, samples accumulate over
// several calls to filter jitter, and a stable delay is reported once the
// sample spread falls under a tolerance. The phase sequencer holds a meter
// but does not call Observe.
type RingDelayMeter struct {
	logger    *slog.Logger
	samples   []time.Duration
	maxSample int
	tolerance time.Duration
}

func NewRingDelayMeter(maxSamples int, tolerance time.Duration, logger *slog.Logger) *RingDelayMeter {
	if logger == nil {
		logger = slog.Default()
	}
	return &RingDelayMeter{
		maxSample: maxSamples,
		tolerance: tolerance,
		logger:    logger.With("service", "[RINGDELAY]"),
	}
}

// Observe records one measured round trip (MST send time subtracted from
// loopback receive time). Returns (delay, true) once the accumulated
// samples converge within tolerance; (0, false) otherwise, meaning the
// caller should keep sampling next cycle.
func (m *RingDelayMeter) Observe(sent, received time.Time) (time.Duration, bool) {
	rtt := received.Sub(sent)
	m.samples = append(m.samples, rtt)
	if len(m.samples) > m.maxSample {
		m.samples = m.samples[len(m.samples)-m.maxSample:]
	}
	if len(m.samples) < m.maxSample {
		return 0, false
	}
	min, max := m.samples[0], m.samples[0]
	var sum time.Duration
	for _, s := range m.samples {
		if s < min {
			min = s
		}
		if s > max {
			max = s
		}
		sum += s
	}
	if max-min > m.tolerance {
		m.logger.Debug("ring delay samples not yet converged", "spread", max-min)
		return 0, false
	}
	return sum / time.Duration(len(m.samples)), true
}

func (m *RingDelayMeter) Reset() {
	m.samples = m.samples[:0]
}
