package gwconn

import (
	"math"
	"math/rand"
	"time"
)

// ReconnectPolicy controls automatic reconnection after a dropped
// connection. The delay before attempt N (zero-based retry counter) is
//
//	min(MaxDelay, BaseDelay * Multiplier^retry)
//
// with a uniform ±JitterFraction applied afterwards so a fleet of
// clients does not redial in lockstep. The retry counter resets to zero
// once a connection survives a full heartbeat interval.
type ReconnectPolicy struct {
	BaseDelay      time.Duration
	MaxDelay       time.Duration
	Multiplier     float64
	JitterFraction float64

	// MaxRetries caps consecutive failed attempts before the manager
	// gives up and enters StateFailed. 0 means retry forever.
	MaxRetries int
}

// Delay returns the backoff delay for the given zero-based retry count.
func (p ReconnectPolicy) Delay(retry int) time.Duration {
	if retry < 0 {
		retry = 0
	}
	d := float64(p.BaseDelay) * math.Pow(p.Multiplier, float64(retry))
	if p.MaxDelay > 0 && d > float64(p.MaxDelay) {
		d = float64(p.MaxDelay)
	}
	if p.JitterFraction > 0 {
		d *= 1 + p.JitterFraction*(2*rand.Float64()-1)
	}
	if d < 0 {
		return 0
	}
	return time.Duration(d)
}

func (p ReconnectPolicy) withDefaults() ReconnectPolicy {
	if p.BaseDelay <= 0 {
		p.BaseDelay = time.Second
	}
	if p.MaxDelay <= 0 {
		p.MaxDelay = 30 * time.Second
	}
	if p.Multiplier <= 0 {
		p.Multiplier = 2
	}
	return p
}
