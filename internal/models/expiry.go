package models

// Phase is the observable expiration phase of a message at a point in time.
type Phase int

const (
	// PhasePersistent never expires.
	PhasePersistent Phase = iota
	// PhasePendingArm is a secret message waiting for its first non-sender
	// observation.
	PhasePendingArm
	// PhaseArmed has a deadline in the future.
	PhaseArmed
	// PhaseExpired is past its deadline: never rendered as live content,
	// deleted on next observation.
	PhaseExpired
)

func (p Phase) String() string {
	switch p {
	case PhasePersistent:
		return "persistent"
	case PhasePendingArm:
		return "pending-arm"
	case PhaseArmed:
		return "armed"
	case PhaseExpired:
		return "expired"
	}
	return "unknown"
}

// Expiry is the expiration state of a message, a closed set of variants:
// not expiring, pending arm, or armed with a fixed deadline. The zero value
// is NotExpiring. Arming is monotonic: an armed value ignores later Arm
// calls, so a deadline can never be cleared or extended.
type Expiry struct {
	secret         bool
	deadlineMillis int64
}

func NotExpiring() Expiry { return Expiry{} }

func PendingArm() Expiry { return Expiry{secret: true} }

func ArmedUntil(deadlineMillis int64) Expiry {
	return Expiry{secret: true, deadlineMillis: deadlineMillis}
}

// Arm returns the armed state, or the receiver unchanged if a deadline was
// already set or the value never expires.
func (e Expiry) Arm(deadlineMillis int64) Expiry {
	if !e.secret || e.deadlineMillis > 0 {
		return e
	}
	return ArmedUntil(deadlineMillis)
}

// Deadline reports the expiration instant, if armed.
func (e Expiry) Deadline() (int64, bool) {
	return e.deadlineMillis, e.deadlineMillis > 0
}

// Phase evaluates the state at nowMillis.
func (e Expiry) Phase(nowMillis int64) Phase {
	switch {
	case e.deadlineMillis > 0 && nowMillis >= e.deadlineMillis:
		return PhaseExpired
	case e.deadlineMillis > 0:
		return PhaseArmed
	case e.secret:
		return PhasePendingArm
	default:
		return PhasePersistent
	}
}

// RemainingMillis reports how long until expiration, zero when not armed or
// already past the deadline.
func (e Expiry) RemainingMillis(nowMillis int64) int64 {
	if e.deadlineMillis == 0 || nowMillis >= e.deadlineMillis {
		return 0
	}
	return e.deadlineMillis - nowMillis
}
