package secretcache

import (
	"math"
	"time"
)

// Unit names a time unit accepted by SetDefaultTTL.
type Unit string

const (
	Milliseconds Unit = "ms"
	Seconds      Unit = "s"
	Minutes      Unit = "min"
	Hours        Unit = "h"
)

// ParseUnit maps a unit name from a max-age request to a Unit. The empty
// string means Minutes, the unit of vaultSecretCacheDuration.
func ParseUnit(s string) (Unit, bool) {
	switch Unit(s) {
	case "":
		return Minutes, true
	case Milliseconds, Seconds, Minutes, Hours:
		return Unit(s), true
	}
	return "", false
}

// ToDuration converts amount of unit into a time.Duration.
// Non-positive, NaN or infinite amounts and unknown units yield 0.
func ToDuration(amount float64, unit Unit) time.Duration {
	if math.IsNaN(amount) || math.IsInf(amount, 0) || amount <= 0 {
		return 0
	}

	var base time.Duration
	switch unit {
	case Milliseconds:
		base = time.Millisecond
	case Seconds:
		base = time.Second
	case Minutes:
		base = time.Minute
	case Hours:
		base = time.Hour
	default:
		return 0
	}

	return time.Duration(amount * float64(base))
}
