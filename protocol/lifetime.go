package protocol

import (
	"math"
	"time"
)

type LifetimeBase uint8

const (
	Base50ms LifetimeBase = iota
	Base1s
	Base10s
	Base100s
)

var lifetimeUnits = [4]time.Duration{
	50 * time.Millisecond,
	time.Second,
	10 * time.Second,
	100 * time.Second,
}

func (b LifetimeBase) Unit() time.Duration {
	return lifetimeUnits[b&0x03]
}

const maxLifetimeMultiplier = 63

// Lifetime is the 8 bit packet lifetime: a 6 bit multiplier and a 2 bit base.
type Lifetime uint8

// NewLifetime encodes d choosing the smallest base that can represent it. Durations
// beyond 63 × 100 s saturate.
func NewLifetime(d time.Duration) Lifetime {
	if d <= 0 {
		return 0
	}
	var base LifetimeBase
	switch {
	case d >= 630*time.Second:
		base = Base100s
	case d >= 63*time.Second:
		base = Base10s
	case d >= 3150*time.Millisecond:
		base = Base1s
	default:
		base = Base50ms
	}
	mult := math.Round(float64(d) / float64(base.Unit()))
	mult = min(mult, maxLifetimeMultiplier)
	return Lifetime(uint8(mult)<<2 | uint8(base))
}

func (l Lifetime) Base() LifetimeBase {
	return LifetimeBase(l & 0x03)
}

func (l Lifetime) Multiplier() uint8 {
	return uint8(l) >> 2
}

func (l Lifetime) Duration() time.Duration {
	return time.Duration(l.Multiplier()) * l.Base().Unit()
}

// Equal compares decoded durations with a tolerance of half the smallest unit.
func (l Lifetime) Equal(o Lifetime) bool {
	d := l.Duration() - o.Duration()
	if d < 0 {
		d = -d
	}
	return d < 25*time.Millisecond
}

// Reduce subtracts the time a packet spent queued. It returns false once nothing remains.
func (l Lifetime) Reduce(queued time.Duration) (Lifetime, bool) {
	remaining := l.Duration() - queued
	if remaining <= 0 {
		return 0, false
	}
	return NewLifetime(remaining), true
}

func (l Lifetime) String() string {
	return l.Duration().String()
}
