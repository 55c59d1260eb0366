package main

import (
	"time"
)

var (
	_ Clocker       = (*Clock)(nil)     // ensure Clock implements Clocker.
	_ TickerClocker = (*TickClock)(nil) // ensure TickClock implements TickerClocker.
)

// Clocker is an interface for getting current real time.
type Clocker interface {
	Now() time.Time
}

// TickerClocker provides the current time and a ticker. It
// satisfies zapcore.Clock so the logger can share the app clock.
type TickerClocker interface {
	Clocker
	NewTicker(time.Duration) *time.Ticker
}

// Clock implements the Clocker interface. Book timestamps are
// always recorded in UTC and truncated to microseconds so they
// survive a round trip through the relational store.
type Clock struct {
	precision time.Duration
}

// NewClock returns a ready to use Clock.
func NewClock() *Clock {
	return &Clock{precision: time.Microsecond}
}

// Now provides current clock time.
func (ck *Clock) Now() time.Time {
	return time.Now().UTC().Truncate(ck.precision)
}

// TickClock wraps a Clocker with ticker support.
type TickClock struct {
	clock Clocker
}

func NewTickClock(ck Clocker) *TickClock {
	return &TickClock{ck}
}

func (tc *TickClock) Now() time.Time {
	return tc.clock.Now()
}

func (tc *TickClock) NewTicker(d time.Duration) *time.Ticker {
	return time.NewTicker(d)
}
