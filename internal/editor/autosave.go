// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

package editor

import "time"

// DefaultAutoSaveDelay is the debounce window between the last edit and the
// silent background save.
const DefaultAutoSaveDelay = 3 * time.Second

// Timer is a cancellable pending callback.
type Timer interface {
	// Stop cancels the timer. It reports whether the call stopped the
	// timer before it fired.
	Stop() bool
}

// Clock abstracts time so debounce and idle tracking can be driven by tests.
type Clock interface {
	Now() time.Time
	AfterFunc(d time.Duration, f func()) Timer
}

// SystemClock is the wall-clock Clock backed by time.AfterFunc.
type SystemClock struct{}

// Now returns the current time.
func (SystemClock) Now() time.Time { return time.Now() }

// AfterFunc runs f in its own goroutine after d.
func (SystemClock) AfterFunc(d time.Duration, f func()) Timer {
	return time.AfterFunc(d, f)
}

// debouncer keeps at most one pending autosave. Every schedule bumps the
// generation, so a callback that raced with a newer schedule or a cancel
// can tell it is stale and do nothing. Callers serialize access.
type debouncer struct {
	clock Clock
	delay time.Duration
	timer Timer
	gen   uint64
}

func newDebouncer(clock Clock, delay time.Duration) *debouncer {
	return &debouncer{clock: clock, delay: delay}
}

// schedule replaces any pending timer with one that calls fire(gen).
func (d *debouncer) schedule(fire func(gen uint64)) {
	if d.timer != nil {
		d.timer.Stop()
	}
	d.gen++
	gen := d.gen
	d.timer = d.clock.AfterFunc(d.delay, func() { fire(gen) })
}

// cancel stops the pending timer. It reports whether one was pending.
func (d *debouncer) cancel() bool {
	pending := false
	if d.timer != nil {
		pending = d.timer.Stop()
		d.timer = nil
	}
	d.gen++
	return pending
}

// current reports whether gen is still the live generation, and clears the
// timer reference when it is.
func (d *debouncer) current(gen uint64) bool {
	if gen != d.gen {
		return false
	}
	d.timer = nil
	return true
}

// pending reports whether a timer is scheduled and not yet fired.
func (d *debouncer) pending() bool {
	return d.timer != nil
}
