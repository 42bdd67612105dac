package controller

import (
	"sync"
	"time"
)

// Timer is the handle returned by a Scheduler.
type Timer interface {
	Stop() bool
}

// Scheduler runs f once after d. The production scheduler is time.AfterFunc.
type Scheduler interface {
	AfterFunc(d time.Duration, f func()) Timer
}

type realScheduler struct{}

func (realScheduler) AfterFunc(d time.Duration, f func()) Timer {
	return time.AfterFunc(d, f)
}

// RealScheduler returns the wall-clock scheduler.
func RealScheduler() Scheduler { return realScheduler{} }

// State of a Debouncer.
type State int

const (
	Idle State = iota
	Pending
)

func (s State) String() string {
	if s == Pending {
		return "pending"
	}
	return "idle"
}

// Debouncer collapses bursts of triggers into one call of action, run once
// the quiet period has passed since the last trigger.
//
// Idle/Pending --Trigger--> Pending(new timer), stopping the old one.
// Pending --timer fires--> Idle, after action returns.
//
// A callback whose timer was replaced in the meantime is a no-op. Stop is
// final: later triggers are ignored.
type Debouncer struct {
	mu      sync.Mutex
	sched   Scheduler
	wait    time.Duration
	action  func()
	timer   Timer
	gen     uint64
	stopped bool
}

// NewDebouncer builds a debouncer. A nil scheduler means wall-clock time.
func NewDebouncer(wait time.Duration, sched Scheduler, action func()) *Debouncer {
	if sched == nil {
		sched = RealScheduler()
	}
	return &Debouncer{sched: sched, wait: wait, action: action}
}

// Trigger (re)starts the quiet period.
func (d *Debouncer) Trigger() {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.stopped {
		return
	}
	if d.timer != nil {
		d.timer.Stop()
	}
	d.gen++
	gen := d.gen
	d.timer = d.sched.AfterFunc(d.wait, func() { d.fire(gen) })
}

func (d *Debouncer) fire(gen uint64) {
	d.mu.Lock()
	if gen != d.gen || d.timer == nil {
		d.mu.Unlock()
		return
	}
	d.mu.Unlock()

	d.action()

	d.mu.Lock()
	if gen == d.gen {
		d.timer = nil
	}
	d.mu.Unlock()
}

// Stop cancels a pending call and returns to Idle for good.
func (d *Debouncer) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.stopped = true
	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
	d.gen++
}

// State reports Idle or Pending.
func (d *Debouncer) State() State {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.timer != nil {
		return Pending
	}
	return Idle
}
