// Package timer implements the viewer's meditation countdown.
//
// The countdown is deadline based: while running only the deadline is stored
// and the remaining time is derived from the supplied clock reading, so no
// goroutine ticks in the background.
package timer

import (
	"errors"
	"time"
)

const (
	DefaultDuration = 30 * time.Minute
	MaxMinutes      = 999
	MaxSeconds      = 59
)

var (
	ErrRunning      = errors.New("timer is running")
	ErrInvalidValue = errors.New("minutes must be 0-999 and seconds 0-59")
)

// Countdown is not safe for concurrent use; callers guard it with the session
// lock that owns it.
type Countdown struct {
	remaining time.Duration
	deadline  time.Time
	running   bool
	muted     bool
	expired   bool
}

func New() *Countdown {
	return &Countdown{remaining: DefaultDuration}
}

// Snapshot is the externally visible timer state.
type Snapshot struct {
	Minutes int  `json:"minutes"`
	Seconds int  `json:"seconds"`
	Running bool `json:"running"`
	Muted   bool `json:"muted"`
	// Bell is set once the countdown reaches zero and the timer is not muted.
	Bell bool `json:"bell"`
}

// Set changes the duration. It is rejected while running.
func (c *Countdown) Set(minutes, seconds int) error {
	if c.running {
		return ErrRunning
	}
	if minutes < 0 || minutes > MaxMinutes || seconds < 0 || seconds > MaxSeconds {
		return ErrInvalidValue
	}
	c.remaining = time.Duration(minutes)*time.Minute + time.Duration(seconds)*time.Second
	c.expired = false
	return nil
}

// Toggle starts or pauses the countdown. Starting at zero is a no-op.
func (c *Countdown) Toggle(now time.Time) {
	c.advance(now)
	if c.running {
		c.remaining = ceilSecond(c.deadline.Sub(now))
		c.running = false
		return
	}
	if c.remaining <= 0 {
		return
	}
	c.expired = false
	c.deadline = now.Add(c.remaining)
	c.running = true
}

// Reset stops the countdown and restores the default duration.
func (c *Countdown) Reset() {
	c.remaining = DefaultDuration
	c.running = false
	c.expired = false
	c.deadline = time.Time{}
}

func (c *Countdown) ToggleMute() {
	c.muted = !c.muted
}

// Remaining returns the time left at now, rounded up to whole seconds.
func (c *Countdown) Remaining(now time.Time) time.Duration {
	c.advance(now)
	if !c.running {
		return c.remaining
	}
	return ceilSecond(c.deadline.Sub(now))
}

func ceilSecond(d time.Duration) time.Duration {
	return ((d + time.Second - 1) / time.Second) * time.Second
}

// Snapshot reports the state at now.
func (c *Countdown) Snapshot(now time.Time) Snapshot {
	left := c.Remaining(now)
	secs := int(left / time.Second)
	return Snapshot{
		Minutes: secs / 60,
		Seconds: secs % 60,
		Running: c.running,
		Muted:   c.muted,
		Bell:    c.expired && !c.muted,
	}
}

// advance stops a running countdown whose deadline has passed.
func (c *Countdown) advance(now time.Time) {
	if c.running && !now.Before(c.deadline) {
		c.running = false
		c.remaining = 0
		c.expired = true
	}
}
