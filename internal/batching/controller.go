// Package batching
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Adaptive input batching. A Controller decides how many packet-in events a
// worker accumulates before it marks one as the batch flush. After each
// batch it scores throughput as events per microsecond, smooths the score
// with the history of that batch size, and hill-climbs the target by one step
// at a time: up while scores improve and reads come back full, down when they
// improve without congestion or when a batch exceeds the delay ceiling. A
// worse score reverses the trend. The controller oscillates around a local
// optimum; it has no fixed point.
//
// A Controller belongs to a single worker and is not safe for concurrent use.

package batching

import (
	"fmt"
	"time"
)

// Config holds the controller constants.
type Config struct {
	// Step is the quantum of the batch target.
	Step int
	// MaxSteps bounds the target at MaxSteps*Step.
	MaxSteps int
	// HistoryWeight is the percentage given to the remembered score of a
	// batch size when blending in a new one.
	HistoryWeight int
	// MaxDelay is the batch duration beyond which the target shrinks.
	MaxDelay time.Duration
	// Initial is the starting target.
	Initial int
}

// DefaultConfig returns the stock constants.
func DefaultConfig() Config {
	return Config{
		Step:          10,
		MaxSteps:      1000,
		HistoryWeight: 80,
		MaxDelay:      1000 * time.Microsecond,
		Initial:       10,
	}
}

// Validate reports the first invalid field.
func (c Config) Validate() error {
	switch {
	case c.Step <= 0:
		return fmt.Errorf("batching step must be positive, got %d", c.Step)
	case c.MaxSteps <= 0:
		return fmt.Errorf("batching max steps must be positive, got %d", c.MaxSteps)
	case c.HistoryWeight < 0 || c.HistoryWeight > 100:
		return fmt.Errorf("batching history weight must be within [0,100], got %d", c.HistoryWeight)
	case c.MaxDelay <= 0:
		return fmt.Errorf("batching max delay must be positive, got %s", c.MaxDelay)
	case c.Initial < 0:
		return fmt.Errorf("batching initial target must not be negative, got %d", c.Initial)
	}
	return nil
}

// Controller is the per-worker batching state.
type Controller struct {
	cfg Config
	now func() time.Time

	target int
	max    int

	batched    int
	begin      time.Time
	lastScore  float64
	increasing bool
	congested  bool
	history    []float64

	voidReads int
}

// New returns a controller. cfg is assumed valid.
func New(cfg Config) *Controller {
	c := &Controller{
		cfg:        cfg,
		now:        time.Now,
		increasing: true,
		history:    make([]float64, cfg.MaxSteps+1),
	}
	c.target = c.clamp(cfg.Initial - cfg.Initial%cfg.Step)
	c.max = c.target
	return c
}

// WithClock replaces the time source. It is meant for tests.
func (c *Controller) WithClock(now func() time.Time) *Controller {
	c.now = now
	return c
}

func (c *Controller) clamp(target int) int {
	if target < c.cfg.Step {
		return c.cfg.Step
	}
	if top := c.cfg.MaxSteps * c.cfg.Step; target > top {
		return top
	}
	return target
}

// Due reports whether the next packet-in closes the current batch.
func (c *Controller) Due() bool { return c.batched >= c.target }

// Add counts one packet-in into the current batch.
func (c *Controller) Add() {
	c.batched++
	if c.batched == 1 {
		c.begin = c.now()
	}
}

// Complete closes the current batch and adapts the target to its throughput.
func (c *Controller) Complete() {
	c.Record(c.batched, c.now().Sub(c.begin))
}

// Record applies one decision step for a batch of n events that took elapsed.
func (c *Controller) Record(n int, elapsed time.Duration) {
	us := elapsed.Microseconds()
	if us < 1 {
		us = 1
	}
	score := float64(n) / float64(us)

	idx := c.target / c.cfg.Step
	if idx >= len(c.history) {
		idx = len(c.history) - 1
	}
	if h := c.history[idx]; h != 0 {
		w := float64(c.cfg.HistoryWeight)
		score = (score*(100-w) + h*w) / 100
	}
	c.history[idx] = score

	switch {
	case elapsed > c.cfg.MaxDelay:
		c.increasing = false
		c.target = c.clamp(c.target - c.cfg.Step)
	case score > c.lastScore:
		if c.increasing && c.congested {
			c.target = c.clamp(c.target + c.cfg.Step)
			if c.target > c.max {
				c.max = c.target
			}
		} else {
			c.target = c.clamp(c.target - c.cfg.Step)
		}
	default:
		c.increasing = !c.increasing
	}

	c.lastScore = score
	c.congested = false
	c.batched = 0
}

// Congested records that a read filled the whole buffer.
func (c *Controller) Congested() { c.congested = true }

// Active records a read that returned data.
func (c *Controller) Active() { c.voidReads = 0 }

// Idle records a read that returned nothing. Once more than poolSize
// consecutive reads came back empty it resets the partial batch and reports
// that a flush should be forced.
func (c *Controller) Idle(poolSize int) bool {
	c.voidReads++
	if c.voidReads <= poolSize {
		return false
	}
	c.voidReads = 0
	c.batched = 0
	c.increasing = false
	c.congested = false
	return true
}

// Target returns the current batch target.
func (c *Controller) Target() int { return c.target }

// Max returns the highest target reached.
func (c *Controller) Max() int { return c.max }

// Batched returns the number of events in the open batch.
func (c *Controller) Batched() int { return c.batched }

// Increasing reports the current trend.
func (c *Controller) Increasing() bool { return c.increasing }
