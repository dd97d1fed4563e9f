// Package signal picks which lane gets the green light and for how long.
//
// Every decision is computed from a single frame's counts. There is no
// memory between frames, so the green lane can change on every frame.
package signal

import (
	"fmt"
	"time"

	"github.com/teslashibe/go-trafficlight/pkg/lane"
)

// Policy maps a vehicle count to a green duration with three fixed tiers.
// It is a plain value; pass it by value and never mutate a shared copy.
type Policy struct {
	MediumThreshold int `yaml:"medium_threshold" json:"medium_threshold"` // counts at or above this get MediumGreen
	HighThreshold   int `yaml:"high_threshold" json:"high_threshold"`     // counts at or above this get HighGreen

	LowGreen    time.Duration `yaml:"low_green" json:"low_green"`
	MediumGreen time.Duration `yaml:"medium_green" json:"medium_green"`
	HighGreen   time.Duration `yaml:"high_green" json:"high_green"`
}

// DefaultPolicy returns the 10/20/30 second table with breaks at 5 and 10 vehicles
func DefaultPolicy() Policy {
	return Policy{
		MediumThreshold: 5,
		HighThreshold:   10,
		LowGreen:        10 * time.Second,
		MediumGreen:     20 * time.Second,
		HighGreen:       30 * time.Second,
	}
}

// Validate checks that thresholds are ordered and durations positive.
// Returns a list of validation errors, or nil if valid.
func (p Policy) Validate() []string {
	var errors []string
	if p.MediumThreshold < 0 {
		errors = append(errors, "policy.medium_threshold must not be negative")
	}
	if p.HighThreshold < p.MediumThreshold {
		errors = append(errors, "policy.high_threshold must be >= medium_threshold")
	}
	if p.LowGreen <= 0 || p.MediumGreen <= 0 || p.HighGreen <= 0 {
		errors = append(errors, "policy green durations must be positive")
	}
	return errors
}

// GreenTime returns the green duration for n vehicles
func (p Policy) GreenTime(n int) time.Duration {
	switch {
	case n < p.MediumThreshold:
		return p.LowGreen
	case n < p.HighThreshold:
		return p.MediumGreen
	default:
		return p.HighGreen
	}
}

// Decision is the suggested signal for one frame
type Decision struct {
	GreenLane lane.Lane     `json:"green_lane"`
	GreenTime time.Duration `json:"green_time"`
	Counts    lane.Counts   `json:"counts"`
}

// Seconds returns the green time in whole seconds
func (d Decision) Seconds() int {
	return int(d.GreenTime / time.Second)
}

// String renders the decision as shown on the overlay
func (d Decision) String() string {
	return fmt.Sprintf("GREEN: %s for %d sec", d.GreenLane, d.Seconds())
}

// Decide gives the green to the lane with more vehicles.
// Equal counts go to lane 2.
func (p Policy) Decide(c lane.Counts) Decision {
	green := lane.Lane2
	if c.Lane1 > c.Lane2 {
		green = lane.Lane1
	}
	return Decision{
		GreenLane: green,
		GreenTime: p.GreenTime(c.Of(green)),
		Counts:    c,
	}
}
