// Package jog turns held jog buttons into ramped, capped velocity commands.
//
// Sign convention: up drives -X, down +X, left -Z, right +Z.
package jog

import (
	"errors"
	"math"
	"strings"
	"time"

	"github.com/jt05610/lathe/axis"
)

type Direction int

const (
	Up Direction = iota
	Down
	Left
	Right
	nDirections
)

var directions = [nDirections]string{
	Up:    "up",
	Down:  "down",
	Left:  "left",
	Right: "right",
}

func (d Direction) String() string {
	if d < 0 || d >= nDirections {
		return "unknown"
	}
	return directions[d]
}

func (d Direction) Valid() bool {
	return d >= 0 && d < nDirections
}

var ErrUnknownDirection = errors.New("unknown jog direction")

func ParseDirection(s string) (Direction, error) {
	for i, name := range directions {
		if strings.EqualFold(s, name) {
			return Direction(i), nil
		}
	}
	return Up, ErrUnknownDirection
}

func (d Direction) Axis() axis.Axis {
	if d == Up || d == Down {
		return axis.X
	}
	return axis.Z
}

func (d Direction) Sign() float64 {
	if d == Up || d == Left {
		return -1
	}
	return 1
}

// Velocity is the unsigned ramp: zero when heldSince is the zero time,
// otherwise min(elapsed*rate, cap).
func Velocity(heldSince, now time.Time, rate, cap float64) float64 {
	if heldSince.IsZero() {
		return 0
	}
	return math.Min(now.Sub(heldSince).Seconds()*rate, cap)
}

// Ramp tunes the controller. Units are length per second.
type Ramp struct {
	Rate float64 `yaml:"rate"`
	CapX float64 `yaml:"capX"`
	CapZ float64 `yaml:"capZ"`
}

var DefaultRamp = Ramp{Rate: 3, CapX: 3, CapZ: 6}

func (r Ramp) Cap(a axis.Axis) float64 {
	if a == axis.Z {
		return r.CapZ
	}
	return r.CapX
}

// Command is a signed velocity for one axis.
type Command struct {
	Axis     axis.Axis
	Velocity float64
}

// Controller tracks held buttons and releases waiting for their stop command.
// The control loop owns it.
type Controller struct {
	ramp  Ramp
	held  [nDirections]time.Time
	stops int
}

func NewController(r Ramp) *Controller {
	return &Controller{ramp: r}
}

// Press starts a hold. Repeated presses keep the first timestamp so key
// auto-repeat does not restart the ramp.
func (c *Controller) Press(d Direction, now time.Time) {
	if !c.held[d].IsZero() {
		return
	}
	c.held[d] = now
}

// Release ends a hold and schedules one stop command.
func (c *Controller) Release(d Direction) {
	c.held[d] = time.Time{}
	c.stops++
}

func (c *Controller) Held() bool {
	for _, t := range c.held {
		if !t.IsZero() {
			return true
		}
	}
	return false
}

func (c *Controller) HeldSince(d Direction) time.Time {
	return c.held[d]
}

// Commands returns one signed velocity per held direction, in direction order.
func (c *Controller) Commands(now time.Time) []Command {
	var ret []Command
	for i, since := range c.held {
		if since.IsZero() {
			continue
		}
		d := Direction(i)
		v := Velocity(since, now, c.ramp.Rate, c.ramp.Cap(d.Axis()))
		ret = append(ret, Command{Axis: d.Axis(), Velocity: d.Sign() * v})
	}
	return ret
}

// TakeStops returns the number of stop commands owed, one per release since
// the last call, and clears every hold once any are owed.
func (c *Controller) TakeStops() int {
	n := c.stops
	if n == 0 {
		return 0
	}
	c.stops = 0
	c.held = [nDirections]time.Time{}
	return n
}

// Reset drops every hold and every stop owed.
func (c *Controller) Reset() {
	c.held = [nDirections]time.Time{}
	c.stops = 0
}
