// Package axis maps raw hardware positions to logically zeroed, tool-corrected
// positions. Offset requests are queued and resolved against the next sample,
// never against a remembered one.
package axis

import (
	"errors"
	"math"
	"strings"
)

type Axis int

const (
	X Axis = iota
	Z
	A
)

var axes = []string{
	X: "x",
	Z: "z",
	A: "a",
}

func (a Axis) String() string {
	return axes[a]
}

var ErrUnknownAxis = errors.New("unknown axis")

func Parse(s string) (Axis, error) {
	for i, name := range axes {
		if strings.EqualFold(s, name) {
			return Axis(i), nil
		}
	}
	return X, ErrUnknownAxis
}

// Sample is one hardware poll. A is in revolutions.
type Sample struct {
	X              float64
	Z              float64
	A              float64
	SpeedRPS       float64
	ProgramRunning bool
	ErrorState     bool
}

// ToolOffset is the linear correction of the active tool.
type ToolOffset struct {
	X float64 `json:"x"`
	Z float64 `json:"z"`
}

// Position is the operator-visible position. A is in degrees in [0, 360).
type Position struct {
	X float64 `json:"x"`
	Z float64 `json:"z"`
	A float64 `json:"a"`
}

type request struct {
	pending bool
	value   float64
}

// Tracker holds the per-axis offsets. It is not safe for concurrent use; the
// control loop owns it.
type Tracker struct {
	offsets [3]float64
	set     [3]request
	zero    bool
}

func NewTracker() *Tracker {
	return &Tracker{}
}

// Zero asks for X and Z to be zeroed on the next sample.
func (t *Tracker) Zero() {
	t.zero = true
}

// ZeroPending reports whether a zero request waits for a sample.
func (t *Tracker) ZeroPending() bool {
	return t.zero
}

// SetValue asks for axis a to read v after the next sample. For A, v is in degrees.
func (t *Tracker) SetValue(a Axis, v float64) error {
	if a < X || a > A {
		return ErrUnknownAxis
	}
	t.set[a] = request{pending: true, value: v}
	return nil
}

// Pending reports whether a set-value request waits on axis a.
func (t *Tracker) Pending(a Axis) bool {
	return t.set[a].pending
}

func (t *Tracker) Offset(a Axis) float64 {
	return t.offsets[a]
}

// SetOffset overwrites the offset directly, for restoring a saved session.
func (t *Tracker) SetOffset(a Axis, v float64) error {
	if a < X || a > A {
		return ErrUnknownAxis
	}
	t.offsets[a] = v
	return nil
}

// Apply resolves pending requests with raw, clears them, and returns the
// logical position for raw.
func (t *Tracker) Apply(raw Sample, tool ToolOffset) Position {
	if t.zero {
		t.zero = false
		t.offsets[X] = raw.X - tool.X
		t.offsets[Z] = raw.Z - tool.Z
	}
	if r := t.set[X]; r.pending {
		t.offsets[X] = raw.X - r.value
		t.set[X] = request{}
	}
	if r := t.set[Z]; r.pending {
		t.offsets[Z] = raw.Z - r.value
		t.set[Z] = request{}
	}
	if r := t.set[A]; r.pending {
		t.offsets[A] = raw.A - frac(r.value/360)
		t.set[A] = request{}
	}
	return t.Logical(raw, tool)
}

// Logical computes the logical position for raw with the current offsets.
func (t *Tracker) Logical(raw Sample, tool ToolOffset) Position {
	return Position{
		X: raw.X - t.offsets[X] + tool.X,
		Z: raw.Z - t.offsets[Z] + tool.Z,
		A: math.Abs(frac(raw.A-t.offsets[A]) * 360),
	}
}

// frac keeps the sign of v, like a truncating modulo by one.
func frac(v float64) float64 {
	return math.Mod(v, 1)
}

// Spindle smooths the spindle rate with an exponential filter.
type Spindle struct {
	RPM      float64
	Smoothed float64
}

// Update takes a rate in revolutions per second. The newest sample weighs 0.2.
func (s *Spindle) Update(rps float64) {
	s.RPM = math.Abs(rps * 60)
	s.Smoothed = s.Smoothed*0.8 + s.RPM*0.2
}
