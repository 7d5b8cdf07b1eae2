// Package feed holds the feed/direction decision table: which steppers and
// leadscrew pitches are engaged, and in which sense, for every operator
// selection.
package feed

import (
	"errors"
	"strings"
)

type Mode int

const (
	Longitudinal Mode = iota
	Cross
	FrontCompound
	BackCompound
	nModes
)

var modes = [nModes]string{
	Longitudinal:  "longitudinal",
	Cross:         "cross",
	FrontCompound: "front-compound",
	BackCompound:  "back-compound",
}

func (m Mode) String() string {
	if m < 0 || m >= nModes {
		return "unknown"
	}
	return modes[m]
}

func (m Mode) Valid() bool {
	return m >= 0 && m < nModes
}

func (m Mode) MarshalText() ([]byte, error) {
	return []byte(m.String()), nil
}

func (m *Mode) UnmarshalText(b []byte) error {
	v, err := ParseMode(string(b))
	if err != nil {
		return err
	}
	*m = v
	return nil
}

type Direction int

const (
	Forward Direction = iota
	Reverse
	Hold
	Idle
	nDirections
)

var directions = [nDirections]string{
	Forward: "forward",
	Reverse: "reverse",
	Hold:    "hold",
	Idle:    "idle",
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

func (d Direction) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

func (d *Direction) UnmarshalText(b []byte) error {
	v, err := ParseDirection(string(b))
	if err != nil {
		return err
	}
	*d = v
	return nil
}

var ErrUnknownMode = errors.New("unknown feed mode")
var ErrUnknownDirection = errors.New("unknown direction mode")

func ParseMode(s string) (Mode, error) {
	for i, name := range modes {
		if strings.EqualFold(s, name) {
			return Mode(i), nil
		}
	}
	return Longitudinal, ErrUnknownMode
}

func ParseDirection(s string) (Direction, error) {
	for i, name := range directions {
		if strings.EqualFold(s, name) {
			return Direction(i), nil
		}
	}
	return Idle, ErrUnknownDirection
}

func Modes() []Mode {
	return []Mode{Longitudinal, Cross, FrontCompound, BackCompound}
}

func Directions() []Direction {
	return []Direction{Forward, Reverse, Hold, Idle}
}

// Flags is one cell of the table.
type Flags struct {
	StepperZ bool `json:"stepperZ"`
	StepperX bool `json:"stepperX"`
	PitchZ   bool `json:"pitchZ"`
	PitchX   bool `json:"pitchX"`
	ForwardZ bool `json:"forwardZ"`
	ForwardX bool `json:"forwardX"`
}

// table is authored data. Every one of the sixteen cells is written out; the
// array bounds keep a stray mode or direction from compiling.
var table = [nModes][nDirections]Flags{
	Longitudinal: {
		Forward: {StepperZ: true, StepperX: false, PitchZ: true, PitchX: false, ForwardZ: true, ForwardX: true},
		Reverse: {StepperZ: true, StepperX: false, PitchZ: true, PitchX: false, ForwardZ: false, ForwardX: false},
		Hold:    {StepperZ: false, StepperX: false, PitchZ: true, PitchX: false, ForwardZ: true, ForwardX: true},
		Idle:    {StepperZ: false, StepperX: false, PitchZ: false, PitchX: false, ForwardZ: true, ForwardX: true},
	},
	Cross: {
		Forward: {StepperZ: false, StepperX: true, PitchZ: false, PitchX: true, ForwardZ: true, ForwardX: false},
		Reverse: {StepperZ: false, StepperX: true, PitchZ: false, PitchX: true, ForwardZ: false, ForwardX: true},
		Hold:    {StepperZ: false, StepperX: false, PitchZ: false, PitchX: true, ForwardZ: true, ForwardX: true},
		Idle:    {StepperZ: false, StepperX: false, PitchZ: false, PitchX: false, ForwardZ: true, ForwardX: true},
	},
	FrontCompound: {
		Forward: {StepperZ: true, StepperX: true, PitchZ: true, PitchX: true, ForwardZ: true, ForwardX: true},
		Reverse: {StepperZ: true, StepperX: true, PitchZ: true, PitchX: true, ForwardZ: false, ForwardX: false},
		Hold:    {StepperZ: false, StepperX: false, PitchZ: true, PitchX: true, ForwardZ: true, ForwardX: true},
		Idle:    {StepperZ: false, StepperX: false, PitchZ: false, PitchX: false, ForwardZ: true, ForwardX: true},
	},
	BackCompound: {
		Forward: {StepperZ: true, StepperX: true, PitchZ: true, PitchX: true, ForwardZ: true, ForwardX: false},
		Reverse: {StepperZ: true, StepperX: true, PitchZ: true, PitchX: true, ForwardZ: false, ForwardX: true},
		Hold:    {StepperZ: false, StepperX: false, PitchZ: true, PitchX: true, ForwardZ: true, ForwardX: false},
		Idle:    {StepperZ: false, StepperX: false, PitchZ: false, PitchX: false, ForwardZ: true, ForwardX: false},
	},
}

// Resolve looks up the cell for (m, d). Both selectors come from the closed
// enums above, so an out-of-range value is a programming error and panics.
func Resolve(m Mode, d Direction) Flags {
	return table[m][d]
}

// Selection is the operator's current pair of selectors.
type Selection struct {
	Mode      Mode
	Direction Direction
}

func (s Selection) Flags() Flags {
	return Resolve(s.Mode, s.Direction)
}

// CannedCycle is the selection forced when actuation is refreshed from the
// canned-cycle screen.
var CannedCycle = Selection{Mode: BackCompound, Direction: Hold}
