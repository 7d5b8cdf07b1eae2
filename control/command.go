package control

import (
	"github.com/jt05610/lathe/axis"
	"github.com/jt05610/lathe/feed"
	"github.com/jt05610/lathe/hal"
	"github.com/jt05610/lathe/jog"
)

// Pitch is the leadscrew pitch per axis.
type Pitch struct {
	X float64 `json:"x"`
	Z float64 `json:"z"`
}

const velocityControl = 1

func resetCommand() *hal.Out {
	return &hal.Out{ResetPosition: hal.Bool(true)}
}

func jogCommand(c jog.Command) *hal.Out {
	if c.Axis == axis.Z {
		return &hal.Out{ControlZType: hal.Int(velocityControl), VelocityZCmd: hal.Float(c.Velocity)}
	}
	return &hal.Out{ControlXType: hal.Int(velocityControl), VelocityXCmd: hal.Float(c.Velocity)}
}

// stopCommand zeroes both velocities explicitly so the executor never coasts
// on the last one it saw.
func stopCommand() *hal.Out {
	return &hal.Out{
		ControlStopNow: hal.Int(1),
		VelocityXCmd:   hal.Float(0),
		VelocityZCmd:   hal.Float(0),
	}
}

// forward is the signed pitch sent for each axis. The two axes use opposite
// senses.
func forward(f feed.Flags, p Pitch) (z, x float64) {
	z, x = p.Z, -p.X
	if f.ForwardZ {
		z = -p.Z
	}
	if f.ForwardX {
		x = p.X
	}
	return z, x
}

// actuationCommand drives the steppers and leadscrews from the manual screen.
func actuationCommand(f feed.Flags, p Pitch) *hal.Out {
	z, x := forward(f, p)
	return &hal.Out{
		ControlSource:  hal.Bool(false),
		ForwardZ:       hal.Float(z),
		ForwardX:       hal.Float(x),
		EnableZ:        hal.Bool(f.PitchZ),
		EnableX:        hal.Bool(f.PitchX),
		EnableStepperZ: hal.Bool(f.StepperZ),
		EnableStepperX: hal.Bool(f.StepperX),
	}
}

// cannedCycleCommand hands the axes to the executor with everything enabled.
func cannedCycleCommand(f feed.Flags, p Pitch) *hal.Out {
	z, x := forward(f, p)
	return &hal.Out{
		ControlSource:  hal.Bool(true),
		ForwardZ:       hal.Float(z),
		ForwardX:       hal.Float(x),
		EnableZ:        hal.Bool(true),
		EnableX:        hal.Bool(true),
		EnableStepperZ: hal.Bool(true),
		EnableStepperX: hal.Bool(true),
	}
}
