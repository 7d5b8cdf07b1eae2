// Package hal talks to the motion-hardware service: the hal_in document is
// polled for axis samples and sparse hal_out documents drive the actuators.
package hal

import (
	"context"
	"errors"

	"github.com/jt05610/lathe/axis"
)

var ErrClosed = errors.New("hal: transport closed")

// Client is the hardware boundary. Poll is an idempotent read; Send is a
// write whose failure the caller may ignore.
type Client interface {
	Poll(ctx context.Context) (axis.Sample, error)
	Send(ctx context.Context, out *Out) error
}

// In is the hal_in document.
type In struct {
	PositionX      float64 `json:"position_x"`
	PositionZ      float64 `json:"position_z"`
	PositionA      float64 `json:"position_a"`
	SpeedRPS       float64 `json:"speed_rps"`
	ProgramRunning bool    `json:"program_running"`
	ErrorState     bool    `json:"error_state"`
}

func (in *In) Sample() axis.Sample {
	return axis.Sample{
		X:              in.PositionX,
		Z:              in.PositionZ,
		A:              in.PositionA,
		SpeedRPS:       in.SpeedRPS,
		ProgramRunning: in.ProgramRunning,
		ErrorState:     in.ErrorState,
	}
}

// Out is a hal_out document. Only non-nil fields are sent, and the service
// leaves every other pin as it was.
type Out struct {
	ControlSource  *bool    `json:"control_source,omitempty"`
	ForwardZ       *float64 `json:"forward_z,omitempty"`
	ForwardX       *float64 `json:"forward_x,omitempty"`
	EnableZ        *bool    `json:"enable_z,omitempty"`
	EnableX        *bool    `json:"enable_x,omitempty"`
	EnableStepperZ *bool    `json:"enable_stepper_z,omitempty"`
	EnableStepperX *bool    `json:"enable_stepper_x,omitempty"`
	ControlZType   *int     `json:"control_z_type,omitempty"`
	ControlXType   *int     `json:"control_x_type,omitempty"`
	VelocityZCmd   *float64 `json:"velocity_z_cmd,omitempty"`
	VelocityXCmd   *float64 `json:"velocity_x_cmd,omitempty"`
	ControlStopNow *int     `json:"control_stop_now,omitempty"`
	ResetPosition  *bool    `json:"reset_position,omitempty"`
}

func Bool(v bool) *bool {
	return &v
}

func Float(v float64) *float64 {
	return &v
}

func Int(v int) *int {
	return &v
}
