package cycle

import (
	"math"

	"github.com/jt05610/lathe/axis"
	"github.com/jt05610/lathe/units"
)

const (
	DefaultFeedRate      = 0.2
	DefaultStepDown      = 0.5
	DefaultFinalStepDown = 0.1

	// zLead is the fixed lead-in before the cut starts.
	zLead    = 2.0
	maxTaper = 45
)

// TurningInput is what the operator entered. Nil fields take their defaults.
type TurningInput struct {
	Target        *float64 `json:"target,omitempty" yaml:"target,omitempty"`
	ZEnd          *float64 `json:"zEnd,omitempty" yaml:"zEnd,omitempty"`
	FeedRate      *float64 `json:"feedRate,omitempty" yaml:"feedRate,omitempty"`
	StepDown      *float64 `json:"stepDown,omitempty" yaml:"stepDown,omitempty"`
	FinalStepDown *float64 `json:"finalStepDown,omitempty" yaml:"finalStepDown,omitempty"`
	TaperAngle    *float64 `json:"taperAngle,omitempty" yaml:"taperAngle,omitempty"`
	SpringPasses  *float64 `json:"springPasses,omitempty" yaml:"springPasses,omitempty"`

	Preset string `json:"preset,omitempty" yaml:"preset,omitempty"`
	Units  string `json:"units,omitempty" yaml:"units,omitempty"`
}

func (in *TurningInput) Validate() []string {
	if in.Target == nil || in.ZEnd == nil {
		return []string{"Missing required parameters. Please set Target and Length values."}
	}
	var errs []string
	if in.FeedRate != nil && *in.FeedRate <= 0 {
		errs = append(errs, "Feed Rate must be positive")
	}
	if in.StepDown != nil && *in.StepDown <= 0 {
		errs = append(errs, "Step Down must be positive")
	}
	if in.FinalStepDown != nil && *in.FinalStepDown <= 0 {
		errs = append(errs, "Final Step Down must be positive")
	}
	if in.SpringPasses != nil && (*in.SpringPasses < 0 || *in.SpringPasses > 10) {
		errs = append(errs, "Spring Passes should be between 0 and 10")
	}
	if in.TaperAngle != nil && math.Abs(*in.TaperAngle) > maxTaper {
		errs = append(errs, "Taper Angle seems too large (>45°), please verify")
	}
	return errs
}

func (in *TurningInput) Normalize() {
	for _, v := range values(in.slots()) {
		round(v)
	}
}

func (in *TurningInput) slots() []**float64 {
	return []**float64{
		&in.Target, &in.ZEnd, &in.FeedRate, &in.StepDown, &in.FinalStepDown,
		&in.TaperAngle, &in.SpringPasses,
	}
}

// Merge copies every field set in o over in.
func (in *TurningInput) Merge(o *TurningInput) {
	merge(in.slots(), o.slots())
	in.Preset = pick(o.Preset, in.Preset)
	in.Units = pick(o.Units, in.Units)
}

func (in *TurningInput) dimensional() []*float64 {
	return []*float64{in.Target, in.ZEnd, in.FeedRate, in.StepDown, in.FinalStepDown}
}

func (in *TurningInput) Convert(from, to units.System) {
	for _, v := range in.dimensional() {
		convert(v, from, to)
	}
	in.Preset = ""
	in.Units = to.String()
}

func (in *TurningInput) ConvertTo(sys units.System) error {
	from, err := declared(in.Units, sys)
	if err != nil {
		return err
	}
	if from != sys {
		in.Convert(from, sys)
	}
	in.Units = sys.String()
	return nil
}

// TurningParams is the executor record for a turning cycle. Stock is the
// current X position; ZEnd is passed through as entered.
type TurningParams struct {
	XPos          float64
	ZPos          float64
	APos          float64
	Pitch         float64
	Stock         float64
	Target        float64
	ZLead         float64
	ZEnd          float64
	Angle         float64
	StepDown      float64
	FinalStepDown float64
	SpringPasses  int
	XReturn       float64
	ZReturn       float64

	// Roughing is the number of roughing passes before the finishing pass.
	Roughing int `json:"-"`
	// Finishing is 1 when there is material left for a finishing pass.
	Finishing int `json:"-"`
}

func (p *TurningParams) Kind() Kind {
	return Turning
}

func (p *TurningParams) Passes() int {
	return p.Roughing + p.Finishing + p.SpringPasses
}

func (p *TurningParams) Fields() map[string]interface{} {
	return map[string]interface{}{
		"XPos":          p.XPos,
		"ZPos":          p.ZPos,
		"APos":          p.APos,
		"Pitch":         p.Pitch,
		"Stock":         p.Stock,
		"Target":        p.Target,
		"ZLead":         p.ZLead,
		"ZEnd":          p.ZEnd,
		"Angle":         p.Angle,
		"StepDown":      p.StepDown,
		"FinalStepDown": p.FinalStepDown,
		"SpringPasses":  p.SpringPasses,
		"XReturn":       p.XReturn,
		"ZReturn":       p.ZReturn,
	}
}

// Generate validates in and computes the record for the tool at pos. The feed
// rate is per revolution, so it is used directly as the pitch.
func (in *TurningInput) Generate(pos axis.Position) (*TurningParams, error) {
	if err := validationError(Turning, in.Validate()); err != nil {
		return nil, err
	}
	target := *in.Target
	stepDown := or(in.StepDown, DefaultStepDown)
	finalStepDown := or(in.FinalStepDown, DefaultFinalStepDown)
	rough, finish := roughing(pos.X, target, stepDown, finalStepDown)
	return &TurningParams{
		XPos:          units.Round(pos.X),
		ZPos:          units.Round(pos.Z),
		APos:          units.Round(pos.A),
		Pitch:         units.Round(or(in.FeedRate, DefaultFeedRate)),
		Stock:         units.Round(pos.X),
		Target:        units.Round(target),
		ZLead:         units.Round(zLead),
		ZEnd:          units.Round(*in.ZEnd),
		Angle:         units.Round(or(in.TaperAngle, 0)),
		StepDown:      units.Round(stepDown),
		FinalStepDown: units.Round(finalStepDown),
		SpringPasses:  count(or(in.SpringPasses, 0)),
		XReturn:       units.Round(target),
		ZReturn:       units.Round(pos.Z),
		Roughing:      rough,
		Finishing:     finish,
	}, nil
}
