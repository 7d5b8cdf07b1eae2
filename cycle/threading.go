package cycle

import (
	"math"

	"github.com/jt05610/lathe/axis"
	"github.com/jt05610/lathe/units"
)

const (
	DefaultFirstCut   = 0.1
	DefaultCutMult    = 0.8
	DefaultMinCut     = 0.05
	DefaultSpringCuts = 1
	DefaultPullout    = 0.1

	// leadInPitches is the lead-in length in multiples of the pitch.
	leadInPitches = 4
)

// ThreadingInput is what the operator entered. Nil fields take their defaults.
type ThreadingInput struct {
	Pitch      *float64 `json:"pitch,omitempty" yaml:"pitch,omitempty"`
	XDepth     *float64 `json:"xDepth,omitempty" yaml:"xDepth,omitempty"`
	ZDepth     *float64 `json:"zDepth,omitempty" yaml:"zDepth,omitempty"`
	Angle      *float64 `json:"angle,omitempty" yaml:"angle,omitempty"`
	ZEnd       *float64 `json:"zEnd,omitempty" yaml:"zEnd,omitempty"`
	XPullout   *float64 `json:"xPullout,omitempty" yaml:"xPullout,omitempty"`
	ZPullout   *float64 `json:"zPullout,omitempty" yaml:"zPullout,omitempty"`
	FirstCut   *float64 `json:"firstCut,omitempty" yaml:"firstCut,omitempty"`
	CutMult    *float64 `json:"cutMult,omitempty" yaml:"cutMult,omitempty"`
	MinCut     *float64 `json:"minCut,omitempty" yaml:"minCut,omitempty"`
	SpringCuts *float64 `json:"springCuts,omitempty" yaml:"springCuts,omitempty"`

	Preset   string `json:"preset,omitempty" yaml:"preset,omitempty"`
	Diameter string `json:"diameter,omitempty" yaml:"diameter,omitempty"`
	// Units is the system the lengths were entered in. Empty means the
	// session's.
	Units string `json:"units,omitempty" yaml:"units,omitempty"`
}

// Validate reports every violated constraint for lengths in sys. A missing
// required field is reported alone.
func (in *ThreadingInput) Validate(sys units.System) []string {
	if in.Pitch == nil || in.ZEnd == nil {
		return []string{"Missing required parameters. Please set Pitch and Z End values."}
	}
	var errs []string
	limit, label := dimensionLimit(sys)
	if *in.Pitch <= 0 {
		errs = append(errs, "Pitch must be positive")
	}
	if *in.Pitch > limit {
		errs = append(errs, "Pitch seems too large (>"+label+"), please verify")
	}
	if in.XDepth != nil && math.Abs(*in.XDepth) > limit {
		errs = append(errs, "X Depth seems too large (>"+label+"), please verify")
	}
	if in.FirstCut != nil && *in.FirstCut <= 0 {
		errs = append(errs, "First Cut must be positive")
	}
	if in.CutMult != nil && (*in.CutMult < 0.5 || *in.CutMult > 1.0) {
		errs = append(errs, "Cut Multiplier should be between 0.5 and 1.0")
	}
	if in.MinCut != nil && *in.MinCut <= 0 {
		errs = append(errs, "Min Cut must be positive")
	}
	if in.SpringCuts != nil && (*in.SpringCuts < 0 || *in.SpringCuts > 10) {
		errs = append(errs, "Spring Cuts should be between 0 and 10")
	}
	return errs
}

// Normalize rounds every entered field to six decimals.
func (in *ThreadingInput) Normalize() {
	for _, v := range in.all() {
		round(v)
	}
}

func (in *ThreadingInput) all() []*float64 {
	return values(in.slots())
}

func (in *ThreadingInput) slots() []**float64 {
	return []**float64{
		&in.Pitch, &in.XDepth, &in.ZDepth, &in.Angle, &in.ZEnd, &in.XPullout,
		&in.ZPullout, &in.FirstCut, &in.CutMult, &in.MinCut, &in.SpringCuts,
	}
}

// Merge copies every field set in o over in.
func (in *ThreadingInput) Merge(o *ThreadingInput) {
	merge(in.slots(), o.slots())
	in.Preset = pick(o.Preset, in.Preset)
	in.Diameter = pick(o.Diameter, in.Diameter)
	in.Units = pick(o.Units, in.Units)
}

func (in *ThreadingInput) dimensional() []*float64 {
	return []*float64{
		in.Pitch, in.XDepth, in.ZDepth, in.ZEnd, in.XPullout, in.ZPullout,
		in.FirstCut, in.MinCut,
	}
}

// Convert moves the dimensional fields between unit systems. The angle, cut
// multiplier and spring count are unitless and stay put. The preset no longer
// describes the converted values, so it is cleared.
func (in *ThreadingInput) Convert(from, to units.System) {
	for _, v := range in.dimensional() {
		convert(v, from, to)
	}
	in.Preset = ""
	in.Diameter = ""
	in.Units = to.String()
}

// ConvertTo converts in from the system it declares into sys.
func (in *ThreadingInput) ConvertTo(sys units.System) error {
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

// ThreadingParams is the executor record for a threading cycle.
type ThreadingParams struct {
	XPos       float64
	ZPos       float64
	APos       float64
	XStart     float64
	ZStart     float64
	Pitch      float64
	XDepth     float64
	ZDepth     float64
	XEnd       float64
	ZEnd       float64
	XReturn    float64
	ZReturn    float64
	XPullout   float64
	ZPullout   float64
	FirstCut   float64
	CutMult    float64
	MinCut     float64
	SpringCuts int

	// Infeed holds the depth of each cutting pass before the spring passes.
	Infeed []float64 `json:"-"`
}

func (p *ThreadingParams) Kind() Kind {
	return Threading
}

func (p *ThreadingParams) Passes() int {
	return len(p.Infeed) + p.SpringCuts
}

func (p *ThreadingParams) Fields() map[string]interface{} {
	return map[string]interface{}{
		"XPos":       p.XPos,
		"ZPos":       p.ZPos,
		"APos":       p.APos,
		"XStart":     p.XStart,
		"ZStart":     p.ZStart,
		"Pitch":      p.Pitch,
		"XDepth":     p.XDepth,
		"ZDepth":     p.ZDepth,
		"XEnd":       p.XEnd,
		"ZEnd":       p.ZEnd,
		"XReturn":    p.XReturn,
		"ZReturn":    p.ZReturn,
		"XPullout":   p.XPullout,
		"ZPullout":   p.ZPullout,
		"FirstCut":   p.FirstCut,
		"CutMult":    p.CutMult,
		"MinCut":     p.MinCut,
		"SpringCuts": p.SpringCuts,
	}
}

// Generate validates in and computes the record for the tool at pos, with
// every length in sys.
func (in *ThreadingInput) Generate(pos axis.Position, sys units.System) (*ThreadingParams, error) {
	if err := validationError(Threading, in.Validate(sys)); err != nil {
		return nil, err
	}
	pitch := *in.Pitch
	zEnd := *in.ZEnd
	xDepth := or(in.XDepth, 0)
	zDepth := or(in.ZDepth, 0)
	angle := or(in.Angle, 0)
	firstCut := or(in.FirstCut, DefaultFirstCut)
	cutMult := or(in.CutMult, DefaultCutMult)
	minCut := or(in.MinCut, DefaultMinCut)

	leadIn := pitch * leadInPitches
	length := math.Abs(zEnd + zDepth)
	var xEndOffset, xStartOffset float64
	if angle != 0 {
		xEndOffset = length * tan(angle)
		xStartOffset = leadIn * tan(angle)
	}

	return &ThreadingParams{
		XPos:       units.Round(pos.X),
		ZPos:       units.Round(pos.Z),
		APos:       units.Round(pos.A),
		XStart:     units.Round(pos.X - xStartOffset),
		ZStart:     units.Round(pos.Z + leadIn),
		Pitch:      units.Round(pitch),
		XDepth:     units.Round(xDepth),
		ZDepth:     units.Round(zDepth),
		XEnd:       units.Round(pos.X + xEndOffset),
		ZEnd:       units.Round(pos.Z + zEnd),
		XReturn:    units.Round(pos.X),
		ZReturn:    units.Round(pos.Z),
		XPullout:   units.Round(or(in.XPullout, DefaultPullout)),
		ZPullout:   units.Round(or(in.ZPullout, DefaultPullout)),
		FirstCut:   units.Round(firstCut),
		CutMult:    units.Round(cutMult),
		MinCut:     units.Round(minCut),
		SpringCuts: count(or(in.SpringCuts, DefaultSpringCuts)),
		Infeed:     infeed(xDepth, firstCut, cutMult, minCut),
	}, nil
}
