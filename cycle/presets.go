package cycle

import (
	_ "embed"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/expr-lang/expr"
	"github.com/jt05610/lathe/units"
	"gopkg.in/yaml.v3"
)

//go:embed presets.yaml
var defaultPresets []byte

var ErrPresetNotFound = errors.New("preset not found")

// Formula is a preset value: a number or an expression over pitch and major.
type Formula struct {
	src string
}

func F(src string) *Formula {
	return &Formula{src: src}
}

func (f *Formula) UnmarshalYAML(value *yaml.Node) error {
	if value.Kind != yaml.ScalarNode {
		return fmt.Errorf("line %d: preset value must be a number or expression", value.Line)
	}
	f.src = value.Value
	return nil
}

func (f *Formula) String() string {
	return f.src
}

func (f *Formula) eval(env map[string]interface{}) (*float64, error) {
	if f == nil || strings.TrimSpace(f.src) == "" {
		return nil, nil
	}
	program, err := expr.Compile(f.src, expr.Env(env), expr.AsFloat64())
	if err != nil {
		return nil, fmt.Errorf("compile %q: %w", f.src, err)
	}
	out, err := expr.Run(program, env)
	if err != nil {
		return nil, fmt.Errorf("evaluate %q: %w", f.src, err)
	}
	v, ok := out.(float64)
	if !ok {
		return nil, fmt.Errorf("evaluate %q: got %T", f.src, out)
	}
	return &v, nil
}

// ThreadingPreset values are authored in millimetres.
type ThreadingPreset struct {
	Name       string   `yaml:"name"`
	Diameter   string   `yaml:"diameter"`
	Major      float64  `yaml:"major"`
	Pitch      *Formula `yaml:"pitch"`
	XDepth     *Formula `yaml:"xDepth"`
	ZDepth     *Formula `yaml:"zDepth"`
	Angle      *Formula `yaml:"angle"`
	ZEnd       *Formula `yaml:"zEnd"`
	XPullout   *Formula `yaml:"xPullout"`
	ZPullout   *Formula `yaml:"zPullout"`
	FirstCut   *Formula `yaml:"firstCut"`
	CutMult    *Formula `yaml:"cutMult"`
	MinCut     *Formula `yaml:"minCut"`
	SpringCuts *Formula `yaml:"springCuts"`
}

type TurningPreset struct {
	Name          string   `yaml:"name"`
	Target        *Formula `yaml:"target"`
	ZEnd          *Formula `yaml:"zEnd"`
	FeedRate      *Formula `yaml:"feedRate"`
	StepDown      *Formula `yaml:"stepDown"`
	FinalStepDown *Formula `yaml:"finalStepDown"`
	TaperAngle    *Formula `yaml:"taperAngle"`
	SpringPasses  *Formula `yaml:"springPasses"`
}

type field struct {
	dst **float64
	f   *Formula
}

func evalAll(env map[string]interface{}, fields []field) error {
	for _, fl := range fields {
		v, err := fl.f.eval(env)
		if err != nil {
			return err
		}
		*fl.dst = v
	}
	return nil
}

// Apply evaluates the preset and scales its lengths for sys.
func (p *ThreadingPreset) Apply(sys units.System) (*ThreadingInput, error) {
	env := map[string]interface{}{"major": p.Major, "pitch": 0.0}
	in := &ThreadingInput{Preset: p.Name, Diameter: p.Diameter, Units: sys.String()}
	pitch, err := p.Pitch.eval(env)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", p.Name, err)
	}
	if pitch != nil {
		env["pitch"] = *pitch
	}
	in.Pitch = pitch
	err = evalAll(env, []field{
		{&in.XDepth, p.XDepth}, {&in.ZDepth, p.ZDepth}, {&in.Angle, p.Angle},
		{&in.ZEnd, p.ZEnd}, {&in.XPullout, p.XPullout}, {&in.ZPullout, p.ZPullout},
		{&in.FirstCut, p.FirstCut}, {&in.CutMult, p.CutMult}, {&in.MinCut, p.MinCut},
		{&in.SpringCuts, p.SpringCuts},
	})
	if err != nil {
		return nil, fmt.Errorf("%s: %w", p.Name, err)
	}
	f := units.PresetFactor(sys)
	for _, v := range in.dimensional() {
		scale(v, f)
	}
	in.Normalize()
	return in, nil
}

func (p *TurningPreset) Apply(sys units.System) (*TurningInput, error) {
	in := &TurningInput{Preset: p.Name, Units: sys.String()}
	err := evalAll(map[string]interface{}{}, []field{
		{&in.Target, p.Target}, {&in.ZEnd, p.ZEnd}, {&in.FeedRate, p.FeedRate},
		{&in.StepDown, p.StepDown}, {&in.FinalStepDown, p.FinalStepDown},
		{&in.TaperAngle, p.TaperAngle}, {&in.SpringPasses, p.SpringPasses},
	})
	if err != nil {
		return nil, fmt.Errorf("%s: %w", p.Name, err)
	}
	f := units.PresetFactor(sys)
	for _, v := range in.dimensional() {
		scale(v, f)
	}
	in.Normalize()
	return in, nil
}

type Library struct {
	Threading []*ThreadingPreset `yaml:"threading"`
	Turning   []*TurningPreset   `yaml:"turning"`
}

func LoadLibrary(r io.Reader) (*Library, error) {
	var lib Library
	if err := yaml.NewDecoder(r).Decode(&lib); err != nil {
		return nil, err
	}
	return &lib, nil
}

func LoadLibraryFile(path string) (*Library, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = f.Close()
	}()
	return LoadLibrary(f)
}

// DefaultLibrary is the built-in metric preset set.
func DefaultLibrary() *Library {
	var lib Library
	if err := yaml.Unmarshal(defaultPresets, &lib); err != nil {
		panic(err)
	}
	return &lib
}

func (l *Library) ThreadingPreset(name string) (*ThreadingPreset, error) {
	for _, p := range l.Threading {
		if strings.EqualFold(p.Name, name) {
			return p, nil
		}
	}
	return nil, fmt.Errorf("%w: %s", ErrPresetNotFound, name)
}

func (l *Library) TurningPreset(name string) (*TurningPreset, error) {
	for _, p := range l.Turning {
		if strings.EqualFold(p.Name, name) {
			return p, nil
		}
	}
	return nil, fmt.Errorf("%w: %s", ErrPresetNotFound, name)
}
