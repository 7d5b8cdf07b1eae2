package env

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/jt05610/lathe/jog"
	"github.com/jt05610/lathe/tools"
	"github.com/jt05610/lathe/units"
	"gopkg.in/yaml.v3"
)

// DefaultPitch is the leadscrew pitch of both axes until the operator sets one.
const DefaultPitch = 0.1

type Leadscrew struct {
	X float64 `yaml:"x"`
	Z float64 `yaml:"z"`
}

// Machine is the YAML machine file.
type Machine struct {
	Units     string       `yaml:"units"`
	Leadscrew Leadscrew    `yaml:"leadscrew"`
	Jog       jog.Ramp     `yaml:"jog"`
	Presets   string       `yaml:"presets,omitempty"`
	// ToolFile names a tool table kept apart from the machine file. It wins
	// over Tools and a relative path is taken from the machine file's
	// directory.
	ToolFile string       `yaml:"toolFile,omitempty"`
	Tools    *tools.Table `yaml:"tools"`
}

func DefaultMachine() *Machine {
	return &Machine{
		Units:     units.Metric.String(),
		Leadscrew: Leadscrew{X: DefaultPitch, Z: DefaultPitch},
		Jog:       jog.DefaultRamp,
		Tools:     tools.NewTable(),
	}
}

// System is the unit system the machine file asks for.
func (m *Machine) System() (units.System, error) {
	return units.ParseSystem(m.Units)
}

// LoadMachine reads path over the defaults. An empty path gives the defaults.
func LoadMachine(path string) (*Machine, error) {
	m := DefaultMachine()
	if path == "" {
		return m, nil
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if err := yaml.Unmarshal(b, m); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	if m.ToolFile != "" {
		f := m.ToolFile
		if !filepath.IsAbs(f) {
			f = filepath.Join(filepath.Dir(path), f)
		}
		if m.Tools, err = (&tools.Service{}).LoadFile(f); err != nil {
			return nil, fmt.Errorf("%s: tools: %w", path, err)
		}
	}
	if m.Tools == nil {
		m.Tools = tools.NewTable()
	}
	if _, err := m.System(); err != nil {
		return nil, fmt.Errorf("%s: %w: %q", path, err, m.Units)
	}
	if m.Jog.Rate <= 0 || m.Jog.CapX <= 0 || m.Jog.CapZ <= 0 {
		return nil, fmt.Errorf("%s: %w: jog tuning must be positive", path, ErrInvalid)
	}
	return m, nil
}
