package cycle_test

import (
	"errors"
	"strings"
	"testing"

	"github.com/jt05610/lathe/axis"
	"github.com/jt05610/lathe/cycle"
	"github.com/jt05610/lathe/units"
)

func TestDefaultLibrary(t *testing.T) {
	lib := cycle.DefaultLibrary()
	if len(lib.Threading) == 0 || len(lib.Turning) == 0 {
		t.Fatal("empty default library")
	}
	for _, p := range lib.Threading {
		in, err := p.Apply(units.Metric)
		if err != nil {
			t.Fatalf("%s: %v", p.Name, err)
		}
		if msgs := in.Validate(units.Metric); len(msgs) != 0 {
			t.Fatalf("%s: preset does not validate: %v", p.Name, msgs)
		}
		if _, err := in.Generate(axis.Position{X: p.Major / 2}, units.Metric); err != nil {
			t.Fatalf("%s: %v", p.Name, err)
		}
	}
	for _, p := range lib.Turning {
		in, err := p.Apply(units.Metric)
		if err != nil {
			t.Fatalf("%s: %v", p.Name, err)
		}
		if msgs := in.Validate(); len(msgs) != 0 {
			t.Fatalf("%s: preset does not validate: %v", p.Name, msgs)
		}
	}
}

func TestPresetFormula(t *testing.T) {
	lib := cycle.DefaultLibrary()
	p, err := lib.ThreadingPreset("m6x1")
	if err != nil {
		t.Fatal(err)
	}
	in, err := p.Apply(units.Metric)
	if err != nil {
		t.Fatal(err)
	}
	if *in.Pitch != 1 || *in.XDepth != -0.6134 {
		t.Fatalf("unexpected pitch/depth %v %v", *in.Pitch, *in.XDepth)
	}
	if in.Preset != "M6x1" {
		t.Fatalf("preset name not kept: %q", in.Preset)
	}
}

func TestPresetImperial(t *testing.T) {
	lib := cycle.DefaultLibrary()
	p, err := lib.ThreadingPreset("1/4-20 UNC")
	if err != nil {
		t.Fatal(err)
	}
	in, err := p.Apply(units.Imperial)
	if err != nil {
		t.Fatal(err)
	}
	if *in.Pitch != 0.05 {
		t.Fatalf("expected 0.05in pitch, got %v", *in.Pitch)
	}
	if *in.CutMult != 0.8 || *in.SpringCuts != 1 {
		t.Fatal("unitless fields were scaled")
	}
	if in.Units != "imperial" {
		t.Fatalf("expected imperial units, got %q", in.Units)
	}
	if msgs := in.Validate(units.Imperial); len(msgs) != 0 {
		t.Fatalf("imperial preset does not validate: %v", msgs)
	}
}

func TestLoadLibrary(t *testing.T) {
	src := `
threading:
  - name: custom
    major: 20
    pitch: major / 10
    xDepth: -pitch / 2
    zEnd: -30
turning:
  - name: bad
    target: nope * 2
    zEnd: -1
`
	lib, err := cycle.LoadLibrary(strings.NewReader(src))
	if err != nil {
		t.Fatal(err)
	}
	p, err := lib.ThreadingPreset("custom")
	if err != nil {
		t.Fatal(err)
	}
	in, err := p.Apply(units.Metric)
	if err != nil {
		t.Fatal(err)
	}
	if *in.Pitch != 2 || *in.XDepth != -1 || in.ZDepth != nil {
		t.Fatalf("unexpected values %+v", in)
	}
	tp, err := lib.TurningPreset("bad")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := tp.Apply(units.Metric); err == nil {
		t.Fatal("expected an evaluation error")
	}
	if _, err := lib.TurningPreset("missing"); !errors.Is(err, cycle.ErrPresetNotFound) {
		t.Fatalf("expected ErrPresetNotFound, got %v", err)
	}
}
