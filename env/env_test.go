package env_test

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/jt05610/lathe/env"
	"go.uber.org/multierr"
	"go.uber.org/zap/zaptest"
)

func chdir(t *testing.T, dir string) {
	t.Helper()
	wd, err := os.Getwd()
	if err != nil {
		t.Fatal(err)
	}
	if err := os.Chdir(dir); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() {
		_ = os.Chdir(wd)
	})
}

func TestLoadEnvDefaults(t *testing.T) {
	chdir(t, t.TempDir())
	for _, k := range []string{"LATHE_TRANSPORT", "LATHE_EXECUTOR", "LATHE_POLL_PERIOD", "LATHE_SERIAL_BAUD"} {
		t.Setenv(k, "")
		_ = os.Unsetenv(k)
	}
	e, err := env.LoadEnv(zaptest.NewLogger(t))
	if err != nil {
		t.Fatal(err)
	}
	if e.Transport != env.TransportHTTP || e.Executor != env.ExecutorHTTP {
		t.Fatalf("unexpected defaults %+v", e)
	}
	if e.PollPeriod != env.DefaultPollPeriod || e.Baud != 115200 {
		t.Fatalf("unexpected defaults %+v", e)
	}
}

func TestLoadEnvFile(t *testing.T) {
	dir := t.TempDir()
	chdir(t, dir)
	data := "LATHE_TRANSPORT=serial\nLATHE_SERIAL_PORT=/dev/ttyUSB0\nLATHE_SERIAL_BAUD=57600\nLATHE_POLL_PERIOD=50ms\n"
	if err := os.WriteFile(filepath.Join(dir, ".env"), []byte(data), 0o600); err != nil {
		t.Fatal(err)
	}
	// godotenv does not override variables that are already set
	for _, k := range []string{"LATHE_TRANSPORT", "LATHE_SERIAL_PORT", "LATHE_SERIAL_BAUD", "LATHE_POLL_PERIOD"} {
		t.Setenv(k, "")
		_ = os.Unsetenv(k)
	}
	e, err := env.LoadEnv(nil)
	if err != nil {
		t.Fatal(err)
	}
	if e.Transport != env.TransportSerial || e.SerialPort != "/dev/ttyUSB0" || e.Baud != 57600 {
		t.Fatalf("unexpected environment %+v", e)
	}
	if e.PollPeriod != 50*time.Millisecond {
		t.Fatalf("unexpected poll period %v", e.PollPeriod)
	}
}

func TestValidate(t *testing.T) {
	e := &env.Environment{Transport: env.TransportSerial, Executor: env.ExecutorAMQP}
	err := e.Validate()
	if got := len(multierr.Errors(err)); got != 3 {
		t.Fatalf("expected 3 problems, got %d: %v", got, err)
	}
	if !errors.Is(err, env.ErrInvalid) {
		t.Fatal("expected ErrInvalid")
	}
	e = &env.Environment{Transport: "carrier pigeon", Executor: env.ExecutorHTTP}
	if err := e.Validate(); err == nil || !strings.Contains(err.Error(), "carrier pigeon") {
		t.Fatalf("unexpected error %v", err)
	}
}

func TestLoadMachine(t *testing.T) {
	m, err := env.LoadMachine("")
	if err != nil {
		t.Fatal(err)
	}
	if m.Leadscrew.X != env.DefaultPitch || m.Jog.CapZ != 6 || m.Tools == nil {
		t.Fatalf("unexpected defaults %+v", m)
	}

	path := filepath.Join(t.TempDir(), "machine.yaml")
	src := `
units: imperial
leadscrew:
  z: 0.2
jog:
  capZ: 4
tools:
  current: 1
  table:
    - description: reference
    - x: 0.01
      z: 0.02
`
	if err := os.WriteFile(path, []byte(src), 0o600); err != nil {
		t.Fatal(err)
	}
	m, err = env.LoadMachine(path)
	if err != nil {
		t.Fatal(err)
	}
	if m.Leadscrew.X != env.DefaultPitch || m.Leadscrew.Z != 0.2 {
		t.Fatalf("unexpected leadscrew %+v", m.Leadscrew)
	}
	if m.Jog.Rate != 3 || m.Jog.CapX != 3 || m.Jog.CapZ != 4 {
		t.Fatalf("unexpected jog %+v", m.Jog)
	}
	if off := m.Tools.CurrentToolOffset(); off.X != 0.01 || off.Z != 0.02 {
		t.Fatalf("unexpected tool offset %+v", off)
	}
	if sys, err := m.System(); err != nil || sys.String() != "imperial" {
		t.Fatalf("unexpected system %v %v", sys, err)
	}

	if err := os.WriteFile(path, []byte("units: cubits\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	if _, err := env.LoadMachine(path); err == nil {
		t.Fatal("expected error for unknown units")
	}
}

func TestLoadMachineToolFile(t *testing.T) {
	dir := t.TempDir()
	table := "current: 2\ntable:\n  - description: reference\n  - x: 1\n  - x: 0.5\n    z: -1\n    description: parting\n"
	if err := os.WriteFile(filepath.Join(dir, "tools.yaml"), []byte(table), 0o600); err != nil {
		t.Fatal(err)
	}
	path := filepath.Join(dir, "machine.yaml")
	src := "toolFile: tools.yaml\ntools:\n  current: 1\n"
	if err := os.WriteFile(path, []byte(src), 0o600); err != nil {
		t.Fatal(err)
	}
	m, err := env.LoadMachine(path)
	if err != nil {
		t.Fatal(err)
	}
	if m.Tools.Current() != 2 {
		t.Fatalf("tool file did not win, current %d", m.Tools.Current())
	}
	if off := m.Tools.CurrentToolOffset(); off.X != 0.5 || off.Z != -1 {
		t.Fatalf("unexpected tool offset %+v", off)
	}

	if err := os.WriteFile(path, []byte("toolFile: missing.yaml\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	if _, err := env.LoadMachine(path); !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("expected a missing tool file error, got %v", err)
	}
}
