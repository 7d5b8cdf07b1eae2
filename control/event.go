package control

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jt05610/lathe/axis"
	"github.com/jt05610/lathe/feed"
	"github.com/jt05610/lathe/jog"
)

type Menu int

const (
	Manual Menu = iota
	CannedCycles
)

var menus = []string{
	Manual:       "manual",
	CannedCycles: "canned-cycles",
}

func (m Menu) String() string {
	if m < 0 || int(m) >= len(menus) {
		return "unknown"
	}
	return menus[m]
}

func (m Menu) Valid() bool {
	return m >= 0 && int(m) < len(menus)
}

func (m Menu) MarshalText() ([]byte, error) {
	return []byte(m.String()), nil
}

func (m *Menu) UnmarshalText(b []byte) error {
	v, err := ParseMenu(string(b))
	if err != nil {
		return err
	}
	*m = v
	return nil
}

var ErrUnknownMenu = errors.New("unknown menu")

func ParseMenu(s string) (Menu, error) {
	for i, name := range menus {
		if strings.EqualFold(s, name) {
			return Menu(i), nil
		}
	}
	return Manual, ErrUnknownMenu
}

// Intent is one operator action. Intents are applied by the loop between
// ticks, in the order they were submitted.
type Intent interface {
	Name() string
	validate() error
	apply(c *core, now time.Time)
}

// Zero zeroes X and Z against the active tool on the next sample.
type Zero struct{}

// SetAxis makes Axis read Value after the next sample. A is in degrees.
type SetAxis struct {
	Axis  axis.Axis
	Value float64
}

// SetOffset overwrites an offset directly.
type SetOffset struct {
	Axis  axis.Axis
	Value float64
}

type SelectFeed struct {
	Mode feed.Mode
}

type SelectDirection struct {
	Direction feed.Direction
}

type SelectMenu struct {
	Menu Menu
}

type SetPitch struct {
	Axis  axis.Axis
	Value float64
}

type JogPress struct {
	Direction jog.Direction
}

type JogRelease struct {
	Direction jog.Direction
}

func (Zero) Name() string            { return "zero" }
func (SetAxis) Name() string         { return "set_axis" }
func (SetOffset) Name() string       { return "set_offset" }
func (SelectFeed) Name() string      { return "select_feed" }
func (SelectDirection) Name() string { return "select_direction" }
func (SelectMenu) Name() string      { return "select_menu" }
func (SetPitch) Name() string        { return "set_pitch" }
func (JogPress) Name() string        { return "jog_press" }
func (JogRelease) Name() string      { return "jog_release" }

func validAxis(a axis.Axis) error {
	if a < axis.X || a > axis.A {
		return axis.ErrUnknownAxis
	}
	return nil
}

func (Zero) validate() error {
	return nil
}

func (i SetAxis) validate() error {
	return validAxis(i.Axis)
}

func (i SetOffset) validate() error {
	return validAxis(i.Axis)
}

func (i SelectFeed) validate() error {
	if !i.Mode.Valid() {
		return feed.ErrUnknownMode
	}
	return nil
}

func (i SelectDirection) validate() error {
	if !i.Direction.Valid() {
		return feed.ErrUnknownDirection
	}
	return nil
}

func (i SelectMenu) validate() error {
	if !i.Menu.Valid() {
		return ErrUnknownMenu
	}
	return nil
}

var ErrInvalidPitch = errors.New("pitch must be positive")

func (i SetPitch) validate() error {
	if i.Axis != axis.X && i.Axis != axis.Z {
		return fmt.Errorf("%w: no leadscrew on %s", axis.ErrUnknownAxis, i.Axis)
	}
	if i.Value <= 0 {
		return ErrInvalidPitch
	}
	return nil
}

func (i JogPress) validate() error {
	if !i.Direction.Valid() {
		return jog.ErrUnknownDirection
	}
	return nil
}

func (i JogRelease) validate() error {
	if !i.Direction.Valid() {
		return jog.ErrUnknownDirection
	}
	return nil
}

func (Zero) apply(c *core, _ time.Time) {
	c.zeroRequested = true
}

func (i SetAxis) apply(c *core, _ time.Time) {
	c.set[i.Axis] = request{pending: true, value: i.Value, from: c.tick + 1}
}

func (i SetOffset) apply(c *core, _ time.Time) {
	_ = c.tracker.SetOffset(i.Axis, i.Value)
	if c.haveSample {
		c.pos = c.tracker.Logical(c.sample, c.tool())
	}
}

func (i SelectFeed) apply(c *core, _ time.Time) {
	c.sel.Mode = i.Mode
	c.refresh = true
}

func (i SelectDirection) apply(c *core, _ time.Time) {
	c.sel.Direction = i.Direction
	c.refresh = true
}

func (i SelectMenu) apply(c *core, _ time.Time) {
	c.menu = i.Menu
	c.refresh = true
}

func (i SetPitch) apply(c *core, _ time.Time) {
	if i.Axis == axis.Z {
		c.pitch.Z = i.Value
	} else {
		c.pitch.X = i.Value
	}
	c.refresh = true
}

func (i JogPress) apply(c *core, now time.Time) {
	c.jog.Press(i.Direction, now)
}

func (i JogRelease) apply(c *core, _ time.Time) {
	c.jog.Release(i.Direction)
}
