package control

import (
	"time"

	"github.com/jt05610/lathe/axis"
	"github.com/jt05610/lathe/feed"
	"github.com/jt05610/lathe/hal"
	"github.com/jt05610/lathe/jog"
	"github.com/jt05610/lathe/tools"
)

// request is an offset request waiting for a sample polled at or after tick from.
type request struct {
	pending bool
	value   float64
	from    uint64
}

// core is the loop's state machine without timers or I/O. Only the loop
// goroutine touches it.
type core struct {
	tracker *axis.Tracker
	spindle axis.Spindle
	jog     *jog.Controller
	tools   tools.ToolOffsets
	sel     feed.Selection
	menu    Menu
	pitch   Pitch

	zeroRequested bool
	zero          request
	set           [3]request
	refresh       bool

	// tick is the index of the last poll issued, applied the index of the
	// last sample used. Both only grow.
	tick    uint64
	applied uint64
	stale   uint64

	sample     axis.Sample
	haveSample bool
	pos        axis.Position
}

type noTools struct{}

func (noTools) CurrentToolOffset() axis.ToolOffset {
	return axis.ToolOffset{}
}

func newCore(t tools.ToolOffsets, r jog.Ramp, sel feed.Selection, menu Menu, p Pitch) *core {
	if t == nil {
		t = noTools{}
	}
	return &core{
		tracker: axis.NewTracker(),
		jog:     jog.NewController(r),
		tools:   t,
		sel:     sel,
		menu:    menu,
		pitch:   p,
		refresh: true,
	}
}

func (c *core) tool() axis.ToolOffset {
	return c.tools.CurrentToolOffset()
}

// step runs one tick at now. It returns the index of the poll to issue and
// the commands to send, in order.
func (c *core) step(now time.Time) (uint64, []*hal.Out) {
	c.tick++
	var out []*hal.Out
	if c.zeroRequested {
		c.zeroRequested = false
		c.zero = request{pending: true, from: c.tick}
		out = append(out, resetCommand())
	}
	if c.jog.Held() {
		for _, cmd := range c.jog.Commands(now) {
			out = append(out, jogCommand(cmd))
		}
		c.refresh = false
	}
	for n := c.jog.TakeStops(); n > 0; n-- {
		out = append(out, stopCommand())
	}
	if c.refresh {
		c.refresh = false
		out = append(out, c.actuation())
	}
	return c.tick, out
}

func (c *core) actuation() *hal.Out {
	if c.menu == CannedCycles {
		c.sel = feed.CannedCycle
		return cannedCycleCommand(c.sel.Flags(), c.pitch)
	}
	return actuationCommand(c.sel.Flags(), c.pitch)
}

// observe applies the sample polled at tick idx. A sample older than one
// already applied is dropped and observe reports false.
func (c *core) observe(idx uint64, s axis.Sample) bool {
	if idx <= c.applied {
		c.stale++
		return false
	}
	c.applied = idx
	if c.zero.pending && idx >= c.zero.from {
		c.tracker.Zero()
		c.zero = request{}
	}
	for i, r := range c.set {
		if r.pending && idx >= r.from {
			_ = c.tracker.SetValue(axis.Axis(i), r.value)
			c.set[i] = request{}
		}
	}
	c.pos = c.tracker.Apply(s, c.tool())
	c.spindle.Update(s.SpeedRPS)
	c.sample = s
	c.haveSample = true
	return true
}

func (c *core) snapshot(running bool) *Snapshot {
	return &Snapshot{
		Running:        running,
		Tick:           c.tick,
		Sampled:        c.haveSample,
		Position:       c.pos,
		Offsets:        Offsets{X: c.tracker.Offset(axis.X), Z: c.tracker.Offset(axis.Z), A: c.tracker.Offset(axis.A)},
		Tool:           c.tool(),
		RPM:            c.spindle.RPM,
		SmoothedRPM:    c.spindle.Smoothed,
		Feed:           c.sel.Mode,
		Direction:      c.sel.Direction,
		Flags:          c.sel.Flags(),
		Menu:           c.menu,
		Pitch:          c.pitch,
		Jogging:        c.jog.Held(),
		ProgramRunning: c.sample.ProgramRunning,
		ErrorState:     c.sample.ErrorState,
		Stale:          c.stale,
	}
}

type Offsets struct {
	X float64 `json:"x"`
	Z float64 `json:"z"`
	A float64 `json:"a"`
}

// Snapshot is the operator-visible state after the last thing the loop did.
type Snapshot struct {
	Running        bool            `json:"running"`
	Tick           uint64          `json:"tick"`
	Sampled        bool            `json:"sampled"`
	Position       axis.Position   `json:"position"`
	Offsets        Offsets         `json:"offsets"`
	Tool           axis.ToolOffset `json:"tool"`
	RPM            float64         `json:"rpm"`
	SmoothedRPM    float64         `json:"rpmSmoothed"`
	Feed           feed.Mode       `json:"feed"`
	Direction      feed.Direction  `json:"direction"`
	Flags          feed.Flags      `json:"flags"`
	Menu           Menu            `json:"menu"`
	Pitch          Pitch           `json:"pitch"`
	Jogging        bool            `json:"jogging"`
	ProgramRunning bool            `json:"programRunning"`
	ErrorState     bool            `json:"errorState"`
	Stale          uint64          `json:"stalePolls"`
}
