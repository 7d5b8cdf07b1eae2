// Package tools holds the tool table. The control loop only reads the
// current tool's offset through ToolOffsets.
package tools

import (
	"errors"
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/jt05610/lathe/axis"
	"gopkg.in/yaml.v3"
)

// Count is the number of tool slots. Slot 0 is the reference tool.
const Count = 10

var ErrNoSuchTool = errors.New("no such tool")

// ToolOffsets is the read-only view of the tool table used by the control loop.
type ToolOffsets interface {
	CurrentToolOffset() axis.ToolOffset
}

type Tool struct {
	X           float64 `yaml:"x" json:"x"`
	Z           float64 `yaml:"z" json:"z"`
	Description string  `yaml:"description,omitempty" json:"description,omitempty"`
}

// Table is safe for concurrent use.
type Table struct {
	mu      sync.RWMutex
	tools   [Count]Tool
	current int
}

var _ ToolOffsets = (*Table)(nil)

func NewTable() *Table {
	t := &Table{}
	t.tools[0].Description = "reference"
	return t
}

func check(i int) error {
	if i < 0 || i >= Count {
		return fmt.Errorf("%w: %d", ErrNoSuchTool, i)
	}
	return nil
}

func (t *Table) CurrentToolOffset() axis.ToolOffset {
	t.mu.RLock()
	defer t.mu.RUnlock()
	tool := t.tools[t.current]
	return axis.ToolOffset{X: tool.X, Z: tool.Z}
}

func (t *Table) Current() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.current
}

func (t *Table) Select(i int) error {
	if err := check(i); err != nil {
		return err
	}
	t.mu.Lock()
	t.current = i
	t.mu.Unlock()
	return nil
}

func (t *Table) Tool(i int) (Tool, error) {
	if err := check(i); err != nil {
		return Tool{}, err
	}
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.tools[i], nil
}

func (t *Table) Set(i int, tool Tool) error {
	if err := check(i); err != nil {
		return err
	}
	t.mu.Lock()
	t.tools[i] = tool
	t.mu.Unlock()
	return nil
}

// Tools returns a copy of every slot.
func (t *Table) Tools() []Tool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	ret := make([]Tool, Count)
	copy(ret, t.tools[:])
	return ret
}

type file struct {
	Current int    `yaml:"current"`
	Tools   []Tool `yaml:"table"`
}

func (t *Table) UnmarshalYAML(value *yaml.Node) error {
	var f file
	if err := value.Decode(&f); err != nil {
		return err
	}
	if len(f.Tools) > Count {
		return fmt.Errorf("line %d: %d tools, at most %d", value.Line, len(f.Tools), Count)
	}
	if err := check(f.Current); err != nil {
		return fmt.Errorf("line %d: current: %w", value.Line, err)
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.tools = [Count]Tool{}
	copy(t.tools[:], f.Tools)
	t.current = f.Current
	return nil
}

func (t *Table) MarshalYAML() (interface{}, error) {
	return &file{Current: t.Current(), Tools: t.Tools()}, nil
}

// Service loads and stores tool tables.
type Service struct{}

func (s *Service) Load(r io.Reader) (*Table, error) {
	t := NewTable()
	return t, yaml.NewDecoder(r).Decode(t)
}

func (s *Service) Flush(w io.Writer, t *Table) error {
	enc := yaml.NewEncoder(w)
	defer func() {
		_ = enc.Close()
	}()
	return enc.Encode(t)
}

func (s *Service) LoadFile(path string) (*Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = f.Close()
	}()
	return s.Load(f)
}
