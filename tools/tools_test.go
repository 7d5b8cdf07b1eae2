package tools_test

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"github.com/jt05610/lathe/axis"
	"github.com/jt05610/lathe/tools"
)

func TestTableSelect(t *testing.T) {
	tab := tools.NewTable()
	if err := tab.Set(3, tools.Tool{X: 1.5, Z: -0.25, Description: "parting"}); err != nil {
		t.Fatal(err)
	}
	if off := tab.CurrentToolOffset(); off != (axis.ToolOffset{}) {
		t.Fatalf("reference tool should have no offset, got %+v", off)
	}
	if err := tab.Select(3); err != nil {
		t.Fatal(err)
	}
	if off := tab.CurrentToolOffset(); off.X != 1.5 || off.Z != -0.25 {
		t.Fatalf("unexpected offset %+v", off)
	}
	for _, i := range []int{-1, tools.Count} {
		if err := tab.Select(i); !errors.Is(err, tools.ErrNoSuchTool) {
			t.Fatalf("Select(%d): expected ErrNoSuchTool, got %v", i, err)
		}
	}
	if tab.Current() != 3 {
		t.Fatal("failed select changed the current tool")
	}
}

func TestServiceRoundTrip(t *testing.T) {
	src := `
current: 2
table:
  - description: reference
  - x: 0.5
    z: 1
  - x: -2
    z: 0.125
    description: boring bar
`
	s := &tools.Service{}
	tab, err := s.Load(strings.NewReader(src))
	if err != nil {
		t.Fatal(err)
	}
	if off := tab.CurrentToolOffset(); off.X != -2 || off.Z != 0.125 {
		t.Fatalf("unexpected offset %+v", off)
	}
	if len(tab.Tools()) != tools.Count {
		t.Fatalf("expected %d slots", tools.Count)
	}
	buf := new(bytes.Buffer)
	if err := s.Flush(buf, tab); err != nil {
		t.Fatal(err)
	}
	again, err := s.Load(buf)
	if err != nil {
		t.Fatal(err)
	}
	if again.Current() != 2 {
		t.Fatalf("current lost: %d", again.Current())
	}
	tool, err := again.Tool(2)
	if err != nil {
		t.Fatal(err)
	}
	if tool.Description != "boring bar" {
		t.Fatalf("unexpected tool %+v", tool)
	}
}

func TestServiceRejects(t *testing.T) {
	cases := []string{
		"current: 10\n",
		"current: -1\n",
		"table: [" + strings.Repeat("{x: 1},", tools.Count) + "{x: 1}]\n",
	}
	s := &tools.Service{}
	for i, c := range cases {
		if _, err := s.Load(strings.NewReader(c)); err == nil {
			t.Fatalf("%d: expected error", i)
		}
	}
}
