package api_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"reflect"
	"testing"

	"github.com/jt05610/lathe/api"
	"github.com/jt05610/lathe/axis"
	"github.com/jt05610/lathe/control"
	"github.com/jt05610/lathe/cycle"
	"github.com/jt05610/lathe/feed"
	"github.com/jt05610/lathe/jog"
	"github.com/jt05610/lathe/tools"
	"github.com/jt05610/lathe/units"
	"go.uber.org/zap/zaptest"
)

type fakeLoop struct {
	intents []control.Intent
	err     error
	cycles  int
	system  units.System
}

var position = axis.Position{X: 10, Z: 0}

func (f *fakeLoop) Snapshot() control.Snapshot {
	return control.Snapshot{Running: true, Sampled: true, Position: position}
}

func (f *fakeLoop) Do(_ context.Context, i control.Intent) error {
	if f.err != nil {
		return f.err
	}
	f.intents = append(f.intents, i)
	return nil
}

func (f *fakeLoop) Thread(_ context.Context, in *cycle.ThreadingInput) (*cycle.ThreadingParams, error) {
	if err := in.ConvertTo(f.system); err != nil {
		return nil, err
	}
	p, err := in.Generate(position, f.system)
	if err == nil {
		f.cycles++
	}
	return p, err
}

func (f *fakeLoop) Turn(_ context.Context, in *cycle.TurningInput) (*cycle.TurningParams, error) {
	if err := in.ConvertTo(f.system); err != nil {
		return nil, err
	}
	p, err := in.Generate(position)
	if err == nil {
		f.cycles++
	}
	return p, err
}

func serve(t *testing.T, h http.Handler, method, path, body string) (int, []byte, http.Header) {
	t.Helper()
	var rd io.Reader
	if body != "" {
		rd = bytes.NewBufferString(body)
	}
	r := httptest.NewRequest(method, "http://test"+path, rd)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, r)
	resp := w.Result()
	b, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatal(err)
	}
	_ = resp.Body.Close()
	return resp.StatusCode, b, resp.Header
}

func newServer(t *testing.T, loop *fakeLoop) http.Handler {
	return api.New(api.Config{
		Loop:   loop,
		Tools:  tools.NewTable(),
		System: units.Metric,
		Logger: zaptest.NewLogger(t),
	}).Handler()
}

func TestIntents(t *testing.T) {
	cases := []struct {
		method string
		path   string
		body   string
		intent control.Intent
	}{
		{http.MethodPost, "/axes/zero", "", control.Zero{}},
		{http.MethodPut, "/axes/x", `{"value":1.5}`, control.SetAxis{Axis: axis.X, Value: 1.5}},
		{http.MethodPut, "/axes/A", `{"value":0}`, control.SetAxis{Axis: axis.A, Value: 0}},
		{http.MethodPut, "/offsets/z", `{"value":-2}`, control.SetOffset{Axis: axis.Z, Value: -2}},
		{http.MethodPut, "/feed", `{"mode":"cross"}`, control.SelectFeed{Mode: feed.Cross}},
		{http.MethodPut, "/direction", `{"mode":"reverse"}`, control.SelectDirection{Direction: feed.Reverse}},
		{http.MethodPut, "/direction", `{"direction":"hold"}`, control.SelectDirection{Direction: feed.Hold}},
		{http.MethodPut, "/pitch/z", `{"value":0.2}`, control.SetPitch{Axis: axis.Z, Value: 0.2}},
		{http.MethodPut, "/menu", `{"menu":"canned-cycles"}`, control.SelectMenu{Menu: control.CannedCycles}},
		{http.MethodPost, "/jog/up", "", control.JogPress{Direction: jog.Up}},
		{http.MethodDelete, "/jog/right", "", control.JogRelease{Direction: jog.Right}},
	}
	for i, c := range cases {
		loop := &fakeLoop{}
		code, body, _ := serve(t, newServer(t, loop), c.method, c.path, c.body)
		if code != http.StatusOK {
			t.Errorf("%d: expected 200, got %d: %s", i, code, body)
			continue
		}
		if len(loop.intents) != 1 || !reflect.DeepEqual(loop.intents[0], c.intent) {
			t.Errorf("%d: expected %#v, got %#v", i, c.intent, loop.intents)
		}
		var snap control.Snapshot
		if err := json.Unmarshal(body, &snap); err != nil || snap.Position != position {
			t.Errorf("%d: unexpected state %s", i, body)
		}
	}
}

func TestRejected(t *testing.T) {
	cases := []struct {
		method string
		path   string
		body   string
		code   int
	}{
		{http.MethodPut, "/axes/q", `{"value":1}`, http.StatusBadRequest},
		{http.MethodPut, "/axes/x", `{}`, http.StatusBadRequest},
		{http.MethodPut, "/axes/x", `{"value":1,"extra":2}`, http.StatusBadRequest},
		{http.MethodPut, "/feed", `{"mode":"diagonal"}`, http.StatusBadRequest},
		{http.MethodPut, "/menu", `{"menu":"settings"}`, http.StatusBadRequest},
		{http.MethodPost, "/jog/sideways", "", http.StatusBadRequest},
		{http.MethodGet, "/jog/up", "", http.StatusMethodNotAllowed},
		{http.MethodPost, "/cycles/milling", `{}`, http.StatusBadRequest},
		{http.MethodPost, "/cycles/threading", `{"preset":"M99"}`, http.StatusNotFound},
		{http.MethodPut, "/tool", `{"index":12}`, http.StatusNotFound},
		{http.MethodPut, "/tool", `{}`, http.StatusBadRequest},
		{http.MethodPost, "/cycles/turning", `{"target":8,"zEnd":-20,"units":"cubits"}`, http.StatusBadRequest},
		{http.MethodPost, "/cycles/turning", `{"target":`, http.StatusBadRequest},
	}
	for i, c := range cases {
		loop := &fakeLoop{}
		code, body, _ := serve(t, newServer(t, loop), c.method, c.path, c.body)
		if code != c.code {
			t.Errorf("%d: expected %d, got %d: %s", i, c.code, code, body)
		}
		if len(loop.intents) != 0 || loop.cycles != 0 {
			t.Errorf("%d: rejected request reached the loop", i)
		}
	}
}

func TestMethodNotAllowed(t *testing.T) {
	code, body, header := serve(t, newServer(t, &fakeLoop{}), http.MethodGet, "/jog/up", "")
	if code != http.StatusMethodNotAllowed || header.Get("Allow") != "DELETE, POST" {
		t.Fatalf("unexpected %d allow=%q", code, header.Get("Allow"))
	}
	var resp api.ErrorResponse
	if err := json.Unmarshal(body, &resp); err != nil || len(resp.Errors) != 1 {
		t.Fatalf("unexpected body %s", body)
	}
	code, _, header = serve(t, newServer(t, &fakeLoop{}), http.MethodOptions, "/jog/up", "")
	if code != http.StatusNoContent || header.Get("Allow") != "DELETE, POST" {
		t.Fatalf("unexpected OPTIONS %d allow=%q", code, header.Get("Allow"))
	}
}

func TestLoopErrors(t *testing.T) {
	cases := []struct {
		err  error
		code int
	}{
		{control.ErrNotRunning, http.StatusConflict},
		{control.ErrUnknownMenu, http.StatusBadRequest},
		{context.DeadlineExceeded, http.StatusGatewayTimeout},
	}
	for i, c := range cases {
		code, body, _ := serve(t, newServer(t, &fakeLoop{err: c.err}), http.MethodPost, "/axes/zero", "")
		if code != c.code {
			t.Errorf("%d: expected %d, got %d", i, c.code, code)
		}
		var resp api.ErrorResponse
		if err := json.Unmarshal(body, &resp); err != nil || len(resp.Errors) != 1 {
			t.Errorf("%d: unexpected body %s", i, body)
		}
	}
}

func TestCycleValidation(t *testing.T) {
	loop := &fakeLoop{}
	code, body, _ := serve(t, newServer(t, loop), http.MethodPost, "/cycles/threading", `{"pitch":-1,"zEnd":-10,"cutMult":3}`)
	if code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %d", code)
	}
	var resp api.ErrorResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		t.Fatal(err)
	}
	want := []string{"Pitch must be positive", "Cut Multiplier should be between 0.5 and 1.0"}
	if !reflect.DeepEqual(resp.Errors, want) {
		t.Fatalf("expected %v, got %v", want, resp.Errors)
	}
	if loop.cycles != 0 {
		t.Fatal("invalid cycle dispatched")
	}
}

func TestCycleDispatch(t *testing.T) {
	cases := []struct {
		path   string
		body   string
		kind   string
		checks map[string]float64
	}{
		{"/cycles/turning", `{"target":8,"zEnd":-20}`, "turning", map[string]float64{"Target": 8, "Stock": 10, "ZEnd": -20}},
		{"/cycles/threading", `{"pitch":1.5,"zEnd":-12}`, "threading", map[string]float64{"Pitch": 1.5, "ZEnd": -12, "ZStart": 6}},
		{"/cycles/threading", `{"preset":"M6x1"}`, "threading", map[string]float64{"Pitch": 1}},
		{"/cycles/threading", `{"preset":"M6x1","pitch":0.75}`, "threading", map[string]float64{"Pitch": 0.75}},
	}
	for i, c := range cases {
		loop := &fakeLoop{}
		code, body, _ := serve(t, newServer(t, loop), http.MethodPost, c.path, c.body)
		if code != http.StatusCreated {
			t.Errorf("%d: expected 201, got %d: %s", i, code, body)
			continue
		}
		var resp api.CycleResponse
		if err := json.Unmarshal(body, &resp); err != nil {
			t.Fatal(err)
		}
		if resp.Kind != c.kind || resp.Passes <= 0 || loop.cycles != 1 {
			t.Errorf("%d: unexpected response %+v", i, resp)
		}
		for k, v := range c.checks {
			if resp.Fields[k] != v {
				t.Errorf("%d: %s expected %v, got %v", i, k, v, resp.Fields[k])
			}
		}
	}
}

func TestCycleDepths(t *testing.T) {
	code, body, _ := serve(t, newServer(t, &fakeLoop{}), http.MethodPost, "/cycles/threading",
		`{"pitch":1,"zEnd":-10,"xDepth":-0.3,"firstCut":0.1,"cutMult":0.5,"minCut":0.04}`)
	if code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", code, body)
	}
	var resp api.CycleResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		t.Fatal(err)
	}
	want := []float64{0.1, 0.15, 0.19, 0.23, 0.27, 0.3}
	if !reflect.DeepEqual(resp.Depths, want) {
		t.Fatalf("expected depths %v, got %v", want, resp.Depths)
	}
}

func TestCycleUnits(t *testing.T) {
	imperial := func(t *testing.T) http.Handler {
		loop := &fakeLoop{system: units.Imperial}
		return api.New(api.Config{Loop: loop, System: units.Imperial, Logger: zaptest.NewLogger(t)}).Handler()
	}
	cases := []struct {
		name   string
		h      http.Handler
		body   string
		code   int
		checks map[string]float64
	}{
		{"metric request, imperial session", imperial(t), `{"pitch":1.27,"zEnd":-25.4,"units":"metric"}`, http.StatusCreated, map[string]float64{"Pitch": 0.05, "ZEnd": -1}},
		{"undeclared is session units", imperial(t), `{"pitch":0.05,"zEnd":-1}`, http.StatusCreated, map[string]float64{"Pitch": 0.05}},
		{"limit in session units", imperial(t), `{"pitch":5,"zEnd":-1}`, http.StatusUnprocessableEntity, nil},
		{"preset overridden in other units", newServer(t, &fakeLoop{}), `{"preset":"M6x1","pitch":0.04,"units":"imperial"}`, http.StatusCreated, map[string]float64{"Pitch": 1.016}},
	}
	for _, c := range cases {
		code, body, _ := serve(t, c.h, http.MethodPost, "/cycles/threading", c.body)
		if code != c.code {
			t.Errorf("%s: expected %d, got %d: %s", c.name, c.code, code, body)
			continue
		}
		if c.checks == nil {
			continue
		}
		var resp api.CycleResponse
		if err := json.Unmarshal(body, &resp); err != nil {
			t.Fatal(err)
		}
		for k, v := range c.checks {
			if resp.Fields[k] != v {
				t.Errorf("%s: %s expected %v, got %v", c.name, k, v, resp.Fields[k])
			}
		}
	}
}

func TestTools(t *testing.T) {
	table := tools.NewTable()
	if err := table.Set(2, tools.Tool{X: 0.5, Z: -1, Description: "parting"}); err != nil {
		t.Fatal(err)
	}
	h := api.New(api.Config{Loop: &fakeLoop{}, Tools: table, Logger: zaptest.NewLogger(t)}).Handler()
	code, body, _ := serve(t, h, http.MethodPut, "/tool", `{"index":2}`)
	if code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", code, body)
	}
	var resp api.ToolsResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		t.Fatal(err)
	}
	if resp.Current != 2 || len(resp.Tools) != tools.Count || resp.Tools[2].Description != "parting" {
		t.Fatalf("unexpected tools %+v", resp)
	}
	if off := table.CurrentToolOffset(); off.X != 0.5 || off.Z != -1 {
		t.Fatalf("tool not selected: %+v", off)
	}
}

func TestPresets(t *testing.T) {
	code, body, _ := serve(t, newServer(t, &fakeLoop{}), http.MethodGet, "/presets", "")
	if code != http.StatusOK {
		t.Fatalf("expected 200, got %d", code)
	}
	var resp api.PresetsResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		t.Fatal(err)
	}
	if len(resp.Threading) == 0 {
		t.Fatal("no threading presets listed")
	}
}

func TestMetrics(t *testing.T) {
	h := newServer(t, &fakeLoop{})
	serve(t, h, http.MethodGet, "/state", "")
	code, body, _ := serve(t, h, http.MethodGet, "/metrics", "")
	if code != http.StatusOK {
		t.Fatalf("expected 200, got %d", code)
	}
	for _, name := range []string{"lathe_control_ticks_total", `lathe_api_requests_total{code="200"}`} {
		if !bytes.Contains(body, []byte(name)) {
			t.Errorf("missing %s", name)
		}
	}
}
