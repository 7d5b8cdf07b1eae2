package linuxcnc_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/jt05610/lathe/axis"
	"github.com/jt05610/lathe/cycle"
	"github.com/jt05610/lathe/linuxcnc"
	"github.com/jt05610/lathe/units"
	"go.uber.org/zap/zaptest"
)

func ptr(v float64) *float64 {
	return &v
}

func TestExecute(t *testing.T) {
	var path string
	var body map[string]interface{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPut {
			http.Error(w, "method", http.StatusMethodNotAllowed)
			return
		}
		path = r.URL.Path
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		_, _ = w.Write([]byte("{}"))
	}))
	defer srv.Close()

	in := &cycle.TurningInput{Target: ptr(4), ZEnd: ptr(-12)}
	p, err := in.Generate(axis.Position{X: 5, Z: 0.5})
	if err != nil {
		t.Fatal(err)
	}
	c := linuxcnc.New(srv.URL, nil, zaptest.NewLogger(t))
	if err := c.Execute(context.Background(), p); err != nil {
		t.Fatal(err)
	}
	if path != "/linuxcnc/turning" {
		t.Fatalf("unexpected path %s", path)
	}
	if len(body) != len(p.Fields()) {
		t.Fatalf("expected %d keys, got %v", len(p.Fields()), body)
	}
	if body["Stock"] != 5.0 || body["XReturn"] != 4.0 || body["ZLead"] != 2.0 {
		t.Fatalf("unexpected body %v", body)
	}
	if _, ok := body["Roughing"]; ok {
		t.Fatal("pass counts leaked onto the wire")
	}
}

func TestExecuteFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "busy", http.StatusConflict)
	}))
	defer srv.Close()
	in := &cycle.ThreadingInput{Pitch: ptr(1), ZEnd: ptr(-5)}
	p, err := in.Generate(axis.Position{}, units.Metric)
	if err != nil {
		t.Fatal(err)
	}
	if err := linuxcnc.New(srv.URL, nil, nil).Execute(context.Background(), p); err == nil {
		t.Fatal("expected error")
	}
}
