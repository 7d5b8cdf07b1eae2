package middleware_test

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/jt05610/lathe/middleware"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestLogging(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	h := middleware.Logging(zap.New(core), http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/bad" {
			http.Error(w, "bad", http.StatusBadRequest)
		}
	}))

	cases := []struct {
		path  string
		id    string
		level string
	}{
		{"/ok", "abc", "debug"},
		{"/bad", "", "warn"},
	}
	for i, c := range cases {
		r := httptest.NewRequest(http.MethodGet, c.path, nil)
		if c.id != "" {
			r.Header.Set(middleware.RequestID, c.id)
		}
		w := httptest.NewRecorder()
		h.ServeHTTP(w, r)
		id := w.Header().Get(middleware.RequestID)
		if id == "" || (c.id != "" && id != c.id) {
			t.Errorf("%d: unexpected request id %q", i, id)
		}
		entries := logs.TakeAll()
		if len(entries) != 1 || entries[0].Level.String() != c.level {
			t.Fatalf("%d: unexpected log entries %+v", i, entries)
		}
	}
}
