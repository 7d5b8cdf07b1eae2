package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strings"

	"github.com/jt05610/lathe/axis"
	"github.com/jt05610/lathe/control"
	"github.com/jt05610/lathe/cycle"
	"github.com/jt05610/lathe/feed"
	"github.com/jt05610/lathe/jog"
	"github.com/jt05610/lathe/tools"
	"github.com/jt05610/lathe/units"
)

// Methods dispatches a path's requests by HTTP method. Any other method gets
// 405 with the allowed ones listed; OPTIONS gets only the list.
type Methods map[string]http.Handler

func (h Methods) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	defer func(r io.ReadCloser) {
		_, _ = io.Copy(io.Discard, r)
		_ = r.Close()
	}(r.Body)

	handler, ok := h[r.Method]
	switch {
	case ok && handler != nil:
		handler.ServeHTTP(w, r)
	case ok:
		writeError(w, http.StatusInternalServerError, "no handler for "+r.Method)
	case r.Method == http.MethodOptions:
		w.Header().Set("Allow", h.allowed())
		w.WriteHeader(http.StatusNoContent)
	default:
		w.Header().Set("Allow", h.allowed())
		writeError(w, http.StatusMethodNotAllowed, r.Method+" not allowed on "+r.URL.Path)
	}
}

func (h Methods) allowed() string {
	methods := make([]string, 0, len(h))
	for m := range h {
		methods = append(methods, m)
	}
	sort.Strings(methods)
	return strings.Join(methods, ", ")
}

var errBadBody = errors.New("bad request body")

func badBody(err error) error {
	return fmt.Errorf("%w: %v", errBadBody, err)
}

func DecodeJSON(r io.Reader, v interface{}) error {
	dec := json.NewDecoder(r)
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}

func EncodeJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	return enc.Encode(v)
}

// ErrorResponse is the body of every failed request.
type ErrorResponse struct {
	Errors []string `json:"errors"`
}

func writeJSON(w http.ResponseWriter, code int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = EncodeJSON(w, v)
}

func writeError(w http.ResponseWriter, code int, msgs ...string) {
	writeJSON(w, code, ErrorResponse{Errors: msgs})
}

var badRequest = []error{
	axis.ErrUnknownAxis,
	feed.ErrUnknownMode,
	feed.ErrUnknownDirection,
	jog.ErrUnknownDirection,
	control.ErrUnknownMenu,
	control.ErrInvalidPitch,
	cycle.ErrUnknownKind,
	units.ErrUnknownSystem,
	errBadBody,
}

var conflict = []error{
	control.ErrNotRunning,
	control.ErrNoSample,
	control.ErrProgramRunning,
	control.ErrHardwareFaulted,
}

func isAny(err error, targets []error) bool {
	for _, t := range targets {
		if errors.Is(err, t) {
			return true
		}
	}
	return false
}

// status maps an error from the loop, the cycle generator or the tool table
// to a response code.
func status(err error) int {
	switch {
	case cycle.Messages(err) != nil:
		return http.StatusUnprocessableEntity
	case isAny(err, badRequest):
		return http.StatusBadRequest
	case isAny(err, conflict):
		return http.StatusConflict
	case errors.Is(err, cycle.ErrPresetNotFound), errors.Is(err, tools.ErrNoSuchTool):
		return http.StatusNotFound
	case errors.Is(err, control.ErrNoExecutor):
		return http.StatusServiceUnavailable
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	}
	return http.StatusInternalServerError
}

func fail(w http.ResponseWriter, err error) {
	if msgs := cycle.Messages(err); msgs != nil {
		writeError(w, http.StatusUnprocessableEntity, msgs...)
		return
	}
	writeError(w, status(err), err.Error())
}
