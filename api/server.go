// Package api is the operator surface of the control loop over HTTP. Every
// handler turns one request into one intent or cycle dispatch; none of them
// touch loop state directly.
package api

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/jt05610/lathe/axis"
	"github.com/jt05610/lathe/control"
	"github.com/jt05610/lathe/cycle"
	"github.com/jt05610/lathe/feed"
	"github.com/jt05610/lathe/jog"
	"github.com/jt05610/lathe/metrics"
	"github.com/jt05610/lathe/middleware"
	"github.com/jt05610/lathe/tools"
	"github.com/jt05610/lathe/units"
	"go.uber.org/zap"
)

// Controller is the part of the control loop the API drives.
type Controller interface {
	Snapshot() control.Snapshot
	Do(ctx context.Context, i control.Intent) error
	Thread(ctx context.Context, in *cycle.ThreadingInput) (*cycle.ThreadingParams, error)
	Turn(ctx context.Context, in *cycle.TurningInput) (*cycle.TurningParams, error)
}

var _ Controller = (*control.Loop)(nil)

const serverShutdown = 5 * time.Second

type Server struct {
	loop    Controller
	tools   *tools.Table
	presets *cycle.Library
	system  units.System
	logger  *zap.Logger
}

type Config struct {
	Loop    Controller
	Tools   *tools.Table
	Presets *cycle.Library
	System  units.System
	Logger  *zap.Logger
}

func New(cfg Config) *Server {
	if cfg.Tools == nil {
		cfg.Tools = tools.NewTable()
	}
	if cfg.Presets == nil {
		cfg.Presets = cycle.DefaultLibrary()
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	return &Server{
		loop:    cfg.Loop,
		tools:   cfg.Tools,
		presets: cfg.Presets,
		system:  cfg.System,
		logger:  cfg.Logger,
	}
}

func (s *Server) Mux() *http.ServeMux {
	mux := http.NewServeMux()
	mux.Handle("/state", Methods{http.MethodGet: http.HandlerFunc(s.GetStateHandler)})
	mux.Handle("/axes/zero", Methods{http.MethodPost: http.HandlerFunc(s.PostZeroHandler)})
	mux.Handle("/axes/", Methods{http.MethodPut: http.HandlerFunc(s.PutAxisHandler)})
	mux.Handle("/offsets/", Methods{http.MethodPut: http.HandlerFunc(s.PutOffsetHandler)})
	mux.Handle("/feed", Methods{http.MethodPut: http.HandlerFunc(s.PutFeedHandler)})
	mux.Handle("/direction", Methods{http.MethodPut: http.HandlerFunc(s.PutDirectionHandler)})
	mux.Handle("/pitch/", Methods{http.MethodPut: http.HandlerFunc(s.PutPitchHandler)})
	mux.Handle("/menu", Methods{http.MethodPut: http.HandlerFunc(s.PutMenuHandler)})
	mux.Handle("/jog/", Methods{
		http.MethodPost:   http.HandlerFunc(s.PostJogHandler),
		http.MethodDelete: http.HandlerFunc(s.DeleteJogHandler),
	})
	mux.Handle("/cycles/", Methods{http.MethodPost: http.HandlerFunc(s.PostCycleHandler)})
	mux.Handle("/tools", Methods{http.MethodGet: http.HandlerFunc(s.GetToolsHandler)})
	mux.Handle("/tool", Methods{http.MethodPut: http.HandlerFunc(s.PutToolHandler)})
	mux.Handle("/presets", Methods{http.MethodGet: http.HandlerFunc(s.GetPresetsHandler)})
	mux.Handle("/metrics", Methods{http.MethodGet: metrics.Handler()})
	return mux
}

// Handler is the mux with request logging.
func (s *Server) Handler() http.Handler {
	return middleware.Logging(s.logger, s.Mux())
}

// ListenAndServe serves until ctx ends, then shuts the listener down.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{Addr: addr, Handler: s.Handler()}
	errs := make(chan error, 1)
	go func() {
		errs <- srv.ListenAndServe()
	}()
	s.logger.Info("Serving operator API", zap.String("addr", addr))
	select {
	case err := <-errs:
		return err
	case <-ctx.Done():
	}
	shutdown, cancel := context.WithTimeout(context.Background(), serverShutdown)
	defer cancel()
	if err := srv.Shutdown(shutdown); err != nil {
		return err
	}
	return nil
}

func (s *Server) do(w http.ResponseWriter, r *http.Request, i control.Intent) {
	if err := s.loop.Do(r.Context(), i); err != nil {
		fail(w, err)
		return
	}
	s.GetStateHandler(w, r)
}

func (s *Server) GetStateHandler(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.loop.Snapshot())
}

func (s *Server) PostZeroHandler(w http.ResponseWriter, r *http.Request) {
	s.do(w, r, control.Zero{})
}

type ValueRequest struct {
	Value *float64 `json:"value"`
}

func decodeValue(w http.ResponseWriter, r *http.Request) (float64, bool) {
	var req ValueRequest
	if err := DecodeJSON(r.Body, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return 0, false
	}
	if req.Value == nil {
		writeError(w, http.StatusBadRequest, "missing value")
		return 0, false
	}
	return *req.Value, true
}

// pathAxis parses the axis named by the last path segment after prefix.
func pathAxis(w http.ResponseWriter, r *http.Request, prefix string) (axis.Axis, bool) {
	a, err := axis.Parse(strings.TrimPrefix(r.URL.Path, prefix))
	if err != nil {
		fail(w, err)
		return axis.X, false
	}
	return a, true
}

func (s *Server) PutAxisHandler(w http.ResponseWriter, r *http.Request) {
	a, ok := pathAxis(w, r, "/axes/")
	if !ok {
		return
	}
	v, ok := decodeValue(w, r)
	if !ok {
		return
	}
	s.do(w, r, control.SetAxis{Axis: a, Value: v})
}

func (s *Server) PutOffsetHandler(w http.ResponseWriter, r *http.Request) {
	a, ok := pathAxis(w, r, "/offsets/")
	if !ok {
		return
	}
	v, ok := decodeValue(w, r)
	if !ok {
		return
	}
	s.do(w, r, control.SetOffset{Axis: a, Value: v})
}

func (s *Server) PutPitchHandler(w http.ResponseWriter, r *http.Request) {
	a, ok := pathAxis(w, r, "/pitch/")
	if !ok {
		return
	}
	v, ok := decodeValue(w, r)
	if !ok {
		return
	}
	s.do(w, r, control.SetPitch{Axis: a, Value: v})
}

// ModeRequest selects a feed mode or direction. Directions may be sent under
// either key.
type ModeRequest struct {
	Mode      string `json:"mode,omitempty"`
	Direction string `json:"direction,omitempty"`
}

func (s *Server) PutFeedHandler(w http.ResponseWriter, r *http.Request) {
	var req ModeRequest
	if err := DecodeJSON(r.Body, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	m, err := feed.ParseMode(req.Mode)
	if err != nil {
		fail(w, err)
		return
	}
	s.do(w, r, control.SelectFeed{Mode: m})
}

func (s *Server) PutDirectionHandler(w http.ResponseWriter, r *http.Request) {
	var req ModeRequest
	if err := DecodeJSON(r.Body, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	name := req.Direction
	if name == "" {
		name = req.Mode
	}
	d, err := feed.ParseDirection(name)
	if err != nil {
		fail(w, err)
		return
	}
	s.do(w, r, control.SelectDirection{Direction: d})
}

type MenuRequest struct {
	Menu control.Menu `json:"menu"`
}

func (s *Server) PutMenuHandler(w http.ResponseWriter, r *http.Request) {
	var req MenuRequest
	if err := DecodeJSON(r.Body, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	s.do(w, r, control.SelectMenu{Menu: req.Menu})
}

func pathJog(w http.ResponseWriter, r *http.Request) (jog.Direction, bool) {
	d, err := jog.ParseDirection(strings.TrimPrefix(r.URL.Path, "/jog/"))
	if err != nil {
		fail(w, err)
		return jog.Up, false
	}
	return d, true
}

func (s *Server) PostJogHandler(w http.ResponseWriter, r *http.Request) {
	if d, ok := pathJog(w, r); ok {
		s.do(w, r, control.JogPress{Direction: d})
	}
}

func (s *Server) DeleteJogHandler(w http.ResponseWriter, r *http.Request) {
	if d, ok := pathJog(w, r); ok {
		s.do(w, r, control.JogRelease{Direction: d})
	}
}

// CycleResponse is the record handed to the executor. Depths is the
// cumulative cut depth after each planned pass, for cycles that plan them.
type CycleResponse struct {
	Kind   string                 `json:"kind"`
	Passes int                    `json:"passes"`
	Depths []float64              `json:"depths,omitempty"`
	Fields map[string]interface{} `json:"fields"`
}

func respond(p cycle.Params) CycleResponse {
	resp := CycleResponse{Kind: p.Kind().String(), Passes: p.Passes(), Fields: p.Fields()}
	if s, ok := p.(cycle.Scheduled); ok {
		resp.Depths = s.Depths()
	}
	return resp
}

// PostCycleHandler generates and dispatches a cycle. A request naming a preset
// starts from the preset's values and any field it carries overrides them.
// Request lengths are in the units it declares, the session's when it
// declares none.
func (s *Server) PostCycleHandler(w http.ResponseWriter, r *http.Request) {
	kind, err := cycle.ParseKind(strings.TrimPrefix(r.URL.Path, "/cycles/"))
	if err != nil {
		fail(w, err)
		return
	}
	var p cycle.Params
	switch kind {
	case cycle.Threading:
		p, err = s.thread(r)
	case cycle.Turning:
		p, err = s.turn(r)
	}
	if err != nil {
		fail(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, respond(p))
}

func (s *Server) thread(r *http.Request) (cycle.Params, error) {
	req := &cycle.ThreadingInput{}
	if err := DecodeJSON(r.Body, req); err != nil {
		return nil, badBody(err)
	}
	preset := req.Preset
	if err := req.ConvertTo(s.system); err != nil {
		return nil, err
	}
	in := req
	if preset != "" {
		base, err := s.threadingPreset(preset)
		if err != nil {
			return nil, err
		}
		base.Merge(req)
		in = base
	}
	return s.loop.Thread(r.Context(), in)
}

func (s *Server) turn(r *http.Request) (cycle.Params, error) {
	req := &cycle.TurningInput{}
	if err := DecodeJSON(r.Body, req); err != nil {
		return nil, badBody(err)
	}
	preset := req.Preset
	if err := req.ConvertTo(s.system); err != nil {
		return nil, err
	}
	in := req
	if preset != "" {
		base, err := s.turningPreset(preset)
		if err != nil {
			return nil, err
		}
		base.Merge(req)
		in = base
	}
	return s.loop.Turn(r.Context(), in)
}

func (s *Server) threadingPreset(name string) (*cycle.ThreadingInput, error) {
	p, err := s.presets.ThreadingPreset(name)
	if err != nil {
		return nil, err
	}
	return p.Apply(s.system)
}

func (s *Server) turningPreset(name string) (*cycle.TurningInput, error) {
	p, err := s.presets.TurningPreset(name)
	if err != nil {
		return nil, err
	}
	return p.Apply(s.system)
}

type ToolsResponse struct {
	Current int          `json:"current"`
	Tools   []tools.Tool `json:"tools"`
}

func (s *Server) GetToolsHandler(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, ToolsResponse{Current: s.tools.Current(), Tools: s.tools.Tools()})
}

type ToolRequest struct {
	Index *int `json:"index"`
}

// PutToolHandler selects the active tool. The loop reads the new offset on
// its next sample.
func (s *Server) PutToolHandler(w http.ResponseWriter, r *http.Request) {
	var req ToolRequest
	if err := DecodeJSON(r.Body, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.Index == nil {
		writeError(w, http.StatusBadRequest, "missing index")
		return
	}
	if err := s.tools.Select(*req.Index); err != nil {
		fail(w, err)
		return
	}
	s.logger.Info("Selected tool", zap.Int("index", *req.Index))
	s.GetToolsHandler(w, r)
}

type PresetsResponse struct {
	Threading []string `json:"threading"`
	Turning   []string `json:"turning"`
}

func (s *Server) GetPresetsHandler(w http.ResponseWriter, _ *http.Request) {
	resp := PresetsResponse{Threading: []string{}, Turning: []string{}}
	for _, p := range s.presets.Threading {
		resp.Threading = append(resp.Threading, p.Name)
	}
	for _, p := range s.presets.Turning {
		resp.Turning = append(resp.Turning, p.Name)
	}
	writeJSON(w, http.StatusOK, resp)
}
