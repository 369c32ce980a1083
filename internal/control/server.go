package control

import (
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

type Server struct {
	addr     string
	log      *zap.Logger
	registry Registry
	srv      *http.Server
	lis      net.Listener
}

// New builds a control server for registry. When gatherer is not nil its
// metrics are served on /metrics.
func New(addr string, registry Registry, gatherer prometheus.Gatherer, log *zap.Logger) *Server {
	s := &Server{
		addr:     addr,
		log:      log,
		registry: registry,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/api/publishers", s.handleStatuses)
	mux.HandleFunc("/api/publishers/{name}", s.handleStatus)
	mux.HandleFunc("/api/publishers/{name}/{action}", s.handleAction)
	if gatherer != nil {
		mux.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	}

	s.srv = &http.Server{
		Addr:    addr,
		Handler: mux,
	}

	return s
}

func (s *Server) Handler() http.Handler {
	return s.srv.Handler
}

func (s *Server) Start() error {
	s.log.Debug("Starting control server", zap.String("addr", s.addr))

	lis, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.addr, err)
	}
	s.lis = lis

	go func() {
		if err := s.srv.Serve(lis); err != nil && err != http.ErrServerClosed {
			s.log.Error("control server error", zap.Error(err))
		}
	}()

	return nil
}

func (s *Server) Stop() error {
	s.log.Debug("Stopping control server")
	return s.srv.Close()
}

// Addr is the listening address once started, the configured one before.
func (s *Server) Addr() string {
	if s.lis != nil {
		return s.lis.Addr().String()
	}
	return s.addr
}

func (s *Server) handleStatuses(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	writeJSON(w, http.StatusOK, s.registry.Statuses())
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	name := r.PathValue("name")
	status, ok := s.registry.Statuses()[name]
	if !ok {
		writeError(w, http.StatusNotFound, fmt.Sprintf("%s: %s", ErrUnknownPublisher, name))
		return
	}

	writeJSON(w, http.StatusOK, status)
}

func (s *Server) handleAction(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	name := r.PathValue("name")
	action, err := ParseAction(r.PathValue("action"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	state, err := s.registry.Apply(name, action)
	switch {
	case errors.Is(err, ErrUnknownPublisher):
		writeError(w, http.StatusNotFound, err.Error())
		return
	case err != nil:
		s.log.Error("failed to apply action", zap.String("publisher", name), zap.String("action", string(action)), zap.Error(err))
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	s.log.Info("applied publisher action",
		zap.String("publisher", name),
		zap.String("action", string(action)),
		zap.Stringer("state", state),
	)

	writeJSON(w, http.StatusOK, ActionResult{Status: "ok", State: state.String()})
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, ErrorResult{Error: msg})
}
