package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/thatsimonsguy/climate-controller/internal/runner"
	"github.com/thatsimonsguy/climate-controller/internal/thermostat"
)

const (
	requestTimeout = 5 * time.Second
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
)

// Climate is the slice of the runner the API needs.
type Climate interface {
	Snapshot(ctx context.Context) (thermostat.State, error)
	Control(ctx context.Context, call thermostat.Call) (thermostat.State, error)
	Traits() thermostat.Traits
	Subscribe() (<-chan thermostat.State, func())
}

type Server struct {
	climate Climate
}

type ClimateResponse struct {
	State  thermostat.State  `json:"state"`
	Traits thermostat.Traits `json:"traits"`
}

type AwayRequest struct {
	Away *bool `json:"away"`
}

type ErrorResponse struct {
	Error string `json:"error"`
}

func NewServer(climate Climate) *Server {
	return &Server{climate: climate}
}

// Router builds the route table. It is separate from Start so tests can mount it.
func (s *Server) Router() http.Handler {
	r := mux.NewRouter()
	r.HandleFunc("/api/climate", s.getClimate).Methods(http.MethodGet)
	r.HandleFunc("/api/climate", s.controlClimate).Methods(http.MethodPut)
	r.HandleFunc("/api/climate/away", s.setAway).Methods(http.MethodPut)
	r.HandleFunc("/api/climate/traits", s.getTraits).Methods(http.MethodGet)
	r.HandleFunc("/api/climate/ws", s.streamClimate).Methods(http.MethodGet)

	return handlers.CORS(
		handlers.AllowedOrigins([]string{"*"}),
		handlers.AllowedMethods([]string{http.MethodGet, http.MethodPut, http.MethodOptions}),
		handlers.AllowedHeaders([]string{"Content-Type", "Authorization"}),
	)(r)
}

// Start serves the API until ctx is cancelled.
func (s *Server) Start(ctx context.Context, port int) error {
	addr := fmt.Sprintf("0.0.0.0:%d", port)
	srv := &http.Server{
		Addr:              addr,
		Handler:           handlers.LoggingHandler(log.Logger, s.Router()),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), requestTimeout)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	log.Info().Str("address", addr).Msg("Starting REST API server")
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) getClimate(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()

	state, err := s.climate.Snapshot(ctx)
	if err != nil {
		log.Error().Err(err).Msg("Failed to read climate state")
		s.writeError(w, http.StatusServiceUnavailable, err.Error())
		return
	}
	s.writeJSON(w, http.StatusOK, ClimateResponse{State: state, Traits: s.climate.Traits()})
}

func (s *Server) getTraits(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, s.climate.Traits())
}

func (s *Server) controlClimate(w http.ResponseWriter, r *http.Request) {
	var call thermostat.Call
	if err := json.NewDecoder(r.Body).Decode(&call); err != nil {
		s.writeError(w, http.StatusBadRequest, "Invalid JSON payload")
		return
	}
	if call.Empty() {
		s.writeError(w, http.StatusBadRequest, "Request changes nothing")
		return
	}
	s.apply(w, r, call)
}

func (s *Server) setAway(w http.ResponseWriter, r *http.Request) {
	var req AwayRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Away == nil {
		s.writeError(w, http.StatusBadRequest, "Invalid JSON payload, expected {\"away\": true|false}")
		return
	}
	s.apply(w, r, thermostat.Call{Away: req.Away})
}

func (s *Server) apply(w http.ResponseWriter, r *http.Request, call thermostat.Call) {
	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()

	state, err := s.climate.Control(ctx, call)
	if err != nil {
		if errors.Is(err, runner.ErrInvalidRequest) {
			s.writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		log.Error().Err(err).Msg("Failed to apply climate request")
		s.writeError(w, http.StatusServiceUnavailable, err.Error())
		return
	}

	log.Info().Str("mode", string(state.Mode)).Str("action", string(state.Action)).Msg("Climate updated via API")
	s.writeJSON(w, http.StatusOK, state)
}

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// streamClimate sends the current state, then every state change until the
// client goes away or the runner stops.
func (s *Server) streamClimate(w http.ResponseWriter, r *http.Request) {
	states, unsubscribe := s.climate.Subscribe()
	defer unsubscribe()

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Warn().Err(err).Msg("Websocket upgrade failed")
		return
	}
	defer conn.Close()

	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	current, err := s.climate.Snapshot(ctx)
	cancel()
	if err != nil {
		return
	}
	if err := writeState(conn, current); err != nil {
		return
	}

	conn.SetReadLimit(512)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	// Drain client frames so pongs and close frames are processed.
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ping := time.NewTicker(pingPeriod)
	defer ping.Stop()

	for {
		select {
		case <-done:
			return
		case st, ok := <-states:
			if !ok {
				_ = conn.WriteControl(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseGoingAway, "shutting down"),
					time.Now().Add(writeWait))
				return
			}
			if err := writeState(conn, st); err != nil {
				log.Debug().Err(err).Msg("Websocket write failed")
				return
			}
		case <-ping.C:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func writeState(conn *websocket.Conn, state thermostat.State) error {
	_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
	return conn.WriteJSON(state)
}

func (s *Server) writeJSON(w http.ResponseWriter, statusCode int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(data)
}

func (s *Server) writeError(w http.ResponseWriter, statusCode int, message string) {
	s.writeJSON(w, statusCode, ErrorResponse{Error: message})
}
