// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/okian/openrpg/internal/adapters/repository"
	service "github.com/okian/openrpg/internal/app"
	"github.com/okian/openrpg/internal/domain/dice"
	"github.com/okian/openrpg/internal/domain/model"
	"github.com/okian/openrpg/internal/domain/sheet"
	"github.com/okian/openrpg/internal/domain/types"
	"github.com/okian/openrpg/pkg/logger"
)

// Dependencies required by HTTP handlers. Using an interface bundle keeps
// the handler layer loosely coupled to implementations in other packages.
type Dependencies interface {
	// WriteChange persists a field write and publishes it.
	WriteChange(ctx context.Context, ch model.Change) (any, error)
	// Snapshot returns every stored field of a resource.
	Snapshot(ctx context.Context, resourceID string) (map[string]any, error)
	// Subscriber opens change streams for /ws.
	Subscriber() sheet.Subscriber

	Roll(ctx context.Context, req dice.Request) (dice.Roll, error)
	RollCharacteristic(ctx context.Context, value int, modifier *int, standalone bool) (dice.Roll, error)
	RollSkills(ctx context.Context, skills []sheet.Skill) ([]sheet.SkillOutcome, error)
}

// Server wires HTTP routes for the sheet API.
type Server struct {
	healthHandler *HealthHandler
	statsHandler  *StatsHandler
	sheetHandler  *SheetHandler
	diceHandler   *DiceHandler
	wsHandler     *WSHandler
}

// NewServer creates a new API server with all handlers.
func NewServer(deps Dependencies, statsProvider StatsProvider, opts ...WSOption) *Server {
	return &Server{
		healthHandler: NewHealthHandler(),
		statsHandler:  NewStatsHandler(statsProvider),
		sheetHandler:  NewSheetHandler(deps),
		diceHandler:   NewDiceHandler(deps),
		wsHandler:     NewWSHandler(deps, opts...),
	}
}

// Register attaches all HTTP routes to mux.
func (s *Server) Register(_ context.Context, mux *http.ServeMux) {
	mux.HandleFunc("/healthz", MetricsMiddleware(s.healthHandler.HandleHealth, "healthz"))
	mux.HandleFunc("/stats", MetricsMiddleware(s.statsHandler.HandleStats, "stats"))
	mux.HandleFunc("/sheet/field", MetricsMiddleware(s.sheetHandler.HandlePostField, "sheet_field"))
	mux.HandleFunc("/sheet/", MetricsMiddleware(s.sheetHandler.HandleGetSheet, "sheet"))
	mux.HandleFunc("/dice", MetricsMiddleware(s.diceHandler.HandleRoll, "dice"))
	mux.HandleFunc("/dice/characteristic", MetricsMiddleware(s.diceHandler.HandleCharacteristic, "dice_characteristic"))
	mux.HandleFunc("/dice/skills", MetricsMiddleware(s.diceHandler.HandleSkills, "dice_skills"))
	mux.HandleFunc("/ws", MetricsMiddleware(s.wsHandler.HandleWS, "ws"))
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code string, err error) {
	msg := http.StatusText(status)
	if err != nil {
		msg = err.Error()
	}
	writeJSON(w, status, types.Error{Code: code, Message: msg})
}

// writeServiceError maps service and storage errors to status codes.
func writeServiceError(ctx context.Context, w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, repository.ErrInvalidField),
		errors.Is(err, repository.ErrInvalidValue),
		errors.Is(err, service.ErrInvalidRequest),
		errors.Is(err, dice.ErrInvalidSpec):
		writeError(w, http.StatusBadRequest, "invalid_request", err)
	case errors.Is(err, repository.ErrNotFound):
		writeError(w, http.StatusNotFound, "not_found", err)
	case errors.Is(err, service.ErrNotStarted), errors.Is(err, repository.ErrBusy):
		writeError(w, http.StatusServiceUnavailable, "unavailable", err)
	default:
		logger.Get().Named("api").Error(ctx, "request failed", logger.Error(err))
		writeError(w, http.StatusInternalServerError, "internal", err)
	}
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(v); err != nil {
		return errors.Join(ErrBadRequest, err)
	}
	return nil
}

const maxBodyBytes = 1 << 20
