// Package api exposes the match manager over HTTP/JSON, gRPC and WebSocket.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/xtding233/techrace-backend/internal/engine"
	"github.com/xtding233/techrace-backend/internal/match"
	"github.com/xtding233/techrace-backend/internal/rules"
	"github.com/xtding233/techrace-backend/internal/store"
)

// Games is the part of match.Manager the transports use.
type Games interface {
	CreateGame(ctx context.Context, req match.CreateRequest) (*store.Game, error)
	Submit(ctx context.Context, id string, team engine.Team, alloc *engine.Allocation) (engine.Budget, error)
	Validate(ctx context.Context, id string, team engine.Team, alloc *engine.Allocation) (engine.Budget, error)
	Open(ctx context.Context, id string) error
	Resolve(ctx context.Context, id string, force bool) (*engine.GameState, error)
	View(ctx context.Context, id string, role engine.Role) (*engine.GameState, error)
	Forecast(ctx context.Context, id string, team engine.Team, tier engine.Tier, n, trials int) (engine.Forecast, error)
	List(ctx context.Context, limit int) ([]store.Summary, error)
}

type errResp struct {
	Err      string            `json:"err"`
	Code     string            `json:"code,omitempty"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

type createReq struct {
	Scenario              string   `json:"scenario"`
	MaxRounds             *int     `json:"max_rounds,omitempty"`
	CarryFraction         *float64 `json:"carry_fraction,omitempty"`
	RequireAllSubmissions *bool    `json:"require_all_submissions,omitempty"`
	AnnounceDiscoveries   *bool    `json:"announce_discoveries,omitempty"`
}

type createResp struct {
	ID     string        `json:"id"`
	Config engine.Config `json:"config"`
	Status engine.Status `json:"status"`
	Round  int           `json:"round"`
}

type budgetResp struct {
	engine.Budget
	Remaining int `json:"remaining"`
}

type forecastReq struct {
	Tier   engine.Tier `json:"tier"`
	Dice   int         `json:"dice"`
	Trials int         `json:"trials"`
}

// Handler serves the REST API.
type Handler struct {
	games Games
	hub   *Hub
}

func NewHandler(g Games, hub *Hub) *Handler {
	return &Handler{games: g, hub: hub}
}

// Routes registers every endpoint on a new mux.
func (h *Handler) Routes() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /games", h.handleList)
	mux.HandleFunc("POST /games", h.handleCreate)
	mux.HandleFunc("GET /games/{id}", h.handleView)
	mux.HandleFunc("POST /games/{id}/teams/{team}/allocation", h.handleSubmit)
	mux.HandleFunc("POST /games/{id}/teams/{team}/validate", h.handleValidate)
	mux.HandleFunc("POST /games/{id}/teams/{team}/forecast", h.handleForecast)
	mux.HandleFunc("POST /games/{id}/open", h.handleOpen)
	mux.HandleFunc("POST /games/{id}/resolve", h.handleResolve)
	if h.hub != nil {
		mux.HandleFunc("GET /ws", func(w http.ResponseWriter, r *http.Request) { ServeWs(h.hub, w, r) })
	}
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	return mux
}

func parseInt(r *http.Request, key string) (int, bool, string) {
	s := r.URL.Query().Get(key)
	if s == "" {
		return 0, false, ""
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return 0, false, "invalid " + key
	}
	return v, true, ""
}

func parseBool(r *http.Request, key string) (bool, string) {
	s := r.URL.Query().Get(key)
	if s == "" {
		return false, ""
	}
	v, err := strconv.ParseBool(s)
	if err != nil {
		return false, "invalid " + key
	}
	return v, ""
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeErr(w http.ResponseWriter, err error) {
	resp := errResp{Err: err.Error()}
	var ee *engine.Error
	if errors.As(err, &ee) {
		resp.Err = ee.Message
		resp.Code = string(ee.Code)
		resp.Metadata = ee.Metadata
	}
	writeJSON(w, httpStatus(err), resp)
}

// httpStatus maps domain errors to HTTP status codes.
func httpStatus(err error) int {
	switch {
	case errors.Is(err, store.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, store.ErrConflict):
		return http.StatusConflict
	}
	switch engine.CodeOf(err) {
	case engine.CodeInvalidAllocation, engine.CodeInvalidConfig:
		return http.StatusBadRequest
	case engine.CodeUnknownTeam:
		return http.StatusNotFound
	case engine.CodeAlreadyResolved, engine.CodeIncompleteSubmissions, engine.CodePostMaxRounds:
		return http.StatusConflict
	case engine.CodeInvalidState:
		return http.StatusUnprocessableEntity
	}
	return http.StatusInternalServerError
}

func decode(w http.ResponseWriter, r *http.Request, v any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		writeJSON(w, http.StatusBadRequest, errResp{Err: "invalid body: " + err.Error()})
		return false
	}
	return true
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	limit, _, msg := parseInt(r, "limit")
	if msg != "" {
		http.Error(w, msg, http.StatusBadRequest)
		return
	}
	list, err := h.games.List(r.Context(), limit)
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

func (h *Handler) handleCreate(w http.ResponseWriter, r *http.Request) {
	var req createReq
	if r.ContentLength != 0 && !decode(w, r, &req) {
		return
	}
	g, err := h.games.CreateGame(r.Context(), match.CreateRequest{
		Scenario: req.Scenario,
		Overrides: rules.Overrides{
			MaxRounds:             req.MaxRounds,
			CarryFraction:         req.CarryFraction,
			RequireAllSubmissions: req.RequireAllSubmissions,
			AnnounceDiscoveries:   req.AnnounceDiscoveries,
		},
	})
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, createResp{ID: g.ID, Config: g.Config, Status: g.State.Status(), Round: g.State.Round})
}

func (h *Handler) handleView(w http.ResponseWriter, r *http.Request) {
	role := engine.Role(r.URL.Query().Get("role"))
	if role == "" {
		http.Error(w, "missing param role", http.StatusBadRequest)
		return
	}
	st, err := h.games.View(r.Context(), r.PathValue("id"), role)
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

func (h *Handler) handleSubmit(w http.ResponseWriter, r *http.Request) {
	var alloc engine.Allocation
	if !decode(w, r, &alloc) {
		return
	}
	b, err := h.games.Submit(r.Context(), r.PathValue("id"), engine.Team(r.PathValue("team")), &alloc)
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, budgetResp{Budget: b, Remaining: b.Remaining()})
}

func (h *Handler) handleValidate(w http.ResponseWriter, r *http.Request) {
	var alloc engine.Allocation
	if !decode(w, r, &alloc) {
		return
	}
	b, err := h.games.Validate(r.Context(), r.PathValue("id"), engine.Team(r.PathValue("team")), &alloc)
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, budgetResp{Budget: b, Remaining: b.Remaining()})
}

func (h *Handler) handleForecast(w http.ResponseWriter, r *http.Request) {
	var req forecastReq
	if !decode(w, r, &req) {
		return
	}
	f, err := h.games.Forecast(r.Context(), r.PathValue("id"), engine.Team(r.PathValue("team")), req.Tier, req.Dice, req.Trials)
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, f)
}

func (h *Handler) handleOpen(w http.ResponseWriter, r *http.Request) {
	if err := h.games.Open(r.Context(), r.PathValue("id")); err != nil {
		writeErr(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleResolve(w http.ResponseWriter, r *http.Request) {
	force, msg := parseBool(r, "force")
	if msg != "" {
		http.Error(w, msg, http.StatusBadRequest)
		return
	}
	st, err := h.games.Resolve(r.Context(), r.PathValue("id"), force)
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}
