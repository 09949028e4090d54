package handler

import (
	"context"
	"net/http"

	"github.com/comanda-pos/api/internal/database"
	"github.com/comanda-pos/api/internal/enum"
	"github.com/comanda-pos/api/internal/middleware"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

// TabServicer defines the service methods needed by tab handlers.
// Satisfied by *service.TabEngine.
type TabServicer interface {
	Get(ctx context.Context, tabID uuid.UUID) (database.Tab, error)
	Recompute(ctx context.Context, tabID uuid.UUID) (database.Tab, error)
	RequestClose(ctx context.Context, tabID uuid.UUID) (database.Tab, error)
	Cancel(ctx context.Context, tabID uuid.UUID) (database.Tab, error)
}

// TabHandler handles tab endpoints.
type TabHandler struct {
	svc TabServicer
}

// NewTabHandler creates a new TabHandler.
func NewTabHandler(svc TabServicer) *TabHandler {
	return &TabHandler{svc: svc}
}

// RegisterRoutes registers tab endpoints. Expected mount: /tabs
func (h *TabHandler) RegisterRoutes(r chi.Router) {
	r.Get("/{id}", h.Get)

	r.Group(func(r chi.Router) {
		r.Use(middleware.RequireRole(enum.FloorRoles...))
		r.Post("/{id}/recompute", h.Recompute)
		r.Post("/{id}/close-request", h.RequestClose)
	})

	r.With(middleware.RequireRole(enum.RoleManager)).Post("/{id}/cancel", h.Cancel)
}

// Get handles GET /tabs/{id}.
func (h *TabHandler) Get(w http.ResponseWriter, r *http.Request) {
	h.do(w, r, "get tab", h.svc.Get)
}

// Recompute handles POST /tabs/{id}/recompute.
func (h *TabHandler) Recompute(w http.ResponseWriter, r *http.Request) {
	h.do(w, r, "recompute tab", h.svc.Recompute)
}

// RequestClose handles POST /tabs/{id}/close-request.
func (h *TabHandler) RequestClose(w http.ResponseWriter, r *http.Request) {
	h.do(w, r, "request tab close", h.svc.RequestClose)
}

// Cancel handles POST /tabs/{id}/cancel.
func (h *TabHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	h.do(w, r, "cancel tab", h.svc.Cancel)
}

func (h *TabHandler) do(w http.ResponseWriter, r *http.Request, op string, fn func(context.Context, uuid.UUID) (database.Tab, error)) {
	id, ok := urlUUID(w, r, "id", "tab ID")
	if !ok {
		return
	}
	tab, err := fn(r.Context(), id)
	if err != nil {
		writeServiceError(w, op, err)
		return
	}
	writeJSON(w, http.StatusOK, toTabResponse(tab))
}
