package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/comanda-pos/api/internal/database"
	"github.com/comanda-pos/api/internal/enum"
	"github.com/comanda-pos/api/internal/middleware"
	"github.com/comanda-pos/api/internal/service"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

// TableServicer defines the service methods needed by table handlers.
// Satisfied by *service.TableRegistry.
type TableServicer interface {
	CreateTable(ctx context.Context, req service.CreateTableRequest) (database.Table, error)
	Open(ctx context.Context, req service.OpenTableRequest) (database.Table, database.Tab, error)
	Close(ctx context.Context, tableID uuid.UUID) (database.Table, error)
	SetStatus(ctx context.Context, tableID uuid.UUID, status string) (database.Table, error)
	Get(ctx context.Context, tableID uuid.UUID) (database.Table, error)
	List(ctx context.Context) ([]database.Table, error)
	GetByAccessToken(ctx context.Context, token string) (database.Table, error)
}

// ActiveTabFinder looks up a table's running tab. Satisfied by *service.TabEngine.
type ActiveTabFinder interface {
	ActiveForTable(ctx context.Context, tableID uuid.UUID) (database.Tab, error)
}

// TableHandler handles table endpoints.
type TableHandler struct {
	svc  TableServicer
	tabs ActiveTabFinder
}

// NewTableHandler creates a new TableHandler.
func NewTableHandler(svc TableServicer, tabs ActiveTabFinder) *TableHandler {
	return &TableHandler{svc: svc, tabs: tabs}
}

// RegisterRoutes registers table endpoints. Expected mount: /tables
func (h *TableHandler) RegisterRoutes(r chi.Router) {
	r.Get("/", h.List)
	r.Get("/{id}", h.Get)
	r.Get("/{id}/tab", h.ActiveTab)

	r.Group(func(r chi.Router) {
		r.Use(middleware.RequireRole(enum.RoleManager))
		r.Post("/", h.Create)
		r.Patch("/{id}/status", h.SetStatus)
	})

	r.Group(func(r chi.Router) {
		r.Use(middleware.RequireRole(enum.FloorRoles...))
		r.Post("/{id}/open", h.Open)
		r.Post("/{id}/close", h.Close)
	})
}

// RegisterPublicRoutes registers the QR lookup. Expected mount: /public/tables
func (h *TableHandler) RegisterPublicRoutes(r chi.Router) {
	r.Get("/{token}", h.GetByToken)
}

// --- Request / Response types ---

type createTableRequest struct {
	Number   string `json:"number"`
	Capacity int32  `json:"capacity"`
}

type openTableRequest struct {
	CustomerID string `json:"customer_id"`
}

type tableStatusRequest struct {
	Status string `json:"status"`
}

type openTableResponse struct {
	Table tableResponse `json:"table"`
	Tab   tabResponse   `json:"tab"`
}

type occupiedResponse struct {
	Error string      `json:"error"`
	Tab   tabResponse `json:"tab"`
}

type publicTableResponse struct {
	Table tableResponse `json:"table"`
	Tab   *tabResponse  `json:"tab"`
}

// --- Handlers ---

// Create handles POST /tables.
func (h *TableHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req createTableRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	table, err := h.svc.CreateTable(r.Context(), service.CreateTableRequest{
		Number:   req.Number,
		Capacity: req.Capacity,
	})
	if err != nil {
		writeServiceError(w, "create table", err)
		return
	}
	writeJSON(w, http.StatusCreated, toTableResponse(table))
}

// List handles GET /tables.
func (h *TableHandler) List(w http.ResponseWriter, r *http.Request) {
	tables, err := h.svc.List(r.Context())
	if err != nil {
		writeServiceError(w, "list tables", err)
		return
	}
	resp := make([]tableResponse, len(tables))
	for i, t := range tables {
		resp[i] = toTableResponse(t)
	}
	writeJSON(w, http.StatusOK, resp)
}

// Get handles GET /tables/{id}.
func (h *TableHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := urlUUID(w, r, "id", "table ID")
	if !ok {
		return
	}
	table, err := h.svc.Get(r.Context(), id)
	if err != nil {
		writeServiceError(w, "get table", err)
		return
	}
	writeJSON(w, http.StatusOK, toTableResponse(table))
}

// ActiveTab handles GET /tables/{id}/tab.
func (h *TableHandler) ActiveTab(w http.ResponseWriter, r *http.Request) {
	id, ok := urlUUID(w, r, "id", "table ID")
	if !ok {
		return
	}
	tab, err := h.tabs.ActiveForTable(r.Context(), id)
	if err != nil {
		writeServiceError(w, "get active tab", err)
		return
	}
	writeJSON(w, http.StatusOK, toTabResponse(tab))
}

// Open handles POST /tables/{id}/open. An occupied table answers 409 with its
// running tab.
func (h *TableHandler) Open(w http.ResponseWriter, r *http.Request) {
	id, ok := urlUUID(w, r, "id", "table ID")
	if !ok {
		return
	}

	var req openTableRequest
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
			return
		}
	}
	customerID, err := optionalUUID(req.CustomerID)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid customer_id"})
		return
	}

	staffID := middleware.StaffID(r.Context())
	table, tab, err := h.svc.Open(r.Context(), service.OpenTableRequest{
		TableID:    id,
		CustomerID: customerID,
		StaffID:    &staffID,
	})
	if errors.Is(err, service.ErrAlreadyOccupied) {
		writeJSON(w, http.StatusConflict, occupiedResponse{Error: err.Error(), Tab: toTabResponse(tab)})
		return
	}
	if err != nil {
		writeServiceError(w, "open table", err)
		return
	}
	writeJSON(w, http.StatusCreated, openTableResponse{Table: toTableResponse(table), Tab: toTabResponse(tab)})
}

// Close handles POST /tables/{id}/close.
func (h *TableHandler) Close(w http.ResponseWriter, r *http.Request) {
	id, ok := urlUUID(w, r, "id", "table ID")
	if !ok {
		return
	}
	table, err := h.svc.Close(r.Context(), id)
	if err != nil {
		writeServiceError(w, "close table", err)
		return
	}
	writeJSON(w, http.StatusOK, toTableResponse(table))
}

// SetStatus handles PATCH /tables/{id}/status.
func (h *TableHandler) SetStatus(w http.ResponseWriter, r *http.Request) {
	id, ok := urlUUID(w, r, "id", "table ID")
	if !ok {
		return
	}
	var req tableStatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}
	table, err := h.svc.SetStatus(r.Context(), id, req.Status)
	if err != nil {
		writeServiceError(w, "set table status", err)
		return
	}
	writeJSON(w, http.StatusOK, toTableResponse(table))
}

// GetByToken handles GET /public/tables/{token}, the customer's QR page.
func (h *TableHandler) GetByToken(w http.ResponseWriter, r *http.Request) {
	table, err := h.svc.GetByAccessToken(r.Context(), chi.URLParam(r, "token"))
	if err != nil {
		writeServiceError(w, "get table by token", err)
		return
	}

	resp := publicTableResponse{Table: toPublicTableResponse(table)}
	tab, err := h.tabs.ActiveForTable(r.Context(), table.ID)
	switch {
	case err == nil:
		t := toTabResponse(tab)
		resp.Tab = &t
	case !errors.Is(err, service.ErrTabNotFound):
		writeServiceError(w, "get active tab", err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}
