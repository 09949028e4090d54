package handler

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/comanda-pos/api/internal/database"
	"github.com/comanda-pos/api/internal/enum"
	"github.com/comanda-pos/api/internal/middleware"
	"github.com/comanda-pos/api/internal/service"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

// OrderServicer defines the service methods needed by order handlers.
// Satisfied by *service.OrderLedger; narrow interface for testability.
type OrderServicer interface {
	CreateOrder(ctx context.Context, req service.CreateOrderRequest) (*service.OrderResult, error)
	UpdateOrderStatus(ctx context.Context, orderID uuid.UUID, status string) (database.Order, error)
	AddItem(ctx context.Context, orderID uuid.UUID, req service.CreateOrderItemRequest) (database.OrderItem, error)
	RemoveItem(ctx context.Context, itemID uuid.UUID) (database.OrderItem, error)
	UpdateItemStatus(ctx context.Context, itemID uuid.UUID, status string) (database.OrderItem, error)
	GetOrder(ctx context.Context, orderID uuid.UUID) (*service.OrderResult, error)
	ListOrders(ctx context.Context, tabID uuid.UUID) ([]database.Order, error)
}

// OrderHandler handles order endpoints.
type OrderHandler struct {
	svc OrderServicer
}

// NewOrderHandler creates a new OrderHandler.
func NewOrderHandler(svc OrderServicer) *OrderHandler {
	return &OrderHandler{svc: svc}
}

// RegisterRoutes registers order endpoints on the root router, since they
// hang off both /tabs and /orders.
func (h *OrderHandler) RegisterRoutes(r chi.Router) {
	r.Get("/tabs/{id}/orders", h.List)
	r.Get("/orders/{id}", h.Get)

	r.Group(func(r chi.Router) {
		r.Use(middleware.RequireRole(enum.FloorRoles...))
		r.Post("/tabs/{id}/orders", h.Create)
		r.Post("/orders/{id}/items", h.AddItem)
		r.Delete("/orders/{id}/items/{itemId}", h.RemoveItem)
	})

	r.Group(func(r chi.Router) {
		r.Use(middleware.RequireRole(enum.KitchenRoles...))
		r.Patch("/orders/{id}/status", h.UpdateStatus)
		r.Patch("/orders/{id}/items/{itemId}/status", h.UpdateItemStatus)
	})
}

// --- Request types ---

type createOrderRequest struct {
	OrderType string                   `json:"order_type"`
	Notes     string                   `json:"notes"`
	Items     []createOrderItemRequest `json:"items"`
}

type createOrderItemRequest struct {
	ProductID string `json:"product_id"`
	Quantity  int32  `json:"quantity"`
	Notes     string `json:"notes"`
}

type statusRequest struct {
	Status string `json:"status"`
}

func (req createOrderItemRequest) toService() service.CreateOrderItemRequest {
	return service.CreateOrderItemRequest{
		ProductID: req.ProductID,
		Quantity:  req.Quantity,
		Notes:     req.Notes,
	}
}

// --- Handlers ---

// Create handles POST /tabs/{id}/orders.
func (h *OrderHandler) Create(w http.ResponseWriter, r *http.Request) {
	tabID, ok := urlUUID(w, r, "id", "tab ID")
	if !ok {
		return
	}

	var req createOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}
	if req.OrderType == "" {
		req.OrderType = string(database.OrderTypeINTABLE)
	}

	items := make([]service.CreateOrderItemRequest, len(req.Items))
	for i, it := range req.Items {
		items[i] = it.toService()
	}

	res, err := h.svc.CreateOrder(r.Context(), service.CreateOrderRequest{
		TabID:     tabID,
		CreatedBy: middleware.StaffID(r.Context()),
		OrderType: req.OrderType,
		Notes:     req.Notes,
		Items:     items,
	})
	if err != nil {
		writeServiceError(w, "create order", err)
		return
	}
	writeJSON(w, http.StatusCreated, toOrderResponse(res.Order, res.Items))
}

// List handles GET /tabs/{id}/orders.
func (h *OrderHandler) List(w http.ResponseWriter, r *http.Request) {
	tabID, ok := urlUUID(w, r, "id", "tab ID")
	if !ok {
		return
	}
	orders, err := h.svc.ListOrders(r.Context(), tabID)
	if err != nil {
		writeServiceError(w, "list orders", err)
		return
	}
	resp := make([]orderResponse, len(orders))
	for i, o := range orders {
		resp[i] = toOrderResponse(o, nil)
	}
	writeJSON(w, http.StatusOK, resp)
}

// Get handles GET /orders/{id}.
func (h *OrderHandler) Get(w http.ResponseWriter, r *http.Request) {
	orderID, ok := urlUUID(w, r, "id", "order ID")
	if !ok {
		return
	}
	res, err := h.svc.GetOrder(r.Context(), orderID)
	if err != nil {
		writeServiceError(w, "get order", err)
		return
	}
	writeJSON(w, http.StatusOK, toOrderResponse(res.Order, res.Items))
}

// UpdateStatus handles PATCH /orders/{id}/status.
func (h *OrderHandler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	orderID, ok := urlUUID(w, r, "id", "order ID")
	if !ok {
		return
	}
	var req statusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}
	order, err := h.svc.UpdateOrderStatus(r.Context(), orderID, req.Status)
	if err != nil {
		writeServiceError(w, "update order status", err)
		return
	}
	writeJSON(w, http.StatusOK, toOrderResponse(order, nil))
}

// AddItem handles POST /orders/{id}/items.
func (h *OrderHandler) AddItem(w http.ResponseWriter, r *http.Request) {
	orderID, ok := urlUUID(w, r, "id", "order ID")
	if !ok {
		return
	}
	var req createOrderItemRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}
	item, err := h.svc.AddItem(r.Context(), orderID, req.toService())
	if err != nil {
		writeServiceError(w, "add order item", err)
		return
	}
	writeJSON(w, http.StatusCreated, toOrderItemResponse(item))
}

// RemoveItem handles DELETE /orders/{id}/items/{itemId}. The item is
// cancelled, not deleted.
func (h *OrderHandler) RemoveItem(w http.ResponseWriter, r *http.Request) {
	itemID, ok := h.itemOfOrder(w, r)
	if !ok {
		return
	}
	item, err := h.svc.RemoveItem(r.Context(), itemID)
	if err != nil {
		writeServiceError(w, "remove order item", err)
		return
	}
	writeJSON(w, http.StatusOK, toOrderItemResponse(item))
}

// UpdateItemStatus handles PATCH /orders/{id}/items/{itemId}/status.
func (h *OrderHandler) UpdateItemStatus(w http.ResponseWriter, r *http.Request) {
	itemID, ok := h.itemOfOrder(w, r)
	if !ok {
		return
	}
	var req statusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}
	item, err := h.svc.UpdateItemStatus(r.Context(), itemID, req.Status)
	if err != nil {
		writeServiceError(w, "update order item status", err)
		return
	}
	writeJSON(w, http.StatusOK, toOrderItemResponse(item))
}

// itemOfOrder resolves the {itemId} path parameter and checks that it belongs
// to {id}.
func (h *OrderHandler) itemOfOrder(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	orderID, ok := urlUUID(w, r, "id", "order ID")
	if !ok {
		return uuid.Nil, false
	}
	itemID, ok := urlUUID(w, r, "itemId", "item ID")
	if !ok {
		return uuid.Nil, false
	}
	res, err := h.svc.GetOrder(r.Context(), orderID)
	if err != nil {
		writeServiceError(w, "get order", err)
		return uuid.Nil, false
	}
	for _, it := range res.Items {
		if it.ID == itemID {
			return itemID, true
		}
	}
	writeJSON(w, http.StatusNotFound, map[string]string{"error": service.ErrItemNotFound.Error()})
	return uuid.Nil, false
}
