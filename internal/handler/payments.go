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

// PaymentServicer defines the service methods needed by payment handlers.
// Satisfied by *service.PaymentProcessor.
type PaymentServicer interface {
	RegisterPayment(ctx context.Context, req service.RegisterPaymentRequest) (*service.PaymentResult, error)
	ReversePayment(ctx context.Context, paymentID, staffID uuid.UUID) (*service.PaymentResult, error)
	ListPayments(ctx context.Context, tabID uuid.UUID) ([]database.Payment, error)
}

// PaymentHandler handles payment endpoints.
type PaymentHandler struct {
	svc PaymentServicer
}

// NewPaymentHandler creates a new PaymentHandler.
func NewPaymentHandler(svc PaymentServicer) *PaymentHandler {
	return &PaymentHandler{svc: svc}
}

// RegisterRoutes registers payment endpoints on the root router.
func (h *PaymentHandler) RegisterRoutes(r chi.Router) {
	r.Get("/tabs/{id}/payments", h.List)

	r.Group(func(r chi.Router) {
		r.Use(middleware.RequireRole(enum.CashierRoles...))
		r.Post("/tabs/{id}/payments", h.Register)
		r.Post("/payments/{id}/reverse", h.Reverse)
	})
}

// --- Request / Response types ---

type registerPaymentRequest struct {
	Amount         string `json:"amount"`
	Method         string `json:"method"`
	TransactionRef string `json:"transaction_ref"`
}

type paymentResultResponse struct {
	Payment paymentResponse `json:"payment"`
	Tab     tabResponse     `json:"tab"`
}

// --- Handlers ---

// Register handles POST /tabs/{id}/payments.
func (h *PaymentHandler) Register(w http.ResponseWriter, r *http.Request) {
	tabID, ok := urlUUID(w, r, "id", "tab ID")
	if !ok {
		return
	}

	var req registerPaymentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}
	amount, ok := parseAmount(w, req.Amount)
	if !ok {
		return
	}

	res, err := h.svc.RegisterPayment(r.Context(), service.RegisterPaymentRequest{
		TabID:          tabID,
		Amount:         amount,
		Method:         req.Method,
		ProcessedBy:    middleware.StaffID(r.Context()),
		TransactionRef: req.TransactionRef,
	})
	if err != nil {
		writeServiceError(w, "register payment", err)
		return
	}
	writeJSON(w, http.StatusCreated, paymentResultResponse{
		Payment: toPaymentResponse(res.Payment),
		Tab:     toTabResponse(res.Tab),
	})
}

// Reverse handles POST /payments/{id}/reverse.
func (h *PaymentHandler) Reverse(w http.ResponseWriter, r *http.Request) {
	paymentID, ok := urlUUID(w, r, "id", "payment ID")
	if !ok {
		return
	}
	res, err := h.svc.ReversePayment(r.Context(), paymentID, middleware.StaffID(r.Context()))
	if err != nil {
		writeServiceError(w, "reverse payment", err)
		return
	}
	writeJSON(w, http.StatusOK, paymentResultResponse{
		Payment: toPaymentResponse(res.Payment),
		Tab:     toTabResponse(res.Tab),
	})
}

// List handles GET /tabs/{id}/payments.
func (h *PaymentHandler) List(w http.ResponseWriter, r *http.Request) {
	tabID, ok := urlUUID(w, r, "id", "tab ID")
	if !ok {
		return
	}
	payments, err := h.svc.ListPayments(r.Context(), tabID)
	if err != nil {
		writeServiceError(w, "list payments", err)
		return
	}
	resp := make([]paymentResponse, len(payments))
	for i, p := range payments {
		resp[i] = toPaymentResponse(p)
	}
	writeJSON(w, http.StatusOK, resp)
}
