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

// CreditServicer defines the service methods needed by credit handlers.
// Satisfied by *service.CreditLedger.
type CreditServicer interface {
	ConvertToCredit(ctx context.Context, req service.ConvertToCreditRequest) (*service.CreditResult, error)
	RegisterCreditPayment(ctx context.Context, req service.CreditPaymentRequest) (*service.CreditResult, error)
	GetCredit(ctx context.Context, creditID uuid.UUID) (database.Credit, error)
	ListCreditsByCustomer(ctx context.Context, customerID uuid.UUID, status string) ([]database.Credit, error)
}

// CreditHandler handles fiado endpoints.
type CreditHandler struct {
	svc CreditServicer
}

// NewCreditHandler creates a new CreditHandler.
func NewCreditHandler(svc CreditServicer) *CreditHandler {
	return &CreditHandler{svc: svc}
}

// RegisterRoutes registers credit endpoints on the root router.
func (h *CreditHandler) RegisterRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(middleware.RequireRole(enum.CashierRoles...))
		r.Post("/tabs/{id}/credit", h.Convert)
		r.Get("/credits/{id}", h.Get)
		r.Post("/credits/{id}/payments", h.Repay)
		r.Get("/customers/{id}/credits", h.ListByCustomer)
	})
}

// --- Request / Response types ---

type convertToCreditRequest struct {
	CustomerID string `json:"customer_id"`
	DueDate    string `json:"due_date"`
}

type creditPaymentRequest struct {
	Amount       string `json:"amount"`
	TenderMethod string `json:"tender_method"`
}

type creditResultResponse struct {
	Credit  creditResponse   `json:"credit"`
	Payment *paymentResponse `json:"payment,omitempty"`
	Tab     tabResponse      `json:"tab"`
}

func toCreditResultResponse(res *service.CreditResult) creditResultResponse {
	resp := creditResultResponse{
		Credit: toCreditResponse(res.Credit),
		Tab:    toTabResponse(res.Tab),
	}
	if res.Payment != nil {
		p := toPaymentResponse(*res.Payment)
		resp.Payment = &p
	}
	return resp
}

// --- Handlers ---

// Convert handles POST /tabs/{id}/credit.
func (h *CreditHandler) Convert(w http.ResponseWriter, r *http.Request) {
	tabID, ok := urlUUID(w, r, "id", "tab ID")
	if !ok {
		return
	}

	var req convertToCreditRequest
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

	res, err := h.svc.ConvertToCredit(r.Context(), service.ConvertToCreditRequest{
		TabID:      tabID,
		CustomerID: customerID,
		CreatedBy:  middleware.StaffID(r.Context()),
		DueDate:    req.DueDate,
	})
	if err != nil {
		writeServiceError(w, "convert to credit", err)
		return
	}
	writeJSON(w, http.StatusCreated, toCreditResultResponse(res))
}

// Get handles GET /credits/{id}.
func (h *CreditHandler) Get(w http.ResponseWriter, r *http.Request) {
	creditID, ok := urlUUID(w, r, "id", "credit ID")
	if !ok {
		return
	}
	credit, err := h.svc.GetCredit(r.Context(), creditID)
	if err != nil {
		writeServiceError(w, "get credit", err)
		return
	}
	writeJSON(w, http.StatusOK, toCreditResponse(credit))
}

// Repay handles POST /credits/{id}/payments.
func (h *CreditHandler) Repay(w http.ResponseWriter, r *http.Request) {
	creditID, ok := urlUUID(w, r, "id", "credit ID")
	if !ok {
		return
	}

	var req creditPaymentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}
	amount, ok := parseAmount(w, req.Amount)
	if !ok {
		return
	}

	res, err := h.svc.RegisterCreditPayment(r.Context(), service.CreditPaymentRequest{
		CreditID:     creditID,
		Amount:       amount,
		TenderMethod: req.TenderMethod,
		ProcessedBy:  middleware.StaffID(r.Context()),
	})
	if err != nil {
		writeServiceError(w, "register credit payment", err)
		return
	}
	writeJSON(w, http.StatusCreated, toCreditResultResponse(res))
}

// ListByCustomer handles GET /customers/{id}/credits?status=PENDING.
func (h *CreditHandler) ListByCustomer(w http.ResponseWriter, r *http.Request) {
	customerID, ok := urlUUID(w, r, "id", "customer ID")
	if !ok {
		return
	}
	credits, err := h.svc.ListCreditsByCustomer(r.Context(), customerID, r.URL.Query().Get("status"))
	if err != nil {
		writeServiceError(w, "list credits", err)
		return
	}
	resp := make([]creditResponse, len(credits))
	for i, c := range credits {
		resp[i] = toCreditResponse(c)
	}
	writeJSON(w, http.StatusOK, resp)
}
