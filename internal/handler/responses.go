package handler

import (
	"time"

	"github.com/comanda-pos/api/internal/database"
	"github.com/comanda-pos/api/internal/service"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
)

type tableResponse struct {
	ID          uuid.UUID `json:"id"`
	Number      string    `json:"number"`
	Capacity    int32     `json:"capacity"`
	Status      string    `json:"status"`
	CustomerID  *string   `json:"customer_id"`
	StaffID     *string   `json:"staff_id"`
	AccessToken string    `json:"access_token,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

type tabResponse struct {
	ID               uuid.UUID  `json:"id"`
	TableID          uuid.UUID  `json:"table_id"`
	CustomerID       *string    `json:"customer_id"`
	Status           string     `json:"status"`
	TotalAmount      string     `json:"total_amount"`
	PaidAmount       string     `json:"paid_amount"`
	CreditedAmount   string     `json:"credited_amount"`
	Outstanding      string     `json:"outstanding"`
	CloseRequestedAt *time.Time `json:"close_requested_at"`
	CreatedAt        time.Time  `json:"created_at"`
	UpdatedAt        time.Time  `json:"updated_at"`
}

type orderResponse struct {
	ID        uuid.UUID           `json:"id"`
	TabID     uuid.UUID           `json:"tab_id"`
	OrderType string              `json:"order_type"`
	Status    string              `json:"status"`
	Notes     *string             `json:"notes"`
	CreatedBy uuid.UUID           `json:"created_by"`
	CreatedAt time.Time           `json:"created_at"`
	UpdatedAt time.Time           `json:"updated_at"`
	Items     []orderItemResponse `json:"items,omitempty"`
}

type orderItemResponse struct {
	ID        uuid.UUID `json:"id"`
	OrderID   uuid.UUID `json:"order_id"`
	ProductID uuid.UUID `json:"product_id"`
	Quantity  int32     `json:"quantity"`
	UnitPrice string    `json:"unit_price"`
	Subtotal  string    `json:"subtotal"`
	Notes     *string   `json:"notes"`
	Status    string    `json:"status"`
}

type paymentResponse struct {
	ID             uuid.UUID  `json:"id"`
	TabID          uuid.UUID  `json:"tab_id"`
	Amount         string     `json:"amount"`
	Method         string     `json:"method"`
	TenderMethod   *string    `json:"tender_method"`
	Status         string     `json:"status"`
	CreditID       *string    `json:"credit_id"`
	TransactionRef *string    `json:"transaction_ref"`
	ProcessedBy    uuid.UUID  `json:"processed_by"`
	ReversedBy     *string    `json:"reversed_by"`
	ReversedAt     *time.Time `json:"reversed_at"`
	CreatedAt      time.Time  `json:"created_at"`
}

type creditResponse struct {
	ID                uuid.UUID `json:"id"`
	TabID             uuid.UUID `json:"tab_id"`
	CustomerID        uuid.UUID `json:"customer_id"`
	OriginalAmount    string    `json:"original_amount"`
	OutstandingAmount string    `json:"outstanding_amount"`
	Status            string    `json:"status"`
	DueDate           *string   `json:"due_date"`
	CreatedBy         uuid.UUID `json:"created_by"`
	CreatedAt         time.Time `json:"created_at"`
	UpdatedAt         time.Time `json:"updated_at"`
}

// --- Converters ---

func toTableResponse(t database.Table) tableResponse {
	return tableResponse{
		ID:          t.ID,
		Number:      t.Number,
		Capacity:    t.Capacity,
		Status:      string(t.Status),
		CustomerID:  optUUID(t.CustomerID),
		StaffID:     optUUID(t.StaffID),
		AccessToken: t.AccessToken,
		CreatedAt:   t.CreatedAt,
		UpdatedAt:   t.UpdatedAt,
	}
}

// toPublicTableResponse omits the access token.
func toPublicTableResponse(t database.Table) tableResponse {
	resp := toTableResponse(t)
	resp.AccessToken = ""
	resp.CustomerID = nil
	resp.StaffID = nil
	return resp
}

func toTabResponse(t database.Tab) tabResponse {
	return tabResponse{
		ID:               t.ID,
		TableID:          t.TableID,
		CustomerID:       optUUID(t.CustomerID),
		Status:           string(t.Status),
		TotalAmount:      t.TotalAmount.String(),
		PaidAmount:       t.PaidAmount.String(),
		CreditedAmount:   t.CreditedAmount.String(),
		Outstanding:      service.Outstanding(t).String(),
		CloseRequestedAt: optTime(t.CloseRequestedAt),
		CreatedAt:        t.CreatedAt,
		UpdatedAt:        t.UpdatedAt,
	}
}

func toOrderResponse(o database.Order, items []database.OrderItem) orderResponse {
	resp := orderResponse{
		ID:        o.ID,
		TabID:     o.TabID,
		OrderType: string(o.OrderType),
		Status:    string(o.Status),
		Notes:     optText(o.Notes),
		CreatedBy: o.CreatedBy,
		CreatedAt: o.CreatedAt,
		UpdatedAt: o.UpdatedAt,
	}
	for _, it := range items {
		resp.Items = append(resp.Items, toOrderItemResponse(it))
	}
	return resp
}

func toOrderItemResponse(it database.OrderItem) orderItemResponse {
	return orderItemResponse{
		ID:        it.ID,
		OrderID:   it.OrderID,
		ProductID: it.ProductID,
		Quantity:  it.Quantity,
		UnitPrice: it.UnitPrice.String(),
		Subtotal:  it.Subtotal.String(),
		Notes:     optText(it.Notes),
		Status:    string(it.Status),
	}
}

func toPaymentResponse(p database.Payment) paymentResponse {
	resp := paymentResponse{
		ID:             p.ID,
		TabID:          p.TabID,
		Amount:         p.Amount.String(),
		Method:         string(p.Method),
		Status:         string(p.Status),
		CreditID:       optUUID(p.CreditID),
		TransactionRef: optText(p.TransactionRef),
		ProcessedBy:    p.ProcessedBy,
		ReversedBy:     optUUID(p.ReversedBy),
		ReversedAt:     optTime(p.ReversedAt),
		CreatedAt:      p.CreatedAt,
	}
	if p.TenderMethod.Valid {
		s := string(p.TenderMethod.PaymentMethod)
		resp.TenderMethod = &s
	}
	return resp
}

func toCreditResponse(c database.Credit) creditResponse {
	resp := creditResponse{
		ID:                c.ID,
		TabID:             c.TabID,
		CustomerID:        c.CustomerID,
		OriginalAmount:    c.OriginalAmount.String(),
		OutstandingAmount: c.OutstandingAmount.String(),
		Status:            string(c.Status),
		CreatedBy:         c.CreatedBy,
		CreatedAt:         c.CreatedAt,
		UpdatedAt:         c.UpdatedAt,
	}
	if c.DueDate.Valid {
		s := c.DueDate.Time.Format("2006-01-02")
		resp.DueDate = &s
	}
	return resp
}

func optUUID(u pgtype.UUID) *string {
	if !u.Valid {
		return nil
	}
	s := uuid.UUID(u.Bytes).String()
	return &s
}

func optText(t pgtype.Text) *string {
	if !t.Valid {
		return nil
	}
	return &t.String
}

func optTime(t pgtype.Timestamptz) *time.Time {
	if !t.Valid {
		return nil
	}
	return &t.Time
}
