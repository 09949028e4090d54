package service

import (
	"context"
	"errors"
	"time"

	"github.com/comanda-pos/api/internal/database"
	"github.com/comanda-pos/api/internal/event"
	"github.com/comanda-pos/api/internal/money"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// PaymentProcessor records tenders against tabs.
type PaymentProcessor struct {
	engine *TabEngine
}

// NewPaymentProcessor creates a new PaymentProcessor.
func NewPaymentProcessor(engine *TabEngine) *PaymentProcessor {
	return &PaymentProcessor{engine: engine}
}

// RegisterPaymentRequest is the input for paying towards a tab.
type RegisterPaymentRequest struct {
	TabID          uuid.UUID
	Amount         money.Money
	Method         string
	ProcessedBy    uuid.UUID
	TransactionRef string
}

// PaymentResult is a payment with the tab it changed.
type PaymentResult struct {
	Payment database.Payment
	Tab     database.Tab
}

// parseTender accepts the methods a customer can pay with. CREDIT_SETTLEMENT
// is recorded by the credit ledger only.
func parseTender(s string) (database.PaymentMethod, error) {
	switch m := database.PaymentMethod(s); m {
	case database.PaymentMethodCASH,
		database.PaymentMethodCREDITCARD,
		database.PaymentMethodDEBITCARD,
		database.PaymentMethodPIX:
		return m, nil
	}
	return "", ErrInvalidPaymentMethod
}

// RegisterPayment records an approved payment and applies it to the tab in
// the same transaction. Paying more than is outstanding is accepted and
// flagged. Tabs carrying credit are paid through the credit ledger.
func (p *PaymentProcessor) RegisterPayment(ctx context.Context, req RegisterPaymentRequest) (*PaymentResult, error) {
	if !req.Amount.IsPositive() {
		return nil, ErrNonPositiveAmount
	}
	method, err := parseTender(req.Method)
	if err != nil {
		return nil, err
	}

	var payment database.Payment
	tab, err := p.engine.withTab(ctx, req.TabID, true, func(t *tabTx) error {
		if isTerminalTab(t.tab.Status) {
			return ErrTabTerminal
		}
		// The credited part is owed on the credit; a tender here may only
		// cover what is left outside it.
		if t.tab.CreditedAmount.IsPositive() && req.Amount.GreaterThan(Outstanding(t.tab)) {
			return ErrTabOnCredit
		}

		var err error
		payment, err = t.store.CreatePayment(ctx, database.CreatePaymentParams{
			TabID:          t.tab.ID,
			Amount:         req.Amount,
			Method:         method,
			TransactionRef: textOrNull(req.TransactionRef),
			ProcessedBy:    req.ProcessedBy,
		})
		if err != nil {
			return dbErr("create payment", err)
		}
		t.emit(paymentTransition(payment, t.tab, "", event.Deltas{Paid: payment.Amount}, t.e.now()))
		return t.applyPayment(payment.Amount)
	})
	if err != nil {
		return nil, err
	}
	return &PaymentResult{Payment: payment, Tab: tab}, nil
}

// ReversePayment voids an approved payment and takes it back out of the tab.
// A fully paid tab reopens and re-occupies its table.
func (p *PaymentProcessor) ReversePayment(ctx context.Context, paymentID, staffID uuid.UUID) (*PaymentResult, error) {
	current, err := p.engine.queries.GetPayment(ctx, paymentID)
	if err != nil {
		return nil, notFound("get payment", err, ErrPaymentNotFound)
	}

	var reversed database.Payment
	tab, err := p.engine.withTab(ctx, current.TabID, true, func(t *tabTx) error {
		payment, err := t.store.GetPayment(ctx, paymentID)
		if err != nil {
			return notFound("get payment", err, ErrPaymentNotFound)
		}
		switch {
		case payment.Status == database.PaymentStatusREVERSED:
			return ErrAlreadyReversed
		case payment.Status != database.PaymentStatusAPPROVED:
			return ErrPaymentNotApproved
		case payment.Method == database.PaymentMethodCREDITSETTLEMENT:
			return ErrSettlementNotReversible
		}

		reversed, err = t.store.ReversePayment(ctx, database.ReversePaymentParams{
			ID:         paymentID,
			ReversedBy: staffID,
		})
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrAlreadyReversed
		}
		if err != nil {
			return dbErr("reverse payment", err)
		}
		t.emit(paymentTransition(reversed, t.tab, payment.Status, event.Deltas{Paid: reversed.Amount.Neg()}, t.e.now()))
		return t.reversePayment(reversed.Amount)
	})
	if err != nil {
		return nil, err
	}
	return &PaymentResult{Payment: reversed, Tab: tab}, nil
}

// ListPayments returns a tab's payments, reversed ones included.
func (p *PaymentProcessor) ListPayments(ctx context.Context, tabID uuid.UUID) ([]database.Payment, error) {
	if _, err := p.engine.Get(ctx, tabID); err != nil {
		return nil, err
	}
	payments, err := p.engine.queries.ListPaymentsByTab(ctx, tabID)
	if err != nil {
		return nil, dbErr("list payments", err)
	}
	return payments, nil
}

func paymentTransition(payment database.Payment, tab database.Tab, old database.PaymentStatus, deltas event.Deltas, at time.Time) event.Transition {
	return event.Transition{
		Kind:      event.KindPayment,
		ID:        payment.ID,
		TabID:     tab.ID,
		TableID:   tab.TableID,
		OldStatus: string(old),
		NewStatus: string(payment.Status),
		Amount:    payment.Amount,
		Deltas:    deltas,
		At:        at,
	}
}
