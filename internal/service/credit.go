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
	"github.com/jackc/pgx/v5/pgtype"
)

// CreditLedger turns unpaid balances into customer credit (fiado) and takes
// repayments against it.
type CreditLedger struct {
	engine    *TabEngine
	customers Customers
}

// NewCreditLedger creates a new CreditLedger.
func NewCreditLedger(engine *TabEngine, customers Customers) *CreditLedger {
	return &CreditLedger{engine: engine, customers: customers}
}

// ConvertToCreditRequest is the input for moving a tab's balance to credit.
// CustomerID falls back to the tab's customer.
type ConvertToCreditRequest struct {
	TabID      uuid.UUID
	CustomerID *uuid.UUID
	CreatedBy  uuid.UUID
	DueDate    string // YYYY-MM-DD, optional
}

// CreditPaymentRequest is a repayment against a credit.
type CreditPaymentRequest struct {
	CreditID     uuid.UUID
	Amount       money.Money
	TenderMethod string
	ProcessedBy  uuid.UUID
}

// CreditResult is a credit with the tab it changed. Payment is set for
// repayments only.
type CreditResult struct {
	Credit  database.Credit
	Payment *database.Payment
	Tab     database.Tab
}

// ConvertToCredit moves the tab's outstanding balance onto the customer's
// credit. A tab carries at most one credit; converting again updates it.
func (c *CreditLedger) ConvertToCredit(ctx context.Context, req ConvertToCreditRequest) (*CreditResult, error) {
	dueDate, err := parseDueDate(req.DueDate)
	if err != nil {
		return nil, err
	}

	customerID, err := c.resolveCustomer(ctx, req)
	if err != nil {
		return nil, err
	}

	var credit database.Credit
	tab, err := c.engine.withTab(ctx, req.TabID, true, func(t *tabTx) error {
		switch t.tab.Status {
		case database.TabStatusFULLYPAID:
			return ErrTabAlreadyFullyPaid
		case database.TabStatusCANCELLED:
			return ErrTabTerminal
		}
		customer := customerID
		if req.CustomerID == nil && t.tab.CustomerID.Valid {
			customer = t.tab.CustomerID.Bytes
		}

		amount := Outstanding(t.tab)
		if !amount.IsPositive() {
			return ErrNoOutstandingBalance
		}

		t.tab.CustomerID = pgtype.UUID{Bytes: customer, Valid: true}
		if err := t.applyCredit(amount); err != nil {
			return err
		}

		existing, err := t.store.GetCreditByTab(ctx, t.tab.ID)
		switch {
		case errors.Is(err, pgx.ErrNoRows):
			credit, err = t.store.CreateCredit(ctx, database.CreateCreditParams{
				TabID:             t.tab.ID,
				CustomerID:        customer,
				OriginalAmount:    t.tab.CreditedAmount,
				OutstandingAmount: t.tab.CreditedAmount,
				DueDate:           dueDate,
				CreatedBy:         req.CreatedBy,
			})
			if err != nil {
				return dbErr("create credit", err)
			}
			t.emit(creditTransition(credit, t.tab, "", amount, t.e.now()))
			return nil
		case err != nil:
			return dbErr("get credit by tab", err)
		}

		if !dueDate.Valid {
			dueDate = existing.DueDate
		}
		credit, err = t.store.UpdateCredit(ctx, database.UpdateCreditParams{
			ID:                existing.ID,
			CustomerID:        customer,
			OriginalAmount:    t.tab.CreditedAmount,
			OutstandingAmount: t.tab.CreditedAmount,
			Status:            database.CreditStatusPENDING,
			DueDate:           dueDate,
		})
		if err != nil {
			return dbErr("update credit", err)
		}
		t.emit(creditTransition(credit, t.tab, existing.Status, amount, t.e.now()))
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &CreditResult{Credit: credit, Tab: tab}, nil
}

// resolveCustomer picks the customer for a conversion and checks it exists,
// before any lock is taken.
func (c *CreditLedger) resolveCustomer(ctx context.Context, req ConvertToCreditRequest) (uuid.UUID, error) {
	var id uuid.UUID
	if req.CustomerID != nil {
		id = *req.CustomerID
	} else {
		tab, err := c.engine.Get(ctx, req.TabID)
		if err != nil {
			return uuid.Nil, err
		}
		if !tab.CustomerID.Valid {
			return uuid.Nil, ErrCustomerRequired
		}
		id = tab.CustomerID.Bytes
	}

	exists, err := c.customers.CustomerExists(ctx, id)
	if err != nil {
		return uuid.Nil, dbErr("check customer", err)
	}
	if !exists {
		return uuid.Nil, ErrCustomerNotFound
	}
	return id, nil
}

// RegisterCreditPayment takes a repayment against a credit. The credit, a
// CREDIT_SETTLEMENT payment on the tab and the tab totals change together.
func (c *CreditLedger) RegisterCreditPayment(ctx context.Context, req CreditPaymentRequest) (*CreditResult, error) {
	if !req.Amount.IsPositive() {
		return nil, ErrNonPositiveAmount
	}
	tender, err := parseTender(req.TenderMethod)
	if err != nil {
		return nil, err
	}

	current, err := c.engine.queries.GetCredit(ctx, req.CreditID)
	if err != nil {
		return nil, notFound("get credit", err, ErrCreditNotFound)
	}

	var credit database.Credit
	var payment database.Payment
	tab, err := c.engine.withTab(ctx, current.TabID, true, func(t *tabTx) error {
		before, err := t.store.GetCredit(ctx, req.CreditID)
		if err != nil {
			return notFound("get credit", err, ErrCreditNotFound)
		}
		if before.Status == database.CreditStatusFULLYPAID || before.Status == database.CreditStatusCANCELLED {
			return ErrCreditAlreadySettled
		}
		if req.Amount.GreaterThan(before.OutstandingAmount) {
			return ErrAmountExceedsOutstanding
		}

		outstanding := before.OutstandingAmount.Sub(req.Amount)
		status := database.CreditStatusPARTIALLYPAID
		if outstanding.IsZero() {
			status = database.CreditStatusFULLYPAID
		}
		credit, err = t.store.UpdateCredit(ctx, database.UpdateCreditParams{
			ID:                before.ID,
			CustomerID:        before.CustomerID,
			OriginalAmount:    before.OriginalAmount,
			OutstandingAmount: outstanding,
			Status:            status,
			DueDate:           before.DueDate,
		})
		if err != nil {
			return dbErr("update credit", err)
		}

		payment, err = t.store.CreatePayment(ctx, database.CreatePaymentParams{
			TabID:        t.tab.ID,
			Amount:       req.Amount,
			Method:       database.PaymentMethodCREDITSETTLEMENT,
			TenderMethod: database.NullPaymentMethod{PaymentMethod: tender, Valid: true},
			CreditID:     pgtype.UUID{Bytes: credit.ID, Valid: true},
			ProcessedBy:  req.ProcessedBy,
		})
		if err != nil {
			return dbErr("create payment", err)
		}

		t.emit(creditTransition(credit, t.tab, before.Status, req.Amount, t.e.now()))
		t.emit(paymentTransition(payment, t.tab, "", event.Deltas{
			Paid:     req.Amount,
			Credited: req.Amount.Neg(),
		}, t.e.now()))
		return t.settleCredit(req.Amount)
	})
	if err != nil {
		return nil, err
	}
	return &CreditResult{Credit: credit, Payment: &payment, Tab: tab}, nil
}

// GetCredit returns a credit.
func (c *CreditLedger) GetCredit(ctx context.Context, creditID uuid.UUID) (database.Credit, error) {
	credit, err := c.engine.queries.GetCredit(ctx, creditID)
	if err != nil {
		return database.Credit{}, notFound("get credit", err, ErrCreditNotFound)
	}
	return credit, nil
}

// ListCreditsByCustomer returns a customer's credits, optionally filtered by
// status.
func (c *CreditLedger) ListCreditsByCustomer(ctx context.Context, customerID uuid.UUID, status string) ([]database.Credit, error) {
	var filter database.NullCreditStatus
	if status != "" {
		switch s := database.CreditStatus(status); s {
		case database.CreditStatusPENDING, database.CreditStatusPARTIALLYPAID,
			database.CreditStatusFULLYPAID, database.CreditStatusCANCELLED:
			filter = database.NullCreditStatus{CreditStatus: s, Valid: true}
		default:
			return nil, ErrInvalidStatus
		}
	}

	credits, err := c.engine.queries.ListCreditsByCustomer(ctx, database.ListCreditsByCustomerParams{
		CustomerID: customerID,
		Status:     filter,
	})
	if err != nil {
		return nil, dbErr("list credits", err)
	}
	return credits, nil
}

func parseDueDate(s string) (pgtype.Date, error) {
	if s == "" {
		return pgtype.Date{}, nil
	}
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		return pgtype.Date{}, ErrInvalidDueDate
	}
	return pgtype.Date{Time: t, Valid: true}, nil
}

func creditTransition(credit database.Credit, tab database.Tab, old database.CreditStatus, amount money.Money, at time.Time) event.Transition {
	return event.Transition{
		Kind:      event.KindCredit,
		ID:        credit.ID,
		TabID:     tab.ID,
		TableID:   tab.TableID,
		OldStatus: string(old),
		NewStatus: string(credit.Status),
		Amount:    amount,
		At:        at,
	}
}
