package service

import (
	"errors"
	"fmt"

	"github.com/comanda-pos/api/internal/tablock"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// Not found.
var (
	ErrTableNotFound   = errors.New("table not found")
	ErrTabNotFound     = errors.New("tab not found")
	ErrOrderNotFound   = errors.New("order not found")
	ErrItemNotFound    = errors.New("order item not found")
	ErrPaymentNotFound = errors.New("payment not found")
	ErrCreditNotFound  = errors.New("credit not found")
)

// Validation: rejected before any mutation.
var (
	ErrInvalidTable         = errors.New("table number and positive capacity are required")
	ErrEmptyItems           = errors.New("items are required")
	ErrInvalidOrderType     = errors.New("invalid order_type")
	ErrInvalidQuantity      = errors.New("quantity must be > 0")
	ErrInvalidProductID     = errors.New("invalid product_id")
	ErrProductNotFound      = errors.New("product not found")
	ErrProductUnavailable   = errors.New("product is not available")
	ErrInvalidStatus        = errors.New("invalid status")
	ErrNonPositiveAmount    = errors.New("amount must be > 0")
	ErrInvalidPaymentMethod = errors.New("invalid payment method")
	ErrCustomerRequired     = errors.New("a customer is required for credit")
	ErrCustomerNotFound     = errors.New("customer not found")
	ErrInvalidDueDate       = errors.New("invalid due_date, use YYYY-MM-DD")
	ErrAmountTooLarge       = errors.New("amount exceeds the largest storable value")
)

// State conflicts: the caller's view is stale.
var (
	ErrTableNumberTaken         = errors.New("table number already exists")
	ErrAlreadyOccupied          = errors.New("table already has an open tab")
	ErrTableUnavailable         = errors.New("table is out of service")
	ErrTabNotSettled            = errors.New("table has an unsettled tab")
	ErrTabNotOpen               = errors.New("tab is not accepting orders")
	ErrTabTerminal              = errors.New("tab is already settled or cancelled")
	ErrAlreadyTerminal          = errors.New("tab is already fully paid or cancelled")
	ErrAlreadyClosed            = errors.New("tab close was already requested")
	ErrCannotCancelSettledTab   = errors.New("only an open tab without payments or credit can be cancelled")
	ErrTerminalOrder            = errors.New("order is delivered or cancelled")
	ErrOrderNotOpen             = errors.New("items can only be added while the order is received")
	ErrInvalidTransition        = errors.New("invalid status transition")
	ErrItemDelivered            = errors.New("item was already delivered")
	ErrItemCancelled            = errors.New("item is already cancelled")
	ErrAlreadyReversed          = errors.New("payment is already reversed")
	ErrPaymentNotApproved       = errors.New("payment is not approved")
	ErrSettlementNotReversible  = errors.New("credit settlement payments cannot be reversed")
	ErrTableReoccupied          = errors.New("table has been reassigned since the tab was settled")
	ErrTabAlreadyFullyPaid      = errors.New("tab is already fully paid")
	ErrNoOutstandingBalance     = errors.New("tab has no outstanding balance")
	ErrAmountExceedsOutstanding = errors.New("amount exceeds the credit outstanding balance")
	ErrCreditAlreadySettled     = errors.New("credit is already settled")
	ErrTabOnCredit              = errors.New("tab balance is on credit, repay it through the credit")
)

// ErrBusy means a tab or table lock could not be taken in time. Retry.
var ErrBusy = tablock.ErrBusy

// errLedgerMismatch guards invariants that only a bug can break.
var errLedgerMismatch = errors.New("ledger mismatch")

// IsNotFound reports whether err names a missing entity.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrTableNotFound) ||
		errors.Is(err, ErrTabNotFound) ||
		errors.Is(err, ErrOrderNotFound) ||
		errors.Is(err, ErrItemNotFound) ||
		errors.Is(err, ErrPaymentNotFound) ||
		errors.Is(err, ErrCreditNotFound)
}

// IsValidation reports whether err is a rejected input.
func IsValidation(err error) bool {
	return errors.Is(err, ErrInvalidTable) ||
		errors.Is(err, ErrEmptyItems) ||
		errors.Is(err, ErrInvalidOrderType) ||
		errors.Is(err, ErrInvalidQuantity) ||
		errors.Is(err, ErrInvalidProductID) ||
		errors.Is(err, ErrProductNotFound) ||
		errors.Is(err, ErrProductUnavailable) ||
		errors.Is(err, ErrInvalidStatus) ||
		errors.Is(err, ErrNonPositiveAmount) ||
		errors.Is(err, ErrInvalidPaymentMethod) ||
		errors.Is(err, ErrCustomerRequired) ||
		errors.Is(err, ErrCustomerNotFound) ||
		errors.Is(err, ErrInvalidDueDate) ||
		errors.Is(err, ErrAmountTooLarge)
}

// IsConflict reports whether err is a state conflict.
func IsConflict(err error) bool {
	for _, target := range []error{
		ErrTableNumberTaken, ErrAlreadyOccupied, ErrTableUnavailable, ErrTabNotSettled,
		ErrTabNotOpen, ErrTabTerminal, ErrAlreadyTerminal, ErrAlreadyClosed,
		ErrCannotCancelSettledTab, ErrTerminalOrder, ErrOrderNotOpen, ErrInvalidTransition,
		ErrItemDelivered, ErrItemCancelled, ErrAlreadyReversed, ErrPaymentNotApproved,
		ErrSettlementNotReversible, ErrTableReoccupied, ErrTabAlreadyFullyPaid,
		ErrNoOutstandingBalance, ErrAmountExceedsOutstanding, ErrCreditAlreadySettled,
		ErrTabOnCredit,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

// IsRetryable reports whether the operation may succeed if simply retried.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrBusy)
}

// dbErr wraps a store error with op and folds lock timeouts, deadlocks and
// serialization failures into ErrBusy.
func dbErr(op string, err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "55P03", "40P01", "40001":
			return fmt.Errorf("%s: %w (%s)", op, ErrBusy, pgErr.Message)
		}
	}
	return fmt.Errorf("%s: %w", op, err)
}

// notFound maps pgx.ErrNoRows to sentinel and wraps anything else.
func notFound(op string, err error, sentinel error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return sentinel
	}
	return dbErr(op, err)
}

// isUniqueViolation checks for pg error 23505 on the named constraint.
func isUniqueViolation(err error, constraint string) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505" && pgErr.ConstraintName == constraint
	}
	return false
}
