package database

import (
	"context"

	"github.com/comanda-pos/api/internal/money"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
)

const createPayment = `-- name: CreatePayment :one
INSERT INTO payments (tab_id, amount, method, tender_method, credit_id, transaction_ref, processed_by)
VALUES ($1, $2, $3, $4, $5, $6, $7)
RETURNING id, tab_id, amount, method, tender_method, status, credit_id, transaction_ref, processed_by, reversed_by, reversed_at, created_at
`

type CreatePaymentParams struct {
	TabID          uuid.UUID         `json:"tab_id"`
	Amount         money.Money       `json:"amount"`
	Method         PaymentMethod     `json:"method"`
	TenderMethod   NullPaymentMethod `json:"tender_method"`
	CreditID       pgtype.UUID       `json:"credit_id"`
	TransactionRef pgtype.Text       `json:"transaction_ref"`
	ProcessedBy    uuid.UUID         `json:"processed_by"`
}

func (q *Queries) CreatePayment(ctx context.Context, arg CreatePaymentParams) (Payment, error) {
	row := q.db.QueryRow(ctx, createPayment,
		arg.TabID,
		arg.Amount,
		arg.Method,
		arg.TenderMethod,
		arg.CreditID,
		arg.TransactionRef,
		arg.ProcessedBy,
	)
	var i Payment
	err := row.Scan(
		&i.ID,
		&i.TabID,
		&i.Amount,
		&i.Method,
		&i.TenderMethod,
		&i.Status,
		&i.CreditID,
		&i.TransactionRef,
		&i.ProcessedBy,
		&i.ReversedBy,
		&i.ReversedAt,
		&i.CreatedAt,
	)
	return i, err
}

const getPayment = `-- name: GetPayment :one
SELECT id, tab_id, amount, method, tender_method, status, credit_id, transaction_ref, processed_by, reversed_by, reversed_at, created_at FROM payments
WHERE id = $1
`

func (q *Queries) GetPayment(ctx context.Context, id uuid.UUID) (Payment, error) {
	row := q.db.QueryRow(ctx, getPayment, id)
	var i Payment
	err := row.Scan(
		&i.ID,
		&i.TabID,
		&i.Amount,
		&i.Method,
		&i.TenderMethod,
		&i.Status,
		&i.CreditID,
		&i.TransactionRef,
		&i.ProcessedBy,
		&i.ReversedBy,
		&i.ReversedAt,
		&i.CreatedAt,
	)
	return i, err
}

const listPaymentsByTab = `-- name: ListPaymentsByTab :many
SELECT id, tab_id, amount, method, tender_method, status, credit_id, transaction_ref, processed_by, reversed_by, reversed_at, created_at FROM payments
WHERE tab_id = $1
ORDER BY created_at, id
`

func (q *Queries) ListPaymentsByTab(ctx context.Context, tabID uuid.UUID) ([]Payment, error) {
	rows, err := q.db.Query(ctx, listPaymentsByTab, tabID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	items := []Payment{}
	for rows.Next() {
		var i Payment
		if err := rows.Scan(
			&i.ID,
			&i.TabID,
			&i.Amount,
			&i.Method,
			&i.TenderMethod,
			&i.Status,
			&i.CreditID,
			&i.TransactionRef,
			&i.ProcessedBy,
			&i.ReversedBy,
			&i.ReversedAt,
			&i.CreatedAt,
		); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const reversePayment = `-- name: ReversePayment :one
UPDATE payments
SET status = 'REVERSED', reversed_by = $2, reversed_at = now()
WHERE id = $1 AND status = 'APPROVED'
RETURNING id, tab_id, amount, method, tender_method, status, credit_id, transaction_ref, processed_by, reversed_by, reversed_at, created_at
`

type ReversePaymentParams struct {
	ID         uuid.UUID `json:"id"`
	ReversedBy uuid.UUID `json:"reversed_by"`
}

// ReversePayment returns pgx.ErrNoRows when the payment is not APPROVED.
func (q *Queries) ReversePayment(ctx context.Context, arg ReversePaymentParams) (Payment, error) {
	row := q.db.QueryRow(ctx, reversePayment, arg.ID, arg.ReversedBy)
	var i Payment
	err := row.Scan(
		&i.ID,
		&i.TabID,
		&i.Amount,
		&i.Method,
		&i.TenderMethod,
		&i.Status,
		&i.CreditID,
		&i.TransactionRef,
		&i.ProcessedBy,
		&i.ReversedBy,
		&i.ReversedAt,
		&i.CreatedAt,
	)
	return i, err
}
