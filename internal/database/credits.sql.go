package database

import (
	"context"

	"github.com/comanda-pos/api/internal/money"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
)

const createCredit = `-- name: CreateCredit :one
INSERT INTO credits (tab_id, customer_id, original_amount, outstanding_amount, due_date, created_by)
VALUES ($1, $2, $3, $4, $5, $6)
RETURNING id, tab_id, customer_id, original_amount, outstanding_amount, status, due_date, created_by, created_at, updated_at
`

type CreateCreditParams struct {
	TabID             uuid.UUID   `json:"tab_id"`
	CustomerID        uuid.UUID   `json:"customer_id"`
	OriginalAmount    money.Money `json:"original_amount"`
	OutstandingAmount money.Money `json:"outstanding_amount"`
	DueDate           pgtype.Date `json:"due_date"`
	CreatedBy         uuid.UUID   `json:"created_by"`
}

func (q *Queries) CreateCredit(ctx context.Context, arg CreateCreditParams) (Credit, error) {
	row := q.db.QueryRow(ctx, createCredit,
		arg.TabID,
		arg.CustomerID,
		arg.OriginalAmount,
		arg.OutstandingAmount,
		arg.DueDate,
		arg.CreatedBy,
	)
	var i Credit
	err := row.Scan(
		&i.ID,
		&i.TabID,
		&i.CustomerID,
		&i.OriginalAmount,
		&i.OutstandingAmount,
		&i.Status,
		&i.DueDate,
		&i.CreatedBy,
		&i.CreatedAt,
		&i.UpdatedAt,
	)
	return i, err
}

const getCredit = `-- name: GetCredit :one
SELECT id, tab_id, customer_id, original_amount, outstanding_amount, status, due_date, created_by, created_at, updated_at FROM credits
WHERE id = $1
`

func (q *Queries) GetCredit(ctx context.Context, id uuid.UUID) (Credit, error) {
	row := q.db.QueryRow(ctx, getCredit, id)
	var i Credit
	err := row.Scan(
		&i.ID,
		&i.TabID,
		&i.CustomerID,
		&i.OriginalAmount,
		&i.OutstandingAmount,
		&i.Status,
		&i.DueDate,
		&i.CreatedBy,
		&i.CreatedAt,
		&i.UpdatedAt,
	)
	return i, err
}

const getCreditByTab = `-- name: GetCreditByTab :one
SELECT id, tab_id, customer_id, original_amount, outstanding_amount, status, due_date, created_by, created_at, updated_at FROM credits
WHERE tab_id = $1
`

func (q *Queries) GetCreditByTab(ctx context.Context, tabID uuid.UUID) (Credit, error) {
	row := q.db.QueryRow(ctx, getCreditByTab, tabID)
	var i Credit
	err := row.Scan(
		&i.ID,
		&i.TabID,
		&i.CustomerID,
		&i.OriginalAmount,
		&i.OutstandingAmount,
		&i.Status,
		&i.DueDate,
		&i.CreatedBy,
		&i.CreatedAt,
		&i.UpdatedAt,
	)
	return i, err
}

const updateCredit = `-- name: UpdateCredit :one
UPDATE credits
SET customer_id = $2,
    original_amount = $3,
    outstanding_amount = $4,
    status = $5,
    due_date = $6,
    updated_at = now()
WHERE id = $1
RETURNING id, tab_id, customer_id, original_amount, outstanding_amount, status, due_date, created_by, created_at, updated_at
`

type UpdateCreditParams struct {
	ID                uuid.UUID    `json:"id"`
	CustomerID        uuid.UUID    `json:"customer_id"`
	OriginalAmount    money.Money  `json:"original_amount"`
	OutstandingAmount money.Money  `json:"outstanding_amount"`
	Status            CreditStatus `json:"status"`
	DueDate           pgtype.Date  `json:"due_date"`
}

func (q *Queries) UpdateCredit(ctx context.Context, arg UpdateCreditParams) (Credit, error) {
	row := q.db.QueryRow(ctx, updateCredit,
		arg.ID,
		arg.CustomerID,
		arg.OriginalAmount,
		arg.OutstandingAmount,
		arg.Status,
		arg.DueDate,
	)
	var i Credit
	err := row.Scan(
		&i.ID,
		&i.TabID,
		&i.CustomerID,
		&i.OriginalAmount,
		&i.OutstandingAmount,
		&i.Status,
		&i.DueDate,
		&i.CreatedBy,
		&i.CreatedAt,
		&i.UpdatedAt,
	)
	return i, err
}

const listCreditsByCustomer = `-- name: ListCreditsByCustomer :many
SELECT id, tab_id, customer_id, original_amount, outstanding_amount, status, due_date, created_by, created_at, updated_at FROM credits
WHERE customer_id = $1
  AND ($2::credit_status IS NULL OR status = $2)
ORDER BY created_at DESC, id
`

type ListCreditsByCustomerParams struct {
	CustomerID uuid.UUID        `json:"customer_id"`
	Status     NullCreditStatus `json:"status"`
}

func (q *Queries) ListCreditsByCustomer(ctx context.Context, arg ListCreditsByCustomerParams) ([]Credit, error) {
	rows, err := q.db.Query(ctx, listCreditsByCustomer, arg.CustomerID, arg.Status)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	items := []Credit{}
	for rows.Next() {
		var i Credit
		if err := rows.Scan(
			&i.ID,
			&i.TabID,
			&i.CustomerID,
			&i.OriginalAmount,
			&i.OutstandingAmount,
			&i.Status,
			&i.DueDate,
			&i.CreatedBy,
			&i.CreatedAt,
			&i.UpdatedAt,
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
