package database

import (
	"context"

	"github.com/comanda-pos/api/internal/money"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
)

const setLockTimeout = `-- name: SetLockTimeout :exec
SELECT set_config('lock_timeout', $1, true)
`

// SetLockTimeout bounds row-lock waits for the rest of the current transaction.
func (q *Queries) SetLockTimeout(ctx context.Context, timeout string) error {
	_, err := q.db.Exec(ctx, setLockTimeout, timeout)
	return err
}

const createTab = `-- name: CreateTab :one
INSERT INTO tabs (table_id, customer_id)
VALUES ($1, $2)
RETURNING id, table_id, customer_id, status, total_amount, paid_amount, credited_amount, close_requested_at, created_at, updated_at
`

type CreateTabParams struct {
	TableID    uuid.UUID   `json:"table_id"`
	CustomerID pgtype.UUID `json:"customer_id"`
}

func (q *Queries) CreateTab(ctx context.Context, arg CreateTabParams) (Tab, error) {
	row := q.db.QueryRow(ctx, createTab, arg.TableID, arg.CustomerID)
	var i Tab
	err := row.Scan(
		&i.ID,
		&i.TableID,
		&i.CustomerID,
		&i.Status,
		&i.TotalAmount,
		&i.PaidAmount,
		&i.CreditedAmount,
		&i.CloseRequestedAt,
		&i.CreatedAt,
		&i.UpdatedAt,
	)
	return i, err
}

const getTab = `-- name: GetTab :one
SELECT id, table_id, customer_id, status, total_amount, paid_amount, credited_amount, close_requested_at, created_at, updated_at FROM tabs
WHERE id = $1
`

func (q *Queries) GetTab(ctx context.Context, id uuid.UUID) (Tab, error) {
	row := q.db.QueryRow(ctx, getTab, id)
	var i Tab
	err := row.Scan(
		&i.ID,
		&i.TableID,
		&i.CustomerID,
		&i.Status,
		&i.TotalAmount,
		&i.PaidAmount,
		&i.CreditedAmount,
		&i.CloseRequestedAt,
		&i.CreatedAt,
		&i.UpdatedAt,
	)
	return i, err
}

const getTabForUpdate = `-- name: GetTabForUpdate :one
SELECT id, table_id, customer_id, status, total_amount, paid_amount, credited_amount, close_requested_at, created_at, updated_at FROM tabs
WHERE id = $1
FOR NO KEY UPDATE
`

func (q *Queries) GetTabForUpdate(ctx context.Context, id uuid.UUID) (Tab, error) {
	row := q.db.QueryRow(ctx, getTabForUpdate, id)
	var i Tab
	err := row.Scan(
		&i.ID,
		&i.TableID,
		&i.CustomerID,
		&i.Status,
		&i.TotalAmount,
		&i.PaidAmount,
		&i.CreditedAmount,
		&i.CloseRequestedAt,
		&i.CreatedAt,
		&i.UpdatedAt,
	)
	return i, err
}

const getActiveTabByTable = `-- name: GetActiveTabByTable :one
SELECT id, table_id, customer_id, status, total_amount, paid_amount, credited_amount, close_requested_at, created_at, updated_at FROM tabs
WHERE table_id = $1
  AND status NOT IN ('FULLY_PAID', 'CANCELLED')
`

func (q *Queries) GetActiveTabByTable(ctx context.Context, tableID uuid.UUID) (Tab, error) {
	row := q.db.QueryRow(ctx, getActiveTabByTable, tableID)
	var i Tab
	err := row.Scan(
		&i.ID,
		&i.TableID,
		&i.CustomerID,
		&i.Status,
		&i.TotalAmount,
		&i.PaidAmount,
		&i.CreditedAmount,
		&i.CloseRequestedAt,
		&i.CreatedAt,
		&i.UpdatedAt,
	)
	return i, err
}

const updateTab = `-- name: UpdateTab :one
UPDATE tabs
SET status = $2,
    total_amount = $3,
    paid_amount = $4,
    credited_amount = $5,
    customer_id = $6,
    close_requested_at = $7,
    updated_at = now()
WHERE id = $1
RETURNING id, table_id, customer_id, status, total_amount, paid_amount, credited_amount, close_requested_at, created_at, updated_at
`

type UpdateTabParams struct {
	ID               uuid.UUID          `json:"id"`
	Status           TabStatus          `json:"status"`
	TotalAmount      money.Money        `json:"total_amount"`
	PaidAmount       money.Money        `json:"paid_amount"`
	CreditedAmount   money.Money        `json:"credited_amount"`
	CustomerID       pgtype.UUID        `json:"customer_id"`
	CloseRequestedAt pgtype.Timestamptz `json:"close_requested_at"`
}

func (q *Queries) UpdateTab(ctx context.Context, arg UpdateTabParams) (Tab, error) {
	row := q.db.QueryRow(ctx, updateTab,
		arg.ID,
		arg.Status,
		arg.TotalAmount,
		arg.PaidAmount,
		arg.CreditedAmount,
		arg.CustomerID,
		arg.CloseRequestedAt,
	)
	var i Tab
	err := row.Scan(
		&i.ID,
		&i.TableID,
		&i.CustomerID,
		&i.Status,
		&i.TotalAmount,
		&i.PaidAmount,
		&i.CreditedAmount,
		&i.CloseRequestedAt,
		&i.CreatedAt,
		&i.UpdatedAt,
	)
	return i, err
}
