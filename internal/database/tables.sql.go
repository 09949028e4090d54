package database

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
)

const createTable = `-- name: CreateTable :one
INSERT INTO tables (number, capacity, access_token)
VALUES ($1, $2, $3)
RETURNING id, number, capacity, status, customer_id, staff_id, access_token, created_at, updated_at
`

type CreateTableParams struct {
	Number      string `json:"number"`
	Capacity    int32  `json:"capacity"`
	AccessToken string `json:"access_token"`
}

func (q *Queries) CreateTable(ctx context.Context, arg CreateTableParams) (Table, error) {
	row := q.db.QueryRow(ctx, createTable, arg.Number, arg.Capacity, arg.AccessToken)
	var i Table
	err := row.Scan(
		&i.ID,
		&i.Number,
		&i.Capacity,
		&i.Status,
		&i.CustomerID,
		&i.StaffID,
		&i.AccessToken,
		&i.CreatedAt,
		&i.UpdatedAt,
	)
	return i, err
}

const getTable = `-- name: GetTable :one
SELECT id, number, capacity, status, customer_id, staff_id, access_token, created_at, updated_at FROM tables
WHERE id = $1
`

func (q *Queries) GetTable(ctx context.Context, id uuid.UUID) (Table, error) {
	row := q.db.QueryRow(ctx, getTable, id)
	var i Table
	err := row.Scan(
		&i.ID,
		&i.Number,
		&i.Capacity,
		&i.Status,
		&i.CustomerID,
		&i.StaffID,
		&i.AccessToken,
		&i.CreatedAt,
		&i.UpdatedAt,
	)
	return i, err
}

const getTableForUpdate = `-- name: GetTableForUpdate :one
SELECT id, number, capacity, status, customer_id, staff_id, access_token, created_at, updated_at FROM tables
WHERE id = $1
FOR NO KEY UPDATE
`

func (q *Queries) GetTableForUpdate(ctx context.Context, id uuid.UUID) (Table, error) {
	row := q.db.QueryRow(ctx, getTableForUpdate, id)
	var i Table
	err := row.Scan(
		&i.ID,
		&i.Number,
		&i.Capacity,
		&i.Status,
		&i.CustomerID,
		&i.StaffID,
		&i.AccessToken,
		&i.CreatedAt,
		&i.UpdatedAt,
	)
	return i, err
}

const getTableByAccessToken = `-- name: GetTableByAccessToken :one
SELECT id, number, capacity, status, customer_id, staff_id, access_token, created_at, updated_at FROM tables
WHERE access_token = $1
`

func (q *Queries) GetTableByAccessToken(ctx context.Context, accessToken string) (Table, error) {
	row := q.db.QueryRow(ctx, getTableByAccessToken, accessToken)
	var i Table
	err := row.Scan(
		&i.ID,
		&i.Number,
		&i.Capacity,
		&i.Status,
		&i.CustomerID,
		&i.StaffID,
		&i.AccessToken,
		&i.CreatedAt,
		&i.UpdatedAt,
	)
	return i, err
}

const listTables = `-- name: ListTables :many
SELECT id, number, capacity, status, customer_id, staff_id, access_token, created_at, updated_at FROM tables
ORDER BY number
`

func (q *Queries) ListTables(ctx context.Context) ([]Table, error) {
	rows, err := q.db.Query(ctx, listTables)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	items := []Table{}
	for rows.Next() {
		var i Table
		if err := rows.Scan(
			&i.ID,
			&i.Number,
			&i.Capacity,
			&i.Status,
			&i.CustomerID,
			&i.StaffID,
			&i.AccessToken,
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

const updateTableStatus = `-- name: UpdateTableStatus :one
UPDATE tables
SET status = $2, customer_id = $3, staff_id = $4, updated_at = now()
WHERE id = $1
RETURNING id, number, capacity, status, customer_id, staff_id, access_token, created_at, updated_at
`

type UpdateTableStatusParams struct {
	ID         uuid.UUID   `json:"id"`
	Status     TableStatus `json:"status"`
	CustomerID pgtype.UUID `json:"customer_id"`
	StaffID    pgtype.UUID `json:"staff_id"`
}

func (q *Queries) UpdateTableStatus(ctx context.Context, arg UpdateTableStatusParams) (Table, error) {
	row := q.db.QueryRow(ctx, updateTableStatus,
		arg.ID,
		arg.Status,
		arg.CustomerID,
		arg.StaffID,
	)
	var i Table
	err := row.Scan(
		&i.ID,
		&i.Number,
		&i.Capacity,
		&i.Status,
		&i.CustomerID,
		&i.StaffID,
		&i.AccessToken,
		&i.CreatedAt,
		&i.UpdatedAt,
	)
	return i, err
}
