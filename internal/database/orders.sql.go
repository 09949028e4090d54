package database

import (
	"context"

	"github.com/comanda-pos/api/internal/money"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
)

const createOrder = `-- name: CreateOrder :one
INSERT INTO orders (tab_id, order_type, notes, created_by)
VALUES ($1, $2, $3, $4)
RETURNING id, tab_id, order_type, status, notes, created_by, created_at, updated_at
`

type CreateOrderParams struct {
	TabID     uuid.UUID   `json:"tab_id"`
	OrderType OrderType   `json:"order_type"`
	Notes     pgtype.Text `json:"notes"`
	CreatedBy uuid.UUID   `json:"created_by"`
}

func (q *Queries) CreateOrder(ctx context.Context, arg CreateOrderParams) (Order, error) {
	row := q.db.QueryRow(ctx, createOrder,
		arg.TabID,
		arg.OrderType,
		arg.Notes,
		arg.CreatedBy,
	)
	var i Order
	err := row.Scan(
		&i.ID,
		&i.TabID,
		&i.OrderType,
		&i.Status,
		&i.Notes,
		&i.CreatedBy,
		&i.CreatedAt,
		&i.UpdatedAt,
	)
	return i, err
}

const getOrder = `-- name: GetOrder :one
SELECT id, tab_id, order_type, status, notes, created_by, created_at, updated_at FROM orders
WHERE id = $1
`

func (q *Queries) GetOrder(ctx context.Context, id uuid.UUID) (Order, error) {
	row := q.db.QueryRow(ctx, getOrder, id)
	var i Order
	err := row.Scan(
		&i.ID,
		&i.TabID,
		&i.OrderType,
		&i.Status,
		&i.Notes,
		&i.CreatedBy,
		&i.CreatedAt,
		&i.UpdatedAt,
	)
	return i, err
}

const listOrdersByTab = `-- name: ListOrdersByTab :many
SELECT id, tab_id, order_type, status, notes, created_by, created_at, updated_at FROM orders
WHERE tab_id = $1
ORDER BY created_at, id
`

func (q *Queries) ListOrdersByTab(ctx context.Context, tabID uuid.UUID) ([]Order, error) {
	rows, err := q.db.Query(ctx, listOrdersByTab, tabID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	items := []Order{}
	for rows.Next() {
		var i Order
		if err := rows.Scan(
			&i.ID,
			&i.TabID,
			&i.OrderType,
			&i.Status,
			&i.Notes,
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

const updateOrderStatus = `-- name: UpdateOrderStatus :one
UPDATE orders SET status = $2, updated_at = now()
WHERE id = $1
RETURNING id, tab_id, order_type, status, notes, created_by, created_at, updated_at
`

type UpdateOrderStatusParams struct {
	ID     uuid.UUID   `json:"id"`
	Status OrderStatus `json:"status"`
}

func (q *Queries) UpdateOrderStatus(ctx context.Context, arg UpdateOrderStatusParams) (Order, error) {
	row := q.db.QueryRow(ctx, updateOrderStatus, arg.ID, arg.Status)
	var i Order
	err := row.Scan(
		&i.ID,
		&i.TabID,
		&i.OrderType,
		&i.Status,
		&i.Notes,
		&i.CreatedBy,
		&i.CreatedAt,
		&i.UpdatedAt,
	)
	return i, err
}

const createOrderItem = `-- name: CreateOrderItem :one
INSERT INTO order_items (order_id, product_id, quantity, unit_price, subtotal, notes)
VALUES ($1, $2, $3, $4, $5, $6)
RETURNING id, order_id, product_id, quantity, unit_price, subtotal, status, notes, created_at, updated_at
`

type CreateOrderItemParams struct {
	OrderID   uuid.UUID   `json:"order_id"`
	ProductID uuid.UUID   `json:"product_id"`
	Quantity  int32       `json:"quantity"`
	UnitPrice money.Money `json:"unit_price"`
	Subtotal  money.Money `json:"subtotal"`
	Notes     pgtype.Text `json:"notes"`
}

func (q *Queries) CreateOrderItem(ctx context.Context, arg CreateOrderItemParams) (OrderItem, error) {
	row := q.db.QueryRow(ctx, createOrderItem,
		arg.OrderID,
		arg.ProductID,
		arg.Quantity,
		arg.UnitPrice,
		arg.Subtotal,
		arg.Notes,
	)
	var i OrderItem
	err := row.Scan(
		&i.ID,
		&i.OrderID,
		&i.ProductID,
		&i.Quantity,
		&i.UnitPrice,
		&i.Subtotal,
		&i.Status,
		&i.Notes,
		&i.CreatedAt,
		&i.UpdatedAt,
	)
	return i, err
}

const getOrderItem = `-- name: GetOrderItem :one
SELECT id, order_id, product_id, quantity, unit_price, subtotal, status, notes, created_at, updated_at FROM order_items
WHERE id = $1
`

func (q *Queries) GetOrderItem(ctx context.Context, id uuid.UUID) (OrderItem, error) {
	row := q.db.QueryRow(ctx, getOrderItem, id)
	var i OrderItem
	err := row.Scan(
		&i.ID,
		&i.OrderID,
		&i.ProductID,
		&i.Quantity,
		&i.UnitPrice,
		&i.Subtotal,
		&i.Status,
		&i.Notes,
		&i.CreatedAt,
		&i.UpdatedAt,
	)
	return i, err
}

const listOrderItemsByOrder = `-- name: ListOrderItemsByOrder :many
SELECT id, order_id, product_id, quantity, unit_price, subtotal, status, notes, created_at, updated_at FROM order_items
WHERE order_id = $1
ORDER BY created_at, id
`

func (q *Queries) ListOrderItemsByOrder(ctx context.Context, orderID uuid.UUID) ([]OrderItem, error) {
	rows, err := q.db.Query(ctx, listOrderItemsByOrder, orderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	items := []OrderItem{}
	for rows.Next() {
		var i OrderItem
		if err := rows.Scan(
			&i.ID,
			&i.OrderID,
			&i.ProductID,
			&i.Quantity,
			&i.UnitPrice,
			&i.Subtotal,
			&i.Status,
			&i.Notes,
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

const updateOrderItemStatus = `-- name: UpdateOrderItemStatus :one
UPDATE order_items SET status = $2, updated_at = now()
WHERE id = $1
RETURNING id, order_id, product_id, quantity, unit_price, subtotal, status, notes, created_at, updated_at
`

type UpdateOrderItemStatusParams struct {
	ID     uuid.UUID       `json:"id"`
	Status OrderItemStatus `json:"status"`
}

func (q *Queries) UpdateOrderItemStatus(ctx context.Context, arg UpdateOrderItemStatusParams) (OrderItem, error) {
	row := q.db.QueryRow(ctx, updateOrderItemStatus, arg.ID, arg.Status)
	var i OrderItem
	err := row.Scan(
		&i.ID,
		&i.OrderID,
		&i.ProductID,
		&i.Quantity,
		&i.UnitPrice,
		&i.Subtotal,
		&i.Status,
		&i.Notes,
		&i.CreatedAt,
		&i.UpdatedAt,
	)
	return i, err
}

const cascadeOrderItemStatus = `-- name: CascadeOrderItemStatus :exec
UPDATE order_items SET status = $2, updated_at = now()
WHERE order_id = $1
  AND status NOT IN ('DELIVERED', 'CANCELLED')
`

type CascadeOrderItemStatusParams struct {
	OrderID uuid.UUID       `json:"order_id"`
	Status  OrderItemStatus `json:"status"`
}

// CascadeOrderItemStatus moves every non-terminal item of an order to Status.
func (q *Queries) CascadeOrderItemStatus(ctx context.Context, arg CascadeOrderItemStatusParams) error {
	_, err := q.db.Exec(ctx, cascadeOrderItemStatus, arg.OrderID, arg.Status)
	return err
}

const sumActiveItemsByTab = `-- name: SumActiveItemsByTab :one
SELECT COALESCE(SUM(oi.subtotal), 0)::numeric(12,2) AS total
FROM order_items oi
JOIN orders o ON o.id = oi.order_id
WHERE o.tab_id = $1
  AND o.status <> 'CANCELLED'
  AND oi.status <> 'CANCELLED'
`

// SumActiveItemsByTab totals non-cancelled items of non-cancelled orders.
func (q *Queries) SumActiveItemsByTab(ctx context.Context, tabID uuid.UUID) (money.Money, error) {
	row := q.db.QueryRow(ctx, sumActiveItemsByTab, tabID)
	var total money.Money
	err := row.Scan(&total)
	return total, err
}
