package service

import (
	"context"

	"github.com/comanda-pos/api/internal/database"
	"github.com/comanda-pos/api/internal/money"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// TxBeginner starts a new database transaction.
type TxBeginner interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}

// Store defines the DB methods the floor services need.
// Satisfied by *database.Queries and the in-memory store.
type Store interface {
	SetLockTimeout(ctx context.Context, timeout string) error

	CreateTable(ctx context.Context, arg database.CreateTableParams) (database.Table, error)
	GetTable(ctx context.Context, id uuid.UUID) (database.Table, error)
	GetTableForUpdate(ctx context.Context, id uuid.UUID) (database.Table, error)
	GetTableByAccessToken(ctx context.Context, accessToken string) (database.Table, error)
	ListTables(ctx context.Context) ([]database.Table, error)
	UpdateTableStatus(ctx context.Context, arg database.UpdateTableStatusParams) (database.Table, error)

	CreateTab(ctx context.Context, arg database.CreateTabParams) (database.Tab, error)
	GetTab(ctx context.Context, id uuid.UUID) (database.Tab, error)
	GetTabForUpdate(ctx context.Context, id uuid.UUID) (database.Tab, error)
	GetActiveTabByTable(ctx context.Context, tableID uuid.UUID) (database.Tab, error)
	UpdateTab(ctx context.Context, arg database.UpdateTabParams) (database.Tab, error)

	CreateOrder(ctx context.Context, arg database.CreateOrderParams) (database.Order, error)
	GetOrder(ctx context.Context, id uuid.UUID) (database.Order, error)
	ListOrdersByTab(ctx context.Context, tabID uuid.UUID) ([]database.Order, error)
	UpdateOrderStatus(ctx context.Context, arg database.UpdateOrderStatusParams) (database.Order, error)
	CreateOrderItem(ctx context.Context, arg database.CreateOrderItemParams) (database.OrderItem, error)
	GetOrderItem(ctx context.Context, id uuid.UUID) (database.OrderItem, error)
	ListOrderItemsByOrder(ctx context.Context, orderID uuid.UUID) ([]database.OrderItem, error)
	UpdateOrderItemStatus(ctx context.Context, arg database.UpdateOrderItemStatusParams) (database.OrderItem, error)
	CascadeOrderItemStatus(ctx context.Context, arg database.CascadeOrderItemStatusParams) error
	SumActiveItemsByTab(ctx context.Context, tabID uuid.UUID) (money.Money, error)

	CreatePayment(ctx context.Context, arg database.CreatePaymentParams) (database.Payment, error)
	GetPayment(ctx context.Context, id uuid.UUID) (database.Payment, error)
	ListPaymentsByTab(ctx context.Context, tabID uuid.UUID) ([]database.Payment, error)
	ReversePayment(ctx context.Context, arg database.ReversePaymentParams) (database.Payment, error)

	CreateCredit(ctx context.Context, arg database.CreateCreditParams) (database.Credit, error)
	GetCredit(ctx context.Context, id uuid.UUID) (database.Credit, error)
	GetCreditByTab(ctx context.Context, tabID uuid.UUID) (database.Credit, error)
	UpdateCredit(ctx context.Context, arg database.UpdateCreditParams) (database.Credit, error)
	ListCreditsByCustomer(ctx context.Context, arg database.ListCreditsByCustomerParams) ([]database.Credit, error)
}

// NewStore creates a Store from a DBTX (pool or tx).
type NewStore func(db database.DBTX) Store

// Catalog resolves products for price snapshots.
type Catalog interface {
	GetProduct(ctx context.Context, id uuid.UUID) (database.Product, error)
}

// Customers checks that a customer exists.
type Customers interface {
	CustomerExists(ctx context.Context, id uuid.UUID) (bool, error)
}
