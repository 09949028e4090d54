package database

import (
	"database/sql/driver"
	"fmt"
	"time"

	"github.com/comanda-pos/api/internal/money"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
)

type CreditStatus string

const (
	CreditStatusPENDING       CreditStatus = "PENDING"
	CreditStatusPARTIALLYPAID CreditStatus = "PARTIALLY_PAID"
	CreditStatusFULLYPAID     CreditStatus = "FULLY_PAID"
	CreditStatusCANCELLED     CreditStatus = "CANCELLED"
)

func (e *CreditStatus) Scan(src interface{}) error {
	switch s := src.(type) {
	case []byte:
		*e = CreditStatus(s)
	case string:
		*e = CreditStatus(s)
	default:
		return fmt.Errorf("unsupported scan type for CreditStatus: %T", src)
	}
	return nil
}

type NullCreditStatus struct {
	CreditStatus CreditStatus
	Valid        bool // Valid is true if CreditStatus is not NULL
}

// Scan implements the Scanner interface.
func (ns *NullCreditStatus) Scan(value interface{}) error {
	if value == nil {
		ns.CreditStatus, ns.Valid = "", false
		return nil
	}
	ns.Valid = true
	return ns.CreditStatus.Scan(value)
}

// Value implements the driver Valuer interface.
func (ns NullCreditStatus) Value() (driver.Value, error) {
	if !ns.Valid {
		return nil, nil
	}
	return string(ns.CreditStatus), nil
}

type OrderItemStatus string

const (
	OrderItemStatusRECEIVED  OrderItemStatus = "RECEIVED"
	OrderItemStatusPREPARING OrderItemStatus = "PREPARING"
	OrderItemStatusDELIVERED OrderItemStatus = "DELIVERED"
	OrderItemStatusCANCELLED OrderItemStatus = "CANCELLED"
)

func (e *OrderItemStatus) Scan(src interface{}) error {
	switch s := src.(type) {
	case []byte:
		*e = OrderItemStatus(s)
	case string:
		*e = OrderItemStatus(s)
	default:
		return fmt.Errorf("unsupported scan type for OrderItemStatus: %T", src)
	}
	return nil
}

type OrderStatus string

const (
	OrderStatusRECEIVED       OrderStatus = "RECEIVED"
	OrderStatusPREPARING      OrderStatus = "PREPARING"
	OrderStatusOUTFORDELIVERY OrderStatus = "OUT_FOR_DELIVERY"
	OrderStatusDELIVERED      OrderStatus = "DELIVERED"
	OrderStatusCANCELLED      OrderStatus = "CANCELLED"
)

func (e *OrderStatus) Scan(src interface{}) error {
	switch s := src.(type) {
	case []byte:
		*e = OrderStatus(s)
	case string:
		*e = OrderStatus(s)
	default:
		return fmt.Errorf("unsupported scan type for OrderStatus: %T", src)
	}
	return nil
}

type OrderType string

const (
	OrderTypeINTABLE  OrderType = "IN_TABLE"
	OrderTypeDELIVERY OrderType = "DELIVERY"
)

func (e *OrderType) Scan(src interface{}) error {
	switch s := src.(type) {
	case []byte:
		*e = OrderType(s)
	case string:
		*e = OrderType(s)
	default:
		return fmt.Errorf("unsupported scan type for OrderType: %T", src)
	}
	return nil
}

type PaymentMethod string

const (
	PaymentMethodCASH             PaymentMethod = "CASH"
	PaymentMethodCREDITCARD       PaymentMethod = "CREDIT_CARD"
	PaymentMethodDEBITCARD        PaymentMethod = "DEBIT_CARD"
	PaymentMethodPIX              PaymentMethod = "PIX"
	PaymentMethodCREDITSETTLEMENT PaymentMethod = "CREDIT_SETTLEMENT"
)

func (e *PaymentMethod) Scan(src interface{}) error {
	switch s := src.(type) {
	case []byte:
		*e = PaymentMethod(s)
	case string:
		*e = PaymentMethod(s)
	default:
		return fmt.Errorf("unsupported scan type for PaymentMethod: %T", src)
	}
	return nil
}

type NullPaymentMethod struct {
	PaymentMethod PaymentMethod
	Valid         bool // Valid is true if PaymentMethod is not NULL
}

// Scan implements the Scanner interface.
func (ns *NullPaymentMethod) Scan(value interface{}) error {
	if value == nil {
		ns.PaymentMethod, ns.Valid = "", false
		return nil
	}
	ns.Valid = true
	return ns.PaymentMethod.Scan(value)
}

// Value implements the driver Valuer interface.
func (ns NullPaymentMethod) Value() (driver.Value, error) {
	if !ns.Valid {
		return nil, nil
	}
	return string(ns.PaymentMethod), nil
}

type PaymentStatus string

const (
	PaymentStatusAPPROVED PaymentStatus = "APPROVED"
	PaymentStatusREVERSED PaymentStatus = "REVERSED"
)

func (e *PaymentStatus) Scan(src interface{}) error {
	switch s := src.(type) {
	case []byte:
		*e = PaymentStatus(s)
	case string:
		*e = PaymentStatus(s)
	default:
		return fmt.Errorf("unsupported scan type for PaymentStatus: %T", src)
	}
	return nil
}

type StaffRole string

const (
	StaffRoleMANAGER StaffRole = "MANAGER"
	StaffRoleCASHIER StaffRole = "CASHIER"
	StaffRoleWAITER  StaffRole = "WAITER"
	StaffRoleKITCHEN StaffRole = "KITCHEN"
)

func (e *StaffRole) Scan(src interface{}) error {
	switch s := src.(type) {
	case []byte:
		*e = StaffRole(s)
	case string:
		*e = StaffRole(s)
	default:
		return fmt.Errorf("unsupported scan type for StaffRole: %T", src)
	}
	return nil
}

type TabStatus string

const (
	TabStatusOPEN                 TabStatus = "OPEN"
	TabStatusCLOSEDPENDINGPAYMENT TabStatus = "CLOSED_PENDING_PAYMENT"
	TabStatusPARTIALLYPAID        TabStatus = "PARTIALLY_PAID"
	TabStatusONCREDIT             TabStatus = "ON_CREDIT"
	TabStatusFULLYPAID            TabStatus = "FULLY_PAID"
	TabStatusCANCELLED            TabStatus = "CANCELLED"
)

func (e *TabStatus) Scan(src interface{}) error {
	switch s := src.(type) {
	case []byte:
		*e = TabStatus(s)
	case string:
		*e = TabStatus(s)
	default:
		return fmt.Errorf("unsupported scan type for TabStatus: %T", src)
	}
	return nil
}

type TableStatus string

const (
	TableStatusAVAILABLE TableStatus = "AVAILABLE"
	TableStatusOCCUPIED  TableStatus = "OCCUPIED"
	TableStatusRESERVED  TableStatus = "RESERVED"
	TableStatusCLOSED    TableStatus = "CLOSED"
)

func (e *TableStatus) Scan(src interface{}) error {
	switch s := src.(type) {
	case []byte:
		*e = TableStatus(s)
	case string:
		*e = TableStatus(s)
	default:
		return fmt.Errorf("unsupported scan type for TableStatus: %T", src)
	}
	return nil
}

type Credit struct {
	ID                uuid.UUID    `json:"id"`
	TabID             uuid.UUID    `json:"tab_id"`
	CustomerID        uuid.UUID    `json:"customer_id"`
	OriginalAmount    money.Money  `json:"original_amount"`
	OutstandingAmount money.Money  `json:"outstanding_amount"`
	Status            CreditStatus `json:"status"`
	DueDate           pgtype.Date  `json:"due_date"`
	CreatedBy         uuid.UUID    `json:"created_by"`
	CreatedAt         time.Time    `json:"created_at"`
	UpdatedAt         time.Time    `json:"updated_at"`
}

type Customer struct {
	ID        uuid.UUID   `json:"id"`
	Name      string      `json:"name"`
	Phone     pgtype.Text `json:"phone"`
	CreatedAt time.Time   `json:"created_at"`
}

type Order struct {
	ID        uuid.UUID   `json:"id"`
	TabID     uuid.UUID   `json:"tab_id"`
	OrderType OrderType   `json:"order_type"`
	Status    OrderStatus `json:"status"`
	Notes     pgtype.Text `json:"notes"`
	CreatedBy uuid.UUID   `json:"created_by"`
	CreatedAt time.Time   `json:"created_at"`
	UpdatedAt time.Time   `json:"updated_at"`
}

type OrderItem struct {
	ID        uuid.UUID       `json:"id"`
	OrderID   uuid.UUID       `json:"order_id"`
	ProductID uuid.UUID       `json:"product_id"`
	Quantity  int32           `json:"quantity"`
	UnitPrice money.Money     `json:"unit_price"`
	Subtotal  money.Money     `json:"subtotal"`
	Status    OrderItemStatus `json:"status"`
	Notes     pgtype.Text     `json:"notes"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
}

type Payment struct {
	ID             uuid.UUID          `json:"id"`
	TabID          uuid.UUID          `json:"tab_id"`
	Amount         money.Money        `json:"amount"`
	Method         PaymentMethod      `json:"method"`
	TenderMethod   NullPaymentMethod  `json:"tender_method"`
	Status         PaymentStatus      `json:"status"`
	CreditID       pgtype.UUID        `json:"credit_id"`
	TransactionRef pgtype.Text        `json:"transaction_ref"`
	ProcessedBy    uuid.UUID          `json:"processed_by"`
	ReversedBy     pgtype.UUID        `json:"reversed_by"`
	ReversedAt     pgtype.Timestamptz `json:"reversed_at"`
	CreatedAt      time.Time          `json:"created_at"`
}

type Product struct {
	ID        uuid.UUID   `json:"id"`
	Name      string      `json:"name"`
	Price     money.Money `json:"price"`
	Available bool        `json:"available"`
	CreatedAt time.Time   `json:"created_at"`
}

type Staff struct {
	ID             uuid.UUID `json:"id"`
	Email          string    `json:"email"`
	HashedPassword string    `json:"hashed_password"`
	FullName       string    `json:"full_name"`
	Role           StaffRole `json:"role"`
	IsActive       bool      `json:"is_active"`
	CreatedAt      time.Time `json:"created_at"`
}

type Tab struct {
	ID               uuid.UUID          `json:"id"`
	TableID          uuid.UUID          `json:"table_id"`
	CustomerID       pgtype.UUID        `json:"customer_id"`
	Status           TabStatus          `json:"status"`
	TotalAmount      money.Money        `json:"total_amount"`
	PaidAmount       money.Money        `json:"paid_amount"`
	CreditedAmount   money.Money        `json:"credited_amount"`
	CloseRequestedAt pgtype.Timestamptz `json:"close_requested_at"`
	CreatedAt        time.Time          `json:"created_at"`
	UpdatedAt        time.Time          `json:"updated_at"`
}

type Table struct {
	ID          uuid.UUID   `json:"id"`
	Number      string      `json:"number"`
	Capacity    int32       `json:"capacity"`
	Status      TableStatus `json:"status"`
	CustomerID  pgtype.UUID `json:"customer_id"`
	StaffID     pgtype.UUID `json:"staff_id"`
	AccessToken string      `json:"access_token"`
	CreatedAt   time.Time   `json:"created_at"`
	UpdatedAt   time.Time   `json:"updated_at"`
}
