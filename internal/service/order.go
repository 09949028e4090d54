package service

import (
	"context"
	"fmt"
	"time"

	"github.com/comanda-pos/api/internal/database"
	"github.com/comanda-pos/api/internal/event"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
)

// allowedTransitions maps current order status to allowed target statuses.
var allowedTransitions = map[database.OrderStatus][]database.OrderStatus{
	database.OrderStatusRECEIVED: {
		database.OrderStatusPREPARING,
		database.OrderStatusOUTFORDELIVERY,
		database.OrderStatusCANCELLED,
	},
	database.OrderStatusPREPARING: {
		database.OrderStatusOUTFORDELIVERY,
		database.OrderStatusDELIVERED,
		database.OrderStatusCANCELLED,
	},
	database.OrderStatusOUTFORDELIVERY: {
		database.OrderStatusDELIVERED,
		database.OrderStatusCANCELLED,
	},
}

// cascadedItemStatus is the item status an order status change pushes down
// to the order's open items.
var cascadedItemStatus = map[database.OrderStatus]database.OrderItemStatus{
	database.OrderStatusPREPARING: database.OrderItemStatusPREPARING,
	database.OrderStatusDELIVERED: database.OrderItemStatusDELIVERED,
	database.OrderStatusCANCELLED: database.OrderItemStatusCANCELLED,
}

var allowedItemTransitions = map[database.OrderItemStatus][]database.OrderItemStatus{
	database.OrderItemStatusRECEIVED:  {database.OrderItemStatusPREPARING},
	database.OrderItemStatusPREPARING: {database.OrderItemStatusDELIVERED},
}

// OrderLedger records orders and items against tabs.
type OrderLedger struct {
	engine  *TabEngine
	catalog Catalog
}

// NewOrderLedger creates a new OrderLedger.
func NewOrderLedger(engine *TabEngine, catalog Catalog) *OrderLedger {
	return &OrderLedger{engine: engine, catalog: catalog}
}

// CreateOrderRequest is the validated input for creating an order.
type CreateOrderRequest struct {
	TabID     uuid.UUID
	CreatedBy uuid.UUID
	OrderType string
	Notes     string
	Items     []CreateOrderItemRequest
}

// CreateOrderItemRequest is a single item in the order.
type CreateOrderItemRequest struct {
	ProductID string
	Quantity  int32
	Notes     string
}

// OrderResult is an order with its items.
type OrderResult struct {
	Order database.Order
	Items []database.OrderItem
}

// snapshot resolves a product and freezes its current price into the item.
func (l *OrderLedger) snapshot(ctx context.Context, item CreateOrderItemRequest) (database.CreateOrderItemParams, error) {
	if item.Quantity <= 0 {
		return database.CreateOrderItemParams{}, ErrInvalidQuantity
	}
	productID, err := uuid.Parse(item.ProductID)
	if err != nil {
		return database.CreateOrderItemParams{}, ErrInvalidProductID
	}
	product, err := l.catalog.GetProduct(ctx, productID)
	if err != nil {
		return database.CreateOrderItemParams{}, notFound("get product", err, ErrProductNotFound)
	}
	if !product.Available {
		return database.CreateOrderItemParams{}, ErrProductUnavailable
	}
	subtotal := product.Price.Mul(int64(item.Quantity))
	if !subtotal.InRange() {
		return database.CreateOrderItemParams{}, ErrAmountTooLarge
	}
	return database.CreateOrderItemParams{
		ProductID: product.ID,
		Quantity:  item.Quantity,
		UnitPrice: product.Price,
		Subtotal:  subtotal,
		Notes:     textOrNull(item.Notes),
	}, nil
}

// CreateOrder records an order and its items on a tab and recomputes the tab
// total. Either every row is written or none is.
func (l *OrderLedger) CreateOrder(ctx context.Context, req CreateOrderRequest) (*OrderResult, error) {
	orderType, err := validateOrderType(req.OrderType)
	if err != nil {
		return nil, err
	}
	if len(req.Items) == 0 {
		return nil, ErrEmptyItems
	}

	// Catalog lookups happen before the tab is locked.
	items := make([]database.CreateOrderItemParams, len(req.Items))
	for i, item := range req.Items {
		params, err := l.snapshot(ctx, item)
		if err != nil {
			return nil, fmt.Errorf("item[%d]: %w", i, err)
		}
		items[i] = params
	}

	var result OrderResult
	_, err = l.engine.withTab(ctx, req.TabID, false, func(t *tabTx) error {
		if !acceptsOrders(t.tab) {
			return ErrTabNotOpen
		}

		order, err := t.store.CreateOrder(ctx, database.CreateOrderParams{
			TabID:     t.tab.ID,
			OrderType: orderType,
			Notes:     textOrNull(req.Notes),
			CreatedBy: req.CreatedBy,
		})
		if err != nil {
			return dbErr("create order", err)
		}
		t.emit(orderTransition(order, t.tab.TableID, "", t.e.now()))

		created := make([]database.OrderItem, 0, len(items))
		for i, params := range items {
			params.OrderID = order.ID
			item, err := t.store.CreateOrderItem(ctx, params)
			if err != nil {
				return fmt.Errorf("item[%d]: %w", i, dbErr("create order item", err))
			}
			t.emit(itemTransition(item, t.tab, "", t.e.now()))
			created = append(created, item)
		}

		result = OrderResult{Order: order, Items: created}
		return t.recompute()
	})
	if err != nil {
		return nil, err
	}
	return &result, nil
}

// UpdateOrderStatus moves an order along its lifecycle and mirrors the change
// onto the order's open items. Cancelling takes the order out of the tab
// total.
func (l *OrderLedger) UpdateOrderStatus(ctx context.Context, orderID uuid.UUID, status string) (database.Order, error) {
	to := database.OrderStatus(status)
	switch to {
	case database.OrderStatusRECEIVED, database.OrderStatusPREPARING, database.OrderStatusOUTFORDELIVERY,
		database.OrderStatusDELIVERED, database.OrderStatusCANCELLED:
	default:
		return database.Order{}, ErrInvalidStatus
	}

	current, err := l.engine.queries.GetOrder(ctx, orderID)
	if err != nil {
		return database.Order{}, notFound("get order", err, ErrOrderNotFound)
	}

	var updated database.Order
	_, err = l.engine.withTab(ctx, current.TabID, false, func(t *tabTx) error {
		order, err := t.store.GetOrder(ctx, orderID)
		if err != nil {
			return notFound("get order", err, ErrOrderNotFound)
		}
		if err := validateStatusTransition(order.Status, to); err != nil {
			return err
		}
		if to == database.OrderStatusCANCELLED && isTerminalTab(t.tab.Status) {
			return ErrTabTerminal
		}

		if itemStatus, ok := cascadedItemStatus[to]; ok {
			items, err := t.store.ListOrderItemsByOrder(ctx, orderID)
			if err != nil {
				return dbErr("list order items", err)
			}
			if err := t.store.CascadeOrderItemStatus(ctx, database.CascadeOrderItemStatusParams{
				OrderID: orderID,
				Status:  itemStatus,
			}); err != nil {
				return dbErr("cascade item status", err)
			}
			for _, item := range items {
				if isTerminalItem(item.Status) || item.Status == itemStatus {
					continue
				}
				old := item.Status
				item.Status = itemStatus
				t.emit(itemTransition(item, t.tab, old, t.e.now()))
			}
		}

		updated, err = t.store.UpdateOrderStatus(ctx, database.UpdateOrderStatusParams{
			ID:     orderID,
			Status: to,
		})
		if err != nil {
			return dbErr("update order status", err)
		}
		t.emit(orderTransition(updated, t.tab.TableID, order.Status, t.e.now()))

		if to == database.OrderStatusCANCELLED {
			return t.recompute()
		}
		return nil
	})
	if err != nil {
		return database.Order{}, err
	}
	return updated, nil
}

// AddItem appends an item to an order that the kitchen has not started.
func (l *OrderLedger) AddItem(ctx context.Context, orderID uuid.UUID, req CreateOrderItemRequest) (database.OrderItem, error) {
	params, err := l.snapshot(ctx, req)
	if err != nil {
		return database.OrderItem{}, err
	}

	current, err := l.engine.queries.GetOrder(ctx, orderID)
	if err != nil {
		return database.OrderItem{}, notFound("get order", err, ErrOrderNotFound)
	}

	var item database.OrderItem
	_, err = l.engine.withTab(ctx, current.TabID, false, func(t *tabTx) error {
		order, err := t.store.GetOrder(ctx, orderID)
		if err != nil {
			return notFound("get order", err, ErrOrderNotFound)
		}
		if order.Status != database.OrderStatusRECEIVED {
			return ErrOrderNotOpen
		}
		if !acceptsOrders(t.tab) {
			return ErrTabNotOpen
		}

		params.OrderID = orderID
		item, err = t.store.CreateOrderItem(ctx, params)
		if err != nil {
			return dbErr("create order item", err)
		}
		t.emit(itemTransition(item, t.tab, "", t.e.now()))
		return t.recompute()
	})
	if err != nil {
		return database.OrderItem{}, err
	}
	return item, nil
}

// RemoveItem cancels an undelivered item. The row is kept.
func (l *OrderLedger) RemoveItem(ctx context.Context, itemID uuid.UUID) (database.OrderItem, error) {
	tabID, err := l.tabOfItem(ctx, itemID)
	if err != nil {
		return database.OrderItem{}, err
	}

	var removed database.OrderItem
	_, err = l.engine.withTab(ctx, tabID, false, func(t *tabTx) error {
		item, order, err := loadItem(t, itemID)
		if err != nil {
			return err
		}
		switch {
		case item.Status == database.OrderItemStatusDELIVERED:
			return ErrItemDelivered
		case item.Status == database.OrderItemStatusCANCELLED:
			return ErrItemCancelled
		case isTerminalOrder(order.Status):
			return ErrTerminalOrder
		case isTerminalTab(t.tab.Status):
			return ErrTabTerminal
		}

		removed, err = t.store.UpdateOrderItemStatus(ctx, database.UpdateOrderItemStatusParams{
			ID:     itemID,
			Status: database.OrderItemStatusCANCELLED,
		})
		if err != nil {
			return dbErr("cancel order item", err)
		}
		t.emit(itemTransition(removed, t.tab, item.Status, t.e.now()))
		return t.recompute()
	})
	if err != nil {
		return database.OrderItem{}, err
	}
	return removed, nil
}

// UpdateItemStatus tracks an item through the kitchen. Cancelling an item is
// the same as RemoveItem.
func (l *OrderLedger) UpdateItemStatus(ctx context.Context, itemID uuid.UUID, status string) (database.OrderItem, error) {
	to := database.OrderItemStatus(status)
	switch to {
	case database.OrderItemStatusCANCELLED:
		return l.RemoveItem(ctx, itemID)
	case database.OrderItemStatusPREPARING, database.OrderItemStatusDELIVERED:
	default:
		return database.OrderItem{}, ErrInvalidStatus
	}

	tabID, err := l.tabOfItem(ctx, itemID)
	if err != nil {
		return database.OrderItem{}, err
	}

	var updated database.OrderItem
	_, err = l.engine.withTab(ctx, tabID, false, func(t *tabTx) error {
		item, order, err := loadItem(t, itemID)
		if err != nil {
			return err
		}
		switch {
		case item.Status == database.OrderItemStatusDELIVERED:
			return ErrItemDelivered
		case item.Status == database.OrderItemStatusCANCELLED:
			return ErrItemCancelled
		case order.Status == database.OrderStatusCANCELLED:
			return ErrTerminalOrder
		}
		if err := validateItemTransition(item.Status, to); err != nil {
			return err
		}

		updated, err = t.store.UpdateOrderItemStatus(ctx, database.UpdateOrderItemStatusParams{
			ID:     itemID,
			Status: to,
		})
		if err != nil {
			return dbErr("update order item status", err)
		}
		t.emit(itemTransition(updated, t.tab, item.Status, t.e.now()))
		return nil
	})
	if err != nil {
		return database.OrderItem{}, err
	}
	return updated, nil
}

// GetOrder returns an order with all of its items, cancelled ones included.
func (l *OrderLedger) GetOrder(ctx context.Context, orderID uuid.UUID) (*OrderResult, error) {
	q := l.engine.queries
	order, err := q.GetOrder(ctx, orderID)
	if err != nil {
		return nil, notFound("get order", err, ErrOrderNotFound)
	}
	items, err := q.ListOrderItemsByOrder(ctx, orderID)
	if err != nil {
		return nil, dbErr("list order items", err)
	}
	return &OrderResult{Order: order, Items: items}, nil
}

// ListOrders returns a tab's orders, oldest first.
func (l *OrderLedger) ListOrders(ctx context.Context, tabID uuid.UUID) ([]database.Order, error) {
	if _, err := l.engine.Get(ctx, tabID); err != nil {
		return nil, err
	}
	orders, err := l.engine.queries.ListOrdersByTab(ctx, tabID)
	if err != nil {
		return nil, dbErr("list orders", err)
	}
	return orders, nil
}

// tabOfItem finds the tab an item belongs to, outside any lock. The
// relationship never changes, so the answer stays valid once the lock is held.
func (l *OrderLedger) tabOfItem(ctx context.Context, itemID uuid.UUID) (uuid.UUID, error) {
	q := l.engine.queries
	item, err := q.GetOrderItem(ctx, itemID)
	if err != nil {
		return uuid.Nil, notFound("get order item", err, ErrItemNotFound)
	}
	order, err := q.GetOrder(ctx, item.OrderID)
	if err != nil {
		return uuid.Nil, notFound("get order", err, ErrOrderNotFound)
	}
	return order.TabID, nil
}

func loadItem(t *tabTx, itemID uuid.UUID) (database.OrderItem, database.Order, error) {
	item, err := t.store.GetOrderItem(t.ctx, itemID)
	if err != nil {
		return database.OrderItem{}, database.Order{}, notFound("get order item", err, ErrItemNotFound)
	}
	order, err := t.store.GetOrder(t.ctx, item.OrderID)
	if err != nil {
		return database.OrderItem{}, database.Order{}, notFound("get order", err, ErrOrderNotFound)
	}
	return item, order, nil
}

func validateOrderType(s string) (database.OrderType, error) {
	switch database.OrderType(s) {
	case database.OrderTypeINTABLE, database.OrderTypeDELIVERY:
		return database.OrderType(s), nil
	}
	return "", ErrInvalidOrderType
}

// validateStatusTransition checks an order status change against
// allowedTransitions.
func validateStatusTransition(from, to database.OrderStatus) error {
	if isTerminalOrder(from) {
		return ErrTerminalOrder
	}
	for _, allowed := range allowedTransitions[from] {
		if allowed == to {
			return nil
		}
	}
	return ErrInvalidTransition
}

func validateItemTransition(from, to database.OrderItemStatus) error {
	for _, allowed := range allowedItemTransitions[from] {
		if allowed == to {
			return nil
		}
	}
	return ErrInvalidTransition
}

func isTerminalOrder(s database.OrderStatus) bool {
	return s == database.OrderStatusDELIVERED || s == database.OrderStatusCANCELLED
}

func isTerminalItem(s database.OrderItemStatus) bool {
	return s == database.OrderItemStatusDELIVERED || s == database.OrderItemStatusCANCELLED
}

func orderTransition(order database.Order, tableID uuid.UUID, old database.OrderStatus, at time.Time) event.Transition {
	return event.Transition{
		Kind:      event.KindOrder,
		ID:        order.ID,
		TabID:     order.TabID,
		TableID:   tableID,
		OldStatus: string(old),
		NewStatus: string(order.Status),
		At:        at,
	}
}

func itemTransition(item database.OrderItem, tab database.Tab, old database.OrderItemStatus, at time.Time) event.Transition {
	return event.Transition{
		Kind:      event.KindItem,
		ID:        item.ID,
		TabID:     tab.ID,
		TableID:   tab.TableID,
		OldStatus: string(old),
		NewStatus: string(item.Status),
		Amount:    item.Subtotal,
		At:        at,
	}
}

func textOrNull(s string) pgtype.Text {
	if s == "" {
		return pgtype.Text{}
	}
	return pgtype.Text{String: s, Valid: true}
}
