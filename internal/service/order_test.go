package service

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/comanda-pos/api/internal/database"
	"github.com/comanda-pos/api/internal/event"
	"github.com/comanda-pos/api/internal/money"
	"github.com/google/uuid"
)

func TestCreateOrderRecomputesTab(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, tab := f.open(t, nil)

	res := f.order(t, tab.ID,
		CreateOrderItemRequest{ProductID: f.product(t, "10.00").String(), Quantity: 3},
		CreateOrderItemRequest{ProductID: f.product(t, "5.00").String(), Quantity: 2, Notes: "no ice"},
	)
	if len(res.Items) != 2 {
		t.Fatalf("items = %d, want 2", len(res.Items))
	}
	assertMoney(t, "item[0] subtotal", res.Items[0].Subtotal, "30.00")
	assertMoney(t, "item[1] subtotal", res.Items[1].Subtotal, "10.00")
	assertMoney(t, "item[1] unit price", res.Items[1].UnitPrice, "5.00")
	if res.Items[1].Notes.String != "no ice" {
		t.Errorf("notes = %q", res.Items[1].Notes.String)
	}
	assertMoney(t, "total", f.tab(t, tab.ID).TotalAmount, "40.00")

	removed, err := f.orders.RemoveItem(ctx, res.Items[1].ID)
	if err != nil {
		t.Fatalf("remove item: %v", err)
	}
	if removed.Status != database.OrderItemStatusCANCELLED {
		t.Errorf("item status = %s, want CANCELLED", removed.Status)
	}
	assertMoney(t, "total after removal", f.tab(t, tab.ID).TotalAmount, "30.00")

	if _, err := f.orders.RemoveItem(ctx, res.Items[1].ID); !errors.Is(err, ErrItemCancelled) {
		t.Errorf("second removal: error = %v, want ErrItemCancelled", err)
	}

	// The cancelled item stays on record.
	got, err := f.orders.GetOrder(ctx, res.Order.ID)
	if err != nil {
		t.Fatalf("get order: %v", err)
	}
	if len(got.Items) != 2 {
		t.Errorf("items on record = %d, want 2", len(got.Items))
	}
	for _, typ := range []string{event.TypeOrderCreated, event.TypeItemAdded, event.TypeItemCancelled, event.TypeTabUpdated} {
		if !f.events.has(typ) {
			t.Errorf("missing %s event", typ)
		}
	}
}

func TestCreateOrderValidation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, tab := f.open(t, nil)

	available := f.product(t, "10.00").String()
	unavailable, err := f.q.CreateProduct(ctx, database.CreateProductParams{Name: "sold out", Price: money.MustNew("4.00")})
	if err != nil {
		t.Fatalf("create product: %v", err)
	}

	tests := []struct {
		name      string
		orderType string
		items     []CreateOrderItemRequest
		want      error
		wantIndex string
	}{
		{"bad type", "TAKEAWAY", []CreateOrderItemRequest{{ProductID: available, Quantity: 1}}, ErrInvalidOrderType, ""},
		{"no items", "IN_TABLE", nil, ErrEmptyItems, ""},
		{"zero quantity", "IN_TABLE", []CreateOrderItemRequest{{ProductID: available, Quantity: 0}}, ErrInvalidQuantity, "item[0]"},
		{"bad product id", "IN_TABLE", []CreateOrderItemRequest{{ProductID: "nope", Quantity: 1}}, ErrInvalidProductID, "item[0]"},
		{"unknown product", "DELIVERY", []CreateOrderItemRequest{{ProductID: uuid.NewString(), Quantity: 1}}, ErrProductNotFound, "item[0]"},
		{
			"second item unavailable", "IN_TABLE",
			[]CreateOrderItemRequest{
				{ProductID: available, Quantity: 2},
				{ProductID: unavailable.ID.String(), Quantity: 1},
			},
			ErrProductUnavailable, "item[1]",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.orders.CreateOrder(ctx, CreateOrderRequest{
				TabID:     tab.ID,
				CreatedBy: f.staff,
				OrderType: tt.orderType,
				Items:     tt.items,
			})
			if !errors.Is(err, tt.want) {
				t.Fatalf("error = %v, want %v", err, tt.want)
			}
			if !IsValidation(err) {
				t.Errorf("IsValidation(%v) = false", err)
			}
			if tt.wantIndex != "" && !strings.Contains(err.Error(), tt.wantIndex) {
				t.Errorf("error %q does not name %s", err, tt.wantIndex)
			}
		})
	}

	orders, err := f.orders.ListOrders(ctx, tab.ID)
	if err != nil {
		t.Fatalf("list orders: %v", err)
	}
	if len(orders) != 0 {
		t.Errorf("orders = %d, want 0", len(orders))
	}
	assertMoney(t, "total", f.tab(t, tab.ID).TotalAmount, "0.00")
}

func TestCreateOrderIsAllOrNothing(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, tab := f.open(t, nil)
	product := f.product(t, "3.00").String()

	boom := errors.New("insert failed")
	f.db.FailOn("CreateOrderItem", boom)
	_, err := f.orders.CreateOrder(ctx, CreateOrderRequest{
		TabID:     tab.ID,
		CreatedBy: f.staff,
		OrderType: "IN_TABLE",
		Items: []CreateOrderItemRequest{
			{ProductID: product, Quantity: 1},
			{ProductID: product, Quantity: 1},
		},
	})
	f.db.ClearFailures()
	if !errors.Is(err, boom) {
		t.Fatalf("error = %v, want %v", err, boom)
	}

	orders, err := f.orders.ListOrders(ctx, tab.ID)
	if err != nil {
		t.Fatalf("list orders: %v", err)
	}
	if len(orders) != 0 {
		t.Errorf("orders = %d, want 0 after rollback", len(orders))
	}
}

func TestCreateOrderUnknownTab(t *testing.T) {
	f := newFixture(t)
	_, err := f.orders.CreateOrder(context.Background(), CreateOrderRequest{
		TabID:     uuid.New(),
		OrderType: "IN_TABLE",
		Items:     []CreateOrderItemRequest{{ProductID: f.product(t, "1.00").String(), Quantity: 1}},
	})
	if !errors.Is(err, ErrTabNotFound) {
		t.Errorf("error = %v, want ErrTabNotFound", err)
	}
}

func TestPriceSnapshotSurvivesCatalogChanges(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, tab := f.open(t, nil)
	product := f.product(t, "7.50")

	res := f.order(t, tab.ID, CreateOrderItemRequest{ProductID: product.String(), Quantity: 2})
	if err := f.q.SetProductAvailable(ctx, product, false); err != nil {
		t.Fatalf("set available: %v", err)
	}

	got, err := f.engine.Recompute(ctx, tab.ID)
	if err != nil {
		t.Fatalf("recompute: %v", err)
	}
	assertMoney(t, "total", got.TotalAmount, "15.00")

	_, err = f.orders.AddItem(ctx, res.Order.ID, CreateOrderItemRequest{ProductID: product.String(), Quantity: 1})
	if !errors.Is(err, ErrProductUnavailable) {
		t.Errorf("add unavailable: error = %v, want ErrProductUnavailable", err)
	}
}

func TestUpdateOrderStatusTransitions(t *testing.T) {
	tests := []struct {
		name string
		path []string
		to   string
		want error
	}{
		{"received to preparing", nil, "PREPARING", nil},
		{"received to out for delivery", nil, "OUT_FOR_DELIVERY", nil},
		{"received to delivered", nil, "DELIVERED", ErrInvalidTransition},
		{"preparing to delivered", []string{"PREPARING"}, "DELIVERED", nil},
		{"preparing to received", []string{"PREPARING"}, "RECEIVED", ErrInvalidTransition},
		{"out for delivery to cancelled", []string{"OUT_FOR_DELIVERY"}, "CANCELLED", nil},
		{"delivered is terminal", []string{"PREPARING", "DELIVERED"}, "CANCELLED", ErrTerminalOrder},
		{"cancelled is terminal", []string{"CANCELLED"}, "PREPARING", ErrTerminalOrder},
		{"unknown status", nil, "EATEN", ErrInvalidStatus},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			ctx := context.Background()
			_, tab := f.open(t, nil)
			res := f.order(t, tab.ID, CreateOrderItemRequest{ProductID: f.product(t, "2.00").String(), Quantity: 1})

			for _, step := range tt.path {
				if _, err := f.orders.UpdateOrderStatus(ctx, res.Order.ID, step); err != nil {
					t.Fatalf("step %s: %v", step, err)
				}
			}
			got, err := f.orders.UpdateOrderStatus(ctx, res.Order.ID, tt.to)
			if !errors.Is(err, tt.want) {
				t.Fatalf("error = %v, want %v", err, tt.want)
			}
			if tt.want == nil && string(got.Status) != tt.to {
				t.Errorf("status = %s, want %s", got.Status, tt.to)
			}
		})
	}
}

func TestCancelOrderRecomputesAndCascades(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, tab := f.open(t, nil)

	first := f.order(t, tab.ID,
		CreateOrderItemRequest{ProductID: f.product(t, "10.00").String(), Quantity: 1},
		CreateOrderItemRequest{ProductID: f.product(t, "2.00").String(), Quantity: 1},
	)
	f.order(t, tab.ID, CreateOrderItemRequest{ProductID: f.product(t, "5.00").String(), Quantity: 1})
	assertMoney(t, "total", f.tab(t, tab.ID).TotalAmount, "17.00")

	if _, err := f.orders.UpdateOrderStatus(ctx, first.Order.ID, "CANCELLED"); err != nil {
		t.Fatalf("cancel order: %v", err)
	}
	assertMoney(t, "total after cancel", f.tab(t, tab.ID).TotalAmount, "5.00")

	got, err := f.orders.GetOrder(ctx, first.Order.ID)
	if err != nil {
		t.Fatalf("get order: %v", err)
	}
	for _, item := range got.Items {
		if item.Status != database.OrderItemStatusCANCELLED {
			t.Errorf("item %s status = %s, want CANCELLED", item.ID, item.Status)
		}
	}
	if !f.events.has(event.TypeOrderCancelled) {
		t.Error("expected order.cancelled event")
	}
}

func TestCascadeDelivered(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, tab := f.open(t, nil)
	res := f.order(t, tab.ID,
		CreateOrderItemRequest{ProductID: f.product(t, "4.00").String(), Quantity: 1},
		CreateOrderItemRequest{ProductID: f.product(t, "6.00").String(), Quantity: 1},
	)
	if _, err := f.orders.RemoveItem(ctx, res.Items[0].ID); err != nil {
		t.Fatalf("remove item: %v", err)
	}

	for _, status := range []string{"PREPARING", "DELIVERED"} {
		if _, err := f.orders.UpdateOrderStatus(ctx, res.Order.ID, status); err != nil {
			t.Fatalf("%s: %v", status, err)
		}
	}

	got, err := f.orders.GetOrder(ctx, res.Order.ID)
	if err != nil {
		t.Fatalf("get order: %v", err)
	}
	if got.Items[0].Status != database.OrderItemStatusCANCELLED {
		t.Errorf("cancelled item became %s", got.Items[0].Status)
	}
	if got.Items[1].Status != database.OrderItemStatusDELIVERED {
		t.Errorf("open item = %s, want DELIVERED", got.Items[1].Status)
	}
	if _, err := f.orders.RemoveItem(ctx, res.Items[1].ID); !errors.Is(err, ErrItemDelivered) {
		t.Errorf("remove delivered: error = %v, want ErrItemDelivered", err)
	}
	assertMoney(t, "total", f.tab(t, tab.ID).TotalAmount, "6.00")
}

func TestAddItem(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, tab := f.open(t, nil)
	product := f.product(t, "3.00").String()
	res := f.order(t, tab.ID, CreateOrderItemRequest{ProductID: product, Quantity: 1})

	item, err := f.orders.AddItem(ctx, res.Order.ID, CreateOrderItemRequest{ProductID: product, Quantity: 4})
	if err != nil {
		t.Fatalf("add item: %v", err)
	}
	assertMoney(t, "subtotal", item.Subtotal, "12.00")
	assertMoney(t, "total", f.tab(t, tab.ID).TotalAmount, "15.00")

	if _, err := f.orders.UpdateOrderStatus(ctx, res.Order.ID, "PREPARING"); err != nil {
		t.Fatalf("preparing: %v", err)
	}
	_, err = f.orders.AddItem(ctx, res.Order.ID, CreateOrderItemRequest{ProductID: product, Quantity: 1})
	if !errors.Is(err, ErrOrderNotOpen) {
		t.Errorf("add to preparing order: error = %v, want ErrOrderNotOpen", err)
	}

	if _, err := f.orders.AddItem(ctx, uuid.New(), CreateOrderItemRequest{ProductID: product, Quantity: 1}); !errors.Is(err, ErrOrderNotFound) {
		t.Errorf("unknown order: error = %v, want ErrOrderNotFound", err)
	}
}

func TestOrderChangesOnSettledTab(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, tab := f.open(t, nil)
	res := f.order(t, tab.ID, CreateOrderItemRequest{ProductID: f.product(t, "8.00").String(), Quantity: 1})
	f.pay(t, tab.ID, "8.00")

	if _, err := f.orders.UpdateOrderStatus(ctx, res.Order.ID, "CANCELLED"); !errors.Is(err, ErrTabTerminal) {
		t.Errorf("cancel order: error = %v, want ErrTabTerminal", err)
	}
	if _, err := f.orders.RemoveItem(ctx, res.Items[0].ID); !errors.Is(err, ErrTabTerminal) {
		t.Errorf("remove item: error = %v, want ErrTabTerminal", err)
	}
	if _, err := f.orders.AddItem(ctx, res.Order.ID, CreateOrderItemRequest{ProductID: f.product(t, "1.00").String(), Quantity: 1}); !errors.Is(err, ErrTabNotOpen) {
		t.Errorf("add item: error = %v, want ErrTabNotOpen", err)
	}

	// The kitchen can still deliver what was paid for.
	if _, err := f.orders.UpdateOrderStatus(ctx, res.Order.ID, "PREPARING"); err != nil {
		t.Errorf("preparing on settled tab: %v", err)
	}
	if got := f.tab(t, tab.ID); got.Status != database.TabStatusFULLYPAID {
		t.Errorf("tab status = %s, want FULLY_PAID", got.Status)
	}
}

func TestUpdateItemStatus(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, tab := f.open(t, nil)
	res := f.order(t, tab.ID,
		CreateOrderItemRequest{ProductID: f.product(t, "4.00").String(), Quantity: 1},
		CreateOrderItemRequest{ProductID: f.product(t, "6.00").String(), Quantity: 1},
	)
	first, second := res.Items[0].ID, res.Items[1].ID

	if _, err := f.orders.UpdateItemStatus(ctx, first, "DELIVERED"); !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("skip preparing: error = %v, want ErrInvalidTransition", err)
	}
	for _, status := range []string{"PREPARING", "DELIVERED"} {
		item, err := f.orders.UpdateItemStatus(ctx, first, status)
		if err != nil {
			t.Fatalf("%s: %v", status, err)
		}
		if string(item.Status) != status {
			t.Errorf("status = %s, want %s", item.Status, status)
		}
	}
	if _, err := f.orders.UpdateItemStatus(ctx, first, "CANCELLED"); !errors.Is(err, ErrItemDelivered) {
		t.Errorf("cancel delivered: error = %v, want ErrItemDelivered", err)
	}

	if _, err := f.orders.UpdateItemStatus(ctx, second, "CANCELLED"); err != nil {
		t.Fatalf("cancel item: %v", err)
	}
	assertMoney(t, "total", f.tab(t, tab.ID).TotalAmount, "4.00")

	if _, err := f.orders.UpdateItemStatus(ctx, second, "BURNT"); !errors.Is(err, ErrInvalidStatus) {
		t.Errorf("unknown status: error = %v, want ErrInvalidStatus", err)
	}
	if _, err := f.orders.UpdateItemStatus(ctx, uuid.New(), "PREPARING"); !errors.Is(err, ErrItemNotFound) {
		t.Errorf("unknown item: error = %v, want ErrItemNotFound", err)
	}
}

func TestOrderAmountsBeyondStorage(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, tab := f.open(t, nil)
	big := f.product(t, "9999999999.99").String()

	_, err := f.orders.CreateOrder(ctx, CreateOrderRequest{
		TabID:     tab.ID,
		CreatedBy: f.staff,
		OrderType: "IN_TABLE",
		Items:     []CreateOrderItemRequest{{ProductID: big, Quantity: 2}},
	})
	if !errors.Is(err, ErrAmountTooLarge) || !IsValidation(err) {
		t.Fatalf("oversized subtotal: error = %v, want ErrAmountTooLarge", err)
	}

	// Each subtotal fits but the tab total does not.
	_, err = f.orders.CreateOrder(ctx, CreateOrderRequest{
		TabID:     tab.ID,
		CreatedBy: f.staff,
		OrderType: "IN_TABLE",
		Items: []CreateOrderItemRequest{
			{ProductID: big, Quantity: 1},
			{ProductID: big, Quantity: 1},
		},
	})
	if !errors.Is(err, ErrAmountTooLarge) || !IsValidation(err) {
		t.Fatalf("oversized total: error = %v, want ErrAmountTooLarge", err)
	}

	got := f.tab(t, tab.ID)
	assertMoney(t, "total", got.TotalAmount, "0.00")
	if orders, _ := f.q.ListOrdersByTab(ctx, tab.ID); len(orders) != 0 {
		t.Errorf("orders = %d, want none after rejected orders", len(orders))
	}
}
