package service

import (
	"context"
	"errors"
	"testing"

	"github.com/comanda-pos/api/internal/database"
	"github.com/comanda-pos/api/internal/event"
	"github.com/comanda-pos/api/internal/money"
	"github.com/google/uuid"
)

func TestRegisterPaymentValidation(t *testing.T) {
	f := newFixture(t)
	_, tab := f.tabWithTotal(t, "10.00", nil)

	tests := []struct {
		name   string
		amount string
		method string
		want   error
	}{
		{"zero", "0.00", "CASH", ErrNonPositiveAmount},
		{"negative", "-1.00", "CASH", ErrNonPositiveAmount},
		{"settlement is reserved", "1.00", "CREDIT_SETTLEMENT", ErrInvalidPaymentMethod},
		{"unknown method", "1.00", "BITCOIN", ErrInvalidPaymentMethod},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.payments.RegisterPayment(context.Background(), RegisterPaymentRequest{
				TabID:       tab.ID,
				Amount:      money.MustNew(tt.amount),
				Method:      tt.method,
				ProcessedBy: f.staff,
			})
			if !errors.Is(err, tt.want) {
				t.Errorf("error = %v, want %v", err, tt.want)
			}
		})
	}
	assertMoney(t, "paid", f.tab(t, tab.ID).PaidAmount, "0.00")
}

func TestRegisterPaymentSettlesTab(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	table, tab := f.tabWithTotal(t, "100.00", nil)

	res := f.pay(t, tab.ID, "60.00")
	if res.Payment.Status != database.PaymentStatusAPPROVED {
		t.Errorf("payment status = %s", res.Payment.Status)
	}
	if res.Tab.Status != database.TabStatusPARTIALLYPAID {
		t.Errorf("status = %s, want PARTIALLY_PAID", res.Tab.Status)
	}
	assertMoney(t, "outstanding", Outstanding(res.Tab), "40.00")

	res, err := f.payments.RegisterPayment(ctx, RegisterPaymentRequest{
		TabID:          tab.ID,
		Amount:         money.MustNew("40.00"),
		Method:         "CREDIT_CARD",
		ProcessedBy:    f.staff,
		TransactionRef: "NSU-123",
	})
	if err != nil {
		t.Fatalf("pay: %v", err)
	}
	if res.Tab.Status != database.TabStatusFULLYPAID {
		t.Errorf("status = %s, want FULLY_PAID", res.Tab.Status)
	}
	if res.Payment.TransactionRef.String != "NSU-123" {
		t.Errorf("transaction ref = %q", res.Payment.TransactionRef.String)
	}
	if got := f.table(t, table.ID); got.Status != database.TableStatusAVAILABLE {
		t.Errorf("table status = %s, want AVAILABLE", got.Status)
	}
	for _, typ := range []string{event.TypePaymentRegistered, event.TypeTabSettled, event.TypeTableClosed} {
		if !f.events.has(typ) {
			t.Errorf("missing %s event", typ)
		}
	}

	_, err = f.payments.RegisterPayment(ctx, RegisterPaymentRequest{
		TabID:       tab.ID,
		Amount:      money.MustNew("1.00"),
		Method:      "CASH",
		ProcessedBy: f.staff,
	})
	if !errors.Is(err, ErrTabTerminal) || !IsConflict(err) {
		t.Errorf("pay settled tab: error = %v, want ErrTabTerminal", err)
	}
}

func TestOverpaymentIsAcceptedAndFlagged(t *testing.T) {
	f := newFixture(t)
	_, tab := f.tabWithTotal(t, "10.00", nil)

	res := f.pay(t, tab.ID, "15.00")
	if res.Tab.Status != database.TabStatusFULLYPAID {
		t.Errorf("status = %s, want FULLY_PAID", res.Tab.Status)
	}
	assertMoney(t, "paid", res.Tab.PaidAmount, "15.00")
	if !f.events.has(event.TypeTabOverpaid) {
		t.Error("expected tab.overpaid event")
	}
}

func TestReverseOnlyPaymentReopensTab(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	table, tab := f.tabWithTotal(t, "10.00", nil)
	paid := f.pay(t, tab.ID, "10.00")
	if got := f.table(t, table.ID); got.Status != database.TableStatusAVAILABLE {
		t.Fatalf("table status = %s, want AVAILABLE", got.Status)
	}

	res, err := f.payments.ReversePayment(ctx, paid.Payment.ID, f.staff)
	if err != nil {
		t.Fatalf("reverse: %v", err)
	}
	if res.Payment.Status != database.PaymentStatusREVERSED || !res.Payment.ReversedAt.Valid {
		t.Errorf("payment = %+v", res.Payment)
	}
	if res.Tab.Status != database.TabStatusOPEN {
		t.Errorf("tab status = %s, want OPEN", res.Tab.Status)
	}
	assertMoney(t, "paid", res.Tab.PaidAmount, "0.00")
	if got := f.table(t, table.ID); got.Status != database.TableStatusOCCUPIED {
		t.Errorf("table status = %s, want OCCUPIED", got.Status)
	}
	if !f.events.has(event.TypePaymentReversed) {
		t.Error("expected payment.reversed event")
	}

	if _, err := f.payments.ReversePayment(ctx, paid.Payment.ID, f.staff); !errors.Is(err, ErrAlreadyReversed) {
		t.Errorf("second reversal: error = %v, want ErrAlreadyReversed", err)
	}
	if _, err := f.payments.ReversePayment(ctx, uuid.New(), f.staff); !errors.Is(err, ErrPaymentNotFound) {
		t.Errorf("unknown payment: error = %v, want ErrPaymentNotFound", err)
	}

	// Reopened tabs take orders again.
	f.order(t, tab.ID, CreateOrderItemRequest{ProductID: f.product(t, "2.00").String(), Quantity: 1})
	assertMoney(t, "total", f.tab(t, tab.ID).TotalAmount, "12.00")
}

func TestReverseLeavesPartialPayment(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, tab := f.tabWithTotal(t, "10.00", nil)
	f.pay(t, tab.ID, "4.00")
	last := f.pay(t, tab.ID, "6.00")

	res, err := f.payments.ReversePayment(ctx, last.Payment.ID, f.staff)
	if err != nil {
		t.Fatalf("reverse: %v", err)
	}
	if res.Tab.Status != database.TabStatusPARTIALLYPAID {
		t.Errorf("status = %s, want PARTIALLY_PAID", res.Tab.Status)
	}
	assertMoney(t, "outstanding", Outstanding(res.Tab), "6.00")

	payments, err := f.payments.ListPayments(ctx, tab.ID)
	if err != nil {
		t.Fatalf("list payments: %v", err)
	}
	if len(payments) != 2 || payments[1].Status != database.PaymentStatusREVERSED {
		t.Errorf("payments = %+v", payments)
	}
}

func TestReverseAfterTableReassigned(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	table, tab := f.tabWithTotal(t, "10.00", nil)
	paid := f.pay(t, tab.ID, "10.00")

	if _, _, err := f.tables.Open(ctx, OpenTableRequest{TableID: table.ID}); err != nil {
		t.Fatalf("reopen table: %v", err)
	}

	_, err := f.payments.ReversePayment(ctx, paid.Payment.ID, f.staff)
	if !errors.Is(err, ErrTableReoccupied) {
		t.Fatalf("error = %v, want ErrTableReoccupied", err)
	}
	got := f.tab(t, tab.ID)
	if got.Status != database.TabStatusFULLYPAID {
		t.Errorf("status = %s, want FULLY_PAID", got.Status)
	}
	p, err := f.q.GetPayment(ctx, paid.Payment.ID)
	if err != nil {
		t.Fatalf("get payment: %v", err)
	}
	if p.Status != database.PaymentStatusAPPROVED {
		t.Errorf("payment status = %s, want APPROVED after rollback", p.Status)
	}
}

func TestListPaymentsUnknownTab(t *testing.T) {
	f := newFixture(t)
	if _, err := f.payments.ListPayments(context.Background(), uuid.New()); !errors.Is(err, ErrTabNotFound) {
		t.Errorf("error = %v, want ErrTabNotFound", err)
	}
}

func TestPaymentCannotTakeCreditedBalance(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	customer := f.customer(t)
	_, tab := f.tabWithTotal(t, "100.00", &customer)
	converted := f.convert(t, tab.ID, nil)

	_, err := f.payments.RegisterPayment(ctx, RegisterPaymentRequest{
		TabID:       tab.ID,
		Amount:      money.MustNew("100.00"),
		Method:      "CASH",
		ProcessedBy: f.staff,
	})
	if !errors.Is(err, ErrTabOnCredit) || !IsConflict(err) {
		t.Fatalf("pay credited tab: error = %v, want ErrTabOnCredit", err)
	}
	got := f.tab(t, tab.ID)
	assertMoney(t, "paid", got.PaidAmount, "0.00")
	assertMoney(t, "credited", got.CreditedAmount, "100.00")
	credit, err := f.credits.GetCredit(ctx, converted.Credit.ID)
	if err != nil {
		t.Fatalf("get credit: %v", err)
	}
	assertMoney(t, "credit outstanding", credit.OutstandingAmount, "100.00")
}

func TestPaymentCoversOnlyTheUncreditedPart(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	customer := f.customer(t)
	_, tab := f.tabWithTotal(t, "100.00", &customer)
	paid := f.pay(t, tab.ID, "30.00")
	f.convert(t, tab.ID, nil)

	// Reversing the cash leaves 30.00 owed outside the 70.00 credit.
	if _, err := f.payments.ReversePayment(ctx, paid.Payment.ID, f.staff); err != nil {
		t.Fatalf("reverse: %v", err)
	}
	_, err := f.payments.RegisterPayment(ctx, RegisterPaymentRequest{
		TabID:       tab.ID,
		Amount:      money.MustNew("30.01"),
		Method:      "CASH",
		ProcessedBy: f.staff,
	})
	if !errors.Is(err, ErrTabOnCredit) {
		t.Fatalf("pay into credit: error = %v, want ErrTabOnCredit", err)
	}

	res := f.pay(t, tab.ID, "30.00")
	if res.Tab.Status != database.TabStatusONCREDIT {
		t.Errorf("status = %s, want ON_CREDIT", res.Tab.Status)
	}
	assertMoney(t, "outstanding", Outstanding(res.Tab), "0.00")
	assertMoney(t, "credited", res.Tab.CreditedAmount, "70.00")
}

func TestReverseOnOverpaidTabKeepsItSettled(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	table, tab := f.tabWithTotal(t, "10.00", nil)
	small := f.pay(t, tab.ID, "2.00")
	f.pay(t, tab.ID, "12.00")
	opened := f.events.countType(event.TypeTableOpened)

	res, err := f.payments.ReversePayment(ctx, small.Payment.ID, f.staff)
	if err != nil {
		t.Fatalf("reverse: %v", err)
	}
	if res.Tab.Status != database.TabStatusFULLYPAID {
		t.Errorf("status = %s, want FULLY_PAID", res.Tab.Status)
	}
	assertMoney(t, "paid", res.Tab.PaidAmount, "12.00")
	if got := f.table(t, table.ID); got.Status != database.TableStatusAVAILABLE {
		t.Errorf("table status = %s, want AVAILABLE", got.Status)
	}
	if n := f.events.countType(event.TypeTableOpened); n != opened {
		t.Errorf("table.opened events = %d, want %d", n, opened)
	}
}

func TestReverseOnOverpaidTabLeavesReseatedTableAlone(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	table, tab := f.tabWithTotal(t, "10.00", nil)
	small := f.pay(t, tab.ID, "2.00")
	f.pay(t, tab.ID, "12.00")
	_, next, err := f.tables.Open(ctx, OpenTableRequest{TableID: table.ID})
	if err != nil {
		t.Fatalf("reseat table: %v", err)
	}

	if _, err := f.payments.ReversePayment(ctx, small.Payment.ID, f.staff); err != nil {
		t.Fatalf("reverse: %v", err)
	}
	if got := f.table(t, table.ID); got.Status != database.TableStatusOCCUPIED {
		t.Errorf("table status = %s, want OCCUPIED by the new tab", got.Status)
	}
	if active, err := f.engine.ActiveForTable(ctx, table.ID); err != nil || active.ID != next.ID {
		t.Errorf("active tab = %v (%v), want %s", active.ID, err, next.ID)
	}
}
