package handler_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/comanda-pos/api/internal/auth"
	"github.com/comanda-pos/api/internal/database"
	"github.com/comanda-pos/api/internal/handler"
	"github.com/comanda-pos/api/internal/middleware"
	"github.com/comanda-pos/api/internal/service"
	"github.com/comanda-pos/api/internal/store/memory"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

const roleHeader = "X-Test-Role"

// floor wires the real services over the in-memory store.
type floor struct {
	router http.Handler
	staff  uuid.UUID
}

func newFloor(t *testing.T) *floor {
	t.Helper()
	db := memory.New()
	q := db.Queries()
	newStore := func(dbtx database.DBTX) service.Store { return db.Bind(dbtx) }
	engine := service.NewTabEngine(db, q, newStore,
		service.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))))

	f := &floor{staff: uuid.New()}
	r := chi.NewRouter()
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			role := r.Header.Get(roleHeader)
			if role == "" {
				role = "MANAGER"
			}
			ctx := middleware.WithClaims(r.Context(), &auth.Claims{StaffID: f.staff, Role: role})
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	})

	tables := handler.NewTableHandler(service.NewTableRegistry(engine, q), engine)
	r.Route("/tables", tables.RegisterRoutes)
	r.Route("/public/tables", tables.RegisterPublicRoutes)
	r.Route("/tabs", handler.NewTabHandler(engine).RegisterRoutes)
	handler.NewOrderHandler(service.NewOrderLedger(engine, q)).RegisterRoutes(r)
	handler.NewPaymentHandler(service.NewPaymentProcessor(engine)).RegisterRoutes(r)
	handler.NewCreditHandler(service.NewCreditLedger(engine, q)).RegisterRoutes(r)
	handler.NewCatalogHandler(q).RegisterRoutes(r)

	f.router = r
	return f
}

func (f *floor) call(t *testing.T, role, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var rdr io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal request: %v", err)
		}
		rdr = bytes.NewReader(b)
	}
	req := httptest.NewRequest(method, path, rdr)
	req.Header.Set("Content-Type", "application/json")
	if role != "" {
		req.Header.Set(roleHeader, role)
	}
	rr := httptest.NewRecorder()
	f.router.ServeHTTP(rr, req)
	return rr
}

// must performs a manager call and fails unless it answers want.
func (f *floor) must(t *testing.T, want int, method, path string, body interface{}) map[string]interface{} {
	t.Helper()
	rr := f.call(t, "", method, path, body)
	if rr.Code != want {
		t.Fatalf("%s %s: status %d, want %d; body: %s", method, path, rr.Code, want, rr.Body.String())
	}
	return decodeResponse(t, rr)
}

func (f *floor) openTable(t *testing.T, number string, body interface{}) (tableID, tabID string) {
	t.Helper()
	table := f.must(t, http.StatusCreated, "POST", "/tables", map[string]interface{}{"number": number, "capacity": 4})
	tableID = table["id"].(string)
	opened := f.must(t, http.StatusCreated, "POST", "/tables/"+tableID+"/open", body)
	tabID = opened["tab"].(map[string]interface{})["id"].(string)
	return tableID, tabID
}

func (f *floor) product(t *testing.T, price string) string {
	t.Helper()
	p := f.must(t, http.StatusCreated, "POST", "/products", map[string]string{"name": "Feijoada", "price": price})
	return p["id"].(string)
}

func field(t *testing.T, m map[string]interface{}, path ...string) interface{} {
	t.Helper()
	var cur interface{} = m
	for _, k := range path {
		obj, ok := cur.(map[string]interface{})
		if !ok {
			t.Fatalf("%v: %q is not an object", path, k)
		}
		cur = obj[k]
	}
	return cur
}

func TestFloorHappyPath(t *testing.T) {
	f := newFloor(t)
	customer := f.must(t, http.StatusCreated, "POST", "/customers", map[string]string{"name": "Ana", "phone": "11 99999-0000"})
	customerID := customer["id"].(string)

	tableID, tabID := f.openTable(t, "1", map[string]string{"customer_id": customerID})
	productID := f.product(t, "12.50")

	order := f.must(t, http.StatusCreated, "POST", "/tabs/"+tabID+"/orders", map[string]interface{}{
		"items": []map[string]interface{}{{"product_id": productID, "quantity": 2, "notes": "sem cebola"}},
	})
	if order["order_type"] != "IN_TABLE" || order["created_by"] != f.staff.String() {
		t.Errorf("order = %v", order)
	}
	items := order["items"].([]interface{})
	if len(items) != 1 || items[0].(map[string]interface{})["subtotal"] != "25.00" {
		t.Errorf("items = %v", items)
	}

	tab := f.must(t, http.StatusOK, "GET", "/tabs/"+tabID, nil)
	if tab["total_amount"] != "25.00" || tab["outstanding"] != "25.00" {
		t.Errorf("tab = %v", tab)
	}

	paid := f.must(t, http.StatusCreated, "POST", "/tabs/"+tabID+"/payments", map[string]string{"amount": "10.00", "method": "CASH"})
	if field(t, paid, "tab", "status") != "PARTIALLY_PAID" || field(t, paid, "tab", "outstanding") != "15.00" {
		t.Errorf("after payment: %v", paid["tab"])
	}

	credit := f.must(t, http.StatusCreated, "POST", "/tabs/"+tabID+"/credit", map[string]string{"due_date": "2026-12-01"})
	if field(t, credit, "tab", "status") != "ON_CREDIT" || field(t, credit, "credit", "outstanding_amount") != "15.00" {
		t.Errorf("after credit: %v", credit)
	}
	if field(t, credit, "credit", "due_date") != "2026-12-01" {
		t.Errorf("due date = %v", field(t, credit, "credit", "due_date"))
	}
	creditID := field(t, credit, "credit", "id").(string)

	// The credited balance is only payable through the credit.
	f.must(t, http.StatusConflict, "POST", "/tabs/"+tabID+"/payments", map[string]string{"amount": "15.00", "method": "CASH"})

	var list []map[string]interface{}
	rr := f.call(t, "", "GET", "/customers/"+customerID+"/credits?status=PENDING", nil)
	if err := json.NewDecoder(rr.Body).Decode(&list); err != nil || len(list) != 1 {
		t.Fatalf("pending credits = %v (%v)", list, err)
	}

	repaid := f.must(t, http.StatusCreated, "POST", "/credits/"+creditID+"/payments", map[string]string{"amount": "15.00", "tender_method": "PIX"})
	if field(t, repaid, "credit", "status") != "FULLY_PAID" || field(t, repaid, "tab", "status") != "FULLY_PAID" {
		t.Errorf("after repayment: %v", repaid)
	}
	if field(t, repaid, "payment", "method") != "CREDIT_SETTLEMENT" || field(t, repaid, "payment", "tender_method") != "PIX" {
		t.Errorf("settlement payment = %v", repaid["payment"])
	}

	table := f.must(t, http.StatusOK, "GET", "/tables/"+tableID, nil)
	if table["status"] != "AVAILABLE" {
		t.Errorf("table status = %v, want AVAILABLE", table["status"])
	}
	f.must(t, http.StatusNotFound, "GET", "/tables/"+tableID+"/tab", nil)
}

func TestOpenOccupiedTableReturnsRunningTab(t *testing.T) {
	f := newFloor(t)
	tableID, tabID := f.openTable(t, "4", nil)

	resp := f.must(t, http.StatusConflict, "POST", "/tables/"+tableID+"/open", nil)
	if resp["error"] == "" || field(t, resp, "tab", "id") != tabID {
		t.Errorf("conflict body = %v", resp)
	}
}

func TestPublicTableView(t *testing.T) {
	f := newFloor(t)
	table := f.must(t, http.StatusCreated, "POST", "/tables", map[string]interface{}{"number": "9", "capacity": 2})
	token := table["access_token"].(string)
	if token == "" {
		t.Fatal("expected an access token")
	}

	idle := f.must(t, http.StatusOK, "GET", "/public/tables/"+token, nil)
	if idle["tab"] != nil {
		t.Errorf("idle table tab = %v, want null", idle["tab"])
	}
	if _, leaked := idle["table"].(map[string]interface{})["access_token"]; leaked {
		t.Error("public view leaked the access token")
	}

	f.must(t, http.StatusCreated, "POST", "/tables/"+table["id"].(string)+"/open", nil)
	busy := f.must(t, http.StatusOK, "GET", "/public/tables/"+token, nil)
	if field(t, busy, "tab", "status") != "OPEN" {
		t.Errorf("public tab = %v", busy["tab"])
	}

	f.must(t, http.StatusNotFound, "GET", "/public/tables/nope", nil)
}

func TestReversePaymentEndpoint(t *testing.T) {
	f := newFloor(t)
	_, tabID := f.openTable(t, "2", nil)
	productID := f.product(t, "8.00")
	f.must(t, http.StatusCreated, "POST", "/tabs/"+tabID+"/orders", map[string]interface{}{
		"items": []map[string]interface{}{{"product_id": productID, "quantity": 1}},
	})

	paid := f.must(t, http.StatusCreated, "POST", "/tabs/"+tabID+"/payments", map[string]string{
		"amount": "8.00", "method": "DEBIT_CARD", "transaction_ref": "AUTH-1",
	})
	if field(t, paid, "tab", "status") != "FULLY_PAID" {
		t.Fatalf("tab = %v", paid["tab"])
	}
	paymentID := field(t, paid, "payment", "id").(string)

	reversed := f.must(t, http.StatusOK, "POST", "/payments/"+paymentID+"/reverse", nil)
	if field(t, reversed, "payment", "status") != "REVERSED" || field(t, reversed, "payment", "reversed_by") != f.staff.String() {
		t.Errorf("payment = %v", reversed["payment"])
	}
	if field(t, reversed, "tab", "status") != "OPEN" {
		t.Errorf("tab = %v", reversed["tab"])
	}
	f.must(t, http.StatusConflict, "POST", "/payments/"+paymentID+"/reverse", nil)
}

func TestOrderItemEndpoints(t *testing.T) {
	f := newFloor(t)
	_, tabID := f.openTable(t, "3", nil)
	productID := f.product(t, "5.00")
	order := f.must(t, http.StatusCreated, "POST", "/tabs/"+tabID+"/orders", map[string]interface{}{
		"items": []map[string]interface{}{{"product_id": productID, "quantity": 1}},
	})
	orderID := order["id"].(string)

	added := f.must(t, http.StatusCreated, "POST", "/orders/"+orderID+"/items", map[string]interface{}{"product_id": productID, "quantity": 3})
	itemID := added["id"].(string)
	if tab := f.must(t, http.StatusOK, "GET", "/tabs/"+tabID, nil); tab["total_amount"] != "20.00" {
		t.Errorf("total = %v, want 20.00", tab["total_amount"])
	}

	// The item must belong to the order in the path.
	other := f.must(t, http.StatusCreated, "POST", "/tabs/"+tabID+"/orders", map[string]interface{}{
		"items": []map[string]interface{}{{"product_id": productID, "quantity": 1}},
	})
	f.must(t, http.StatusNotFound, "DELETE", "/orders/"+other["id"].(string)+"/items/"+itemID, nil)

	removed := f.must(t, http.StatusOK, "DELETE", "/orders/"+orderID+"/items/"+itemID, nil)
	if removed["status"] != "CANCELLED" {
		t.Errorf("removed item = %v", removed)
	}
	if tab := f.must(t, http.StatusOK, "GET", "/tabs/"+tabID, nil); tab["total_amount"] != "10.00" {
		t.Errorf("total = %v, want 10.00", tab["total_amount"])
	}

	rr := f.call(t, "KITCHEN", "PATCH", "/orders/"+orderID+"/status", map[string]string{"status": "PREPARING"})
	if rr.Code != http.StatusOK {
		t.Fatalf("kitchen status update: %d %s", rr.Code, rr.Body.String())
	}
	f.must(t, http.StatusBadRequest, "PATCH", "/orders/"+orderID+"/status", map[string]string{"status": "EATEN"})

	got := f.must(t, http.StatusOK, "GET", "/orders/"+orderID, nil)
	if got["status"] != "PREPARING" || len(got["items"].([]interface{})) != 2 {
		t.Errorf("order = %v", got)
	}
}

func TestRoleGuards(t *testing.T) {
	f := newFloor(t)
	_, tabID := f.openTable(t, "5", nil)

	tests := []struct {
		name   string
		role   string
		method string
		path   string
		want   int
	}{
		{"waiter cannot take payments", "WAITER", "POST", "/tabs/" + tabID + "/payments", http.StatusForbidden},
		{"kitchen cannot open tables", "KITCHEN", "POST", "/tables/" + uuid.NewString() + "/open", http.StatusForbidden},
		{"cashier cannot create tables", "CASHIER", "POST", "/tables", http.StatusForbidden},
		{"waiter cannot cancel tabs", "WAITER", "POST", "/tabs/" + tabID + "/cancel", http.StatusForbidden},
		{"kitchen reads tabs", "KITCHEN", "GET", "/tabs/" + tabID, http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := f.call(t, tt.role, tt.method, tt.path, map[string]string{})
			if rr.Code != tt.want {
				t.Errorf("status: got %d, want %d; body: %s", rr.Code, tt.want, rr.Body.String())
			}
		})
	}
}

func TestBadInput(t *testing.T) {
	f := newFloor(t)
	_, tabID := f.openTable(t, "6", nil)

	tests := []struct {
		name   string
		method string
		path   string
		body   interface{}
		want   int
	}{
		{"malformed tab id", "GET", "/tabs/not-a-uuid", nil, http.StatusBadRequest},
		{"unknown tab", "GET", "/tabs/" + uuid.NewString(), nil, http.StatusNotFound},
		{"missing amount", "POST", "/tabs/" + tabID + "/payments", map[string]string{"method": "CASH"}, http.StatusBadRequest},
		{"garbage amount", "POST", "/tabs/" + tabID + "/payments", map[string]string{"amount": "ten", "method": "CASH"}, http.StatusBadRequest},
		{"negative amount", "POST", "/tabs/" + tabID + "/payments", map[string]string{"amount": "-1", "method": "CASH"}, http.StatusBadRequest},
		{"amount beyond storage", "POST", "/tabs/" + tabID + "/payments", map[string]string{"amount": "1e15", "method": "CASH"}, http.StatusBadRequest},
		{"empty order", "POST", "/tabs/" + tabID + "/orders", map[string]interface{}{"items": []interface{}{}}, http.StatusBadRequest},
		{"credit without customer", "POST", "/tabs/" + tabID + "/credit", nil, http.StatusBadRequest},
		{"bad customer id", "POST", "/tabs/" + tabID + "/credit", map[string]string{"customer_id": "x"}, http.StatusBadRequest},
		{"unknown credit", "GET", "/credits/" + uuid.NewString(), nil, http.StatusNotFound},
		{"unknown product", "GET", "/products/" + uuid.NewString(), nil, http.StatusNotFound},
		{"table status occupied", "PATCH", "/tables/" + uuid.NewString() + "/status", map[string]string{"status": "OCCUPIED"}, http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := f.call(t, "", tt.method, tt.path, tt.body)
			if rr.Code != tt.want {
				t.Errorf("status: got %d, want %d; body: %s", rr.Code, tt.want, rr.Body.String())
			}
		})
	}
}

// --- Error mapping ---

type busyTabs struct{}

func (busyTabs) Get(context.Context, uuid.UUID) (database.Tab, error) {
	return database.Tab{}, service.ErrBusy
}

func (busyTabs) Recompute(context.Context, uuid.UUID) (database.Tab, error) {
	return database.Tab{}, context.DeadlineExceeded
}

func (busyTabs) RequestClose(context.Context, uuid.UUID) (database.Tab, error) {
	return database.Tab{}, service.ErrAlreadyClosed
}

func (busyTabs) Cancel(context.Context, uuid.UUID) (database.Tab, error) {
	return database.Tab{}, service.ErrTabNotFound
}

func TestServiceErrorMapping(t *testing.T) {
	r := chi.NewRouter()
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := middleware.WithClaims(r.Context(), &auth.Claims{StaffID: uuid.New(), Role: "MANAGER"})
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	})
	r.Route("/tabs", handler.NewTabHandler(busyTabs{}).RegisterRoutes)
	id := uuid.NewString()

	tests := []struct {
		name   string
		method string
		path   string
		want   int
	}{
		{"lock timeout", "GET", "/tabs/" + id, http.StatusServiceUnavailable},
		{"unexpected", "POST", "/tabs/" + id + "/recompute", http.StatusInternalServerError},
		{"conflict", "POST", "/tabs/" + id + "/close-request", http.StatusConflict},
		{"not found", "POST", "/tabs/" + id + "/cancel", http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := httptest.NewRecorder()
			r.ServeHTTP(rr, httptest.NewRequest(tt.method, tt.path, nil))
			if rr.Code != tt.want {
				t.Errorf("status: got %d, want %d", rr.Code, tt.want)
			}
			if tt.want == http.StatusServiceUnavailable && rr.Header().Get("Retry-After") == "" {
				t.Error("expected Retry-After header")
			}
		})
	}
}
