package memory

import (
	"cmp"
	"context"
	"slices"
	"time"

	"github.com/comanda-pos/api/internal/database"
	"github.com/comanda-pos/api/internal/money"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
)

// Queries mirrors database.Queries. Bound to a Tx it works on the
// transaction's copy; otherwise on committed state.
type Queries struct {
	db *DB
	tx *Tx
}

func (q *Queries) read(method string, fn func(st *state) error) error {
	if err := q.db.failure(method); err != nil {
		return err
	}
	if q.tx != nil {
		if q.tx.done {
			return pgx.ErrTxClosed
		}
		return fn(q.tx.st)
	}
	return fn(q.db.snapshot())
}

// write outside a transaction commits on its own, like an autocommit
// statement.
func (q *Queries) write(ctx context.Context, method string, fn func(st *state) error) error {
	if err := q.db.failure(method); err != nil {
		return err
	}
	if q.tx != nil {
		if q.tx.done {
			return pgx.ErrTxClosed
		}
		return fn(q.tx.st)
	}
	return q.db.apply(fn)
}

func (q *Queries) now() time.Time { return q.db.now() }

func get[T any](m map[uuid.UUID]T, id uuid.UUID) (T, error) {
	v, ok := m[id]
	if !ok {
		var zero T
		return zero, pgx.ErrNoRows
	}
	return v, nil
}

// list returns the values matching keep in insertion order.
func list[T any](st *state, m map[uuid.UUID]T, id func(T) uuid.UUID, keep func(T) bool) []T {
	out := []T{}
	for _, v := range m {
		if keep(v) {
			out = append(out, v)
		}
	}
	slices.SortFunc(out, func(a, b T) int {
		return cmp.Compare(st.order[id(a)], st.order[id(b)])
	})
	return out
}

func (q *Queries) SetLockTimeout(ctx context.Context, timeout string) error {
	return q.read("SetLockTimeout", func(*state) error { return nil })
}

// --- Tables ---

func (q *Queries) CreateTable(ctx context.Context, arg database.CreateTableParams) (database.Table, error) {
	var t database.Table
	err := q.write(ctx, "CreateTable", func(st *state) error {
		for _, existing := range st.tables {
			if existing.Number == arg.Number {
				return uniqueViolation("tables_number_key")
			}
			if existing.AccessToken == arg.AccessToken {
				return uniqueViolation("tables_access_token_key")
			}
		}
		now := q.now()
		t = database.Table{
			ID:          uuid.New(),
			Number:      arg.Number,
			Capacity:    arg.Capacity,
			Status:      database.TableStatusAVAILABLE,
			AccessToken: arg.AccessToken,
			CreatedAt:   now,
			UpdatedAt:   now,
		}
		st.tables[t.ID] = t
		st.track(t.ID)
		return nil
	})
	return t, err
}

func (q *Queries) GetTable(ctx context.Context, id uuid.UUID) (database.Table, error) {
	var t database.Table
	err := q.read("GetTable", func(st *state) (err error) {
		t, err = get(st.tables, id)
		return err
	})
	return t, err
}

func (q *Queries) GetTableForUpdate(ctx context.Context, id uuid.UUID) (database.Table, error) {
	var t database.Table
	err := q.read("GetTableForUpdate", func(st *state) (err error) {
		t, err = get(st.tables, id)
		return err
	})
	return t, err
}

func (q *Queries) GetTableByAccessToken(ctx context.Context, accessToken string) (database.Table, error) {
	var t database.Table
	err := q.read("GetTableByAccessToken", func(st *state) error {
		for _, table := range st.tables {
			if table.AccessToken == accessToken {
				t = table
				return nil
			}
		}
		return pgx.ErrNoRows
	})
	return t, err
}

func (q *Queries) ListTables(ctx context.Context) ([]database.Table, error) {
	var out []database.Table
	err := q.read("ListTables", func(st *state) error {
		out = list(st, st.tables, func(t database.Table) uuid.UUID { return t.ID },
			func(database.Table) bool { return true })
		slices.SortStableFunc(out, func(a, b database.Table) int { return cmp.Compare(a.Number, b.Number) })
		return nil
	})
	return out, err
}

func (q *Queries) UpdateTableStatus(ctx context.Context, arg database.UpdateTableStatusParams) (database.Table, error) {
	var t database.Table
	err := q.write(ctx, "UpdateTableStatus", func(st *state) (err error) {
		t, err = get(st.tables, arg.ID)
		if err != nil {
			return err
		}
		t.Status = arg.Status
		t.CustomerID = arg.CustomerID
		t.StaffID = arg.StaffID
		t.UpdatedAt = q.now()
		st.tables[t.ID] = t
		return nil
	})
	return t, err
}

// --- Tabs ---

func isActiveTab(s database.TabStatus) bool {
	return s != database.TabStatusFULLYPAID && s != database.TabStatusCANCELLED
}

func (q *Queries) CreateTab(ctx context.Context, arg database.CreateTabParams) (database.Tab, error) {
	var t database.Tab
	err := q.write(ctx, "CreateTab", func(st *state) error {
		if _, ok := st.tables[arg.TableID]; !ok {
			return pgx.ErrNoRows
		}
		for _, existing := range st.tabs {
			if existing.TableID == arg.TableID && isActiveTab(existing.Status) {
				return uniqueViolation("tabs_one_active_per_table")
			}
		}
		now := q.now()
		t = database.Tab{
			ID:             uuid.New(),
			TableID:        arg.TableID,
			CustomerID:     arg.CustomerID,
			Status:         database.TabStatusOPEN,
			TotalAmount:    money.Zero,
			PaidAmount:     money.Zero,
			CreditedAmount: money.Zero,
			CreatedAt:      now,
			UpdatedAt:      now,
		}
		st.tabs[t.ID] = t
		st.track(t.ID)
		return nil
	})
	return t, err
}

func (q *Queries) GetTab(ctx context.Context, id uuid.UUID) (database.Tab, error) {
	var t database.Tab
	err := q.read("GetTab", func(st *state) (err error) {
		t, err = get(st.tabs, id)
		return err
	})
	return t, err
}

func (q *Queries) GetTabForUpdate(ctx context.Context, id uuid.UUID) (database.Tab, error) {
	var t database.Tab
	err := q.read("GetTabForUpdate", func(st *state) (err error) {
		t, err = get(st.tabs, id)
		return err
	})
	return t, err
}

func (q *Queries) GetActiveTabByTable(ctx context.Context, tableID uuid.UUID) (database.Tab, error) {
	var t database.Tab
	err := q.read("GetActiveTabByTable", func(st *state) error {
		for _, tab := range st.tabs {
			if tab.TableID == tableID && isActiveTab(tab.Status) {
				t = tab
				return nil
			}
		}
		return pgx.ErrNoRows
	})
	return t, err
}

func (q *Queries) UpdateTab(ctx context.Context, arg database.UpdateTabParams) (database.Tab, error) {
	var t database.Tab
	err := q.write(ctx, "UpdateTab", func(st *state) (err error) {
		t, err = get(st.tabs, arg.ID)
		if err != nil {
			return err
		}
		if isActiveTab(arg.Status) && !isActiveTab(t.Status) {
			for _, other := range st.tabs {
				if other.ID != t.ID && other.TableID == t.TableID && isActiveTab(other.Status) {
					return uniqueViolation("tabs_one_active_per_table")
				}
			}
		}
		t.Status = arg.Status
		t.TotalAmount = arg.TotalAmount
		t.PaidAmount = arg.PaidAmount
		t.CreditedAmount = arg.CreditedAmount
		t.CustomerID = arg.CustomerID
		t.CloseRequestedAt = arg.CloseRequestedAt
		t.UpdatedAt = q.now()
		st.tabs[t.ID] = t
		return nil
	})
	return t, err
}

// --- Orders ---

func (q *Queries) CreateOrder(ctx context.Context, arg database.CreateOrderParams) (database.Order, error) {
	var o database.Order
	err := q.write(ctx, "CreateOrder", func(st *state) error {
		if _, ok := st.tabs[arg.TabID]; !ok {
			return pgx.ErrNoRows
		}
		now := q.now()
		o = database.Order{
			ID:        uuid.New(),
			TabID:     arg.TabID,
			OrderType: arg.OrderType,
			Status:    database.OrderStatusRECEIVED,
			Notes:     arg.Notes,
			CreatedBy: arg.CreatedBy,
			CreatedAt: now,
			UpdatedAt: now,
		}
		st.orders[o.ID] = o
		st.track(o.ID)
		return nil
	})
	return o, err
}

func (q *Queries) GetOrder(ctx context.Context, id uuid.UUID) (database.Order, error) {
	var o database.Order
	err := q.read("GetOrder", func(st *state) (err error) {
		o, err = get(st.orders, id)
		return err
	})
	return o, err
}

func (q *Queries) ListOrdersByTab(ctx context.Context, tabID uuid.UUID) ([]database.Order, error) {
	var out []database.Order
	err := q.read("ListOrdersByTab", func(st *state) error {
		out = list(st, st.orders, func(o database.Order) uuid.UUID { return o.ID },
			func(o database.Order) bool { return o.TabID == tabID })
		return nil
	})
	return out, err
}

func (q *Queries) UpdateOrderStatus(ctx context.Context, arg database.UpdateOrderStatusParams) (database.Order, error) {
	var o database.Order
	err := q.write(ctx, "UpdateOrderStatus", func(st *state) (err error) {
		o, err = get(st.orders, arg.ID)
		if err != nil {
			return err
		}
		o.Status = arg.Status
		o.UpdatedAt = q.now()
		st.orders[o.ID] = o
		return nil
	})
	return o, err
}

func (q *Queries) CreateOrderItem(ctx context.Context, arg database.CreateOrderItemParams) (database.OrderItem, error) {
	var i database.OrderItem
	err := q.write(ctx, "CreateOrderItem", func(st *state) error {
		if _, ok := st.orders[arg.OrderID]; !ok {
			return pgx.ErrNoRows
		}
		now := q.now()
		i = database.OrderItem{
			ID:        uuid.New(),
			OrderID:   arg.OrderID,
			ProductID: arg.ProductID,
			Quantity:  arg.Quantity,
			UnitPrice: arg.UnitPrice,
			Subtotal:  arg.Subtotal,
			Status:    database.OrderItemStatusRECEIVED,
			Notes:     arg.Notes,
			CreatedAt: now,
			UpdatedAt: now,
		}
		st.items[i.ID] = i
		st.track(i.ID)
		return nil
	})
	return i, err
}

func (q *Queries) GetOrderItem(ctx context.Context, id uuid.UUID) (database.OrderItem, error) {
	var i database.OrderItem
	err := q.read("GetOrderItem", func(st *state) (err error) {
		i, err = get(st.items, id)
		return err
	})
	return i, err
}

func (q *Queries) ListOrderItemsByOrder(ctx context.Context, orderID uuid.UUID) ([]database.OrderItem, error) {
	var out []database.OrderItem
	err := q.read("ListOrderItemsByOrder", func(st *state) error {
		out = list(st, st.items, func(i database.OrderItem) uuid.UUID { return i.ID },
			func(i database.OrderItem) bool { return i.OrderID == orderID })
		return nil
	})
	return out, err
}

func (q *Queries) UpdateOrderItemStatus(ctx context.Context, arg database.UpdateOrderItemStatusParams) (database.OrderItem, error) {
	var i database.OrderItem
	err := q.write(ctx, "UpdateOrderItemStatus", func(st *state) (err error) {
		i, err = get(st.items, arg.ID)
		if err != nil {
			return err
		}
		i.Status = arg.Status
		i.UpdatedAt = q.now()
		st.items[i.ID] = i
		return nil
	})
	return i, err
}

func (q *Queries) CascadeOrderItemStatus(ctx context.Context, arg database.CascadeOrderItemStatusParams) error {
	return q.write(ctx, "CascadeOrderItemStatus", func(st *state) error {
		now := q.now()
		for id, i := range st.items {
			if i.OrderID != arg.OrderID ||
				i.Status == database.OrderItemStatusDELIVERED ||
				i.Status == database.OrderItemStatusCANCELLED {
				continue
			}
			i.Status = arg.Status
			i.UpdatedAt = now
			st.items[id] = i
		}
		return nil
	})
}

func (q *Queries) SumActiveItemsByTab(ctx context.Context, tabID uuid.UUID) (money.Money, error) {
	total := money.Zero
	err := q.read("SumActiveItemsByTab", func(st *state) error {
		for _, i := range st.items {
			if i.Status == database.OrderItemStatusCANCELLED {
				continue
			}
			o := st.orders[i.OrderID]
			if o.TabID != tabID || o.Status == database.OrderStatusCANCELLED {
				continue
			}
			total = total.Add(i.Subtotal)
		}
		return nil
	})
	return total, err
}

// --- Payments ---

func (q *Queries) CreatePayment(ctx context.Context, arg database.CreatePaymentParams) (database.Payment, error) {
	var p database.Payment
	err := q.write(ctx, "CreatePayment", func(st *state) error {
		if _, ok := st.tabs[arg.TabID]; !ok {
			return pgx.ErrNoRows
		}
		p = database.Payment{
			ID:             uuid.New(),
			TabID:          arg.TabID,
			Amount:         arg.Amount,
			Method:         arg.Method,
			TenderMethod:   arg.TenderMethod,
			Status:         database.PaymentStatusAPPROVED,
			CreditID:       arg.CreditID,
			TransactionRef: arg.TransactionRef,
			ProcessedBy:    arg.ProcessedBy,
			CreatedAt:      q.now(),
		}
		st.payments[p.ID] = p
		st.track(p.ID)
		return nil
	})
	return p, err
}

func (q *Queries) GetPayment(ctx context.Context, id uuid.UUID) (database.Payment, error) {
	var p database.Payment
	err := q.read("GetPayment", func(st *state) (err error) {
		p, err = get(st.payments, id)
		return err
	})
	return p, err
}

func (q *Queries) ListPaymentsByTab(ctx context.Context, tabID uuid.UUID) ([]database.Payment, error) {
	var out []database.Payment
	err := q.read("ListPaymentsByTab", func(st *state) error {
		out = list(st, st.payments, func(p database.Payment) uuid.UUID { return p.ID },
			func(p database.Payment) bool { return p.TabID == tabID })
		return nil
	})
	return out, err
}

func (q *Queries) ReversePayment(ctx context.Context, arg database.ReversePaymentParams) (database.Payment, error) {
	var p database.Payment
	err := q.write(ctx, "ReversePayment", func(st *state) (err error) {
		p, err = get(st.payments, arg.ID)
		if err != nil {
			return err
		}
		if p.Status != database.PaymentStatusAPPROVED {
			return pgx.ErrNoRows
		}
		p.Status = database.PaymentStatusREVERSED
		p.ReversedBy = pgtype.UUID{Bytes: arg.ReversedBy, Valid: true}
		p.ReversedAt = pgtype.Timestamptz{Time: q.now(), Valid: true}
		st.payments[p.ID] = p
		return nil
	})
	return p, err
}

// --- Credits ---

func (q *Queries) CreateCredit(ctx context.Context, arg database.CreateCreditParams) (database.Credit, error) {
	var c database.Credit
	err := q.write(ctx, "CreateCredit", func(st *state) error {
		for _, existing := range st.credits {
			if existing.TabID == arg.TabID {
				return uniqueViolation("credits_tab_id_key")
			}
		}
		now := q.now()
		c = database.Credit{
			ID:                uuid.New(),
			TabID:             arg.TabID,
			CustomerID:        arg.CustomerID,
			OriginalAmount:    arg.OriginalAmount,
			OutstandingAmount: arg.OutstandingAmount,
			Status:            database.CreditStatusPENDING,
			DueDate:           arg.DueDate,
			CreatedBy:         arg.CreatedBy,
			CreatedAt:         now,
			UpdatedAt:         now,
		}
		st.credits[c.ID] = c
		st.track(c.ID)
		return nil
	})
	return c, err
}

func (q *Queries) GetCredit(ctx context.Context, id uuid.UUID) (database.Credit, error) {
	var c database.Credit
	err := q.read("GetCredit", func(st *state) (err error) {
		c, err = get(st.credits, id)
		return err
	})
	return c, err
}

func (q *Queries) GetCreditByTab(ctx context.Context, tabID uuid.UUID) (database.Credit, error) {
	var c database.Credit
	err := q.read("GetCreditByTab", func(st *state) error {
		for _, credit := range st.credits {
			if credit.TabID == tabID {
				c = credit
				return nil
			}
		}
		return pgx.ErrNoRows
	})
	return c, err
}

func (q *Queries) UpdateCredit(ctx context.Context, arg database.UpdateCreditParams) (database.Credit, error) {
	var c database.Credit
	err := q.write(ctx, "UpdateCredit", func(st *state) (err error) {
		c, err = get(st.credits, arg.ID)
		if err != nil {
			return err
		}
		c.CustomerID = arg.CustomerID
		c.OriginalAmount = arg.OriginalAmount
		c.OutstandingAmount = arg.OutstandingAmount
		c.Status = arg.Status
		c.DueDate = arg.DueDate
		c.UpdatedAt = q.now()
		st.credits[c.ID] = c
		return nil
	})
	return c, err
}

// ListCreditsByCustomer returns newest first, like the SQL query.
func (q *Queries) ListCreditsByCustomer(ctx context.Context, arg database.ListCreditsByCustomerParams) ([]database.Credit, error) {
	var out []database.Credit
	err := q.read("ListCreditsByCustomer", func(st *state) error {
		out = list(st, st.credits, func(c database.Credit) uuid.UUID { return c.ID },
			func(c database.Credit) bool {
				return c.CustomerID == arg.CustomerID &&
					(!arg.Status.Valid || c.Status == arg.Status.CreditStatus)
			})
		slices.Reverse(out)
		return nil
	})
	return out, err
}

// --- Catalog, customers, staff ---

func (q *Queries) CreateProduct(ctx context.Context, arg database.CreateProductParams) (database.Product, error) {
	var p database.Product
	err := q.write(ctx, "CreateProduct", func(st *state) error {
		p = database.Product{
			ID:        uuid.New(),
			Name:      arg.Name,
			Price:     arg.Price,
			Available: arg.Available,
			CreatedAt: q.now(),
		}
		st.products[p.ID] = p
		st.track(p.ID)
		return nil
	})
	return p, err
}

func (q *Queries) GetProduct(ctx context.Context, id uuid.UUID) (database.Product, error) {
	var p database.Product
	err := q.read("GetProduct", func(st *state) (err error) {
		p, err = get(st.products, id)
		return err
	})
	return p, err
}

// SetProductAvailable toggles a product. Tests use it; there is no SQL
// counterpart.
func (q *Queries) SetProductAvailable(ctx context.Context, id uuid.UUID, available bool) error {
	return q.write(ctx, "SetProductAvailable", func(st *state) error {
		p, err := get(st.products, id)
		if err != nil {
			return err
		}
		p.Available = available
		st.products[id] = p
		return nil
	})
}

func (q *Queries) CreateCustomer(ctx context.Context, arg database.CreateCustomerParams) (database.Customer, error) {
	var c database.Customer
	err := q.write(ctx, "CreateCustomer", func(st *state) error {
		c = database.Customer{
			ID:        uuid.New(),
			Name:      arg.Name,
			Phone:     arg.Phone,
			CreatedAt: q.now(),
		}
		st.customers[c.ID] = c
		st.track(c.ID)
		return nil
	})
	return c, err
}

func (q *Queries) CustomerExists(ctx context.Context, id uuid.UUID) (bool, error) {
	var ok bool
	err := q.read("CustomerExists", func(st *state) error {
		_, ok = st.customers[id]
		return nil
	})
	return ok, err
}

func (q *Queries) CreateStaff(ctx context.Context, arg database.CreateStaffParams) (database.Staff, error) {
	var s database.Staff
	err := q.write(ctx, "CreateStaff", func(st *state) error {
		for _, existing := range st.staff {
			if existing.Email == arg.Email {
				return uniqueViolation("staff_email_key")
			}
		}
		s = database.Staff{
			ID:             uuid.New(),
			Email:          arg.Email,
			HashedPassword: arg.HashedPassword,
			FullName:       arg.FullName,
			Role:           arg.Role,
			IsActive:       true,
			CreatedAt:      q.now(),
		}
		st.staff[s.ID] = s
		st.track(s.ID)
		return nil
	})
	return s, err
}

func (q *Queries) GetStaffByEmail(ctx context.Context, email string) (database.Staff, error) {
	var s database.Staff
	err := q.read("GetStaffByEmail", func(st *state) error {
		for _, staff := range st.staff {
			if staff.Email == email && staff.IsActive {
				s = staff
				return nil
			}
		}
		return pgx.ErrNoRows
	})
	return s, err
}

func (q *Queries) GetStaffByID(ctx context.Context, id uuid.UUID) (database.Staff, error) {
	var s database.Staff
	err := q.read("GetStaffByID", func(st *state) error {
		staff, ok := st.staff[id]
		if !ok || !staff.IsActive {
			return pgx.ErrNoRows
		}
		s = staff
		return nil
	})
	return s, err
}
