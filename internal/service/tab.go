package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/comanda-pos/api/internal/database"
	"github.com/comanda-pos/api/internal/event"
	"github.com/comanda-pos/api/internal/money"
	"github.com/comanda-pos/api/internal/tablock"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
)

// TabEngine is the only writer of a tab's totals and status. Every mutation
// runs inside withTab, which holds the tab's in-process lock and its row lock
// for the whole read-modify-write.
type TabEngine struct {
	pool        TxBeginner
	queries     Store
	newStore    NewStore
	locks       *tablock.Locker
	emitter     *event.Emitter
	sink        event.Sink
	logger      *slog.Logger
	lockTimeout time.Duration
	now         func() time.Time
}

// Option configures a TabEngine.
type Option func(*TabEngine)

// WithLogger sets the structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(e *TabEngine) { e.logger = logger }
}

// WithSink sets where committed transitions are published.
func WithSink(sink event.Sink) Option {
	return func(e *TabEngine) { e.sink = sink }
}

// WithLockTimeout bounds both the in-process wait and the row-lock wait.
func WithLockTimeout(d time.Duration) Option {
	return func(e *TabEngine) { e.lockTimeout = d }
}

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(e *TabEngine) { e.now = now }
}

// NewTabEngine creates a TabEngine. queries serves reads outside a
// transaction; newStore binds a Store to a transaction.
func NewTabEngine(pool TxBeginner, queries Store, newStore NewStore, opts ...Option) *TabEngine {
	e := &TabEngine{
		pool:        pool,
		queries:     queries,
		newStore:    newStore,
		logger:      slog.Default(),
		lockTimeout: tablock.DefaultWait,
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	e.locks = tablock.New(e.lockTimeout)
	e.emitter = event.NewEmitter(e.sink, e.logger)
	return e
}

// --- Unit of work ---

// unit is one transaction plus the transitions to emit after commit.
type unit struct {
	ctx    context.Context
	store  Store
	events []event.Transition
}

func (u *unit) emit(t event.Transition) {
	u.events = append(u.events, t)
}

// run takes keys in order, runs fn in a transaction and emits on commit.
// Keys are always taken before the transaction begins and released as soon
// as it commits, so sinks are never called while a key is held.
func (e *TabEngine) run(ctx context.Context, keys []string, fn func(u *unit) error) error {
	unlocks := make([]func(), 0, len(keys))
	release := func() {
		for i := len(unlocks) - 1; i >= 0; i-- {
			unlocks[i]()
		}
		unlocks = nil
	}
	defer release()
	for _, key := range keys {
		unlock, err := e.locks.Lock(ctx, key)
		if err != nil {
			return err
		}
		unlocks = append(unlocks, unlock)
	}

	tx, err := e.pool.Begin(ctx)
	if err != nil {
		return dbErr("begin tx", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	u := &unit{ctx: ctx, store: e.newStore(tx)}
	if err := u.store.SetLockTimeout(ctx, fmt.Sprintf("%dms", e.lockTimeout.Milliseconds())); err != nil {
		return dbErr("set lock timeout", err)
	}

	if err := fn(u); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return dbErr("commit tx", err)
	}
	release()

	e.emitter.Emit(ctx, u.events...)
	return nil
}

// tabTx is a tab loaded under lock. Mutations go through its methods and are
// written back once, by flush.
type tabTx struct {
	*unit
	e      *TabEngine
	tab    database.Tab
	before database.Tab

	// table is set when the caller asked for the table lock.
	table       *database.Table
	tableLocked bool
	reopened    bool
}

// withTab runs fn with exclusive access to the tab. When lockTable is set the
// owning table's key is taken too, after the tab's, so fn may release or
// re-occupy the table.
func (e *TabEngine) withTab(ctx context.Context, tabID uuid.UUID, lockTable bool, fn func(t *tabTx) error) (database.Tab, error) {
	keys := []string{tablock.TabKey(tabID)}
	if lockTable {
		tab, err := e.queries.GetTab(ctx, tabID)
		if err != nil {
			return database.Tab{}, notFound("get tab", err, ErrTabNotFound)
		}
		keys = append(keys, tablock.TableKey(tab.TableID))
	}

	var result database.Tab
	err := e.run(ctx, keys, func(u *unit) error {
		tab, err := u.store.GetTabForUpdate(ctx, tabID)
		if err != nil {
			return notFound("get tab for update", err, ErrTabNotFound)
		}

		t := &tabTx{unit: u, e: e, tab: tab, before: tab, tableLocked: lockTable}
		if err := fn(t); err != nil {
			return err
		}
		if err := t.flush(); err != nil {
			return err
		}
		result = t.tab
		return nil
	})
	return result, err
}

// --- Status evaluation ---

func isTerminalTab(s database.TabStatus) bool {
	return s == database.TabStatusFULLYPAID || s == database.TabStatusCANCELLED
}

// acceptsOrders reports whether new orders or items may be added.
func acceptsOrders(tab database.Tab) bool {
	if tab.CloseRequestedAt.Valid {
		return false
	}
	return tab.Status == database.TabStatusOPEN || tab.Status == database.TabStatusPARTIALLYPAID
}

// Outstanding is total minus paid minus credited.
func Outstanding(tab database.Tab) money.Money {
	return tab.TotalAmount.Sub(tab.PaidAmount).Sub(tab.CreditedAmount)
}

// evaluateStatus derives a non-cancelled tab's status from its amounts.
// Open credit wins over everything else; a tab with credit outstanding is
// never fully paid.
func evaluateStatus(tab database.Tab) database.TabStatus {
	switch {
	case tab.CreditedAmount.IsPositive():
		return database.TabStatusONCREDIT
	case tab.PaidAmount.IsPositive() && !Outstanding(tab).IsPositive():
		return database.TabStatusFULLYPAID
	case tab.PaidAmount.IsPositive():
		return database.TabStatusPARTIALLYPAID
	case tab.CloseRequestedAt.Valid:
		return database.TabStatusCLOSEDPENDINGPAYMENT
	}
	return database.TabStatusOPEN
}

// validateTabTransition is the single gate for tab status changes.
func validateTabTransition(from, to database.TabStatus, reopened bool) error {
	if from == to {
		return nil
	}
	switch from {
	case database.TabStatusCANCELLED:
		return ErrAlreadyTerminal
	case database.TabStatusFULLYPAID:
		if reopened {
			return nil
		}
		return ErrAlreadyTerminal
	}
	if to == database.TabStatusCANCELLED && from != database.TabStatusOPEN {
		return ErrCannotCancelSettledTab
	}
	return nil
}

// --- tabTx mutations ---

// recompute sets the total from the order ledger. It never moves a tab to a
// terminal status and leaves terminal tabs alone.
func (t *tabTx) recompute() error {
	if isTerminalTab(t.tab.Status) {
		return nil
	}
	total, err := t.store.SumActiveItemsByTab(t.ctx, t.tab.ID)
	if err != nil {
		return dbErr("sum tab items", err)
	}
	t.tab.TotalAmount = total
	t.flagOverpaid()
	return nil
}

// flagOverpaid records paid+credited exceeding the total. The surplus is kept
// on the tab, not clamped.
func (t *tabTx) flagOverpaid() {
	covered := t.tab.PaidAmount.Add(t.tab.CreditedAmount)
	if !covered.GreaterThan(t.tab.TotalAmount) {
		return
	}
	surplus := covered.Sub(t.tab.TotalAmount)
	t.e.logger.Warn("tab overpaid",
		"tab_id", t.tab.ID,
		"total", t.tab.TotalAmount.String(),
		"paid", t.tab.PaidAmount.String(),
		"credited", t.tab.CreditedAmount.String(),
		"surplus", surplus.String(),
	)
	t.emit(event.Transition{
		Kind:      event.KindTab,
		ID:        t.tab.ID,
		TabID:     t.tab.ID,
		TableID:   t.tab.TableID,
		OldStatus: string(t.before.Status),
		NewStatus: string(t.tab.Status),
		Amount:    surplus,
		Overpaid:  true,
		At:        t.e.now(),
	})
}

// settle re-derives status after a change to paid or credited amounts and
// releases the table when the tab becomes fully paid.
func (t *tabTx) settle() error {
	if t.tab.PaidAmount.IsNegative() || t.tab.CreditedAmount.IsNegative() {
		return fmt.Errorf("tab %s paid=%s credited=%s: %w",
			t.tab.ID, t.tab.PaidAmount, t.tab.CreditedAmount, errLedgerMismatch)
	}
	t.tab.Status = evaluateStatus(t.tab)
	t.flagOverpaid()
	if t.tab.Status == database.TabStatusFULLYPAID && t.before.Status != database.TabStatusFULLYPAID {
		return t.releaseTable()
	}
	return nil
}

func (t *tabTx) applyPayment(amount money.Money) error {
	t.tab.PaidAmount = t.tab.PaidAmount.Add(amount)
	return t.settle()
}

// reversePayment takes amount back out of paid. A fully paid tab that no
// longer covers its total reopens and re-occupies its table; an overpaid one
// stays settled.
func (t *tabTx) reversePayment(amount money.Money) error {
	wasPaid := t.tab.Status == database.TabStatusFULLYPAID
	t.tab.PaidAmount = t.tab.PaidAmount.Sub(amount)
	if wasPaid && evaluateStatus(t.tab) != database.TabStatusFULLYPAID {
		if err := t.reoccupyTable(); err != nil {
			return err
		}
		t.reopened = true
	}
	return t.settle()
}

func (t *tabTx) applyCredit(amount money.Money) error {
	t.tab.CreditedAmount = t.tab.CreditedAmount.Add(amount)
	return t.settle()
}

// settleCredit moves a credit repayment from credited into paid.
func (t *tabTx) settleCredit(amount money.Money) error {
	t.tab.CreditedAmount = t.tab.CreditedAmount.Sub(amount)
	t.tab.PaidAmount = t.tab.PaidAmount.Add(amount)
	return t.settle()
}

func (t *tabTx) loadTable() (*database.Table, error) {
	if t.table != nil {
		return t.table, nil
	}
	if !t.tableLocked {
		return nil, fmt.Errorf("tab %s: table %s not locked: %w", t.tab.ID, t.tab.TableID, errLedgerMismatch)
	}
	table, err := t.store.GetTableForUpdate(t.ctx, t.tab.TableID)
	if err != nil {
		return nil, notFound("get table for update", err, ErrTableNotFound)
	}
	t.table = &table
	return t.table, nil
}

func (t *tabTx) setTableStatus(status database.TableStatus, customer, staff pgtype.UUID) error {
	table, err := t.loadTable()
	if err != nil {
		return err
	}
	old := table.Status
	updated, err := t.store.UpdateTableStatus(t.ctx, database.UpdateTableStatusParams{
		ID:         table.ID,
		Status:     status,
		CustomerID: customer,
		StaffID:    staff,
	})
	if err != nil {
		return dbErr("update table status", err)
	}
	*t.table = updated
	if old != status {
		t.emit(tableTransition(updated, t.tab.ID, old, t.e.now()))
	}
	return nil
}

func (t *tabTx) releaseTable() error {
	table, err := t.loadTable()
	if err != nil {
		return err
	}
	if table.Status != database.TableStatusOCCUPIED {
		return nil
	}
	return t.setTableStatus(database.TableStatusAVAILABLE, pgtype.UUID{}, pgtype.UUID{})
}

func (t *tabTx) reoccupyTable() error {
	table, err := t.loadTable()
	if err != nil {
		return err
	}
	active, err := t.store.GetActiveTabByTable(t.ctx, table.ID)
	switch {
	case err == nil && active.ID != t.tab.ID:
		return ErrTableReoccupied
	case err != nil && !errors.Is(err, pgx.ErrNoRows):
		return dbErr("get active tab", err)
	}
	switch table.Status {
	case database.TableStatusOCCUPIED:
		return nil
	case database.TableStatusAVAILABLE:
		return t.setTableStatus(database.TableStatusOCCUPIED, t.tab.CustomerID, table.StaffID)
	}
	return ErrTableReoccupied
}

// flush writes the tab back once and records the transition.
func (t *tabTx) flush() error {
	if tabUnchanged(t.before, t.tab) {
		return nil
	}
	if err := validateTabTransition(t.before.Status, t.tab.Status, t.reopened); err != nil {
		return err
	}
	for _, m := range []money.Money{t.tab.TotalAmount, t.tab.PaidAmount, t.tab.CreditedAmount} {
		if !m.InRange() {
			return fmt.Errorf("tab %s: %w", t.tab.ID, ErrAmountTooLarge)
		}
	}
	updated, err := t.store.UpdateTab(t.ctx, database.UpdateTabParams{
		ID:               t.tab.ID,
		Status:           t.tab.Status,
		TotalAmount:      t.tab.TotalAmount,
		PaidAmount:       t.tab.PaidAmount,
		CreditedAmount:   t.tab.CreditedAmount,
		CustomerID:       t.tab.CustomerID,
		CloseRequestedAt: t.tab.CloseRequestedAt,
	})
	if err != nil {
		return dbErr("update tab", err)
	}
	t.tab = updated
	t.emit(event.Transition{
		Kind:      event.KindTab,
		ID:        updated.ID,
		TabID:     updated.ID,
		TableID:   updated.TableID,
		OldStatus: string(t.before.Status),
		NewStatus: string(updated.Status),
		Deltas: event.Deltas{
			Total:    updated.TotalAmount.Sub(t.before.TotalAmount),
			Paid:     updated.PaidAmount.Sub(t.before.PaidAmount),
			Credited: updated.CreditedAmount.Sub(t.before.CreditedAmount),
		},
		At: t.e.now(),
	})
	return nil
}

func tabUnchanged(a, b database.Tab) bool {
	return a.Status == b.Status &&
		a.TotalAmount.Equal(b.TotalAmount) &&
		a.PaidAmount.Equal(b.PaidAmount) &&
		a.CreditedAmount.Equal(b.CreditedAmount) &&
		a.CustomerID == b.CustomerID &&
		a.CloseRequestedAt.Valid == b.CloseRequestedAt.Valid
}

func tableTransition(table database.Table, tabID uuid.UUID, old database.TableStatus, at time.Time) event.Transition {
	return event.Transition{
		Kind:      event.KindTable,
		ID:        table.ID,
		TabID:     tabID,
		TableID:   table.ID,
		OldStatus: string(old),
		NewStatus: string(table.Status),
		At:        at,
	}
}

// --- Public operations ---

// Get returns a tab.
func (e *TabEngine) Get(ctx context.Context, tabID uuid.UUID) (database.Tab, error) {
	tab, err := e.queries.GetTab(ctx, tabID)
	if err != nil {
		return database.Tab{}, notFound("get tab", err, ErrTabNotFound)
	}
	return tab, nil
}

// ActiveForTable returns the table's non-terminal tab.
func (e *TabEngine) ActiveForTable(ctx context.Context, tableID uuid.UUID) (database.Tab, error) {
	tab, err := e.queries.GetActiveTabByTable(ctx, tableID)
	if err != nil {
		return database.Tab{}, notFound("get active tab", err, ErrTabNotFound)
	}
	return tab, nil
}

// Recompute re-derives the tab total from its orders. Calling it repeatedly
// is a no-op.
func (e *TabEngine) Recompute(ctx context.Context, tabID uuid.UUID) (database.Tab, error) {
	return e.withTab(ctx, tabID, false, func(t *tabTx) error {
		return t.recompute()
	})
}

// RequestClose stops new orders on the tab and marks it pending payment. If
// the payments already cover the recomputed total, as happens when items
// were cancelled after paying, the tab is settled instead and its table
// released. That also applies to a tab whose close was requested earlier.
func (e *TabEngine) RequestClose(ctx context.Context, tabID uuid.UUID) (database.Tab, error) {
	return e.withTab(ctx, tabID, true, func(t *tabTx) error {
		switch {
		case isTerminalTab(t.tab.Status):
			return ErrAlreadyTerminal
		case t.tab.Status == database.TabStatusONCREDIT:
			return ErrAlreadyClosed
		}
		if err := t.recompute(); err != nil {
			return err
		}

		covered := t.tab.PaidAmount.IsPositive() && !Outstanding(t.tab).IsPositive()
		if t.tab.CloseRequestedAt.Valid || t.tab.Status == database.TabStatusCLOSEDPENDINGPAYMENT {
			if !covered {
				return ErrAlreadyClosed
			}
		} else {
			t.tab.CloseRequestedAt = pgtype.Timestamptz{Time: t.e.now(), Valid: true}
		}

		if covered {
			return t.settle()
		}
		t.tab.Status = database.TabStatusCLOSEDPENDINGPAYMENT
		return nil
	})
}

// Cancel abandons an open tab that has no payments or credit and frees its
// table.
func (e *TabEngine) Cancel(ctx context.Context, tabID uuid.UUID) (database.Tab, error) {
	return e.withTab(ctx, tabID, true, func(t *tabTx) error {
		if t.tab.Status != database.TabStatusOPEN ||
			!t.tab.PaidAmount.IsZero() ||
			!t.tab.CreditedAmount.IsZero() {
			return ErrCannotCancelSettledTab
		}
		t.tab.Status = database.TabStatusCANCELLED
		return t.releaseTable()
	})
}

// openTab creates the tab for a table inside the caller's transaction.
func (e *TabEngine) openTab(u *unit, tableID uuid.UUID, customer pgtype.UUID) (database.Tab, error) {
	tab, err := u.store.CreateTab(u.ctx, database.CreateTabParams{
		TableID:    tableID,
		CustomerID: customer,
	})
	if err != nil {
		if isUniqueViolation(err, "tabs_one_active_per_table") {
			return database.Tab{}, ErrAlreadyOccupied
		}
		return database.Tab{}, dbErr("create tab", err)
	}
	u.emit(event.Transition{
		Kind:      event.KindTab,
		ID:        tab.ID,
		TabID:     tab.ID,
		TableID:   tableID,
		NewStatus: string(tab.Status),
		At:        e.now(),
	})
	return tab, nil
}
