// Package memory is an in-process store with the same query surface as
// internal/database. Each transaction works on a private copy of the state.
// Commit merges the rows it changed into the latest committed state and
// re-checks the unique constraints, so transactions on different rows run
// side by side and the last writer of a row wins. Callers serialize writers
// of the same row themselves, as the tab engine does with its keyed locks.
//
// It backs the service tests and STORE=memory for demos. It is not durable.
package memory

import (
	"context"
	"maps"
	"sync"
	"sync/atomic"
	"time"

	"github.com/comanda-pos/api/internal/database"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// state is a snapshot. Published snapshots are never mutated; writers clone.
type state struct {
	seq       *atomic.Int64
	order     map[uuid.UUID]int64
	staff     map[uuid.UUID]database.Staff
	customers map[uuid.UUID]database.Customer
	products  map[uuid.UUID]database.Product
	tables    map[uuid.UUID]database.Table
	tabs      map[uuid.UUID]database.Tab
	orders    map[uuid.UUID]database.Order
	items     map[uuid.UUID]database.OrderItem
	payments  map[uuid.UUID]database.Payment
	credits   map[uuid.UUID]database.Credit
}

func newState() *state {
	return &state{
		seq:       new(atomic.Int64),
		order:     map[uuid.UUID]int64{},
		staff:     map[uuid.UUID]database.Staff{},
		customers: map[uuid.UUID]database.Customer{},
		products:  map[uuid.UUID]database.Product{},
		tables:    map[uuid.UUID]database.Table{},
		tabs:      map[uuid.UUID]database.Tab{},
		orders:    map[uuid.UUID]database.Order{},
		items:     map[uuid.UUID]database.OrderItem{},
		payments:  map[uuid.UUID]database.Payment{},
		credits:   map[uuid.UUID]database.Credit{},
	}
}

func (s *state) clone() *state {
	return &state{
		seq:       s.seq,
		order:     maps.Clone(s.order),
		staff:     maps.Clone(s.staff),
		customers: maps.Clone(s.customers),
		products:  maps.Clone(s.products),
		tables:    maps.Clone(s.tables),
		tabs:      maps.Clone(s.tabs),
		orders:    maps.Clone(s.orders),
		items:     maps.Clone(s.items),
		payments:  maps.Clone(s.payments),
		credits:   maps.Clone(s.credits),
	}
}

// track assigns id the next insertion sequence number. The counter is shared
// by every snapshot so concurrent transactions never reuse a number.
func (s *state) track(id uuid.UUID) {
	s.order[id] = s.seq.Add(1)
}

// mergeChanged copies into dst every row of s that differs from base, the
// snapshot s was cloned from.
func (s *state) mergeChanged(dst, base *state) {
	mergeRows(dst.order, s.order, base.order)
	mergeRows(dst.staff, s.staff, base.staff)
	mergeRows(dst.customers, s.customers, base.customers)
	mergeRows(dst.products, s.products, base.products)
	mergeRows(dst.tables, s.tables, base.tables)
	mergeRows(dst.tabs, s.tabs, base.tabs)
	mergeRows(dst.orders, s.orders, base.orders)
	mergeRows(dst.items, s.items, base.items)
	mergeRows(dst.payments, s.payments, base.payments)
	mergeRows(dst.credits, s.credits, base.credits)
}

// Rows are never deleted, so a changed or new row is all there is to merge.
func mergeRows[T comparable](dst, rows, base map[uuid.UUID]T) {
	for id, row := range rows {
		if old, ok := base[id]; !ok || old != row {
			dst[id] = row
		}
	}
}

// checkUnique enforces the schema's unique constraints over the whole state.
func (s *state) checkUnique() error {
	numbers := map[string]bool{}
	tokens := map[string]bool{}
	for _, t := range s.tables {
		if numbers[t.Number] {
			return uniqueViolation("tables_number_key")
		}
		if tokens[t.AccessToken] {
			return uniqueViolation("tables_access_token_key")
		}
		numbers[t.Number], tokens[t.AccessToken] = true, true
	}
	active := map[uuid.UUID]bool{}
	for _, t := range s.tabs {
		if !isActiveTab(t.Status) {
			continue
		}
		if active[t.TableID] {
			return uniqueViolation("tabs_one_active_per_table")
		}
		active[t.TableID] = true
	}
	credited := map[uuid.UUID]bool{}
	for _, c := range s.credits {
		if credited[c.TabID] {
			return uniqueViolation("credits_tab_id_key")
		}
		credited[c.TabID] = true
	}
	emails := map[string]bool{}
	for _, st := range s.staff {
		if emails[st.Email] {
			return uniqueViolation("staff_email_key")
		}
		emails[st.Email] = true
	}
	return nil
}

// DB holds the latest committed snapshot.
type DB struct {
	mu sync.RWMutex
	st *state

	failMu   sync.Mutex
	failures map[string]error

	now func() time.Time
}

// New creates an empty DB.
func New() *DB {
	return &DB{
		st:       newState(),
		failures: map[string]error{},
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// Queries returns a Store that reads and writes committed state directly.
func (db *DB) Queries() *Queries {
	return &Queries{db: db}
}

// Bind returns the Store for a transaction started by Begin, or the
// committed-state Store for anything else.
func (db *DB) Bind(dbtx database.DBTX) *Queries {
	if tx, ok := dbtx.(*Tx); ok && tx.db == db {
		return &Queries{db: db, tx: tx}
	}
	return db.Queries()
}

// FailOn makes the named query method return err until ClearFailures.
func (db *DB) FailOn(method string, err error) {
	db.failMu.Lock()
	defer db.failMu.Unlock()
	db.failures[method] = err
}

// ClearFailures removes every injected failure.
func (db *DB) ClearFailures() {
	db.failMu.Lock()
	defer db.failMu.Unlock()
	clear(db.failures)
}

func (db *DB) failure(method string) error {
	db.failMu.Lock()
	defer db.failMu.Unlock()
	return db.failures[method]
}

// snapshot returns the committed state. Callers must not mutate it.
func (db *DB) snapshot() *state {
	db.mu.RLock()
	defer db.mu.RUnlock()
	return db.st
}

// apply runs fn on a copy of the committed state and publishes the copy if
// fn succeeds and the unique constraints still hold.
func (db *DB) apply(fn func(next *state) error) error {
	db.mu.Lock()
	defer db.mu.Unlock()
	next := db.st.clone()
	if err := fn(next); err != nil {
		return err
	}
	if err := next.checkUnique(); err != nil {
		return err
	}
	db.st = next
	return nil
}

// Begin starts a transaction. It never waits.
func (db *DB) Begin(ctx context.Context) (pgx.Tx, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	base := db.snapshot()
	return &Tx{db: db, base: base, st: base.clone()}, nil
}

// Tx implements pgx.Tx over a private copy of the state. Only Begin's
// bookkeeping methods are supported; the rest panic.
type Tx struct {
	db   *DB
	base *state
	st   *state
	done bool
}

// Commit merges the transaction's changes into the latest committed state.
// A unique violation against rows committed meanwhile discards them all.
func (tx *Tx) Commit(ctx context.Context) error {
	if tx.done {
		return pgx.ErrTxClosed
	}
	defer tx.finish()
	if err := tx.db.failure("Commit"); err != nil {
		return err
	}
	return tx.db.apply(func(next *state) error {
		tx.st.mergeChanged(next, tx.base)
		return nil
	})
}

func (tx *Tx) Rollback(ctx context.Context) error {
	if tx.done {
		return pgx.ErrTxClosed
	}
	tx.finish()
	return nil
}

func (tx *Tx) finish() {
	tx.done = true
	tx.base, tx.st = nil, nil
}

func (tx *Tx) Begin(ctx context.Context) (pgx.Tx, error) { panic("not implemented") }
func (tx *Tx) CopyFrom(ctx context.Context, tableName pgx.Identifier, columnNames []string, rowSrc pgx.CopyFromSource) (int64, error) {
	panic("not implemented")
}
func (tx *Tx) SendBatch(ctx context.Context, b *pgx.Batch) pgx.BatchResults {
	panic("not implemented")
}
func (tx *Tx) LargeObjects() pgx.LargeObjects { panic("not implemented") }
func (tx *Tx) Prepare(ctx context.Context, name, sql string) (*pgconn.StatementDescription, error) {
	panic("not implemented")
}
func (tx *Tx) Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error) {
	panic("not implemented")
}
func (tx *Tx) Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error) {
	panic("not implemented")
}
func (tx *Tx) QueryRow(ctx context.Context, sql string, args ...any) pgx.Row {
	panic("not implemented")
}
func (tx *Tx) Conn() *pgx.Conn { panic("not implemented") }

func uniqueViolation(constraint string) error {
	return &pgconn.PgError{
		Code:           "23505",
		Message:        "duplicate key value violates unique constraint \"" + constraint + "\"",
		ConstraintName: constraint,
	}
}
