package service

import (
	"context"
	"errors"
	"strings"

	"github.com/comanda-pos/api/internal/database"
	"github.com/comanda-pos/api/internal/tablock"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
)

// allowedTableTransitions covers manual status changes. OCCUPIED is only
// entered through Open and only left through Close or settlement.
var allowedTableTransitions = map[database.TableStatus][]database.TableStatus{
	database.TableStatusAVAILABLE: {database.TableStatusRESERVED, database.TableStatusCLOSED},
	database.TableStatusRESERVED:  {database.TableStatusAVAILABLE},
	database.TableStatusCLOSED:    {database.TableStatusAVAILABLE},
}

// TableRegistry owns table lifecycle.
type TableRegistry struct {
	engine    *TabEngine
	customers Customers
}

// NewTableRegistry creates a new TableRegistry.
func NewTableRegistry(engine *TabEngine, customers Customers) *TableRegistry {
	return &TableRegistry{engine: engine, customers: customers}
}

// CreateTableRequest is the input for registering a table.
type CreateTableRequest struct {
	Number   string
	Capacity int32
}

// OpenTableRequest is the input for seating a table.
type OpenTableRequest struct {
	TableID    uuid.UUID
	CustomerID *uuid.UUID
	StaffID    *uuid.UUID
}

// CreateTable registers a table with a fresh QR access token.
func (r *TableRegistry) CreateTable(ctx context.Context, req CreateTableRequest) (database.Table, error) {
	number := strings.TrimSpace(req.Number)
	if number == "" || req.Capacity <= 0 {
		return database.Table{}, ErrInvalidTable
	}

	table, err := r.engine.queries.CreateTable(ctx, database.CreateTableParams{
		Number:      number,
		Capacity:    req.Capacity,
		AccessToken: strings.ReplaceAll(uuid.NewString(), "-", ""),
	})
	if err != nil {
		if isUniqueViolation(err, "tables_number_key") {
			return database.Table{}, ErrTableNumberTaken
		}
		return database.Table{}, dbErr("create table", err)
	}
	return table, nil
}

// Open seats a table and starts its tab. When the table already has a
// non-terminal tab, that table and tab are returned with ErrAlreadyOccupied.
func (r *TableRegistry) Open(ctx context.Context, req OpenTableRequest) (database.Table, database.Tab, error) {
	var customer, staff pgtype.UUID
	if req.CustomerID != nil {
		exists, err := r.customers.CustomerExists(ctx, *req.CustomerID)
		if err != nil {
			return database.Table{}, database.Tab{}, dbErr("check customer", err)
		}
		if !exists {
			return database.Table{}, database.Tab{}, ErrCustomerNotFound
		}
		customer = pgtype.UUID{Bytes: *req.CustomerID, Valid: true}
	}
	if req.StaffID != nil {
		staff = pgtype.UUID{Bytes: *req.StaffID, Valid: true}
	}

	e := r.engine
	var table database.Table
	var tab database.Tab
	err := e.run(ctx, []string{tablock.TableKey(req.TableID)}, func(u *unit) error {
		current, err := u.store.GetTableForUpdate(ctx, req.TableID)
		if err != nil {
			return notFound("get table for update", err, ErrTableNotFound)
		}
		table = current

		active, err := u.store.GetActiveTabByTable(ctx, req.TableID)
		switch {
		case err == nil:
			tab = active
			return ErrAlreadyOccupied
		case !errors.Is(err, pgx.ErrNoRows):
			return dbErr("get active tab", err)
		}

		if current.Status == database.TableStatusCLOSED {
			return ErrTableUnavailable
		}

		table, err = u.store.UpdateTableStatus(ctx, database.UpdateTableStatusParams{
			ID:         current.ID,
			Status:     database.TableStatusOCCUPIED,
			CustomerID: customer,
			StaffID:    staff,
		})
		if err != nil {
			return dbErr("update table status", err)
		}
		u.emit(tableTransition(table, uuid.Nil, current.Status, e.now()))

		tab, err = e.openTab(u, table.ID, customer)
		return err
	})
	if errors.Is(err, ErrAlreadyOccupied) {
		return table, tab, err
	}
	if err != nil {
		return database.Table{}, database.Tab{}, err
	}
	return table, tab, nil
}

// Close frees a table whose tab is settled or cancelled.
func (r *TableRegistry) Close(ctx context.Context, tableID uuid.UUID) (database.Table, error) {
	e := r.engine
	var table database.Table
	err := e.run(ctx, []string{tablock.TableKey(tableID)}, func(u *unit) error {
		current, err := u.store.GetTableForUpdate(ctx, tableID)
		if err != nil {
			return notFound("get table for update", err, ErrTableNotFound)
		}
		table = current

		_, err = u.store.GetActiveTabByTable(ctx, tableID)
		switch {
		case err == nil:
			return ErrTabNotSettled
		case !errors.Is(err, pgx.ErrNoRows):
			return dbErr("get active tab", err)
		}

		switch current.Status {
		case database.TableStatusAVAILABLE:
			return nil
		case database.TableStatusOCCUPIED:
		default:
			return ErrInvalidTransition
		}

		table, err = u.store.UpdateTableStatus(ctx, database.UpdateTableStatusParams{
			ID:     current.ID,
			Status: database.TableStatusAVAILABLE,
		})
		if err != nil {
			return dbErr("update table status", err)
		}
		u.emit(tableTransition(table, uuid.Nil, current.Status, e.now()))
		return nil
	})
	if err != nil {
		return database.Table{}, err
	}
	return table, nil
}

// SetStatus reserves a table, takes it out of service or makes it available
// again.
func (r *TableRegistry) SetStatus(ctx context.Context, tableID uuid.UUID, status string) (database.Table, error) {
	to := database.TableStatus(status)
	switch to {
	case database.TableStatusAVAILABLE, database.TableStatusRESERVED, database.TableStatusCLOSED:
	default:
		return database.Table{}, ErrInvalidStatus
	}

	e := r.engine
	var table database.Table
	err := e.run(ctx, []string{tablock.TableKey(tableID)}, func(u *unit) error {
		current, err := u.store.GetTableForUpdate(ctx, tableID)
		if err != nil {
			return notFound("get table for update", err, ErrTableNotFound)
		}
		table = current
		if current.Status == to {
			return nil
		}
		if err := validateTableTransition(current.Status, to); err != nil {
			return err
		}

		table, err = u.store.UpdateTableStatus(ctx, database.UpdateTableStatusParams{
			ID:     current.ID,
			Status: to,
		})
		if err != nil {
			return dbErr("update table status", err)
		}
		u.emit(tableTransition(table, uuid.Nil, current.Status, e.now()))
		return nil
	})
	if err != nil {
		return database.Table{}, err
	}
	return table, nil
}

func validateTableTransition(from, to database.TableStatus) error {
	for _, allowed := range allowedTableTransitions[from] {
		if allowed == to {
			return nil
		}
	}
	return ErrInvalidTransition
}

// Get returns a table.
func (r *TableRegistry) Get(ctx context.Context, tableID uuid.UUID) (database.Table, error) {
	table, err := r.engine.queries.GetTable(ctx, tableID)
	if err != nil {
		return database.Table{}, notFound("get table", err, ErrTableNotFound)
	}
	return table, nil
}

// List returns every table ordered by number.
func (r *TableRegistry) List(ctx context.Context) ([]database.Table, error) {
	tables, err := r.engine.queries.ListTables(ctx)
	if err != nil {
		return nil, dbErr("list tables", err)
	}
	return tables, nil
}

// GetByAccessToken resolves the table behind a QR code.
func (r *TableRegistry) GetByAccessToken(ctx context.Context, token string) (database.Table, error) {
	if token == "" {
		return database.Table{}, ErrTableNotFound
	}
	table, err := r.engine.queries.GetTableByAccessToken(ctx, token)
	if err != nil {
		return database.Table{}, notFound("get table by token", err, ErrTableNotFound)
	}
	return table, nil
}
