// Package seed creates the first manager, the floor plan and a starter menu.
// Running it again only fills in what is missing.
package seed

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"

	"github.com/comanda-pos/api/internal/database"
	"github.com/comanda-pos/api/internal/money"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"golang.org/x/crypto/bcrypt"
)

// Seeder is satisfied by *database.Queries and *memory.Queries.
type Seeder interface {
	CreateStaff(ctx context.Context, arg database.CreateStaffParams) (database.Staff, error)
	GetStaffByEmail(ctx context.Context, email string) (database.Staff, error)
	CreateProduct(ctx context.Context, arg database.CreateProductParams) (database.Product, error)
	CreateTable(ctx context.Context, arg database.CreateTableParams) (database.Table, error)
	ListTables(ctx context.Context) ([]database.Table, error)
}

// Options control what gets seeded.
type Options struct {
	Email    string
	Password string
	Name     string
	Tables   int
	Capacity int32
}

// Result reports what Run created.
type Result struct {
	ManagerID      uuid.UUID
	ManagerCreated bool
	TablesCreated  int
	Products       int
}

var starterMenu = []struct {
	name  string
	price string
}{
	{"Feijoada", "54.90"},
	{"Moqueca", "68.00"},
	{"Pão de queijo", "12.00"},
	{"Caipirinha", "24.00"},
	{"Guaraná", "7.50"},
}

// Run seeds the store. The menu is only added on a first run, when the floor
// has no tables yet.
func Run(ctx context.Context, s Seeder, opts Options) (Result, error) {
	if opts.Email == "" || opts.Password == "" {
		return Result{}, errors.New("seed: email and password are required")
	}
	if opts.Capacity <= 0 {
		opts.Capacity = 4
	}

	var res Result
	manager, created, err := seedManager(ctx, s, opts)
	if err != nil {
		return Result{}, err
	}
	res.ManagerID = manager
	res.ManagerCreated = created

	existing, err := s.ListTables(ctx)
	if err != nil {
		return Result{}, fmt.Errorf("list tables: %w", err)
	}
	taken := make(map[string]bool, len(existing))
	for _, t := range existing {
		taken[t.Number] = true
	}

	for i := 1; i <= opts.Tables; i++ {
		number := fmt.Sprintf("%02d", i)
		if taken[number] {
			continue
		}
		if _, err := s.CreateTable(ctx, database.CreateTableParams{
			Number:      number,
			Capacity:    opts.Capacity,
			AccessToken: strings.ReplaceAll(uuid.NewString(), "-", ""),
		}); err != nil {
			return Result{}, fmt.Errorf("create table %s: %w", number, err)
		}
		res.TablesCreated++
	}

	if len(existing) == 0 {
		for _, item := range starterMenu {
			if _, err := s.CreateProduct(ctx, database.CreateProductParams{
				Name:      item.name,
				Price:     money.MustNew(item.price),
				Available: true,
			}); err != nil {
				return Result{}, fmt.Errorf("create product %q: %w", item.name, err)
			}
			res.Products++
		}
	}

	log.Printf("Seed: manager %s (created=%t), %d tables and %d products added",
		res.ManagerID, res.ManagerCreated, res.TablesCreated, res.Products)
	return res, nil
}

func seedManager(ctx context.Context, s Seeder, opts Options) (uuid.UUID, bool, error) {
	existing, err := s.GetStaffByEmail(ctx, opts.Email)
	if err == nil {
		return existing.ID, false, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return uuid.Nil, false, fmt.Errorf("check staff: %w", err)
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(opts.Password), bcrypt.DefaultCost)
	if err != nil {
		return uuid.Nil, false, fmt.Errorf("hash password: %w", err)
	}
	staff, err := s.CreateStaff(ctx, database.CreateStaffParams{
		Email:          opts.Email,
		HashedPassword: string(hashed),
		FullName:       opts.Name,
		Role:           database.StaffRoleMANAGER,
	})
	if err != nil {
		return uuid.Nil, false, fmt.Errorf("create staff: %w", err)
	}
	return staff.ID, true, nil
}
