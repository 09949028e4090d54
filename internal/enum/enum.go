package enum

// ── Staff roles (CHECK constrained in DB via staff_role) ──

const (
	RoleManager = "MANAGER"
	RoleCashier = "CASHIER"
	RoleWaiter  = "WAITER"
	RoleKitchen = "KITCHEN"
)

// ── Role groups used by route guards ──

var (
	// FloorRoles may open tables and take orders.
	FloorRoles = []string{RoleManager, RoleCashier, RoleWaiter}

	// CashierRoles may take money: payments, reversals and credit.
	CashierRoles = []string{RoleManager, RoleCashier}

	// KitchenRoles may move orders and items through preparation.
	KitchenRoles = []string{RoleManager, RoleCashier, RoleWaiter, RoleKitchen}
)

// ── Store backends ──

const (
	StorePostgres = "postgres"
	StoreMemory   = "memory"
)
