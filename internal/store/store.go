package store

import (
	"context"
	"time"

	"tokoban/backend/internal/domain"
)

// Repository is the durable state surface. Every stock-affecting operation runs
// through RunInTx; the remaining methods are committed-state reads.
type Repository interface {
	RunInTx(ctx context.Context, fn func(tx Tx) error) error

	GetBalance(ctx context.Context, storeID string, productID string) (*domain.Balance, error)
	ListInventory(ctx context.Context, storeID string, query string) ([]domain.InventoryItem, error)
	ListLedger(ctx context.Context, filter domain.LedgerFilter) ([]domain.LedgerEntry, error)
	ListProducts(ctx context.Context, storeID string) ([]domain.Product, error)

	GetSale(ctx context.Context, storeID string, saleID string) (*domain.Sale, error)
	ListSales(ctx context.Context, filter domain.SaleListFilter) ([]domain.SaleSummary, error)
	MarkSalePrinted(ctx context.Context, storeID string, saleID string, at time.Time) (time.Time, error)

	GetSupplierInvoice(ctx context.Context, storeID string, invoiceID string) (*domain.SupplierInvoice, error)
	ListSupplierInvoices(ctx context.Context, filter domain.InvoiceListFilter) ([]domain.SupplierInvoice, error)

	UserStore
}

type UserStore interface {
	GetUserByUsername(ctx context.Context, username string) (*domain.UserAccount, error)
	ListUsers(ctx context.Context) ([]domain.UserAccount, error)
	CreateUser(ctx context.Context, user domain.UserAccount) error
	UpdateUserPassword(ctx context.Context, username string, passwordHash string) error
}

// Tx is one all-or-nothing unit of work. Row locks taken through it are held
// until the surrounding RunInTx returns.
type Tx interface {
	// EnsureBalances creates zero balances for pairs not yet present. Existing
	// rows are left untouched.
	EnsureBalances(ctx context.Context, storeID string, productIDs []string) error
	// LockBalances takes exclusive locks in ascending product id order and
	// returns the rows that exist.
	LockBalances(ctx context.Context, storeID string, productIDs []string) (map[string]domain.Balance, error)
	// ApplyBalance adds qtyDelta and stores avgUnitCost. The row must be locked.
	ApplyBalance(ctx context.Context, storeID string, productID string, qtyDelta int64, avgUnitCost int64) error
	AppendLedger(ctx context.Context, entry domain.LedgerEntry) error

	ActivePrices(ctx context.Context, storeID string, productIDs []string) (map[string]int64, error)
	InsertProduct(ctx context.Context, storeID string, product domain.Product) error
	UpdateStoreProduct(ctx context.Context, storeID string, productID string, sellPrice int64, active bool) (*domain.Product, error)

	UpsertCustomer(ctx context.Context, storeID string, plateNo string) error
	InsertSale(ctx context.Context, sale domain.Sale) error
	// LockSale locks the sale header and returns it with all children loaded.
	LockSale(ctx context.Context, storeID string, saleID string) (*domain.Sale, error)
	// UpdateSale rewrites the header and replaces custom items, payments and
	// expenses. Priced items are replaced only when replaceItems is set.
	UpdateSale(ctx context.Context, sale domain.Sale, replaceItems bool) error

	UpsertSupplier(ctx context.Context, storeID string, name string) (string, error)
	InsertSupplierInvoice(ctx context.Context, invoice domain.SupplierInvoice) error
	// LockSupplierInvoice locks the invoice header and returns it with items.
	LockSupplierInvoice(ctx context.Context, storeID string, invoiceID string) (*domain.SupplierInvoice, error)
	InsertSupplierPayment(ctx context.Context, payment domain.SupplierPayment) error
	SumSupplierPayments(ctx context.Context, invoiceID string) (int64, error)
	SetSupplierInvoiceStatus(ctx context.Context, invoiceID string, status string) error
}
