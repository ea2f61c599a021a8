package memory

import (
	"context"
	"fmt"
	"os"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"tokoban/backend/internal/domain"
	"tokoban/backend/internal/store"
)

const SeedStoreID = "main-store"

// Seeded product ids, stable so tests and demo clients can reference them.
const (
	SeedTireID      = "6f1c3a52-8d0e-4b7a-9c41-2a5e7d9b0101"
	SeedTire2ID     = "6f1c3a52-8d0e-4b7a-9c41-2a5e7d9b0102"
	SeedInnerTubeID = "6f1c3a52-8d0e-4b7a-9c41-2a5e7d9b0103"
	SeedOilID       = "6f1c3a52-8d0e-4b7a-9c41-2a5e7d9b0104"
	SeedDiscPadID   = "6f1c3a52-8d0e-4b7a-9c41-2a5e7d9b0105"
	SeedCoolantID   = "6f1c3a52-8d0e-4b7a-9c41-2a5e7d9b0106"
)

type key struct {
	storeID string
	id      string
}

type storeProduct struct {
	sellPrice int64
	active    bool
}

type Store struct {
	mu     sync.RWMutex
	locks  *lockManager
	logger *zap.Logger

	products         map[string]domain.Product
	storeProducts    map[key]storeProduct
	balances         map[key]domain.Balance
	ledger           []domain.LedgerEntry
	customers        map[key]time.Time
	sales            map[string]domain.Sale
	suppliers        map[string]domain.Supplier
	invoices         map[string]domain.SupplierInvoice
	supplierPayments map[string][]domain.SupplierPayment
	users            map[string]domain.UserAccount
}

var _ store.Repository = (*Store)(nil)

func New(logger *zap.Logger) *Store {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Store{
		locks:            newLockManager(),
		logger:           logger.Named("memory-store"),
		products:         make(map[string]domain.Product),
		storeProducts:    make(map[key]storeProduct),
		balances:         make(map[key]domain.Balance),
		ledger:           make([]domain.LedgerEntry, 0, 256),
		customers:        make(map[key]time.Time),
		sales:            make(map[string]domain.Sale),
		suppliers:        make(map[string]domain.Supplier),
		invoices:         make(map[string]domain.SupplierInvoice),
		supplierPayments: make(map[string][]domain.SupplierPayment),
		users:            make(map[string]domain.UserAccount),
	}
}

// NewSeeded returns a store with a demo catalog, opening stock for
// SeedStoreID and two users. Passwords come from SEED_ADMIN_PASSWORD and
// SEED_STAFF_PASSWORD, with dev defaults when unset.
func NewSeeded(logger *zap.Logger) *Store {
	s := New(logger)
	now := time.Now().UTC()

	seed := []struct {
		product  domain.Product
		qty      int64
		unitCost int64
	}{
		{domain.Product{ID: SeedTireID, SKU: "IRC-NR73-9080-14", Name: "IRC NR73", Brand: "IRC", ProductType: "TL", Size: "90/80-14", SellPrice: 50000}, 20, 38000},
		{domain.Product{ID: SeedTire2ID, SKU: "FDR-GENZI-8090-14", Name: "FDR Genzi", Brand: "FDR", ProductType: "TL", Size: "80/90-14", SellPrice: 30000}, 20, 21000},
		{domain.Product{ID: SeedInnerTubeID, SKU: "BD-IRC-8090-14", Name: "IRC Ban Dalam", Brand: "Ban Dalam", ProductType: "TR", Size: "80/90-14", SellPrice: 45000}, 30, 30000},
		{domain.Product{ID: SeedOilID, SKU: "OLI-MPX2-08", Name: "MPX2 0.8L", Brand: "Oli", ProductType: "OLI", Size: "0.8L", SellPrice: 55000}, 40, 42000},
		{domain.Product{ID: SeedDiscPadID, SKU: "DP-VARIO-F", Name: "Kampas Depan Vario", Brand: "Disc Pad", ProductType: "SPAREPART", Size: "STD", SellPrice: 60000}, 15, 38000},
		{domain.Product{ID: SeedCoolantID, SKU: "IML-COOL-500", Name: "Coolant 500ml", Brand: "IML", ProductType: "CAIRAN", Size: "500ml", SellPrice: 25000}, 25, 15000},
	}

	for _, item := range seed {
		p := item.product
		p.Active = true
		s.products[p.ID] = p
		k := key{SeedStoreID, p.ID}
		s.storeProducts[k] = storeProduct{sellPrice: p.SellPrice, active: true}
		s.balances[k] = domain.Balance{StoreID: SeedStoreID, ProductID: p.ID, QtyOnHand: item.qty, AvgUnitCost: item.unitCost, UpdatedAt: now}
		s.ledger = append(s.ledger, domain.LedgerEntry{
			ID:        uuid.NewString(),
			StoreID:   SeedStoreID,
			ProductID: p.ID,
			TxnType:   domain.TxnAdjust,
			QtyDelta:  item.qty,
			UnitCost:  item.unitCost,
			RefType:   domain.RefManualAdjust,
			Note:      "initial stock",
			TxnAt:     now,
			CreatedAt: now,
		})
	}

	for _, user := range seedUsers(s.logger, now) {
		s.users[user.Username] = user
	}
	return s
}

func seedUsers(logger *zap.Logger, now time.Time) []domain.UserAccount {
	adminPwd := envOr("SEED_ADMIN_PASSWORD", "admin123")
	staffPwd := envOr("SEED_STAFF_PASSWORD", "kasir123")
	if os.Getenv("SEED_ADMIN_PASSWORD") == "" || os.Getenv("SEED_STAFF_PASSWORD") == "" {
		logger.Warn("using default dev credentials; set SEED_ADMIN_PASSWORD and SEED_STAFF_PASSWORD to override")
	}

	users := make([]domain.UserAccount, 0, 2)
	for _, u := range []struct {
		username string
		password string
		role     string
		storeID  string
	}{
		{"admin", adminPwd, domain.RoleAdmin, ""},
		{"kasir", staffPwd, domain.RoleStaff, SeedStoreID},
	} {
		hash, err := bcrypt.GenerateFromPassword([]byte(u.password), bcrypt.DefaultCost)
		if err != nil {
			logger.Fatal("failed to hash seed password", zap.String("username", u.username), zap.Error(err))
		}
		users = append(users, domain.UserAccount{
			ID:        uuid.NewString(),
			Username:  u.username,
			Password:  string(hash),
			Role:      u.role,
			StoreID:   u.storeID,
			Active:    true,
			CreatedAt: now,
		})
	}
	return users
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func (s *Store) Close() error {
	return nil
}

// RunInTx runs fn against a private overlay. Locks taken by fn are held until
// the overlay is published or discarded.
func (s *Store) RunInTx(ctx context.Context, fn func(tx store.Tx) error) error {
	tx := newTx(s)
	defer tx.release()

	if err := ctx.Err(); err != nil {
		return err
	}
	if err := fn(tx); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	tx.commit()
	return nil
}

func (s *Store) GetBalance(_ context.Context, storeID string, productID string) (*domain.Balance, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	bal, ok := s.balances[key{storeID, productID}]
	if !ok {
		return nil, domain.ErrReferenceNotFound
	}
	return &bal, nil
}

func (s *Store) ListInventory(_ context.Context, storeID string, query string) ([]domain.InventoryItem, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query = strings.ToLower(strings.TrimSpace(query))
	items := make([]domain.InventoryItem, 0, len(s.storeProducts))
	for k, sp := range s.storeProducts {
		if k.storeID != storeID {
			continue
		}
		p, ok := s.products[k.id]
		if !ok || !matchesProduct(p, query) {
			continue
		}
		bal := s.balances[k]
		items = append(items, domain.InventoryItem{
			ProductID:   p.ID,
			SKU:         p.SKU,
			Name:        p.Name,
			Brand:       p.Brand,
			ProductType: p.ProductType,
			Size:        p.Size,
			SellPrice:   sp.sellPrice,
			Active:      sp.active,
			QtyOnHand:   bal.QtyOnHand,
			AvgUnitCost: bal.AvgUnitCost,
			StockValue:  bal.QtyOnHand * bal.AvgUnitCost,
			UpdatedAt:   bal.UpdatedAt,
		})
	}
	sort.Slice(items, func(i, j int) bool {
		a, b := items[i], items[j]
		if a.Brand != b.Brand {
			return a.Brand < b.Brand
		}
		if a.Name != b.Name {
			return a.Name < b.Name
		}
		if a.Size != b.Size {
			return a.Size < b.Size
		}
		return a.SKU < b.SKU
	})
	return items, nil
}

func matchesProduct(p domain.Product, query string) bool {
	if query == "" {
		return true
	}
	for _, field := range []string{p.SKU, p.Name, p.Brand, p.Size} {
		if strings.Contains(strings.ToLower(field), query) {
			return true
		}
	}
	return false
}

func (s *Store) ListLedger(_ context.Context, filter domain.LedgerFilter) ([]domain.LedgerEntry, error) {
	s.mu.RLock()
	matched := make([]domain.LedgerEntry, 0, 64)
	for i := len(s.ledger) - 1; i >= 0; i-- {
		entry := s.ledger[i]
		if entry.StoreID != filter.StoreID {
			continue
		}
		if filter.ProductID != "" && entry.ProductID != filter.ProductID {
			continue
		}
		matched = append(matched, entry)
	}
	s.mu.RUnlock()

	sort.SliceStable(matched, func(i, j int) bool {
		return matched[i].TxnAt.After(matched[j].TxnAt)
	})
	return paginate(matched, filter.Limit, filter.Offset), nil
}

func (s *Store) ListProducts(_ context.Context, storeID string) ([]domain.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	products := make([]domain.Product, 0, len(s.storeProducts))
	for k, sp := range s.storeProducts {
		if k.storeID != storeID {
			continue
		}
		p, ok := s.products[k.id]
		if !ok {
			continue
		}
		p.SellPrice = sp.sellPrice
		p.Active = sp.active
		products = append(products, p)
	}
	sort.Slice(products, func(i, j int) bool {
		if products[i].Name != products[j].Name {
			return products[i].Name < products[j].Name
		}
		return products[i].SKU < products[j].SKU
	})
	return products, nil
}

func (s *Store) GetSale(_ context.Context, storeID string, saleID string) (*domain.Sale, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sale, ok := s.sales[saleID]
	if !ok || sale.StoreID != storeID {
		return nil, domain.ErrReferenceNotFound
	}
	out := cloneSale(sale)
	s.decorateItems(out.Items)
	return &out, nil
}

// decorateItems fills display fields; callers hold s.mu.
func (s *Store) decorateItems(items []domain.SaleItem) {
	for i := range items {
		if p, ok := s.products[items[i].ProductID]; ok {
			items[i].SKU = p.SKU
			items[i].Name = p.Name
		}
	}
}

func (s *Store) ListSales(_ context.Context, filter domain.SaleListFilter) ([]domain.SaleSummary, error) {
	s.mu.RLock()
	query := strings.ToLower(strings.TrimSpace(filter.Query))
	out := make([]domain.SaleSummary, 0, 32)
	for _, sale := range s.sales {
		if sale.StoreID != filter.StoreID {
			continue
		}
		if filter.Date != "" && sale.SaleDate != filter.Date {
			continue
		}
		if query != "" && !strings.Contains(strings.ToLower(sale.PlateNo), query) {
			continue
		}
		out = append(out, domain.SaleSummary{
			ID:          sale.ID,
			SaleDate:    sale.SaleDate,
			PaymentType: sale.PaymentType,
			PlateNo:     sale.PlateNo,
			ExpenseOnly: sale.ExpenseOnly,
			Total:       sale.Total,
			CreatedAt:   sale.CreatedAt,
		})
	}
	s.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return paginate(out, filter.Limit, filter.Offset), nil
}

// MarkSalePrinted sets printed_first_at once and returns the stored value.
// It takes the sale lock so it cannot interleave with an edit.
func (s *Store) MarkSalePrinted(ctx context.Context, storeID string, saleID string, at time.Time) (time.Time, error) {
	lockKey := saleLockKey(saleID)
	if err := s.locks.acquire(ctx, lockKey); err != nil {
		return time.Time{}, err
	}
	defer s.locks.release(lockKey)

	s.mu.Lock()
	defer s.mu.Unlock()
	sale, ok := s.sales[saleID]
	if !ok || sale.StoreID != storeID {
		return time.Time{}, domain.ErrReferenceNotFound
	}
	if sale.PrintedFirstAt == nil {
		at = at.UTC()
		sale.PrintedFirstAt = &at
		s.sales[saleID] = sale
	}
	return *sale.PrintedFirstAt, nil
}

func (s *Store) GetSupplierInvoice(_ context.Context, storeID string, invoiceID string) (*domain.SupplierInvoice, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	inv, ok := s.invoices[invoiceID]
	if !ok || inv.StoreID != storeID {
		return nil, domain.ErrReferenceNotFound
	}
	out := s.decorateInvoice(inv)
	out.Payments = append([]domain.SupplierPayment(nil), s.supplierPayments[invoiceID]...)
	return &out, nil
}

// decorateInvoice copies inv and fills supplier name and paid amount; callers
// hold s.mu.
func (s *Store) decorateInvoice(inv domain.SupplierInvoice) domain.SupplierInvoice {
	out := cloneInvoice(inv)
	out.SupplierName = s.suppliers[inv.SupplierID].Name
	out.PaidAmount = 0
	for _, p := range s.supplierPayments[inv.ID] {
		out.PaidAmount += p.Amount
	}
	return out
}

func (s *Store) ListSupplierInvoices(_ context.Context, filter domain.InvoiceListFilter) ([]domain.SupplierInvoice, error) {
	s.mu.RLock()
	out := make([]domain.SupplierInvoice, 0, 32)
	for _, inv := range s.invoices {
		if inv.StoreID != filter.StoreID {
			continue
		}
		if filter.Status != "" && inv.Status != filter.Status {
			continue
		}
		decorated := s.decorateInvoice(inv)
		decorated.Items = nil
		out = append(out, decorated)
	}
	s.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].InvoiceDate != out[j].InvoiceDate {
			return out[i].InvoiceDate > out[j].InvoiceDate
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return paginate(out, filter.Limit, filter.Offset), nil
}

func (s *Store) GetUserByUsername(_ context.Context, username string) (*domain.UserAccount, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	user, ok := s.users[strings.ToLower(strings.TrimSpace(username))]
	if !ok {
		return nil, domain.ErrReferenceNotFound
	}
	return &user, nil
}

func (s *Store) ListUsers(_ context.Context) ([]domain.UserAccount, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	users := make([]domain.UserAccount, 0, len(s.users))
	for _, user := range s.users {
		users = append(users, user)
	}
	sort.Slice(users, func(i, j int) bool { return users[i].Username < users[j].Username })
	return users, nil
}

func (s *Store) CreateUser(_ context.Context, user domain.UserAccount) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	username := strings.ToLower(strings.TrimSpace(user.Username))
	if username == "" {
		return domain.ErrInvalidData
	}
	if _, exists := s.users[username]; exists {
		return fmt.Errorf("%w: username already exists", domain.ErrInvalidData)
	}
	if user.ID == "" {
		user.ID = uuid.NewString()
	}
	user.Username = username
	s.users[username] = user
	return nil
}

func (s *Store) UpdateUserPassword(_ context.Context, username string, passwordHash string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	username = strings.ToLower(strings.TrimSpace(username))
	user, ok := s.users[username]
	if !ok {
		return domain.ErrReferenceNotFound
	}
	user.Password = passwordHash
	s.users[username] = user
	return nil
}

func paginate[T any](items []T, limit int, offset int) []T {
	if offset < 0 {
		offset = 0
	}
	if offset >= len(items) {
		return []T{}
	}
	items = items[offset:]
	if limit > 0 && limit < len(items) {
		items = items[:limit]
	}
	return items
}

func cloneSale(sale domain.Sale) domain.Sale {
	out := sale
	out.Items = append([]domain.SaleItem(nil), sale.Items...)
	out.CustomItems = append([]domain.CustomItem(nil), sale.CustomItems...)
	out.Payments = append([]domain.Payment(nil), sale.Payments...)
	out.Expenses = append([]domain.Expense(nil), sale.Expenses...)
	if sale.PrintedFirstAt != nil {
		at := *sale.PrintedFirstAt
		out.PrintedFirstAt = &at
	}
	return out
}

func cloneInvoice(inv domain.SupplierInvoice) domain.SupplierInvoice {
	out := inv
	out.Items = append([]domain.InvoiceItem(nil), inv.Items...)
	out.Payments = nil
	return out
}
