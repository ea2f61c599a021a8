package memory

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"tokoban/backend/internal/domain"
	"tokoban/backend/internal/store"
)

// tx stages writes privately and publishes them in commit. Reads see the
// staged value first, then committed state.
type tx struct {
	s    *Store
	held map[string]bool
	keys []string

	balances      map[key]domain.Balance
	ensured       map[key]domain.Balance
	ledger        []domain.LedgerEntry
	products      map[string]domain.Product
	storeProducts map[key]storeProduct
	customers     map[key]time.Time
	sales         map[string]domain.Sale
	suppliers     map[string]domain.Supplier
	invoices      map[string]domain.SupplierInvoice
	payments      map[string][]domain.SupplierPayment
}

var _ store.Tx = (*tx)(nil)

func newTx(s *Store) *tx {
	return &tx{
		s:             s,
		held:          make(map[string]bool),
		balances:      make(map[key]domain.Balance),
		ensured:       make(map[key]domain.Balance),
		products:      make(map[string]domain.Product),
		storeProducts: make(map[key]storeProduct),
		customers:     make(map[key]time.Time),
		sales:         make(map[string]domain.Sale),
		suppliers:     make(map[string]domain.Supplier),
		invoices:      make(map[string]domain.SupplierInvoice),
		payments:      make(map[string][]domain.SupplierPayment),
	}
}

// lock acquires keys in sorted order, skipping keys this tx already holds.
func (t *tx) lock(ctx context.Context, keys ...string) error {
	sorted := append([]string(nil), keys...)
	sort.Strings(sorted)
	for _, k := range sorted {
		if t.held[k] {
			continue
		}
		if err := t.s.locks.acquire(ctx, k); err != nil {
			return err
		}
		t.held[k] = true
		t.keys = append(t.keys, k)
	}
	return nil
}

func (t *tx) release() {
	for i := len(t.keys) - 1; i >= 0; i-- {
		t.s.locks.release(t.keys[i])
	}
	t.keys = nil
	t.held = map[string]bool{}
}

func (t *tx) commit() {
	t.s.mu.Lock()
	defer t.s.mu.Unlock()

	for k, v := range t.products {
		t.s.products[k] = v
	}
	for k, v := range t.storeProducts {
		t.s.storeProducts[k] = v
	}
	for k, v := range t.ensured {
		if _, exists := t.s.balances[k]; !exists {
			t.s.balances[k] = v
		}
	}
	for k, v := range t.balances {
		t.s.balances[k] = v
	}
	t.s.ledger = append(t.s.ledger, t.ledger...)
	for k, v := range t.customers {
		if _, exists := t.s.customers[k]; !exists {
			t.s.customers[k] = v
		}
	}
	for k, v := range t.sales {
		t.s.sales[k] = v
	}
	for k, v := range t.suppliers {
		t.s.suppliers[k] = v
	}
	for k, v := range t.invoices {
		t.s.invoices[k] = v
	}
	for k, v := range t.payments {
		t.s.supplierPayments[k] = append(t.s.supplierPayments[k], v...)
	}
}

// EnsureBalances stages zero rows for pairs missing from committed state.
// Staged rows are published on commit only when no other tx created the pair
// first, and are dropped on rollback.
func (t *tx) EnsureBalances(_ context.Context, storeID string, productIDs []string) error {
	t.s.mu.RLock()
	defer t.s.mu.RUnlock()
	now := time.Now().UTC()
	for _, productID := range productIDs {
		k := key{storeID, productID}
		if _, ok := t.s.products[productID]; !ok {
			if _, staged := t.products[productID]; !staged {
				return fmt.Errorf("%w: unknown product %s", domain.ErrInvalidData, productID)
			}
		}
		if _, ok := t.s.balances[k]; ok {
			continue
		}
		if _, ok := t.ensured[k]; !ok {
			t.ensured[k] = domain.Balance{StoreID: storeID, ProductID: productID, UpdatedAt: now}
		}
	}
	return nil
}

func (t *tx) LockBalances(ctx context.Context, storeID string, productIDs []string) (map[string]domain.Balance, error) {
	keys := make([]string, 0, len(productIDs))
	for _, productID := range productIDs {
		keys = append(keys, balanceLockKey(storeID, productID))
	}
	if err := t.lock(ctx, keys...); err != nil {
		return nil, err
	}

	out := make(map[string]domain.Balance, len(productIDs))
	for _, productID := range productIDs {
		if bal, ok := t.balance(storeID, productID); ok {
			out[productID] = bal
		}
	}
	return out, nil
}

// balance prefers this tx's own writes, then committed state, then a row
// staged by EnsureBalances.
func (t *tx) balance(storeID, productID string) (domain.Balance, bool) {
	k := key{storeID, productID}
	if bal, ok := t.balances[k]; ok {
		return bal, true
	}
	t.s.mu.RLock()
	bal, ok := t.s.balances[k]
	t.s.mu.RUnlock()
	if ok {
		return bal, true
	}
	bal, ok = t.ensured[k]
	return bal, ok
}

func (t *tx) ApplyBalance(_ context.Context, storeID string, productID string, qtyDelta int64, avgUnitCost int64) error {
	if !t.held[balanceLockKey(storeID, productID)] {
		return fmt.Errorf("balance %s/%s updated without lock", storeID, productID)
	}
	bal, ok := t.balance(storeID, productID)
	if !ok {
		return domain.ErrBalanceNotFound
	}
	if bal.QtyOnHand+qtyDelta < 0 || avgUnitCost < 0 {
		return fmt.Errorf("%w: balance would violate non-negative constraint", domain.ErrInvalidData)
	}
	bal.QtyOnHand += qtyDelta
	bal.AvgUnitCost = avgUnitCost
	bal.UpdatedAt = time.Now().UTC()
	t.balances[key{storeID, productID}] = bal
	return nil
}

func (t *tx) AppendLedger(_ context.Context, entry domain.LedgerEntry) error {
	if entry.QtyDelta == 0 {
		return fmt.Errorf("%w: ledger qty_delta must not be 0", domain.ErrInvalidData)
	}
	if !t.productExists(entry.ProductID) {
		return fmt.Errorf("%w: unknown product %s", domain.ErrInvalidData, entry.ProductID)
	}
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}
	t.ledger = append(t.ledger, entry)
	return nil
}

func (t *tx) productExists(productID string) bool {
	if _, ok := t.products[productID]; ok {
		return true
	}
	t.s.mu.RLock()
	defer t.s.mu.RUnlock()
	_, ok := t.s.products[productID]
	return ok
}

func (t *tx) storeProduct(storeID, productID string) (storeProduct, bool) {
	k := key{storeID, productID}
	if sp, ok := t.storeProducts[k]; ok {
		return sp, true
	}
	t.s.mu.RLock()
	defer t.s.mu.RUnlock()
	sp, ok := t.s.storeProducts[k]
	return sp, ok
}

func (t *tx) ActivePrices(_ context.Context, storeID string, productIDs []string) (map[string]int64, error) {
	prices := make(map[string]int64, len(productIDs))
	for _, productID := range productIDs {
		sp, ok := t.storeProduct(storeID, productID)
		if ok && sp.active {
			prices[productID] = sp.sellPrice
		}
	}
	return prices, nil
}

func (t *tx) InsertProduct(ctx context.Context, storeID string, product domain.Product) error {
	sku := strings.ToUpper(strings.TrimSpace(product.SKU))
	if err := t.lock(ctx, "sku:"+sku); err != nil {
		return err
	}

	t.s.mu.RLock()
	_, idTaken := t.s.products[product.ID]
	skuTaken := false
	for _, p := range t.s.products {
		if strings.EqualFold(p.SKU, sku) {
			skuTaken = true
			break
		}
	}
	t.s.mu.RUnlock()
	for _, p := range t.products {
		if strings.EqualFold(p.SKU, sku) {
			skuTaken = true
		}
	}
	if idTaken || skuTaken {
		return fmt.Errorf("%w: product already exists", domain.ErrInvalidData)
	}

	product.SKU = sku
	t.products[product.ID] = product
	t.storeProducts[key{storeID, product.ID}] = storeProduct{sellPrice: product.SellPrice, active: product.Active}
	return nil
}

func (t *tx) UpdateStoreProduct(ctx context.Context, storeID string, productID string, sellPrice int64, active bool) (*domain.Product, error) {
	if err := t.lock(ctx, "store-product:"+storeID+":"+productID); err != nil {
		return nil, err
	}
	t.s.mu.RLock()
	p, ok := t.s.products[productID]
	t.s.mu.RUnlock()
	if staged, isStaged := t.products[productID]; isStaged {
		p, ok = staged, true
	}
	if !ok {
		return nil, domain.ErrReferenceNotFound
	}
	t.storeProducts[key{storeID, productID}] = storeProduct{sellPrice: sellPrice, active: active}
	p.SellPrice = sellPrice
	p.Active = active
	return &p, nil
}

func (t *tx) UpsertCustomer(_ context.Context, storeID string, plateNo string) error {
	plateNo = strings.TrimSpace(plateNo)
	if plateNo == "" {
		return nil
	}
	k := key{storeID, strings.ToUpper(plateNo)}
	if _, ok := t.customers[k]; !ok {
		t.customers[k] = time.Now().UTC()
	}
	return nil
}

func (t *tx) InsertSale(ctx context.Context, sale domain.Sale) error {
	if sale.ID == "" {
		return fmt.Errorf("%w: sale id required", domain.ErrInvalidData)
	}
	for _, item := range sale.Items {
		if !t.productExists(item.ProductID) {
			return fmt.Errorf("%w: unknown product %s", domain.ErrInvalidData, item.ProductID)
		}
	}
	if err := checkSaleRows(sale); err != nil {
		return err
	}
	if err := t.lock(ctx, saleLockKey(sale.ID)); err != nil {
		return err
	}
	t.s.mu.RLock()
	_, exists := t.s.sales[sale.ID]
	t.s.mu.RUnlock()
	if exists {
		return fmt.Errorf("%w: sale already exists", domain.ErrInvalidData)
	}
	t.sales[sale.ID] = cloneSale(sale)
	return nil
}

func (t *tx) LockSale(ctx context.Context, storeID string, saleID string) (*domain.Sale, error) {
	if err := t.lock(ctx, saleLockKey(saleID)); err != nil {
		return nil, err
	}
	sale, ok := t.sales[saleID]
	if !ok {
		t.s.mu.RLock()
		sale, ok = t.s.sales[saleID]
		t.s.mu.RUnlock()
	}
	if !ok || sale.StoreID != storeID {
		return nil, domain.ErrReferenceNotFound
	}
	out := cloneSale(sale)
	return &out, nil
}

func (t *tx) UpdateSale(_ context.Context, sale domain.Sale, replaceItems bool) error {
	if !t.held[saleLockKey(sale.ID)] {
		return fmt.Errorf("sale %s updated without lock", sale.ID)
	}
	current, ok := t.sales[sale.ID]
	if !ok {
		t.s.mu.RLock()
		current, ok = t.s.sales[sale.ID]
		t.s.mu.RUnlock()
	}
	if !ok {
		return domain.ErrReferenceNotFound
	}

	next := cloneSale(sale)
	if !replaceItems {
		next.Items = append([]domain.SaleItem(nil), current.Items...)
	}
	for _, item := range next.Items {
		if !t.productExists(item.ProductID) {
			return fmt.Errorf("%w: unknown product %s", domain.ErrInvalidData, item.ProductID)
		}
	}
	if err := checkSaleRows(next); err != nil {
		return err
	}
	next.PrintedFirstAt = current.PrintedFirstAt
	next.CreatedAt = current.CreatedAt
	next.CreatedBy = current.CreatedBy
	t.sales[sale.ID] = next
	return nil
}

// checkSaleRows enforces the same row constraints as the sales tables.
func checkSaleRows(sale domain.Sale) error {
	if sale.Subtotal < 0 || sale.Total < 0 || sale.Discount < 0 || sale.ServiceFee < 0 {
		return fmt.Errorf("%w: sale amounts must not be negative", domain.ErrInvalidData)
	}
	for _, p := range sale.Payments {
		if p.Amount <= 0 {
			return fmt.Errorf("%w: payment amount must be positive", domain.ErrInvalidData)
		}
	}
	for _, e := range sale.Expenses {
		if e.Amount <= 0 {
			return fmt.Errorf("%w: expense amount must be positive", domain.ErrInvalidData)
		}
	}
	return nil
}

func (t *tx) UpsertSupplier(ctx context.Context, storeID string, name string) (string, error) {
	name = strings.TrimSpace(name)
	normalized := strings.ToLower(name)
	if normalized == "" {
		return "", fmt.Errorf("%w: supplier name required", domain.ErrInvalidData)
	}
	if err := t.lock(ctx, "supplier:"+storeID+":"+normalized); err != nil {
		return "", err
	}

	for id, sup := range t.suppliers {
		if sup.StoreID == storeID && strings.ToLower(sup.Name) == normalized {
			return id, nil
		}
	}
	t.s.mu.RLock()
	for id, sup := range t.s.suppliers {
		if sup.StoreID == storeID && strings.ToLower(sup.Name) == normalized {
			t.s.mu.RUnlock()
			return id, nil
		}
	}
	t.s.mu.RUnlock()

	id := uuid.NewString()
	t.suppliers[id] = domain.Supplier{ID: id, StoreID: storeID, Name: name, CreatedAt: time.Now().UTC()}
	return id, nil
}

func (t *tx) InsertSupplierInvoice(ctx context.Context, invoice domain.SupplierInvoice) error {
	if err := t.lock(ctx, "invoice-no:"+invoice.StoreID+":"+invoice.SupplierID+":"+strings.ToLower(invoice.InvoiceNo), invoiceLockKey(invoice.ID)); err != nil {
		return err
	}
	for _, item := range invoice.Items {
		if !t.productExists(item.ProductID) {
			return fmt.Errorf("%w: unknown product %s", domain.ErrInvalidData, item.ProductID)
		}
	}

	duplicate := func(inv domain.SupplierInvoice) bool {
		return inv.StoreID == invoice.StoreID && inv.SupplierID == invoice.SupplierID &&
			strings.EqualFold(inv.InvoiceNo, invoice.InvoiceNo)
	}
	for _, inv := range t.invoices {
		if duplicate(inv) {
			return fmt.Errorf("%w: invoice number already recorded for supplier", domain.ErrInvalidData)
		}
	}
	t.s.mu.RLock()
	for _, inv := range t.s.invoices {
		if duplicate(inv) {
			t.s.mu.RUnlock()
			return fmt.Errorf("%w: invoice number already recorded for supplier", domain.ErrInvalidData)
		}
	}
	t.s.mu.RUnlock()

	t.invoices[invoice.ID] = cloneInvoice(invoice)
	return nil
}

func (t *tx) LockSupplierInvoice(ctx context.Context, storeID string, invoiceID string) (*domain.SupplierInvoice, error) {
	if err := t.lock(ctx, invoiceLockKey(invoiceID)); err != nil {
		return nil, err
	}
	inv, ok := t.invoices[invoiceID]
	if !ok {
		t.s.mu.RLock()
		inv, ok = t.s.invoices[invoiceID]
		t.s.mu.RUnlock()
	}
	if !ok || inv.StoreID != storeID {
		return nil, domain.ErrReferenceNotFound
	}
	out := cloneInvoice(inv)
	return &out, nil
}

func (t *tx) InsertSupplierPayment(_ context.Context, payment domain.SupplierPayment) error {
	if !t.held[invoiceLockKey(payment.InvoiceID)] {
		return fmt.Errorf("invoice %s paid without lock", payment.InvoiceID)
	}
	if payment.Amount <= 0 {
		return fmt.Errorf("%w: payment amount must be positive", domain.ErrInvalidData)
	}
	t.payments[payment.InvoiceID] = append(t.payments[payment.InvoiceID], payment)
	return nil
}

func (t *tx) SumSupplierPayments(_ context.Context, invoiceID string) (int64, error) {
	var total int64
	for _, p := range t.payments[invoiceID] {
		total += p.Amount
	}
	t.s.mu.RLock()
	defer t.s.mu.RUnlock()
	for _, p := range t.s.supplierPayments[invoiceID] {
		total += p.Amount
	}
	return total, nil
}

func (t *tx) SetSupplierInvoiceStatus(_ context.Context, invoiceID string, status string) error {
	if !t.held[invoiceLockKey(invoiceID)] {
		return fmt.Errorf("invoice %s updated without lock", invoiceID)
	}
	inv, ok := t.invoices[invoiceID]
	if !ok {
		t.s.mu.RLock()
		inv, ok = t.s.invoices[invoiceID]
		t.s.mu.RUnlock()
	}
	if !ok {
		return domain.ErrReferenceNotFound
	}
	inv = cloneInvoice(inv)
	inv.Status = status
	t.invoices[invoiceID] = inv
	return nil
}
