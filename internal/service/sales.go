package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"tokoban/backend/internal/cache"
	"tokoban/backend/internal/costing"
	"tokoban/backend/internal/domain"
	"tokoban/backend/internal/store"
)

// CreateSale prices, stocks out and persists a sale in one transaction. Any
// failure leaves balances, ledger and sales untouched.
func (s *Service) CreateSale(ctx context.Context, storeID string, req domain.SaleCreateRequest) (domain.Sale, error) {
	if err := requireStore(storeID); err != nil {
		return domain.Sale{}, err
	}

	saleDate := strings.TrimSpace(req.SaleDate)
	if saleDate == "" {
		saleDate = s.today()
	} else if _, err := parseDate(saleDate); err != nil {
		return domain.Sale{}, err
	}
	if req.Discount < 0 || req.ServiceFee < 0 {
		return domain.Sale{}, fmt.Errorf("%w: discount and service fee must not be negative", domain.ErrInvalidRequest)
	}

	expenses, err := buildExpenses(req.Expenses)
	if err != nil {
		return domain.Sale{}, err
	}
	plateNo := normalizePlate(req.PlateNo)
	if req.ExpenseOnly {
		if len(expenses) == 0 {
			return domain.Sale{}, fmt.Errorf("%w: expense-only entry needs at least one expense", domain.ErrInvalidRequest)
		}
		req.Items = nil
		req.CustomItems = nil
		req.Discount = 0
		req.ServiceFee = 0
		plateNo = domain.ExpensePlateNo
	} else {
		if plateNo == "" {
			return domain.Sale{}, fmt.Errorf("%w: plate_no is required", domain.ErrInvalidRequest)
		}
		if len(req.Items) == 0 && len(req.CustomItems) == 0 {
			return domain.Sale{}, fmt.Errorf("%w: at least one product or custom item is required", domain.ErrInvalidRequest)
		}
	}

	items, err := normalizeSaleItems(req.Items)
	if err != nil {
		return domain.Sale{}, err
	}
	customItems, err := buildCustomItems(req.CustomItems)
	if err != nil {
		return domain.Sale{}, err
	}

	now := s.now()
	sale := domain.Sale{
		ID:          uuid.NewString(),
		StoreID:     storeID,
		SaleDate:    saleDate,
		PlateNo:     plateNo,
		ExpenseOnly: req.ExpenseOnly,
		Discount:    req.Discount,
		ServiceFee:  req.ServiceFee,
		CreatedBy:   actorID(ctx),
		CreatedAt:   now,
		UpdatedAt:   now,
		CustomItems: customItems,
		Expenses:    expenses,
	}

	err = s.repo.RunInTx(ctx, func(tx store.Tx) error {
		positions, err := lockedBalances(ctx, tx, storeID, saleItemProductIDs(items))
		if err != nil {
			return err
		}
		priced, err := priceItems(ctx, tx, storeID, items, positions)
		if err != nil {
			return err
		}
		sale.Items = priced
		if err := computeTotals(&sale); err != nil {
			return err
		}

		if sale.ExpenseOnly {
			sale.PaymentType = domain.PaymentCash
			sale.Payments = nil
		} else {
			payments, summary, err := reconcilePayments(req.Payments, req.PaymentType, sale.Total)
			if err != nil {
				return err
			}
			sale.Payments = payments
			sale.PaymentType = summary
			if err := tx.UpsertCustomer(ctx, storeID, sale.PlateNo); err != nil {
				return err
			}
		}

		if err := tx.InsertSale(ctx, sale); err != nil {
			return err
		}
		return s.stockOutSaleItems(ctx, tx, sale, positions)
	})
	if err != nil {
		s.logger.Debug("sale rejected", zap.String("store_id", storeID), zap.Error(err))
		return domain.Sale{}, err
	}

	s.logger.Info("sale created",
		zap.String("store_id", storeID),
		zap.String("sale_id", sale.ID),
		zap.Int64("total", sale.Total),
		zap.String("payment_type", sale.PaymentType),
		zap.Int("items", len(sale.Items)),
	)
	return withEmptySlices(sale), nil
}

// priceItems snapshots the active sell price and the pre-movement average cost
// for each requested item.
func priceItems(ctx context.Context, tx store.Tx, storeID string, items []domain.SaleItemInput, positions map[string]costing.Position) ([]domain.SaleItem, error) {
	if len(items) == 0 {
		return nil, nil
	}
	prices, err := tx.ActivePrices(ctx, storeID, saleItemProductIDs(items))
	if err != nil {
		return nil, err
	}

	priced := make([]domain.SaleItem, 0, len(items))
	for _, in := range items {
		price, ok := prices[in.ProductID]
		if !ok {
			return nil, fmt.Errorf("%w: %s", domain.ErrProductNotSellable, in.ProductID)
		}
		pos := positions[in.ProductID]
		if in.Qty > pos.Qty {
			return nil, fmt.Errorf("%w: product %s on hand %d, requested %d", domain.ErrInsufficientStock, in.ProductID, pos.Qty, in.Qty)
		}
		priced = append(priced, domain.SaleItem{
			ID:        uuid.NewString(),
			ProductID: in.ProductID,
			Qty:       in.Qty,
			SellPrice: price,
			UnitCost:  pos.AvgCost,
			Profit:    (price - pos.AvgCost) * in.Qty,
			LineTotal: price * in.Qty,
		})
	}
	return priced, nil
}

func (s *Service) stockOutSaleItems(ctx context.Context, tx store.Tx, sale domain.Sale, positions map[string]costing.Position) error {
	for _, item := range sale.Items {
		prev := positions[item.ProductID]
		next, err := costing.Outgoing(prev, item.Qty)
		if err != nil {
			return fmt.Errorf("product %s: %w", item.ProductID, err)
		}
		err = s.moveStock(ctx, tx, sale.StoreID, item.ProductID, prev, next, domain.LedgerEntry{
			TxnType:   domain.TxnOut,
			UnitCost:  prev.AvgCost,
			RefType:   domain.RefSale,
			RefID:     sale.ID,
			CreatedBy: actorID(ctx),
		})
		if err != nil {
			return err
		}
		positions[item.ProductID] = next
	}
	return nil
}

func computeTotals(sale *domain.Sale) error {
	var subtotal int64
	for _, item := range sale.Items {
		subtotal += item.LineTotal
	}
	for _, item := range sale.CustomItems {
		subtotal += item.LineTotal
	}
	total := subtotal - sale.Discount + sale.ServiceFee
	if total < 0 {
		return fmt.Errorf("%w: discount exceeds subtotal", domain.ErrInvalidRequest)
	}
	sale.Subtotal = subtotal
	sale.Total = total
	return nil
}

func normalizeSaleItems(items []domain.SaleItemInput) ([]domain.SaleItemInput, error) {
	out := make([]domain.SaleItemInput, 0, len(items))
	seen := make(map[string]struct{}, len(items))
	for _, item := range items {
		item.ProductID = strings.ToLower(strings.TrimSpace(item.ProductID))
		if item.ProductID == "" || item.Qty <= 0 {
			return nil, fmt.Errorf("%w: items need a product_id and a positive qty", domain.ErrInvalidRequest)
		}
		if _, dup := seen[item.ProductID]; dup {
			return nil, fmt.Errorf("%w: %s", domain.ErrDuplicateProductReference, item.ProductID)
		}
		seen[item.ProductID] = struct{}{}
		out = append(out, item)
	}
	return out, nil
}

func buildCustomItems(inputs []domain.CustomItemInput) ([]domain.CustomItem, error) {
	out := make([]domain.CustomItem, 0, len(inputs))
	for _, in := range inputs {
		name := strings.TrimSpace(in.Name)
		if name == "" || in.Qty <= 0 || in.Price < 0 {
			return nil, fmt.Errorf("%w: custom items need a name, a positive qty and a non-negative price", domain.ErrInvalidRequest)
		}
		out = append(out, domain.CustomItem{
			ID:        uuid.NewString(),
			Name:      name,
			Qty:       in.Qty,
			Price:     in.Price,
			LineTotal: in.Qty * in.Price,
		})
	}
	return out, nil
}

func buildExpenses(inputs []domain.ExpenseInput) ([]domain.Expense, error) {
	out := make([]domain.Expense, 0, len(inputs))
	for _, in := range inputs {
		name := strings.TrimSpace(in.Name)
		if name == "" || in.Amount <= 0 {
			return nil, fmt.Errorf("%w: expenses need a name and a positive amount", domain.ErrInvalidRequest)
		}
		out = append(out, domain.Expense{ID: uuid.NewString(), Name: name, Amount: in.Amount})
	}
	return out, nil
}

func saleItemProductIDs(items []domain.SaleItemInput) []string {
	ids := make([]string, 0, len(items))
	for _, item := range items {
		ids = append(ids, item.ProductID)
	}
	return ids
}

func normalizePlate(plate string) string {
	return strings.ToUpper(strings.Join(strings.Fields(plate), " "))
}

func withEmptySlices(sale domain.Sale) domain.Sale {
	if sale.Items == nil {
		sale.Items = []domain.SaleItem{}
	}
	if sale.CustomItems == nil {
		sale.CustomItems = []domain.CustomItem{}
	}
	if sale.Payments == nil {
		sale.Payments = []domain.Payment{}
	}
	if sale.Expenses == nil {
		sale.Expenses = []domain.Expense{}
	}
	return sale
}

// GetSale returns the sale detail, served from the read cache when possible.
func (s *Service) GetSale(ctx context.Context, storeID string, saleID string) (domain.Sale, error) {
	if err := requireStore(storeID); err != nil {
		return domain.Sale{}, err
	}
	if err := normalizeRefID("sale", &saleID); err != nil {
		return domain.Sale{}, err
	}
	key := cache.SaleKey(storeID, saleID)
	cached, ok, err := s.sales.Get(ctx, key)
	if err != nil {
		s.logger.Warn("sale cache read failed", zap.String("key", key), zap.Error(err))
	} else if ok {
		return *cached, nil
	}

	sale, err := s.repo.GetSale(ctx, storeID, saleID)
	if err != nil {
		return domain.Sale{}, err
	}
	out := withEmptySlices(*sale)
	if _, err := s.sales.SetIfAbsent(ctx, key, &out, s.saleCacheTTL); err != nil {
		s.logger.Warn("sale cache write failed", zap.String("key", key), zap.Error(err))
	}
	return out, nil
}

// ListSales lists sales for one date, today by default, unless allDates is set.
func (s *Service) ListSales(ctx context.Context, filter domain.SaleListFilter, allDates bool) ([]domain.SaleSummary, error) {
	if err := requireStore(filter.StoreID); err != nil {
		return nil, err
	}
	switch {
	case allDates:
		filter.Date = ""
	case strings.TrimSpace(filter.Date) == "":
		filter.Date = s.today()
	default:
		if _, err := parseDate(filter.Date); err != nil {
			return nil, err
		}
	}
	filter.Query = normalizePlate(filter.Query)
	filter.Limit, filter.Offset = clampPage(filter.Limit, filter.Offset)
	return s.repo.ListSales(ctx, filter)
}

// MarkSalePrinted records the first successful print. Later calls return the
// original timestamp.
func (s *Service) MarkSalePrinted(ctx context.Context, storeID string, saleID string) (domain.PrintedResponse, error) {
	if err := requireStore(storeID); err != nil {
		return domain.PrintedResponse{}, err
	}
	if err := normalizeRefID("sale", &saleID); err != nil {
		return domain.PrintedResponse{}, err
	}
	at, err := s.repo.MarkSalePrinted(ctx, storeID, saleID, s.now())
	if err != nil {
		return domain.PrintedResponse{}, err
	}
	s.refreshSale(ctx, storeID, saleID)
	return domain.PrintedResponse{SaleID: saleID, PrintedFirstAt: at}, nil
}

// refreshSale overwrites the cached detail with the committed row. When that
// fails the entry is dropped instead.
func (s *Service) refreshSale(ctx context.Context, storeID string, saleID string) {
	if _, noop := s.sales.(cache.NoopSaleCache); noop {
		return
	}
	key := cache.SaleKey(storeID, saleID)
	sale, err := s.repo.GetSale(ctx, storeID, saleID)
	if err == nil {
		out := withEmptySlices(*sale)
		if err = s.sales.Set(ctx, key, &out, s.saleCacheTTL); err == nil {
			return
		}
	}
	s.logger.Warn("sale cache refresh failed", zap.String("key", key), zap.Error(err))
	if err := s.sales.Delete(ctx, key); err != nil {
		s.logger.Warn("sale cache invalidation failed", zap.String("key", key), zap.Error(err))
	}
}
