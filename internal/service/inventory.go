package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"tokoban/backend/internal/catalog"
	"tokoban/backend/internal/costing"
	"tokoban/backend/internal/domain"
	"tokoban/backend/internal/store"
)

const initialStockNote = "initial stock"

func (s *Service) ListInventory(ctx context.Context, filter domain.InventoryFilter) (domain.InventoryListResponse, error) {
	if err := requireStore(filter.StoreID); err != nil {
		return domain.InventoryListResponse{}, err
	}
	category := strings.ToUpper(strings.TrimSpace(filter.Category))
	if category != "" && !catalog.IsCategory(category) {
		return domain.InventoryListResponse{}, fmt.Errorf("%w: unknown category %q", domain.ErrInvalidRequest, filter.Category)
	}

	items, err := s.repo.ListInventory(ctx, filter.StoreID, filter.Query)
	if err != nil {
		return domain.InventoryListResponse{}, err
	}
	matched := make([]domain.InventoryItem, 0, len(items))
	for _, item := range items {
		item.Category = catalog.Classify(item.Brand, item.Name, item.ProductType)
		if category != "" && item.Category != category {
			continue
		}
		matched = append(matched, item)
	}

	limit, offset := clampPage(filter.Limit, filter.Offset)
	total := len(matched)
	if offset > total {
		offset = total
	}
	end := offset + limit
	if end > total {
		end = total
	}
	return domain.InventoryListResponse{Items: matched[offset:end], Total: total}, nil
}

// InventorySummary totals quantity and stock value per display category. Every
// category is present, including empty ones.
func (s *Service) InventorySummary(ctx context.Context, storeID string) ([]domain.CategorySummary, error) {
	if err := requireStore(storeID); err != nil {
		return nil, err
	}
	items, err := s.repo.ListInventory(ctx, storeID, "")
	if err != nil {
		return nil, err
	}

	byCategory := make(map[string]*domain.CategorySummary, len(catalog.Categories))
	out := make([]domain.CategorySummary, len(catalog.Categories))
	for i, category := range catalog.Categories {
		out[i].Category = category
		byCategory[category] = &out[i]
	}
	for _, item := range items {
		sum := byCategory[catalog.Classify(item.Brand, item.Name, item.ProductType)]
		sum.Products++
		sum.QtyOnHand += item.QtyOnHand
		sum.StockValue += item.QtyOnHand * item.AvgUnitCost
	}
	return out, nil
}

func (s *Service) ListLedger(ctx context.Context, filter domain.LedgerFilter) ([]domain.LedgerEntry, error) {
	if err := requireStore(filter.StoreID); err != nil {
		return nil, err
	}
	filter.ProductID = strings.ToLower(strings.TrimSpace(filter.ProductID))
	filter.Limit, filter.Offset = clampPage(filter.Limit, filter.Offset)
	return s.repo.ListLedger(ctx, filter)
}

func (s *Service) ListProducts(ctx context.Context, storeID string) ([]domain.Product, error) {
	if err := requireStore(storeID); err != nil {
		return nil, err
	}
	return s.repo.ListProducts(ctx, storeID)
}

// CreateProduct registers a product with its store price. Opening stock, when
// given, is booked as an adjustment in the same transaction.
func (s *Service) CreateProduct(ctx context.Context, storeID string, req domain.ProductCreateRequest) (domain.Product, error) {
	if err := requireStore(storeID); err != nil {
		return domain.Product{}, err
	}
	product := domain.Product{
		ID:          uuid.NewString(),
		SKU:         strings.ToUpper(strings.TrimSpace(req.SKU)),
		Name:        strings.TrimSpace(req.Name),
		Brand:       strings.TrimSpace(req.Brand),
		ProductType: strings.ToUpper(strings.TrimSpace(req.ProductType)),
		Size:        strings.TrimSpace(req.Size),
		SellPrice:   req.SellPrice,
		Active:      true,
	}
	if req.Active != nil {
		product.Active = *req.Active
	}
	if product.SKU == "" || product.Name == "" {
		return domain.Product{}, fmt.Errorf("%w: sku and name are required", domain.ErrInvalidRequest)
	}
	if req.SellPrice < 0 || req.InitialQty < 0 || req.InitialUnitCost < 0 {
		return domain.Product{}, fmt.Errorf("%w: prices and quantities must not be negative", domain.ErrInvalidRequest)
	}

	err := s.repo.RunInTx(ctx, func(tx store.Tx) error {
		if err := tx.InsertProduct(ctx, storeID, product); err != nil {
			return err
		}
		positions, err := lockedBalances(ctx, tx, storeID, []string{product.ID})
		if err != nil {
			return err
		}
		if req.InitialQty == 0 {
			return nil
		}
		prev := positions[product.ID]
		next, err := costing.Incoming(prev, req.InitialQty, req.InitialUnitCost)
		if err != nil {
			return err
		}
		return s.moveStock(ctx, tx, storeID, product.ID, prev, next, domain.LedgerEntry{
			TxnType:   domain.TxnAdjust,
			UnitCost:  req.InitialUnitCost,
			RefType:   domain.RefManualAdjust,
			Note:      initialStockNote,
			CreatedBy: actorID(ctx),
		})
	})
	if err != nil {
		return domain.Product{}, err
	}

	s.logger.Info("product created",
		zap.String("store_id", storeID),
		zap.String("product_id", product.ID),
		zap.String("sku", product.SKU),
		zap.Int64("initial_qty", req.InitialQty),
	)
	return product, nil
}

func (s *Service) UpdateStoreProduct(ctx context.Context, storeID string, productID string, req domain.StoreProductUpdateRequest) (domain.Product, error) {
	if err := requireStore(storeID); err != nil {
		return domain.Product{}, err
	}
	if req.SellPrice < 0 {
		return domain.Product{}, fmt.Errorf("%w: sell_price must not be negative", domain.ErrInvalidRequest)
	}
	active := true
	if req.Active != nil {
		active = *req.Active
	}

	var updated *domain.Product
	err := s.repo.RunInTx(ctx, func(tx store.Tx) error {
		var err error
		updated, err = tx.UpdateStoreProduct(ctx, storeID, strings.ToLower(strings.TrimSpace(productID)), req.SellPrice, active)
		return err
	})
	if err != nil {
		return domain.Product{}, err
	}
	return *updated, nil
}
