package postgres

import (
	"context"

	"tokoban/backend/internal/domain"
)

func (t *pgTx) InsertProduct(ctx context.Context, storeID string, product domain.Product) error {
	_, err := t.tx.ExecContext(ctx, `
		INSERT INTO products (id, sku, name, brand, product_type, size, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,now())
	`, product.ID, product.SKU, product.Name, product.Brand, product.ProductType, product.Size)
	if err != nil {
		return err
	}

	_, err = t.tx.ExecContext(ctx, `
		INSERT INTO store_products (store_id, product_id, sell_price, is_active, updated_at)
		VALUES ($1,$2,$3,$4,now())
	`, storeID, product.ID, product.SellPrice, product.Active)
	return err
}

func (t *pgTx) UpdateStoreProduct(ctx context.Context, storeID string, productID string, sellPrice int64, active bool) (*domain.Product, error) {
	var p domain.Product
	err := t.tx.QueryRowContext(ctx, `
		SELECT id::text, sku, name, brand, product_type, size
		FROM products
		WHERE id = $1
	`, productID).Scan(&p.ID, &p.SKU, &p.Name, &p.Brand, &p.ProductType, &p.Size)
	if err != nil {
		return nil, notFound(err)
	}

	_, err = t.tx.ExecContext(ctx, `
		INSERT INTO store_products (store_id, product_id, sell_price, is_active, updated_at)
		VALUES ($1,$2,$3,$4,now())
		ON CONFLICT (store_id, product_id)
		DO UPDATE SET sell_price = EXCLUDED.sell_price, is_active = EXCLUDED.is_active, updated_at = now()
	`, storeID, productID, sellPrice, active)
	if err != nil {
		return nil, err
	}

	p.SellPrice = sellPrice
	p.Active = active
	return &p, nil
}

func (s *Store) ListProducts(ctx context.Context, storeID string) ([]domain.Product, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT p.id::text, p.sku, p.name, p.brand, p.product_type, p.size, sp.sell_price, sp.is_active
		FROM store_products sp
		JOIN products p ON p.id = sp.product_id
		WHERE sp.store_id = $1
		ORDER BY p.name, p.sku
	`, storeID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	products := make([]domain.Product, 0, 128)
	for rows.Next() {
		var p domain.Product
		if err := rows.Scan(&p.ID, &p.SKU, &p.Name, &p.Brand, &p.ProductType, &p.Size, &p.SellPrice, &p.Active); err != nil {
			return nil, err
		}
		products = append(products, p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return products, nil
}
