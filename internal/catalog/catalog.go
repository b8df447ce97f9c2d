// Package catalog is the read-only menu: products and categories filtered
// by their active flag.
package catalog

import (
	"context"
	"errors"

	"cafe-order-service/internal/domain"
	"cafe-order-service/internal/store"
)

type Catalog struct {
	store store.Store
}

func New(s store.Store) *Catalog {
	return &Catalog{store: s}
}

func (c *Catalog) ListActiveProducts(ctx context.Context) ([]domain.Product, error) {
	var out []domain.Product
	err := c.store.WithTx(ctx, func(ctx context.Context, tx store.Tx) error {
		var err error
		out, err = tx.ListProducts(ctx, true)
		return err
	})
	return out, err
}

// GetProduct returns an active product. Missing and inactive products are
// both reported as not found.
func (c *Catalog) GetProduct(ctx context.Context, productID int64) (domain.Product, error) {
	var out domain.Product
	err := c.store.WithTx(ctx, func(ctx context.Context, tx store.Tx) error {
		var err error
		out, err = ActiveProduct(ctx, tx, productID)
		return err
	})
	return out, err
}

func (c *Catalog) ListCategories(ctx context.Context) ([]domain.Category, error) {
	var out []domain.Category
	err := c.store.WithTx(ctx, func(ctx context.Context, tx store.Tx) error {
		var err error
		out, err = tx.ListCategories(ctx, true)
		return err
	})
	return out, err
}

// ActiveProduct loads a product inside an existing transaction.
func ActiveProduct(ctx context.Context, tx store.Tx, productID int64) (domain.Product, error) {
	p, err := tx.GetProduct(ctx, productID)
	if errors.Is(err, store.ErrNotFound) {
		return domain.Product{}, domain.NotFoundError("product", productID)
	}
	if err != nil {
		return domain.Product{}, err
	}
	if !p.IsActive {
		return domain.Product{}, domain.NotFoundError("product", productID)
	}
	return p, nil
}
