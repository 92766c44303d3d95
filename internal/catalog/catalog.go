// Package catalog holds the read-only product list loaded at startup.
package catalog

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/ashureev/chatshop/internal/action"
	"github.com/ashureev/chatshop/internal/domain"
)

// Store is an immutable product catalog. It is safe for concurrent use.
type Store struct {
	products []domain.Product
	index    map[string]int
}

// New builds a Store from products. It rejects duplicate ids and products
// whose button tokens would not fit the chat transport.
func New(products []domain.Product) (*Store, error) {
	s := &Store{
		products: make([]domain.Product, len(products)),
		index:    make(map[string]int, len(products)),
	}
	copy(s.products, products)
	for i, p := range s.products {
		if _, dup := s.index[p.ID]; dup {
			return nil, fmt.Errorf("duplicate product id %q", p.ID)
		}
		if err := checkTokens(p); err != nil {
			return nil, fmt.Errorf("product %q: %w", p.ID, err)
		}
		s.index[p.ID] = i
	}
	return s, nil
}

func checkTokens(p domain.Product) error {
	if strings.Contains(p.ID, action.IDSeparator) {
		return fmt.Errorf("id contains %q", action.IDSeparator)
	}
	acts := []action.Action{action.ViewProduct(p.ID), action.AddToCart(p.ID)}
	for _, v := range p.Variants {
		acts = append(acts, action.ChooseVariant(p.ID, v), action.RemoveFromCart(domain.ItemKey(p.ID, v)))
	}
	if !p.HasVariants() {
		acts = append(acts, action.RemoveFromCart(domain.ItemKey(p.ID, "")))
	}
	for _, a := range acts {
		if err := a.Check(); err != nil {
			return err
		}
	}
	return nil
}

// Load tries each source in order and returns the first catalog that loads.
// It fails with domain.ErrCatalogUnavailable when every source fails.
func Load(ctx context.Context, sources ...Source) (*Store, error) {
	var lastErr error
	for _, src := range sources {
		products, err := src.Fetch(ctx)
		if err == nil {
			var store *Store
			store, err = New(products)
			if err == nil {
				slog.Info("Catalog loaded", "source", src.Name(), "products", len(products))
				return store, nil
			}
		}
		slog.Warn("Catalog source failed", "source", src.Name(), "error", err)
		lastErr = err
	}
	if lastErr == nil {
		return nil, fmt.Errorf("%w: no source configured", domain.ErrCatalogUnavailable)
	}
	return nil, fmt.Errorf("%w: %v", domain.ErrCatalogUnavailable, lastErr)
}

// Products returns the products in catalog order.
func (s *Store) Products() []domain.Product {
	out := make([]domain.Product, len(s.products))
	copy(out, s.products)
	return out
}

// ByID looks up a product.
func (s *Store) ByID(id string) (domain.Product, error) {
	i, ok := s.index[id]
	if !ok {
		return domain.Product{}, fmt.Errorf("product %q: %w", id, domain.ErrNotFound)
	}
	return s.products[i], nil
}

// Variants returns the variants offered for a product.
func (s *Store) Variants(id string) ([]string, error) {
	p, err := s.ByID(id)
	if err != nil {
		return nil, err
	}
	return append([]string(nil), p.Variants...), nil
}

// Len returns the number of products.
func (s *Store) Len() int {
	return len(s.products)
}
