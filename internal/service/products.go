package service

import (
	"context"
	"strings"

	"printpos/internal/domain"
	"printpos/internal/store"
	"printpos/internal/xid"
)

func (s *Service) ListProducts(ctx context.Context) ([]domain.Product, error) {
	return s.ledger.ListProducts(ctx)
}

func (s *Service) GetProduct(ctx context.Context, id string) (domain.Product, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return domain.Product{}, store.ErrInvalidTransaction
	}
	product, err := s.ledger.GetProduct(ctx, id)
	if err != nil {
		return domain.Product{}, err
	}
	return *product, nil
}

func (s *Service) CreateProduct(ctx context.Context, req domain.ProductCreateRequest) (domain.Product, error) {
	req.Name = strings.TrimSpace(req.Name)
	req.Category = strings.TrimSpace(req.Category)

	if req.Name == "" {
		return domain.Product{}, store.ErrInvalidTransaction
	}
	if req.PriceCents < 0 || req.CostCents < 0 {
		return domain.Product{}, store.ErrInvalidTransaction
	}

	minStock := domain.DefaultMinStock
	if req.MinStock != nil {
		if *req.MinStock < 0 {
			return domain.Product{}, store.ErrInvalidTransaction
		}
		minStock = *req.MinStock
	}

	product := domain.Product{
		ID:         xid.New("prd"),
		Name:       req.Name,
		Category:   defaultString(req.Category, domain.DefaultCategory),
		PriceCents: req.PriceCents,
		CostCents:  req.CostCents,
		Stock:      req.Stock,
		MinStock:   minStock,
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.ledger.Commit(ctx, []store.Write{store.InsertProduct(product)}); err != nil {
		return domain.Product{}, err
	}

	s.logger.Info("product created", "product_id", product.ID, "name", product.Name, "stock", product.Stock)
	return product, nil
}

// UpdateProduct merges the non-nil fields of req into the stored product.
// The id never changes.
func (s *Service) UpdateProduct(ctx context.Context, id string, req domain.ProductUpdateRequest) (domain.Product, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return domain.Product{}, store.ErrInvalidTransaction
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	existing, err := s.ledger.GetProduct(ctx, id)
	if err != nil {
		return domain.Product{}, err
	}

	updated := *existing
	if req.Name != nil {
		name := strings.TrimSpace(*req.Name)
		if name == "" {
			return domain.Product{}, store.ErrInvalidTransaction
		}
		updated.Name = name
	}
	if req.Category != nil {
		updated.Category = defaultString(strings.TrimSpace(*req.Category), domain.DefaultCategory)
	}
	if req.PriceCents != nil {
		if *req.PriceCents < 0 {
			return domain.Product{}, store.ErrInvalidTransaction
		}
		updated.PriceCents = *req.PriceCents
	}
	if req.CostCents != nil {
		if *req.CostCents < 0 {
			return domain.Product{}, store.ErrInvalidTransaction
		}
		updated.CostCents = *req.CostCents
	}
	if req.Stock != nil {
		updated.Stock = *req.Stock
	}
	if req.MinStock != nil {
		if *req.MinStock < 0 {
			return domain.Product{}, store.ErrInvalidTransaction
		}
		updated.MinStock = *req.MinStock
	}

	if err := s.ledger.PutProduct(ctx, updated); err != nil {
		return domain.Product{}, err
	}
	return updated, nil
}
