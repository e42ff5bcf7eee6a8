package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"printpos/internal/domain"
	"printpos/internal/store"
	"printpos/internal/xid"
)

// RecordPurchase books supplier stock in. The purchase and its
// increment-and-reprice effect land in one commit.
func (s *Service) RecordPurchase(ctx context.Context, req domain.PurchaseRequest) (domain.Purchase, error) {
	req.Supplier = strings.TrimSpace(req.Supplier)
	if req.Supplier == "" || len(req.Items) == 0 {
		return domain.Purchase{}, store.ErrInvalidTransaction
	}
	for _, item := range req.Items {
		if strings.TrimSpace(item.ProductID) == "" || item.Qty < 1 || item.UnitCostCents < 0 {
			return domain.Purchase{}, store.ErrInvalidTransaction
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	lines := make([]domain.PurchaseLine, 0, len(req.Items))
	total := int64(0)
	for i, item := range req.Items {
		productID := strings.TrimSpace(item.ProductID)
		product, err := s.ledger.GetProduct(ctx, productID)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return domain.Purchase{}, fmt.Errorf("line %d: product %s: %w", i, productID, store.ErrNotFound)
			}
			return domain.Purchase{}, err
		}

		line := domain.PurchaseLine{
			ProductID:     productID,
			ProductName:   product.Name,
			Qty:           item.Qty,
			UnitCostCents: item.UnitCostCents,
			TotalCents:    int64(item.Qty) * item.UnitCostCents,
		}
		total += line.TotalCents
		lines = append(lines, line)
	}

	purchase := domain.Purchase{
		ID:         xid.New("po"),
		CreatedAt:  s.clock(),
		Supplier:   req.Supplier,
		Items:      lines,
		TotalCents: total,
	}

	writes := append([]store.Write{store.InsertPurchase(purchase)}, PurchaseEffect(purchase)...)
	if err := s.ledger.Commit(ctx, writes); err != nil {
		return domain.Purchase{}, err
	}

	s.logger.Info("purchase recorded",
		"purchase_id", purchase.ID,
		"supplier", purchase.Supplier,
		"total_cents", purchase.TotalCents,
	)
	return purchase, nil
}

func (s *Service) ListPurchases(ctx context.Context) ([]domain.Purchase, error) {
	return s.ledger.ListPurchases(ctx)
}
