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

// Checkout validates a cart, prices it and commits the sale together with its
// stock decrements. Nothing is written when validation fails.
func (s *Service) Checkout(ctx context.Context, req domain.CheckoutRequest) (domain.Sale, error) {
	req.CustomerName = strings.TrimSpace(req.CustomerName)
	req.CustomerContact = strings.TrimSpace(req.CustomerContact)
	req.PaymentMethod = strings.TrimSpace(req.PaymentMethod)

	if len(req.Items) == 0 {
		return domain.Sale{}, store.ErrInvalidTransaction
	}
	if !isSupportedPaymentMethod(req.PaymentMethod) {
		return domain.Sale{}, store.ErrInvalidTransaction
	}
	if req.DiscountCents < 0 || req.PaidCents < 0 {
		return domain.Sale{}, store.ErrInvalidTransaction
	}

	credit := req.PaymentMethod == domain.PaymentCredit
	if credit && (req.CustomerName == "" || req.CustomerContact == "") {
		return domain.Sale{}, ErrMissingCustomerIdentity
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	lines := make([]domain.SaleLine, 0, len(req.Items))
	subtotal := int64(0)
	for i, item := range req.Items {
		line, err := s.buildSaleLine(ctx, item)
		if err != nil {
			return domain.Sale{}, fmt.Errorf("line %d: %w", i, err)
		}
		subtotal += line.TotalCents()
		lines = append(lines, line)
	}

	sale := domain.Sale{
		ID:              xid.New("sale"),
		CreatedAt:       s.clock(),
		CustomerName:    defaultString(req.CustomerName, domain.WalkInCustomer),
		CustomerContact: req.CustomerContact,
		Items:           lines,
		SubtotalCents:   subtotal,
		DiscountCents:   req.DiscountCents,
		TotalCents:      subtotal - req.DiscountCents,
		PaymentMethod:   req.PaymentMethod,
		PaymentStatus:   domain.StatusPaid,
		WasCredit:       credit,
	}

	switch {
	case credit:
		sale.PaymentStatus = domain.StatusPending
	case req.PaidCents > 0:
		sale.PaidCents = req.PaidCents
		sale.ChangeCents = req.PaidCents - sale.TotalCents
	default:
		sale.PaidCents = sale.TotalCents
	}

	writes := append([]store.Write{store.InsertSale(sale)}, SaleEffect(sale)...)
	if err := s.ledger.Commit(ctx, writes); err != nil {
		return domain.Sale{}, err
	}

	s.logger.Info("sale recorded",
		"sale_id", sale.ID,
		"total_cents", sale.TotalCents,
		"payment", sale.PaymentMethod,
		"lines", len(sale.Items),
	)
	return sale, nil
}

// buildSaleLine snapshots one cart line. Product lines fall back to the
// catalogue for any field the cart left out. Manual lines must carry their own
// name and price.
func (s *Service) buildSaleLine(ctx context.Context, item domain.CheckoutLine) (domain.SaleLine, error) {
	if item.Qty < 1 {
		return domain.SaleLine{}, store.ErrInvalidTransaction
	}
	if (item.UnitPriceCents != nil && *item.UnitPriceCents < 0) || (item.UnitCostCents != nil && *item.UnitCostCents < 0) {
		return domain.SaleLine{}, store.ErrInvalidTransaction
	}

	line := domain.SaleLine{
		ProductID: strings.TrimSpace(item.ProductID),
		Name:      strings.TrimSpace(item.Name),
		Qty:       item.Qty,
	}

	if line.ProductID == "" {
		if line.Name == "" || item.UnitPriceCents == nil {
			return domain.SaleLine{}, store.ErrInvalidTransaction
		}
		line.Category = domain.ManualCategory
		line.UnitPriceCents = *item.UnitPriceCents
		return line, nil
	}

	complete := line.Name != "" && item.UnitPriceCents != nil && item.UnitCostCents != nil && item.Category != nil
	if complete {
		line.UnitPriceCents = *item.UnitPriceCents
		line.UnitCostCents = *item.UnitCostCents
		line.Category = strings.TrimSpace(*item.Category)
		return line, nil
	}

	product, err := s.ledger.GetProduct(ctx, line.ProductID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return domain.SaleLine{}, fmt.Errorf("product %s: %w", line.ProductID, store.ErrNotFound)
		}
		return domain.SaleLine{}, err
	}

	line.Name = defaultString(line.Name, product.Name)
	line.Category = product.Category
	if item.Category != nil && strings.TrimSpace(*item.Category) != "" {
		line.Category = strings.TrimSpace(*item.Category)
	}
	line.UnitPriceCents = product.PriceCents
	if item.UnitPriceCents != nil {
		line.UnitPriceCents = *item.UnitPriceCents
	}
	line.UnitCostCents = product.CostCents
	if item.UnitCostCents != nil {
		line.UnitCostCents = *item.UnitCostCents
	}
	return line, nil
}

func (s *Service) ListSales(ctx context.Context) ([]domain.Sale, error) {
	return s.ledger.ListSales(ctx)
}

func (s *Service) GetSale(ctx context.Context, id string) (domain.Sale, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return domain.Sale{}, store.ErrInvalidTransaction
	}
	sale, err := s.ledger.GetSale(ctx, id)
	if err != nil {
		return domain.Sale{}, err
	}
	return *sale, nil
}
