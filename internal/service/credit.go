package service

import (
	"context"
	"slices"
	"strings"

	"printpos/internal/domain"
	"printpos/internal/store"
)

type customerKey struct {
	name    string
	contact string
}

// ListOutstanding folds every credit-originated sale into one balance per
// (name, contact). Settled accounts are dropped unless includeSettled is set.
func ListOutstanding(sales []domain.Sale, includeSettled bool) []domain.CustomerBalance {
	byCustomer := make(map[customerKey]*domain.CustomerBalance)
	for _, sale := range sales {
		if !sale.WasCredit {
			continue
		}

		key := customerKey{name: sale.CustomerName, contact: sale.CustomerContact}
		balance, ok := byCustomer[key]
		if !ok {
			balance = &domain.CustomerBalance{CustomerName: key.name, CustomerContact: key.contact}
			byCustomer[key] = balance
		}

		balance.BilledCents += sale.TotalCents
		if !sale.Pending() {
			balance.PaidCents += sale.TotalCents
		}
		balance.SaleCount++
		if sale.CreatedAt.After(balance.LastSaleAt) {
			balance.LastSaleAt = sale.CreatedAt
		}
	}

	balances := make([]domain.CustomerBalance, 0, len(byCustomer))
	for _, balance := range byCustomer {
		balance.OutstandingCents = balance.BilledCents - balance.PaidCents
		if balance.OutstandingCents <= 0 && !includeSettled {
			continue
		}
		balances = append(balances, *balance)
	}

	slices.SortFunc(balances, func(a, b domain.CustomerBalance) int {
		switch {
		case a.OutstandingCents != b.OutstandingCents:
			if a.OutstandingCents > b.OutstandingCents {
				return -1
			}
			return 1
		case !a.LastSaleAt.Equal(b.LastSaleAt):
			return b.LastSaleAt.Compare(a.LastSaleAt)
		case a.CustomerName != b.CustomerName:
			return strings.Compare(a.CustomerName, b.CustomerName)
		default:
			return strings.Compare(a.CustomerContact, b.CustomerContact)
		}
	})
	return balances
}

// SearchBalances keeps balances whose name contains term (case-insensitive)
// or whose contact contains it verbatim.
func SearchBalances(balances []domain.CustomerBalance, term string) []domain.CustomerBalance {
	term = strings.TrimSpace(term)
	if term == "" {
		return balances
	}

	lowered := strings.ToLower(term)
	out := make([]domain.CustomerBalance, 0, len(balances))
	for _, balance := range balances {
		if strings.Contains(strings.ToLower(balance.CustomerName), lowered) || strings.Contains(balance.CustomerContact, term) {
			out = append(out, balance)
		}
	}
	return out
}

func (s *Service) ListOutstanding(ctx context.Context, includeSettled bool) ([]domain.CustomerBalance, error) {
	sales, err := s.ledger.ListSales(ctx)
	if err != nil {
		return nil, err
	}
	return ListOutstanding(sales, includeSettled), nil
}

// Settle marks a pending credit sale as paid in cash. WasCredit stays set so
// the sale keeps counting toward the customer's billed total.
func (s *Service) Settle(ctx context.Context, saleID string) (domain.Sale, error) {
	saleID = strings.TrimSpace(saleID)
	if saleID == "" {
		return domain.Sale{}, store.ErrInvalidTransaction
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	sale, err := s.ledger.GetSale(ctx, saleID)
	if err != nil {
		return domain.Sale{}, err
	}
	if !sale.Pending() {
		return domain.Sale{}, ErrNotPending
	}

	settledAt := s.clock()
	updated := *sale
	updated.PaymentStatus = domain.StatusPaid
	updated.PaymentMethod = domain.PaymentCash
	updated.PaidCents = updated.TotalCents
	updated.SettledAt = &settledAt

	if err := s.ledger.PutSale(ctx, updated); err != nil {
		return domain.Sale{}, err
	}

	s.logger.Info("credit settled",
		"sale_id", updated.ID,
		"customer", updated.CustomerName,
		"total_cents", updated.TotalCents,
	)
	return updated, nil
}

// CustomerHistory lists one customer's credit-originated sales, newest first.
func (s *Service) CustomerHistory(ctx context.Context, name string, contact string) ([]domain.Sale, error) {
	name = strings.TrimSpace(name)
	contact = strings.TrimSpace(contact)
	if name == "" {
		return nil, store.ErrInvalidTransaction
	}

	sales, err := s.ledger.ListSales(ctx)
	if err != nil {
		return nil, err
	}

	history := make([]domain.Sale, 0, 8)
	for _, sale := range sales {
		if sale.WasCredit && sale.CustomerName == name && sale.CustomerContact == contact {
			history = append(history, sale)
		}
	}
	slices.SortFunc(history, func(a, b domain.Sale) int {
		if c := b.CreatedAt.Compare(a.CreatedAt); c != 0 {
			return c
		}
		return strings.Compare(b.ID, a.ID)
	})
	return history, nil
}
