package memory

import (
	"context"
	"fmt"
	"slices"
	"sync"

	"printpos/internal/domain"
	"printpos/internal/store"
)

// Store keeps the ledger in process memory. It is safe for concurrent use;
// Commit holds the write lock for the whole batch.
type Store struct {
	mu        sync.RWMutex
	products  map[string]domain.Product
	sales     map[string]domain.Sale
	purchases map[string]domain.Purchase
	profile   *domain.ShopProfile
}

// New returns an empty store with no profile.
func New() *Store {
	return &Store{
		products:  make(map[string]domain.Product),
		sales:     make(map[string]domain.Sale),
		purchases: make(map[string]domain.Purchase),
	}
}

// NewSeeded returns a store holding the default catalogue and shop profile.
func NewSeeded() *Store {
	s := New()
	for _, p := range domain.SeedProducts() {
		s.products[p.ID] = p
	}
	profile := domain.DefaultShopProfile()
	s.profile = &profile
	return s
}

func (s *Store) Close() error {
	return nil
}

func (s *Store) ListProducts(_ context.Context) ([]domain.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	products := make([]domain.Product, 0, len(s.products))
	for _, p := range s.products {
		products = append(products, p)
	}

	slices.SortFunc(products, func(a, b domain.Product) int {
		if a.Category == b.Category {
			if a.Name == b.Name {
				return cmpString(a.ID, b.ID)
			}
			return cmpString(a.Name, b.Name)
		}
		return cmpString(a.Category, b.Category)
	})

	return products, nil
}

func (s *Store) GetProduct(_ context.Context, id string) (*domain.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	product, exists := s.products[id]
	if !exists {
		return nil, store.ErrNotFound
	}
	return &product, nil
}

func (s *Store) PutProduct(ctx context.Context, product domain.Product) error {
	return s.Commit(ctx, []store.Write{store.UpsertProduct(product)})
}

func (s *Store) ListSales(_ context.Context) ([]domain.Sale, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sales := make([]domain.Sale, 0, len(s.sales))
	for _, sale := range s.sales {
		sales = append(sales, cloneSale(sale))
	}
	slices.SortFunc(sales, func(a, b domain.Sale) int {
		return cmpString(a.ID, b.ID)
	})
	return sales, nil
}

func (s *Store) GetSale(_ context.Context, id string) (*domain.Sale, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sale, exists := s.sales[id]
	if !exists {
		return nil, store.ErrNotFound
	}
	copySale := cloneSale(sale)
	return &copySale, nil
}

func (s *Store) PutSale(ctx context.Context, sale domain.Sale) error {
	return s.Commit(ctx, []store.Write{store.UpsertSale(sale)})
}

func (s *Store) ListPurchases(_ context.Context) ([]domain.Purchase, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	purchases := make([]domain.Purchase, 0, len(s.purchases))
	for _, p := range s.purchases {
		purchases = append(purchases, clonePurchase(p))
	}
	slices.SortFunc(purchases, func(a, b domain.Purchase) int {
		return cmpString(a.ID, b.ID)
	})
	return purchases, nil
}

func (s *Store) GetPurchase(_ context.Context, id string) (*domain.Purchase, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	purchase, exists := s.purchases[id]
	if !exists {
		return nil, store.ErrNotFound
	}
	copyPurchase := clonePurchase(purchase)
	return &copyPurchase, nil
}

func (s *Store) PutPurchase(ctx context.Context, purchase domain.Purchase) error {
	return s.Commit(ctx, []store.Write{{Op: store.OpUpsert, Purchase: &purchase}})
}

func (s *Store) GetProfile(_ context.Context) (*domain.ShopProfile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.profile == nil {
		return nil, store.ErrNotFound
	}
	profile := *s.profile
	return &profile, nil
}

func (s *Store) PutProfile(ctx context.Context, profile domain.ShopProfile) error {
	return s.Commit(ctx, []store.Write{store.UpsertProfile(profile)})
}

// Commit stages every write against an overlay of the current state and only
// swaps the overlay in once the whole batch has been accepted.
func (s *Store) Commit(_ context.Context, writes []store.Write) error {
	if len(writes) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	stage := stagedWrites{
		products:  make(map[string]domain.Product),
		sales:     make(map[string]domain.Sale),
		purchases: make(map[string]domain.Purchase),
	}

	for i, w := range writes {
		if err := w.Validate(); err != nil {
			return fmt.Errorf("write %d: %w", i, err)
		}

		switch w.Op {
		case store.OpInsert:
			if s.exists(stage, w) {
				return fmt.Errorf("write %d: %s %w", i, w.Collection(), store.ErrConflict)
			}
			stage.put(w)
		case store.OpUpsert:
			stage.put(w)
		case store.OpAdjust:
			adj := w.Adjustment
			product, ok := stage.products[adj.ProductID]
			if !ok {
				product, ok = s.products[adj.ProductID]
			}
			if !ok {
				return fmt.Errorf("write %d: product %s: %w", i, adj.ProductID, store.ErrNotFound)
			}
			product.Stock += adj.Delta
			if adj.UnitCostCents != nil {
				product.CostCents = *adj.UnitCostCents
			}
			stage.products[adj.ProductID] = product
		}
	}

	for id, p := range stage.products {
		s.products[id] = p
	}
	for id, sale := range stage.sales {
		s.sales[id] = sale
	}
	for id, p := range stage.purchases {
		s.purchases[id] = p
	}
	if stage.profile != nil {
		s.profile = stage.profile
	}
	return nil
}

type stagedWrites struct {
	products  map[string]domain.Product
	sales     map[string]domain.Sale
	purchases map[string]domain.Purchase
	profile   *domain.ShopProfile
}

func (st *stagedWrites) put(w store.Write) {
	switch {
	case w.Product != nil:
		st.products[w.Product.ID] = *w.Product
	case w.Sale != nil:
		st.sales[w.Sale.ID] = cloneSale(*w.Sale)
	case w.Purchase != nil:
		st.purchases[w.Purchase.ID] = clonePurchase(*w.Purchase)
	case w.Profile != nil:
		profile := *w.Profile
		st.profile = &profile
	}
}

func (s *Store) exists(stage stagedWrites, w store.Write) bool {
	switch {
	case w.Product != nil:
		_, staged := stage.products[w.Product.ID]
		_, stored := s.products[w.Product.ID]
		return staged || stored
	case w.Sale != nil:
		_, staged := stage.sales[w.Sale.ID]
		_, stored := s.sales[w.Sale.ID]
		return staged || stored
	case w.Purchase != nil:
		_, staged := stage.purchases[w.Purchase.ID]
		_, stored := s.purchases[w.Purchase.ID]
		return staged || stored
	}
	return false
}

func cmpString(a string, b string) int {
	if a < b {
		return -1
	}
	if a > b {
		return 1
	}
	return 0
}

func cloneSale(src domain.Sale) domain.Sale {
	out := src
	out.Items = slices.Clone(src.Items)
	if src.SettledAt != nil {
		settled := *src.SettledAt
		out.SettledAt = &settled
	}
	return out
}

func clonePurchase(src domain.Purchase) domain.Purchase {
	out := src
	out.Items = slices.Clone(src.Items)
	return out
}
