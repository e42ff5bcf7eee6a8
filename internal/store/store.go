package store

import (
	"context"
	"errors"
	"fmt"

	"printpos/internal/domain"
)

var (
	ErrNotFound           = errors.New("not found")
	ErrConflict           = errors.New("record already exists")
	ErrInvalidTransaction = errors.New("invalid transaction")
)

type Collection string

const (
	Products  Collection = "products"
	Sales     Collection = "sales"
	Purchases Collection = "purchases"
	Profile   Collection = "profile"
)

type Op string

const (
	OpInsert Op = "insert"
	OpUpsert Op = "upsert"
	OpAdjust Op = "adjust"
)

// Write is one entry of an atomic Commit. Exactly one payload is set and it
// must match Op: inserts and upserts carry a record, adjusts carry a stock
// adjustment against an existing product.
type Write struct {
	Op         Op
	Product    *domain.Product
	Sale       *domain.Sale
	Purchase   *domain.Purchase
	Profile    *domain.ShopProfile
	Adjustment *domain.StockAdjustment
}

func InsertSale(sale domain.Sale) Write {
	return Write{Op: OpInsert, Sale: &sale}
}

func InsertPurchase(purchase domain.Purchase) Write {
	return Write{Op: OpInsert, Purchase: &purchase}
}

func InsertProduct(product domain.Product) Write {
	return Write{Op: OpInsert, Product: &product}
}

func UpsertProduct(product domain.Product) Write {
	return Write{Op: OpUpsert, Product: &product}
}

func UpsertSale(sale domain.Sale) Write {
	return Write{Op: OpUpsert, Sale: &sale}
}

func UpsertProfile(profile domain.ShopProfile) Write {
	return Write{Op: OpUpsert, Profile: &profile}
}

func AdjustStock(adj domain.StockAdjustment) Write {
	return Write{Op: OpAdjust, Adjustment: &adj}
}

func (w Write) Collection() Collection {
	switch {
	case w.Product != nil, w.Adjustment != nil:
		return Products
	case w.Sale != nil:
		return Sales
	case w.Purchase != nil:
		return Purchases
	case w.Profile != nil:
		return Profile
	}
	return ""
}

// Validate rejects malformed writes before a store touches any state.
func (w Write) Validate() error {
	payloads := 0
	for _, set := range []bool{w.Product != nil, w.Sale != nil, w.Purchase != nil, w.Profile != nil, w.Adjustment != nil} {
		if set {
			payloads++
		}
	}
	if payloads != 1 {
		return fmt.Errorf("%w: write must carry exactly one payload", ErrInvalidTransaction)
	}

	switch w.Op {
	case OpInsert, OpUpsert:
		if w.Adjustment != nil {
			return fmt.Errorf("%w: %s cannot carry a stock adjustment", ErrInvalidTransaction, w.Op)
		}
		if w.Op == OpInsert && w.Profile != nil {
			return fmt.Errorf("%w: profile is a singleton, use upsert", ErrInvalidTransaction)
		}
		if id := w.recordID(); w.Profile == nil && id == "" {
			return fmt.Errorf("%w: %s record without id", ErrInvalidTransaction, w.Collection())
		}
	case OpAdjust:
		if w.Adjustment == nil || w.Adjustment.ProductID == "" {
			return fmt.Errorf("%w: adjust requires a product id", ErrInvalidTransaction)
		}
	default:
		return fmt.Errorf("%w: unknown op %q", ErrInvalidTransaction, w.Op)
	}
	return nil
}

func (w Write) recordID() string {
	switch {
	case w.Product != nil:
		return w.Product.ID
	case w.Sale != nil:
		return w.Sale.ID
	case w.Purchase != nil:
		return w.Purchase.ID
	}
	return ""
}

// Ledger is the persistent home of the four collections. Implementations are
// constructed explicitly and released with Close.
type Ledger interface {
	ListProducts(ctx context.Context) ([]domain.Product, error)
	GetProduct(ctx context.Context, id string) (*domain.Product, error)
	PutProduct(ctx context.Context, product domain.Product) error

	ListSales(ctx context.Context) ([]domain.Sale, error)
	GetSale(ctx context.Context, id string) (*domain.Sale, error)
	PutSale(ctx context.Context, sale domain.Sale) error

	ListPurchases(ctx context.Context) ([]domain.Purchase, error)
	GetPurchase(ctx context.Context, id string) (*domain.Purchase, error)
	PutPurchase(ctx context.Context, purchase domain.Purchase) error

	GetProfile(ctx context.Context) (*domain.ShopProfile, error)
	PutProfile(ctx context.Context, profile domain.ShopProfile) error

	// Commit applies every write or none of them.
	Commit(ctx context.Context, writes []Write) error

	Close() error
}
