package service

import (
	"printpos/internal/domain"
	"printpos/internal/store"
)

// SaleEffect returns the stock decrements a sale causes. Manual lines have no
// product behind them and are skipped. Stock has no floor.
func SaleEffect(sale domain.Sale) []store.Write {
	writes := make([]store.Write, 0, len(sale.Items))
	for _, item := range sale.Items {
		if item.Manual() {
			continue
		}
		writes = append(writes, store.AdjustStock(domain.StockAdjustment{
			ProductID: item.ProductID,
			Delta:     -item.Qty,
		}))
	}
	return writes
}

// PurchaseEffect returns the stock increments a purchase causes. Each line
// also overwrites the product's cost basis, so the last line wins when a
// product appears twice.
func PurchaseEffect(purchase domain.Purchase) []store.Write {
	writes := make([]store.Write, 0, len(purchase.Items))
	for _, item := range purchase.Items {
		cost := item.UnitCostCents
		writes = append(writes, store.AdjustStock(domain.StockAdjustment{
			ProductID:     item.ProductID,
			Delta:         item.Qty,
			UnitCostCents: &cost,
		}))
	}
	return writes
}
