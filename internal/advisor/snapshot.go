package advisor

import (
	"fmt"
	"strings"

	"printpos/internal/domain"
	"printpos/internal/service"
)

const recentSalesInSnapshot = 10

// Snapshot is the compact business summary sent along with every question.
type Snapshot struct {
	ProductCount int
	LowStock     []string
	RevenueCents int64
	SalesCount   int
	RecentSales  []string
}

// BuildSnapshot summarizes products and sales. sales is expected in creation
// order; the last entries become the recent sample.
func BuildSnapshot(products []domain.Product, sales []domain.Sale) Snapshot {
	snap := Snapshot{ProductCount: len(products), SalesCount: len(sales)}
	for _, p := range products {
		if p.LowStock() {
			snap.LowStock = append(snap.LowStock, p.Name)
		}
	}
	for _, sale := range sales {
		snap.RevenueCents += sale.TotalCents
	}

	start := max(len(sales)-recentSalesInSnapshot, 0)
	for _, sale := range sales[start:] {
		snap.RecentSales = append(snap.RecentSales, fmt.Sprintf("%s: Rs. %s (%d items)",
			sale.CreatedAt.UTC().Format("2006-01-02"),
			service.FormatAmount(sale.TotalCents),
			len(sale.Items),
		))
	}
	return snap
}

func (s Snapshot) String() string {
	lowStock := "None"
	if len(s.LowStock) > 0 {
		lowStock = strings.Join(s.LowStock, ", ")
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Total Products: %d\n", s.ProductCount)
	fmt.Fprintf(&b, "Low Stock Items: %s\n", lowStock)
	fmt.Fprintf(&b, "Total Revenue: Rs. %s\n", service.FormatAmount(s.RevenueCents))
	fmt.Fprintf(&b, "Total Sales Count: %d\n", s.SalesCount)
	b.WriteString("Recent Transactions Sample:\n")
	b.WriteString(strings.Join(s.RecentSales, "\n"))
	return b.String()
}
