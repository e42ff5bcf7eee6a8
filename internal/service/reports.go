package service

import (
	"context"
	"encoding/csv"
	"io"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"

	"printpos/internal/domain"
	"printpos/internal/store"
)

const (
	dateLayout         = "2006-01-02"
	defaultReportDays  = 30
	dashboardTrendDays = 7
)

// ResolveRange normalizes a YYYY-MM-DD pair. A blank end defaults to today and
// a blank start to defaultReportDays before the end.
func ResolveRange(from string, to string, now time.Time) (domain.DateRange, error) {
	from = strings.TrimSpace(from)
	to = strings.TrimSpace(to)

	end := now.UTC()
	if to != "" {
		parsed, err := time.Parse(dateLayout, to)
		if err != nil {
			return domain.DateRange{}, store.ErrInvalidTransaction
		}
		end = parsed
	}

	start := end.AddDate(0, 0, -defaultReportDays)
	if from != "" {
		parsed, err := time.Parse(dateLayout, from)
		if err != nil {
			return domain.DateRange{}, store.ErrInvalidTransaction
		}
		start = parsed
	}

	rng := domain.DateRange{From: start.Format(dateLayout), To: end.Format(dateLayout)}
	if rng.From > rng.To {
		return domain.DateRange{}, store.ErrInvalidTransaction
	}
	return rng, nil
}

func inRange(at time.Time, rng domain.DateRange) bool {
	day := at.UTC().Format(dateLayout)
	return day >= rng.From && day <= rng.To
}

func BuildSalesReport(sales []domain.Sale, rng domain.DateRange) domain.SalesReport {
	report := domain.SalesReport{Range: rng, Sales: make([]domain.Sale, 0, len(sales))}
	for _, sale := range sales {
		if !inRange(sale.CreatedAt, rng) {
			continue
		}
		report.Sales = append(report.Sales, sale)
		report.RevenueCents += sale.TotalCents
		report.InvoiceCount++

		if sale.WasCredit {
			report.CreditCents += sale.TotalCents
			if sale.Pending() {
				report.OutstandingCents += sale.TotalCents
			}
			continue
		}
		switch sale.PaymentMethod {
		case domain.PaymentCash:
			report.CashCents += sale.TotalCents
		case domain.PaymentCard:
			report.CardCents += sale.TotalCents
		case domain.PaymentOnline:
			report.OnlineCents += sale.TotalCents
		}
	}
	return report
}

func BuildPurchasesReport(purchases []domain.Purchase, rng domain.DateRange) domain.PurchasesReport {
	report := domain.PurchasesReport{Range: rng, Purchases: make([]domain.Purchase, 0, len(purchases))}
	for _, purchase := range purchases {
		if !inRange(purchase.CreatedAt, rng) {
			continue
		}
		report.Purchases = append(report.Purchases, purchase)
		report.ExpensesCents += purchase.TotalCents
		report.OrderCount++
	}
	return report
}

func BuildProfitReport(sales []domain.Sale, rng domain.DateRange) domain.ProfitReport {
	report := domain.ProfitReport{Range: rng}
	for _, sale := range sales {
		if !inRange(sale.CreatedAt, rng) {
			continue
		}
		report.RevenueCents += sale.TotalCents
		report.COGSCents += sale.CostCents()
	}
	report.ProfitCents = report.RevenueCents - report.COGSCents
	report.MarginPct = marginPct(report.ProfitCents, report.RevenueCents)
	return report
}

func BuildInventoryValuation(products []domain.Product) domain.InventoryValuation {
	valuation := domain.InventoryValuation{ProductCount: len(products), LowStock: make([]domain.Product, 0, 8)}
	for _, p := range products {
		valuation.RetailValueCents += int64(p.Stock) * p.PriceCents
		valuation.CostValueCents += int64(p.Stock) * p.CostCents
		if p.LowStock() {
			valuation.LowStock = append(valuation.LowStock, p)
		}
	}
	return valuation
}

// BuildDashboard summarizes the whole ledger plus the trailing week of daily
// sales totals, oldest day first.
func BuildDashboard(products []domain.Product, sales []domain.Sale, now time.Time) domain.Dashboard {
	now = now.UTC()
	today := now.Format(dateLayout)

	trend := make([]domain.DailyTotal, dashboardTrendDays)
	index := make(map[string]int, dashboardTrendDays)
	for i := 0; i < dashboardTrendDays; i++ {
		day := now.AddDate(0, 0, i-(dashboardTrendDays-1)).Format(dateLayout)
		trend[i] = domain.DailyTotal{Date: day}
		index[day] = i
	}

	dash := domain.Dashboard{LastSevenDays: trend, LowStock: make([]domain.Product, 0, 8)}
	cost := int64(0)
	for _, sale := range sales {
		dash.RevenueCents += sale.TotalCents
		dash.OrderCount++
		cost += sale.CostCents()

		day := sale.CreatedAt.UTC().Format(dateLayout)
		if day == today {
			dash.SalesToday++
		}
		if i, ok := index[day]; ok {
			trend[i].AmountCents += sale.TotalCents
		}
	}
	dash.ProfitCents = dash.RevenueCents - cost

	for _, p := range products {
		if p.LowStock() {
			dash.LowStock = append(dash.LowStock, p)
		}
	}
	dash.LowStockCount = len(dash.LowStock)
	return dash
}

func marginPct(profit int64, revenue int64) float64 {
	if revenue == 0 {
		return 0
	}
	return math.Round(float64(profit)*10000/float64(revenue)) / 100
}

func (s *Service) SalesReport(ctx context.Context, from string, to string) (domain.SalesReport, error) {
	rng, err := ResolveRange(from, to, s.clock())
	if err != nil {
		return domain.SalesReport{}, err
	}
	sales, err := s.ledger.ListSales(ctx)
	if err != nil {
		return domain.SalesReport{}, err
	}
	return BuildSalesReport(sales, rng), nil
}

func (s *Service) PurchasesReport(ctx context.Context, from string, to string) (domain.PurchasesReport, error) {
	rng, err := ResolveRange(from, to, s.clock())
	if err != nil {
		return domain.PurchasesReport{}, err
	}
	purchases, err := s.ledger.ListPurchases(ctx)
	if err != nil {
		return domain.PurchasesReport{}, err
	}
	return BuildPurchasesReport(purchases, rng), nil
}

func (s *Service) ProfitReport(ctx context.Context, from string, to string) (domain.ProfitReport, error) {
	rng, err := ResolveRange(from, to, s.clock())
	if err != nil {
		return domain.ProfitReport{}, err
	}
	sales, err := s.ledger.ListSales(ctx)
	if err != nil {
		return domain.ProfitReport{}, err
	}
	return BuildProfitReport(sales, rng), nil
}

func (s *Service) InventoryValuation(ctx context.Context) (domain.InventoryValuation, error) {
	products, err := s.ledger.ListProducts(ctx)
	if err != nil {
		return domain.InventoryValuation{}, err
	}
	return BuildInventoryValuation(products), nil
}

func (s *Service) Dashboard(ctx context.Context) (domain.Dashboard, error) {
	products, err := s.ledger.ListProducts(ctx)
	if err != nil {
		return domain.Dashboard{}, err
	}
	sales, err := s.ledger.ListSales(ctx)
	if err != nil {
		return domain.Dashboard{}, err
	}
	return BuildDashboard(products, sales, s.clock()), nil
}

var salesCSVHeader = []string{"sale_id", "date", "customer", "contact", "items", "payment_method", "payment_status", "was_credit", "subtotal", "discount", "total"}

// WriteSalesCSV writes one row per sale in the report. Amounts are rendered in
// major units with two decimals.
func WriteSalesCSV(w io.Writer, report domain.SalesReport) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(salesCSVHeader); err != nil {
		return errors.Wrap(err, "write csv header")
	}
	for _, sale := range report.Sales {
		record := []string{
			sale.ID,
			sale.CreatedAt.UTC().Format(dateLayout),
			sale.CustomerName,
			sale.CustomerContact,
			strconv.Itoa(len(sale.Items)),
			sale.PaymentMethod,
			sale.PaymentStatus,
			strconv.FormatBool(sale.WasCredit),
			FormatAmount(sale.SubtotalCents),
			FormatAmount(sale.DiscountCents),
			FormatAmount(sale.TotalCents),
		}
		if err := cw.Write(record); err != nil {
			return errors.Wrapf(err, "write csv row %s", sale.ID)
		}
	}
	cw.Flush()
	return errors.Wrap(cw.Error(), "flush csv")
}

// FormatAmount renders cents as a plain decimal, e.g. 1500 -> "15.00".
func FormatAmount(cents int64) string {
	sign := ""
	if cents < 0 {
		sign = "-"
		cents = -cents
	}
	frac := cents % 100
	fracText := strconv.FormatInt(frac, 10)
	if frac < 10 {
		fracText = "0" + fracText
	}
	return sign + strconv.FormatInt(cents/100, 10) + "." + fracText
}
