package domain

import "time"

const (
	PaymentCash   = "Cash"
	PaymentCard   = "Card"
	PaymentOnline = "Online"
	PaymentCredit = "Credit"
)

const (
	StatusPaid    = "Paid"
	StatusPending = "Pending"
)

const (
	WalkInCustomer  = "Walk-in Customer"
	ManualCategory  = "Manual"
	DefaultCategory = "General"
	DefaultMinStock = 5
)

// MaxLogoBytes bounds the encoded logo payload stored on the shop profile.
const MaxLogoBytes = 500 * 1024

type Product struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	Category   string `json:"category"`
	PriceCents int64  `json:"price_cents"`
	CostCents  int64  `json:"cost_cents"`
	Stock      int    `json:"stock"`
	MinStock   int    `json:"min_stock"`
}

func (p Product) LowStock() bool {
	return p.Stock <= p.MinStock
}

type ProductCreateRequest struct {
	Name       string `json:"name" validate:"required,max=200"`
	Category   string `json:"category" validate:"max=100"`
	PriceCents int64  `json:"price_cents" validate:"gte=0"`
	CostCents  int64  `json:"cost_cents" validate:"gte=0"`
	Stock      int    `json:"stock"`
	MinStock   *int   `json:"min_stock,omitempty" validate:"omitempty,gte=0"`
}

type ProductUpdateRequest struct {
	Name       *string `json:"name,omitempty" validate:"omitempty,max=200"`
	Category   *string `json:"category,omitempty" validate:"omitempty,max=100"`
	PriceCents *int64  `json:"price_cents,omitempty" validate:"omitempty,gte=0"`
	CostCents  *int64  `json:"cost_cents,omitempty" validate:"omitempty,gte=0"`
	Stock      *int    `json:"stock,omitempty"`
	MinStock   *int    `json:"min_stock,omitempty" validate:"omitempty,gte=0"`
}

// SaleLine is a point-in-time snapshot of a product on a sale. Lines without
// a ProductID were typed in by hand and carry no stock effect.
type SaleLine struct {
	ProductID      string `json:"product_id,omitempty"`
	Name           string `json:"name"`
	Category       string `json:"category"`
	UnitPriceCents int64  `json:"unit_price_cents"`
	UnitCostCents  int64  `json:"unit_cost_cents"`
	Qty            int    `json:"qty"`
}

func (l SaleLine) Manual() bool {
	return l.ProductID == ""
}

func (l SaleLine) TotalCents() int64 {
	return l.UnitPriceCents * int64(l.Qty)
}

func (l SaleLine) CostTotalCents() int64 {
	return l.UnitCostCents * int64(l.Qty)
}

type Sale struct {
	ID              string     `json:"id"`
	CreatedAt       time.Time  `json:"created_at"`
	CustomerName    string     `json:"customer_name"`
	CustomerContact string     `json:"customer_contact,omitempty"`
	Items           []SaleLine `json:"items"`
	SubtotalCents   int64      `json:"subtotal_cents"`
	DiscountCents   int64      `json:"discount_cents"`
	TotalCents      int64      `json:"total_cents"`
	PaidCents       int64      `json:"paid_cents"`
	ChangeCents     int64      `json:"change_cents"`
	PaymentMethod   string     `json:"payment_method"`
	PaymentStatus   string     `json:"payment_status"`
	WasCredit       bool       `json:"was_credit"`
	SettledAt       *time.Time `json:"settled_at,omitempty"`
}

func (s Sale) Pending() bool {
	return s.PaymentStatus == StatusPending
}

func (s Sale) CostCents() int64 {
	total := int64(0)
	for _, item := range s.Items {
		total += item.CostTotalCents()
	}
	return total
}

type CheckoutLine struct {
	ProductID      string  `json:"product_id,omitempty"`
	Name           string  `json:"name,omitempty" validate:"max=200"`
	UnitPriceCents *int64  `json:"unit_price_cents,omitempty" validate:"omitempty,gte=0"`
	UnitCostCents  *int64  `json:"unit_cost_cents,omitempty" validate:"omitempty,gte=0"`
	Qty            int     `json:"qty" validate:"gte=1"`
	Category       *string `json:"category,omitempty"`
}

type CheckoutRequest struct {
	CustomerName    string         `json:"customer_name" validate:"max=200"`
	CustomerContact string         `json:"customer_contact" validate:"max=100"`
	Items           []CheckoutLine `json:"items" validate:"required,min=1,dive"`
	DiscountCents   int64          `json:"discount_cents" validate:"gte=0"`
	PaymentMethod   string         `json:"payment_method" validate:"required,oneof=Cash Card Online Credit"`
	PaidCents       int64          `json:"paid_cents" validate:"gte=0"`
}

type PurchaseLine struct {
	ProductID     string `json:"product_id"`
	ProductName   string `json:"product_name"`
	Qty           int    `json:"qty"`
	UnitCostCents int64  `json:"unit_cost_cents"`
	TotalCents    int64  `json:"total_cents"`
}

type Purchase struct {
	ID         string         `json:"id"`
	CreatedAt  time.Time      `json:"created_at"`
	Supplier   string         `json:"supplier"`
	Items      []PurchaseLine `json:"items"`
	TotalCents int64          `json:"total_cents"`
}

type PurchaseLineRequest struct {
	ProductID     string `json:"product_id" validate:"required"`
	Qty           int    `json:"qty" validate:"gte=1"`
	UnitCostCents int64  `json:"unit_cost_cents" validate:"gte=0"`
}

type PurchaseRequest struct {
	Supplier string                `json:"supplier" validate:"required,max=200"`
	Items    []PurchaseLineRequest `json:"items" validate:"required,min=1,dive"`
}

// StockAdjustment moves a product's stock by Delta and, when UnitCostCents is
// set, overwrites its cost basis.
type StockAdjustment struct {
	ProductID     string `json:"product_id"`
	Delta         int    `json:"delta"`
	UnitCostCents *int64 `json:"unit_cost_cents,omitempty"`
}

type ShopProfile struct {
	Name       string `json:"name" validate:"required,max=200"`
	Address    string `json:"address" validate:"max=500"`
	Phone      string `json:"phone" validate:"max=50"`
	Email      string `json:"email" validate:"omitempty,email"`
	Website    string `json:"website,omitempty" validate:"omitempty,max=200"`
	FooterNote string `json:"footer_note" validate:"max=500"`
	Logo       string `json:"logo,omitempty"`
}

func DefaultShopProfile() ShopProfile {
	return ShopProfile{
		Name:       "AR PRINTERS",
		Address:    "Mukkarawewa, Horowpothana",
		Phone:      "0778824235",
		Email:      "arprintersmk@gmail.com",
		FooterNote: "Thank you for your business!",
	}
}

// SeedProducts is the catalogue a fresh store starts with.
func SeedProducts() []Product {
	return []Product{
		{ID: "1", Name: "Business Cards (100pcs)", Category: "Printing", PriceCents: 1500, CostCents: 500, Stock: 50, MinStock: 10},
		{ID: "2", Name: "A4 Glossy Paper", Category: "Materials", PriceCents: 50, CostCents: 20, Stock: 500, MinStock: 100},
		{ID: "3", Name: "Banner Printing (per sqft)", Category: "Printing", PriceCents: 250, CostCents: 80, Stock: 1000, MinStock: 200},
		{ID: "4", Name: "T-Shirt Sublimation", Category: "Merchandise", PriceCents: 2500, CostCents: 800, Stock: 20, MinStock: 5},
		{ID: "5", Name: "Mug Printing", Category: "Merchandise", PriceCents: 1000, CostCents: 350, Stock: 35, MinStock: 10},
		{ID: "6", Name: "Spiral Binding", Category: "Services", PriceCents: 300, CostCents: 50, Stock: 200, MinStock: 50},
	}
}

type CustomerBalance struct {
	CustomerName     string    `json:"customer_name"`
	CustomerContact  string    `json:"customer_contact"`
	BilledCents      int64     `json:"billed_cents"`
	PaidCents        int64     `json:"paid_cents"`
	OutstandingCents int64     `json:"outstanding_cents"`
	SaleCount        int       `json:"sale_count"`
	LastSaleAt       time.Time `json:"last_sale_at"`
}

type DateRange struct {
	From string `json:"from"`
	To   string `json:"to"`
}

type SalesReport struct {
	Range            DateRange `json:"range"`
	RevenueCents     int64     `json:"revenue_cents"`
	InvoiceCount     int       `json:"invoice_count"`
	CashCents        int64     `json:"cash_cents"`
	CardCents        int64     `json:"card_cents"`
	OnlineCents      int64     `json:"online_cents"`
	CreditCents      int64     `json:"credit_cents"`
	OutstandingCents int64     `json:"outstanding_cents"`
	Sales            []Sale    `json:"sales"`
}

type PurchasesReport struct {
	Range         DateRange  `json:"range"`
	ExpensesCents int64      `json:"expenses_cents"`
	OrderCount    int        `json:"order_count"`
	Purchases     []Purchase `json:"purchases"`
}

type ProfitReport struct {
	Range        DateRange `json:"range"`
	RevenueCents int64     `json:"revenue_cents"`
	COGSCents    int64     `json:"cogs_cents"`
	ProfitCents  int64     `json:"profit_cents"`
	MarginPct    float64   `json:"margin_pct"`
}

type InventoryValuation struct {
	RetailValueCents int64     `json:"retail_value_cents"`
	CostValueCents   int64     `json:"cost_value_cents"`
	ProductCount     int       `json:"product_count"`
	LowStock         []Product `json:"low_stock"`
}

type DailyTotal struct {
	Date        string `json:"date"`
	AmountCents int64  `json:"amount_cents"`
}

type Dashboard struct {
	RevenueCents  int64        `json:"revenue_cents"`
	OrderCount    int          `json:"order_count"`
	SalesToday    int          `json:"sales_today"`
	LowStockCount int          `json:"low_stock_count"`
	ProfitCents   int64        `json:"profit_cents"`
	LastSevenDays []DailyTotal `json:"last_seven_days"`
	LowStock      []Product    `json:"low_stock"`
}

type Receipt struct {
	SaleID       string `json:"sale_id"`
	EscposBase64 string `json:"escpos_base64"`
	PreviewText  string `json:"preview_text"`
	FileName     string `json:"file_name"`
}

type LoginRequest struct {
	Passcode string `json:"passcode" validate:"required,max=64"`
}

type LoginResponse struct {
	AccessToken string `json:"access_token"`
	ExpiresAt   string `json:"expires_at"`
}

type AdvisorQuestion struct {
	Question string `json:"question" validate:"required,max=2000"`
}

type MarketingRequest struct {
	ProductName string `json:"product_name" validate:"required,max=200"`
}

type AdvisorAnswer struct {
	Answer string `json:"answer"`
	Cached bool   `json:"cached"`
}
