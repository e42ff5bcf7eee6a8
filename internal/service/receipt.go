package service

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"html/template"
	"strings"

	"github.com/pkg/errors"

	"printpos/internal/domain"
)

const receiptWidth = 32

// InvoiceNumber is the short serial printed on documents: the last six
// characters of the sale id.
func InvoiceNumber(saleID string) string {
	if len(saleID) <= 6 {
		return saleID
	}
	return saleID[len(saleID)-6:]
}

func money(cents int64) string {
	return "Rs. " + FormatAmount(cents)
}

// BuildReceipt renders a thermal-printer receipt for a sale: a preview text
// and the same lines framed by ESC/POS init and cut commands.
func (s *Service) BuildReceipt(ctx context.Context, saleID string) (domain.Receipt, error) {
	sale, err := s.GetSale(ctx, saleID)
	if err != nil {
		return domain.Receipt{}, err
	}
	profile, err := s.GetProfile(ctx)
	if err != nil {
		return domain.Receipt{}, err
	}

	lines := ReceiptLines(sale, profile)

	escpos := []byte{0x1b, 0x40}
	for _, line := range lines {
		escpos = append(escpos, []byte(line)...)
		escpos = append(escpos, '\n')
	}
	escpos = append(escpos, []byte{0x1d, 0x56, 0x41, 0x10}...)

	return domain.Receipt{
		SaleID:       sale.ID,
		EscposBase64: base64.StdEncoding.EncodeToString(escpos),
		PreviewText:  strings.Join(lines, "\n"),
		FileName:     fmt.Sprintf("receipt-%s.bin", InvoiceNumber(sale.ID)),
	}, nil
}

func ReceiptLines(sale domain.Sale, profile domain.ShopProfile) []string {
	rule := strings.Repeat("=", receiptWidth)
	thin := strings.Repeat("-", receiptWidth)

	lines := []string{profile.Name}
	if profile.Address != "" {
		lines = append(lines, profile.Address)
	}
	if profile.Phone != "" {
		lines = append(lines, "Tel: "+profile.Phone)
	}
	lines = append(lines,
		rule,
		"Invoice #"+InvoiceNumber(sale.ID),
		"Date: "+sale.CreatedAt.UTC().Format("2006-01-02 15:04"),
		"Customer: "+sale.CustomerName,
	)
	if sale.CustomerContact != "" {
		lines = append(lines, "Contact: "+sale.CustomerContact)
	}
	lines = append(lines, thin)

	for _, item := range sale.Items {
		lines = append(lines, fmt.Sprintf("%s x%d", item.Name, item.Qty))
		lines = append(lines, padLeft(money(item.TotalCents()), receiptWidth))
	}

	lines = append(lines,
		thin,
		labelled("Subtotal", money(sale.SubtotalCents)),
		labelled("Discount", money(sale.DiscountCents)),
		labelled("Total", money(sale.TotalCents)),
		labelled("Payment", sale.PaymentMethod),
		labelled("Status", sale.PaymentStatus),
	)
	if sale.ChangeCents != 0 {
		lines = append(lines,
			labelled("Paid", money(sale.PaidCents)),
			labelled("Change", money(sale.ChangeCents)),
		)
	}
	lines = append(lines, rule)
	if profile.FooterNote != "" {
		lines = append(lines, profile.FooterNote)
	}
	lines = append(lines, "")
	return lines
}

func labelled(label string, value string) string {
	gap := receiptWidth - len(label) - len(value)
	if gap < 1 {
		gap = 1
	}
	return label + strings.Repeat(" ", gap) + value
}

func padLeft(value string, width int) string {
	if len(value) >= width {
		return value
	}
	return strings.Repeat(" ", width-len(value)) + value
}

var invoiceTemplate = template.Must(template.New("invoice").Funcs(template.FuncMap{
	"money":   money,
	"serial":  InvoiceNumber,
	"lineSum": func(l domain.SaleLine) string { return money(l.TotalCents()) },
	"logo":    func(uri string) template.URL { return template.URL(uri) },
}).Parse(`<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<title>Invoice #{{serial .Sale.ID}}</title>
<style>
body { font-family: sans-serif; margin: 24px; color: #0f172a; }
table { width: 100%; border-collapse: collapse; }
th, td { padding: 6px 8px; border-bottom: 1px solid #e2e8f0; text-align: left; }
td.num, th.num { text-align: right; }
.totals td { border: none; }
</style>
</head>
<body>
<header>
{{- if .Profile.Logo}}<img src="{{logo .Profile.Logo}}" alt="logo" height="64">{{end}}
<h1>{{.Profile.Name}}</h1>
<p>{{.Profile.Address}}<br>{{.Profile.Phone}}{{if .Profile.Email}} | {{.Profile.Email}}{{end}}{{if .Profile.Website}} | {{.Profile.Website}}{{end}}</p>
</header>
<section>
<p><strong>Invoice #{{serial .Sale.ID}}</strong><br>{{.Sale.CreatedAt.Format "2006-01-02"}}</p>
<p>Bill to: <strong>{{.Sale.CustomerName}}</strong><br>{{if .Sale.CustomerContact}}{{.Sale.CustomerContact}}{{else}}Direct Customer{{end}}</p>
</section>
<table>
<thead><tr><th>Item</th><th class="num">Qty</th><th class="num">Price</th><th class="num">Total</th></tr></thead>
<tbody>
{{- range .Sale.Items}}
<tr><td>{{.Name}}</td><td class="num">{{.Qty}}</td><td class="num">{{money .UnitPriceCents}}</td><td class="num">{{lineSum .}}</td></tr>
{{- end}}
</tbody>
</table>
<table class="totals">
<tr><td class="num">Subtotal</td><td class="num">{{money .Sale.SubtotalCents}}</td></tr>
<tr><td class="num">Discount</td><td class="num">{{money .Sale.DiscountCents}}</td></tr>
<tr><td class="num"><strong>Total</strong></td><td class="num"><strong>{{money .Sale.TotalCents}}</strong></td></tr>
<tr><td class="num">Payment</td><td class="num">{{.Sale.PaymentMethod}} ({{.Sale.PaymentStatus}})</td></tr>
</table>
{{- if .Profile.FooterNote}}
<footer><p>{{.Profile.FooterNote}}</p></footer>
{{- end}}
</body>
</html>
`))

// RenderInvoiceHTML renders a printable A4 invoice. Every field is escaped by
// html/template; the logo is trusted because SaveProfile only accepts image
// data urls.
func RenderInvoiceHTML(sale domain.Sale, profile domain.ShopProfile) ([]byte, error) {
	var buf bytes.Buffer
	err := invoiceTemplate.Execute(&buf, struct {
		Sale    domain.Sale
		Profile domain.ShopProfile
	}{Sale: sale, Profile: profile})
	if err != nil {
		return nil, errors.Wrapf(err, "render invoice %s", sale.ID)
	}
	return buf.Bytes(), nil
}

func (s *Service) InvoiceHTML(ctx context.Context, saleID string) ([]byte, error) {
	sale, err := s.GetSale(ctx, saleID)
	if err != nil {
		return nil, err
	}
	profile, err := s.GetProfile(ctx)
	if err != nil {
		return nil, err
	}
	return RenderInvoiceHTML(sale, profile)
}
