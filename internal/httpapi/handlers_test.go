package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"printpos/internal/advisor"
	"printpos/internal/domain"
	"printpos/internal/service"
	"printpos/internal/store/memory"
)

const testPasscode = "1234"

type stubCompleter struct {
	reply string
}

func (s stubCompleter) Complete(context.Context, string, string) (string, error) {
	return s.reply, nil
}

// newTestAPI builds a full API with an in-memory store, a real AuthManager and
// a real Service so handler tests exercise the complete request path.
func newTestAPI(t *testing.T) *API {
	t.Helper()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	repo := memory.NewSeeded()
	svc := service.New(repo, logger)
	adv := advisor.New(repo, stubCompleter{reply: "Restock mugs."}, nil, advisor.Options{Logger: logger})
	auth, err := NewAuthManager("test-secret-key", time.Hour, "", mustHashPassword(t, testPasscode))
	if err != nil {
		t.Fatalf("new auth manager: %v", err)
	}

	return New(svc, adv, auth, Options{AllowedOrigin: "*", Logger: logger})
}

// mustHashPassword generates a cheap bcrypt hash of the given passcode.
func mustHashPassword(t *testing.T, plain string) string {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(plain), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("bcrypt: %v", err)
	}
	return string(hash)
}

type session struct {
	handler http.Handler
	token   string
	csrf    string
}

func newSession(t *testing.T, api *API) session {
	t.Helper()
	return session{
		handler: api.Handler(),
		token:   login(t, api),
		csrf:    fetchCSRFToken(t, api),
	}
}

func (s session) do(t *testing.T, method string, path string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(payload)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Authorization", "Bearer "+s.token)
	req.Header.Set("X-CSRF-Token", s.csrf)
	rec := httptest.NewRecorder()
	s.handler.ServeHTTP(rec, req)
	return rec
}

func decodeBody[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&out), rec.Body.String())
	return out
}

func TestHandleHealth(t *testing.T) {
	api := newTestAPI(t)
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()

	api.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	body := decodeBody[map[string]any](t, rec)
	if body["ok"] != true {
		t.Fatalf("expected ok:true, got %v", body["ok"])
	}
}

func TestHandleLogin(t *testing.T) {
	api := newTestAPI(t)
	handler := api.Handler()

	cases := []struct {
		name     string
		passcode string
		want     int
	}{
		{name: "success", passcode: testPasscode, want: http.StatusOK},
		{name: "wrong passcode", passcode: "0000", want: http.StatusUnauthorized},
		{name: "blank passcode", passcode: "", want: http.StatusBadRequest},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			payload, _ := json.Marshal(domain.LoginRequest{Passcode: tc.passcode})
			req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/login", bytes.NewReader(payload))
			req.Header.Set("Content-Type", "application/json")
			req.RemoteAddr = "198.51.100.7:4000"
			rec := httptest.NewRecorder()

			handler.ServeHTTP(rec, req)

			if rec.Code != tc.want {
				t.Fatalf("expected %d, got %d (body: %s)", tc.want, rec.Code, rec.Body.String())
			}
		})
	}
}

func TestHandleProductsRequiresAuth(t *testing.T) {
	api := newTestAPI(t)
	req := httptest.NewRequest(http.MethodGet, "/api/v1/products", nil)
	rec := httptest.NewRecorder()

	api.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}

	req = httptest.NewRequest(http.MethodGet, "/api/v1/products", nil)
	req.Header.Set("Authorization", "Bearer not-a-token")
	rec = httptest.NewRecorder()
	api.Handler().ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 for garbage token, got %d", rec.Code)
	}
}

func TestProductCatalogueEndpoints(t *testing.T) {
	s := newSession(t, newTestAPI(t))

	rec := s.do(t, http.MethodGet, "/api/v1/products", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	listed := decodeBody[map[string][]domain.Product](t, rec)
	assert.Len(t, listed["products"], 6)

	rec = s.do(t, http.MethodPost, "/api/v1/products", map[string]any{
		"name": "Sticker Sheet", "price_cents": 400, "cost_cents": 120, "stock": 30,
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	created := decodeBody[map[string]domain.Product](t, rec)["product"]
	assert.Equal(t, domain.DefaultCategory, created.Category)
	assert.Equal(t, domain.DefaultMinStock, created.MinStock)

	rec = s.do(t, http.MethodPatch, "/api/v1/products/"+created.ID, map[string]any{"price_cents": 450})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	updated := decodeBody[map[string]domain.Product](t, rec)["product"]
	assert.Equal(t, int64(450), updated.PriceCents)
	assert.Equal(t, 30, updated.Stock)

	rec = s.do(t, http.MethodPatch, "/api/v1/products/missing", map[string]any{"price_cents": 1})
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = s.do(t, http.MethodPost, "/api/v1/products", map[string]any{"name": "", "price_cents": 1})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCheckoutDecrementsStockAndRendersDocuments(t *testing.T) {
	s := newSession(t, newTestAPI(t))

	rec := s.do(t, http.MethodPost, "/api/v1/checkout", map[string]any{
		"items": []map[string]any{
			{"product_id": "4", "qty": 2},
			{"name": "Lamination", "unit_price_cents": 150, "qty": 1},
		},
		"discount_cents": 200,
		"payment_method": domain.PaymentCash,
		"paid_cents":     6000,
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	sale := decodeBody[map[string]domain.Sale](t, rec)["sale"]
	assert.Equal(t, int64(5150), sale.SubtotalCents)
	assert.Equal(t, int64(4950), sale.TotalCents)
	assert.Equal(t, int64(1050), sale.ChangeCents)
	assert.Equal(t, domain.StatusPaid, sale.PaymentStatus)
	assert.Equal(t, domain.WalkInCustomer, sale.CustomerName)

	rec = s.do(t, http.MethodGet, "/api/v1/products", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	for _, p := range decodeBody[map[string][]domain.Product](t, rec)["products"] {
		if p.ID == "4" {
			assert.Equal(t, 18, p.Stock)
		}
	}

	rec = s.do(t, http.MethodGet, "/api/v1/sales/"+sale.ID, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = s.do(t, http.MethodGet, "/api/v1/sales/"+sale.ID+"/receipt", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	receipt := decodeBody[domain.Receipt](t, rec)
	assert.Equal(t, sale.ID, receipt.SaleID)
	assert.Contains(t, receipt.PreviewText, "T-Shirt Sublimation")

	rec = s.do(t, http.MethodGet, "/api/v1/sales/"+sale.ID+"/invoice", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, strings.HasPrefix(rec.Header().Get("Content-Type"), "text/html"))
	assert.Contains(t, rec.Body.String(), "Lamination")

	rec = s.do(t, http.MethodGet, "/api/v1/sales?limit=1", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decodeBody[map[string][]domain.Sale](t, rec)["sales"], 1)
}

func TestCheckoutErrorMapping(t *testing.T) {
	s := newSession(t, newTestAPI(t))

	cases := []struct {
		name string
		body map[string]any
		want int
	}{
		{
			name: "credit without contact",
			body: map[string]any{
				"customer_name":  "Nimal",
				"items":          []map[string]any{{"product_id": "1", "qty": 1}},
				"payment_method": domain.PaymentCredit,
			},
			want: http.StatusUnprocessableEntity,
		},
		{
			name: "unknown product",
			body: map[string]any{
				"items":          []map[string]any{{"product_id": "nope", "qty": 1}},
				"payment_method": domain.PaymentCash,
			},
			want: http.StatusNotFound,
		},
		{
			name: "zero quantity",
			body: map[string]any{
				"items":          []map[string]any{{"product_id": "1", "qty": 0}},
				"payment_method": domain.PaymentCash,
			},
			want: http.StatusBadRequest,
		},
		{
			name: "unknown payment method",
			body: map[string]any{
				"items":          []map[string]any{{"product_id": "1", "qty": 1}},
				"payment_method": "Barter",
			},
			want: http.StatusBadRequest,
		},
		{
			name: "unknown field",
			body: map[string]any{
				"items":          []map[string]any{{"product_id": "1", "qty": 1}},
				"payment_method": domain.PaymentCash,
				"tip_cents":      100,
			},
			want: http.StatusBadRequest,
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := s.do(t, http.MethodPost, "/api/v1/checkout", tc.body)
			assert.Equal(t, tc.want, rec.Code, rec.Body.String())
		})
	}

	rec := s.do(t, http.MethodGet, "/api/v1/sales", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, decodeBody[map[string][]domain.Sale](t, rec)["sales"])

	rec = s.do(t, http.MethodGet, "/api/v1/sales/missing", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestCreditLifecycle(t *testing.T) {
	s := newSession(t, newTestAPI(t))

	rec := s.do(t, http.MethodPost, "/api/v1/checkout", map[string]any{
		"customer_name":    "Nimal",
		"customer_contact": "0771234567",
		"items":            []map[string]any{{"product_id": "1", "qty": 2}},
		"payment_method":   domain.PaymentCredit,
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	sale := decodeBody[map[string]domain.Sale](t, rec)["sale"]
	require.Equal(t, domain.StatusPending, sale.PaymentStatus)
	require.True(t, sale.WasCredit)

	rec = s.do(t, http.MethodGet, "/api/v1/credit/outstanding?q=nimal", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	balances := decodeBody[map[string][]domain.CustomerBalance](t, rec)["customers"]
	require.Len(t, balances, 1)
	assert.Equal(t, int64(3000), balances[0].OutstandingCents)

	rec = s.do(t, http.MethodPost, "/api/v1/sales/"+sale.ID+"/settle", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	settled := decodeBody[map[string]domain.Sale](t, rec)["sale"]
	assert.Equal(t, domain.StatusPaid, settled.PaymentStatus)
	assert.True(t, settled.WasCredit)
	assert.NotNil(t, settled.SettledAt)

	rec = s.do(t, http.MethodPost, "/api/v1/sales/"+sale.ID+"/settle", nil)
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = s.do(t, http.MethodGet, "/api/v1/credit/outstanding", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, decodeBody[map[string][]domain.CustomerBalance](t, rec)["customers"])

	rec = s.do(t, http.MethodGet, "/api/v1/credit/outstanding?includeSettled=true", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decodeBody[map[string][]domain.CustomerBalance](t, rec)["customers"], 1)

	rec = s.do(t, http.MethodGet, "/api/v1/credit/history?name=Nimal&contact=0771234567", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decodeBody[map[string][]domain.Sale](t, rec)["sales"], 1)

	rec = s.do(t, http.MethodGet, "/api/v1/credit/history", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestPurchaseAndReports(t *testing.T) {
	s := newSession(t, newTestAPI(t))

	rec := s.do(t, http.MethodPost, "/api/v1/purchases", map[string]any{
		"supplier": "Paper House",
		"items":    []map[string]any{{"product_id": "2", "qty": 100, "unit_cost_cents": 25}},
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	purchase := decodeBody[map[string]domain.Purchase](t, rec)["purchase"]
	assert.Equal(t, int64(2500), purchase.TotalCents)
	assert.Equal(t, "A4 Glossy Paper", purchase.Items[0].ProductName)

	rec = s.do(t, http.MethodGet, "/api/v1/purchases", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decodeBody[map[string][]domain.Purchase](t, rec)["purchases"], 1)

	rec = s.do(t, http.MethodPost, "/api/v1/checkout", map[string]any{
		"items":          []map[string]any{{"product_id": "2", "qty": 10}},
		"payment_method": domain.PaymentCard,
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = s.do(t, http.MethodGet, "/api/v1/reports/sales", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	salesReport := decodeBody[domain.SalesReport](t, rec)
	assert.Equal(t, int64(500), salesReport.RevenueCents)
	assert.Equal(t, int64(500), salesReport.CardCents)

	rec = s.do(t, http.MethodGet, "/api/v1/reports/purchases", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, int64(2500), decodeBody[domain.PurchasesReport](t, rec).ExpensesCents)

	rec = s.do(t, http.MethodGet, "/api/v1/reports/profit", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	profit := decodeBody[domain.ProfitReport](t, rec)
	assert.Equal(t, int64(250), profit.COGSCents)
	assert.Equal(t, int64(250), profit.ProfitCents)

	rec = s.do(t, http.MethodGet, "/api/v1/reports/inventory", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 6, decodeBody[domain.InventoryValuation](t, rec).ProductCount)

	rec = s.do(t, http.MethodGet, "/api/v1/reports/dashboard", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	dashboard := decodeBody[domain.Dashboard](t, rec)
	assert.Equal(t, 1, dashboard.OrderCount)
	assert.Len(t, dashboard.LastSevenDays, 7)

	rec = s.do(t, http.MethodGet, "/api/v1/reports/sales.csv", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, strings.HasPrefix(rec.Header().Get("Content-Type"), "text/csv"))
	assert.Contains(t, rec.Header().Get("Content-Disposition"), "attachment")
	lines := strings.Split(strings.TrimSpace(rec.Body.String()), "\n")
	require.Len(t, lines, 2)
	assert.True(t, strings.HasPrefix(lines[0], "sale_id,date,"))

	rec = s.do(t, http.MethodGet, "/api/v1/reports/sales?from=2026-13-01", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestProfileEndpoints(t *testing.T) {
	s := newSession(t, newTestAPI(t))

	rec := s.do(t, http.MethodGet, "/api/v1/profile", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	profile := decodeBody[map[string]domain.ShopProfile](t, rec)["profile"]
	assert.Equal(t, domain.DefaultShopProfile().Name, profile.Name)

	profile.Name = "AR Printers & Graphics"
	profile.Phone = "0112223334"
	rec = s.do(t, http.MethodPut, "/api/v1/profile", profile)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = s.do(t, http.MethodGet, "/api/v1/profile", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "0112223334", decodeBody[map[string]domain.ShopProfile](t, rec)["profile"].Phone)

	profile.Email = "not-an-email"
	rec = s.do(t, http.MethodPut, "/api/v1/profile", profile)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	profile.Email = ""
	profile.Logo = "https://example.com/logo.png"
	rec = s.do(t, http.MethodPut, "/api/v1/profile", profile)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAdvisorEndpoints(t *testing.T) {
	s := newSession(t, newTestAPI(t))

	rec := s.do(t, http.MethodPost, "/api/v1/advisor/ask", map[string]string{"question": "What should I restock?"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "Restock mugs.", decodeBody[domain.AdvisorAnswer](t, rec).Answer)

	rec = s.do(t, http.MethodPost, "/api/v1/advisor/ask", map[string]string{"question": "   "})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = s.do(t, http.MethodPost, "/api/v1/advisor/marketing", map[string]string{"product_name": "Mug Printing"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "Restock mugs.", decodeBody[domain.AdvisorAnswer](t, rec).Answer)
}

func TestStatusFor(t *testing.T) {
	assert.Equal(t, http.StatusUnprocessableEntity, statusFor(service.ErrMissingCustomerIdentity))
	assert.Equal(t, http.StatusConflict, statusFor(service.ErrNotPending))
	assert.Equal(t, http.StatusBadRequest, statusFor(advisor.ErrEmptyPrompt))
	assert.Equal(t, http.StatusInternalServerError, statusFor(io.ErrUnexpectedEOF))
}

func TestMustHashPassword(t *testing.T) {
	hash := mustHashPassword(t, "secret")
	if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte("secret")); err != nil {
		t.Fatalf("hash verification failed: %v", err)
	}
}
