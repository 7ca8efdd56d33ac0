package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"tokokas/backend/internal/alerts"
	"tokokas/backend/internal/domain"
	"tokokas/backend/internal/events"
	"tokokas/backend/internal/renewal"
	"tokokas/backend/internal/service"
	"tokokas/backend/internal/store/memory"
	"tokokas/backend/pkg/logger"
)

type stubRenewer struct{}

func (stubRenewer) RenewMembership(context.Context, string, string) error { return nil }
func (stubRenewer) RenewTraining(context.Context, string, string) error   { return nil }

// newTestAPI builds a full API with an in-memory store, real AuthManager and
// real Service so handler tests exercise the complete request path.
func newTestAPI(t *testing.T) *API {
	t.Helper()

	log := logger.New(logger.Config{Env: "test", Level: "error"})
	repo := memory.NewSeeded()
	bus := events.NewBus(log)
	queue := renewal.NewQueue(stubRenewer{}, 16, []string{"training"}, log)
	queue.Start()
	t.Cleanup(queue.Stop)

	svc := service.New(repo, bus, queue, nil, time.Second, []string{"membership", "training"}, log)
	engine := alerts.NewEngine(repo, time.Minute, log)
	bus.Subscribe(engine.HandleSale)
	auth := NewAuthManager("test-secret-key", time.Hour, repo)

	return New(svc, auth, engine, "*", log)
}

func loginAs(t *testing.T, api *API, username string, password string) string {
	t.Helper()
	resp, err := api.auth.Login(domain.LoginRequest{Username: username, Password: password})
	if err != nil {
		t.Fatalf("login as %s: %v", username, err)
	}
	return resp.AccessToken
}

func loginAsAdmin(t *testing.T, api *API) string {
	return loginAs(t, api, "admin", "admin123")
}

func loginAsCashier(t *testing.T, api *API) string {
	return loginAs(t, api, "cashier", "cashier123")
}

// doJSON fires an authenticated JSON request through the full middleware
// chain and decodes the response body into a generic map.
func doJSON(t *testing.T, api *API, method string, path string, token string, csrf string, payload any) (int, map[string]any) {
	t.Helper()

	var body *bytes.Reader
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			t.Fatalf("marshal payload: %v", err)
		}
		body = bytes.NewReader(raw)
	} else {
		body = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, body)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	if csrf != "" {
		req.Header.Set("X-CSRF-Token", csrf)
	}
	rec := httptest.NewRecorder()
	api.Handler().ServeHTTP(rec, req)

	var decoded map[string]any
	if rec.Body.Len() > 0 {
		if err := json.NewDecoder(rec.Body).Decode(&decoded); err != nil {
			t.Fatalf("decode response for %s %s: %v", method, path, err)
		}
	}
	return rec.Code, decoded
}

func TestHandleHealth(t *testing.T) {
	api := newTestAPI(t)

	code, body := doJSON(t, api, http.MethodGet, "/healthz", "", "", nil)
	if code != http.StatusOK {
		t.Fatalf("expected 200, got %d", code)
	}
	if body["ok"] != true {
		t.Fatalf("expected ok:true, got %v", body["ok"])
	}
}

func TestHandleLoginSuccess(t *testing.T) {
	api := newTestAPI(t)

	code, body := doJSON(t, api, http.MethodPost, "/api/v1/auth/login", "", "", map[string]string{
		"username": "admin",
		"password": "admin123",
	})
	if code != http.StatusOK {
		t.Fatalf("expected 200, got %d (body %v)", code, body)
	}
	if body["access_token"] == "" || body["access_token"] == nil {
		t.Fatalf("expected access_token in response, got %v", body)
	}
	if body["role"] != "admin" {
		t.Fatalf("expected admin role, got %v", body["role"])
	}
}

func TestHandleLoginInvalidCredentials(t *testing.T) {
	api := newTestAPI(t)

	code, _ := doJSON(t, api, http.MethodPost, "/api/v1/auth/login", "", "", map[string]string{
		"username": "admin",
		"password": "wrongpassword",
	})
	if code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", code)
	}
}

func TestProductsRequireAuth(t *testing.T) {
	api := newTestAPI(t)

	code, _ := doJSON(t, api, http.MethodGet, "/api/v1/products", "", "", nil)
	if code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without token, got %d", code)
	}
}

func TestCashierCannotCreateProduct(t *testing.T) {
	api := newTestAPI(t)
	token := loginAsCashier(t, api)
	csrf := fetchCSRFToken(t, api)

	code, _ := doJSON(t, api, http.MethodPost, "/api/v1/products", token, csrf, domain.ProductCreateRequest{
		Name:       "Gym Chalk",
		Category:   "equipment",
		PriceCents: 9900,
	})
	if code != http.StatusForbidden {
		t.Fatalf("expected 403 for cashier product create, got %d", code)
	}
}

func TestAdminCreatesProduct(t *testing.T) {
	api := newTestAPI(t)
	token := loginAsAdmin(t, api)
	csrf := fetchCSRFToken(t, api)

	code, body := doJSON(t, api, http.MethodPost, "/api/v1/products", token, csrf, domain.ProductCreateRequest{
		Name:         "Gym Chalk",
		Category:     "equipment",
		PriceCents:   9900,
		InitialStock: 12,
	})
	if code != http.StatusCreated {
		t.Fatalf("expected 201, got %d (body %v)", code, body)
	}
	product, ok := body["product"].(map[string]any)
	if !ok {
		t.Fatalf("expected product in response, got %v", body)
	}
	if product["stock"] != float64(12) {
		t.Fatalf("expected stock 12, got %v", product["stock"])
	}
}

func TestCheckoutOverHTTPSettlesShift(t *testing.T) {
	api := newTestAPI(t)
	token := loginAsCashier(t, api)
	csrf := fetchCSRFToken(t, api)

	code, _ := doJSON(t, api, http.MethodPost, "/api/v1/shifts/open", token, csrf, domain.ShiftOpenRequest{
		OpeningBalanceCents: 100000,
	})
	if code != http.StatusCreated {
		t.Fatalf("expected 201 opening shift, got %d", code)
	}

	code, body := doJSON(t, api, http.MethodPost, "/api/v1/checkout", token, csrf, domain.CheckoutRequest{
		Items:         []domain.CheckoutItem{{ProductID: "PRD-KOPI-01", Qty: 2}},
		PaymentMethod: domain.PaymentCash,
		TenderedCents: 30000,
	})
	if code != http.StatusCreated {
		t.Fatalf("expected 201 checkout, got %d (body %v)", code, body)
	}
	if body["total_cents"] != float64(25000) {
		t.Fatalf("expected total 25000, got %v", body["total_cents"])
	}
	if body["change_cents"] != float64(5000) {
		t.Fatalf("expected change 5000, got %v", body["change_cents"])
	}

	code, summary := doJSON(t, api, http.MethodGet, "/api/v1/shifts/summary", token, "", nil)
	if code != http.StatusOK {
		t.Fatalf("expected 200 summary, got %d", code)
	}
	if summary["expected_closing_cents"] != float64(125000) {
		t.Fatalf("expected closing 125000, got %v", summary["expected_closing_cents"])
	}
}

func TestCheckoutWithoutShiftConflicts(t *testing.T) {
	api := newTestAPI(t)
	token := loginAsCashier(t, api)
	csrf := fetchCSRFToken(t, api)

	code, _ := doJSON(t, api, http.MethodPost, "/api/v1/checkout", token, csrf, domain.CheckoutRequest{
		Items:         []domain.CheckoutItem{{ProductID: "PRD-KOPI-01", Qty: 1}},
		PaymentMethod: domain.PaymentCash,
		TenderedCents: 12500,
	})
	if code != http.StatusConflict {
		t.Fatalf("expected 409 with no open shift, got %d", code)
	}
}

func TestShiftCurrentReturns404WhenClosed(t *testing.T) {
	api := newTestAPI(t)
	token := loginAsCashier(t, api)

	code, _ := doJSON(t, api, http.MethodGet, "/api/v1/shifts/current", token, "", nil)
	if code != http.StatusNotFound {
		t.Fatalf("expected 404 with no open shift, got %d", code)
	}
}

func TestCashExpenseOverHTTP(t *testing.T) {
	api := newTestAPI(t)
	token := loginAsCashier(t, api)
	csrf := fetchCSRFToken(t, api)

	code, _ := doJSON(t, api, http.MethodPost, "/api/v1/shifts/open", token, csrf, domain.ShiftOpenRequest{
		OpeningBalanceCents: 50000,
	})
	if code != http.StatusCreated {
		t.Fatalf("expected 201 opening shift, got %d", code)
	}

	code, body := doJSON(t, api, http.MethodPost, "/api/v1/shifts/cash/expense", token, csrf, domain.CashTransactionRequest{
		AmountCents: 10000,
		Reason:      "cleaning supplies",
	})
	if code != http.StatusOK {
		t.Fatalf("expected 200 expense, got %d (body %v)", code, body)
	}
	shift, ok := body["shift"].(map[string]any)
	if !ok {
		t.Fatalf("expected shift in response, got %v", body)
	}
	if shift["expected_closing_cents"] != float64(40000) {
		t.Fatalf("expected closing 40000 after expense, got %v", shift["expected_closing_cents"])
	}
}

func TestCashExpenseRejectsZeroAmount(t *testing.T) {
	api := newTestAPI(t)
	token := loginAsCashier(t, api)
	csrf := fetchCSRFToken(t, api)

	code, _ := doJSON(t, api, http.MethodPost, "/api/v1/shifts/open", token, csrf, domain.ShiftOpenRequest{
		OpeningBalanceCents: 50000,
	})
	if code != http.StatusCreated {
		t.Fatalf("expected 201 opening shift, got %d", code)
	}

	code, _ = doJSON(t, api, http.MethodPost, "/api/v1/shifts/cash/expense", token, csrf, domain.CashTransactionRequest{
		AmountCents: 0,
		Reason:      "nothing",
	})
	if code != http.StatusBadRequest {
		t.Fatalf("expected 400 for zero amount, got %d", code)
	}
}

func TestReconcileOverHTTP(t *testing.T) {
	api := newTestAPI(t)
	token := loginAsAdmin(t, api)
	csrf := fetchCSRFToken(t, api)

	code, body := doJSON(t, api, http.MethodPost, "/api/v1/inventory/reconcile", token, csrf, domain.ReconcileRequest{
		Lines: []domain.AuditLine{
			{ProductID: "PRD-KOPI-01", PhysicalCount: 58},
			{ProductID: "PRD-ROTI-01", PhysicalCount: 40},
		},
	})
	if code != http.StatusOK {
		t.Fatalf("expected 200 reconcile, got %d (body %v)", code, body)
	}
	if body["adjusted"] != float64(1) {
		t.Fatalf("expected 1 adjusted line, got %v", body["adjusted"])
	}

	code, _ = doJSON(t, api, http.MethodPost, "/api/v1/inventory/reconcile", loginAsCashier(t, api), csrf, domain.ReconcileRequest{
		Lines: []domain.AuditLine{{ProductID: "PRD-KOPI-01", PhysicalCount: 58}},
	})
	if code != http.StatusForbidden {
		t.Fatalf("expected 403 for cashier reconcile, got %d", code)
	}
}

func TestTransactionLookupNotFound(t *testing.T) {
	api := newTestAPI(t)
	token := loginAsCashier(t, api)

	code, _ := doJSON(t, api, http.MethodGet, "/api/v1/transactions/tx-missing", token, "", nil)
	if code != http.StatusNotFound {
		t.Fatalf("expected 404 for unknown transaction, got %d", code)
	}
}

func TestDailySalesDefaultsToToday(t *testing.T) {
	api := newTestAPI(t)
	token := loginAsAdmin(t, api)

	code, body := doJSON(t, api, http.MethodGet, "/api/v1/reports/daily", token, "", nil)
	if code != http.StatusOK {
		t.Fatalf("expected 200 daily report, got %d", code)
	}
	if body["date"] != time.Now().UTC().Format("2006-01-02") {
		t.Fatalf("expected today's date, got %v", body["date"])
	}
}

func TestMethodNotAllowedOnCheckout(t *testing.T) {
	api := newTestAPI(t)
	token := loginAsCashier(t, api)

	code, _ := doJSON(t, api, http.MethodGet, "/api/v1/checkout", token, "", nil)
	if code != http.StatusMethodNotAllowed {
		t.Fatalf("expected 405, got %d", code)
	}
}
