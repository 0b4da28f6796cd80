package httpapi

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"dapurpos/backend/internal/domain"
	"dapurpos/backend/internal/service"
	"dapurpos/backend/internal/store/memory"
)

const testSecret = "test-secret-0123456789-0123456789-abc"

type envelope struct {
	Success    bool            `json:"success"`
	StatusCode int             `json:"statusCode"`
	Message    string          `json:"message"`
	Data       json.RawMessage `json:"data"`
}

func newTestAPI(t *testing.T) http.Handler {
	t.Helper()

	repo := memory.NewSeeded()
	svc := service.New(repo, nil, "main-branch", time.UTC)
	auth := NewAuthManager(testSecret, time.Hour, repo)
	return New(svc, auth, "*").Handler()
}

func doJSON(t *testing.T, handler http.Handler, method string, path string, token string, body any) (*httptest.ResponseRecorder, envelope) {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal request body: %v", err)
		}
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	var env envelope
	if err := json.Unmarshal(rec.Body.Bytes(), &env); err != nil {
		t.Fatalf("decode envelope from %s %s (status %d): %v", method, path, rec.Code, err)
	}
	return rec, env
}

func loginAs(t *testing.T, handler http.Handler, username string, password string) string {
	t.Helper()

	rec, env := doJSON(t, handler, http.MethodPost, "/api/v1/auth/login", "", domain.LoginRequest{
		Username: username,
		Password: password,
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("login as %s failed: status %d message %q", username, rec.Code, env.Message)
	}
	var resp domain.LoginResponse
	if err := json.Unmarshal(env.Data, &resp); err != nil {
		t.Fatalf("decode login response: %v", err)
	}
	if resp.AccessToken == "" {
		t.Fatalf("expected access token in login response")
	}
	return resp.AccessToken
}

func TestHealthz(t *testing.T) {
	handler := newTestAPI(t)

	rec, env := doJSON(t, handler, http.MethodGet, "/healthz", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if !env.Success || env.StatusCode != http.StatusOK {
		t.Fatalf("unexpected envelope %+v", env)
	}
}

func TestLoginRejectsBadCredentials(t *testing.T) {
	handler := newTestAPI(t)

	rec, env := doJSON(t, handler, http.MethodPost, "/api/v1/auth/login", "", domain.LoginRequest{
		Username: "manager",
		Password: "wrong",
	})
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
	if env.Success {
		t.Fatalf("expected failure envelope")
	}
}

func TestLoginRateLimited(t *testing.T) {
	handler := newTestAPI(t)

	for i := 0; i < 5; i++ {
		rec, _ := doJSON(t, handler, http.MethodPost, "/api/v1/auth/login", "", domain.LoginRequest{
			Username: "manager",
			Password: "wrong",
		})
		if rec.Code != http.StatusUnauthorized {
			t.Fatalf("attempt %d: expected 401, got %d", i+1, rec.Code)
		}
	}
	rec, _ := doJSON(t, handler, http.MethodPost, "/api/v1/auth/login", "", domain.LoginRequest{
		Username: "manager",
		Password: "wrong",
	})
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429 after limit, got %d", rec.Code)
	}
}

func TestRequireAuth(t *testing.T) {
	handler := newTestAPI(t)

	rec, _ := doJSON(t, handler, http.MethodGet, "/api/v1/orders", "", nil)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without token, got %d", rec.Code)
	}

	rec, _ = doJSON(t, handler, http.MethodGet, "/api/v1/orders", "not-a-token", nil)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 with garbage token, got %d", rec.Code)
	}

	cashierToken := loginAs(t, handler, "cashier", "cashier123")
	rec, _ = doJSON(t, handler, http.MethodPost, "/api/v1/day-close", cashierToken, domain.DayCloseRequest{})
	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for cashier on day close, got %d", rec.Code)
	}
}

func TestOrderLifecycleOverHTTP(t *testing.T) {
	handler := newTestAPI(t)
	token := loginAs(t, handler, "cashier", "cashier123")

	rec, env := doJSON(t, handler, http.MethodPost, "/api/v1/orders", token, domain.OrderCreateRequest{
		Items:    []domain.OrderItem{{Name: "Nasi Uduk", UnitPrice: 1000, Qty: 2}},
		Payments: []domain.Payment{{Type: domain.PaymentTypeCash, MethodType: domain.PaymentMethodDirect, Amount: 500}},
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("create order: status %d message %q", rec.Code, env.Message)
	}
	var created domain.OrderResponse
	if err := json.Unmarshal(env.Data, &created); err != nil {
		t.Fatalf("decode created order: %v", err)
	}
	if created.Order.Status != domain.OrderStatusUnpaid {
		t.Fatalf("expected unpaid order, got %s", created.Order.Status)
	}

	rec, env = doJSON(t, handler, http.MethodGet, "/api/v1/orders/"+created.Order.ID, token, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("get order: status %d", rec.Code)
	}

	rec, env = doJSON(t, handler, http.MethodPost, "/api/v1/orders/"+created.Order.ID+"/settle", token, domain.OrderSettleRequest{
		Payments: []domain.Payment{{Type: domain.PaymentTypeCard, MethodType: domain.PaymentMethodSplit, Amount: 1500}},
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("settle order: status %d message %q", rec.Code, env.Message)
	}
	var settled domain.OrderResponse
	if err := json.Unmarshal(env.Data, &settled); err != nil {
		t.Fatalf("decode settled order: %v", err)
	}
	if settled.Order.Status != domain.OrderStatusPaid {
		t.Fatalf("expected paid after settle, got %s", settled.Order.Status)
	}

	rec, env = doJSON(t, handler, http.MethodGet, "/api/v1/orders?limit=10", token, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("list orders: status %d", rec.Code)
	}
	var list domain.OrderListResponse
	if err := json.Unmarshal(env.Data, &list); err != nil {
		t.Fatalf("decode order list: %v", err)
	}
	if len(list.Orders) != 1 {
		t.Fatalf("expected 1 order listed, got %d", len(list.Orders))
	}
}

func TestOrderUnknownActionIs404(t *testing.T) {
	handler := newTestAPI(t)
	token := loginAs(t, handler, "cashier", "cashier123")

	rec, _ := doJSON(t, handler, http.MethodPost, "/api/v1/orders/some-id/refund", token, nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for unknown action, got %d", rec.Code)
	}
}

func TestShiftOpenCloseOverHTTP(t *testing.T) {
	handler := newTestAPI(t)
	token := loginAs(t, handler, "cashier", "cashier123")

	rec, env := doJSON(t, handler, http.MethodPost, "/api/v1/shifts", token, domain.ShiftOpenRequest{})
	if rec.Code != http.StatusCreated {
		t.Fatalf("open shift: status %d message %q", rec.Code, env.Message)
	}
	var opened domain.ShiftResponse
	if err := json.Unmarshal(env.Data, &opened); err != nil {
		t.Fatalf("decode opened shift: %v", err)
	}
	if opened.Shift.ShiftNumber != 1 {
		t.Fatalf("expected shift number 1, got %d", opened.Shift.ShiftNumber)
	}

	rec, _ = doJSON(t, handler, http.MethodGet, "/api/v1/shifts/open", token, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("active shift lookup: status %d", rec.Code)
	}

	rec, env = doJSON(t, handler, http.MethodPost, "/api/v1/shifts/close", token, domain.ShiftCloseRequest{
		Denominations: domain.Denominations{Note500: 3, Note50: 2},
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("close shift: status %d message %q", rec.Code, env.Message)
	}
	var closed domain.ShiftResponse
	if err := json.Unmarshal(env.Data, &closed); err != nil {
		t.Fatalf("decode closed shift: %v", err)
	}
	if closed.Shift.TotalCash != 1600 {
		t.Fatalf("expected counted cash 1600, got %d", closed.Shift.TotalCash)
	}

	rec, _ = doJSON(t, handler, http.MethodGet, "/api/v1/shifts/open", token, nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 with no open shift, got %d", rec.Code)
	}
}

func TestDayCloseFlowOverHTTP(t *testing.T) {
	handler := newTestAPI(t)
	cashierToken := loginAs(t, handler, "cashier", "cashier123")
	managerToken := loginAs(t, handler, "manager", "manager123")

	rec, env := doJSON(t, handler, http.MethodPost, "/api/v1/orders", cashierToken, domain.OrderCreateRequest{
		Items:    []domain.OrderItem{{Name: "Rendang", UnitPrice: 2000, Qty: 1}},
		Payments: []domain.Payment{{Type: domain.PaymentTypeCash, MethodType: domain.PaymentMethodDirect, Amount: 800}},
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("create order: status %d", rec.Code)
	}
	var created domain.OrderResponse
	if err := json.Unmarshal(env.Data, &created); err != nil {
		t.Fatalf("decode created order: %v", err)
	}

	rec, env = doJSON(t, handler, http.MethodPost, "/api/v1/day-close", managerToken, domain.DayCloseRequest{})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 with unsettled order, got %d", rec.Code)
	}
	var blocked struct {
		UnsettledOrderIDs []string `json:"unsettled_order_ids"`
	}
	if err := json.Unmarshal(env.Data, &blocked); err != nil {
		t.Fatalf("decode conflict payload: %v", err)
	}
	if len(blocked.UnsettledOrderIDs) != 1 || blocked.UnsettledOrderIDs[0] != created.Order.ID {
		t.Fatalf("expected blocking order listed, got %v", blocked.UnsettledOrderIDs)
	}

	rec, _ = doJSON(t, handler, http.MethodPost, "/api/v1/orders/"+created.Order.ID+"/settle", cashierToken, domain.OrderSettleRequest{
		Payments: []domain.Payment{{Type: domain.PaymentTypeCash, MethodType: domain.PaymentMethodDirect, Amount: 1200}},
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("settle order: status %d", rec.Code)
	}

	rec, env = doJSON(t, handler, http.MethodPost, "/api/v1/day-close", managerToken, domain.DayCloseRequest{
		Denominations: &domain.Denominations{Note1000: 2},
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("day close: status %d message %q", rec.Code, env.Message)
	}
	var dayClose domain.DayCloseResponse
	if err := json.Unmarshal(env.Data, &dayClose); err != nil {
		t.Fatalf("decode day close response: %v", err)
	}
	if dayClose.DayWiseSales.TotalSales != 2000 {
		t.Fatalf("expected day-wise total 2000, got %d", dayClose.DayWiseSales.TotalSales)
	}
	if dayClose.Denomination.Difference != 0 {
		t.Fatalf("expected zero difference, got %d", dayClose.Denomination.Difference)
	}

	rec, _ = doJSON(t, handler, http.MethodPost, "/api/v1/day-close", managerToken, domain.DayCloseRequest{})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 on second day close, got %d", rec.Code)
	}

	rec, env = doJSON(t, handler, http.MethodGet, "/api/v1/day-close-reports", cashierToken, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("list reports: status %d", rec.Code)
	}
	var reports domain.DaySalesListResponse
	if err := json.Unmarshal(env.Data, &reports); err != nil {
		t.Fatalf("decode reports: %v", err)
	}
	if len(reports.Reports) != 1 {
		t.Fatalf("expected 1 report, got %d", len(reports.Reports))
	}

	rec, _ = doJSON(t, handler, http.MethodGet, "/api/v1/day-close-reports/"+reports.Reports[0].SaleDate, managerToken, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("get report by date: status %d", rec.Code)
	}

	rec, _ = doJSON(t, handler, http.MethodDelete, "/api/v1/day-close-reports/"+reports.Reports[0].SaleDate, managerToken, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("delete report: status %d", rec.Code)
	}
}

func TestConflictErrorsReturn400(t *testing.T) {
	handler := newTestAPI(t)
	token := loginAs(t, handler, "cashier", "cashier123")

	rec, _ := doJSON(t, handler, http.MethodPost, "/api/v1/shifts", token, domain.ShiftOpenRequest{})
	if rec.Code != http.StatusCreated {
		t.Fatalf("open shift: status %d", rec.Code)
	}
	rec, env := doJSON(t, handler, http.MethodPost, "/api/v1/shifts", token, domain.ShiftOpenRequest{})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for second open shift, got %d", rec.Code)
	}
	if env.Success || env.StatusCode != http.StatusBadRequest {
		t.Fatalf("unexpected envelope %+v", env)
	}
}

func TestCORSPreflight(t *testing.T) {
	handler := newTestAPI(t)

	req := httptest.NewRequest(http.MethodOptions, "/api/v1/orders", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusNoContent {
		t.Fatalf("expected 204 for preflight, got %d", rec.Code)
	}
	if rec.Header().Get("Access-Control-Allow-Origin") != "*" {
		t.Fatalf("expected allow-origin header")
	}
}

func TestRejectsUnknownJSONFields(t *testing.T) {
	handler := newTestAPI(t)
	token := loginAs(t, handler, "cashier", "cashier123")

	req := httptest.NewRequest(http.MethodPost, "/api/v1/orders", strings.NewReader(`{"bogus_field":true}`))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for unknown field, got %d", rec.Code)
	}
}

func TestMethodNotAllowed(t *testing.T) {
	handler := newTestAPI(t)

	rec, _ := doJSON(t, handler, http.MethodPost, "/healthz", "", nil)
	if rec.Code != http.StatusMethodNotAllowed {
		t.Fatalf("expected 405, got %d", rec.Code)
	}
}
