package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/smarteb/smarteb/internal/auth"
	"github.com/smarteb/smarteb/internal/billing"
	"github.com/smarteb/smarteb/internal/consumers"
	"github.com/smarteb/smarteb/internal/storage"
)

func newTestMux(t *testing.T, seed ...storage.Consumer) (*http.ServeMux, *storage.MemoryStorage) {
	t.Helper()
	store := storage.NewMemoryWithConsumers(seed)
	mux := NewMux(Deps{
		Store:     store,
		Consumers: consumers.NewService(store, nil),
	})
	return mux, store
}

func doJSON(t *testing.T, mux *http.ServeMux, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	return rec
}

func TestConsumerCRUDOverHTTP(t *testing.T) {
	mux, _ := newTestMux(t)

	rec := doJSON(t, mux, http.MethodPost, "/api/v1/consumers", map[string]any{
		"consumerNumber": "CN-1001",
		"name":           "A Subscriber",
		"tariffPlan":     "Domestic",
		"currentReading": 100,
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("create: %d %s", rec.Code, rec.Body.String())
	}

	rec = doJSON(t, mux, http.MethodGet, "/api/v1/consumers", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("list: %d", rec.Code)
	}
	var list []storage.Consumer
	if err := json.Unmarshal(rec.Body.Bytes(), &list); err != nil {
		t.Fatalf("decode list: %v", err)
	}
	if len(list) != 1 || list[0].ConsumerNumber != "CN-1001" {
		t.Fatalf("list = %+v", list)
	}

	rec = doJSON(t, mux, http.MethodGet, "/api/v1/consumers/CN-404", nil)
	if rec.Code != http.StatusNotFound {
		t.Errorf("missing consumer: %d", rec.Code)
	}

	rec = doJSON(t, mux, http.MethodPut, "/api/v1/consumers/CN-1001", map[string]any{"name": "Renamed"})
	if rec.Code != http.StatusOK {
		t.Fatalf("update: %d %s", rec.Code, rec.Body.String())
	}

	rec = doJSON(t, mux, http.MethodDelete, "/api/v1/consumers/CN-1001", nil)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("delete: %d", rec.Code)
	}
}

func TestBillingFlowOverHTTP(t *testing.T) {
	mux, _ := newTestMux(t, storage.Consumer{
		ConsumerNumber: "CN-1001",
		Name:           "A Subscriber",
		TariffPlan:     "Domestic",
		CurrentReading: 100,
		PaymentStatus:  storage.PaymentPaid,
	})

	rec := doJSON(t, mux, http.MethodPut, "/api/v1/consumers/add-reading/CN-1001", map[string]any{
		"currentReading": 150,
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("add-reading: %d %s", rec.Code, rec.Body.String())
	}
	var c storage.Consumer
	if err := json.Unmarshal(rec.Body.Bytes(), &c); err != nil {
		t.Fatalf("decode consumer: %v", err)
	}
	if c.Amount != 250 || c.PaymentStatus != storage.PaymentPending {
		t.Fatalf("unexpected bill: %+v", c)
	}

	rec = doJSON(t, mux, http.MethodGet, "/api/v1/consumers/bill-summary/CN-1001", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("bill-summary: %d %s", rec.Code, rec.Body.String())
	}
	var s billing.Summary
	if err := json.Unmarshal(rec.Body.Bytes(), &s); err != nil {
		t.Fatalf("decode summary: %v", err)
	}
	if s.BillAmount != 250 || s.RatePerUnit != 5 {
		t.Errorf("summary = %+v", s)
	}

	rec = doJSON(t, mux, http.MethodPost, "/api/v1/consumers/mark-paid/CN-1001", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("mark-paid: %d %s", rec.Code, rec.Body.String())
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &c); err != nil {
		t.Fatalf("decode consumer: %v", err)
	}
	if c.PaymentStatus != storage.PaymentPaid || c.Amount != 0 {
		t.Errorf("not settled: %+v", c)
	}
	if c.LastPaidAmount != 250 {
		t.Errorf("lastPaidAmount = %v", c.LastPaidAmount)
	}

	rec = doJSON(t, mux, http.MethodGet, "/api/v1/consumers/fines/all", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("fines: %d", rec.Code)
	}
	var roster []consumers.FineRosterEntry
	if err := json.Unmarshal(rec.Body.Bytes(), &roster); err != nil {
		t.Fatalf("decode roster: %v", err)
	}
	if len(roster) != 0 {
		t.Errorf("roster = %+v", roster)
	}
}

func TestValidationErrorsOverHTTP(t *testing.T) {
	mux, _ := newTestMux(t, storage.Consumer{
		ConsumerNumber: "CN-1001",
		Name:           "A Subscriber",
		TariffPlan:     "Domestic",
		CurrentReading: 100,
		PaymentStatus:  storage.PaymentPaid,
	})

	// Non-increasing reading.
	rec := doJSON(t, mux, http.MethodPut, "/api/v1/consumers/add-reading/CN-1001", map[string]any{
		"currentReading": 90,
	})
	if rec.Code != http.StatusBadRequest {
		t.Errorf("non-increasing reading: %d", rec.Code)
	}
	var e errorBody
	if err := json.Unmarshal(rec.Body.Bytes(), &e); err != nil || e.Message == "" {
		t.Errorf("error body = %q (%v)", rec.Body.String(), err)
	}

	// Unknown tariff plan on create.
	rec = doJSON(t, mux, http.MethodPost, "/api/v1/consumers", map[string]any{
		"consumerNumber": "CN-2",
		"name":           "X",
		"tariffPlan":     "agricultural",
	})
	if rec.Code != http.StatusBadRequest {
		t.Errorf("unknown plan: %d", rec.Code)
	}

	// Wrong method.
	rec = doJSON(t, mux, http.MethodGet, "/api/v1/consumers/mark-paid/CN-1001", nil)
	if rec.Code != http.StatusMethodNotAllowed {
		t.Errorf("wrong method: %d", rec.Code)
	}
}

func TestHealthEndpoints(t *testing.T) {
	mux, _ := newTestMux(t)

	for _, path := range []string{"/healthz", "/readyz", "/livez"} {
		rec := doJSON(t, mux, http.MethodGet, path, nil)
		if rec.Code != http.StatusOK {
			t.Errorf("%s: %d", path, rec.Code)
		}
	}
}

func TestAuthScopingOverHTTP(t *testing.T) {
	store := storage.NewMemoryWithConsumers([]storage.Consumer{
		{ConsumerNumber: "CN-1001", Name: "Mine", TariffPlan: "Domestic", PaymentStatus: storage.PaymentPaid},
		{ConsumerNumber: "CN-2002", Name: "Theirs", TariffPlan: "Domestic", PaymentStatus: storage.PaymentPaid},
	})
	authSvc, err := auth.NewService(store)
	if err != nil {
		t.Fatalf("auth.NewService failed: %v", err)
	}
	mux := NewMux(Deps{
		Store:     store,
		Consumers: consumers.NewService(store, nil),
		Auth:      authSvc,
	})

	u, err := authSvc.Register(t.Context(), "cn1001", "pw", auth.RoleConsumer, "CN-1001")
	if err != nil {
		t.Fatalf("Register failed: %v", err)
	}
	_, raw, err := authSvc.CreateToken(t.Context(), u.ID, "test", u.Role, nil)
	if err != nil {
		t.Fatalf("CreateToken failed: %v", err)
	}

	get := func(path, token string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		if token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}
		rec := httptest.NewRecorder()
		mux.ServeHTTP(rec, req)
		return rec
	}

	// No token at all: the billing routes demand authentication.
	if rec := get("/api/v1/consumers/bill-summary/CN-1001", ""); rec.Code != http.StatusUnauthorized {
		t.Errorf("unauthenticated: %d", rec.Code)
	}

	// Own bill: allowed.
	if rec := get("/api/v1/consumers/bill-summary/CN-1001", raw); rec.Code != http.StatusOK {
		t.Errorf("own bill: %d %s", rec.Code, rec.Body.String())
	}

	// Someone else's bill: forbidden.
	if rec := get("/api/v1/consumers/bill-summary/CN-2002", raw); rec.Code != http.StatusForbidden {
		t.Errorf("other bill: %d", rec.Code)
	}

	// Consumer role cannot list all consumers.
	if rec := get("/api/v1/consumers", raw); rec.Code != http.StatusForbidden {
		t.Errorf("list as consumer: %d", rec.Code)
	}
}

func TestLoginOverHTTP(t *testing.T) {
	store := storage.NewMemory()
	authSvc, err := auth.NewService(store)
	if err != nil {
		t.Fatalf("auth.NewService failed: %v", err)
	}
	if err := authSvc.Bootstrap(t.Context(), "changeme"); err != nil {
		t.Fatalf("Bootstrap failed: %v", err)
	}
	mux := NewMux(Deps{
		Store:     store,
		Consumers: consumers.NewService(store, nil),
		Auth:      authSvc,
	})

	rec := doJSON(t, mux, http.MethodPost, "/api/v1/auth/login", map[string]string{
		"username": "admin",
		"password": "changeme",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("login: %d %s", rec.Code, rec.Body.String())
	}
	var resp struct {
		Token string `json:"token"`
		Role  string `json:"role"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode login response: %v", err)
	}
	if resp.Token == "" || resp.Role != auth.RoleAdmin {
		t.Fatalf("login response = %+v", resp)
	}

	rec = doJSON(t, mux, http.MethodPost, "/api/v1/auth/login", map[string]string{
		"username": "admin",
		"password": "wrong",
	})
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("bad password: %d", rec.Code)
	}
}

func TestFineAppearsInRosterOverHTTP(t *testing.T) {
	deadline := time.Now().Add(-48 * time.Hour)
	mux, _ := newTestMux(t, storage.Consumer{
		ConsumerNumber:      "CN-1001",
		Name:                "A Subscriber",
		TariffPlan:          "Domestic",
		CurrentReading:      150,
		Amount:              250,
		PaymentStatus:       storage.PaymentPending,
		NextPaymentDeadline: &deadline,
	})

	// Summary fetch applies the overdue fine.
	rec := doJSON(t, mux, http.MethodGet, "/api/v1/consumers/bill-summary/CN-1001", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("bill-summary: %d", rec.Code)
	}
	var s billing.Summary
	if err := json.Unmarshal(rec.Body.Bytes(), &s); err != nil {
		t.Fatalf("decode summary: %v", err)
	}
	if !s.IsFineApplied || s.TotalAmountDue != 368 {
		t.Fatalf("summary = %+v", s)
	}

	rec = doJSON(t, mux, http.MethodGet, "/api/v1/consumers/fines/all", nil)
	var roster []consumers.FineRosterEntry
	if err := json.Unmarshal(rec.Body.Bytes(), &roster); err != nil {
		t.Fatalf("decode roster: %v", err)
	}
	if len(roster) != 1 || roster[0].ConsumerNumber != "CN-1001" {
		t.Fatalf("roster = %+v", roster)
	}
	if got := fmt.Sprintf("%.0f", roster[0].TotalAmountDue); got != "368" {
		t.Errorf("totalAmountDue = %v", roster[0].TotalAmountDue)
	}
}
