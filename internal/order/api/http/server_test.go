package http

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"order-router/internal/routing/domain/models"
	"order-router/internal/routing/routingtest"
	"order-router/internal/xpkg/logger"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
)

type stubDB struct{ err error }

func (s stubDB) IsAlive(context.Context) error { return s.err }

func newTestServer(t *testing.T, env *routingtest.Env) *httptest.Server {
	t.Helper()
	h := Routes(Deps{
		DB:        stubDB{},
		Orders:    env.Orders,
		Stores:    env.Stores,
		Settings:  env.Settings,
		Locker:    env.Locker,
		Publisher: env.Publisher,
		Registry:  prometheus.NewRegistry(),
	}, logger.Discard())
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return srv
}

func do(t *testing.T, srv *httptest.Server, method, path, body string) (int, map[string]any) {
	t.Helper()
	req, err := http.NewRequest(method, srv.URL+path, strings.NewReader(body))
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := srv.Client().Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	defer resp.Body.Close()

	raw, _ := io.ReadAll(resp.Body)
	out := map[string]any{}
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &out); err != nil {
			t.Fatalf("%s %s: invalid json %q: %v", method, path, raw, err)
		}
	}
	return resp.StatusCode, out
}

func TestAssignOrderEndpoint(t *testing.T) {
	env := routingtest.NewEnv(false)
	srv := newTestServer(t, env)

	store := env.Stores.Add("Baghdad")
	order := env.Orders.Seed(models.Order{MainStoreName: "Baghdad"})

	tests := []struct {
		name     string
		body     string
		wantCode int
	}{
		{"missing order id", `{"storeId":"` + store.ID + `"}`, http.StatusBadRequest},
		{"missing store id", `{"orderId":"` + order.ID + `"}`, http.StatusBadRequest},
		{"empty body", ``, http.StatusBadRequest},
		{"malformed json", `{"orderId":`, http.StatusBadRequest},
		{"unknown order", `{"orderId":"` + uuid.NewString() + `","storeId":"` + store.ID + `"}`, http.StatusNotFound},
		{"unknown store", `{"orderId":"` + order.ID + `","storeId":"` + uuid.NewString() + `"}`, http.StatusNotFound},
		{"ok", `{"orderId":"` + order.ID + `","storeId":"` + store.ID + `"}`, http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			code, body := do(t, srv, http.MethodPost, "/assign-order", tt.body)
			if code != tt.wantCode {
				t.Fatalf("code = %d, want %d (%v)", code, tt.wantCode, body)
			}
			if code != http.StatusOK {
				if body["success"] != false || body["error"] == "" || body["code"] != float64(code) {
					t.Errorf("unexpected error body %v", body)
				}
				return
			}
			if body["success"] != true || body["message"] != "Order assigned successfully" {
				t.Errorf("unexpected body %v", body)
			}
			data, _ := body["data"].(map[string]any)
			if data["order_status"] != "assigned" || data["assigned_store_id"] != store.ID {
				t.Errorf("unexpected data %v", data)
			}
		})
	}
}

func TestAutoAssignEndpoint(t *testing.T) {
	env := routingtest.NewEnv(false)
	srv := newTestServer(t, env)

	env.Stores.Add("Basra")
	env.Orders.Seed(models.Order{MainStoreName: "basra"})
	env.Orders.Seed(models.Order{MainStoreName: "Unknown"})

	code, body := do(t, srv, http.MethodPost, "/auto-assign-orders", `{}`)
	if code != http.StatusOK || body["success"] != false || body["message"] != "Auto-assignment is disabled" {
		t.Fatalf("disabled: code=%d body=%v", code, body)
	}

	code, body = do(t, srv, http.MethodPut, "/settings/auto-assign", `{"enabled":true}`)
	if code != http.StatusOK {
		t.Fatalf("enable: code=%d body=%v", code, body)
	}

	code, body = do(t, srv, http.MethodPost, "/auto-assign-orders", ``)
	if code != http.StatusOK {
		t.Fatalf("run: code=%d body=%v", code, body)
	}
	if body["success"] != true || body["assigned_count"] != float64(1) || body["unmatched_count"] != float64(1) || body["error_count"] != float64(0) {
		t.Errorf("unexpected body %v", body)
	}
	if _, ok := body["errors"]; ok {
		t.Errorf("errors must be omitted when empty: %v", body)
	}

	code, body = do(t, srv, http.MethodPost, "/auto-assign-orders", ``)
	if code != http.StatusOK || body["assigned_count"] != float64(0) {
		t.Errorf("second run: code=%d body=%v", code, body)
	}

	release, _, _ := env.Locker.TryLock(context.Background())
	defer release()
	code, _ = do(t, srv, http.MethodPost, "/auto-assign-orders", ``)
	if code != http.StatusConflict {
		t.Errorf("concurrent run: code=%d, want 409", code)
	}
}

func TestGetOrderEndpoint(t *testing.T) {
	env := routingtest.NewEnv(false)
	srv := newTestServer(t, env)

	store := env.Stores.Add("Erbil")
	order := env.Orders.Seed(models.Order{MainStoreName: "Erbil", Items: []models.Item{{Name: "Mouse", Price: 10, Quantity: 1}}})
	if _, err := env.Orders.Assign(context.Background(), order.ID, store.ID, "admin", false); err != nil {
		t.Fatal(err)
	}

	code, body := do(t, srv, http.MethodPost, "/get-order", `{"orderId":"`+order.ID+`"}`)
	if code != http.StatusOK || body["success"] != true {
		t.Fatalf("code=%d body=%v", code, body)
	}
	got, _ := body["order"].(map[string]any)
	if got["id"] != order.ID {
		t.Errorf("id = %v", got["id"])
	}
	if s, _ := got["store"].(map[string]any); s["name"] != "Erbil" {
		t.Errorf("store = %v", got["store"])
	}
	if items, _ := got["items"].([]any); len(items) != 1 {
		t.Errorf("items = %v", got["items"])
	}
	if history, _ := got["history"].([]any); len(history) != 2 {
		t.Errorf("history = %v", got["history"])
	}

	if code, _ := do(t, srv, http.MethodPost, "/get-order", `{}`); code != http.StatusBadRequest {
		t.Errorf("missing id: code=%d, want 400", code)
	}
	if code, _ := do(t, srv, http.MethodPost, "/get-order", `{"orderId":"`+uuid.NewString()+`"}`); code != http.StatusNotFound {
		t.Errorf("unknown id: code=%d, want 404", code)
	}
}

func TestOrderLifecycleEndpoints(t *testing.T) {
	env := routingtest.NewEnv(false)
	srv := newTestServer(t, env)

	code, body := do(t, srv, http.MethodPost, "/stores", `{"name":"Najaf","password":"secret1"}`)
	if code != http.StatusCreated {
		t.Fatalf("create store: code=%d body=%v", code, body)
	}
	store, _ := body["data"].(map[string]any)
	storeID, _ := store["id"].(string)
	if _, leaked := store["password_hash"]; leaked {
		t.Error("password hash must not be serialized")
	}
	if code, _ := do(t, srv, http.MethodPost, "/stores", `{"name":"najaf","password":"secret1"}`); code != http.StatusConflict {
		t.Errorf("duplicate store: code=%d, want 409", code)
	}

	code, body = do(t, srv, http.MethodPost, "/orders", `{
		"customer_name": "Zainab",
		"customer_phone": "07801234567",
		"main_store_name": "NAJAF",
		"items": [{"name": "Headphones", "price": 25, "quantity": 2}]
	}`)
	if code != http.StatusCreated {
		t.Fatalf("create order: code=%d body=%v", code, body)
	}
	created, _ := body["data"].(map[string]any)
	orderID, _ := created["id"].(string)
	if created["total_amount"] != float64(50) || created["order_status"] != "pending" {
		t.Errorf("unexpected order %v", created)
	}

	if code, _ := do(t, srv, http.MethodPost, "/orders", `{"customer_name":""}`); code != http.StatusBadRequest {
		t.Errorf("invalid order: code=%d, want 400", code)
	}

	path := "/orders/" + orderID + "/status"
	if code, _ := do(t, srv, http.MethodPatch, path, `{"status":"delivered"}`); code != http.StatusConflict {
		t.Errorf("deliver pending: code=%d, want 409", code)
	}

	if code, body := do(t, srv, http.MethodPost, "/assign-order", `{"orderId":"`+orderID+`","storeId":"`+storeID+`"}`); code != http.StatusOK {
		t.Fatalf("assign: code=%d body=%v", code, body)
	}
	if code, _ := do(t, srv, http.MethodPatch, path, `{"status":"delivered","store_id":"`+uuid.NewString()+`"}`); code != http.StatusForbidden {
		t.Errorf("foreign store: code=%d, want 403", code)
	}
	code, body = do(t, srv, http.MethodPatch, path, `{"status":"delivered","store_id":"`+storeID+`"}`)
	if code != http.StatusOK {
		t.Fatalf("deliver: code=%d body=%v", code, body)
	}

	code, body = do(t, srv, http.MethodGet, "/orders?store_id="+storeID, ``)
	if list, _ := body["data"].([]any); code != http.StatusOK || len(list) != 1 {
		t.Errorf("list: code=%d body=%v", code, body)
	}
	if code, _ := do(t, srv, http.MethodGet, "/orders?limit=abc", ``); code != http.StatusBadRequest {
		t.Errorf("bad limit: code=%d, want 400", code)
	}

	code, body = do(t, srv, http.MethodGet, "/orders/stats", ``)
	stats, _ := body["data"].(map[string]any)
	if code != http.StatusOK || stats["total"] != float64(1) || stats["delivered"] != float64(1) {
		t.Errorf("stats: code=%d body=%v", code, body)
	}

	if code, _ := do(t, srv, http.MethodPut, "/settings/auto-assign", `{}`); code != http.StatusBadRequest {
		t.Errorf("missing enabled: code=%d, want 400", code)
	}
	if code, body := do(t, srv, http.MethodGet, "/settings", ``); code != http.StatusOK || body["success"] != true {
		t.Errorf("settings: code=%d body=%v", code, body)
	}
	if len(env.Publisher.Messages()) != 3 {
		t.Errorf("published %d messages, want 3", len(env.Publisher.Messages()))
	}
}

func TestCORSAndHealth(t *testing.T) {
	env := routingtest.NewEnv(false)
	srv := newTestServer(t, env)

	req, _ := http.NewRequest(http.MethodOptions, srv.URL+"/assign-order", nil)
	resp, err := srv.Client().Do(req)
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNoContent || resp.Header.Get("Access-Control-Allow-Origin") != "*" {
		t.Errorf("preflight: code=%d headers=%v", resp.StatusCode, resp.Header)
	}
	if resp.Header.Get("X-Request-ID") == "" {
		t.Error("missing X-Request-ID header")
	}

	if code, body := do(t, srv, http.MethodGet, "/health", ``); code != http.StatusOK || body["status"] != "ok" {
		t.Errorf("health: code=%d body=%v", code, body)
	}

	resp, err = srv.Client().Get(srv.URL + "/metrics")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	raw, _ := io.ReadAll(resp.Body)
	if !strings.Contains(string(raw), "order_router_auto_assign_runs_total") && !strings.Contains(string(raw), "# HELP") {
		t.Errorf("metrics output looks empty: %s", raw)
	}
}

func TestHealthUnavailable(t *testing.T) {
	env := routingtest.NewEnv(false)
	h := Routes(Deps{
		DB:        stubDB{err: errors.New("db down")},
		Orders:    env.Orders,
		Stores:    env.Stores,
		Settings:  env.Settings,
		Locker:    env.Locker,
		Publisher: env.Publisher,
	}, logger.Discard())

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("code = %d, want 503", rec.Code)
	}

	// Without a registry the routes still serve and /metrics is absent.
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/orders", nil))
	if rec.Code != http.StatusOK {
		t.Errorf("GET /orders without registry = %d, want 200", rec.Code)
	}
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rec.Code != http.StatusNotFound {
		t.Errorf("GET /metrics without registry = %d, want 404", rec.Code)
	}
}
