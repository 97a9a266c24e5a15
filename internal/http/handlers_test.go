package httpapi

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"go.uber.org/zap"

	"stolik/internal/auth"
	"stolik/internal/repository"
	"stolik/internal/service"
)

func setupServer(t *testing.T) *Server {
	t.Helper()
	store := repository.NewMemoryStore()
	ordersRepo := repository.NewMemoryOrders(store)
	tx := repository.NewMemoryTx(store)
	log := zap.NewNop()
	inventorySvc := service.NewInventoryService(store, tx, log)
	ordersSvc := service.NewOrderService(store, ordersRepo, tx, log)
	return NewServer(inventorySvc, ordersSvc, auth.NewMemoryTokens(), log)
}

func doJSON(t *testing.T, s *Server, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatal(err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("X-Auth-Token", token)
	}
	w := httptest.NewRecorder()
	s.Engine().ServeHTTP(w, req)
	return w
}

func adminToken(t *testing.T, s *Server) string {
	t.Helper()
	w := doJSON(t, s, http.MethodPost, "/api/v1/auth/session", "", map[string]any{"role": "admin"})
	if w.Code != http.StatusCreated {
		t.Fatalf("session code %v", w.Code)
	}
	var resp map[string]string
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	return resp["token"]
}

func createdItemID(t *testing.T, w *httptest.ResponseRecorder) string {
	t.Helper()
	var resp struct {
		Item struct {
			ID string `json:"id"`
		} `json:"item"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if resp.Item.ID == "" {
		t.Fatalf("no item id in response: %s", w.Body.String())
	}
	return resp.Item.ID
}

func TestItemAndOrderFlow(t *testing.T) {
	s := setupServer(t)
	admin := adminToken(t, s)

	// create item
	w := doJSON(t, s, http.MethodPost, "/api/v1/items", admin, map[string]any{
		"name": "Coffee", "category": "Beverages",
		"variants": []map[string]any{{"size": "S", "price": 2, "stock": 5}},
	})
	if w.Code != http.StatusCreated {
		t.Fatalf("create item %v: %s", w.Code, w.Body.String())
	}
	itemID := createdItemID(t, w)

	// repeat submission merges -> 200
	w = doJSON(t, s, http.MethodPost, "/api/v1/items", admin, map[string]any{
		"name": "coffee", "category": "Beverages",
		"variants": []map[string]any{{"size": "s", "price": 2.5, "stock": 3}},
	})
	if w.Code != http.StatusOK {
		t.Fatalf("merge item %v: %s", w.Code, w.Body.String())
	}

	// list items
	w = doJSON(t, s, http.MethodGet, "/api/v1/items", "", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("list items %v", w.Code)
	}

	// place order -> 201
	w = doJSON(t, s, http.MethodPost, "/api/v1/orders", "", map[string]any{
		"customerName": "John", "seatNumber": "12",
		"items": []map[string]any{{"item": itemID, "size": "S", "quantity": 3}},
	})
	if w.Code != http.StatusCreated {
		t.Fatalf("place order %v: %s", w.Code, w.Body.String())
	}

	// second order same pair merges -> 200
	w = doJSON(t, s, http.MethodPost, "/api/v1/orders", "", map[string]any{
		"customerName": "John", "seatNumber": "12",
		"items": []map[string]any{{"item": itemID, "size": "S", "quantity": 2}},
	})
	if w.Code != http.StatusOK {
		t.Fatalf("merge order %v: %s", w.Code, w.Body.String())
	}

	// list orders
	w = doJSON(t, s, http.MethodGet, "/api/v1/orders", "", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("list orders %v", w.Code)
	}

	// fulfill seat
	w = doJSON(t, s, http.MethodDelete, "/api/v1/orders?seatNumber=12", admin, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("fulfill %v: %s", w.Code, w.Body.String())
	}

	// fulfilling again finds nothing
	w = doJSON(t, s, http.MethodDelete, "/api/v1/orders?seatNumber=12", admin, nil)
	if w.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %v", w.Code)
	}
}

func TestOrderErrors(t *testing.T) {
	s := setupServer(t)
	admin := adminToken(t, s)

	w := doJSON(t, s, http.MethodPost, "/api/v1/items", admin, map[string]any{
		"name": "Tea", "category": "Beverages",
		"variants": []map[string]any{{"size": "S", "price": 1, "stock": 1}},
	})
	itemID := createdItemID(t, w)

	// missing fields
	w = doJSON(t, s, http.MethodPost, "/api/v1/orders", "", map[string]any{
		"customerName": "", "seatNumber": "1",
		"items": []map[string]any{{"item": itemID, "size": "S", "quantity": 1}},
	})
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %v", w.Code)
	}

	// unknown item
	w = doJSON(t, s, http.MethodPost, "/api/v1/orders", "", map[string]any{
		"customerName": "John", "seatNumber": "1",
		"items": []map[string]any{{"item": "missing", "size": "S", "quantity": 1}},
	})
	if w.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %v", w.Code)
	}

	// insufficient stock
	w = doJSON(t, s, http.MethodPost, "/api/v1/orders", "", map[string]any{
		"customerName": "John", "seatNumber": "1",
		"items": []map[string]any{{"item": itemID, "size": "S", "quantity": 5}},
	})
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %v: %s", w.Code, w.Body.String())
	}
}

func TestAdminGate(t *testing.T) {
	s := setupServer(t)

	item := map[string]any{
		"name": "Coffee", "category": "Beverages",
		"variants": []map[string]any{{"size": "S", "price": 2, "stock": 5}},
	}

	// no token
	w := doJSON(t, s, http.MethodPost, "/api/v1/items", "", item)
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %v", w.Code)
	}

	// guest token
	w = doJSON(t, s, http.MethodPost, "/api/v1/auth/session", "", map[string]any{"role": "guest"})
	var resp map[string]string
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	guest := resp["token"]

	w = doJSON(t, s, http.MethodPost, "/api/v1/items", guest, item)
	if w.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %v", w.Code)
	}
	w = doJSON(t, s, http.MethodDelete, "/api/v1/orders?seatNumber=1", guest, nil)
	if w.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %v", w.Code)
	}

	// unknown token
	w = doJSON(t, s, http.MethodPost, "/api/v1/items", "bogus", item)
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %v", w.Code)
	}

	// revoked token stops working
	admin := adminToken(t, s)
	w = doJSON(t, s, http.MethodDelete, "/api/v1/auth/session", admin, nil)
	if w.Code != http.StatusNoContent {
		t.Fatalf("revoke %v", w.Code)
	}
	w = doJSON(t, s, http.MethodPost, "/api/v1/items", admin, item)
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 after revoke, got %v", w.Code)
	}
}

func TestBadRequests(t *testing.T) {
	s := setupServer(t)
	admin := adminToken(t, s)

	// invalid item body
	w := doJSON(t, s, http.MethodPost, "/api/v1/items", admin, map[string]any{"name": ""})
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %v", w.Code)
	}

	// unknown category
	w = doJSON(t, s, http.MethodPost, "/api/v1/items", admin, map[string]any{
		"name": "Pie", "category": "Desserts",
		"variants": []map[string]any{{"size": "S", "price": 1, "stock": 1}},
	})
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for category, got %v", w.Code)
	}

	// unknown session role
	w = doJSON(t, s, http.MethodPost, "/api/v1/auth/session", "", map[string]any{"role": "root"})
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for role, got %v", w.Code)
	}
}

func TestHealth(t *testing.T) {
	s := setupServer(t)
	w := doJSON(t, s, http.MethodGet, "/health", "", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("health %v", w.Code)
	}
}
