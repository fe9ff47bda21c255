package clients

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"food-delivery/internal/apperr"
	"food-delivery/internal/models"
)

func TestGetMenuDecodesEnvelope(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/restaurants/2/menu" {
			t.Errorf("path = %s, want /restaurants/2/menu", r.URL.Path)
		}
		if r.Method != http.MethodGet {
			t.Errorf("method = %s, want GET", r.Method)
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]interface{}{
			"status": "success",
			"data": map[string]interface{}{
				"restaurant_id":   2,
				"restaurant_name": "Warung Nusantara",
				"items": []map[string]interface{}{
					{"id": 10, "name": "Nasi Goreng Spesial", "price": "25000", "stock": 50, "available": true},
				},
			},
		})
	}))
	defer server.Close()

	menu, err := NewRestaurantClient(server.URL, time.Second).GetMenu(context.Background(), 2)
	if err != nil {
		t.Fatalf("GetMenu returned error: %v", err)
	}
	if menu.RestaurantName != "Warung Nusantara" {
		t.Errorf("restaurant_name = %s", menu.RestaurantName)
	}
	if len(menu.Items) != 1 || !menu.Items[0].Price.Equal(decimal.NewFromInt(25000)) {
		t.Errorf("unexpected items: %+v", menu.Items)
	}
}

func TestRemoteErrorMapping(t *testing.T) {
	tests := []struct {
		name       string
		statusCode int
		message    string
		wantKind   apperr.Kind
	}{
		{"not found", http.StatusNotFound, "user 9 not found", apperr.KindNotFound},
		{"validation", http.StatusBadRequest, "insufficient stock for \"Sate Ayam\"", apperr.KindValidation},
		{"conflict", http.StatusConflict, "order already accepted", apperr.KindConflict},
		{"forbidden", http.StatusForbidden, "different driver", apperr.KindForbidden},
		{"server error", http.StatusInternalServerError, "internal server error", apperr.KindUpstream},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(tt.statusCode)
				json.NewEncoder(w).Encode(map[string]string{
					"status":  "error",
					"message": tt.message,
				})
			}))
			defer server.Close()

			_, err := NewUserClient(server.URL, time.Second).GetUser(context.Background(), 9)
			if err == nil {
				t.Fatal("expected error")
			}
			if got := apperr.KindOf(err); got != tt.wantKind {
				t.Errorf("kind = %v, want %v", got, tt.wantKind)
			}
			var appErr *apperr.Error
			if !errors.As(err, &appErr) || appErr.Message != tt.message {
				t.Errorf("message = %q, want %q", err.Error(), tt.message)
			}
		})
	}
}

func TestUnreachableCollaboratorIsUpstream(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	server.Close() // nothing listens anymore

	_, err := NewPaymentClient(server.URL, time.Second).CreatePayment(context.Background(), models.CreatePaymentRequest{
		OrderID: 1, UserID: 1, Amount: decimal.NewFromInt(1000),
	})
	if !apperr.Is(err, apperr.KindUpstream) {
		t.Fatalf("kind = %v, want Upstream (err: %v)", apperr.KindOf(err), err)
	}
}

func TestMalformedResponseIsUpstream(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("<html>gateway error</html>"))
	}))
	defer server.Close()

	_, err := NewUserClient(server.URL, time.Second).GetUser(context.Background(), 1)
	if !apperr.Is(err, apperr.KindUpstream) {
		t.Fatalf("kind = %v, want Upstream (err: %v)", apperr.KindOf(err), err)
	}
}

func TestBearerForwarding(t *testing.T) {
	var gotAuth string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		json.NewEncoder(w).Encode(map[string]string{"status": "success"})
	}))
	defer server.Close()

	ctx := WithBearer(context.Background(), "Bearer token-123")
	if err := NewOrderClient(server.URL, time.Second).PaymentCallback(ctx, 1, "SUCCESS"); err != nil {
		t.Fatalf("PaymentCallback returned error: %v", err)
	}
	if gotAuth != "Bearer token-123" {
		t.Errorf("Authorization = %q, want forwarded bearer", gotAuth)
	}
}

func TestAssignDriverPostsOrderID(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req models.AssignDriverRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		if req.OrderID != 42 {
			t.Errorf("order_id = %d, want 42", req.OrderID)
		}
		json.NewEncoder(w).Encode(map[string]interface{}{
			"status": "success",
			"data":   map[string]interface{}{"driver_id": 7, "driver_name": "Agus"},
		})
	}))
	defer server.Close()

	assignment, err := NewDriverClient(server.URL, time.Second).AssignDriver(context.Background(), 42)
	if err != nil {
		t.Fatalf("AssignDriver returned error: %v", err)
	}
	if assignment.DriverID != 7 || assignment.DriverName != "Agus" {
		t.Errorf("unexpected assignment: %+v", assignment)
	}
}
