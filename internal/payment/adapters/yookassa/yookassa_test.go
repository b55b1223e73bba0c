package yookassa_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/fanstage/fanstage/internal/config"
	"github.com/fanstage/fanstage/internal/payment/adapters/yookassa"
	"github.com/fanstage/fanstage/internal/payment/domain"
	"go.uber.org/zap"
)

const (
	testShopID    = "123456"
	testSecretKey = "test_secret"
)

func newAdapter(t *testing.T, apiURL string) *yookassa.Adapter {
	t.Helper()
	adapter, err := yookassa.New(config.YooKassaConfig{
		ShopID:    testShopID,
		SecretKey: testSecretKey,
		APIURL:    apiURL,
	}, http.DefaultClient, zap.NewNop())
	if err != nil {
		t.Fatalf("new adapter: %v", err)
	}
	return adapter
}

func requireBasicAuth(t *testing.T, r *http.Request) {
	t.Helper()
	user, pass, ok := r.BasicAuth()
	if !ok || user != testShopID || pass != testSecretKey {
		t.Errorf("basic auth = %q/%q", user, pass)
	}
}

func TestNewRequiresCredentials(t *testing.T) {
	_, err := yookassa.New(config.YooKassaConfig{ShopID: "shop"}, nil, zap.NewNop())
	if !errors.Is(err, domain.ErrInvalidConfig) {
		t.Fatalf("expected ErrInvalidConfig, got %v", err)
	}
}

func TestCreatePayment(t *testing.T) {
	var gotBody map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/payments" {
			t.Errorf("%s %s", r.Method, r.URL.Path)
		}
		requireBasicAuth(t, r)
		if r.Header.Get("Idempotence-Key") == "" {
			t.Error("missing Idempotence-Key header")
		}
		if err := json.NewDecoder(r.Body).Decode(&gotBody); err != nil {
			t.Errorf("decode request: %v", err)
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"id":     "2d9cbf35-0001",
			"status": "pending",
			"confirmation": map[string]string{
				"type":             "redirect",
				"confirmation_url": "https://checkout.example/confirm/2d9cbf35-0001",
			},
		})
	}))
	defer server.Close()

	adapter := newAdapter(t, server.URL)
	result, err := adapter.CreatePayment(context.Background(), domain.CreatePaymentRequest{
		OrderID:           "order-1",
		UserID:            42,
		Amount:            49990,
		Currency:          "RUB",
		Description:       "sticker pack",
		ReturnURL:         "https://fanstage.example/return",
		Metadata:          map[string]string{"artist_id": "7"},
		SavePaymentMethod: true,
	})
	if err != nil {
		t.Fatalf("create payment: %v", err)
	}
	if result.GatewayPaymentID != "2d9cbf35-0001" {
		t.Fatalf("payment id = %q", result.GatewayPaymentID)
	}
	if result.ConfirmationURL != "https://checkout.example/confirm/2d9cbf35-0001" {
		t.Fatalf("confirmation url = %q", result.ConfirmationURL)
	}

	amount, _ := gotBody["amount"].(map[string]any)
	if amount["value"] != "499.90" || amount["currency"] != "RUB" {
		t.Fatalf("wire amount = %v", amount)
	}
	metadata, _ := gotBody["metadata"].(map[string]any)
	if metadata["order_id"] != "order-1" || metadata["user_id"] != "42" || metadata["artist_id"] != "7" {
		t.Fatalf("metadata = %v", metadata)
	}
	if gotBody["save_payment_method"] != true {
		t.Fatal("save_payment_method not forwarded")
	}
	if gotBody["capture"] != true {
		t.Fatal("capture not requested")
	}
}

func TestVerifyWebhookRefetchesPayment(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requireBasicAuth(t, r)
		if r.URL.Path != "/payments/2d9cbf35-0002" {
			t.Errorf("path = %s", r.URL.Path)
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"id":     "2d9cbf35-0002",
			"status": "succeeded",
			"paid":   true,
			"amount": map[string]string{"value": "250.00", "currency": "RUB"},
			"payment_method": map[string]any{
				"id":    "pm-777",
				"type":  "bank_card",
				"saved": true,
				"title": "Bank card *4444",
			},
			"metadata": map[string]string{"order_id": "order-2", "user_id": "42"},
		})
	}))
	defer server.Close()

	adapter := newAdapter(t, server.URL)
	// The callback body claims nothing the adapter believes; only the id is
	// taken from it.
	payload := []byte(`{"event":"payment.succeeded","object":{"id":"2d9cbf35-0002","amount":{"value":"999999.00"}}}`)

	event, err := adapter.VerifyWebhook(context.Background(), payload, nil)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if event.Event != domain.EventSucceeded {
		t.Fatalf("event = %q", event.Event)
	}
	if event.OrderID != "order-2" {
		t.Fatalf("order id = %q", event.OrderID)
	}
	if event.Amount != 25000 {
		t.Fatalf("amount = %d, want fetched amount", event.Amount)
	}
	if event.MethodToken != "pm-777" || event.MethodTitle != "Bank card *4444" {
		t.Fatalf("saved method = %q / %q", event.MethodToken, event.MethodTitle)
	}
}

func TestVerifyWebhookForgedPaymentID(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	adapter := newAdapter(t, server.URL)
	payload := []byte(`{"event":"payment.succeeded","object":{"id":"no-such-payment"}}`)

	if _, err := adapter.VerifyWebhook(context.Background(), payload, nil); !errors.Is(err, domain.ErrVerificationFailed) {
		t.Fatalf("expected ErrVerificationFailed, got %v", err)
	}
}

func TestVerifyWebhookIgnoresNonTerminalStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{
			"id":     "2d9cbf35-0003",
			"status": "waiting_for_capture",
			"amount": map[string]string{"value": "10.00", "currency": "RUB"},
		})
	}))
	defer server.Close()

	adapter := newAdapter(t, server.URL)
	payload := []byte(`{"event":"payment.succeeded","object":{"id":"2d9cbf35-0003"}}`)

	if _, err := adapter.VerifyWebhook(context.Background(), payload, nil); !errors.Is(err, domain.ErrEventIgnored) {
		t.Fatalf("expected ErrEventIgnored, got %v", err)
	}
}

func TestVerifyWebhookUnknownEvent(t *testing.T) {
	adapter := newAdapter(t, "http://unused")
	payload := []byte(`{"event":"deal.closed","object":{"id":"2d9cbf35-0004"}}`)

	if _, err := adapter.VerifyWebhook(context.Background(), payload, nil); !errors.Is(err, domain.ErrEventIgnored) {
		t.Fatalf("expected ErrEventIgnored, got %v", err)
	}
}

func TestVerifyWebhookRefund(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requireBasicAuth(t, r)
		switch r.URL.Path {
		case "/refunds/rf-1":
			_ = json.NewEncoder(w).Encode(map[string]any{
				"id":         "rf-1",
				"status":     "succeeded",
				"payment_id": "2d9cbf35-0005",
				"amount":     map[string]string{"value": "100.00", "currency": "RUB"},
			})
		case "/payments/2d9cbf35-0005":
			_ = json.NewEncoder(w).Encode(map[string]any{
				"id":       "2d9cbf35-0005",
				"status":   "succeeded",
				"amount":   map[string]string{"value": "100.00", "currency": "RUB"},
				"metadata": map[string]string{"order_id": "order-5"},
			})
		default:
			t.Errorf("unexpected path %s", r.URL.Path)
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer server.Close()

	adapter := newAdapter(t, server.URL)
	payload := []byte(`{"event":"refund.succeeded","object":{"id":"rf-1"}}`)

	event, err := adapter.VerifyWebhook(context.Background(), payload, nil)
	if err != nil {
		t.Fatalf("verify refund: %v", err)
	}
	if event.Event != domain.EventRefunded {
		t.Fatalf("event = %q", event.Event)
	}
	if event.OrderID != "order-5" {
		t.Fatalf("order id = %q", event.OrderID)
	}
	if event.Amount != 10000 {
		t.Fatalf("amount = %d", event.Amount)
	}
}

func TestOrderRef(t *testing.T) {
	adapter := newAdapter(t, "http://unused")

	ref := adapter.OrderRef([]byte(`{"event":"payment.succeeded","object":{"id":"pay-1","metadata":{"order_id":"order-6"}}}`))
	if ref != "order-6" {
		t.Fatalf("order ref = %q", ref)
	}

	// Without metadata the gateway payment id is the only reference.
	ref = adapter.OrderRef([]byte(`{"event":"payment.succeeded","object":{"id":"pay-2"}}`))
	if ref != "pay-2" {
		t.Fatalf("fallback ref = %q", ref)
	}
}
