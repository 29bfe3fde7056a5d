package paystack

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestInitialize(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/transaction/initialize" {
			t.Errorf("path = %s", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer sk_test_abc" {
			t.Errorf("Authorization = %q", got)
		}

		var req InitializeRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		if req.AmountKobo != 150000 || req.Currency != "NGN" {
			t.Errorf("request = %+v", req)
		}

		json.NewEncoder(w).Encode(map[string]interface{}{
			"status":  true,
			"message": "Authorization URL created",
			"data": map[string]interface{}{
				"authorization_url": "https://checkout.paystack.com/abc123",
				"access_code":       "abc123",
				"reference":         req.Reference,
			},
		})
	}))
	defer srv.Close()

	c := New("sk_test_abc", srv.URL)
	tx, err := c.Initialize(context.Background(), &InitializeRequest{
		Email:      "ada@example.com",
		AmountKobo: 150000,
		Reference:  "ref-1",
	})
	if err != nil {
		t.Fatalf("Initialize: %v", err)
	}
	if tx.AuthorizationURL != "https://checkout.paystack.com/abc123" || tx.Reference != "ref-1" {
		t.Errorf("transaction = %+v", tx)
	}
}

func TestVerify(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/transaction/verify/ref-9" {
			t.Errorf("path = %s", r.URL.Path)
		}
		json.NewEncoder(w).Encode(map[string]interface{}{
			"status":  true,
			"message": "Verification successful",
			"data": map[string]interface{}{
				"reference": "ref-9",
				"status":    "success",
				"amount":    450000,
			},
		})
	}))
	defer srv.Close()

	c := New("sk_test_abc", srv.URL)
	tx, err := c.Verify(context.Background(), "ref-9")
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if tx.Status != "success" || tx.AmountKobo != 450000 {
		t.Errorf("transaction = %+v", tx)
	}
}

func TestAPIErrorSurfaced(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		json.NewEncoder(w).Encode(map[string]interface{}{
			"status":  false,
			"message": "Invalid key",
		})
	}))
	defer srv.Close()

	c := New("sk_test_bad", srv.URL)
	if _, err := c.Verify(context.Background(), "ref-1"); err == nil {
		t.Fatal("expected error for failed API status")
	}
}

func TestUnconfiguredClient(t *testing.T) {
	c := New("", "")
	if _, err := c.Verify(context.Background(), "ref-1"); err != ErrNotConfigured {
		t.Fatalf("err = %v, want ErrNotConfigured", err)
	}
}
