package main

import (
	"encoding/hex"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestHandleBoostInvalidBody(t *testing.T) {
	s := newTestService(t, &fakeWallet{})

	req := httptest.NewRequest("POST", "/api/boost", strings.NewReader("not json"))
	rec := httptest.NewRecorder()
	s.handleBoost(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}

func TestHandleBoostValidation(t *testing.T) {
	s := newTestService(t, &fakeWallet{})

	cases := []struct {
		name string
		body string
	}{
		{"zero amount", `{"amount":0,"recipients":[{"address":"` + testNodeKey + `","split":100}]}`},
		{"negative amount", `{"amount":-5,"recipients":[{"address":"` + testNodeKey + `","split":100}]}`},
		{"no recipients", `{"amount":100}`},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			req := httptest.NewRequest("POST", "/api/boost", strings.NewReader(c.body))
			rec := httptest.NewRecorder()
			s.handleBoost(rec, req)
			if rec.Code != http.StatusBadRequest {
				t.Errorf("status = %d, want 400", rec.Code)
			}
		})
	}
}

func TestHandleBoostSuccess(t *testing.T) {
	w := &fakeWallet{}
	s := newTestService(t, w)

	body := `{"amount":100,"recipients":[{"address":"` + testNodeKey + `","split":100}]}`
	req := httptest.NewRequest("POST", "/api/boost", strings.NewReader(body))
	rec := httptest.NewRecorder()
	s.handleBoost(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200; body: %s", rec.Code, rec.Body.String())
	}

	var batch BatchResult
	if err := json.Unmarshal(rec.Body.Bytes(), &batch); err != nil {
		t.Fatalf("response is not a batch result: %v", err)
	}
	if batch.SuccessCount != 1 {
		t.Errorf("SuccessCount = %d, want 1", batch.SuccessCount)
	}
	if len(w.keysends) != 1 {
		t.Errorf("keysends = %d, want 1", len(w.keysends))
	}
}

func TestHandleBoostTotalFailureStatus(t *testing.T) {
	s := newTestService(t, nil)

	body := `{"amount":100,"recipients":[{"address":"` + testNodeKey + `","split":100}]}`
	req := httptest.NewRequest("POST", "/api/boost", strings.NewReader(body))
	rec := httptest.NewRecorder()
	s.handleBoost(rec, req)

	if rec.Code != http.StatusPaymentRequired {
		t.Errorf("status = %d, want 402", rec.Code)
	}

	var batch BatchResult
	if err := json.Unmarshal(rec.Body.Bytes(), &batch); err != nil {
		t.Fatalf("response is not a batch result: %v", err)
	}
	if batch.Failure == nil {
		t.Error("total failure response missing failure detail")
	}
}

func TestHandleWalletStatusReportsWalletPubkey(t *testing.T) {
	uri, walletPub, _ := testNWCURI(t)
	config, err := ParseNWCURI(uri)
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	client := NewNWCClient(config)
	client.Close() // never dialed; status should still identify the wallet

	s := newTestService(t, nil)
	s.nwc = client

	req := httptest.NewRequest("GET", "/api/wallet/status", nil)
	rec := httptest.NewRecorder()
	s.handleWalletStatus(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}

	var resp struct {
		WalletPubKey string `json:"walletPubkey"`
		NWCConnected bool   `json:"nwcConnected"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("invalid response: %v", err)
	}
	if want := hex.EncodeToString(walletPub); resp.WalletPubKey != want {
		t.Errorf("walletPubkey = %q, want %q", resp.WalletPubKey, want)
	}
	if resp.NWCConnected {
		t.Error("closed client reported as connected")
	}
}

func TestHandleWalletBalanceNoWallet(t *testing.T) {
	s := newTestService(t, nil)

	req := httptest.NewRequest("GET", "/api/wallet/balance", nil)
	rec := httptest.NewRecorder()
	s.handleWalletBalance(rec, req)

	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want 503", rec.Code)
	}

	var resp errorResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("invalid error response: %v", err)
	}
	if resp.Code != string(ErrCodeWalletUnavailable) {
		t.Errorf("code = %q, want %q", resp.Code, ErrCodeWalletUnavailable)
	}
}

func TestHandleTransactionsNoSources(t *testing.T) {
	s := newTestService(t, nil)

	req := httptest.NewRequest("GET", "/api/transactions", nil)
	rec := httptest.NewRecorder()
	s.handleTransactions(rec, req)

	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want 503", rec.Code)
	}
}

func TestHandleInvoiceQR(t *testing.T) {
	s := newTestService(t, nil)

	req := httptest.NewRequest("GET", "/api/invoice/qr?invoice=lnbc500n1pfakeinvoice", nil)
	rec := httptest.NewRecorder()
	s.handleInvoiceQR(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200; body: %s", rec.Code, rec.Body.String())
	}
	if ct := rec.Header().Get("Content-Type"); ct != "image/png" {
		t.Errorf("content type = %q, want image/png", ct)
	}
	if rec.Body.Len() == 0 {
		t.Error("empty PNG body")
	}
}

func TestHandleInvoiceQRRejectsBadInput(t *testing.T) {
	s := newTestService(t, nil)

	cases := []struct {
		name   string
		target string
	}{
		{"missing invoice", "/api/invoice/qr"},
		{"not an invoice", "/api/invoice/qr?invoice=hello"},
		{"size too small", "/api/invoice/qr?invoice=lnbc1fake&size=10"},
		{"size too large", "/api/invoice/qr?invoice=lnbc1fake&size=9999"},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			req := httptest.NewRequest("GET", c.target, nil)
			rec := httptest.NewRecorder()
			s.handleInvoiceQR(rec, req)
			if rec.Code != http.StatusBadRequest {
				t.Errorf("status = %d, want 400", rec.Code)
			}
		})
	}
}

func TestHandleHealth(t *testing.T) {
	s := newTestService(t, nil)

	req := httptest.NewRequest("GET", "/health", nil)
	rec := httptest.NewRecorder()
	s.handleHealth(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var resp map[string]interface{}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("invalid health response: %v", err)
	}
	if resp["status"] != "ok" {
		t.Errorf("status field = %v", resp["status"])
	}
}
