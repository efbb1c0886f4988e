package main

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strings"
	"testing"
)

type roundTripperFunc func(*http.Request) (*http.Response, error)

func (f roundTripperFunc) RoundTrip(r *http.Request) (*http.Response, error) { return f(r) }

func jsonResponse(status int, body string) *http.Response {
	return &http.Response{
		StatusCode: status,
		Header:     http.Header{"Content-Type": []string{"application/json"}},
		Body:       io.NopCloser(strings.NewReader(body)),
	}
}

// serviceWithTransport returns a test service whose HTTP client is served
// by fn instead of the network.
func serviceWithTransport(t *testing.T, fn roundTripperFunc) *PaymentService {
	t.Helper()
	s := newTestService(t, nil)
	s.httpc = &http.Client{Transport: fn}
	return s
}

func TestLnurlEndpoint(t *testing.T) {
	got, err := lnurlEndpoint("Alice@GetAlby.com")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := "https://GetAlby.com/.well-known/lnurlp/alice"
	if got != want {
		t.Errorf("endpoint = %q, want %q", got, want)
	}

	for _, bad := range []string{"nodomain", "@alice", "alice@", ""} {
		_, err := lnurlEndpoint(bad)
		if err == nil {
			t.Errorf("address %q: expected error", bad)
			continue
		}
		if code := ErrorCode(err); code != ErrCodeInvalidAddress {
			t.Errorf("address %q: code = %q, want %q", bad, code, ErrCodeInvalidAddress)
		}
	}
}

func TestResolveLightningAddress(t *testing.T) {
	var gotURL string
	s := serviceWithTransport(t, func(r *http.Request) (*http.Response, error) {
		gotURL = r.URL.String()
		return jsonResponse(200, `{
			"callback": "https://example.com/lnurlp/alice/callback",
			"minSendable": 1000,
			"maxSendable": 100000000,
			"tag": "payRequest",
			"commentAllowed": 120
		}`), nil
	})

	info, err := s.ResolveLightningAddress(context.Background(), "alice@example.com")
	if err != nil {
		t.Fatalf("resolve failed: %v", err)
	}
	if gotURL != "https://example.com/.well-known/lnurlp/alice" {
		t.Errorf("fetched %q", gotURL)
	}
	if info.Callback == "" || info.MinSendable != 1000 {
		t.Errorf("unexpected pay info: %+v", info)
	}
}

func TestResolveLightningAddressErrorEnvelope(t *testing.T) {
	s := serviceWithTransport(t, func(r *http.Request) (*http.Response, error) {
		return jsonResponse(200, `{"status":"ERROR","reason":"user not found"}`), nil
	})

	_, err := s.ResolveLightningAddress(context.Background(), "ghost@example.com")
	if err == nil {
		t.Fatal("expected error for LNURL error envelope")
	}
	if !strings.Contains(err.Error(), "user not found") {
		t.Errorf("error %q does not carry the endpoint reason", err)
	}
	if code := ErrorCode(err); code != ErrCodeLNURLFailure {
		t.Errorf("code = %q, want %q", code, ErrCodeLNURLFailure)
	}
}

func TestResolveLightningAddressWrongTag(t *testing.T) {
	s := serviceWithTransport(t, func(r *http.Request) (*http.Response, error) {
		return jsonResponse(200, `{"callback":"https://example.com/cb","minSendable":1,"maxSendable":2,"tag":"withdrawRequest"}`), nil
	})

	_, err := s.ResolveLightningAddress(context.Background(), "alice@example.com")
	if err == nil || !strings.Contains(err.Error(), "payRequest") {
		t.Errorf("expected tag validation error, got %v", err)
	}
}

// 500 sats against a 1000-sat minimum must fail the range check before
// any callback request goes out.
func TestRequestInvoiceRangeRejected(t *testing.T) {
	s := serviceWithTransport(t, func(r *http.Request) (*http.Response, error) {
		t.Fatal("no network request expected for an out-of-range amount")
		return nil, nil
	})

	info := &LNURLPayInfo{
		Callback:    "https://example.com/lnurlp/alice/callback",
		MinSendable: 1000000, // 1000 sats
		MaxSendable: 100000000,
		Tag:         "payRequest",
	}

	_, err := s.RequestInvoice(context.Background(), info, 500, "")
	if err == nil {
		t.Fatal("expected range error")
	}
	var pe *PaymentError
	if !errors.As(err, &pe) || pe.Code != ErrCodeInvalidRange {
		t.Errorf("error = %v, want code %q", err, ErrCodeInvalidRange)
	}

	// Above maximum fails the same way
	_, err = s.RequestInvoice(context.Background(), info, 200000, "")
	if code := ErrorCode(err); code != ErrCodeInvalidRange {
		t.Errorf("above-max code = %q, want %q", code, ErrCodeInvalidRange)
	}
}

func TestRequestInvoice(t *testing.T) {
	var gotQuery map[string][]string
	s := serviceWithTransport(t, func(r *http.Request) (*http.Response, error) {
		gotQuery = r.URL.Query()
		return jsonResponse(200, `{"pr":"lnbc500n1fake","routes":[]}`), nil
	})

	info := &LNURLPayInfo{
		Callback:       "https://example.com/lnurlp/alice/callback",
		MinSendable:    1000,
		MaxSendable:    100000000,
		Tag:            "payRequest",
		CommentAllowed: 10,
	}

	invoice, err := s.RequestInvoice(context.Background(), info, 50, "this comment is too long")
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	if invoice != "lnbc500n1fake" {
		t.Errorf("invoice = %q", invoice)
	}
	if got := gotQuery["amount"]; len(got) != 1 || got[0] != "50000" {
		t.Errorf("amount query = %v, want [50000] (msats)", got)
	}
	if got := gotQuery["comment"]; len(got) != 1 || got[0] != "this comme" {
		t.Errorf("comment query = %v, want truncated to CommentAllowed", got)
	}
}

func TestValidateExternalURL(t *testing.T) {
	cases := []struct {
		url string
		ok  bool
	}{
		{"https://example.com/.well-known/lnurlp/alice", true},
		{"http://example.com/cb", true},
		{"https://localhost/cb", false},
		{"https://127.0.0.1/cb", false},
		{"https://10.0.0.5/cb", false},
		{"https://192.168.1.1/cb", false},
		{"https://service.internal/cb", false},
		{"ftp://example.com/cb", false},
	}
	for _, c := range cases {
		err := validateExternalURL(c.url)
		if (err == nil) != c.ok {
			t.Errorf("validateExternalURL(%q) = %v, want ok=%v", c.url, err, c.ok)
		}
	}
}
