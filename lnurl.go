package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// LNURL-pay client for Lightning address recipients.

const (
	lnurlHTTPTimeout = 10 * time.Second
	lnurlPayInfoTTL  = 5 * time.Minute
)

// validateExternalURL validates that a URL is safe to fetch (SSRF prevention)
func validateExternalURL(rawURL string) error {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("invalid URL: %v", err)
	}

	if parsed.Scheme != "https" && parsed.Scheme != "http" {
		return fmt.Errorf("invalid scheme: %s (expected https)", parsed.Scheme)
	}

	// Block localhost and common internal hostnames
	host := strings.ToLower(parsed.Hostname())
	if host == "localhost" || host == "127.0.0.1" || host == "::1" ||
		host == "0.0.0.0" || strings.HasSuffix(host, ".local") ||
		strings.HasSuffix(host, ".internal") {
		return errors.New("internal hosts not allowed")
	}

	// Block private IP ranges (basic check)
	if strings.HasPrefix(host, "10.") ||
		strings.HasPrefix(host, "192.168.") ||
		strings.HasPrefix(host, "172.16.") ||
		strings.HasPrefix(host, "172.17.") ||
		strings.HasPrefix(host, "172.18.") ||
		strings.HasPrefix(host, "172.19.") ||
		strings.HasPrefix(host, "172.2") ||
		strings.HasPrefix(host, "172.30.") ||
		strings.HasPrefix(host, "172.31.") ||
		strings.HasPrefix(host, "169.254.") {
		return errors.New("private IP ranges not allowed")
	}

	return nil
}

// LNURLPayInfo contains the payment endpoint info from the initial fetch
type LNURLPayInfo struct {
	Callback       string `json:"callback"`
	MinSendable    int64  `json:"minSendable"` // millisats
	MaxSendable    int64  `json:"maxSendable"` // millisats
	Metadata       string `json:"metadata"`
	Tag            string `json:"tag"` // should be "payRequest"
	CommentAllowed int    `json:"commentAllowed"`
}

// LNURLPayResponse contains the invoice from the callback
type LNURLPayResponse struct {
	PR     string `json:"pr"` // BOLT11 invoice
	Routes []any  `json:"routes"`
}

// LNURLError is the LNURL error envelope
type LNURLError struct {
	Status string `json:"status"` // "ERROR"
	Reason string `json:"reason"`
}

// lnurlEndpoint derives the well-known URL for a Lightning address.
func lnurlEndpoint(address string) (string, error) {
	parts := strings.SplitN(address, "@", 2)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", paymentErr(ErrCodeInvalidAddress, "invalid Lightning address %q: expected user@domain", address)
	}
	return fmt.Sprintf("https://%s/.well-known/lnurlp/%s", parts[1], strings.ToLower(parts[0])), nil
}

// ResolveLightningAddress fetches LNURL-pay info for a user@domain address.
// Results are cached briefly and concurrent lookups for the same address
// are deduplicated.
func (s *PaymentService) ResolveLightningAddress(ctx context.Context, address string) (*LNURLPayInfo, error) {
	cacheKey := "lnurlp:" + strings.ToLower(address)
	if s.cache != nil {
		if data, found, _ := s.cache.Get(ctx, cacheKey); found {
			var info LNURLPayInfo
			if err := json.Unmarshal(data, &info); err == nil {
				IncrementCacheHit()
				return &info, nil
			}
		}
		IncrementCacheMiss()
	}

	result, err, _ := s.lnurlGroup.Do(cacheKey, func() (interface{}, error) {
		endpoint, err := lnurlEndpoint(address)
		if err != nil {
			return nil, err
		}
		return s.fetchLNURLPayInfo(ctx, endpoint)
	})
	if err != nil {
		return nil, err
	}

	info := result.(*LNURLPayInfo)
	if s.cache != nil {
		if data, err := json.Marshal(info); err == nil {
			s.cache.Set(ctx, cacheKey, data, lnurlPayInfoTTL)
		}
	}
	return info, nil
}

// fetchLNURLPayInfo fetches and validates the LNURL-pay parameters.
func (s *PaymentService) fetchLNURLPayInfo(ctx context.Context, lnurlURL string) (*LNURLPayInfo, error) {
	if err := validateExternalURL(lnurlURL); err != nil {
		return nil, wrapPaymentErr(ErrCodeLNURLFailure, err, "invalid lnurl")
	}

	body, err := s.lnurlGet(ctx, lnurlURL)
	if err != nil {
		return nil, err
	}

	// Check for error envelope first
	var lnurlErr LNURLError
	if err := json.Unmarshal(body, &lnurlErr); err == nil && lnurlErr.Status == "ERROR" {
		return nil, paymentErr(ErrCodeLNURLFailure, "lnurl error: %s", lnurlErr.Reason)
	}

	var info LNURLPayInfo
	if err := json.Unmarshal(body, &info); err != nil {
		return nil, wrapPaymentErr(ErrCodeLNURLFailure, err, "failed to parse lnurl response")
	}

	if info.Tag != "payRequest" {
		return nil, paymentErr(ErrCodeLNURLFailure, "unexpected lnurl tag: %s (expected payRequest)", info.Tag)
	}
	if info.Callback == "" {
		return nil, paymentErr(ErrCodeLNURLFailure, "lnurl missing callback")
	}
	if info.MinSendable <= 0 || info.MaxSendable <= 0 {
		return nil, paymentErr(ErrCodeLNURLFailure, "lnurl missing amount limits")
	}

	return &info, nil
}

// RequestInvoice requests a BOLT11 invoice from the LNURL callback.
// amountSats is validated against the endpoint's sendable range.
func (s *PaymentService) RequestInvoice(ctx context.Context, info *LNURLPayInfo, amountSats int64, comment string) (string, error) {
	if err := validateExternalURL(info.Callback); err != nil {
		return "", wrapPaymentErr(ErrCodeLNURLFailure, err, "invalid callback URL")
	}

	amountMsats := amountSats * 1000
	if amountMsats < info.MinSendable {
		return "", paymentErr(ErrCodeInvalidRange, "amount %d msats below minimum %d", amountMsats, info.MinSendable)
	}
	if amountMsats > info.MaxSendable {
		return "", paymentErr(ErrCodeInvalidRange, "amount %d msats above maximum %d", amountMsats, info.MaxSendable)
	}

	callbackURL, err := url.Parse(info.Callback)
	if err != nil {
		return "", wrapPaymentErr(ErrCodeLNURLFailure, err, "invalid callback URL")
	}

	query := callbackURL.Query()
	query.Set("amount", fmt.Sprintf("%d", amountMsats))
	if comment != "" && info.CommentAllowed > 0 {
		if len(comment) > info.CommentAllowed {
			comment = comment[:info.CommentAllowed]
		}
		query.Set("comment", comment)
	}
	callbackURL.RawQuery = query.Encode()

	body, err := s.lnurlGet(ctx, callbackURL.String())
	if err != nil {
		return "", err
	}

	var lnurlErr LNURLError
	if err := json.Unmarshal(body, &lnurlErr); err == nil && lnurlErr.Status == "ERROR" {
		return "", paymentErr(ErrCodeLNURLFailure, "callback error: %s", lnurlErr.Reason)
	}

	var payResp LNURLPayResponse
	if err := json.Unmarshal(body, &payResp); err != nil {
		return "", wrapPaymentErr(ErrCodeLNURLFailure, err, "failed to parse callback response")
	}

	if payResp.PR == "" {
		return "", paymentErr(ErrCodeLNURLFailure, "callback returned empty invoice")
	}

	return payResp.PR, nil
}

// lnurlGet performs one GET against an LNURL endpoint.
func (s *PaymentService) lnurlGet(ctx context.Context, rawURL string) ([]byte, error) {
	reqCtx, cancel := context.WithTimeout(ctx, lnurlHTTPTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, "GET", rawURL, nil)
	if err != nil {
		return nil, wrapPaymentErr(ErrCodeLNURLFailure, err, "failed to create request")
	}
	req.Header.Set("Accept", "application/json")

	resp, err := s.httpc.Do(req)
	if err != nil {
		return nil, wrapPaymentErr(ErrCodeLNURLFailure, err, "failed to fetch lnurl endpoint")
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, paymentErr(ErrCodeLNURLFailure, "lnurl endpoint returned status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, wrapPaymentErr(ErrCodeLNURLFailure, err, "failed to read response")
	}
	return body, nil
}

// SatsToMsats converts satoshis to millisatoshis
func SatsToMsats(sats int64) int64 {
	return sats * 1000
}

// MsatsToSats converts millisatoshis to satoshis (rounds down)
func MsatsToSats(msats int64) int64 {
	return msats / 1000
}
