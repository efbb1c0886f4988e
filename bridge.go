package main

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"time"
)

// Keysend bridge integration. Cashu-class wallets cannot send keysend
// natively; the bridge accepts an invoice-funded keysend request and
// forwards it to the destination node.

const (
	bridgeHTTPTimeout = 15 * time.Second
	bridgeProbeTTL    = 1 * time.Minute
)

// bridgeConfigResponse is the bridge configuration endpoint's reply.
type bridgeConfigResponse struct {
	IsConfigured bool `json:"isConfigured"`
}

// bridgeKeysendRequest is the bridge-mediated keysend submission.
type bridgeKeysendRequest struct {
	Destination   string            `json:"destination"`
	AmountSats    int64             `json:"amountSats"`
	CustomRecords map[uint64]string `json:"customRecords,omitempty"`
}

// bridgeKeysendResponse is the bridge's reply to a keysend submission.
type bridgeKeysendResponse struct {
	Preimage string `json:"preimage,omitempty"`
	Error    string `json:"error,omitempty"`
}

// bridgeAvailable probes the bridge configuration endpoint. Probe failure
// means "bridge unavailable", never an error requiring retry. Concurrent
// probes are deduplicated and the answer is cached briefly.
func (s *PaymentService) bridgeAvailable(ctx context.Context) bool {
	if s.cfg.BridgeConfigURL == "" {
		return false
	}

	const cacheKey = "bridge:configured"
	if s.cache != nil {
		if data, found, _ := s.cache.Get(ctx, cacheKey); found {
			return string(data) == "1"
		}
	}

	result, _, _ := s.bridgeGroup.Do(cacheKey, func() (interface{}, error) {
		return s.probeBridge(ctx), nil
	})

	available, _ := result.(bool)
	if s.cache != nil {
		val := []byte("0")
		if available {
			val = []byte("1")
		}
		s.cache.Set(ctx, cacheKey, val, bridgeProbeTTL)
	}
	return available
}

func (s *PaymentService) probeBridge(ctx context.Context) bool {
	reqCtx, cancel := context.WithTimeout(ctx, bridgeHTTPTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, "GET", s.cfg.BridgeConfigURL, nil)
	if err != nil {
		return false
	}

	resp, err := s.httpc.Do(req)
	if err != nil {
		slog.Debug("bridge probe failed", "error", err)
		return false
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		slog.Debug("bridge probe returned non-OK", "status", resp.StatusCode)
		return false
	}

	var config bridgeConfigResponse
	if err := json.NewDecoder(resp.Body).Decode(&config); err != nil {
		return false
	}
	return config.IsConfigured
}

// KeysendViaBridge submits a bridge-mediated keysend payment.
func (s *PaymentService) KeysendViaBridge(ctx context.Context, destination string, amountSats int64, customRecords map[uint64]string) (string, error) {
	if s.cfg.BridgeKeysendURL == "" {
		return "", paymentErr(ErrCodeBridgeUnavailable, "bridge keysend endpoint not configured")
	}

	payload, err := json.Marshal(bridgeKeysendRequest{
		Destination:   destination,
		AmountSats:    amountSats,
		CustomRecords: customRecords,
	})
	if err != nil {
		return "", wrapPaymentErr(ErrCodeBridgeUnavailable, err, "failed to encode bridge request")
	}

	reqCtx, cancel := context.WithTimeout(ctx, bridgeHTTPTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, "POST", s.cfg.BridgeKeysendURL, bytes.NewReader(payload))
	if err != nil {
		return "", wrapPaymentErr(ErrCodeBridgeUnavailable, err, "failed to create bridge request")
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.httpc.Do(req)
	if err != nil {
		return "", wrapPaymentErr(ErrCodeBridgeUnavailable, err, "bridge request failed")
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", wrapPaymentErr(ErrCodeBridgeUnavailable, err, "failed to read bridge response")
	}

	if resp.StatusCode != http.StatusOK {
		return "", paymentErr(ErrCodeBridgeUnavailable, "bridge returned status %d", resp.StatusCode)
	}

	var result bridgeKeysendResponse
	if err := json.Unmarshal(body, &result); err != nil {
		return "", wrapPaymentErr(ErrCodeBridgeUnavailable, err, "failed to parse bridge response")
	}
	if result.Error != "" {
		return "", paymentErr(ErrCodeBridgeUnavailable, "bridge keysend failed: %s", result.Error)
	}

	return result.Preimage, nil
}
