package main

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"time"
)

// HTTP surface for the payment service. All handlers are methods on
// PaymentService so tests can stand one up with injected doubles.

const maxBoostBodyBytes = 1 << 20 // 1 MiB

type errorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("failed to encode response", "error", err)
	}
}

func writeJSONError(w http.ResponseWriter, status int, message, code string) {
	writeJSON(w, status, errorResponse{Error: message, Code: code})
}

// handleBoost executes one boost batch.
// POST /api/boost
func (s *PaymentService) handleBoost(w http.ResponseWriter, r *http.Request) {
	var req BoostRequest
	r.Body = http.MaxBytesReader(w, r.Body, maxBoostBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid request body", "")
		return
	}
	if req.AmountSats <= 0 {
		writeJSONError(w, http.StatusBadRequest, "amount must be positive", "")
		return
	}
	if len(req.Recipients) == 0 && req.AlbumID == "" {
		writeJSONError(w, http.StatusBadRequest, "recipients or albumId required", "")
		return
	}

	batch := s.ExecuteBoost(r.Context(), req)

	LoggerFromContext(r.Context()).Info("boost batch finished",
		"album_id", req.AlbumID,
		"succeeded", batch.SuccessCount,
		"total", batch.TotalCount,
		"skipped", batch.SkippedCount)

	// Partial success still reports 200; only a total failure maps to an
	// error status so clients can branch on it.
	if batch.Failure != nil {
		writeJSON(w, http.StatusPaymentRequired, batch)
		return
	}
	writeJSON(w, http.StatusOK, batch)
}

type walletStatusResponse struct {
	WalletCapabilities
	WalletPubKey string   `json:"walletPubkey,omitempty"`
	Alias        string   `json:"alias,omitempty"`
	Network      string   `json:"network,omitempty"`
	Methods      []string `json:"methods,omitempty"`
}

// handleWalletStatus reports the current wallet capabilities, enriched
// with get_info when an NWC connection is live.
// GET /api/wallet/status
func (s *PaymentService) handleWalletStatus(w http.ResponseWriter, r *http.Request) {
	resp := walletStatusResponse{WalletCapabilities: s.ProbeCapabilities(r.Context())}

	if s.nwc != nil {
		resp.WalletPubKey = s.nwc.WalletPubKeyHex()
	}
	if s.nwc != nil && s.nwc.IsConnected() {
		infoCtx, cancel := context.WithTimeout(r.Context(), 15*time.Second)
		defer cancel()
		if info, err := s.nwc.GetInfo(infoCtx); err == nil {
			resp.Alias = info.Alias
			resp.Network = info.Network
			resp.Methods = info.Methods
		} else {
			LoggerFromContext(r.Context()).Debug("get_info failed", "error", err)
		}
	}

	writeJSON(w, http.StatusOK, resp)
}

// handleWalletBalance returns the NWC wallet balance in sats.
// GET /api/wallet/balance
func (s *PaymentService) handleWalletBalance(w http.ResponseWriter, r *http.Request) {
	if s.nwc == nil || !s.nwc.IsConnected() {
		writeJSONError(w, http.StatusServiceUnavailable, "no wallet connection", string(ErrCodeWalletUnavailable))
		return
	}

	balance, err := s.nwc.GetBalance(r.Context())
	if err != nil {
		writeJSONError(w, http.StatusBadGateway, err.Error(), string(ErrorCode(err)))
		return
	}

	writeJSON(w, http.StatusOK, map[string]int64{
		"balance_sats":  MsatsToSats(balance.Balance),
		"balance_msats": balance.Balance,
	})
}

// handleTransactions lists wallet transactions via NWC, falling back to
// the boost ledger when the wallet is unreachable.
// GET /api/transactions?limit=50
func (s *PaymentService) handleTransactions(w http.ResponseWriter, r *http.Request) {
	limit := 50
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 || n > 200 {
			writeJSONError(w, http.StatusBadRequest, "limit must be between 1 and 200", "")
			return
		}
		limit = n
	}

	if s.nwc != nil && s.nwc.IsConnected() {
		txs, err := s.nwc.ListTransactions(r.Context(), limit)
		if err == nil {
			writeJSON(w, http.StatusOK, map[string]interface{}{
				"source":       "wallet",
				"transactions": txs.Transactions,
			})
			return
		}
		LoggerFromContext(r.Context()).Warn("list_transactions failed, falling back to ledger", "error", err)
	}

	if s.ledger == nil {
		writeJSONError(w, http.StatusServiceUnavailable, "no wallet connection and no ledger configured", string(ErrCodeWalletUnavailable))
		return
	}

	rows, err := s.ledger.RecentBoosts(r.Context(), limit)
	if err != nil {
		writeJSONError(w, http.StatusInternalServerError, "failed to read ledger", "")
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"source":       "ledger",
		"transactions": rows,
	})
}

type makeInvoiceRequest struct {
	AmountSats  int64  `json:"amount"`
	Description string `json:"description,omitempty"`
}

// handleMakeInvoice creates an invoice on the connected NWC wallet.
// POST /api/invoice
func (s *PaymentService) handleMakeInvoice(w http.ResponseWriter, r *http.Request) {
	var req makeInvoiceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid request body", "")
		return
	}
	if req.AmountSats <= 0 {
		writeJSONError(w, http.StatusBadRequest, "amount must be positive", "")
		return
	}
	if s.nwc == nil || !s.nwc.IsConnected() {
		writeJSONError(w, http.StatusServiceUnavailable, "no wallet connection", string(ErrCodeWalletUnavailable))
		return
	}

	inv, err := s.nwc.MakeInvoice(r.Context(), req.AmountSats, req.Description)
	if err != nil {
		writeJSONError(w, http.StatusBadGateway, err.Error(), string(ErrorCode(err)))
		return
	}
	writeJSON(w, http.StatusOK, inv)
}

// handleHealth is a liveness probe; it never touches the wallet.
// GET /health
func (s *PaymentService) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":        "ok",
		"nwc_connected": s.nwc != nil && s.nwc.IsConnected(),
		"uptime":        time.Since(serviceStartTime).String(),
	})
}
