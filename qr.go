package main

import (
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/skip2/go-qrcode"
)

// Invoice QR rendering for wallets that scan instead of paste.

const (
	qrMinSize = 128
	qrMaxSize = 1024
)

// handleInvoiceQR renders a BOLT11 invoice as a PNG QR code.
// GET /api/invoice/qr?invoice=lnbc...&size=256
func (s *PaymentService) handleInvoiceQR(w http.ResponseWriter, r *http.Request) {
	invoice := strings.TrimSpace(r.URL.Query().Get("invoice"))
	if invoice == "" {
		http.Error(w, "missing invoice parameter", http.StatusBadRequest)
		return
	}
	// BOLT11 invoices are bech32; reject anything that obviously isn't one
	// before burning cycles on encoding.
	lower := strings.ToLower(invoice)
	if !strings.HasPrefix(lower, "ln") || len(invoice) > 4096 {
		http.Error(w, "not a lightning invoice", http.StatusBadRequest)
		return
	}

	size := 256
	if v := r.URL.Query().Get("size"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < qrMinSize || n > qrMaxSize {
			http.Error(w, "size must be between 128 and 1024", http.StatusBadRequest)
			return
		}
		size = n
	}

	// Uppercase bech32 yields the smaller alphanumeric QR mode.
	png, err := qrcode.Encode(strings.ToUpper(invoice), qrcode.Medium, size)
	if err != nil {
		slog.Error("failed to generate QR code", "error", err)
		http.Error(w, "failed to generate QR code", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "no-store")
	w.Write(png)
}
