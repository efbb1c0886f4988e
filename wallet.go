package main

import (
	"context"
)

// Wallet is the WebLN-shaped wallet surface. In the web client this was the
// browser-injected wallet object; here it is an explicitly constructed
// service owned by the caller, which also makes test doubles trivial.
type Wallet interface {
	// Enable prepares the wallet for use. Safe to call repeatedly.
	Enable(ctx context.Context) error

	// Enabled reports whether the wallet has been explicitly enabled.
	Enabled() bool

	// Methods lists the capability methods the wallet exposes
	// (e.g. "sendPayment", "keysend", "makeInvoice").
	Methods() []string

	// SendPayment pays a BOLT11 invoice and returns the preimage.
	SendPayment(ctx context.Context, invoice string) (string, error)

	// Keysend sends a spontaneous payment with TLV custom records.
	Keysend(ctx context.Context, params KeysendParams) (string, error)
}

// KeysendParams describes one keysend payment.
type KeysendParams struct {
	Destination   string            // 66-char hex node pubkey
	AmountSats    int64             // satoshis; converted to msats where needed
	CustomRecords map[uint64]string // TLV type -> payload
}

// walletHasMethod checks the wallet's capability list.
func walletHasMethod(w Wallet, name string) bool {
	if w == nil {
		return false
	}
	for _, m := range w.Methods() {
		if m == name {
			return true
		}
	}
	return false
}

// walletUsable mirrors the capability check the web client ran against the
// injected wallet object: present AND (explicitly enabled OR exposing any
// capability method). Method presence alone counts as a signal.
func walletUsable(w Wallet) bool {
	if w == nil {
		return false
	}
	return w.Enabled() || len(w.Methods()) > 0
}
