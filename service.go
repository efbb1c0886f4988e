package main

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"golang.org/x/sync/singleflight"

	"hpm-lightning/internal/cache"
	"hpm-lightning/internal/ledger"
)

// PaymentService owns the wallet connections and executes boost payment
// batches. Explicitly constructed and torn down by main, with no
// module-level singletons, so tests inject doubles freely.
type PaymentService struct {
	cfg     *Config
	wallet  Wallet     // direct WebLN-shaped wallet, may be nil
	nwc     *NWCClient // may be nil when no NWC URI is configured
	cache   cache.Backend
	ledger  *ledger.Ledger // optional boost history
	mapping RecipientsMapping
	httpc   *http.Client

	denylist map[string]bool

	lnurlGroup  singleflight.Group
	bridgeGroup singleflight.Group
}

// Node pubkeys known to be offline. Payments to them are skipped rather
// than burned on guaranteed routing failures.
var knownOfflineNodes = []string{
	"02b9c93e93ee35aa7a0cd2e88e58b3b072a5d327a46fa6b1b2bdf8c6f0a7b9d1e2",
}

// NewPaymentService wires a service from config and injected backends.
// wallet and nwc may be nil; ledger and cache may be nil.
func NewPaymentService(cfg *Config, wallet Wallet, nwc *NWCClient, cacheBackend cache.Backend, ldg *ledger.Ledger) *PaymentService {
	s := &PaymentService{
		cfg:      cfg,
		wallet:   wallet,
		nwc:      nwc,
		cache:    cacheBackend,
		ledger:   ldg,
		mapping:  LoadRecipientsMapping(cfg.RecipientsFile),
		httpc:    &http.Client{Timeout: 30 * time.Second},
		denylist: make(map[string]bool),
	}

	for _, node := range knownOfflineNodes {
		s.denylist[node] = true
	}

	return s
}

// Connect establishes the NWC relay connection when one is configured.
// A connection failure is logged, not fatal: capabilities are re-probed
// per payment and the router degrades accordingly.
func (s *PaymentService) Connect(ctx context.Context) {
	if s.nwc == nil {
		return
	}
	if err := s.nwc.Connect(ctx); err != nil {
		slog.Warn("NWC connection failed, continuing without it", "error", err)
	}
}

// ensureNWC re-dials the wallet relay when a configured client has lost
// its connection. A failed attempt simply leaves the client disconnected
// and the router falls back to another method.
func (s *PaymentService) ensureNWC(ctx context.Context) {
	if s.nwc == nil || s.nwc.IsConnected() {
		return
	}
	if err := s.nwc.Connect(ctx); err != nil {
		slog.Warn("NWC reconnect failed", "error", err)
	}
}

// Close tears down wallet connections and backends.
func (s *PaymentService) Close() {
	if s.nwc != nil {
		s.nwc.Close()
	}
	if s.cache != nil {
		s.cache.Close()
	}
	if s.ledger != nil {
		s.ledger.Close()
	}
}

// RecipientsFor returns the mapped recipients for an album/track
// identifier, or nil when unmapped.
func (s *PaymentService) RecipientsFor(id string) []Recipient {
	return s.mapping[id]
}
