package main

import (
	"context"
	"strings"
)

// Wallet capability probing. Capabilities are ephemeral: recomputed fresh
// at the start of every payment attempt, never persisted. Staleness across
// attempts is tolerated: we recompute rather than trust stored state.

// WalletCapabilities is the probed snapshot the router decides on.
type WalletCapabilities struct {
	WebLNAvailable  bool   `json:"weblnAvailable"`
	NWCConnected    bool   `json:"nwcConnected"`
	ConnectorType   string `json:"connectorType,omitempty"`
	IsCashuWallet   bool   `json:"isCashuWallet"`
	BridgeAvailable bool   `json:"bridgeAvailable"`
	SupportsKeysend bool   `json:"supportsKeysend"`
}

// Connector type strings that identify Cashu-backed wallets.
var cashuConnectorTypes = map[string]bool{
	"cashu":     true,
	"cashu.me":  true,
	"minibits":  true,
	"npub.cash": true,
}

// isCashuWallet detects Cashu-class wallets from the connector type or,
// failing that, textually from the NWC connection string.
func isCashuWallet(connectorType, nwcURI string) bool {
	if cashuConnectorTypes[strings.ToLower(connectorType)] {
		return true
	}
	lower := strings.ToLower(nwcURI)
	return strings.Contains(lower, "cashu") || strings.Contains(lower, "mint")
}

// isNWCConnector reports whether the user explicitly selected an NWC-class
// connector.
func isNWCConnector(connectorType string) bool {
	t := strings.ToLower(connectorType)
	return strings.HasPrefix(t, "nwc") || cashuConnectorTypes[t]
}

// ProbeCapabilities inspects the configured connectors and the bridge
// endpoint. The bridge probe is a network call; its failure means "bridge
// unavailable", never an error.
func (s *PaymentService) ProbeCapabilities(ctx context.Context) WalletCapabilities {
	connectorType := ConnectorType()
	nwcURI := NWCConnectionString()

	caps := WalletCapabilities{
		ConnectorType: connectorType,
	}

	// A relay drop between batches shows up here as IsConnected()==false;
	// try to bring the session back before reporting it dead.
	s.ensureNWC(ctx)

	caps.WebLNAvailable = walletUsable(s.wallet)
	caps.NWCConnected = s.nwc != nil && s.nwc.IsConnected()
	caps.IsCashuWallet = isCashuWallet(connectorType, nwcURI)
	caps.BridgeAvailable = s.bridgeAvailable(ctx)

	// Non-Cashu NWC wallets are assumed to support keysend natively
	caps.SupportsKeysend = (caps.NWCConnected && !caps.IsCashuWallet) ||
		walletHasMethod(s.wallet, "keysend")

	return caps
}
