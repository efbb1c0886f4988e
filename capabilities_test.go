package main

import (
	"context"
	"testing"
)

func TestIsCashuWallet(t *testing.T) {
	cases := []struct {
		connectorType string
		nwcURI        string
		want          bool
	}{
		{"cashu", "", true},
		{"Minibits", "", true},
		{"npub.cash", "", true},
		{"nwc", "nostr+walletconnect://abc?relay=wss://relay.cashu.space", true},
		{"nwc", "nostr+walletconnect://abc?relay=wss://mint.example.com", true},
		{"nwc", "nostr+walletconnect://abc?relay=wss://relay.getalby.com/v1", false},
		{"alby", "", false},
		{"", "", false},
	}
	for _, c := range cases {
		if got := isCashuWallet(c.connectorType, c.nwcURI); got != c.want {
			t.Errorf("isCashuWallet(%q, %q) = %v, want %v", c.connectorType, c.nwcURI, got, c.want)
		}
	}
}

func TestIsNWCConnector(t *testing.T) {
	cases := []struct {
		connectorType string
		want          bool
	}{
		{"nwc", true},
		{"NWC", true},
		{"nwc-alby", true},
		{"cashu", true},
		{"minibits", true},
		{"webln", false},
		{"", false},
	}
	for _, c := range cases {
		if got := isNWCConnector(c.connectorType); got != c.want {
			t.Errorf("isNWCConnector(%q) = %v, want %v", c.connectorType, got, c.want)
		}
	}
}

// Legacy env key names are honored, with the current name winning.
func TestConnectorEnvFallback(t *testing.T) {
	t.Setenv(envConnectorType, "")
	t.Setenv(envConnectorTypeLegacy, "nwc-legacy")
	if got := ConnectorType(); got != "nwc-legacy" {
		t.Errorf("ConnectorType() = %q, want legacy value", got)
	}

	t.Setenv(envConnectorType, "nwc")
	if got := ConnectorType(); got != "nwc" {
		t.Errorf("ConnectorType() = %q, current key must win", got)
	}

	t.Setenv(envNWCConnection, "")
	t.Setenv(envNWCConnectionLegacy, "nostr+walletconnect://legacy")
	if got := NWCConnectionString(); got != "nostr+walletconnect://legacy" {
		t.Errorf("NWCConnectionString() = %q, want legacy value", got)
	}
}

func TestProbeCapabilitiesNoConnectors(t *testing.T) {
	s := newTestService(t, nil)

	caps := s.ProbeCapabilities(context.Background())
	if caps.WebLNAvailable || caps.NWCConnected || caps.BridgeAvailable || caps.SupportsKeysend {
		t.Errorf("empty service reported capabilities: %+v", caps)
	}
}

func TestProbeCapabilitiesDirectWallet(t *testing.T) {
	s := newTestService(t, &fakeWallet{})

	caps := s.ProbeCapabilities(context.Background())
	if !caps.WebLNAvailable {
		t.Error("direct wallet not reported as available")
	}
	if !caps.SupportsKeysend {
		t.Error("keysend-capable wallet not reported")
	}
}

func TestWalletUsable(t *testing.T) {
	if walletUsable(nil) {
		t.Error("nil wallet reported usable")
	}
	if !walletUsable(&fakeWallet{}) {
		t.Error("wallet with methods reported unusable")
	}
	if walletUsable(&disabledWallet{}) {
		t.Error("wallet with no methods and not enabled reported usable")
	}
}

// disabledWallet is present but exposes nothing.
type disabledWallet struct{ fakeWallet }

func (d *disabledWallet) Enabled() bool     { return false }
func (d *disabledWallet) Methods() []string { return nil }
