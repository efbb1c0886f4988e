package main

import (
	"log/slog"
	"os"
	"strings"
)

// Config holds service configuration read from the environment.
// Connector settings are re-read on every capability probe (see
// capabilities.go) to match how the web client re-read its persisted
// connector config on every payment attempt; everything else is read once
// at startup.
type Config struct {
	Port           string
	RecipientsFile string

	// Nostr
	PublishRelays []string // boost note targets
	BoostSecret   []byte   // hex-decoded key used to sign boost notes

	// Bridge
	BridgeConfigURL  string
	BridgeKeysendURL string

	// Backends
	RedisURL    string
	DatabaseURL string

	// App identity stamped into boost TLV records
	AppName    string
	AppVersion string
}

// Connector env keys. The web client stored these under two generations of
// key names; both are honored, current name wins.
const (
	envConnectorType       = "WALLET_CONNECTOR_TYPE"
	envConnectorTypeLegacy = "BC_CONNECTOR_TYPE"
	envNWCConnection       = "NWC_CONNECTION_STRING"
	envNWCConnectionLegacy = "NWC_URL"
)

// LoadConfig builds a Config from the environment.
func LoadConfig() *Config {
	cfg := &Config{
		Port:             getenvDefault("PORT", "8080"),
		RecipientsFile:   getenvDefault("RECIPIENTS_FILE", "config/recipients.json"),
		BridgeConfigURL:  os.Getenv("BRIDGE_CONFIG_URL"),
		BridgeKeysendURL: os.Getenv("BRIDGE_KEYSEND_URL"),
		RedisURL:         os.Getenv("REDIS_URL"),
		DatabaseURL:      os.Getenv("DATABASE_URL"),
		AppName:          getenvDefault("APP_NAME", "HPM Lightning"),
		AppVersion:       getenvDefault("APP_VERSION", "1.0"),
	}

	relays := os.Getenv("PUBLISH_RELAYS")
	if relays == "" {
		cfg.PublishRelays = defaultPublishRelays()
	} else {
		for _, r := range strings.Split(relays, ",") {
			if r = strings.TrimSpace(r); r != "" {
				cfg.PublishRelays = append(cfg.PublishRelays, r)
			}
		}
	}

	if secretHex := os.Getenv("BOOST_SECRET_KEY"); secretHex != "" {
		secret, err := decodeHexKey(secretHex)
		if err != nil {
			slog.Warn("invalid BOOST_SECRET_KEY, boost notes disabled", "error", err)
		} else {
			cfg.BoostSecret = secret
		}
	}

	return cfg
}

// ConnectorType returns the currently configured wallet connector type,
// checking the legacy key name for backward compatibility.
func ConnectorType() string {
	if v := os.Getenv(envConnectorType); v != "" {
		return v
	}
	return os.Getenv(envConnectorTypeLegacy)
}

// NWCConnectionString returns the configured NWC URI, checking the legacy
// key name for backward compatibility.
func NWCConnectionString() string {
	if v := os.Getenv(envNWCConnection); v != "" {
		return v
	}
	return os.Getenv(envNWCConnectionLegacy)
}

func defaultPublishRelays() []string {
	return []string{
		"wss://relay.damus.io",
		"wss://relay.nostr.band",
		"wss://relay.primal.net",
	}
}

func getenvDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
