package main

import (
	"encoding/json"
	"log/slog"
	"os"
	"strings"
)

// RecipientType tags how a recipient gets paid.
type RecipientType string

const (
	RecipientNode      RecipientType = "node"      // keysend to a node pubkey
	RecipientLNAddress RecipientType = "lnaddress" // LNURL-pay via user@domain
)

// Recipient is one target of a split payment. Records arrive from feed
// value blocks and the recipients mapping file; the type tag may be absent
// or wrong and is corrected by NormalizeRecipients.
type Recipient struct {
	Address     string        `json:"address"`
	Name        string        `json:"name,omitempty"`
	Type        RecipientType `json:"type,omitempty"`
	Split       int           `json:"split"`
	FixedAmount int64         `json:"fixedAmount,omitempty"` // sats; 0 = unset

	// Set by the normalizer
	PreferredAddress string `json:"preferredAddress,omitempty"`
	OriginalAddress  string `json:"originalAddress,omitempty"`
}

// Domains that show up in recipient names without being Lightning
// addresses (social handles pasted into the name field).
var nameDomainFalsePositives = []string{
	"twitter.com",
	"x.com",
	"instagram.com",
	"youtube.com",
}

// looksLikeLightningAddress reports whether s has the user@domain shape.
// This is a heuristic, not a validated parse.
func looksLikeLightningAddress(s string) bool {
	parts := strings.SplitN(s, "@", 2)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return false
	}
	// Domain needs at least one dot; bare handles like "@alice" don't count
	if !strings.Contains(parts[1], ".") {
		return false
	}
	domain := strings.ToLower(parts[1])
	for _, fp := range nameDomainFalsePositives {
		if domain == fp {
			return false
		}
	}
	return true
}

// isHexNodeKey reports whether s is a 66-character hex node public key.
func isHexNodeKey(s string) bool {
	if len(s) != 66 || strings.Contains(s, "@") {
		return false
	}
	for _, c := range s {
		if !((c >= '0' && c <= '9') || (c >= 'a' && c <= 'f') || (c >= 'A' && c <= 'F')) {
			return false
		}
	}
	return true
}

// NormalizeRecipient assigns an authoritative Type and PreferredAddress.
// Feed data frequently mislabels Lightning addresses as node targets, and
// sometimes the real address lives in the name field. Malformed input falls
// through as "node" by default; the payment attempt fails downstream
// instead of erroring here. Idempotent: normalizing twice is a no-op.
func NormalizeRecipient(r Recipient) Recipient {
	// Already normalized and consistent
	if r.PreferredAddress != "" {
		if r.Type == RecipientLNAddress && strings.Contains(r.PreferredAddress, "@") {
			return r
		}
		if r.Type == RecipientNode && isHexNodeKey(r.PreferredAddress) {
			return r
		}
	}

	switch {
	case r.Type == RecipientNode && looksLikeLightningAddress(r.Name):
		// Known misclassification: the name field holds the real address
		slog.Debug("recipient reclassified from name field",
			"name", r.Name, "original_address", shortID(r.Address))
		r.OriginalAddress = r.Address
		r.Type = RecipientLNAddress
		r.PreferredAddress = r.Name
	case strings.Contains(r.Address, "@"):
		r.Type = RecipientLNAddress
		r.PreferredAddress = r.Address
	case isHexNodeKey(r.Address):
		r.Type = RecipientNode
		r.PreferredAddress = r.Address
	default:
		// Heuristic default; downstream payment will surface the failure
		r.Type = RecipientNode
		r.PreferredAddress = r.Address
	}

	return r
}

// NormalizeRecipients normalizes a batch in place order.
func NormalizeRecipients(recipients []Recipient) []Recipient {
	out := make([]Recipient, len(recipients))
	for i, r := range recipients {
		out[i] = NormalizeRecipient(r)
	}
	return out
}

// RecipientMix partitions a normalized batch by payment path.
type RecipientMix struct {
	LNAddressCount int
	NodeCount      int
}

// MixOf counts recipients per payment path.
func MixOf(recipients []Recipient) RecipientMix {
	var mix RecipientMix
	for _, r := range recipients {
		if r.Type == RecipientLNAddress {
			mix.LNAddressCount++
		} else {
			mix.NodeCount++
		}
	}
	return mix
}

// RecipientsMapping is the on-disk mapping of album/track identifiers to
// their payment recipients.
type RecipientsMapping map[string][]Recipient

// LoadRecipientsMapping reads the recipients mapping file. A missing file
// is not an error (the API accepts inline recipients); malformed entries
// are kept as-is and fail at payment time.
func LoadRecipientsMapping(path string) RecipientsMapping {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			slog.Debug("recipients mapping not found", "path", path)
		} else {
			slog.Warn("could not read recipients mapping", "path", path, "error", err)
		}
		return RecipientsMapping{}
	}

	var mapping RecipientsMapping
	if err := json.Unmarshal(data, &mapping); err != nil {
		slog.Error("invalid JSON in recipients mapping", "path", path, "error", err)
		return RecipientsMapping{}
	}

	// Normalize at ingestion and flag records that resolve to neither a
	// node key nor a Lightning address; they are kept and fail at payment
	// time with a real error.
	for id, recipients := range mapping {
		normalized := NormalizeRecipients(recipients)
		for _, r := range normalized {
			if r.Type == RecipientNode && !isHexNodeKey(r.PreferredAddress) {
				slog.Warn("recipient address is neither a node key nor a Lightning address",
					"entry", id, "address", r.PreferredAddress)
			}
		}
		mapping[id] = normalized
	}

	slog.Info("loaded recipients mapping", "path", path, "entries", len(mapping))
	return mapping
}
