package main

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcec/v2/schnorr"
)

// Event represents a Nostr event (NIP-01)
type Event struct {
	ID        string     `json:"id"`
	PubKey    string     `json:"pubkey"`
	CreatedAt int64      `json:"created_at"`
	Kind      int        `json:"kind"`
	Tags      [][]string `json:"tags"`
	Content   string     `json:"content"`
	Sig       string     `json:"sig"`
}

// NewSignedEvent builds a signed event from the given key and fields.
func NewSignedEvent(privKey []byte, kind int, tags [][]string, content string) (*Event, error) {
	pubKey, err := GetPublicKey(privKey)
	if err != nil {
		return nil, fmt.Errorf("failed to derive public key: %v", err)
	}

	event := &Event{
		PubKey:    hex.EncodeToString(pubKey),
		CreatedAt: time.Now().Unix(),
		Kind:      kind,
		Tags:      tags,
		Content:   content,
	}

	event.ID = calculateEventID(event)
	event.Sig = signEvent(privKey, event.ID)
	if event.Sig == "" {
		return nil, fmt.Errorf("failed to sign event")
	}

	return event, nil
}

func calculateEventID(event *Event) string {
	// [0, pubkey, created_at, kind, tags, content]
	serialized := fmt.Sprintf(`[0,"%s",%d,%d,%s,"%s"]`,
		event.PubKey,
		event.CreatedAt,
		event.Kind,
		mustJSON(event.Tags),
		escapeJSON(event.Content),
	)

	hash := sha256.Sum256([]byte(serialized))
	return hex.EncodeToString(hash[:])
}

func signEvent(privKeyBytes []byte, eventID string) string {
	if len(privKeyBytes) == 0 {
		slog.Error("failed to sign event: empty private key")
		return ""
	}

	privKey, _ := btcec.PrivKeyFromBytes(privKeyBytes)
	if privKey == nil {
		slog.Error("failed to sign event: invalid private key")
		return ""
	}

	eventIDBytes, err := hex.DecodeString(eventID)
	if err != nil {
		slog.Error("failed to sign event: invalid event ID hex", "error", err)
		return ""
	}

	sig, err := schnorr.Sign(privKey, eventIDBytes)
	if err != nil {
		slog.Error("failed to sign event", "error", err)
		return ""
	}

	return hex.EncodeToString(sig.Serialize())
}

func mustJSON(v interface{}) string {
	b, _ := json.Marshal(v)
	return string(b)
}

func escapeJSON(s string) string {
	b, err := json.Marshal(s)
	if err != nil || len(b) < 2 {
		// Fallback: return original string (shouldn't happen for valid strings)
		return s
	}
	// Remove surrounding quotes
	return string(b[1 : len(b)-1])
}
