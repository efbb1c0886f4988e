package main

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net"
	"net/url"
	"strings"
	"time"

	"github.com/gorilla/websocket"
)

// Boost note publishing. After a batch lands at least one payment, a
// kind 1 note describing the boost is signed with the service key and
// published fire-and-forget. Failures are logged only; they never affect
// payment reporting.

const boostNotePublishTimeout = 10 * time.Second

// isRelayURLSafe validates that a relay URL is safe to connect to.
// Allows localhost for development but blocks other private ranges.
func isRelayURLSafe(relayURL string) bool {
	parsed, err := url.Parse(relayURL)
	if err != nil {
		return false
	}
	if parsed.Scheme != "ws" && parsed.Scheme != "wss" {
		return false
	}

	host := parsed.Hostname()
	if host == "" {
		return false
	}
	if host == "localhost" || host == "127.0.0.1" || host == "::1" {
		return true
	}

	ips, err := net.LookupIP(host)
	if err != nil {
		// Unresolvable might still be a valid external host; block the
		// obvious internal names
		return !strings.HasSuffix(host, ".local") && !strings.HasSuffix(host, ".internal")
	}

	for _, ip := range ips {
		if ip.IsLoopback() {
			continue
		}
		if ip.IsPrivate() || ip.IsLinkLocalUnicast() || ip.IsLinkLocalMulticast() ||
			ip.IsUnspecified() || ip.IsMulticast() {
			return false
		}
	}
	return true
}

// PublishBoostNote builds and publishes the boost note. No-op when the
// service has no signing key configured.
func (s *PaymentService) PublishBoostNote(meta BoostMetadata, amountSats int64, successCount int) {
	if len(s.cfg.BoostSecret) == 0 {
		slog.Debug("boost note skipped: no signing key configured")
		return
	}

	content := boostNoteContent(meta, amountSats)
	tags := [][]string{{"t", "boost"}}
	if meta.URL != "" {
		tags = append(tags, []string{"r", meta.URL})
	}

	event, err := NewSignedEvent(s.cfg.BoostSecret, 1, tags, content)
	if err != nil {
		slog.Warn("failed to sign boost note", "error", err)
		return
	}

	published := 0
	for _, relay := range s.cfg.PublishRelays {
		if err := publishToRelay(relay, event); err != nil {
			slog.Warn("failed to publish boost note", "relay", relay, "error", err)
			continue
		}
		published++
	}

	slog.Info("boost note published",
		"event_id", shortID(event.ID),
		"relays", published,
		"payments", successCount)
}

// boostNoteContent formats the note text.
func boostNoteContent(meta BoostMetadata, amountSats int64) string {
	var b strings.Builder
	fmt.Fprintf(&b, "⚡️ Boosted %d sats", amountSats)
	if meta.Title != "" {
		fmt.Fprintf(&b, " to %q", meta.Title)
	}
	if meta.Artist != "" {
		fmt.Fprintf(&b, " by %s", meta.Artist)
	}
	if meta.Message != "" {
		fmt.Fprintf(&b, "\n\n%s", meta.Message)
	}
	if meta.URL != "" {
		fmt.Fprintf(&b, "\n%s", meta.URL)
	}
	return b.String()
}

// publishToRelay dials one relay, sends the event, and waits briefly for
// the OK acknowledgement.
func publishToRelay(relayURL string, event *Event) error {
	if !isRelayURLSafe(relayURL) {
		return fmt.Errorf("unsafe relay URL: %s", relayURL)
	}

	dialer := websocket.Dialer{HandshakeTimeout: boostNotePublishTimeout}
	conn, _, err := dialer.Dial(relayURL, nil)
	if err != nil {
		return fmt.Errorf("dial failed: %v", err)
	}
	defer conn.Close()

	if err := conn.WriteJSON([]interface{}{"EVENT", event}); err != nil {
		return fmt.Errorf("write failed: %v", err)
	}

	// Wait for OK; a slow relay just times out and we move on
	conn.SetReadDeadline(time.Now().Add(boostNotePublishTimeout))
	for {
		var raw json.RawMessage
		if err := conn.ReadJSON(&raw); err != nil {
			return fmt.Errorf("no acknowledgement: %v", err)
		}

		var msg []interface{}
		if err := json.Unmarshal(raw, &msg); err != nil || len(msg) < 3 {
			continue
		}
		msgType, _ := msg[0].(string)
		eventID, _ := msg[1].(string)
		if msgType != "OK" || eventID != event.ID {
			continue
		}

		success, _ := msg[2].(bool)
		if !success {
			reason := ""
			if len(msg) >= 4 {
				reason, _ = msg[3].(string)
			}
			return fmt.Errorf("relay rejected event: %s", reason)
		}
		return nil
	}
}
