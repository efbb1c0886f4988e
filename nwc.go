package main

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// NWC (Nostr Wallet Connect) client - NIP-47

const (
	nwcRequestKind  = 23194 // Client request to wallet
	nwcResponseKind = 23195 // Wallet response to client

	// Logical request timeout. Some wallets never respond; the timer
	// force-resolves to "no response" which is retried for requests the
	// relay never acknowledged.
	nwcRequestTimeout = 60 * time.Second
	nwcRetryAttempts  = 2
	nwcRetryDelay     = 3 * time.Second
)

// NWCConfig holds wallet connection parameters extracted from the URI
type NWCConfig struct {
	WalletPubKey    []byte // Wallet's public key (32 bytes)
	Relay           string // Relay URL for communication
	Secret          []byte // Secret key for signing requests (32 bytes)
	ClientPubKey    []byte // Derived public key from secret
	Nip04SharedKey  []byte // Pre-computed shared secret (NIP-04)
	ConversationKey []byte // Pre-computed conversation key (NIP-44)
}

// NWCRequest is a JSON-RPC request to the wallet
type NWCRequest struct {
	Method string      `json:"method"`
	Params interface{} `json:"params"`
}

// NWCResponse is a JSON-RPC response from the wallet
type NWCResponse struct {
	ResultType string          `json:"result_type"`
	Result     json.RawMessage `json:"result,omitempty"`
	Error      *NWCError       `json:"error,omitempty"`
}

// NWCError represents an error from the wallet
type NWCError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// NWCPayResult is the result of pay_invoice / pay_keysend
type NWCPayResult struct {
	Preimage string `json:"preimage"`
	FeesPaid int64  `json:"fees_paid,omitempty"` // millisats
}

// NWCBalanceResult is the result of get_balance
type NWCBalanceResult struct {
	Balance int64 `json:"balance"` // millisats
}

// NWCInfoResult is the result of get_info
type NWCInfoResult struct {
	Alias   string   `json:"alias,omitempty"`
	Pubkey  string   `json:"pubkey,omitempty"`
	Network string   `json:"network,omitempty"`
	Methods []string `json:"methods,omitempty"`
}

// NWCInvoiceResult is the result of make_invoice
type NWCInvoiceResult struct {
	Type        string `json:"type,omitempty"`
	Invoice     string `json:"invoice"`
	PaymentHash string `json:"payment_hash,omitempty"`
	Amount      int64  `json:"amount,omitempty"` // millisats
	CreatedAt   int64  `json:"created_at,omitempty"`
	ExpiresAt   int64  `json:"expires_at,omitempty"`
}

// NWCTransaction is one entry from list_transactions
type NWCTransaction struct {
	Type            string `json:"type"` // "incoming" or "outgoing"
	Invoice         string `json:"invoice,omitempty"`
	Description     string `json:"description,omitempty"`
	DescriptionHash string `json:"description_hash,omitempty"`
	Preimage        string `json:"preimage,omitempty"`
	PaymentHash     string `json:"payment_hash,omitempty"`
	Amount          int64  `json:"amount"` // millisats
	FeesPaid        int64  `json:"fees_paid,omitempty"`
	CreatedAt       int64  `json:"created_at"`
	SettledAt       int64  `json:"settled_at,omitempty"`
}

// NWCListTransactionsResult is the result of list_transactions
type NWCListTransactionsResult struct {
	Transactions []NWCTransaction `json:"transactions"`
}

// nwcTLVRecord is the wire shape of one keysend TLV record
type nwcTLVRecord struct {
	Type  uint64 `json:"type"`
	Value string `json:"value"` // hex-encoded payload
}

// nwcPayKeysendParams are the parameters for pay_keysend
type nwcPayKeysendParams struct {
	Amount     int64          `json:"amount"` // millisats
	Pubkey     string         `json:"pubkey"`
	TLVRecords []nwcTLVRecord `json:"tlv_records,omitempty"`
}

// ParseNWCURI parses a nostr+walletconnect:// URI into NWCConfig
// Format: nostr+walletconnect://<wallet-pubkey>?relay=<wss://...>&secret=<hex>
func ParseNWCURI(nwcURI string) (*NWCConfig, error) {
	if !strings.HasPrefix(nwcURI, "nostr+walletconnect://") {
		return nil, errors.New("invalid NWC URI: must start with nostr+walletconnect://")
	}

	// Replace scheme for URL parsing (Go's url.Parse doesn't like nostr+walletconnect)
	parseable := strings.Replace(nwcURI, "nostr+walletconnect://", "https://", 1)
	u, err := url.Parse(parseable)
	if err != nil {
		return nil, fmt.Errorf("invalid NWC URI: %v", err)
	}

	walletPubKeyHex := u.Host
	if len(walletPubKeyHex) != 64 {
		return nil, errors.New("invalid wallet pubkey: must be 64 hex characters")
	}
	walletPubKey, err := hex.DecodeString(walletPubKeyHex)
	if err != nil {
		return nil, errors.New("invalid wallet pubkey: not valid hex")
	}

	relay := u.Query().Get("relay")
	if relay == "" {
		return nil, errors.New("NWC URI must include relay parameter")
	}
	if !strings.HasPrefix(relay, "wss://") && !strings.HasPrefix(relay, "ws://") {
		return nil, errors.New("invalid relay URL: must start with wss:// or ws://")
	}

	secretHex := u.Query().Get("secret")
	if secretHex == "" {
		return nil, errors.New("NWC URI must include secret parameter")
	}
	secret, err := decodeHexKey(secretHex)
	if err != nil {
		return nil, fmt.Errorf("invalid secret: %v", err)
	}

	clientPubKey, err := GetPublicKey(secret)
	if err != nil {
		return nil, fmt.Errorf("failed to derive public key: %v", err)
	}

	// Pre-compute NIP-04 shared secret (most wallets still speak NIP-04)
	nip04SharedKey, err := GetNip04SharedSecret(secret, walletPubKey)
	if err != nil {
		return nil, fmt.Errorf("failed to compute NIP-04 shared key: %v", err)
	}

	// Pre-compute conversation key for wallets that answer in NIP-44
	conversationKey, err := GetConversationKey(secret, walletPubKey)
	if err != nil {
		return nil, fmt.Errorf("failed to compute conversation key: %v", err)
	}

	return &NWCConfig{
		WalletPubKey:    walletPubKey,
		Relay:           relay,
		Secret:          secret,
		ClientPubKey:    clientPubKey,
		Nip04SharedKey:  nip04SharedKey,
		ConversationKey: conversationKey,
	}, nil
}

// NWCClient handles communication with a Nostr wallet over one relay.
// Explicitly constructed and owned by the caller; Connect/Close bound its
// lifecycle.
type NWCClient struct {
	config       *NWCConfig
	conn         *websocket.Conn
	mu           sync.Mutex
	connected    bool
	subID       string
	pending     map[string]chan *NWCResponse
	pendingMu   sync.Mutex
	done        chan struct{}
	acceptedMu  sync.Mutex
	acceptedIDs map[string]bool // event IDs the relay acked (OK=true)
}

// NewNWCClient creates a new NWC client from config
func NewNWCClient(config *NWCConfig) *NWCClient {
	return &NWCClient{
		config:      config,
		pending:     make(map[string]chan *NWCResponse),
		done:        make(chan struct{}),
		acceptedIDs: make(map[string]bool),
	}
}

// Connect establishes the relay connection and subscribes to wallet
// responses. Safe to call again after the relay drops the connection;
// a fresh session is dialed and subscribed. Returns an error once the
// client has been Closed.
func (c *NWCClient) Connect(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.connected {
		return nil
	}

	select {
	case <-c.done:
		return fmt.Errorf("NWC client is closed")
	default:
	}

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, c.config.Relay, nil)
	if err != nil {
		return fmt.Errorf("failed to connect to relay %s: %v", c.config.Relay, err)
	}

	c.conn = conn
	c.connected = true

	// Subscribe to wallet responses (kind 23195 p-tagged to our pubkey)
	c.subID = fmt.Sprintf("nwc-%d", time.Now().UnixNano()%1000000)
	walletPubKeyHex := hex.EncodeToString(c.config.WalletPubKey)
	clientPubKeyHex := hex.EncodeToString(c.config.ClientPubKey)

	subFilter := map[string]interface{}{
		"kinds":   []int{nwcResponseKind},
		"authors": []string{walletPubKeyHex},
		"#p":      []string{clientPubKeyHex},
		// No "since" filter - we don't want to miss responses due to clock skew
	}
	subReq := []interface{}{"REQ", c.subID, subFilter}

	slog.Debug("NWC: subscribing to responses",
		"sub_id", c.subID,
		"wallet_pubkey", shortID(walletPubKeyHex),
		"client_pubkey", shortID(clientPubKeyHex))

	if err := conn.WriteJSON(subReq); err != nil {
		conn.Close()
		c.connected = false
		return fmt.Errorf("failed to subscribe: %v", err)
	}

	slog.Debug("NWC: connected to relay", "relay", c.config.Relay)

	// Per-session channel so a reconnect gets its own EOSE wait
	eose := make(chan struct{})

	go c.readLoop(conn, eose)

	// Wait for EOSE so the subscription is live before we publish requests
	select {
	case <-eose:
		slog.Debug("NWC: EOSE received, subscription active")
	case <-time.After(5 * time.Second):
		slog.Debug("NWC: EOSE timeout, proceeding anyway")
	case <-ctx.Done():
		return ctx.Err()
	}

	return nil
}

// readLoop processes incoming messages from one relay session. It owns
// the connection it was started with, so a loop left over from a dropped
// session cannot tear down a newer one.
func (c *NWCClient) readLoop(conn *websocket.Conn, eose chan struct{}) {
	defer func() {
		c.mu.Lock()
		stale := c.conn != conn
		if !stale {
			c.connected = false
		}
		conn.Close()
		c.mu.Unlock()
		if stale {
			// A newer session already replaced this one; its waiters are
			// not ours to flush
			return
		}

		// Notify all pending requests
		c.pendingMu.Lock()
		for _, ch := range c.pending {
			close(ch)
		}
		c.pending = make(map[string]chan *NWCResponse)
		c.pendingMu.Unlock()
	}()

	for {
		select {
		case <-c.done:
			return
		default:
			var rawMsg json.RawMessage
			if err := conn.ReadJSON(&rawMsg); err != nil {
				if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
					slog.Debug("NWC: connection closed unexpectedly", "error", err)
				}
				return
			}

			var msg []interface{}
			if err := json.Unmarshal(rawMsg, &msg); err != nil || len(msg) < 2 {
				continue
			}

			msgType, ok := msg[0].(string)
			if !ok {
				continue
			}

			switch msgType {
			case "EVENT":
				if len(msg) >= 3 {
					c.handleEvent(msg[2])
				}
			case "OK":
				if len(msg) >= 3 {
					eventID, _ := msg[1].(string)
					success, _ := msg[2].(bool)
					// Track accepted events - matters for wallets that
					// process requests but never send responses
					if success && eventID != "" {
						c.acceptedMu.Lock()
						c.acceptedIDs[eventID] = true
						c.acceptedMu.Unlock()
						slog.Debug("NWC: event accepted by relay", "event_id", shortID(eventID))
					}
				}
			case "EOSE":
				select {
				case <-eose:
				default:
					close(eose)
				}
			case "NOTICE":
				if len(msg) >= 2 {
					notice, _ := msg[1].(string)
					slog.Debug("NWC: received NOTICE", "notice", notice)
				}
			case "AUTH":
				// NIP-42 challenge
				if len(msg) >= 2 {
					challenge, _ := msg[1].(string)
					c.handleAuth(challenge)
				}
			}
		}
	}
}

// handleAuth answers a NIP-42 AUTH challenge with a signed kind 22242 event
func (c *NWCClient) handleAuth(challenge string) {
	event := &Event{
		PubKey:    hex.EncodeToString(c.config.ClientPubKey),
		CreatedAt: time.Now().Unix(),
		Kind:      22242,
		Tags: [][]string{
			{"relay", c.config.Relay},
			{"challenge", challenge},
		},
		Content: "",
	}
	event.ID = calculateEventID(event)
	event.Sig = signEvent(c.config.Secret, event.ID)

	c.mu.Lock()
	err := c.conn.WriteJSON([]interface{}{"AUTH", event})
	c.mu.Unlock()

	if err != nil {
		slog.Error("NWC: failed to send AUTH response", "error", err)
		return
	}
	slog.Debug("NWC: sent AUTH response", "event_id", shortID(event.ID))
}

// handleEvent decrypts a response event and routes it to the waiter
func (c *NWCClient) handleEvent(eventData interface{}) {
	eventBytes, err := json.Marshal(eventData)
	if err != nil {
		return
	}

	var event Event
	if err := json.Unmarshal(eventBytes, &event); err != nil {
		return
	}

	// Verify it's from the wallet
	if event.PubKey != hex.EncodeToString(c.config.WalletPubKey) {
		slog.Debug("NWC: event not from wallet", "got", shortID(event.PubKey))
		return
	}

	decrypted, err := Nip04Decrypt(event.Content, c.config.Nip04SharedKey)
	if err != nil {
		// Some wallets answer in NIP-44 regardless of the request scheme
		decrypted, err = Nip44Decrypt(event.Content, c.config.ConversationKey)
		if err != nil {
			slog.Error("NWC: failed to decrypt response", "error", err)
			return
		}
	}

	var response NWCResponse
	if err := json.Unmarshal([]byte(decrypted), &response); err != nil {
		slog.Error("NWC: failed to parse response", "error", err)
		return
	}

	// The e tag names the request event this responds to
	var requestEventID string
	for _, tag := range event.Tags {
		if len(tag) >= 2 && tag[0] == "e" {
			requestEventID = tag[1]
			break
		}
	}
	if requestEventID == "" {
		slog.Debug("NWC: response missing e tag")
		return
	}

	c.pendingMu.Lock()
	ch, exists := c.pending[requestEventID]
	if exists {
		delete(c.pending, requestEventID)
	}
	c.pendingMu.Unlock()

	if exists {
		ch <- &response
	} else {
		slog.Debug("NWC: no pending request for response", "request_id", shortID(requestEventID))
	}
}

// call sends one NIP-47 request and decodes the result into out.
// paymentLike requests are never retried once the relay has acknowledged
// the request event (the wallet may be mid-payment); instead the relay ack
// is treated as likely-success, matching wallets that process payments but
// never send NIP-47 responses.
func (c *NWCClient) call(ctx context.Context, method string, params interface{}, out interface{}, paymentLike bool) error {
	c.mu.Lock()
	if !c.connected {
		c.mu.Unlock()
		return paymentErr(ErrCodeWalletUnavailable, "not connected to wallet")
	}
	c.mu.Unlock()

	if params == nil {
		params = map[string]interface{}{}
	}
	requestJSON, err := json.Marshal(NWCRequest{Method: method, Params: params})
	if err != nil {
		return fmt.Errorf("failed to marshal request: %v", err)
	}

	// Encrypt with NIP-04 (many wallets don't support NIP-44 yet)
	encrypted, err := Nip04Encrypt(string(requestJSON), c.config.Nip04SharedKey)
	if err != nil {
		return fmt.Errorf("failed to encrypt request: %v", err)
	}

	var lastErr error
	for attempt := 0; attempt <= nwcRetryAttempts; attempt++ {
		if attempt > 0 {
			slog.Debug("NWC: retrying request", "method", method, "attempt", attempt)
			select {
			case <-time.After(nwcRetryDelay):
			case <-ctx.Done():
				return ctx.Err()
			}
		}

		resp, accepted, err := c.roundTrip(ctx, method, encrypted)
		if err != nil {
			lastErr = err
			// Relay-acked payment requests must not be re-sent
			if accepted && paymentLike {
				slog.Info("NWC: payment likely succeeded (relay accepted, no response)", "method", method)
				if result, ok := out.(*NWCPayResult); ok {
					result.Preimage = "accepted-no-response"
				}
				return nil
			}
			if accepted {
				return err
			}
			continue
		}

		if resp.Error != nil {
			code := ErrCodeWalletRPC
			if resp.Error.Code == NWCErrorNotImplemented && method == "pay_keysend" {
				code = ErrCodeKeysendUnsupported
			}
			return &PaymentError{
				Code:    code,
				Message: fmt.Sprintf("%s: %s", resp.Error.Code, resp.Error.Message),
			}
		}
		if resp.ResultType != method {
			return fmt.Errorf("unexpected result type: %s", resp.ResultType)
		}
		if out != nil {
			if err := json.Unmarshal(resp.Result, out); err != nil {
				return fmt.Errorf("failed to parse result: %v", err)
			}
		}
		return nil
	}

	return lastErr
}

// roundTrip publishes one request event and waits for its response.
// Returns whether the relay acknowledged the request event.
func (c *NWCClient) roundTrip(ctx context.Context, method, encrypted string) (*NWCResponse, bool, error) {
	event := c.createRequestEvent(encrypted)

	respCh := make(chan *NWCResponse, 1)
	c.pendingMu.Lock()
	c.pending[event.ID] = respCh
	c.pendingMu.Unlock()

	defer func() {
		c.pendingMu.Lock()
		delete(c.pending, event.ID)
		c.pendingMu.Unlock()
	}()

	// Some relays only deliver responses to #e-filtered subscriptions;
	// subscribe for this event before publishing.
	subID, err := c.subscribeForEventResponse(event.ID)
	if err != nil {
		return nil, false, fmt.Errorf("failed to subscribe for response: %v", err)
	}
	defer c.closeSubscription(subID)

	// Give the relay a moment to activate the subscription
	time.Sleep(50 * time.Millisecond)

	c.mu.Lock()
	err = c.conn.WriteJSON([]interface{}{"EVENT", event})
	c.mu.Unlock()
	if err != nil {
		return nil, false, fmt.Errorf("failed to publish request: %v", err)
	}

	slog.Debug("NWC: sent request", "method", method, "event_id", shortID(event.ID))

	// Fresh timeout per attempt, independent of the parent deadline
	timeoutCtx, cancel := context.WithTimeout(context.Background(), nwcRequestTimeout)
	defer cancel()

	select {
	case <-timeoutCtx.Done():
		c.acceptedMu.Lock()
		wasAccepted := c.acceptedIDs[event.ID]
		c.acceptedMu.Unlock()
		return nil, wasAccepted, paymentErr(ErrCodeTimeout, "%s timed out", method)
	case <-ctx.Done():
		return nil, false, ctx.Err()
	case resp, ok := <-respCh:
		if !ok {
			return nil, false, paymentErr(ErrCodeWalletUnavailable, "connection closed")
		}
		return resp, true, nil
	}
}

// subscribeForEventResponse subscribes with an #e filter for one event ID.
func (c *NWCClient) subscribeForEventResponse(eventID string) (string, error) {
	subID := fmt.Sprintf("nwc-req-%d", time.Now().UnixNano()%1000000)
	subFilter := map[string]interface{}{
		"kinds":   []int{nwcResponseKind},
		"authors": []string{hex.EncodeToString(c.config.WalletPubKey)},
		"#e":      []string{eventID},
	}

	c.mu.Lock()
	err := c.conn.WriteJSON([]interface{}{"REQ", subID, subFilter})
	c.mu.Unlock()
	if err != nil {
		return "", err
	}
	return subID, nil
}

func (c *NWCClient) closeSubscription(subID string) {
	c.mu.Lock()
	c.conn.WriteJSON([]interface{}{"CLOSE", subID})
	c.mu.Unlock()
}

// createRequestEvent creates a signed kind 23194 event
func (c *NWCClient) createRequestEvent(encryptedContent string) *Event {
	event := &Event{
		PubKey:    hex.EncodeToString(c.config.ClientPubKey),
		CreatedAt: time.Now().Unix(),
		Kind:      nwcRequestKind,
		Tags: [][]string{
			{"p", hex.EncodeToString(c.config.WalletPubKey)},
			// No "encryption" tag = NIP-04 assumed
		},
		Content: encryptedContent,
	}
	event.ID = calculateEventID(event)
	event.Sig = signEvent(c.config.Secret, event.ID)
	return event
}

// PayInvoice pays a BOLT11 invoice through the wallet
func (c *NWCClient) PayInvoice(ctx context.Context, bolt11Invoice string) (*NWCPayResult, error) {
	var result NWCPayResult
	err := c.call(ctx, "pay_invoice", map[string]interface{}{"invoice": bolt11Invoice}, &result, true)
	if err != nil {
		return nil, err
	}
	return &result, nil
}

// PayKeysend sends a spontaneous keysend payment with TLV records.
// amountSats is converted to millisats on the wire.
func (c *NWCClient) PayKeysend(ctx context.Context, destination string, amountSats int64, customRecords map[uint64]string) (*NWCPayResult, error) {
	params := nwcPayKeysendParams{
		Amount: amountSats * 1000,
		Pubkey: destination,
	}
	for tlvType, value := range customRecords {
		params.TLVRecords = append(params.TLVRecords, nwcTLVRecord{
			Type:  tlvType,
			Value: hex.EncodeToString([]byte(value)),
		})
	}

	var result NWCPayResult
	err := c.call(ctx, "pay_keysend", params, &result, true)
	if err != nil {
		return nil, err
	}
	return &result, nil
}

// GetInfo queries wallet alias, network and supported methods
func (c *NWCClient) GetInfo(ctx context.Context) (*NWCInfoResult, error) {
	var result NWCInfoResult
	if err := c.call(ctx, "get_info", nil, &result, false); err != nil {
		return nil, err
	}
	return &result, nil
}

// GetBalance queries the wallet balance
func (c *NWCClient) GetBalance(ctx context.Context) (*NWCBalanceResult, error) {
	var result NWCBalanceResult
	if err := c.call(ctx, "get_balance", nil, &result, false); err != nil {
		return nil, err
	}
	return &result, nil
}

// MakeInvoice asks the wallet to issue a BOLT11 invoice
func (c *NWCClient) MakeInvoice(ctx context.Context, amountSats int64, description string) (*NWCInvoiceResult, error) {
	params := map[string]interface{}{
		"amount":      amountSats * 1000,
		"description": description,
	}
	var result NWCInvoiceResult
	if err := c.call(ctx, "make_invoice", params, &result, false); err != nil {
		return nil, err
	}
	return &result, nil
}

// ListTransactions retrieves recent transactions from the wallet
func (c *NWCClient) ListTransactions(ctx context.Context, limit int) (*NWCListTransactionsResult, error) {
	params := map[string]interface{}{}
	if limit > 0 {
		params["limit"] = limit
	}
	var result NWCListTransactionsResult
	if err := c.call(ctx, "list_transactions", params, &result, false); err != nil {
		return nil, err
	}
	return &result, nil
}

// Close tears down the relay connection
func (c *NWCClient) Close() {
	select {
	case <-c.done:
		return
	default:
		close(c.done)
	}

	c.mu.Lock()
	if c.conn != nil {
		if c.subID != "" {
			c.conn.WriteJSON([]interface{}{"CLOSE", c.subID})
		}
		c.conn.Close()
	}
	c.connected = false
	c.mu.Unlock()
}

// IsConnected returns whether the client has an active connection
func (c *NWCClient) IsConnected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.connected
}

// WalletPubKeyHex returns the wallet's public key as hex
func (c *NWCClient) WalletPubKeyHex() string {
	return hex.EncodeToString(c.config.WalletPubKey)
}

// NWCErrorCodes are standard error codes from NIP-47
const (
	NWCErrorRateLimited         = "RATE_LIMITED"
	NWCErrorNotImplemented      = "NOT_IMPLEMENTED"
	NWCErrorInsufficientBalance = "INSUFFICIENT_BALANCE"
	NWCErrorQuotaExceeded       = "QUOTA_EXCEEDED"
	NWCErrorRestricted          = "RESTRICTED"
	NWCErrorUnauthorized        = "UNAUTHORIZED"
	NWCErrorInternal            = "INTERNAL"
	NWCErrorOther               = "OTHER"
	NWCErrorPaymentFailed       = "PAYMENT_FAILED"
	NWCErrorNotFound            = "NOT_FOUND"
)
