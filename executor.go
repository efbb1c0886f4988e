package main

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"hpm-lightning/internal/ledger"
)

// Split payment execution: fan a total amount out across recipients by
// split weight, pay them concurrently, and aggregate the outcomes.
// Partial success is a normal terminal state; there is no rollback.

// Worst case for one NWC payment is three 60s attempts plus two retry
// delays (186s), so leave headroom for the final attempt to finish.
const paymentTimeout = 4 * time.Minute

// Payment method labels as reported in results.
const (
	MethodKeysend   = "Keysend"
	MethodLNAddress = "Lightning Address"
)

// BoostRequest is one payment batch invocation.
type BoostRequest struct {
	AlbumID    string        `json:"albumId,omitempty"` // lookup key into the recipients mapping
	Recipients []Recipient   `json:"recipients,omitempty"`
	AmountSats int64         `json:"amount"`
	Metadata   BoostMetadata `json:"metadata"`
	PostNote   bool          `json:"postNote"` // publish a Nostr boost note on success
}

// PaymentResult is the outcome for one recipient.
type PaymentResult struct {
	Recipient string `json:"recipient"`
	Amount    int64  `json:"amount"`
	Method    string `json:"method"`
	Address   string `json:"address"`
	Preimage  string `json:"preimage,omitempty"`
	Error     string `json:"error,omitempty"`

	err error
}

// BatchResult aggregates one batch. Results and Errors stay distinct;
// skipped recipients (zero amount, denylisted) appear in neither.
type BatchResult struct {
	Decision     RouteDecision   `json:"decision"`
	Results      []PaymentResult `json:"results"`
	Errors       []PaymentResult `json:"errors"`
	SuccessCount int             `json:"successCount"`
	TotalCount   int             `json:"totalCount"`
	SkippedCount int             `json:"skippedCount"`
	Failure      *BatchFailure   `json:"failure,omitempty"` // set only on total failure
}

// SplitAmounts computes per-recipient amounts: fixedAmount when set,
// else floor(amount * split / totalSplit). Flooring loses at most n-1
// sats across n recipients.
func SplitAmounts(recipients []Recipient, amountSats int64) []int64 {
	var totalSplit int64
	for _, r := range recipients {
		totalSplit += int64(r.Split)
	}

	amounts := make([]int64, len(recipients))
	for i, r := range recipients {
		if r.FixedAmount > 0 {
			amounts[i] = r.FixedAmount
			continue
		}
		if totalSplit <= 0 {
			continue
		}
		amounts[i] = amountSats * int64(r.Split) / totalSplit
	}
	return amounts
}

// ExecuteBoost runs one payment batch end to end: normalize, probe, route,
// split, pay concurrently, aggregate.
func (s *PaymentService) ExecuteBoost(ctx context.Context, req BoostRequest) *BatchResult {
	recipients := req.Recipients
	if len(recipients) == 0 && req.AlbumID != "" {
		recipients = s.RecipientsFor(req.AlbumID)
	}
	recipients = NormalizeRecipients(recipients)

	caps := s.ProbeCapabilities(ctx)
	explicitNWC := isNWCConnector(ConnectorType())
	decision := RoutePayment(caps, MixOf(recipients), explicitNWC)

	slog.Info("routing payment batch",
		"use_nwc", decision.UseNWC,
		"reason", decision.Reason,
		"recipients", len(recipients),
		"amount_sats", req.AmountSats)

	batch := &BatchResult{Decision: decision}
	amounts := SplitAmounts(recipients, req.AmountSats)

	type job struct {
		recipient Recipient
		amount    int64
	}
	var jobs []job
	for i, r := range recipients {
		if amounts[i] == 0 {
			slog.Debug("skipping zero-amount recipient", "recipient", r.Name)
			batch.SkippedCount++
			continue
		}
		if s.denylist[r.PreferredAddress] {
			slog.Debug("skipping denylisted recipient", "recipient", r.Name, "address", shortID(r.PreferredAddress))
			batch.SkippedCount++
			continue
		}
		jobs = append(jobs, job{recipient: r, amount: amounts[i]})
	}

	batch.TotalCount = len(jobs)
	IncrementPaymentsSkipped(int64(batch.SkippedCount))

	// Launch all payments together; completion order is unconstrained and
	// the join waits for every settlement (no short-circuit on failure).
	results := make([]PaymentResult, len(jobs))
	var wg sync.WaitGroup
	for i, j := range jobs {
		wg.Add(1)
		go func(idx int, j job) {
			defer wg.Done()
			payCtx, cancel := context.WithTimeout(ctx, paymentTimeout)
			defer cancel()
			results[idx] = s.payOne(payCtx, j.recipient, j.amount, req.AmountSats, decision, caps, req.Metadata)
		}(i, j)
	}
	wg.Wait()

	var errs []error
	for _, res := range results {
		if res.err != nil {
			res.Error = res.err.Error()
			batch.Errors = append(batch.Errors, res)
			errs = append(errs, res.err)
			IncrementPaymentsFailed()
		} else {
			batch.Results = append(batch.Results, res)
			IncrementPaymentsSucceeded()
		}
	}
	batch.SuccessCount = len(batch.Results)

	// Structured batch error only when everything failed; partial success
	// reports as success with a failure sub-list.
	if batch.SuccessCount == 0 && len(batch.Errors) > 0 {
		batch.Failure = ClassifyBatchFailure(errs)
		slog.Warn("boost batch failed entirely",
			"code", batch.Failure.Code,
			"count", len(batch.Errors))
	}

	if batch.SuccessCount > 0 {
		IncrementBoosts()
		if req.PostNote {
			// Best-effort; a publish failure never revokes payment success
			go s.PublishBoostNote(req.Metadata, req.AmountSats, batch.SuccessCount)
		}
	}

	s.recordBatch(ctx, req, batch)

	return batch
}

// payOne pays a single recipient using the routed method.
func (s *PaymentService) payOne(ctx context.Context, r Recipient, amountSats, totalSats int64, decision RouteDecision, caps WalletCapabilities, meta BoostMetadata) PaymentResult {
	result := PaymentResult{
		Recipient: r.Name,
		Amount:    amountSats,
		Address:   r.PreferredAddress,
	}
	if result.Recipient == "" {
		result.Recipient = shortID(r.PreferredAddress)
	}

	switch r.Type {
	case RecipientLNAddress:
		result.Method = MethodLNAddress
		result.Preimage, result.err = s.payLightningAddress(ctx, r.PreferredAddress, amountSats, decision, meta)
	default:
		result.Method = MethodKeysend
		result.Preimage, result.err = s.payKeysend(ctx, r, amountSats, totalSats, decision, caps, meta)
	}

	if result.err != nil {
		slog.Warn("payment failed",
			"recipient", result.Recipient,
			"method", result.Method,
			"amount_sats", amountSats,
			"error", result.err)
	} else {
		slog.Info("payment succeeded",
			"recipient", result.Recipient,
			"method", result.Method,
			"amount_sats", amountSats)
	}

	return result
}

// payLightningAddress resolves the address and pays the invoice over the
// routed rail.
func (s *PaymentService) payLightningAddress(ctx context.Context, address string, amountSats int64, decision RouteDecision, meta BoostMetadata) (string, error) {
	info, err := s.ResolveLightningAddress(ctx, address)
	if err != nil {
		return "", err
	}

	invoice, err := s.RequestInvoice(ctx, info, amountSats, meta.Message)
	if err != nil {
		return "", err
	}

	if decision.UseNWC {
		if s.nwc == nil || !s.nwc.IsConnected() {
			return "", paymentErr(ErrCodeWalletUnavailable, "no wallet connection")
		}
		res, err := s.nwc.PayInvoice(ctx, invoice)
		if err != nil {
			return "", err
		}
		return res.Preimage, nil
	}

	if !walletUsable(s.wallet) {
		return "", paymentErr(ErrCodeWalletUnavailable, "no wallet connection")
	}
	if err := s.wallet.Enable(ctx); err != nil {
		return "", wrapPaymentErr(ErrCodeWalletUnavailable, err, "wallet enable failed")
	}
	return s.wallet.SendPayment(ctx, invoice)
}

// payKeysend sends a TLV-carrying keysend over the routed rail, using the
// bridge when the wallet lacks native keysend.
func (s *PaymentService) payKeysend(ctx context.Context, r Recipient, amountSats, totalSats int64, decision RouteDecision, caps WalletCapabilities, meta BoostMetadata) (string, error) {
	records := BuildBoostRecords(meta, r.Name, amountSats, totalSats, s.cfg.AppName, s.cfg.AppVersion)

	if decision.UseNWC {
		if caps.IsCashuWallet {
			if caps.BridgeAvailable {
				return s.KeysendViaBridge(ctx, r.PreferredAddress, amountSats, records)
			}
			// "no viable method" rung: attempt anyway so the wallet's own
			// error reaches the user
		}
		if s.nwc == nil || !s.nwc.IsConnected() {
			return "", paymentErr(ErrCodeWalletUnavailable, "no wallet connection")
		}
		res, err := s.nwc.PayKeysend(ctx, r.PreferredAddress, amountSats, records)
		if err != nil {
			return "", err
		}
		return res.Preimage, nil
	}

	if !walletUsable(s.wallet) {
		return "", paymentErr(ErrCodeWalletUnavailable, "no wallet connection")
	}
	if err := s.wallet.Enable(ctx); err != nil {
		return "", wrapPaymentErr(ErrCodeWalletUnavailable, err, "wallet enable failed")
	}
	return s.wallet.Keysend(ctx, KeysendParams{
		Destination:   r.PreferredAddress,
		AmountSats:    amountSats,
		CustomRecords: records,
	})
}

// recordBatch writes batch outcomes to the ledger when one is configured.
// Best-effort: a ledger failure never surfaces to the caller.
func (s *PaymentService) recordBatch(ctx context.Context, req BoostRequest, batch *BatchResult) {
	if s.ledger == nil {
		return
	}

	batchID := uuid.NewString()
	rows := make([]ledger.Payment, 0, len(batch.Results)+len(batch.Errors))
	appendRow := func(res PaymentResult) {
		rows = append(rows, ledger.Payment{
			BatchID:    batchID,
			AlbumID:    req.AlbumID,
			TrackTitle: req.Metadata.Title,
			Recipient:  res.Recipient,
			Address:    res.Address,
			Method:     res.Method,
			AmountSats: res.Amount,
			Preimage:   res.Preimage,
			Error:      res.Error,
		})
	}
	for _, res := range batch.Results {
		appendRow(res)
	}
	for _, res := range batch.Errors {
		appendRow(res)
	}

	if err := s.ledger.RecordBatch(ctx, rows); err != nil {
		slog.Warn("failed to record boost batch", "error", err)
	}
}
