package main

import (
	"errors"
	"fmt"
)

// Payment error codes. Produced at the throw site so batch classification
// never has to pattern-match error text.
type PaymentErrorCode string

const (
	ErrCodeWalletUnavailable  PaymentErrorCode = "WALLET_UNAVAILABLE"
	ErrCodeKeysendUnsupported PaymentErrorCode = "KEYSEND_UNSUPPORTED"
	ErrCodeBridgeUnavailable  PaymentErrorCode = "BRIDGE_UNAVAILABLE"
	ErrCodeInvalidRange       PaymentErrorCode = "INVALID_RANGE"
	ErrCodeInvalidAddress     PaymentErrorCode = "INVALID_ADDRESS"
	ErrCodeLNURLFailure       PaymentErrorCode = "LNURL_FAILURE"
	ErrCodeWalletRPC          PaymentErrorCode = "WALLET_RPC_ERROR"
	ErrCodeTimeout            PaymentErrorCode = "TIMEOUT"
)

// PaymentError is a tagged payment failure.
type PaymentError struct {
	Code    PaymentErrorCode
	Message string
	Err     error
}

func (e *PaymentError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *PaymentError) Unwrap() error {
	return e.Err
}

// paymentErr builds a PaymentError with a formatted message.
func paymentErr(code PaymentErrorCode, format string, args ...interface{}) *PaymentError {
	return &PaymentError{Code: code, Message: fmt.Sprintf(format, args...)}
}

// wrapPaymentErr attaches a code to an underlying error.
func wrapPaymentErr(code PaymentErrorCode, err error, message string) *PaymentError {
	return &PaymentError{Code: code, Message: message, Err: err}
}

// ErrorCode extracts the payment error code from an error chain.
// Unclassified errors report as WALLET_RPC_ERROR.
func ErrorCode(err error) PaymentErrorCode {
	var pe *PaymentError
	if errors.As(err, &pe) {
		return pe.Code
	}
	return ErrCodeWalletRPC
}

// BatchFailure is the structured error surfaced when every payment in a
// batch failed. Remediation text depends on the dominant failure code.
type BatchFailure struct {
	Code        PaymentErrorCode `json:"code"`
	Message     string           `json:"message"`
	Remediation string           `json:"remediation,omitempty"`
}

func (b *BatchFailure) Error() string {
	return fmt.Sprintf("%s: %s", b.Code, b.Message)
}

// ClassifyBatchFailure inspects the per-recipient errors of a fully failed
// batch and produces a user-actionable structured error. Partial successes
// never reach this path.
func ClassifyBatchFailure(errs []error) *BatchFailure {
	if len(errs) == 0 {
		return nil
	}

	counts := make(map[PaymentErrorCode]int)
	for _, err := range errs {
		counts[ErrorCode(err)]++
	}

	switch {
	case counts[ErrCodeKeysendUnsupported] > 0:
		return &BatchFailure{
			Code:        ErrCodeKeysendUnsupported,
			Message:     "the connected wallet cannot send keysend payments",
			Remediation: "connect a wallet with keysend support, or enable the keysend bridge",
		}
	case counts[ErrCodeBridgeUnavailable] > 0:
		return &BatchFailure{
			Code:        ErrCodeBridgeUnavailable,
			Message:     "keysend bridge is not configured",
			Remediation: "configure the bridge endpoint or switch to a keysend-capable wallet",
		}
	case counts[ErrCodeWalletUnavailable] == len(errs):
		return &BatchFailure{
			Code:        ErrCodeWalletUnavailable,
			Message:     "no wallet connection",
			Remediation: "connect a wallet before boosting",
		}
	default:
		// Generic: surface the first error's text
		return &BatchFailure{
			Code:    ErrorCode(errs[0]),
			Message: errs[0].Error(),
		}
	}
}
