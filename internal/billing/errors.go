// File: internal/billing/errors.go

// Package billing replays the portal's billing API calls out-of-band using
// the captured session headers, and persists the downloaded statements.
package billing

import (
	"errors"
	"fmt"
)

// Step names the pipeline stage an account failed in.
type Step string

const (
	StepNavigate Step = "account-navigation"
	StepToken    Step = "token-exchange"
	StepDetails  Step = "billing-details"
	StepDownload Step = "bill-download"
	StepPersist  Step = "artifact-write"
)

var (
	// ErrMissingSessionHeaders means no navigation request was captured
	// before the pipeline ran.
	ErrMissingSessionHeaders = errors.New("no captured session headers available")

	// ErrTokenMissing means the token-exchange response carried no user token.
	ErrTokenMissing = errors.New("no user token found in response")

	// ErrBillIDMissing means the billing details carried no bill id.
	ErrBillIDMissing = errors.New("no billId found in billing details")

	// ErrAttemptsExhausted marks a step that failed on every retry attempt.
	ErrAttemptsExhausted = errors.New("all attempts exhausted")
)

// AccountError reports a failure scoped to a single account. It never aborts
// the surrounding run; the orchestrator logs it and moves on.
type AccountError struct {
	AccountNumber string
	Step          Step
	Err           error
}

func (e *AccountError) Error() string {
	return fmt.Sprintf("account %s failed at %s: %v", e.AccountNumber, e.Step, e.Err)
}

func (e *AccountError) Unwrap() error {
	return e.Err
}
