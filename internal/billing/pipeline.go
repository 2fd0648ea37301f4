// File: internal/billing/pipeline.go
package billing

import (
	"context"

	"go.uber.org/zap"

	"github.com/xkilldash9x/billfetch-cli/internal/portal"
	"github.com/xkilldash9x/billfetch-cli/internal/retry"
)

// Navigator opens the portal dashboard for one account so the page refreshes
// its session before the out-of-band calls run.
type Navigator interface {
	NavigateToAccount(ctx context.Context, authGuid string) error
}

// Outcome classifies what happened to a single account.
type Outcome int

const (
	OutcomeProcessed Outcome = iota
	OutcomeSkipped
	OutcomeFailed
)

func (o Outcome) String() string {
	switch o {
	case OutcomeProcessed:
		return "processed"
	case OutcomeSkipped:
		return "skipped"
	case OutcomeFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Pipeline runs the token → details → download sequence for one account at a
// time. A failure in any account is contained to that account.
type Pipeline struct {
	client    *Client
	writer    *ArtifactWriter
	navigator Navigator
	state     *portal.SessionState
	policy    retry.Policy
	logger    *zap.Logger
}

func NewPipeline(client *Client, writer *ArtifactWriter, navigator Navigator, state *portal.SessionState, policy retry.Policy, logger *zap.Logger) *Pipeline {
	return &Pipeline{
		client:    client,
		writer:    writer,
		navigator: navigator,
		state:     state,
		policy:    policy,
		logger:    logger.Named("pipeline"),
	}
}

// ProcessAccount runs the full sequence for one account. Accounts missing
// either identifier are skipped before any HTTP call; every other failure is
// returned as an *AccountError alongside OutcomeFailed.
func (p *Pipeline) ProcessAccount(ctx context.Context, account portal.Account, customerID string) (Outcome, error) {
	if !account.Complete() {
		p.logger.Warn("Skipping account with missing account number or auth GUID")
		return OutcomeSkipped, nil
	}

	log := p.logger.With(zap.String("account", account.AccountNumber))

	if err := p.navigator.NavigateToAccount(ctx, account.AuthGuid); err != nil {
		log.Error("Failed to open account dashboard", zap.Error(err))
		return OutcomeFailed, &AccountError{AccountNumber: account.AccountNumber, Step: StepNavigate, Err: err}
	}
	log.Info("Navigated to account dashboard")

	headers, _, ok := p.state.Snapshot()
	if !ok {
		log.Error("No session headers captured before account processing")
		return OutcomeFailed, &AccountError{AccountNumber: account.AccountNumber, Step: StepToken, Err: ErrMissingSessionHeaders}
	}

	userToken, ok := retry.Do(ctx, log, p.policy, string(StepToken), func(ctx context.Context) (string, error) {
		return p.client.FetchUserToken(ctx, headers, customerID, account.AccountNumber)
	})
	if !ok {
		return OutcomeFailed, &AccountError{AccountNumber: account.AccountNumber, Step: StepToken, Err: ErrAttemptsExhausted}
	}

	details, ok := retry.Do(ctx, log, p.policy, string(StepDetails), func(ctx context.Context) (*BillingDetails, error) {
		return p.client.FetchBillingDetails(ctx, headers, account.AccountNumber, userToken)
	})
	if !ok {
		return OutcomeFailed, &AccountError{AccountNumber: account.AccountNumber, Step: StepDetails, Err: ErrAttemptsExhausted}
	}

	// Bill id extraction belongs to the download step, so its absence runs
	// through the same retry accounting as a failed download.
	var billID string
	content, ok := retry.Do(ctx, log, p.policy, string(StepDownload), func(ctx context.Context) ([]byte, error) {
		billID = details.Summary.BillID
		if billID == "" {
			return nil, ErrBillIDMissing
		}
		return p.client.DownloadBill(ctx, headers, account.AccountNumber, billID, userToken)
	})
	if !ok {
		return OutcomeFailed, &AccountError{AccountNumber: account.AccountNumber, Step: StepDownload, Err: ErrAttemptsExhausted}
	}

	if _, err := p.writer.WriteBill(account.AccountNumber, billID, content); err != nil {
		log.Error("Failed to persist bill", zap.Error(err))
		return OutcomeFailed, &AccountError{AccountNumber: account.AccountNumber, Step: StepPersist, Err: err}
	}

	return OutcomeProcessed, nil
}
