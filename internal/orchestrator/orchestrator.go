// File: internal/orchestrator/orchestrator.go

// Package orchestrator sequences one retrieval run: credential check, browser
// startup, portal login, waiting for the intercepted navigation exchange, and
// the per-account billing pipeline. Run-level failures abort the run;
// per-account failures are logged and the loop continues.
package orchestrator

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/xkilldash9x/billfetch-cli/internal/billing"
	"github.com/xkilldash9x/billfetch-cli/internal/config"
	"github.com/xkilldash9x/billfetch-cli/internal/portal"
)

// State tracks where a run is in its lifecycle.
type State string

const (
	StateInit               State = "init"
	StateCredentialsLoaded  State = "credentials_loaded"
	StateSessionReady       State = "session_ready"
	StateLoggedIn           State = "logged_in"
	StateAwaitingBridge     State = "awaiting_bridge"
	StateProcessingAccounts State = "processing_accounts"
	StateDone               State = "done"
	StateFailed             State = "failed"
)

var (
	// ErrMissingCredentials aborts the run before any browser work begins.
	ErrMissingCredentials = errors.New("portal credentials are not configured")

	// ErrNoAccounts means the navigation payload listed nothing to process.
	ErrNoAccounts = errors.New("navigation payload contained no accounts")
)

// SessionDriver is the browser surface the orchestrator drives.
type SessionDriver interface {
	Start(ctx context.Context) error
	Login(ctx context.Context, username, password string) error
	Close()
}

// AccountProcessor runs the billing pipeline for one account.
type AccountProcessor interface {
	ProcessAccount(ctx context.Context, account portal.Account, customerID string) (billing.Outcome, error)
}

// Orchestrator owns the run lifecycle.
type Orchestrator struct {
	cfg       *config.Config
	driver    SessionDriver
	processor AccountProcessor
	bridge    *portal.Bridge
	logger    *zap.Logger

	state State
}

func New(cfg *config.Config, driver SessionDriver, processor AccountProcessor, bridge *portal.Bridge, logger *zap.Logger) *Orchestrator {
	return &Orchestrator{
		cfg:       cfg,
		driver:    driver,
		processor: processor,
		bridge:    bridge,
		logger:    logger.Named("orchestrator"),
		state:     StateInit,
	}
}

// State returns the current lifecycle state.
func (o *Orchestrator) State() State {
	return o.state
}

func (o *Orchestrator) transition(log *zap.Logger, next State) {
	log.Debug("State transition", zap.String("from", string(o.state)), zap.String("to", string(next)))
	o.state = next
}

func (o *Orchestrator) fail(log *zap.Logger, err error) error {
	o.transition(log, StateFailed)
	log.Error("Run failed", zap.Error(err))
	return err
}

// Run executes one retrieval run end to end. The browser is released on
// every exit path.
func (o *Orchestrator) Run(ctx context.Context) error {
	runID := uuid.NewString()
	log := o.logger.With(zap.String("run_id", runID))
	log.Info("Starting statement retrieval run")

	// Close is safe on a driver that never started; deferring it up front
	// guarantees the browser is released regardless of which step fails.
	defer o.driver.Close()

	if !o.cfg.HasCredentials() {
		return o.fail(log, ErrMissingCredentials)
	}
	o.transition(log, StateCredentialsLoaded)

	if err := o.driver.Start(ctx); err != nil {
		return o.fail(log, fmt.Errorf("browser startup failed: %w", err))
	}
	o.transition(log, StateSessionReady)

	if err := o.driver.Login(ctx, o.cfg.Portal.Username, o.cfg.Portal.Password); err != nil {
		return o.fail(log, fmt.Errorf("portal login failed: %w", err))
	}
	o.transition(log, StateLoggedIn)

	o.transition(log, StateAwaitingBridge)
	body, err := o.bridge.Await(ctx)
	if err != nil {
		return o.fail(log, err)
	}

	payload, err := portal.ParseNavigationPayload(body)
	if err != nil {
		return o.fail(log, err)
	}
	if len(payload.Accounts) == 0 {
		return o.fail(log, ErrNoAccounts)
	}

	log.Info("Navigation payload received",
		zap.String("customer_id", payload.CustGuid),
		zap.Int("accounts", len(payload.Accounts)),
	)

	o.transition(log, StateProcessingAccounts)

	var processed, skipped, failed int
	for _, account := range payload.Accounts {
		outcome, accountErr := o.processor.ProcessAccount(ctx, account, payload.CustGuid)
		switch outcome {
		case billing.OutcomeProcessed:
			processed++
		case billing.OutcomeSkipped:
			skipped++
		default:
			failed++
			// Contained failure: log it and keep iterating.
			log.Error("Account processing failed", zap.Error(describeFailure(accountErr)))
		}

		if ctx.Err() != nil {
			return o.fail(log, ctx.Err())
		}
	}

	o.transition(log, StateDone)
	log.Info("Run complete",
		zap.Int("processed", processed),
		zap.Int("skipped", skipped),
		zap.Int("failed", failed),
	)
	return nil
}

func describeFailure(err error) error {
	if err != nil {
		return err
	}
	return errors.New("account processing failed without detail")
}
