// File: cmd/fetch.go
package cmd

import (
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/xkilldash9x/billfetch-cli/internal/billing"
	"github.com/xkilldash9x/billfetch-cli/internal/browser"
	"github.com/xkilldash9x/billfetch-cli/internal/config"
	"github.com/xkilldash9x/billfetch-cli/internal/network"
	"github.com/xkilldash9x/billfetch-cli/internal/observability"
	"github.com/xkilldash9x/billfetch-cli/internal/orchestrator"
	"github.com/xkilldash9x/billfetch-cli/internal/portal"
	"github.com/xkilldash9x/billfetch-cli/internal/retry"
)

// newFetchCmd creates and configures the `fetch` command.
func newFetchCmd() *cobra.Command {
	fetchCmd := &cobra.Command{
		Use:   "fetch",
		Short: "Log in to the portal and download billing statements for every account",
		PreRunE: func(cmd *cobra.Command, args []string) error {
			// Bind flags to their Viper keys so CLI overrides take
			// precedence over the config file and environment.
			if err := viper.BindPFlag("billing.output_dir", cmd.Flags().Lookup("output-dir")); err != nil {
				return err
			}
			if err := viper.BindPFlag("browser.headless", cmd.Flags().Lookup("headless")); err != nil {
				return err
			}
			return viper.BindPFlag("proxy.server", cmd.Flags().Lookup("proxy-server"))
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := observability.GetLogger()

			// Re-unmarshal so the flag overrides bound in PreRunE apply.
			cfg, err := config.NewConfigFromViper(viper.GetViper())
			if err != nil {
				return err
			}

			// A signal-aware context so Ctrl-C tears the browser down cleanly.
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			components, err := buildComponents(cfg, logger)
			if err != nil {
				return err
			}

			return components.orchestrator.Run(ctx)
		},
	}

	fetchCmd.Flags().String("output-dir", "bills", "directory to write downloaded statements into")
	fetchCmd.Flags().Bool("headless", true, "run the browser headless")
	fetchCmd.Flags().String("proxy-server", "", "optional proxy server for browser and API traffic")

	return fetchCmd
}

// components holds the wired object graph for one fetch run.
type components struct {
	orchestrator *orchestrator.Orchestrator
}

// buildComponents performs the dependency wiring for a run: proxy resolution,
// shared session state and bridge, browser driver, billing client, pipeline,
// and the orchestrator that sequences them.
func buildComponents(cfg *config.Config, logger *zap.Logger) (*components, error) {
	proxy, err := network.ResolveProxy(cfg.Proxy)
	if err != nil {
		return nil, fmt.Errorf("invalid proxy configuration: %w", err)
	}
	if proxy != nil {
		logger.Info("Proxy configured", zap.String("server", proxy.Server))
	}

	state := portal.NewSessionState()
	bridge := portal.NewBridge(cfg.Portal.BridgeTimeout)

	driver := browser.NewDriver(cfg.Browser, cfg.Portal, proxy, state, bridge, logger)

	client, err := billing.NewClient(cfg.Billing, cfg.Portal.BaseURL, proxy, logger)
	if err != nil {
		return nil, err
	}

	writer := billing.NewArtifactWriter(cfg.Billing.OutputDir, logger)
	policy := retry.Policy{MaxAttempts: cfg.Billing.MaxAttempts, Delay: cfg.Billing.RetryDelay}
	pipeline := billing.NewPipeline(client, writer, driver, state, policy, logger)

	return &components{
		orchestrator: orchestrator.New(cfg, driver, pipeline, bridge, logger),
	}, nil
}
