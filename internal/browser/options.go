// File: internal/browser/options.go
package browser

import (
	"strings"

	"github.com/chromedp/chromedp"

	"github.com/xkilldash9x/billfetch-cli/internal/config"
	"github.com/xkilldash9x/billfetch-cli/internal/network"
)

// execAllocatorOptions translates the application config into chromedp
// allocator options.
func execAllocatorOptions(cfg config.BrowserConfig, proxy *network.ProxySettings) []chromedp.ExecAllocatorOption {
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		// Required on hardened systems where the Chrome sandbox cannot start.
		chromedp.NoSandbox,
		// Recommended for stability in containers/headless envs.
		chromedp.Flag("disable-dev-shm-usage", true),
	)

	if cfg.Headless {
		opts = append(opts, chromedp.Headless)
	} else {
		opts = append(opts, chromedp.Flag("headless", false))
	}

	if cfg.IgnoreTLSErrors {
		opts = append(opts, chromedp.IgnoreCertErrors)
	}

	if cfg.ExecPath != "" {
		opts = append(opts, chromedp.ExecPath(cfg.ExecPath))
	}

	if proxy != nil {
		opts = append(opts, chromedp.ProxyServer(proxy.Server))
	}

	// Additional flags from the config file's 'args' slice.
	for _, arg := range cfg.Args {
		if !strings.Contains(arg, "=") {
			opts = append(opts, chromedp.Flag(strings.TrimPrefix(arg, "--"), true))
			continue
		}
		parts := strings.SplitN(arg, "=", 2)
		opts = append(opts, chromedp.Flag(strings.TrimPrefix(parts[0], "--"), parts[1]))
	}

	return opts
}
