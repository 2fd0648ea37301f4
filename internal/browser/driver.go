// File: internal/browser/driver.go

// Package browser owns the lifetime of one Chrome instance and one tab. It
// performs the interactive portal login and observes the tab's network
// traffic for the authenticated navigation exchange, feeding the captured
// session material into the portal state and bridge.
package browser

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/chromedp/cdproto/fetch"
	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"
	"go.uber.org/zap"

	"github.com/xkilldash9x/billfetch-cli/internal/config"
	netpkg "github.com/xkilldash9x/billfetch-cli/internal/network"
	"github.com/xkilldash9x/billfetch-cli/internal/portal"
)

const (
	loginPath         = "/account"
	accountPathFormat = "%s/account/dashboard/accounts/%s"

	consentSelector  = "#onetrust-reject-all-handler"
	usernameSelector = `input[name='user']`
	passwordSelector = `input[name='passwd']`
	signInSelector   = "#sign_in"

	// navigationSuffix marks the portal request whose headers and response
	// body carry the session material the pipeline needs.
	navigationSuffix = "/Navigation"

	bodyFetchTimeout = 15 * time.Second
)

// navRequest tracks the lifecycle of one matching navigation request.
type navRequest struct {
	url           string
	responseReady chan struct{}
}

// Driver launches the browser, logs in, and relays the navigation exchange.
type Driver struct {
	portalCfg config.PortalConfig
	logger    *zap.Logger
	proxy     *netpkg.ProxySettings

	state  *portal.SessionState
	bridge *portal.Bridge

	allocCtx    context.Context
	allocCancel context.CancelFunc
	tabCtx      context.Context
	tabCancel   context.CancelFunc

	mu       sync.Mutex
	tracked  map[network.RequestID]*navRequest
	started  bool
	workerWG sync.WaitGroup

	allocatorOpts []chromedp.ExecAllocatorOption
}

// NewDriver wires a driver to the session state and bridge it must populate.
func NewDriver(browserCfg config.BrowserConfig, portalCfg config.PortalConfig, proxy *netpkg.ProxySettings, state *portal.SessionState, bridge *portal.Bridge, logger *zap.Logger) *Driver {
	return &Driver{
		portalCfg:     portalCfg,
		logger:        logger.Named("browser"),
		proxy:         proxy,
		state:         state,
		bridge:        bridge,
		tracked:       make(map[network.RequestID]*navRequest),
		allocatorOpts: execAllocatorOptions(browserCfg, proxy),
	}
}

// Start launches Chrome, opens the tab, and attaches the network observers.
// Observers are attached before any navigation so the first authenticated
// navigation exchange cannot be missed.
func (d *Driver) Start(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.started {
		return errors.New("browser driver already started")
	}

	d.allocCtx, d.allocCancel = chromedp.NewExecAllocator(ctx, d.allocatorOpts...)
	d.tabCtx, d.tabCancel = chromedp.NewContext(d.allocCtx, chromedp.WithLogf(func(format string, args ...interface{}) {
		d.logger.Debug(fmt.Sprintf(format, args...))
	}))

	chromedp.ListenTarget(d.tabCtx, d.handleEvent)

	actions := []chromedp.Action{network.Enable()}
	if d.proxy.HasCredentials() {
		// Chrome takes only the proxy address on its command line; the
		// credentials are answered through fetch auth challenges.
		actions = append(actions, fetch.Enable().WithHandleAuthRequests(true))
	}

	if err := chromedp.Run(d.tabCtx, actions...); err != nil {
		d.releaseLocked()
		return fmt.Errorf("failed to start browser: %w", err)
	}

	d.started = true
	d.logger.Info("Browser started", zap.Bool("proxied", d.proxy != nil))
	return nil
}

// Login performs the interactive sign-in flow. Any failure is fatal to the
// run; the caller decides whether to keep the browser for diagnostics.
func (d *Driver) Login(ctx context.Context, username, password string) error {
	tabCtx, err := d.tab()
	if err != nil {
		return err
	}

	loginURL := strings.TrimRight(d.portalCfg.BaseURL, "/") + loginPath
	d.logger.Info("Navigating to portal login", zap.String("url", loginURL))

	if err := chromedp.Run(tabCtx, chromedp.Navigate(loginURL)); err != nil {
		d.logger.Error("Login navigation failed", zap.Error(err))
		return fmt.Errorf("failed to open login page: %w", err)
	}

	d.dismissConsent(tabCtx)

	err = chromedp.Run(tabCtx,
		chromedp.WaitVisible(usernameSelector, chromedp.ByQuery),
		chromedp.SendKeys(usernameSelector, username, chromedp.ByQuery),
		chromedp.Sleep(d.portalCfg.TypeSettle),
		chromedp.Click(signInSelector, chromedp.ByQuery),
		chromedp.Sleep(d.portalCfg.SubmitSettle),
		chromedp.WaitVisible(passwordSelector, chromedp.ByQuery),
		chromedp.SendKeys(passwordSelector, password, chromedp.ByQuery),
		chromedp.Click(signInSelector, chromedp.ByQuery),
		chromedp.Sleep(d.portalCfg.SubmitSettle),
	)
	if err != nil {
		d.logger.Error("Login sequence failed", zap.Error(err))
		return fmt.Errorf("login failed: %w", err)
	}

	d.logger.Info("Login successful")
	return nil
}

// dismissConsent clicks the cookie-consent prompt if it shows up within the
// configured window. Absence is expected and not an error.
func (d *Driver) dismissConsent(tabCtx context.Context) {
	consentCtx, cancel := context.WithTimeout(tabCtx, d.portalCfg.ConsentTimeout)
	defer cancel()

	err := chromedp.Run(consentCtx,
		chromedp.WaitVisible(consentSelector, chromedp.ByQuery),
		chromedp.Click(consentSelector, chromedp.ByQuery),
	)
	if err != nil {
		d.logger.Debug("Cookie consent prompt not present, continuing")
		return
	}
	d.logger.Debug("Cookie consent prompt dismissed")
}

// NavigateToAccount opens the dashboard page for one account and waits the
// settle interval so the page-initiated API traffic can complete.
func (d *Driver) NavigateToAccount(ctx context.Context, authGuid string) error {
	tabCtx, err := d.tab()
	if err != nil {
		return err
	}

	target := fmt.Sprintf(accountPathFormat, strings.TrimRight(d.portalCfg.BaseURL, "/"), url.PathEscape(authGuid))
	if err := chromedp.Run(tabCtx,
		chromedp.Navigate(target),
		chromedp.Sleep(d.portalCfg.AccountSettle),
	); err != nil {
		return fmt.Errorf("failed to open account dashboard: %w", err)
	}
	return nil
}

// Close tears down the tab and the browser process. Safe to call more than
// once and on a driver that never started.
func (d *Driver) Close() {
	d.mu.Lock()
	started := d.started
	d.started = false
	d.releaseLocked()
	d.mu.Unlock()

	// Let in-flight body fetches observe the cancelled contexts.
	d.workerWG.Wait()

	if started {
		d.logger.Info("Browser closed")
	}
}

func (d *Driver) releaseLocked() {
	if d.tabCancel != nil {
		d.tabCancel()
		d.tabCancel = nil
	}
	if d.allocCancel != nil {
		d.allocCancel()
		d.allocCancel = nil
	}
}

func (d *Driver) tab() (context.Context, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.started || d.tabCtx == nil {
		return nil, errors.New("browser driver not started")
	}
	return d.tabCtx, nil
}

// -- Event handling --

func (d *Driver) handleEvent(ev interface{}) {
	switch e := ev.(type) {
	case *network.EventRequestWillBeSent:
		d.handleRequestWillBeSent(e)
	case *network.EventResponseReceived:
		d.handleResponseReceived(e)
	case *network.EventLoadingFinished:
		d.handleLoadingFinished(e)
	case *network.EventLoadingFailed:
		d.handleLoadingFailed(e)
	case *fetch.EventAuthRequired:
		d.handleAuthRequired(e)
	case *fetch.EventRequestPaused:
		d.handleRequestPaused(e)
	}
}

func (d *Driver) handleRequestWillBeSent(e *network.EventRequestWillBeSent) {
	if e.Request == nil || !isNavigationURL(e.Request.URL) {
		return
	}

	headers := headersFromCDP(e.Request.Headers)
	d.state.SetHeaders(headers)

	d.logger.Debug("Intercepted navigation request",
		zap.String("url", e.Request.URL),
		zap.String("method", e.Request.Method),
		zap.Int("header_count", len(headers)),
		zap.Bool("has_post_data", e.Request.HasPostData),
	)

	recordBody := e.Request.HasPostData && d.logger.Core().Enabled(zap.DebugLevel)

	d.mu.Lock()
	if !d.started {
		d.mu.Unlock()
		return
	}
	d.tracked[e.RequestID] = &navRequest{
		url:           e.Request.URL,
		responseReady: make(chan struct{}),
	}
	tabCtx := d.tabCtx
	d.workerWG.Add(1)
	if recordBody {
		d.workerWG.Add(1)
	}
	d.mu.Unlock()

	// Cookie jar access and post-data retrieval are CDP commands and must not
	// run inside the event callback; issue them asynchronously.
	go d.snapshotCookies(tabCtx)
	if recordBody {
		go d.recordPostData(tabCtx, e.RequestID, e.Request.URL)
	}
}

func (d *Driver) handleResponseReceived(e *network.EventResponseReceived) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if req, ok := d.tracked[e.RequestID]; ok {
		select {
		case <-req.responseReady:
		default:
			close(req.responseReady)
		}
	}
}

func (d *Driver) handleLoadingFinished(e *network.EventLoadingFinished) {
	d.mu.Lock()
	req, ok := d.tracked[e.RequestID]
	if !ok || !d.started {
		d.mu.Unlock()
		return
	}
	delete(d.tracked, e.RequestID)
	tabCtx := d.tabCtx
	d.workerWG.Add(1)
	d.mu.Unlock()

	go d.fetchNavigationBody(tabCtx, e.RequestID, req)
}

// handleLoadingFailed drops a request that never produced a response. The
// portal aborts in-flight navigation calls during page transitions
// (net::ERR_ABORTED), so the capture stays open for a reissued request; the
// bridge timeout covers the case where none ever lands.
func (d *Driver) handleLoadingFailed(e *network.EventLoadingFailed) {
	d.mu.Lock()
	req, ok := d.tracked[e.RequestID]
	if ok {
		delete(d.tracked, e.RequestID)
	}
	d.mu.Unlock()

	if !ok {
		return
	}

	d.logger.Warn("Navigation request did not complete, waiting for a retry",
		zap.String("url", req.url),
		zap.String("error", e.ErrorText),
	)
}

// fetchNavigationBody resolves the bridge with the response body, waiting for
// the response headers first. Runs in its own goroutine.
func (d *Driver) fetchNavigationBody(tabCtx context.Context, requestID network.RequestID, req *navRequest) {
	defer d.workerWG.Done()

	if d.bridge.Resolved() {
		return
	}

	ctx, cancel := context.WithTimeout(tabCtx, bodyFetchTimeout)
	defer cancel()

	select {
	case <-req.responseReady:
	case <-ctx.Done():
		return
	}

	err := chromedp.Run(ctx, chromedp.ActionFunc(func(ctx context.Context) error {
		body, err := network.GetResponseBody(requestID).Do(ctx)
		if err != nil {
			return err
		}
		if d.bridge.Resolve(body) {
			d.logger.Info("Navigation response captured",
				zap.String("url", req.url),
				zap.Int("body_bytes", len(body)),
			)
		}
		return nil
	}))
	if err != nil && ctx.Err() == nil {
		if d.bridge.Fail(fmt.Errorf("failed to read navigation response body: %w", err)) {
			d.logger.Error("Navigation response body read failed", zap.String("url", req.url), zap.Error(err))
		}
	}
}

// recordPostData retrieves the body of a POST navigation request for the
// debug record. The event itself only carries a has-post-data flag.
func (d *Driver) recordPostData(tabCtx context.Context, requestID network.RequestID, reqURL string) {
	defer d.workerWG.Done()

	ctx, cancel := context.WithTimeout(tabCtx, bodyFetchTimeout)
	defer cancel()

	err := chromedp.Run(ctx, chromedp.ActionFunc(func(ctx context.Context) error {
		body, err := network.GetRequestPostData(requestID).Do(ctx)
		if err != nil {
			return err
		}
		d.logger.Debug("Navigation request body",
			zap.String("url", reqURL),
			zap.String("body", body),
		)
		return nil
	}))
	if err != nil && ctx.Err() == nil {
		d.logger.Debug("Failed to read navigation request body", zap.String("url", reqURL), zap.Error(err))
	}
}

// snapshotCookies copies the tab's cookie jar into the session state.
func (d *Driver) snapshotCookies(tabCtx context.Context) {
	defer d.workerWG.Done()

	ctx, cancel := context.WithTimeout(tabCtx, bodyFetchTimeout)
	defer cancel()

	err := chromedp.Run(ctx, chromedp.ActionFunc(func(ctx context.Context) error {
		cookies, err := network.GetCookies().Do(ctx)
		if err != nil {
			return err
		}
		d.state.SetCookies(cookiesFromCDP(cookies))
		return nil
	}))
	if err != nil && ctx.Err() == nil {
		d.logger.Warn("Failed to snapshot cookie jar", zap.Error(err))
	}
}

func (d *Driver) handleAuthRequired(e *fetch.EventAuthRequired) {
	if !d.proxy.HasCredentials() {
		return
	}

	d.mu.Lock()
	if !d.started || d.tabCtx == nil {
		d.mu.Unlock()
		return
	}
	tabCtx := d.tabCtx
	d.workerWG.Add(1)
	d.mu.Unlock()

	go func() {
		defer d.workerWG.Done()
		err := chromedp.Run(tabCtx, fetch.ContinueWithAuth(e.RequestID, &fetch.AuthChallengeResponse{
			Response: fetch.AuthChallengeResponseResponseProvideCredentials,
			Username: d.proxy.Username,
			Password: d.proxy.Password,
		}))
		if err != nil && tabCtx.Err() == nil {
			d.logger.Warn("Proxy auth challenge response failed", zap.Error(err))
		}
	}()
}

func (d *Driver) handleRequestPaused(e *fetch.EventRequestPaused) {
	d.mu.Lock()
	if !d.started || d.tabCtx == nil {
		d.mu.Unlock()
		return
	}
	tabCtx := d.tabCtx
	d.workerWG.Add(1)
	d.mu.Unlock()

	go func() {
		defer d.workerWG.Done()
		if err := chromedp.Run(tabCtx, fetch.ContinueRequest(e.RequestID)); err != nil && tabCtx.Err() == nil {
			d.logger.Debug("Failed to continue paused request", zap.Error(err))
		}
	}()
}

// -- Pure helpers --

// isNavigationURL reports whether the request path ends with the navigation
// segment, ignoring query and fragment.
func isNavigationURL(raw string) bool {
	u, err := url.Parse(raw)
	if err != nil {
		return strings.HasSuffix(raw, navigationSuffix)
	}
	return strings.HasSuffix(u.Path, navigationSuffix)
}

// headersFromCDP flattens CDP headers into the session header map. CDP joins
// multi-value headers with newlines; only the first value is kept.
func headersFromCDP(headers network.Headers) portal.SessionHeaders {
	out := make(portal.SessionHeaders, len(headers))
	for name, value := range headers {
		if s, ok := value.(string); ok {
			out[name] = strings.Split(s, "\n")[0]
		}
	}
	return out
}

// cookiesFromCDP reduces the cookie jar to a name-value map.
func cookiesFromCDP(cookies []*network.Cookie) portal.SessionCookies {
	out := make(portal.SessionCookies, len(cookies))
	for _, c := range cookies {
		if c != nil {
			out[c.Name] = c.Value
		}
	}
	return out
}
