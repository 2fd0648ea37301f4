// File: internal/billing/client.go
package billing

import (
	"context"
	"fmt"
	"strings"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/xkilldash9x/billfetch-cli/internal/config"
	netpkg "github.com/xkilldash9x/billfetch-cli/internal/network"
	"github.com/xkilldash9x/billfetch-cli/internal/portal"
)

const (
	tokenPath    = "/business-bootstrap-api/v1/api/state/application/orionInitialState"
	detailsPath  = "/billing-api/v1/bill/getDetails"
	downloadPath = "/billing-api/v1/bill/download"

	trackingIDHeader = "tracking-id"
	authHeader       = "Cb-Authorization"
)

// tokenResponse is the slice of the bootstrap response the pipeline needs.
type tokenResponse struct {
	InitialStateModel struct {
		UserToken string `json:"userToken"`
	} `json:"initialStateModel"`
}

// BillingDetails is the billing summary returned by the details endpoint.
type BillingDetails struct {
	Summary struct {
		BillID string `json:"billId"`
	} `json:"summary"`
}

// Client issues the three billing API calls. Each request carries the fixed
// browser-equivalent header set with the captured session headers layered on
// top, so the server sees the same identity the page presented.
type Client struct {
	http    *resty.Client
	limiter *rate.Limiter
	logger  *zap.Logger

	portalOrigin string
}

// NewClient builds the API client over the shared transport, routing through
// the proxy when one is resolved.
func NewClient(cfg config.BillingConfig, portalBaseURL string, proxy *netpkg.ProxySettings, logger *zap.Logger) (*Client, error) {
	transportCfg := netpkg.NewDefaultClientConfig()
	transportCfg.IgnoreTLSErrors = cfg.IgnoreTLSErrors
	transportCfg.RequestTimeout = cfg.RequestTimeout
	transportCfg.Logger = logger

	if proxy != nil {
		proxyURL, err := proxy.URL()
		if err != nil {
			return nil, fmt.Errorf("failed to resolve proxy for billing client: %w", err)
		}
		transportCfg.ProxyURL = proxyURL
	}

	httpClient := resty.New().
		SetTransport(netpkg.NewHTTPTransport(transportCfg)).
		SetTimeout(cfg.RequestTimeout).
		SetBaseURL(strings.TrimRight(cfg.BaseURL, "/"))

	limit := rate.Inf
	if cfg.RateLimit > 0 {
		limit = rate.Limit(cfg.RateLimit)
	}

	return &Client{
		http:         httpClient,
		limiter:      rate.NewLimiter(limit, 1),
		logger:       logger.Named("billing"),
		portalOrigin: strings.TrimRight(portalBaseURL, "/"),
	}, nil
}

// FetchUserToken exchanges the captured session for a per-account user token.
func (c *Client) FetchUserToken(ctx context.Context, session portal.SessionHeaders, customerID, accountNumber string) (string, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return "", err
	}

	var result tokenResponse
	resp, err := c.http.R().
		SetContext(ctx).
		SetHeaders(c.requestHeaders(c.portalOrigin+"/account/bill", "", session)).
		SetBody(map[string]interface{}{
			"customerId":    customerID,
			"userContextId": session.Get(trackingIDHeader),
		}).
		SetResult(&result).
		Post(tokenPath)
	if err != nil {
		return "", fmt.Errorf("token exchange request failed: %w", err)
	}
	if !resp.IsSuccess() {
		return "", fmt.Errorf("failed to get user token: status %d", resp.StatusCode())
	}

	token := result.InitialStateModel.UserToken
	if token == "" {
		return "", ErrTokenMissing
	}

	c.logger.Info("User token obtained", zap.String("account", accountNumber))
	return token, nil
}

// FetchBillingDetails retrieves the billing summary for one account.
func (c *Client) FetchBillingDetails(ctx context.Context, session portal.SessionHeaders, accountNumber, userToken string) (*BillingDetails, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	var details BillingDetails
	resp, err := c.http.R().
		SetContext(ctx).
		SetHeaders(c.requestHeaders(c.portalOrigin+"/account/bill", userToken, session)).
		SetBody(map[string]interface{}{
			"billingArrangementId": accountNumber,
			"isEnterprise":         false,
			"isOrionCustomer":      false,
		}).
		SetResult(&details).
		Post(detailsPath)
	if err != nil {
		return nil, fmt.Errorf("billing details request failed: %w", err)
	}
	if !resp.IsSuccess() {
		return nil, fmt.Errorf("failed to get billing details: status %d", resp.StatusCode())
	}

	c.logger.Debug("Billing details received",
		zap.String("account", accountNumber),
		zap.String("bill_id", details.Summary.BillID),
	)
	return &details, nil
}

// DownloadBill fetches the PDF statement for one bill.
func (c *Client) DownloadBill(ctx context.Context, session portal.SessionHeaders, accountNumber, billID, userToken string) ([]byte, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	resp, err := c.http.R().
		SetContext(ctx).
		SetHeaders(c.requestHeaders(c.portalOrigin+"/", userToken, session)).
		SetBody(map[string]interface{}{
			"billingArrangementId": accountNumber,
			"billId":               billID,
			"isEnterprise":         false,
			"isOrionCustomer":      false,
		}).
		Post(downloadPath)
	if err != nil {
		return nil, fmt.Errorf("bill download request failed: %w", err)
	}
	if !resp.IsSuccess() {
		return nil, fmt.Errorf("failed to download bill: status %d", resp.StatusCode())
	}

	return resp.Body(), nil
}

// requestHeaders merges the fixed CORS-style header set with the captured
// session headers. The session headers are applied last so they win on
// conflicts, mirroring what the page itself sends.
func (c *Client) requestHeaders(referer, userToken string, session portal.SessionHeaders) map[string]string {
	headers := map[string]string{
		"Content-Type":   "application/json",
		"Origin":         c.portalOrigin,
		"Referer":        referer,
		"Sec-Fetch-Dest": "empty",
		"Sec-Fetch-Mode": "cors",
		"Sec-Fetch-Site": "cross-site",
		authHeader:       userToken,
	}
	for name, value := range session {
		headers[name] = value
	}
	return headers
}
