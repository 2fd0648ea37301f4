// File: internal/portal/types.go

// Package portal holds the data model for one authenticated portal session:
// the account list delivered by the navigation payload, the captured session
// headers and cookies, and the bridge that hands the payload from the browser
// observers to the billing pipeline.
package portal

import (
	"encoding/json"
	"fmt"
	"strings"
)

// SessionHeaders is the header set captured from the first authenticated
// navigation request. Keys keep the casing the browser sent.
type SessionHeaders map[string]string

// SessionCookies maps cookie names to values for the page's browser context.
type SessionCookies map[string]string

// Account identifies one billing account in the navigation payload.
type Account struct {
	AccountNumber string `json:"accountNumber"`
	AuthGuid      string `json:"authGuid"`
}

// Complete reports whether the account carries both identifiers the billing
// pipeline needs. Incomplete accounts are skipped without any HTTP call.
func (a Account) Complete() bool {
	return strings.TrimSpace(a.AccountNumber) != "" && strings.TrimSpace(a.AuthGuid) != ""
}

// NavigationPayload is the JSON body of the navigation response: the customer
// GUID and the list of accounts visible to the logged-in user.
type NavigationPayload struct {
	CustGuid string    `json:"custGuid"`
	Accounts []Account `json:"accounts"`
}

// ParseNavigationPayload decodes the navigation response body.
func ParseNavigationPayload(body []byte) (NavigationPayload, error) {
	var payload NavigationPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		return NavigationPayload{}, fmt.Errorf("failed to decode navigation payload: %w", err)
	}
	return payload, nil
}

// Get returns the header value for key, matching case-insensitively.
func (h SessionHeaders) Get(key string) string {
	if v, ok := h[key]; ok {
		return v
	}
	for k, v := range h {
		if strings.EqualFold(k, key) {
			return v
		}
	}
	return ""
}

// Clone returns a copy so callers can mutate without racing the observers.
func (h SessionHeaders) Clone() SessionHeaders {
	if h == nil {
		return nil
	}
	out := make(SessionHeaders, len(h))
	for k, v := range h {
		out[k] = v
	}
	return out
}

// Clone returns a copy of the cookie map.
func (c SessionCookies) Clone() SessionCookies {
	if c == nil {
		return nil
	}
	out := make(SessionCookies, len(c))
	for k, v := range c {
		out[k] = v
	}
	return out
}
