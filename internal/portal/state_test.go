// File: internal/portal/state_test.go
package portal

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSessionStateAbsentBeforeCapture(t *testing.T) {
	state := NewSessionState()

	headers, cookies, ok := state.Snapshot()
	assert.False(t, ok)
	assert.Nil(t, headers)
	assert.Nil(t, cookies)
}

func TestSessionStateLatestWins(t *testing.T) {
	state := NewSessionState()

	state.SetHeaders(SessionHeaders{"tracking-id": "first"})
	state.SetHeaders(SessionHeaders{"tracking-id": "second"})
	state.SetCookies(SessionCookies{"session": "abc"})

	headers, cookies, ok := state.Snapshot()
	require.True(t, ok)
	assert.Equal(t, "second", headers["tracking-id"])
	assert.Equal(t, "abc", cookies["session"])
}

func TestSessionStateSnapshotIsACopy(t *testing.T) {
	state := NewSessionState()
	state.SetHeaders(SessionHeaders{"tracking-id": "t1"})

	headers, _, ok := state.Snapshot()
	require.True(t, ok)
	headers["tracking-id"] = "mutated"

	fresh, _, _ := state.Snapshot()
	assert.Equal(t, "t1", fresh["tracking-id"])
}

func TestSessionHeadersGetCaseInsensitive(t *testing.T) {
	headers := SessionHeaders{"Tracking-Id": "t1"}
	assert.Equal(t, "t1", headers.Get("tracking-id"))
	assert.Equal(t, "t1", headers.Get("Tracking-Id"))
	assert.Empty(t, headers.Get("missing"))
}

func TestParseNavigationPayload(t *testing.T) {
	payload, err := ParseNavigationPayload([]byte(`{"custGuid":"C1","accounts":[{"accountNumber":"A1","authGuid":"G1"},{"accountNumber":"","authGuid":"G2"}]}`))
	require.NoError(t, err)

	assert.Equal(t, "C1", payload.CustGuid)
	require.Len(t, payload.Accounts, 2)
	assert.True(t, payload.Accounts[0].Complete())
	assert.False(t, payload.Accounts[1].Complete())
}

func TestParseNavigationPayloadInvalidJSON(t *testing.T) {
	_, err := ParseNavigationPayload([]byte("<html>not json</html>"))
	require.Error(t, err)
}
