package driver

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/network"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ternarybob/o1export/internal/models"
)

func TestFromNetworkCookies(t *testing.T) {
	cookies := []*network.Cookie{
		{Name: "auth", Value: "abc", Domain: ".o1.example.com", Path: "/", Expires: 1893456000.75, Secure: true, HTTPOnly: true, SameSite: network.CookieSameSiteLax},
		{Name: "tmp", Value: "x", Domain: "o1.example.com", Path: "/", Expires: -1, Session: true},
		nil,
	}

	result := FromNetworkCookies(cookies)
	require.Len(t, result, 2)

	assert.Equal(t, "auth", result[0].Name)
	require.NotNil(t, result[0].Expiry)
	assert.Equal(t, int64(1893456000), *result[0].Expiry)
	assert.Equal(t, "Lax", result[0].SameSite)
	assert.True(t, result[0].HTTPOnly)

	assert.Equal(t, "tmp", result[1].Name)
	assert.Nil(t, result[1].Expiry)
}

func TestToCookieParams(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	future := now.Add(time.Hour).Unix()
	past := now.Add(-time.Hour).Unix()

	params := ToCookieParams([]*models.Cookie{
		{Name: "auth", Value: "abc", Domain: "o1.example.com", Expiry: &future, SameSite: "strict"},
		{Name: "old", Value: "y", Domain: "o1.example.com", Path: "/app", Expiry: &past},
		{Name: "", Value: "skipped"},
	}, now)

	require.Len(t, params, 2)

	assert.Equal(t, "/", params[0].Path)
	require.NotNil(t, params[0].Expires)
	assert.Equal(t, future, time.Time(*params[0].Expires).Unix())
	assert.Equal(t, network.CookieSameSiteStrict, params[0].SameSite)

	assert.Equal(t, "/app", params[1].Path)
	assert.Nil(t, params[1].Expires)
	assert.Equal(t, network.CookieSameSite(""), params[1].SameSite)
}

func TestCookieRoundTripKeepsExpiry(t *testing.T) {
	expiry := time.Now().Add(24 * time.Hour).Unix()
	ts := cdp.TimeSinceEpoch(time.Unix(expiry, 0))

	params := ToCookieParams([]*models.Cookie{{Name: "auth", Value: "v", Domain: "d", Expiry: &expiry}}, time.Now())
	require.Len(t, params, 1)
	assert.Equal(t, time.Time(ts).Unix(), time.Time(*params[0].Expires).Unix())
}

func TestUIErrorUnwrap(t *testing.T) {
	err := uiError("click", "#submit", context.DeadlineExceeded)

	assert.True(t, errors.Is(err, context.DeadlineExceeded))
	assert.Equal(t, `click "#submit": context deadline exceeded`, err.Error())

	var uiErr *UIError
	require.True(t, errors.As(err, &uiErr))
	assert.Equal(t, "click", uiErr.Op)
}
