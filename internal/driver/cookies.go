package driver

import (
	"math"
	"strings"
	"time"

	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/network"

	"github.com/ternarybob/o1export/internal/models"
)

// FromNetworkCookies converts browser cookies into their persisted form.
// Session cookies (no expiry) keep a nil Expiry.
func FromNetworkCookies(cookies []*network.Cookie) []*models.Cookie {
	result := make([]*models.Cookie, 0, len(cookies))
	for _, c := range cookies {
		if c == nil {
			continue
		}
		cookie := &models.Cookie{
			Name:     c.Name,
			Value:    c.Value,
			Domain:   c.Domain,
			Path:     c.Path,
			Secure:   c.Secure,
			HTTPOnly: c.HTTPOnly,
			SameSite: string(c.SameSite),
		}
		if !c.Session && c.Expires > 0 {
			expiry := int64(math.Floor(c.Expires))
			cookie.Expiry = &expiry
		}
		result = append(result, cookie)
	}
	return result
}

// ToCookieParams converts persisted cookies into browser cookie parameters.
// An expiry at or before now is dropped so the cookie is injected as a session cookie.
func ToCookieParams(cookies []*models.Cookie, now time.Time) []*network.CookieParam {
	params := make([]*network.CookieParam, 0, len(cookies))
	for _, c := range cookies {
		if c == nil || c.Name == "" {
			continue
		}

		var expires *cdp.TimeSinceEpoch
		if c.Expiry != nil {
			expiresTime := time.Unix(*c.Expiry, 0)
			if expiresTime.After(now) {
				timestamp := cdp.TimeSinceEpoch(expiresTime)
				expires = &timestamp
			}
		}

		path := c.Path
		if path == "" {
			path = "/"
		}

		param := &network.CookieParam{
			Name:     c.Name,
			Value:    c.Value,
			Domain:   c.Domain,
			Path:     path,
			Secure:   c.Secure,
			HTTPOnly: c.HTTPOnly,
			Expires:  expires,
			SameSite: sameSite(c.SameSite),
		}
		params = append(params, param)
	}
	return params
}

func sameSite(value string) network.CookieSameSite {
	switch strings.ToLower(value) {
	case "strict":
		return network.CookieSameSiteStrict
	case "lax":
		return network.CookieSameSiteLax
	case "none":
		return network.CookieSameSiteNone
	}
	return ""
}
