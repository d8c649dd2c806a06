package models

import "time"

// Cookie is one persisted credential record of an authenticated browser session
type Cookie struct {
	Name     string `json:"name"`
	Value    string `json:"value"`
	Domain   string `json:"domain"`
	Path     string `json:"path,omitempty"`
	Expiry   *int64 `json:"expiry,omitempty"` // Epoch seconds, nil for session cookies
	Secure   bool   `json:"secure,omitempty"`
	HTTPOnly bool   `json:"httpOnly,omitempty"`
	SameSite string `json:"sameSite,omitempty"`
}

// ExpiredAt reports whether the cookie has a defined expiry earlier than now
func (c *Cookie) ExpiredAt(now time.Time) bool {
	return c.Expiry != nil && *c.Expiry < now.Unix()
}

// Session is the ordered set of cookies captured after a successful login
type Session struct {
	Cookies []*Cookie `json:"cookies"`
	SavedAt int64     `json:"saved_at,omitempty"`
}
