package rointe

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"
)

// session holds the bearer token state. Both tokens are set or both are
// empty; transitions replace the whole value so a partially written session
// can never be observed.
type session struct {
	accessToken  string
	refreshToken string
	expiry       time.Time // zero means the provider reported no TTL
}

func (s session) valid(now time.Time) bool {
	if s.accessToken == "" {
		return false
	}
	// The boundary is exclusive: a token expiring exactly now still counts.
	return s.expiry.IsZero() || !s.expiry.Before(now)
}

// loginResponse is the identity toolkit response shape for both the
// credential exchange and the token refresh. The TTL arrives as a string.
type loginResponse struct {
	IDToken         string `json:"idToken"`
	RefreshToken    string `json:"refreshToken"`
	RefreshTokenAlt string `json:"refresh_token"` // refresh endpoint uses snake case
	ExpiresIn       string `json:"expiresIn"`
}

func (r loginResponse) refreshTokenValue() string {
	if r.RefreshToken != "" {
		return r.RefreshToken
	}
	return r.RefreshTokenAlt
}

// Login exchanges user credentials for a session. The credentials are not
// retained beyond this call; the client keeps only the issued tokens.
//
// On any failure the session is cleared entirely, so a client that failed
// to log in behaves exactly like one that never tried.
func (c *Client) Login(ctx context.Context, username, password string) error {
	form := url.Values{
		"email":             {username},
		"password":          {password},
		"returnSecureToken": {"true"},
	}

	status, body, err := c.postForm(ctx, "login", c.authBaseURL+authVerifyPath, form)
	if err != nil {
		c.clearSession()
		return fmt.Errorf("%w: %v", ErrCannotConnect, err)
	}

	if status == http.StatusBadRequest {
		c.clearSession()
		return ErrInvalidAuth
	}
	if status != http.StatusOK {
		c.clearSession()
		return &APIError{Op: "login", StatusCode: status, Message: "unexpected status"}
	}

	var resp loginResponse
	if err := json.Unmarshal(body, &resp); err != nil || resp.IDToken == "" || resp.RefreshToken == "" {
		c.clearSession()
		return ErrInvalidAuthResponse
	}

	expiry, err := c.expiryFrom(resp.ExpiresIn)
	if err != nil {
		c.clearSession()
		return ErrInvalidAuthResponse
	}

	c.mu.Lock()
	c.session = session{
		accessToken:  resp.IDToken,
		refreshToken: resp.RefreshToken,
		expiry:       expiry,
	}
	c.mu.Unlock()

	c.logger.Debug("session established", "expiry", expiry)
	return nil
}

// LoggedIn reports whether a session is currently held. It does not check
// expiry; an expired session still refreshes silently on the next call.
func (c *Client) LoggedIn() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.session.accessToken != "" && c.session.refreshToken != ""
}

// ensureValid gates every authenticated operation: it returns nil without a
// network call while the token is fresh and refreshes it otherwise. A failed
// refresh leaves the session untouched so the caller keeps getting
// ErrNotAuthenticated until a new Login.
func (c *Client) ensureValid(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.session.valid(c.now()) {
		return nil
	}

	if !c.refreshLocked(ctx) {
		return ErrNotAuthenticated
	}

	return nil
}

// refreshLocked exchanges the refresh token for a new token triple. Any
// failure leaves the session as it was and returns false. Callers must hold
// c.mu, which also keeps two goroutines from refreshing at once.
func (c *Client) refreshLocked(ctx context.Context) bool {
	if c.session.refreshToken == "" {
		return false
	}

	form := url.Values{
		"grant_type":    {"refresh_token"},
		"refresh_token": {c.session.refreshToken},
	}

	status, body, err := c.postForm(ctx, "refresh", c.refreshBaseURL+authRefreshPath, form)
	if err != nil || status != http.StatusOK {
		c.logger.Debug("token refresh failed", "status", status, "error", err)
		return false
	}

	var resp loginResponse
	if err := json.Unmarshal(body, &resp); err != nil || resp.IDToken == "" || resp.refreshTokenValue() == "" {
		return false
	}

	expiry, err := c.expiryFrom(resp.ExpiresIn)
	if err != nil {
		return false
	}

	c.session = session{
		accessToken:  resp.IDToken,
		refreshToken: resp.refreshTokenValue(),
		expiry:       expiry,
	}

	c.logger.Debug("session refreshed", "expiry", expiry)
	return true
}

func (c *Client) expiryFrom(expiresIn string) (time.Time, error) {
	seconds, err := strconv.Atoi(expiresIn)
	if err != nil {
		return time.Time{}, err
	}
	return c.now().Add(time.Duration(seconds) * time.Second), nil
}

func (c *Client) clearSession() {
	c.mu.Lock()
	c.session = session{}
	c.mu.Unlock()
}

func (c *Client) accessToken() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.session.accessToken
}
