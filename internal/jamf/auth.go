package jamf

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"
)

// AuthType selects how the client obtains bearer tokens.
type AuthType string

const (
	AuthBasic AuthType = "basic"
	AuthOAuth AuthType = "oauth"
)

const (
	basicTokenPath = "/api/v1/auth/token"
	oauthTokenPath = "/api/oauth/token"

	// tokenRefreshSkew renews a token this long before it expires.
	tokenRefreshSkew = 30 * time.Second
	// defaultTokenLifetime applies when neither the response nor the JWT says.
	defaultTokenLifetime = 5 * time.Minute
)

// Credentials authenticate against Jamf Pro. Basic auth exchanges a username and
// password for a token; OAuth uses an API client's id and secret.
type Credentials struct {
	AuthType     AuthType
	Username     string
	Password     string
	ClientID     string
	ClientSecret string
}

// Validate checks that the fields required by AuthType are present.
func (c Credentials) Validate() error {
	switch c.AuthType {
	case AuthBasic:
		if c.Username == "" || c.Password == "" {
			return fmt.Errorf("basic auth requires a username and password")
		}
	case AuthOAuth:
		if c.ClientID == "" || c.ClientSecret == "" {
			return fmt.Errorf("oauth requires a client id and client secret")
		}
	default:
		return fmt.Errorf("unsupported auth type %q (want %q or %q)", c.AuthType, AuthBasic, AuthOAuth)
	}
	return nil
}

type basicTokenResponse struct {
	Token   string `json:"token"`
	Expires string `json:"expires"`
}

type oauthTokenResponse struct {
	AccessToken string `json:"access_token"`
	ExpiresIn   int    `json:"expires_in"`
}

// bearerToken returns a cached token, fetching a new one when it is missing or
// about to expire.
func (c *Client) bearerToken(ctx context.Context) (string, error) {
	c.tokenMu.Lock()
	defer c.tokenMu.Unlock()

	if c.token != "" && c.now().Before(c.tokenExpiry.Add(-tokenRefreshSkew)) {
		return c.token, nil
	}

	token, expiry, err := c.fetchToken(ctx)
	if err != nil {
		return "", err
	}
	c.token, c.tokenExpiry = token, expiry
	c.logger.Debug("Obtained Jamf Pro token.",
		zap.String("auth_type", string(c.cfg.Credentials.AuthType)),
		zap.Time("expires", expiry))
	return token, nil
}

// invalidateToken drops the cached token so the next call re-authenticates.
func (c *Client) invalidateToken() {
	c.tokenMu.Lock()
	c.token = ""
	c.tokenMu.Unlock()
}

func (c *Client) fetchToken(ctx context.Context) (string, time.Time, error) {
	var req *http.Request
	var err error
	creds := c.cfg.Credentials

	switch creds.AuthType {
	case AuthOAuth:
		form := url.Values{
			"grant_type":    {"client_credentials"},
			"client_id":     {creds.ClientID},
			"client_secret": {creds.ClientSecret},
		}
		req, err = http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint(oauthTokenPath, nil),
			strings.NewReader(form.Encode()))
		if err == nil {
			req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		}
	default:
		req, err = http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint(basicTokenPath, nil), nil)
		if err == nil {
			req.SetBasicAuth(creds.Username, creds.Password)
		}
	}
	if err != nil {
		return "", time.Time{}, fmt.Errorf("failed to build token request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", c.cfg.UserAgent)

	resp, err := c.http.Do(req)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("failed to request token: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", time.Time{}, fmt.Errorf("failed to read token response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", time.Time{}, &APIError{Endpoint: "auth", StatusCode: resp.StatusCode, Body: truncate(body)}
	}

	var token string
	var expiry time.Time
	if creds.AuthType == AuthOAuth {
		var tr oauthTokenResponse
		if err := json.Unmarshal(body, &tr); err != nil {
			return "", time.Time{}, fmt.Errorf("failed to decode token response: %w", err)
		}
		token = tr.AccessToken
		if tr.ExpiresIn > 0 {
			expiry = c.now().Add(time.Duration(tr.ExpiresIn) * time.Second)
		}
	} else {
		var tr basicTokenResponse
		if err := json.Unmarshal(body, &tr); err != nil {
			return "", time.Time{}, fmt.Errorf("failed to decode token response: %w", err)
		}
		token = tr.Token
		if ts, err := time.Parse(time.RFC3339Nano, tr.Expires); err == nil {
			expiry = ts
		}
	}
	if token == "" {
		return "", time.Time{}, fmt.Errorf("%w: token response carried no token", ErrUnauthorized)
	}
	if expiry.IsZero() {
		expiry = c.jwtExpiry(token)
	}
	return token, expiry, nil
}

// jwtExpiry reads the exp claim without verifying the signature; the server that
// issued the token is the one that will check it.
func (c *Client) jwtExpiry(token string) time.Time {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err == nil {
		if exp, err := claims.GetExpirationTime(); err == nil && exp != nil {
			return exp.Time
		}
	}
	return c.now().Add(defaultTokenLifetime)
}

func truncate(body []byte) string {
	const max = 256
	s := strings.TrimSpace(string(body))
	if len(s) > max {
		return s[:max] + "..."
	}
	return s
}
