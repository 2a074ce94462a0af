package gateway

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/ecofinds/ecofinds-client/internal/apierr"
)

type refreshResponse struct {
	AccessToken string `json:"access_token"`
}

// refreshAccessToken runs the token-refresh procedure. Callers pass the
// access token they just failed with; if another caller already refreshed
// while this one waited on the lock, the stored token is reused and no
// second network call is made.
func (c *Client) refreshAccessToken(ctx context.Context, staleToken string) (string, error) {
	c.refreshMu.Lock()
	defer c.refreshMu.Unlock()

	if current, err := c.creds.AccessToken(); err == nil && current != "" && current != staleToken {
		return current, nil
	}

	refreshToken, err := c.creds.RefreshToken()
	if err != nil || refreshToken == "" {
		// No credential to refresh with: fail immediately, no network call.
		c.teardown()
		return "", apierr.SessionExpired()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+refreshPath, nil)
	if err != nil {
		return "", apierr.Transport(err)
	}
	// The refresh endpoint authenticates with the refresh token itself.
	req.Header.Set("Authorization", "Bearer "+refreshToken)

	resp, err := c.http.Do(req)
	if err != nil {
		c.log.Error("token refresh failed", "error", err)
		return "", apierr.Transport(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		c.log.Warn("token refresh rejected", "status", resp.StatusCode)
		c.teardown()
		return "", apierr.SessionExpired()
	}

	var payload refreshResponse
	if err := decodeJSON(resp, &payload); err != nil || payload.AccessToken == "" {
		c.teardown()
		return "", apierr.SessionExpired()
	}

	// The refresh token is not rotated; only the access token changes.
	if err := c.creds.SetAccessToken(payload.AccessToken); err != nil {
		return "", apierr.Transport(err)
	}
	return payload.AccessToken, nil
}

func decodeJSON(resp *http.Response, out any) error {
	return json.NewDecoder(resp.Body).Decode(out)
}

// expired reports whether token is a JWT whose exp is already past. Opaque
// tokens are assumed live; the 401 path covers them.
func expired(token string) bool {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return false
	}
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return false
	}
	return exp.Before(time.Now())
}
