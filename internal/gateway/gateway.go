// Package gateway is the single chokepoint for backend calls. It attaches
// bearer credentials, recovers from expired access tokens with one
// refresh-and-retry cycle, and normalizes every outcome into either a
// decoded payload or an *apierr.Error.
package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/ecofinds/ecofinds-client/internal/apierr"
	"github.com/ecofinds/ecofinds-client/internal/credstore"
	"github.com/ecofinds/ecofinds-client/internal/events"
)

const refreshPath = "/refresh"

// FormBody is a pre-encoded multipart payload. The gateway sends it without
// touching the encoding; Payload is kept as bytes so the one auth retry can
// replay it.
type FormBody struct {
	ContentType string
	Payload     []byte
}

// Request describes one logical backend operation.
type Request struct {
	Method string
	Path   string
	// Body is JSON-encoded when non-nil and Form is nil.
	Body any
	Form *FormBody
	// Public calls never carry the Authorization header and never trigger
	// the refresh cycle.
	Public bool
}

type Client struct {
	baseURL string
	http    *http.Client
	creds   *credstore.Store
	bus     *events.Bus
	log     *slog.Logger

	// refreshMu serializes the refresh procedure so that concurrent 401s
	// share a single refresh network call instead of invalidating each
	// other's tokens.
	refreshMu sync.Mutex
}

func NewClient(baseURL string, timeout time.Duration, creds *credstore.Store, bus *events.Bus, log *slog.Logger) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http: &http.Client{
			Timeout: timeout,
			Transport: &http.Transport{
				MaxIdleConns:        100,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		},
		creds: creds,
		bus:   bus,
		log:   log,
	}
}

// Do executes req and decodes a 2xx JSON body into out when out is non-nil.
// A no-content success leaves out untouched and returns nil. All failures
// come back as *apierr.Error; request bodies and token values are never
// logged.
func (c *Client) Do(ctx context.Context, req Request, out any) error {
	body, contentType, err := encodeBody(req)
	if err != nil {
		return err
	}

	token := ""
	if !req.Public {
		token, err = c.creds.AccessToken()
		if err != nil {
			return apierr.Transport(err)
		}
		if token != "" && expired(token) {
			// Known-stale token: refresh before spending a round trip on a
			// guaranteed 401.
			fresh, rerr := c.refreshAccessToken(ctx, token)
			if rerr != nil {
				return rerr
			}
			token = fresh
		}
	}

	resp, respBody, err := c.send(ctx, req, body, contentType, token)
	if err != nil {
		return err
	}

	isRefresh := strings.Contains(req.Path, refreshPath)
	if resp.StatusCode == http.StatusUnauthorized && !req.Public && !isRefresh {
		fresh, rerr := c.refreshAccessToken(ctx, token)
		if rerr != nil {
			return apierr.SessionExpired()
		}
		resp, respBody, err = c.send(ctx, req, body, contentType, fresh)
		if err != nil {
			return err
		}
	}

	if resp.StatusCode == http.StatusUnauthorized && (req.Public || isRefresh) {
		c.teardown()
		return &apierr.Error{
			Kind:    apierr.KindAuth,
			Status:  resp.StatusCode,
			Message: apierr.ExtractMessage(respBody, resp.StatusCode),
		}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return apierr.FromStatus(resp.StatusCode, respBody)
	}

	if resp.StatusCode == http.StatusNoContent || len(respBody) == 0 || out == nil {
		return nil
	}
	if err := json.Unmarshal(respBody, out); err != nil {
		// Transport succeeded but the payload is not usable; distinct from
		// a transport failure.
		return apierr.Decode()
	}
	return nil
}

func encodeBody(req Request) ([]byte, string, error) {
	if req.Form != nil {
		return req.Form.Payload, req.Form.ContentType, nil
	}
	if req.Body == nil {
		return nil, "application/json", nil
	}
	b, err := json.Marshal(req.Body)
	if err != nil {
		return nil, "", apierr.Transport(err)
	}
	return b, "application/json", nil
}

func (c *Client) send(ctx context.Context, req Request, body []byte, contentType, token string) (*http.Response, []byte, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	httpReq, err := http.NewRequestWithContext(ctx, req.Method, c.baseURL+req.Path, reader)
	if err != nil {
		return nil, nil, apierr.Transport(err)
	}
	if body != nil || req.Form != nil {
		httpReq.Header.Set("Content-Type", contentType)
	}
	if !req.Public && token != "" {
		httpReq.Header.Set("Authorization", "Bearer "+token)
	}
	httpReq.Header.Set("X-Request-ID", uuid.NewString())

	resp, err := c.http.Do(httpReq)
	if err != nil {
		c.log.Error("backend call failed", "method", req.Method, "path", req.Path, "error", err)
		return nil, nil, apierr.Transport(err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, nil, apierr.Transport(err)
	}
	c.log.Debug("backend call", "method", req.Method, "path", req.Path, "status", resp.StatusCode)
	return resp, respBody, nil
}

// teardown clears all stored credentials and raises the global
// authentication-lost signal. The gateway never mutates UI-facing state
// itself; interested stores react to the broadcast.
func (c *Client) teardown() {
	if err := c.creds.Clear(); err != nil {
		c.log.Error("clearing credentials failed", "error", err)
	}
	c.bus.PublishAuthLost()
}
