package session

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"
)

const (
	DefaultBaseURL = "http://localhost:8080/api/v1"
	refreshPath    = "/auth/refresh"
	maxBodyBytes   = 8 << 20
)

type Options struct {
	BaseURL        string
	HTTPClient     *http.Client
	Timeout        time.Duration
	RefreshTimeout time.Duration
	Logger         zerolog.Logger
}

// Client sends API calls on behalf of a Session. A 401 on a call that carried
// a bearer token triggers at most one refresh and one retry.
type Client struct {
	baseURL        string
	http           *http.Client
	session        *Session
	refreshTimeout time.Duration
	flight         singleflight.Group
	log            zerolog.Logger
}

func NewClient(sess *Session, opts Options) *Client {
	base := strings.TrimRight(opts.BaseURL, "/")
	if base == "" {
		base = DefaultBaseURL
	}
	httpClient := opts.HTTPClient
	if httpClient == nil {
		timeout := opts.Timeout
		if timeout <= 0 {
			timeout = 15 * time.Second
		}
		httpClient = &http.Client{Timeout: timeout}
	}
	refreshTimeout := opts.RefreshTimeout
	if refreshTimeout <= 0 {
		refreshTimeout = 10 * time.Second
	}
	return &Client{
		baseURL:        base,
		http:           httpClient,
		session:        sess,
		refreshTimeout: refreshTimeout,
		log:            opts.Logger,
	}
}

func (c *Client) Session() *Session {
	return c.session
}

type envelope struct {
	Data json.RawMessage `json:"data"`
}

type response struct {
	status int
	body   []byte
}

// Do performs one logical API call. body is JSON-encoded when non-nil and the
// "data" member of the response envelope is decoded into out when non-nil.
func (c *Client) Do(ctx context.Context, method, path string, body any, out any) error {
	var payload []byte
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		payload = encoded
	}

	if !c.session.Authenticated() {
		c.session.reload(ctx)
	}
	access := c.session.CurrentAccess()
	resp, err := c.send(ctx, method, path, payload, access)
	if err != nil {
		return err
	}

	if resp.status == http.StatusUnauthorized && access != "" {
		original := decodeAPIError(resp.status, resp.body)
		if err := c.refresh(ctx, access); err != nil {
			c.log.Warn().Err(err).Str("path", path).Msg("session refresh failed")
			return original
		}
		resp, err = c.send(ctx, method, path, payload, c.session.CurrentAccess())
		if err != nil {
			return err
		}
	}

	return decodeResponse(resp, out)
}

func (c *Client) send(ctx context.Context, method, path string, payload []byte, access string) (response, error) {
	var reader io.Reader
	if payload != nil {
		reader = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return response{}, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if access != "" {
		req.Header.Set("Authorization", "Bearer "+access)
	}

	res, err := c.http.Do(req)
	if err != nil {
		return response{}, &TransportError{Method: method, Path: path, Err: err}
	}
	defer res.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(res.Body, maxBodyBytes))
	if err != nil {
		return response{}, &TransportError{Method: method, Path: path, Err: err}
	}

	c.log.Debug().
		Str("method", method).
		Str("path", path).
		Int("status", res.StatusCode).
		Msg("api call")

	return response{status: res.StatusCode, body: raw}, nil
}

func decodeResponse(resp response, out any) error {
	if resp.status < 200 || resp.status > 299 {
		return decodeAPIError(resp.status, resp.body)
	}
	if out == nil || len(bytes.TrimSpace(resp.body)) == 0 {
		return nil
	}
	var env envelope
	if err := json.Unmarshal(resp.body, &env); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	if len(env.Data) == 0 || string(env.Data) == "null" {
		return nil
	}
	if err := json.Unmarshal(env.Data, out); err != nil {
		return fmt.Errorf("decode response data: %w", err)
	}
	return nil
}

// refresh exchanges the stored refresh token. A pair already rotated by
// another process sharing the store is adopted instead. Concurrent callers
// holding the same refresh token share one exchange. The exchange runs
// detached from the caller's cancellation so it always ends with rotated or
// cleared tokens.
func (c *Client) refresh(ctx context.Context, staleAccess string) error {
	cur := c.session.current.Load()
	if cur != nil && cur.AccessToken != "" && cur.AccessToken != staleAccess {
		return nil
	}
	if c.session.adopt(ctx, staleAccess) {
		return nil
	}
	cur = c.session.current.Load()

	var refreshToken string
	if cur != nil {
		refreshToken = cur.RefreshToken
	}
	if refreshToken == "" {
		c.session.clearIf(context.WithoutCancel(ctx), "")
		return ErrNoRefreshToken
	}

	_, err, _ := c.flight.Do(refreshToken, func() (any, error) {
		rctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.refreshTimeout)
		defer cancel()

		tokens, err := c.exchange(rctx, refreshToken)
		if err != nil {
			c.session.clearIf(rctx, refreshToken)
			return nil, err
		}
		c.session.rotate(rctx, refreshToken, tokens)
		return nil, nil
	})
	return err
}

func (c *Client) exchange(ctx context.Context, refreshToken string) (Tokens, error) {
	payload, err := json.Marshal(map[string]string{"refresh_token": refreshToken})
	if err != nil {
		return Tokens{}, err
	}
	resp, err := c.send(ctx, http.MethodPost, refreshPath, payload, "")
	if err != nil {
		return Tokens{}, err
	}
	var tokens Tokens
	if err := decodeResponse(resp, &tokens); err != nil {
		return Tokens{}, err
	}
	if tokens.AccessToken == "" || tokens.RefreshToken == "" {
		return Tokens{}, errors.New("refresh response missing tokens")
	}
	return tokens, nil
}
