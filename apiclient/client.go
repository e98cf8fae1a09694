// Package apiclient calls the backend by logical endpoint key and keeps the
// session alive: a 401 triggers one token refresh and one retry.
package apiclient

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

	retry "github.com/appleboy/go-httpretry"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"

	"github.com/lde-admin/lde-cli/endpoint"
	"github.com/lde-admin/lde-cli/store"
)

// DefaultTimeout bounds every HTTP attempt.
const DefaultTimeout = 10 * time.Second

// Doer executes one HTTP request. *retry.Client satisfies it.
type Doer interface {
	DoWithContext(ctx context.Context, req *http.Request) (*http.Response, error)
}

type httpDoer struct {
	c *http.Client
}

// HTTPDoer adapts a plain *http.Client. It performs exactly one attempt.
func HTTPDoer(c *http.Client) Doer {
	return httpDoer{c: c}
}

func (d httpDoer) DoWithContext(ctx context.Context, req *http.Request) (*http.Response, error) {
	return d.c.Do(req.WithContext(ctx))
}

// Config holds the backend coordinates.
type Config struct {
	BaseURL string
	// AnonKey is sent as apikey on every call and as the bearer when no
	// user session exists.
	AnonKey string
	// HTTPClient is the transport below the retry layer. Defaults to http.DefaultClient.
	HTTPClient *http.Client
	// MaxRetries is the number of transport-level retries for 5xx, 429 and
	// network failures. They apply to bodiless GET, HEAD, OPTIONS and DELETE
	// requests only. Authorization failures are never retried there.
	MaxRetries int
	// RetryDelay is the first backoff delay. Zero keeps the library default.
	RetryDelay time.Duration
	Timeout    time.Duration
}

// Hooks observe session events. Any field may be nil.
type Hooks struct {
	Unauthorized   func(key endpoint.Key)
	Refreshed      func(key endpoint.Key)
	SessionCleared func(reason error)
}

// Client is safe for concurrent use.
type Client struct {
	baseURL   string
	anonKey   string
	timeout   time.Duration
	store     store.Store
	doer      Doer
	once      Doer
	refresher Refresher
	hooks     Hooks
	log       zerolog.Logger
	refreshes singleflight.Group
}

// Option configures a Client.
type Option func(*Client)

// WithDoer replaces both transports, so every attempt goes through d.
func WithDoer(d Doer) Option {
	return func(c *Client) {
		c.doer = d
		c.once = d
	}
}

// WithRefresher replaces the token refresh protocol.
func WithRefresher(r Refresher) Option {
	return func(c *Client) {
		c.refresher = r
	}
}

func WithHooks(h Hooks) Option {
	return func(c *Client) {
		c.hooks = h
	}
}

func WithLogger(l zerolog.Logger) Option {
	return func(c *Client) {
		c.log = l
	}
}

// New builds a client over s. The store is owned by the caller.
func New(cfg Config, s store.Store, opts ...Option) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, errors.New("base URL is required")
	}
	if s == nil {
		return nil, errors.New("credential store is required")
	}

	c := &Client{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		anonKey: cfg.AnonKey,
		timeout: cfg.Timeout,
		store:   s,
		log:     zerolog.Nop(),
	}
	if c.timeout <= 0 {
		c.timeout = DefaultTimeout
	}

	for _, opt := range opts {
		opt(c)
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	if c.doer == nil {
		rc, err := retry.NewClient(
			retry.WithHTTPClient(httpClient),
			retry.WithMaxRetries(max(cfg.MaxRetries, 0)),
			retry.WithInitialRetryDelay(cfg.RetryDelay),
			retry.WithLogger(retryLogger{c.log.With().Str("component", "retry").Logger()}),
		)
		if err != nil {
			return nil, fmt.Errorf("failed to create retry client: %w", err)
		}
		c.doer = rc
	}
	if c.once == nil {
		c.once = HTTPDoer(httpClient)
	}
	if c.refresher == nil {
		c.refresher = NewTokenRefresher(
			c.baseURL, c.anonKey, HTTPDoer(httpClient), c.timeout,
			c.log.With().Str("component", "refresh").Logger(),
		)
	}

	return c, nil
}

// Request carries the per-call inputs.
type Request struct {
	// Params fill {name} placeholders; the rest become query parameters.
	Params endpoint.Params
	// Body is JSON-encoded unless it is already []byte or json.RawMessage.
	Body any
	// Header overrides the defaults. An Authorization override is used for
	// the first attempt only; a retry after a refresh sends the new bearer.
	Header http.Header
}

// Response is a fully read 2xx response.
type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
}

// Decode unmarshals the JSON body into v.
func (r *Response) Decode(v any) error {
	if err := json.Unmarshal(r.Body, v); err != nil {
		return fmt.Errorf("failed to parse response: %w", err)
	}
	return nil
}

// Call resolves a dotted key such as "mensaje.listar" and executes it.
func (c *Client) Call(
	ctx context.Context,
	key string,
	params endpoint.Params,
	body any,
	header http.Header,
) (*Response, error) {
	d, err := endpoint.Lookup(key)
	if err != nil {
		return nil, err
	}
	return c.do(ctx, endpoint.Key(key), d, Request{Params: params, Body: body, Header: header})
}

// Do executes a typed endpoint.
func (c *Client) Do(ctx context.Context, key endpoint.Key, req Request) (*Response, error) {
	d, err := endpoint.Lookup(string(key))
	if err != nil {
		return nil, err
	}
	return c.do(ctx, key, d, req)
}

// AnonymousHeader authenticates a call as the anonymous client, as needed
// for login, registration and public forms.
func (c *Client) AnonymousHeader() http.Header {
	return BearerHeader(c.anonKey)
}

// BearerHeader authenticates a call with an explicit token.
func BearerHeader(token string) http.Header {
	h := make(http.Header)
	h.Set("Authorization", "Bearer "+token)
	return h
}

func (c *Client) do(ctx context.Context, key endpoint.Key, d endpoint.Descriptor, req Request) (*Response, error) {
	path, query := d.Resolve(req.Params)
	target := c.baseURL + path
	if len(query) > 0 {
		target += "?" + query.Encode()
	}

	payload, err := encodeBody(req.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to encode request body: %w", err)
	}

	requestID := uuid.NewString()
	log := c.log.With().
		Str("request_id", requestID).
		Str("endpoint", string(key)).
		Str("method", d.Method).
		Logger()

	send := c.sender(d.Method, target, payload, req.Header, requestID, log)

	resp, err := exchange(ctx, c.bearer(), send, c.renew, func(s retryState) {
		switch s {
		case stateAwaitingRefresh:
			log.Info().Msg("access token rejected, refreshing")
			if c.hooks.Unauthorized != nil {
				c.hooks.Unauthorized(key)
			}
		case stateRetried:
			log.Info().Msg("token refreshed, retrying")
			if c.hooks.Refreshed != nil {
				c.hooks.Refreshed(key)
			}
		}
	})
	if err != nil {
		log.Debug().Err(err).Msg("call failed")
		return nil, err
	}

	if resp.StatusCode >= 200 && resp.StatusCode <= 299 {
		return resp, nil
	}

	apiErr := newAPIError(resp.StatusCode, resp.Body)
	if apiErr.InvalidSession() {
		c.clearSession(apiErr)
	}
	log.Debug().Int("status", resp.StatusCode).Str("error", apiErr.Message).Msg("call rejected")
	return nil, apiErr
}

// sender builds the per-attempt closure. The request is rebuilt from payload
// each time so a retry resends the same body. The second attempt only
// happens after a refresh, so it carries the new bearer even when the
// caller overrode Authorization.
func (c *Client) sender(
	method, target string,
	payload []byte,
	overrides http.Header,
	requestID string,
	log zerolog.Logger,
) sendFunc {
	attempt := 0
	return func(ctx context.Context, bearer string) (*Response, error) {
		attempt++
		reqCtx, cancel := context.WithTimeout(ctx, c.timeout)
		defer cancel()

		var body io.Reader
		if payload != nil {
			body = bytes.NewReader(payload)
		}
		req, err := http.NewRequestWithContext(reqCtx, method, target, body)
		if err != nil {
			return nil, fmt.Errorf("failed to create request: %w", err)
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Authorization", "Bearer "+bearer)
		req.Header.Set("apikey", c.anonKey)
		req.Header.Set("X-Request-Id", requestID)
		for name, values := range overrides {
			if attempt > 1 && strings.EqualFold(name, "Authorization") {
				continue
			}
			req.Header.Del(name)
			for _, v := range values {
				req.Header.Add(name, v)
			}
		}

		start := time.Now()
		resp, err := c.doerFor(method, payload).DoWithContext(reqCtx, req)
		if resp == nil {
			if err == nil {
				err = errors.New("no response")
			}
			return nil, &NetworkError{Op: method + " " + req.URL.Path, Err: err}
		}
		// an exhausted retry still hands back the last response, which is
		// judged by its status like any other
		defer resp.Body.Close()

		data, err := io.ReadAll(resp.Body)
		if err != nil {
			return nil, &NetworkError{Op: "read " + req.URL.Path, Err: err}
		}

		log.Debug().
			Int("attempt", attempt).
			Int("status", resp.StatusCode).
			Dur("elapsed", time.Since(start)).
			Msg("response received")

		return &Response{StatusCode: resp.StatusCode, Header: resp.Header, Body: data}, nil
	}
}

// doerFor picks the transport for one attempt. Only bodiless idempotent
// requests go through the retrying doer; anything else could be applied twice
// by the backend, and a consumed body cannot be replayed.
func (c *Client) doerFor(method string, payload []byte) Doer {
	if payload == nil && idempotent(method) {
		return c.doer
	}
	return c.once
}

func idempotent(method string) bool {
	switch method {
	case http.MethodGet, http.MethodHead, http.MethodOptions, http.MethodDelete:
		return true
	}
	return false
}

// bearer is the current access token, or the anonymous key without a session.
func (c *Client) bearer() string {
	if tok, ok := c.store.Get(store.KeyAccessToken); ok && tok != "" {
		return tok
	}
	return c.anonKey
}

// renew refreshes the session once for all callers that hit 401 together.
func (c *Client) renew(ctx context.Context) (string, error) {
	// a shared refresh must not die with whichever caller started it
	ctx = context.WithoutCancel(ctx)

	v, err, shared := c.refreshes.Do("refresh", func() (any, error) {
		refreshToken, ok := c.store.Get(store.KeyRefreshToken)
		if !ok || refreshToken == "" {
			err := fmt.Errorf("%w: no refresh token stored", ErrSessionExpired)
			c.clearSession(err)
			return "", err
		}

		tok, ok := c.refresher.Refresh(ctx, refreshToken)
		if !ok {
			err := fmt.Errorf("%w: refresh token rejected", ErrSessionExpired)
			c.clearSession(err)
			return "", err
		}

		if err := c.store.SetAll(map[store.Key]string{
			store.KeyAccessToken:  tok.AccessToken,
			store.KeyRefreshToken: tok.RefreshToken,
		}); err != nil {
			return "", fmt.Errorf("failed to persist refreshed tokens: %w", err)
		}
		return tok.AccessToken, nil
	})
	if shared {
		c.log.Debug().Msg("joined in-flight token refresh")
	}
	if err != nil {
		return "", err
	}
	return v.(string), nil
}

func (c *Client) clearSession(reason error) {
	if err := c.store.ClearAll(); err != nil {
		c.log.Error().Err(err).Msg("failed to clear session")
	}
	c.log.Info().AnErr("reason", reason).Msg("session cleared")
	if c.hooks.SessionCleared != nil {
		c.hooks.SessionCleared(reason)
	}
}

func encodeBody(body any) ([]byte, error) {
	switch b := body.(type) {
	case nil:
		return nil, nil
	case []byte:
		return b, nil
	case json.RawMessage:
		return b, nil
	default:
		return json.Marshal(b)
	}
}
