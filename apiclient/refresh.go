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

	"github.com/rs/zerolog"
	"golang.org/x/oauth2"
)

const refreshPath = "/auth/v1/token?grant_type=refresh_token"

// Refresher exchanges a refresh token for a new token pair. It reports
// failure as false and never returns a partial pair.
type Refresher interface {
	Refresh(ctx context.Context, refreshToken string) (*oauth2.Token, bool)
}

// TokenRefresher talks to the token endpoint directly with the anonymous key.
// It does not go through Client, so it cannot trigger another refresh.
type TokenRefresher struct {
	tokenURL string
	anonKey  string
	doer     Doer
	timeout  time.Duration
	log      zerolog.Logger
}

// NewTokenRefresher returns a refresher for the backend at baseURL. doer
// should not retry on its own.
func NewTokenRefresher(baseURL, anonKey string, doer Doer, timeout time.Duration, log zerolog.Logger) *TokenRefresher {
	return &TokenRefresher{
		tokenURL: strings.TrimRight(baseURL, "/") + refreshPath,
		anonKey:  anonKey,
		doer:     doer,
		timeout:  timeout,
		log:      log,
	}
}

// Refresh implements Refresher. Every failure is logged and reported as false.
func (r *TokenRefresher) Refresh(ctx context.Context, refreshToken string) (*oauth2.Token, bool) {
	tok, err := r.exchange(ctx, refreshToken)
	if err != nil {
		ev := r.log.Warn().Err(err)
		var retrieveErr *oauth2.RetrieveError
		if errors.As(err, &retrieveErr) && retrieveErr.Response != nil {
			ev = ev.Int("status", retrieveErr.Response.StatusCode).Str("error_code", retrieveErr.ErrorCode)
		}
		ev.Msg("token refresh failed")
		return nil, false
	}
	r.log.Debug().Time("expiry", tok.Expiry).Msg("token refreshed")
	return tok, true
}

func (r *TokenRefresher) exchange(ctx context.Context, refreshToken string) (*oauth2.Token, error) {
	reqCtx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	payload, err := json.Marshal(map[string]string{"refresh_token": refreshToken})
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(reqCtx, http.MethodPost, r.tokenURL, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to create refresh request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("apikey", r.anonKey)

	resp, err := r.doer.DoWithContext(reqCtx, req)
	if err != nil {
		return nil, fmt.Errorf("refresh request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		retrieveErr := &oauth2.RetrieveError{Response: resp, Body: body}
		var eb errorBody
		if json.Unmarshal(body, &eb) == nil {
			retrieveErr.ErrorCode = eb.Error
			if retrieveErr.ErrorCode == "" {
				retrieveErr.ErrorCode = eb.ErrorCode
			}
			retrieveErr.ErrorDescription = eb.ErrorDescription
			if retrieveErr.ErrorDescription == "" {
				retrieveErr.ErrorDescription = eb.Msg
			}
		}
		return nil, retrieveErr
	}

	var tokenResp struct {
		AccessToken  string `json:"access_token"`
		RefreshToken string `json:"refresh_token"`
		TokenType    string `json:"token_type"`
		ExpiresIn    int    `json:"expires_in"`
	}
	if err := json.Unmarshal(body, &tokenResp); err != nil {
		return nil, fmt.Errorf("failed to parse token response: %w", err)
	}
	if tokenResp.AccessToken == "" {
		return nil, errors.New("access_token is empty")
	}
	if tokenResp.RefreshToken == "" {
		return nil, errors.New("refresh_token is empty")
	}

	tok := &oauth2.Token{
		AccessToken:  tokenResp.AccessToken,
		RefreshToken: tokenResp.RefreshToken,
		TokenType:    tokenResp.TokenType,
	}
	if tokenResp.ExpiresIn > 0 {
		tok.Expiry = time.Now().Add(time.Duration(tokenResp.ExpiresIn) * time.Second)
	}
	return tok, nil
}
