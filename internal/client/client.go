// Package client is the device side of the auth API. It keeps the user's
// credential in device storage and refreshes the access token ahead of its
// expiry before every authenticated request.
package client

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

	"github.com/rs/zerolog/log"

	"github.com/charleshuang3/authsession/internal/contract"
	"github.com/charleshuang3/authsession/internal/types"
)

var (
	logger = log.With().Str("component", "client").Logger()
)

const defaultTimeout = 30 * time.Second

type Config struct {
	// BaseURL of the API, e.g. https://auth.example.com
	BaseURL string
	// HTTPClient defaults to a client with a 30s timeout.
	HTTPClient *http.Client
	// RefreshBefore defaults to DefaultRefreshBefore.
	RefreshBefore time.Duration
	Retry         RetryConfig
}

type Client struct {
	baseURL string
	http    *http.Client
	tokens  *TokenStore
	gate    *RefreshGate
}

func New(conf Config, storage DeviceStorage) *Client {
	httpClient := conf.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: defaultTimeout}
	}

	c := &Client{
		baseURL: strings.TrimSuffix(conf.BaseURL, "/"),
		http:    httpClient,
		tokens:  NewTokenStore(storage),
	}
	c.gate = newRefreshGate(c.tokens, c.RefreshToken, conf.RefreshBefore, conf.Retry)
	return c
}

// Tokens gives access to the stored credential.
func (c *Client) Tokens() *TokenStore {
	return c.tokens
}

// Login stores the returned credential on success.
func (c *Client) Login(ctx context.Context, email types.Email, password types.Password) (*contract.User, error) {
	payload, err := call[contract.AuthPayload](ctx, c, contract.Login, &contract.LoginBody{
		Email:    email,
		Password: password,
	}, "")
	if err != nil {
		return nil, err
	}

	if err := c.tokens.Set(&AuthToken{
		UserID:       payload.User.ID,
		AccessToken:  payload.AccessToken,
		RefreshToken: payload.RefreshToken,
	}); err != nil {
		return nil, err
	}
	return &payload.User, nil
}

// RefreshToken calls the endpoint once. It neither reads nor writes the
// stored credential, authenticated calls go through the RefreshGate instead.
func (c *Client) RefreshToken(ctx context.Context, body *contract.RefreshTokenBody) (*contract.AuthPayload, error) {
	return call[contract.AuthPayload](ctx, c, contract.RefreshToken, body, "")
}

// Logout ends the sessions of the user on every device and forgets the
// credential.
func (c *Client) Logout(ctx context.Context) error {
	if _, err := authCall[contract.NoPayload](ctx, c, contract.Logout, &contract.NoBody{}); err != nil {
		return err
	}
	return c.tokens.Remove()
}

func (c *Client) UpdateProfile(ctx context.Context, body *contract.UpdateProfileBody) (*contract.User, error) {
	payload, err := authCall[contract.UserPayload](ctx, c, contract.UpdateProfile, body)
	if err != nil {
		return nil, err
	}
	return &payload.User, nil
}

func (c *Client) Home(ctx context.Context) (*contract.User, error) {
	payload, err := authCall[contract.UserPayload](ctx, c, contract.Home, nil)
	if err != nil {
		return nil, err
	}
	return &payload.User, nil
}

func authCall[T any](ctx context.Context, c *Client, endpoint contract.Endpoint, body any) (*T, error) {
	token, err := c.gate.AuthToken(ctx)
	if err != nil {
		return nil, err
	}

	out, err := call[T](ctx, c, endpoint, body, token.AccessToken.String())
	if errors.Is(err, contract.CodeUnauthorised) {
		if rmErr := c.tokens.Remove(); rmErr != nil {
			logger.Error().Err(rmErr).Msg("Failed to remove credentials")
		}
	}
	return out, err
}

// call sends one request and unwraps the envelope. An Err envelope is returned
// as its contract.Code.
func call[T any](ctx context.Context, c *Client, endpoint contract.Endpoint, body any, accessToken string) (*T, error) {
	var reader io.Reader
	if body != nil && endpoint.Method != http.MethodGet && endpoint.Method != http.MethodDelete {
		b, err := json.Marshal(body)
		if err != nil {
			return nil, err
		}
		reader = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, endpoint.Method, c.baseURL+endpoint.Route, reader)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	if accessToken != "" {
		req.Header.Set("Authorization", "Bearer "+accessToken)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("%w: %v", ErrNetwork, err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK, http.StatusBadRequest, http.StatusInternalServerError:
	default:
		return nil, fmt.Errorf("%w: unexpected status %d", ErrServer, resp.StatusCode)
	}

	var env contract.Envelope[T]
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecode, err)
	}

	switch env.Tag {
	case contract.TagOk, contract.TagAuthOk:
		if env.Data == nil {
			return nil, fmt.Errorf("%w: missing data", ErrDecode)
		}
		return env.Data, nil
	case contract.TagErr, contract.TagAuthErr:
		if env.Code == "" {
			return nil, fmt.Errorf("%w: missing code", ErrDecode)
		}
		return nil, env.Code
	case contract.TagServerError, contract.TagAuthServerError:
		logger.Error().Str("errorID", env.ErrorID).Str("route", endpoint.Route).Msg("Server error")
		return nil, fmt.Errorf("%w: errorID %s", ErrServer, env.ErrorID)
	}
	return nil, fmt.Errorf("%w: unknown envelope %q", ErrDecode, env.Tag)
}
