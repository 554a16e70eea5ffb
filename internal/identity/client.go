// Package identity is the client for the hosted identity provider. Token and
// session lifecycle stay inside the provider; this client only exchanges
// credentials for an opaque bearer string.
package identity

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
)

// Input validation errors, reported before any network call.
var (
	ErrMissingFields    = errors.New("please fill in all fields")
	ErrPasswordTooShort = errors.New("password must be at least 8 characters")
)

// Outcome tags the result of a sign-in attempt. The provider's callback
// branches map to: success -> OutcomeAuthenticated, new-credential-required
// -> OutcomeNewPasswordRequired, failure -> an error return.
type Outcome string

const (
	OutcomeAuthenticated       Outcome = "authenticated"
	OutcomeNewPasswordRequired Outcome = "new_password_required"
)

// SignInResult carries the tagged outcome of a successful exchange.
type SignInResult struct {
	Outcome      Outcome
	Token        string
	RefreshToken string
}

// Client talks to the identity provider over JSON/HTTP.
type Client struct {
	endpoint string
	clientID string
	httpc    *http.Client
}

// NewClient creates an identity client for the given provider endpoint and
// app client ID.
func NewClient(endpoint, clientID string) *Client {
	return &Client{
		endpoint: strings.TrimRight(strings.TrimSpace(endpoint), "/"),
		clientID: clientID,
		httpc:    &http.Client{Timeout: 15 * time.Second},
	}
}

// SignUp registers a new account. The provider sends a confirmation code to
// the given email address.
func (c *Client) SignUp(ctx context.Context, email, password, name string) error {
	if email == "" || password == "" || name == "" {
		return ErrMissingFields
	}
	if len(password) < 8 {
		return ErrPasswordTooShort
	}
	return c.post(ctx, "/signup", map[string]string{
		"client_id": c.clientID,
		"email":     email,
		"password":  password,
		"name":      name,
	}, nil)
}

// ConfirmSignUp submits the emailed confirmation code.
func (c *Client) ConfirmSignUp(ctx context.Context, email, code string) error {
	if email == "" || code == "" {
		return ErrMissingFields
	}
	return c.post(ctx, "/confirm", map[string]string{
		"client_id": c.clientID,
		"email":     email,
		"code":      code,
	}, nil)
}

// SignIn exchanges email and password for a bearer credential. Provider
// rejections surface verbatim as errors; there is no retry.
func (c *Client) SignIn(ctx context.Context, email, password string) (SignInResult, error) {
	if email == "" || password == "" {
		return SignInResult{}, ErrMissingFields
	}

	var body struct {
		Token        string `json:"token"`
		RefreshToken string `json:"refresh_token"`
		Challenge    string `json:"challenge"`
	}
	if err := c.post(ctx, "/signin", map[string]string{
		"client_id": c.clientID,
		"email":     email,
		"password":  password,
	}, &body); err != nil {
		return SignInResult{}, err
	}

	if body.Challenge == "NEW_PASSWORD_REQUIRED" {
		return SignInResult{Outcome: OutcomeNewPasswordRequired}, nil
	}
	if body.Token == "" {
		return SignInResult{}, errors.New("identity provider returned no credential")
	}
	return SignInResult{
		Outcome:      OutcomeAuthenticated,
		Token:        body.Token,
		RefreshToken: body.RefreshToken,
	}, nil
}

// RestoreSession exchanges a stored refresh token for a fresh bearer
// credential, the headless equivalent of restoring a saved session.
func (c *Client) RestoreSession(ctx context.Context, refreshToken string) (token, email string, err error) {
	if refreshToken == "" {
		return "", "", ErrMissingFields
	}

	var body struct {
		Token string `json:"token"`
		Email string `json:"email"`
	}
	if err := c.post(ctx, "/token", map[string]string{
		"client_id":     c.clientID,
		"refresh_token": refreshToken,
	}, &body); err != nil {
		return "", "", err
	}
	if body.Token == "" {
		return "", "", errors.New("identity provider returned no credential")
	}
	return body.Token, body.Email, nil
}

// post sends a JSON request and decodes the response into out (when non-nil).
// Provider error messages are surfaced verbatim.
func (c *Client) post(ctx context.Context, path string, payload map[string]string, out any) error {
	buf, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint+path, bytes.NewReader(buf))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpc.Do(req)
	if err != nil {
		return fmt.Errorf("identity provider: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return providerError(resp)
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode identity response: %w", err)
	}
	return nil
}

// providerError extracts the provider's message so it can be shown to the
// user as-is.
func providerError(resp *http.Response) error {
	data, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	var body struct {
		Message string `json:"message"`
	}
	if err := json.Unmarshal(data, &body); err == nil && body.Message != "" {
		return errors.New(body.Message)
	}
	return fmt.Errorf("identity provider returned HTTP %d", resp.StatusCode)
}
