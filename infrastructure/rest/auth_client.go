// Package rest implements the request/response side of the chat service:
// authentication against the identity endpoints and room history fetches.
package rest

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"chatsync/auth"
	"chatsync/domain"
	"chatsync/errors"
)

const defaultTimeout = 10 * time.Second

// AuthClient performs a single login or register attempt per user action.
// Transport failures map to ErrAuthUnreachable; 4xx responses map to
// AuthRejected carrying the server-provided message verbatim.
type AuthClient struct {
	baseURL  string
	deviceID string
	client   *http.Client
	log      *slog.Logger
}

func NewAuthClient(baseURL, deviceID string, log *slog.Logger) *AuthClient {
	return &AuthClient{
		baseURL:  baseURL,
		deviceID: deviceID,
		client:   &http.Client{Timeout: defaultTimeout},
		log:      log,
	}
}

type authRequest struct {
	Username string `json:"username,omitempty"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type authResponse struct {
	Token string      `json:"token"`
	User  domain.User `json:"user"`
}

type rejection struct {
	Message string `json:"message"`
}

func (c *AuthClient) Login(ctx context.Context, email, password string) (domain.Session, error) {
	creds := domain.Credentials{Email: email, Password: password}
	if err := auth.ValidateLogin(creds); err != nil {
		return domain.Session{}, err
	}
	return c.post(ctx, "/api/auth/login", authRequest{Email: email, Password: password})
}

func (c *AuthClient) Register(ctx context.Context, username, email, password string) (domain.Session, error) {
	creds := domain.Credentials{Username: username, Email: email, Password: password}
	if err := auth.ValidateRegister(creds); err != nil {
		return domain.Session{}, err
	}
	return c.post(ctx, "/api/auth/register", authRequest{Username: username, Email: email, Password: password})
}

func (c *AuthClient) post(ctx context.Context, path string, payload authRequest) (domain.Session, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return domain.Session{}, fmt.Errorf("marshal auth request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return domain.Session{}, fmt.Errorf("%w: %v", errors.ErrAuthUnreachable, err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.deviceID != "" {
		req.Header.Set("X-Device-ID", c.deviceID)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return domain.Session{}, fmt.Errorf("%w: %v", errors.ErrAuthUnreachable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		var rej rejection
		_ = json.NewDecoder(resp.Body).Decode(&rej)
		c.log.Debug(fmt.Sprintf("Auth rejected with status %d", resp.StatusCode))
		return domain.Session{}, &errors.AuthRejected{Message: rej.Message}
	}

	var result authResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return domain.Session{}, fmt.Errorf("%w: invalid response: %v", errors.ErrAuthUnreachable, err)
	}

	session := domain.Session{Token: result.Token, User: result.User}
	if !session.Present() {
		return domain.Session{}, fmt.Errorf("%w: incomplete session in response", errors.ErrAuthUnreachable)
	}
	return session, nil
}
