package backend

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
)

// ErrNotAuthenticated means an endpoint needs a bearer token and none is set.
var ErrNotAuthenticated = errors.New("not authenticated")

// User is the account profile returned by auth endpoints.
type User struct {
	ID          ID     `json:"id,omitempty"`
	Email       string `json:"email"`
	DisplayName string `json:"displayName"`
	AgeGroup    string `json:"ageGroup,omitempty"`
}

// Session is a successful login or registration.
type Session struct {
	Token string `json:"token"`
	User  User   `json:"user"`
}

// RegisterRequest creates a new account.
type RegisterRequest struct {
	Email       string `json:"email"`
	Password    string `json:"password"`
	DisplayName string `json:"displayName"`
	AgeGroup    string `json:"ageGroup"`
}

// Login exchanges credentials for a token and stores it on the client.
func (c *Client) Login(ctx context.Context, email string, password string) (Session, error) {
	body := map[string]string{"email": strings.TrimSpace(email), "password": password}
	return c.authenticate(ctx, "/api/auth/login", body)
}

// Register creates an account and stores the returned token on the client.
func (c *Client) Register(ctx context.Context, req RegisterRequest) (Session, error) {
	req.Email = strings.TrimSpace(req.Email)
	req.DisplayName = strings.TrimSpace(req.DisplayName)
	if req.AgeGroup == "" {
		req.AgeGroup = "middle"
	}
	return c.authenticate(ctx, "/api/auth/register", req)
}

func (c *Client) authenticate(ctx context.Context, path string, body any) (Session, error) {
	var session Session
	if err := c.doJSON(ctx, http.MethodPost, path, body, &session); err != nil {
		return Session{}, err
	}
	if strings.TrimSpace(session.Token) == "" {
		return Session{}, fmt.Errorf("%s: response missing token", path)
	}
	c.SetToken(session.Token)
	return session, nil
}

// Logout notifies the backend best-effort. The local token is cleared even
// when the call fails; the returned error is informational only.
func (c *Client) Logout(ctx context.Context) error {
	defer c.SetToken("")
	if !c.Authenticated() {
		return nil
	}
	return c.doJSON(ctx, http.MethodPost, "/api/auth/logout", nil, nil)
}

// CheckUsername reports whether a username is free.
func (c *Client) CheckUsername(ctx context.Context, name string) (bool, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return false, errors.New("username must not be empty")
	}
	var reply struct {
		Available bool `json:"available"`
	}
	if err := c.doJSON(ctx, http.MethodGet, "/api/auth/check-username/"+url.PathEscape(name), nil, &reply); err != nil {
		return false, err
	}
	return reply.Available, nil
}
