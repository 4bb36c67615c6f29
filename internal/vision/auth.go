package vision

import (
	"context"
	"errors"
	"net/http"

	"github.com/rewired-gh/zonewatch/internal/models"
)

// Credential is the result of a successful login.
type Credential struct {
	Token    string
	Username string
}

type registerRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginResponse struct {
	Message  string `json:"message"`
	Token    string `json:"token"`
	Username string `json:"username"`
}

type userResponse struct {
	Username *string `json:"username"`
}

type profilesResponse struct {
	Profiles *[]models.Profile `json:"profiles"`
}

// Register creates an account and returns the backend's confirmation message.
func (c *Client) Register(ctx context.Context, username, email, password string) (string, error) {
	body, err := jsonBody(registerRequest{Username: username, Email: email, Password: password})
	if err != nil {
		return "", err
	}
	var env envelope
	err = c.call(ctx, request{
		method:      http.MethodPost,
		path:        "/register",
		body:        body,
		contentType: "application/json",
	}, &env)
	if err != nil {
		return "", err
	}
	return env.Message, nil
}

// Login exchanges email and password for a session credential.
func (c *Client) Login(ctx context.Context, email, password string) (*Credential, error) {
	body, err := jsonBody(loginRequest{Email: email, Password: password})
	if err != nil {
		return nil, err
	}
	var resp loginResponse
	err = c.call(ctx, request{
		method:      http.MethodPost,
		path:        "/login",
		body:        body,
		contentType: "application/json",
	}, &resp)
	if err != nil {
		return nil, err
	}
	if resp.Token == "" {
		return nil, malformed("/login", errors.New("missing token"))
	}
	return &Credential{Token: resp.Token, Username: resp.Username}, nil
}

// CurrentUser returns the display name of the logged-in user.
func (c *Client) CurrentUser(ctx context.Context) (string, error) {
	var resp userResponse
	if err := c.call(ctx, request{method: http.MethodGet, path: "/current-user", auth: true}, &resp); err != nil {
		return "", err
	}
	if resp.Username == nil {
		return "", malformed("/current-user", errors.New("missing username"))
	}
	return *resp.Username, nil
}

// Profiles lists the accounts known to the backend.
func (c *Client) Profiles(ctx context.Context) ([]models.Profile, error) {
	var resp profilesResponse
	if err := c.call(ctx, request{method: http.MethodGet, path: "/profiles", auth: true}, &resp); err != nil {
		return nil, err
	}
	if resp.Profiles == nil {
		return nil, malformed("/profiles", errors.New("missing profiles"))
	}
	return *resp.Profiles, nil
}
