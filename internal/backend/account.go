package backend

import (
	"context"
	"net/http"

	"github.com/tiny-little/royale-web/internal/store"
)

// OAuthIdentity is what we know about a visitor after an identity provider has
// vouched for them; the backend finds or creates the matching member account
type OAuthIdentity struct {
	Name     string `json:"name"`
	Image    string `json:"image"`
	Email    string `json:"email"`
	Provider string `json:"provider"`
	Sub      string `json:"sub"`
}

// AuthResponse is the backend's answer to an OAuth exchange
type AuthResponse struct {
	Token         string               `json:"token"`
	ID            string               `json:"id"`
	AuthUserID    string               `json:"authUserId"`
	Email         string               `json:"email"`
	DisplayName   string               `json:"displayName"`
	Photo         string               `json:"photo"`
	Country       string               `json:"country"`
	AuthProviders []store.AuthProvider `json:"authProviders"`
}

// Account converts the response into the credential + profile pair we persist
func (r *AuthResponse) Account() store.Account {
	return store.Account{
		Token: r.Token,
		Profile: &store.Profile{
			ID:            r.ID,
			AuthUserID:    r.AuthUserID,
			Email:         r.Email,
			Name:          r.DisplayName,
			DisplayName:   r.DisplayName,
			Photo:         r.Photo,
			Country:       r.Country,
			AuthProviders: r.AuthProviders,
		},
	}
}

// LoginResponse is the backend's answer to an email/password login
type LoginResponse struct {
	Token string        `json:"token"`
	User  store.Profile `json:"user"`
}

// CredentialsLogin authenticates a member by email and password
func (c *Client) CredentialsLogin(ctx context.Context, email string, password string) (*LoginResponse, error) {
	payload := struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}{
		Email:    email,
		Password: password,
	}
	body, err := c.do(ctx, http.MethodPost, "/auth/credentials/login", "", payload)
	if err != nil {
		return nil, err
	}
	var result LoginResponse
	if err := decode(body, &result); err != nil {
		return nil, err
	}
	if result.Token == "" {
		return nil, &malformedError{message: "invalid login response: missing token"}
	}
	return &result, nil
}

// OAuthLogin exchanges a provider-verified identity for a member account credential
func (c *Client) OAuthLogin(ctx context.Context, identity OAuthIdentity) (*AuthResponse, error) {
	body, err := c.do(ctx, http.MethodPost, "/auth/login", "", identity)
	if err != nil {
		return nil, err
	}
	var result AuthResponse
	if err := decode(body, &result); err != nil {
		return nil, err
	}
	if result.Token == "" || result.ID == "" {
		return nil, &malformedError{message: "invalid response from backend: missing token or user ID"}
	}
	return &result, nil
}

// Register creates a new member account. The backend does not log the new member in;
// the caller is expected to send them through a login afterwards.
func (c *Client) Register(ctx context.Context, payload map[string]interface{}) error {
	_, err := c.do(ctx, http.MethodPost, "/auth/register", "", payload)
	return err
}
