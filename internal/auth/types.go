package auth

import (
	"github.com/tiny-little/royale-web/internal/store"
)

// AuthState describes the visitor's member identity
type AuthState struct {
	LoggedIn bool           `json:"loggedIn"`
	User     *store.Profile `json:"user,omitempty"`
	Provider string         `json:"provider,omitempty"`
	Error    string         `json:"error,omitempty"`
}

// LoginResult is returned by every endpoint that signs a member in
type LoginResult struct {
	Success bool           `json:"success"`
	Message string         `json:"message,omitempty"`
	Token   string         `json:"token,omitempty"`
	User    *store.Profile `json:"user,omitempty"`
	Error   string         `json:"error,omitempty"`
}
