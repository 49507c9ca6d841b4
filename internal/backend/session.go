package backend

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"

	"github.com/tiny-little/royale-web/internal/store"
)

// GameToken requests a short-lived game token for the member identified by
// accountToken
func (c *Client) GameToken(ctx context.Context, gameID string, accountToken string) (store.Credentials, error) {
	path := fmt.Sprintf("/game-stats/%s", url.PathEscape(gameID))
	return c.issueToken(ctx, http.MethodPost, path, accountToken, struct{}{}, "game token")
}

// GuestToken creates a brand new guest account and returns a game token for it
func (c *Client) GuestToken(ctx context.Context, gameID string) (store.Credentials, error) {
	path := fmt.Sprintf("/game-stats/%s/unprotected", url.PathEscape(gameID))
	return c.issueToken(ctx, http.MethodPost, path, "", nil, "guest token")
}

// RefreshGuestToken issues a new game token for an existing guest account
func (c *Client) RefreshGuestToken(ctx context.Context, gameID string, userID string, username string) (store.Credentials, error) {
	path := fmt.Sprintf("/game-stats/%s/unprotected", url.PathEscape(gameID))
	payload := struct {
		UserID   string `json:"userId"`
		Username string `json:"username"`
	}{
		UserID:   userID,
		Username: username,
	}
	return c.issueToken(ctx, http.MethodPut, path, "", payload, "guest token update")
}

// PromoteGuest asks the backend to convert the guest account userID into one linked
// to the member identified by accountToken
func (c *Client) PromoteGuest(ctx context.Context, userID string, accountToken string) error {
	path := fmt.Sprintf("/api/users/%s/manage-guest-user", url.PathEscape(userID))
	_, err := c.do(ctx, http.MethodPut, path, accountToken, nil)
	return err
}

// issueToken performs a token issuance call and validates that the response carries
// both a token and a user id, regardless of the HTTP status it came with
func (c *Client) issueToken(ctx context.Context, method, path, bearer string, payload interface{}, what string) (store.Credentials, error) {
	body, err := c.do(ctx, method, path, bearer, payload)
	if err != nil {
		return store.Credentials{}, err
	}
	var creds store.Credentials
	if err := decode(body, &creds); err != nil {
		return store.Credentials{}, err
	}
	if creds.Token == "" {
		return store.Credentials{}, &malformedError{message: fmt.Sprintf("invalid %s response: missing token", what)}
	}
	if creds.UserID == "" {
		return store.Credentials{}, &malformedError{message: fmt.Sprintf("invalid %s response: missing userId", what)}
	}
	return creds, nil
}

// Leaderboard returns the raw leaderboard payload for a tournament; its shape varies
// between backend versions and is normalized by the caller
func (c *Client) Leaderboard(ctx context.Context, gameID string, tournamentType string, limit int) (json.RawMessage, error) {
	path := fmt.Sprintf("/games/%s/tournaments/%s/leaderboard?limit=%d", url.PathEscape(gameID), url.PathEscape(tournamentType), limit)
	body, err := c.do(ctx, http.MethodGet, path, "", nil)
	if err != nil {
		return nil, err
	}
	return json.RawMessage(body), nil
}
