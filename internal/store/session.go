package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// ErrIncompleteCredentials is returned when an attempt is made to persist game
// credentials with any of token, userId or username missing
var ErrIncompleteCredentials = errors.New("game credentials require token, userId and username")

// Credentials are the short-lived game token along with the identity it was issued
// for
type Credentials struct {
	Token    string `json:"token"`
	UserID   string `json:"userId"`
	Username string `json:"username"`
}

// Complete reports whether every field is set
func (c Credentials) Complete() bool {
	return c.Token != "" && c.UserID != "" && c.Username != ""
}

// GuestIdentity is the persisted user id/username pair that lets an anonymous
// visitor resume the same guest account on a later visit
type GuestIdentity struct {
	UserID   string
	Username string
}

// AuthProvider records an identity provider linked to an account
type AuthProvider struct {
	ProviderID string `json:"providerId"`
	UID        string `json:"uid"`
}

// Profile is the denormalized user profile kept alongside the account credential
type Profile struct {
	ID            string         `json:"id"`
	AuthUserID    string         `json:"authUserId,omitempty"`
	Email         string         `json:"email"`
	Name          string         `json:"name"`
	DisplayName   string         `json:"displayName,omitempty"`
	Photo         string         `json:"photo,omitempty"`
	Country       string         `json:"country,omitempty"`
	AuthProviders []AuthProvider `json:"authProviders,omitempty"`
}

// Account is the long-lived bearer credential and the profile it belongs to
type Account struct {
	Token   string
	Profile *Profile
}

// SaveSession writes token, userId and username in a single atomic Save. The game
// token expires after GameTokenTTL; the identity is kept for GuestIdentityTTL so that
// a returning visitor can resume it.
func SaveSession(st Store, creds Credentials, now time.Time) error {
	if !creds.Complete() {
		return ErrIncompleteCredentials
	}
	return st.Save(
		Entry{Key: KeyGameToken, Value: creds.Token, Expires: now.Add(GameTokenTTL)},
		Entry{Key: KeyUserID, Value: creds.UserID, Expires: now.Add(GuestIdentityTTL)},
		Entry{Key: KeyUsername, Value: creds.Username, Expires: now.Add(GuestIdentityTTL)},
	)
}

// LoadGuest returns the previously stored guest identity. Presence is decided by the
// user id alone; a missing username is passed through as empty and left for the
// backend to reconcile.
func LoadGuest(st Store) (GuestIdentity, bool) {
	userID, ok := st.Get(KeyUserID)
	if !ok || userID == "" {
		return GuestIdentity{}, false
	}
	username, _ := st.Get(KeyUsername)
	return GuestIdentity{UserID: userID, Username: username}, true
}

// LoadAccount returns the stored account credential and, when present and valid,
// the profile stored next to it
func LoadAccount(st Store) (Account, bool) {
	token, ok := st.Get(KeyAccountToken)
	if !ok || token == "" {
		return Account{}, false
	}
	account := Account{Token: token}
	if raw, ok := st.Get(KeyUserData); ok && raw != "" {
		var profile Profile
		if err := json.Unmarshal([]byte(raw), &profile); err == nil {
			account.Profile = &profile
		}
	}
	return account, true
}

// SaveAccount persists the account credential together with its profile
func SaveAccount(st Store, account Account, now time.Time) error {
	if account.Token == "" {
		return fmt.Errorf("account token is required")
	}
	entries := []Entry{
		{Key: KeyAccountToken, Value: account.Token, Expires: now.Add(AccountTTL)},
	}
	if account.Profile == nil {
		// Don't leave a profile belonging to some previous account behind
		if err := st.Save(entries...); err != nil {
			return err
		}
		return st.Delete(KeyUserData)
	}
	data, err := json.Marshal(account.Profile)
	if err != nil {
		return fmt.Errorf("failed to encode user profile: %w", err)
	}
	entries = append(entries, Entry{Key: KeyUserData, Value: string(data), Expires: now.Add(AccountTTL)})
	return st.Save(entries...)
}

// ClearAccount discards the account credential and profile
func ClearAccount(st Store) error {
	return st.Delete(KeyAccountToken, KeyUserData)
}
