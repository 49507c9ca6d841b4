package session

import (
	"fmt"
	"strings"
)

// State is the lifecycle of a single page's session resolution
type State int

const (
	Idle State = iota
	Resolving
	Resolved
	Failed
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Resolving:
		return "resolving"
	case Resolved:
		return "resolved"
	case Failed:
		return "failed"
	}
	return fmt.Sprintf("State(%d)", int(s))
}

// transitions lists every legal state change. Resolving is only ever re-entered from
// Failed, and only by an explicit retry.
var transitions = map[State][]State{
	Idle:      {Resolving},
	Resolving: {Resolved, Failed},
	Failed:    {Resolving},
}

func canTransition(from, to State) bool {
	for _, s := range transitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// Mode identifies which identity flow a resolution attempt runs
type Mode string

const (
	ModeAuthenticated Mode = "authenticated"
	ModeGuestResume   Mode = "guest-resume"
	ModeGuestNew      Mode = "guest-new"
)

// OAuthStatus is the state of the visitor's third-party sign-in session
type OAuthStatus int

const (
	OAuthLoading OAuthStatus = iota
	OAuthAuthenticated
	OAuthUnauthenticated
)

func (s OAuthStatus) String() string {
	switch s {
	case OAuthLoading:
		return "loading"
	case OAuthAuthenticated:
		return "authenticated"
	case OAuthUnauthenticated:
		return "unauthenticated"
	}
	return fmt.Sprintf("OAuthStatus(%d)", int(s))
}

// UnauthenticatedToken is the placeholder account credential used by clients that
// have explicitly been told there is no signed-in user
const UnauthenticatedToken = "unauthenticated"

// Upstream is what the resolver knows about the two identity sources it depends on:
// the stored account credential and the OAuth sign-in session
type Upstream struct {
	AccountToken   string
	AccountLoading bool
	OAuth          OAuthStatus
}

// Settled reports whether both sources have reached a definite answer. An OAuth
// session that is signed in but has not been exchanged for an account credential yet
// is not settled: resolving at that point would wrongly treat a member as a guest.
func (u Upstream) Settled() bool {
	if u.AccountLoading || u.OAuth == OAuthLoading {
		return false
	}
	if u.OAuth == OAuthAuthenticated && !u.HasAccount() {
		return false
	}
	return true
}

// HasAccount reports whether AccountToken is a usable credential
func (u Upstream) HasAccount() bool {
	return u.AccountToken != "" && u.AccountToken != UnauthenticatedToken
}

// IsGuestName reports whether username looks like one the backend assigns to guest
// accounts
func IsGuestName(username string) bool {
	return strings.Contains(strings.ToLower(username), "guest")
}
