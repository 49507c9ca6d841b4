package server

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tiny-little/royale-web/internal/auth"
	"github.com/tiny-little/royale-web/internal/clock"
	"github.com/tiny-little/royale-web/internal/handoff"
	"github.com/tiny-little/royale-web/internal/presentation"
	"github.com/tiny-little/royale-web/internal/session"
	"github.com/tiny-little/royale-web/internal/store"
)

const (
	desktopUA  = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"
	androidUA  = "Mozilla/5.0 (Linux; Android 14; Pixel 8) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Mobile Safari/537.36"
	facebookUA = "Mozilla/5.0 (iPhone; CPU iPhone OS 17_0 like Mac OS X) AppleWebKit/605.1.15 (KHTML, like Gecko) Mobile/15E148 [FBAN/FBIOS;FBAV/440.0.0.0]"
	iphoneUA   = "Mozilla/5.0 (iPhone; CPU iPhone OS 17_0 like Mac OS X) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.0 Mobile/15E148 Safari/604.1"
)

func Test_Server_handlePlayGame_bootstrap(t *testing.T) {
	s, _, _ := newTestServer(&mockBackend{}, nil)
	res := do(s, get("/playgame", desktopUA))

	assert.Equal(t, http.StatusOK, res.Code)
	assert.Contains(t, res.Body.String(), "window.location.replace")
	assert.Empty(t, s.plays.plays)
}

func Test_Server_handlePlayGame_freshVisitor(t *testing.T) {
	b := &mockBackend{guest: store.Credentials{Token: "tok1", UserID: "g1", Username: "Guest_1"}}
	s, _, _ := newTestServer(b, nil)
	res := do(s, get("/playgame?vw=1280&vh=720", desktopUA))

	assert.Equal(t, http.StatusOK, res.Code)
	body := res.Body.String()
	assert.Contains(t, body, `<iframe id="game"`)
	assert.Contains(t, body, "user=g1")
	assert.Contains(t, body, "login-token=tok1")
	assert.Contains(t, body, "vw=1280")
	assert.Contains(t, body, "branch=develop")
	assert.Equal(t, []string{"POST guest"}, b.callLog())

	cookies := cookieValues(res)
	assert.Equal(t, "tok1", cookies[store.KeyGameToken])
	assert.Equal(t, "g1", cookies[store.KeyUserID])
	assert.Equal(t, "Guest_1", cookies[store.KeyUsername])
}

func Test_Server_handlePlayGame_inAppBrowserOffersCopyLink(t *testing.T) {
	b := &mockBackend{guest: store.Credentials{Token: "tok1", UserID: "g1", Username: "Guest_1"}}
	s, _, _ := newTestServer(b, nil)
	res := do(s, get("/playgame?vw=1280&vh=720", facebookUA))

	assert.Equal(t, http.StatusOK, res.Code)
	body := res.Body.String()
	assert.Contains(t, body, `<div id="in-app-warning"`)
	assert.Contains(t, body, "Facebook")
	assert.Contains(t, body, `<button data-action="copy-link">Copy link</button>`)
	assert.Contains(t, body, "navigator.clipboard.writeText(url)")
	assert.Contains(t, body, `window.alert("Copy this link:\n" + url)`)
}

func Test_Server_handlePlayGame_clientDisconnectDoesNotCancelResolution(t *testing.T) {
	started := make(chan struct{})
	release := make(chan struct{})
	b := &mockBackend{
		guest: store.Credentials{Token: "tok1", UserID: "g1", Username: "Guest_1"},
		onGuestToken: func(ctx context.Context) error {
			close(started)
			<-release
			return ctx.Err()
		},
	}
	s, _, _ := newTestServer(b, nil)

	ctx, cancel := context.WithCancel(context.Background())
	req := get("/playgame?vw=1280&vh=720", desktopUA).WithContext(ctx)
	done := make(chan *httptest.ResponseRecorder)
	go func() { done <- do(s, req) }()

	// The browser goes away while the guest token is being issued
	<-started
	cancel()
	close(release)
	res := <-done

	assert.Equal(t, http.StatusOK, res.Code)
	assert.Contains(t, res.Body.String(), "login-token=tok1")
	view := onlyPlay(t, s).resolver.View()
	assert.Equal(t, session.Resolved, view.State)
	assert.Equal(t, "tok1", view.Token)
	assert.Empty(t, view.Error)
}

func Test_Server_handlePlayGame_returningGuest(t *testing.T) {
	b := &mockBackend{guest: store.Credentials{Token: "tok2", UserID: "g1", Username: "Guest_1"}}
	s, _, _ := newTestServer(b, nil)
	req := get("/playgame?vw=1280&vh=720", desktopUA)
	req.AddCookie(&http.Cookie{Name: store.KeyUserID, Value: "g1"})
	req.AddCookie(&http.Cookie{Name: store.KeyUsername, Value: "Guest_1"})
	res := do(s, req)

	assert.Equal(t, http.StatusOK, res.Code)
	assert.Equal(t, []string{"PUT guest g1 Guest_1"}, b.callLog())
	assert.Contains(t, res.Body.String(), "login-token=tok2")
}

func Test_Server_handlePlayGame_exchangesIdentityProviderSession(t *testing.T) {
	b := &mockBackend{member: store.Credentials{Token: "tok3", UserID: "u1", Username: "alice"}}
	sessions := &mockSessions{
		claims:  &auth.SessionClaims{Provider: "google", Email: "alice@example.com", Name: "alice"},
		account: store.Account{Token: "acct-jwt"},
	}
	s, _, _ := newTestServer(b, sessions)
	res := do(s, get("/playgame?vw=1280&vh=720", desktopUA))

	assert.Equal(t, http.StatusOK, res.Code)
	assert.Equal(t, 1, sessions.exchanges)
	assert.Equal(t, []string{"POST member acct-jwt"}, b.callLog())
	assert.Equal(t, "acct-jwt", cookieValues(res)[store.KeyAccountToken])
}

func Test_Server_handlePlayGame_waitsForFailedExchange(t *testing.T) {
	b := &mockBackend{}
	sessions := &mockSessions{
		claims:      &auth.SessionClaims{Provider: "line"},
		exchangeErr: fmt.Errorf("backend down"),
	}
	s, _, _ := newTestServer(b, sessions)
	res := do(s, get("/playgame?vw=1280&vh=720", desktopUA))

	assert.Equal(t, http.StatusOK, res.Code)
	assert.Contains(t, res.Body.String(), "Signing you in...")
	assert.Contains(t, res.Body.String(), `http-equiv="refresh"`)
	assert.Empty(t, b.callLog())
	assert.Equal(t, session.Idle, onlyPlay(t, s).resolver.View().State)
}

func Test_Server_handlePlayGame_failureThenRetry(t *testing.T) {
	b := &mockBackend{guestErr: fmt.Errorf("backend down")}
	s, _, _ := newTestServer(b, nil)
	res := do(s, get("/playgame?vw=1280&vh=720", desktopUA))

	assert.Equal(t, http.StatusOK, res.Code)
	assert.Contains(t, res.Body.String(), "Unable to start the game")
	assert.Contains(t, res.Body.String(), "Failed to initialize game session")
	p := onlyPlay(t, s)
	assert.Contains(t, res.Body.String(), "/api/session/retry?page="+p.id)

	// Rendering the page again doesn't contact the backend
	res = do(s, get(playURL(p.id), desktopUA))
	assert.Contains(t, res.Body.String(), "Unable to start the game")
	assert.Len(t, b.callLog(), 1)

	b.setGuest(store.Credentials{Token: "tok4", UserID: "g4", Username: "Guest_4"}, nil)
	req := httptest.NewRequest(http.MethodPost, "/api/session/retry?page="+p.id, nil)
	req.Header.Set("Accept", "application/json")
	res = do(s, req)
	assert.Equal(t, http.StatusOK, res.Code)
	assert.JSONEq(t, `{"token":"tok4","userId":"g4","username":"Guest_4","loading":false}`, res.Body.String())
	assert.Len(t, b.callLog(), 2)

	// Resolved sessions can't be retried
	res = do(s, req)
	assert.Equal(t, http.StatusConflict, res.Code)
}

func Test_Server_handleRetrySession_formRedirectsToPlayPage(t *testing.T) {
	b := &mockBackend{guestErr: fmt.Errorf("backend down")}
	s, _, _ := newTestServer(b, nil)
	do(s, get("/playgame?vw=1280&vh=720", desktopUA))
	p := onlyPlay(t, s)

	res := do(s, httptest.NewRequest(http.MethodPost, "/api/session/retry?page="+p.id, nil))
	assert.Equal(t, http.StatusSeeOther, res.Code)
	assert.Equal(t, playURL(p.id), res.Header().Get("Location"))
}

func Test_Server_unknownPlay(t *testing.T) {
	s, _, _ := newTestServer(&mockBackend{}, nil)
	tests := []struct {
		name       string
		req        *http.Request
		wantStatus int
	}{
		{"session view", get("/api/session?page=00000000-0000-0000-0000-000000000000", desktopUA), http.StatusNotFound},
		{"malformed id", get("/api/session?page=nope", desktopUA), http.StatusNotFound},
		{"retry", httptest.NewRequest(http.MethodPost, "/api/session/retry?page=nope", nil), http.StatusNotFound},
		{"state", get("/api/play/00000000-0000-0000-0000-000000000000", desktopUA), http.StatusNotFound},
		{"play page", get("/playgame?page=nope", desktopUA), http.StatusSeeOther},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := do(s, tt.req)
			assert.Equal(t, tt.wantStatus, res.Code)
		})
	}
}

func Test_Server_handleGetSession(t *testing.T) {
	b := &mockBackend{guest: store.Credentials{Token: "tok1", UserID: "g1", Username: "Guest_1"}}
	s, _, _ := newTestServer(b, nil)
	do(s, get("/playgame?vw=1280&vh=720", desktopUA))
	p := onlyPlay(t, s)

	res := do(s, get("/api/session?page="+p.id, desktopUA))
	assert.Equal(t, http.StatusOK, res.Code)
	assert.JSONEq(t, `{"token":"tok1","userId":"g1","username":"Guest_1","loading":false}`, res.Body.String())
}

func Test_Server_handleGetDevice(t *testing.T) {
	s, _, _ := newTestServer(&mockBackend{}, nil)
	res := do(s, get("/api/device?vw=390&vh=844", iphoneUA))

	assert.Equal(t, http.StatusOK, res.Code)
	assert.JSONEq(t, `{
		"isMobile": true,
		"isIOS": true,
		"isStandalone": false,
		"isInAppBrowser": false,
		"browserName": "",
		"isPortrait": true,
		"isFullscreenActive": false
	}`, res.Body.String())
}

func Test_Server_playEvents_desktop(t *testing.T) {
	b := &mockBackend{guest: store.Credentials{Token: "tok1", UserID: "g1", Username: "Guest_1"}}
	s, _, _ := newTestServer(b, nil)
	do(s, get("/playgame?vw=1280&vh=720", desktopUA))
	p := onlyPlay(t, s)

	state := getState(t, s, p.id)
	assert.True(t, state.Presentation.ShowLoadingOverlay)
	assert.False(t, state.Presentation.IframeVisible)

	state = postEvent(t, s, p.id, `{"event":"iframe-loaded"}`)
	assert.Equal(t, presentation.State{IframeVisible: true}, state.Presentation)
	assert.Equal(t, "tok1", state.Session.Token)
}

func Test_Server_playEvents_androidRequestsFullscreen(t *testing.T) {
	b := &mockBackend{guest: store.Credentials{Token: "tok1", UserID: "g1", Username: "Guest_1"}}
	s, clk, _ := newTestServer(b, nil)
	do(s, get("/playgame?vw=844&vh=390", androidUA))
	p := onlyPlay(t, s)

	postEvent(t, s, p.id, `{"event":"iframe-loaded"}`)
	clk.Advance(presentation.AutoFullscreenDelay)

	state := getState(t, s, p.id)
	assert.True(t, state.RequestFullscreen)
	// The request stays pending until the page reports the outcome
	assert.True(t, getState(t, s, p.id).RequestFullscreen)

	state = postEvent(t, s, p.id, `{"event":"fullscreen-result","ok":false}`)
	assert.False(t, state.RequestFullscreen)
	assert.True(t, state.Presentation.ShowFullscreenPrompt)

	state = postEvent(t, s, p.id, `{"event":"dismiss-fullscreen-prompt"}`)
	assert.False(t, state.Presentation.ShowFullscreenPrompt)
}

func Test_Server_handleStreamPlay(t *testing.T) {
	b := &mockBackend{guest: store.Credentials{Token: "tok1", UserID: "g1", Username: "Guest_1"}}
	s, clk, _ := newTestServer(b, nil)
	do(s, get("/playgame?vw=844&vh=390", androidUA))
	p := onlyPlay(t, s)
	postEvent(t, s, p.id, `{"event":"iframe-loaded"}`)

	srv := httptest.NewServer(s)
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL+"/api/play/"+p.id+"/stream", nil)
	require.NoError(t, err)
	req.Header.Set("Accept", "text/event-stream")
	res, err := srv.Client().Do(req)
	require.NoError(t, err)
	defer res.Body.Close()
	require.Equal(t, http.StatusOK, res.StatusCode)
	assert.Equal(t, "text/event-stream", res.Header.Get("content-type"))

	lines := bufio.NewScanner(res.Body)
	next := func() playState {
		for lines.Scan() {
			data, ok := strings.CutPrefix(lines.Text(), "data: ")
			if !ok {
				continue
			}
			var state playState
			require.NoError(t, json.Unmarshal([]byte(data), &state))
			return state
		}
		require.FailNow(t, "stream ended", lines.Err())
		return playState{}
	}

	// The stream opens with the current state
	state := next()
	assert.True(t, state.Presentation.IframeVisible)
	assert.False(t, state.RequestFullscreen)

	// Timer-driven changes are pushed without the page asking
	clk.Advance(presentation.AutoFullscreenDelay)
	assert.True(t, next().RequestFullscreen)

	// Closing the play page ends the stream
	s.Close()
	for lines.Scan() {
	}
	assert.NoError(t, lines.Err())
}

func Test_Server_playEvents_orientation(t *testing.T) {
	b := &mockBackend{guest: store.Credentials{Token: "tok1", UserID: "g1", Username: "Guest_1"}}
	s, clk, _ := newTestServer(b, nil)
	do(s, get("/playgame?vw=844&vh=390", androidUA))
	p := onlyPlay(t, s)
	postEvent(t, s, p.id, `{"event":"iframe-loaded"}`)

	postEvent(t, s, p.id, `{"event":"resize","vw":390,"vh":844}`)
	clk.Advance(50 * time.Millisecond)
	postEvent(t, s, p.id, `{"event":"resize","vw":390,"vh":800}`)
	assert.False(t, getState(t, s, p.id).Presentation.ShowPortraitOverlay)

	clk.Advance(100 * time.Millisecond)
	state := getState(t, s, p.id)
	assert.True(t, state.Presentation.ShowPortraitOverlay)
	assert.False(t, state.Presentation.IframeVisible)

	state = postEvent(t, s, p.id, `{"event":"continue-portrait"}`)
	assert.False(t, state.Presentation.ShowPortraitOverlay)
	assert.True(t, state.Presentation.IframeVisible)
}

func Test_Server_playEvents_loadTimeout(t *testing.T) {
	b := &mockBackend{guest: store.Credentials{Token: "tok1", UserID: "g1", Username: "Guest_1"}}
	s, clk, _ := newTestServer(b, nil)
	do(s, get("/playgame?vw=1280&vh=720", desktopUA))
	p := onlyPlay(t, s)

	clk.Advance(handoff.LoadTimeout)
	state := getState(t, s, p.id)
	assert.Equal(t, handoff.ErrLoadTimeout.Error(), state.LoadError)

	// A late load doesn't reveal the game
	state = postEvent(t, s, p.id, `{"event":"iframe-loaded"}`)
	assert.False(t, state.Presentation.IframeVisible)

	res := do(s, get(playURL(p.id), desktopUA))
	assert.Contains(t, res.Body.String(), "Game failed to load")
	assert.Len(t, b.callLog(), 1)
}

func Test_Server_playEvents_signupMessage(t *testing.T) {
	b := &mockBackend{guest: store.Credentials{Token: "tok1", UserID: "g1", Username: "Guest_1"}}
	s, _, _ := newTestServer(b, nil)
	do(s, get("/playgame?vw=1280&vh=720", desktopUA))
	p := onlyPlay(t, s)

	state := postEvent(t, s, p.id, `{"event":"message","message":"something-else","pageUrl":"https://example.com/playgame#referral=abc"}`)
	assert.Empty(t, state.Redirect)

	state = postEvent(t, s, p.id, `{"event":"message","message":"signup","pageUrl":"https://example.com/playgame#referral=abc"}`)
	assert.Equal(t, "/#referral=abc", state.Redirect)
}

func Test_Server_handlePostPlayEvent_invalid(t *testing.T) {
	b := &mockBackend{guest: store.Credentials{Token: "tok1", UserID: "g1", Username: "Guest_1"}}
	s, _, _ := newTestServer(b, nil)
	do(s, get("/playgame?vw=1280&vh=720", desktopUA))
	p := onlyPlay(t, s)

	tests := []struct {
		name     string
		body     string
		wantBody string
	}{
		{"not JSON", `nope`, "request body must be JSON"},
		{"unknown event", `{"event":"explode"}`, "unknown event 'explode'"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/api/play/"+p.id+"/events", strings.NewReader(tt.body))
			res := do(s, req)
			assert.Equal(t, http.StatusBadRequest, res.Code)
			assert.Equal(t, tt.wantBody, strings.TrimSuffix(res.Body.String(), "\n"))
		})
	}
}

func Test_Server_Sweep(t *testing.T) {
	b := &mockBackend{guest: store.Credentials{Token: "tok1", UserID: "g1", Username: "Guest_1"}}
	s, clk, _ := newTestServer(b, nil)
	do(s, get("/playgame?vw=1280&vh=720", desktopUA))
	p := onlyPlay(t, s)

	clk.Advance(10 * time.Minute)
	assert.Equal(t, 0, s.Sweep(time.Hour))
	getState(t, s, p.id)

	clk.Advance(61 * time.Minute)
	assert.Equal(t, 1, s.Sweep(time.Hour))
	assert.Empty(t, s.plays.plays)
	_, err := p.resolver.Resolve(context.Background(), session.Upstream{})
	assert.ErrorIs(t, err, session.ErrClosed)
}

func Test_Server_authRateLimit(t *testing.T) {
	clk := clock.NewFake(time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC))
	s := New(Config{AuthRateLimit: 1, AuthRateBurst: 2}, &mockBackend{}, nil, Options{
		Auth:  &mockRoutes{},
		Clock: clk,
	})

	statuses := make([]int, 0, 3)
	for i := 0; i < 3; i++ {
		req := get("/api/auth/me", desktopUA)
		req.RemoteAddr = "203.0.113.7:5555"
		statuses = append(statuses, do(s, req).Code)
	}
	assert.Equal(t, []int{http.StatusOK, http.StatusOK, http.StatusTooManyRequests}, statuses)

	// Other clients are unaffected
	req := get("/api/auth/me", desktopUA)
	req.RemoteAddr = "203.0.113.8:5555"
	assert.Equal(t, http.StatusOK, do(s, req).Code)

	clk.Advance(time.Second)
	req = get("/api/auth/me", desktopUA)
	req.RemoteAddr = "203.0.113.7:5555"
	assert.Equal(t, http.StatusOK, do(s, req).Code)
}

func Test_clientIP(t *testing.T) {
	tests := []struct {
		name      string
		forwarded string
		remote    string
		want      string
	}{
		{"remote address", "", "198.51.100.1:1234", "198.51.100.1"},
		{"forwarded", "203.0.113.9, 10.0.0.1", "10.0.0.2:1234", "203.0.113.9"},
		{"invalid forwarded", "garbage", "198.51.100.1:1234", "198.51.100.1"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.RemoteAddr = tt.remote
			if tt.forwarded != "" {
				req.Header.Set("X-Forwarded-For", tt.forwarded)
			}
			assert.Equal(t, tt.want, clientIP(req))
		})
	}
}

func Test_Server_CORS(t *testing.T) {
	s := New(Config{CORSOrigins: []string{"https://tinylittleroyale.io"}}, &mockBackend{}, nil, Options{})

	req := get("/api/device", desktopUA)
	req.Header.Set("Origin", "https://tinylittleroyale.io")
	res := do(s, req)
	assert.Equal(t, "https://tinylittleroyale.io", res.Header().Get("Access-Control-Allow-Origin"))

	req = get("/playgame", desktopUA)
	req.Header.Set("Origin", "https://tinylittleroyale.io")
	res = do(s, req)
	assert.Empty(t, res.Header().Get("Access-Control-Allow-Origin"))
}

func newTestServer(b *mockBackend, sessions *mockSessions) (*Server, *clock.Fake, *mockBackend) {
	clk := clock.NewFake(time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC))
	var sess Sessions
	if sessions != nil {
		sess = sessions
	}
	s := New(Config{
		GameID:  "tiny-little-royale",
		GameURL: "https://game.example/",
		Branch:  "develop",
	}, b, sess, Options{Clock: clk})
	return s, clk, b
}

func get(target string, userAgent string) *http.Request {
	req := httptest.NewRequest(http.MethodGet, target, nil)
	req.Header.Set("User-Agent", userAgent)
	return req
}

func do(s *Server, req *http.Request) *httptest.ResponseRecorder {
	res := httptest.NewRecorder()
	s.ServeHTTP(res, req)
	return res
}

func onlyPlay(t *testing.T, s *Server) *play {
	s.plays.mu.Lock()
	defer s.plays.mu.Unlock()
	require.Len(t, s.plays.plays, 1)
	for _, p := range s.plays.plays {
		return p
	}
	return nil
}

func cookieValues(res *httptest.ResponseRecorder) map[string]string {
	values := make(map[string]string)
	for _, c := range res.Result().Cookies() {
		values[c.Name] = c.Value
	}
	return values
}

func getState(t *testing.T, s *Server, id string) playState {
	res := do(s, get("/api/play/"+id, desktopUA))
	require.Equal(t, http.StatusOK, res.Code)
	var state playState
	require.NoError(t, json.NewDecoder(res.Body).Decode(&state))
	return state
}

func postEvent(t *testing.T, s *Server, id string, body string) playState {
	req := httptest.NewRequest(http.MethodPost, "/api/play/"+id+"/events", strings.NewReader(body))
	res := do(s, req)
	require.Equal(t, http.StatusOK, res.Code, res.Body.String())
	var state playState
	require.NoError(t, json.NewDecoder(res.Body).Decode(&state))
	return state
}

type mockBackend struct {
	mu       sync.Mutex
	guest    store.Credentials
	guestErr error
	member   store.Credentials
	calls    []string

	// onGuestToken, if set, runs before a new guest is issued and can fail the call
	onGuestToken func(ctx context.Context) error
}

func (m *mockBackend) setGuest(creds store.Credentials, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.guest = creds
	m.guestErr = err
}

func (m *mockBackend) callLog() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.calls...)
}

func (m *mockBackend) record(call string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, call)
}

func (m *mockBackend) GameToken(ctx context.Context, gameID string, accountToken string) (store.Credentials, error) {
	m.record("POST member " + accountToken)
	return m.member, nil
}

func (m *mockBackend) GuestToken(ctx context.Context, gameID string) (store.Credentials, error) {
	m.record("POST guest")
	if m.onGuestToken != nil {
		if err := m.onGuestToken(ctx); err != nil {
			return store.Credentials{}, err
		}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.guest, m.guestErr
}

func (m *mockBackend) RefreshGuestToken(ctx context.Context, gameID string, userID string, username string) (store.Credentials, error) {
	m.record(fmt.Sprintf("PUT guest %s %s", userID, username))
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.guest, m.guestErr
}

func (m *mockBackend) PromoteGuest(ctx context.Context, userID string, accountToken string) error {
	m.record("PROMOTE " + userID)
	return nil
}

type mockSessions struct {
	claims      *auth.SessionClaims
	account     store.Account
	exchangeErr error
	exchanges   int
}

func (m *mockSessions) Session(req *http.Request) (*auth.SessionClaims, error) {
	if m.claims == nil {
		return nil, auth.ErrNoSession
	}
	return m.claims, nil
}

func (m *mockSessions) ExchangeSession(ctx context.Context, st store.Store, claims *auth.SessionClaims) (store.Account, error) {
	m.exchanges++
	if m.exchangeErr != nil {
		return store.Account{}, m.exchangeErr
	}
	if err := store.SaveAccount(st, m.account, time.Now()); err != nil {
		return store.Account{}, err
	}
	return m.account, nil
}

type mockRoutes struct{}

func (m *mockRoutes) RegisterRoutes(r *mux.Router) {
	r.Path("/me").Methods("GET").HandlerFunc(func(res http.ResponseWriter, req *http.Request) {
		io.WriteString(res, "{}")
	})
}
