package device

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/tiny-little/royale-web/internal/clock"
)

const (
	uaDesktopChrome = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"
	uaIPhoneSafari  = "Mozilla/5.0 (iPhone; CPU iPhone OS 17_2 like Mac OS X) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.2 Mobile/15E148 Safari/604.1"
	uaAndroidChrome = "Mozilla/5.0 (Linux; Android 14; Pixel 8) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Mobile Safari/537.36"
	uaFacebookIOS   = "Mozilla/5.0 (iPhone; CPU iPhone OS 17_2 like Mac OS X) AppleWebKit/605.1.15 (KHTML, like Gecko) Mobile/15E148 [FBAN/FBIOS;FBAV/445.0.0.35.117;FBBV/555]"
	uaFacebookIAB   = "Mozilla/5.0 (Linux; Android 14; SM-S918B) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Mobile Safari/537.36 [FB_IAB/FB4A;]"
	uaInstagram     = "Mozilla/5.0 (iPhone; CPU iPhone OS 17_2 like Mac OS X) AppleWebKit/605.1.15 (KHTML, like Gecko) Mobile/15E148 Instagram 312.0.0.22.114"
	uaLine          = "Mozilla/5.0 (iPhone; CPU iPhone OS 17_2 like Mac OS X) AppleWebKit/605.1.15 (KHTML, like Gecko) Mobile/15E148 Safari Line/13.20.0"
	uaTwitter       = "Mozilla/5.0 (iPhone; CPU iPhone OS 17_2 like Mac OS X) AppleWebKit/605.1.15 (KHTML, like Gecko) Mobile/15E148 Twitter for iPhone/10.20"
	uaTelegram      = "Mozilla/5.0 (Linux; Android 14) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0 Mobile Safari/537.36 Telegram-Android/10.6.2"
	uaWeChat        = "Mozilla/5.0 (iPhone; CPU iPhone OS 17_2 like Mac OS X) AppleWebKit/605.1.15 (KHTML, like Gecko) Mobile/15E148 MicroMessenger/8.0.44"
	uaSnapchat      = "Mozilla/5.0 (iPhone; CPU iPhone OS 17_2 like Mac OS X) AppleWebKit/605.1.15 (KHTML, like Gecko) Mobile/15E148 Snapchat/12.65.0.36"
	uaLinkedIn      = "Mozilla/5.0 (iPhone; CPU iPhone OS 17_2 like Mac OS X) AppleWebKit/605.1.15 (KHTML, like Gecko) Mobile/15E148 [LinkedInApp]/9.29.8"
)

func Test_InAppBrowserName(t *testing.T) {
	tests := []struct {
		ua   string
		want string
	}{
		{uaFacebookIOS, "Facebook"},
		{uaFacebookIAB, "Facebook"},
		{uaInstagram, "Instagram"},
		{uaLine, "LINE"},
		{uaTwitter, "Twitter"},
		{uaTelegram, "Telegram"},
		{uaWeChat, "WeChat"},
		{uaSnapchat, "Snapchat"},
		{uaLinkedIn, "LinkedIn"},
	}
	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			env := Environment{UserAgent: tt.ua}
			assert.True(t, IsInAppBrowser(env))
			assert.Equal(t, tt.want, InAppBrowserName(env))
		})
	}
}

func Test_IsInAppBrowser_ordinaryBrowsers(t *testing.T) {
	for _, ua := range []string{uaDesktopChrome, uaIPhoneSafari, uaAndroidChrome, ""} {
		env := Environment{UserAgent: ua}
		assert.False(t, IsInAppBrowser(env), ua)
		assert.Equal(t, GenericInAppBrowserName, InAppBrowserName(env), ua)
	}
}

func Test_IsInAppBrowser_androidIsNotLine(t *testing.T) {
	// Every Android user agent carries "Linux"
	env := Environment{UserAgent: uaAndroidChrome}
	assert.False(t, IsInAppBrowser(env))
	assert.True(t, IsMobile(env))
}

func Test_inAppBrowsers_everyPatternHasABrand(t *testing.T) {
	for _, b := range inAppBrowsers {
		assert.NotEmpty(t, b.name, b.pattern.String())
		assert.NotEqual(t, GenericInAppBrowserName, b.name)
	}
}

func Test_Detect(t *testing.T) {
	tests := []struct {
		name string
		env  Environment
		want Snapshot
	}{
		{
			"desktop browser in a landscape window",
			Environment{UserAgent: uaDesktopChrome, ViewportWidth: 1920, ViewportHeight: 1080},
			Snapshot{},
		},
		{
			"iPhone Safari held upright",
			Environment{UserAgent: uaIPhoneSafari, ViewportWidth: 390, ViewportHeight: 844},
			Snapshot{IsMobile: true, IsIOS: true, IsPortrait: true},
		},
		{
			"iPhone tokens with the MSStream marker are not iOS",
			Environment{UserAgent: uaIPhoneSafari, MSStream: true},
			Snapshot{IsMobile: true},
		},
		{
			"home-screen app reports standalone via navigator flag",
			Environment{UserAgent: uaIPhoneSafari, NavigatorStandalone: true, ViewportWidth: 844, ViewportHeight: 390},
			Snapshot{IsMobile: true, IsIOS: true, IsStandalone: true},
		},
		{
			"display-mode media query also counts as standalone",
			Environment{UserAgent: uaAndroidChrome, DisplayModeStandalone: true},
			Snapshot{IsMobile: true, IsStandalone: true},
		},
		{
			"in-app browser in fullscreen",
			Environment{UserAgent: uaFacebookIAB, WebkitFullscreenElement: true, ViewportWidth: 900, ViewportHeight: 400},
			Snapshot{IsMobile: true, IsInAppBrowser: true, BrowserName: "Facebook", IsFullscreenActive: true},
		},
		{
			"square viewport is not portrait",
			Environment{UserAgent: uaAndroidChrome, ViewportWidth: 500, ViewportHeight: 500},
			Snapshot{IsMobile: true},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Detect(tt.env))
		})
	}
}

func Test_IsFullscreenActive(t *testing.T) {
	assert.False(t, IsFullscreenActive(Environment{}))
	assert.True(t, IsFullscreenActive(Environment{FullscreenElement: true}))
	assert.True(t, IsFullscreenActive(Environment{WebkitFullscreenElement: true}))
	assert.True(t, IsFullscreenActive(Environment{MozFullScreenElement: true}))
	assert.True(t, IsFullscreenActive(Environment{MSFullscreenElement: true}))
}

func Test_FromRequest(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/playgame?vw=390&vh=844&standalone=1", nil)
	req.Header.Set("User-Agent", uaIPhoneSafari)
	env := FromRequest(req)
	assert.Equal(t, uaIPhoneSafari, env.UserAgent)
	assert.Equal(t, 390, env.ViewportWidth)
	assert.Equal(t, 844, env.ViewportHeight)
	assert.True(t, env.DisplayModeStandalone)
	assert.False(t, env.FullscreenElement)

	req = httptest.NewRequest(http.MethodGet, "/playgame?vw=abc&vh=-3", nil)
	req.Header.Set("Sec-CH-Viewport-Width", "1280")
	env = FromRequest(req)
	assert.Equal(t, 1280, env.ViewportWidth)
	assert.Equal(t, 0, env.ViewportHeight)
	assert.False(t, env.MobileHint)
}

func Test_IsMobile_clientHint(t *testing.T) {
	tests := []struct {
		name string
		ua   string
		hint string
		want bool
	}{
		{"mobile user agent", uaAndroidChrome, "", true},
		{"desktop user agent", uaDesktopChrome, "", false},
		{"desktop user agent with mobile hint", uaDesktopChrome, "?1", true},
		{"desktop user agent with desktop hint", uaDesktopChrome, "?0", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/playgame?vw=800&vh=600", nil)
			req.Header.Set("User-Agent", tt.ua)
			if tt.hint != "" {
				req.Header.Set("Sec-CH-UA-Mobile", tt.hint)
			}
			assert.Equal(t, tt.want, IsMobile(FromRequest(req)))
		})
	}
}

func Test_OrientationWatcher(t *testing.T) {
	clk := clock.NewFake(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC))
	var changes []bool
	w := NewOrientationWatcher(clk, func(portrait bool) {
		changes = append(changes, portrait)
	})

	// Initial evaluation is reported once settled
	w.Observe(Environment{ViewportWidth: 390, ViewportHeight: 844})
	clk.Advance(OrientationDebounce)
	assert.Equal(t, []bool{true}, changes)

	// A burst of jittery resizes only produces a single evaluation of the last one
	w.Observe(Environment{ViewportWidth: 844, ViewportHeight: 390})
	clk.Advance(50 * time.Millisecond)
	w.Observe(Environment{ViewportWidth: 390, ViewportHeight: 800})
	clk.Advance(50 * time.Millisecond)
	w.Observe(Environment{ViewportWidth: 844, ViewportHeight: 360})
	clk.Advance(OrientationDebounce)
	assert.Equal(t, []bool{true, false}, changes)

	// Settling on the same orientation is not reported again
	w.Observe(Environment{ViewportWidth: 800, ViewportHeight: 390})
	clk.Advance(OrientationDebounce)
	assert.Equal(t, []bool{true, false}, changes)

	// Nothing fires once stopped
	w.Observe(Environment{ViewportWidth: 390, ViewportHeight: 844})
	w.Stop()
	clk.Advance(time.Second)
	assert.Equal(t, []bool{true, false}, changes)
	assert.Equal(t, 0, clk.Pending())
}
