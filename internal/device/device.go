// Package device classifies the visitor's runtime: mobile vs desktop, iOS, home-screen
// standalone mode, in-app browsers, orientation and fullscreen state. Every function
// is a pure function of an Environment, so callers can evaluate a request, a
// simulated device, or a fresh event without any shared state.
package device

import (
	"regexp"
)

// Environment is the subset of navigator/screen/document state that capability
// detection depends on
type Environment struct {
	UserAgent string
	Vendor    string

	// MobileHint is the Sec-CH-UA-Mobile client hint, sent by Chromium browsers even
	// when the user agent string has been reduced or switched to a desktop one
	MobileHint bool

	// MSStream is the legacy marker exposed by a non-Apple browser that also
	// advertised iPhone tokens in its user agent
	MSStream bool

	NavigatorStandalone   bool
	DisplayModeStandalone bool

	ViewportWidth  int
	ViewportHeight int

	FullscreenElement       bool
	WebkitFullscreenElement bool
	MozFullScreenElement    bool
	MSFullscreenElement     bool
}

// Snapshot is the derived capability classification of an Environment
type Snapshot struct {
	IsMobile           bool   `json:"isMobile"`
	IsIOS              bool   `json:"isIOS"`
	IsStandalone       bool   `json:"isStandalone"`
	IsInAppBrowser     bool   `json:"isInAppBrowser"`
	BrowserName        string `json:"browserName"`
	IsPortrait         bool   `json:"isPortrait"`
	IsFullscreenActive bool   `json:"isFullscreenActive"`
}

// GenericInAppBrowserName is shown when no more specific brand is known
const GenericInAppBrowserName = "in-app browser"

var mobilePattern = regexp.MustCompile(`(?i)Android|webOS|iPhone|iPad|iPod|BlackBerry|IEMobile|Opera Mini`)
var iosPattern = regexp.MustCompile(`iPad|iPhone|iPod`)

// inAppBrowser pairs a user-agent pattern with the brand it identifies
type inAppBrowser struct {
	pattern *regexp.Regexp
	name    string
}

// inAppBrowsers is consulted in order by both IsInAppBrowser and InAppBrowserName, so
// every user agent that classifies as in-app also resolves to a brand
var inAppBrowsers = []inAppBrowser{
	{regexp.MustCompile(`(?i)FBAN|FBAV|FB_IAB|FBIOS`), "Facebook"},
	{regexp.MustCompile(`(?i)Instagram`), "Instagram"},
	// LINE identifies itself as "Line/<version>"; a bare "Line" would also match "Linux"
	{regexp.MustCompile(`(?i)\bLine/`), "LINE"},
	{regexp.MustCompile(`(?i)Twitter`), "Twitter"},
	{regexp.MustCompile(`(?i)Telegram`), "Telegram"},
	{regexp.MustCompile(`(?i)micromessenger`), "WeChat"},
	{regexp.MustCompile(`(?i)snapchat`), "Snapchat"},
	{regexp.MustCompile(`(?i)LinkedInApp`), "LinkedIn"},
}

func userAgent(env Environment) string {
	if env.UserAgent != "" {
		return env.UserAgent
	}
	return env.Vendor
}

func IsMobile(env Environment) bool {
	return mobilePattern.MatchString(env.UserAgent) || env.MobileHint
}

func IsIOS(env Environment) bool {
	return iosPattern.MatchString(env.UserAgent) && !env.MSStream
}

// IsStandalone reports whether the page is running as an app added to the home screen
func IsStandalone(env Environment) bool {
	return env.NavigatorStandalone || env.DisplayModeStandalone
}

func IsInAppBrowser(env Environment) bool {
	_, ok := matchInAppBrowser(userAgent(env))
	return ok
}

// InAppBrowserName returns a human-readable brand for the embedding app, falling back
// to GenericInAppBrowserName
func InAppBrowserName(env Environment) string {
	if b, ok := matchInAppBrowser(userAgent(env)); ok && b.name != "" {
		return b.name
	}
	return GenericInAppBrowserName
}

func matchInAppBrowser(ua string) (inAppBrowser, bool) {
	for _, b := range inAppBrowsers {
		if b.pattern.MatchString(ua) {
			return b, true
		}
	}
	return inAppBrowser{}, false
}

// IsFullscreenActive is true if any vendor's current-fullscreen-element accessor is set
func IsFullscreenActive(env Environment) bool {
	return env.FullscreenElement || env.WebkitFullscreenElement || env.MozFullScreenElement || env.MSFullscreenElement
}

// IsPortrait is true when the viewport is strictly taller than it is wide. An unknown
// viewport (zero dimensions) is treated as landscape.
func IsPortrait(env Environment) bool {
	return env.ViewportHeight > env.ViewportWidth
}

func Detect(env Environment) Snapshot {
	snapshot := Snapshot{
		IsMobile:           IsMobile(env),
		IsIOS:              IsIOS(env),
		IsStandalone:       IsStandalone(env),
		IsInAppBrowser:     IsInAppBrowser(env),
		IsPortrait:         IsPortrait(env),
		IsFullscreenActive: IsFullscreenActive(env),
	}
	if snapshot.IsInAppBrowser {
		snapshot.BrowserName = InAppBrowserName(env)
	}
	return snapshot
}
