package device

import (
	"net/http"
	"strconv"
)

// FromRequest builds an Environment from an incoming page request. Only the user
// agent is always available; viewport and display-mode state arrive as query
// parameters appended by the shell's bootstrap script (vw, vh, standalone, fs), with
// the viewport client hint used as a fallback for the width. Chromium's mobile client
// hint is read as well.
func FromRequest(req *http.Request) Environment {
	q := req.URL.Query()
	env := Environment{
		UserAgent:             req.Header.Get("User-Agent"),
		MobileHint:            req.Header.Get("Sec-CH-UA-Mobile") == "?1",
		ViewportWidth:         parseDimension(q.Get("vw")),
		ViewportHeight:        parseDimension(q.Get("vh")),
		DisplayModeStandalone: isTruthy(q.Get("standalone")),
		FullscreenElement:     isTruthy(q.Get("fs")),
	}
	if env.ViewportWidth == 0 {
		env.ViewportWidth = parseDimension(req.Header.Get("Sec-CH-Viewport-Width"))
	}
	return env
}

func parseDimension(value string) int {
	n, err := strconv.Atoi(value)
	if err != nil || n < 0 {
		return 0
	}
	return n
}

func isTruthy(value string) bool {
	switch value {
	case "1", "true", "yes":
		return true
	}
	return false
}
