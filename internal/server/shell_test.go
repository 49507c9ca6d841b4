package server

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tiny-little/royale-web/internal/presentation"
)

func Test_shellPage(t *testing.T) {
	var b strings.Builder
	err := shellPage(shellData{
		GameURL: "https://game.example/?user=g1&login-token=tok1",
		State:   presentation.State{ShowPortraitOverlay: true, BrowserName: "<b>App</b>"},
		Config: shellConfig{
			StateURL:  "/api/play/p1",
			StreamURL: "/api/play/p1/stream",
			EventsURL: "/api/play/p1/events",
			ReloadURL: "/playgame?page=p1",
		},
	}).Render(context.Background(), &b)
	require.NoError(t, err)
	html := b.String()

	assert.Contains(t, html, `<div id="portrait-overlay" class="overlay">`)
	assert.Contains(t, html, `<div id="loading-overlay" class="overlay hidden">`)
	assert.Contains(t, html, `<div id="in-app-warning" class="banner hidden">`)
	assert.Contains(t, html, `<iframe id="game" src="https://game.example/?user=g1&amp;login-token=tok1" class="hidden"`)
	assert.Contains(t, html, "inside &lt;b&gt;App&lt;/b&gt;")
	assert.NotContains(t, html, "<b>App</b>")
	assert.Contains(t, html, `<script id="play-config" type="application/json">{"stateUrl":"/api/play/p1","streamUrl":"/api/play/p1/stream","eventsUrl":"/api/play/p1/events","reloadUrl":"/playgame?page=p1"}`)
}

func Test_shellPage_rejectsUnsafeGameURL(t *testing.T) {
	var b strings.Builder
	err := shellPage(shellData{GameURL: "javascript:alert(1)"}).Render(context.Background(), &b)
	require.NoError(t, err)
	assert.Contains(t, b.String(), `src="about:invalid#TemplFailedSanitizationURL"`)
	assert.NotContains(t, b.String(), "javascript:alert")
}
