package server

import (
	"context"
	"fmt"
	"io"

	"github.com/a-h/templ"

	"github.com/tiny-little/royale-web/internal/presentation"
)

// shellConfig is handed to the shell's script as a JSON data block
type shellConfig struct {
	StateURL  string `json:"stateUrl"`
	StreamURL string `json:"streamUrl"`
	EventsURL string `json:"eventsUrl"`
	ReloadURL string `json:"reloadUrl"`
}

type shellData struct {
	GameURL string
	State   presentation.State
	Config  shellConfig
}

// shellPage renders the game iframe beneath every overlay the presentation state can
// show, each initially visible or hidden to match data.State
func shellPage(data shellData) templ.Component {
	st := data.State
	return join(
		templ.Raw(pageHead),
		overlay("portrait-overlay", "overlay", st.ShowPortraitOverlay, portraitBody(st.BrowserName)),
		overlay("in-app-warning", "banner", st.ShowInAppBrowserWarning, inAppWarningBody(st.BrowserName)),
		overlay("loading-overlay", "overlay", st.ShowLoadingOverlay, templ.Raw(
			`<div class="spinner"></div><p>Loading game...</p>`)),
		overlay("fullscreen-prompt", "overlay", st.ShowFullscreenPrompt, templ.Raw(
			`<h2>Play in Fullscreen!</h2>`+
				`<button data-action="fullscreen">Enter fullscreen</button>`+
				`<button class="secondary" data-event="dismiss-fullscreen-prompt">Not now</button>`)),
		overlay("home-screen-prompt", "overlay", st.ShowHomeScreenPrompt, templ.Raw(
			`<h2>For Best Experience on iOS</h2>`+
				`<p>Tap the share button, select "Add to Home Screen", then open from your home screen.</p>`+
				`<button class="secondary" data-event="dismiss-fullscreen-prompt">Not now</button>`)),
		gameFrame(templ.URL(data.GameURL), st.IframeVisible),
		templ.JSONScript("play-config", data.Config),
		templ.Raw(shellScript),
		templ.Raw(pageFoot),
	)
}

func join(components ...templ.Component) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		for _, c := range components {
			if err := c.Render(ctx, w); err != nil {
				return err
			}
		}
		return nil
	})
}

func overlay(id string, class string, visible bool, body templ.Component) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		classes := templ.Classes(class, templ.KV("hidden", !visible))
		if _, err := fmt.Fprintf(w, "<div id=\"%s\" class=\"%s\">", templ.EscapeString(id), templ.EscapeString(classes.String())); err != nil {
			return err
		}
		if err := body.Render(ctx, w); err != nil {
			return err
		}
		_, err := io.WriteString(w, "</div>\n")
		return err
	})
}

func portraitBody(browserName string) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		if _, err := io.WriteString(w, `<h2>Please rotate your device</h2><p>Landscape mode required</p>`); err != nil {
			return err
		}
		if browserName != "" {
			if _, err := fmt.Fprintf(w, "<p>You're playing inside %s. If rotation doesn't work, open this page in your browser.</p>", templ.EscapeString(browserName)); err != nil {
				return err
			}
		}
		_, err := io.WriteString(w, `<button data-event="continue-portrait">Continue anyway</button>`)
		return err
	})
}

// inAppWarningBody offers a way out of the in-app browser: copying the page's link so
// it can be pasted into a full browser
func inAppWarningBody(browserName string) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		if browserName == "" {
			browserName = "an in-app browser"
		}
		_, err := fmt.Fprintf(w, "<span>You're using %s. For the best experience, open this page in Safari or Chrome.</span>"+
			`<button data-action="copy-link">Copy link</button>`+
			`<button class="secondary" data-event="dismiss-in-app-warning">Dismiss</button>`,
			templ.EscapeString(browserName))
		return err
	})
}

func gameFrame(src templ.SafeURL, visible bool) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		classes := templ.Classes(templ.KV("hidden", !visible))
		_, err := fmt.Fprintf(w, "<iframe id=\"game\" src=\"%s\" class=\"%s\" title=\"Tiny Little Royale\" scrolling=\"no\" allowfullscreen"+
			" allow=\"accelerometer; autoplay; clipboard-write; encrypted-media; gyroscope; picture-in-picture; fullscreen\"></iframe>\n",
			templ.EscapeString(string(src)), templ.EscapeString(classes.String()))
		return err
	})
}

const shellScript = `<script>
(function () {
  var config = JSON.parse(document.getElementById("play-config").textContent);
  var overlays = {
    "portrait-overlay": "showPortraitOverlay",
    "in-app-warning": "showInAppBrowserWarning",
    "loading-overlay": "showLoadingOverlay",
    "fullscreen-prompt": "showFullscreenPrompt",
    "home-screen-prompt": "showHomeScreenPrompt"
  };
  var game = document.getElementById("game");
  var fullscreenPending = false;

  function apply(state) {
    if (state.redirect) { window.location.href = state.redirect; return; }
    if (state.loadError) { window.location.replace(config.reloadUrl); return; }
    var p = state.presentation;
    Object.keys(overlays).forEach(function (id) {
      document.getElementById(id).classList.toggle("hidden", !p[overlays[id]]);
    });
    game.classList.toggle("hidden", !p.iframeVisible);
    if (state.requestFullscreen && !fullscreenPending) { enterFullscreen(); }
  }

  function send(body) {
    return fetch(config.eventsUrl, {
      method: "POST",
      credentials: "same-origin",
      headers: { "Content-Type": "application/json" },
      body: JSON.stringify(body)
    }).then(function (res) { return res.json(); }).then(apply).catch(function () {});
  }

  function enterFullscreen() {
    var el = document.documentElement;
    var request = el.requestFullscreen || el.webkitRequestFullscreen || el.mozRequestFullScreen || el.msRequestFullscreen;
    if (!request) { send({ event: "fullscreen-result", ok: false }); return; }
    fullscreenPending = true;
    Promise.resolve(request.call(el)).then(function () {
      if (screen.orientation && screen.orientation.lock) { screen.orientation.lock("landscape").catch(function () {}); }
      return send({ event: "fullscreen-result", ok: true });
    }).catch(function () {
      return send({ event: "fullscreen-result", ok: false });
    }).then(function () { fullscreenPending = false; });
  }

  function copyLink(button) {
    var url = window.location.href;
    var showLink = function () { window.alert("Copy this link:\n" + url); };
    if (!navigator.clipboard || !navigator.clipboard.writeText) { showLink(); return; }
    navigator.clipboard.writeText(url).then(function () {
      button.textContent = "Copied!";
      window.setTimeout(function () { button.textContent = "Copy link"; }, 2000);
    }, showLink);
  }

  document.querySelectorAll("[data-event]").forEach(function (el) {
    el.addEventListener("click", function () { send({ event: el.getAttribute("data-event") }); });
  });
  document.querySelectorAll("[data-action=fullscreen]").forEach(function (el) {
    el.addEventListener("click", enterFullscreen);
  });
  document.querySelectorAll("[data-action=copy-link]").forEach(function (el) {
    el.addEventListener("click", function () { copyLink(el); });
  });
  game.addEventListener("load", function () { send({ event: "iframe-loaded" }); });
  ["resize", "orientationchange"].forEach(function (name) {
    window.addEventListener(name, function () {
      send({ event: "resize", vw: window.innerWidth, vh: window.innerHeight });
    });
  });
  ["fullscreenchange", "webkitfullscreenchange"].forEach(function (name) {
    document.addEventListener(name, function () {
      send({ event: "fullscreen-changed", active: !!(document.fullscreenElement || document.webkitFullscreenElement) });
    });
  });
  window.addEventListener("message", function (e) {
    if (typeof e.data === "string") { send({ event: "message", message: e.data, pageUrl: window.location.href }); }
  });
  if (window.EventSource) {
    new EventSource(config.streamUrl).onmessage = function (e) { apply(JSON.parse(e.data)); };
  } else {
    window.setInterval(function () {
      fetch(config.stateUrl, { credentials: "same-origin" }).then(function (res) { return res.json(); }).then(apply).catch(function () {});
    }, 1000);
  }
})();
</script>
`
