package server

import (
	"html/template"
)

const pageHead = `<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1, viewport-fit=cover, user-scalable=no">
<meta name="apple-mobile-web-app-capable" content="yes">
<title>Tiny Little Royale</title>
<style>
html, body { margin: 0; padding: 0; height: 100%; background: #000; color: #fff; font-family: system-ui, sans-serif; overflow: hidden; }
.screen { position: fixed; inset: 0; display: flex; flex-direction: column; align-items: center; justify-content: center; gap: 1rem; text-align: center; padding: 1.5rem; }
.overlay { position: fixed; inset: 0; z-index: 20; display: flex; flex-direction: column; align-items: center; justify-content: center; gap: 1rem; background: rgba(0, 0, 0, 0.9); text-align: center; padding: 1.5rem; }
.banner { position: fixed; left: 0; right: 0; top: 0; z-index: 30; display: flex; gap: 1rem; align-items: center; justify-content: space-between; background: #b45309; padding: 0.75rem 1rem; }
.hidden { display: none !important; }
button, .button { background: #eab308; color: #000; border: 0; border-radius: 0.5rem; padding: 0.75rem 1.5rem; font-weight: 700; text-decoration: none; cursor: pointer; }
.secondary { background: transparent; color: #fff; border: 1px solid #fff; }
.spinner { width: 3rem; height: 3rem; border-radius: 50%; border: 4px solid #444; border-top-color: #eab308; animation: spin 1s linear infinite; }
@keyframes spin { to { transform: rotate(360deg); } }
iframe { position: absolute; inset: 0; width: 100%; height: 100%; border: none; }
</style>
</head>
<body>
`

const pageFoot = `</body>
</html>
`

var bootstrapTemplate = template.Must(template.New("bootstrap").Parse(pageHead + `
<div class="screen"><div class="spinner"></div><p>Loading game...</p></div>
<script>
(function () {
  var standalone = window.navigator.standalone === true || window.matchMedia("(display-mode: standalone)").matches;
  var fs = !!(document.fullscreenElement || document.webkitFullscreenElement);
  var params = new URLSearchParams(window.location.search);
  params.set("vw", String(window.innerWidth));
  params.set("vh", String(window.innerHeight));
  params.set("standalone", standalone ? "1" : "0");
  params.set("fs", fs ? "1" : "0");
  window.location.replace({{.Path}} + "?" + params.toString() + window.location.hash);
})();
</script>
<noscript><div class="screen"><p>Tiny Little Royale needs JavaScript to run.</p></div></noscript>
` + pageFoot))

var loadingTemplate = template.Must(template.New("loading").Parse(pageHead + `
<meta http-equiv="refresh" content="2;url={{.RefreshURL}}">
<div class="screen"><div class="spinner"></div><p>{{.Message}}</p></div>
` + pageFoot))

var initErrorTemplate = template.Must(template.New("initError").Parse(pageHead + `
<div class="screen">
  <h1>Unable to start the game</h1>
  <p>{{.Message}}</p>
  <form method="post" action="{{.RetryURL}}"><button type="submit">Retry</button></form>
  <a class="button secondary" href="/">Go Home</a>
</div>
` + pageFoot))

var loadTimeoutTemplate = template.Must(template.New("loadTimeout").Parse(pageHead + `
<div class="screen">
  <h1>Game failed to load</h1>
  <p>The game could not be loaded. This might be due to:</p>
  <ul style="text-align: left">
    <li>Network connectivity issues</li>
    <li>Game server is unavailable</li>
    <li>Your browser blocking the game</li>
  </ul>
  <a class="button" href="{{.ReloadURL}}">Reload</a>
  <a class="button secondary" href="/">Go Home</a>
</div>
` + pageFoot))

type bootstrapData struct {
	Path string
}

type loadingData struct {
	RefreshURL string
	Message    string
}

type initErrorData struct {
	Message  string
	RetryURL string
}

type loadTimeoutData struct {
	ReloadURL string
}
