package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/tiny-little/royale-web/internal/clock"
	"github.com/tiny-little/royale-web/internal/device"
	"github.com/tiny-little/royale-web/internal/presentation"
)

// Prints how the play page would treat a given browser: the capability snapshot, and
// the overlays shown before the game loads, right after, and once every timer has
// fired
func main() {
	userAgent := flag.String("ua", "", "user agent to simulate")
	width := flag.Int("vw", 1280, "viewport width")
	height := flag.Int("vh", 720, "viewport height")
	standalone := flag.Bool("standalone", false, "launched from the home screen")
	fullscreen := flag.Bool("fullscreen", false, "already in fullscreen")
	fullscreenDenied := flag.Bool("deny-fullscreen", false, "simulate the browser refusing fullscreen")
	flag.Parse()
	if *userAgent == "" {
		log.Fatalf("usage: simulate -ua <user agent> [-vw W -vh H] [-standalone] [-fullscreen] [-deny-fullscreen]")
	}

	env := device.Environment{
		UserAgent:             *userAgent,
		ViewportWidth:         *width,
		ViewportHeight:        *height,
		DisplayModeStandalone: *standalone,
		FullscreenElement:     *fullscreen,
	}
	snapshot := device.Detect(env)
	show("device", snapshot)

	clk := clock.NewFake(time.Now())
	var c *presentation.Controller
	c = presentation.NewController(snapshot, clk, presentation.Hooks{
		RequestFullscreen: func() {
			fmt.Printf("-- fullscreen requested (granted: %t)\n", !*fullscreenDenied)
			c.FullscreenResult(!*fullscreenDenied)
		},
	})
	defer c.Close()

	show("before load", c.State())
	show("after load", c.IframeLoaded())
	clk.Advance(presentation.InAppWarningDelay)
	show("settled", c.State())
}

func show(label string, v interface{}) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		log.Fatalf("error encoding %s: %v", label, err)
	}
	fmt.Fprintf(os.Stdout, "%s:\n%s\n", label, data)
}
