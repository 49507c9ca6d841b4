package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/codingconcepts/env"
	"github.com/joho/godotenv"
	"github.com/pkg/browser"

	"github.com/tiny-little/royale-web/internal/backend"
	"github.com/tiny-little/royale-web/internal/handoff"
	"github.com/tiny-little/royale-web/internal/logging"
	"github.com/tiny-little/royale-web/internal/session"
	"github.com/tiny-little/royale-web/internal/store"
)

type Config struct {
	ApiUrl  string `env:"NEXT_PUBLIC_API_URL" required:"true"`
	GameUrl string `env:"NEXT_PUBLIC_GAME_URL" default:"https://tinylittleroyale.io/"`
	GameId  string `env:"NEXT_PUBLIC_GAME_ID" default:"tiny-little-royale"`
	Branch  string `env:"BRANCH"`
}

func main() {
	// Initialize config from environment vars
	err := godotenv.Load()
	if err != nil && !os.IsNotExist(err) {
		log.Fatalf("error loading .env file: %v", err)
	}
	config := Config{}
	if err := env.Set(&config); err != nil {
		log.Fatalf("error parsing config: %v", err)
	}

	storePath := flag.String("store", ".playtest.json", "file in which session state is kept between runs")
	accountToken := flag.String("account", "", "play as the member with this account credential")
	width := flag.Int("vw", 1280, "viewport width reported to the game")
	height := flag.Int("vh", 720, "viewport height reported to the game")
	noBrowser := flag.Bool("no-browser", false, "print the game URL instead of opening it")
	flag.Parse()

	logConfig := logging.DefaultConfig()
	logConfig.Level = "debug"
	logger, flush, err := logging.Setup(logConfig, "playtest")
	if err != nil {
		log.Fatalf("error initializing logger: %v", err)
	}
	defer flush()

	// The file store plays the part of the browser's cookies, so that running the
	// command again resumes the same guest
	st, err := store.OpenFileStore(*storePath)
	if err != nil {
		log.Fatalf("error opening session store: %v", err)
	}
	if *accountToken != "" {
		if err := store.SaveAccount(st, store.Account{Token: *accountToken}, time.Now()); err != nil {
			log.Fatalf("error saving account credential: %v", err)
		}
	}
	if guest, ok := store.LoadGuest(st); ok {
		fmt.Printf("Resuming guest %s (%s)\n", guest.Username, guest.UserID)
	}

	ctx, close := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer close()

	up := session.Upstream{OAuth: session.OAuthUnauthenticated}
	if account, ok := store.LoadAccount(st); ok {
		up.AccountToken = account.Token
	}

	resolver := session.NewResolver(config.GameId, backend.NewClient(config.ApiUrl), st, session.Options{Logger: logger})
	view, err := resolver.Resolve(ctx, up)
	if err != nil {
		log.Fatalf("error resolving session: %v", err)
	}
	resolver.Wait()
	if resolver.AuthFailed() {
		fmt.Printf("Account credential was rejected; continuing as a new guest.\n")
	}
	if view.State == session.Failed {
		fmt.Printf("%s\n", view.Error)
		if errors.Is(view.Err, backend.ErrNetwork) {
			fmt.Printf("Is the backend running at %s?\n", config.ApiUrl)
		}
		os.Exit(1)
	}

	gameURL := handoff.GameURL(config.GameUrl, handoff.Launch{
		UserID:         view.UserID,
		Token:          view.Token,
		ViewportWidth:  *width,
		ViewportHeight: *height,
		Branch:         config.Branch,
	})
	fmt.Printf("Playing as %s (%s)\n", view.Username, view.UserID)
	if *noBrowser {
		fmt.Println(gameURL)
		return
	}
	if err := browser.OpenURL(gameURL); err != nil {
		fmt.Printf("Failed to open browser (%v); open this URL to play:\n%s\n", err, gameURL)
	}
}
