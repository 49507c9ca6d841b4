package main

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/codingconcepts/env"
	"github.com/joho/godotenv"
	"github.com/lib/pq"

	"github.com/tiny-little/royale-web/internal/resolutionlog"
)

type Config struct {
	DatabaseHost     string `env:"PGHOST" required:"true"`
	DatabasePort     int    `env:"PGPORT" required:"true"`
	DatabaseName     string `env:"PGDATABASE" required:"true"`
	DatabaseUser     string `env:"PGUSER" required:"true"`
	DatabasePassword string `env:"PGPASSWORD" required:"true"`
	DatabaseSslMode  string `env:"PGSSLMODE"`
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

	// Construct a postgres connection string from our config
	connectionString := resolutionlog.FormatConnectionString(
		config.DatabaseHost,
		config.DatabasePort,
		config.DatabaseName,
		config.DatabaseUser,
		config.DatabasePassword,
		config.DatabaseSslMode,
	)
	db, err := sql.Open("postgres", connectionString)
	if err != nil {
		log.Fatalf("error opening database: %v", err)
	}
	defer db.Close()

	// Verify that we can connect to the database
	if err := db.Ping(); err != nil {
		log.Fatalf("error connecting to database: %v", err)
	}

	// 'recent [limit]' is the default command; 'watch' follows new resolutions live
	command := "recent"
	if len(os.Args) >= 2 {
		command = os.Args[1]
	}
	switch command {
	case "recent":
		limit := 20
		if len(os.Args) >= 3 {
			n, err := strconv.Atoi(os.Args[2])
			if err != nil || n < 1 {
				log.Fatalf("limit must be a positive integer")
			}
			limit = n
		}
		showRecent(db, limit)
	case "watch":
		watch(connectionString)
	default:
		log.Fatalf("usage: admin [recent [limit] | watch]")
	}
}

func showRecent(db *sql.DB, limit int) {
	entries, err := resolutionlog.New(db).Recent(context.Background(), limit)
	if err != nil {
		log.Fatalf("error getting recent resolutions: %v", err)
	}
	if len(entries) == 0 {
		fmt.Printf("no resolutions recorded\n")
		return
	}

	counts := make(map[string]int)
	for _, e := range entries {
		printEntry(e)
		counts[e.Outcome]++
	}
	fmt.Printf("\n%d resolved, %d after fallback, %d failed\n",
		counts[resolutionlog.OutcomeResolved],
		counts[resolutionlog.OutcomeFallback],
		counts[resolutionlog.OutcomeFailed],
	)
}

func watch(connectionString string) {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	pql := pq.NewListener(connectionString, 10*time.Second, time.Minute, func(ev pq.ListenerEventType, err error) {
		if err != nil {
			log.Printf("database listener: %v", err)
		}
	})
	listener, err := resolutionlog.NewListener(pql)
	if err != nil {
		log.Fatalf("error listening for resolutions: %v", err)
	}
	fmt.Printf("watching for resolutions; press Ctrl+C to stop\n")
	if err := listener.Run(ctx, printEntry); err != nil {
		log.Fatalf("error watching resolutions: %v", err)
	}
}

func printEntry(e resolutionlog.Entry) {
	userID := e.UserID
	if userID == "" {
		userID = "<n/a>"
	}
	line := fmt.Sprintf("%s  %-13s %-9s %s", e.CreatedAt.Format("2006-01-02 15:04:05"), e.Mode, e.Outcome, userID)
	if e.Error.Valid {
		line += "  " + e.Error.String
	}
	fmt.Println(line)
}
