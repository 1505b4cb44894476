// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/poiesic/mediastash"
	"github.com/poiesic/mediastash/bot"
	"github.com/poiesic/mediastash/broadcast"
	"github.com/poiesic/mediastash/core"
	"github.com/poiesic/mediastash/search"
	"github.com/poiesic/mediastash/server"
	"github.com/poiesic/mediastash/telegram"
	"github.com/urfave/cli/v2"
)

func main() {
	if err := newApp().Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

func newApp() *cli.App {
	return &cli.App{
		Name:  "mediastash",
		Usage: "Personal media library bot for Telegram",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "log-level",
				Aliases: []string{"l"},
				Usage:   "Set logging level (debug, info, warn, error)",
				Value:   "info",
			},
		},
		Before: setupLogger,
		Commands: []*cli.Command{
			{
				Name:   "init",
				Usage:  "Create all tables up front",
				Action: initCommand,
				Flags:  databaseFlags(),
			},
			{
				Name:   "serve",
				Usage:  "Serve the Telegram webhook",
				Action: serveCommand,
				Flags: append(databaseFlags(),
					tokenFlag(),
					apiURLFlag(),
					&cli.StringFlag{
						Name:     "secret",
						Usage:    "Secret path segment the webhook listens on",
						EnvVars:  []string{"WEBHOOK_SECRET"},
						Required: true,
					},
					&cli.StringFlag{
						Name:    "site-url",
						Usage:   "Public base URL; when set the webhook is registered with Telegram on startup",
						EnvVars: []string{"SITE_URL"},
					},
					&cli.StringFlag{
						Name:    "addr",
						Aliases: []string{"a"},
						Usage:   "Address to listen on",
						EnvVars: []string{"MEDIASTASH_ADDR"},
						Value:   ":8080",
					},
					&cli.DurationFlag{
						Name:  "shutdown-timeout",
						Usage: "How long to wait for in-flight requests on shutdown",
						Value: 10 * time.Second,
					},
				),
			},
			{
				Name:      "search",
				Usage:     "Print one page of a user's media matching a query",
				ArgsUsage: "[query...]",
				Action:    searchCommand,
				Flags: append(databaseFlags(),
					userFlag(),
					&cli.StringFlag{
						Name:  "offset",
						Usage: "Offset returned by the previous page",
					},
					&cli.IntFlag{
						Name:  "page-size",
						Usage: "Number of results per page",
						Value: search.DefaultPageSize,
					},
				),
			},
			{
				Name:      "broadcast",
				Usage:     "Send a message to every user",
				ArgsUsage: "<message...>",
				Action:    broadcastCommand,
				Flags: append(databaseFlags(),
					tokenFlag(),
					apiURLFlag(),
					&cli.Int64SliceFlag{
						Name:  "except",
						Usage: "User IDs to leave out (repeatable)",
					},
					&cli.IntFlag{
						Name:  "pool-size",
						Usage: "Number of concurrent deliveries",
						Value: 4,
					},
					&cli.IntFlag{
						Name:  "report-interval",
						Usage: "Report progress every N deliveries",
						Value: 10,
					},
					&cli.IntFlag{
						Name:  "max-retries",
						Usage: "Maximum attempts per delivery",
						Value: 3,
					},
					&cli.DurationFlag{
						Name:  "retry-delay",
						Usage: "Base delay for exponential backoff",
						Value: 1 * time.Second,
					},
				),
			},
			{
				Name:   "delete-user",
				Usage:  "Delete a user with all their media and conversation state",
				Action: deleteUserCommand,
				Flags:  append(databaseFlags(), userFlag()),
			},
		},
	}
}

func databaseFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    "db",
			Aliases: []string{"d"},
			Usage:   "Path to the SQLite database file",
			EnvVars: []string{"MEDIASTASH_DB"},
			Value:   "mediastash.db",
		},
		&cli.StringFlag{
			Name:    "state-backend",
			Usage:   "Where conversation state is kept (sqlite, badger)",
			EnvVars: []string{"MEDIASTASH_STATE_BACKEND"},
			Value:   string(mediastash.StateBackendSQLite),
		},
		&cli.StringFlag{
			Name:    "state-dir",
			Usage:   "BadgerDB directory for the badger state backend",
			EnvVars: []string{"MEDIASTASH_STATE_DIR"},
			Value:   "mediastash-state",
		},
		&cli.DurationFlag{
			Name:  "state-ttl",
			Usage: "Expire unfinished drafts after this long (badger state backend only, 0 keeps them)",
			Value: 24 * time.Hour,
		},
	}
}

func tokenFlag() cli.Flag {
	return &cli.StringFlag{
		Name:     "token",
		Usage:    "Telegram bot token",
		EnvVars:  []string{"TELEGRAM_TOKEN"},
		Required: true,
	}
}

func apiURLFlag() cli.Flag {
	return &cli.StringFlag{
		Name:  "api-url",
		Usage: "Bot API base URL",
		Value: telegram.DefaultBaseURL,
	}
}

func userFlag() cli.Flag {
	return &cli.Int64Flag{
		Name:     "user",
		Aliases:  []string{"u"},
		Usage:    "Telegram user ID",
		Required: true,
	}
}

func openDatabase(c *cli.Context) (*mediastash.Database, error) {
	dbPath := c.String("db")
	if dbPath == "" {
		return nil, fmt.Errorf("database path is required")
	}

	stateBackend, err := mediastash.ParseStateBackend(c.String("state-backend"))
	if err != nil {
		return nil, err
	}

	opts := []mediastash.DatabaseOption{mediastash.WithLogger(slog.Default())}
	if stateBackend == mediastash.StateBackendBadger {
		if c.String("state-dir") == "" {
			return nil, fmt.Errorf("state-dir is required for the badger state backend")
		}
		opts = append(opts, mediastash.WithBadgerState(c.String("state-dir"), c.Duration("state-ttl")))
	}

	db, err := mediastash.NewDatabase(dbPath, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	return db, nil
}

func initCommand(c *cli.Context) error {
	db, err := openDatabase(c)
	if err != nil {
		return err
	}
	defer db.Close()

	if err := db.Init(c.Context); err != nil {
		return fmt.Errorf("failed to create tables: %w", err)
	}
	fmt.Fprintf(c.App.Writer, "Initialized %s\n", c.String("db"))
	return nil
}

func serveCommand(c *cli.Context) error {
	ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := openDatabase(c)
	if err != nil {
		return err
	}
	defer db.Close()

	client, err := telegram.NewClient(c.String("token"), telegram.WithBaseURL(c.String("api-url")))
	if err != nil {
		return fmt.Errorf("failed to create bot client: %w", err)
	}

	engine, err := db.NewEngine()
	if err != nil {
		return fmt.Errorf("failed to create conversation engine: %w", err)
	}
	searcher, err := db.NewSearcher()
	if err != nil {
		return fmt.Errorf("failed to create searcher: %w", err)
	}
	handler, err := bot.NewHandler(engine, searcher, db.Users(), client)
	if err != nil {
		return fmt.Errorf("failed to create update handler: %w", err)
	}

	secret := c.String("secret")
	srv, err := server.New(c.String("addr"), secret, handler,
		server.WithHealthCheck(db.Ping),
		server.WithShutdownTimeout(c.Duration("shutdown-timeout")),
	)
	if err != nil {
		return fmt.Errorf("failed to create server: %w", err)
	}

	if site := c.String("site-url"); site != "" {
		// One connection at a time: the database has a single writer.
		if err := client.SetWebhook(ctx, webhookURL(site, secret), 1); err != nil {
			return fmt.Errorf("failed to set webhook: %w", err)
		}
		slog.Info("webhook registered", "site", site)
	}

	return srv.Run(ctx)
}

// webhookURL joins the public site URL and the secret path segment.
func webhookURL(site, secret string) string {
	return strings.TrimRight(site, "/") + "/" + secret
}

func searchCommand(c *cli.Context) error {
	db, err := openDatabase(c)
	if err != nil {
		return err
	}
	defer db.Close()

	searcher, err := db.NewSearcher(search.WithPageSize(c.Int("page-size")))
	if err != nil {
		return fmt.Errorf("failed to create searcher: %w", err)
	}

	query := strings.Join(c.Args().Slice(), " ")
	page, err := searcher.Page(c.Context, core.UserID(c.Int64("user")), query, c.String("offset"))
	if err != nil {
		return fmt.Errorf("search failed: %w", err)
	}

	out := c.App.Writer
	for _, item := range page.Items {
		fmt.Fprintf(out, "%d\t%s\t%s\t%s\n", item.MediaID, item.Type, item.FileID, item.Description)
	}
	fmt.Fprintf(out, "%d of %d", len(page.Items), page.Total)
	if page.NextOffset != "" {
		fmt.Fprintf(out, ", next offset %s", page.NextOffset)
	}
	fmt.Fprintln(out)
	return nil
}

func broadcastCommand(c *cli.Context) error {
	text := strings.Join(c.Args().Slice(), " ")
	if strings.TrimSpace(text) == "" {
		return fmt.Errorf("message is required")
	}
	if c.Int("max-retries") <= 0 {
		return fmt.Errorf("max-retries must be greater than 0")
	}
	if c.Int("report-interval") <= 0 {
		return fmt.Errorf("report-interval must be greater than 0")
	}

	db, err := openDatabase(c)
	if err != nil {
		return err
	}
	defer db.Close()

	client, err := telegram.NewClient(c.String("token"), telegram.WithBaseURL(c.String("api-url")))
	if err != nil {
		return fmt.Errorf("failed to create bot client: %w", err)
	}

	broadcaster, err := db.NewBroadcaster(client,
		broadcast.WithPoolSize(c.Int("pool-size")),
		broadcast.WithProgress(os.Stderr, c.Int("report-interval")),
		broadcast.WithRetry(c.Int("max-retries"), c.Duration("retry-delay")),
	)
	if err != nil {
		return fmt.Errorf("failed to create broadcaster: %w", err)
	}
	defer broadcaster.Release()

	var except []core.UserID
	for _, id := range c.Int64Slice("except") {
		except = append(except, core.UserID(id))
	}

	ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
	defer stop()

	report, err := broadcaster.Run(ctx, text, except...)
	fmt.Fprintf(c.App.Writer, "Total: %d, sent: %d, failed: %d, skipped: %d\n",
		report.Total, report.Sent, report.Failed, report.Skipped)
	if err != nil {
		return fmt.Errorf("broadcast failed: %w", err)
	}
	return nil
}

func deleteUserCommand(c *cli.Context) error {
	db, err := openDatabase(c)
	if err != nil {
		return err
	}
	defer db.Close()

	userID := core.UserID(c.Int64("user"))
	deleted, err := db.Users().DeleteUser(c.Context, userID)
	if err != nil {
		return fmt.Errorf("failed to delete user: %w", err)
	}
	if !deleted {
		fmt.Fprintf(c.App.Writer, "User %d not found\n", userID)
		return nil
	}
	fmt.Fprintf(c.App.Writer, "Deleted user %d\n", userID)
	return nil
}

func setupLogger(c *cli.Context) error {
	// Get log level from flag and normalize to lowercase
	levelStr := strings.ToLower(c.String("log-level"))

	// Map string to slog.Level
	var level slog.Level
	switch levelStr {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		return fmt.Errorf("invalid log level %q: must be one of debug, info, warn, error", levelStr)
	}

	// Configure slog with the specified level
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	}))
	slog.SetDefault(logger)

	return nil
}
