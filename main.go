package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"mentorly/internal/client"
	"mentorly/internal/config"
)

// consoleUI satisfies the client's UI hooks for headless runs: alerts go
// to the structured log and navigation targets are announced.
type consoleUI struct {
	logger *slog.Logger
}

func (u consoleUI) Info(msg string)        { u.logger.Info(msg) }
func (u consoleUI) Error(msg string)       { u.logger.Error(msg) }
func (u consoleUI) NavigateTo(path string) { u.logger.Info("navigate", "path", path) }

func run(ctx context.Context) error {
	email := flag.String("login", "", "Email to log in with (prompts for password via MENTORLY_PASSWORD)")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		return err
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))
	ui := consoleUI{logger: logger}

	c, err := client.New(cfg, ui, ui, logger)
	if err != nil {
		return err
	}
	defer func() { _ = c.Close() }()

	if *email != "" {
		password := os.Getenv("MENTORLY_PASSWORD")
		if password == "" {
			return fmt.Errorf("MENTORLY_PASSWORD is required with -login")
		}
		if err := c.Session().Login(ctx, *email, password); err != nil {
			return err
		}
	} else if err := c.Session().Restore(); err != nil {
		return fmt.Errorf("no session available, log in with -login: %w", err)
	}

	if err := c.LoadConversations(ctx); err != nil {
		logger.Warn("initial conversation load failed", "error", err)
	}
	if err := c.LoadNotifications(ctx); err != nil {
		logger.Warn("initial notification load failed", "error", err)
	}

	return c.Run(ctx)
}

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		log.Fatalf("Application error: %v", err)
	}
}
