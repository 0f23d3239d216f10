package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"

	"stockton/internal/config"
	"stockton/internal/logging"
	"stockton/pkg/backend"
	"stockton/pkg/chat"
	"stockton/pkg/settings"
)

// env carries the resolved configuration and lazily built clients shared by
// subcommands. Tests fill cfg directly.
type env struct {
	cfg    *config.Config
	logger *slog.Logger
	stdin  io.Reader

	store *backend.Store
}

func (e *env) init() error {
	if e.cfg == nil {
		cfg, err := config.Load()
		if err != nil {
			return err
		}
		e.cfg = cfg
	}
	if e.logger == nil {
		e.logger = logging.New(os.Stderr, logging.ParseLevel(e.cfg.LogLevel))
	}
	if e.stdin == nil {
		e.stdin = os.Stdin
	}
	return nil
}

func (e *env) backend() (*backend.Store, error) {
	if e.store != nil {
		return e.store, nil
	}
	if err := e.cfg.RequireBackend(); err != nil {
		return nil, err
	}
	c, err := backend.NewClient(e.cfg.BackendURL, e.cfg.BackendKey)
	if err != nil {
		return nil, fmt.Errorf("backend client: %w", err)
	}
	e.store = backend.NewStore(c)
	return e.store, nil
}

func (e *env) settings(ctx context.Context) (*settings.Store, error) {
	return settings.Open(ctx, e.cfg.SettingsDB)
}

func (e *env) sender() (*chat.Sender, error) {
	return chat.NewSender(e.cfg.WebhookURL)
}
