package main

import (
	"fmt"
	"log/slog"
	"math/rand/v2"
	"time"

	"github.com/andas-app/andas/internal/analytics"
	"github.com/andas-app/andas/internal/api"
	"github.com/andas-app/andas/internal/catalog"
	"github.com/andas-app/andas/internal/config"
	"github.com/andas-app/andas/internal/integration"
	"github.com/andas-app/andas/internal/profile"
	"github.com/andas-app/andas/internal/recommend"
	"github.com/andas-app/andas/internal/storage"
)

// app is the wired local engine shared by the server and the CLI commands.
type app struct {
	store *storage.Store
	deps  api.AppDeps
}

func openApp(c config.Config) (*app, error) {
	store, err := storage.Open(c.Storage.DataDir)
	if err != nil {
		return nil, fmt.Errorf("opening storage: %w", err)
	}

	cat := catalog.Default()
	return &app{
		store: store,
		deps: api.AppDeps{
			Catalog:     cat,
			Profile:     profile.NewManager(store, cat),
			Engine:      recommend.NewEngine(cat),
			Integration: newConfigurator(c.Integration.Seed),
			Analytics:   analytics.NewTracker(store),
			Token:       c.Server.APIToken,
		},
	}, nil
}

func newConfigurator(seed int) *integration.Configurator {
	if seed != 0 {
		return integration.NewSeeded(uint64(seed))
	}
	now := uint64(time.Now().UnixNano())
	return integration.NewConfigurator(rand.New(rand.NewPCG(now, now>>1)))
}

func (a *app) Close() {
	if err := a.store.Close(); err != nil {
		slog.Warn("closing storage", "error", err)
	}
}

// withApp opens the local engine for the duration of fn.
func withApp(fn func(a *app) error) error {
	a, err := openApp(cfg)
	if err != nil {
		return err
	}
	defer a.Close()
	return fn(a)
}
