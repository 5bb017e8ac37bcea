package main

import (
	"hive/internal/backend"
	"hive/internal/channel"
	"hive/internal/chat"
	"hive/internal/config"
	"hive/internal/logging"
	"hive/internal/orchestrate"
	"hive/internal/present"
	"hive/internal/registry"
	"hive/internal/store"
)

const presentCacheSize = 64

// buildController assembles the full controller stack from configuration.
func buildController(cfg *config.Config) *chat.Controller {
	logger := logging.NewComponentLogger("hive")

	sessionStore := store.New(cfg.StateDir, nil, logger)
	client := backend.New(cfg.BackendURL, cfg.RequestTimeout, logger)
	roster := registry.New(client, sessionStore, logger)
	channels := channel.NewManager(cfg.WebSocketURL, logger)
	scheduler := orchestrate.New(orchestrate.Config{
		TimeScale: cfg.SchedulerTimeScale,
	}, logger)

	return chat.New(chat.Options{
		Store:     sessionStore,
		Registry:  roster,
		Channels:  channels,
		Backend:   client,
		Scheduler: scheduler,
		Pipeline:  present.NewPipeline(presentCacheSize),
		Logger:    logger,
	})
}
