package main

import (
	"fmt"
	"os"

	tea "charm.land/bubbletea/v2"

	"contacts/internal/client"
	"contacts/internal/platform/config"
	"contacts/internal/platform/logger"
	"contacts/internal/tui"
)

func main() {
	cfg, err := config.ClientFromEnv()
	if err != nil {
		fmt.Fprintf(os.Stderr, "invalid configuration: %v\n", err)
		os.Exit(1)
	}
	log := logger.New(cfg.Log)

	api := client.New(cfg.APIURL,
		client.WithTimeout(cfg.RequestTimeout),
		client.WithLogger(log),
	)
	log.Info("starting contacts tui", "api_url", cfg.APIURL)

	if _, err := tea.NewProgram(tui.New(api, cfg)).Run(); err != nil {
		log.Error("tui exited with error", "error", err)
		fmt.Fprintf(os.Stderr, "contacts: %v\n", err)
		os.Exit(1)
	}
}
