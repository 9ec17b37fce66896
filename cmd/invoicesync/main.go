package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/custodia-labs/invoicesync/internal/adapters/driven/clickup"
	"github.com/custodia-labs/invoicesync/internal/adapters/driven/config/file"
	"github.com/custodia-labs/invoicesync/internal/adapters/driven/storage/memory"
	"github.com/custodia-labs/invoicesync/internal/adapters/driven/storage/sqlite"
	"github.com/custodia-labs/invoicesync/internal/adapters/driving/cli"
	"github.com/custodia-labs/invoicesync/internal/core/ports/driven"
	"github.com/custodia-labs/invoicesync/internal/core/ports/driving"
	"github.com/custodia-labs/invoicesync/internal/core/services"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

func main() {
	os.Exit(run())
}

func run() int {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var configStore driven.ConfigStore
	if store, err := file.NewConfigStore(""); err != nil {
		fmt.Fprintf(os.Stderr, "warning: %v; settings will not be saved\n", err)
		configStore = memory.NewConfigStore()
	} else {
		configStore = store
	}
	settingsService := services.NewSettingsService(configStore)

	settings, err := settingsService.Get()
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: reading settings: %v\n", err)
		return 1
	}

	var mappingStore driven.MappingStore
	if store, err := sqlite.NewStore(settings.Storage.DataDir); err != nil {
		fmt.Fprintf(os.Stderr, "warning: %v; mapping profiles will not be saved\n", err)
		mappingStore = memory.NewMappingStore()
	} else {
		defer store.Close()
		mappingStore = store.MappingStore()
	}

	var reconciler driving.Reconciler
	if settings.ClickUp.IsConfigured() {
		client, err := clickup.New(settings.ClickUp)
		if err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			return 1
		}
		reconciler = services.NewReconciler(client)
	}

	cli.SetVersion(version)
	cli.SetServices(cli.Services{
		Reconciler: reconciler,
		Settings:   settingsService,
		Mappings:   services.NewMappingService(mappingStore),
	})

	if err := cli.Execute(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		return 1
	}
	return 0
}
