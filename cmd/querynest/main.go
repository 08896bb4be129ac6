// Command querynest answers questions about uploaded documents.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/custodia-labs/querynest/internal/adapters/driven/ai"
	"github.com/custodia-labs/querynest/internal/adapters/driven/config/file"
	"github.com/custodia-labs/querynest/internal/adapters/driving/cli"
	"github.com/custodia-labs/querynest/internal/app"
	"github.com/custodia-labs/querynest/internal/core/services"
	"github.com/custodia-labs/querynest/internal/logger"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

func main() {
	// A .env file in the working directory may carry QUERYNEST_* overrides.
	_ = godotenv.Load()

	cli.SetVersion(version)
	cli.SetBuilder(build)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := cli.Execute(ctx)
	stop()
	logger.Sync()

	if err != nil {
		os.Exit(1)
	}
}

func build(opts cli.Options) (*cli.Services, error) {
	if opts.SettingsOnly {
		store, err := file.NewConfigStore(opts.ConfigDir)
		if err != nil {
			return nil, fmt.Errorf("open config: %w", err)
		}
		return &cli.Services{
			Settings: services.NewSettingsService(store, ai.NewConfigValidator()),
		}, nil
	}

	a, err := app.New(app.Options{
		ConfigDir: opts.ConfigDir,
		Session:   opts.Session,
	})
	if err != nil {
		return nil, err
	}

	return &cli.Services{
		Documents: a.Documents,
		Queries:   a.Queries,
		Settings:  a.Settings,
		Retry:     a.Retry,
		Metrics:   a.Metrics.Handler(),
		Accept:    a.Formats.SupportsFile,
		Close:     a.Close,
	}, nil
}
