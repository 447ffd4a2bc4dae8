package main

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/sells-group/mspdash/internal/accredit"
	"github.com/sells-group/mspdash/internal/dataset"
	"github.com/sells-group/mspdash/pkg/nsi"
)

// openStore creates the accreditation store per config.
func openStore(ctx context.Context) (accredit.Store, error) {
	switch cfg.Store.Driver {
	case "postgres":
		return accredit.NewPostgres(ctx, cfg.Store.DatabaseURL)
	case "sqlite", "":
		return accredit.NewSQLite(cfg.Store.DatabaseURL)
	default:
		return nil, eris.Errorf("unknown store driver: %s", cfg.Store.Driver)
	}
}

// newLoader creates the dataset loader for the configured CSV.
func newLoader() *dataset.Loader {
	return dataset.NewLoader(cfg.Data.File)
}

// newSyncService wires the NSI client and store into a sync service.
func newSyncService(store accredit.Store) *accredit.Service {
	client := nsi.NewClient(
		nsi.WithBaseURL(cfg.NSI.BaseURL),
		nsi.WithHeaders(cfg.NSI.Headers),
		nsi.WithTimeout(cfg.NSI.Timeout()),
	)
	return accredit.NewService(client, store, accredit.WithRateLimit(cfg.NSI.RateLimitRPS))
}
