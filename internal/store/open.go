package store

import (
	"context"
	"fmt"

	"github.com/cleared-dev/bankfeed/internal/apperrors"
	"github.com/cleared-dev/bankfeed/internal/config"
)

// Open returns the Gateway selected by cfg.Store.Driver.
func Open(ctx context.Context, cfg *config.Config) (Gateway, error) {
	switch cfg.Store.Driver {
	case config.DriverSQLite, "":
		return OpenSQLite(ctx, cfg.SQLitePath())
	case config.DriverPostgres:
		return OpenPostgres(ctx, cfg.PostgresDSN())
	case config.DriverMemory:
		return NewMemory(), nil
	default:
		return nil, fmt.Errorf("%w: unknown store driver %q", apperrors.ErrConfiguration, cfg.Store.Driver)
	}
}
