package migrate

import (
	"context"
	"fmt"

	"github.com/angelmondragon/storefront/pkg/config"
	"github.com/angelmondragon/storefront/pkg/db"
	"github.com/angelmondragon/storefront/pkg/db/models"
	"github.com/angelmondragon/storefront/pkg/logger"
)

// MaybeRunDev brings the schema up to date when running in dev with the feature flag
// enabled, or whenever the database is sqlite.
func MaybeRunDev(ctx context.Context, cfg *config.Config, logg *logger.Logger, client *db.Client) error {
	if !cfg.DB.IsSQLite() && (!cfg.App.IsDev() || !cfg.FeatureFlags.AutoMigrate) {
		return nil
	}
	return Apply(ctx, client, logg)
}

// Apply runs goose on postgres. The SQL files use postgres types, so sqlite
// schemas come from the gorm models instead.
func Apply(ctx context.Context, client *db.Client, logg *logger.Logger) error {
	if logg == nil {
		logg = logger.Nop()
	}
	ctx = logg.WithField(ctx, "dialect", client.Dialect())

	if client.Dialect() == "sqlite3" {
		logg.Info(ctx, "migrate.automigrate")
		if err := client.DB().WithContext(ctx).AutoMigrate(models.All()...); err != nil {
			return fmt.Errorf("auto migrating models: %w", err)
		}
		return nil
	}

	sqlDB, err := client.SQL()
	if err != nil {
		return fmt.Errorf("extracting sql.DB: %w", err)
	}
	logg.Info(ctx, "migrate.goose.up")
	if err := Run(ctx, sqlDB, client.Dialect(), "up"); err != nil {
		return fmt.Errorf("running goose up: %w", err)
	}
	logg.Info(ctx, "migrate.goose.done")
	return nil
}
