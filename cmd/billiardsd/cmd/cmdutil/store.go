package cmdutil

import (
	"context"
	"fmt"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/uptrace/bun"

	"github.com/boring-ventures/billiards-managementV1-sub001/internal/config"
	"github.com/boring-ventures/billiards-managementV1-sub001/internal/db/bunx"
	"github.com/boring-ventures/billiards-managementV1-sub001/internal/repository"
	"github.com/boring-ventures/billiards-managementV1-sub001/internal/services/iam"
)

// StoreBundle bundles the profile service with its underlying DB connection so
// callers can reuse the connection for other repositories when necessary.
type StoreBundle struct {
	DB        *bun.DB
	Profiles  *repository.BunProfileRepository
	Companies *repository.BunCompanyRepository
	Service   *iam.ProfileService
}

// Close releases the underlying database connection.
func (b *StoreBundle) Close() {
	if b == nil || b.DB == nil {
		return
	}
	bunx.Close(b.DB)
}

// OpenStore centralizes repository construction for CLI commands.
func OpenStore(ctx context.Context, cfg *config.Config) (*StoreBundle, error) {
	db, err := bunx.NewDB(ctx, cfg.DatabaseURL, PoolOptions(cfg))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	profiles := repository.NewBunProfileRepository(db)
	companies := repository.NewBunCompanyRepository(db)
	return &StoreBundle{
		DB:        db,
		Profiles:  profiles,
		Companies: companies,
		Service:   iam.NewProfileService(profiles, companies, CLILogger(cfg)),
	}, nil
}

// PoolOptions derives the connection pool from cfg.
func PoolOptions(cfg *config.Config) bunx.PoolOptions {
	pool := bunx.DefaultPoolOptions()
	if cfg.MaxDBConnections > 0 {
		pool.MaxOpenConns = cfg.MaxDBConnections
		pool.MaxIdleConns = cfg.MaxDBConnections
	}
	return pool
}

// CLILogger writes human readable output to stderr.
func CLILogger(cfg *config.Config) *logrus.Logger {
	log := logrus.New()
	log.SetOutput(os.Stderr)
	log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	if cfg != nil && cfg.Debug {
		log.SetLevel(logrus.DebugLevel)
	} else {
		log.SetLevel(logrus.WarnLevel)
	}
	return log
}
