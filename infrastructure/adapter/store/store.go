// Package store opens the user repository selected by configuration.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/lib/pq"

	"github.com/fashionfolio/portfolio-auth/application/port/outbound"
	"github.com/fashionfolio/portfolio-auth/infrastructure/adapter/bolt"
	"github.com/fashionfolio/portfolio-auth/infrastructure/adapter/postgres"
	"github.com/fashionfolio/portfolio-auth/infrastructure/config"
)

type Store struct {
	Users  outbound.UserRepository
	Driver string
	ping   func(ctx context.Context) error
	close  func() error
}

// Open connects to Postgres or opens the bbolt file, depending on cfg.StoreDriver.
func Open(ctx context.Context, cfg *config.Config) (*Store, error) {
	switch cfg.StoreDriver {
	case config.StoreDriverPostgres:
		return openPostgres(ctx, cfg.DatabaseURL)
	case config.StoreDriverBolt:
		return openBolt(cfg.BoltPath)
	default:
		return nil, fmt.Errorf("%w: %s", config.ErrInvalidStoreDriver, cfg.StoreDriver)
	}
}

func openPostgres(ctx context.Context, dsn string) (*Store, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(30 * time.Minute)

	return &Store{
		Users:  postgres.NewUserRepositoryAdapter(db),
		Driver: config.StoreDriverPostgres,
		ping:   db.PingContext,
		close:  db.Close,
	}, nil
}

func openBolt(path string) (*Store, error) {
	repo, err := bolt.Open(path)
	if err != nil {
		return nil, err
	}
	return &Store{
		Users:  repo,
		Driver: config.StoreDriverBolt,
		ping:   repo.Ping,
		close:  repo.Close,
	}, nil
}

func (s *Store) Ping(ctx context.Context) error {
	return s.ping(ctx)
}

func (s *Store) Close() error {
	return s.close()
}
