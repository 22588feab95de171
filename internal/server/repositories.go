package server

import (
	"context"
	"database/sql"

	"github.com/gamevault/apiserver/config"
	"github.com/gamevault/apiserver/internal/bootstrap"
	"github.com/gamevault/apiserver/internal/clock"
	"github.com/gamevault/apiserver/internal/db"
	"github.com/gamevault/apiserver/internal/services"
	"github.com/gamevault/apiserver/internal/store"
	"github.com/gamevault/apiserver/internal/store/memory"
)

// GameStore is the full set of game persistence operations.
type GameStore interface {
	services.GameRepository
	bootstrap.Seeder
}

// Repositories bundles the persistence layer selected by DB_BACKEND.
type Repositories struct {
	Users   services.UserRepository
	Games   GameStore
	Migrate bootstrap.MigrateFunc

	db *sql.DB
}

// OpenRepositories connects to PostgreSQL, or builds an empty in-memory
// store for DB_BACKEND=memory. Repositories stamp rows using clk.
func OpenRepositories(ctx context.Context, cfg config.Config, clk clock.Clock) (*Repositories, error) {
	if cfg.Database.Backend == config.BackendMemory {
		mem := memory.New(clk)
		return &Repositories{Users: mem.Users(), Games: mem.Games()}, nil
	}

	dbConn, err := db.Open(ctx, cfg)
	if err != nil {
		return nil, err
	}
	return &Repositories{
		Users: store.NewUserRepository(dbConn, clk),
		Games: store.NewGameRepository(dbConn, clk),
		Migrate: func(ctx context.Context) error {
			return db.Migrate(ctx, dbConn)
		},
		db: dbConn,
	}, nil
}

// Close releases the database connection pool, if any.
func (r *Repositories) Close() error {
	if r.db == nil {
		return nil
	}
	return r.db.Close()
}
