// Package bootstrap prepares a fresh or existing deployment before the
// server starts listening: schema, administrator account and catalog seed.
package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/gamevault/apiserver/config"
	"github.com/gamevault/apiserver/internal/services"
	"github.com/gamevault/apiserver/internal/store"
	"github.com/gamevault/apiserver/types"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// DefaultAdminUsername is used when ADMIN_USERNAME is not configured.
const DefaultAdminUsername = "admin"

// FatalError aborts startup. Only schema failures are fatal.
type FatalError struct {
	Step string
	Err  error
}

func (e *FatalError) Error() string {
	return fmt.Sprintf("bootstrap %s: %v", e.Step, e.Err)
}

func (e *FatalError) Unwrap() error {
	return e.Err
}

// ErrNoSeedSource is returned by Seed when no seed file is configured.
var ErrNoSeedSource = errors.New("bootstrap: no seed source configured")

// MigrateFunc brings the schema up to date.
type MigrateFunc func(ctx context.Context) error

// Admins is the subset of user operations the admin step needs.
type Admins interface {
	GetByUsername(ctx context.Context, username string) (types.User, error)
	HasAdmin(ctx context.Context) (bool, error)
	CreateAdmin(ctx context.Context, username, credential string) (types.User, error)
}

// Seeder inserts games into an empty catalog.
type Seeder interface {
	Seed(ctx context.Context, games []types.Game) (int, error)
}

// Result summarises what a run changed.
type Result struct {
	AdminCreated  bool
	AdminUsername string
	Seeded        int
}

// Bootstrapper runs the startup steps in order. Every step is safe to
// repeat on each start.
type Bootstrapper struct {
	migrate MigrateFunc
	admins  Admins
	seeder  Seeder
	admin   config.AdminConfig
	source  Source
	logger  *zap.Logger

	generatePassword func() string
}

// New constructs a Bootstrapper. migrate may be nil for backends without a
// schema. source may be nil to skip seeding.
func New(migrate MigrateFunc, admins Admins, seeder Seeder, admin config.AdminConfig, source Source, logger *zap.Logger) *Bootstrapper {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Bootstrapper{
		migrate:          migrate,
		admins:           admins,
		seeder:           seeder,
		admin:            admin,
		source:           source,
		logger:           logger,
		generatePassword: generatePassword,
	}
}

// Run applies the schema, provisions the administrator and seeds the
// catalog. Only a schema failure is returned, as a *FatalError; the other
// steps log their failures and let startup continue.
func (b *Bootstrapper) Run(ctx context.Context) (Result, error) {
	var result Result

	if b.migrate != nil {
		if err := b.migrate(ctx); err != nil {
			return result, &FatalError{Step: "schema", Err: err}
		}
		b.logger.Info("database schema is up to date")
	}

	if b.admins != nil {
		result.AdminUsername, result.AdminCreated = b.ensureAdmin(ctx)
	}

	if b.source != nil && b.seeder != nil {
		added, err := b.Seed(ctx)
		if err != nil {
			b.logger.Error("failed to seed catalog", zap.Error(err))
		}
		result.Seeded = added
	}

	return result, nil
}

func (b *Bootstrapper) ensureAdmin(ctx context.Context) (string, bool) {
	if b.admin.Username != "" {
		return b.ensureNamedAdmin(ctx)
	}

	exists, err := b.admins.HasAdmin(ctx)
	if err != nil {
		b.logger.Error("failed to check for existing admin", zap.Error(err))
		return "", false
	}
	if exists {
		b.logger.Debug("admin account already exists")
		return "", false
	}

	password := b.admin.DefaultPassword
	generated := password == ""
	if generated {
		password = b.generatePassword()
	}

	user, err := b.admins.CreateAdmin(ctx, DefaultAdminUsername, password)
	if err != nil {
		if errors.Is(err, services.ErrUsernameTaken) {
			b.logger.Warn("cannot create default admin: username is taken by a regular account",
				zap.String("username", DefaultAdminUsername))
			return "", false
		}
		b.logger.Error("failed to create default admin", zap.Error(err))
		return "", false
	}

	if generated {
		// Logged exactly once, on the run that creates the account.
		b.logger.Warn("created default admin with a generated password; change it after first login",
			zap.Int("id", user.ID),
			zap.String("username", user.Username),
			zap.String("password", password),
		)
	} else {
		b.logger.Info("created default admin",
			zap.Int("id", user.ID),
			zap.String("username", user.Username),
		)
	}
	return user.Username, true
}

func (b *Bootstrapper) ensureNamedAdmin(ctx context.Context) (string, bool) {
	username := b.admin.Username
	if b.admin.Password == "" {
		b.logger.Warn("ADMIN_USERNAME is set without ADMIN_PASSWORD; skipping admin provisioning",
			zap.String("username", username))
		return "", false
	}

	existing, err := b.admins.GetByUsername(ctx, username)
	switch {
	case err == nil:
		if !existing.IsAdmin {
			b.logger.Warn("configured admin username belongs to a regular account; not promoting",
				zap.String("username", username))
		}
		return "", false
	case !errors.Is(err, store.ErrNotFound):
		b.logger.Error("failed to look up configured admin", zap.String("username", username), zap.Error(err))
		return "", false
	}

	user, err := b.admins.CreateAdmin(ctx, username, b.admin.Password)
	if err != nil {
		if errors.Is(err, services.ErrUsernameTaken) {
			b.logger.Info("configured admin was created concurrently", zap.String("username", username))
			return "", false
		}
		b.logger.Error("failed to create configured admin", zap.String("username", username), zap.Error(err))
		return "", false
	}
	b.logger.Info("created configured admin", zap.Int("id", user.ID), zap.String("username", user.Username))
	return user.Username, true
}

// Seed loads the seed source into an empty catalog and returns how many
// games were added. A populated catalog is not an error; nothing is added.
func (b *Bootstrapper) Seed(ctx context.Context) (int, error) {
	if b.source == nil || b.seeder == nil {
		return 0, ErrNoSeedSource
	}
	items, err := b.source.Load()
	if err != nil {
		return 0, fmt.Errorf("load seed data: %w", err)
	}

	games := make([]types.Game, 0, len(items))
	for _, item := range items {
		item.ID = 0
		item.Name = strings.TrimSpace(item.Name)
		if item.Name == "" {
			continue
		}
		games = append(games, item)
	}

	added, err := b.seeder.Seed(ctx, games)
	if err != nil {
		if errors.Is(err, store.ErrCatalogNotEmpty) {
			b.logger.Info("catalog already populated; skipping seed")
			return 0, nil
		}
		return 0, err
	}
	b.logger.Info("seeded catalog", zap.Int("added", added), zap.Int("skipped", len(items)-added))
	return added, nil
}

func generatePassword() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")
}
