package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/gamevault/apiserver/internal/clock"
	"github.com/gamevault/apiserver/types"
)

const gameColumns = `id, name, year, url, image, description, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

// GameRepository handles persistence for catalog games.
type GameRepository struct {
	db    *sql.DB
	clock clock.Clock
}

func NewGameRepository(db *sql.DB, clk clock.Clock) *GameRepository {
	if clk == nil {
		clk = clock.New()
	}
	return &GameRepository{db: db, clock: clk}
}

// List returns games ordered by id together with the unpaginated total.
func (r *GameRepository) List(ctx context.Context, offset, limit int) ([]types.Game, int, error) {
	if offset < 0 {
		offset = 0
	}
	if limit < 1 {
		limit = 10
	}

	tx, err := r.db.BeginTx(ctx, &sql.TxOptions{ReadOnly: true, Isolation: sql.LevelRepeatableRead})
	if err != nil {
		return nil, 0, err
	}
	defer func() {
		_ = tx.Rollback()
	}()

	const countQuery = `SELECT COUNT(1) FROM games`
	var total int
	if err := tx.QueryRowContext(ctx, countQuery).Scan(&total); err != nil {
		return nil, 0, err
	}

	listQuery := `
		SELECT ` + gameColumns + `
		FROM games
		ORDER BY id
		OFFSET $1 LIMIT $2`
	rows, err := tx.QueryContext(ctx, listQuery, offset, limit)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	games := make([]types.Game, 0, limit)
	for rows.Next() {
		game, err := scanGame(rows)
		if err != nil {
			return nil, 0, err
		}
		games = append(games, game)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}

	if err := tx.Commit(); err != nil {
		return nil, 0, err
	}
	return games, total, nil
}

func (r *GameRepository) Get(ctx context.Context, id int) (types.Game, error) {
	query := `SELECT ` + gameColumns + ` FROM games WHERE id = $1`
	game, err := scanGame(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return types.Game{}, ErrNotFound
		}
		return types.Game{}, err
	}
	return game, nil
}

func (r *GameRepository) Create(ctx context.Context, game types.Game) (types.Game, error) {
	return insertGame(ctx, r.db, game, r.clock.Now())
}

// Update loads the game under a row lock, lets apply mutate it and writes it
// back, all in one transaction.
func (r *GameRepository) Update(ctx context.Context, id int, apply func(*types.Game) error) (types.Game, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return types.Game{}, err
	}
	defer func() {
		_ = tx.Rollback()
	}()

	query := `SELECT ` + gameColumns + ` FROM games WHERE id = $1 FOR UPDATE`
	game, err := scanGame(tx.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return types.Game{}, ErrNotFound
		}
		return types.Game{}, err
	}

	if err := apply(&game); err != nil {
		return types.Game{}, err
	}
	game.ID = id
	game.UpdatedAt = r.clock.Now()

	const updateQuery = `
		UPDATE games
		SET name = $1,
			year = $2,
			url = $3,
			image = $4,
			description = $5,
			updated_at = $6
		WHERE id = $7`
	if _, err := tx.ExecContext(
		ctx,
		updateQuery,
		game.Name,
		game.Year,
		game.URL,
		game.Image,
		game.Description,
		game.UpdatedAt,
		game.ID,
	); err != nil {
		return types.Game{}, err
	}

	if err := tx.Commit(); err != nil {
		return types.Game{}, err
	}
	return game, nil
}

func (r *GameRepository) Delete(ctx context.Context, id int) error {
	const query = `DELETE FROM games WHERE id = $1`
	result, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

// Seed inserts games in one transaction, but only into an empty catalog.
// Games whose name already exists (case-insensitive) are skipped.
func (r *GameRepository) Seed(ctx context.Context, games []types.Game) (int, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer func() {
		_ = tx.Rollback()
	}()

	// Serialises concurrent seeders so the emptiness check stays valid.
	if _, err := tx.ExecContext(ctx, `LOCK TABLE games IN SHARE ROW EXCLUSIVE MODE`); err != nil {
		return 0, fmt.Errorf("lock games: %w", err)
	}

	var empty bool
	if err := tx.QueryRowContext(ctx, `SELECT NOT EXISTS (SELECT 1 FROM games)`).Scan(&empty); err != nil {
		return 0, err
	}
	if !empty {
		return 0, ErrCatalogNotEmpty
	}

	added := 0
	for _, game := range games {
		var exists bool
		const existsQuery = `SELECT EXISTS (SELECT 1 FROM games WHERE LOWER(name) = LOWER($1))`
		if err := tx.QueryRowContext(ctx, existsQuery, strings.TrimSpace(game.Name)).Scan(&exists); err != nil {
			return 0, err
		}
		if exists {
			continue
		}
		if _, err := insertGame(ctx, tx, game, r.clock.Now()); err != nil {
			return 0, fmt.Errorf("insert %q: %w", game.Name, err)
		}
		added++
	}

	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return added, nil
}

type queryRower interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func insertGame(ctx context.Context, q queryRower, game types.Game, now time.Time) (types.Game, error) {
	game.CreatedAt = now
	game.UpdatedAt = now

	const query = `
		INSERT INTO games (name, year, url, image, description, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id`
	if err := q.QueryRowContext(
		ctx,
		query,
		game.Name,
		game.Year,
		game.URL,
		game.Image,
		game.Description,
		game.CreatedAt,
		game.UpdatedAt,
	).Scan(&game.ID); err != nil {
		return types.Game{}, err
	}
	return game, nil
}

func scanGame(row rowScanner) (types.Game, error) {
	var game types.Game
	err := row.Scan(
		&game.ID,
		&game.Name,
		&game.Year,
		&game.URL,
		&game.Image,
		&game.Description,
		&game.CreatedAt,
		&game.UpdatedAt,
	)
	return game, err
}
