// Package memory provides in-memory repositories with the same behaviour as
// the PostgreSQL ones in package store. It backs DB_BACKEND=memory and tests.
package memory

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/gamevault/apiserver/internal/clock"
	"github.com/gamevault/apiserver/internal/store"
	"github.com/gamevault/apiserver/types"
)

// Store holds users and games behind a single mutex.
type Store struct {
	mu    sync.RWMutex
	clock clock.Clock

	users      map[int]types.User
	usernames  map[string]int
	nextUserID int

	games      map[int]types.Game
	nextGameID int
}

// New creates an empty store. A nil clk uses the system clock.
func New(clk clock.Clock) *Store {
	if clk == nil {
		clk = clock.New()
	}
	return &Store{
		clock:      clk,
		users:      make(map[int]types.User),
		usernames:  make(map[string]int),
		nextUserID: 1,
		games:      make(map[int]types.Game),
		nextGameID: 1,
	}
}

// Users returns a user repository view of the store.
func (s *Store) Users() *UserRepository {
	return &UserRepository{s: s}
}

// Games returns a game repository view of the store.
func (s *Store) Games() *GameRepository {
	return &GameRepository{s: s}
}

// User operations

type UserRepository struct {
	s *Store
}

func (r *UserRepository) GetByID(ctx context.Context, id int) (types.User, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	user, ok := r.s.users[id]
	if !ok {
		return types.User{}, store.ErrNotFound
	}
	return user, nil
}

func (r *UserRepository) GetByUsername(ctx context.Context, username string) (types.User, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	id, ok := r.s.usernames[username]
	if !ok {
		return types.User{}, store.ErrNotFound
	}
	return r.s.users[id], nil
}

func (r *UserRepository) Create(ctx context.Context, user types.User) (types.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, taken := r.s.usernames[user.Username]; taken {
		return types.User{}, store.ErrConflict
	}
	now := r.s.clock.Now()
	user.ID = r.s.nextUserID
	user.CreatedAt = now
	user.UpdatedAt = now
	r.s.nextUserID++
	r.s.users[user.ID] = user
	r.s.usernames[user.Username] = user.ID
	return user, nil
}

func (r *UserRepository) HasAdmin(ctx context.Context) (bool, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	for _, user := range r.s.users {
		if user.IsAdmin {
			return true, nil
		}
	}
	return false, nil
}

// Game operations

type GameRepository struct {
	s *Store
}

func (r *GameRepository) List(ctx context.Context, offset, limit int) ([]types.Game, int, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	ids := make([]int, 0, len(r.s.games))
	for id := range r.s.games {
		ids = append(ids, id)
	}
	sort.Ints(ids)

	total := len(ids)
	if offset < 0 {
		offset = 0
	}
	if offset > total {
		offset = total
	}
	end := total
	if limit > 0 && offset+limit < total {
		end = offset + limit
	}

	games := make([]types.Game, 0, end-offset)
	for _, id := range ids[offset:end] {
		games = append(games, r.s.games[id])
	}
	return games, total, nil
}

func (r *GameRepository) Get(ctx context.Context, id int) (types.Game, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	game, ok := r.s.games[id]
	if !ok {
		return types.Game{}, store.ErrNotFound
	}
	return game, nil
}

func (r *GameRepository) Create(ctx context.Context, game types.Game) (types.Game, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	return r.insertLocked(game), nil
}

func (r *GameRepository) Update(ctx context.Context, id int, apply func(*types.Game) error) (types.Game, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	game, ok := r.s.games[id]
	if !ok {
		return types.Game{}, store.ErrNotFound
	}
	if err := apply(&game); err != nil {
		return types.Game{}, err
	}
	game.ID = id
	game.UpdatedAt = r.s.clock.Now()
	r.s.games[id] = game
	return game, nil
}

func (r *GameRepository) Delete(ctx context.Context, id int) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.games[id]; !ok {
		return store.ErrNotFound
	}
	delete(r.s.games, id)
	return nil
}

func (r *GameRepository) Seed(ctx context.Context, games []types.Game) (int, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if len(r.s.games) > 0 {
		return 0, store.ErrCatalogNotEmpty
	}

	seen := make(map[string]struct{}, len(games))
	added := 0
	for _, game := range games {
		key := strings.ToLower(strings.TrimSpace(game.Name))
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		r.insertLocked(game)
		added++
	}
	return added, nil
}

func (r *GameRepository) insertLocked(game types.Game) types.Game {
	now := r.s.clock.Now()
	game.ID = r.s.nextGameID
	game.CreatedAt = now
	game.UpdatedAt = now
	r.s.nextGameID++
	r.s.games[game.ID] = game
	return game
}
