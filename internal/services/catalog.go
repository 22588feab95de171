package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/gamevault/apiserver/internal/clock"
	"github.com/gamevault/apiserver/internal/imaging"
	"github.com/gamevault/apiserver/types"
	"go.uber.org/zap"
)

const (
	DefaultPageLimit = 10
	MaxPageLimit     = 100

	maxNameLength = 200
	maxURLLength  = 500

	publishTimeout = 5 * time.Second
)

// GameRepository defines persistence operations for catalog games.
type GameRepository interface {
	List(ctx context.Context, offset, limit int) ([]types.Game, int, error)
	Get(ctx context.Context, id int) (types.Game, error)
	Create(ctx context.Context, game types.Game) (types.Game, error)
	Update(ctx context.Context, id int, apply func(*types.Game) error) (types.Game, error)
	Delete(ctx context.Context, id int) error
}

// EventPublisher receives catalog change notifications.
type EventPublisher interface {
	PublishCatalogEvent(ctx context.Context, event types.CatalogEvent) error
}

// CoverStore persists cover images and returns their public URLs.
type CoverStore interface {
	Save(ctx context.Context, gameID int, data []byte, ext, contentType string) (string, error)
	Remove(ctx context.Context, url string) error
}

// ImageProcessor validates and normalises an uploaded image.
type ImageProcessor interface {
	Process(r io.Reader) (*imaging.Image, error)
}

// CatalogOptions carries the optional collaborators of a CatalogService.
// Nil Events disables publication; nil Covers disables image uploads.
type CatalogOptions struct {
	DefaultLimit int
	MaxLimit     int
	Events       EventPublisher
	Covers       CoverStore
	Images       ImageProcessor
	Clock        clock.Clock
	Logger       *zap.Logger
}

// Page is a validated skip/limit pair.
type Page struct {
	Skip  int
	Limit int
}

// GameList is one page of the catalog plus the total number of games.
type GameList struct {
	Total int          `json:"total"`
	Games []types.Game `json:"games"`
}

// CatalogService encapsulates game use-cases. It performs no authorization;
// callers gate mutating operations.
type CatalogService struct {
	repo         GameRepository
	events       EventPublisher
	covers       CoverStore
	images       ImageProcessor
	clock        clock.Clock
	logger       *zap.Logger
	defaultLimit int
	maxLimit     int
}

func NewCatalogService(repo GameRepository, opts CatalogOptions) *CatalogService {
	if opts.DefaultLimit <= 0 {
		opts.DefaultLimit = DefaultPageLimit
	}
	if opts.MaxLimit < opts.DefaultLimit {
		opts.MaxLimit = max(MaxPageLimit, opts.DefaultLimit)
	}
	if opts.Clock == nil {
		opts.Clock = clock.New()
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.Covers != nil && opts.Images == nil {
		opts.Images = imaging.NewProcessor(imaging.DefaultMaxWidth)
	}
	return &CatalogService{
		repo:         repo,
		events:       opts.Events,
		covers:       opts.Covers,
		images:       opts.Images,
		clock:        opts.Clock,
		logger:       opts.Logger,
		defaultLimit: opts.DefaultLimit,
		maxLimit:     opts.MaxLimit,
	}
}

// ParsePage validates raw skip and limit query values. Empty values take
// the defaults; limits above the maximum are clamped.
func (s *CatalogService) ParsePage(rawSkip, rawLimit string) (Page, error) {
	page := Page{Skip: 0, Limit: s.defaultLimit}

	if raw := strings.TrimSpace(rawSkip); raw != "" {
		skip, err := strconv.Atoi(raw)
		if err != nil {
			return Page{}, invalidPagination("invalid pagination params: skip must be an integer")
		}
		if skip < 0 {
			return Page{}, invalidPagination("invalid pagination params: skip must not be negative")
		}
		page.Skip = skip
	}

	if raw := strings.TrimSpace(rawLimit); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil {
			return Page{}, invalidPagination("invalid pagination params: limit must be an integer")
		}
		if limit <= 0 {
			return Page{}, invalidPagination("invalid pagination params: limit must be positive")
		}
		page.Limit = limit
	}

	if page.Limit > s.maxLimit {
		page.Limit = s.maxLimit
	}
	return page, nil
}

// ListGames returns one page of games ordered by id.
func (s *CatalogService) ListGames(ctx context.Context, page Page) (GameList, error) {
	games, total, err := s.repo.List(ctx, page.Skip, page.Limit)
	if err != nil {
		return GameList{}, fmt.Errorf("list games: %w", err)
	}
	if games == nil {
		games = []types.Game{}
	}
	return GameList{Total: total, Games: games}, nil
}

func (s *CatalogService) GetGame(ctx context.Context, id int) (types.Game, error) {
	if id < 1 {
		return types.Game{}, ErrNotFound
	}
	return s.repo.Get(ctx, id)
}

// CreateGame stores a new game. The name is required.
func (s *CatalogService) CreateGame(ctx context.Context, fields types.GamePatch) (types.Game, error) {
	if !fields.Name.Set {
		return types.Game{}, invalidInput("name is required")
	}
	if err := validatePatch(fields); err != nil {
		return types.Game{}, err
	}

	created, err := s.repo.Create(ctx, fields.Apply(types.Game{}))
	if err != nil {
		return types.Game{}, fmt.Errorf("create game: %w", err)
	}
	s.publish(ctx, types.CatalogEventCreated, created.ID, &created)
	return created, nil
}

// UpdateGame applies a partial update. Fields absent from patch keep their
// stored value.
func (s *CatalogService) UpdateGame(ctx context.Context, id int, patch types.GamePatch) (types.Game, error) {
	if id < 1 {
		return types.Game{}, ErrNotFound
	}
	if err := validatePatch(patch); err != nil {
		return types.Game{}, err
	}

	updated, err := s.repo.Update(ctx, id, func(game *types.Game) error {
		*game = patch.Apply(*game)
		return nil
	})
	if err != nil {
		return types.Game{}, err
	}
	if !patch.IsEmpty() {
		s.publish(ctx, types.CatalogEventUpdated, updated.ID, &updated)
	}
	return updated, nil
}

func (s *CatalogService) DeleteGame(ctx context.Context, id int) error {
	if id < 1 {
		return ErrNotFound
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}
	s.publish(ctx, types.CatalogEventDeleted, id, nil)
	return nil
}

// ImagesEnabled reports whether a storage backend is configured.
func (s *CatalogService) ImagesEnabled() bool {
	return s.covers != nil
}

// SetGameImage normalises an uploaded cover, stores it and points the
// game's image at it. A previously uploaded cover is removed afterwards.
func (s *CatalogService) SetGameImage(ctx context.Context, id int, upload io.Reader) (types.Game, error) {
	if s.covers == nil {
		return types.Game{}, ErrStorageDisabled
	}
	if _, err := s.GetGame(ctx, id); err != nil {
		return types.Game{}, err
	}

	img, err := s.images.Process(upload)
	if err != nil {
		if errors.Is(err, imaging.ErrUnsupportedFormat) {
			return types.Game{}, invalidInput("image must be a png, jpeg or gif file")
		}
		return types.Game{}, fmt.Errorf("process image: %w", err)
	}

	url, err := s.covers.Save(ctx, id, img.Data, img.Extension, img.MimeType)
	if err != nil {
		return types.Game{}, fmt.Errorf("store image: %w", err)
	}

	var previous *string
	updated, err := s.repo.Update(ctx, id, func(game *types.Game) error {
		previous = game.Image
		game.Image = &url
		return nil
	})
	if err != nil {
		s.removeCover(ctx, url)
		return types.Game{}, err
	}
	if previous != nil && *previous != url {
		s.removeCover(ctx, *previous)
	}

	s.publish(ctx, types.CatalogEventUpdated, updated.ID, &updated)
	return updated, nil
}

func (s *CatalogService) removeCover(ctx context.Context, url string) {
	if err := s.covers.Remove(context.WithoutCancel(ctx), url); err != nil {
		s.logger.Warn("failed to remove cover image", zap.String("url", url), zap.Error(err))
	}
}

func (s *CatalogService) publish(ctx context.Context, eventType string, gameID int, game *types.Game) {
	if s.events == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), publishTimeout)
	defer cancel()

	event := types.CatalogEvent{
		Type:       eventType,
		GameID:     gameID,
		Game:       game,
		OccurredAt: s.clock.Now().UTC(),
	}
	if err := s.events.PublishCatalogEvent(ctx, event); err != nil {
		s.logger.Warn("failed to publish catalog event",
			zap.String("type", eventType),
			zap.Int("game_id", gameID),
			zap.Error(err),
		)
	}
}

func validatePatch(p types.GamePatch) error {
	if p.Name.Set {
		name := strings.TrimSpace(p.Name.Value)
		if p.Name.Null || name == "" {
			return invalidInput("name must not be empty")
		}
		if utf8.RuneCountInString(name) > maxNameLength {
			return invalidInput(fmt.Sprintf("name must be at most %d characters", maxNameLength))
		}
	}
	if p.URL.Set && !p.URL.Null && utf8.RuneCountInString(p.URL.Value) > maxURLLength {
		return invalidInput(fmt.Sprintf("url must be at most %d characters", maxURLLength))
	}
	if p.Image.Set && !p.Image.Null && utf8.RuneCountInString(p.Image.Value) > maxURLLength {
		return invalidInput(fmt.Sprintf("image must be at most %d characters", maxURLLength))
	}
	return nil
}
