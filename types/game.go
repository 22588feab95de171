package types

import (
	"strings"
	"time"
)

// Game represents a video game record in the catalog.
// Optional attributes are pointers so that an unknown value is stored
// and rendered as null instead of a zero value.
type Game struct {
	// ID is the unique identifier of the game. Ascending ID is the
	// canonical listing order.
	ID int `json:"id" db:"id"`

	// Name is the display title of the game. It is required and non-empty.
	Name string `json:"name" db:"name"`

	// Year is the release year, if known.
	Year *int `json:"year" db:"year"`

	// URL points to an external page about the game.
	URL *string `json:"url" db:"url"`

	// Image is the URL of the cover image.
	Image *string `json:"image" db:"image"`

	// Description is a free-form summary of the game.
	Description *string `json:"description" db:"description"`

	// CreatedAt is the timestamp at which the game was added to the catalog.
	CreatedAt time.Time `json:"-" db:"created_at"`

	// UpdatedAt is the timestamp of the most recent change to the game.
	UpdatedAt time.Time `json:"-" db:"updated_at"`
}

// GamePatch describes a partial update of a Game. Fields that were not
// present in the request are left untouched; fields sent as null clear the
// stored value.
type GamePatch struct {
	Name        Optional[string] `json:"name"`
	Year        Optional[int]    `json:"year"`
	URL         Optional[string] `json:"url"`
	Image       Optional[string] `json:"image"`
	Description Optional[string] `json:"description"`
}

// IsEmpty reports whether the patch carries no fields at all.
func (p GamePatch) IsEmpty() bool {
	return !p.Name.Set && !p.Year.Set && !p.URL.Set && !p.Image.Set && !p.Description.Set
}

// Apply returns a copy of game with the patch applied.
func (p GamePatch) Apply(game Game) Game {
	if p.Name.Set {
		game.Name = strings.TrimSpace(p.Name.Value)
	}
	applyNullable(&game.Year, p.Year)
	applyNullable(&game.URL, p.URL)
	applyNullable(&game.Image, p.Image)
	applyNullable(&game.Description, p.Description)
	return game
}

func applyNullable[T any](dst **T, field Optional[T]) {
	if !field.Set {
		return
	}
	if field.Null {
		*dst = nil
		return
	}
	value := field.Value
	*dst = &value
}

// CatalogEvent is published after a successful catalog mutation.
type CatalogEvent struct {
	// Type is one of the CatalogEvent* constants.
	Type string `json:"type"`

	// GameID identifies the affected game.
	GameID int `json:"game_id"`

	// Game is the stored record after the change. It is omitted for deletions.
	Game *Game `json:"game,omitempty"`

	// OccurredAt is the time the change was committed.
	OccurredAt time.Time `json:"occurred_at"`
}

// Supported catalog event types.
const (
	CatalogEventCreated = "game.created"
	CatalogEventUpdated = "game.updated"
	CatalogEventDeleted = "game.deleted"
)
