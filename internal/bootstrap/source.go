package bootstrap

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/gamevault/apiserver/types"
)

// Source supplies seed games.
type Source interface {
	Load() ([]types.Game, error)
}

// FileSource reads a JSON array of game objects from a file.
type FileSource string

// Load decodes the file. Unknown fields are rejected so typos in a seed
// file surface instead of silently dropping data.
func (f FileSource) Load() ([]types.Game, error) {
	file, err := os.Open(string(f))
	if err != nil {
		return nil, fmt.Errorf("open seed file: %w", err)
	}
	defer file.Close()
	return decodeGames(file)
}

// StaticSource serves games held in memory.
type StaticSource []types.Game

func (s StaticSource) Load() ([]types.Game, error) {
	return s, nil
}

type seedGame struct {
	Name        string  `json:"name"`
	Year        *int    `json:"year"`
	URL         *string `json:"url"`
	Image       *string `json:"image"`
	Description *string `json:"description"`
}

func decodeGames(r io.Reader) ([]types.Game, error) {
	dec := json.NewDecoder(r)
	dec.DisallowUnknownFields()

	var items []seedGame
	if err := dec.Decode(&items); err != nil {
		return nil, fmt.Errorf("decode seed file: %w", err)
	}

	games := make([]types.Game, 0, len(items))
	for _, item := range items {
		games = append(games, types.Game{
			Name:        item.Name,
			Year:        item.Year,
			URL:         item.URL,
			Image:       item.Image,
			Description: item.Description,
		})
	}
	return games, nil
}
