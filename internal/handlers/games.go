package handlers

import (
	"errors"
	"net/http"

	"github.com/gamevault/apiserver/internal/services"
	"github.com/gamevault/apiserver/types"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

const (
	maxImageBytes   = 10 << 20
	formFieldImage  = "image"
	gameNotFoundMsg = "game not found"
)

// GameHandler provides HTTP handlers for the game catalog.
type GameHandler struct {
	catalog *services.CatalogService
	logger  *zap.Logger
}

// NewGameHandler constructs a GameHandler.
func NewGameHandler(catalog *services.CatalogService, logger *zap.Logger) *GameHandler {
	return &GameHandler{catalog: catalog, logger: logger}
}

// GameRouter registers game routes. Reads are public; every mutation goes
// through requireAdmin.
func GameRouter(r chi.Router, handler *GameHandler, requireAdmin func(http.Handler) http.Handler) {
	r.Get("/", handler.ListGames)
	r.With(requireAdmin).Post("/", handler.CreateGame)
	r.Route("/{gameID}", func(r chi.Router) {
		r.Get("/", handler.GetGame)
		r.With(requireAdmin).Put("/", handler.UpdateGame)
		r.With(requireAdmin).Patch("/", handler.UpdateGame)
		r.With(requireAdmin).Delete("/", handler.DeleteGame)
		r.With(requireAdmin).Post("/image", handler.UploadImage)
	})
}

func (h *GameHandler) ListGames(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	page, err := h.catalog.ParsePage(query.Get("skip"), query.Get("limit"))
	if err != nil {
		writeServiceError(w, r, h.logger, err, "")
		return
	}

	list, err := h.catalog.ListGames(r.Context(), page)
	if err != nil {
		writeServiceError(w, r, h.logger, err, "")
		return
	}
	writeJSON(w, http.StatusOK, list)
}

func (h *GameHandler) GetGame(w http.ResponseWriter, r *http.Request) {
	id, ok := parseGameID(r)
	if !ok {
		writeError(w, http.StatusNotFound, CodeNotFound, gameNotFoundMsg)
		return
	}

	game, err := h.catalog.GetGame(r.Context(), id)
	if err != nil {
		writeServiceError(w, r, h.logger, err, gameNotFoundMsg)
		return
	}
	writeJSON(w, http.StatusOK, game)
}

func (h *GameHandler) CreateGame(w http.ResponseWriter, r *http.Request) {
	var req GameRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, CodeInvalidRequest, err.Error())
		return
	}

	created, err := h.catalog.CreateGame(r.Context(), req.Patch())
	if err != nil {
		writeServiceError(w, r, h.logger, err, "")
		return
	}
	h.logger.Info("game created", zap.Int("game_id", created.ID), zap.Int("by", actorID(r)))
	writeJSON(w, http.StatusCreated, created)
}

// UpdateGame serves both PUT and PATCH; both only touch the fields present
// in the body.
func (h *GameHandler) UpdateGame(w http.ResponseWriter, r *http.Request) {
	id, ok := parseGameID(r)
	if !ok {
		writeError(w, http.StatusNotFound, CodeNotFound, gameNotFoundMsg)
		return
	}

	var req GameRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, CodeInvalidRequest, err.Error())
		return
	}

	updated, err := h.catalog.UpdateGame(r.Context(), id, req.Patch())
	if err != nil {
		writeServiceError(w, r, h.logger, err, gameNotFoundMsg)
		return
	}
	h.logger.Info("game updated", zap.Int("game_id", id), zap.Int("by", actorID(r)))
	writeJSON(w, http.StatusOK, updated)
}

func (h *GameHandler) DeleteGame(w http.ResponseWriter, r *http.Request) {
	id, ok := parseGameID(r)
	if !ok {
		writeError(w, http.StatusNotFound, CodeNotFound, gameNotFoundMsg)
		return
	}

	if err := h.catalog.DeleteGame(r.Context(), id); err != nil {
		writeServiceError(w, r, h.logger, err, gameNotFoundMsg)
		return
	}
	h.logger.Info("game deleted", zap.Int("game_id", id), zap.Int("by", actorID(r)))
	writeJSON(w, http.StatusOK, MessageResponse{Msg: "deleted"})
}

// UploadImage replaces the cover of a game with a multipart "image" file.
func (h *GameHandler) UploadImage(w http.ResponseWriter, r *http.Request) {
	if !h.catalog.ImagesEnabled() {
		writeServiceError(w, r, h.logger, services.ErrStorageDisabled, "")
		return
	}
	id, ok := parseGameID(r)
	if !ok {
		writeError(w, http.StatusNotFound, CodeNotFound, gameNotFoundMsg)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxImageBytes+(1<<20))
	if err := r.ParseMultipartForm(maxImageBytes); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			writeError(w, http.StatusRequestEntityTooLarge, CodeInvalidRequest, "image is too large")
			return
		}
		writeError(w, http.StatusBadRequest, CodeInvalidRequest, "invalid multipart form")
		return
	}
	defer func() {
		_ = r.MultipartForm.RemoveAll()
	}()

	file, _, err := r.FormFile(formFieldImage)
	if err != nil {
		writeError(w, http.StatusBadRequest, CodeInvalidRequest, "image file is required")
		return
	}
	defer file.Close()

	updated, err := h.catalog.SetGameImage(r.Context(), id, file)
	if err != nil {
		writeServiceError(w, r, h.logger, err, gameNotFoundMsg)
		return
	}
	h.logger.Info("game image updated", zap.Int("game_id", id), zap.Int("by", actorID(r)))
	writeJSON(w, http.StatusOK, updated)
}

// GameRequest is the create and update body. title and release_year are
// accepted as aliases of name and year; the canonical key wins when both
// are present.
type GameRequest struct {
	types.GamePatch
	Title       types.Optional[string] `json:"title"`
	ReleaseYear types.Optional[int]    `json:"release_year"`
}

// Patch folds the aliases into a GamePatch.
func (g GameRequest) Patch() types.GamePatch {
	patch := g.GamePatch
	if !patch.Name.Set && g.Title.Set {
		patch.Name = g.Title
	}
	if !patch.Year.Set && g.ReleaseYear.Set {
		patch.Year = g.ReleaseYear
	}
	return patch
}

func actorID(r *http.Request) int {
	user, _ := userFromContext(r.Context())
	return user.ID
}
