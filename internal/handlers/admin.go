package handlers

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/gamevault/apiserver/internal/bootstrap"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// CatalogSeeder loads the configured seed file into the catalog.
type CatalogSeeder interface {
	Seed(ctx context.Context) (int, error)
}

// AdminHandler serves maintenance endpoints for administrators.
type AdminHandler struct {
	seeder CatalogSeeder
	logger *zap.Logger
}

func NewAdminHandler(seeder CatalogSeeder, logger *zap.Logger) *AdminHandler {
	return &AdminHandler{seeder: seeder, logger: logger}
}

// AdminRouter registers admin routes, all behind requireAdmin.
func AdminRouter(r chi.Router, handler *AdminHandler, requireAdmin func(http.Handler) http.Handler) {
	r.With(requireAdmin).Post("/load-games", handler.LoadGames)
}

func (h *AdminHandler) LoadGames(w http.ResponseWriter, r *http.Request) {
	added, err := h.seeder.Seed(r.Context())
	if err != nil {
		if errors.Is(err, bootstrap.ErrNoSeedSource) {
			writeError(w, http.StatusNotImplemented, CodeNotImplemented, "no seed file configured")
			return
		}
		writeServiceError(w, r, h.logger, err, "")
		return
	}
	h.logger.Info("catalog loaded from seed file",
		zap.Int("added", added),
		zap.Int("user_id", actorID(r)),
	)
	writeJSON(w, http.StatusOK, MessageResponse{Msg: fmt.Sprintf("%d games added", added)})
}
