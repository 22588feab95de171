package handlers

import (
	"net/http"

	"github.com/gamevault/apiserver/internal/auth"
	"github.com/gamevault/apiserver/internal/services"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// AuthHandler provides registration, login and token-gated middleware.
type AuthHandler struct {
	userService *services.UserService
	authService *services.AuthService
	logger      *zap.Logger
}

// NewAuthHandler constructs an AuthHandler with the provided dependencies.
func NewAuthHandler(userService *services.UserService, authService *services.AuthService, logger *zap.Logger) *AuthHandler {
	return &AuthHandler{
		userService: userService,
		authService: authService,
		logger:      logger,
	}
}

// AuthRouter registers auth routes on the given router.
func AuthRouter(r chi.Router, handler *AuthHandler) {
	r.Post("/register", handler.Register)
	r.Post("/login", handler.Login)
	r.With(handler.RequireAuth).Get("/me", handler.Me)
}

// RequireAuth rejects requests without a valid bearer token and stores the
// caller in the request context.
func (h *AuthHandler) RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, err := auth.BearerToken(r.Header.Get("Authorization"))
		if err != nil {
			writeServiceError(w, r, h.logger, err, "")
			return
		}
		user, err := h.authService.Authenticate(r.Context(), token)
		if err != nil {
			writeServiceError(w, r, h.logger, err, "")
			return
		}
		next.ServeHTTP(w, r.WithContext(withUser(r.Context(), user)))
	})
}

// RequireAdmin rejects requests whose bearer token does not belong to an
// administrator.
func (h *AuthHandler) RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, err := auth.BearerToken(r.Header.Get("Authorization"))
		if err != nil {
			writeServiceError(w, r, h.logger, err, "")
			return
		}
		user, err := h.authService.RequireAdmin(r.Context(), token)
		if err != nil {
			writeServiceError(w, r, h.logger, err, "")
			return
		}
		next.ServeHTTP(w, r.WithContext(withUser(r.Context(), user)))
	})
}

// Register creates a regular account.
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req CredentialsRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, CodeInvalidRequest, err.Error())
		return
	}

	user, err := h.userService.Register(r.Context(), req.Username, req.secret())
	if err != nil {
		writeServiceError(w, r, h.logger, err, "")
		return
	}

	h.logger.Info("user registered", zap.Int("user_id", user.ID), zap.String("username", user.Username))
	writeJSON(w, http.StatusCreated, MessageResponse{Msg: "user created"})
}

// Login verifies credentials and returns a bearer token.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req CredentialsRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, CodeInvalidRequest, err.Error())
		return
	}

	token, err := h.authService.Login(r.Context(), req.Username, req.secret())
	if err != nil {
		writeServiceError(w, r, h.logger, err, "")
		return
	}

	writeJSON(w, http.StatusOK, TokenResponse{AccessToken: token})
}

// Me returns the authenticated caller.
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	user, ok := userFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, CodeUnauthorized, "invalid token")
		return
	}
	writeJSON(w, http.StatusOK, ProfileResponse{
		ID:       user.ID,
		Username: user.Username,
		IsAdmin:  user.IsAdmin,
	})
}

// CredentialsRequest is the register and login body. password is accepted
// as an alias of credential.
type CredentialsRequest struct {
	Username   string `json:"username"`
	Credential string `json:"credential"`
	Password   string `json:"password"`
}

func (c CredentialsRequest) secret() string {
	if c.Credential != "" {
		return c.Credential
	}
	return c.Password
}

type TokenResponse struct {
	AccessToken string `json:"access_token"`
}

type ProfileResponse struct {
	ID       int    `json:"id"`
	Username string `json:"username"`
	IsAdmin  bool   `json:"is_admin"`
}

type MessageResponse struct {
	Msg string `json:"msg"`
}
