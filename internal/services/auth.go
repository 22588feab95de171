package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/gamevault/apiserver/internal/auth"
	"github.com/gamevault/apiserver/internal/store"
	"github.com/gamevault/apiserver/types"
)

// TokenIssuer mints and validates bearer tokens.
type TokenIssuer interface {
	IssueToken(userID int) (string, error)
	ValidateToken(token string) (int, error)
}

// AuthService exchanges credentials for tokens and resolves tokens back to
// users. It is the only gate in front of admin operations.
type AuthService struct {
	users  UserRepository
	hasher PasswordHasher
	tokens TokenIssuer
}

func NewAuthService(users UserRepository, hasher PasswordHasher, tokens TokenIssuer) *AuthService {
	return &AuthService{users: users, hasher: hasher, tokens: tokens}
}

// Login returns a fresh token for valid credentials. Unknown usernames and
// wrong credentials are indistinguishable to the caller.
func (s *AuthService) Login(ctx context.Context, username, credential string) (string, error) {
	username = strings.TrimSpace(username)

	user, err := s.users.GetByUsername(ctx, username)
	if err != nil {
		if !errors.Is(err, store.ErrNotFound) {
			return "", fmt.Errorf("load user: %w", err)
		}
		s.hasher.VerifyNothing(credential)
		return "", auth.ErrInvalidCredentials
	}
	if !s.hasher.Verify(credential, user.PasswordHash) {
		return "", auth.ErrInvalidCredentials
	}

	token, err := s.tokens.IssueToken(user.ID)
	if err != nil {
		return "", fmt.Errorf("issue token: %w", err)
	}
	return token, nil
}

// Authenticate resolves a token to the user it was issued for.
func (s *AuthService) Authenticate(ctx context.Context, token string) (types.User, error) {
	userID, err := s.tokens.ValidateToken(token)
	if err != nil {
		return types.User{}, err
	}
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return types.User{}, &auth.Error{Reason: auth.ReasonMalformed, Err: errors.New("subject no longer exists")}
		}
		return types.User{}, fmt.Errorf("load user: %w", err)
	}
	return user, nil
}

// RequireAdmin resolves a token and checks the admin flag. A valid token
// whose user has disappeared is treated as lacking the privilege.
func (s *AuthService) RequireAdmin(ctx context.Context, token string) (types.User, error) {
	userID, err := s.tokens.ValidateToken(token)
	if err != nil {
		return types.User{}, err
	}
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return types.User{}, ErrAdminRequired
		}
		return types.User{}, fmt.Errorf("load user: %w", err)
	}
	if !user.IsAdmin {
		return types.User{}, ErrAdminRequired
	}
	return user, nil
}
