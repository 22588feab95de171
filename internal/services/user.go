package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/gamevault/apiserver/internal/auth"
	"github.com/gamevault/apiserver/internal/store"
	"github.com/gamevault/apiserver/types"
)

const maxUsernameLength = 80

// UserRepository defines persistence operations for users.
type UserRepository interface {
	GetByID(ctx context.Context, id int) (types.User, error)
	GetByUsername(ctx context.Context, username string) (types.User, error)
	Create(ctx context.Context, user types.User) (types.User, error)
	HasAdmin(ctx context.Context) (bool, error)
}

// PasswordHasher hashes and verifies credentials.
type PasswordHasher interface {
	Hash(password string) (string, error)
	Verify(password, hash string) bool
	VerifyNothing(password string)
}

// UserService encapsulates user use-cases.
type UserService struct {
	repo   UserRepository
	hasher PasswordHasher
}

func NewUserService(repo UserRepository, hasher PasswordHasher) *UserService {
	return &UserService{repo: repo, hasher: hasher}
}

func (s *UserService) GetByID(ctx context.Context, id int) (types.User, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *UserService) GetByUsername(ctx context.Context, username string) (types.User, error) {
	return s.repo.GetByUsername(ctx, username)
}

// HasAdmin reports whether any administrator account exists.
func (s *UserService) HasAdmin(ctx context.Context) (bool, error) {
	return s.repo.HasAdmin(ctx)
}

// Register creates a regular account.
func (s *UserService) Register(ctx context.Context, username, credential string) (types.User, error) {
	return s.create(ctx, username, credential, false)
}

// CreateAdmin creates an administrator account. It is only reachable from
// bootstrap and the CLI.
func (s *UserService) CreateAdmin(ctx context.Context, username, credential string) (types.User, error) {
	return s.create(ctx, username, credential, true)
}

func (s *UserService) create(ctx context.Context, username, credential string, isAdmin bool) (types.User, error) {
	username = strings.TrimSpace(username)
	if username == "" || credential == "" {
		return types.User{}, invalidInput("username and credential are required")
	}
	if utf8.RuneCountInString(username) > maxUsernameLength {
		return types.User{}, invalidInput(fmt.Sprintf("username must be at most %d characters", maxUsernameLength))
	}

	hash, err := s.hasher.Hash(credential)
	if err != nil {
		if errors.Is(err, auth.ErrPasswordTooLong) {
			return types.User{}, invalidInput("credential is too long")
		}
		return types.User{}, fmt.Errorf("hash credential: %w", err)
	}

	user, err := s.repo.Create(ctx, types.User{
		Username:     username,
		IsAdmin:      isAdmin,
		PasswordHash: hash,
	})
	if err != nil {
		if errors.Is(err, store.ErrConflict) {
			return types.User{}, ErrUsernameTaken
		}
		return types.User{}, fmt.Errorf("create user: %w", err)
	}
	return user, nil
}
