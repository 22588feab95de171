package services

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"testing"
	"time"

	"github.com/gamevault/apiserver/internal/auth"
	"github.com/gamevault/apiserver/internal/clock"
	"github.com/gamevault/apiserver/internal/imaging"
	"github.com/gamevault/apiserver/internal/store/memory"
	"github.com/gamevault/apiserver/types"
	"github.com/stretchr/testify/suite"
	"golang.org/x/crypto/bcrypt"
)

type recordingPublisher struct {
	events []types.CatalogEvent
	err    error
}

func (p *recordingPublisher) PublishCatalogEvent(ctx context.Context, event types.CatalogEvent) error {
	p.events = append(p.events, event)
	return p.err
}

type fakeCovers struct {
	saved   map[string][]byte
	removed []string
	n       int
}

func (c *fakeCovers) Save(ctx context.Context, gameID int, data []byte, ext, contentType string) (string, error) {
	c.n++
	url := fmt.Sprintf("https://cdn.test/games/%d/%d.%s", gameID, c.n, ext)
	c.saved[url] = data
	return url, nil
}

func (c *fakeCovers) Remove(ctx context.Context, url string) error {
	c.removed = append(c.removed, url)
	return nil
}

type fakeProcessor struct{}

func (fakeProcessor) Process(r io.Reader) (*imaging.Image, error) {
	data, _ := io.ReadAll(r)
	if !bytes.HasPrefix(data, []byte("IMG")) {
		return nil, imaging.ErrUnsupportedFormat
	}
	return &imaging.Image{Data: data, MimeType: imaging.MimeTypePNG, Extension: "png"}, nil
}

// countingHasher records how many bcrypt comparisons a call performed.
type countingHasher struct {
	*auth.Hasher
	compares int
}

func (h *countingHasher) Verify(password, hash string) bool {
	h.compares++
	return h.Hasher.Verify(password, hash)
}

func (h *countingHasher) VerifyNothing(password string) {
	h.compares++
	h.Hasher.VerifyNothing(password)
}

type ServicesSuite struct {
	suite.Suite
	ctx     context.Context
	clock   *clock.MockClock
	store   *memory.Store
	users   *UserService
	auth    *AuthService
	catalog *CatalogService
	events  *recordingPublisher
	covers  *fakeCovers
}

func TestServicesSuite(t *testing.T) {
	suite.Run(t, new(ServicesSuite))
}

func (s *ServicesSuite) SetupTest() {
	s.ctx = context.Background()
	s.clock = clock.NewMock(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC))
	s.store = memory.New(s.clock)
	s.events = &recordingPublisher{}
	s.covers = &fakeCovers{saved: map[string][]byte{}}

	hasher := auth.NewHasher(bcrypt.MinCost)
	tokens := auth.NewTokenIssuer("test-secret", time.Hour, s.clock)
	s.users = NewUserService(s.store.Users(), hasher)
	s.auth = NewAuthService(s.store.Users(), hasher, tokens)
	s.catalog = NewCatalogService(s.store.Games(), CatalogOptions{
		DefaultLimit: 10,
		MaxLimit:     100,
		Events:       s.events,
		Covers:       s.covers,
		Images:       fakeProcessor{},
		Clock:        s.clock,
	})
}

func (s *ServicesSuite) createAdmin() string {
	_, err := s.users.CreateAdmin(s.ctx, "admin", "admin-pass")
	s.Require().NoError(err)
	token, err := s.auth.Login(s.ctx, "admin", "admin-pass")
	s.Require().NoError(err)
	return token
}

// Users and authentication

func (s *ServicesSuite) TestRegisterAndLogin() {
	user, err := s.users.Register(s.ctx, "  alice ", "wonderland")
	s.Require().NoError(err)
	s.Equal("alice", user.Username)
	s.False(user.IsAdmin)
	s.NotEqual("wonderland", user.PasswordHash)

	first, err := s.auth.Login(s.ctx, "alice", "wonderland")
	s.Require().NoError(err)
	second, err := s.auth.Login(s.ctx, "alice", "wonderland")
	s.Require().NoError(err)
	s.NotEqual(first, second)

	me, err := s.auth.Authenticate(s.ctx, first)
	s.Require().NoError(err)
	s.Equal(user.ID, me.ID)
}

func (s *ServicesSuite) TestRegisterValidation() {
	var verr *ValidationError

	_, err := s.users.Register(s.ctx, "   ", "pw")
	s.Require().ErrorAs(err, &verr)
	s.Equal(InvalidInput, verr.Kind)

	_, err = s.users.Register(s.ctx, "bob", "")
	s.ErrorAs(err, &verr)

	_, err = s.users.Register(s.ctx, "bob", string(bytes.Repeat([]byte("x"), 100)))
	s.ErrorAs(err, &verr)
}

func (s *ServicesSuite) TestRegisterDuplicate() {
	_, err := s.users.Register(s.ctx, "alice", "one")
	s.Require().NoError(err)

	_, err = s.users.Register(s.ctx, "alice", "two")
	s.ErrorIs(err, ErrUsernameTaken)

	var cerr *ConflictError
	s.ErrorAs(err, &cerr)
}

func (s *ServicesSuite) TestLoginFailuresAreIndistinguishable() {
	_, err := s.users.Register(s.ctx, "alice", "wonderland")
	s.Require().NoError(err)

	_, wrongPassword := s.auth.Login(s.ctx, "alice", "nope")
	_, unknownUser := s.auth.Login(s.ctx, "mallory", "nope")
	_, empty := s.auth.Login(s.ctx, "", "")

	s.ErrorIs(wrongPassword, auth.ErrInvalidCredentials)
	s.ErrorIs(unknownUser, auth.ErrInvalidCredentials)
	s.ErrorIs(empty, auth.ErrInvalidCredentials)
	s.Equal(wrongPassword.Error(), unknownUser.Error())
}

func (s *ServicesSuite) TestLoginAlwaysComparesCredentials() {
	_, err := s.users.Register(s.ctx, "alice", "wonderland")
	s.Require().NoError(err)

	hasher := &countingHasher{Hasher: auth.NewHasher(bcrypt.MinCost)}
	svc := NewAuthService(s.store.Users(), hasher, auth.NewTokenIssuer("test-secret", time.Hour, s.clock))

	cases := []struct {
		username   string
		credential string
	}{
		{"alice", ""},
		{"alice", "nope"},
		{"mallory", ""},
		{"", ""},
	}
	for _, tc := range cases {
		hasher.compares = 0
		_, err := svc.Login(s.ctx, tc.username, tc.credential)
		s.ErrorIs(err, auth.ErrInvalidCredentials, "%q/%q", tc.username, tc.credential)
		s.Equal(1, hasher.compares, "%q/%q", tc.username, tc.credential)
	}
}

func (s *ServicesSuite) TestRequireAdmin() {
	adminToken := s.createAdmin()
	_, err := s.users.Register(s.ctx, "alice", "wonderland")
	s.Require().NoError(err)
	aliceToken, err := s.auth.Login(s.ctx, "alice", "wonderland")
	s.Require().NoError(err)

	admin, err := s.auth.RequireAdmin(s.ctx, adminToken)
	s.Require().NoError(err)
	s.True(admin.IsAdmin)

	_, err = s.auth.RequireAdmin(s.ctx, aliceToken)
	s.ErrorIs(err, ErrAdminRequired)

	_, err = s.auth.RequireAdmin(s.ctx, "garbage")
	s.ErrorIs(err, auth.ErrTokenMalformed)
}

func (s *ServicesSuite) TestRequireAdminExpiredToken() {
	token := s.createAdmin()
	s.clock.Advance(time.Hour + time.Second)

	_, err := s.auth.RequireAdmin(s.ctx, token)
	s.ErrorIs(err, auth.ErrTokenExpired)
}

func (s *ServicesSuite) TestRequireAdminForDeletedSubject() {
	tokens := auth.NewTokenIssuer("test-secret", time.Hour, s.clock)
	token, err := tokens.IssueToken(99)
	s.Require().NoError(err)

	_, err = s.auth.RequireAdmin(s.ctx, token)
	s.ErrorIs(err, ErrAdminRequired)

	_, err = s.auth.Authenticate(s.ctx, token)
	s.ErrorIs(err, auth.ErrTokenMalformed)
}

// Pagination

func (s *ServicesSuite) TestParsePage() {
	page, err := s.catalog.ParsePage("", "")
	s.Require().NoError(err)
	s.Equal(Page{Skip: 0, Limit: 10}, page)

	page, err = s.catalog.ParsePage("5", "1000")
	s.Require().NoError(err)
	s.Equal(Page{Skip: 5, Limit: 100}, page)

	for _, tc := range [][2]string{{"abc", ""}, {"-1", ""}, {"", "0"}, {"", "-1"}, {"", "ten"}} {
		_, err := s.catalog.ParsePage(tc[0], tc[1])
		var verr *ValidationError
		s.Require().ErrorAs(err, &verr, "skip=%q limit=%q", tc[0], tc[1])
		s.Equal(InvalidPagination, verr.Kind)
	}
}

// Catalog

func (s *ServicesSuite) TestCreateListGetDelete() {
	created, err := s.catalog.CreateGame(s.ctx, types.GamePatch{
		Name: types.Some("  Chrono Trigger "),
		Year: types.Some(1995),
	})
	s.Require().NoError(err)
	s.Equal(1, created.ID)
	s.Equal("Chrono Trigger", created.Name)
	s.Equal(1995, *created.Year)
	s.Nil(created.URL)

	_, err = s.catalog.CreateGame(s.ctx, types.GamePatch{Name: types.Some("Earthbound")})
	s.Require().NoError(err)

	list, err := s.catalog.ListGames(s.ctx, Page{Skip: 0, Limit: 1})
	s.Require().NoError(err)
	s.Equal(2, list.Total)
	s.Require().Len(list.Games, 1)
	s.Equal("Chrono Trigger", list.Games[0].Name)

	got, err := s.catalog.GetGame(s.ctx, created.ID)
	s.Require().NoError(err)
	s.Equal(created.Name, got.Name)

	s.Require().NoError(s.catalog.DeleteGame(s.ctx, created.ID))
	s.ErrorIs(s.catalog.DeleteGame(s.ctx, created.ID), ErrNotFound)
	_, err = s.catalog.GetGame(s.ctx, created.ID)
	s.ErrorIs(err, ErrNotFound)

	kinds := []string{}
	for _, e := range s.events.events {
		kinds = append(kinds, e.Type)
	}
	s.Equal([]string{"game.created", "game.created", "game.deleted"}, kinds)
	s.Nil(s.events.events[2].Game)
	s.Equal(s.clock.Now(), s.events.events[0].OccurredAt)
}

func (s *ServicesSuite) TestListEmptyCatalogReturnsEmptySlice() {
	list, err := s.catalog.ListGames(s.ctx, Page{Limit: 10})
	s.Require().NoError(err)
	s.Zero(list.Total)
	s.NotNil(list.Games)
}

func (s *ServicesSuite) TestCreateRequiresName() {
	var verr *ValidationError
	_, err := s.catalog.CreateGame(s.ctx, types.GamePatch{Year: types.Some(2000)})
	s.ErrorAs(err, &verr)
	_, err = s.catalog.CreateGame(s.ctx, types.GamePatch{Name: types.Some("   ")})
	s.ErrorAs(err, &verr)
	_, err = s.catalog.CreateGame(s.ctx, types.GamePatch{Name: types.Null[string]()})
	s.ErrorAs(err, &verr)
	s.Empty(s.events.events)
}

func (s *ServicesSuite) TestUpdateIsPartial() {
	created, err := s.catalog.CreateGame(s.ctx, types.GamePatch{
		Name:        types.Some("Halo"),
		Year:        types.Some(2001),
		Description: types.Some("Ring world"),
	})
	s.Require().NoError(err)

	updated, err := s.catalog.UpdateGame(s.ctx, created.ID, types.GamePatch{
		Year:        types.Some(2002),
		Description: types.Null[string](),
	})
	s.Require().NoError(err)
	s.Equal("Halo", updated.Name)
	s.Equal(2002, *updated.Year)
	s.Nil(updated.Description)

	_, err = s.catalog.UpdateGame(s.ctx, created.ID, types.GamePatch{Name: types.Some("")})
	var verr *ValidationError
	s.ErrorAs(err, &verr)

	_, err = s.catalog.UpdateGame(s.ctx, 404, types.GamePatch{Name: types.Some("x")})
	s.ErrorIs(err, ErrNotFound)
}

func (s *ServicesSuite) TestPublishFailureDoesNotFailMutation() {
	s.events.err = errors.New("broker down")

	_, err := s.catalog.CreateGame(s.ctx, types.GamePatch{Name: types.Some("Myst")})
	s.NoError(err)
	s.Len(s.events.events, 1)
}

func (s *ServicesSuite) TestSetGameImageReplacesPreviousCover() {
	created, err := s.catalog.CreateGame(s.ctx, types.GamePatch{Name: types.Some("Okami")})
	s.Require().NoError(err)

	first, err := s.catalog.SetGameImage(s.ctx, created.ID, bytes.NewReader([]byte("IMG one")))
	s.Require().NoError(err)
	s.Require().NotNil(first.Image)

	second, err := s.catalog.SetGameImage(s.ctx, created.ID, bytes.NewReader([]byte("IMG two")))
	s.Require().NoError(err)
	s.NotEqual(*first.Image, *second.Image)
	s.Equal([]string{*first.Image}, s.covers.removed)
}

func (s *ServicesSuite) TestSetGameImageErrors() {
	_, err := s.catalog.SetGameImage(s.ctx, 7, bytes.NewReader([]byte("IMG")))
	s.ErrorIs(err, ErrNotFound)

	created, err := s.catalog.CreateGame(s.ctx, types.GamePatch{Name: types.Some("Okami")})
	s.Require().NoError(err)
	_, err = s.catalog.SetGameImage(s.ctx, created.ID, bytes.NewReader([]byte("not an image")))
	var verr *ValidationError
	s.ErrorAs(err, &verr)

	noStorage := NewCatalogService(s.store.Games(), CatalogOptions{})
	s.False(noStorage.ImagesEnabled())
	_, err = noStorage.SetGameImage(s.ctx, created.ID, bytes.NewReader([]byte("IMG")))
	s.ErrorIs(err, ErrStorageDisabled)
}
