package server

import (
	"bytes"
	"context"
	"encoding/json"
	"image"
	"image/color"
	"image/png"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/gamevault/apiserver/config"
	"github.com/stretchr/testify/suite"
	"go.uber.org/zap"
)

type APISuite struct {
	suite.Suite
	server *Server
	http   *httptest.Server
}

func TestAPISuite(t *testing.T) {
	suite.Run(t, new(APISuite))
}

func testConfig() config.Config {
	return config.Config{
		ServerPort:  0,
		CORSOrigins: []string{"*"},
		Database:    config.DatabaseConfig{Backend: config.BackendMemory},
		Auth:        config.AuthConfig{JWTSecret: "test-secret", TokenTTL: time.Hour},
		Admin:       config.AdminConfig{Username: "admin", Password: "admin-pass"},
		Catalog:     config.CatalogConfig{DefaultLimit: 10, MaxLimit: 100},
	}
}

func (s *APISuite) SetupTest() {
	srv, err := New(context.Background(), testConfig(), zap.NewNop())
	s.Require().NoError(err)
	s.server = srv
	s.http = httptest.NewServer(srv.Router())
}

func (s *APISuite) TearDownTest() {
	s.http.Close()
	s.Require().NoError(s.server.Shutdown(context.Background()))
}

func (s *APISuite) do(method, path, token string, body any) (int, map[string]any) {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		s.Require().NoError(err)
		reader = bytes.NewReader(data)
	}
	req, err := http.NewRequest(method, s.http.URL+path, reader)
	s.Require().NoError(err)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	return s.send(req)
}

func (s *APISuite) send(req *http.Request) (int, map[string]any) {
	resp, err := http.DefaultClient.Do(req)
	s.Require().NoError(err)
	defer resp.Body.Close()

	var out map[string]any
	s.Require().NoError(json.NewDecoder(resp.Body).Decode(&out))
	return resp.StatusCode, out
}

func (s *APISuite) login(username, credential string) string {
	status, body := s.do(http.MethodPost, "/auth/login", "", map[string]string{
		"username":   username,
		"credential": credential,
	})
	s.Require().Equal(http.StatusOK, status, body)
	token, _ := body["access_token"].(string)
	s.Require().NotEmpty(token)
	return token
}

func (s *APISuite) TestEndToEndScenario() {
	status, body := s.do(http.MethodPost, "/auth/register", "", map[string]string{"username": "alice", "credential": "pw1"})
	s.Equal(http.StatusCreated, status, body)

	alice := s.login("alice", "pw1")

	status, body = s.do(http.MethodPost, "/games", alice, map[string]any{"name": "Chrono Trigger", "year": 1995})
	s.Equal(http.StatusForbidden, status)
	s.Equal("ADMIN_REQUIRED", body["code"])

	admin := s.login("admin", "admin-pass")

	status, body = s.do(http.MethodPost, "/games", admin, map[string]any{"name": "Chrono Trigger", "year": 1995})
	s.Require().Equal(http.StatusCreated, status, body)
	s.EqualValues(1, body["id"])

	status, body = s.do(http.MethodGet, "/games?limit=1", "", nil)
	s.Require().Equal(http.StatusOK, status)
	s.EqualValues(1, body["total"])
	games := body["games"].([]any)
	s.Require().Len(games, 1)
	game := games[0].(map[string]any)
	s.EqualValues(1, game["id"])
	s.Equal("Chrono Trigger", game["name"])
	s.EqualValues(1995, game["year"])
	s.Contains(game, "url")
	s.Nil(game["url"])

	status, body = s.do(http.MethodDelete, "/games/1", admin, nil)
	s.Equal(http.StatusOK, status)
	s.Equal("deleted", body["msg"])

	status, body = s.do(http.MethodGet, "/games", "", nil)
	s.Equal(http.StatusOK, status)
	s.EqualValues(0, body["total"])
	s.Equal([]any{}, body["games"])
}

func (s *APISuite) TestRegisterErrors() {
	status, body := s.do(http.MethodPost, "/auth/register", "", map[string]string{"username": "bob"})
	s.Equal(http.StatusBadRequest, status)
	s.Equal("INVALID_REQUEST", body["code"])

	status, _ = s.do(http.MethodPost, "/auth/register", "", map[string]string{"username": "bob", "password": "pw"})
	s.Equal(http.StatusCreated, status)

	status, body = s.do(http.MethodPost, "/auth/register", "", map[string]string{"username": "bob", "credential": "other"})
	s.Equal(http.StatusConflict, status)
	s.Equal("CONFLICT", body["code"])
}

func (s *APISuite) TestLoginFailuresLookAlike() {
	s.do(http.MethodPost, "/auth/register", "", map[string]string{"username": "alice", "credential": "pw1"})

	wrongStatus, wrongBody := s.do(http.MethodPost, "/auth/login", "", map[string]string{"username": "alice", "credential": "nope"})
	unknownStatus, unknownBody := s.do(http.MethodPost, "/auth/login", "", map[string]string{"username": "ghost", "credential": "nope"})

	s.Equal(http.StatusUnauthorized, wrongStatus)
	s.Equal(wrongStatus, unknownStatus)
	s.Equal(wrongBody, unknownBody)
	s.Equal("INVALID_CREDENTIALS", wrongBody["code"])
}

func (s *APISuite) TestMe() {
	admin := s.login("admin", "admin-pass")

	status, body := s.do(http.MethodGet, "/auth/me", admin, nil)
	s.Require().Equal(http.StatusOK, status)
	s.Equal("admin", body["username"])
	s.Equal(true, body["is_admin"])
	s.NotContains(body, "password_hash")

	status, body = s.do(http.MethodGet, "/auth/me", "", nil)
	s.Equal(http.StatusUnauthorized, status)
	s.Equal("UNAUTHORIZED", body["code"])
}

func (s *APISuite) TestMutationsRequireToken() {
	status, body := s.do(http.MethodPost, "/games", "", map[string]any{"name": "x"})
	s.Equal(http.StatusUnauthorized, status)
	s.Equal("UNAUTHORIZED", body["code"])

	status, _ = s.do(http.MethodDelete, "/games/1", "not-a-jwt", nil)
	s.Equal(http.StatusUnauthorized, status)
}

func (s *APISuite) TestPartialUpdate() {
	admin := s.login("admin", "admin-pass")
	_, created := s.do(http.MethodPost, "/games", admin, map[string]any{
		"title":        "Metroid",
		"release_year": 1986,
		"description":  "Space",
	})
	s.Equal("Metroid", created["name"])

	status, body := s.do(http.MethodPatch, "/games/1", admin, map[string]any{"year": 2030})
	s.Require().Equal(http.StatusOK, status, body)
	s.Equal("Metroid", body["name"])
	s.EqualValues(2030, body["year"])
	s.Equal("Space", body["description"])

	status, body = s.do(http.MethodPut, "/games/1", admin, map[string]any{"description": nil})
	s.Require().Equal(http.StatusOK, status)
	s.Nil(body["description"])
	s.Equal("Metroid", body["name"])

	status, body = s.do(http.MethodPut, "/games/1", admin, map[string]any{"name": ""})
	s.Equal(http.StatusBadRequest, status)
	s.Equal("INVALID_REQUEST", body["code"])

	status, _ = s.do(http.MethodPatch, "/games/99", admin, map[string]any{"year": 1})
	s.Equal(http.StatusNotFound, status)
}

func (s *APISuite) TestNotFound() {
	admin := s.login("admin", "admin-pass")

	for _, path := range []string{"/games/42", "/games/abc", "/games/0"} {
		status, body := s.do(http.MethodGet, path, "", nil)
		s.Equal(http.StatusNotFound, status, path)
		s.Equal("NOT_FOUND", body["code"], path)
	}

	status, _ := s.do(http.MethodDelete, "/games/42", admin, nil)
	s.Equal(http.StatusNotFound, status)
}

func (s *APISuite) TestPagination() {
	admin := s.login("admin", "admin-pass")
	for _, name := range []string{"A", "B", "C"} {
		status, _ := s.do(http.MethodPost, "/games", admin, map[string]any{"name": name})
		s.Require().Equal(http.StatusCreated, status)
	}

	status, body := s.do(http.MethodGet, "/games?skip=1&limit=1", "", nil)
	s.Require().Equal(http.StatusOK, status)
	s.EqualValues(3, body["total"])
	s.Equal("B", body["games"].([]any)[0].(map[string]any)["name"])

	status, body = s.do(http.MethodGet, "/games?limit=1000", "", nil)
	s.Equal(http.StatusOK, status)
	s.Len(body["games"], 3)

	for _, query := range []string{"limit=0", "limit=-1", "skip=-1", "skip=abc", "limit=ten"} {
		status, body := s.do(http.MethodGet, "/games?"+query, "", nil)
		s.Equal(http.StatusBadRequest, status, query)
		s.Equal("INVALID_PAGINATION", body["code"], query)
	}
}

func (s *APISuite) TestExpiredTokenIsRejected() {
	cfg := testConfig()
	cfg.Auth.TokenTTL = time.Nanosecond
	srv, err := New(context.Background(), cfg, zap.NewNop())
	s.Require().NoError(err)
	ts := httptest.NewServer(srv.Router())
	defer ts.Close()

	loginBody, _ := json.Marshal(map[string]string{"username": "admin", "credential": "admin-pass"})
	resp, err := http.Post(ts.URL+"/auth/login", "application/json", bytes.NewReader(loginBody))
	s.Require().NoError(err)
	var login map[string]string
	s.Require().NoError(json.NewDecoder(resp.Body).Decode(&login))
	resp.Body.Close()

	time.Sleep(1100 * time.Millisecond)

	req, _ := http.NewRequest(http.MethodGet, ts.URL+"/auth/me", nil)
	req.Header.Set("Authorization", "Bearer "+login["access_token"])
	status, body := s.send(req)
	s.Equal(http.StatusUnauthorized, status)
	s.Equal("TOKEN_EXPIRED", body["code"])
}

func (s *APISuite) TestImageUploadWithoutStorage() {
	admin := s.login("admin", "admin-pass")
	s.do(http.MethodPost, "/games", admin, map[string]any{"name": "Okami"})

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("image", "cover.png")
	s.Require().NoError(err)
	img := image.NewRGBA(image.Rect(0, 0, 4, 4))
	img.Set(0, 0, color.White)
	s.Require().NoError(png.Encode(part, img))
	s.Require().NoError(mw.Close())

	req, _ := http.NewRequest(http.MethodPost, s.http.URL+"/games/1/image", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+admin)
	status, body := s.send(req)

	s.Equal(http.StatusNotImplemented, status)
	s.Equal("NOT_IMPLEMENTED", body["code"])
}

func (s *APISuite) TestLoadGamesWithoutSeedFile() {
	status, body := s.do(http.MethodPost, "/admin/load-games", "", nil)
	s.Equal(http.StatusUnauthorized, status)

	s.do(http.MethodPost, "/auth/register", "", map[string]string{"username": "alice", "credential": "pw1"})
	status, body = s.do(http.MethodPost, "/admin/load-games", s.login("alice", "pw1"), nil)
	s.Equal(http.StatusForbidden, status)
	s.Equal("ADMIN_REQUIRED", body["code"])

	status, body = s.do(http.MethodPost, "/admin/load-games", s.login("admin", "admin-pass"), nil)
	s.Equal(http.StatusNotImplemented, status)
	s.Equal("NOT_IMPLEMENTED", body["code"])
}

func (s *APISuite) TestLoadGamesFromSeedFile() {
	// The file does not exist at startup, so the boot-time seed adds nothing.
	seedFile := filepath.Join(s.T().TempDir(), "games.json")
	cfg := testConfig()
	cfg.Catalog.SeedFile = seedFile
	srv, err := New(context.Background(), cfg, zap.NewNop())
	s.Require().NoError(err)
	defer func() {
		s.NoError(srv.Shutdown(context.Background()))
	}()
	s.http.Close()
	s.http = httptest.NewServer(srv.Router())

	admin := s.login("admin", "admin-pass")
	status, body := s.do(http.MethodPost, "/admin/load-games", admin, nil)
	s.Equal(http.StatusInternalServerError, status)
	s.Equal("INTERNAL_ERROR", body["code"])

	s.Require().NoError(os.WriteFile(seedFile, []byte(`[
		{"name": "Chrono Trigger", "year": 1995},
		{"name": ""},
		{"name": "chrono trigger"},
		{"name": "Earthbound", "year": 1994}
	]`), 0o600))

	status, body = s.do(http.MethodPost, "/admin/load-games", admin, nil)
	s.Require().Equal(http.StatusOK, status, body)
	s.Equal("2 games added", body["msg"])

	status, body = s.do(http.MethodPost, "/admin/load-games", admin, nil)
	s.Require().Equal(http.StatusOK, status, body)
	s.Equal("0 games added", body["msg"])

	status, body = s.do(http.MethodGet, "/games", "", nil)
	s.Require().Equal(http.StatusOK, status)
	s.Equal(float64(2), body["total"])
}

func (s *APISuite) TestHealth() {
	for _, path := range []string{"/healthz", "/health"} {
		status, body := s.do(http.MethodGet, path, "", nil)
		s.Equal(http.StatusOK, status)
		s.Equal("ok", body["status"])
	}
}

func (s *APISuite) TestInvalidConfigurationIsRejected() {
	cfg := testConfig()
	cfg.Auth.JWTSecret = ""

	_, err := New(context.Background(), cfg, zap.NewNop())
	s.Error(err)
}
