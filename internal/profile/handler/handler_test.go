package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/suite"

	"gatehouse/internal/auth/legacytoken"
	authmodels "gatehouse/internal/auth/models"
	"gatehouse/internal/auth/resolver"
	userstore "gatehouse/internal/auth/store/user"
	"gatehouse/internal/authz"
	"gatehouse/internal/profile/models"
	"gatehouse/internal/profile/service"
	id "gatehouse/pkg/domain"
)

type ProfileHandlerSuite struct {
	suite.Suite
	users  *userstore.InMemoryUserStore
	issuer *legacytoken.Issuer
	router chi.Router
}

func TestProfileHandlerSuite(t *testing.T) {
	suite.Run(t, new(ProfileHandlerSuite))
}

func (s *ProfileHandlerSuite) SetupTest() {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	s.users = userstore.New()
	s.issuer = legacytoken.NewIssuer("profile-test-signing-key-0123456", 0)
	guard := authz.NewGuard(resolver.NewLegacyCookieResolver(s.issuer), authz.WithLogger(logger))

	h := New(service.New(s.users, nil, logger), guard, logger, false)
	s.router = chi.NewRouter()
	h.Register(s.router, Routes{
		Protected: []func(http.Handler) http.Handler{guard.Authenticated()},
		Directory: []func(http.Handler) http.Handler{guard.Role(authmodels.RoleAdmin, authmodels.RoleModerator)},
	})
}

func (s *ProfileHandlerSuite) addUser(email string, role authmodels.Role, created time.Time) (*authmodels.User, *http.Cookie) {
	u := &authmodels.User{
		ID: id.NewUserID(), Email: email, Name: "User " + email, PasswordHash: "hash",
		Role: role, CreatedAt: created, UpdatedAt: created,
	}
	s.Require().NoError(s.users.Create(context.Background(), u))
	token, _, err := s.issuer.Issue(context.Background(), u.Identity())
	s.Require().NoError(err)
	return u, &http.Cookie{Name: legacytoken.CookieName, Value: token}
}

func (s *ProfileHandlerSuite) do(method, target string, body any, cookie *http.Cookie) *httptest.ResponseRecorder {
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		s.Require().NoError(err)
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, target, reader)
	req.Header.Set("Content-Type", "application/json")
	if cookie != nil {
		req.AddCookie(cookie)
	}
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	return rec
}

func (s *ProfileHandlerSuite) TestGetProfile() {
	u, cookie := s.addUser("me@example.com", authmodels.RoleUser, time.Now())

	rec := s.do(http.MethodGet, "/api/protected/profile", nil, cookie)
	s.Require().Equal(http.StatusOK, rec.Code)
	var resp models.ProfileResponse
	s.Require().NoError(json.NewDecoder(rec.Body).Decode(&resp))
	s.True(resp.Success)
	s.Equal(u.ID, resp.Data.ID)
	s.NotContains(rec.Body.String(), "hash")

	rec = s.do(http.MethodGet, "/api/protected/profile", nil, nil)
	s.Equal(http.StatusUnauthorized, rec.Code)
}

func (s *ProfileHandlerSuite) TestUpdateProfile() {
	_, cookie := s.addUser("edit@example.com", authmodels.RoleUser, time.Now())

	rec := s.do(http.MethodPut, "/api/protected/profile", map[string]string{"name": "Grace Hopper", "role": "ADMIN"}, cookie)
	s.Require().Equal(http.StatusOK, rec.Code)
	var resp models.UpdateResponse
	s.Require().NoError(json.NewDecoder(rec.Body).Decode(&resp))
	s.Equal("Grace Hopper", resp.Data.Name)
	s.Equal(authmodels.RoleUser, resp.Data.Role)

	rec = s.do(http.MethodPut, "/api/protected/profile", map[string]string{"image": "not a url"}, cookie)
	s.Equal(http.StatusBadRequest, rec.Code)
}

func (s *ProfileHandlerSuite) TestDelete() {
	s.Run("owner deletes self and cookie is cleared", func() {
		u, cookie := s.addUser("self@example.com", authmodels.RoleUser, time.Now())
		rec := s.do(http.MethodDelete, "/api/protected/profile", nil, cookie)
		s.Require().Equal(http.StatusOK, rec.Code)
		s.Contains(rec.Header().Get("Set-Cookie"), legacytoken.CookieName+"=")
		_, err := s.users.FindByID(context.Background(), u.ID)
		s.Error(err)
	})

	s.Run("other user is forbidden", func() {
		victim, _ := s.addUser("victim@example.com", authmodels.RoleUser, time.Now())
		_, cookie := s.addUser("intruder@example.com", authmodels.RoleUser, time.Now())
		rec := s.do(http.MethodDelete, "/api/protected/profile?userId="+victim.ID.String(), nil, cookie)
		s.Equal(http.StatusForbidden, rec.Code)
	})

	s.Run("admin deletes another user", func() {
		victim, _ := s.addUser("removed@example.com", authmodels.RoleUser, time.Now())
		_, cookie := s.addUser("admin@example.com", authmodels.RoleAdmin, time.Now())
		rec := s.do(http.MethodDelete, "/api/protected/profile?userId="+victim.ID.String(), nil, cookie)
		s.Require().Equal(http.StatusOK, rec.Code)
		s.Empty(rec.Header().Get("Set-Cookie"))

		rec = s.do(http.MethodDelete, "/api/protected/profile?userId="+victim.ID.String(), nil, cookie)
		s.Equal(http.StatusNotFound, rec.Code)
	})

	s.Run("bad id and anonymous", func() {
		_, cookie := s.addUser("badid@example.com", authmodels.RoleAdmin, time.Now())
		rec := s.do(http.MethodDelete, "/api/protected/profile?userId=nope", nil, cookie)
		s.Equal(http.StatusBadRequest, rec.Code)

		rec = s.do(http.MethodDelete, "/api/protected/profile", nil, nil)
		s.Equal(http.StatusUnauthorized, rec.Code)
	})
}

func (s *ProfileHandlerSuite) TestDirectory() {
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	_, admin := s.addUser("admin@example.com", authmodels.RoleAdmin, base)
	_, mod := s.addUser("mod@example.com", authmodels.RoleModerator, base.Add(time.Minute))
	_, plain := s.addUser("plain@example.com", authmodels.RoleUser, base.Add(2*time.Minute))
	for i := range 3 {
		s.addUser(fmt.Sprintf("member%d@example.com", i), authmodels.RoleUser, base.Add(time.Duration(3+i)*time.Minute))
	}

	s.Run("plain user is forbidden", func() {
		rec := s.do(http.MethodGet, "/api/users", nil, plain)
		s.Equal(http.StatusForbidden, rec.Code)
	})

	s.Run("paging and filters", func() {
		rec := s.do(http.MethodGet, "/api/users?role=USER&page=2&limit=3", nil, mod)
		s.Require().Equal(http.StatusOK, rec.Code)
		var resp models.DirectoryResponse
		s.Require().NoError(json.NewDecoder(rec.Body).Decode(&resp))
		s.Equal(4, resp.Pagination.Total)
		s.Equal(2, resp.Pagination.TotalPages)
		s.False(resp.Pagination.HasNext)
		s.True(resp.Pagination.HasPrev)
		s.Require().Len(resp.Data, 1)
		s.Equal("member2@example.com", resp.Data[0].Email)
		s.Equal("USER", resp.Filters.Role)
		s.Equal("asc", resp.Filters.SortOrder)
	})

	s.Run("search and sort", func() {
		rec := s.do(http.MethodGet, "/api/users?search=MEMBER&sortBy=email&sortOrder=desc", nil, admin)
		s.Require().Equal(http.StatusOK, rec.Code)
		var resp models.DirectoryResponse
		s.Require().NoError(json.NewDecoder(rec.Body).Decode(&resp))
		s.Require().Len(resp.Data, 3)
		s.Equal("member2@example.com", resp.Data[0].Email)
	})

	s.Run("invalid parameters", func() {
		for _, q := range []string{"limit=0", "limit=101", "page=0", "role=ROOT", "sortBy=password", "sortOrder=up"} {
			rec := s.do(http.MethodGet, "/api/users?"+q, nil, admin)
			s.Equal(http.StatusBadRequest, rec.Code, q)
		}
	})
}
