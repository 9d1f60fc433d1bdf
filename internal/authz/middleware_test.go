package authz

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"

	"go.uber.org/mock/gomock"

	"gatehouse/internal/auth/models"
	"gatehouse/internal/auth/resolver"
	"gatehouse/pkg/platform/httputil"
)

func (s *GuardSuite) serve(mw func(http.Handler) http.Handler) (*httptest.ResponseRecorder, *models.Claims) {
	var seen *models.Claims
	h := mw(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = ClaimsFromContext(r.Context())
		w.WriteHeader(http.StatusNoContent)
	}))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, s.req)
	return rec, seen
}

func (s *GuardSuite) decodeError(rec *httptest.ResponseRecorder) httputil.ErrorResponse {
	var body httputil.ErrorResponse
	s.Require().NoError(json.NewDecoder(rec.Body).Decode(&body))
	return body
}

func (s *GuardSuite) TestMiddleware_Authenticated() {
	s.Run("stores claims on allow", func() {
		claims := s.caller(models.RoleUser)
		rec, seen := s.serve(s.guard.Authenticated())
		s.Equal(http.StatusNoContent, rec.Code)
		s.Same(claims, seen)
	})

	s.Run("writes the reason on deny", func() {
		s.resolver.EXPECT().Resolve(gomock.Any()).Return(nil, resolver.ErrExpired)
		rec, seen := s.serve(s.guard.Authenticated())
		s.Equal(http.StatusUnauthorized, rec.Code)
		s.Nil(seen)
		body := s.decodeError(rec)
		s.Equal("unauthorized", body.Error)
		s.Equal("token expired", body.ErrorDescription)
	})
}

func (s *GuardSuite) TestMiddleware_AdminOnly() {
	s.Run("forbidden for moderators", func() {
		s.caller(models.RoleModerator)
		rec, seen := s.serve(s.guard.AdminOnly())
		s.Equal(http.StatusForbidden, rec.Code)
		s.Nil(seen)
		s.Equal(ErrForbidden.Error(), s.decodeError(rec).ErrorDescription)
	})

	s.Run("admin passes", func() {
		s.caller(models.RoleAdmin)
		rec, _ := s.serve(s.guard.AdminOnly())
		s.Equal(http.StatusNoContent, rec.Code)
	})

	s.Run("role list", func() {
		s.caller(models.RoleModerator)
		rec, _ := s.serve(s.guard.Role(models.RoleAdmin, models.RoleModerator))
		s.Equal(http.StatusNoContent, rec.Code)
	})
}

func (s *GuardSuite) TestWriteDenial_NoReason() {
	rec := httptest.NewRecorder()
	WriteDenial(rec, Decision{Outcome: DenyUnauthenticated})
	s.Equal(http.StatusUnauthorized, rec.Code)
	s.Equal("not logged in", s.decodeError(rec).ErrorDescription)
}
