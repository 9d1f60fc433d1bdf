package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/suite"
	"golang.org/x/oauth2"

	"gatehouse/internal/auth/legacytoken"
	"gatehouse/internal/auth/models"
	"gatehouse/internal/auth/resolver"
	"gatehouse/internal/auth/service"
	sessionStore "gatehouse/internal/auth/store/session"
	userStore "gatehouse/internal/auth/store/user"
	id "gatehouse/pkg/domain"
	"gatehouse/pkg/platform/httputil"
	"gatehouse/pkg/requestcontext"
	"gatehouse/pkg/secrets"
)

type HandlerSuite struct {
	suite.Suite
	users    *userStore.InMemoryUserStore
	sessions *sessionStore.InMemorySessionStore
	issuer   *legacytoken.Issuer
	router   chi.Router
	oauth    *httptest.Server
	now      time.Time
}

func TestHandlerSuite(t *testing.T) {
	suite.Run(t, new(HandlerSuite))
}

func (s *HandlerSuite) SetupTest() {
	s.now = time.Date(2026, 4, 1, 12, 0, 0, 0, time.UTC)
	s.users = userStore.New()
	s.sessions = sessionStore.New()
	s.issuer = legacytoken.NewIssuer("handler-test-signing-key-0123456", 0)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	s.addUser("admin@example.com", "admin123", models.RoleAdmin)
	s.addUser("fed@example.com", "", models.RoleUser)

	s.oauth = newOAuthServer()
	s.T().Cleanup(s.oauth.Close)

	svc := service.New(s.users, s.sessions, service.WithLogger(logger), service.WithIssuer(s.issuer))
	fed := service.NewFederation("http://auth.local",
		service.WithProvider("test", "Test", "cid", "secret", oauth2.Endpoint{
			AuthURL:   s.oauth.URL + "/authorize",
			TokenURL:  s.oauth.URL + "/token",
			AuthStyle: oauth2.AuthStyleInParams,
		}, s.oauth.URL+"/userinfo"),
	)
	h := New(svc, fed, s.issuer, resolver.NewProviderSessionResolver(s.sessions), logger, Config{AppURL: "http://app.local/"})

	s.router = chi.NewRouter()
	s.router.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			next.ServeHTTP(w, r.WithContext(requestcontext.WithTime(r.Context(), s.now)))
		})
	})
	h.Register(s.router)
}

func newOAuthServer() *httptest.Server {
	mux := http.NewServeMux()
	mux.HandleFunc("/token", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"access_token":"tok","token_type":"bearer"}`))
	})
	mux.HandleFunc("/userinfo", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"sub":"s-1","email":"newcomer@example.com","name":"Newcomer"}`))
	})
	return httptest.NewServer(mux)
}

func (s *HandlerSuite) addUser(email, password string, role models.Role) *models.User {
	user := &models.User{ID: id.NewUserID(), Email: email, Name: "Name", Role: role, CreatedAt: s.now, UpdatedAt: s.now}
	if password != "" {
		hash, err := secrets.Hash(password)
		s.Require().NoError(err)
		user.PasswordHash = hash
	}
	s.Require().NoError(s.users.Create(context.Background(), user))
	return user
}

func (s *HandlerSuite) do(method, target string, body any, cookies ...*http.Cookie) *httptest.ResponseRecorder {
	var reader io.Reader = http.NoBody
	if body != nil {
		raw, err := json.Marshal(body)
		s.Require().NoError(err)
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, target, reader)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0 Safari/537.36")
	for _, c := range cookies {
		req.AddCookie(c)
	}
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	return rec
}

func cookieNamed(rec *httptest.ResponseRecorder, name string) *http.Cookie {
	for _, c := range rec.Result().Cookies() {
		if c.Name == name {
			return c
		}
	}
	return nil
}

func (s *HandlerSuite) errorBody(rec *httptest.ResponseRecorder) httputil.ErrorResponse {
	var body httputil.ErrorResponse
	s.Require().NoError(json.NewDecoder(rec.Body).Decode(&body))
	return body
}

func (s *HandlerSuite) TestLegacyLogin() {
	s.Run("success sets the auth-token cookie", func() {
		rec := s.do(http.MethodPost, "/api/auth/login", map[string]string{"email": " Admin@Example.com ", "password": "admin123"})
		s.Require().Equal(http.StatusOK, rec.Code)

		cookie := cookieNamed(rec, legacytoken.CookieName)
		s.Require().NotNil(cookie)
		s.True(cookie.HttpOnly)
		s.Equal(http.SameSiteStrictMode, cookie.SameSite)
		s.Equal(86400, cookie.MaxAge)

		var body models.LoginResponse
		s.Require().NoError(json.NewDecoder(rec.Body).Decode(&body))
		s.True(body.Success)
		s.Equal(cookie.Value, body.Data.Token)
		s.Equal(models.RoleAdmin, body.Data.User.Role)
	})

	s.Run("every credential failure looks the same", func() {
		cases := []map[string]string{
			{"email": "admin@example.com", "password": "wrong"},
			{"email": "nobody@example.com", "password": "admin123"},
			{"email": "fed@example.com", "password": "anything"},
		}
		for _, body := range cases {
			rec := s.do(http.MethodPost, "/api/auth/login", body)
			s.Equal(http.StatusUnauthorized, rec.Code)
			s.Equal(MsgInvalidCredentials, s.errorBody(rec).ErrorDescription)
			s.Nil(cookieNamed(rec, legacytoken.CookieName))
		}
	})

	s.Run("missing field or bad email is a 400", func() {
		rec := s.do(http.MethodPost, "/api/auth/login", map[string]string{"email": "admin@example.com"})
		s.Equal(http.StatusBadRequest, rec.Code)
		rec = s.do(http.MethodPost, "/api/auth/login", map[string]string{"email": "not-an-email", "password": "x"})
		s.Equal(http.StatusBadRequest, rec.Code)
	})
}

func (s *HandlerSuite) TestLegacyStatus() {
	admin, err := s.users.FindByEmail(context.Background(), "admin@example.com")
	s.Require().NoError(err)

	s.Run("no cookie", func() {
		rec := s.do(http.MethodGet, "/api/auth/login", nil)
		s.Equal(http.StatusUnauthorized, rec.Code)
		s.Equal("not logged in", s.errorBody(rec).ErrorDescription)
	})

	s.Run("expired", func() {
		token, _, err := s.issuer.IssueWithExpiry(admin.Identity(), s.now.Add(-time.Minute))
		s.Require().NoError(err)
		rec := s.do(http.MethodGet, "/api/auth/login", nil, &http.Cookie{Name: legacytoken.CookieName, Value: token})
		s.Equal(http.StatusUnauthorized, rec.Code)
		s.Equal("token expired", s.errorBody(rec).ErrorDescription)
	})

	s.Run("garbage", func() {
		rec := s.do(http.MethodGet, "/api/auth/login", nil, &http.Cookie{Name: legacytoken.CookieName, Value: "garbage"})
		s.Equal(http.StatusUnauthorized, rec.Code)
		s.Equal("invalid token", s.errorBody(rec).ErrorDescription)
	})

	s.Run("valid", func() {
		token, _, err := s.issuer.IssueWithExpiry(admin.Identity(), s.now.Add(time.Hour))
		s.Require().NoError(err)
		cookie := &http.Cookie{Name: legacytoken.CookieName, Value: token}

		rec := s.do(http.MethodGet, "/api/auth/login", nil, cookie)
		s.Require().Equal(http.StatusOK, rec.Code)
		var body models.LoginStatusResponse
		s.Require().NoError(json.NewDecoder(rec.Body).Decode(&body))
		s.True(body.Authenticated)
		s.Equal(admin.ID, body.User.UserID)

		rec = s.do(http.MethodGet, "/api/auth/logout", nil, cookie)
		var status models.LogoutStatusResponse
		s.Require().NoError(json.NewDecoder(rec.Body).Decode(&status))
		s.True(status.WasAuthenticated)
	})
}

func (s *HandlerSuite) TestLegacyLogout() {
	rec := s.do(http.MethodPost, "/api/auth/logout", nil)
	s.Equal(http.StatusOK, rec.Code)
	cookie := cookieNamed(rec, legacytoken.CookieName)
	s.Require().NotNil(cookie)
	s.Equal(-1, cookie.MaxAge)

	rec = s.do(http.MethodGet, "/api/auth/logout", nil)
	var status models.LogoutStatusResponse
	s.Require().NoError(json.NewDecoder(rec.Body).Decode(&status))
	s.False(status.WasAuthenticated)
}

func (s *HandlerSuite) TestSessionLifecycle() {
	rec := s.do(http.MethodGet, "/api/auth/session", nil)
	s.Equal(http.StatusOK, rec.Code)
	s.JSONEq(`{}`, rec.Body.String())

	rec = s.do(http.MethodPost, "/api/auth/signin/credentials", map[string]string{"email": "admin@example.com", "password": "admin123"})
	s.Require().Equal(http.StatusOK, rec.Code)
	cookie := cookieNamed(rec, resolver.SessionCookieName)
	s.Require().NotNil(cookie)
	s.Equal(http.SameSiteLaxMode, cookie.SameSite)
	s.Equal(int((30 * 24 * time.Hour).Seconds()), cookie.MaxAge)

	stored, err := s.sessions.FindByID(context.Background(), cookie.Value)
	s.Require().NoError(err)
	s.Contains(stored.Device, "Chrome")

	rec = s.do(http.MethodGet, "/api/auth/session", nil, cookie)
	var session models.SessionResponse
	s.Require().NoError(json.NewDecoder(rec.Body).Decode(&session))
	s.Require().NotNil(session.User)
	s.Equal(models.RoleAdmin, session.User.Role)
	s.Require().NotNil(session.Expires)

	rec = s.do(http.MethodPost, "/api/auth/signout", nil, cookie)
	s.Equal(http.StatusOK, rec.Code)
	s.Equal(-1, cookieNamed(rec, resolver.SessionCookieName).MaxAge)

	rec = s.do(http.MethodGet, "/api/auth/session", nil, cookie)
	s.JSONEq(`{}`, rec.Body.String())
}

func (s *HandlerSuite) TestCredentialsSignIn_Rejected() {
	rec := s.do(http.MethodPost, "/api/auth/signin/credentials", map[string]string{"email": "admin@example.com", "password": "nope"})
	s.Equal(http.StatusUnauthorized, rec.Code)
	s.Equal(MsgInvalidCredentials, s.errorBody(rec).ErrorDescription)
	s.Nil(cookieNamed(rec, resolver.SessionCookieName))
}

func (s *HandlerSuite) TestProviders() {
	rec := s.do(http.MethodGet, "/api/auth/providers", nil)
	s.Require().Equal(http.StatusOK, rec.Code)
	var providers []models.ProviderInfo
	s.Require().NoError(json.NewDecoder(rec.Body).Decode(&providers))
	s.Require().Len(providers, 2)
	s.Equal("credentials", providers[0].ID)
	s.Equal("test", providers[1].ID)
}

func (s *HandlerSuite) TestFederatedSignIn() {
	rec := s.do(http.MethodGet, "/api/auth/signin/test", nil)
	s.Require().Equal(http.StatusFound, rec.Code)
	location, err := url.Parse(rec.Header().Get("Location"))
	s.Require().NoError(err)
	state := location.Query().Get("state")
	s.Require().NotEmpty(state)

	rec = s.do(http.MethodGet, "/api/auth/callback/test?code=abc&state="+url.QueryEscape(state), nil)
	s.Require().Equal(http.StatusFound, rec.Code)
	s.Equal("http://app.local/", rec.Header().Get("Location"))
	cookie := cookieNamed(rec, resolver.SessionCookieName)
	s.Require().NotNil(cookie)

	user, err := s.users.FindByEmail(context.Background(), "newcomer@example.com")
	s.Require().NoError(err)
	s.True(user.IsFederated())
	s.Equal(models.RoleUser, user.Role)

	s.Run("state is single use", func() {
		rec := s.do(http.MethodGet, "/api/auth/callback/test?code=abc&state="+url.QueryEscape(state), nil)
		s.Equal(http.StatusUnauthorized, rec.Code)
	})

	s.Run("unknown provider", func() {
		rec := s.do(http.MethodGet, "/api/auth/signin/myspace", nil)
		s.Equal(http.StatusNotFound, rec.Code)
	})

	s.Run("provider error", func() {
		rec := s.do(http.MethodGet, "/api/auth/callback/test?error=access_denied", nil)
		s.Equal(http.StatusUnauthorized, rec.Code)
	})
}
