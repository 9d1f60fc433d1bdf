package service

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"

	"gatehouse/pkg/requestcontext"
)

type fakeProvider struct {
	server *httptest.Server
	email  string
}

func newFakeProvider(t *testing.T, email string) *fakeProvider {
	t.Helper()
	fp := &fakeProvider{email: email}
	mux := http.NewServeMux()
	mux.HandleFunc("/token", func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil || r.Form.Get("code") != "good-code" {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusBadRequest)
			_, _ = w.Write([]byte(`{"error":"invalid_grant"}`))
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"access_token":"access-123","token_type":"bearer","expires_in":3600}`))
	})
	mux.HandleFunc("/userinfo", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer access-123" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]string{
			"sub":     "subject-1",
			"email":   fp.email,
			"name":    "Federated User",
			"picture": "https://example.com/a.png",
		})
	})
	fp.server = httptest.NewServer(mux)
	t.Cleanup(fp.server.Close)
	return fp
}

func (fp *fakeProvider) option() FederationOption {
	return WithProvider("test", "Test", "client-id", "client-secret", oauth2.Endpoint{
		AuthURL:   fp.server.URL + "/authorize",
		TokenURL:  fp.server.URL + "/token",
		AuthStyle: oauth2.AuthStyleInParams,
	}, fp.server.URL+"/userinfo")
}

func stateOf(t *testing.T, rawURL string) string {
	t.Helper()
	u, err := url.Parse(rawURL)
	require.NoError(t, err)
	state := u.Query().Get("state")
	require.NotEmpty(t, state)
	return state
}

func TestFederation_Providers(t *testing.T) {
	t.Run("only configured providers are enabled", func(t *testing.T) {
		f := NewFederation("https://auth.example.com/",
			WithGoogle("id", ""),
			WithGitHub("gh-id", "gh-secret"),
		)
		providers := f.Providers()
		require.Len(t, providers, 2)
		assert.Equal(t, ProviderCredentials, providers[0].ID)
		assert.Equal(t, ProviderGitHub, providers[1].ID)
		assert.Equal(t, "https://auth.example.com/api/auth/callback/github", providers[1].CallbackURL)
		assert.Equal(t, "oauth", providers[1].Type)
		assert.False(t, f.Enabled(ProviderGoogle))
		assert.True(t, f.Enabled(ProviderGitHub))
	})

	t.Run("auth code url targets the provider", func(t *testing.T) {
		f := NewFederation("https://auth.example.com", WithGoogle("g-id", "g-secret"))
		raw, err := f.AuthCodeURL(context.Background(), ProviderGoogle)
		require.NoError(t, err)
		u, err := url.Parse(raw)
		require.NoError(t, err)
		assert.Equal(t, "accounts.google.com", u.Host)
		assert.Equal(t, "g-id", u.Query().Get("client_id"))
		assert.Equal(t, "https://auth.example.com/api/auth/callback/google", u.Query().Get("redirect_uri"))
	})

	t.Run("unknown provider", func(t *testing.T) {
		f := NewFederation("https://auth.example.com")
		_, err := f.AuthCodeURL(context.Background(), "myspace")
		assert.ErrorIs(t, err, ErrUnknownProvider)
	})
}

func TestFederation_Exchange(t *testing.T) {
	fp := newFakeProvider(t, "Fed@Example.com")
	now := time.Date(2026, 4, 1, 12, 0, 0, 0, time.UTC)
	ctx := requestcontext.WithTime(context.Background(), now)

	t.Run("returns the profile and consumes the state", func(t *testing.T) {
		f := NewFederation("http://localhost", fp.option())
		raw, err := f.AuthCodeURL(ctx, "test")
		require.NoError(t, err)
		state := stateOf(t, raw)

		profile, err := f.Exchange(ctx, "test", "good-code", state)
		require.NoError(t, err)
		assert.Equal(t, "fed@example.com", profile.Email)
		assert.Equal(t, "subject-1", profile.Subject)
		assert.Equal(t, "Federated User", profile.Name)
		assert.Equal(t, "https://example.com/a.png", profile.Image)

		_, err = f.Exchange(ctx, "test", "good-code", state)
		assert.ErrorIs(t, err, ErrInvalidState)
	})

	t.Run("unknown state", func(t *testing.T) {
		f := NewFederation("http://localhost", fp.option())
		_, err := f.Exchange(ctx, "test", "good-code", "forged")
		assert.ErrorIs(t, err, ErrInvalidState)
	})

	t.Run("expired state", func(t *testing.T) {
		f := NewFederation("http://localhost", fp.option())
		raw, err := f.AuthCodeURL(ctx, "test")
		require.NoError(t, err)

		later := requestcontext.WithTime(context.Background(), now.Add(DefaultStateTTL+time.Second))
		_, err = f.Exchange(later, "test", "good-code", stateOf(t, raw))
		assert.ErrorIs(t, err, ErrInvalidState)
	})

	t.Run("rejected code", func(t *testing.T) {
		f := NewFederation("http://localhost", fp.option())
		raw, err := f.AuthCodeURL(ctx, "test")
		require.NoError(t, err)

		_, err = f.Exchange(ctx, "test", "bad-code", stateOf(t, raw))
		assert.ErrorIs(t, err, ErrProviderUnavailable)
	})

	t.Run("profile without email", func(t *testing.T) {
		noEmail := newFakeProvider(t, "")
		f := NewFederation("http://localhost", noEmail.option())
		raw, err := f.AuthCodeURL(ctx, "test")
		require.NoError(t, err)

		_, err = f.Exchange(ctx, "test", "good-code", stateOf(t, raw))
		assert.ErrorIs(t, err, ErrProfileIncomplete)
	})
}

func TestFederation_Cleanup(t *testing.T) {
	now := time.Date(2026, 4, 1, 12, 0, 0, 0, time.UTC)
	f := NewFederation("https://auth.example.com", WithGoogle("g-id", "g-secret"), WithStateTTL(time.Minute))

	for i := 0; i < 3; i++ {
		_, err := f.AuthCodeURL(requestcontext.WithTime(context.Background(), now), ProviderGoogle)
		require.NoError(t, err)
	}

	removed, err := f.Cleanup(requestcontext.WithTime(context.Background(), now.Add(30*time.Second)))
	require.NoError(t, err)
	assert.Zero(t, removed)

	removed, err = f.Cleanup(requestcontext.WithTime(context.Background(), now.Add(2*time.Minute)))
	require.NoError(t, err)
	assert.Equal(t, 3, removed)
}

func TestGitHubDecoder_FallsBackToPrimaryEmail(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/user", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"id":7,"login":"octo","name":"","email":null,"avatar_url":"https://avatars/7"}`))
	})
	mux.HandleFunc("/user/emails", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`[{"email":"old@example.com","primary":false,"verified":true},{"email":"octo@example.com","primary":true,"verified":true}]`))
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	profile, err := githubDecoder(server.URL+"/user", server.URL+"/user/emails")(context.Background(), server.Client())
	require.NoError(t, err)
	assert.Equal(t, "7", profile.Subject)
	assert.Equal(t, "octo", profile.Name)
	assert.Equal(t, "octo@example.com", profile.Email)
	assert.Equal(t, "https://avatars/7", profile.Image)
}
