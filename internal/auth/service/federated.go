package service

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"slices"
	"strconv"
	"strings"
	"sync"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/github"
	"golang.org/x/oauth2/google"

	"gatehouse/internal/auth/models"
	"gatehouse/internal/platform/tracer"
	"gatehouse/pkg/requestcontext"
	"gatehouse/pkg/secrets"
)

const (
	ProviderGoogle = "google"
	ProviderGitHub = "github"

	DefaultStateTTL = 10 * time.Minute

	googleUserInfoURL = "https://openidconnect.googleapis.com/v1/userinfo"
	githubUserURL     = "https://api.github.com/user"
	githubEmailsURL   = "https://api.github.com/user/emails"

	maxUserInfoBytes = 1 << 20
)

// profileDecoder fetches the signed-in user's profile with an
// authenticated client.
type profileDecoder func(ctx context.Context, client *http.Client) (*models.FederatedProfile, error)

type provider struct {
	id      string
	name    string
	config  *oauth2.Config
	profile profileDecoder
}

// Federation drives OAuth2 authorization-code sign-in against external
// providers. States are single use and expire after the state TTL.
type Federation struct {
	baseURL    string
	providers  map[string]*provider
	httpClient *http.Client
	stateTTL   time.Duration
	logger     *slog.Logger
	tracer     tracer.Tracer

	mu     sync.Mutex
	states map[string]pendingState
}

type pendingState struct {
	provider  string
	expiresAt time.Time
}

type FederationOption func(*Federation)

// WithGoogle enables Google sign-in. It is a no-op unless both the id and
// the secret are set.
func WithGoogle(clientID, clientSecret string) FederationOption {
	return func(f *Federation) {
		if clientID == "" || clientSecret == "" {
			return
		}
		f.add(ProviderGoogle, "Google", clientID, clientSecret, google.Endpoint,
			[]string{"openid", "email", "profile"}, userInfoDecoder(googleUserInfoURL))
	}
}

// WithGitHub enables GitHub sign-in. It is a no-op unless both the id and
// the secret are set.
func WithGitHub(clientID, clientSecret string) FederationOption {
	return func(f *Federation) {
		if clientID == "" || clientSecret == "" {
			return
		}
		f.add(ProviderGitHub, "GitHub", clientID, clientSecret, github.Endpoint,
			[]string{"read:user", "user:email"}, githubDecoder(githubUserURL, githubEmailsURL))
	}
}

// WithProvider registers a provider that serves an OIDC-style userinfo
// document at userInfoURL.
func WithProvider(providerID, name, clientID, clientSecret string, endpoint oauth2.Endpoint, userInfoURL string) FederationOption {
	return func(f *Federation) {
		f.add(providerID, name, clientID, clientSecret, endpoint, []string{"openid", "email", "profile"}, userInfoDecoder(userInfoURL))
	}
}

func WithHTTPClient(client *http.Client) FederationOption {
	return func(f *Federation) {
		f.httpClient = client
	}
}

func WithStateTTL(ttl time.Duration) FederationOption {
	return func(f *Federation) {
		if ttl > 0 {
			f.stateTTL = ttl
		}
	}
}

func WithFederationLogger(logger *slog.Logger) FederationOption {
	return func(f *Federation) {
		f.logger = logger
	}
}

func WithFederationTracer(t tracer.Tracer) FederationOption {
	return func(f *Federation) {
		f.tracer = t
	}
}

// NewFederation builds the provider set. baseURL is the public auth URL
// used for callback addresses.
func NewFederation(baseURL string, opts ...FederationOption) *Federation {
	f := &Federation{
		baseURL:   strings.TrimRight(baseURL, "/"),
		providers: make(map[string]*provider),
		stateTTL:  DefaultStateTTL,
		states:    make(map[string]pendingState),
	}
	for _, opt := range opts {
		opt(f)
	}
	if f.logger == nil {
		f.logger = slog.Default()
	}
	if f.tracer == nil {
		f.tracer = tracer.NewNoop()
	}
	return f
}

func (f *Federation) add(providerID, name, clientID, clientSecret string, endpoint oauth2.Endpoint, scopes []string, decode profileDecoder) {
	f.providers[providerID] = &provider{
		id:   providerID,
		name: name,
		config: &oauth2.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			Endpoint:     endpoint,
			RedirectURL:  f.callbackURL(providerID),
			Scopes:       scopes,
		},
		profile: decode,
	}
}

func (f *Federation) callbackURL(providerID string) string {
	return f.baseURL + "/api/auth/callback/" + providerID
}

func (f *Federation) signInURL(providerID string) string {
	return f.baseURL + "/api/auth/signin/" + providerID
}

// Providers lists the enabled providers ordered by id. Credential sign-in
// is always present.
func (f *Federation) Providers() []models.ProviderInfo {
	infos := []models.ProviderInfo{{
		ID:          ProviderCredentials,
		Name:        "Credentials",
		Type:        "credentials",
		SignInURL:   f.baseURL + "/api/auth/signin/" + ProviderCredentials,
		CallbackURL: f.callbackURL(ProviderCredentials),
	}}
	ids := make([]string, 0, len(f.providers))
	for providerID := range f.providers {
		ids = append(ids, providerID)
	}
	slices.Sort(ids)
	for _, providerID := range ids {
		p := f.providers[providerID]
		infos = append(infos, models.ProviderInfo{
			ID:          p.id,
			Name:        p.name,
			Type:        "oauth",
			SignInURL:   f.signInURL(p.id),
			CallbackURL: f.callbackURL(p.id),
		})
	}
	return infos
}

func (f *Federation) Enabled(providerID string) bool {
	_, ok := f.providers[providerID]
	return ok
}

// AuthCodeURL starts a sign-in: it stores a fresh state and returns the
// provider's consent URL.
func (f *Federation) AuthCodeURL(ctx context.Context, providerID string) (string, error) {
	p, ok := f.providers[providerID]
	if !ok {
		return "", ErrUnknownProvider
	}
	state, err := secrets.TokenURL(32)
	if err != nil {
		return "", err
	}
	now := requestcontext.Now(ctx)

	f.mu.Lock()
	f.sweepLocked(now)
	f.states[state] = pendingState{provider: providerID, expiresAt: now.Add(f.stateTTL)}
	f.mu.Unlock()

	return p.config.AuthCodeURL(state), nil
}

// Exchange completes a sign-in: the state is consumed, the code exchanged
// and the user's profile fetched.
func (f *Federation) Exchange(ctx context.Context, providerID, code, state string) (*models.FederatedProfile, error) {
	p, ok := f.providers[providerID]
	if !ok {
		return nil, ErrUnknownProvider
	}
	if !f.consumeState(requestcontext.Now(ctx), providerID, state) {
		return nil, ErrInvalidState
	}

	ctx, span := f.tracer.Start(ctx, tracer.SpanOAuthExchange, tracer.String(tracer.AttrProvider, providerID))
	var err error
	defer func() { span.End(err) }()

	if f.httpClient != nil {
		ctx = context.WithValue(ctx, oauth2.HTTPClient, f.httpClient)
	}
	token, err := p.config.Exchange(ctx, code)
	if err != nil {
		f.logger.WarnContext(ctx, "oauth_exchange_failed", "provider", providerID, "error", err)
		err = fmt.Errorf("%w: %w", ErrProviderUnavailable, err)
		return nil, err
	}

	profile, err := p.profile(ctx, p.config.Client(ctx, token))
	if err != nil {
		return nil, err
	}
	if profile.Email == "" {
		err = ErrProfileIncomplete
		return nil, err
	}
	profile.Email = strings.ToLower(profile.Email)
	return profile, nil
}

func (f *Federation) consumeState(now time.Time, providerID, state string) bool {
	if state == "" {
		return false
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	pending, ok := f.states[state]
	if !ok {
		return false
	}
	delete(f.states, state)
	return pending.provider == providerID && !now.After(pending.expiresAt)
}

// Cleanup removes expired states.
func (f *Federation) Cleanup(ctx context.Context) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.sweepLocked(requestcontext.Now(ctx)), nil
}

func (f *Federation) sweepLocked(now time.Time) int {
	removed := 0
	for state, pending := range f.states {
		if now.After(pending.expiresAt) {
			delete(f.states, state)
			removed++
		}
	}
	return removed
}

func fetchJSON(ctx context.Context, client *http.Client, url string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrProviderUnavailable, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: userinfo returned %d", ErrProviderUnavailable, resp.StatusCode)
	}
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxUserInfoBytes)).Decode(out); err != nil {
		return fmt.Errorf("decode userinfo: %w", err)
	}
	return nil
}

func userInfoDecoder(url string) profileDecoder {
	return func(ctx context.Context, client *http.Client) (*models.FederatedProfile, error) {
		var info struct {
			Sub     string `json:"sub"`
			Email   string `json:"email"`
			Name    string `json:"name"`
			Picture string `json:"picture"`
		}
		if err := fetchJSON(ctx, client, url, &info); err != nil {
			return nil, err
		}
		return &models.FederatedProfile{Subject: info.Sub, Email: info.Email, Name: info.Name, Image: info.Picture}, nil
	}
}

// githubDecoder reads /user and falls back to the primary verified address
// when the public email is hidden.
func githubDecoder(userURL, emailsURL string) profileDecoder {
	return func(ctx context.Context, client *http.Client) (*models.FederatedProfile, error) {
		var user struct {
			ID        int64  `json:"id"`
			Login     string `json:"login"`
			Name      string `json:"name"`
			Email     string `json:"email"`
			AvatarURL string `json:"avatar_url"`
		}
		if err := fetchJSON(ctx, client, userURL, &user); err != nil {
			return nil, err
		}
		profile := &models.FederatedProfile{
			Subject: strconv.FormatInt(user.ID, 10),
			Email:   user.Email,
			Name:    user.Name,
			Image:   user.AvatarURL,
		}
		if profile.Name == "" {
			profile.Name = user.Login
		}
		if profile.Email != "" {
			return profile, nil
		}

		var emails []struct {
			Email    string `json:"email"`
			Primary  bool   `json:"primary"`
			Verified bool   `json:"verified"`
		}
		if err := fetchJSON(ctx, client, emailsURL, &emails); err != nil {
			return nil, err
		}
		for _, e := range emails {
			if e.Primary && e.Verified {
				profile.Email = e.Email
				break
			}
		}
		return profile, nil
	}
}
