package identity

import (
	"crypto/sha256"
	"encoding/hex"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/suite"
)

type IdentitySuite struct {
	suite.Suite
}

func TestIdentitySuite(t *testing.T) {
	suite.Run(t, new(IdentitySuite))
}

func (s *IdentitySuite) request(headers map[string]string) *http.Request {
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.RemoteAddr = "192.0.2.10:5555"
	for k, v := range headers {
		r.Header.Set(k, v)
	}
	return r
}

func (s *IdentitySuite) TestIdentify() {
	s.Run("uses first forwarded-for entry, trimmed", func() {
		r := s.request(map[string]string{"X-Forwarded-For": " 1.2.3.4 , 10.0.0.1"})
		s.Equal("ip:1.2.3.4", Identify(r))
	})

	s.Run("forwarded-for wins over real-ip", func() {
		r := s.request(map[string]string{"X-Forwarded-For": "1.2.3.4", "X-Real-IP": "5.6.7.8"})
		s.Equal("ip:1.2.3.4", Identify(r))
	})

	s.Run("falls back to real-ip", func() {
		r := s.request(map[string]string{"X-Real-IP": "5.6.7.8"})
		s.Equal("ip:5.6.7.8", Identify(r))
	})

	s.Run("no address uses user agent", func() {
		r := s.request(map[string]string{"User-Agent": "curl/8.0"})
		s.Equal("ua:curl/8.0", Identify(r))
	})

	s.Run("no address and no user agent", func() {
		s.Equal("ua:unknown", Identify(s.request(nil)))
	})

	s.Run("blank first forwarded entry falls back to user agent", func() {
		r := s.request(map[string]string{"X-Forwarded-For": " , 10.0.0.1", "User-Agent": "ua"})
		s.Equal("ua:ua", Identify(r))
	})

	s.Run("literal unknown is treated as missing", func() {
		r := s.request(map[string]string{"X-Real-IP": "unknown", "User-Agent": "ua"})
		s.Equal("ua:ua", Identify(r))
	})

	s.Run("deterministic for equal headers", func() {
		h := map[string]string{"X-Forwarded-For": "9.9.9.9", "User-Agent": "x"}
		s.Equal(Identify(s.request(h)), Identify(s.request(h)))
	})
}

func (s *IdentitySuite) TestResolver_UseRemoteAddr() {
	res := Resolver{UseRemoteAddr: true}

	s.Equal("ip:192.0.2.10", res.Identify(s.request(nil)))

	r := s.request(map[string]string{"X-Real-IP": "5.6.7.8"})
	s.Equal("ip:5.6.7.8", res.Identify(r), "headers still take precedence")

	v6 := s.request(nil)
	v6.RemoteAddr = "[2001:db8::1]:443"
	s.Equal("ip:2001:db8::1", res.Identify(v6))
}

func (s *IdentitySuite) TestSessionFingerprint() {
	r := s.request(map[string]string{"X-Forwarded-For": "1.2.3.4", "User-Agent": "Firefox"})
	want := sha256.Sum256([]byte("1.2.3.4:Firefox"))
	s.Equal(hex.EncodeToString(want[:]), SessionFingerprint(r))

	anon := sha256.Sum256([]byte("unknown:"))
	s.Equal(hex.EncodeToString(anon[:]), SessionFingerprint(s.request(nil)))

	other := s.request(map[string]string{"X-Forwarded-For": "1.2.3.4", "User-Agent": "Chrome"})
	s.NotEqual(SessionFingerprint(r), SessionFingerprint(other))
}

func TestDeviceLabel(t *testing.T) {
	tests := []struct {
		name string
		ua   string
		want string
	}{
		{"empty", "", "Unknown Device"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, DeviceLabel(tt.ua))
		})
	}

	t.Run("desktop chrome names browser and os", func(t *testing.T) {
		ua := "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"
		got := DeviceLabel(ua)
		assert.True(t, strings.HasPrefix(got, "Chrome on "), got)
		assert.Contains(t, got, "Linux")
	})

	t.Run("unrecognised agent is still formatted", func(t *testing.T) {
		assert.Contains(t, DeviceLabel("Unknown/1.0"), " on ")
	})

	t.Run("mobile safari mentions platform", func(t *testing.T) {
		ua := "Mozilla/5.0 (iPhone; CPU iPhone OS 17_0 like Mac OS X) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.0 Mobile/15E148 Safari/604.1"
		got := DeviceLabel(ua)
		assert.True(t, strings.HasPrefix(got, "Safari on "), got)
		assert.Contains(t, got, "iPhone")
	})
}
