package csrf

import (
	"net/http"
	"net/url"
	"slices"
	"strings"
)

var allowedContentTypes = []string{
	"application/json",
	"application/x-www-form-urlencoded",
	"multipart/form-data",
}

// OriginChecker accepts requests whose Origin (or Referer origin) is the
// request's own host or one of the configured service URLs.
type OriginChecker struct {
	AppURL     string
	AuthURL    string
	Production bool
}

// CheckOrigin validates the Origin header, falling back to the Referer.
// With neither header the request is allowed outside production only.
func (c OriginChecker) CheckOrigin(r *http.Request) bool {
	allowed := c.allowedOrigins(r.Host)

	if origin := r.Header.Get("Origin"); origin != "" {
		return slices.Contains(allowed, origin)
	}

	if referer := r.Header.Get("Referer"); referer != "" {
		refOrigin, ok := originOf(referer)
		if !ok {
			return false
		}
		return slices.Contains(allowed, refOrigin)
	}

	return !c.Production
}

// SimpleCheck runs CheckOrigin and, for POST, requires a JSON, urlencoded
// or multipart body.
func (c OriginChecker) SimpleCheck(r *http.Request) bool {
	if !c.CheckOrigin(r) {
		return false
	}
	if r.Method != http.MethodPost {
		return true
	}
	return allowedContentType(r.Header.Get("Content-Type"))
}

func (c OriginChecker) allowedOrigins(host string) []string {
	allowed := make([]string, 0, 4)
	if host != "" {
		allowed = append(allowed, "https://"+host, "http://"+host)
	}
	for _, configured := range []string{c.AuthURL, c.AppURL} {
		if configured == "" {
			continue
		}
		if o, ok := originOf(configured); ok {
			allowed = append(allowed, o)
		}
	}
	return allowed
}

func allowedContentType(contentType string) bool {
	ct := strings.ToLower(contentType)
	for _, t := range allowedContentTypes {
		if strings.Contains(ct, t) {
			return true
		}
	}
	return false
}

// originOf returns scheme://host of raw, or false when raw is not an
// absolute URL.
func originOf(raw string) (string, bool) {
	u, err := url.Parse(raw)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return "", false
	}
	return strings.ToLower(u.Scheme) + "://" + strings.ToLower(u.Host), true
}
