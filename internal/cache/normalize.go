package cache

import (
	"net/url"
	"strings"
)

// trackingParams are query parameters stripped during normalization so that
// cosmetically different URLs for the same page share one cache entry.
var trackingParams = map[string]bool{
	"fbclid":  true,
	"gclid":   true,
	"msclkid": true,
	"ref":     true,
	"ref_src": true,
	"igshid":  true,
	"mc_cid":  true,
	"mc_eid":  true,
}

// Normalize produces the canonical form of a URL used as a cache and
// de-duplication key: scheme and host lowercased, fragment dropped,
// trailing slash and tracking query parameters stripped.
func Normalize(rawURL string) string {
	rawURL = strings.TrimSpace(rawURL)
	u, err := url.Parse(rawURL)
	if err != nil || u.Host == "" {
		return rawURL
	}

	u.Scheme = strings.ToLower(u.Scheme)
	u.Host = strings.ToLower(u.Host)
	u.Fragment = ""
	u.Path = strings.TrimSuffix(u.Path, "/")

	if u.RawQuery != "" {
		q := u.Query()
		for name := range q {
			if trackingParams[name] || strings.HasPrefix(strings.ToLower(name), "utm_") {
				q.Del(name)
			}
		}
		u.RawQuery = q.Encode()
	}

	return u.String()
}
