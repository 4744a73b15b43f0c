package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"net/url"
	"strings"
)

// DefaultTrackingParams are dropped from query strings before keying. A trailing "*"
// matches by prefix.
var DefaultTrackingParams = []string{
	"utm_*", "gclid", "fbclid", "msclkid", "dclid", "mc_cid", "mc_eid",
	"_ga", "_gl", "trk", "trackingid", "refid", "ref", "referrer",
}

type Normalizer struct {
	exact    map[string]bool
	prefixes []string
}

// NewNormalizer builds a normalizer dropping the default tracking params plus extra.
func NewNormalizer(extra ...string) *Normalizer {
	n := &Normalizer{exact: make(map[string]bool)}
	for _, p := range append(append([]string{}, DefaultTrackingParams...), extra...) {
		p = strings.ToLower(strings.TrimSpace(p))
		if p == "" {
			continue
		}
		if strings.HasSuffix(p, "*") {
			n.prefixes = append(n.prefixes, strings.TrimSuffix(p, "*"))
			continue
		}
		n.exact[p] = true
	}
	return n
}

func (n *Normalizer) tracking(param string) bool {
	param = strings.ToLower(param)
	if n.exact[param] {
		return true
	}
	for _, prefix := range n.prefixes {
		if strings.HasPrefix(param, prefix) {
			return true
		}
	}
	return false
}

// Normalize collapses superficially different URLs: scheme and host case, default ports,
// fragments, trailing slashes, tracking params and query order. It is idempotent.
// Input that does not parse as an absolute URL is only trimmed.
func (n *Normalizer) Normalize(raw string) string {
	raw = strings.TrimSpace(raw)
	u, err := url.Parse(raw)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return raw
	}

	u.Scheme = strings.ToLower(u.Scheme)
	host := strings.ToLower(u.Hostname())
	if strings.Contains(host, ":") {
		host = "[" + host + "]"
	}
	if port := u.Port(); port != "" && !(u.Scheme == "http" && port == "80") && !(u.Scheme == "https" && port == "443") {
		host = host + ":" + port
	}
	u.Host = host
	u.Fragment = ""
	u.RawFragment = ""

	path := strings.TrimRight(u.Path, "/")
	if path == "" {
		path = "/"
	}
	u.Path = path
	u.RawPath = ""

	if u.RawQuery != "" {
		q := u.Query()
		for key := range q {
			if n.tracking(key) {
				q.Del(key)
			}
		}
		u.RawQuery = q.Encode()
	}
	u.ForceQuery = false

	return u.String()
}

var defaultNormalizer = NewNormalizer()

// Normalize uses the default tracking parameter list.
func Normalize(raw string) string {
	return defaultNormalizer.Normalize(raw)
}

// HashKey is the content address of an already-normalized identifier.
func HashKey(normalized string) string {
	sum := sha256.Sum256([]byte(normalized))
	return hex.EncodeToString(sum[:])
}
