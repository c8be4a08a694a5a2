// URL normalization for cache keys.
//
// Two URLs that normalize identically are the same cached resource:
// scheme and host are lowercased, fragments and tracking parameters are
// stripped, default ports and trailing slashes are dropped.

package cache

import (
	"net/url"
	"sort"
	"strings"
)

// Query parameters that identify a click, not a resource.
var trackingParams = map[string]bool{
	"fbclid":   true,
	"gclid":    true,
	"mc_cid":   true,
	"mc_eid":   true,
	"ref":      true,
	"ref_src":  true,
	"igshid":   true,
}

// NormalizeURL canonicalizes a URL for use as a cache key.
// Returns the input unchanged if it does not parse.
func NormalizeURL(rawURL string) string {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil {
		return rawURL
	}

	u.Scheme = strings.ToLower(u.Scheme)
	u.Host = strings.ToLower(u.Host)
	u.Fragment = ""

	// Drop default ports.
	if (u.Scheme == "http" && strings.HasSuffix(u.Host, ":80")) ||
		(u.Scheme == "https" && strings.HasSuffix(u.Host, ":443")) {
		u.Host = u.Host[:strings.LastIndex(u.Host, ":")]
	}

	// Strip tracking parameters, keep the rest in stable order.
	if u.RawQuery != "" {
		q := u.Query()
		for param := range q {
			if trackingParams[param] || strings.HasPrefix(strings.ToLower(param), "utm_") {
				q.Del(param)
			}
		}
		u.RawQuery = encodeSorted(q)
	}

	// Trailing slash carries no identity; root path collapses to empty.
	u.Path = strings.TrimRight(u.Path, "/")

	return u.String()
}

// encodeSorted encodes query values with deterministic key order.
// url.Values.Encode already sorts keys; kept as a named helper so the
// ordering guarantee is explicit at the call site.
func encodeSorted(q url.Values) string {
	keys := make([]string, 0, len(q))
	for k := range q {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	for _, k := range keys {
		for _, v := range q[k] {
			if b.Len() > 0 {
				b.WriteByte('&')
			}
			b.WriteString(url.QueryEscape(k))
			b.WriteByte('=')
			b.WriteString(url.QueryEscape(v))
		}
	}
	return b.String()
}
