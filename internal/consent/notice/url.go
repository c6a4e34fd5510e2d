package notice

import (
	"net/url"
	"strings"
)

// trackingParams are query keys that identify a campaign or click, not a page.
// Keys starting with utm_ are dropped as well.
var trackingParams = map[string]struct{}{
	"gclid":   {},
	"dclid":   {},
	"fbclid":  {},
	"msclkid": {},
	"yclid":   {},
	"mc_cid":  {},
	"mc_eid":  {},
	"_ga":     {},
	"_gl":     {},
}

// NormalizeURL reduces a page URL to the form compared across submissions:
// lower-case scheme and host, default port dropped, fragment and tracking
// parameters dropped, remaining query keys sorted, trailing slash trimmed
// except for the root. Relative or unparseable input yields "" and never
// matches.
func NormalizeURL(raw string) string {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil || u.Scheme == "" || u.Host == "" {
		return ""
	}

	scheme := strings.ToLower(u.Scheme)
	host := strings.ToLower(u.Hostname())
	if port := u.Port(); port != "" && !isDefaultPort(scheme, port) {
		host = host + ":" + port
	}

	path := u.EscapedPath()
	path = strings.TrimRight(path, "/")
	if path == "" {
		path = "/"
	}
	out := scheme + "://" + host + path
	if query := pageQuery(u.Query()); query != "" {
		out += "?" + query
	}
	return out
}

func pageQuery(values url.Values) string {
	for key := range values {
		lower := strings.ToLower(key)
		if _, ok := trackingParams[lower]; ok || strings.HasPrefix(lower, "utm_") {
			values.Del(key)
		}
	}
	return values.Encode()
}

func isDefaultPort(scheme, port string) bool {
	return (scheme == "http" && port == "80") || (scheme == "https" && port == "443")
}
