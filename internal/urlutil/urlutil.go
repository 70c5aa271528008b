package urlutil

import (
	"errors"
	"net/url"
	"path"
	"strings"
)

// NormalizeBase cleans an API base URL: https by default, lower-case host,
// no trailing slash, no query or fragment.
func NormalizeBase(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", errors.New("empty base url")
	}
	if !strings.Contains(raw, "://") {
		raw = "https://" + strings.TrimPrefix(raw, "//")
	}
	u, err := url.Parse(raw)
	if err != nil {
		return "", err
	}
	if u.Host == "" {
		return "", errors.New("base url has no host: " + raw)
	}
	u.Host = strings.ToLower(u.Host)
	u.Path = normalizePath(u.Path)
	u.RawQuery = ""
	u.Fragment = ""
	return strings.TrimSuffix(u.String(), "/"), nil
}

// Build appends escaped path segments to base and encodes query in key order.
// Empty segments are skipped.
func Build(base string, query url.Values, segments ...string) string {
	var sb strings.Builder
	sb.WriteString(strings.TrimSuffix(base, "/"))
	for _, seg := range segments {
		if seg == "" {
			continue
		}
		sb.WriteByte('/')
		sb.WriteString(url.PathEscape(seg))
	}
	if len(query) > 0 {
		sb.WriteByte('?')
		sb.WriteString(query.Encode())
	}
	return sb.String()
}

func normalizePath(p string) string {
	if p == "" {
		return ""
	}
	clean := path.Clean(p)
	if clean == "." || clean == "/" {
		return ""
	}
	return strings.TrimSuffix(clean, "/")
}
