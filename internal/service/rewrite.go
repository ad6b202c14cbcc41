package service

import (
	"errors"
	"net"
	"net/url"
	"regexp"
	"strings"
)

// Rewrite errors. All of them fail the redirect closed.
var (
	ErrMalformedURL     = errors.New("malformed destination URL")
	ErrInvalidSubdomain = errors.New("invalid affiliate subdomain")
	ErrUnsupportedHost  = errors.New("destination host cannot carry a subdomain")
)

// subdomainRegex matches a single DNS label.
var subdomainRegex = regexp.MustCompile(`^[a-zA-Z0-9]([a-zA-Z0-9-]{0,61}[a-zA-Z0-9])?$`)

// NormalizeURL trims the input and prefixes https:// when it carries no http(s) scheme.
func NormalizeURL(rawURL string) string {
	trimmed := strings.TrimSpace(rawURL)
	lower := strings.ToLower(trimmed)
	if strings.HasPrefix(lower, "http://") || strings.HasPrefix(lower, "https://") {
		return trimmed
	}
	return "https://" + trimmed
}

// ValidSubdomain reports whether s can be used as an affiliate subdomain label.
func ValidSubdomain(s string) bool {
	return subdomainRegex.MatchString(s)
}

// RewriteDomain moves a destination onto the affiliate's subdomain of the same base domain.
//
// With an empty subdomain the normalized URL is returned unchanged. Otherwise the
// result is https://{subdomain}.{base}{path}{?query}, where base is the last two
// labels of the host. Path and query are carried over byte for byte.
func RewriteDomain(rawURL, subdomain string) (string, error) {
	normalized := NormalizeURL(rawURL)

	u, err := url.Parse(normalized)
	if err != nil || u.Hostname() == "" {
		return "", ErrMalformedURL
	}

	subdomain = strings.TrimSpace(subdomain)
	if subdomain == "" {
		return normalized, nil
	}
	if !ValidSubdomain(subdomain) {
		return "", ErrInvalidSubdomain
	}

	host := u.Hostname()
	if net.ParseIP(host) != nil {
		return "", ErrUnsupportedHost
	}

	var b strings.Builder
	b.WriteString("https://")
	b.WriteString(subdomain)
	b.WriteByte('.')
	b.WriteString(BaseDomain(host))
	b.WriteString(rawPath(normalized))
	if u.RawQuery != "" || u.ForceQuery {
		b.WriteByte('?')
		b.WriteString(u.RawQuery)
	}
	return b.String(), nil
}

// rawPath returns the path of an absolute URL exactly as written, without
// re-encoding. It ends at the first '?' or '#'.
func rawPath(absURL string) string {
	rest := absURL[strings.Index(absURL, "://")+len("://"):]
	start := strings.IndexAny(rest, "/?#")
	if start < 0 || rest[start] != '/' {
		return ""
	}
	rest = rest[start:]
	if end := strings.IndexAny(rest, "?#"); end >= 0 {
		rest = rest[:end]
	}
	return rest
}

// BaseDomain returns the last two dot-separated labels of host.
// Hosts with two labels or fewer are returned as-is.
func BaseDomain(host string) string {
	host = strings.TrimSuffix(host, ".")
	labels := strings.Split(host, ".")
	if len(labels) <= 2 {
		return host
	}
	return strings.Join(labels[len(labels)-2:], ".")
}
