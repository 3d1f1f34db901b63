// Package urlx normalises URLs before they reach the dogear engine, which
// itself compares strings literally.
package urlx

import (
	"net/url"
	"strings"

	"github.com/dmitrijs2005/eardogger/internal/common"
)

// hostPrefixes are dropped, stacked or not, so that m.example.com and
// www.m.example.com share one dogear with example.com.
var hostPrefixes = []string{"www.", "m."}

// cutScheme checks that raw is a parseable http(s) URL with a host and
// returns it without the scheme and separator.
func cutScheme(raw string) (string, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return "", common.Validationf("invalid url %q", raw)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return "", common.Validationf("url %q is not http or https", raw)
	}
	if u.Host == "" {
		return "", common.Validationf("url %q has no host", raw)
	}
	return raw[len(u.Scheme)+len("://"):], nil
}

func trimHost(rest string) string {
	for {
		trimmed := false
		for _, p := range hostPrefixes {
			if strings.HasPrefix(rest, p) {
				rest = rest[len(p):]
				trimmed = true
			}
		}
		if !trimmed {
			return rest
		}
	}
}

// Matchable turns a page URL into the form dogear prefixes are compared
// against. It is also the check that a page URL is usable at all.
func Matchable(raw string) (string, error) {
	rest, err := cutScheme(strings.TrimSpace(raw))
	if err != nil {
		return "", err
	}
	rest = trimHost(rest)
	if rest == "" {
		return "", common.Validationf("url %q has no host", raw)
	}
	return rest, nil
}

// NormalizePrefix is Matchable for user typed prefixes, where the scheme is
// often left off.
func NormalizePrefix(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	rest, err := cutScheme(raw)
	if err != nil {
		if strings.Contains(raw, "://") {
			return "", err
		}
		rest = raw
	}
	rest = trimHost(rest)
	if rest == "" {
		return "", common.Validationf("prefix must not be empty")
	}
	return rest, nil
}

// Origin returns scheme://host[:port] of raw, lowercased, or "" if raw is
// not an absolute http(s) URL.
func Origin(raw string) string {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil || u.Host == "" {
		return ""
	}
	scheme := strings.ToLower(u.Scheme)
	if scheme != "http" && scheme != "https" {
		return ""
	}
	host := strings.ToLower(u.Host)
	if port := u.Port(); (scheme == "http" && port == "80") || (scheme == "https" && port == "443") {
		host = strings.TrimSuffix(host, ":"+port)
	}
	return scheme + "://" + host
}

// IsRelative reports whether raw is a same-site path safe to redirect to.
func IsRelative(raw string) bool {
	if !strings.HasPrefix(raw, "/") || strings.HasPrefix(raw, "//") || strings.HasPrefix(raw, "/\\") {
		return false
	}
	u, err := url.Parse(raw)
	return err == nil && u.Scheme == "" && u.Host == ""
}
