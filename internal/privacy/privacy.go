// Package privacy scrubs credentials and host names from messages before
// they reach logs, push notifications or error telemetry.
package privacy

import (
	"crypto/sha256"
	"fmt"
	"net/url"
	"regexp"
	"strings"
)

// Any scheme://rest token, which covers broker URLs (tcp, ssl, ws) and
// shoutrrr service URLs (telegram, discord, ntfy, ...).
var urlPattern = regexp.MustCompile(`\b[a-zA-Z][a-zA-Z0-9+.-]*://\S+`)

// ScrubMessage replaces every URL in message with an anonymized token.
func ScrubMessage(message string) string {
	return urlPattern.ReplaceAllStringFunc(message, AnonymizeURL)
}

// AnonymizeURL maps a URL to a stable token that keeps the scheme and the
// kind of host so identical endpoints can still be correlated in logs.
func AnonymizeURL(rawURL string) string {
	parsed, err := url.Parse(rawURL)
	if err != nil || parsed.Scheme == "" {
		hash := sha256.Sum256([]byte(rawURL))
		return fmt.Sprintf("url-hash-%x", hash[:8])
	}

	parts := []string{parsed.Scheme, categorizeHost(parsed.Hostname())}
	if port := parsed.Port(); port != "" {
		parts = append(parts, "port-"+port)
	}
	hash := sha256.Sum256([]byte(strings.Join(parts, ":") + parsed.Path))
	return fmt.Sprintf("%s://%s/url-%x", parsed.Scheme, parts[1], hash[:8])
}

// RedactURL strips the password from a URL for display, keeping the rest.
// Values that do not parse are returned unchanged.
func RedactURL(rawURL string) string {
	parsed, err := url.Parse(rawURL)
	if err != nil || parsed.User == nil {
		return rawURL
	}
	return parsed.Redacted()
}

func categorizeHost(host string) string {
	switch {
	case host == "":
		return "no-host"
	case host == "localhost" || strings.HasPrefix(host, "127.") || host == "::1":
		return "localhost"
	case isPrivateIP(host):
		return "private-ip"
	case strings.HasSuffix(host, ".local"):
		return "mdns"
	default:
		return "remote"
	}
}

func isPrivateIP(host string) bool {
	return strings.HasPrefix(host, "10.") ||
		strings.HasPrefix(host, "192.168.") ||
		(strings.HasPrefix(host, "172.") && isPrivate172(host))
}

func isPrivate172(host string) bool {
	var second int
	if _, err := fmt.Sscanf(host, "172.%d.", &second); err != nil {
		return false
	}
	return second >= 16 && second <= 31
}
