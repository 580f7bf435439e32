package parse

import (
	"net"
	"net/url"
	"strings"

	"github.com/Sriram-PR/msg-photos/pkg/utils"
)

// NormalizeLink turns the visible text of an attachment link into a fetchable URL.
// Scheme and host are lowercased and default ports dropped. Path and query are kept as-is.
func NormalizeLink(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", utils.WrapErrorf(utils.ErrParsing, "empty attachment link")
	}

	u, err := url.Parse(raw)
	if err != nil {
		return "", utils.WrapErrorf(utils.ErrParsing, "attachment link URL '%s': %v", raw, err)
	}

	u.Scheme = strings.ToLower(u.Scheme)
	if u.Scheme != "http" && u.Scheme != "https" {
		return "", utils.WrapErrorf(utils.ErrParsing, "attachment link URL '%s' has unsupported scheme", raw)
	}
	if u.Host == "" {
		return "", utils.WrapErrorf(utils.ErrParsing, "attachment link URL '%s' has no host", raw)
	}

	u.Host = strings.ToLower(u.Host)
	if host, port, err := net.SplitHostPort(u.Host); err == nil {
		if (u.Scheme == "http" && port == "80") || (u.Scheme == "https" && port == "443") {
			u.Host = host
		}
	}
	u.Fragment = ""

	return u.String(), nil
}
