// Package security guards outbound requests whose URL comes from a model.
package security

import (
	"net/netip"
	"net/url"
	"strings"

	"github.com/pkg/errors"
)

type OutboundOptions struct {
	// AllowHTTP permits plain http URLs. https is always allowed.
	AllowHTTP bool
	// AllowLocalNetworks permits loopback, private and link-local targets.
	AllowLocalNetworks bool
}

func isLocalHostname(host string) bool {
	return host == "localhost" || strings.HasSuffix(host, ".localhost") || strings.HasSuffix(host, ".local")
}

// ValidateOutboundURL rejects unsupported schemes and, unless allowed, local
// network targets. Only IP literals are checked; no DNS lookups are made.
func ValidateOutboundURL(rawURL string, opts OutboundOptions) error {
	u, err := url.Parse(rawURL)
	if err != nil {
		return errors.Wrapf(err, "invalid url %q", rawURL)
	}
	switch u.Scheme {
	case "https":
	case "http":
		if !opts.AllowHTTP {
			return errors.Errorf("http is not allowed: %q", rawURL)
		}
	default:
		return errors.Errorf("unsupported url scheme %q", u.Scheme)
	}

	host := strings.ToLower(u.Hostname())
	if host == "" {
		return errors.Errorf("url %q has no host", rawURL)
	}
	if opts.AllowLocalNetworks {
		return nil
	}
	if isLocalHostname(host) {
		return errors.Errorf("local host %q is not allowed", host)
	}
	addr, err := netip.ParseAddr(host)
	if err != nil {
		return nil
	}
	if addr.Zone() != "" {
		return errors.Errorf("zoned address %q is not allowed", host)
	}
	addr = addr.Unmap()
	if addr.IsUnspecified() || addr.IsMulticast() || addr.IsLoopback() ||
		addr.IsPrivate() || addr.IsLinkLocalUnicast() || addr.IsLinkLocalMulticast() {
		return errors.Errorf("local network address %q is not allowed", host)
	}
	return nil
}
