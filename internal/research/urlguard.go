package research

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/netip"
	"net/url"
	"strconv"
	"strings"
)

var (
	errURLScheme  = errors.New("unsupported url scheme")
	errURLBlocked = errors.New("blocked url host")
	errURLPort    = errors.New("blocked url port")
)

// validateFetchURL rejects URLs the extractor must never fetch: non-http
// schemes, loopback and internal hostnames, and non-standard ports. Search
// backends return attacker-influenced URLs, so this runs before every fetch
// and on every redirect.
func validateFetchURL(rawURL string) (*url.URL, error) {
	parsed, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil {
		return nil, err
	}
	if parsed == nil || parsed.Host == "" {
		return nil, errors.New("url host is required")
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return nil, errURLScheme
	}

	hostname := strings.ToLower(strings.TrimSpace(parsed.Hostname()))
	if hostname == "" {
		return nil, errors.New("url hostname is required")
	}
	if hostnameIsInternal(hostname) {
		return nil, errURLBlocked
	}
	if port := strings.TrimSpace(parsed.Port()); port != "" {
		n, err := strconv.Atoi(port)
		if err != nil || (n != 80 && n != 443) {
			return nil, errURLPort
		}
	}
	return parsed, nil
}

func hostnameIsInternal(hostname string) bool {
	if hostname == "localhost" || strings.HasSuffix(hostname, ".localhost") {
		return true
	}
	if strings.HasSuffix(hostname, ".local") || strings.HasSuffix(hostname, ".internal") {
		return true
	}
	if ip, err := netip.ParseAddr(hostname); err == nil {
		return addrIsPrivate(ip)
	}
	return false
}

func addrIsPrivate(ip netip.Addr) bool {
	if !ip.IsValid() {
		return true
	}
	if ip.IsLoopback() || ip.IsLinkLocalUnicast() || ip.IsLinkLocalMulticast() || ip.IsMulticast() || ip.IsPrivate() || ip.IsUnspecified() {
		return true
	}
	if ip.Is6() {
		if ip.IsInterfaceLocalMulticast() {
			return true
		}
		// fc00::/7 unique-local range.
		raw := ip.String()
		if strings.HasPrefix(raw, "fc") || strings.HasPrefix(raw, "fd") {
			return true
		}
	}
	return false
}

// guardedDialContext re-checks resolved addresses at dial time so a public
// hostname cannot smuggle in a private A record.
func guardedDialContext(base *net.Dialer) func(context.Context, string, string) (net.Conn, error) {
	if base == nil {
		base = &net.Dialer{}
	}
	return func(ctx context.Context, network, address string) (net.Conn, error) {
		host, _, err := net.SplitHostPort(address)
		if err != nil {
			host = address
		}
		host = strings.TrimSpace(host)
		if host == "" {
			return nil, errors.New("empty host")
		}
		if hostnameIsInternal(host) {
			return nil, errURLBlocked
		}

		ips, err := net.DefaultResolver.LookupIP(ctx, "ip", host)
		if err != nil {
			return nil, err
		}
		if len(ips) == 0 {
			return nil, fmt.Errorf("no ip addresses for host %q", host)
		}
		for _, ip := range ips {
			addr, ok := netip.AddrFromSlice(ip)
			if !ok {
				continue
			}
			if addrIsPrivate(addr) {
				return nil, errURLBlocked
			}
		}
		return base.DialContext(ctx, network, address)
	}
}
