package trust

import (
	"net"
	"net/http"
	"strings"
)

// UnknownClientIP is recorded when no usable address can be determined.
const UnknownClientIP = "unknown"

// forwardingHeaders in priority order. X-Forwarded-For carries a
// comma-separated chain where the leftmost entry is the original client.
var forwardingHeaders = []string{
	"X-Forwarded-For",
	"X-Real-IP",
	"X-Client-IP",
	"CF-Connecting-IP",
	"True-Client-IP",
	"X-Forwarded",
	"Forwarded-For",
}

// internalRanges cover loopback and private networks. An address in one of
// these ranges indicates a proxy or container hop, not the real client.
var internalRanges = mustParseCIDRs(
	"127.0.0.0/8",
	"10.0.0.0/8",
	"172.16.0.0/12",
	"192.168.0.0/16",
	"::1/128",
	"fd00::/8",
)

// ClientIP resolves a best-effort client address for forensic watermarking.
// Forwarding headers are consulted in priority order, skipping values in
// internal ranges; the raw peer address is the fallback, and UnknownClientIP
// the sentinel when nothing usable exists. The result is never used for
// authorization decisions.
func ClientIP(r *http.Request) string {
	for _, header := range forwardingHeaders {
		value := r.Header.Get(header)
		if value == "" {
			continue
		}
		candidate := strings.TrimSpace(strings.SplitN(value, ",", 2)[0])
		if UsableClientIP(candidate) {
			return candidate
		}
	}

	peer := remoteHost(r.RemoteAddr)
	if UsableClientIP(peer) {
		return peer
	}
	return UnknownClientIP
}

// UsableClientIP reports whether candidate is a valid, publicly routable IP
// address. Private and loopback ranges are proxy artifacts, not viewers.
func UsableClientIP(candidate string) bool {
	parsed := net.ParseIP(candidate)
	if parsed == nil {
		return false
	}
	for _, network := range internalRanges {
		if network.Contains(parsed) {
			return false
		}
	}
	return true
}

func remoteHost(remoteAddr string) string {
	host, _, err := net.SplitHostPort(remoteAddr)
	if err != nil {
		return remoteAddr
	}
	return host
}

func mustParseCIDRs(cidrs ...string) []*net.IPNet {
	networks := make([]*net.IPNet, 0, len(cidrs))
	for _, cidr := range cidrs {
		_, network, err := net.ParseCIDR(cidr)
		if err != nil {
			panic(err)
		}
		networks = append(networks, network)
	}
	return networks
}
