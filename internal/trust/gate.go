package trust

import (
	"net"
	"net/http"
	"net/url"
	"strings"
)

// Gate decides whether an embed or page-render request originates from an
// allowed domain, based on Referer/Origin header inspection. A single Gate
// instance backs every endpoint so the matching rules stay uniform.
type Gate struct {
	enforce        bool
	allowedDomains []string
	insecureBypass bool
}

// GateConfig configures origin enforcement.
type GateConfig struct {
	Enforce        bool
	AllowedDomains []string
	// InsecureBypass enables the source_domain query fallback on the embed
	// endpoint. It weakens the trust model and must stay off outside of
	// debugging deployments.
	InsecureBypass bool
}

// NewGate constructs a Gate with normalized allowlist entries.
func NewGate(cfg GateConfig) *Gate {
	normalized := make([]string, 0, len(cfg.AllowedDomains))
	for _, domain := range cfg.AllowedDomains {
		if host := normalizeDomain(domain); host != "" {
			normalized = append(normalized, host)
		}
	}
	return &Gate{
		enforce:        cfg.Enforce,
		allowedDomains: normalized,
		insecureBypass: cfg.InsecureBypass,
	}
}

// Enforced reports whether origin checking is active at all.
func (g *Gate) Enforced() bool {
	return g.enforce
}

// IsRequestTrusted checks the Referer and Origin headers against the
// allowlist. Either header matching is sufficient. A header whose host equals
// the serving host is trusted unconditionally: the service's own embed page
// loads the viewer in an iframe and must not need an allowlist entry. With
// enforcement on and neither header present the request is denied.
func (g *Gate) IsRequestTrusted(r *http.Request) bool {
	if !g.enforce {
		return true
	}
	if len(g.allowedDomains) == 0 {
		return true
	}

	referer := r.Header.Get("Referer")
	origin := r.Header.Get("Origin")
	if referer == "" && origin == "" {
		return false
	}

	requestHost := stripPort(r.Host)
	for _, header := range []string{referer, origin} {
		if header == "" {
			continue
		}
		host := headerHost(header)
		if host == "" {
			continue
		}
		if requestHost != "" && stripPort(host) == requestHost {
			return true
		}
		if g.matches(host) {
			return true
		}
	}
	return false
}

// IsSourceDomainTrusted implements the deliberately weaker embed fallback: a
// caller-supplied domain string checked against the allowlist. It only ever
// fires when the insecure bypass flag is set.
func (g *Gate) IsSourceDomainTrusted(sourceDomain string) bool {
	if !g.insecureBypass || sourceDomain == "" {
		return false
	}
	return g.matches(sourceDomain)
}

func (g *Gate) matches(candidate string) bool {
	normalized := normalizeDomain(candidate)
	if normalized == "" {
		return false
	}
	for _, allowed := range g.allowedDomains {
		if normalized == allowed {
			return true
		}
	}
	return false
}

// headerHost extracts the host from a header value, tolerating bare hosts
// without a scheme. Unparseable values count as non-matching, never as an
// error that would abort the whole check.
func headerHost(value string) string {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return ""
	}
	if strings.Contains(trimmed, "://") {
		parsed, err := url.Parse(trimmed)
		if err != nil || parsed.Host == "" {
			return ""
		}
		return strings.ToLower(parsed.Host)
	}
	return strings.ToLower(trimmed)
}

// normalizeDomain coerces an allowlist entry or header host to a comparable
// form: scheme added when absent, then host extracted, port and a leading
// "www." stripped.
func normalizeDomain(value string) string {
	trimmed := strings.TrimSpace(strings.ToLower(value))
	if trimmed == "" {
		return ""
	}
	if !strings.Contains(trimmed, "://") {
		trimmed = "https://" + trimmed
	}
	parsed, err := url.Parse(trimmed)
	if err != nil || parsed.Host == "" {
		return ""
	}
	return strings.TrimPrefix(stripPort(parsed.Host), "www.")
}

func stripPort(host string) string {
	host = strings.ToLower(strings.TrimSpace(host))
	if stripped, _, err := net.SplitHostPort(host); err == nil {
		return stripped
	}
	// No port. Bare IPv6 hosts may still carry brackets.
	return strings.Trim(host, "[]")
}
