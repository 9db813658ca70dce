package proxy

import (
	"context"
	"fmt"
	"net"
	"net/url"
	"strings"
)

// blockedHosts are hostname literals rejected before any DNS work. They catch
// hosts-file style bypasses that would never reach the resolver.
var blockedHosts = map[string]struct{}{
	"localhost":                {},
	"127.0.0.1":                {},
	"0.0.0.0":                  {},
	"::1":                      {},
	"[::1]":                    {},
	"metadata.google.internal": {},
	"metadata.goog":            {},
	"169.254.169.254":          {},
}

// Resolver is the subset of net.Resolver the validator needs. Injected so
// policy decisions stay unit-testable without real DNS.
type Resolver interface {
	LookupIPAddr(ctx context.Context, host string) ([]net.IPAddr, error)
}

// Verdict is the outcome of validating one candidate URL. Verdicts are
// produced fresh per call and never cached: DNS answers change between calls,
// and re-validating every hop is the rebinding defense.
type Verdict struct {
	Allowed bool
	Reason  string
	Code    Code     // taxonomy code when rejected
	Addrs   []net.IP // resolved addresses when allowed and DNS was consulted
}

func reject(code Code, reason string) Verdict {
	return Verdict{Reason: reason, Code: code}
}

// Validator enforces the URL admission policy. The fetcher re-runs it on
// every redirect hop; callers outside the fetcher only validate the origin.
type Validator struct {
	policy   Policy
	resolver Resolver
}

// ValidatorOption customizes a Validator.
type ValidatorOption func(*Validator)

// WithResolver replaces the DNS resolver, for tests and for deployments with
// a dedicated resolver.
func WithResolver(r Resolver) ValidatorOption {
	return func(v *Validator) { v.resolver = r }
}

// NewValidator creates a Validator bound to the given policy.
func NewValidator(policy Policy, opts ...ValidatorOption) *Validator {
	v := &Validator{policy: policy, resolver: net.DefaultResolver}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// Validate runs the admission checks against one candidate URL. Each check is
// a hard rejection with a distinct reason; nothing is repaired best-effort.
func (v *Validator) Validate(ctx context.Context, candidate string) Verdict {
	if strings.TrimSpace(candidate) == "" {
		return reject(CodeInvalidURL, "url is empty")
	}
	if len(candidate) > v.policy.MaxURLLength {
		return reject(CodeInvalidURL, fmt.Sprintf("url exceeds %d characters", v.policy.MaxURLLength))
	}

	parsed, err := url.Parse(candidate)
	if err != nil || !parsed.IsAbs() || parsed.Hostname() == "" {
		return reject(CodeInvalidURL, "url is not a valid absolute URL")
	}
	if parsed.User != nil {
		return reject(CodeInvalidURL, "urls with embedded credentials are not allowed")
	}

	// Host checks run before scheme policy so a blocked target is always
	// reported as a security rejection, never masked as a protocol one.
	host := strings.ToLower(strings.TrimSuffix(parsed.Hostname(), "."))
	if _, blocked := blockedHosts[host]; blocked {
		return reject(CodeSSRFBlocked, "host is not fetchable")
	}
	literal := net.ParseIP(host)
	if literal != nil && IsPrivateIP(literal) {
		return reject(CodeSSRFBlocked, "host is a private or reserved address")
	}

	switch strings.ToLower(parsed.Scheme) {
	case "https":
	case "http":
		if v.policy.Production || !v.policy.AllowHTTPInDev {
			return reject(CodeProtocolBlocked, "http urls are not allowed in this environment")
		}
	default:
		return reject(CodeProtocolBlocked, fmt.Sprintf("scheme %q is not allowed", parsed.Scheme))
	}

	// IP literals are classified above; everything else goes through DNS for
	// both address families.
	if literal != nil {
		return Verdict{Allowed: true, Addrs: []net.IP{literal}}
	}

	addrs, err := v.resolver.LookupIPAddr(ctx, host)
	if err != nil || len(addrs) == 0 {
		return Verdict{Reason: "hostname could not be resolved", Code: CodeDNSFailed}
	}
	ips := make([]net.IP, 0, len(addrs))
	for _, addr := range addrs {
		// One private address anywhere in the answer set rejects the URL.
		if IsPrivateIP(addr.IP) {
			return reject(CodeSSRFBlocked, "host resolves to a private or reserved address")
		}
		ips = append(ips, addr.IP)
	}
	return Verdict{Allowed: true, Addrs: ips}
}
