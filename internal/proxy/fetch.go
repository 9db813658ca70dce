package proxy

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"
	"golang.org/x/net/html/charset"

	"github.com/metascope/backend/internal/infrastructure/logging"
)

// Fetcher performs the redirect-bounded GET. Auto-following is disabled at
// the transport level; every hop target is re-validated before it is fetched.
// A Fetcher holds no per-request state and is safe for concurrent use.
type Fetcher struct {
	policy    Policy
	validator *Validator
	client    *resty.Client
	log       *logging.Logger
}

// FetcherOption customizes a Fetcher.
type FetcherOption func(*Fetcher)

// WithTransport replaces the outbound transport. Tests use this to route
// requests at a local upstream; production keeps the guarded default.
func WithTransport(rt http.RoundTripper) FetcherOption {
	return func(f *Fetcher) { f.client.SetTransport(rt) }
}

// NewFetcher creates a Fetcher bound to a policy and validator.
//
// The default transport re-resolves and re-checks every address at dial time
// and connects directly to a vetted address. Together with per-hop
// validation this closes most of the resolve-to-connect TOCTOU window; the
// residual risk is a resolver answer changing between the dial-time lookup
// and the kernel connect, which no userspace HTTP client can eliminate.
func NewFetcher(policy Policy, validator *Validator, log *logging.Logger, opts ...FetcherOption) *Fetcher {
	transport := &http.Transport{
		Proxy:             nil, // never route through environment proxies
		DialContext:       guardedDialContext(validator.resolver),
		ForceAttemptHTTP2: true,
	}

	client := resty.New().
		SetTransport(transport).
		SetRedirectPolicy(resty.RedirectPolicyFunc(func(req *http.Request, via []*http.Request) error {
			return http.ErrUseLastResponse
		})).
		SetDoNotParseResponse(true).
		SetCookieJar(nil).
		SetHeader("User-Agent", policy.UserAgent).
		SetHeader("Accept", "text/html,application/xhtml+xml;q=0.9,*/*;q=0.5")

	f := &Fetcher{
		policy:    policy,
		validator: validator,
		client:    client,
		log:       log.Component("fetcher"),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// redirectStatuses are the response classes that continue the hop loop.
var redirectStatuses = map[int]bool{
	http.StatusMovedPermanently:  true,
	http.StatusFound:             true,
	http.StatusSeeOther:          true,
	http.StatusTemporaryRedirect: true,
	http.StatusPermanentRedirect: true,
}

// Fetch retrieves rawURL, following up to MaxRedirects hops. Every hop is
// validated before its GET; a rejected hop fails the whole operation. One
// structured log event is emitted per terminal outcome.
func (f *Fetcher) Fetch(ctx context.Context, rawURL string, caller Caller) (*Result, *Error) {
	start := time.Now()
	result, ferr := f.follow(ctx, rawURL)
	timing := time.Since(start).Milliseconds()

	if ferr != nil {
		f.log.Warn("fetch failed",
			zap.String("url", rawURL),
			zap.String("code", string(ferr.Code)),
			zap.Int("hop", ferr.Hop),
			zap.Int64("timing_ms", timing),
			zap.String("caller_ip", caller.IP),
			zap.String("caller_ua", caller.UserAgent),
			zap.Error(ferr),
		)
		return nil, ferr
	}

	result.TimingMillis = timing
	f.log.Info("fetch completed",
		zap.String("url", rawURL),
		zap.String("final_url", result.FinalURL),
		zap.Int("status", result.StatusCode),
		zap.Int64("timing_ms", timing),
		zap.Int("redirects", len(result.RedirectChain)),
		zap.Int("response_bytes", len(result.Head)+len(result.BodySnippet)),
		zap.String("caller_ip", caller.IP),
		zap.String("caller_ua", caller.UserAgent),
	)
	return result, nil
}

// follow runs the sequential hop loop. Hops are inherently ordered: each
// depends on the previous response's Location header, so there is nothing to
// parallelize or prefetch.
func (f *Fetcher) follow(ctx context.Context, rawURL string) (*Result, *Error) {
	current := rawURL
	chain := make([]RedirectHop, 0, f.policy.MaxRedirects)

	for hop := 0; ; hop++ {
		verdict := f.validator.Validate(ctx, current)
		if !verdict.Allowed {
			reason := verdict.Reason
			if hop > 0 {
				reason = fmt.Sprintf("redirect hop %d blocked: %s", hop, verdict.Reason)
			}
			return nil, &Error{Code: verdict.Code, Message: reason, Hop: hop}
		}

		status, header, body, ferr := f.get(ctx, current)
		if ferr != nil {
			ferr.Hop = hop
			return nil, ferr
		}

		location := header.Get("Location")
		if redirectStatuses[status] && location != "" {
			next, err := resolveLocation(current, location)
			if err != nil {
				return nil, &Error{
					Code:    CodeUpstreamError,
					Message: "the server sent an unusable redirect",
					Hop:     hop,
					cause:   err,
				}
			}
			chain = append(chain, RedirectHop{Status: status, From: current, To: next})
			if len(chain) > f.policy.MaxRedirects {
				return nil, &Error{
					Code:    CodeTooManyRedirects,
					Message: fmt.Sprintf("more than %d redirects", f.policy.MaxRedirects),
					Hop:     hop,
				}
			}
			current = next
			continue
		}

		return f.assemble(rawURL, current, status, header, body, chain), nil
	}
}

// get performs one bounded GET. The per-hop deadline aborts the in-flight
// request, not just the wait for it, so timed-out hops do not leak outbound
// connections. The body is read through a running byte counter and the read
// stops the moment the cap is crossed.
func (f *Fetcher) get(ctx context.Context, target string) (int, http.Header, []byte, *Error) {
	hopCtx, cancel := context.WithTimeout(ctx, f.policy.Timeout)
	defer cancel()

	resp, err := f.client.R().SetContext(hopCtx).Get(target)
	if err != nil {
		return 0, nil, nil, classifyTransport(err)
	}
	raw := resp.RawBody()
	defer raw.Close()

	status := resp.StatusCode()
	if redirectStatuses[status] {
		// Redirect bodies are never read; only the Location header matters.
		return status, resp.Header(), nil, nil
	}

	body, rerr := io.ReadAll(io.LimitReader(raw, f.policy.MaxBytes+1))
	if rerr != nil {
		return 0, nil, nil, classifyTransport(rerr)
	}
	if int64(len(body)) > f.policy.MaxBytes {
		return 0, nil, nil, newError(CodeResponseTooLarge,
			fmt.Sprintf("response exceeds %d bytes", f.policy.MaxBytes), nil)
	}
	return status, resp.Header(), body, nil
}

// assemble builds the immutable Result from the terminal response.
func (f *Fetcher) assemble(requested, final string, status int, header http.Header, body []byte, chain []RedirectHop) *Result {
	contentType := header.Get("Content-Type")
	if contentType == "" {
		contentType = mimetype.Detect(body).String()
	}

	html := decodeBody(body, contentType)
	return &Result{
		URL:           requested,
		FinalURL:      final,
		StatusCode:    status,
		ContentType:   contentType,
		Head:          ExtractHead(html),
		BodySnippet:   ExtractBodySnippet(html),
		RedirectChain: chain,
		FetchedAt:     time.Now().UTC(),
	}
}

// decodeBody converts the payload to UTF-8 using the declared or sniffed
// charset. Decoding failures fall back to the raw bytes; sanitization is
// best-effort by contract.
func decodeBody(body []byte, contentType string) string {
	reader, err := charset.NewReader(bytes.NewReader(body), contentType)
	if err != nil {
		return string(body)
	}
	decoded, err := io.ReadAll(reader)
	if err != nil {
		return string(body)
	}
	return string(decoded)
}

// resolveLocation resolves a Location header against the current URL.
func resolveLocation(current, location string) (string, error) {
	base, err := url.Parse(current)
	if err != nil {
		return "", err
	}
	ref, err := url.Parse(location)
	if err != nil {
		return "", err
	}
	return base.ResolveReference(ref).String(), nil
}

// guardedDialContext blocks connections to private, reserved and loopback
// addresses at dial time and connects directly to a vetted address. This is
// the second layer behind per-hop validation: even if a resolver answer
// changes between validation and connect, the dialed address itself is
// checked.
func guardedDialContext(resolver Resolver) func(ctx context.Context, network, addr string) (net.Conn, error) {
	return func(ctx context.Context, network, addr string) (net.Conn, error) {
		host, port, err := net.SplitHostPort(addr)
		if err != nil {
			return nil, newError(CodeSSRFBlocked, "host is not fetchable", err)
		}

		dialer := &net.Dialer{Timeout: 10 * time.Second}
		if ip := net.ParseIP(host); ip != nil {
			if IsPrivateIP(ip) {
				return nil, newError(CodeSSRFBlocked, "host is a private or reserved address", nil)
			}
			return dialer.DialContext(ctx, network, addr)
		}

		addrs, err := resolver.LookupIPAddr(ctx, host)
		if err != nil {
			return nil, err
		}
		if len(addrs) == 0 {
			return nil, newError(CodeDNSFailed, "hostname could not be resolved", nil)
		}
		for _, a := range addrs {
			if IsPrivateIP(a.IP) {
				return nil, newError(CodeSSRFBlocked, "host resolves to a private or reserved address", nil)
			}
		}
		return dialer.DialContext(ctx, network, net.JoinHostPort(addrs[0].IP.String(), port))
	}
}
