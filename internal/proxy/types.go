package proxy

import "time"

// Policy is the immutable per-call configuration the pipeline runs under.
// It is supplied by the caller at construction time; nothing in this package
// reads ambient configuration.
type Policy struct {
	Timeout        time.Duration
	MaxRedirects   int
	MaxBytes       int64
	MaxURLLength   int
	UserAgent      string
	Production     bool
	AllowHTTPInDev bool
}

// DefaultPolicy returns the fetch policy used when nothing is configured.
func DefaultPolicy() Policy {
	return Policy{
		Timeout:        10 * time.Second,
		MaxRedirects:   5,
		MaxBytes:       2 << 20,
		MaxURLLength:   2048,
		UserAgent:      "MetascopeBot/1.0 (+https://metascope.dev/bot)",
		AllowHTTPInDev: true,
	}
}

// RedirectHop records one request/response pair inside a redirect chain.
type RedirectHop struct {
	Status int    `json:"status"`
	From   string `json:"from"`
	To     string `json:"to"`
}

// Result is the outcome of one completed fetch. It is constructed once,
// returned to the caller and never mutated afterwards.
type Result struct {
	URL           string        `json:"url"`
	FinalURL      string        `json:"finalUrl"`
	StatusCode    int           `json:"statusCode"`
	ContentType   string        `json:"contentType"`
	Head          string        `json:"head"`
	BodySnippet   string        `json:"bodySnippet"`
	RedirectChain []RedirectHop `json:"redirectChain"`
	FetchedAt     time.Time     `json:"fetchedAt"`
	TimingMillis  int64         `json:"timing"`
}

// Caller identifies the requesting client for the terminal log event.
// It never influences the outbound request.
type Caller struct {
	IP        string
	UserAgent string
}
