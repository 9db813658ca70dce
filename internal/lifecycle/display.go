package lifecycle

import (
	"fmt"
	"time"

	"github.com/metascope/backend/internal/proxy"
)

// Tone grades the urgency of a status message.
type Tone string

const (
	ToneNeutral Tone = "neutral"
	ToneCaution Tone = "caution"
	ToneUrgent  Tone = "urgent"
)

// escalationStep maps an elapsed-time threshold to a tone and message
// template. Held as data so the escalation is testable with an injected
// elapsed value; no real timers needed.
type escalationStep struct {
	After  time.Duration
	Tone   Tone
	Render func(url string, elapsed, timeout time.Duration) string
}

var escalationSteps = []escalationStep{
	{
		After: 0,
		Tone:  ToneNeutral,
		Render: func(url string, _, _ time.Duration) string {
			return fmt.Sprintf("Fetching %s...", url)
		},
	},
	{
		After: 5 * time.Second,
		Tone:  ToneCaution,
		Render: func(url string, elapsed, _ time.Duration) string {
			return fmt.Sprintf("Still fetching %s (%.0fs elapsed)...", url, elapsed.Seconds())
		},
	},
	{
		After: 8 * time.Second,
		Tone:  ToneUrgent,
		Render: func(url string, elapsed, timeout time.Duration) string {
			return fmt.Sprintf("Slow response from %s, giving up at %.0fs (%.0fs elapsed)",
				url, timeout.Seconds(), elapsed.Seconds())
		},
	},
}

// StatusMessage derives the display line for an in-flight fetch from elapsed
// time and the configured timeout. Purely presentational: the fetch itself
// is bounded independently by the proxy deadline.
func StatusMessage(url string, elapsed, timeout time.Duration) (Tone, string) {
	step := escalationSteps[0]
	for _, s := range escalationSteps[1:] {
		if elapsed >= s.After {
			step = s
		}
	}
	return step.Tone, step.Render(url, elapsed, timeout)
}

// Presentation is the human-facing rendering of one error code.
type Presentation struct {
	Message    string
	Suggestion string
}

// presentations maps every taxonomy code to a canned message and next
// action. The paste/manual-input path stays available regardless of which
// error is shown.
var presentations = map[proxy.Code]Presentation{
	proxy.CodeInvalidURL: {
		Message:    "That doesn't look like a valid URL.",
		Suggestion: "Check the address for typos, or paste the page HTML directly.",
	},
	proxy.CodeProtocolBlocked: {
		Message:    "Only https URLs can be fetched.",
		Suggestion: "Use the https version of the address.",
	},
	proxy.CodeSSRFBlocked: {
		Message:    "Only public URLs can be fetched.",
		Suggestion: "Make sure the address points at a public website.",
	},
	proxy.CodeDNSFailed: {
		Message:    "That hostname could not be found.",
		Suggestion: "Check the domain name, or try again in a moment.",
	},
	proxy.CodeTimeout: {
		Message:    "The site took too long to respond.",
		Suggestion: "Try again, or paste the page HTML directly.",
	},
	proxy.CodeTooManyRedirects: {
		Message:    "The site redirected too many times.",
		Suggestion: "Try the final destination URL instead.",
	},
	proxy.CodeResponseTooLarge: {
		Message:    "The page is too large to fetch.",
		Suggestion: "Paste just the page's head section directly.",
	},
	proxy.CodeUpstreamRefused: {
		Message:    "The site refused the connection.",
		Suggestion: "Check the site is up, then try again.",
	},
	proxy.CodeUpstreamError: {
		Message:    "The site returned an error.",
		Suggestion: "Try again, or paste the page HTML directly.",
	},
	proxy.CodeRateLimited: {
		Message:    "Too many requests right now.",
		Suggestion: "Wait a few seconds and try again.",
	},
	proxy.CodeInternal: {
		Message:    "Something went wrong on our side.",
		Suggestion: "Try again, or paste the page HTML directly.",
	},
}

// Present maps an error code to its display pair, falling back to the
// internal-error rendering for unknown codes.
func Present(code proxy.Code) Presentation {
	if p, ok := presentations[code]; ok {
		return p
	}
	return presentations[proxy.CodeInternal]
}
