package lifecycle

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/metascope/backend/internal/proxy"
)

func TestStatusMessageEscalation(t *testing.T) {
	const url = "https://example.com"
	timeout := 10 * time.Second

	cases := []struct {
		elapsed time.Duration
		tone    Tone
		want    string
	}{
		{0, ToneNeutral, "Fetching https://example.com..."},
		{3 * time.Second, ToneNeutral, "Fetching https://example.com..."},
		{5 * time.Second, ToneCaution, "Still fetching https://example.com (5s elapsed)..."},
		{7900 * time.Millisecond, ToneCaution, "Still fetching https://example.com (8s elapsed)..."},
		{8 * time.Second, ToneUrgent, "Slow response from https://example.com, giving up at 10s (8s elapsed)"},
		{9500 * time.Millisecond, ToneUrgent, "Slow response from https://example.com, giving up at 10s (10s elapsed)"},
	}
	for _, tc := range cases {
		tone, msg := StatusMessage(url, tc.elapsed, timeout)
		assert.Equal(t, tc.tone, tone, "at %s", tc.elapsed)
		assert.Equal(t, tc.want, msg, "at %s", tc.elapsed)
	}
}

func TestPresentCoversEveryCode(t *testing.T) {
	codes := []proxy.Code{
		proxy.CodeInvalidURL,
		proxy.CodeProtocolBlocked,
		proxy.CodeSSRFBlocked,
		proxy.CodeDNSFailed,
		proxy.CodeTimeout,
		proxy.CodeTooManyRedirects,
		proxy.CodeResponseTooLarge,
		proxy.CodeUpstreamRefused,
		proxy.CodeUpstreamError,
		proxy.CodeRateLimited,
		proxy.CodeInternal,
	}
	for _, code := range codes {
		p := Present(code)
		assert.NotEmpty(t, p.Message, code)
		assert.NotEmpty(t, p.Suggestion, code)
	}
}

func TestPresentUnknownCodeFallsBack(t *testing.T) {
	assert.Equal(t, Present(proxy.CodeInternal), Present(proxy.Code("mystery")))
}

func TestPresentNeverExposesInternals(t *testing.T) {
	for code, p := range presentations {
		assert.NotContains(t, p.Message, string(code))
		assert.NotContains(t, p.Message, "SSRF")
		assert.NotContains(t, p.Message, "DNS")
	}
}
