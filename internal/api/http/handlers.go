package http

import (
	"context"
	"io"
	"net/http"
	"time"

	"github.com/bytedance/sonic/decoder"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/metascope/backend/internal/infrastructure/logging"
	"github.com/metascope/backend/internal/infrastructure/monitoring"
	"github.com/metascope/backend/internal/metadata"
	"github.com/metascope/backend/internal/proxy"
)

// maxRequestBytes bounds the inbound request body. The only legal payload is
// a single URL, so anything near this limit is already garbage.
const maxRequestBytes = 4096

// Fetcher runs the validate/fetch/sanitize pipeline.
type Fetcher interface {
	Fetch(ctx context.Context, url string, caller proxy.Caller) (*proxy.Result, *proxy.Error)
}

// Handlers contains all HTTP handlers.
type Handlers struct {
	fetcher Fetcher
	policy  proxy.Policy
	parser  *metadata.Parser
	metrics *monitoring.Metrics
	log     *logging.Logger
}

// NewHandlers creates a new handler set. The policy is echoed on the health
// endpoint; the fetcher is assumed to run under the same one.
func NewHandlers(fetcher Fetcher, policy proxy.Policy, parser *metadata.Parser, metrics *monitoring.Metrics, log *logging.Logger) *Handlers {
	return &Handlers{
		fetcher: fetcher,
		policy:  policy,
		parser:  parser,
		metrics: metrics,
		log:     log.Component("api"),
	}
}

// fetchRequest is the strict inbound schema: exactly one field. Unknown
// fields are a hard rejection, not silently ignored.
type fetchRequest struct {
	URL string `json:"url"`
}

// fetchResponse is the success payload.
type fetchResponse struct {
	OK bool `json:"ok"`
	*proxy.Result
	Meta *metadata.Tags `json:"meta,omitempty"`
}

// errorResponse carries only the classified code and a safe message. Raw
// causes never appear here.
type errorResponse struct {
	OK    bool   `json:"ok"`
	Code  string `json:"code"`
	Error string `json:"error"`
}

// Health handles the liveness check. Only non-secret policy fields are
// echoed.
func (h *Handlers) Health(c *gin.Context) {
	environment := "development"
	if h.policy.Production {
		environment = "production"
	}
	c.JSON(http.StatusOK, gin.H{
		"status":      "online",
		"service":     "metascope-proxy",
		"environment": environment,
		"limits": gin.H{
			"timeoutMs":    h.policy.Timeout.Milliseconds(),
			"maxRedirects": h.policy.MaxRedirects,
			"maxBytes":     h.policy.MaxBytes,
			"maxUrlLength": h.policy.MaxURLLength,
		},
	})
}

// Fetch handles POST /api/fetch: decode the strict schema, run the pipeline,
// parse the sanitized head and answer with the structured result or a
// classified error.
func (h *Handlers) Fetch(c *gin.Context) {
	req, ok := h.decodeRequest(c)
	if !ok {
		return
	}

	caller := proxy.Caller{IP: c.ClientIP(), UserAgent: c.Request.UserAgent()}
	start := time.Now()

	result, ferr := h.fetcher.Fetch(c.Request.Context(), req.URL, caller)
	if ferr != nil {
		h.metrics.RecordFetch(string(ferr.Code), time.Since(start), 0, ferr.Hop)
		c.JSON(ferr.Code.HTTPStatus(), errorResponse{
			Code:  string(ferr.Code),
			Error: ferr.Message,
		})
		return
	}

	h.metrics.RecordFetch("ok", time.Since(start),
		len(result.Head)+len(result.BodySnippet), len(result.RedirectChain))

	c.JSON(http.StatusOK, fetchResponse{
		OK:     true,
		Result: result,
		Meta:   h.parser.Parse(result.Head),
	})
}

// decodeRequest enforces the single-field schema. Any shape violation is an
// invalid_url rejection before the pipeline runs.
func (h *Handlers) decodeRequest(c *gin.Context) (fetchRequest, bool) {
	body, err := io.ReadAll(io.LimitReader(c.Request.Body, maxRequestBytes))
	if err != nil {
		h.rejectRequest(c, "request body could not be read")
		return fetchRequest{}, false
	}

	var req fetchRequest
	dec := decoder.NewDecoder(string(body))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		h.log.Debug("rejected malformed request", zap.Error(err))
		h.rejectRequest(c, `request body must be {"url": "..."} with no other fields`)
		return fetchRequest{}, false
	}
	if req.URL == "" {
		h.rejectRequest(c, "url is required")
		return fetchRequest{}, false
	}
	return req, true
}

func (h *Handlers) rejectRequest(c *gin.Context, message string) {
	c.JSON(http.StatusBadRequest, errorResponse{
		Code:  string(proxy.CodeInvalidURL),
		Error: message,
	})
}
