package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/slidewise/modelgate/internal/aierrors"
	"github.com/slidewise/modelgate/internal/cache"
	"github.com/slidewise/modelgate/internal/metrics"
	"github.com/slidewise/modelgate/internal/orchestrator"
	"github.com/slidewise/modelgate/internal/ratelimit"
)

type generateRequest struct {
	Prompt      string  `json:"prompt"`
	Backend     string  `json:"backend,omitempty"`
	Model       string  `json:"model,omitempty"`
	Temperature float64 `json:"temperature,omitempty"`
	MaxTokens   int     `json:"max_tokens,omitempty"`
	TopP        float64 `json:"top_p,omitempty"`
	TopK        int     `json:"top_k,omitempty"`
	System      string  `json:"system,omitempty"`
	NoCache     bool    `json:"no_cache,omitempty"`
}

type generateResponse struct {
	RequestID         string   `json:"request_id,omitempty"`
	Text              string   `json:"text"`
	TokensUsed        int      `json:"tokens_used"`
	Backend           string   `json:"backend,omitempty"`
	Model             string   `json:"model,omitempty"`
	Cached            bool     `json:"cached"`
	LatencyMS         int64    `json:"latency_ms"`
	AttemptedBackends []string `json:"attempted_backends,omitempty"`
}

type errorResponse struct {
	Error errorBody `json:"error"`
}

type errorBody struct {
	Kind    string `json:"kind"`
	Message string `json:"message"`
}

type GenerateHandler struct {
	logger       *slog.Logger
	orchestrator *orchestrator.Orchestrator
	limiter      *ratelimit.Limiter
	cache        *cache.ResponseCache
	cacheTTL     time.Duration
	collector    *metrics.Collector
}

func NewGenerateHandler(
	logger *slog.Logger,
	orch *orchestrator.Orchestrator,
	limiter *ratelimit.Limiter,
	responseCache *cache.ResponseCache,
	cacheTTL time.Duration,
	collector *metrics.Collector,
) *GenerateHandler {
	return &GenerateHandler{
		logger:       logger,
		orchestrator: orch,
		limiter:      limiter,
		cache:        responseCache,
		cacheTTL:     cacheTTL,
		collector:    collector,
	}
}

func (h *GenerateHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		writeError(w, http.StatusMethodNotAllowed, "validation", "method not allowed")
		return
	}

	clientIP := extractClientIP(r)

	h.emit(metrics.Event{Type: metrics.EventRequestReceived, Timestamp: time.Now()})

	h.logger.Info("Received request",
		slog.String("from", clientIP),
		slog.String("path", r.URL.Path),
		slog.String("user_agent", r.UserAgent()))

	admission := h.limiter.Check(clientIP)
	if !admission.Allowed {
		h.emit(metrics.Event{Type: metrics.EventRateLimited, Timestamp: time.Now()})

		h.logger.Warn("Rate limit exceeded", slog.String("client", clientIP))

		retryAfter := int(time.Until(admission.ResetTime).Seconds()) + 1
		w.Header().Set("Retry-After", strconv.Itoa(retryAfter))
		writeError(w, http.StatusTooManyRequests, "rate_limit", "rate limit exceeded, retry later")
		return
	}
	w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(admission.Remaining))

	var req generateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "validation", "invalid request body")
		return
	}

	if strings.TrimSpace(req.Prompt) == "" {
		writeError(w, http.StatusBadRequest, "validation", "prompt must not be empty")
		return
	}

	opts := orchestrator.GenerateOptions{Preferred: req.Backend}
	opts.Temperature = req.Temperature
	opts.MaxTokens = req.MaxTokens
	opts.TopP = req.TopP
	opts.TopK = req.TopK
	opts.System = req.System

	start := time.Now()

	if req.NoCache {
		result, err := h.orchestrator.GenerateWithFallback(r.Context(), req.Prompt, opts)
		if err != nil {
			h.writeFailure(w, err)
			return
		}
		writeJSON(w, http.StatusOK, responseFromResult(result, time.Since(start)))
		return
	}

	// The cache key uses the requested routing, not the backend the
	// orchestrator eventually lands on, so identical requests coalesce even
	// while their preferred backend is down.
	var result *orchestrator.Result
	cached, hit, err := h.cache.GetOrCompute(r.Context(), req.Backend, req.Model, req.Prompt, h.cacheTTL,
		func(ctx context.Context) (cache.Response, error) {
			generated, genErr := h.orchestrator.GenerateWithFallback(ctx, req.Prompt, opts)
			if genErr != nil {
				return cache.Response{}, genErr
			}
			result = generated
			return cache.Response{Text: generated.Response.Text, TokensUsed: generated.Response.TokensUsed}, nil
		})

	h.emit(metrics.Event{Type: metrics.EventCacheLookup, Timestamp: time.Now(), CacheHit: hit})

	if err != nil {
		h.writeFailure(w, err)
		return
	}

	if hit || result == nil {
		writeJSON(w, http.StatusOK, generateResponse{
			Text:       cached.Text,
			TokensUsed: cached.TokensUsed,
			Cached:     true,
			LatencyMS:  time.Since(start).Milliseconds(),
		})
		return
	}

	writeJSON(w, http.StatusOK, responseFromResult(result, time.Since(start)))
}

func (h *GenerateHandler) writeFailure(w http.ResponseWriter, err error) {
	var exhausted *orchestrator.ExhaustedError
	if errors.As(err, &exhausted) {
		writeError(w, http.StatusServiceUnavailable, "exhausted", exhausted.Error())
		return
	}

	kind := aierrors.KindOf(err)

	status := http.StatusInternalServerError
	switch kind {
	case aierrors.KindValidation:
		status = http.StatusBadRequest
	case aierrors.KindRateLimit:
		status = http.StatusTooManyRequests
	case aierrors.KindCircuitOpen:
		status = http.StatusServiceUnavailable
	case aierrors.KindTimeout:
		status = http.StatusGatewayTimeout
	case aierrors.KindAIService, aierrors.KindExternalService, aierrors.KindNoFallback:
		status = http.StatusBadGateway
	}

	writeError(w, status, kind.String(), err.Error())
}

func (h *GenerateHandler) emit(event metrics.Event) {
	h.collector.Emit(event)
}

func responseFromResult(result *orchestrator.Result, elapsed time.Duration) generateResponse {
	return generateResponse{
		RequestID:         result.RequestID,
		Text:              result.Response.Text,
		TokensUsed:        result.Response.TokensUsed,
		Backend:           result.BackendUsed,
		Model:             result.Model,
		Cached:            false,
		LatencyMS:         elapsed.Milliseconds(),
		AttemptedBackends: result.AttemptedBackends,
	}
}

func extractClientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		return strings.TrimSpace(strings.Split(xff, ",")[0])
	}

	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, kind, message string) {
	writeJSON(w, status, errorResponse{Error: errorBody{Kind: kind, Message: message}})
}
