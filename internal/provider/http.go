package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/slidewise/modelgate/internal/aierrors"
	"github.com/slidewise/modelgate/internal/backend"
)

// HTTPInvoker talks to model backends over their HTTP generate API.
type HTTPInvoker struct {
	client *http.Client
}

type generateRequest struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
	Options
}

type generateResponse struct {
	Text       string `json:"text"`
	TokensUsed int    `json:"tokens_used"`
}

func NewHTTPInvoker(timeout time.Duration) *HTTPInvoker {
	if timeout <= 0 {
		timeout = 60 * time.Second
	}

	return &HTTPInvoker{
		client: &http.Client{
			Timeout: timeout,
		},
	}
}

// Invoke posts the prompt to the backend's generate endpoint.
func (h *HTTPInvoker) Invoke(ctx context.Context, b *backend.Backend, prompt string, opts Options) (*Result, error) {
	body, err := json.Marshal(generateRequest{
		Model:   b.Model(),
		Prompt:  prompt,
		Options: opts,
	})
	if err != nil {
		return nil, aierrors.NewValidation("request not serializable: " + err.Error())
	}

	endpoint := b.BaseURL().ResolveReference(&url.URL{Path: "/v1/generate"})

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint.String(), bytes.NewReader(body))
	if err != nil {
		return nil, aierrors.NewValidation("bad backend URL: " + err.Error())
	}
	req.Header.Set("Content-Type", "application/json")

	res, err := h.client.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, aierrors.NewTimeout(fmt.Sprintf("%s did not respond in time", b.Name()))
		}
		return nil, aierrors.NewAIService(b.Name(), "request failed", err)
	}
	defer res.Body.Close()

	if res.StatusCode < 200 || res.StatusCode > 299 {
		payload, _ := io.ReadAll(io.LimitReader(res.Body, 4096))
		return nil, aierrors.NewAIService(b.Name(),
			fmt.Sprintf("unexpected status %d: %s", res.StatusCode, payload), nil)
	}

	var parsed generateResponse
	if err := json.NewDecoder(res.Body).Decode(&parsed); err != nil {
		return nil, aierrors.NewAIService(b.Name(), "undecodable response", err)
	}

	return &Result{Text: parsed.Text, TokensUsed: parsed.TokensUsed}, nil
}

// Probe checks the backend's health endpoint.
func (h *HTTPInvoker) Probe(ctx context.Context, b *backend.Backend) error {
	healthURL := b.BaseURL().ResolveReference(&url.URL{Path: "/health"})

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, healthURL.String(), nil)
	if err != nil {
		return err
	}

	res, err := h.client.Do(req)
	if err != nil {
		return err
	}
	defer res.Body.Close()

	if res.StatusCode != http.StatusOK {
		return fmt.Errorf("health endpoint returned %d", res.StatusCode)
	}

	return nil
}
