// Package client holds adapters for outbound HTTP services.
package client

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/AnsKM/dealflow-crm/internal/domain"
	"github.com/AnsKM/dealflow-crm/internal/infra/observability"
	"github.com/AnsKM/dealflow-crm/internal/infra/resilience"

	"github.com/go-resty/resty/v2"
	"github.com/sony/gobreaker"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

var tracer = otel.Tracer("client")

const geminiService = "gemini"

// GeminiConfig configures the Gemini generateContent client.
type GeminiConfig struct {
	BaseURL string
	APIKey  string
	Model   string
	Timeout time.Duration
}

// GeminiClient calls the Gemini generateContent API.
type GeminiClient struct {
	http    *resty.Client
	model   string
	cb      *gobreaker.CircuitBreaker
	bh      *resilience.Bulkhead
	cfg     resilience.Config
	metrics *observability.Metrics
}

// NewGeminiClient creates a GeminiClient.
func NewGeminiClient(gc GeminiConfig, cb *gobreaker.CircuitBreaker, cfg resilience.Config, metrics *observability.Metrics) *GeminiClient {
	r := resty.New().
		SetBaseURL(strings.TrimRight(gc.BaseURL, "/")).
		SetTimeout(gc.Timeout).
		SetHeader("Content-Type", "application/json").
		SetHeader("x-goog-api-key", gc.APIKey)

	return &GeminiClient{
		http:    r,
		model:   gc.Model,
		cb:      cb,
		bh:      resilience.NewBulkhead(cfg.MaxConcurrency),
		cfg:     cfg,
		metrics: metrics,
	}
}

type geminiPart struct {
	Text string `json:"text"`
}

type geminiContent struct {
	Role  string       `json:"role,omitempty"`
	Parts []geminiPart `json:"parts"`
}

type geminiRequest struct {
	Contents []geminiContent `json:"contents"`
}

type geminiResponse struct {
	Candidates []struct {
		Content geminiContent `json:"content"`
	} `json:"candidates"`
	UsageMetadata struct {
		PromptTokenCount     int `json:"promptTokenCount"`
		CandidatesTokenCount int `json:"candidatesTokenCount"`
	} `json:"usageMetadata"`
}

type geminiError struct {
	Error struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
		Status  string `json:"status"`
	} `json:"error"`
}

// Generate sends prompt as a single user turn and returns the concatenated text.
func (c *GeminiClient) Generate(ctx context.Context, prompt string) (*domain.Completion, error) {
	ctx, span := tracer.Start(ctx, "GeminiClient.Generate")
	defer span.End()
	span.SetAttributes(attribute.String("llm.model", c.model), attribute.Int("llm.prompt_chars", len(prompt)))

	start := time.Now()
	defer func() { c.metrics.RecordRequestDuration("gemini.generate", time.Since(start)) }()

	body := geminiRequest{Contents: []geminiContent{{Role: "user", Parts: []geminiPart{{Text: prompt}}}}}

	completion, err := resilience.Call(ctx, c.bh, c.cb, c.cfg, func() (*domain.Completion, error) {
		var out geminiResponse
		var apiErr geminiError

		resp, err := c.http.R().
			SetContext(ctx).
			SetBody(body).
			SetResult(&out).
			SetError(&apiErr).
			Post(fmt.Sprintf("/v1beta/models/%s:generateContent", c.model))
		if err != nil {
			return nil, err
		}
		if resp.IsError() {
			err := fmt.Errorf("gemini returned status %d: %s", resp.StatusCode(), apiErr.Error.Message)
			if retryable(resp.StatusCode()) {
				return nil, err
			}
			return nil, resilience.Permanent(err)
		}

		text := candidateText(&out)
		if text == "" {
			return nil, resilience.Permanent(errors.New("gemini returned no candidates"))
		}
		return &domain.Completion{
			Text:             text,
			PromptTokens:     out.UsageMetadata.PromptTokenCount,
			CompletionTokens: out.UsageMetadata.CandidatesTokenCount,
		}, nil
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		c.metrics.IncrExternalError(geminiService)

		switch {
		case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
			return nil, &domain.ErrCircuitOpen{Service: geminiService}
		case isTimeout(err):
			return nil, &domain.ErrTimeout{Operation: "gemini.generate"}
		}
		return nil, &domain.ErrExternalService{Service: geminiService, Err: err}
	}

	c.metrics.RecordTokens(completion.PromptTokens, completion.CompletionTokens)
	span.SetAttributes(
		attribute.Int("llm.prompt_tokens", completion.PromptTokens),
		attribute.Int("llm.completion_tokens", completion.CompletionTokens),
	)
	return completion, nil
}

func candidateText(r *geminiResponse) string {
	if len(r.Candidates) == 0 {
		return ""
	}
	var b strings.Builder
	for _, p := range r.Candidates[0].Content.Parts {
		b.WriteString(p.Text)
	}
	return strings.TrimSpace(b.String())
}

func isTimeout(err error) bool {
	var ne net.Error
	return errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &ne) && ne.Timeout())
}

func retryable(status int) bool {
	return status == http.StatusTooManyRequests || status >= http.StatusInternalServerError
}
