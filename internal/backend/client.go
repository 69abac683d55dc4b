package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
	"go.opentelemetry.io/otel/trace"
)

var (
	// ErrEmptyResponse means the call succeeded but carried no text.
	ErrEmptyResponse = errors.New("empty response from Gemini")
	// ErrBlocked means the prompt was rejected by the remote safety filter.
	ErrBlocked = errors.New("prompt blocked by Gemini")
)

// APIError is a non-2xx reply from the remote API.
type APIError struct {
	StatusCode int
	Status     string
	Message    string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("API error: %d %s", e.StatusCode, e.Status)
	}
	return fmt.Sprintf("API error: %d %s - %s", e.StatusCode, e.Status, e.Message)
}

// Client talks to the Gemini REST API.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	logger     *slog.Logger
	tracer     trace.Tracer
	duration   metric.Float64Histogram
}

// ClientOption customizes a Client.
type ClientOption func(*Client)

// WithHTTPClient replaces the default HTTP client, which has no timeout.
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) { c.httpClient = hc }
}

// WithLogger sets the logger used for request diagnostics.
func WithLogger(logger *slog.Logger) ClientOption {
	return func(c *Client) { c.logger = logger }
}

// WithTracer sets the tracer used for request spans.
func WithTracer(tracer trace.Tracer) ClientOption {
	return func(c *Client) { c.tracer = tracer }
}

// WithMeter sets the meter that records request durations.
func WithMeter(meter metric.Meter) ClientOption {
	return func(c *Client) {
		h, err := meter.Float64Histogram(
			"http.client.request.duration",
			metric.WithDescription("HTTP request duration in milliseconds"),
			metric.WithUnit("ms"),
		)
		if err != nil {
			c.duration = noop.Float64Histogram{}
			return
		}
		c.duration = h
	}
}

// NewClient creates a client for baseURL authenticated with apiKey.
func NewClient(baseURL, apiKey string, opts ...ClientOption) *Client {
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
		httpClient: &http.Client{},
		logger:     slog.Default(),
		tracer:     otel.Tracer("geminichat/backend"),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.duration == nil {
		WithMeter(otel.Meter("geminichat/backend"))(c)
	}
	return c
}

// ListModels fetches every model the key can see, following pagination.
// Models are returned in the order the service lists them.
func (c *Client) ListModels(ctx context.Context) ([]Model, error) {
	ctx, span := c.tracer.Start(ctx, "gemini.list_models")
	defer span.End()

	var models []Model
	pageToken := ""
	for {
		q := url.Values{}
		q.Set("pageSize", "1000")
		if pageToken != "" {
			q.Set("pageToken", pageToken)
		}

		var page ListModelsResponse
		if err := c.do(ctx, http.MethodGet, c.baseURL+"/models?"+q.Encode(), nil, &page); err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			return nil, fmt.Errorf("failed to list models: %w", err)
		}
		models = append(models, page.Models...)

		if page.NextPageToken == "" || page.NextPageToken == pageToken {
			break
		}
		pageToken = page.NextPageToken
	}

	span.SetAttributes(attribute.Int("gemini.models", len(models)))
	c.logger.Debug("listed models", "count", len(models))
	return models, nil
}

// GenerateContent sends the conversation in contents to model and returns
// the raw response. Use Text to extract the reply.
func (c *Client) GenerateContent(ctx context.Context, model string, contents []Content) (*GenerateContentResponse, error) {
	ctx, span := c.tracer.Start(ctx, "gemini.generate_content",
		trace.WithAttributes(
			attribute.String("gemini.model", model),
			attribute.Int("gemini.contents", len(contents)),
		),
	)
	defer span.End()

	reqBody := GenerateContentRequest{Contents: contents}
	var resp GenerateContentResponse
	if err := c.do(ctx, http.MethodPost, c.baseURL+"/"+ModelPath(model)+":generateContent", reqBody, &resp); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	return &resp, nil
}

// ModelPath returns the resource path for a model identifier. Bare names
// such as "gemini-pro" are placed under "models/".
func ModelPath(model string) string {
	if strings.Contains(model, "/") {
		return model
	}
	return "models/" + model
}

// Text returns the reply text of the first candidate.
func (r *GenerateContentResponse) Text() (string, error) {
	if r.PromptFeedback != nil && r.PromptFeedback.BlockReason != "" {
		return "", fmt.Errorf("%w: %s", ErrBlocked, r.PromptFeedback.BlockReason)
	}
	if len(r.Candidates) == 0 {
		return "", ErrEmptyResponse
	}

	cand := r.Candidates[0]
	var sb strings.Builder
	for _, part := range cand.Content.Parts {
		sb.WriteString(part.Text)
	}
	if sb.Len() == 0 {
		if cand.FinishReason != "" {
			return "", fmt.Errorf("%w (finish reason %s)", ErrEmptyResponse, cand.FinishReason)
		}
		return "", ErrEmptyResponse
	}
	return sb.String(), nil
}

func (c *Client) do(ctx context.Context, method, endpoint string, body, out interface{}) error {
	start := time.Now()

	var reader io.Reader
	if body != nil {
		jsonData, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
		reader = bytes.NewReader(jsonData)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("x-goog-api-key", c.apiKey)
	if body != nil {
		req.Header.Set("content-type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	c.duration.Record(ctx, float64(time.Since(start).Milliseconds()),
		metric.WithAttributes(
			attribute.String("http.request.method", method),
			attribute.Int("http.response.status_code", resp.StatusCode),
		),
	)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		apiErr := &APIError{StatusCode: resp.StatusCode, Status: http.StatusText(resp.StatusCode)}
		var errResp ErrorResponse
		if json.Unmarshal(respBody, &errResp) == nil && errResp.Error.Message != "" {
			apiErr.Message = errResp.Error.Message
			if errResp.Error.Status != "" {
				apiErr.Status = errResp.Error.Status
			}
		} else {
			apiErr.Message = strings.TrimSpace(string(respBody))
		}
		c.logger.Warn("Gemini API error", "status", resp.StatusCode, "error", apiErr.Message)
		return apiErr
	}

	if err := json.Unmarshal(respBody, out); err != nil {
		return fmt.Errorf("failed to unmarshal response: %w", err)
	}
	return nil
}
