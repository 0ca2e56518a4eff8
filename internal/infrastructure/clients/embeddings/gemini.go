package embeddings

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/zatekoja/productsearch/internal/infrastructure/observability"
	"github.com/zatekoja/productsearch/pkg/config"
	apperrors "github.com/zatekoja/productsearch/pkg/errors"
	"github.com/zatekoja/productsearch/pkg/retry"
)

const (
	defaultGeminiBaseURL = "https://generativelanguage.googleapis.com/v1beta"
	geminiProvider       = "gemini"

	// Gemini rejects batchEmbedContents with more than 100 requests.
	maxGeminiBatch = 100
)

// GeminiClient embeds text with the Gemini embedding REST API.
type GeminiClient struct {
	apiKey     string
	model      string
	baseURL    string
	httpClient *http.Client
	limiter    *rate.Limiter
	retryCfg   retry.Config
}

// NewGeminiClient creates a Gemini embedding client.
func NewGeminiClient(cfg *config.EmbeddingConfig) (*GeminiClient, error) {
	if cfg == nil || cfg.APIKey == "" {
		return nil, errors.New("embedding api key is required")
	}

	model := cfg.Model
	if model == "" {
		model = "text-embedding-004"
	}
	baseURL := strings.TrimRight(cfg.BaseURL, "/")
	if baseURL == "" {
		baseURL = defaultGeminiBaseURL
	}

	var limiter *rate.Limiter
	if cfg.RateLimitRPM > 0 {
		burst := cfg.RateLimitRPM / 60
		if burst < 1 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Every(time.Minute/time.Duration(cfg.RateLimitRPM)), burst)
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}

	retryCfg := retry.ProviderConfig()
	retryCfg.Retryable = isRetryable

	return &GeminiClient{
		apiKey:     cfg.APIKey,
		model:      strings.TrimPrefix(model, "models/"),
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: timeout},
		limiter:    limiter,
		retryCfg:   retryCfg,
	}, nil
}

// Model returns the model tag stored with each vector.
func (c *GeminiClient) Model() string {
	return c.model
}

type geminiContent struct {
	Parts []geminiPart `json:"parts"`
}

type geminiPart struct {
	Text string `json:"text"`
}

type geminiEmbedRequest struct {
	Model   string        `json:"model"`
	Content geminiContent `json:"content"`
}

type geminiValues struct {
	Values []float32 `json:"values"`
}

type geminiEmbedResponse struct {
	Embedding geminiValues `json:"embedding"`
}

type geminiBatchRequest struct {
	Requests []geminiEmbedRequest `json:"requests"`
}

type geminiBatchResponse struct {
	Embeddings []geminiValues `json:"embeddings"`
}

func (c *GeminiClient) request(text string) geminiEmbedRequest {
	return geminiEmbedRequest{
		Model:   "models/" + c.model,
		Content: geminiContent{Parts: []geminiPart{{Text: text}}},
	}
}

// Embed returns the vector for a single text.
func (c *GeminiClient) Embed(ctx context.Context, text string) ([]float32, error) {
	var resp geminiEmbedResponse
	if err := c.call(ctx, "embedContent", c.request(text), &resp); err != nil {
		return nil, err
	}
	if len(resp.Embedding.Values) == 0 {
		return nil, apperrors.NewExternalError("gemini returned an empty embedding", nil)
	}
	return resp.Embedding.Values, nil
}

// EmbedBatch returns one vector per text, in input order.
func (c *GeminiClient) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, 0, len(texts))
	for start := 0; start < len(texts); start += maxGeminiBatch {
		end := start + maxGeminiBatch
		if end > len(texts) {
			end = len(texts)
		}

		req := geminiBatchRequest{Requests: make([]geminiEmbedRequest, 0, end-start)}
		for _, text := range texts[start:end] {
			req.Requests = append(req.Requests, c.request(text))
		}

		var resp geminiBatchResponse
		if err := c.call(ctx, "batchEmbedContents", req, &resp); err != nil {
			return nil, err
		}
		if len(resp.Embeddings) != end-start {
			return nil, apperrors.NewExternalError(
				fmt.Sprintf("gemini returned %d embeddings for %d texts", len(resp.Embeddings), end-start), nil)
		}
		for _, e := range resp.Embeddings {
			out = append(out, e.Values)
		}
	}
	return out, nil
}

type statusError struct {
	code int
	body string
}

func (e *statusError) Error() string {
	return fmt.Sprintf("gemini request failed with status %d: %s", e.code, e.body)
}

func isRetryable(err error) bool {
	var se *statusError
	if errors.As(err, &se) {
		return se.code == http.StatusTooManyRequests || se.code >= 500
	}
	return !errors.Is(err, context.Canceled)
}

func (c *GeminiClient) call(ctx context.Context, method string, payload interface{}, out interface{}) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return apperrors.NewInternalError("failed to encode embedding request", err)
	}

	endpoint := fmt.Sprintf("%s/models/%s:%s?key=%s", c.baseURL, c.model, method, url.QueryEscape(c.apiKey))
	logger := observability.LoggerFromContext(ctx)

	err = retry.DoWithLog(ctx, c.retryCfg, "gemini-embeddings", func() error {
		if c.limiter != nil {
			waitStart := time.Now()
			if err := c.limiter.Wait(ctx); err != nil {
				return err
			}
			recordRateLimitWait(ctx, geminiProvider, c.model, time.Since(waitStart))
		}
		return c.do(ctx, endpoint, body, out)
	}, func(attempt int, err error, nextDelay time.Duration) {
		logger.Warn().Err(err).Int("attempt", attempt).Dur("next_delay", nextDelay).Msg("embedding request failed, retrying")
	})
	if err != nil {
		return apperrors.NewExternalError("gemini embedding request failed", err)
	}
	return nil
}

func (c *GeminiClient) do(ctx context.Context, endpoint string, body []byte, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		recordEmbeddingMetric(ctx, geminiProvider, c.model, 0, time.Since(start), err)
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		se := &statusError{code: resp.StatusCode, body: strings.TrimSpace(string(snippet))}
		recordEmbeddingMetric(ctx, geminiProvider, c.model, resp.StatusCode, time.Since(start), se)
		return se
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		recordEmbeddingMetric(ctx, geminiProvider, c.model, resp.StatusCode, time.Since(start), err)
		return err
	}

	recordEmbeddingMetric(ctx, geminiProvider, c.model, resp.StatusCode, time.Since(start), nil)
	return nil
}
