package embedding

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"aura-rag/internal/config"
)

const (
	DefaultGeminiBaseURL = "https://generativelanguage.googleapis.com/v1beta"
	DefaultGeminiModel   = "gemini-embedding-001"
	DefaultGeminiDim     = 3072
)

// GeminiProvider calls the Generative Language REST embedding endpoints.
type GeminiProvider struct {
	client  *http.Client
	baseURL string
	apiKey  string
	model   string
	dim     int
	limiter *RateLimiter
}

func NewGeminiProvider(cfg *config.LLMConfig) *GeminiProvider {
	p := &GeminiProvider{
		client:  &http.Client{Timeout: cfg.Timeout},
		baseURL: strings.TrimSuffix(cfg.BaseURL, "/"),
		apiKey:  cfg.Key,
		model:   strings.TrimPrefix(cfg.Model, "models/"),
		dim:     cfg.Dimension,
		limiter: NewRateLimiter(cfg.RequestsPerSecond, cfg.Burst),
	}
	if p.baseURL == "" {
		p.baseURL = DefaultGeminiBaseURL
	}
	if p.model == "" {
		p.model = DefaultGeminiModel
	}
	if p.dim == 0 {
		p.dim = DefaultGeminiDim
	}
	return p
}

type geminiPart struct {
	Text string `json:"text"`
}

type geminiContent struct {
	Parts []geminiPart `json:"parts"`
}

type geminiEmbedRequest struct {
	Model                string        `json:"model"`
	Content              geminiContent `json:"content"`
	TaskType             TaskType      `json:"taskType,omitempty"`
	OutputDimensionality int           `json:"outputDimensionality,omitempty"`
}

type geminiBatchRequest struct {
	Requests []geminiEmbedRequest `json:"requests"`
}

type geminiValues struct {
	Values []float32 `json:"values"`
}

type geminiEmbedResponse struct {
	Embedding geminiValues `json:"embedding"`
}

type geminiBatchResponse struct {
	Embeddings []geminiValues `json:"embeddings"`
}

func (p *GeminiProvider) Dimension() int { return p.dim }

func (p *GeminiProvider) Embed(ctx context.Context, texts []string, task TaskType) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	var vecs [][]float32
	if len(texts) == 1 {
		var resp geminiEmbedResponse
		if err := p.post(ctx, "embedContent", p.request(texts[0], task), &resp); err != nil {
			return nil, err
		}
		vecs = [][]float32{resp.Embedding.Values}
	} else {
		body := geminiBatchRequest{Requests: make([]geminiEmbedRequest, len(texts))}
		for i, t := range texts {
			body.Requests[i] = p.request(t, task)
		}
		var resp geminiBatchResponse
		if err := p.post(ctx, "batchEmbedContents", body, &resp); err != nil {
			return nil, err
		}
		vecs = make([][]float32, len(resp.Embeddings))
		for i, e := range resp.Embeddings {
			vecs[i] = e.Values
		}
	}

	if err := checkVectors(vecs, len(texts), p.dim); err != nil {
		return nil, err
	}
	return vecs, nil
}

func (p *GeminiProvider) request(text string, task TaskType) geminiEmbedRequest {
	return geminiEmbedRequest{
		Model:                "models/" + p.model,
		Content:              geminiContent{Parts: []geminiPart{{Text: text}}},
		TaskType:             task,
		OutputDimensionality: p.dim,
	}
}

func (p *GeminiProvider) post(ctx context.Context, method string, body, out any) error {
	if err := p.limiter.Wait(ctx); err != nil {
		return err
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}

	url := fmt.Sprintf("%s/models/%s:%s", p.baseURL, p.model, method)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-goog-api-key", p.apiKey)

	resp, err := p.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests {
		p.limiter.Backoff(retryAfter(resp.Header.Get("Retry-After")))
	}
	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("gemini %s failed (status %d): %s", method, resp.StatusCode, strings.TrimSpace(string(msg)))
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

func retryAfter(header string) time.Duration {
	secs, err := strconv.Atoi(strings.TrimSpace(header))
	if err != nil {
		return 0
	}
	return time.Duration(secs) * time.Second
}
