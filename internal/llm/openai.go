package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/apigen/apigen/internal/observability"
)

const providerOpenAI = "openai"

// OpenAIClient speaks the OpenAI-compatible chat completions API.
type OpenAIClient struct {
	baseURL     string
	apiKey      string
	model       string
	temperature float64
	topP        float64
	maxTokens   int
	client      *http.Client
}

func NewOpenAIClient(opts Options) (*OpenAIClient, error) {
	baseURL, err := normalizeBaseURL(opts.BaseURL)
	if err != nil {
		return nil, err
	}
	model := strings.TrimSpace(opts.Model)
	if model == "" {
		model = "gpt-5"
	}
	return &OpenAIClient{
		baseURL:     baseURL,
		apiKey:      strings.TrimSpace(opts.APIKey),
		model:       model,
		temperature: opts.Temperature,
		topP:        opts.TopP,
		maxTokens:   opts.MaxOutputTokens,
		client:      &http.Client{Timeout: clientTimeout(opts.Timeout)},
	}, nil
}

func (c *OpenAIClient) Generate(ctx context.Context, prompt string) (text string, err error) {
	defer func() { observability.ObserveUpstreamCall(providerOpenAI, err) }()

	if c.apiKey == "" {
		return "", &UpstreamError{Provider: providerOpenAI, Err: fmt.Errorf("api key is not configured")}
	}
	body, err := json.Marshal(c.buildPayload(prompt))
	if err != nil {
		return "", fmt.Errorf("marshal chat payload: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/chat/completions", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("build chat request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return "", &UpstreamError{Provider: providerOpenAI, Err: fmt.Errorf("request chat completion: %w", err)}
	}
	defer func() { _ = resp.Body.Close() }()

	rawRespBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", &UpstreamError{Provider: providerOpenAI, StatusCode: resp.StatusCode, Err: fmt.Errorf("read chat response body: %w", err)}
	}
	if resp.StatusCode >= 400 {
		return "", &UpstreamError{Provider: providerOpenAI, StatusCode: resp.StatusCode, Err: fmt.Errorf("body=%s", truncateBody(rawRespBody))}
	}

	var parsed struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	if err := json.Unmarshal(rawRespBody, &parsed); err != nil {
		return "", &UpstreamError{Provider: providerOpenAI, StatusCode: resp.StatusCode, Err: fmt.Errorf("decode chat completion response: %w", err)}
	}
	if len(parsed.Choices) == 0 {
		return "", &UpstreamError{Provider: providerOpenAI, StatusCode: resp.StatusCode, Err: fmt.Errorf("empty chat completion choices")}
	}
	return parsed.Choices[0].Message.Content, nil
}

func (c *OpenAIClient) buildPayload(prompt string) map[string]any {
	payload := map[string]any{
		"model": c.model,
		"messages": []map[string]string{
			{"role": "user", "content": prompt},
		},
		"temperature": c.temperature,
	}
	if c.topP > 0 {
		payload["top_p"] = c.topP
	}
	if c.maxTokens > 0 {
		payload["max_tokens"] = c.maxTokens
	}
	return payload
}
