package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/apigen/apigen/internal/observability"
)

const providerGemini = "gemini"

type GeminiClient struct {
	baseURL string
	apiKey  string
	model   string
	config  geminiGenerationConfig
	client  *http.Client
}

type geminiGenerationConfig struct {
	Temperature      float64 `json:"temperature"`
	TopP             float64 `json:"topP"`
	TopK             int     `json:"topK"`
	MaxOutputTokens  int     `json:"maxOutputTokens"`
	ResponseMIMEType string  `json:"responseMimeType"`
}

type geminiPart struct {
	Text string `json:"text"`
}

type geminiContent struct {
	Role  string       `json:"role,omitempty"`
	Parts []geminiPart `json:"parts"`
}

type geminiRequest struct {
	Contents         []geminiContent        `json:"contents"`
	GenerationConfig geminiGenerationConfig `json:"generationConfig"`
}

type geminiResponse struct {
	Candidates []struct {
		Content      geminiContent `json:"content"`
		FinishReason string        `json:"finishReason"`
	} `json:"candidates"`
	PromptFeedback struct {
		BlockReason string `json:"blockReason"`
	} `json:"promptFeedback"`
}

func NewGeminiClient(opts Options) (*GeminiClient, error) {
	base := opts.BaseURL
	if strings.TrimSpace(base) == "" {
		base = "https://generativelanguage.googleapis.com"
	}
	baseURL, err := normalizeBaseURL(base)
	if err != nil {
		return nil, err
	}
	model := strings.TrimSpace(opts.Model)
	if model == "" {
		model = "gemini-1.5-flash"
	}
	return &GeminiClient{
		baseURL: baseURL,
		apiKey:  strings.TrimSpace(opts.APIKey),
		model:   model,
		config: geminiGenerationConfig{
			Temperature:      opts.Temperature,
			TopP:             opts.TopP,
			TopK:             opts.TopK,
			MaxOutputTokens:  opts.MaxOutputTokens,
			ResponseMIMEType: "text/plain",
		},
		client: &http.Client{Timeout: clientTimeout(opts.Timeout)},
	}, nil
}

func (c *GeminiClient) Generate(ctx context.Context, prompt string) (text string, err error) {
	defer func() { observability.ObserveUpstreamCall(providerGemini, err) }()

	if c.apiKey == "" {
		return "", &UpstreamError{Provider: providerGemini, Err: fmt.Errorf("api key is not configured")}
	}
	body, err := json.Marshal(geminiRequest{
		Contents:         []geminiContent{{Role: "user", Parts: []geminiPart{{Text: prompt}}}},
		GenerationConfig: c.config,
	})
	if err != nil {
		return "", fmt.Errorf("marshal gemini payload: %w", err)
	}

	endpoint := c.baseURL + "/v1beta/models/" + url.PathEscape(c.model) + ":generateContent"
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("build gemini request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("x-goog-api-key", c.apiKey)

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return "", &UpstreamError{Provider: providerGemini, Err: fmt.Errorf("request generate content: %w", err)}
	}
	defer func() { _ = resp.Body.Close() }()

	rawRespBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", &UpstreamError{Provider: providerGemini, StatusCode: resp.StatusCode, Err: fmt.Errorf("read response body: %w", err)}
	}
	if resp.StatusCode >= 400 {
		return "", &UpstreamError{Provider: providerGemini, StatusCode: resp.StatusCode, Err: fmt.Errorf("body=%s", truncateBody(rawRespBody))}
	}

	var parsed geminiResponse
	if err := json.Unmarshal(rawRespBody, &parsed); err != nil {
		return "", &UpstreamError{Provider: providerGemini, StatusCode: resp.StatusCode, Err: fmt.Errorf("decode response: %w", err)}
	}
	if parsed.PromptFeedback.BlockReason != "" {
		return "", &UpstreamError{Provider: providerGemini, StatusCode: resp.StatusCode, Err: fmt.Errorf("prompt blocked: %s", parsed.PromptFeedback.BlockReason)}
	}
	if len(parsed.Candidates) == 0 {
		return "", &UpstreamError{Provider: providerGemini, StatusCode: resp.StatusCode, Err: fmt.Errorf("empty candidates")}
	}

	var out strings.Builder
	for _, part := range parsed.Candidates[0].Content.Parts {
		out.WriteString(part.Text)
	}
	return out.String(), nil
}
