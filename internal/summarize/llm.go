package summarize

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/ppiankov/newspan/internal/article"
	"github.com/ppiankov/newspan/internal/privacy"
	"github.com/ppiankov/newspan/internal/textnorm"
)

const (
	// DefaultEndpoint is the OpenAI-compatible chat endpoint of a local Ollama.
	DefaultEndpoint = "http://localhost:11434/v1/chat/completions"
	DefaultModel    = "llama3.2"

	httpTimeout   = 30 * time.Second
	maxInputLen   = 1000
	maxSummaryLen = 600
	systemPrompt  = "You are a professional news summarizer. Write concise, factual summaries in plain sentences without preamble."
	userPrompt    = "Summarize this news article in exactly 1-2 clear sentences:\n\n"
)

// LLMSummarizer asks an OpenAI-compatible chat model for a summary and
// falls back to another Summarizer on any error.
type LLMSummarizer struct {
	apiKey    string
	model     string
	maxTokens int
	endpoint  string
	fallback  Summarizer
	redactor  *privacy.Redactor
	client    *http.Client
	logger    *slog.Logger
}

// NewLLM creates a model-backed summarizer. An empty endpoint or model
// selects the local defaults; apiKey may be empty for local servers.
func NewLLM(endpoint, apiKey, model string, maxTokens int, fallback Summarizer, logger *slog.Logger) *LLMSummarizer {
	if endpoint == "" {
		endpoint = DefaultEndpoint
	}
	if model == "" {
		model = DefaultModel
	}
	if fallback == nil {
		fallback = HeuristicSummarizer{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &LLMSummarizer{
		apiKey:    apiKey,
		model:     model,
		maxTokens: maxTokens,
		endpoint:  endpoint,
		fallback:  fallback,
		client:    &http.Client{Timeout: httpTimeout},
		logger:    logger,
	}
}

// WithRedactor scrubs article text with r before it is sent to the model.
func (l *LLMSummarizer) WithRedactor(r *privacy.Redactor) *LLMSummarizer {
	l.redactor = r
	return l
}

// Summarize sends the first 1000 characters of the article to the model.
func (l *LLMSummarizer) Summarize(ctx context.Context, a article.Article) string {
	text := textnorm.Truncate(textnorm.CollapseSpace(a.Content), maxInputLen)
	if text == "" {
		return l.fallback.Summarize(ctx, a)
	}
	text = l.redactor.Apply(text)

	summary, err := l.callAPI(ctx, text)
	if err != nil {
		l.logger.Warn("llm summarize failed, using fallback", "url", a.URL, "err", err)
		return l.fallback.Summarize(ctx, a)
	}
	if summary == "" {
		return l.fallback.Summarize(ctx, a)
	}
	return textnorm.Ellipsize(summary, maxSummaryLen)
}

func (l *LLMSummarizer) callAPI(ctx context.Context, text string) (string, error) {
	reqBody := chatRequest{
		Model: l.model,
		Messages: []chatMessage{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: userPrompt + text},
		},
		MaxTokens: l.maxTokens,
	}

	body, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, l.endpoint, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if l.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+l.apiKey)
	}

	resp, err := l.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("http request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("api returned status %d", resp.StatusCode)
	}

	var chatResp chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&chatResp); err != nil {
		return "", fmt.Errorf("decode response: %w", err)
	}
	if len(chatResp.Choices) == 0 {
		return "", fmt.Errorf("empty choices in response")
	}
	return textnorm.CollapseSpace(chatResp.Choices[0].Message.Content), nil
}

type chatRequest struct {
	Model     string        `json:"model"`
	Messages  []chatMessage `json:"messages"`
	MaxTokens int           `json:"max_tokens,omitempty"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatResponse struct {
	Choices []chatChoice `json:"choices"`
}

type chatChoice struct {
	Message chatMessage `json:"message"`
}
