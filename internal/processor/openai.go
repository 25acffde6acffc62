package processor

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/sashabaranov/go-openai"

	"github.com/LJTian/NewsLens/internal/collector"
)

const (
	defaultAnalyzerTimeout = 30 * time.Second
	maxPromptRunes         = 12000
)

type OpenAIConfig struct {
	APIKey  string
	Model   string
	BaseURL string
	Timeout time.Duration
}

// OpenAIAnalyzer asks a chat completion model for a JSON analysis object.
// There is exactly one request per call and no retry.
type OpenAIAnalyzer struct {
	client  *openai.Client
	model   string
	timeout time.Duration
}

var _ Analyzer = (*OpenAIAnalyzer)(nil)

func NewOpenAIAnalyzer(cfg OpenAIConfig) (*OpenAIAnalyzer, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("openai api key is required")
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultAnalyzerTimeout
	}
	model := cfg.Model
	if model == "" {
		model = openai.GPT4oMini
	}

	clientConfig := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientConfig.BaseURL = cfg.BaseURL
	}
	clientConfig.HTTPClient = &http.Client{Timeout: timeout}

	return &OpenAIAnalyzer{
		client:  openai.NewClientWithConfig(clientConfig),
		model:   model,
		timeout: timeout,
	}, nil
}

func systemPrompt() string {
	topics := make([]string, len(collector.Topics))
	for i, t := range collector.Topics {
		topics[i] = string(t)
	}
	return "You analyse news articles. Reply with a single JSON object with exactly these keys: " +
		`"sentiment" (one of "positive", "negative", "neutral"), ` +
		`"topic" (one of "` + strings.Join(topics, `", "`) + `"), ` +
		`"score" (integer from 1 to 100 measuring how positive the article is, 1 very negative, 50 neutral, 100 very positive; consistent with sentiment), ` +
		`"digest" (one sentence summary between 10 and 150 characters).`
}

// wire shape; pointers tell a missing key apart from a zero value
type analysisReply struct {
	Sentiment *string `json:"sentiment"`
	Topic     *string `json:"topic"`
	Score     *int    `json:"score"`
	Digest    *string `json:"digest"`
}

func (a *OpenAIAnalyzer) Analyze(ctx context.Context, content string) (Analysis, error) {
	ctx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	resp, err := a.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: a.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: systemPrompt()},
			{Role: openai.ChatMessageRoleUser, Content: truncateRunes(content, maxPromptRunes)},
		},
		ResponseFormat: &openai.ChatCompletionResponseFormat{Type: openai.ChatCompletionResponseFormatTypeJSONObject},
		Temperature:    0.2,
	})
	if err != nil {
		return Analysis{}, fmt.Errorf("openai: %w", err)
	}
	if len(resp.Choices) == 0 {
		return Analysis{}, errors.New("openai: empty response")
	}

	var reply analysisReply
	if err := json.Unmarshal([]byte(strings.TrimSpace(resp.Choices[0].Message.Content)), &reply); err != nil {
		return Analysis{}, fmt.Errorf("%w: decode reply: %v", ErrInvalidAnalysis, err)
	}
	if reply.Sentiment == nil || reply.Topic == nil || reply.Score == nil || reply.Digest == nil {
		return Analysis{}, fmt.Errorf("%w: missing fields", ErrInvalidAnalysis)
	}
	return Analysis{
		Sentiment: *reply.Sentiment,
		Topic:     *reply.Topic,
		Score:     *reply.Score,
		Digest:    *reply.Digest,
	}, nil
}
