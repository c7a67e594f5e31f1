// Package report generates research reports through OpenAI-compatible chat
// completion APIs. The provider knob selects which configured endpoint and
// credentials a job uses.
package report

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"

	"alpaca/backend/internal/config"
)

var ErrUnknownProvider = errors.New("report provider is not configured")

const (
	maxReportTokens   = 4000
	reportTemperature = 0.1

	systemPrompt = "You are a research analyst. Write clear, well-organized reports " +
		"grounded strictly in the provided research data. Cite the sources you use."
)

type endpoint struct {
	apiKey  string
	baseURL string
}

type Client struct {
	endpoints    map[string]endpoint
	defaultModel string
}

// NewClient wires the providers that have credentials. Returns nil when no
// provider is usable, which callers treat as generation disabled.
func NewClient(cfg config.Config) *Client {
	endpoints := make(map[string]endpoint)
	if cfg.OpenAIAPIKey != "" {
		endpoints["openai"] = endpoint{apiKey: cfg.OpenAIAPIKey}
	}
	if cfg.GroqAPIKey != "" {
		endpoints["groq"] = endpoint{apiKey: cfg.GroqAPIKey, baseURL: cfg.GroqBaseURL}
	}
	if len(endpoints) == 0 {
		return nil
	}
	return &Client{endpoints: endpoints, defaultModel: cfg.ReportModel}
}

func (c *Client) Generate(ctx context.Context, query, rawData, providerName, model string) (string, error) {
	providerName = strings.ToLower(strings.TrimSpace(providerName))
	ep, ok := c.endpoints[providerName]
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrUnknownProvider, providerName)
	}
	if strings.TrimSpace(model) == "" {
		model = c.defaultModel
	}

	opts := []option.RequestOption{option.WithAPIKey(ep.apiKey)}
	if ep.baseURL != "" {
		opts = append(opts, option.WithBaseURL(ep.baseURL))
	}
	client := openai.NewClient(opts...)

	completion, err := client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model: openai.ChatModel(model),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(systemPrompt),
			openai.UserMessage(userPrompt(query, rawData)),
		},
		MaxTokens:   openai.Int(maxReportTokens),
		Temperature: openai.Float(reportTemperature),
	})
	if err != nil {
		return "", fmt.Errorf("chat completion: %w", err)
	}
	if len(completion.Choices) == 0 {
		return "", errors.New("chat completion returned no choices")
	}

	content := strings.TrimSpace(completion.Choices[0].Message.Content)
	if content == "" {
		return "", errors.New("chat completion returned empty content")
	}
	return content, nil
}

func userPrompt(query, rawData string) string {
	return fmt.Sprintf(`Analyze the following research data and produce a comprehensive report on: %s

Structure the report with these sections:
1. Executive Summary
2. Key Findings
3. Detailed Analysis
4. Sources
5. Conclusions

Research data:
%s`, query, rawData)
}
