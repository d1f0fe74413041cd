// Package claude implements the classifier and generator on the Anthropic
// Messages API. Behavior mirrors the OpenAI client; prompts and parsing are
// shared.
package claude

import (
	"context"
	"fmt"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/linnemanlabs/go-core/log"

	"github.com/tekisho/mailtriage/internal/llm"
	"github.com/tekisho/mailtriage/internal/triage"
)

const maxTokens = 2048

// Config holds the Anthropic provider settings.
type Config struct {
	APIKey      string
	BaseURL     string
	Model       string   // defaults to claude-sonnet-4-5
	Departments []string // department names offered to the classifier
}

// Client implements triage.Classifier and triage.Generator.
type Client struct {
	client      anthropic.Client
	model       string
	departments []string
	logger      log.Logger
	metrics     *triage.Metrics
}

// New creates a client. metrics may be nil.
func New(cfg Config, logger log.Logger, metrics *triage.Metrics) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("API key is required")
	}
	opts := []option.RequestOption{option.WithAPIKey(cfg.APIKey)}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	model := cfg.Model
	if model == "" {
		model = "claude-sonnet-4-5"
	}
	if logger == nil {
		logger = log.Nop()
	}
	return &Client{
		client:      anthropic.NewClient(opts...),
		model:       model,
		departments: cfg.Departments,
		logger:      logger,
		metrics:     metrics,
	}, nil
}

// Classify assigns department, priority and a spam verdict.
func (c *Client) Classify(ctx context.Context, subject, body string) (*triage.Classification, error) {
	content, usage, err := c.complete(ctx, "classify", llm.ClassifyPrompt(c.departments, subject, body))
	if err != nil {
		return nil, err
	}

	res, ok := llm.ParseClassification(content)
	if !ok {
		c.logger.Warn(ctx, "unparseable classification, using defaults", "content", content)
		return &triage.Classification{
			Department: "Other",
			Priority:   triage.PriorityMedium,
			Usage:      usage,
		}, nil
	}

	return &triage.Classification{
		Department:         res.Department,
		Priority:           llm.NormalizePriority(res.Priority),
		Ignore:             res.Ignore,
		IgnoreReason:       res.IgnoreReason,
		RelatedDepartments: res.RelatedDepartments,
		Usage:              usage,
	}, nil
}

// Generate drafts a reply from the retrieved snippets.
func (c *Client) Generate(ctx context.Context, subject, body string, snippets []string) (*triage.Draft, error) {
	content, usage, err := c.complete(ctx, "generate", llm.GeneratePrompt(subject, body, snippets))
	if err != nil {
		return nil, err
	}

	res, ok := llm.ParseDraft(content)
	if !ok {
		c.logger.Warn(ctx, "unparseable draft, forcing zero confidence", "content", content)
		return &triage.Draft{Confidence: 0, Usage: usage}, nil
	}
	return &triage.Draft{Reply: res.Reply, Confidence: res.Confidence, Usage: usage}, nil
}

func (c *Client) complete(ctx context.Context, op, prompt string) (string, triage.Usage, error) {
	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(c.model),
		MaxTokens: maxTokens,
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(prompt)),
		},
	}

	start := time.Now()
	resp, err := c.client.Messages.New(ctx, params)
	if err != nil {
		return "", triage.Usage{}, fmt.Errorf("anthropic %s: %w", op, err)
	}

	var content string
	for _, block := range resp.Content {
		if block.Type == "text" {
			content += block.Text
		}
	}

	usage := triage.Usage{
		InputTokens:  int(resp.Usage.InputTokens),
		OutputTokens: int(resp.Usage.OutputTokens),
	}
	c.metrics.ObserveLLMCall(op, usage.InputTokens, usage.OutputTokens, time.Since(start).Seconds())
	c.logger.Info(ctx, "llm call completed",
		"op", op,
		"model", c.model,
		"duration_ms", time.Since(start).Milliseconds(),
		"input_tokens", usage.InputTokens,
		"output_tokens", usage.OutputTokens,
	)
	return content, usage, nil
}
