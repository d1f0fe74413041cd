// Package openai implements the classifier and generator on the OpenAI chat
// completions API.
package openai

import (
	"context"
	"fmt"
	"time"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/shared"

	"github.com/linnemanlabs/go-core/log"

	"github.com/tekisho/mailtriage/internal/llm"
	"github.com/tekisho/mailtriage/internal/triage"
)

// Config holds the OpenAI provider settings.
type Config struct {
	APIKey      string
	BaseURL     string
	Model       string   // defaults to gpt-4o
	Departments []string // department names offered to the classifier
}

// Client implements triage.Classifier and triage.Generator.
type Client struct {
	client      openai.Client
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
		model = "gpt-4o"
	}
	if logger == nil {
		logger = log.Nop()
	}
	return &Client{
		client:      openai.NewClient(opts...),
		model:       model,
		departments: cfg.Departments,
		logger:      logger,
		metrics:     metrics,
	}, nil
}

// Classify assigns department, priority and a spam verdict. Malformed model
// output degrades to the fallback department at medium priority instead of
// failing the message.
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

// Generate drafts a reply from the retrieved snippets. Malformed model output
// degrades to a zero-confidence draft, which downstream turns into the
// holding reply.
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
	params := openai.ChatCompletionNewParams{
		Model:    openai.ChatModel(c.model),
		Messages: []openai.ChatCompletionMessageParamUnion{openai.UserMessage(prompt)},
		ResponseFormat: openai.ChatCompletionNewParamsResponseFormatUnion{
			OfJSONObject: &shared.ResponseFormatJSONObjectParam{},
		},
	}

	start := time.Now()
	resp, err := c.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return "", triage.Usage{}, fmt.Errorf("openai %s: %w", op, err)
	}
	if len(resp.Choices) == 0 {
		return "", triage.Usage{}, fmt.Errorf("openai %s: no choices in response", op)
	}

	usage := triage.Usage{
		InputTokens:  int(resp.Usage.PromptTokens),
		OutputTokens: int(resp.Usage.CompletionTokens),
	}
	c.metrics.ObserveLLMCall(op, usage.InputTokens, usage.OutputTokens, time.Since(start).Seconds())
	c.logger.Info(ctx, "llm call completed",
		"op", op,
		"model", c.model,
		"duration_ms", time.Since(start).Milliseconds(),
		"prompt_tokens", usage.InputTokens,
		"completion_tokens", usage.OutputTokens,
	)
	return resp.Choices[0].Message.Content, usage, nil
}
