// Package slack sends escalation and batch-fault notices to Slack via
// incoming webhooks.
package slack

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/tekisho/mailtriage/internal/triage"
)

const (
	maxBodyLen  = 1500
	httpTimeout = 10 * time.Second
)

// Notifier posts notices to a Slack webhook.
type Notifier struct {
	webhookURL string
	client     *http.Client
}

// New creates a new Slack notifier. If webhookURL is empty, every method is a
// no-op.
func New(webhookURL string) *Notifier {
	return &Notifier{
		webhookURL: webhookURL,
		client:     &http.Client{Timeout: httpTimeout},
	}
}

// EscalationRaised posts a notice when a record crosses the escalation
// threshold. Implements triage.Notifier.
func (n *Notifier) EscalationRaised(ctx context.Context, rec *triage.Record) error {
	return n.post(ctx, map[string]any{
		"blocks": []map[string]any{
			{
				"type": "header",
				"text": map[string]any{
					"type": "plain_text",
					"text": "\U0001f534 SLA breach: " + rec.Subject,
				},
			},
			{"type": "divider"},
			{
				"type": "section",
				"fields": []map[string]any{
					{"type": "mrkdwn", "text": fmt.Sprintf("*From:* %s", rec.From)},
					{"type": "mrkdwn", "text": fmt.Sprintf("*Priority:* %s", rec.Priority)},
					{"type": "mrkdwn", "text": fmt.Sprintf("*Status:* %s", rec.Status)},
					{"type": "mrkdwn", "text": fmt.Sprintf("*Age:* %.1fh", time.Since(rec.CreatedAt).Hours())},
				},
			},
			{
				"type": "section",
				"text": map[string]any{
					"type": "mrkdwn",
					"text": truncate(rec.Body, maxBodyLen),
				},
			},
			contextBlock(rec.ID, rec.CreatedAt),
		},
	})
}

// BatchFault posts a notice when a poll cycle fails outright, e.g. the
// mailbox is unreachable.
func (n *Notifier) BatchFault(ctx context.Context, cause error) error {
	return n.post(ctx, map[string]any{
		"blocks": []map[string]any{
			{
				"type": "section",
				"text": map[string]any{
					"type": "mrkdwn",
					"text": fmt.Sprintf("\U0001f7e1 *Mail poll failed*\n\n```%s```", truncate(cause.Error(), maxBodyLen)),
				},
			},
		},
	})
}

func (n *Notifier) post(ctx context.Context, msg map[string]any) error {
	if n.webhookURL == "" {
		return nil
	}

	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("slack: marshal message: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.webhookURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("slack: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("slack: post webhook: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("slack: webhook returned %d: %s", resp.StatusCode, string(respBody))
	}
	return nil
}

func contextBlock(id string, ts time.Time) map[string]any {
	return map[string]any{
		"type": "context",
		"elements": []map[string]any{
			{
				"type": "mrkdwn",
				"text": fmt.Sprintf("mailtriage • record %s • %s", id, ts.UTC().Format("2006-01-02 15:04 UTC")),
			},
		},
	}
}

func truncate(s string, limit int) string {
	if len(s) <= limit {
		return s
	}
	return s[:limit-3] + "..."
}
