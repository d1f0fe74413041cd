package llm

import (
	"strings"
	"testing"

	"github.com/tekisho/mailtriage/internal/triage"
)

func TestClassifyPrompt(t *testing.T) {
	t.Parallel()

	p := ClassifyPrompt([]string{"Sales", "Customer Support", "Other"}, "Refund for order 1234", "I want my money back")

	for _, want := range []string{
		"- Sales\n",
		"- Customer Support\n",
		"- Other\n",
		"Email Subject: Refund for order 1234",
		"Email Body: I want my money back",
		"related_departments",
		`"ignore"`,
		"Output JSON only:",
	} {
		if !strings.Contains(p, want) {
			t.Errorf("prompt missing %q", want)
		}
	}
}

func TestGeneratePrompt(t *testing.T) {
	t.Parallel()

	p := GeneratePrompt("Refund for order 1234", "I want my money back",
		[]string{"Refunds take 5 days.", "Orders can be tracked online."})

	for _, want := range []string{
		HoldingText,
		Signoff,
		"Refunds take 5 days.\n---\nOrders can be tracked online.",
		"Email Subject: Refund for order 1234",
		"confidence (0-100)",
	} {
		if !strings.Contains(p, want) {
			t.Errorf("prompt missing %q", want)
		}
	}
}

func TestParseClassification(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name    string
		content string
		ok      bool
		dept    string
		ignore  bool
	}{
		{
			name:    "plain json",
			content: `{"department": "Sales", "priority": "high", "related_departments": ["Operations"]}`,
			ok:      true,
			dept:    "Sales",
		},
		{
			name:    "fenced json",
			content: "```json\n{\"department\": \"Sales\", \"priority\": \"low\"}\n```",
			ok:      true,
			dept:    "Sales",
		},
		{
			name:    "bare fence",
			content: "```\n{\"department\": \"Other\", \"priority\": \"medium\"}\n```",
			ok:      true,
			dept:    "Other",
		},
		{
			name:    "ignore without department",
			content: `{"department": "", "ignore": true, "ignore_reason": "newsletter"}`,
			ok:      true,
			ignore:  true,
		},
		{
			name:    "empty department not ignored",
			content: `{"department": "", "priority": "high"}`,
			ok:      false,
		},
		{
			name:    "prose instead of json",
			content: "This email belongs to Sales.",
			ok:      false,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			res, ok := ParseClassification(tc.content)
			if ok != tc.ok {
				t.Fatalf("ok = %v, want %v", ok, tc.ok)
			}
			if !ok {
				return
			}
			if res.Department != tc.dept {
				t.Errorf("Department = %q, want %q", res.Department, tc.dept)
			}
			if res.Ignore != tc.ignore {
				t.Errorf("Ignore = %v, want %v", res.Ignore, tc.ignore)
			}
		})
	}
}

func TestParseDraft(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name       string
		content    string
		ok         bool
		confidence int
	}{
		{"plain", `{"reply": "Here you go.", "confidence": 85}`, true, 85},
		{"fenced", "```json\n{\"reply\": \"Here you go.\", \"confidence\": 60}\n```", true, 60},
		{"clamps high", `{"reply": "sure", "confidence": 140}`, true, 100},
		{"clamps negative", `{"reply": "sure", "confidence": -5}`, true, 0},
		{"empty reply", `{"reply": "", "confidence": 90}`, false, 0},
		{"not json", "I am very confident.", false, 0},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			res, ok := ParseDraft(tc.content)
			if ok != tc.ok {
				t.Fatalf("ok = %v, want %v", ok, tc.ok)
			}
			if ok && res.Confidence != tc.confidence {
				t.Errorf("Confidence = %d, want %d", res.Confidence, tc.confidence)
			}
		})
	}
}

func TestNormalizePriority(t *testing.T) {
	t.Parallel()

	cases := []struct {
		in   string
		want triage.Priority
	}{
		{"high", triage.PriorityHigh},
		{"HIGH", triage.PriorityHigh},
		{" Low ", triage.PriorityLow},
		{"medium", triage.PriorityMedium},
		{"urgent", triage.PriorityMedium},
		{"", triage.PriorityMedium},
	}

	for _, tc := range cases {
		if got := NormalizePriority(tc.in); got != tc.want {
			t.Errorf("NormalizePriority(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}
