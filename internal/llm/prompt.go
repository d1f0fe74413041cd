// Package llm holds the prompts and response parsing shared by the provider
// clients. Both providers are asked for bare JSON objects; the helpers here
// tolerate code fences and fall back to safe defaults on malformed output.
package llm

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/tekisho/mailtriage/internal/triage"
)

// Signoff is the agent name replies must be signed with.
const Signoff = "Tekisho email agent"

// HoldingText is the mandated low-confidence reply, repeated verbatim in the
// generation prompt so the model can echo it.
const HoldingText = "Thank you for your email. We are reviewing your request and concerning departments will get back to you within 24 hours."

// ClassifyResult is the JSON shape the classification prompt asks for.
type ClassifyResult struct {
	Department         string   `json:"department"`
	Priority           string   `json:"priority"`
	Ignore             bool     `json:"ignore"`
	IgnoreReason       string   `json:"ignore_reason"`
	RelatedDepartments []string `json:"related_departments"`
}

// DraftResult is the JSON shape the generation prompt asks for.
type DraftResult struct {
	Reply      string `json:"reply"`
	Confidence int    `json:"confidence"`
}

// ClassifyPrompt builds the classification prompt over the configured
// department names.
func ClassifyPrompt(departments []string, subject, body string) string {
	var b strings.Builder
	b.WriteString("Classify this email into one of these departments:\n")
	for _, d := range departments {
		fmt.Fprintf(&b, "- %s\n", d)
	}
	b.WriteString(`
Also assign a priority: high, medium, low.

Also identify any other departments that should be CC'd (related departments) based on the context. Return them as a list of strings using the exact department names listed above.

If the email is spam, bulk marketing, or an automated notification that needs no reply, set "ignore" to true and give a short "ignore_reason".

Email Subject: `)
	b.WriteString(subject)
	b.WriteString("\nEmail Body: ")
	b.WriteString(body)
	b.WriteString(`

Output JSON only: {"department": "...", "priority": "...", "ignore": false, "ignore_reason": "", "related_departments": ["..."]}`)
	return b.String()
}

// GeneratePrompt builds the reply-drafting prompt over the retrieved
// knowledge snippets.
func GeneratePrompt(subject, body string, snippets []string) string {
	var b strings.Builder
	b.WriteString(`You are a helpful Email Agent.

Task: Draft a reply to this email and estimate your confidence (0-100) that the provided context answers the user's question.

Rules:
1. If context contains the answer -> High confidence (80-100). Draft professional reply.
2. If context is partial -> Medium confidence (50-79). Draft reply with available info.
3. If context is irrelevant/missing -> Low confidence (0-49). You MUST output EXACTLY this text as the reply: "`)
	b.WriteString(HoldingText)
	b.WriteString(`"
4. Sign off as "`)
	b.WriteString(Signoff)
	b.WriteString(`". Do not use any other name.

Context:
`)
	b.WriteString(strings.Join(snippets, "\n---\n"))
	b.WriteString("\n\nEmail Subject: ")
	b.WriteString(subject)
	b.WriteString("\nEmail Body: ")
	b.WriteString(body)
	b.WriteString(`

Output JSON only: { "reply": "...", "confidence": number }`)
	return b.String()
}

// ParseClassification decodes the classifier's JSON. ok=false means the
// content was not usable and the caller should apply defaults.
func ParseClassification(content string) (*ClassifyResult, bool) {
	var res ClassifyResult
	if err := json.Unmarshal([]byte(stripFences(content)), &res); err != nil {
		return nil, false
	}
	if res.Department == "" && !res.Ignore {
		return nil, false
	}
	return &res, true
}

// ParseDraft decodes the generator's JSON and clamps confidence to [0,100].
// ok=false means the content was not usable.
func ParseDraft(content string) (*DraftResult, bool) {
	var res DraftResult
	if err := json.Unmarshal([]byte(stripFences(content)), &res); err != nil {
		return nil, false
	}
	if res.Reply == "" {
		return nil, false
	}
	if res.Confidence < 0 {
		res.Confidence = 0
	}
	if res.Confidence > 100 {
		res.Confidence = 100
	}
	return &res, true
}

// NormalizePriority maps free-form model output onto the known priorities,
// defaulting to medium.
func NormalizePriority(p string) triage.Priority {
	switch triage.Priority(strings.ToLower(strings.TrimSpace(p))) {
	case triage.PriorityHigh:
		return triage.PriorityHigh
	case triage.PriorityLow:
		return triage.PriorityLow
	default:
		return triage.PriorityMedium
	}
}

// stripFences removes a markdown code fence if the model wrapped its JSON in
// one despite instructions.
func stripFences(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}
