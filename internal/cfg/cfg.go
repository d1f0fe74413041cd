// Package cfg holds the application configuration, registered as flags and
// filled from the environment.
package cfg

import (
	"errors"
	"flag"
	"fmt"
	"strings"

	"github.com/tekisho/mailtriage/internal/directory"
)

// Config adds triage-specific configuration fields to the common
// cfg.Registerable and cfg.Validatable interfaces
type Config struct {
	DrainSeconds          int
	ShutdownBudgetSeconds int
	APIPort               int

	DatabaseURL string

	IMAPAddr     string
	SMTPAddr     string
	MailUsername string
	MailPassword string
	MailFrom     string
	Mailbox      string
	AdminEmail   string

	LLMProvider  string
	OpenAIAPIKey string
	OpenAIModel  string
	ClaudeAPIKey string
	ClaudeModel  string

	Departments string

	TypesenseURL        string
	TypesenseAPIKey     string
	TypesenseCollection string

	PollSeconds        int
	SweepSeconds       int
	CallTimeoutSeconds int

	APIToken        string
	SlackWebhookURL string
}

// RegisterFlags binds Config fields to the given FlagSet with defaults inline
func (c *Config) RegisterFlags(fs *flag.FlagSet) {
	fs.IntVar(&c.DrainSeconds, "drain-seconds", 60, "seconds to wait for in-flight requests to drain before shutdown (1..300)")
	fs.IntVar(&c.ShutdownBudgetSeconds, "shutdown-budget-seconds", 90, "total seconds for component shutdown after drain (1..300)")
	fs.IntVar(&c.APIPort, "http-port", 8080, "API listen TCP port (1..65535)")

	fs.StringVar(&c.DatabaseURL, "database-url", "", "PostgreSQL connection URL (empty = in-memory store)")

	fs.StringVar(&c.IMAPAddr, "imap-addr", "", "IMAP host:port of the shared mailbox (implicit TLS)")
	fs.StringVar(&c.SMTPAddr, "smtp-addr", "", "SMTP host:port for outbound mail (STARTTLS submission)")
	fs.StringVar(&c.MailUsername, "mail-username", "", "mailbox login")
	fs.StringVar(&c.MailPassword, "mail-password", "", "mailbox password")
	fs.StringVar(&c.MailFrom, "mail-from", "", "sender address for outbound mail")
	fs.StringVar(&c.Mailbox, "mailbox", "INBOX", "IMAP mailbox to poll")
	fs.StringVar(&c.AdminEmail, "admin-email", "", "administrator contact for escalations and urgent BCC")

	fs.StringVar(&c.LLMProvider, "llm-provider", "openai", "LLM provider: openai or claude")
	fs.StringVar(&c.OpenAIAPIKey, "openai-api-key", "", "API key for the OpenAI provider")
	fs.StringVar(&c.OpenAIModel, "openai-model", "gpt-4o", "OpenAI model to use")
	fs.StringVar(&c.ClaudeAPIKey, "claude-api-key", "", "API key for the Claude provider")
	fs.StringVar(&c.ClaudeModel, "claude-model", "claude-sonnet-4-5", "Claude model to use")

	fs.StringVar(&c.Departments, "departments",
		"Human Resources=;Accounting and Finance=;Operations=;Sales=;Customer Support=;Other=",
		"semicolon-separated Name=head-email pairs; must include Other")

	fs.StringVar(&c.TypesenseURL, "typesense-url", "", "Typesense server URL for knowledge retrieval")
	fs.StringVar(&c.TypesenseAPIKey, "typesense-api-key", "", "Typesense API key")
	fs.StringVar(&c.TypesenseCollection, "typesense-collection", "knowledge", "Typesense collection holding knowledge snippets")

	fs.IntVar(&c.PollSeconds, "poll-seconds", 60, "seconds between mailbox poll cycles")
	fs.IntVar(&c.SweepSeconds, "sweep-seconds", 600, "seconds between SLA sweeps")
	fs.IntVar(&c.CallTimeoutSeconds, "call-timeout-seconds", 60, "per-message pipeline timeout in seconds")

	fs.StringVar(&c.APIToken, "api-token", "", "bearer token guarding mutating API routes (empty = unguarded)")
	fs.StringVar(&c.SlackWebhookURL, "slack-webhook-url", "", "Slack webhook URL for notifications")
}

// Validate checks all configuration fields for correctness.
// It returns an error if any field is invalid, or nil if all fields are valid.
func (c *Config) Validate() error {
	var errs []error

	if c.DrainSeconds <= 0 || c.DrainSeconds > 300 {
		errs = append(errs, fmt.Errorf("invalid DRAIN_SECONDS %d (must be 1..300)", c.DrainSeconds))
	}
	if c.ShutdownBudgetSeconds <= 0 || c.ShutdownBudgetSeconds > 300 {
		errs = append(errs, fmt.Errorf("invalid SHUTDOWN_BUDGET_SECONDS %d (must be 1..300)", c.ShutdownBudgetSeconds))
	}
	if c.ShutdownBudgetSeconds <= c.DrainSeconds {
		errs = append(errs, fmt.Errorf("SHUTDOWN_BUDGET_SECONDS %d must be greater than DRAIN_SECONDS %d", c.ShutdownBudgetSeconds, c.DrainSeconds))
	}
	if c.APIPort <= 0 || c.APIPort > 65535 {
		errs = append(errs, fmt.Errorf("invalid HTTP_PORT %d (must be 1..65535)", c.APIPort))
	}

	if c.IMAPAddr == "" {
		errs = append(errs, errors.New("IMAP_ADDR is required"))
	}
	if c.SMTPAddr == "" {
		errs = append(errs, errors.New("SMTP_ADDR is required"))
	}
	if c.MailFrom == "" {
		errs = append(errs, errors.New("MAIL_FROM is required"))
	}
	if c.AdminEmail == "" {
		errs = append(errs, errors.New("ADMIN_EMAIL is required"))
	}

	switch c.LLMProvider {
	case "openai":
		if c.OpenAIAPIKey == "" {
			errs = append(errs, errors.New("OPENAI_API_KEY is required for the openai provider"))
		}
	case "claude":
		if c.ClaudeAPIKey == "" {
			errs = append(errs, errors.New("CLAUDE_API_KEY is required for the claude provider"))
		}
	default:
		errs = append(errs, fmt.Errorf("invalid LLM_PROVIDER %q (must be openai or claude)", c.LLMProvider))
	}

	if c.TypesenseURL == "" {
		errs = append(errs, errors.New("TYPESENSE_URL is required"))
	}

	if depts, err := c.ParseDepartments(); err != nil {
		errs = append(errs, err)
	} else {
		hasFallback := false
		for _, d := range depts {
			if d.Name == directory.FallbackName {
				hasFallback = true
			}
		}
		if !hasFallback {
			errs = append(errs, fmt.Errorf("DEPARTMENTS must include the %q fallback", directory.FallbackName))
		}
	}

	if c.PollSeconds <= 0 {
		errs = append(errs, fmt.Errorf("invalid POLL_SECONDS %d (must be positive)", c.PollSeconds))
	}
	if c.SweepSeconds <= 0 {
		errs = append(errs, fmt.Errorf("invalid SWEEP_SECONDS %d (must be positive)", c.SweepSeconds))
	}
	if c.CallTimeoutSeconds <= 0 {
		errs = append(errs, fmt.Errorf("invalid CALL_TIMEOUT_SECONDS %d (must be positive)", c.CallTimeoutSeconds))
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	return nil
}

// ParseDepartments decodes the DEPARTMENTS value into directory entries.
// Format: semicolon-separated Name=head-email pairs; the head may be empty.
// IDs are derived from the name so config and database stay in step across
// restarts.
func (c *Config) ParseDepartments() ([]directory.Department, error) {
	var out []directory.Department
	seen := make(map[string]struct{})
	for _, pair := range strings.Split(c.Departments, ";") {
		pair = strings.TrimSpace(pair)
		if pair == "" {
			continue
		}
		name, head, found := strings.Cut(pair, "=")
		if !found {
			return nil, fmt.Errorf("invalid DEPARTMENTS entry %q (want Name=head-email)", pair)
		}
		name = strings.TrimSpace(name)
		if name == "" {
			return nil, fmt.Errorf("invalid DEPARTMENTS entry %q (empty name)", pair)
		}
		if _, dup := seen[name]; dup {
			return nil, fmt.Errorf("duplicate DEPARTMENTS entry %q", name)
		}
		seen[name] = struct{}{}
		out = append(out, directory.Department{
			ID:        slug(name),
			Name:      name,
			HeadEmail: strings.TrimSpace(head),
		})
	}
	if len(out) == 0 {
		return nil, errors.New("DEPARTMENTS must not be empty")
	}
	return out, nil
}

// DepartmentNames returns the configured names in declaration order, for the
// classifier prompt.
func (c *Config) DepartmentNames() []string {
	depts, err := c.ParseDepartments()
	if err != nil {
		return nil
	}
	names := make([]string, len(depts))
	for i, d := range depts {
		names[i] = d.Name
	}
	return names
}

func slug(name string) string {
	return strings.ReplaceAll(strings.ToLower(strings.TrimSpace(name)), " ", "-")
}
