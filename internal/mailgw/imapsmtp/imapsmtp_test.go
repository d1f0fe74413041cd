package imapsmtp

import (
	"io"
	"reflect"
	"strings"
	"testing"

	"github.com/tekisho/mailtriage/internal/mailgw"
)

func TestSplitRecipients(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name string
		in   string
		want []string
	}{
		{"empty", "", nil},
		{"single", "a@x.test", []string{"a@x.test"}},
		{"list", "a@x.test,b@x.test", []string{"a@x.test", "b@x.test"}},
		{"trims", " a@x.test , b@x.test ", []string{"a@x.test", "b@x.test"}},
		{"skips empties", "a@x.test,,b@x.test,", []string{"a@x.test", "b@x.test"}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			if got := splitRecipients(tc.in); !reflect.DeepEqual(got, tc.want) {
				t.Errorf("splitRecipients(%q) = %v, want %v", tc.in, got, tc.want)
			}
		})
	}
}

func TestExtractTextBody_SinglePart(t *testing.T) {
	t.Parallel()

	raw := "From: alice@example.com\r\n" +
		"To: agent@corp.test\r\n" +
		"Subject: hello\r\n" +
		"Content-Type: text/plain; charset=utf-8\r\n" +
		"\r\n" +
		"Hello world.\r\n"

	got, err := extractTextBody([]byte(raw))
	if err != nil {
		t.Fatalf("extractTextBody: %v", err)
	}
	if strings.TrimSpace(got) != "Hello world." {
		t.Errorf("body = %q", got)
	}
}

func TestExtractTextBody_MultipartPrefersPlain(t *testing.T) {
	t.Parallel()

	raw := "From: alice@example.com\r\n" +
		"To: agent@corp.test\r\n" +
		"Subject: hello\r\n" +
		"MIME-Version: 1.0\r\n" +
		"Content-Type: multipart/alternative; boundary=b1\r\n" +
		"\r\n" +
		"--b1\r\n" +
		"Content-Type: text/plain; charset=utf-8\r\n" +
		"\r\n" +
		"plain text\r\n" +
		"--b1\r\n" +
		"Content-Type: text/html; charset=utf-8\r\n" +
		"\r\n" +
		"<p>html text</p>\r\n" +
		"--b1--\r\n"

	got, err := extractTextBody([]byte(raw))
	if err != nil {
		t.Fatalf("extractTextBody: %v", err)
	}
	if strings.TrimSpace(got) != "plain text" {
		t.Errorf("body = %q, want the text/plain part", got)
	}
}

func TestExtractTextBody_SkipsAttachments(t *testing.T) {
	t.Parallel()

	raw := "From: alice@example.com\r\n" +
		"To: agent@corp.test\r\n" +
		"Subject: report\r\n" +
		"MIME-Version: 1.0\r\n" +
		"Content-Type: multipart/mixed; boundary=b1\r\n" +
		"\r\n" +
		"--b1\r\n" +
		"Content-Type: text/plain; charset=utf-8\r\n" +
		"\r\n" +
		"see attached\r\n" +
		"--b1\r\n" +
		"Content-Type: text/plain; charset=utf-8\r\n" +
		"Content-Disposition: attachment; filename=report.txt\r\n" +
		"\r\n" +
		"attachment contents\r\n" +
		"--b1--\r\n"

	got, err := extractTextBody([]byte(raw))
	if err != nil {
		t.Fatalf("extractTextBody: %v", err)
	}
	if strings.TrimSpace(got) != "see attached" {
		t.Errorf("body = %q, attachments must be skipped", got)
	}
}

func TestExtractTextBody_Empty(t *testing.T) {
	t.Parallel()

	got, err := extractTextBody(nil)
	if err != nil || got != "" {
		t.Errorf("extractTextBody(nil) = %q, %v", got, err)
	}
}

func TestBuild(t *testing.T) {
	t.Parallel()

	g := New(Config{From: "agent@corp.test"}, nil)

	out := mailgw.Outbound{
		To:        "alice@example.com",
		CC:        "sales-head@corp.test,ops-head@corp.test",
		BCC:       "admin@corp.test",
		Subject:   "Re: Refund for order 1234",
		Body:      "Your refund is on its way.",
		InReplyTo: "msg-1@example.com",
	}

	r, rcpts, err := g.build(out)
	if err != nil {
		t.Fatalf("build: %v", err)
	}

	wantRcpts := []string{"alice@example.com", "sales-head@corp.test", "ops-head@corp.test", "admin@corp.test"}
	if !reflect.DeepEqual(rcpts, wantRcpts) {
		t.Errorf("rcpts = %v, want %v", rcpts, wantRcpts)
	}

	raw, err := io.ReadAll(r)
	if err != nil {
		t.Fatalf("read message: %v", err)
	}
	msg := string(raw)

	for _, want := range []string{
		"From: <agent@corp.test>",
		"To: <alice@example.com>",
		"Subject: Re: Refund for order 1234",
		"sales-head@corp.test",
		"In-Reply-To: <msg-1@example.com>",
		"References: <msg-1@example.com>",
	} {
		if !strings.Contains(msg, want) {
			t.Errorf("message missing %q", want)
		}
	}

	// BCC rides the envelope only
	headers, _, _ := strings.Cut(msg, "\r\n\r\n")
	if strings.Contains(headers, "admin@corp.test") {
		t.Error("BCC address leaked into the headers")
	}

	body, err := extractTextBody(raw)
	if err != nil {
		t.Fatalf("parse rendered message: %v", err)
	}
	if strings.TrimSpace(body) != out.Body {
		t.Errorf("body = %q, want %q", body, out.Body)
	}
}

func TestBuild_NoOptionalFields(t *testing.T) {
	t.Parallel()

	g := New(Config{From: "agent@corp.test"}, nil)

	r, rcpts, err := g.build(mailgw.Outbound{
		To:      "alice@example.com",
		Subject: "hello",
		Body:    "hi",
	})
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	if len(rcpts) != 1 || rcpts[0] != "alice@example.com" {
		t.Errorf("rcpts = %v", rcpts)
	}

	raw, _ := io.ReadAll(r)
	msg := string(raw)
	if strings.Contains(msg, "In-Reply-To") || strings.Contains(msg, "Cc:") {
		t.Errorf("unexpected optional headers:\n%s", msg)
	}
}
