// Package imapsmtp implements mailgw.Gateway over a shared IMAP mailbox for
// intake and an SMTP submission endpoint for outbound mail.
package imapsmtp

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/emersion/go-imap/v2"
	"github.com/emersion/go-imap/v2/imapclient"
	"github.com/emersion/go-message/mail"
	"github.com/emersion/go-sasl"
	"github.com/emersion/go-smtp"

	"github.com/linnemanlabs/go-core/log"

	"github.com/tekisho/mailtriage/internal/mailgw"
)

// Config holds the mailbox and submission endpoints.
type Config struct {
	IMAPAddr string // host:port, implicit TLS
	SMTPAddr string // host:port, STARTTLS submission
	Username string
	Password string
	From     string // envelope and header sender for outbound mail
	Mailbox  string // defaults to INBOX
}

// Gateway holds one IMAP connection, re-dialed on failure. IMAP commands do
// not take a context; the ctx parameters bound only the (re)dial.
type Gateway struct {
	cfg    Config
	logger log.Logger

	mu     sync.Mutex
	client *imapclient.Client
}

// New creates a gateway. The first IMAP dial happens lazily on first use.
func New(cfg Config, logger log.Logger) *Gateway {
	if cfg.Mailbox == "" {
		cfg.Mailbox = "INBOX"
	}
	if logger == nil {
		logger = log.Nop()
	}
	return &Gateway{cfg: cfg, logger: logger}
}

// Close logs out the IMAP session if one is open.
func (g *Gateway) Close() error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.client == nil {
		return nil
	}
	err := g.client.Logout().Wait()
	g.client = nil
	return err
}

// FetchUnread returns all unseen messages in the mailbox without changing
// their flags.
func (g *Gateway) FetchUnread(ctx context.Context) ([]mailgw.Message, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	c, err := g.conn(ctx)
	if err != nil {
		return nil, err
	}

	criteria := &imap.SearchCriteria{NotFlag: []imap.Flag{imap.FlagSeen}}
	data, err := c.UIDSearch(criteria, nil).Wait()
	if err != nil {
		g.drop()
		return nil, fmt.Errorf("uid search: %w", err)
	}
	uids := data.AllUIDs()
	if len(uids) == 0 {
		return nil, nil
	}

	bodySection := &imap.FetchItemBodySection{Peek: true}
	fetchOptions := &imap.FetchOptions{
		UID:         true,
		Envelope:    true,
		BodySection: []*imap.FetchItemBodySection{bodySection},
	}
	buffered, err := c.Fetch(imap.UIDSetNum(uids...), fetchOptions).Collect()
	if err != nil {
		g.drop()
		return nil, fmt.Errorf("fetch: %w", err)
	}

	msgs := make([]mailgw.Message, 0, len(buffered))
	for _, buf := range buffered {
		msg := mailgw.Message{UID: uint32(buf.UID)}
		if env := buf.Envelope; env != nil {
			msg.Subject = env.Subject
			msg.MessageID = strings.Trim(env.MessageID, "<>")
			if len(env.From) > 0 {
				msg.From = env.From[0].Addr()
			}
		}
		raw := buf.FindBodySection(bodySection)
		body, err := extractTextBody(raw)
		if err != nil {
			// fall back to the raw bytes rather than losing the message
			g.logger.Warn(ctx, "body parse failed, using raw body", "uid", buf.UID, "error", err)
			body = string(raw)
		}
		msg.Body = body
		msgs = append(msgs, msg)
	}
	return msgs, nil
}

// MarkSeen flags one message as seen. Safe to repeat.
func (g *Gateway) MarkSeen(ctx context.Context, uid uint32) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	c, err := g.conn(ctx)
	if err != nil {
		return err
	}
	store := &imap.StoreFlags{
		Op:     imap.StoreFlagsAdd,
		Flags:  []imap.Flag{imap.FlagSeen},
		Silent: true,
	}
	if err := c.Store(imap.UIDSetNum(imap.UID(uid)), store, nil).Close(); err != nil {
		g.drop()
		return fmt.Errorf("store \\Seen: %w", err)
	}
	return nil
}

// Send submits one message. BCC recipients ride the envelope only.
func (g *Gateway) Send(_ context.Context, out mailgw.Outbound) error {
	raw, rcpts, err := g.build(out)
	if err != nil {
		return err
	}
	auth := sasl.NewPlainClient("", g.cfg.Username, g.cfg.Password)
	if err := smtp.SendMail(g.cfg.SMTPAddr, auth, g.cfg.From, rcpts, raw); err != nil {
		return fmt.Errorf("smtp send: %w", err)
	}
	return nil
}

// conn returns the live IMAP client, dialing and selecting the mailbox when
// needed. Callers hold g.mu.
func (g *Gateway) conn(ctx context.Context) (*imapclient.Client, error) {
	if g.client != nil {
		return g.client, nil
	}
	c, err := imapclient.DialTLS(g.cfg.IMAPAddr, nil)
	if err != nil {
		return nil, fmt.Errorf("imap dial: %w", err)
	}
	if err := c.Login(g.cfg.Username, g.cfg.Password).Wait(); err != nil {
		_ = c.Close()
		return nil, fmt.Errorf("imap login: %w", err)
	}
	if _, err := c.Select(g.cfg.Mailbox, nil).Wait(); err != nil {
		_ = c.Close()
		return nil, fmt.Errorf("select %s: %w", g.cfg.Mailbox, err)
	}
	g.logger.Info(ctx, "imap session established", "addr", g.cfg.IMAPAddr, "mailbox", g.cfg.Mailbox)
	g.client = c
	return c, nil
}

// drop discards the IMAP connection after a command failure so the next call
// re-dials. Callers hold g.mu.
func (g *Gateway) drop() {
	if g.client != nil {
		_ = g.client.Close()
		g.client = nil
	}
}

// build renders the outbound message and returns it with the full envelope
// recipient list (To + CC + BCC).
func (g *Gateway) build(out mailgw.Outbound) (io.Reader, []string, error) {
	var h mail.Header
	h.SetDate(time.Now())
	h.SetSubject(out.Subject)
	h.SetAddressList("From", []*mail.Address{{Address: g.cfg.From}})
	h.SetAddressList("To", []*mail.Address{{Address: out.To}})

	rcpts := []string{out.To}
	if cc := splitRecipients(out.CC); len(cc) > 0 {
		ccList := make([]*mail.Address, 0, len(cc))
		for _, a := range cc {
			ccList = append(ccList, &mail.Address{Address: a})
			rcpts = append(rcpts, a)
		}
		h.SetAddressList("Cc", ccList)
	}
	// BCC is envelope-only: no header
	rcpts = append(rcpts, splitRecipients(out.BCC)...)

	if out.InReplyTo != "" {
		h.SetMsgIDList("In-Reply-To", []string{out.InReplyTo})
		h.SetMsgIDList("References", []string{out.InReplyTo})
	}

	var buf bytes.Buffer
	w, err := mail.CreateSingleInlineWriter(&buf, h)
	if err != nil {
		return nil, nil, fmt.Errorf("create message: %w", err)
	}
	if _, err := io.WriteString(w, out.Body); err != nil {
		_ = w.Close()
		return nil, nil, fmt.Errorf("write body: %w", err)
	}
	if err := w.Close(); err != nil {
		return nil, nil, fmt.Errorf("finish message: %w", err)
	}
	return &buf, rcpts, nil
}

func splitRecipients(list string) []string {
	if list == "" {
		return nil
	}
	var out []string
	for _, a := range strings.Split(list, ",") {
		if a = strings.TrimSpace(a); a != "" {
			out = append(out, a)
		}
	}
	return out
}

// extractTextBody pulls the first text/plain part out of a raw RFC 5322
// message, concatenating when the message carries several.
func extractTextBody(raw []byte) (string, error) {
	if len(raw) == 0 {
		return "", nil
	}
	reader, err := mail.CreateReader(bytes.NewReader(raw))
	if err != nil {
		return "", err
	}
	var text string
	for {
		part, err := reader.NextPart()
		if err == io.EOF {
			break
		}
		if err != nil {
			return text, err
		}
		header, ok := part.Header.(*mail.InlineHeader)
		if !ok {
			continue
		}
		mediaType, _, _ := header.ContentType()
		if !strings.HasPrefix(mediaType, "text/plain") && mediaType != "" {
			continue
		}
		body, err := io.ReadAll(part.Body)
		if err != nil {
			continue
		}
		if text == "" {
			text = string(body)
		} else {
			text += "\n" + string(body)
		}
	}
	return text, nil
}
