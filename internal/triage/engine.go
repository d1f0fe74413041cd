package triage

import (
	"context"
	"fmt"
	"time"

	"github.com/linnemanlabs/go-core/log"
	"github.com/oklog/ulid/v2"

	"github.com/tekisho/mailtriage/internal/directory"
	"github.com/tekisho/mailtriage/internal/mailgw"
)

const (
	// DedupWindow is the trailing window in which a message with the same
	// subject and sender is treated as a redelivery. Subject+sender only;
	// body is not compared. Collisions inside the window are accepted.
	DedupWindow = time.Hour

	// ConfidenceThreshold is evaluated on the generator's 0..100 scale.
	// Below it the draft is not trusted and the holding reply goes out.
	ConfidenceThreshold = 50
)

// HoldingReply is the fixed acknowledgment sent whenever confidence is below
// threshold, regardless of draft content.
const HoldingReply = "Thank you for your email. We are reviewing your request and concerning departments will get back to you within 24 hours."

// Outcome is the terminal disposition of one message's pipeline.
type Outcome string

const (
	OutcomeDuplicate   Outcome = "duplicate"
	OutcomeIgnored     Outcome = "ignored"
	OutcomeAnswered    Outcome = "answered"
	OutcomeNeedsReview Outcome = "needs_review"
)

// Engine runs the per-message pipeline: dedup, classify, route, retrieve,
// draft, decide, persist, send, mark seen. Stages return early on error so a
// failed message stays unread at the gateway and is re-offered next poll.
type Engine struct {
	store      Store
	dir        directory.Directory
	classifier Classifier
	retriever  Retriever
	generator  Generator
	gateway    mailgw.Gateway
	admin      string
	logger     log.Logger
}

// NewEngine creates an engine. admin is the administrator contact BCC'd on
// urgent traffic.
func NewEngine(store Store, dir directory.Directory, classifier Classifier, retriever Retriever, generator Generator, gateway mailgw.Gateway, admin string, logger log.Logger) *Engine {
	if logger == nil {
		logger = log.Nop()
	}
	return &Engine{
		store:      store,
		dir:        dir,
		classifier: classifier,
		retriever:  retriever,
		generator:  generator,
		gateway:    gateway,
		admin:      admin,
		logger:     logger,
	}
}

// Process triages one inbound message. A nil error means the message was
// fully handled and marked seen; a non-nil error means it was left unread for
// redelivery and no reply went to the sender.
func (e *Engine) Process(ctx context.Context, msg mailgw.Message) (Outcome, error) {
	L := e.logger.With("uid", msg.UID, "subject", msg.Subject, "from", msg.From)

	// dedup gate
	if _, ok, err := e.store.FindRecent(ctx, msg.Subject, msg.From, time.Now().Add(-DedupWindow)); err != nil {
		return "", fmt.Errorf("dedup lookup: %w", err)
	} else if ok {
		L.Info(ctx, "duplicate within dedup window, dropping")
		if err := e.gateway.MarkSeen(ctx, msg.UID); err != nil {
			return "", fmt.Errorf("mark seen: %w", err)
		}
		return OutcomeDuplicate, nil
	}

	cl, err := e.classifier.Classify(ctx, msg.Subject, msg.Body)
	if err != nil {
		return "", fmt.Errorf("classify: %w", err)
	}

	// spam gate: no record, no reply
	if cl.Ignore {
		L.Info(ctx, "message ignored", "reason", cl.IgnoreReason)
		if err := e.gateway.MarkSeen(ctx, msg.UID); err != nil {
			return "", fmt.Errorf("mark seen: %w", err)
		}
		return OutcomeIgnored, nil
	}

	dept, ok, err := directory.Resolve(ctx, e.dir, cl.Department)
	if err != nil {
		return "", fmt.Errorf("resolve department %q: %w", cl.Department, err)
	}
	var deptID *string
	var head string
	if ok {
		deptID = &dept.ID
		head = dept.HeadEmail
	} else {
		// even the fallback department is missing; continue with a null
		// department rather than failing the message
		L.Warn(ctx, "fallback department missing from directory", "department", cl.Department)
	}

	ccHeads, err := e.relatedHeads(ctx, cl, head, msg.From)
	if err != nil {
		return "", err
	}

	// record insertion happens only after classification succeeds, so an
	// aborted pipeline never leaves a half-written record
	rec := &Record{
		ID:           ulid.Make().String(),
		Subject:      msg.Subject,
		From:         msg.From,
		Body:         msg.Body,
		DepartmentID: deptID,
		Priority:     cl.Priority,
		Status:       StatusPending,
		Meta:         &Meta{},
		CreatedAt:    time.Now().UTC(),
	}
	if err := e.store.Put(ctx, rec); err != nil {
		return "", fmt.Errorf("insert record: %w", err)
	}

	snippets, err := e.retriever.Search(ctx, msg.Body, cl.Department)
	if err != nil {
		return "", fmt.Errorf("search context: %w", err)
	}

	// fast path: an empty context can never justify a trusted answer, so
	// confidence is forced to 0 and the generation call is skipped
	draft := &Draft{Reply: HoldingReply, Confidence: 0}
	if len(snippets) > 0 {
		draft, err = e.generator.Generate(ctx, msg.Subject, msg.Body, snippets)
		if err != nil {
			return "", fmt.Errorf("generate reply: %w", err)
		}
	} else {
		L.Info(ctx, "no knowledge context, forcing zero confidence")
	}

	rec.Confidence = float64(draft.Confidence) / 100
	rec.Reply = draft.Reply
	rec.TokensUsed = cl.Usage.Total() + draft.Usage.Total()
	rec.Meta.UsedChunks = snippets
	rec.CC = JoinRecipients(append([]string{head}, ccHeads...)...)

	outcome, err := e.decide(ctx, rec, msg, draft, head, ccHeads)
	if err != nil {
		return "", err
	}

	if err := e.store.Put(ctx, rec); err != nil {
		return "", fmt.Errorf("update record: %w", err)
	}

	if err := e.gateway.MarkSeen(ctx, msg.UID); err != nil {
		return "", fmt.Errorf("mark seen: %w", err)
	}

	L.Info(ctx, "message triaged",
		"record_id", rec.ID,
		"department", cl.Department,
		"priority", rec.Priority,
		"confidence", draft.Confidence,
		"status", rec.Status,
		"tokens", rec.TokensUsed,
	)
	return outcome, nil
}

// decide applies the decision table and performs the sends. It mutates rec's
// status, meta and sent_at; the caller persists.
func (e *Engine) decide(ctx context.Context, rec *Record, msg mailgw.Message, draft *Draft, head string, ccHeads []string) (Outcome, error) {
	lowConfidence := draft.Confidence < ConfidenceThreshold

	if rec.Priority == PriorityHigh {
		if head != "" {
			forward := mailgw.Outbound{
				To:      head,
				Subject: "[URGENT] Forwarded: " + msg.Subject,
				Body:    fmt.Sprintf("This urgent email was received from %s.\n\nBody:\n%s", msg.From, msg.Body),
				CC:      JoinRecipients(ccHeads...),
				BCC:     e.admin,
			}
			if err := e.gateway.Send(ctx, forward); err != nil {
				return "", fmt.Errorf("forward to head: %w", err)
			}
			rec.Meta.Note = "URGENT: forwarded to department head"
		} else {
			e.logger.Warn(ctx, "no head contact for urgent forward", "subject", msg.Subject)
		}

		if lowConfidence {
			if err := e.sendToSender(ctx, msg, HoldingReply, head, ccHeads, e.admin); err != nil {
				return "", err
			}
			rec.Meta.HoldingSent = true
			rec.Meta.AutoSent = true
			rec.SentAt = time.Now().UTC()
		}

		rec.Status = StatusNeedsReview
		return OutcomeNeedsReview, nil
	}

	if lowConfidence {
		if err := e.sendToSender(ctx, msg, HoldingReply, head, ccHeads, ""); err != nil {
			return "", err
		}
		rec.Meta.HoldingSent = true
		rec.Meta.AutoSent = true
		rec.SentAt = time.Now().UTC()
		rec.Status = StatusNeedsReview
		return OutcomeNeedsReview, nil
	}

	if err := e.sendToSender(ctx, msg, draft.Reply, head, ccHeads, ""); err != nil {
		return "", err
	}
	rec.Meta.AutoSent = true
	rec.SentAt = time.Now().UTC()
	rec.Status = StatusRagAnswered
	return OutcomeAnswered, nil
}

func (e *Engine) sendToSender(ctx context.Context, msg mailgw.Message, body, head string, ccHeads []string, bcc string) error {
	out := mailgw.Outbound{
		To:        msg.From,
		Subject:   "Re: " + msg.Subject,
		Body:      body,
		CC:        JoinRecipients(append([]string{head}, ccHeads...)...),
		BCC:       bcc,
		InReplyTo: msg.MessageID,
	}
	if err := e.gateway.Send(ctx, out); err != nil {
		return fmt.Errorf("send reply: %w", err)
	}
	return nil
}

// relatedHeads resolves the CC set from related departments, excluding the
// primary department by name (case-sensitive, matching upstream behavior),
// the primary head, and the sender.
func (e *Engine) relatedHeads(ctx context.Context, cl *Classification, primaryHead, sender string) ([]string, error) {
	var heads []string
	for _, name := range cl.RelatedDepartments {
		if name == cl.Department {
			continue
		}
		d, ok, err := e.dir.Find(ctx, name)
		if err != nil {
			return nil, fmt.Errorf("resolve related department %q: %w", name, err)
		}
		if !ok || d.HeadEmail == "" {
			continue
		}
		if d.HeadEmail == primaryHead || d.HeadEmail == sender {
			continue
		}
		heads = append(heads, d.HeadEmail)
	}
	return heads, nil
}
