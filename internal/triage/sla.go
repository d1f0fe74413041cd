package triage

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/linnemanlabs/go-core/log"

	"github.com/tekisho/mailtriage/internal/directory"
	"github.com/tekisho/mailtriage/internal/mailgw"
)

const (
	// ReminderAfter is the age at which an unresolved record triggers a
	// reminder to the department head.
	ReminderAfter = 20 * time.Hour

	// EscalateAfter is the age at which an unresolved record escalates to the
	// administrator. Escalation wins when both thresholds have passed.
	EscalateAfter = 24 * time.Hour
)

// Notifier receives out-of-band notices about escalations and batch faults.
type Notifier interface {
	EscalationRaised(ctx context.Context, rec *Record) error
}

// SweepResult summarizes one SLA sweep.
type SweepResult struct {
	Scanned     int    `json:"scanned"`
	Reminders   int    `json:"reminders"`
	Escalations int    `json:"escalations"`
	Errors      int    `json:"errors"`
	Skipped     bool   `json:"skipped"`
	Reason      string `json:"reason,omitempty"`
}

// Sweeper walks unresolved records and fires the 20h reminder and 24h
// escalation, each at most once per record, ever. Flags are persisted
// after the send succeeds, so a failed send retries next sweep.
type Sweeper struct {
	store    Store
	dir      directory.Directory
	gateway  mailgw.Gateway
	admin    string
	notifier Notifier
	logger   log.Logger
	metrics  *Metrics

	mu sync.Mutex
}

// NewSweeper creates a sweeper. notifier and metrics may be nil.
func NewSweeper(store Store, dir directory.Directory, gateway mailgw.Gateway, admin string, notifier Notifier, logger log.Logger, metrics *Metrics) *Sweeper {
	if logger == nil {
		logger = log.Nop()
	}
	return &Sweeper{
		store:    store,
		dir:      dir,
		gateway:  gateway,
		admin:    admin,
		notifier: notifier,
		logger:   logger,
		metrics:  metrics,
	}
}

// Run executes one sweep. Per-record failures are counted and logged without
// stopping the sweep. An overlapping trigger skips instead of queueing.
func (w *Sweeper) Run(ctx context.Context) (*SweepResult, error) {
	if !w.mu.TryLock() {
		w.logger.Info(ctx, "previous sweep still running, skipping")
		return &SweepResult{Skipped: true, Reason: "busy"}, nil
	}
	defer w.mu.Unlock()

	recs, err := w.store.ListUnresolved(ctx)
	if err != nil {
		return nil, fmt.Errorf("list unresolved: %w", err)
	}

	now := time.Now().UTC()
	res := &SweepResult{Scanned: len(recs)}
	for _, rec := range recs {
		if err := w.check(ctx, rec, now, res); err != nil {
			res.Errors++
			w.logger.Error(ctx, err, "sla check failed", "record_id", rec.ID)
		}
	}

	if res.Reminders > 0 || res.Escalations > 0 || res.Errors > 0 {
		w.logger.Info(ctx, "sla sweep complete",
			"scanned", res.Scanned,
			"reminders", res.Reminders,
			"escalations", res.Escalations,
			"errors", res.Errors,
		)
	}
	return res, nil
}

func (w *Sweeper) check(ctx context.Context, rec *Record, now time.Time, res *SweepResult) error {
	age := now.Sub(rec.CreatedAt)

	switch {
	case age >= EscalateAfter && !rec.Meta.EscalationSent:
		if err := w.escalate(ctx, rec); err != nil {
			return err
		}
		rec.Meta.EscalationSent = true
		if err := w.store.SetMeta(ctx, rec.ID, rec.Meta); err != nil {
			return fmt.Errorf("persist escalation flag: %w", err)
		}
		w.metrics.escalation()
		res.Escalations++

	// an escalated record never gets a late reminder
	case age >= ReminderAfter && !rec.Meta.ReminderSent && !rec.Meta.EscalationSent:
		sent, err := w.remind(ctx, rec)
		if err != nil {
			return err
		}
		// flag is set even when no head contact exists, so a record with a
		// broken route does not warn on every sweep
		rec.Meta.ReminderSent = true
		if err := w.store.SetMeta(ctx, rec.ID, rec.Meta); err != nil {
			return fmt.Errorf("persist reminder flag: %w", err)
		}
		if sent {
			w.metrics.reminder()
			res.Reminders++
		}
	}
	return nil
}

func (w *Sweeper) escalate(ctx context.Context, rec *Record) error {
	deptName := w.departmentName(ctx, rec)
	out := mailgw.Outbound{
		To:      w.admin,
		Subject: "[ESCALATION] Unresolved Query: " + rec.Subject,
		Body: fmt.Sprintf("The following query has been unresolved for over 24 hours.\n\n"+
			"From: %s\nDepartment: %s\nReceived: %s\n\nPlease take immediate action.",
			rec.From, deptName, rec.CreatedAt.Format(time.RFC1123)),
	}
	if err := w.gateway.Send(ctx, out); err != nil {
		return fmt.Errorf("send escalation: %w", err)
	}
	w.logger.Warn(ctx, "record escalated", "record_id", rec.ID, "subject", rec.Subject, "age_hours", time.Since(rec.CreatedAt).Hours())

	if w.notifier != nil {
		if err := w.notifier.EscalationRaised(ctx, rec); err != nil {
			w.logger.Warn(ctx, "escalation notice failed", "record_id", rec.ID, "error", err)
		}
	}
	return nil
}

// remind sends the 20h reminder to the department head. It reports whether a
// mail actually went out; a missing head contact is a warning, not an error.
func (w *Sweeper) remind(ctx context.Context, rec *Record) (bool, error) {
	head := w.headEmail(ctx, rec)
	if head == "" {
		w.logger.Warn(ctx, "no head contact for reminder", "record_id", rec.ID)
		return false, nil
	}
	out := mailgw.Outbound{
		To:      head,
		Subject: "[REMINDER] Unresolved Query: " + rec.Subject,
		Body: fmt.Sprintf("This query has been pending for over 20 hours. Please resolve it soon to avoid escalation.\n\n"+
			"From: %s\nReceived: %s",
			rec.From, rec.CreatedAt.Format(time.RFC1123)),
	}
	if err := w.gateway.Send(ctx, out); err != nil {
		return false, fmt.Errorf("send reminder: %w", err)
	}
	w.logger.Info(ctx, "reminder sent", "record_id", rec.ID, "head", head)
	return true, nil
}

func (w *Sweeper) headEmail(ctx context.Context, rec *Record) string {
	if rec.DepartmentID == nil {
		return ""
	}
	d, ok, err := w.dir.Get(ctx, *rec.DepartmentID)
	if err != nil {
		w.logger.Warn(ctx, "department lookup failed", "record_id", rec.ID, "error", err)
		return ""
	}
	if !ok {
		return ""
	}
	return d.HeadEmail
}

func (w *Sweeper) departmentName(ctx context.Context, rec *Record) string {
	if rec.DepartmentID == nil {
		return "unassigned"
	}
	d, ok, err := w.dir.Get(ctx, *rec.DepartmentID)
	if err != nil || !ok {
		return "unassigned"
	}
	return d.Name
}
