// Package mailapi exposes the operational HTTP surface: trigger a poll
// cycle, trigger an SLA sweep, read records, flip the intake pause state,
// and receive push notifications from the mail provider.
package mailapi

import (
	"context"
	"encoding/json"
	"net/http"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/go-chi/chi/v5"
	"github.com/linnemanlabs/go-core/log"
	"github.com/linnemanlabs/go-core/xerrors"

	"github.com/tekisho/mailtriage/internal/triage"
)

// TriageService defines the batch operations mailapi needs.
type TriageService interface {
	ProcessBatch(ctx context.Context) (*triage.BatchResult, error)
	Pause()
	Resume()
	Paused() bool
}

// SweepService defines the SLA sweep operation.
type SweepService interface {
	Run(ctx context.Context) (*triage.SweepResult, error)
}

// RecordStore defines the read access mailapi needs.
type RecordStore interface {
	Get(ctx context.Context, id string) (*triage.Record, bool, error)
}

// API holds dependencies for HTTP handlers.
type API struct {
	logger  log.Logger
	svc     TriageService
	sweeper SweepService
	store   RecordStore
}

// New creates a new API handler.
func New(logger log.Logger, svc TriageService, sweeper SweepService, store RecordStore) *API {
	if logger == nil {
		logger = log.Nop()
	}
	if svc == nil || sweeper == nil || store == nil {
		panic(xerrors.New("triage service, sweeper and store are required"))
	}
	return &API{
		logger:  logger,
		svc:     svc,
		sweeper: sweeper,
		store:   store,
	}
}

// RegisterRoutes attaches API endpoints to the router. auth guards the
// mutating routes and the webhook; nil means unguarded.
func (a *API) RegisterRoutes(r chi.Router, auth func(http.Handler) http.Handler) {
	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/records/{id}", a.handleGetRecord)
		r.Get("/state", a.handleGetState)

		r.Group(func(r chi.Router) {
			if auth != nil {
				r.Use(auth)
			}
			r.Post("/process", a.handleProcess)
			r.Post("/sweep", a.handleSweep)
			r.Put("/state", a.handlePutState)
			r.Post("/webhooks/mail", a.handleMailWebhook)
		})
	})
}

// handleProcess runs one poll cycle synchronously and returns its summary.
// A cycle skipped because another is running still answers 200.
func (a *API) handleProcess(w http.ResponseWriter, r *http.Request) {
	res, err := a.svc.ProcessBatch(r.Context())
	if err != nil {
		a.logger.Error(r.Context(), err, "manual batch failed")
		http.Error(w, `{"error":"batch failed"}`, http.StatusBadGateway)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (a *API) handleSweep(w http.ResponseWriter, r *http.Request) {
	res, err := a.sweeper.Run(r.Context())
	if err != nil {
		a.logger.Error(r.Context(), err, "manual sweep failed")
		http.Error(w, `{"error":"sweep failed"}`, http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (a *API) handleGetRecord(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	span := trace.SpanFromContext(r.Context())
	span.SetAttributes(attribute.String("mailtriage.record.id", id))

	rec, ok, err := a.store.Get(r.Context(), id)
	if err != nil {
		a.logger.Error(r.Context(), err, "failed to get record", "id", id)
		http.Error(w, `{"error":"internal error"}`, http.StatusInternalServerError)
		return
	}
	if !ok {
		http.Error(w, `{"error":"not found"}`, http.StatusNotFound)
		return
	}

	span.SetAttributes(attribute.String("mailtriage.record.status", string(rec.Status)))
	writeJSON(w, http.StatusOK, rec)
}

type stateBody struct {
	Paused bool `json:"paused"`
}

func (a *API) handleGetState(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, stateBody{Paused: a.svc.Paused()})
}

func (a *API) handlePutState(w http.ResponseWriter, r *http.Request) {
	var body stateBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, `{"error":"invalid payload"}`, http.StatusBadRequest)
		return
	}

	if body.Paused {
		a.svc.Pause()
	} else {
		a.svc.Resume()
	}
	a.logger.Info(r.Context(), "intake state changed", "paused", body.Paused)
	writeJSON(w, http.StatusOK, stateBody{Paused: a.svc.Paused()})
}

// handleMailWebhook acknowledges a provider push immediately and triggers a
// poll cycle in the background. The payload body is not trusted; the cycle
// fetches from the mailbox as usual.
func (a *API) handleMailWebhook(w http.ResponseWriter, r *http.Request) {
	ctx := context.WithoutCancel(r.Context())
	go func() {
		if _, err := a.svc.ProcessBatch(ctx); err != nil {
			a.logger.Error(ctx, err, "webhook-triggered batch failed")
		}
	}()
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "accepted"})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
