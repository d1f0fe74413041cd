package triage

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/linnemanlabs/go-core/log"

	"github.com/tekisho/mailtriage/internal/mailgw"
)

func newTestService(store *mockStore, gw *mockGateway, cl Classifier, rt Retriever, gen Generator) *Service {
	eng := newTestEngine(store, cl, rt, gen, gw)
	return NewService(gw, eng, 5*time.Second, log.Nop(), nil)
}

func TestProcessBatch_Paused(t *testing.T) {
	t.Parallel()

	gw := &mockGateway{inbox: []mailgw.Message{testMsg()}}
	svc := newTestService(newMockStore(), gw,
		&mockClassifier{out: classification("Sales", PriorityLow)},
		&mockRetriever{}, &mockGenerator{})

	svc.Pause()
	res, err := svc.ProcessBatch(context.Background())
	if err != nil {
		t.Fatalf("ProcessBatch: %v", err)
	}
	if !res.Skipped || res.Reason != "paused" {
		t.Errorf("result = %+v, want skipped/paused", res)
	}
	if res.Fetched != 0 {
		t.Error("paused batch must not fetch")
	}

	svc.Resume()
	if svc.Paused() {
		t.Error("expected resumed state")
	}
}

func TestProcessBatch_BusySkips(t *testing.T) {
	t.Parallel()

	gw := &mockGateway{}
	svc := newTestService(newMockStore(), gw,
		&mockClassifier{out: classification("Sales", PriorityLow)},
		&mockRetriever{}, &mockGenerator{})

	// simulate a batch still in flight
	svc.mu.Lock()
	defer svc.mu.Unlock()

	res, err := svc.ProcessBatch(context.Background())
	if err != nil {
		t.Fatalf("ProcessBatch: %v", err)
	}
	if !res.Skipped || res.Reason != "busy" {
		t.Errorf("result = %+v, want skipped/busy", res)
	}
}

func TestProcessBatch_FetchError(t *testing.T) {
	t.Parallel()

	gw := &mockGateway{fetchErr: errors.New("imap down")}
	svc := newTestService(newMockStore(), gw,
		&mockClassifier{out: classification("Sales", PriorityLow)},
		&mockRetriever{}, &mockGenerator{})

	if _, err := svc.ProcessBatch(context.Background()); err == nil {
		t.Fatal("expected error when fetch fails")
	}
}

func TestProcessBatch_CountsOutcomes(t *testing.T) {
	t.Parallel()

	store := newMockStore()
	msgs := []mailgw.Message{
		{UID: 1, From: "a@x.test", Subject: "one", Body: "q"},
		{UID: 2, From: "b@x.test", Subject: "two", Body: "q"},
	}
	gw := &mockGateway{inbox: msgs}
	svc := newTestService(store, gw,
		&mockClassifier{out: classification("Sales", PriorityLow)},
		&mockRetriever{snippets: []string{"ctx"}},
		&mockGenerator{draft: &Draft{Reply: "ok", Confidence: 90}})

	res, err := svc.ProcessBatch(context.Background())
	if err != nil {
		t.Fatalf("ProcessBatch: %v", err)
	}
	if res.Fetched != 2 || res.Answered != 2 || res.Errors != 0 {
		t.Errorf("result = %+v, want 2 fetched, 2 answered", res)
	}
	if gw.seenCount() != 2 {
		t.Errorf("seen = %d, want 2", gw.seenCount())
	}
}

func TestProcessBatch_FaultIsolation(t *testing.T) {
	t.Parallel()

	store := newMockStore()
	msgs := []mailgw.Message{
		{UID: 1, From: "a@x.test", Subject: "one", Body: "q"},
		{UID: 2, From: "b@x.test", Subject: "two", Body: "q"},
	}
	gw := &mockGateway{inbox: msgs}

	// first message fails at retrieval, second succeeds
	rt := &flakyRetriever{failFirst: true, snippets: []string{"ctx"}}
	svc := newTestService(store, gw,
		&mockClassifier{out: classification("Sales", PriorityLow)},
		rt,
		&mockGenerator{draft: &Draft{Reply: "ok", Confidence: 90}})

	res, err := svc.ProcessBatch(context.Background())
	if err != nil {
		t.Fatalf("ProcessBatch: %v", err)
	}
	if res.Errors != 1 {
		t.Errorf("errors = %d, want 1", res.Errors)
	}
	if res.Answered != 1 {
		t.Errorf("answered = %d, want 1", res.Answered)
	}
	// the failed message stays unread
	if gw.seenCount() != 1 {
		t.Errorf("seen = %d, want 1", gw.seenCount())
	}
}

// flakyRetriever fails its first call and succeeds afterwards.
type flakyRetriever struct {
	failFirst bool
	snippets  []string
	calls     int
}

func (f *flakyRetriever) Search(context.Context, string, string) ([]string, error) {
	f.calls++
	if f.failFirst && f.calls == 1 {
		return nil, errors.New("search down")
	}
	return f.snippets, nil
}
