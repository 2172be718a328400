package notify

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/s3"
)

type recordingSink struct {
	mu     sync.Mutex
	events []Event
}

func (r *recordingSink) Name() string { return "recording" }

func (r *recordingSink) Deliver(_ context.Context, evt Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, evt)
	return nil
}

func (r *recordingSink) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.events)
}

type failingSink struct{}

func (failingSink) Name() string                        { return "failing" }
func (failingSink) Deliver(context.Context, Event) error { return errors.New("smtp down") }

type panickingSink struct{}

func (panickingSink) Name() string                        { return "panicking" }
func (panickingSink) Deliver(context.Context, Event) error { panic("boom") }

type blockingSink struct{ release chan struct{} }

func (b *blockingSink) Name() string { return "blocking" }

func (b *blockingSink) Deliver(ctx context.Context, _ Event) error {
	select {
	case <-b.release:
	case <-ctx.Done():
	}
	return nil
}

func TestDispatcherSurvivesFailingSinks(t *testing.T) {
	rec := &recordingSink{}
	d := NewDispatcher(Options{Workers: 1}, failingSink{}, panickingSink{}, rec)

	d.Emit(context.Background(), Event{Kind: KindNewRequest, Recipients: []string{"f1"}, SessionID: "s1"})
	d.Emit(context.Background(), Event{Kind: KindRequestAccepted, Recipients: []string{"r1"}, SessionID: "s1"})

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := d.Close(ctx); err != nil {
		t.Fatalf("close: %v", err)
	}
	if rec.count() != 2 {
		t.Fatalf("expected 2 delivered events, got %d", rec.count())
	}
	for _, evt := range rec.events {
		if evt.ID == "" || evt.OccurredAt.IsZero() {
			t.Fatalf("expected id and timestamp to be filled, got %+v", evt)
		}
	}
}

func TestEmitDoesNotBlockOnSlowSink(t *testing.T) {
	sink := &blockingSink{release: make(chan struct{})}
	d := NewDispatcher(Options{QueueSize: 1, Workers: 1, DeliveryTimeout: time.Second}, sink)

	start := time.Now()
	for i := 0; i < 50; i++ {
		d.Emit(context.Background(), Event{Kind: KindCounterOffer, Recipients: []string{"r1"}})
	}
	if elapsed := time.Since(start); elapsed > 500*time.Millisecond {
		t.Fatalf("emit blocked for %v", elapsed)
	}

	close(sink.release)
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := d.Close(ctx); err != nil {
		t.Fatalf("close: %v", err)
	}
}

func TestEmitAfterCloseIsDropped(t *testing.T) {
	rec := &recordingSink{}
	d := NewDispatcher(Options{}, rec)
	if err := d.Close(context.Background()); err != nil {
		t.Fatal(err)
	}
	d.Emit(context.Background(), Event{Kind: KindSessionReminder})
	if rec.count() != 0 {
		t.Fatalf("expected no delivery after close, got %d", rec.count())
	}
}

type fakePutter struct {
	input *s3.PutObjectInput
	body  []byte
}

func (f *fakePutter) PutObject(_ context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	f.input = in
	f.body, _ = io.ReadAll(in.Body)
	return &s3.PutObjectOutput{}, nil
}

func TestS3ArchiveKeyLayout(t *testing.T) {
	putter := &fakePutter{}
	archive := NewS3Archive(putter, "audit", "")
	evt := Event{
		ID:         "e1",
		Kind:       KindRequestDeclined,
		SessionID:  "s1",
		OccurredAt: time.Date(2030, 1, 5, 10, 0, 0, 0, time.UTC),
	}
	if err := archive.Deliver(context.Background(), evt); err != nil {
		t.Fatal(err)
	}
	if got := *putter.input.Key; got != "events/2030/01/05/request_declined/e1.json" {
		t.Fatalf("unexpected key %s", got)
	}
	if *putter.input.Bucket != "audit" {
		t.Fatalf("unexpected bucket %s", *putter.input.Bucket)
	}
	var decoded Event
	if err := json.Unmarshal(putter.body, &decoded); err != nil {
		t.Fatal(err)
	}
	if decoded.SessionID != "s1" || decoded.Kind != KindRequestDeclined {
		t.Fatalf("unexpected archived body %+v", decoded)
	}
}
