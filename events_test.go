package notify

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/rbaliyan/event/v3"
	"github.com/rbaliyan/event/v3/transport/channel"

	"github.com/rbaliyan/notify/provider"
)

func TestServiceEvents(t *testing.T) {
	ctx := context.Background()
	fixed := time.Date(2026, 5, 4, 10, 30, 0, 0, time.UTC)
	svc := connectedService(t, newFakeDriver(),
		WithEventTransport(channel.New()),
		WithClock(func() time.Time { return fixed }),
	)

	var mu sync.Mutex
	var dispatched []ChannelDispatchedEvent
	bulkDone := make(chan BulkCompletedEvent, 1)

	err := svc.Events().ChannelDispatched.Subscribe(ctx, func(_ context.Context, _ event.Event[ChannelDispatchedEvent], data ChannelDispatchedEvent) error {
		mu.Lock()
		dispatched = append(dispatched, data)
		mu.Unlock()
		return nil
	})
	if err != nil {
		t.Fatalf("subscribe dispatched: %v", err)
	}
	err = svc.Events().BulkCompleted.Subscribe(ctx, func(_ context.Context, _ event.Event[BulkCompletedEvent], data BulkCompletedEvent) error {
		bulkDone <- data
		return nil
	})
	if err != nil {
		t.Fatalf("subscribe bulk: %v", err)
	}

	res, err := svc.NotifyAll(ctx, threeRecipients(), invoiceNotification(provider.Mail, provider.SMS))
	if err != nil {
		t.Fatal(err)
	}

	var bulk BulkCompletedEvent
	select {
	case bulk = <-bulkDone:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for BulkCompleted")
	}
	if bulk.BatchID != res.BatchID {
		t.Errorf("expected batch %q, got %q", res.BatchID, bulk.BatchID)
	}
	if bulk.SuccessCount != 6 || bulk.ErrorCount != 0 || bulk.TotalProcessed != 6 || bulk.Recipients != 3 {
		t.Errorf("unexpected bulk event %+v", bulk)
	}
	if !bulk.CompletedAt.Equal(fixed) {
		t.Errorf("expected clock time, got %v", bulk.CompletedAt)
	}

	deadline := time.Now().Add(2 * time.Second)
	for {
		mu.Lock()
		n := len(dispatched)
		mu.Unlock()
		if n == 6 || time.Now().After(deadline) {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}

	mu.Lock()
	defer mu.Unlock()
	if len(dispatched) != 6 {
		t.Fatalf("expected 6 dispatched events, got %d", len(dispatched))
	}
	var skipped int
	for _, ev := range dispatched {
		if ev.BatchID != res.BatchID {
			t.Errorf("event batch %q, want %q", ev.BatchID, res.BatchID)
		}
		if ev.Status == StatusSkipped {
			skipped++
			if ev.RecipientID != "carol" || ev.Error == "" {
				t.Errorf("unexpected skip event %+v", ev)
			}
		}
	}
	if skipped != 1 {
		t.Errorf("expected 1 skipped event, got %d", skipped)
	}
}
