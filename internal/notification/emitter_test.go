package notification

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"farmlink_backend/internal/events"
	"farmlink_backend/internal/notification/inbox"
	"farmlink_backend/internal/scheduler"
	"farmlink_backend/platform/logger"
)

type fakeStore struct {
	mu      sync.Mutex
	created []inbox.Notification
	err     error
	signal  chan struct{}
}

func (f *fakeStore) Create(ctx context.Context, n inbox.Notification) error {
	// Refuses cancelled contexts the way a real DB round trip would.
	if err := ctx.Err(); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.created = append(f.created, n)
	if f.signal != nil {
		f.signal <- struct{}{}
	}
	return nil
}

func (f *fakeStore) List(context.Context, int, int) ([]inbox.Notification, int, error) {
	return nil, 0, nil
}

func (f *fakeStore) CountUnread(context.Context) (int, error) { return 0, nil }

func (f *fakeStore) MarkRead(context.Context, string) error { return nil }

func (f *fakeStore) MarkAllRead(context.Context) (int, error) { return 0, nil }

func (f *fakeStore) PurgeRead(context.Context, time.Time) (int, error) { return 0, nil }

type fakeEnqueuer struct {
	mu       sync.Mutex
	payloads []scheduler.NotificationEmailPayload
	err      error
}

func (f *fakeEnqueuer) EnqueueNotificationEmail(_ context.Context, p scheduler.NotificationEmailPayload) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.payloads = append(f.payloads, p)
	return nil
}

func newTestEmitter(store *fakeStore, enq *fakeEnqueuer) *Emitter {
	log := logger.New("test")
	svc := inbox.NewService(store, enq, events.NewInMemoryBus(log), log)
	e := NewEmitter(svc, log)
	e.now = func() time.Time { return time.Date(2024, 5, 12, 9, 0, 0, 0, time.UTC) }
	return e
}

func transitionEvent(action, from, to string) events.RequestTransitioned {
	return events.RequestTransitioned{
		BaseEvent:   events.NewBaseEvent(),
		RequestID:   "hrv-101",
		ServiceType: "harvest",
		Action:      action,
		FromStatus:  from,
		ToStatus:    to,
		FarmerID:    "farmer-7",
		FarmerName:  "Claudine Uwase",
		FarmerEmail: "claudine@example.rw",
	}
}

func TestEmitterCreatesInboxEntry(t *testing.T) {
	store := &fakeStore{}
	enq := &fakeEnqueuer{}
	e := newTestEmitter(store, enq)

	if err := e.HandleTransition(context.Background(), transitionEvent("approve", "pending", "approved")); err != nil {
		t.Fatalf("HandleTransition: %v", err)
	}

	if len(store.created) != 1 {
		t.Fatalf("created %d notifications, want 1", len(store.created))
	}
	n := store.created[0]
	if n.Message != "Your Harvest request has been approved." {
		t.Errorf("Message = %q", n.Message)
	}
	if n.Category != "success" {
		t.Errorf("Category = %q, want success", n.Category)
	}
	if n.RequestID != "hrv-101" || n.RecipientID != "farmer-7" {
		t.Errorf("notification = %+v", n)
	}
	if n.ID == n.RequestID {
		t.Error("notification id must not collide with the request id")
	}

	if len(enq.payloads) != 1 {
		t.Fatalf("enqueued %d emails, want 1", len(enq.payloads))
	}
	if enq.payloads[0].RecipientEmail != "claudine@example.rw" {
		t.Errorf("email recipient = %q", enq.payloads[0].RecipientEmail)
	}
}

func TestEmitterPostponedMessageCarriesDate(t *testing.T) {
	store := &fakeStore{}
	e := newTestEmitter(store, &fakeEnqueuer{})

	evt := transitionEvent("reschedule", "approved", "postponed")
	evt.RescheduleDate = "2024-07-01"
	if err := e.HandleTransition(context.Background(), evt); err != nil {
		t.Fatalf("HandleTransition: %v", err)
	}

	n := store.created[0]
	if n.Message != "Your Harvest request has been postponed to 2024-07-01." {
		t.Errorf("Message = %q", n.Message)
	}
	if n.Category != "warning" {
		t.Errorf("Category = %q, want warning", n.Category)
	}
}

func TestEmitterStatusSpelledForHumans(t *testing.T) {
	store := &fakeStore{}
	e := newTestEmitter(store, &fakeEnqueuer{})

	evt := transitionEvent("start", "approved", "in_progress")
	if err := e.HandleTransition(context.Background(), evt); err != nil {
		t.Fatalf("HandleTransition: %v", err)
	}
	if got := store.created[0].Message; got != "Your Harvest request has been in progress." {
		t.Errorf("Message = %q", got)
	}
}

func TestEmitterSwallowsStoreFailure(t *testing.T) {
	store := &fakeStore{err: errors.New("connection refused")}
	e := newTestEmitter(store, &fakeEnqueuer{})

	if err := e.HandleTransition(context.Background(), transitionEvent("approve", "pending", "approved")); err != nil {
		t.Fatalf("store failure must not propagate, got %v", err)
	}
}

func TestEmitterSwallowsEnqueueFailure(t *testing.T) {
	store := &fakeStore{}
	enq := &fakeEnqueuer{err: errors.New("redis down")}
	e := newTestEmitter(store, enq)

	if err := e.HandleTransition(context.Background(), transitionEvent("approve", "pending", "approved")); err != nil {
		t.Fatalf("enqueue failure must not propagate, got %v", err)
	}
	if len(store.created) != 1 {
		t.Error("inbox entry must still be persisted when email handoff fails")
	}
}

func TestEmitterStoresAfterPublisherContextEnds(t *testing.T) {
	store := &fakeStore{signal: make(chan struct{}, 1)}
	enq := &fakeEnqueuer{}
	log := logger.New("test")
	bus := events.NewInMemoryBus(log)
	svc := inbox.NewService(store, enq, bus, log)
	e := NewEmitter(svc, log)
	bus.Subscribe(events.RequestTransitioned{}.EventName(), events.HandlerFunc(e.HandleTransition))

	// The HTTP layer cancels the request context as soon as the response
	// is written; a transition published from a handler must still land
	// in the inbox.
	ctx, cancel := context.WithCancel(context.Background())
	bus.Publish(ctx, transitionEvent("approve", "pending", "approved"))
	cancel()

	select {
	case <-store.signal:
	case <-time.After(2 * time.Second):
		t.Fatal("notification was never stored")
	}
	store.mu.Lock()
	defer store.mu.Unlock()
	if len(store.created) != 1 {
		t.Fatalf("created %d notifications, want 1", len(store.created))
	}
}

func TestEmitterIgnoresOtherEvents(t *testing.T) {
	store := &fakeStore{}
	e := newTestEmitter(store, &fakeEnqueuer{})

	evt := events.AggregationCompleted{BaseEvent: events.NewBaseEvent(), Total: 3}
	if err := e.HandleTransition(context.Background(), evt); err != nil {
		t.Fatalf("HandleTransition: %v", err)
	}
	if len(store.created) != 0 {
		t.Error("unrelated events must not create notifications")
	}
}
