package notify

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/jmylchreest/vocalis-api/internal/models"
)

func newTestHub(opts Options) *Hub {
	if opts.Logger == nil {
		opts.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return NewHub(opts)
}

// skipConnected consumes the initial connected event.
func skipConnected(t *testing.T, sub *Subscription) {
	t.Helper()
	ev, err := sub.Next(context.Background())
	if err != nil {
		t.Fatalf("Next() error = %v", err)
	}
	if ev.Type != models.EventConnected {
		t.Fatalf("first event = %q, want connected", ev.Type)
	}
}

// receive reads one event with a short deadline.
func receive(sub *Subscription) (models.Event, bool) {
	select {
	case ev := <-sub.events:
		return ev, true
	case <-time.After(50 * time.Millisecond):
		return models.Event{}, false
	}
}

// ========================================
// Subscribe / Unsubscribe Tests
// ========================================

func TestSubscribe_FirstEventIsConnected(t *testing.T) {
	h := newTestHub(Options{})
	sub := h.Subscribe("cus_1")
	defer sub.Close()

	ev, err := sub.Next(context.Background())
	if err != nil {
		t.Fatalf("Next() error = %v", err)
	}
	if ev.Type != models.EventConnected {
		t.Errorf("Type = %q, want connected", ev.Type)
	}
	if ev.Data["customer_id"] != "cus_1" {
		t.Errorf("customer_id = %v", ev.Data["customer_id"])
	}
	if sub.Handle == "" {
		t.Error("Handle should be set")
	}
}

func TestUnsubscribe_LastChannelRemovesCustomer(t *testing.T) {
	h := newTestHub(Options{})
	a := h.Subscribe("cus_1")
	b := h.Subscribe("cus_1")

	if got := h.SubscriberCount("cus_1"); got != 2 {
		t.Fatalf("SubscriberCount = %d, want 2", got)
	}

	h.Unsubscribe("cus_1", a.Handle)
	if !h.hasCustomer("cus_1") {
		t.Fatal("customer entry removed while a channel remains")
	}

	h.Unsubscribe("cus_1", b.Handle)
	if h.hasCustomer("cus_1") {
		t.Error("customer entry should be removed after last unsubscribe")
	}
	if h.ActiveCount() != 0 {
		t.Errorf("ActiveCount = %d, want 0", h.ActiveCount())
	}

	if n := h.Broadcast("cus_1", models.NewEvent(models.EventBalanceUpdated, nil)); n != 0 {
		t.Errorf("Broadcast after cleanup delivered %d, want 0", n)
	}
}

func TestUnsubscribe_Idempotent(t *testing.T) {
	h := newTestHub(Options{})
	sub := h.Subscribe("cus_1")

	sub.Close()
	sub.Close()
	h.Unsubscribe("cus_1", "unknown")
	h.Unsubscribe("cus_missing", sub.Handle)

	if h.ActiveCount() != 0 {
		t.Errorf("ActiveCount = %d, want 0", h.ActiveCount())
	}
}

// ========================================
// Broadcast Tests
// ========================================

func TestBroadcast_DeliversToEveryChannelOnce(t *testing.T) {
	h := newTestHub(Options{})
	const n = 5

	subs := make([]*Subscription, n)
	for i := range subs {
		subs[i] = h.Subscribe("cus_1")
		skipConnected(t, subs[i])
	}
	other := h.Subscribe("cus_2")
	skipConnected(t, other)

	ev := models.NewEvent(models.EventBalanceUpdated, map[string]any{"new_balance": int64(1500)})
	if got := h.Broadcast("cus_1", ev); got != n {
		t.Fatalf("Broadcast delivered %d, want %d", got, n)
	}

	for i, sub := range subs {
		got, ok := receive(sub)
		if !ok {
			t.Fatalf("subscriber %d did not receive the event", i)
		}
		if got.Type != models.EventBalanceUpdated || got.Data["new_balance"] != int64(1500) {
			t.Errorf("subscriber %d got %+v", i, got)
		}
		if _, ok := receive(sub); ok {
			t.Errorf("subscriber %d received a duplicate", i)
		}
	}

	if _, ok := receive(other); ok {
		t.Error("other customer should not receive the event")
	}
}

func TestBroadcast_UnknownCustomerIsNoop(t *testing.T) {
	h := newTestHub(Options{})
	if n := h.Broadcast("nobody", models.NewEvent("custom", nil)); n != 0 {
		t.Errorf("delivered = %d, want 0", n)
	}
	if h.hasCustomer("nobody") {
		t.Error("broadcast must not create a customer entry")
	}
}

func TestBroadcast_FullChannelDoesNotBlockOthers(t *testing.T) {
	h := newTestHub(Options{BufferSize: 1})
	slow := h.Subscribe("cus_1")
	fast := h.Subscribe("cus_1")

	h.Broadcast("cus_1", models.NewEvent("first", nil))
	// Drain only the fast subscriber.
	if _, ok := receive(fast); !ok {
		t.Fatal("fast subscriber missed the first event")
	}

	done := make(chan int, 1)
	go func() { done <- h.Broadcast("cus_1", models.NewEvent("second", nil)) }()

	select {
	case delivered := <-done:
		if delivered != 1 {
			t.Errorf("delivered = %d, want 1", delivered)
		}
	case <-time.After(time.Second):
		t.Fatal("Broadcast blocked on a full channel")
	}

	if ev, ok := receive(fast); !ok || ev.Type != "second" {
		t.Errorf("fast subscriber got %+v, ok=%v", ev, ok)
	}
	if ev, ok := receive(slow); !ok || ev.Type != "first" {
		t.Errorf("slow subscriber should still hold the first event, got %+v", ev)
	}
}

func TestBroadcast_Concurrent(t *testing.T) {
	h := newTestHub(Options{BufferSize: 128})
	var wg sync.WaitGroup

	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			sub := h.Subscribe("cus_1")
			h.Broadcast("cus_1", models.NewEvent("tick", nil))
			sub.Close()
		}()
	}
	wg.Wait()

	if h.ActiveCount() != 0 {
		t.Errorf("ActiveCount = %d, want 0", h.ActiveCount())
	}
	if h.hasCustomer("cus_1") {
		t.Error("customer entry should be removed")
	}
}

// ========================================
// Next Tests
// ========================================

func TestNext_KeepAlivePing(t *testing.T) {
	h := newTestHub(Options{KeepAlive: 10 * time.Millisecond})
	sub := h.Subscribe("cus_1")
	defer sub.Close()
	skipConnected(t, sub)

	for range 2 {
		ev, err := sub.Next(context.Background())
		if err != nil {
			t.Fatalf("Next() error = %v", err)
		}
		if ev.Type != models.EventPing {
			t.Errorf("Type = %q, want ping", ev.Type)
		}
	}
}

func TestNext_ReturnsBroadcastBeforePing(t *testing.T) {
	h := newTestHub(Options{KeepAlive: time.Hour})
	sub := h.Subscribe("cus_1")
	defer sub.Close()
	skipConnected(t, sub)

	h.Broadcast("cus_1", models.NewEvent(models.EventRechargeCompleted, nil))
	ev, err := sub.Next(context.Background())
	if err != nil {
		t.Fatalf("Next() error = %v", err)
	}
	if ev.Type != models.EventRechargeCompleted {
		t.Errorf("Type = %q", ev.Type)
	}
}

func TestNext_ContextCancelled(t *testing.T) {
	h := newTestHub(Options{KeepAlive: time.Hour})
	sub := h.Subscribe("cus_1")
	defer sub.Close()
	skipConnected(t, sub)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := sub.Next(ctx); !errors.Is(err, context.Canceled) {
		t.Errorf("error = %v, want context.Canceled", err)
	}
}

func TestNext_AfterClose(t *testing.T) {
	h := newTestHub(Options{KeepAlive: time.Hour})
	sub := h.Subscribe("cus_1")
	skipConnected(t, sub)
	sub.Close()

	if _, err := sub.Next(context.Background()); !errors.Is(err, ErrClosed) {
		t.Errorf("error = %v, want ErrClosed", err)
	}
}

// ========================================
// Metrics Tests
// ========================================

type fakeMetrics struct {
	mu          sync.Mutex
	subscribers int
	delivered   int
}

func (m *fakeMetrics) SetSubscribers(n int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.subscribers = n
}

func (m *fakeMetrics) ObserveBroadcast(_ string, delivered, _ int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.delivered += delivered
}

func TestHub_ReportsMetrics(t *testing.T) {
	m := &fakeMetrics{}
	h := newTestHub(Options{Metrics: m})

	a := h.Subscribe("cus_1")
	h.Subscribe("cus_2")
	if m.subscribers != 2 {
		t.Errorf("subscribers = %d, want 2", m.subscribers)
	}

	h.Broadcast("cus_1", models.NewEvent("x", nil))
	if m.delivered != 1 {
		t.Errorf("delivered = %d, want 1", m.delivered)
	}

	a.Close()
	if m.subscribers != 1 {
		t.Errorf("subscribers = %d, want 1", m.subscribers)
	}
}
