// Package notify fans out per-customer events to live subscriber streams.
//
// State is local to one process. Delivery is best-effort and at-most-once
// per subscriber; nothing is buffered for subscribers that connect later.
package notify

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/jmylchreest/vocalis-api/internal/models"
)

const (
	DefaultKeepAlive  = 30 * time.Second
	DefaultBufferSize = 16
)

// ErrClosed is returned by Next once the subscription has been removed.
var ErrClosed = errors.New("subscription closed")

// Metrics receives hub activity. Implemented by internal/metrics.
type Metrics interface {
	SetSubscribers(n int)
	ObserveBroadcast(eventType string, delivered, dropped int)
}

// Options configures a Hub.
type Options struct {
	KeepAlive  time.Duration // idle period before a ping, default 30s
	BufferSize int           // per-subscriber queue, default 16
	Logger     *slog.Logger
	Metrics    Metrics
}

// Hub is a registry of subscriber channels keyed by customer.
type Hub struct {
	mu          sync.RWMutex
	subscribers map[string]map[string]*Subscription // customer -> handle -> sub
	count       int

	keepAlive  time.Duration
	bufferSize int
	logger     *slog.Logger
	metrics    Metrics
}

// NewHub creates an empty hub.
func NewHub(opts Options) *Hub {
	if opts.KeepAlive <= 0 {
		opts.KeepAlive = DefaultKeepAlive
	}
	if opts.BufferSize <= 0 {
		opts.BufferSize = DefaultBufferSize
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Hub{
		subscribers: make(map[string]map[string]*Subscription),
		keepAlive:   opts.KeepAlive,
		bufferSize:  opts.BufferSize,
		logger:      opts.Logger.With("component", "notify"),
		metrics:     opts.Metrics,
	}
}

// Subscription is one registered channel. It is owned by a single reader.
type Subscription struct {
	CustomerID string
	Handle     string

	hub       *Hub
	events    chan models.Event
	done      chan struct{}
	closeOnce sync.Once
	connected bool
}

// Subscribe registers a new channel for the customer.
func (h *Hub) Subscribe(customerID string) *Subscription {
	sub := &Subscription{
		CustomerID: customerID,
		Handle:     ulid.Make().String(),
		hub:        h,
		events:     make(chan models.Event, h.bufferSize),
		done:       make(chan struct{}),
	}

	h.mu.Lock()
	set, ok := h.subscribers[customerID]
	if !ok {
		set = make(map[string]*Subscription)
		h.subscribers[customerID] = set
	}
	set[sub.Handle] = sub
	h.count++
	total := h.count
	h.mu.Unlock()

	h.reportSubscribers(total)
	h.logger.Debug("subscriber added", "customer_id", customerID, "handle", sub.Handle, "active", total)
	return sub
}

// Unsubscribe removes a channel. Removing the last channel for a customer
// drops the customer entry. Unknown handles are ignored.
func (h *Hub) Unsubscribe(customerID, handle string) {
	h.mu.Lock()
	set, ok := h.subscribers[customerID]
	if !ok {
		h.mu.Unlock()
		return
	}
	sub, ok := set[handle]
	if !ok {
		h.mu.Unlock()
		return
	}
	delete(set, handle)
	if len(set) == 0 {
		delete(h.subscribers, customerID)
	}
	h.count--
	total := h.count
	h.mu.Unlock()

	sub.closeOnce.Do(func() { close(sub.done) })
	h.reportSubscribers(total)
	h.logger.Debug("subscriber removed", "customer_id", customerID, "handle", handle, "active", total)
}

// Broadcast delivers the event to every channel registered for the customer
// and returns how many accepted it. A full channel is skipped, never waited on.
func (h *Hub) Broadcast(customerID string, event models.Event) int {
	h.mu.RLock()
	set := h.subscribers[customerID]
	targets := make([]*Subscription, 0, len(set))
	for _, sub := range set {
		targets = append(targets, sub)
	}
	h.mu.RUnlock()

	delivered, dropped := 0, 0
	for _, sub := range targets {
		select {
		case <-sub.done:
			continue
		default:
		}
		select {
		case sub.events <- event:
			delivered++
		default:
			dropped++
			h.logger.Warn("subscriber queue full, event dropped",
				"customer_id", customerID,
				"handle", sub.Handle,
				"event", event.Type,
			)
		}
	}

	if h.metrics != nil {
		h.metrics.ObserveBroadcast(event.Type, delivered, dropped)
	}
	if len(targets) > 0 {
		h.logger.Debug("broadcast", "customer_id", customerID, "event", event.Type, "delivered", delivered)
	}
	return delivered
}

// ActiveCount returns the number of registered channels across all customers.
func (h *Hub) ActiveCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.count
}

// SubscriberCount returns the number of channels registered for one customer.
func (h *Hub) SubscriberCount(customerID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subscribers[customerID])
}

// hasCustomer reports whether an entry exists for the customer.
func (h *Hub) hasCustomer(customerID string) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	_, ok := h.subscribers[customerID]
	return ok
}

func (h *Hub) reportSubscribers(n int) {
	if h.metrics != nil {
		h.metrics.SetSubscribers(n)
	}
}

// Next blocks until the next event is available. The first call returns a
// connected event. After KeepAlive with no broadcast it returns a ping.
// It returns ctx.Err() when the context ends and ErrClosed after Close.
func (s *Subscription) Next(ctx context.Context) (models.Event, error) {
	if !s.connected {
		s.connected = true
		return models.NewEvent(models.EventConnected, map[string]any{
			"customer_id": s.CustomerID,
		}), nil
	}

	timer := time.NewTimer(s.hub.keepAlive)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return models.Event{}, ctx.Err()
	case <-s.done:
		return models.Event{}, ErrClosed
	case ev := <-s.events:
		return ev, nil
	case <-timer.C:
		return models.NewEvent(models.EventPing, nil), nil
	}
}

// Close unsubscribes the channel. Safe to call more than once.
func (s *Subscription) Close() {
	s.hub.Unsubscribe(s.CustomerID, s.Handle)
}
