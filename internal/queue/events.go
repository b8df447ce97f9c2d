package queue

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Event types double as routing keys on EventsExchange.
const (
	TableOpened              = "table.opened"
	TableClosed              = "table.closed"
	TableReserved            = "table.reserved"
	TableReservationCanceled = "table.reservation_cancelled"
	TableHelpRequested       = "table.help_requested"
	TableHelpResolved        = "table.help_resolved"
	OrderItemsChanged        = "order.items_changed"
	OrderPaid                = "order.paid"
)

type Event struct {
	Type    string         `json:"type"`
	TableID int64          `json:"tableId,omitempty"`
	OrderID *int64         `json:"orderId,omitempty"`
	At      time.Time      `json:"at"`
	Data    map[string]any `json:"data,omitempty"`
}

func DecodeEvent(body []byte) (Event, error) {
	var ev Event
	err := json.Unmarshal(body, &ev)
	return ev, err
}

// Publisher receives domain events after the transaction that produced them
// has committed. Delivery is best effort.
type Publisher interface {
	Publish(ctx context.Context, ev Event)
}

type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, Event) {}

type PublisherFunc func(ctx context.Context, ev Event)

func (f PublisherFunc) Publish(ctx context.Context, ev Event) {
	f(ctx, ev)
}

// Fanout delivers each event to every publisher in order.
type Fanout []Publisher

func (f Fanout) Publish(ctx context.Context, ev Event) {
	for _, p := range f {
		if p != nil {
			p.Publish(ctx, ev)
		}
	}
}

// AMQPPublisher sends events to the topic exchange. Failures are logged and
// never surface to the caller.
type AMQPPublisher struct {
	client   *Client
	exchange string
	logger   *zap.Logger
	timeout  time.Duration
}

func NewAMQPPublisher(client *Client, exchange string, logger *zap.Logger) *AMQPPublisher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AMQPPublisher{client: client, exchange: exchange, logger: logger, timeout: 3 * time.Second}
}

func (p *AMQPPublisher) Publish(ctx context.Context, ev Event) {
	if p == nil || p.client == nil {
		return
	}
	if ev.At.IsZero() {
		ev.At = time.Now()
	}
	pubCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), p.timeout)
	defer cancel()
	if err := p.client.PublishJSON(pubCtx, p.exchange, ev.Type, ev); err != nil {
		p.logger.Warn("event publish failed", zap.String("type", ev.Type), zap.Int64("tableId", ev.TableID), zap.Error(err))
	}
}

// Recorder keeps published events in memory.
type Recorder struct {
	mu     sync.Mutex
	events []Event
}

func (r *Recorder) Publish(_ context.Context, ev Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
}

func (r *Recorder) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Event, len(r.events))
	copy(out, r.events)
	return out
}

func (r *Recorder) Types() []string {
	events := r.Events()
	out := make([]string, 0, len(events))
	for _, ev := range events {
		out = append(out, ev.Type)
	}
	return out
}
