/*
notify.go - Fire-and-forget notification dispatch

PURPOSE:
  When a run produces a pairing bonus, the member gets a "bonus pending
  admin approval" notification. Delivery is explicitly best-effort:
  at-least-once is acceptable, ordering is not guaranteed, and a delivery
  failure must never roll back a bonus record.

DESIGN:
  A bounded queue drained by one background goroutine. Enqueue never
  blocks a run; when the queue is full the notification is dropped and
  counted. The engine's correctness does not depend on delivery.
*/
package engine

import (
	"sync"

	"go.uber.org/zap"

	"github.com/vertex/comp-engine/ledger"
)

// =============================================================================
// NOTIFIER - The boundary the engine sees
// =============================================================================

const (
	NotifyBonusPending  = "bonus_pending_approval"
	NotifyCareerUpgrade = "career_level_upgrade"
)

type Notification struct {
	Kind     string
	MemberID ledger.MemberID
	Payload  map[string]any
}

// Notifier accepts notifications without reporting delivery outcome.
type Notifier interface {
	Notify(n Notification)
}

// NopNotifier discards everything. Used in tests.
type NopNotifier struct{}

func (NopNotifier) Notify(Notification) {}

// =============================================================================
// DISPATCHER - Bounded async queue over a delivery backend
// =============================================================================

// Backend performs the actual delivery (mail, SMS, webhook). The engine
// never observes its result.
type Backend interface {
	Deliver(n Notification) error
}

// LogBackend records notifications in the log. The default backend when no
// outbound channel is configured.
type LogBackend struct {
	Log *zap.Logger
}

func (b *LogBackend) Deliver(n Notification) error {
	b.Log.Info("notification",
		zap.String("kind", n.Kind),
		zap.String("member_id", string(n.MemberID)),
		zap.Any("payload", n.Payload))
	return nil
}

// Dispatcher is the bounded fire-and-forget queue.
type Dispatcher struct {
	backend Backend
	log     *zap.Logger

	queue chan Notification
	wg    sync.WaitGroup

	mu      sync.Mutex
	closed  bool
	dropped int64
}

func NewDispatcher(backend Backend, queueSize int, log *zap.Logger) *Dispatcher {
	if queueSize <= 0 {
		queueSize = 256
	}
	d := &Dispatcher{
		backend: backend,
		log:     log,
		queue:   make(chan Notification, queueSize),
	}
	d.wg.Add(1)
	go d.drain()
	return d
}

// Notify enqueues without blocking. A full queue drops the notification;
// the drop is logged and counted, never surfaced to the run.
// The mutex stays held across the send so Close cannot close the queue
// between the closed check and the send.
func (d *Dispatcher) Notify(n Notification) {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return
	}

	select {
	case d.queue <- n:
		d.mu.Unlock()
		notificationsEnqueued.Inc()
	default:
		d.dropped++
		d.mu.Unlock()
		notificationsDropped.Inc()
		d.log.Warn("notification queue full, dropping",
			zap.String("kind", n.Kind),
			zap.String("member_id", string(n.MemberID)))
	}
}

func (d *Dispatcher) drain() {
	defer d.wg.Done()
	for n := range d.queue {
		if err := d.backend.Deliver(n); err != nil {
			// Best effort only. At-least-once redelivery is the
			// backend's concern if it wants it.
			d.log.Warn("notification delivery failed",
				zap.String("kind", n.Kind),
				zap.String("member_id", string(n.MemberID)),
				zap.Error(err))
		}
	}
}

// Dropped returns how many notifications were discarded on a full queue.
func (d *Dispatcher) Dropped() int64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.dropped
}

// Close stops accepting and drains what is queued.
func (d *Dispatcher) Close() {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return
	}
	d.closed = true
	close(d.queue)
	d.mu.Unlock()

	d.wg.Wait()
}
