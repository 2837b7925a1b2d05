package notify

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"reflect"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sourcegraph/conc"
	"github.com/sourcegraph/conc/panics"

	"github.com/ngsi-go/ngsi/pkg/log"
	"github.com/ngsi-go/ngsi/pkg/mapper"
	"github.com/ngsi-go/ngsi/pkg/model"
	"github.com/ngsi-go/ngsi/pkg/subscription"
	"github.com/ngsi-go/ngsi/pkg/wire"
)

// Default dispatcher sizing.
const (
	DefaultWorkers   = 4
	DefaultQueueSize = 256
)

var dynamicEntityType = reflect.TypeOf(model.DynamicEntity{})

// Sink accepts raw push payloads. It is the single entry point used by
// listeners.
type Sink interface {
	OnRawPayload(raw []byte)
}

// CorrelatedSink is a Sink that also accepts the correlation id assigned to
// the inbound request, so trace events can be tied together.
type CorrelatedSink interface {
	Sink
	OnPayload(correlationID string, raw []byte)
}

// Config holds dispatcher configuration.
type Config struct {
	// Workers is the number of goroutines draining the queue.
	Workers int

	// QueueSize bounds the number of pending payloads. When the queue is
	// full new payloads are dropped.
	QueueSize int

	// Logger receives operational logs. Defaults to slog.Default().
	Logger *slog.Logger

	// ProtocolLogger receives protocol trace events. Optional.
	ProtocolLogger log.Logger
}

// DefaultConfig returns the default dispatcher configuration.
func DefaultConfig() Config {
	return Config{
		Workers:   DefaultWorkers,
		QueueSize: DefaultQueueSize,
	}
}

// Stats are dispatcher counters since creation.
type Stats struct {
	Received  uint64
	Dropped   uint64
	Delivered uint64
	Failed    uint64
}

type payload struct {
	correlationID string
	raw           []byte
}

// Dispatcher routes notifications to registered subscriptions.
type Dispatcher struct {
	mapper   *mapper.Mapper
	registry *subscription.Registry
	config   Config
	logger   *slog.Logger
	trace    log.Logger

	queue chan payload

	mu      sync.Mutex
	cancel  context.CancelFunc
	workers *conc.WaitGroup
	running atomic.Bool

	received  atomic.Uint64
	dropped   atomic.Uint64
	delivered atomic.Uint64
	failed    atomic.Uint64
}

// NewDispatcher creates a dispatcher that materializes deltas with m and
// looks subscriptions up in registry. A nil registry creates a private one.
func NewDispatcher(m *mapper.Mapper, registry *subscription.Registry, config Config) *Dispatcher {
	if config.Workers <= 0 {
		config.Workers = DefaultWorkers
	}
	if config.QueueSize <= 0 {
		config.QueueSize = DefaultQueueSize
	}
	if registry == nil {
		registry = subscription.NewRegistry()
	}
	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Dispatcher{
		mapper:   m,
		registry: registry,
		config:   config,
		logger:   logger.With("component", "notify"),
		trace:    log.OrNoop(config.ProtocolLogger),
		queue:    make(chan payload, config.QueueSize),
	}
}

// Registry returns the subscription registry.
func (d *Dispatcher) Registry() *subscription.Registry {
	return d.registry
}

// Register adds an accepted subscription. It becomes Active immediately.
func (d *Dispatcher) Register(sub *subscription.Subscription) error {
	if err := d.registry.Add(sub); err != nil {
		return err
	}
	d.traceState(sub.ID, subscription.StateCreated.String(), subscription.StateActive.String(), "register")
	return nil
}

// Unregister removes a subscription. Later payloads for it are dropped.
func (d *Dispatcher) Unregister(id string) error {
	if _, err := d.registry.Remove(id); err != nil {
		return err
	}
	d.traceState(id, subscription.StateActive.String(), subscription.StateDeleted.String(), "unregister")
	return nil
}

// Start launches the worker pool. Calling Start on a running dispatcher is
// a no-op.
func (d *Dispatcher) Start() {
	if d.running.Swap(true) {
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	wg := conc.NewWaitGroup()
	for range d.config.Workers {
		wg.Go(func() { d.work(ctx) })
	}

	d.mu.Lock()
	d.cancel = cancel
	d.workers = wg
	d.mu.Unlock()

	d.trace.Log(log.Event{
		Timestamp:   time.Now(),
		Layer:       log.LayerDispatch,
		Category:    log.CategoryState,
		StateChange: &log.StateChangeEvent{Entity: log.StateEntityDispatcher, OldState: "STOPPED", NewState: "RUNNING"},
	})
}

// Stop signals the workers and waits for in-flight payloads to finish.
// Queued payloads stay queued until the next Start. Calling Stop on a
// stopped dispatcher is a no-op.
func (d *Dispatcher) Stop() {
	if !d.running.Swap(false) {
		return
	}

	d.mu.Lock()
	cancel, wg := d.cancel, d.workers
	d.cancel, d.workers = nil, nil
	d.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if wg != nil {
		wg.Wait()
	}

	d.trace.Log(log.Event{
		Timestamp:   time.Now(),
		Layer:       log.LayerDispatch,
		Category:    log.CategoryState,
		StateChange: &log.StateChangeEvent{Entity: log.StateEntityDispatcher, OldState: "RUNNING", NewState: "STOPPED"},
	})
}

// Running reports whether the worker pool is running.
func (d *Dispatcher) Running() bool {
	return d.running.Load()
}

// Pending returns the number of queued payloads.
func (d *Dispatcher) Pending() int {
	return len(d.queue)
}

// Stats returns the dispatcher counters.
func (d *Dispatcher) Stats() Stats {
	return Stats{
		Received:  d.received.Load(),
		Dropped:   d.dropped.Load(),
		Delivered: d.delivered.Load(),
		Failed:    d.failed.Load(),
	}
}

// OnRawPayload queues a payload without waiting for it to be processed.
func (d *Dispatcher) OnRawPayload(raw []byte) {
	d.OnPayload("", raw)
}

// OnPayload queues a payload tagged with a correlation id. When the queue
// is full the payload is dropped and logged.
func (d *Dispatcher) OnPayload(correlationID string, raw []byte) {
	d.received.Add(1)
	select {
	case d.queue <- payload{correlationID: correlationID, raw: raw}:
	default:
		d.dropped.Add(1)
		d.logger.Warn("notification queue full, dropping payload",
			"correlation_id", correlationID, "size", len(raw))
		d.traceDrop(correlationID, "", "", "queue full")
	}
}

// Dispatch processes a payload synchronously.
func (d *Dispatcher) Dispatch(raw []byte) {
	d.received.Add(1)
	d.dispatch(payload{raw: raw})
}

func (d *Dispatcher) work(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case p := <-d.queue:
			d.dispatch(p)
		}
	}
}

func (d *Dispatcher) dispatch(p payload) {
	n, err := wire.ParseNotification(p.raw)
	if err != nil {
		d.dropped.Add(1)
		d.logger.Debug("dropping malformed notification", "correlation_id", p.correlationID, "error", err)
		d.traceDrop(p.correlationID, "", "", err.Error())
		return
	}
	if n.SubscriptionID == "" || n.Data == nil {
		d.dropped.Add(1)
		d.logger.Debug("dropping notification without subscription or data", "correlation_id", p.correlationID)
		d.traceDrop(p.correlationID, n.SubscriptionID, "", "missing subscriptionId or data")
		return
	}

	sub, ok := d.registry.Get(n.SubscriptionID)
	if !ok || !sub.IsActive() {
		d.dropped.Add(1)
		d.logger.Debug("dropping notification for unknown subscription",
			"correlation_id", p.correlationID, "subscription_id", n.SubscriptionID)
		d.traceDrop(p.correlationID, n.SubscriptionID, "", "unknown subscription")
		return
	}

	deltas := make([]wire.Document, len(n.Data))
	errs := make([]error, len(n.Data))
	ids := make([]string, len(n.Data))
	for i := range n.Data {
		deltas[i], errs[i] = n.Delta(i)
		ids[i], _, _ = deltas[i].GetString(wire.KeyID)
	}
	d.trace.Log(log.Event{
		Timestamp:      time.Now(),
		CorrelationID:  p.correlationID,
		Direction:      log.DirectionIn,
		Layer:          log.LayerWire,
		Category:       log.CategoryMessage,
		SubscriptionID: sub.ID,
		Notification:   &log.NotificationEvent{Deltas: len(n.Data), EntityIDs: ids},
	})

	for i, doc := range deltas {
		d.deliverSafely(p.correlationID, sub, doc, errs[i])
	}
}

// deliverSafely isolates one delta: decode errors, delivery errors and
// panics are logged and counted, never propagated.
func (d *Dispatcher) deliverSafely(correlationID string, sub *subscription.Subscription, doc wire.Document, err error) {
	if err == nil {
		var catcher panics.Catcher
		catcher.Try(func() {
			err = d.deliver(correlationID, sub, doc)
		})
		if r := catcher.Recovered(); r != nil {
			err = r.AsError()
		}
	}
	if err == nil {
		return
	}
	if errors.Is(err, errNoChanges) {
		return
	}

	d.failed.Add(1)
	id, _, _ := doc.GetString(wire.KeyID)
	d.logger.Warn("notification delta failed",
		"subscription_id", sub.ID, "entity_id", id, "error", err)
	d.trace.Log(log.Event{
		Timestamp:      time.Now(),
		CorrelationID:  correlationID,
		Layer:          log.LayerDispatch,
		Category:       log.CategoryError,
		SubscriptionID: sub.ID,
		EntityID:       id,
		Error:          &log.ErrorEventData{Layer: log.LayerDispatch, Message: err.Error(), Context: "deliver"},
	})
}

var errNoChanges = errors.New("delta carries no attributes")

func (d *Dispatcher) deliver(correlationID string, sub *subscription.Subscription, doc wire.Document) error {
	changed := d.changedAttributes(doc)
	if len(changed) == 0 {
		return errNoChanges
	}

	id, _, err := d.mapper.Identity(doc)
	if err != nil {
		return err
	}

	var obj any
	sub.Exclusive(func() {
		obj, err = d.handOff(sub, id, doc, changed)
	})
	if err != nil {
		return err
	}
	d.delivered.Add(1)

	d.trace.Log(log.Event{
		Timestamp:      time.Now(),
		CorrelationID:  correlationID,
		Layer:          log.LayerDispatch,
		Category:       log.CategoryMessage,
		SubscriptionID: sub.ID,
		EntityID:       id,
		Delivery: &log.DeliveryEvent{
			TargetType: fmt.Sprint(reflect.TypeOf(obj)),
			Changed:    changed,
			FullEntity: sub.FullEntity,
		},
	})
	return nil
}

// handOff reconstructs the delta and invokes the subscription callback. For
// tracking subscriptions it runs under the subscription's delivery lock.
func (d *Dispatcher) handOff(sub *subscription.Subscription, id string, doc wire.Document, changed []string) (any, error) {
	obj, err := d.reconstruct(sub, id, doc)
	if err != nil {
		return nil, err
	}

	var out any = obj
	if !sub.FullEntity {
		values, err := d.mapper.AttributeValues(obj, changed)
		if err != nil {
			return nil, err
		}
		out = values
	}

	sub.Callback(id, out)
	return obj, nil
}

// reconstruct materializes doc for sub. With instance tracking, the delta
// is merged into the object kept for the entity id.
func (d *Dispatcher) reconstruct(sub *subscription.Subscription, id string, doc wire.Document) (any, error) {
	if sub.TracksInstances() && id != "" {
		if obj, ok := sub.Instance(id); ok {
			if err := d.mapper.DeserializeInto(doc, obj); err != nil {
				return nil, err
			}
			return obj, nil
		}
	}

	target := sub.TargetType
	if target == nil {
		target = dynamicEntityType
	}
	obj, err := d.mapper.Materialize(doc, target)
	if err != nil {
		return nil, err
	}
	if sub.TracksInstances() && id != "" {
		sub.StoreInstance(id, obj)
	}
	return obj, nil
}

// changedAttributes returns the field-decoded attribute names of a delta.
func (d *Dispatcher) changedAttributes(doc wire.Document) []string {
	keys := doc.Attributes()
	names := make([]string, 0, len(keys))
	for _, k := range keys {
		names = append(names, d.mapper.DecodeField(k))
	}
	sort.Strings(names)
	return names
}

func (d *Dispatcher) traceDrop(correlationID, subscriptionID, entityID, reason string) {
	d.trace.Log(log.Event{
		Timestamp:      time.Now(),
		CorrelationID:  correlationID,
		Direction:      log.DirectionIn,
		Layer:          log.LayerWire,
		Category:       log.CategoryDrop,
		SubscriptionID: subscriptionID,
		EntityID:       entityID,
		Error:          &log.ErrorEventData{Layer: log.LayerWire, Message: reason, Context: "dispatch"},
	})
}

func (d *Dispatcher) traceState(subscriptionID, oldState, newState, reason string) {
	d.trace.Log(log.Event{
		Timestamp:      time.Now(),
		Layer:          log.LayerDispatch,
		Category:       log.CategoryState,
		SubscriptionID: subscriptionID,
		StateChange: &log.StateChangeEvent{
			Entity:   log.StateEntitySubscription,
			OldState: oldState,
			NewState: newState,
			Reason:   reason,
		},
	})
}

var _ CorrelatedSink = (*Dispatcher)(nil)
