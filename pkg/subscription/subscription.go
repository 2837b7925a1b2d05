package subscription

import (
	"errors"
	"fmt"
	"reflect"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"
)

// Subscription errors.
var (
	ErrEmptyID              = errors.New("subscription id is empty")
	ErrDuplicateID          = errors.New("subscription id already registered")
	ErrSubscriptionNotFound = errors.New("subscription not found")
	ErrResourceExhausted    = errors.New("maximum subscriptions reached")
	ErrInvalidState         = errors.New("invalid subscription state transition")
	ErrNilCallback          = errors.New("subscription callback is nil")
)

// DefaultInstanceTableSize bounds the per-subscription instance table when
// tracking is enabled without an explicit size.
const DefaultInstanceTableSize = 1024

// State is the lifecycle state of a subscription.
type State uint8

const (
	// StateCreated is a subscription not yet accepted by the broker.
	StateCreated State = iota

	// StateActive is a registered subscription that receives notifications.
	StateActive

	// StateDeleted is a subscription removed from the registry.
	StateDeleted
)

// String returns a human-readable state name.
func (s State) String() string {
	switch s {
	case StateCreated:
		return "CREATED"
	case StateActive:
		return "ACTIVE"
	case StateDeleted:
		return "DELETED"
	default:
		return "UNKNOWN"
	}
}

// Callback receives one reconstructed delta. payload is either the entity
// object or a map of changed attribute names to values, depending on the
// subscription's FullEntity setting.
type Callback func(entityID string, payload any)

// Subscription is the local record of one broker subscription.
type Subscription struct {
	// ID is the broker-assigned identifier. It must be set before the
	// subscription is added to a Registry.
	ID string

	// Description is sent to the broker with the subscription request.
	Description string

	// TargetType is the Go type notifications are deserialized into.
	// nil means the schema-less dynamic entity.
	TargetType reflect.Type

	// FullEntity selects whole-object delivery instead of changed attributes.
	FullEntity bool

	// Callback is invoked once per delivered delta.
	Callback Callback

	mu        sync.RWMutex
	state     State
	instances *lru.Cache[string, any]

	// deliverMu serializes merge and callback while instances are tracked.
	deliverMu sync.Mutex
}

// Option configures a Subscription.
type Option func(*Subscription) error

// WithDescription sets the human-readable description.
func WithDescription(desc string) Option {
	return func(s *Subscription) error {
		s.Description = desc
		return nil
	}
}

// WithFullEntity delivers the whole reconstructed object to the callback.
func WithFullEntity() Option {
	return func(s *Subscription) error {
		s.FullEntity = true
		return nil
	}
}

// WithInstanceTracking keeps up to size reconstructed objects so partial
// updates for the same entity id accumulate. size <= 0 selects
// DefaultInstanceTableSize.
func WithInstanceTracking(size int) Option {
	return func(s *Subscription) error {
		if size <= 0 {
			size = DefaultInstanceTableSize
		}
		cache, err := lru.New[string, any](size)
		if err != nil {
			return fmt.Errorf("instance table: %w", err)
		}
		s.instances = cache
		return nil
	}
}

// New creates a subscription in the Created state. target may be nil for a
// dynamic subscription; pointer types are reduced to their element.
func New(target reflect.Type, cb Callback, opts ...Option) (*Subscription, error) {
	if cb == nil {
		return nil, ErrNilCallback
	}
	for target != nil && target.Kind() == reflect.Pointer {
		target = target.Elem()
	}
	s := &Subscription{
		TargetType: target,
		Callback:   cb,
		state:      StateCreated,
	}
	for _, opt := range opts {
		if err := opt(s); err != nil {
			return nil, err
		}
	}
	return s, nil
}

// State returns the current lifecycle state.
func (s *Subscription) State() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

// IsActive reports whether the subscription receives notifications.
func (s *Subscription) IsActive() bool {
	return s.State() == StateActive
}

// Dynamic reports whether notifications are materialized as dynamic entities.
func (s *Subscription) Dynamic() bool {
	return s.TargetType == nil
}

// Activate moves a Created subscription to Active.
func (s *Subscription) Activate() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateCreated {
		return fmt.Errorf("%w: %s to %s", ErrInvalidState, s.state, StateActive)
	}
	s.state = StateActive
	return nil
}

// markDeleted moves the subscription to Deleted and drops its instances.
func (s *Subscription) markDeleted() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = StateDeleted
	if s.instances != nil {
		s.instances.Purge()
	}
}

// TracksInstances reports whether an instance table is kept.
func (s *Subscription) TracksInstances() bool {
	return s.instances != nil
}

// Exclusive runs fn while holding the delivery lock of a tracking
// subscription. Tracked objects are shared between deliveries, so lookup,
// merge, store and callback must not interleave. Without tracking fn runs
// directly.
func (s *Subscription) Exclusive(fn func()) {
	if s.instances == nil {
		fn()
		return
	}
	s.deliverMu.Lock()
	defer s.deliverMu.Unlock()
	fn()
}

// Instance returns the tracked object for an entity id.
func (s *Subscription) Instance(entityID string) (any, bool) {
	if s.instances == nil {
		return nil, false
	}
	return s.instances.Get(entityID)
}

// StoreInstance records obj as the current object for an entity id.
// It is a no-op when tracking is disabled.
func (s *Subscription) StoreInstance(entityID string, obj any) {
	if s.instances == nil {
		return
	}
	s.instances.Add(entityID, obj)
}

// InstanceCount returns the number of tracked objects.
func (s *Subscription) InstanceCount() int {
	if s.instances == nil {
		return 0
	}
	return s.instances.Len()
}
