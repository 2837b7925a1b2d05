package subscription

import (
	"sort"
	"sync"
)

// DefaultMaxSubscriptions is the registry capacity used by NewRegistry.
const DefaultMaxSubscriptions = 256

// Config holds registry configuration.
type Config struct {
	// MaxSubscriptions is the maximum number of registered subscriptions.
	MaxSubscriptions int
}

// DefaultConfig returns the default registry configuration.
func DefaultConfig() Config {
	return Config{MaxSubscriptions: DefaultMaxSubscriptions}
}

// Registry maps broker subscription ids to local subscriptions. It is safe
// for concurrent use by the registering goroutine and notification workers.
type Registry struct {
	mu            sync.RWMutex
	config        Config
	subscriptions map[string]*Subscription
}

// NewRegistry creates a registry with the default configuration.
func NewRegistry() *Registry {
	return NewRegistryWithConfig(DefaultConfig())
}

// NewRegistryWithConfig creates a registry with a custom configuration.
func NewRegistryWithConfig(config Config) *Registry {
	if config.MaxSubscriptions <= 0 {
		config.MaxSubscriptions = DefaultMaxSubscriptions
	}
	return &Registry{
		config:        config,
		subscriptions: make(map[string]*Subscription),
	}
}

// Add registers sub under sub.ID and activates it.
func (r *Registry) Add(sub *Subscription) error {
	if sub.ID == "" {
		return ErrEmptyID
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.subscriptions[sub.ID]; exists {
		return ErrDuplicateID
	}
	if len(r.subscriptions) >= r.config.MaxSubscriptions {
		return ErrResourceExhausted
	}
	if err := sub.Activate(); err != nil {
		return err
	}
	r.subscriptions[sub.ID] = sub
	return nil
}

// Remove unregisters a subscription and marks it Deleted.
func (r *Registry) Remove(id string) (*Subscription, error) {
	r.mu.Lock()
	sub, exists := r.subscriptions[id]
	if exists {
		delete(r.subscriptions, id)
	}
	r.mu.Unlock()

	if !exists {
		return nil, ErrSubscriptionNotFound
	}
	sub.markDeleted()
	return sub, nil
}

// Get returns a registered subscription.
func (r *Registry) Get(id string) (*Subscription, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	sub, ok := r.subscriptions[id]
	return sub, ok
}

// Count returns the number of registered subscriptions.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.subscriptions)
}

// IDs returns the registered subscription ids in sorted order.
func (r *Registry) IDs() []string {
	r.mu.RLock()
	ids := make([]string, 0, len(r.subscriptions))
	for id := range r.subscriptions {
		ids = append(ids, id)
	}
	r.mu.RUnlock()

	sort.Strings(ids)
	return ids
}

// ClearAll removes every subscription and returns them.
func (r *Registry) ClearAll() []*Subscription {
	r.mu.Lock()
	subs := make([]*Subscription, 0, len(r.subscriptions))
	for _, sub := range r.subscriptions {
		subs = append(subs, sub)
	}
	r.subscriptions = make(map[string]*Subscription)
	r.mu.Unlock()

	for _, sub := range subs {
		sub.markDeleted()
	}
	return subs
}
