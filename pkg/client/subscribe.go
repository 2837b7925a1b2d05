package client

import (
	"context"
	"fmt"
	"reflect"
	"time"

	"github.com/ngsi-go/ngsi/pkg/broker"
	"github.com/ngsi-go/ngsi/pkg/model"
	"github.com/ngsi-go/ngsi/pkg/notify"
	"github.com/ngsi-go/ngsi/pkg/subscription"
	"github.com/ngsi-go/ngsi/pkg/typemap"
	"github.com/ngsi-go/ngsi/pkg/wire"
)

// SubscribeOption narrows what a subscription matches and how it is
// delivered.
type SubscribeOption func(*subscribeSettings)

type subscribeSettings struct {
	id          string
	idPattern   string
	entityType  string
	conditions  []string
	attrs       []string
	description string
	expires     *time.Time
	throttling  int
	track       bool
	trackSize   int
}

// ForEntity matches a single entity id.
func ForEntity(id string) SubscribeOption {
	return func(s *subscribeSettings) { s.id = id }
}

// ForIDPattern matches entity ids by regular expression. The default
// pattern is ".*".
func ForIDPattern(pattern string) SubscribeOption {
	return func(s *subscribeSettings) { s.idPattern = pattern }
}

// ForType matches an entity type. For struct targets the type defaults to
// the one the struct declares.
func ForType(typ string) SubscribeOption {
	return func(s *subscribeSettings) { s.entityType = typ }
}

// OnChangeOf limits the attributes whose change triggers a notification.
func OnChangeOf(attrs ...string) SubscribeOption {
	return func(s *subscribeSettings) { s.conditions = attrs }
}

// WithAttributes limits the attributes included in notifications.
func WithAttributes(attrs ...string) SubscribeOption {
	return func(s *subscribeSettings) { s.attrs = attrs }
}

// WithDescription sets the subscription description.
func WithDescription(desc string) SubscribeOption {
	return func(s *subscribeSettings) { s.description = desc }
}

// WithExpiry asks the broker to drop the subscription at t.
func WithExpiry(t time.Time) SubscribeOption {
	return func(s *subscribeSettings) { s.expires = &t }
}

// WithThrottling sets the minimum number of seconds between notifications.
func WithThrottling(seconds int) SubscribeOption {
	return func(s *subscribeSettings) { s.throttling = seconds }
}

// TrackInstances accumulates partial updates per entity id, keeping at
// most size objects. size <= 0 uses the configured table size.
func TrackInstances(size int) SubscribeOption {
	return func(s *subscribeSettings) {
		s.track = true
		s.trackSize = size
	}
}

// Subscribe delivers each notified entity as T. Attributes absent from a
// delta are left at their zero value unless TrackInstances is set.
func Subscribe[T any](ctx context.Context, c *Client, fn func(id string, e T), opts ...SubscribeOption) (string, error) {
	return c.subscribe(ctx, typemap.TypeOf[T](), true, notify.Entity(fn), opts)
}

// SubscribeChanges delivers the changed attributes of each notified entity,
// decoded through T.
func SubscribeChanges[T any](ctx context.Context, c *Client, fn func(id string, changed map[string]any), opts ...SubscribeOption) (string, error) {
	return c.subscribe(ctx, typemap.TypeOf[T](), false, notify.Changes(fn), opts)
}

// SubscribeDynamic delivers notified entities without a schema.
func (c *Client) SubscribeDynamic(ctx context.Context, fn func(id string, e *model.DynamicEntity), opts ...SubscribeOption) (string, error) {
	return c.subscribe(ctx, nil, true, notify.Dynamic(fn), opts)
}

func (c *Client) subscribe(ctx context.Context, target reflect.Type, full bool, cb subscription.Callback, opts []SubscribeOption) (string, error) {
	s := subscribeSettings{}
	for _, opt := range opts {
		opt(&s)
	}

	subOpts := []subscription.Option{subscription.WithDescription(s.description)}
	if full {
		subOpts = append(subOpts, subscription.WithFullEntity())
	}
	if s.track {
		size := s.trackSize
		if size <= 0 {
			size = c.config.Dispatcher.InstanceTableSize
		}
		subOpts = append(subOpts, subscription.WithInstanceTracking(size))
	}
	sub, err := subscription.New(target, cb, subOpts...)
	if err != nil {
		return "", err
	}

	if s.entityType == "" && sub.TargetType != nil {
		typ, err := c.declaredType(sub.TargetType)
		if err != nil {
			return "", err
		}
		s.entityType = typ
	}

	notifyURL, err := c.notificationURL()
	if err != nil {
		return "", err
	}
	req := c.request(s, notifyURL)

	id, err := c.broker.CreateSubscription(ctx, req)
	if err != nil {
		return "", err
	}
	sub.ID = id
	if err := c.dispatcher.Register(sub); err != nil {
		if derr := c.broker.DeleteSubscription(ctx, id); derr != nil {
			c.logger.Warn("rollback of rejected subscription failed", "subscription_id", id, "error", derr)
		}
		return "", err
	}
	c.logger.Debug("subscription active", "subscription_id", id, "type", s.entityType)
	return id, nil
}

// declaredType returns the entity type a struct declares on its zero value,
// or "" for interfaces and types without a fixed name.
func (c *Client) declaredType(t reflect.Type) (string, error) {
	if t.Kind() != reflect.Struct {
		return "", nil
	}
	ct, err := c.mapper.Contracts().GetOrCreate(t)
	if err != nil {
		return "", err
	}
	return ct.EntityType(reflect.New(t).Elem()), nil
}

func (c *Client) request(s subscribeSettings, notifyURL string) *wire.SubscriptionRequest {
	sel := wire.EntitySelector{ID: s.id, IDPattern: s.idPattern}
	if sel.ID == "" && sel.IDPattern == "" {
		sel.IDPattern = ".*"
	}
	if s.entityType != "" {
		sel.Type = c.mapper.EncodeField(s.entityType)
	}
	if sel.ID != "" {
		sel.ID = c.mapper.EncodeField(sel.ID)
	}

	req := &wire.SubscriptionRequest{
		Description: s.description,
		Subject:     wire.SubscriptionSubject{Entities: []wire.EntitySelector{sel}},
		Notification: wire.NotificationSettings{
			HTTP:        wire.HTTPEndpoint{URL: notifyURL},
			Attrs:       c.encodeNames(s.attrs),
			AttrsFormat: wire.FormatNormalized,
		},
		Expires:    s.expires,
		Throttling: s.throttling,
	}
	if len(s.conditions) > 0 {
		req.Subject.Condition = &wire.Condition{Attrs: c.encodeNames(s.conditions)}
	}
	return req
}

func (c *Client) encodeNames(names []string) []string {
	if len(names) == 0 {
		return nil
	}
	out := make([]string, len(names))
	for i, n := range names {
		out[i] = c.mapper.EncodeField(n)
	}
	return out
}

// Unsubscribe deletes a subscription on the broker, then removes it
// locally. A subscription the broker no longer knows is still removed
// locally.
func (c *Client) Unsubscribe(ctx context.Context, id string) error {
	if _, ok := c.dispatcher.Registry().Get(id); !ok {
		return fmt.Errorf("%w: %s", subscription.ErrSubscriptionNotFound, id)
	}
	return c.unsubscribe(ctx, id)
}

func (c *Client) unsubscribe(ctx context.Context, id string) error {
	if err := c.broker.DeleteSubscription(ctx, id); err != nil && !broker.IsNotFound(err) {
		return err
	}
	return c.dispatcher.Unregister(id)
}
