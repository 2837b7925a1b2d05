// Package subscription tracks the broker subscriptions a client has created.
//
// A Subscription is purely local state: the broker-assigned identifier, the
// Go type notifications are materialized into, whether the subscriber wants
// the whole entity or only the changed attributes, and the callback. Nothing
// here is persisted; subscriptions do not survive a process restart.
//
// # Lifecycle
//
// Every subscription moves through three states:
//
//	Created -> Active -> Deleted
//
// A subscription is Created when it is built, becomes Active once the broker
// has accepted it and it has been added to the Registry, and is Deleted when
// it is removed from the Registry. Notifications are only delivered to
// Active subscriptions.
//
// # Instance Tracking
//
// Brokers usually notify only the attributes that changed. When instance
// tracking is enabled, the subscription keeps the most recently
// reconstructed object per entity id in a bounded LRU table so successive
// partial updates accumulate into one object.
package subscription
