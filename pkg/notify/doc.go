// Package notify turns broker push payloads into typed subscriber callbacks.
//
// A payload has the shape
//
//	{"subscriptionId": "...", "data": [ {entity delta}, ... ]}
//
// The Dispatcher looks the subscription up in its registry and, for every
// delta, reconstructs an object of the subscription's target type through
// the mapper. Subscribers receive either the whole object or a map of the
// attributes that changed in the delta.
//
// Payloads arrive through OnRawPayload, which never blocks: they are queued
// and processed by a small pool of workers started with Start. Dispatch
// processes a payload synchronously on the caller's goroutine.
//
// Malformed payloads, unknown subscriptions and failing deltas are logged
// and dropped. A failure or panic in one delta never prevents delivery of
// its siblings.
package notify
