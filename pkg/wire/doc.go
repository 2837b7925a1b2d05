// Package wire defines the JSON shapes exchanged with the broker.
//
// An entity travels as a flat JSON object: the reserved keys "id" and
// "type" hold strings, every other key is an attribute node of the form
//
//	{"value": <any>, "type": "<wire type name>", "metadata": {...}}
//
// Document keeps each top-level member as an undecoded json.RawMessage so
// that mappers can rewrite nodes without losing precision. Because
// encoding/json writes map keys in sorted order, marshaling the same
// Document twice always yields identical bytes.
//
// # Notifications
//
// The broker pushes changes as
//
//	{"subscriptionId": "<id>", "data": [<entity delta>, ...]}
//
// where every delta carries id, type and only the attributes that changed.
package wire
