package log

import "time"

// Event is one protocol trace record.
// CBOR encoding uses integer keys for compactness.
type Event struct {
	// Timestamp when the event occurred (nanosecond precision).
	Timestamp time.Time `cbor:"1,keyasint"`

	// CorrelationID ties together events caused by one inbound request or
	// one outbound call.
	CorrelationID string `cbor:"2,keyasint"`

	// Direction indicates message flow.
	Direction Direction `cbor:"3,keyasint"`

	// Layer where the event was captured.
	Layer Layer `cbor:"4,keyasint"`

	// Category classifies the event.
	Category Category `cbor:"5,keyasint"`

	// RemoteAddr is the peer address (host:port).
	RemoteAddr string `cbor:"6,keyasint,omitempty"`

	// SubscriptionID is the broker subscription involved, if any.
	SubscriptionID string `cbor:"7,keyasint,omitempty"`

	// EntityID is the entity involved, if any.
	EntityID string `cbor:"8,keyasint,omitempty"`

	// Type-specific payload (at most one is set).
	HTTP         *HTTPEvent         `cbor:"10,keyasint,omitempty"`
	Notification *NotificationEvent `cbor:"11,keyasint,omitempty"`
	Delivery     *DeliveryEvent     `cbor:"12,keyasint,omitempty"`
	StateChange  *StateChangeEvent  `cbor:"13,keyasint,omitempty"`
	Error        *ErrorEventData    `cbor:"14,keyasint,omitempty"`
}

// Direction indicates the direction of message flow.
type Direction uint8

const (
	// DirectionIn indicates an incoming message.
	DirectionIn Direction = 0
	// DirectionOut indicates an outgoing message.
	DirectionOut Direction = 1
)

// String returns the direction name.
func (d Direction) String() string {
	switch d {
	case DirectionIn:
		return "IN"
	case DirectionOut:
		return "OUT"
	default:
		return "UNKNOWN"
	}
}

// Layer indicates where the event was captured.
type Layer uint8

const (
	// LayerTransport is the HTTP layer (raw bodies).
	LayerTransport Layer = 0
	// LayerWire is the JSON document layer.
	LayerWire Layer = 1
	// LayerDispatch is subscriber delivery.
	LayerDispatch Layer = 2
)

// String returns the layer name.
func (l Layer) String() string {
	switch l {
	case LayerTransport:
		return "TRANSPORT"
	case LayerWire:
		return "WIRE"
	case LayerDispatch:
		return "DISPATCH"
	default:
		return "UNKNOWN"
	}
}

// Category classifies the event type.
type Category uint8

const (
	// CategoryMessage is a request, response or notification.
	CategoryMessage Category = 0
	// CategoryState is a lifecycle change.
	CategoryState Category = 1
	// CategoryError is a failure.
	CategoryError Category = 2
	// CategoryDrop is input discarded without delivery.
	CategoryDrop Category = 3
)

// String returns the category name.
func (c Category) String() string {
	switch c {
	case CategoryMessage:
		return "MESSAGE"
	case CategoryState:
		return "STATE"
	case CategoryError:
		return "ERROR"
	case CategoryDrop:
		return "DROP"
	default:
		return "UNKNOWN"
	}
}

// HTTPEvent captures one HTTP request or response.
type HTTPEvent struct {
	// Method is the HTTP method (requests only).
	Method string `cbor:"1,keyasint,omitempty"`

	// Path is the request path.
	Path string `cbor:"2,keyasint,omitempty"`

	// StatusCode is the response status (responses only).
	StatusCode int `cbor:"3,keyasint,omitempty"`

	// Size is the body size in bytes.
	Size int `cbor:"4,keyasint"`

	// Body holds the body bytes (may be truncated).
	Body []byte `cbor:"5,keyasint,omitempty"`

	// Truncated indicates Body was truncated.
	Truncated bool `cbor:"6,keyasint,omitempty"`

	// Duration is the round-trip time (responses only).
	Duration time.Duration `cbor:"7,keyasint,omitempty"`
}

// MaxBodyCapture is the largest body stored in an HTTPEvent.
const MaxBodyCapture = 4096

// CaptureBody returns an HTTPEvent body and truncation flag for data.
func CaptureBody(data []byte) ([]byte, bool) {
	if len(data) <= MaxBodyCapture {
		return data, false
	}
	return data[:MaxBodyCapture], true
}

// NotificationEvent captures a parsed notification body.
type NotificationEvent struct {
	// Deltas is the number of entries in the data array.
	Deltas int `cbor:"1,keyasint"`

	// EntityIDs lists the ids of the notified entities.
	EntityIDs []string `cbor:"2,keyasint,omitempty"`
}

// DeliveryEvent captures one delta handed to a subscriber.
type DeliveryEvent struct {
	// TargetType is the Go type the delta was materialized into.
	TargetType string `cbor:"1,keyasint,omitempty"`

	// Changed lists the changed attribute names.
	Changed []string `cbor:"2,keyasint,omitempty"`

	// FullEntity indicates the whole object was delivered.
	FullEntity bool `cbor:"3,keyasint,omitempty"`
}

// StateChangeEvent captures a lifecycle transition.
type StateChangeEvent struct {
	// Entity being changed.
	Entity StateEntity `cbor:"1,keyasint"`

	// OldState is the previous state (may be empty).
	OldState string `cbor:"2,keyasint,omitempty"`

	// NewState is the new state.
	NewState string `cbor:"3,keyasint"`

	// Reason for the change, if known.
	Reason string `cbor:"4,keyasint,omitempty"`
}

// StateEntity indicates what changed state.
type StateEntity uint8

const (
	// StateEntityListener is the push receiver.
	StateEntityListener StateEntity = 0
	// StateEntityDispatcher is the notification dispatcher.
	StateEntityDispatcher StateEntity = 1
	// StateEntitySubscription is a broker subscription.
	StateEntitySubscription StateEntity = 2
)

// String returns the state entity name.
func (s StateEntity) String() string {
	switch s {
	case StateEntityListener:
		return "LISTENER"
	case StateEntityDispatcher:
		return "DISPATCHER"
	case StateEntitySubscription:
		return "SUBSCRIPTION"
	default:
		return "UNKNOWN"
	}
}

// ErrorEventData captures a failure at any layer.
type ErrorEventData struct {
	// Layer where the error occurred.
	Layer Layer `cbor:"1,keyasint"`

	// Message is the error text.
	Message string `cbor:"2,keyasint"`

	// Context describes the operation being performed.
	Context string `cbor:"3,keyasint,omitempty"`
}
