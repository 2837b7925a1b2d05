package wire

import (
	"encoding/json"
	"fmt"
	"time"
)

// Notification is a push payload sent by the broker to a subscriber.
// Each data entry is kept raw so one malformed delta does not reject its
// siblings; Delta decodes them individually.
type Notification struct {
	SubscriptionID string            `json:"subscriptionId"`
	Data           []json.RawMessage `json:"data"`
}

// ParseNotification decodes a push payload. A missing subscriptionId or
// data member is not an error here; the dispatcher decides what to drop.
func ParseNotification(raw []byte) (*Notification, error) {
	var n Notification
	if err := json.Unmarshal(raw, &n); err != nil {
		return nil, fmt.Errorf("wire: parse notification: %w", err)
	}
	return &n, nil
}

// Delta decodes data entry i as an entity document.
func (n *Notification) Delta(i int) (Document, error) {
	if i < 0 || i >= len(n.Data) {
		return nil, fmt.Errorf("wire: delta %d out of range", i)
	}
	return Parse(n.Data[i])
}

// Marshal encodes the notification.
func (n *Notification) Marshal() ([]byte, error) {
	return json.Marshal(n)
}

// Attribute formats accepted by the broker.
const (
	FormatNormalized = "normalized"
	FormatKeyValues  = "keyValues"
)

// SubscriptionRequest is the body of a create-subscription call.
type SubscriptionRequest struct {
	Description  string               `json:"description,omitempty"`
	Subject      SubscriptionSubject  `json:"subject"`
	Notification NotificationSettings `json:"notification"`
	Expires      *time.Time           `json:"expires,omitempty"`
	Throttling   int                  `json:"throttling,omitempty"`
}

// SubscriptionSubject selects the entities and changes that trigger
// notifications.
type SubscriptionSubject struct {
	Entities  []EntitySelector `json:"entities"`
	Condition *Condition       `json:"condition,omitempty"`
}

// EntitySelector matches entities by id or id pattern and optional type.
type EntitySelector struct {
	ID        string `json:"id,omitempty"`
	IDPattern string `json:"idPattern,omitempty"`
	Type      string `json:"type,omitempty"`
}

// Condition lists the attributes whose change triggers a notification.
type Condition struct {
	Attrs []string `json:"attrs,omitempty"`
}

// NotificationSettings describes where and how notifications are sent.
type NotificationSettings struct {
	HTTP             HTTPEndpoint `json:"http"`
	Attrs            []string     `json:"attrs,omitempty"`
	AttrsFormat      string       `json:"attrsFormat,omitempty"`
	OnlyChangedAttrs bool         `json:"onlyChangedAttrs,omitempty"`
}

// HTTPEndpoint is the receiver URL.
type HTTPEndpoint struct {
	URL string `json:"url"`
}

// Validate checks the fields the broker requires.
func (r *SubscriptionRequest) Validate() error {
	if len(r.Subject.Entities) == 0 {
		return fmt.Errorf("wire: subscription without entities")
	}
	for i, e := range r.Subject.Entities {
		if e.ID == "" && e.IDPattern == "" {
			return fmt.Errorf("wire: entity selector %d has neither id nor idPattern", i)
		}
		if e.ID != "" && e.IDPattern != "" {
			return fmt.Errorf("wire: entity selector %d has both id and idPattern", i)
		}
	}
	if r.Notification.HTTP.URL == "" {
		return fmt.Errorf("wire: subscription without notification url")
	}
	switch r.Notification.AttrsFormat {
	case "", FormatNormalized, FormatKeyValues:
	default:
		return fmt.Errorf("wire: unsupported attrsFormat %q", r.Notification.AttrsFormat)
	}
	return nil
}
