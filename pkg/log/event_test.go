package log

import (
	"testing"
	"time"
)

func TestEnumStrings(t *testing.T) {
	tests := []struct {
		name string
		got  string
		want string
	}{
		{"DirectionIn", DirectionIn.String(), "IN"},
		{"DirectionOut", DirectionOut.String(), "OUT"},
		{"Direction(9)", Direction(9).String(), "UNKNOWN"},
		{"LayerTransport", LayerTransport.String(), "TRANSPORT"},
		{"LayerWire", LayerWire.String(), "WIRE"},
		{"LayerDispatch", LayerDispatch.String(), "DISPATCH"},
		{"Layer(9)", Layer(9).String(), "UNKNOWN"},
		{"CategoryMessage", CategoryMessage.String(), "MESSAGE"},
		{"CategoryState", CategoryState.String(), "STATE"},
		{"CategoryError", CategoryError.String(), "ERROR"},
		{"CategoryDrop", CategoryDrop.String(), "DROP"},
		{"Category(9)", Category(9).String(), "UNKNOWN"},
		{"StateEntityListener", StateEntityListener.String(), "LISTENER"},
		{"StateEntityDispatcher", StateEntityDispatcher.String(), "DISPATCHER"},
		{"StateEntitySubscription", StateEntitySubscription.String(), "SUBSCRIPTION"},
		{"StateEntity(9)", StateEntity(9).String(), "UNKNOWN"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.got != tt.want {
				t.Errorf("String() = %q, want %q", tt.got, tt.want)
			}
		})
	}
}

func TestCaptureBody(t *testing.T) {
	small := []byte(`{"id":"r1"}`)
	body, truncated := CaptureBody(small)
	if truncated || string(body) != string(small) {
		t.Errorf("CaptureBody(small) = %q, %v", body, truncated)
	}

	large := make([]byte, MaxBodyCapture+10)
	body, truncated = CaptureBody(large)
	if !truncated {
		t.Error("CaptureBody(large) not truncated")
	}
	if len(body) != MaxBodyCapture {
		t.Errorf("len(body) = %d, want %d", len(body), MaxBodyCapture)
	}
}

func TestEventCBORRoundTrip(t *testing.T) {
	now := time.Date(2024, 3, 1, 12, 30, 0, 123456789, time.UTC)
	tests := []struct {
		name  string
		event Event
	}{
		{
			name: "http",
			event: Event{
				Timestamp:     now,
				CorrelationID: "c-1",
				Direction:     DirectionIn,
				Layer:         LayerTransport,
				Category:      CategoryMessage,
				RemoteAddr:    "10.0.0.2:4000",
				HTTP: &HTTPEvent{
					Method: "POST",
					Path:   "/notify",
					Size:   11,
					Body:   []byte(`{"id":"r1"}`),
				},
			},
		},
		{
			name: "notification",
			event: Event{
				Timestamp:      now,
				CorrelationID:  "c-2",
				Layer:          LayerWire,
				SubscriptionID: "sub-1",
				Notification:   &NotificationEvent{Deltas: 2, EntityIDs: []string{"r1", "r2"}},
			},
		},
		{
			name: "delivery",
			event: Event{
				Timestamp:      now,
				Layer:          LayerDispatch,
				SubscriptionID: "sub-1",
				EntityID:       "r1",
				Delivery:       &DeliveryEvent{TargetType: "Room", Changed: []string{"temperature"}},
			},
		},
		{
			name: "error",
			event: Event{
				Timestamp: now,
				Category:  CategoryError,
				Error:     &ErrorEventData{Layer: LayerWire, Message: "bad json", Context: "parse"},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data, err := EncodeEvent(tt.event)
			if err != nil {
				t.Fatalf("EncodeEvent() error = %v", err)
			}
			got, err := DecodeEvent(data)
			if err != nil {
				t.Fatalf("DecodeEvent() error = %v", err)
			}
			if !got.Timestamp.Equal(tt.event.Timestamp) {
				t.Errorf("Timestamp = %v, want %v", got.Timestamp, tt.event.Timestamp)
			}
			if got.CorrelationID != tt.event.CorrelationID {
				t.Errorf("CorrelationID = %q, want %q", got.CorrelationID, tt.event.CorrelationID)
			}
			if got.SubscriptionID != tt.event.SubscriptionID {
				t.Errorf("SubscriptionID = %q, want %q", got.SubscriptionID, tt.event.SubscriptionID)
			}
			if (got.HTTP == nil) != (tt.event.HTTP == nil) {
				t.Errorf("HTTP presence = %v, want %v", got.HTTP != nil, tt.event.HTTP != nil)
			}
			if (got.Notification == nil) != (tt.event.Notification == nil) {
				t.Errorf("Notification presence = %v", got.Notification != nil)
			}
			if (got.Delivery == nil) != (tt.event.Delivery == nil) {
				t.Errorf("Delivery presence = %v", got.Delivery != nil)
			}
			if (got.Error == nil) != (tt.event.Error == nil) {
				t.Errorf("Error presence = %v", got.Error != nil)
			}
		})
	}
}

func TestEventCBORPayloadFields(t *testing.T) {
	in := Event{
		Timestamp:    time.Now().UTC(),
		Notification: &NotificationEvent{Deltas: 3, EntityIDs: []string{"a", "b", "c"}},
	}
	data, err := EncodeEvent(in)
	if err != nil {
		t.Fatalf("EncodeEvent() error = %v", err)
	}
	out, err := DecodeEvent(data)
	if err != nil {
		t.Fatalf("DecodeEvent() error = %v", err)
	}
	if out.Notification.Deltas != 3 {
		t.Errorf("Deltas = %d, want 3", out.Notification.Deltas)
	}
	if len(out.Notification.EntityIDs) != 3 || out.Notification.EntityIDs[2] != "c" {
		t.Errorf("EntityIDs = %v", out.Notification.EntityIDs)
	}
}

func TestDecodeEventInvalid(t *testing.T) {
	if _, err := DecodeEvent([]byte{0xff, 0x00}); err == nil {
		t.Error("DecodeEvent(garbage) error = nil")
	}
}
