package log

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"testing"
	"time"
)

func captureSlog(t *testing.T, event Event) map[string]any {
	t.Helper()
	var buf bytes.Buffer
	handler := slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug})
	NewSlogAdapter(slog.New(handler)).Log(event)

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("failed to parse log output %q: %v", buf.String(), err)
	}
	return entry
}

func TestSlogAdapterHTTPEvent(t *testing.T) {
	entry := captureSlog(t, Event{
		Timestamp:     time.Now(),
		CorrelationID: "c-123",
		Direction:     DirectionIn,
		Layer:         LayerTransport,
		Category:      CategoryMessage,
		RemoteAddr:    "10.0.0.1:5000",
		HTTP:          &HTTPEvent{Method: "POST", Path: "/notify", Size: 256},
	})

	checks := map[string]any{
		"msg":            "protocol",
		"correlation_id": "c-123",
		"direction":      "IN",
		"layer":          "TRANSPORT",
		"category":       "MESSAGE",
		"remote":         "10.0.0.1:5000",
		"method":         "POST",
		"path":           "/notify",
		"size":           float64(256),
	}
	for k, want := range checks {
		if entry[k] != want {
			t.Errorf("%s: got %v, want %v", k, entry[k], want)
		}
	}
	if _, ok := entry["status"]; ok {
		t.Error("status should be omitted for requests")
	}
}

func TestSlogAdapterDeliveryEvent(t *testing.T) {
	entry := captureSlog(t, Event{
		Layer:          LayerDispatch,
		SubscriptionID: "s-1",
		EntityID:       "r1",
		Delivery:       &DeliveryEvent{TargetType: "Room", Changed: []string{"temperature"}},
	})

	if entry["subscription_id"] != "s-1" {
		t.Errorf("subscription_id: got %v", entry["subscription_id"])
	}
	if entry["entity_id"] != "r1" {
		t.Errorf("entity_id: got %v", entry["entity_id"])
	}
	if entry["target"] != "Room" {
		t.Errorf("target: got %v", entry["target"])
	}
	changed, ok := entry["changed"].([]any)
	if !ok || len(changed) != 1 || changed[0] != "temperature" {
		t.Errorf("changed: got %v", entry["changed"])
	}
}

func TestSlogAdapterStateAndError(t *testing.T) {
	entry := captureSlog(t, Event{
		Category:    CategoryState,
		StateChange: &StateChangeEvent{Entity: StateEntityListener, OldState: "STOPPED", NewState: "RUNNING", Reason: "start"},
	})
	if entry["entity"] != "LISTENER" || entry["new_state"] != "RUNNING" || entry["reason"] != "start" {
		t.Errorf("state entry = %v", entry)
	}

	entry = captureSlog(t, Event{
		Category: CategoryError,
		Error:    &ErrorEventData{Layer: LayerWire, Message: "boom", Context: "parse"},
	})
	if entry["error_layer"] != "WIRE" || entry["error_msg"] != "boom" || entry["error_context"] != "parse" {
		t.Errorf("error entry = %v", entry)
	}
}

func TestSlogAdapterBelowLevel(t *testing.T) {
	var buf bytes.Buffer
	handler := slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelInfo})
	NewSlogAdapter(slog.New(handler)).Log(Event{CorrelationID: "quiet"})
	if buf.Len() != 0 {
		t.Errorf("debug event written at Info level: %s", buf.String())
	}
}
