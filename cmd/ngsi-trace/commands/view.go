// Package commands implements the ngsi-trace CLI commands.
package commands

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/ngsi-go/ngsi/pkg/log"
)

// FilterOptions holds the string form of the filter flags shared by all
// commands.
type FilterOptions struct {
	CorrelationID  string
	SubscriptionID string
	EntityID       string
	TimeStart      string
	TimeEnd        string
	Layer          string
	Direction      string
	Category       string
}

// Build converts the options into a trace filter.
func (o FilterOptions) Build() (log.Filter, error) {
	filter := log.Filter{
		CorrelationID:  o.CorrelationID,
		SubscriptionID: o.SubscriptionID,
		EntityID:       o.EntityID,
	}

	if o.TimeStart != "" {
		t, err := time.Parse(time.RFC3339, o.TimeStart)
		if err != nil {
			return log.Filter{}, fmt.Errorf("invalid time-start format: %w", err)
		}
		filter.TimeStart = &t
	}
	if o.TimeEnd != "" {
		t, err := time.Parse(time.RFC3339, o.TimeEnd)
		if err != nil {
			return log.Filter{}, fmt.Errorf("invalid time-end format: %w", err)
		}
		filter.TimeEnd = &t
	}
	if o.Layer != "" {
		l, err := parseLayer(o.Layer)
		if err != nil {
			return log.Filter{}, err
		}
		filter.Layer = &l
	}
	if o.Direction != "" {
		d, err := parseDirection(o.Direction)
		if err != nil {
			return log.Filter{}, err
		}
		filter.Direction = &d
	}
	if o.Category != "" {
		c, err := parseCategory(o.Category)
		if err != nil {
			return log.Filter{}, err
		}
		filter.Category = &c
	}
	return filter, nil
}

// formatEvent writes a human-readable representation of the event to w.
func formatEvent(w io.Writer, event log.Event) {
	ts := event.Timestamp.UTC().Format("2006-01-02T15:04:05.000000Z")

	var label string
	switch {
	case event.HTTP != nil:
		label = "HTTP"
	case event.Notification != nil:
		label = "Notification"
	case event.Delivery != nil:
		label = "Delivery"
	case event.StateChange != nil:
		label = "State"
	case event.Error != nil:
		label = "Error"
	case event.Category == log.CategoryDrop:
		label = "Drop"
	default:
		label = "Unknown"
	}

	fmt.Fprintf(w, "%s [corr:%s] %-3s %s %s\n", ts, shortenID(event.CorrelationID),
		event.Direction.String(), event.Layer.String(), label)

	if event.SubscriptionID != "" {
		fmt.Fprintf(w, "  Subscription: %s\n", event.SubscriptionID)
	}
	if event.EntityID != "" {
		fmt.Fprintf(w, "  Entity: %s\n", event.EntityID)
	}
	if event.RemoteAddr != "" {
		fmt.Fprintf(w, "  Remote: %s\n", event.RemoteAddr)
	}

	switch {
	case event.HTTP != nil:
		formatHTTPDetails(w, event.HTTP)
	case event.Notification != nil:
		fmt.Fprintf(w, "  Deltas: %d\n", event.Notification.Deltas)
		if len(event.Notification.EntityIDs) > 0 {
			fmt.Fprintf(w, "  Entities: %s\n", strings.Join(event.Notification.EntityIDs, ", "))
		}
	case event.Delivery != nil:
		formatDeliveryDetails(w, event.Delivery)
	case event.StateChange != nil:
		formatStateChangeDetails(w, event.StateChange)
	case event.Error != nil:
		formatErrorDetails(w, event.Error)
	}

	fmt.Fprintln(w)
}

// shortenID returns the first 8 characters of a correlation id.
func shortenID(id string) string {
	if id == "" {
		return "-"
	}
	if len(id) >= 8 {
		return id[:8]
	}
	return id
}

func formatHTTPDetails(w io.Writer, h *log.HTTPEvent) {
	if h.Method != "" {
		fmt.Fprintf(w, "  %s %s\n", h.Method, h.Path)
	} else if h.Path != "" {
		fmt.Fprintf(w, "  Path: %s\n", h.Path)
	}
	if h.StatusCode != 0 {
		fmt.Fprintf(w, "  Status: %d\n", h.StatusCode)
	}
	if h.Duration > 0 {
		fmt.Fprintf(w, "  Duration: %s\n", formatDuration(h.Duration))
	}
	fmt.Fprintf(w, "  Size: %d bytes\n", h.Size)
	if len(h.Body) > 0 {
		fmt.Fprintf(w, "  Body: %s", h.Body)
		if h.Truncated {
			fmt.Fprint(w, " (truncated)")
		}
		fmt.Fprintln(w)
	}
}

func formatDeliveryDetails(w io.Writer, d *log.DeliveryEvent) {
	if d.TargetType != "" {
		fmt.Fprintf(w, "  Target: %s\n", d.TargetType)
	}
	if len(d.Changed) > 0 {
		fmt.Fprintf(w, "  Changed: %s\n", strings.Join(d.Changed, ", "))
	}
	if d.FullEntity {
		fmt.Fprintln(w, "  Full entity")
	}
}

func formatStateChangeDetails(w io.Writer, sc *log.StateChangeEvent) {
	fmt.Fprintf(w, "  Entity: %s\n", sc.Entity.String())
	if sc.OldState != "" {
		fmt.Fprintf(w, "  %s -> %s\n", sc.OldState, sc.NewState)
	} else {
		fmt.Fprintf(w, "  -> %s\n", sc.NewState)
	}
	if sc.Reason != "" {
		fmt.Fprintf(w, "  Reason: %s\n", sc.Reason)
	}
}

func formatErrorDetails(w io.Writer, err *log.ErrorEventData) {
	fmt.Fprintf(w, "  Layer: %s\n", err.Layer.String())
	fmt.Fprintf(w, "  Message: %s\n", err.Message)
	if err.Context != "" {
		fmt.Fprintf(w, "  Context: %s\n", err.Context)
	}
}

// formatDuration formats a duration for display.
func formatDuration(d time.Duration) string {
	if d < time.Millisecond {
		return fmt.Sprintf("%.3fus", float64(d.Nanoseconds())/1000)
	}
	if d < time.Second {
		return fmt.Sprintf("%.3fms", float64(d.Microseconds())/1000)
	}
	return fmt.Sprintf("%.3fs", d.Seconds())
}

// parseLayer parses a layer string (case-insensitive).
func parseLayer(s string) (log.Layer, error) {
	switch strings.ToLower(s) {
	case "transport":
		return log.LayerTransport, nil
	case "wire":
		return log.LayerWire, nil
	case "dispatch":
		return log.LayerDispatch, nil
	default:
		return 0, fmt.Errorf("invalid layer: %s (must be transport, wire, or dispatch)", s)
	}
}

// parseDirection parses a direction string (case-insensitive).
func parseDirection(s string) (log.Direction, error) {
	switch strings.ToLower(s) {
	case "in":
		return log.DirectionIn, nil
	case "out":
		return log.DirectionOut, nil
	default:
		return 0, fmt.Errorf("invalid direction: %s (must be in or out)", s)
	}
}

// parseCategory parses a category string (case-insensitive).
func parseCategory(s string) (log.Category, error) {
	switch strings.ToLower(s) {
	case "message":
		return log.CategoryMessage, nil
	case "state":
		return log.CategoryState, nil
	case "error":
		return log.CategoryError, nil
	case "drop":
		return log.CategoryDrop, nil
	default:
		return 0, fmt.Errorf("invalid category: %s (must be message, state, error, or drop)", s)
	}
}

// RunView prints the matching events of a trace file.
func RunView(path string, opts FilterOptions, output io.Writer) error {
	filter, err := opts.Build()
	if err != nil {
		return err
	}
	reader, err := log.NewFilteredReader(path, filter)
	if err != nil {
		return fmt.Errorf("failed to open trace file: %w", err)
	}
	defer reader.Close()

	for event, err := range reader.Events() {
		if err != nil {
			return fmt.Errorf("failed to read event: %w", err)
		}
		formatEvent(output, event)
	}
	return nil
}
