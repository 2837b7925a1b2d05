package commands

import (
	"fmt"
	"io"
	"sort"
	"time"

	"github.com/ngsi-go/ngsi/pkg/log"
)

// Stats holds aggregate statistics about a trace file.
type Stats struct {
	TotalEvents       int
	EventsByLayer     map[log.Layer]int
	EventsByCategory  map[log.Category]int
	EventsByDirection map[log.Direction]int
	Subscriptions     map[string]*SubscriptionStats
	Requests          int
	Deltas            int
	Errors            int
	Drops             int
	TimeRange         struct {
		Start time.Time
		End   time.Time
	}
}

// SubscriptionStats holds statistics for a single subscription.
type SubscriptionStats struct {
	FirstSeen     time.Time
	LastSeen      time.Time
	Notifications int
	Deliveries    int
	Failures      int
	Entities      map[string]bool
}

// Collect reads a trace file and aggregates it.
func Collect(path string) (*Stats, error) {
	reader, err := log.NewReader(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open trace file: %w", err)
	}
	defer reader.Close()

	stats := &Stats{
		EventsByLayer:     make(map[log.Layer]int),
		EventsByCategory:  make(map[log.Category]int),
		EventsByDirection: make(map[log.Direction]int),
		Subscriptions:     make(map[string]*SubscriptionStats),
	}

	for event, err := range reader.Events() {
		if err != nil {
			return nil, fmt.Errorf("failed to read event: %w", err)
		}
		stats.add(event)
	}
	return stats, nil
}

func (s *Stats) add(event log.Event) {
	s.TotalEvents++
	s.EventsByLayer[event.Layer]++
	s.EventsByCategory[event.Category]++
	s.EventsByDirection[event.Direction]++

	if s.TimeRange.Start.IsZero() || event.Timestamp.Before(s.TimeRange.Start) {
		s.TimeRange.Start = event.Timestamp
	}
	if event.Timestamp.After(s.TimeRange.End) {
		s.TimeRange.End = event.Timestamp
	}

	switch event.Category {
	case log.CategoryError:
		s.Errors++
	case log.CategoryDrop:
		s.Drops++
	}
	if event.HTTP != nil && event.HTTP.Method != "" {
		s.Requests++
	}
	if event.Notification != nil {
		s.Deltas += event.Notification.Deltas
	}

	if event.SubscriptionID == "" {
		return
	}
	sub, ok := s.Subscriptions[event.SubscriptionID]
	if !ok {
		sub = &SubscriptionStats{FirstSeen: event.Timestamp, Entities: make(map[string]bool)}
		s.Subscriptions[event.SubscriptionID] = sub
	}
	sub.LastSeen = event.Timestamp
	if event.Notification != nil {
		sub.Notifications++
	}
	if event.Delivery != nil {
		sub.Deliveries++
	}
	if event.Error != nil {
		sub.Failures++
	}
	if event.EntityID != "" {
		sub.Entities[event.EntityID] = true
	}
}

// RunStats analyzes the trace file and prints statistics.
func RunStats(path string, w io.Writer) error {
	stats, err := Collect(path)
	if err != nil {
		return err
	}

	fmt.Fprintf(w, "Events:   %d\n", stats.TotalEvents)
	if stats.TotalEvents == 0 {
		return nil
	}
	fmt.Fprintf(w, "Start:    %s\n", stats.TimeRange.Start.UTC().Format(time.RFC3339Nano))
	fmt.Fprintf(w, "End:      %s\n", stats.TimeRange.End.UTC().Format(time.RFC3339Nano))
	fmt.Fprintf(w, "Duration: %s\n", stats.TimeRange.End.Sub(stats.TimeRange.Start))
	fmt.Fprintf(w, "Requests: %d\n", stats.Requests)
	fmt.Fprintf(w, "Deltas:   %d\n", stats.Deltas)
	fmt.Fprintf(w, "Errors:   %d\n", stats.Errors)
	fmt.Fprintf(w, "Drops:    %d\n", stats.Drops)

	fmt.Fprintln(w, "\nBy layer:")
	for _, l := range []log.Layer{log.LayerTransport, log.LayerWire, log.LayerDispatch} {
		if n := stats.EventsByLayer[l]; n > 0 {
			fmt.Fprintf(w, "  %s: %d\n", l, n)
		}
	}
	fmt.Fprintln(w, "\nBy category:")
	for _, c := range []log.Category{log.CategoryMessage, log.CategoryState, log.CategoryError, log.CategoryDrop} {
		if n := stats.EventsByCategory[c]; n > 0 {
			fmt.Fprintf(w, "  %s: %d\n", c, n)
		}
	}
	fmt.Fprintln(w, "\nBy direction:")
	for _, d := range []log.Direction{log.DirectionIn, log.DirectionOut} {
		if n := stats.EventsByDirection[d]; n > 0 {
			fmt.Fprintf(w, "  %s: %d\n", d, n)
		}
	}

	if len(stats.Subscriptions) == 0 {
		return nil
	}
	ids := make([]string, 0, len(stats.Subscriptions))
	for id := range stats.Subscriptions {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	fmt.Fprintf(w, "\nSubscriptions: %d\n", len(ids))
	for _, id := range ids {
		sub := stats.Subscriptions[id]
		fmt.Fprintf(w, "  %s: notifications=%d deliveries=%d failures=%d entities=%d\n",
			id, sub.Notifications, sub.Deliveries, sub.Failures, len(sub.Entities))
	}
	return nil
}
