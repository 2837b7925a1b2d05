package log

import (
	"errors"
	"fmt"
	"io"
	"iter"
	"os"
	"time"

	"github.com/fxamacker/cbor/v2"
)

// ErrTruncated reports a trace file whose last event was cut short, which
// happens when the writing process dies mid-record.
var ErrTruncated = errors.New("log: truncated trace event")

// Filter selects trace events. Zero fields match everything. Time bounds
// form the half-open interval [TimeStart, TimeEnd).
type Filter struct {
	CorrelationID  string
	SubscriptionID string
	EntityID       string
	Direction      *Direction
	Layer          *Layer
	Category       *Category
	TimeStart      *time.Time
	TimeEnd        *time.Time
}

// Match reports whether event passes every set criterion.
func (f Filter) Match(event Event) bool {
	for _, pred := range f.predicates() {
		if !pred(event) {
			return false
		}
	}
	return true
}

func (f Filter) predicates() []func(Event) bool {
	var preds []func(Event) bool
	str := func(want string, get func(Event) string) {
		if want != "" {
			preds = append(preds, func(e Event) bool { return get(e) == want })
		}
	}
	str(f.CorrelationID, func(e Event) string { return e.CorrelationID })
	str(f.SubscriptionID, func(e Event) string { return e.SubscriptionID })
	str(f.EntityID, func(e Event) string { return e.EntityID })

	if f.Direction != nil {
		d := *f.Direction
		preds = append(preds, func(e Event) bool { return e.Direction == d })
	}
	if f.Layer != nil {
		l := *f.Layer
		preds = append(preds, func(e Event) bool { return e.Layer == l })
	}
	if f.Category != nil {
		c := *f.Category
		preds = append(preds, func(e Event) bool { return e.Category == c })
	}
	if f.TimeStart != nil {
		start := *f.TimeStart
		preds = append(preds, func(e Event) bool { return !e.Timestamp.Before(start) })
	}
	if f.TimeEnd != nil {
		end := *f.TimeEnd
		preds = append(preds, func(e Event) bool { return e.Timestamp.Before(end) })
	}
	return preds
}

// Reader streams the events of one .ntrace file.
type Reader struct {
	file  *os.File
	dec   *cbor.Decoder
	preds []func(Event) bool
}

// NewReader opens a trace file and yields every event.
func NewReader(path string) (*Reader, error) {
	return NewFilteredReader(path, Filter{})
}

// NewFilteredReader opens a trace file and yields only the events matching
// filter.
func NewFilteredReader(path string, filter Filter) (*Reader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	return &Reader{file: f, dec: NewDecoder(f), preds: filter.predicates()}, nil
}

// Next returns the next matching event. It returns io.EOF after the last
// complete event and an error wrapping ErrTruncated if the file ends inside
// an event.
func (r *Reader) Next() (Event, error) {
next:
	for {
		var event Event
		switch err := r.dec.Decode(&event); {
		case err == nil:
		case errors.Is(err, io.EOF):
			return Event{}, io.EOF
		case errors.Is(err, io.ErrUnexpectedEOF):
			return Event{}, fmt.Errorf("%w: %w", ErrTruncated, err)
		default:
			return Event{}, err
		}
		for _, pred := range r.preds {
			if !pred(event) {
				continue next
			}
		}
		return event, nil
	}
}

// Events iterates the remaining matching events. Iteration stops at the
// end of the file or after yielding the first read error.
func (r *Reader) Events() iter.Seq2[Event, error] {
	return func(yield func(Event, error) bool) {
		for {
			event, err := r.Next()
			if errors.Is(err, io.EOF) {
				return
			}
			if !yield(event, err) || err != nil {
				return
			}
		}
	}
}

// Close releases the file.
func (r *Reader) Close() error {
	return r.file.Close()
}
