package log

import (
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"
)

func TestFileLoggerCreatesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "client"+FileExtension)

	logger, err := NewFileLogger(path)
	if err != nil {
		t.Fatalf("NewFileLogger failed: %v", err)
	}
	defer logger.Close()

	if _, err := os.Stat(path); os.IsNotExist(err) {
		t.Error("trace file was not created")
	}
}

func TestFileLoggerWritesCBOR(t *testing.T) {
	path := filepath.Join(t.TempDir(), "client"+FileExtension)

	logger, err := NewFileLogger(path)
	if err != nil {
		t.Fatalf("NewFileLogger failed: %v", err)
	}
	logger.Log(Event{
		Timestamp:     time.Now(),
		CorrelationID: "c-123",
		Layer:         LayerTransport,
		HTTP:          &HTTPEvent{Method: "POST", Size: 3, Body: []byte("abc")},
	})
	logger.Close()

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile failed: %v", err)
	}
	decoded, err := DecodeEvent(data)
	if err != nil {
		t.Fatalf("DecodeEvent failed: %v", err)
	}
	if decoded.CorrelationID != "c-123" {
		t.Errorf("CorrelationID = %q, want c-123", decoded.CorrelationID)
	}
	if decoded.HTTP == nil || decoded.HTTP.Method != "POST" {
		t.Errorf("HTTP = %+v, want POST", decoded.HTTP)
	}
}

func TestFileLoggerAppends(t *testing.T) {
	path := filepath.Join(t.TempDir(), "client"+FileExtension)

	for _, id := range []string{"c-1", "c-2"} {
		logger, err := NewFileLogger(path)
		if err != nil {
			t.Fatalf("NewFileLogger failed: %v", err)
		}
		logger.Log(Event{Timestamp: time.Now(), CorrelationID: id})
		logger.Close()
	}

	reader, err := NewReader(path)
	if err != nil {
		t.Fatalf("NewReader failed: %v", err)
	}
	defer reader.Close()

	events := readAll(t, reader)
	if len(events) != 2 {
		t.Fatalf("read %d events, want 2", len(events))
	}
	if events[0].CorrelationID != "c-1" || events[1].CorrelationID != "c-2" {
		t.Errorf("order = %q, %q", events[0].CorrelationID, events[1].CorrelationID)
	}
}

func TestFileLoggerCloseIdempotent(t *testing.T) {
	logger, err := NewFileLogger(filepath.Join(t.TempDir(), "x"+FileExtension))
	if err != nil {
		t.Fatalf("NewFileLogger failed: %v", err)
	}
	if err := logger.Close(); err != nil {
		t.Errorf("first Close() error = %v", err)
	}
	if err := logger.Close(); err != nil {
		t.Errorf("second Close() error = %v", err)
	}
	// Dropped silently.
	logger.Log(Event{CorrelationID: "late"})
}

func TestFileLoggerConcurrent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "client"+FileExtension)
	logger, err := NewFileLogger(path)
	if err != nil {
		t.Fatalf("NewFileLogger failed: %v", err)
	}

	var wg sync.WaitGroup
	for range 10 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range 20 {
				logger.Log(Event{Timestamp: time.Now(), Layer: LayerDispatch})
			}
		}()
	}
	wg.Wait()
	logger.Close()

	reader, err := NewReader(path)
	if err != nil {
		t.Fatalf("NewReader failed: %v", err)
	}
	defer reader.Close()

	if n := len(readAll(t, reader)); n != 200 {
		t.Errorf("read %d events, want 200", n)
	}
}

func TestRecorder(t *testing.T) {
	var r Recorder
	r.Log(Event{SubscriptionID: "a", Category: CategoryDrop})
	r.Log(Event{SubscriptionID: "b", Category: CategoryMessage})

	if n := len(r.Events()); n != 2 {
		t.Errorf("Events() len = %d, want 2", n)
	}
	drop := CategoryDrop
	got := r.Filter(Filter{Category: &drop})
	if len(got) != 1 || got[0].SubscriptionID != "a" {
		t.Errorf("Filter(drop) = %+v", got)
	}
}
