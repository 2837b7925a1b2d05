// Package listener receives broker push notifications over HTTP.
//
// The listener accepts POST requests on a single path, reads the body and
// hands it to a notify.Sink without waiting for it to be processed. The
// broker always receives 204 No Content for a readable body; dispatch
// failures are never reported back to it.
package listener

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/ngsi-go/ngsi/pkg/log"
	"github.com/ngsi-go/ngsi/pkg/notify"
)

// Defaults.
const (
	DefaultAddress           = ":8666"
	DefaultPath              = "/notify"
	DefaultMaxBodyBytes      = 1 << 20
	DefaultReadHeaderTimeout = 10 * time.Second
)

// CorrelationHeader carries the id assigned to each inbound request.
const CorrelationHeader = "X-Correlation-Id"

// ErrNilSink is returned when a listener is created without a sink.
var ErrNilSink = errors.New("listener: sink is nil")

// Config configures a Listener.
type Config struct {
	// Address to listen on (e.g. ":8666" or "127.0.0.1:0").
	Address string

	// Path notifications are posted to.
	Path string

	// MaxBodyBytes bounds the accepted body size.
	MaxBodyBytes int64

	// ReadHeaderTimeout bounds the time to read request headers.
	ReadHeaderTimeout time.Duration

	// Logger receives operational logs. Defaults to slog.Default().
	Logger *slog.Logger

	// ProtocolLogger receives protocol trace events. Optional.
	ProtocolLogger log.Logger
}

// DefaultConfig returns the default listener configuration.
func DefaultConfig() Config {
	return Config{
		Address:           DefaultAddress,
		Path:              DefaultPath,
		MaxBodyBytes:      DefaultMaxBodyBytes,
		ReadHeaderTimeout: DefaultReadHeaderTimeout,
	}
}

// Listener is an HTTP push receiver.
type Listener struct {
	config Config
	sink   notify.Sink
	logger *slog.Logger
	trace  log.Logger
	mux    *http.ServeMux

	mu       sync.Mutex
	server   *http.Server
	listener net.Listener
	wg       sync.WaitGroup
	running  atomic.Bool

	received atomic.Uint64
}

// New creates a listener that forwards bodies to sink.
func New(sink notify.Sink, config Config) (*Listener, error) {
	if sink == nil {
		return nil, ErrNilSink
	}
	defaults := DefaultConfig()
	if config.Address == "" {
		config.Address = defaults.Address
	}
	if config.Path == "" {
		config.Path = defaults.Path
	}
	if config.MaxBodyBytes <= 0 {
		config.MaxBodyBytes = defaults.MaxBodyBytes
	}
	if config.ReadHeaderTimeout <= 0 {
		config.ReadHeaderTimeout = defaults.ReadHeaderTimeout
	}
	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}

	l := &Listener{
		config: config,
		sink:   sink,
		logger: logger.With("component", "listener"),
		trace:  log.OrNoop(config.ProtocolLogger),
		mux:    http.NewServeMux(),
	}
	l.mux.HandleFunc("POST "+config.Path, l.handleNotify)
	return l, nil
}

// Handler returns the HTTP handler, for mounting into an existing server.
func (l *Listener) Handler() http.Handler {
	return l.mux
}

// Start begins accepting requests. Calling Start on a running listener is
// a no-op.
func (l *Listener) Start(ctx context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.running.Load() {
		return nil
	}

	ln, err := net.Listen("tcp", l.config.Address)
	if err != nil {
		return fmt.Errorf("listener: listen %s: %w", l.config.Address, err)
	}

	server := &http.Server{
		Handler:           l.mux,
		ReadHeaderTimeout: l.config.ReadHeaderTimeout,
		BaseContext:       func(net.Listener) context.Context { return context.WithoutCancel(ctx) },
	}
	l.server = server
	l.listener = ln
	l.running.Store(true)

	l.wg.Add(1)
	go func() {
		defer l.wg.Done()
		if err := server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			l.logger.Error("serve failed", "error", err)
			l.traceState("RUNNING", "FAILED", err.Error())
		}
	}()

	l.logger.Info("listening for notifications", "addr", ln.Addr().String(), "path", l.config.Path)
	l.traceState("STOPPED", "RUNNING", "")
	return nil
}

// Stop shuts the server down, waiting for in-flight requests until ctx is
// done. Calling Stop on a stopped listener is a no-op.
func (l *Listener) Stop(ctx context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if !l.running.Swap(false) {
		return nil
	}

	err := l.server.Shutdown(ctx)
	l.wg.Wait()
	l.server = nil
	l.listener = nil

	l.traceState("RUNNING", "STOPPED", "")
	if err != nil {
		return fmt.Errorf("listener: shutdown: %w", err)
	}
	return nil
}

// Running reports whether the listener is accepting requests.
func (l *Listener) Running() bool {
	return l.running.Load()
}

// Addr returns the bound address, or nil when stopped.
func (l *Listener) Addr() net.Addr {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.listener == nil {
		return nil
	}
	return l.listener.Addr()
}

// Path returns the notification path.
func (l *Listener) Path() string {
	return l.config.Path
}

// Received returns the number of accepted notification bodies.
func (l *Listener) Received() uint64 {
	return l.received.Load()
}

func (l *Listener) handleNotify(w http.ResponseWriter, r *http.Request) {
	correlationID := uuid.NewString()
	w.Header().Set(CorrelationHeader, correlationID)

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, l.config.MaxBodyBytes))
	if err != nil {
		status := http.StatusBadRequest
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			status = http.StatusRequestEntityTooLarge
		}
		l.logger.Warn("rejecting notification", "remote", r.RemoteAddr, "status", status, "error", err)
		l.trace.Log(log.Event{
			Timestamp:     time.Now(),
			CorrelationID: correlationID,
			Direction:     log.DirectionIn,
			Layer:         log.LayerTransport,
			Category:      log.CategoryError,
			RemoteAddr:    r.RemoteAddr,
			Error:         &log.ErrorEventData{Layer: log.LayerTransport, Message: err.Error(), Context: "read body"},
		})
		http.Error(w, http.StatusText(status), status)
		return
	}

	captured, truncated := log.CaptureBody(body)
	l.trace.Log(log.Event{
		Timestamp:     time.Now(),
		CorrelationID: correlationID,
		Direction:     log.DirectionIn,
		Layer:         log.LayerTransport,
		Category:      log.CategoryMessage,
		RemoteAddr:    r.RemoteAddr,
		HTTP: &log.HTTPEvent{
			Method:    r.Method,
			Path:      r.URL.Path,
			Size:      len(body),
			Body:      captured,
			Truncated: truncated,
		},
	})
	l.received.Add(1)

	if cs, ok := l.sink.(notify.CorrelatedSink); ok {
		cs.OnPayload(correlationID, body)
	} else {
		l.sink.OnRawPayload(body)
	}
	w.WriteHeader(http.StatusNoContent)
}

func (l *Listener) traceState(oldState, newState, reason string) {
	l.trace.Log(log.Event{
		Timestamp:   time.Now(),
		Layer:       log.LayerTransport,
		Category:    log.CategoryState,
		StateChange: &log.StateChangeEvent{Entity: log.StateEntityListener, OldState: oldState, NewState: newState, Reason: reason},
	})
}
