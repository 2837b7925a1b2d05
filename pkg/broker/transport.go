// Package broker is the minimal HTTP glue between the client core and an
// NGSI broker: creating and deleting subscriptions and creating and
// fetching single entities.
package broker

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/ngsi-go/ngsi/pkg/log"
	"github.com/ngsi-go/ngsi/pkg/version"
)

//go:generate mockery --name Transport --output mocks --outpkg mocks

// Header names understood by NGSI brokers.
const (
	HeaderService     = "Fiware-Service"
	HeaderServicePath = "Fiware-ServicePath"
	HeaderCorrelator  = "Fiware-Correlator"
)

// DefaultTimeout is the HTTP client timeout used when none is configured.
const DefaultTimeout = 30 * time.Second

// ErrNoBaseURL is returned when a transport is created without a broker URL.
var ErrNoBaseURL = errors.New("broker: base URL is required")

// Response is a broker reply.
type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
}

// Transport executes one request against the broker. A non-2xx reply is
// returned as a *TransportError.
type Transport interface {
	Execute(ctx context.Context, method, path string, body []byte) (*Response, error)
}

// TransportError describes a failed broker call. StatusCode is 0 when the
// request never produced a response.
type TransportError struct {
	Method     string
	Path       string
	StatusCode int
	Body       []byte
	Err        error
}

func (e *TransportError) Error() string {
	if e.StatusCode == 0 {
		return fmt.Sprintf("broker: %s %s: %v", e.Method, e.Path, e.Err)
	}
	msg := strings.TrimSpace(string(e.Body))
	if msg == "" {
		msg = http.StatusText(e.StatusCode)
	}
	return fmt.Sprintf("broker: %s %s: %d %s", e.Method, e.Path, e.StatusCode, msg)
}

func (e *TransportError) Unwrap() error { return e.Err }

// IsNotFound reports whether err is a 404 from the broker.
func IsNotFound(err error) bool {
	var te *TransportError
	return errors.As(err, &te) && te.StatusCode == http.StatusNotFound
}

// HTTPConfig configures an HTTPTransport.
type HTTPConfig struct {
	// BaseURL is the broker root, e.g. "http://orion:1026".
	BaseURL string

	// Service and ServicePath select the broker tenant.
	Service     string
	ServicePath string

	// Timeout bounds each request. Ignored when Client is set.
	Timeout time.Duration

	// Client overrides the HTTP client.
	Client *http.Client

	// ProtocolLogger receives protocol trace events. Optional.
	ProtocolLogger log.Logger
}

// HTTPTransport is a Transport over net/http.
type HTTPTransport struct {
	base   *url.URL
	config HTTPConfig
	client *http.Client
	trace  log.Logger
}

// NewHTTPTransport creates a transport for the broker at config.BaseURL.
func NewHTTPTransport(config HTTPConfig) (*HTTPTransport, error) {
	if config.BaseURL == "" {
		return nil, ErrNoBaseURL
	}
	base, err := url.Parse(strings.TrimRight(config.BaseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("broker: base URL: %w", err)
	}
	if base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("broker: base URL %q must be absolute", config.BaseURL)
	}

	client := config.Client
	if client == nil {
		timeout := config.Timeout
		if timeout <= 0 {
			timeout = DefaultTimeout
		}
		client = &http.Client{Timeout: timeout}
	}
	return &HTTPTransport{
		base:   base,
		config: config,
		client: client,
		trace:  log.OrNoop(config.ProtocolLogger),
	}, nil
}

// BaseURL returns the broker root URL.
func (t *HTTPTransport) BaseURL() string {
	return t.base.String()
}

// Execute sends one request. path may carry a query string.
func (t *HTTPTransport) Execute(ctx context.Context, method, path string, body []byte) (*Response, error) {
	correlationID := uuid.NewString()

	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, t.base.String()+path, reader)
	if err != nil {
		return nil, &TransportError{Method: method, Path: path, Err: err}
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", version.UserAgent())
	req.Header.Set(HeaderCorrelator, correlationID)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if t.config.Service != "" {
		req.Header.Set(HeaderService, t.config.Service)
	}
	if t.config.ServicePath != "" {
		req.Header.Set(HeaderServicePath, t.config.ServicePath)
	}

	captured, truncated := log.CaptureBody(body)
	t.trace.Log(log.Event{
		Timestamp:     time.Now(),
		CorrelationID: correlationID,
		Direction:     log.DirectionOut,
		Layer:         log.LayerTransport,
		Category:      log.CategoryMessage,
		RemoteAddr:    t.base.Host,
		HTTP:          &log.HTTPEvent{Method: method, Path: path, Size: len(body), Body: captured, Truncated: truncated},
	})

	start := time.Now()
	resp, err := t.client.Do(req)
	if err != nil {
		t.traceError(correlationID, err)
		return nil, &TransportError{Method: method, Path: path, Err: err}
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		t.traceError(correlationID, err)
		return nil, &TransportError{Method: method, Path: path, StatusCode: resp.StatusCode, Err: err}
	}

	captured, truncated = log.CaptureBody(data)
	t.trace.Log(log.Event{
		Timestamp:     time.Now(),
		CorrelationID: correlationID,
		Direction:     log.DirectionIn,
		Layer:         log.LayerTransport,
		Category:      log.CategoryMessage,
		RemoteAddr:    t.base.Host,
		HTTP: &log.HTTPEvent{
			Path:       path,
			StatusCode: resp.StatusCode,
			Size:       len(data),
			Body:       captured,
			Truncated:  truncated,
			Duration:   time.Since(start),
		},
	})

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &TransportError{Method: method, Path: path, StatusCode: resp.StatusCode, Body: data}
	}
	return &Response{StatusCode: resp.StatusCode, Header: resp.Header, Body: data}, nil
}

func (t *HTTPTransport) traceError(correlationID string, err error) {
	t.trace.Log(log.Event{
		Timestamp:     time.Now(),
		CorrelationID: correlationID,
		Layer:         log.LayerTransport,
		Category:      log.CategoryError,
		RemoteAddr:    t.base.Host,
		Error:         &log.ErrorEventData{Layer: log.LayerTransport, Message: err.Error(), Context: "execute"},
	})
}

var _ Transport = (*HTTPTransport)(nil)
