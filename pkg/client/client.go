// Package client wires the typed entity core to a broker.
//
// A Client owns one mapper, one notification dispatcher, one HTTP push
// listener and one broker connection. Subscriptions created through it are
// registered locally as soon as the broker accepts them:
//
//	c, err := client.New(cfg)
//	if err != nil { ... }
//	if err := c.Start(ctx); err != nil { ... }
//	defer c.Stop(context.Background(), true)
//
//	id, err := client.Subscribe(ctx, c, func(id string, r *Room) {
//	    fmt.Println(id, r.Temperature)
//	})
package client

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/url"
	"sync"

	"github.com/sourcegraph/conc/pool"

	"github.com/ngsi-go/ngsi/pkg/broker"
	"github.com/ngsi-go/ngsi/pkg/config"
	"github.com/ngsi-go/ngsi/pkg/contract"
	"github.com/ngsi-go/ngsi/pkg/listener"
	"github.com/ngsi-go/ngsi/pkg/log"
	"github.com/ngsi-go/ngsi/pkg/mapper"
	"github.com/ngsi-go/ngsi/pkg/notify"
	"github.com/ngsi-go/ngsi/pkg/resolver"
	"github.com/ngsi-go/ngsi/pkg/subscription"
	"github.com/ngsi-go/ngsi/pkg/typemap"
)

// Client errors.
var (
	ErrNoBroker    = errors.New("client: no broker url configured")
	ErrNoPublicURL = errors.New("client: no notification url (set listener.publicURL)")
)

// Option configures a Client.
type Option func(*options)

type options struct {
	logger    *slog.Logger
	trace     log.Logger
	transport broker.Transport
	types     *typemap.TypeMap
	contracts *contract.Store
	resolvers *resolver.Registry
}

// WithLogger sets the operational logger. Defaults to slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(o *options) { o.logger = l }
}

// WithProtocolLogger adds a protocol trace sink next to the configured one.
func WithProtocolLogger(l log.Logger) Option {
	return func(o *options) { o.trace = l }
}

// WithTransport replaces the HTTP transport built from the broker config.
func WithTransport(t broker.Transport) Option {
	return func(o *options) { o.transport = t }
}

// WithTypeMap uses a clone of m instead of the configured preset.
func WithTypeMap(m *typemap.TypeMap) Option {
	return func(o *options) { o.types = m }
}

// WithContracts shares a contract store, e.g. one holding generated
// descriptors.
func WithContracts(s *contract.Store) Option {
	return func(o *options) { o.contracts = s }
}

// WithResolvers sets the type resolver registry.
func WithResolvers(r *resolver.Registry) Option {
	return func(o *options) { o.resolvers = r }
}

// Client is a typed broker client.
type Client struct {
	config     config.Config
	logger     *slog.Logger
	mapper     *mapper.Mapper
	dispatcher *notify.Dispatcher
	listener   *listener.Listener
	broker     *broker.Client

	traceFile *log.FileLogger

	mu      sync.Mutex
	started bool
}

// New builds a client from cfg.
func New(cfg config.Config, opts ...Option) (*Client, error) {
	o := options{}
	for _, opt := range opts {
		opt(&o)
	}
	if o.logger == nil {
		o.logger = slog.Default()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	types := o.types
	if types != nil {
		types = types.Clone()
	} else {
		var err error
		if types, err = cfg.TypeMap.Build(); err != nil {
			return nil, err
		}
	}
	codec, err := cfg.Encoding.Codec()
	if err != nil {
		return nil, err
	}

	c := &Client{config: cfg, logger: o.logger.With("component", "client")}

	var traces []log.Logger
	if cfg.ProtocolLog.Path != "" {
		fl, err := log.NewFileLogger(cfg.ProtocolLog.Path)
		if err != nil {
			return nil, fmt.Errorf("client: protocol log: %w", err)
		}
		c.traceFile = fl
		traces = append(traces, fl)
	}
	if cfg.ProtocolLog.Console {
		traces = append(traces, log.NewSlogAdapter(o.logger))
	}
	traces = append(traces, o.trace)
	trace := log.NewMultiLogger(traces...)

	transport := o.transport
	if transport == nil {
		if cfg.Broker.URL == "" {
			c.closeTrace()
			return nil, ErrNoBroker
		}
		transport, err = broker.NewHTTPTransport(broker.HTTPConfig{
			BaseURL:        cfg.Broker.URL,
			Service:        cfg.Broker.Service,
			ServicePath:    cfg.Broker.ServicePath,
			Timeout:        cfg.Broker.Timeout,
			ProtocolLogger: trace,
		})
		if err != nil {
			c.closeTrace()
			return nil, err
		}
	}
	c.broker = broker.NewClient(transport)

	mopts := []mapper.Option{mapper.WithEncoder(codec)}
	if o.contracts != nil {
		mopts = append(mopts, mapper.WithContracts(o.contracts))
	}
	if o.resolvers != nil {
		mopts = append(mopts, mapper.WithResolvers(o.resolvers))
	}
	c.mapper = mapper.New(types, mopts...)

	c.dispatcher = notify.NewDispatcher(c.mapper, nil, notify.Config{
		Workers:        cfg.Dispatcher.Workers,
		QueueSize:      cfg.Dispatcher.QueueSize,
		Logger:         o.logger,
		ProtocolLogger: trace,
	})

	c.listener, err = listener.New(c.dispatcher, listener.Config{
		Address:        cfg.Listener.Address,
		Path:           cfg.Listener.Path,
		MaxBodyBytes:   cfg.Listener.MaxBodyBytes,
		Logger:         o.logger,
		ProtocolLogger: trace,
	})
	if err != nil {
		c.closeTrace()
		return nil, err
	}
	return c, nil
}

// Mapper returns the entity mapper.
func (c *Client) Mapper() *mapper.Mapper { return c.mapper }

// Dispatcher returns the notification dispatcher.
func (c *Client) Dispatcher() *notify.Dispatcher { return c.dispatcher }

// Listener returns the push listener.
func (c *Client) Listener() *listener.Listener { return c.listener }

// Broker returns the broker client.
func (c *Client) Broker() *broker.Client { return c.broker }

// Config returns the configuration the client was built from.
func (c *Client) Config() config.Config { return c.config }

// Subscriptions returns the ids of the locally registered subscriptions.
func (c *Client) Subscriptions() []string {
	return c.dispatcher.Registry().IDs()
}

// Subscription returns a registered subscription.
func (c *Client) Subscription(id string) (*subscription.Subscription, bool) {
	return c.dispatcher.Registry().Get(id)
}

// Start starts the dispatcher workers and the push listener. Calling Start
// on a started client is a no-op.
func (c *Client) Start(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.started {
		return nil
	}

	c.dispatcher.Start()
	if err := c.listener.Start(ctx); err != nil {
		c.dispatcher.Stop()
		return err
	}
	c.started = true
	c.logger.Info("client started", "listen", c.listener.Addr(), "path", c.listener.Path())
	return nil
}

// Stop stops the listener and, when removeSubscriptions is set, deletes
// every registered subscription from the broker concurrently. It waits for
// all deletions and returns their joined errors. The dispatcher is stopped
// last so payloads accepted before the listener closed are still delivered.
func (c *Client) Stop(ctx context.Context, removeSubscriptions bool) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	var errs []error
	if c.started {
		if err := c.listener.Stop(ctx); err != nil {
			errs = append(errs, err)
		}
	}

	if removeSubscriptions {
		if err := c.removeAll(ctx); err != nil {
			errs = append(errs, err)
		}
	}

	if c.started {
		c.dispatcher.Stop()
		c.started = false
		c.logger.Info("client stopped")
	}
	return errors.Join(errs...)
}

func (c *Client) removeAll(ctx context.Context) error {
	p := pool.New().WithContext(ctx)
	for _, id := range c.dispatcher.Registry().IDs() {
		p.Go(func(ctx context.Context) error {
			return c.unsubscribe(ctx, id)
		})
	}
	return p.Wait()
}

// Close releases the protocol trace file. The client must be stopped.
func (c *Client) Close() error {
	return c.closeTrace()
}

func (c *Client) closeTrace() error {
	if c.traceFile == nil {
		return nil
	}
	return c.traceFile.Close()
}

// notificationURL returns the URL given to the broker for pushes.
func (c *Client) notificationURL() (string, error) {
	if c.config.Listener.PublicURL != "" {
		return c.config.Listener.PublicURL, nil
	}
	addr, ok := c.listener.Addr().(*net.TCPAddr)
	if !ok || addr.IP == nil || addr.IP.IsUnspecified() {
		return "", ErrNoPublicURL
	}
	u := url.URL{Scheme: "http", Host: addr.String(), Path: c.listener.Path()}
	return u.String(), nil
}
