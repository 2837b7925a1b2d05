package discovery

import (
	"context"
	"net"
	"strings"
	"sync"

	"github.com/enbility/zeroconf/v3"
)

// MDNSBrowser implements Browser using zeroconf.
type MDNSBrowser struct {
	config BrowserConfig

	mu      sync.Mutex
	stopped bool
	cancels []context.CancelFunc
}

// NewMDNSBrowser creates a new mDNS browser.
func NewMDNSBrowser(config BrowserConfig) (*MDNSBrowser, error) {
	if config.BrowseTimeout <= 0 {
		config.BrowseTimeout = BrowseTimeout
	}
	return &MDNSBrowser{config: config}, nil
}

// Browse searches for brokers. Services are aggregated by instance name;
// addresses from multiple interfaces are combined into a single entry.
func (b *MDNSBrowser) Browse(ctx context.Context) (<-chan *BrokerService, error) {
	b.mu.Lock()
	if b.stopped {
		b.mu.Unlock()
		out := make(chan *BrokerService)
		close(out)
		return out, nil
	}
	ctx, cancel := context.WithCancel(ctx)
	b.cancels = append(b.cancels, cancel)
	b.mu.Unlock()

	raw := make(chan *zeroconf.ServiceEntry)
	gone := make(chan *zeroconf.ServiceEntry)
	entries := make(chan ServiceEntry)
	removed := make(chan ServiceEntry)
	out := make(chan *BrokerService)

	go forward(ctx, raw, entries)
	go forward(ctx, gone, removed)
	go collect(ctx, entries, removed, out)

	go func() {
		_ = zeroconf.Browse(ctx, ServiceType, Domain, raw, gone, b.browserOptions()...)
	}()

	return out, nil
}

// FindBroker returns the first broker compatible with want.
func (b *MDNSBrowser) FindBroker(ctx context.Context, want string) (*BrokerService, error) {
	return FindBroker(ctx, b, want, b.config.BrowseTimeout)
}

// Stop stops all active browsing operations.
func (b *MDNSBrowser) Stop() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.stopped = true
	for _, cancel := range b.cancels {
		cancel()
	}
	b.cancels = nil
}

// browserOptions returns zeroconf client options based on config.
func (b *MDNSBrowser) browserOptions() []zeroconf.ClientOption {
	var opts []zeroconf.ClientOption
	if b.config.Interface != "" {
		iface, err := net.InterfaceByName(b.config.Interface)
		if err == nil {
			opts = append(opts, zeroconf.SelectIfaces([]net.Interface{*iface}))
		}
	}
	return opts
}

// forward converts zeroconf entries until in is closed or ctx is done, then
// closes out.
func forward(ctx context.Context, in <-chan *zeroconf.ServiceEntry, out chan<- ServiceEntry) {
	defer close(out)
	for {
		select {
		case e, ok := <-in:
			if !ok {
				return
			}
			if e == nil {
				continue
			}
			select {
			case out <- fromZeroconf(e):
			case <-ctx.Done():
				return
			}
		case <-ctx.Done():
			return
		}
	}
}

func fromZeroconf(e *zeroconf.ServiceEntry) ServiceEntry {
	addrs := make([]string, 0, len(e.AddrIPv4)+len(e.AddrIPv6))
	for _, ip := range e.AddrIPv4 {
		addrs = append(addrs, ip.String())
	}
	for _, ip := range e.AddrIPv6 {
		addrs = append(addrs, ip.String())
	}
	return ServiceEntry{
		Instance: e.Instance,
		Service:  ServiceType,
		Domain:   Domain,
		Host:     strings.TrimSuffix(e.HostName, "."),
		Port:     uint16(e.Port),
		Text:     e.Text,
		Addrs:    addrs,
	}
}

var _ Browser = (*MDNSBrowser)(nil)
