package discovery

import (
	"context"
	"fmt"
	"time"

	"github.com/ngsi-go/ngsi/pkg/version"
)

// Browser provides broker browsing.
type Browser interface {
	// Browse streams brokers as they are discovered. The channel is closed
	// when ctx is done.
	Browse(ctx context.Context) (<-chan *BrokerService, error)

	// Stop stops all active browsing operations.
	Stop()
}

// BrowserConfig configures browser behavior.
type BrowserConfig struct {
	// BrowseTimeout bounds FindBroker when the caller's context has no
	// deadline. Default: 5 seconds.
	BrowseTimeout time.Duration

	// Interface restricts browsing to one network interface.
	// Empty string means all interfaces.
	Interface string
}

// DefaultBrowserConfig returns the default browser configuration.
func DefaultBrowserConfig() BrowserConfig {
	return BrowserConfig{
		BrowseTimeout: BrowseTimeout,
	}
}

// ServiceEntry is a raw DNS-SD answer, independent of the mDNS library.
type ServiceEntry struct {
	Instance string
	Service  string
	Domain   string
	Host     string
	Port     uint16
	Text     []string
	Addrs    []string
}

// ToBrokerService converts a ServiceEntry to a BrokerService.
func (e *ServiceEntry) ToBrokerService() (*BrokerService, error) {
	info, err := DecodeBrokerTXT(StringsToTXTRecords(e.Text))
	if err != nil {
		return nil, err
	}
	return &BrokerService{
		InstanceName: e.Instance,
		Host:         e.Host,
		Port:         e.Port,
		Addresses:    append([]string(nil), e.Addrs...),
		BrokerInfo:   *info,
	}, nil
}

// collect aggregates entries by instance name until entries is closed or
// ctx is done. A service is emitted once, on its first valid entry; later
// entries only add addresses. Entries on removed drop addresses, and a
// service left without any is forgotten so a reannouncement is emitted
// again.
func collect(ctx context.Context, entries, removed <-chan ServiceEntry, out chan<- *BrokerService) {
	defer close(out)

	services := make(map[string]*BrokerService)
	for {
		select {
		case entry, ok := <-entries:
			if !ok {
				return
			}
			svc, err := entry.ToBrokerService()
			if err != nil {
				continue
			}
			if existing, found := services[svc.InstanceName]; found {
				existing.Addresses = mergeAddresses(existing.Addresses, svc.Addresses)
				continue
			}
			services[svc.InstanceName] = svc
			select {
			case out <- svc:
			case <-ctx.Done():
				return
			}

		case entry, ok := <-removed:
			if !ok {
				removed = nil
				continue
			}
			if existing, found := services[entry.Instance]; found {
				existing.Addresses = removeAddresses(existing.Addresses, entry.Addrs)
				if len(existing.Addresses) == 0 {
					delete(services, entry.Instance)
				}
			}

		case <-ctx.Done():
			return
		}
	}
}

// FindBroker returns the first broker speaking an API version compatible
// with want. An empty want accepts any version. Without a deadline on ctx
// the search gives up after timeout.
func FindBroker(ctx context.Context, b Browser, want string, timeout time.Duration) (*BrokerService, error) {
	var wantVersion version.APIVersion
	if want != "" {
		v, err := version.Parse(want)
		if err != nil {
			return nil, err
		}
		wantVersion = v
	}
	if _, ok := ctx.Deadline(); !ok && timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	results, err := b.Browse(ctx)
	if err != nil {
		return nil, err
	}
	var incompatible int
	for svc := range results {
		if want == "" {
			return svc, nil
		}
		got, err := version.Parse(svc.Version)
		if err == nil && wantVersion.Compatible(got) {
			return svc, nil
		}
		incompatible++
	}
	if incompatible > 0 {
		return nil, fmt.Errorf("%w: %d broker(s) found, none speaks %s", ErrIncompatibleVersion, incompatible, want)
	}
	return nil, ErrNotFound
}

// mergeAddresses adds new addresses to existing list, avoiding duplicates.
func mergeAddresses(existing, added []string) []string {
	seen := make(map[string]bool, len(existing))
	for _, addr := range existing {
		seen[addr] = true
	}
	for _, addr := range added {
		if !seen[addr] {
			existing = append(existing, addr)
			seen[addr] = true
		}
	}
	return existing
}

// removeAddresses filters gone out of addresses.
func removeAddresses(addresses, gone []string) []string {
	toRemove := make(map[string]bool, len(gone))
	for _, addr := range gone {
		toRemove[addr] = true
	}
	result := make([]string, 0, len(addresses))
	for _, addr := range addresses {
		if !toRemove[addr] {
			result = append(result, addr)
		}
	}
	return result
}
