package discovery

import (
	"errors"
	"net"
	"net/url"
	"strconv"
	"time"
)

// Service constants.
const (
	// ServiceType is the DNS-SD service type brokers advertise.
	ServiceType = "_ngsi._tcp"

	// Domain is the mDNS domain.
	Domain = "local"

	// DefaultPort is the broker port assumed when an entry carries none.
	DefaultPort = 1026

	// BrowseTimeout is the default timeout for FindBroker.
	BrowseTimeout = 5 * time.Second
)

// TXT record keys.
const (
	TXTKeyVersion = "v"
	TXTKeyPath    = "path"
	TXTKeyTLS     = "tls"
	TXTKeyService = "svc"
)

// Errors.
var (
	ErrNotFound            = errors.New("discovery: no broker found")
	ErrMissingRequired     = errors.New("discovery: missing required TXT record")
	ErrInvalidTXTRecord    = errors.New("discovery: invalid TXT record")
	ErrIncompatibleVersion = errors.New("discovery: incompatible API version")
)

// BrokerInfo is the information carried in a broker's TXT record.
type BrokerInfo struct {
	Version string
	Path    string
	TLS     bool
	Service string
}

// BrokerService is a discovered broker.
type BrokerService struct {
	InstanceName string
	Host         string
	Port         uint16
	Addresses    []string
	BrokerInfo
}

// URL returns the broker base URL. The first address is preferred over the
// host name so the result works without mDNS name resolution.
func (s *BrokerService) URL() string {
	host := s.Host
	if len(s.Addresses) > 0 {
		host = s.Addresses[0]
	}
	port := s.Port
	if port == 0 {
		port = DefaultPort
	}
	scheme := "http"
	if s.TLS {
		scheme = "https"
	}
	u := url.URL{
		Scheme: scheme,
		Host:   net.JoinHostPort(host, strconv.Itoa(int(port))),
	}
	if s.Path != "" && s.Path != "/" {
		u.Path = s.Path
	}
	return u.String()
}
