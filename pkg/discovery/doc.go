// Package discovery locates brokers over mDNS/DNS-SD.
//
// Brokers advertise the _ngsi._tcp service. The instance name is free
// text; the TXT record carries the API details a client needs:
//
//   - v: API version, e.g. "2.0" (required)
//   - path: base path the API is mounted under (optional, default "/")
//   - tls: "1" when the broker only accepts HTTPS (optional)
//   - svc: default tenant sent as Fiware-Service (optional)
//
// A broker reachable over several interfaces is reported once; its
// addresses are merged as further announcements arrive.
package discovery
