// Package log provides protocol tracing for NGSI clients.
//
// It is separate from operational logging (slog): operational logs tell an
// operator that something went wrong, the protocol trace is a complete
// machine-readable record of every HTTP exchange, notification and dispatch
// outcome for later analysis.
//
// # Basic Usage
//
//	// Development: trace to the console via slog
//	trace := log.NewSlogAdapter(slog.Default())
//
//	// Production: append to a binary trace file
//	trace, _ := log.NewFileLogger("/var/log/ngsi/client.ntrace")
//
//	// Both
//	trace := log.NewMultiLogger(console, file)
//
// # Event Types
//
// Events are captured at three layers:
//   - Transport: HTTP requests and responses (HTTPEvent)
//   - Wire: parsed notification bodies (NotificationEvent)
//   - Dispatch: delivery of deltas to subscribers (DeliveryEvent)
//
// Lifecycle changes of listeners, dispatchers and subscriptions are recorded
// as StateChangeEvent; failures at any layer as ErrorEventData.
//
// # File Format
//
// Trace files are a stream of CBOR-encoded events with the .ntrace
// extension. The ngsi-trace tool views and summarizes them.
package log
