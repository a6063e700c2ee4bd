// Package events implements the real-time change pipeline: a
// debouncing filesystem watcher, a normalizer from raw notifications
// to typed domain events, a bounded pub/sub bus with drop-oldest
// backpressure, and a broadcast hub that feeds client streams.
//
// # Data Flow
//
//	filesystem -> Watcher (debounce) -> Normalizer -> Bus.Publish
//	                                                    |-> Hub streams
//	                                                    '-> search subscriber
//
// The watcher's debounce timers fire on their own goroutines; the
// handoff into the pipeline is a bounded-wait channel send that fails
// closed (log + drop) rather than blocking the timer or buffering
// without bound. Everything downstream communicates over channels and
// holds no lock across delivery.
package events
