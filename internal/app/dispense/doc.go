// Package dispense drives the pump channels.
//
// Cancellation is cooperative. Every new dispense first calls StopAll, which
// bumps the epoch and closes every channel. A running actuation captured the
// epoch when it was dispatched and polls it; once the epoch has moved it
// closes its channel and reports Superseded. An actuation started before a
// StopAll observes it within one poll interval.
//
// Each channel is also guarded by its own lock for the whole open/close cycle,
// so two actuations never drive the same pump at once: a new actuation on a
// channel waits for the superseded one to close first.
package dispense
