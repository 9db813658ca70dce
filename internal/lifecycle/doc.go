// Package lifecycle models the client-observable fetch state machine:
// Idle -> Validating -> Fetching -> Parsing -> Complete, with Validating,
// Fetching and Parsing able to fail into Error. It owns the elapsed-time
// display ticker, the escalating status messages and the mapping of error
// codes to human message/suggestion pairs. Nothing here affects the fetch
// itself, which the proxy bounds independently.
package lifecycle
