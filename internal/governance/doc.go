// Package governance holds the safety controls applied to every outbound lookup:
// per-call timeout budgets, retry with backoff, per-host rate limiting and a
// per-host circuit breaker.
//
// The controls are shared by the HTTP client and the aggregator so that a
// single slow or blocking source cannot stall an analysis or get hammered
// across a batch run.
package governance
