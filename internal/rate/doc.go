// Package rate provides Redis-backed fixed-window counters that throttle
// failed OAuth callbacks per client.
//
// # Window semantics
//
// INCR + EXPIRE on first hit. Keys use the prefix acb: followed by a hashed
// client address. Once MaxCallbackFailures is reached, further callbacks are
// refused until the window expires.
package rate
