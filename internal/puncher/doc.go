// Package puncher is the cache-aside coordinator. A Puncher looks a URL up in
// the named CacheStore, announces hits and misses on its event Hub, performs a
// single upstream retrieval on a miss, and populates the store in the
// background after a successful response. Every failure is absorbed at this
// boundary: Fetch returns nil and the failure only reaches the verbose
// diagnostic log (or the opt-in fetch_error event).
package puncher
