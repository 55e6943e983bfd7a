// Package transport performs the single-shot upstream retrieval used by the
// puncher. It owns the shared http.Client tuning, resolves relative URLs
// against the configured origin, applies the fetch policy (cross-origin mode
// and credential inclusion), and buffers the upstream body into an immutable
// Response that can be duplicated freely. The package also derives the
// request identity used as cache key so that lookups and writes agree on URL
// normalization.
package transport
