// Package cache holds the named response store used by the puncher. A Backend
// is the long-lived persistent capability (disk, sqlite, or memory) shared by
// every coordinator of the process; it opens Buckets by store name and can
// drop a whole named store at once. CacheStore wraps one name on one Backend
// and degrades to a transparent no-op when the backend is missing or caching
// is disabled, so callers never have to branch on availability.
package cache
