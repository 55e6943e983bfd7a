// Package server hosts the Fiber HTTP service that renders pages with their
// placeholders punched server-side. Each page request builds a fresh Puncher
// on the shared cache backend and transport, fills every placeholder, and
// reports hit/miss counts in response headers. Diagnostic endpoints live
// under /-/ and are registered by the routes subpackage, so keep exports
// narrow and accept explicit dependencies.
package server
