// Package punch contains the convenience entry points that fill HTML
// placeholders with fetched fragments. A Document wraps a goquery tree (the
// server-side stand-in for the browser DOM); One fills a single element by id,
// All fills every element matched by a selector from the URL stored in one of
// its attributes, and Flush clears the shared store. Each call builds its own
// Puncher and returns it so callers can keep listening to its events.
package punch
