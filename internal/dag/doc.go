// Package dag is a small string-keyed directed graph used to validate a build
// definition before any build node exists: it rejects cycles and yields the
// order in which nodes can be constructed.
package dag
