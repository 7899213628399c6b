// Package builderr defines the structured error reported by build nodes and
// tasks, the error codes they carry, and the sentinel used for superseded
// computations.
package builderr
