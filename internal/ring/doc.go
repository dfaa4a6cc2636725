// Package ring implements a consistent hashing ring with a fixed vnode
// count, per-vnode data, a deterministic mutation protocol, and a durable
// store adapter with atomic batch commits.
package ring
