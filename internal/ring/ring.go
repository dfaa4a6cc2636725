package ring

import (
	"fmt"
	"sort"
	"sync"

	"hashring/internal/hashspace"
	"hashring/internal/storage"
)

// Version is the persisted schema version.
const Version = "2.1.0"

// Ring is a consistent hashing topology: one hash algorithm, a fixed vnode
// count, a total vnode->pnode mapping, and optional per-vnode data. Lookups
// may run concurrently; mutations take the write lock and commit to the
// backing store as a single atomic batch before touching memory.
type Ring struct {
	mu      sync.RWMutex
	space   *hashspace.Space
	backend storage.Backend

	owners  []string       // vnode id -> owning pnode
	data    map[int][]byte // vnode id -> operator datum; absent means the default
	pnodes  []string       // pnode set in first-appearance order
	pnodeIx map[string]int // pnode -> index into pnodes
}

// Options configures ring creation.
type Options struct {
	Algorithm string
	Vnodes    int
	Pnodes    []string
	Backend   storage.Backend
}

// Node is the result of a key lookup.
type Node struct {
	Pnode string
	Vnode int
	Data  []byte // nil when the vnode carries the default datum
}

// VnodePlacement is the owner and datum of a single vnode.
type VnodePlacement struct {
	Pnode string
	Data  []byte // nil when the vnode carries the default datum
}

// Create builds a new ring and persists it to the backend. Vnode i is
// assigned to Pnodes[i mod len(Pnodes)]; this layout is canonical and must
// not change, since independent hosts rely on producing it bit-for-bit.
func Create(opts Options) (*Ring, error) {
	if opts.Backend == nil {
		return nil, fmt.Errorf("%w: backend is required", ErrConfigInvalid)
	}
	if len(opts.Pnodes) == 0 {
		return nil, fmt.Errorf("%w: pnode list is empty", ErrConfigInvalid)
	}
	seen := make(map[string]bool, len(opts.Pnodes))
	for _, pnode := range opts.Pnodes {
		if pnode == "" {
			return nil, fmt.Errorf("%w: empty pnode name", ErrConfigInvalid)
		}
		if seen[pnode] {
			return nil, fmt.Errorf("%w: duplicate pnode %q", ErrConfigInvalid, pnode)
		}
		seen[pnode] = true
	}

	space, err := hashspace.New(opts.Algorithm, opts.Vnodes)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrConfigInvalid, err)
	}

	r := &Ring{
		space:   space,
		backend: opts.Backend,
		owners:  make([]string, opts.Vnodes),
		data:    make(map[int][]byte),
		pnodeIx: make(map[string]int),
	}
	for _, pnode := range opts.Pnodes {
		r.addPnode(pnode)
	}
	for v := range r.owners {
		r.owners[v] = opts.Pnodes[v%len(opts.Pnodes)]
	}

	if err := r.persistCreate(); err != nil {
		return nil, err
	}
	return r, nil
}

// addPnode appends pnode to the pnode set if absent. Caller holds the lock
// (or the ring is not yet shared).
func (r *Ring) addPnode(pnode string) {
	if _, ok := r.pnodeIx[pnode]; ok {
		return
	}
	r.pnodeIx[pnode] = len(r.pnodes)
	r.pnodes = append(r.pnodes, pnode)
}

// GetNode resolves an application key to its owning pnode, vnode, and datum.
func (r *Ring) GetNode(key []byte) Node {
	r.mu.RLock()
	defer r.mu.RUnlock()

	v := r.space.VnodeOf(key)
	return Node{Pnode: r.owners[v], Vnode: v, Data: copyBytes(r.data[v])}
}

// GetVnodes returns the vnode ids owned by pnode, ascending. The slice is a
// copy, never a live view.
func (r *Ring) GetVnodes(pnode string) ([]int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if _, ok := r.pnodeIx[pnode]; !ok {
		return nil, fmt.Errorf("%w: %q", ErrPnodeUnknown, pnode)
	}
	return r.vnodesOf(pnode), nil
}

// vnodesOf scans the owner table for pnode's vnodes. Ascending by
// construction. Caller holds at least the read lock.
func (r *Ring) vnodesOf(pnode string) []int {
	vnodes := make([]int, 0)
	for v, owner := range r.owners {
		if owner == pnode {
			vnodes = append(vnodes, v)
		}
	}
	return vnodes
}

// GetPnodes returns the pnode set in first-appearance order.
func (r *Ring) GetPnodes() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return append([]string(nil), r.pnodes...)
}

// GetVnodeData returns the owning pnode and datum of a single vnode.
func (r *Ring) GetVnodeData(vnode int) (VnodePlacement, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if vnode < 0 || vnode >= len(r.owners) {
		return VnodePlacement{}, fmt.Errorf("%w: %d not in [0, %d)", ErrVnodeOutOfRange, vnode, len(r.owners))
	}
	return VnodePlacement{Pnode: r.owners[vnode], Data: copyBytes(r.data[vnode])}, nil
}

// GetDataVnodes returns the ids of vnodes carrying non-default data,
// ascending for reproducibility.
func (r *Ring) GetDataVnodes() []int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return r.dataVnodes()
}

// dataVnodes returns the sorted data-vnode-set. Caller holds the lock.
func (r *Ring) dataVnodes() []int {
	vnodes := make([]int, 0, len(r.data))
	for v := range r.data {
		vnodes = append(vnodes, v)
	}
	sort.Ints(vnodes)
	return vnodes
}

// Algorithm returns the hash algorithm name the ring is bound to.
func (r *Ring) Algorithm() string { return r.space.Name() }

// Vnodes returns the vnode count.
func (r *Ring) Vnodes() int { return r.space.Vnodes() }

// Close releases the backing store handle.
func (r *Ring) Close() error {
	return r.backend.Close()
}

// copyBytes preserves nil-ness: nil means the default datum, and an empty
// operator value must stay non-nil.
func copyBytes(b []byte) []byte {
	if b == nil {
		return nil
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out
}
