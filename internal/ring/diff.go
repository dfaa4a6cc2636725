package ring

import (
	"fmt"
	"sort"
)

// Diff computes, per pnode, the vnodes that moved between rings a and b:
// Removed is owned in a but not b, Added the reverse. Only pnodes with a
// non-empty delta appear. Per-vnode data is ignored. The rings must share
// the same algorithm and vnode count.
func Diff(a, b *Ring) (ChangeSet, error) {
	if a.Algorithm() != b.Algorithm() || a.Vnodes() != b.Vnodes() {
		return nil, fmt.Errorf("%w: cannot diff rings with different algorithm or vnode count", ErrConfigInvalid)
	}

	aOwned := a.ownedSets()
	bOwned := b.ownedSets()

	// Union of both pnode sets, a's order first.
	pnodes := make([]string, 0, len(aOwned)+len(bOwned))
	seen := make(map[string]bool)
	for _, pnode := range a.GetPnodes() {
		pnodes = append(pnodes, pnode)
		seen[pnode] = true
	}
	for _, pnode := range b.GetPnodes() {
		if !seen[pnode] {
			pnodes = append(pnodes, pnode)
			seen[pnode] = true
		}
	}

	changes := make(ChangeSet)
	for _, pnode := range pnodes {
		removed := subtract(aOwned[pnode], bOwned[pnode])
		added := subtract(bOwned[pnode], aOwned[pnode])
		if len(removed) == 0 && len(added) == 0 {
			continue
		}
		changes[pnode] = Delta{Removed: removed, Added: added}
	}
	return changes, nil
}

// ownedSets snapshots the vnode set of every pnode.
func (r *Ring) ownedSets() map[string]map[int]bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	owned := make(map[string]map[int]bool, len(r.pnodes))
	for _, pnode := range r.pnodes {
		owned[pnode] = make(map[int]bool)
	}
	for v, pnode := range r.owners {
		owned[pnode][v] = true
	}
	return owned
}

// subtract returns the ascending elements of a not present in b.
func subtract(a, b map[int]bool) []int {
	out := make([]int, 0)
	for v := range a {
		if !b[v] {
			out = append(out, v)
		}
	}
	sort.Ints(out)
	return out
}
