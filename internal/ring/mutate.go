package ring

import (
	"fmt"
	"sort"

	"hashring/internal/storage"
)

// Delta is one pnode's side of a ChangeSet.
type Delta struct {
	Removed []int `json:"removed"`
	Added   []int `json:"added"`
}

// ChangeSet records, per affected pnode, the vnodes that moved away and in.
type ChangeSet map[string]Delta

// Remap reassigns vnodes to target, creating the pnode if it is new. Each
// vnode's datum travels with it. Prior owners keep their place in the pnode
// set even when drained to zero vnodes. The whole move commits as one
// atomic batch; on any error the ring and the store are unchanged.
func (r *Ring) Remap(target string, vnodes []int) (ChangeSet, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if target == "" {
		return nil, fmt.Errorf("%w: empty target pnode", ErrConfigInvalid)
	}
	if len(vnodes) == 0 {
		return nil, fmt.Errorf("%w: no vnodes to remap", ErrConfigInvalid)
	}
	seen := make(map[int]bool, len(vnodes))
	for _, v := range vnodes {
		if v < 0 || v >= len(r.owners) {
			return nil, fmt.Errorf("%w: %d not in [0, %d)", ErrVnodeOutOfRange, v, len(r.owners))
		}
		if seen[v] {
			return nil, fmt.Errorf("%w: duplicate vnode %d", ErrConfigInvalid, v)
		}
		seen[v] = true
		if r.owners[v] == target {
			return nil, fmt.Errorf("%w: vnode %d", ErrVnodeAlreadyOnTarget, v)
		}
	}

	moved := append([]int(nil), vnodes...)
	sort.Ints(moved)

	// Moved vnodes grouped by prior owner.
	prior := make(map[string][]int)
	for _, v := range moved {
		prior[r.owners[v]] = append(prior[r.owners[v]], v)
	}
	priorPnodes := make([]string, 0, len(prior))
	for pnode := range prior {
		priorPnodes = append(priorPnodes, pnode)
	}
	sort.Strings(priorPnodes)

	reassigned := make(map[int]string, len(moved))
	for _, v := range moved {
		reassigned[v] = target
	}
	_, targetExists := r.pnodeIx[target]

	// Stage the full batch before mutating memory, so a failed commit
	// leaves the in-memory ring consistent with the store.
	batch := new(storage.Batch)
	changes := make(ChangeSet, len(prior)+1)
	for _, pnode := range priorPnodes {
		vs := prior[pnode]
		changes[pnode] = Delta{Removed: vs, Added: []int{}}
		for _, v := range vs {
			batch.Delete(pnodeVnodeKey(pnode, v))
		}
		batch.Put(pnodeKey(pnode), encodeInts(r.ownersAfter(pnode, reassigned)))
	}
	for _, v := range moved {
		batch.Put(pnodeVnodeKey(target, v), encodeDatum(r.data[v]))
		batch.Put(vnodeKey(v), []byte(target))
	}
	batch.Put(pnodeKey(target), encodeInts(r.ownersAfter(target, reassigned)))
	if !targetExists {
		batch.Put(keyPnodes, encodeStrings(append(append([]string(nil), r.pnodes...), target)))
	}
	changes[target] = Delta{Removed: []int{}, Added: moved}

	if err := r.backend.Write(batch); err != nil {
		return nil, fmt.Errorf("remap commit: %w", err)
	}

	for _, v := range moved {
		r.owners[v] = target
	}
	r.addPnode(target)
	return changes, nil
}

// ownersAfter returns pnode's ascending vnode list with the pending
// reassignments applied. Caller holds the write lock.
func (r *Ring) ownersAfter(pnode string, reassigned map[int]string) []int {
	vnodes := make([]int, 0)
	for v, owner := range r.owners {
		if next, ok := reassigned[v]; ok {
			owner = next
		}
		if owner == pnode {
			vnodes = append(vnodes, v)
		}
	}
	return vnodes
}

// RemovePnode removes a pnode from the pnode set. The pnode must exist and
// own zero vnodes.
func (r *Ring) RemovePnode(pnode string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.pnodeIx[pnode]; !ok {
		return fmt.Errorf("%w: %q", ErrPnodeUnknown, pnode)
	}
	if owned := r.vnodesOf(pnode); len(owned) > 0 {
		return fmt.Errorf("%w: %q owns %d vnodes", ErrPnodeStillInUse, pnode, len(owned))
	}

	rest := make([]string, 0, len(r.pnodes)-1)
	for _, p := range r.pnodes {
		if p != pnode {
			rest = append(rest, p)
		}
	}

	batch := new(storage.Batch)
	batch.Delete(pnodeKey(pnode))
	batch.Put(keyPnodes, encodeStrings(rest))
	if err := r.backend.Write(batch); err != nil {
		return fmt.Errorf("remove pnode commit: %w", err)
	}

	r.pnodes = rest
	delete(r.pnodeIx, pnode)
	for i, p := range r.pnodes {
		r.pnodeIx[p] = i
	}
	return nil
}

// AddData attaches an opaque datum to a vnode. A nil value clears the vnode
// back to the default sentinel and drops it from the data-vnode-set.
func (r *Ring) AddData(vnode int, value []byte) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if vnode < 0 || vnode >= len(r.owners) {
		return fmt.Errorf("%w: %d not in [0, %d)", ErrVnodeOutOfRange, vnode, len(r.owners))
	}

	dataSet := r.dataVnodes()
	if value == nil {
		dataSet = removeInt(dataSet, vnode)
	} else {
		dataSet = insertInt(dataSet, vnode)
	}

	batch := new(storage.Batch)
	batch.Put(pnodeVnodeKey(r.owners[vnode], vnode), encodeDatum(value))
	batch.Put(keyVnodeData, encodeInts(dataSet))
	if err := r.backend.Write(batch); err != nil {
		return fmt.Errorf("add data commit: %w", err)
	}

	if value == nil {
		delete(r.data, vnode)
	} else {
		// make, not append: an empty operator value must stay non-nil to
		// remain distinguishable from the default.
		buf := make([]byte, len(value))
		copy(buf, value)
		r.data[vnode] = buf
	}
	return nil
}

// insertInt adds v to a sorted slice if absent.
func insertInt(sorted []int, v int) []int {
	i := sort.SearchInts(sorted, v)
	if i < len(sorted) && sorted[i] == v {
		return sorted
	}
	sorted = append(sorted, 0)
	copy(sorted[i+1:], sorted[i:])
	sorted[i] = v
	return sorted
}

// removeInt drops v from a sorted slice if present.
func removeInt(sorted []int, v int) []int {
	i := sort.SearchInts(sorted, v)
	if i < len(sorted) && sorted[i] == v {
		return append(sorted[:i], sorted[i+1:]...)
	}
	return sorted
}
