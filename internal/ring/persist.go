package ring

import (
	"encoding/json"
	"fmt"
	"strconv"

	"hashring/internal/hashspace"
	"hashring/internal/storage"
)

// Store key schema. Vnode ids in keys are zero-padded to ten decimal
// digits so lexical key order matches numeric order.
const (
	keyVnodeCount = "VNODE_COUNT"
	keyAlgorithm  = "ALGORITHM"
	keyVersion    = "VERSION"
	keyComplete   = "COMPLETE"
	keyPnodes     = "/PNODE"
	keyVnodeData  = "VNODE_DATA"
)

// creationBatchSize bounds the batches used while laying down the initial
// vnode keys. Creation is not atomic; COMPLETE is the durability marker.
const creationBatchSize = 1000

func vnodeKey(v int) string {
	return fmt.Sprintf("/VNODE/%010d", v)
}

func pnodeKey(pnode string) string {
	return fmt.Sprintf("/PNODE/%s", pnode)
}

func pnodeVnodeKey(pnode string, v int) string {
	return fmt.Sprintf("/PNODE/%s/%010d", pnode, v)
}

// encodeDatum renders a per-vnode datum as a JSON scalar: the number 1 for
// the default sentinel, a JSON string for operator data. The two are
// distinguishable in the persisted bytes, so a string "1" is not the default.
func encodeDatum(value []byte) []byte {
	if value == nil {
		return []byte("1")
	}
	raw, err := json.Marshal(string(value))
	if err != nil {
		// Marshalling a string cannot fail.
		panic(err)
	}
	return raw
}

// decodeDatum parses a persisted datum scalar.
func decodeDatum(raw []byte) ([]byte, error) {
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return nil, fmt.Errorf("datum %q: %w", raw, err)
	}
	switch t := v.(type) {
	case float64:
		if t == 1 {
			return nil, nil
		}
		return nil, fmt.Errorf("datum %q: unexpected number", raw)
	case string:
		value := make([]byte, len(t))
		copy(value, t)
		return value, nil
	default:
		return nil, fmt.Errorf("datum %q: unexpected type", raw)
	}
}

func encodeInts(vs []int) []byte {
	if vs == nil {
		vs = []int{}
	}
	raw, err := json.Marshal(vs)
	if err != nil {
		panic(err)
	}
	return raw
}

func encodeStrings(ss []string) []byte {
	if ss == nil {
		ss = []string{}
	}
	raw, err := json.Marshal(ss)
	if err != nil {
		panic(err)
	}
	return raw
}

// persistCreate writes the full ring to the backend in the creation order:
// vnode count, then the vnode owner keys in bounded batches, then the
// per-vnode datum keys, then the pnode arrays, then the trailer with the
// COMPLETE marker last.
func (r *Ring) persistCreate() error {
	flush := func(batch *storage.Batch) error {
		if batch.Len() == 0 {
			return nil
		}
		if err := r.backend.Write(batch); err != nil {
			return fmt.Errorf("create commit: %w", err)
		}
		return nil
	}

	if err := r.backend.Put(keyVnodeCount, []byte(strconv.Itoa(len(r.owners)))); err != nil {
		return fmt.Errorf("create commit: %w", err)
	}

	batch := new(storage.Batch)
	for v, pnode := range r.owners {
		batch.Put(vnodeKey(v), []byte(pnode))
		if batch.Len() >= creationBatchSize {
			if err := flush(batch); err != nil {
				return err
			}
			batch = new(storage.Batch)
		}
	}
	if err := flush(batch); err != nil {
		return err
	}

	batch = new(storage.Batch)
	for v, pnode := range r.owners {
		batch.Put(pnodeVnodeKey(pnode, v), encodeDatum(r.data[v]))
		if batch.Len() >= creationBatchSize {
			if err := flush(batch); err != nil {
				return err
			}
			batch = new(storage.Batch)
		}
	}
	if err := flush(batch); err != nil {
		return err
	}

	batch = new(storage.Batch)
	for _, pnode := range r.pnodes {
		batch.Put(pnodeKey(pnode), encodeInts(r.vnodesOf(pnode)))
	}
	batch.Put(keyPnodes, encodeStrings(r.pnodes))
	if err := flush(batch); err != nil {
		return err
	}

	batch = new(storage.Batch)
	batch.Put(keyVnodeData, encodeInts(r.dataVnodes()))
	batch.Put(keyAlgorithm, []byte(r.space.Name()))
	batch.Put(keyVersion, []byte(Version))
	batch.Put(keyComplete, []byte("1"))
	return flush(batch)
}

// Load reopens a ring previously persisted to the backend. The store is the
// authority: the in-memory topology is rebuilt from it wholesale.
func Load(backend storage.Backend) (*Ring, error) {
	if backend == nil {
		return nil, fmt.Errorf("%w: backend is required", ErrConfigInvalid)
	}

	if _, found, err := backend.Get(keyComplete); err != nil {
		return nil, fmt.Errorf("load ring: %w", err)
	} else if !found {
		return nil, ErrRingIncomplete
	}

	version, found, err := backend.Get(keyVersion)
	if err != nil {
		return nil, fmt.Errorf("load ring: %w", err)
	}
	if !found || string(version) != Version {
		return nil, fmt.Errorf("%w: %q", ErrRingVersionMismatch, version)
	}

	rawCount, found, err := backend.Get(keyVnodeCount)
	if err != nil {
		return nil, fmt.Errorf("load ring: %w", err)
	}
	if !found {
		return nil, fmt.Errorf("%w: missing %s", ErrRingIncomplete, keyVnodeCount)
	}
	vnodes, err := strconv.Atoi(string(rawCount))
	if err != nil {
		return nil, fmt.Errorf("%w: bad vnode count %q", ErrConfigInvalid, rawCount)
	}

	rawAlg, found, err := backend.Get(keyAlgorithm)
	if err != nil {
		return nil, fmt.Errorf("load ring: %w", err)
	}
	if !found {
		return nil, fmt.Errorf("%w: missing %s", ErrRingIncomplete, keyAlgorithm)
	}
	space, err := hashspace.New(string(rawAlg), vnodes)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrConfigInvalid, err)
	}

	rawPnodes, found, err := backend.Get(keyPnodes)
	if err != nil {
		return nil, fmt.Errorf("load ring: %w", err)
	}
	if !found {
		return nil, fmt.Errorf("%w: missing %s", ErrRingIncomplete, keyPnodes)
	}
	var pnodes []string
	if err := json.Unmarshal(rawPnodes, &pnodes); err != nil {
		return nil, fmt.Errorf("load ring: pnode set: %w", err)
	}

	r := &Ring{
		space:   space,
		backend: backend,
		owners:  make([]string, vnodes),
		data:    make(map[int][]byte),
		pnodeIx: make(map[string]int),
	}
	for _, pnode := range pnodes {
		r.addPnode(pnode)
	}

	for v := 0; v < vnodes; v++ {
		owner, found, err := backend.Get(vnodeKey(v))
		if err != nil {
			return nil, fmt.Errorf("load ring: %w", err)
		}
		if !found || len(owner) == 0 {
			return nil, fmt.Errorf("load ring: missing owner for vnode %d", v)
		}
		r.owners[v] = string(owner)
		// Owners must be in the pnode set; tolerate a store written by an
		// implementation that pruned drained pnodes.
		r.addPnode(string(owner))
	}

	rawDataSet, found, err := backend.Get(keyVnodeData)
	if err != nil {
		return nil, fmt.Errorf("load ring: %w", err)
	}
	if found {
		var dataSet []int
		if err := json.Unmarshal(rawDataSet, &dataSet); err != nil {
			return nil, fmt.Errorf("load ring: data-vnode-set: %w", err)
		}
		for _, v := range dataSet {
			if v < 0 || v >= vnodes {
				return nil, fmt.Errorf("%w: %d in data-vnode-set", ErrVnodeOutOfRange, v)
			}
			rawDatum, found, err := backend.Get(pnodeVnodeKey(r.owners[v], v))
			if err != nil {
				return nil, fmt.Errorf("load ring: %w", err)
			}
			if !found {
				return nil, fmt.Errorf("load ring: missing datum for vnode %d", v)
			}
			datum, err := decodeDatum(rawDatum)
			if err != nil {
				return nil, fmt.Errorf("load ring: %w", err)
			}
			if datum != nil {
				r.data[v] = datum
			}
		}
	}

	return r, nil
}
