package ring

import (
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"hashring/internal/hashspace"
	"hashring/internal/storage"
)

// datum is a per-vnode data value on the wire: the JSON number 1 for the
// default sentinel, a JSON string for operator data.
type datum struct {
	value []byte // nil means the default
}

func (d datum) MarshalJSON() ([]byte, error) {
	if d.value == nil {
		return []byte("1"), nil
	}
	return json.Marshal(string(d.value))
}

func (d *datum) UnmarshalJSON(raw []byte) error {
	value, err := decodeDatum(raw)
	if err != nil {
		return err
	}
	d.value = value
	return nil
}

// topology is the canonical serialized form of a ring. Field order is the
// wire order; map keys are emitted in Go's sorted order, which keeps the
// output byte-identical across hosts and round trips.
type topology struct {
	Vnodes          int                         `json:"vnodes"`
	PnodeToVnodeMap map[string]map[string]datum `json:"pnodeToVnodeMap"`
	Algorithm       topologyAlgorithm           `json:"algorithm"`
	Version         string                      `json:"version"`
}

type topologyAlgorithm struct {
	Name              string `json:"NAME"`
	Max               string `json:"MAX"`
	VnodeHashInterval string `json:"VNODE_HASH_INTERVAL"`
}

// Serialize renders the ring in its canonical JSON form.
func (r *Ring) Serialize() ([]byte, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	pnodeMap := make(map[string]map[string]datum, len(r.pnodes))
	for _, pnode := range r.pnodes {
		pnodeMap[pnode] = make(map[string]datum)
	}
	for v, pnode := range r.owners {
		pnodeMap[pnode][strconv.Itoa(v)] = datum{value: r.data[v]}
	}

	t := topology{
		Vnodes:          len(r.owners),
		PnodeToVnodeMap: pnodeMap,
		Algorithm: topologyAlgorithm{
			Name:              r.space.Name(),
			Max:               r.space.MaxHex(),
			VnodeHashInterval: r.space.IntervalHex(),
		},
		Version: Version,
	}

	raw, err := json.Marshal(t)
	if err != nil {
		return nil, fmt.Errorf("serialize ring: %w", err)
	}
	return raw, nil
}

// Deserialize reconstructs a ring from its canonical serialized form and
// persists the full vnode/pnode key set to the backend. JSON objects do not
// preserve insertion order, so the pnode set comes back in sorted order.
func Deserialize(raw []byte, backend storage.Backend) (*Ring, error) {
	if backend == nil {
		return nil, fmt.Errorf("%w: backend is required", ErrConfigInvalid)
	}

	var t topology
	if err := json.Unmarshal(raw, &t); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSerialization, err)
	}
	if t.Version != Version {
		return nil, fmt.Errorf("%w: %q", ErrRingVersionMismatch, t.Version)
	}
	if t.Vnodes <= 0 {
		return nil, fmt.Errorf("%w: vnode count %d", ErrSerialization, t.Vnodes)
	}
	if len(t.PnodeToVnodeMap) == 0 {
		return nil, fmt.Errorf("%w: empty pnode map", ErrSerialization)
	}

	space, err := hashspace.New(t.Algorithm.Name, t.Vnodes)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSerialization, err)
	}
	if !strings.EqualFold(t.Algorithm.Max, space.MaxHex()) {
		return nil, fmt.Errorf("%w: MAX %q does not match algorithm %s", ErrSerialization, t.Algorithm.Max, space.Name())
	}
	if !strings.EqualFold(t.Algorithm.VnodeHashInterval, space.IntervalHex()) {
		return nil, fmt.Errorf("%w: interval %q does not match algorithm %s with %d vnodes", ErrSerialization, t.Algorithm.VnodeHashInterval, space.Name(), t.Vnodes)
	}

	pnodes := make([]string, 0, len(t.PnodeToVnodeMap))
	for pnode := range t.PnodeToVnodeMap {
		if pnode == "" {
			return nil, fmt.Errorf("%w: empty pnode name", ErrSerialization)
		}
		pnodes = append(pnodes, pnode)
	}
	sort.Strings(pnodes)

	r := &Ring{
		space:   space,
		backend: backend,
		owners:  make([]string, t.Vnodes),
		data:    make(map[int][]byte),
		pnodeIx: make(map[string]int),
	}
	for _, pnode := range pnodes {
		r.addPnode(pnode)
	}

	assigned := 0
	for _, pnode := range pnodes {
		for id, d := range t.PnodeToVnodeMap[pnode] {
			v, err := strconv.Atoi(id)
			if err != nil {
				return nil, fmt.Errorf("%w: vnode id %q", ErrSerialization, id)
			}
			if v < 0 || v >= t.Vnodes {
				return nil, fmt.Errorf("%w: vnode %d not in [0, %d)", ErrSerialization, v, t.Vnodes)
			}
			if r.owners[v] != "" {
				return nil, fmt.Errorf("%w: vnode %d assigned twice", ErrSerialization, v)
			}
			r.owners[v] = pnode
			if d.value != nil {
				r.data[v] = d.value
			}
			assigned++
		}
	}
	if assigned != t.Vnodes {
		return nil, fmt.Errorf("%w: %d of %d vnodes assigned", ErrSerialization, assigned, t.Vnodes)
	}

	if err := r.persistCreate(); err != nil {
		return nil, err
	}
	return r, nil
}

// MarshalJSON renders a lookup result with its datum in wire form.
func (n Node) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Pnode string `json:"pnode"`
		Vnode int    `json:"vnode"`
		Data  datum  `json:"data"`
	}{Pnode: n.Pnode, Vnode: n.Vnode, Data: datum{value: n.Data}})
}

// MarshalJSON renders a vnode placement with its datum in wire form.
func (p VnodePlacement) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Pnode string `json:"pnode"`
		Data  datum  `json:"data"`
	}{Pnode: p.Pnode, Data: datum{value: p.Data}})
}
