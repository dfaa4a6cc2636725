package ring

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"strings"
	"testing"

	"hashring/internal/storage"
)

func TestSerialize_RoundTrip(t *testing.T) {
	r := newTestRing(t, 6, "P1", "P2")
	if err := r.AddData(4, []byte("ro")); err != nil {
		t.Fatalf("AddData failed: %v", err)
	}
	if _, err := r.Remap("P3", []int{4}); err != nil {
		t.Fatalf("Remap failed: %v", err)
	}

	s1, err := r.Serialize()
	if err != nil {
		t.Fatalf("Serialize failed: %v", err)
	}

	r2, err := Deserialize(s1, storage.NewMemoryBackend())
	if err != nil {
		t.Fatalf("Deserialize failed: %v", err)
	}
	s2, err := r2.Serialize()
	if err != nil {
		t.Fatalf("Serialize failed: %v", err)
	}
	if !bytes.Equal(s1, s2) {
		t.Fatalf("round trip not byte-identical:\n%s\n%s", s1, s2)
	}

	// Topology survives intact, including the datum on the remapped vnode.
	placement, err := r2.GetVnodeData(4)
	if err != nil {
		t.Fatalf("GetVnodeData failed: %v", err)
	}
	if placement.Pnode != "P3" || string(placement.Data) != "ro" {
		t.Errorf("placement = %+v, want {P3 ro}", placement)
	}
}

func TestSerialize_Shape(t *testing.T) {
	r := newTestRing(t, 6, "P1", "P2")

	raw, err := r.Serialize()
	if err != nil {
		t.Fatalf("Serialize failed: %v", err)
	}

	var top struct {
		Vnodes    int                                   `json:"vnodes"`
		PnodeMap  map[string]map[string]json.RawMessage `json:"pnodeToVnodeMap"`
		Algorithm map[string]string                     `json:"algorithm"`
		Version   string                                `json:"version"`
	}
	if err := json.Unmarshal(raw, &top); err != nil {
		t.Fatalf("output is not valid JSON: %v", err)
	}

	if top.Vnodes != 6 {
		t.Errorf("vnodes = %d, want 6", top.Vnodes)
	}
	if top.Version != "2.1.0" {
		t.Errorf("version = %q, want 2.1.0", top.Version)
	}
	if top.Algorithm["NAME"] != "sha256" {
		t.Errorf("NAME = %q, want sha256", top.Algorithm["NAME"])
	}
	if want := strings.Repeat("F", 64); top.Algorithm["MAX"] != want {
		t.Errorf("MAX = %q, want uppercase %q", top.Algorithm["MAX"], want)
	}
	if want := "2" + strings.Repeat("a", 63); top.Algorithm["VNODE_HASH_INTERVAL"] != want {
		t.Errorf("VNODE_HASH_INTERVAL = %q, want %q", top.Algorithm["VNODE_HASH_INTERVAL"], want)
	}

	// Default data serializes as the number 1.
	if got := string(top.PnodeMap["P1"]["0"]); got != "1" {
		t.Errorf("default datum = %s, want 1", got)
	}
}

// foreignTopology builds a hand-written canonical topology, the way another
// implementation would emit it.
func foreignTopology() string {
	interval := "8" + strings.Repeat("0", 63) // 2^255, lowercase hex
	max := strings.Repeat("F", 64)
	return fmt.Sprintf(`{
		"vnodes": 2,
		"pnodeToVnodeMap": {"A": {"0": 1}, "B": {"1": "special"}},
		"algorithm": {"NAME": "sha256", "MAX": "%s", "VNODE_HASH_INTERVAL": "%s"},
		"version": "2.1.0"
	}`, max, interval)
}

func TestDeserialize_Foreign(t *testing.T) {
	r, err := Deserialize([]byte(foreignTopology()), storage.NewMemoryBackend())
	if err != nil {
		t.Fatalf("Deserialize failed: %v", err)
	}

	va, err := r.GetVnodes("A")
	if err != nil {
		t.Fatalf("GetVnodes(A) failed: %v", err)
	}
	if !reflect.DeepEqual(va, []int{0}) {
		t.Errorf("GetVnodes(A) = %v, want [0]", va)
	}
	placement, err := r.GetVnodeData(1)
	if err != nil {
		t.Fatalf("GetVnodeData failed: %v", err)
	}
	if placement.Pnode != "B" || string(placement.Data) != "special" {
		t.Errorf("placement = %+v, want {B special}", placement)
	}
	if got := r.GetDataVnodes(); !reflect.DeepEqual(got, []int{1}) {
		t.Errorf("GetDataVnodes = %v, want [1]", got)
	}
}

func TestDeserialize_Malformed(t *testing.T) {
	cases := []struct {
		name string
		raw  string
		want error
	}{
		{"not json", `{"vnodes":`, ErrSerialization},
		{"unknown version", `{"vnodes":2,"pnodeToVnodeMap":{"A":{"0":1,"1":1}},"algorithm":{"NAME":"sha256"},"version":"9.9.9"}`, ErrRingVersionMismatch},
		{"zero vnodes", `{"vnodes":0,"pnodeToVnodeMap":{"A":{}},"algorithm":{"NAME":"sha256"},"version":"2.1.0"}`, ErrSerialization},
		{"no pnodes", `{"vnodes":2,"pnodeToVnodeMap":{},"algorithm":{"NAME":"sha256"},"version":"2.1.0"}`, ErrSerialization},
		{"unknown algorithm", `{"vnodes":2,"pnodeToVnodeMap":{"A":{"0":1,"1":1}},"algorithm":{"NAME":"whirlpool"},"version":"2.1.0"}`, ErrSerialization},
		{"bad datum", `{"vnodes":2,"pnodeToVnodeMap":{"A":{"0":2,"1":1}},"algorithm":{"NAME":"sha256"},"version":"2.1.0"}`, ErrSerialization},
	}
	for _, tc := range cases {
		if _, err := Deserialize([]byte(tc.raw), storage.NewMemoryBackend()); !errors.Is(err, tc.want) {
			t.Errorf("%s: got %v, want %v", tc.name, err, tc.want)
		}
	}
}

func TestDeserialize_CoverageHoles(t *testing.T) {
	max := strings.Repeat("F", 64)
	interval := "8" + strings.Repeat("0", 63)

	missing := fmt.Sprintf(`{"vnodes":2,"pnodeToVnodeMap":{"A":{"0":1}},"algorithm":{"NAME":"sha256","MAX":"%s","VNODE_HASH_INTERVAL":"%s"},"version":"2.1.0"}`, max, interval)
	if _, err := Deserialize([]byte(missing), storage.NewMemoryBackend()); !errors.Is(err, ErrSerialization) {
		t.Errorf("missing vnode: got %v, want ErrSerialization", err)
	}

	double := fmt.Sprintf(`{"vnodes":2,"pnodeToVnodeMap":{"A":{"0":1,"1":1},"B":{"1":1}},"algorithm":{"NAME":"sha256","MAX":"%s","VNODE_HASH_INTERVAL":"%s"},"version":"2.1.0"}`, max, interval)
	if _, err := Deserialize([]byte(double), storage.NewMemoryBackend()); !errors.Is(err, ErrSerialization) {
		t.Errorf("double assignment: got %v, want ErrSerialization", err)
	}

	outOfRange := fmt.Sprintf(`{"vnodes":2,"pnodeToVnodeMap":{"A":{"0":1,"7":1}},"algorithm":{"NAME":"sha256","MAX":"%s","VNODE_HASH_INTERVAL":"%s"},"version":"2.1.0"}`, max, interval)
	if _, err := Deserialize([]byte(outOfRange), storage.NewMemoryBackend()); !errors.Is(err, ErrSerialization) {
		t.Errorf("out of range vnode: got %v, want ErrSerialization", err)
	}
}

func TestDeserialize_AlgorithmMismatch(t *testing.T) {
	// Interval claims V=2 but the topology says 4 vnodes.
	raw := fmt.Sprintf(`{"vnodes":4,"pnodeToVnodeMap":{"A":{"0":1,"1":1,"2":1,"3":1}},"algorithm":{"NAME":"sha256","MAX":"%s","VNODE_HASH_INTERVAL":"%s"},"version":"2.1.0"}`,
		strings.Repeat("F", 64), "8"+strings.Repeat("0", 63))
	if _, err := Deserialize([]byte(raw), storage.NewMemoryBackend()); !errors.Is(err, ErrSerialization) {
		t.Errorf("got %v, want ErrSerialization", err)
	}
}

func TestNode_MarshalJSON(t *testing.T) {
	raw, err := json.Marshal(Node{Pnode: "P1", Vnode: 4, Data: nil})
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}
	if string(raw) != `{"pnode":"P1","vnode":4,"data":1}` {
		t.Errorf("default datum marshalling = %s", raw)
	}

	raw, _ = json.Marshal(Node{Pnode: "P1", Vnode: 4, Data: []byte("ro")})
	if string(raw) != `{"pnode":"P1","vnode":4,"data":"ro"}` {
		t.Errorf("string datum marshalling = %s", raw)
	}
}
