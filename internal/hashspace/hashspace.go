package hashspace

import (
	"crypto/sha1"
	"crypto/sha256"
	"crypto/sha512"
	"fmt"
	"hash"
	"math/big"
	"sort"
	"strings"

	"github.com/cespare/xxhash/v2"
)

// algorithm describes one registered hash function.
type algorithm struct {
	name string
	bits int
	new  func() hash.Hash
}

var algorithms = map[string]algorithm{
	"sha1":     {name: "sha1", bits: 160, new: sha1.New},
	"sha256":   {name: "sha256", bits: 256, new: sha256.New},
	"sha512":   {name: "sha512", bits: 512, new: sha512.New},
	"xxhash64": {name: "xxhash64", bits: 64, new: func() hash.Hash { return xxhash.New() }},
}

// Names returns the registered algorithm names in sorted order.
func Names() []string {
	names := make([]string, 0, len(algorithms))
	for name := range algorithms {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Space is a hash space of width 2^B divided into a fixed number of
// equal-width vnode slices. A Space is immutable and safe for concurrent use.
type Space struct {
	alg      algorithm
	vnodes   int
	max      *big.Int // 2^B - 1
	interval *big.Int // floor(2^B / vnodes)
}

// New builds a Space for the named algorithm and vnode count.
// The algorithm name is matched case-insensitively and stored lowercased.
func New(name string, vnodes int) (*Space, error) {
	alg, ok := algorithms[strings.ToLower(name)]
	if !ok {
		return nil, fmt.Errorf("unknown algorithm %q (have %s)", name, strings.Join(Names(), ", "))
	}
	if vnodes <= 0 {
		return nil, fmt.Errorf("vnode count must be positive, got %d", vnodes)
	}

	width := new(big.Int).Lsh(big.NewInt(1), uint(alg.bits))
	interval := new(big.Int).Div(width, big.NewInt(int64(vnodes)))
	if interval.Sign() == 0 {
		return nil, fmt.Errorf("vnode count %d exceeds the %d-bit hash space", vnodes, alg.bits)
	}

	return &Space{
		alg:      alg,
		vnodes:   vnodes,
		max:      new(big.Int).Sub(width, big.NewInt(1)),
		interval: interval,
	}, nil
}

// Name returns the algorithm name the space is bound to.
func (s *Space) Name() string { return s.alg.name }

// Vnodes returns the vnode count the space is divided into.
func (s *Space) Vnodes() int { return s.vnodes }

// Sum returns the digest of key as an unsigned big-endian integer.
func (s *Space) Sum(key []byte) *big.Int {
	h := s.alg.new()
	h.Write(key)
	return new(big.Int).SetBytes(h.Sum(nil))
}

// VnodeOf buckets key into a vnode: digest / interval, clamped to the last
// vnode so the top remainder slice of the space stays covered.
func (s *Space) VnodeOf(key []byte) int {
	q := new(big.Int).Div(s.Sum(key), s.interval)
	v := int(q.Int64())
	if v >= s.vnodes {
		v = s.vnodes - 1
	}
	return v
}

// MaxHex returns 2^B - 1 in uppercase hex, as persisted in serialized rings.
func (s *Space) MaxHex() string {
	return strings.ToUpper(s.max.Text(16))
}

// IntervalHex returns the vnode interval in lowercase hex, as persisted in
// serialized rings.
func (s *Space) IntervalHex() string {
	return s.interval.Text(16)
}
