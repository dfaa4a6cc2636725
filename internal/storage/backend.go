package storage

// Batch accumulates puts and deletes that a Backend applies atomically.
// The zero value is ready to use.
type Batch struct {
	ops []batchOp
}

type batchOp struct {
	key    string
	value  []byte
	delete bool
}

// Put queues a write. The value is copied.
func (b *Batch) Put(key string, value []byte) {
	b.ops = append(b.ops, batchOp{key: key, value: append([]byte(nil), value...)})
}

// Delete queues a deletion.
func (b *Batch) Delete(key string) {
	b.ops = append(b.ops, batchOp{key: key, delete: true})
}

// Len returns the number of queued operations.
func (b *Batch) Len() int { return len(b.ops) }

// Backend is the store interface the ring requires: point get/put/delete,
// atomic batches, and close. Implementations must apply a batch so that
// either every operation is visible or none is.
type Backend interface {
	// Get returns the value for key. found is false when the key is absent;
	// err is reserved for engine failures.
	Get(key string) (value []byte, found bool, err error)
	Put(key string, value []byte) error
	Delete(key string) error
	// Write applies every operation in the batch atomically, in order.
	Write(batch *Batch) error
	Close() error
}
