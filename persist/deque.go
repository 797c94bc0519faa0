package persist

import "fmt"

// Deque is a FIFO queue layered on top of a Store, used for pending-work
// lists that must survive a restart (e.g. a provider's queue of accepted
// but not-yet-proven file keys). Items are appended under a monotonic
// sequence number and popped from the lowest outstanding one; the
// head/tail counters live in a sibling bucket so they never collide with
// a sequence-numbered data key.
type Deque[T any] struct {
	store    *Store
	dataCF   *ColumnFamily[uint64, T]
	metaCF   *ColumnFamily[string, uint64]
}

const (
	deqHeadKey = "head"
	deqTailKey = "tail"
)

// NewDeque declares a deque backed by two buckets: name (the data) and
// name+".meta" (the head/tail counters). Both must be passed to Open.
func NewDeque[T any](store *Store, name string, valueCodec Codec[T]) *Deque[T] {
	return &Deque[T]{
		store:  store,
		dataCF: NewColumnFamily[uint64, T](name, Uint64Codec{}, valueCodec),
		metaCF: NewColumnFamily[string, uint64](name+".meta", StringCodec{}, Uint64Codec{}),
	}
}

// Names returns the two bucket names this deque needs registered with
// Open.
func (d *Deque[T]) Names() []string { return []string{d.dataCF.Name, d.metaCF.Name} }

func (d *Deque[T]) bounds(b *Batch) (head, tail uint64, err error) {
	head, _, err = Get(b, d.metaCF, deqHeadKey)
	if err != nil {
		return 0, 0, err
	}
	tail, _, err = Get(b, d.metaCF, deqTailKey)
	if err != nil {
		return 0, 0, err
	}
	return head, tail, nil
}

// PushBack appends v to the tail of the queue.
func (d *Deque[T]) PushBack(b *Batch, v T) error {
	_, tail, err := d.bounds(b)
	if err != nil {
		return err
	}
	if err := Put(b, d.dataCF, tail, v); err != nil {
		return err
	}
	return Put(b, d.metaCF, deqTailKey, tail+1)
}

// PopFront removes and returns the item at the head of the queue. ok is
// false if the queue is empty.
func (d *Deque[T]) PopFront(b *Batch) (value T, ok bool, err error) {
	head, tail, err := d.bounds(b)
	if err != nil {
		return value, false, err
	}
	if head >= tail {
		return value, false, nil
	}
	value, found, err := Get(b, d.dataCF, head)
	if err != nil {
		return value, false, err
	}
	if !found {
		return value, false, fmt.Errorf("persist: deque %q missing expected entry at head %d", d.dataCF.Name, head)
	}
	if err := Delete(b, d.dataCF, head); err != nil {
		return value, false, err
	}
	if err := Put(b, d.metaCF, deqHeadKey, head+1); err != nil {
		return value, false, err
	}
	return value, true, nil
}

// PeekFront returns the head item without removing it.
func (d *Deque[T]) PeekFront(b *Batch) (value T, ok bool, err error) {
	head, tail, err := d.bounds(b)
	if err != nil {
		return value, false, err
	}
	if head >= tail {
		return value, false, nil
	}
	return Get(b, d.dataCF, head)
}

// Len returns the number of items currently queued.
func (d *Deque[T]) Len(b *Batch) (int, error) {
	head, tail, err := d.bounds(b)
	if err != nil {
		return 0, err
	}
	return int(tail - head), nil
}
