package persist

// SingleCF is a column family that holds exactly one value under a fixed
// key, for singleton state such as "the last processed tick" or "the
// current forest root" — the typed equivalent of a single-row table.
type SingleCF[V any] struct {
	cf  *ColumnFamily[string, V]
	key string
}

var singletonKey = "_"

// NewSingleCF declares a single-value column family.
func NewSingleCF[V any](name string, valueCodec Codec[V]) *SingleCF[V] {
	return &SingleCF[V]{cf: NewColumnFamily[string, V](name, StringCodec{}, valueCodec), key: singletonKey}
}

// Name returns the underlying bucket name, for registering with Open.
func (s *SingleCF[V]) Name() string { return s.cf.Name }

func (s *SingleCF[V]) Get(b *Batch) (value V, ok bool, err error) {
	return Get(b, s.cf, s.key)
}

func (s *SingleCF[V]) Set(b *Batch, value V) error {
	return Put(b, s.cf, s.key, value)
}

func (s *SingleCF[V]) Clear(b *Batch) error {
	return Delete(b, s.cf, s.key)
}
