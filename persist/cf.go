package persist

import "github.com/storagehub-network/sh-core/sherrors"

// ColumnFamily names one bucket and the codecs used to encode/decode the
// keys and values stored in it, mirroring the host runtime's typed
// column-family pattern (key codec + value codec resolved once, reused
// on every access) but collapsed onto Go generics instead of a trait
// hierarchy.
type ColumnFamily[K any, V any] struct {
	Name       string
	KeyCodec   Codec[K]
	ValueCodec Codec[V]
}

// NewColumnFamily declares a column family. Name must also appear in the
// cfNames slice passed to Open.
func NewColumnFamily[K any, V any](name string, keyCodec Codec[K], valueCodec Codec[V]) *ColumnFamily[K, V] {
	return &ColumnFamily[K, V]{Name: name, KeyCodec: keyCodec, ValueCodec: valueCodec}
}

// Get reads one value by key. ok is false if the key is absent.
func Get[K any, V any](b *Batch, cf *ColumnFamily[K, V], key K) (value V, ok bool, err error) {
	bkt, err := b.bucket(cf.Name)
	if err != nil {
		return value, false, err
	}
	raw := bkt.Get(cf.KeyCodec.Encode(key))
	if raw == nil {
		return value, false, nil
	}
	value, err = cf.ValueCodec.Decode(raw)
	if err != nil {
		return value, false, sherrors.Wrap(sherrors.StorageCorruption, err, "persist: decoding value")
	}
	return value, true, nil
}

// Put upserts key -> value.
func Put[K any, V any](b *Batch, cf *ColumnFamily[K, V], key K, value V) error {
	bkt, err := b.bucket(cf.Name)
	if err != nil {
		return err
	}
	return bkt.Put(cf.KeyCodec.Encode(key), cf.ValueCodec.Encode(value))
}

// Delete removes key, a no-op if it was already absent.
func Delete[K any, V any](b *Batch, cf *ColumnFamily[K, V], key K) error {
	bkt, err := b.bucket(cf.Name)
	if err != nil {
		return err
	}
	return bkt.Delete(cf.KeyCodec.Encode(key))
}

// Has reports whether key is present without decoding its value.
func Has[K any, V any](b *Batch, cf *ColumnFamily[K, V], key K) (bool, error) {
	bkt, err := b.bucket(cf.Name)
	if err != nil {
		return false, err
	}
	return bkt.Get(cf.KeyCodec.Encode(key)) != nil, nil
}

// ForEach visits every entry in ascending key-byte order, stopping at the
// first error fn returns.
func ForEach[K any, V any](b *Batch, cf *ColumnFamily[K, V], fn func(K, V) error) error {
	bkt, err := b.bucket(cf.Name)
	if err != nil {
		return err
	}
	return bkt.ForEach(func(k, v []byte) error {
		key, err := cf.KeyCodec.Decode(k)
		if err != nil {
			return sherrors.Wrap(sherrors.StorageCorruption, err, "persist: decoding key")
		}
		value, err := cf.ValueCodec.Decode(v)
		if err != nil {
			return sherrors.Wrap(sherrors.StorageCorruption, err, "persist: decoding value")
		}
		return fn(key, value)
	})
}

// ForEachPrefix visits every entry whose encoded key starts with prefix,
// used by the forest's owner-index column family to answer
// "files for this owner" range scans.
func ForEachPrefix[K any, V any](b *Batch, cf *ColumnFamily[K, V], prefix []byte, fn func(K, V) error) error {
	bkt, err := b.bucket(cf.Name)
	if err != nil {
		return err
	}
	c := bkt.Cursor()
	for k, v := c.Seek(prefix); k != nil && hasPrefix(k, prefix); k, v = c.Next() {
		key, err := cf.KeyCodec.Decode(k)
		if err != nil {
			return sherrors.Wrap(sherrors.StorageCorruption, err, "persist: decoding key")
		}
		value, err := cf.ValueCodec.Decode(v)
		if err != nil {
			return sherrors.Wrap(sherrors.StorageCorruption, err, "persist: decoding value")
		}
		if err := fn(key, value); err != nil {
			return err
		}
	}
	return nil
}

func hasPrefix(b, prefix []byte) bool {
	if len(b) < len(prefix) {
		return false
	}
	for i := range prefix {
		if b[i] != prefix[i] {
			return false
		}
	}
	return true
}
