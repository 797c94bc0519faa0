// Package persist is the typed column-family key-value layer every other
// package persists through. It wraps go.etcd.io/bbolt (an embedded,
// single-file B+tree store) behind a generic ColumnFamily[K, V] so that
// callers never marshal or unmarshal by hand, mirroring the column-family
// abstraction the node's RocksDB layer exposes in the host-chain runtime.
//
// A Store owns exactly one bbolt.DB. Column families are bbolt top-level
// buckets, created up front by Open so that every caller can assume its
// bucket already exists. Reads and writes both go through a Batch, which
// is a thin wrapper around a bbolt transaction; Update batches are
// atomic, matching the WriteBuffer-then-flush pattern the store is
// grounded on, except there is no separate explicit flush step — a bbolt
// Update commits (or rolls back entirely) when the callback returns.
package persist

import (
	"fmt"

	"go.etcd.io/bbolt"

	"github.com/storagehub-network/sh-core/sherrors"
)

// SchemaVersionBucket is reserved for the migration runner; no caller may
// declare a column family with this name.
const SchemaVersionBucket = "__schema_version__"

var schemaVersionKey = []byte("version")

// Store is the opened database handle shared by every column family.
type Store struct {
	db *bbolt.DB
}

// Open opens (creating if absent) a bbolt database at path, ensures every
// name in cfNames exists as a bucket, and runs any pending migrations.
func Open(path string, cfNames []string, migrations []Migration) (*Store, error) {
	db, err := bbolt.Open(path, 0o600, nil)
	if err != nil {
		return nil, sherrors.Wrap(sherrors.StorageCorruption, err, "persist: opening database")
	}
	s := &Store{db: db}

	runner := NewMigrationRunner(migrations)
	if err := runner.ValidateOrder(); err != nil {
		db.Close()
		return nil, err
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		if _, err := tx.CreateBucketIfNotExists([]byte(SchemaVersionBucket)); err != nil {
			return err
		}
		deprecated := runner.AllDeprecatedColumnFamilies()
		for _, name := range cfNames {
			if deprecated[name] {
				return fmt.Errorf("persist: column family %q is permanently deprecated and cannot be reopened", name)
			}
			if _, err := tx.CreateBucketIfNotExists([]byte(name)); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, sherrors.Wrap(sherrors.StorageCorruption, err, "persist: preparing column families")
	}

	if _, err := runner.RunPending(db); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// Close releases the underlying file handle.
func (s *Store) Close() error {
	return s.db.Close()
}

// Batch is a transaction-scoped handle column-family accessors read and
// write through.
type Batch struct {
	tx *bbolt.Tx
}

// View runs fn in a read-only transaction.
func (s *Store) View(fn func(*Batch) error) error {
	return s.db.View(func(tx *bbolt.Tx) error {
		return fn(&Batch{tx: tx})
	})
}

// Update runs fn in a read-write transaction; all writes made through the
// Batch commit atomically together, or none do.
func (s *Store) Update(fn func(*Batch) error) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		return fn(&Batch{tx: tx})
	})
}

func (b *Batch) bucket(name string) (*bbolt.Bucket, error) {
	bkt := b.tx.Bucket([]byte(name))
	if bkt == nil {
		return nil, fmt.Errorf("persist: column family %q was never opened", name)
	}
	return bkt, nil
}
