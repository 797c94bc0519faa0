package persist

import (
	"encoding/binary"
	"fmt"
	"sort"

	"go.etcd.io/bbolt"

	"github.com/rs/zerolog/log"
)

// Migration describes one schema-version step: a set of column families
// that become deprecated at that version and must be dropped. Deprecated
// names are permanently reserved — Open refuses to reopen a bucket name
// that any migration has ever deprecated, so a future schema can never
// confuse old data left behind by a partially-applied drop with new data
// under the same name.
type Migration interface {
	Version() uint32
	DeprecatedColumnFamilies() []string
	Description() string
}

// MigrationRunner applies pending migrations in ascending version order
// and tracks the applied version in SchemaVersionBucket.
type MigrationRunner struct {
	migrations []Migration
}

// NewMigrationRunner sorts migrations by version and returns a runner.
func NewMigrationRunner(migrations []Migration) *MigrationRunner {
	sorted := append([]Migration(nil), migrations...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Version() < sorted[j].Version() })
	return &MigrationRunner{migrations: sorted}
}

// LatestVersion returns the highest version among the registered
// migrations, 0 if there are none.
func (r *MigrationRunner) LatestVersion() uint32 {
	if len(r.migrations) == 0 {
		return 0
	}
	return r.migrations[len(r.migrations)-1].Version()
}

// AllDeprecatedColumnFamilies returns the set of every name any
// migration has ever deprecated.
func (r *MigrationRunner) AllDeprecatedColumnFamilies() map[string]bool {
	out := map[string]bool{}
	for _, m := range r.migrations {
		for _, name := range m.DeprecatedColumnFamilies() {
			out[name] = true
		}
	}
	return out
}

// ValidateOrder checks that migrations are gap-free, start at 1, and
// have no duplicate version numbers.
func (r *MigrationRunner) ValidateOrder() error {
	if len(r.migrations) == 0 {
		return nil
	}
	seen := map[uint32]bool{}
	for _, m := range r.migrations {
		if seen[m.Version()] {
			return fmt.Errorf("persist: duplicate migration version %d", m.Version())
		}
		seen[m.Version()] = true
	}
	if r.migrations[0].Version() != 1 {
		return fmt.Errorf("persist: migrations must start from version 1")
	}
	for i, m := range r.migrations {
		expected := uint32(i + 1)
		if m.Version() != expected {
			return fmt.Errorf("persist: gap in migration sequence: expected version %d, found %d", expected, m.Version())
		}
	}
	return nil
}

func readSchemaVersion(db *bbolt.DB) (uint32, bool, error) {
	var version uint32
	var found bool
	err := db.View(func(tx *bbolt.Tx) error {
		bkt := tx.Bucket([]byte(SchemaVersionBucket))
		if bkt == nil {
			return nil
		}
		raw := bkt.Get(schemaVersionKey)
		if raw == nil {
			return nil
		}
		if len(raw) != 4 {
			return fmt.Errorf("persist: schema version has wrong length %d", len(raw))
		}
		version = binary.BigEndian.Uint32(raw)
		found = true
		return nil
	})
	return version, found, err
}

func writeSchemaVersion(db *bbolt.DB, version uint32) error {
	return db.Update(func(tx *bbolt.Tx) error {
		bkt, err := tx.CreateBucketIfNotExists([]byte(SchemaVersionBucket))
		if err != nil {
			return err
		}
		b := make([]byte, 4)
		binary.BigEndian.PutUint32(b, version)
		return bkt.Put(schemaVersionKey, b)
	})
}

// RunPending validates the migration configuration, refuses a downgrade
// (a database stamped with a version newer than this binary knows
// about), sweeps any deprecated column family left over from a crash
// mid-migration or from manual tampering, and then applies every
// migration above the current version in order.
func (r *MigrationRunner) RunPending(db *bbolt.DB) (uint32, error) {
	if err := r.ValidateOrder(); err != nil {
		return 0, err
	}
	current, _, err := readSchemaVersion(db)
	if err != nil {
		return 0, err
	}
	latest := r.LatestVersion()
	if current > latest {
		return 0, fmt.Errorf("persist: cannot downgrade schema version from %d to %d", current, latest)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		for _, m := range r.migrations {
			if m.Version() > current {
				continue
			}
			for _, name := range m.DeprecatedColumnFamilies() {
				if tx.Bucket([]byte(name)) != nil {
					log.Info().Uint32("version", m.Version()).Str("cf", name).Msg("persist: dropping straggler column family")
					if err := tx.DeleteBucket([]byte(name)); err != nil {
						return fmt.Errorf("persist: dropping straggler column family %q: %w", name, err)
					}
				}
			}
		}
		return nil
	})
	if err != nil {
		return 0, err
	}

	applied := current
	for _, m := range r.migrations {
		if m.Version() <= current {
			continue
		}
		log.Info().Uint32("version", m.Version()).Str("description", m.Description()).Msg("persist: applying migration")
		err := db.Update(func(tx *bbolt.Tx) error {
			for _, name := range m.DeprecatedColumnFamilies() {
				if tx.Bucket([]byte(name)) != nil {
					if err := tx.DeleteBucket([]byte(name)); err != nil {
						return fmt.Errorf("persist: dropping column family %q: %w", name, err)
					}
				}
			}
			return nil
		})
		if err != nil {
			return applied, err
		}
		if err := writeSchemaVersion(db, m.Version()); err != nil {
			return applied, err
		}
		applied = m.Version()
	}
	return applied, nil
}
