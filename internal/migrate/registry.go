package migrate

import "fmt"

// Registry binds a schema target (one file format) to its current version
// and migration list. Each target gets its own instance so version numbers
// never collide across formats.
type Registry struct {
	// CurrentVersion is the schema version new documents are written at.
	CurrentVersion int
	// Migrations is the versioned upgrade list. Exported so tests can swap
	// in a synthetic list.
	Migrations []Migration
}

// Register adds a migration, panicking on a duplicate version so a conflict
// fails at init time rather than corrupting documents at load time.
func (r *Registry) Register(m Migration) {
	for _, existing := range r.Migrations {
		if existing.Version == m.Version {
			panic(fmt.Sprintf("migrate: duplicate migration version %d (description: %q)", m.Version, m.Description))
		}
	}
	r.Migrations = append(r.Migrations, m)
}

// NeedsMigration reports whether a document at fileVersion must be migrated
// and re-saved.
func (r *Registry) NeedsMigration(fileVersion int) bool {
	return NeedsMigration(fileVersion, r.CurrentVersion, r.Migrations)
}

// Run applies the registry's migrations to a document at fromVersion.
func (r *Registry) Run(data []byte, fromVersion int) ([]byte, int, error) {
	return Run(data, fromVersion, r.Migrations)
}

// Config is the migration registry for config.toml files.
var Config = &Registry{CurrentVersion: 1}
