// Package migrate upgrades versioned on-disk documents, applying each
// registered migration in version order until the document reaches the
// current schema.
package migrate

import (
	"fmt"
	"log/slog"
	"sort"
)

// ///////////////////////////////////////////////
// Types
// ///////////////////////////////////////////////

// Migration is one schema step. Upgrade receives a document at the previous
// version and must return it at [Migration.Version].
type Migration struct {
	// Version is the schema version this migration produces.
	Version int
	// Description labels the step in log output.
	Description string
	// Upgrade transforms the raw document bytes.
	Upgrade func(data []byte) ([]byte, error)
}

// ///////////////////////////////////////////////
// Public API
// ///////////////////////////////////////////////

// Run applies, in ascending version order, every migration whose Version is
// greater than fromVersion. It returns the transformed document and the
// version it reached; on error the document is returned nil with the last
// version that applied cleanly.
func Run(data []byte, fromVersion int, migrations []Migration) ([]byte, int, error) {
	sorted := make([]Migration, len(migrations))
	copy(sorted, migrations)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].Version < sorted[j].Version
	})
	version := fromVersion
	for _, m := range sorted {
		if version < m.Version {
			slog.Info("applying migration", "version", m.Version, "description", m.Description)
			var err error
			data, err = m.Upgrade(data)
			if err != nil {
				return nil, version, fmt.Errorf("migration to v%d failed: %w", m.Version, err)
			}
			version = m.Version
		}
	}
	return data, version, nil
}

// NeedsMigration reports whether a document at fileVersion is out of step
// with currentVersion or has pending registered migrations. A version ahead
// of current also counts: the document gets normalized back down by
// re-saving.
func NeedsMigration(fileVersion, currentVersion int, migrations []Migration) bool {
	if fileVersion != currentVersion {
		return true
	}
	for _, m := range migrations {
		if fileVersion < m.Version {
			return true
		}
	}
	return false
}
