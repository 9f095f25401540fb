package migrations

import (
	"embed"
	"fmt"
	"io/fs"
)

//go:embed sqlite/*.sql postgres/*.sql
var files embed.FS

// For returns the migration set for a database driver
func For(driver string) (fs.FS, error) {
	switch driver {
	case "sqlite":
		return fs.Sub(files, "sqlite")
	case "postgres", "pgx":
		return fs.Sub(files, "postgres")
	default:
		return nil, fmt.Errorf("no migrations for driver %q", driver)
	}
}
