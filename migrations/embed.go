// Package migrations holds the schema, one directory per database driver.
package migrations

import "embed"

//go:embed sqlite3/*.sql postgres/*.sql
var FS embed.FS
