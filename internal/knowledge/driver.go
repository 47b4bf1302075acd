//go:build !sqlite_vec

package knowledge

import (
	_ "modernc.org/sqlite"
)

// Pure-Go SQLite driver. Builds everywhere without cgo; similarity
// search runs as an in-process scan (see search.go).
const sqliteDriverName = "sqlite"
