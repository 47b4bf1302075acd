//go:build sqlite_vec && cgo

package knowledge

import (
	vec "github.com/asg017/sqlite-vec-go-bindings/cgo"
	_ "github.com/mattn/go-sqlite3"
)

// cgo SQLite driver with the sqlite-vec extension. Enables the vec0
// ANN index path in search.go.
const sqliteDriverName = "sqlite3"

func init() {
	// Register sqlite-vec as an auto-loadable extension.
	vec.Auto()
}
