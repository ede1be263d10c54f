// Package migrations holds the connector's goose SQL migrations.
package migrations

import "embed"

// FS is passed to goose.SetBaseFS; files sit at its root.
//
//go:embed *.sql
var FS embed.FS
