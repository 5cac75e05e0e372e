// Package migrations carries the schema for the record store.
package migrations

import "embed"

//go:embed *.sql
var FS embed.FS
