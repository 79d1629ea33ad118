// Package migrations embeds the SQL schema files applied at deploy time.
package migrations

import "embed"

//go:embed *.sql
var FS embed.FS
