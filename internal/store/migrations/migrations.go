// Package migrations embeds the store's SQL schema files.
package migrations

import "embed"

//go:embed *.sql
var FS embed.FS
