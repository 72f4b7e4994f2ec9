// Package migrations embeds the report archive schema so binaries can migrate
// without a checkout of this directory.
package migrations

import "embed"

// FS holds the golang-migrate files, named NNNNNN_title.{up,down}.sql.
//
//go:embed *.sql
var FS embed.FS
