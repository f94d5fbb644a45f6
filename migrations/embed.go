// Package migrations embeds the SQL schema migrations into the binary.
package migrations

import "embed"

//go:embed *.sql
var files embed.FS

// FS holds every *.up.sql / *.down.sql file in this directory.
var FS = files
