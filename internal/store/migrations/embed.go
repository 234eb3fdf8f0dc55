package migrations

import "embed"

// FS contains the embedded battle archive migrations.
//
//go:embed *.sql
var FS embed.FS
