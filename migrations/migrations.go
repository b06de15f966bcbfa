// Package migrations embeds the schema for the local meet store and the
// remote archive so initdb needs no files on disk.
package migrations

import "embed"

//go:embed local/*.sql
var Local embed.FS

//go:embed archive/*.sql
var Archive embed.FS
