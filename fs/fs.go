package appfs

import "embed"

// FS holds the migrations and assets shipped with the binaries.
//go:embed migrations all:assets
var FS embed.FS
