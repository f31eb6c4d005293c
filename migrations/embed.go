// Package migrations embeds the schema migrations of every supported driver.
// Each driver has its own directory named after the driver.
package migrations

import "embed"

//go:embed postgres/*.sql sqlite/*.sql
var FS embed.FS
