// Package fs exposes embedded application assets: database migrations and
// email templates.
package fs

import "embed"

//go:embed migrations templates
var FS embed.FS
