// Package web holds the dashboard's page templates and static assets.
package web

import "embed"

// Templates embeds the layouts, partials and pages parsed by the view engine.
//
//go:embed templates/layouts/*.html templates/partials/*.html templates/pages/*.html
var Templates embed.FS

// Static embeds the stylesheet served under /static.
//
//go:embed static/css/*.css
var Static embed.FS
