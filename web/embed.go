// Package web holds the page templates and browser assets compiled into the
// finflare binary.
package web

import "embed"

// TemplatesFS holds layout.html, partials.html and one file per page.
//
//go:embed templates/*.html
var TemplatesFS embed.FS

// StaticFS is served under /static/.
//
//go:embed static/*.css static/*.js
var StaticFS embed.FS
