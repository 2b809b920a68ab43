// Package web holds the browser client served at /.
package web

import (
	"embed"
	"net/http"
)

//go:embed index.html styles.css app.js
var assets embed.FS

// FS serves the embedded client.
func FS() http.FileSystem {
	return http.FS(assets)
}
