// Package assets provides access to embedded static files served by the web server.
package assets

import (
	"embed"
)

//go:embed *.min.html
var embedFS embed.FS

// ReadFile returns the content of a specific file from the embedded assets by its name.
func ReadFile(name string) ([]byte, error) {
	return embedFS.ReadFile(name)
}
