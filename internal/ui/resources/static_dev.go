//go:build dev

package resources

import (
	"io/fs"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"runtime"
)

// staticDir resolves the static directory next to this file so edits are
// picked up without a rebuild.
func staticDir() string {
	_, filename, _, ok := runtime.Caller(0)
	if !ok {
		return StaticDirectoryPath
	}
	return filepath.Join(filepath.Dir(filename), "static")
}

func staticFiles() fs.FS {
	return os.DirFS(staticDir())
}

// Handler serves assets from the filesystem under /static/.
func Handler() http.Handler {
	slog.Info("static assets served from filesystem", "path", staticDir())
	return http.StripPrefix("/static/", http.FileServer(http.FS(staticFiles())))
}

// Index serves the canvas page.
func Index() http.Handler {
	return indexHandler(staticFiles())
}
