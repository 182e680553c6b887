//go:build !dev

package resources

import (
	"embed"
	"io/fs"
	"net/http"
)

//go:embed static/*
var staticFS embed.FS

func staticFiles() fs.FS {
	fsys, _ := fs.Sub(staticFS, "static")
	return fsys
}

// Handler serves the embedded assets under /static/.
func Handler() http.Handler {
	fileServer := http.StripPrefix("/static/", http.FileServer(http.FS(staticFiles())))
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Cache-Control", "public, max-age=86400")
		fileServer.ServeHTTP(w, r)
	})
}

// Index serves the canvas page.
func Index() http.Handler {
	return indexHandler(staticFiles())
}
