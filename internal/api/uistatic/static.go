// Package uistatic serves the embedded dataset builder page.
package uistatic

import (
	"embed"
	"io"
	"io/fs"
	"net/http"
	"path"
	"strings"
)

//go:embed all:app
var appFS embed.FS

// apiPrefixes are never answered with the builder page, so clients calling a
// wrong endpoint get a 404 instead of HTML.
var apiPrefixes = []string{"api/", "v1/"}

func Handler() http.Handler {
	sub, err := fs.Sub(appFS, "app")
	if err != nil {
		return http.NotFoundHandler()
	}
	assets := http.FileServer(http.FS(sub))

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		name := path.Clean(strings.TrimPrefix(r.URL.Path, "/"))
		if name == "." || name == "" || name == "index.html" {
			serveBuilder(w, r, sub)
			return
		}
		for _, prefix := range apiPrefixes {
			if strings.HasPrefix(name+"/", prefix) {
				http.NotFound(w, r)
				return
			}
		}
		if _, err := fs.Stat(sub, name); err == nil {
			assets.ServeHTTP(w, r)
			return
		}
		serveBuilder(w, r, sub)
	})
}

func serveBuilder(w http.ResponseWriter, r *http.Request, filesystem fs.FS) {
	page, err := filesystem.Open("index.html")
	if err != nil {
		http.NotFound(w, r)
		return
	}
	defer func() { _ = page.Close() }()
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-cache")
	_, _ = io.Copy(w, page)
}
