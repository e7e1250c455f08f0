package uistatic

import (
	"embed"
	"io/fs"
	"net/http"
	"path"
	"strings"
)

//go:embed static
var staticFS embed.FS

// Prefix is the URL path the dashboard assets are mounted under.
const Prefix = "/ui/static/"

// Handler serves the embedded dashboard assets below Prefix. Directory listings are
// not exposed.
func Handler() http.Handler {
	sub, err := fs.Sub(staticFS, "static")
	if err != nil {
		return http.NotFoundHandler()
	}
	fileServer := http.StripPrefix(strings.TrimSuffix(Prefix, "/"), http.FileServer(http.FS(sub)))

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		name := path.Clean(strings.TrimPrefix(r.URL.Path, Prefix))
		if name == "." || name == "" || strings.HasPrefix(name, "..") {
			http.NotFound(w, r)
			return
		}
		info, err := fs.Stat(sub, name)
		if err != nil || info.IsDir() {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Cache-Control", "public, max-age=300")
		fileServer.ServeHTTP(w, r)
	})
}
