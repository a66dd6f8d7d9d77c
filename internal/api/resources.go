package api

import (
	"errors"
	"io/fs"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/starford/jobpilot/internal/resource"
)

// ResourceHandler serves GET /app-resource/* from the bundled resources
// directory.
func ResourceHandler(res *resource.Resolver) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		name := strings.TrimPrefix(chi.URLParam(r, "*"), "/")
		if name == "" {
			writeJSON(w, http.StatusNotFound, errorBody("not found"))
			return
		}
		f, err := res.Open(name)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				writeJSON(w, http.StatusNotFound, errorBody("not found"))
				return
			}
			writeJSON(w, http.StatusBadRequest, errorBody("invalid resource path"))
			return
		}
		defer f.Close()

		info, err := f.Stat()
		if err != nil || info.IsDir() {
			writeJSON(w, http.StatusNotFound, errorBody("not found"))
			return
		}
		http.ServeContent(w, r, info.Name(), info.ModTime(), f)
	}
}
