package server

import (
	"io"
	"net/http"
	"path"
	"strings"
)

// handleUI serves the embedded static UI. Unknown paths fall back to
// index.html so client-side routes survive a reload.
func (s *Server) handleUI(w http.ResponseWriter, r *http.Request) {
	name := strings.TrimPrefix(path.Clean(r.URL.Path), "/")
	if name == "" {
		name = "index.html"
	}

	if f, err := s.ui.Open(name); err == nil {
		defer f.Close()
		w.Header().Set("Content-Type", contentTypeFor(name))
		_, _ = io.Copy(w, f)
		return
	}

	// SPA fallback.
	f, err := s.ui.Open("index.html")
	if err != nil {
		http.NotFound(w, r)
		return
	}
	defer f.Close()
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = io.Copy(w, f)
}

func contentTypeFor(name string) string {
	switch path.Ext(name) {
	case ".html":
		return "text/html; charset=utf-8"
	case ".js":
		return "text/javascript; charset=utf-8"
	case ".css":
		return "text/css; charset=utf-8"
	case ".svg":
		return "image/svg+xml"
	case ".png":
		return "image/png"
	case ".jpg", ".jpeg":
		return "image/jpeg"
	case ".ico":
		return "image/x-icon"
	case ".json":
		return "application/json"
	default:
		return "application/octet-stream"
	}
}
