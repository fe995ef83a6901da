package api

import (
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/guardline-io/guardline/pkg/logger"
)

// StaticFileHandler serves the web client assets with an index.html fallback
// for client-side routes.
type StaticFileHandler struct {
	dir    string
	fs     http.Handler
	logger *logger.Logger
}

// NewStaticFileHandler creates a handler rooted at the given directory
func NewStaticFileHandler(dir string, log *logger.Logger) *StaticFileHandler {
	return &StaticFileHandler{
		dir:    dir,
		fs:     http.FileServer(http.Dir(dir)),
		logger: log.Named("static"),
	}
}

func (h *StaticFileHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	// Reject path traversal before touching the filesystem
	if strings.Contains(r.URL.Path, "..") {
		http.NotFound(w, r)
		return
	}

	path := filepath.Join(h.dir, filepath.Clean(r.URL.Path))
	if info, err := os.Stat(path); err == nil && !info.IsDir() {
		h.fs.ServeHTTP(w, r)
		return
	}

	// Unknown paths fall back to the SPA entry point
	index := filepath.Join(h.dir, "index.html")
	if _, err := os.Stat(index); err != nil {
		http.NotFound(w, r)
		return
	}
	http.ServeFile(w, r, index)
}
