package httpapi

import (
	"net/http"
	"strings"

	"github.com/umarkhanovv/roadwatch/internal/logging"
	"github.com/umarkhanovv/roadwatch/internal/uploads"
)

// MediaAPI serves stored uploads read-only.
type MediaAPI struct {
	uploads *uploads.Store
	logger  *logging.Logger
}

func NewMediaAPI(uploadStore *uploads.Store, logger *logging.Logger) *MediaAPI {
	return &MediaAPI{uploads: uploadStore, logger: logger}
}

func (api *MediaAPI) RegisterRoutes(mux *http.ServeMux, corsMiddleware func(http.HandlerFunc) http.HandlerFunc) {
	mux.HandleFunc("/uploads/", corsMiddleware(api.handleGet))
}

// handleGet handles GET /uploads/{name}
func (api *MediaAPI) handleGet(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	name := strings.TrimPrefix(r.URL.Path, "/uploads/")
	f, err := api.uploads.Open(name)
	if err != nil {
		api.logger.Debug("Upload not served", logging.WithFields(map[string]interface{}{
			"name":  name,
			"error": err.Error(),
		}))
		writeError(w, http.StatusNotFound, "not_found", "file not found")
		return
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil || info.IsDir() {
		writeError(w, http.StatusNotFound, "not_found", "file not found")
		return
	}
	http.ServeContent(w, r, info.Name(), info.ModTime(), f)
}
