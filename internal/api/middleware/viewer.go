package middleware

import (
	"context"
	"net/http"
	"regexp"

	"github.com/cloo-solutions/studyrag/internal/api"
)

type contextKey string

const ViewerIDKey contextKey = "viewer_id"

// ViewerHeader names the client that owns per-viewer state such as the
// document preview.
const ViewerHeader = "X-Viewer-ID"

// DefaultViewerID is used when the client sends no viewer header.
const DefaultViewerID = "default"

var viewerIDPattern = regexp.MustCompile(`^[A-Za-z0-9_\-]{1,64}$`)

// Viewer reads the viewer id header into the request context.
func Viewer(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		viewerID := r.Header.Get(ViewerHeader)
		if viewerID == "" {
			viewerID = DefaultViewerID
		}
		if !viewerIDPattern.MatchString(viewerID) {
			api.Error(w, http.StatusBadRequest, "invalid viewer id")
			return
		}

		ctx := context.WithValue(r.Context(), ViewerIDKey, viewerID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// GetViewerID returns the viewer ID from context.
func GetViewerID(ctx context.Context) string {
	viewerID, _ := ctx.Value(ViewerIDKey).(string)
	return viewerID
}
