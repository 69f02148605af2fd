package bayeux

import (
	"net/http"

	"github.com/gorilla/mux"
)

// NewRouter mounts an HTTPTransport at mountPath using gorilla/mux, mirroring
// the teacher's NewRouter/Install split (sockjs/router.go) minus the dozen
// transport-specific subroutes sockjs needs - Bayeux has exactly one wire
// endpoint.
func NewRouter(mountPath string, t *HTTPTransport) http.Handler {
	router := mux.NewRouter()
	router.HandleFunc(mountPath, t.ServeHTTP).Methods(http.MethodPost)
	return router
}

// Install registers a Bayeux endpoint on http.DefaultServeMux, matching the
// teacher's Install convenience wrapper.
func Install(mountPath string, t *HTTPTransport) http.Handler {
	handler := NewRouter(mountPath, t)
	http.Handle(mountPath, handler)
	return handler
}
