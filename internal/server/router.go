package server

import (
	"net/http"

	"github.com/gorilla/mux"
)

// NewRouter wires HTTP routes to the server's handlers.
func NewRouter(s *Server) http.Handler {
	router := mux.NewRouter()
	router.HandleFunc("/uplink/build", s.handleBuild).Methods(http.MethodPost)
	router.HandleFunc("/uplink/decode", s.handleDecode).Methods(http.MethodPost)
	router.HandleFunc("/spacepacket/decode", s.handleSpacePacketDecode).Methods(http.MethodPost)
	router.HandleFunc("/commands", s.handleCommands).Methods(http.MethodGet)
	router.HandleFunc("/metrics", s.handleMetrics).Methods(http.MethodGet)
	router.HandleFunc("/artifacts", s.handleArtifacts).Methods(http.MethodGet)
	router.HandleFunc("/artifacts/{id}", s.handleArtifactDownload).Methods(http.MethodGet)
	router.HandleFunc("/ws", s.serveWS)
	router.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, errMethodNotAllowed)
	})
	return router
}
