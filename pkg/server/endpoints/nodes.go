package endpoints

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/mavrin/vpncore/pkg/server"
)

func RegisterNodesEndpoints(srv *server.Server) {
	router := srv.Router

	// GET /nodes - fleet state with capacity and health.
	router.HandleFunc(
		"/nodes",
		func(w http.ResponseWriter, r *http.Request) {
			nodes, err := srv.Nodes.List(r.Context())
			if err != nil {
				respondWithDomainError(w, err)
				return
			}

			out := make([]nodeResponse, 0, len(nodes))
			for i := range nodes {
				out = append(out, newNodeResponse(&nodes[i]))
			}
			respondWithJSON(w, http.StatusOK, out)
		},
	).Methods("GET")

	// POST /nodes/{id}/reconcile - align the store with the node's
	// actual grants and resolve stale operations.
	router.HandleFunc(
		"/nodes/{id}/reconcile",
		func(w http.ResponseWriter, r *http.Request) {
			nodeID := mux.Vars(r)["id"]

			report, err := srv.Lifecycle.ReconcileNode(r.Context(), nodeID)
			if err != nil {
				respondWithDomainError(w, err)
				return
			}
			respondWithJSON(w, http.StatusOK, report)
		},
	).Methods("POST")
}
