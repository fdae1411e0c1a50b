package endpoints

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/mavrin/vpncore/pkg/lifecycle"
	"github.com/mavrin/vpncore/pkg/node"
	"github.com/mavrin/vpncore/pkg/store"
)

func respondWithError(w http.ResponseWriter, code int, payload interface{}) {
	respondWithJSON(w, code, map[string]interface{}{"error": payload})
}

func respondWithJSON(w http.ResponseWriter, code int, payload interface{}) {
	response, _ := json.Marshal(payload)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_, _ = w.Write(response)
}

// respondWithDomainError maps the domain sentinels to HTTP statuses.
func respondWithDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, lifecycle.ErrNotEntitled):
		respondWithError(w, http.StatusForbidden, err.Error())
	case errors.Is(err, lifecycle.ErrNoCapacity):
		respondWithError(w, http.StatusServiceUnavailable, err.Error())
	case errors.Is(err, lifecycle.ErrInFlight), errors.Is(err, store.ErrConflict):
		respondWithError(w, http.StatusConflict, err.Error())
	case errors.Is(err, store.ErrNotFound):
		respondWithError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, lifecycle.ErrProvisionFailed), errors.Is(err, node.ErrNodeUnavailable):
		respondWithError(w, http.StatusBadGateway, err.Error())
	default:
		respondWithError(w, http.StatusInternalServerError, err.Error())
	}
}
