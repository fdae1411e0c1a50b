package endpoints

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/sethvargo/go-retry"

	"github.com/mavrin/vpncore/pkg/lifecycle"
	"github.com/mavrin/vpncore/pkg/model"
	"github.com/mavrin/vpncore/pkg/server"
	"github.com/mavrin/vpncore/pkg/store"
)

const idempotencyKeyHeader = "X-Idempotency-Key"

func RegisterCredentialsEndpoints(srv *server.Server) {
	router := srv.Router

	// POST /credentials/{user}/{node} - provision or converge. The node
	// segment "-" asks the orchestrator to pick one.
	router.HandleFunc(
		"/credentials/{user}/{node}",
		func(w http.ResponseWriter, r *http.Request) {
			vars := mux.Vars(r)
			userID := vars["user"]
			nodeID := vars["node"]
			if nodeID == "-" {
				nodeID = ""
			}

			key := r.Header.Get(idempotencyKeyHeader)
			if key == "" {
				respondWithError(w, http.StatusBadRequest, idempotencyKeyHeader+" header is required")
				return
			}

			var cred *model.Credential
			backoff := retry.WithMaxRetries(
				uint64(srv.Config.RetryAttempts),
				retry.NewConstant(100*time.Millisecond),
			)
			err := retry.Do(r.Context(), backoff, func(ctx context.Context) error {
				var err error
				cred, err = srv.Lifecycle.EnsureActiveCredential(ctx, userID, nodeID, key)
				if errors.Is(err, lifecycle.ErrInFlight) || errors.Is(err, store.ErrConflict) {
					return retry.RetryableError(err)
				}
				return err
			})
			if err != nil {
				respondWithDomainError(w, err)
				return
			}

			respondWithJSON(w, http.StatusCreated, newCredentialResponse(cred))
		},
	).Methods("POST")

	// GET /credentials/{user} - the user's live credentials.
	router.HandleFunc(
		"/credentials/{user}",
		func(w http.ResponseWriter, r *http.Request) {
			userID := mux.Vars(r)["user"]

			creds, err := srv.Creds.ListLiveByUser(r.Context(), userID)
			if err != nil {
				respondWithDomainError(w, err)
				return
			}

			out := make([]credentialResponse, 0, len(creds))
			for i := range creds {
				out = append(out, newCredentialResponse(&creds[i]))
			}
			respondWithJSON(w, http.StatusOK, out)
		},
	).Methods("GET")

	// DELETE /credentials/{id} - revoke. Idempotent.
	router.HandleFunc(
		"/credentials/{id}",
		func(w http.ResponseWriter, r *http.Request) {
			credentialID := mux.Vars(r)["id"]

			reason := r.URL.Query().Get("reason")
			if reason == "" {
				reason = "revoked by operator"
			}

			if err := srv.Lifecycle.RevokeCredential(r.Context(), credentialID, reason); err != nil {
				respondWithDomainError(w, err)
				return
			}
			w.WriteHeader(http.StatusNoContent)
		},
	).Methods("DELETE")
}
