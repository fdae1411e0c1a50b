package endpoints

import (
	"encoding/json"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/mavrin/vpncore/pkg/ledger"
	"github.com/mavrin/vpncore/pkg/server"
)

func RegisterSubscriptionsEndpoints(srv *server.Server) {
	router := srv.Router

	// GET /subscriptions/{user} - the user's active subscription.
	// ?history=true returns every period instead.
	router.HandleFunc(
		"/subscriptions/{user}",
		func(w http.ResponseWriter, r *http.Request) {
			userID := mux.Vars(r)["user"]

			if r.URL.Query().Get("history") == "true" {
				subs, err := srv.Ledger.History(r.Context(), userID)
				if err != nil {
					respondWithDomainError(w, err)
					return
				}
				out := make([]subscriptionResponse, 0, len(subs))
				for i := range subs {
					out = append(out, newSubscriptionResponse(&subs[i]))
				}
				respondWithJSON(w, http.StatusOK, out)
				return
			}

			sub, err := srv.Ledger.GetActive(r.Context(), userID)
			if err != nil {
				respondWithDomainError(w, err)
				return
			}
			respondWithJSON(w, http.StatusOK, newSubscriptionResponse(sub))
		},
	).Methods("GET")
}

type paymentWebhook struct {
	UserID         string  `json:"user_id"`
	Username       string  `json:"username"`
	IdempotencyKey string  `json:"idempotency_key"`
	Amount         float64 `json:"amount"`
	Method         string  `json:"method"`
	Days           int     `json:"days"`
	PlanType       string  `json:"plan_type"`
}

type paymentResponse struct {
	Subscription *subscriptionResponse `json:"subscription,omitempty"`
	Replayed     bool                  `json:"replayed"`
}

func RegisterPaymentWebhook(srv *server.Server) {
	// POST /webhooks/payment - record a confirmed payment. Replays of
	// the same provider event are acknowledged without effect.
	srv.Router.HandleFunc(
		"/webhooks/payment",
		func(w http.ResponseWriter, r *http.Request) {
			var hook paymentWebhook
			if err := json.NewDecoder(r.Body).Decode(&hook); err != nil {
				respondWithError(w, http.StatusBadRequest, "malformed payment webhook: "+err.Error())
				return
			}
			if hook.UserID == "" {
				respondWithError(w, http.StatusBadRequest, "user_id is required")
				return
			}
			if hook.IdempotencyKey == "" {
				respondWithError(w, http.StatusBadRequest, "idempotency_key is required")
				return
			}
			if hook.Days <= 0 {
				respondWithError(w, http.StatusBadRequest, "days must be positive")
				return
			}

			sub, replayed, err := srv.Ledger.RecordPayment(r.Context(), ledger.Payment{
				UserID:         hook.UserID,
				Username:       hook.Username,
				IdempotencyKey: hook.IdempotencyKey,
				Amount:         hook.Amount,
				Method:         hook.Method,
				Days:           hook.Days,
				PlanType:       hook.PlanType,
			})
			if err != nil {
				respondWithDomainError(w, err)
				return
			}

			resp := paymentResponse{Replayed: replayed}
			if sub != nil {
				sr := newSubscriptionResponse(sub)
				resp.Subscription = &sr
			}
			code := http.StatusCreated
			if replayed {
				code = http.StatusOK
			}
			respondWithJSON(w, code, resp)
		},
	).Methods("POST")
}
