// Package server provides the HTTP front end for the credential
// lifecycle.
//
// It uses gorilla/mux for routing and serves two listeners: the API
// itself and a token-free liveness endpoint on a separate port. All API
// routes except the root status page require a bearer token issued by
// vpnctl token.
//
// # Server Setup
//
//	srv := server.NewServer(cfg, orchestrator, ledger, creds, nodes, dbHealth, logger)
//	endpoints.RegisterAll(srv, signingKey)
//	go srv.StartHealth()
//	if err := srv.Start(); err != nil {
//	    log.Fatal(err)
//	}
//
// # Endpoints
//
//   - POST /credentials/{user}/{node} - provision or converge a credential
//   - GET /credentials/{user} - list a user's live credentials
//   - DELETE /credentials/{id} - revoke a credential
//   - GET /subscriptions/{user} - active subscription
//   - POST /webhooks/payment - record a payment, extend the subscription
//   - GET /nodes - fleet state
//   - POST /nodes/{id}/reconcile - reconcile one node against its panel
//   - GET / - status page; GET /health on the health port - liveness
package server
