package endpoints

import (
	"github.com/mavrin/vpncore/pkg/server"
	"github.com/mavrin/vpncore/pkg/server/middleware"
)

// RegisterAll registers every API endpoint on the server and guards
// them with bearer-token authentication. The root status page stays
// public.
func RegisterAll(srv *server.Server, signingKey []byte) {
	auth := middleware.NewAuthenticator(signingKey, "/")
	srv.Router.Use(auth.Middleware)

	RegisterStatusEndpoints(srv)
	RegisterCredentialsEndpoints(srv)
	RegisterSubscriptionsEndpoints(srv)
	RegisterPaymentWebhook(srv)
	RegisterNodesEndpoints(srv)
}
