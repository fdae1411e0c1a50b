package endpoints

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/mavrin/vpncore/pkg/config"
	"github.com/mavrin/vpncore/pkg/server"
	"github.com/mavrin/vpncore/pkg/store"
	"github.com/mavrin/vpncore/pkg/token"
)

var testSigningKey = []byte("0123456789abcdef0123456789abcdef")

func newTestServer(t *testing.T, lc server.Lifecycle, lg server.Ledger, creds store.CredentialsStore, nodes store.NodesStore) *server.Server {
	t.Helper()
	cfg := &config.Config{
		BindAddress:        "127.0.0.1",
		Port:               8000,
		HealthPort:         8080,
		RetryAttempts:      2,
		NodeTimeoutSeconds: 1,
	}
	srv := server.NewServer(cfg, lc, lg, creds, nodes, nil, zerolog.Nop())
	RegisterAll(srv, testSigningKey)
	return srv
}

func authedRequest(t *testing.T, method, target string, body io.Reader) *http.Request {
	t.Helper()
	raw, err := token.Issue(testSigningKey, "endpoints-test", time.Hour)
	require.NoError(t, err)

	req := httptest.NewRequest(method, target, body)
	req.Header.Set("Authorization", "Bearer "+raw)
	return req
}

func serve(srv *server.Server, req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	srv.Router.ServeHTTP(w, req)
	return w
}
