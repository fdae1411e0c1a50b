package endpoints

import (
	"net/http"
	"strings"

	"github.com/mavrin/vpncore/pkg/server"
)

const statusPage = `<html>
<head>
  <title>vpncore</title>
</head>
<body>
  <h1>Your vpncore server is running!</h1>
</body>
</html>
`

func handleStatus() func(w http.ResponseWriter, r *http.Request) {
	return func(w http.ResponseWriter, r *http.Request) {
		if strings.Contains(r.Header.Get("Accept"), "application/json") {
			respondWithJSON(w, http.StatusOK, map[string]string{"status": "ok"})
			return
		}
		w.Header().Set("Content-Type", "text/html")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(statusPage))
	}
}

func RegisterStatusEndpoints(srv *server.Server) {
	srv.Router.HandleFunc("/", handleStatus()).Methods("GET")
}
