package xui

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mavrin/vpncore/pkg/node"
)

// fakePanel simulates the 3x-ui HTTP API with session cookies.
type fakePanel struct {
	mu       sync.Mutex
	clients  map[string]map[string]interface{} // clientID -> client object
	sessions map[string]bool
	logins   int
	// expireSessions makes every existing session invalid, forcing the
	// adapter to re-login.
	expireSessions bool
}

func newFakePanel() *fakePanel {
	return &fakePanel{
		clients:  make(map[string]map[string]interface{}),
		sessions: make(map[string]bool),
	}
}

func writeEnvelope(w http.ResponseWriter, success bool, msg string, obj interface{}) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]interface{}{
		"success": success,
		"msg":     msg,
		"obj":     obj,
	})
}

func (p *fakePanel) authorized(r *http.Request) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.expireSessions {
		return false
	}
	c, err := r.Cookie("3x-ui")
	return err == nil && p.sessions[c.Value]
}

func (p *fakePanel) handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/login", func(w http.ResponseWriter, r *http.Request) {
		_ = r.ParseForm()
		if r.PostFormValue("username") != "admin" || r.PostFormValue("password") != "secret" {
			writeEnvelope(w, false, "invalid credentials", nil)
			return
		}
		p.mu.Lock()
		p.logins++
		p.expireSessions = false
		session := fmt.Sprintf("session-%d", p.logins)
		p.sessions[session] = true
		p.mu.Unlock()
		http.SetCookie(w, &http.Cookie{Name: "3x-ui", Value: session, Path: "/"})
		writeEnvelope(w, true, "", nil)
	})

	mux.HandleFunc("/panel/api/inbounds/addClient", func(w http.ResponseWriter, r *http.Request) {
		if !p.authorized(r) {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		var payload struct {
			ID       int    `json:"id"`
			Settings string `json:"settings"`
		}
		_ = json.NewDecoder(r.Body).Decode(&payload)
		var settings struct {
			Clients []map[string]interface{} `json:"clients"`
		}
		_ = json.Unmarshal([]byte(payload.Settings), &settings)
		p.mu.Lock()
		defer p.mu.Unlock()
		for _, c := range settings.Clients {
			id, _ := c["id"].(string)
			for _, existing := range p.clients {
				if existing["email"] == c["email"] {
					writeEnvelope(w, false, "Duplicate email: "+c["email"].(string), nil)
					return
				}
			}
			p.clients[id] = c
		}
		writeEnvelope(w, true, "", nil)
	})

	mux.HandleFunc("/panel/api/inbounds/get/", func(w http.ResponseWriter, r *http.Request) {
		if !p.authorized(r) {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		writeEnvelope(w, true, "", map[string]interface{}{
			"id":             7,
			"port":           443,
			"protocol":       "vless",
			"streamSettings": `{"network":"tcp","security":"reality"}`,
		})
	})

	mux.HandleFunc("/panel/api/inbounds/getClientTraffics/", func(w http.ResponseWriter, r *http.Request) {
		if !p.authorized(r) {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		email := strings.TrimPrefix(r.URL.Path, "/panel/api/inbounds/getClientTraffics/")
		p.mu.Lock()
		defer p.mu.Unlock()
		for _, c := range p.clients {
			if c["email"] == email {
				writeEnvelope(w, true, "", map[string]interface{}{
					"email":  email,
					"enable": c["enable"],
				})
				return
			}
		}
		writeEnvelope(w, true, "", nil)
	})

	mux.HandleFunc("/panel/api/inbounds/7/delClient/", func(w http.ResponseWriter, r *http.Request) {
		if !p.authorized(r) {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		id := strings.TrimPrefix(r.URL.Path, "/panel/api/inbounds/7/delClient/")
		p.mu.Lock()
		defer p.mu.Unlock()
		if _, ok := p.clients[id]; !ok {
			writeEnvelope(w, false, "no client found", nil)
			return
		}
		delete(p.clients, id)
		writeEnvelope(w, true, "", nil)
	})

	return mux
}

func newTestAdapter(t *testing.T, panel *fakePanel) (*Adapter, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(panel.handler())
	t.Cleanup(srv.Close)
	adapter, err := New(Config{
		NodeID:    "fra-1",
		BaseURL:   srv.URL,
		Username:  "admin",
		Password:  "secret",
		InboundID: 7,
	}, zerolog.Nop())
	require.NoError(t, err)
	return adapter, srv
}

func TestProvision_CreatesClientAndLink(t *testing.T) {
	panel := newFakePanel()
	adapter, _ := newTestAdapter(t, panel)

	res, err := adapter.Provision(context.Background(), node.ProvisionRequest{
		UserID:   "alice",
		Ref:      "cred-1",
		ExpireAt: time.Now().Add(24 * time.Hour),
	})
	require.NoError(t, err)

	assert.Equal(t, "cred-1", res.Ref)
	assert.True(t, strings.HasPrefix(res.AccessToken, "vless://"), "got %q", res.AccessToken)
	assert.Contains(t, res.AccessToken, "security=reality")
	assert.Contains(t, res.AccessToken, "#cred-1")

	panel.mu.Lock()
	defer panel.mu.Unlock()
	require.Len(t, panel.clients, 1)
}

func TestProvision_ReplayReusesClient(t *testing.T) {
	panel := newFakePanel()
	adapter, _ := newTestAdapter(t, panel)

	first, err := adapter.Provision(context.Background(), node.ProvisionRequest{Ref: "cred-1"})
	require.NoError(t, err)
	second, err := adapter.Provision(context.Background(), node.ProvisionRequest{Ref: "cred-1"})
	require.NoError(t, err)

	assert.Equal(t, first.AccessToken, second.AccessToken)
	panel.mu.Lock()
	defer panel.mu.Unlock()
	assert.Len(t, panel.clients, 1)
}

func TestRevoke_Idempotent(t *testing.T) {
	panel := newFakePanel()
	adapter, _ := newTestAdapter(t, panel)

	_, err := adapter.Provision(context.Background(), node.ProvisionRequest{Ref: "cred-1"})
	require.NoError(t, err)

	require.NoError(t, adapter.Revoke(context.Background(), "cred-1"))
	// The panel no longer knows the client; revoking again is a no-op.
	require.NoError(t, adapter.Revoke(context.Background(), "cred-1"))

	panel.mu.Lock()
	defer panel.mu.Unlock()
	assert.Empty(t, panel.clients)
}

func TestQuery_StatusTransitions(t *testing.T) {
	panel := newFakePanel()
	adapter, _ := newTestAdapter(t, panel)

	res, err := adapter.Query(context.Background(), "cred-1")
	require.NoError(t, err)
	assert.Equal(t, node.RefAbsent, res.Status)

	_, err = adapter.Provision(context.Background(), node.ProvisionRequest{Ref: "cred-1"})
	require.NoError(t, err)

	res, err = adapter.Query(context.Background(), "cred-1")
	require.NoError(t, err)
	assert.Equal(t, node.RefActive, res.Status)
	assert.NotEmpty(t, res.AccessToken)

	require.NoError(t, adapter.Revoke(context.Background(), "cred-1"))
	res, err = adapter.Query(context.Background(), "cred-1")
	require.NoError(t, err)
	assert.Equal(t, node.RefAbsent, res.Status)
}

func TestExpiredSessionTriggersRelogin(t *testing.T) {
	panel := newFakePanel()
	adapter, _ := newTestAdapter(t, panel)

	_, err := adapter.Provision(context.Background(), node.ProvisionRequest{Ref: "cred-1"})
	require.NoError(t, err)

	panel.mu.Lock()
	panel.expireSessions = true
	logins := panel.logins
	panel.mu.Unlock()

	res, err := adapter.Query(context.Background(), "cred-1")
	require.NoError(t, err)
	assert.Equal(t, node.RefActive, res.Status)

	panel.mu.Lock()
	defer panel.mu.Unlock()
	assert.Equal(t, logins+1, panel.logins)
}

func TestUnreachablePanel(t *testing.T) {
	panel := newFakePanel()
	adapter, srv := newTestAdapter(t, panel)
	srv.Close()

	_, err := adapter.Provision(context.Background(), node.ProvisionRequest{Ref: "cred-1"})
	require.ErrorIs(t, err, node.ErrNodeUnavailable)
}

func TestBadCredentialsRejected(t *testing.T) {
	panel := newFakePanel()
	srv := httptest.NewServer(panel.handler())
	t.Cleanup(srv.Close)
	adapter, err := New(Config{
		NodeID:    "fra-1",
		BaseURL:   srv.URL,
		Username:  "admin",
		Password:  "wrong",
		InboundID: 7,
	}, zerolog.Nop())
	require.NoError(t, err)

	_, err = adapter.Provision(context.Background(), node.ProvisionRequest{Ref: "cred-1"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "login rejected")
}

func TestClientIDDeterministic(t *testing.T) {
	assert.Equal(t, clientID("cred-1"), clientID("cred-1"))
	assert.NotEqual(t, clientID("cred-1"), clientID("cred-2"))
}
