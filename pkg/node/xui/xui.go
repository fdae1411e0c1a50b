package xui

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/mavrin/vpncore/pkg/node"
)

// Config describes one 3x-ui panel.
type Config struct {
	NodeID   string
	BaseURL  string
	Username string
	Password string
	// InboundID is the panel inbound clients are attached to.
	InboundID int
	// InsecureSkipVerify disables TLS verification for panels behind
	// self-signed certificates.
	InsecureSkipVerify bool
}

// Adapter implements node.Adapter against a 3x-ui panel.
type Adapter struct {
	cfg        Config
	httpClient *http.Client
	logger     zerolog.Logger

	mu       sync.Mutex
	loggedIn bool
}

var _ node.Adapter = (*Adapter)(nil)

// envelope is the 3x-ui response wrapper.
type envelope struct {
	Success bool            `json:"success"`
	Msg     string          `json:"msg"`
	Obj     json.RawMessage `json:"obj"`
}

// inbound is the subset of the panel inbound object needed to build
// connection links. StreamSettings arrives as a JSON string.
type inbound struct {
	ID             int    `json:"id"`
	Port           int    `json:"port"`
	Protocol       string `json:"protocol"`
	StreamSettings string `json:"streamSettings"`
}

type streamSettings struct {
	Network  string `json:"network"`
	Security string `json:"security"`
}

type clientTraffic struct {
	Email  string `json:"email"`
	Enable bool   `json:"enable"`
}

// New creates an adapter for one panel.
func New(cfg Config, logger zerolog.Logger) (*Adapter, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("node %s: panel base URL is required", cfg.NodeID)
	}
	if _, err := url.Parse(cfg.BaseURL); err != nil {
		return nil, fmt.Errorf("node %s: invalid panel URL: %w", cfg.NodeID, err)
	}
	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, err
	}
	transport := http.DefaultTransport.(*http.Transport).Clone()
	if cfg.InsecureSkipVerify {
		transport.TLSClientConfig = &tls.Config{InsecureSkipVerify: true}
	}
	return &Adapter{
		cfg: cfg,
		httpClient: &http.Client{
			Jar:       jar,
			Transport: transport,
		},
		logger: logger.With().Str("component", "xui").Str("node", cfg.NodeID).Logger(),
	}, nil
}

func (a *Adapter) Name() string { return "xui" }

// clientID derives the panel client UUID from the credential reference.
// The derivation is stable, so a replayed Provision or a Revoke after a
// crash addresses the same panel client.
func clientID(ref string) string {
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte("vpncore:"+ref)).String()
}

// Provision creates (or finds) the panel client for the reference and
// returns its connection link.
func (a *Adapter) Provision(ctx context.Context, req node.ProvisionRequest) (*node.ProvisionResult, error) {
	client := map[string]interface{}{
		"id":     clientID(req.Ref),
		"email":  req.Ref,
		"enable": true,
		"flow":   "",
	}
	if !req.ExpireAt.IsZero() {
		client["expiryTime"] = req.ExpireAt.UnixMilli()
	}
	settings, err := json.Marshal(map[string]interface{}{
		"clients": []interface{}{client},
	})
	if err != nil {
		return nil, err
	}

	var resp envelope
	err = a.do(ctx, http.MethodPost, "/panel/api/inbounds/addClient", map[string]interface{}{
		"id":       a.cfg.InboundID,
		"settings": string(settings),
	}, &resp)
	if err != nil {
		return nil, err
	}
	if !resp.Success && !isDuplicate(resp.Msg) {
		return nil, fmt.Errorf("node %s: addClient refused: %s", a.cfg.NodeID, resp.Msg)
	}
	if isDuplicate(resp.Msg) {
		a.logger.Debug().Str("ref", req.Ref).Msg("client already exists, reusing")
	}

	token, err := a.connectionLink(ctx, req.Ref)
	if err != nil {
		return nil, err
	}
	return &node.ProvisionResult{Ref: req.Ref, AccessToken: token}, nil
}

// Revoke deletes the panel client. A client the panel does not know is
// already revoked.
func (a *Adapter) Revoke(ctx context.Context, ref string) error {
	path := fmt.Sprintf("/panel/api/inbounds/%d/delClient/%s", a.cfg.InboundID, clientID(ref))
	var resp envelope
	if err := a.do(ctx, http.MethodPost, path, nil, &resp); err != nil {
		return err
	}
	if !resp.Success && !isAbsent(resp.Msg) {
		return fmt.Errorf("node %s: delClient refused: %s", a.cfg.NodeID, resp.Msg)
	}
	return nil
}

// Query reports whether the panel still grants access for the
// reference.
func (a *Adapter) Query(ctx context.Context, ref string) (*node.QueryResult, error) {
	var resp envelope
	path := "/panel/api/inbounds/getClientTraffics/" + url.PathEscape(ref)
	if err := a.do(ctx, http.MethodGet, path, nil, &resp); err != nil {
		return nil, err
	}
	if !resp.Success {
		return nil, fmt.Errorf("node %s: getClientTraffics refused: %s", a.cfg.NodeID, resp.Msg)
	}
	if len(resp.Obj) == 0 || string(resp.Obj) == "null" {
		return &node.QueryResult{Status: node.RefAbsent}, nil
	}
	var traffic clientTraffic
	if err := json.Unmarshal(resp.Obj, &traffic); err != nil {
		return nil, fmt.Errorf("node %s: decode client traffic: %w", a.cfg.NodeID, err)
	}
	if !traffic.Enable {
		return &node.QueryResult{Status: node.RefDisabled}, nil
	}
	token, err := a.connectionLink(ctx, ref)
	if err != nil {
		return nil, err
	}
	return &node.QueryResult{Status: node.RefActive, AccessToken: token}, nil
}

// connectionLink builds the client's connection URI from the inbound.
func (a *Adapter) connectionLink(ctx context.Context, ref string) (string, error) {
	var resp envelope
	path := fmt.Sprintf("/panel/api/inbounds/get/%d", a.cfg.InboundID)
	if err := a.do(ctx, http.MethodGet, path, nil, &resp); err != nil {
		return "", err
	}
	if !resp.Success {
		return "", fmt.Errorf("node %s: inbound %d: %s", a.cfg.NodeID, a.cfg.InboundID, resp.Msg)
	}
	var ib inbound
	if err := json.Unmarshal(resp.Obj, &ib); err != nil {
		return "", fmt.Errorf("node %s: decode inbound: %w", a.cfg.NodeID, err)
	}
	var stream streamSettings
	if ib.StreamSettings != "" {
		if err := json.Unmarshal([]byte(ib.StreamSettings), &stream); err != nil {
			return "", fmt.Errorf("node %s: decode stream settings: %w", a.cfg.NodeID, err)
		}
	}

	u, err := url.Parse(a.cfg.BaseURL)
	if err != nil {
		return "", err
	}
	q := url.Values{}
	if stream.Network != "" {
		q.Set("type", stream.Network)
	}
	if stream.Security != "" {
		q.Set("security", stream.Security)
	}
	link := url.URL{
		Scheme:   ib.Protocol,
		User:     url.User(clientID(ref)),
		Host:     fmt.Sprintf("%s:%d", u.Hostname(), ib.Port),
		RawQuery: q.Encode(),
		Fragment: ref,
	}
	return link.String(), nil
}

// do performs one authenticated panel call, logging in lazily and
// re-authenticating once when the session expired.
func (a *Adapter) do(ctx context.Context, method, path string, body interface{}, out *envelope) error {
	if err := a.ensureLogin(ctx, false); err != nil {
		return err
	}
	retried := false
	for {
		err := a.request(ctx, method, path, body, out)
		if err == nil {
			return nil
		}
		var ae *authError
		if errors.As(err, &ae) && !retried {
			retried = true
			if lerr := a.ensureLogin(ctx, true); lerr != nil {
				return lerr
			}
			continue
		}
		return err
	}
}

// authError marks a response that looks like an expired session.
type authError struct{ status int }

func (e *authError) Error() string {
	return fmt.Sprintf("panel session rejected with status %d", e.status)
}

func (a *Adapter) request(ctx context.Context, method, path string, body interface{}, out *envelope) error {
	var reader *bytes.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(payload)
	} else {
		reader = bytes.NewReader(nil)
	}

	req, err := http.NewRequestWithContext(ctx, method, strings.TrimRight(a.cfg.BaseURL, "/")+path, reader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")

	resp, err := a.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("node %s: %w: %v", a.cfg.NodeID, node.ErrNodeUnavailable, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return &authError{status: resp.StatusCode}
	case resp.StatusCode >= 500:
		return fmt.Errorf("node %s: %w: panel returned %d", a.cfg.NodeID, node.ErrNodeUnavailable, resp.StatusCode)
	case resp.StatusCode != http.StatusOK:
		return fmt.Errorf("node %s: panel returned %d for %s %s", a.cfg.NodeID, resp.StatusCode, method, path)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		// The panel answers login redirects with an HTML page.
		return &authError{status: resp.StatusCode}
	}
	return nil
}

// ensureLogin authenticates against the panel. With force set the
// session is re-established even if a previous login succeeded.
func (a *Adapter) ensureLogin(ctx context.Context, force bool) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.loggedIn && !force {
		return nil
	}

	form := url.Values{}
	form.Set("username", a.cfg.Username)
	form.Set("password", a.cfg.Password)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		strings.TrimRight(a.cfg.BaseURL, "/")+"/login", strings.NewReader(form.Encode()))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := a.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("node %s: %w: %v", a.cfg.NodeID, node.ErrNodeUnavailable, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("node %s: %w: login returned %d", a.cfg.NodeID, node.ErrNodeUnavailable, resp.StatusCode)
	}
	var loginResp envelope
	if err := json.NewDecoder(resp.Body).Decode(&loginResp); err != nil {
		return fmt.Errorf("node %s: %w: decode login response: %v", a.cfg.NodeID, node.ErrNodeUnavailable, err)
	}
	if !loginResp.Success {
		return fmt.Errorf("node %s: panel login rejected: %s", a.cfg.NodeID, loginResp.Msg)
	}
	a.loggedIn = true
	a.logger.Debug().Msg("panel session established")
	return nil
}

func isDuplicate(msg string) bool {
	return strings.Contains(strings.ToLower(msg), "duplicate")
}

func isAbsent(msg string) bool {
	lower := strings.ToLower(msg)
	return strings.Contains(lower, "no client") || strings.Contains(lower, "not found")
}
