package agent

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"Vidra/config"

	"golang.org/x/crypto/bcrypt"
)

func newTestAgent(t *testing.T, mutate func(*config.Config)) *Agent {
	t.Helper()
	cfg := config.Default()
	if mutate != nil {
		mutate(cfg)
	}
	a, err := New(cfg)
	if err != nil {
		t.Fatalf("new agent: %v", err)
	}
	return a
}

func doRequest(a *Agent, method, target, token, body string) *httptest.ResponseRecorder {
	var reader *strings.Reader
	if body != "" {
		reader = strings.NewReader(body)
	} else {
		reader = strings.NewReader("")
	}
	req := httptest.NewRequest(method, target, reader)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	a.Router().ServeHTTP(w, req)
	return w
}

func TestCapabilitiesEndpoint(t *testing.T) {
	a := newTestAgent(t, nil)
	w := doRequest(a, http.MethodGet, "/api/capabilities", "", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status %d", w.Code)
	}
	var payload map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &payload); err != nil {
		t.Fatalf("parse body: %v", err)
	}
	if _, ok := payload["capabilities"]; !ok {
		t.Fatalf("capabilities missing from %v", payload)
	}
	if _, ok := payload["codecs"]; !ok {
		t.Fatalf("codecs missing from %v", payload)
	}
}

func TestAuthMiddleware(t *testing.T) {
	hash, err := bcrypt.GenerateFromPassword([]byte("open-sesame"), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	a := newTestAgent(t, func(c *config.Config) {
		c.AuthHash = string(hash)
	})

	if w := doRequest(a, http.MethodGet, "/api/capabilities", "", ""); w.Code != http.StatusUnauthorized {
		t.Fatalf("missing token status %d", w.Code)
	}
	if w := doRequest(a, http.MethodGet, "/api/capabilities", "wrong", ""); w.Code != http.StatusForbidden {
		t.Fatalf("wrong token status %d", w.Code)
	}
	if w := doRequest(a, http.MethodGet, "/api/capabilities", "open-sesame", ""); w.Code != http.StatusOK {
		t.Fatalf("valid token status %d", w.Code)
	}
}

func TestICEEndpoint(t *testing.T) {
	a := newTestAgent(t, func(c *config.Config) {
		c.WebRTC = &config.WebRTCConfig{
			Enabled: true,
			Servers: []config.ICEServer{
				{URLs: []string{"turn:relay.example.com:3478"}, CredentialSecret: "secret"},
			},
		}
	})

	if w := doRequest(a, http.MethodGet, "/api/ice", "", ""); w.Code != http.StatusBadRequest {
		t.Fatalf("missing peer status %d", w.Code)
	}

	w := doRequest(a, http.MethodGet, "/api/ice?peer=viewer-1", "", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status %d", w.Code)
	}
	var payload map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &payload); err != nil {
		t.Fatalf("parse body: %v", err)
	}
	servers, ok := payload["iceServers"].([]any)
	if !ok || len(servers) != 1 {
		t.Fatalf("iceServers %v", payload["iceServers"])
	}
	if _, ok := payload["ttlSeconds"]; !ok {
		t.Fatalf("ttlSeconds missing from %v", payload)
	}
}

func TestICEEndpointWithoutIssuer(t *testing.T) {
	a := newTestAgent(t, nil)
	w := doRequest(a, http.MethodGet, "/api/ice?peer=viewer-1", "", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status %d", w.Code)
	}
	var payload map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &payload); err != nil {
		t.Fatalf("parse body: %v", err)
	}
	servers, ok := payload["iceServers"].([]any)
	if !ok || len(servers) != 0 {
		t.Fatalf("expected empty server list, got %v", payload["iceServers"])
	}
}

func TestSignalEndpointsRejectMalformedRequests(t *testing.T) {
	a := newTestAgent(t, nil)
	if w := doRequest(a, http.MethodPost, "/api/webrtc/offer", "", "{not json"); w.Code != http.StatusBadRequest {
		t.Fatalf("malformed offer status %d", w.Code)
	}
	if w := doRequest(a, http.MethodPost, "/api/webrtc/offer", "", `{"payload":{}}`); w.Code != http.StatusBadRequest {
		t.Fatalf("peerless offer status %d", w.Code)
	}
	if w := doRequest(a, http.MethodPost, "/api/webrtc/candidate", "", `{"peer":"viewer-1","payload":{}}`); w.Code != http.StatusNotFound {
		t.Fatalf("candidate without viewer status %d", w.Code)
	}
	if w := doRequest(a, http.MethodGet, "/api/webrtc/state", "", ""); w.Code != http.StatusBadRequest {
		t.Fatalf("peerless state status %d", w.Code)
	}
}

func TestSignalStateEndpoint(t *testing.T) {
	a := newTestAgent(t, nil)
	a.signalling.recordOffer("viewer-1")
	w := doRequest(a, http.MethodGet, "/api/webrtc/state?peer=viewer-1", "", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status %d", w.Code)
	}
	var state signalState
	if err := json.Unmarshal(w.Body.Bytes(), &state); err != nil {
		t.Fatalf("parse body: %v", err)
	}
	if state.Peer != "viewer-1" || state.LastOfferAt.IsZero() {
		t.Fatalf("state %+v", state)
	}
}
