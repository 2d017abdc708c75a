package agent

import (
	"crypto/hmac"
	"crypto/sha1"
	"encoding/base64"
	"fmt"
	"strconv"
	"strings"
	"time"

	"Vidra/config"
)

const defaultCredentialTTL = 10 * time.Minute

// iceCredentialIssuer mints time-limited TURN credentials from server
// templates that carry a shared secret (the coturn use-auth-secret
// scheme: username = expiry:peer, credential = HMAC-SHA1(secret,
// username)).
type iceCredentialIssuer struct {
	ttl       time.Duration
	relayHint string
	servers   []iceServerTemplate
}

type iceServerTemplate struct {
	urls           []string
	username       string
	credential     string
	credentialType string
	secret         string
}

type mintedIceServer struct {
	urls           []string
	username       string
	credential     string
	credentialType string
}

type mintedIceBundle struct {
	servers   []mintedIceServer
	issuedAt  time.Time
	expiresAt time.Time
	ttl       time.Duration
	relayHint string
}

func newIceCredentialIssuer(cfg *config.WebRTCConfig) *iceCredentialIssuer {
	if cfg == nil || !cfg.Enabled || len(cfg.Servers) == 0 {
		return nil
	}
	templates := make([]iceServerTemplate, 0, len(cfg.Servers))
	for _, srv := range cfg.Servers {
		urls := make([]string, 0, len(srv.URLs))
		for _, raw := range srv.URLs {
			if trimmed := strings.TrimSpace(raw); trimmed != "" {
				urls = append(urls, trimmed)
			}
		}
		if len(urls) == 0 {
			continue
		}
		templates = append(templates, iceServerTemplate{
			urls:           urls,
			username:       strings.TrimSpace(srv.Username),
			credential:     strings.TrimSpace(srv.Credential),
			credentialType: strings.TrimSpace(srv.CredentialType),
			secret:         strings.TrimSpace(srv.CredentialSecret),
		})
	}
	if len(templates) == 0 {
		return nil
	}
	return &iceCredentialIssuer{
		ttl:       parseCredentialTTL(cfg.CredentialTTL),
		relayHint: strings.TrimSpace(cfg.RelayHint),
		servers:   templates,
	}
}

func parseCredentialTTL(raw string) time.Duration {
	if raw == "" {
		return defaultCredentialTTL
	}
	if dur, err := time.ParseDuration(raw); err == nil && dur > 0 {
		return dur
	}
	if secs, err := strconv.ParseFloat(raw, 64); err == nil && secs > 0 {
		return time.Duration(secs * float64(time.Second))
	}
	return defaultCredentialTTL
}

func (i *iceCredentialIssuer) mint(peerID string) (mintedIceBundle, bool) {
	if i == nil || len(i.servers) == 0 || peerID == "" {
		return mintedIceBundle{}, false
	}
	issuedAt := time.Now().UTC()
	expiresAt := issuedAt.Add(i.ttl)
	servers := make([]mintedIceServer, 0, len(i.servers))
	for _, tmpl := range i.servers {
		servers = append(servers, tmpl.build(peerID, expiresAt))
	}
	return mintedIceBundle{
		servers:   servers,
		issuedAt:  issuedAt,
		expiresAt: expiresAt,
		ttl:       i.ttl,
		relayHint: i.relayHint,
	}, true
}

func (t iceServerTemplate) build(peerID string, expiresAt time.Time) mintedIceServer {
	username := t.username
	credential := t.credential
	if t.secret != "" && peerID != "" {
		username = fmt.Sprintf("%d:%s", expiresAt.Unix(), peerID)
		credential = turnCredentialHMAC(username, t.secret)
	}
	return mintedIceServer{
		urls:           append([]string(nil), t.urls...),
		username:       username,
		credential:     credential,
		credentialType: t.credentialType,
	}
}

func turnCredentialHMAC(username, secret string) string {
	if username == "" || secret == "" {
		return ""
	}
	h := hmac.New(sha1.New, []byte(secret))
	_, _ = h.Write([]byte(username))
	return base64.StdEncoding.EncodeToString(h.Sum(nil))
}

// iceServersPayload renders a minted bundle as the JSON shape an
// RTCPeerConnection constructor expects.
func (b mintedIceBundle) iceServersPayload() []map[string]any {
	out := make([]map[string]any, 0, len(b.servers))
	for _, srv := range b.servers {
		entry := map[string]any{
			"urls": append([]string(nil), srv.urls...),
		}
		if srv.username != "" {
			entry["username"] = srv.username
		}
		if srv.credential != "" {
			entry["credential"] = srv.credential
		}
		if srv.credentialType != "" {
			entry["credentialType"] = srv.credentialType
		}
		out = append(out, entry)
	}
	return out
}
