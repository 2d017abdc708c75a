package agent

import (
	"net/http"
	"strings"

	"github.com/denisbrodbeck/machineid"
	"github.com/gin-gonic/gin"
	jsoniter "github.com/json-iterator/go"
	"github.com/kbinani/screenshot"
	"github.com/shirou/gopsutil/v3/cpu"
	"golang.org/x/crypto/bcrypt"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Router builds the agent HTTP surface.
func (a *Agent) Router() *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery())
	api := r.Group("/api", a.authMiddleware())
	api.GET("/capabilities", a.handleCapabilities)
	api.GET("/info", a.handleInfo)
	api.GET("/ice", a.handleICE)
	api.GET("/stream", a.handleStream)
	api.POST("/webrtc/offer", a.handleOffer)
	api.POST("/webrtc/candidate", a.handleCandidate)
	api.GET("/webrtc/state", a.handleSignalState)
	api.DELETE("/webrtc", a.handleCloseViewer)
	return r
}

// Serve runs the API on the configured listen address. It blocks.
func (a *Agent) Serve() error {
	logger.Infof("API listening on %s", a.cfg.Listen)
	return a.Router().Run(a.cfg.Listen)
}

// authMiddleware enforces the bearer token when an auth hash is
// configured. The config stores a bcrypt hash, never the token itself.
func (a *Agent) authMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if a.cfg.AuthHash == "" {
			c.Next()
			return
		}
		header := c.GetHeader("Authorization")
		token := strings.TrimSpace(strings.TrimPrefix(header, "Bearer"))
		if token == "" {
			c.AbortWithStatus(http.StatusUnauthorized)
			return
		}
		if err := bcrypt.CompareHashAndPassword([]byte(a.cfg.AuthHash), []byte(token)); err != nil {
			c.AbortWithStatus(http.StatusForbidden)
			return
		}
		c.Next()
	}
}

func respondJSON(c *gin.Context, status int, payload any) {
	raw, err := json.Marshal(payload)
	if err != nil {
		c.AbortWithStatus(http.StatusInternalServerError)
		return
	}
	c.Data(status, "application/json; charset=utf-8", raw)
}

func (a *Agent) handleCapabilities(c *gin.Context) {
	respondJSON(c, http.StatusOK, gin.H{
		"capabilities": a.Capabilities(),
		"codecs":       a.SupportedCodecs(),
	})
}

func (a *Agent) handleInfo(c *gin.Context) {
	info := gin.H{
		"displays": screenshot.NumActiveDisplays(),
	}
	if id, err := machineid.ProtectedID("vidra"); err == nil {
		info["deviceId"] = id
	}
	if counts, err := cpu.Counts(false); err == nil {
		info["cores"] = counts
	}
	if cpus, err := cpu.Info(); err == nil && len(cpus) > 0 {
		info["cpu"] = cpus[0].ModelName
	}
	respondJSON(c, http.StatusOK, info)
}

func (a *Agent) handleICE(c *gin.Context) {
	peerID := c.Query("peer")
	if peerID == "" {
		respondJSON(c, http.StatusBadRequest, gin.H{"error": "missing peer"})
		return
	}
	bundle, ok := a.issuer.mint(peerID)
	if !ok {
		respondJSON(c, http.StatusOK, gin.H{"iceServers": []any{}})
		return
	}
	payload := gin.H{
		"iceServers": bundle.iceServersPayload(),
		"ttlSeconds": int64(bundle.ttl / 1e9),
		"expiresAt":  bundle.expiresAt.Unix(),
	}
	if bundle.relayHint != "" {
		payload["relayHint"] = bundle.relayHint
	}
	respondJSON(c, http.StatusOK, payload)
}

type signalRequest struct {
	Peer    string         `json:"peer"`
	Payload map[string]any `json:"payload"`
}

func (a *Agent) handleOffer(c *gin.Context) {
	var request signalRequest
	if err := c.ShouldBindJSON(&request); err != nil || request.Peer == "" {
		respondJSON(c, http.StatusBadRequest, gin.H{"error": "malformed signal request"})
		return
	}
	answer, err := a.AcceptOffer(request.Peer, request.Payload)
	if err != nil {
		logger.Warnf("offer from peer=%s rejected: %v", request.Peer, err)
		respondJSON(c, http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
		return
	}
	respondJSON(c, http.StatusOK, gin.H{"answer": answer})
}

func (a *Agent) handleCandidate(c *gin.Context) {
	var request signalRequest
	if err := c.ShouldBindJSON(&request); err != nil || request.Peer == "" {
		respondJSON(c, http.StatusBadRequest, gin.H{"error": "malformed signal request"})
		return
	}
	if err := a.AddRemoteCandidate(request.Peer, request.Payload); err != nil {
		status := http.StatusUnprocessableEntity
		if err == ErrViewerUnavailable {
			status = http.StatusNotFound
		}
		respondJSON(c, status, gin.H{"error": err.Error()})
		return
	}
	c.Status(http.StatusNoContent)
}

func (a *Agent) handleSignalState(c *gin.Context) {
	peerID := c.Query("peer")
	if peerID == "" {
		respondJSON(c, http.StatusBadRequest, gin.H{"error": "missing peer"})
		return
	}
	respondJSON(c, http.StatusOK, a.signalling.snapshot(peerID))
}

func (a *Agent) handleCloseViewer(c *gin.Context) {
	peerID := c.Query("peer")
	if peerID == "" {
		respondJSON(c, http.StatusBadRequest, gin.H{"error": "missing peer"})
		return
	}
	a.CloseViewer(peerID)
	c.Status(http.StatusNoContent)
}
