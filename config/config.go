// Package config loads the agent configuration: a JSON file plus
// VIDRA_* environment overrides for the knobs people flip in the field.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	jsoniter "github.com/json-iterator/go"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// ICEServer is one STUN/TURN server template. When CredentialSecret is
// set, per-peer time-limited credentials are minted from it instead of
// using the static Username/Credential pair.
type ICEServer struct {
	URLs             []string `json:"urls"`
	Username         string   `json:"username,omitempty"`
	Credential       string   `json:"credential,omitempty"`
	CredentialType   string   `json:"credentialType,omitempty"`
	CredentialSecret string   `json:"credentialSecret,omitempty"`
}

// WebRTCConfig controls the browser-facing streaming path.
type WebRTCConfig struct {
	Enabled       bool        `json:"enabled"`
	CredentialTTL string      `json:"credentialTTL,omitempty"`
	RelayHint     string      `json:"relayHint,omitempty"`
	Servers       []ICEServer `json:"servers,omitempty"`
}

// Config is the agent configuration.
type Config struct {
	Listen      string `json:"listen"`
	Codec       string `json:"codec"`
	Width       int    `json:"width"`
	Height      int    `json:"height"`
	FPS         int    `json:"fps"`
	BitrateKbps int    `json:"bitrateKbps"`
	Display     int    `json:"display"`

	// AuthHash is a bcrypt hash of the API bearer token. Empty disables
	// authentication.
	AuthHash string `json:"authHash,omitempty"`

	// HubURL, when set, receives the capability report on startup.
	HubURL string `json:"hubURL,omitempty"`

	WebRTC *WebRTCConfig `json:"webrtc,omitempty"`
}

// Default returns the configuration used when no file is present.
func Default() *Config {
	return &Config{
		Listen:      ":8095",
		Codec:       "h264",
		Width:       640,
		Height:      480,
		FPS:         30,
		BitrateKbps: 300,
	}
}

// Load reads the configuration file (optional) and applies environment
// overrides.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			if !os.IsNotExist(err) {
				return nil, fmt.Errorf("config: read %s: %w", path, err)
			}
		} else if err := json.Unmarshal(raw, cfg); err != nil {
			return nil, fmt.Errorf("config: parse %s: %w", path, err)
		}
	}
	cfg.applyEnv()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() {
	if v := strings.TrimSpace(os.Getenv("VIDRA_LISTEN")); v != "" {
		c.Listen = v
	}
	if v := strings.TrimSpace(os.Getenv("VIDRA_CODEC")); v != "" {
		c.Codec = v
	}
	if v := strings.TrimSpace(os.Getenv("VIDRA_HUB_URL")); v != "" {
		c.HubURL = v
	}
	if v := strings.TrimSpace(os.Getenv("VIDRA_AUTH_HASH")); v != "" {
		c.AuthHash = v
	}
	c.Display = envInt("VIDRA_DISPLAY", c.Display)
	c.FPS = envInt("VIDRA_FPS", c.FPS)
	c.BitrateKbps = envInt("VIDRA_BITRATE_KBPS", c.BitrateKbps)
	c.Width = envInt("VIDRA_WIDTH", c.Width)
	c.Height = envInt("VIDRA_HEIGHT", c.Height)
}

func envInt(key string, fallback int) int {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return fallback
	}
	val, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return val
}

func (c *Config) validate() error {
	if c.Width <= 0 || c.Height <= 0 {
		return fmt.Errorf("config: invalid dimensions %dx%d", c.Width, c.Height)
	}
	if c.FPS <= 0 || c.FPS > 240 {
		return fmt.Errorf("config: invalid fps %d", c.FPS)
	}
	if c.BitrateKbps <= 0 {
		return fmt.Errorf("config: invalid bitrate %d", c.BitrateKbps)
	}
	if c.Display < 0 {
		return fmt.Errorf("config: invalid display %d", c.Display)
	}
	return nil
}
