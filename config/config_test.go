package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.json"))
	if err != nil {
		t.Fatalf("load without file: %v", err)
	}
	if cfg.Listen != ":8095" || cfg.Codec != "h264" {
		t.Fatalf("defaults %+v", cfg)
	}
	if cfg.Width != 640 || cfg.Height != 480 || cfg.FPS != 30 || cfg.BitrateKbps != 300 {
		t.Fatalf("defaults %+v", cfg)
	}
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "vidra.json")
	raw := `{
		"listen": ":9000",
		"codec": "h264",
		"width": 1280,
		"height": 720,
		"fps": 60,
		"bitrateKbps": 2500,
		"webrtc": {
			"enabled": true,
			"credentialTTL": "30m",
			"servers": [{"urls": ["turn:turn.example.com:3478"], "credentialSecret": "s3cret"}]
		}
	}`
	if err := os.WriteFile(path, []byte(raw), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Listen != ":9000" || cfg.Width != 1280 || cfg.Height != 720 || cfg.FPS != 60 {
		t.Fatalf("parsed %+v", cfg)
	}
	if cfg.WebRTC == nil || !cfg.WebRTC.Enabled || cfg.WebRTC.CredentialTTL != "30m" {
		t.Fatalf("webrtc %+v", cfg.WebRTC)
	}
	if len(cfg.WebRTC.Servers) != 1 || cfg.WebRTC.Servers[0].CredentialSecret != "s3cret" {
		t.Fatalf("servers %+v", cfg.WebRTC.Servers)
	}
}

func TestLoadMalformedFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "vidra.json")
	if err := os.WriteFile(path, []byte("{not json"), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := Load(path); err == nil {
		t.Fatalf("malformed file accepted")
	}
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("VIDRA_LISTEN", ":7070")
	t.Setenv("VIDRA_FPS", "15")
	t.Setenv("VIDRA_BITRATE_KBPS", "not-a-number")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Listen != ":7070" {
		t.Fatalf("listen %q", cfg.Listen)
	}
	if cfg.FPS != 15 {
		t.Fatalf("fps %d", cfg.FPS)
	}
	// Unparseable numeric overrides keep the prior value.
	if cfg.BitrateKbps != 300 {
		t.Fatalf("bitrate %d", cfg.BitrateKbps)
	}
}

func TestValidateRejectsBadValues(t *testing.T) {
	cases := []func(*Config){
		func(c *Config) { c.Width = 0 },
		func(c *Config) { c.Height = -1 },
		func(c *Config) { c.FPS = 0 },
		func(c *Config) { c.FPS = 500 },
		func(c *Config) { c.BitrateKbps = 0 },
		func(c *Config) { c.Display = -2 },
	}
	for i, mutate := range cases {
		cfg := Default()
		mutate(cfg)
		if err := cfg.validate(); err == nil {
			t.Fatalf("case %d accepted %+v", i, cfg)
		}
	}
}
