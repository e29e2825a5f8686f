package config

import "testing"

func TestLoadDefaults(t *testing.T) {
	t.Setenv("HUDDLE_SERVER", "")
	t.Setenv("STUN_SERVER", "")
	t.Setenv("TURN_SERVER", "")

	cfg, err := Load(Options{})
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.ServerURL != DefaultServerURL {
		t.Errorf("ServerURL=%q, want %q", cfg.ServerURL, DefaultServerURL)
	}
	if cfg.STUNServer != DefaultSTUN {
		t.Errorf("STUNServer=%q, want %q", cfg.STUNServer, DefaultSTUN)
	}
	if cfg.TURNServer != "" {
		t.Errorf("TURNServer=%q, want empty", cfg.TURNServer)
	}
	if cfg.MaxPeers != 5 {
		t.Errorf("MaxPeers=%d, want 5", cfg.MaxPeers)
	}
}

func TestLoadEnvOverridesDefaults(t *testing.T) {
	t.Setenv("HUDDLE_SERVER", "ws://relay.internal:3000")
	t.Setenv("STUN_SERVER", "stun:stun.internal:3478")

	cfg, err := Load(Options{})
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.ServerURL != "ws://relay.internal:3000" {
		t.Errorf("ServerURL=%q, env not applied", cfg.ServerURL)
	}
	if cfg.STUNServer != "stun:stun.internal:3478" {
		t.Errorf("STUNServer=%q, env not applied", cfg.STUNServer)
	}
}

func TestLoadFlagsOverrideEnv(t *testing.T) {
	t.Setenv("HUDDLE_SERVER", "ws://relay.internal:3000")
	t.Setenv("TURN_USERNAME", "env-user")

	cfg, err := Load(Options{
		ServerURL: "ws://flag.example:3000",
		TURNUser:  "flag-user",
		MaxPeers:  3,
	})
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.ServerURL != "ws://flag.example:3000" {
		t.Errorf("ServerURL=%q, flag not applied", cfg.ServerURL)
	}
	if cfg.TURNUser != "flag-user" {
		t.Errorf("TURNUser=%q, flag not applied", cfg.TURNUser)
	}
	if cfg.MaxPeers != 3 {
		t.Errorf("MaxPeers=%d, want 3", cfg.MaxPeers)
	}
}

func TestGetTURNServers(t *testing.T) {
	cfg := &Config{}
	if got := cfg.GetTURNServers(); got != nil {
		t.Errorf("GetTURNServers=%v without a TURN server, want nil", got)
	}

	cfg.TURNServer = "turn:turn.example.com"
	got := cfg.GetTURNServers()
	if len(got) != 2 {
		t.Fatalf("GetTURNServers=%v, want udp and tcp variants", got)
	}
	if got[0] != "turn:turn.example.com:3478?transport=udp" {
		t.Errorf("udp variant=%q", got[0])
	}
	if got[1] != "turn:turn.example.com:3478?transport=tcp" {
		t.Errorf("tcp variant=%q", got[1])
	}
}
