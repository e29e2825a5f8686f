package config

import (
	"fmt"
	"os"

	"github.com/huddlechat/huddle/internal/protocol"
)

// Default configuration values.
const (
	DefaultServerURL  = "ws://localhost:3000"
	DefaultListenAddr = ":3000"
	DefaultSTUN       = "stun:stun.l.google.com:19302"
)

// Config holds client configuration.
type Config struct {
	// ServerURL is the websocket URL of the signaling relay.
	ServerURL string

	// ICE servers for WebRTC
	STUNServer string
	TURNServer string
	TURNUser   string
	TURNPass   string

	// MaxPeers bounds how many peer links the client will hold at once.
	MaxPeers int
}

// Options for loading config with CLI flag overrides.
type Options struct {
	ServerURL  string
	STUNServer string
	TURNServer string
	TURNUser   string
	TURNPass   string
	MaxPeers   int
}

// Load reads configuration with the following priority:
// 1. CLI flags (passed via Options) - highest priority
// 2. Environment variables
// 3. Hardcoded defaults - lowest priority
func Load(opts Options) (*Config, error) {
	serverURL := opts.ServerURL
	if serverURL == "" {
		serverURL = os.Getenv("HUDDLE_SERVER")
	}
	if serverURL == "" {
		serverURL = DefaultServerURL
	}

	stunServer := opts.STUNServer
	if stunServer == "" {
		stunServer = os.Getenv("STUN_SERVER")
	}
	if stunServer == "" {
		stunServer = DefaultSTUN
	}

	turnServer := opts.TURNServer
	if turnServer == "" {
		turnServer = os.Getenv("TURN_SERVER")
	}

	turnUser := opts.TURNUser
	if turnUser == "" {
		turnUser = os.Getenv("TURN_USERNAME")
	}

	turnPass := opts.TURNPass
	if turnPass == "" {
		turnPass = os.Getenv("TURN_PASSWORD")
	}

	maxPeers := opts.MaxPeers
	if maxPeers <= 0 {
		maxPeers = protocol.RoomCapacity
	}

	return &Config{
		ServerURL:  serverURL,
		STUNServer: stunServer,
		TURNServer: turnServer,
		TURNUser:   turnUser,
		TURNPass:   turnPass,
		MaxPeers:   maxPeers,
	}, nil
}

// GetSTUNServers returns STUN server URLs as strings.
func (c *Config) GetSTUNServers() []string {
	return []string{c.STUNServer}
}

// GetTURNServers returns TURN server URLs if configured.
func (c *Config) GetTURNServers() []string {
	if c.TURNServer == "" {
		return nil
	}
	return []string{
		fmt.Sprintf("%s:3478?transport=udp", c.TURNServer),
		fmt.Sprintf("%s:3478?transport=tcp", c.TURNServer),
	}
}

// GetTURNCredentials returns TURN username and password.
func (c *Config) GetTURNCredentials() (string, string) {
	return c.TURNUser, c.TURNPass
}
