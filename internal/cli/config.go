package cli

import (
	"encoding/json"
	"os"
	"path/filepath"
)

// Identity is who the CLI acts as. The server trusts it from request headers.
type Identity struct {
	PlayerID    string `json:"player_id"`
	DisplayName string `json:"display_name"`
	Avatar      string `json:"avatar,omitempty"`
	Guest       bool   `json:"guest"`
}

// Config holds CLI configuration
type Config struct {
	ServerURL    string
	Identity     Identity
	IdentityFile string
	Output       string
	Verbose      bool
}

// DefaultConfig returns a Config with default values
func DefaultConfig() *Config {
	return &Config{
		ServerURL: getEnvOrDefault("LIVEQUIZ_SERVER", "http://localhost:8080"),
		Identity: Identity{
			PlayerID:    os.Getenv("LIVEQUIZ_PLAYER_ID"),
			DisplayName: os.Getenv("LIVEQUIZ_PLAYER_NAME"),
		},
		IdentityFile: getEnvOrDefault("LIVEQUIZ_IDENTITY_FILE", defaultIdentityFile()),
		Output:       "text",
		Verbose:      false,
	}
}

// LoadIdentity loads the identity from file if no player id was given
func (c *Config) LoadIdentity() error {
	if c.Identity.PlayerID != "" {
		return nil
	}

	data, err := os.ReadFile(c.IdentityFile)
	if err != nil {
		if os.IsNotExist(err) {
			return nil // Anonymous is fine for public endpoints
		}
		return err
	}

	return json.Unmarshal(data, &c.Identity)
}

// SaveIdentity saves the identity to the identity file
func (c *Config) SaveIdentity(identity Identity) error {
	c.Identity = identity

	data, err := json.Marshal(identity)
	if err != nil {
		return err
	}

	dir := filepath.Dir(c.IdentityFile)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return err
	}

	return os.WriteFile(c.IdentityFile, data, 0600)
}

func defaultIdentityFile() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".livequiz/identity.json"
	}
	return filepath.Join(home, ".livequiz", "identity.json")
}

func getEnvOrDefault(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}
