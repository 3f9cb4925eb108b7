// Package config loads the settings shared by every command from the
// environment, optionally seeded from a .env file.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
)

const (
	DefaultBaseURL = "https://api.mercury.launchableinc.com"
	DefaultEnvFile = ".env"
)

// Config is the resolved configuration of one invocation.
type Config struct {
	BaseURL      string
	Organization string
	Workspace    string
	Token        string
	SessionDir   string
	// ReportError disables the fallbacks that hide service failures, so
	// that they surface while debugging.
	ReportError bool
}

// LoadEnvFile loads variables from a .env file without overriding the ones
// already set. A missing file is only an error when it was asked for
// explicitly.
func LoadEnvFile(path string, explicit bool) error {
	if path == "" {
		path = DefaultEnvFile
	}
	if err := godotenv.Load(path); err != nil {
		if !explicit && errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("failed to load %s: %w", path, err)
	}
	return nil
}

// Load reads the configuration from the environment. Variables are looked
// up with the SUBSETTER_ prefix first and the LAUNCHABLE_ prefix second.
func Load() (*Config, error) {
	c := &Config{
		BaseURL:     strings.TrimSuffix(lookup("BASE_URL", DefaultBaseURL), "/"),
		Token:       lookup("TOKEN", ""),
		SessionDir:  lookup("SESSION_DIR", ""),
		ReportError: lookup("REPORT_ERROR", "") != "",
	}

	if c.Token != "" {
		org, ws, err := ParseToken(c.Token)
		if err != nil {
			return nil, err
		}
		c.Organization, c.Workspace = org, ws
	}
	if org := lookup("ORGANIZATION", ""); org != "" {
		c.Organization = org
	}
	if ws := lookup("WORKSPACE", ""); ws != "" {
		c.Workspace = ws
	}

	if c.SessionDir == "" {
		dir, err := os.UserConfigDir()
		if err != nil {
			dir = os.TempDir()
		}
		c.SessionDir = filepath.Join(dir, "subsetter")
	}
	return c, nil
}

func lookup(key, fallback string) string {
	for _, prefix := range []string{"SUBSETTER_", "LAUNCHABLE_"} {
		if v, ok := os.LookupEnv(prefix + key); ok && v != "" {
			return v
		}
	}
	return fallback
}

// ParseToken extracts the organization and workspace from a token of the
// form v1:<organization>/<workspace>:<secret>.
func ParseToken(token string) (org, workspace string, err error) {
	parts := strings.SplitN(token, ":", 3)
	if len(parts) != 3 || parts[0] != "v1" {
		return "", "", fmt.Errorf("invalid token: expected v1:<organization>/<workspace>:<secret>")
	}
	org, workspace, ok := strings.Cut(parts[1], "/")
	if !ok || org == "" || workspace == "" {
		return "", "", fmt.Errorf("invalid token: expected v1:<organization>/<workspace>:<secret>")
	}
	return org, workspace, nil
}

// Validate reports whether the service can be addressed.
func (c *Config) Validate() error {
	if c.Organization == "" || c.Workspace == "" {
		return fmt.Errorf("organization and workspace are not configured: set SUBSETTER_TOKEN")
	}
	return nil
}

// IntakeURL is the prefix of every endpoint of the workspace.
func (c *Config) IntakeURL() string {
	return fmt.Sprintf("%s/intake/organizations/%s/workspaces/%s/", c.BaseURL, c.Organization, c.Workspace)
}
