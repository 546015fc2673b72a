package config

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// Config is the root configuration for commitclock, stored in
// ~/.commitclock/config.json. The file supports single-line // comments for
// documentation purposes.
type Config struct {
	GitHub   GitHubConfig   `json:"github"`
	Clockify ClockifyConfig `json:"clockify"`
	DevOps   DevOpsConfig   `json:"devops"`
	Tracker  TrackerConfig  `json:"tracker"`
}

// GitHubConfig selects whose commits are tracked and how to authenticate.
type GitHubConfig struct {
	// Token is a personal access token. When set it takes precedence
	// over the device-flow login stored by `commitclock auth`.
	Token string `json:"token"`
	// Org tracks every repository of an organization.
	Org string `json:"org"`
	// User tracks every repository of a user. Ignored when Org is set.
	User string `json:"user"`
	// ClientID is the OAuth app client ID for the device code flow.
	ClientID string `json:"client_id"`
}

// ClockifyConfig holds the Clockify workspace credentials.
type ClockifyConfig struct {
	APIKey    string `json:"api_key"`
	ProjectID string `json:"project_id"`
	BaseURL   string `json:"base_url"`
}

// DevOpsConfig holds the Azure DevOps organization used for work item
// matching.
type DevOpsConfig struct {
	Organization string `json:"organization"`
	Project      string `json:"project"`
	PAT          string `json:"pat"`
	BaseURL      string `json:"base_url"`
}

// TrackerConfig tunes session clustering and the polling loop.
type TrackerConfig struct {
	// Timezone is the IANA timezone session times are reported in
	// (e.g. "America/Asuncion"). Empty = local time.
	Timezone string `json:"timezone"`
	// TauHours is the exponential decay constant for session detection.
	TauHours float64 `json:"tau_hours"`
	// ClusterThreshold is the weight below which a new session starts.
	ClusterThreshold float64 `json:"cluster_threshold"`
	// MaxSessionHours caps a single session's duration.
	MaxSessionHours float64 `json:"max_session_hours"`
	// MinGapMinutes merges sessions closer together than this.
	// Negative disables the merge pass.
	MinGapMinutes int `json:"min_gap_minutes"`
	// PollIntervalSeconds is the wait between polls in watch mode.
	PollIntervalSeconds int `json:"poll_interval_seconds"`
	// HistoryDays is the default backfill window for one-shot runs.
	HistoryDays int `json:"history_days"`
}

const (
	// DefaultClockifyBaseURL is the public Clockify REST API.
	DefaultClockifyBaseURL = "https://api.clockify.me/api/v1"
	// DefaultDevOpsBaseURL is the Azure DevOps services endpoint.
	DefaultDevOpsBaseURL = "https://dev.azure.com"
	// DefaultGitHubClientID is the OAuth app used for the device code
	// flow when no PAT is configured. It is the public GitHub CLI app ID;
	// replace with your own registration for organisational deployments.
	DefaultGitHubClientID = "178c6fc778ccc68e1d6a"

	defaultPollInterval = 60
	defaultHistoryDays  = 7
)

// defaultConfig returns a Config pre-filled with sensible defaults.
func defaultConfig() Config {
	return Config{
		GitHub: GitHubConfig{
			ClientID: DefaultGitHubClientID,
		},
		Clockify: ClockifyConfig{
			BaseURL: DefaultClockifyBaseURL,
		},
		DevOps: DevOpsConfig{
			BaseURL: DefaultDevOpsBaseURL,
		},
		Tracker: TrackerConfig{
			TauHours:            2.5,
			ClusterThreshold:    0.1,
			MaxSessionHours:     4.0,
			MinGapMinutes:       30,
			PollIntervalSeconds: defaultPollInterval,
			HistoryDays:         defaultHistoryDays,
		},
	}
}

// configTemplate is the annotated config written on first run.
// Lines whose trimmed content starts with // are stripped before JSON
// parsing, allowing human-readable documentation inside the file.
const configTemplate = `// commitclock configuration – ~/.commitclock/config.json
//
// Edit this file to point commitclock at your GitHub account, your Clockify
// workspace and (optionally) your Azure DevOps project.
{
  // ── GitHub commit feed ───────────────────────────────────────────────────
  "github": {
    // Personal access token. Leave empty to sign in with
    // "commitclock auth" instead (device code flow).
    "token": "",

    // Track all repositories of this organization...
    "org": "",

    // ...or of this user. "org" wins when both are set.
    "user": "",

    // OAuth app client ID for the device code flow. The default is the
    // public GitHub CLI app; replace with your own registration if needed.
    "client_id": "178c6fc778ccc68e1d6a"
  },

  // ── Clockify time entries ────────────────────────────────────────────────
  "clockify": {
    // API key from https://app.clockify.me/user/settings
    "api_key": "",

    // Project assigned to created time entries (optional).
    "project_id": "",

    "base_url": "https://api.clockify.me/api/v1"
  },

  // ── Azure DevOps work items (for "commitclock match") ────────────────────
  "devops": {
    "organization": "",
    "project": "",

    // Personal access token with work item read access.
    "pat": "",

    "base_url": "https://dev.azure.com"
  },

  // ── Session detection and polling ────────────────────────────────────────
  "tracker": {
    // IANA timezone for session times, e.g. "America/Asuncion". Empty = local.
    "timezone": "",

    // Exponential decay constant in hours. With the 0.1 threshold the
    // default of 2.5 puts the session boundary near a 5.75h commit gap.
    "tau_hours": 2.5,
    "cluster_threshold": 0.1,

    // Cap on a single session's length.
    "max_session_hours": 4.0,

    // Sessions closer than this many minutes are merged. -1 disables.
    "min_gap_minutes": 30,

    // Watch mode poll interval.
    "poll_interval_seconds": 60,

    // Default backfill window for "commitclock track".
    "history_days": 7
  }
}
`

// BaseDir returns the root data directory (~/.commitclock).
func BaseDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("cannot determine home directory: %w", err)
	}
	return filepath.Join(home, ".commitclock"), nil
}

// StatePath returns the sync ledger file path under base.
func StatePath(base string) string {
	return filepath.Join(base, "state.json")
}

// configFilePath returns the path to ~/.commitclock/config.json.
func configFilePath() (string, error) {
	base, err := BaseDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(base, "config.json"), nil
}

// stripLineComments removes lines whose leading non-whitespace content starts
// with //. Only full-line comments are handled; inline comments are not
// stripped.
func stripLineComments(data []byte) []byte {
	var out []byte
	for _, line := range bytes.Split(data, []byte("\n")) {
		if bytes.HasPrefix(bytes.TrimLeft(line, " \t"), []byte("//")) {
			continue
		}
		out = append(out, line...)
		out = append(out, '\n')
	}
	return out
}

// Load reads ~/.commitclock/config.json, creating it with annotated defaults
// on first run. Lines starting with // are treated as comments and stripped
// before JSON parsing.
func Load() (Config, error) {
	path, err := configFilePath()
	if err != nil {
		return defaultConfig(), err
	}

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		// First run: write the annotated template so users can discover
		// the options.
		if writeErr := writeDefault(path); writeErr != nil {
			fmt.Fprintf(os.Stderr, "Warning: could not create config file %s: %v\n", path, writeErr)
		}
		return defaultConfig(), nil
	}
	if err != nil {
		return defaultConfig(), fmt.Errorf("reading config file %s: %w", path, err)
	}

	return Parse(data, path)
}

// Parse decodes commented-JSON config data. path appears in error messages
// only.
func Parse(data []byte, path string) (Config, error) {
	cleaned := stripLineComments(data)
	var cfg Config
	if err := json.Unmarshal(cleaned, &cfg); err != nil {
		return defaultConfig(), fmt.Errorf("parsing config file %s: %w\nTip: delete the file to regenerate defaults", path, err)
	}

	// Fill zero-value fields with built-in defaults so callers always get
	// a usable Config even if the user only partially fills in the file.
	def := defaultConfig()
	if cfg.GitHub.ClientID == "" {
		cfg.GitHub.ClientID = def.GitHub.ClientID
	}
	if cfg.Clockify.BaseURL == "" {
		cfg.Clockify.BaseURL = def.Clockify.BaseURL
	}
	if cfg.DevOps.BaseURL == "" {
		cfg.DevOps.BaseURL = def.DevOps.BaseURL
	}
	if cfg.Tracker.TauHours == 0 {
		cfg.Tracker.TauHours = def.Tracker.TauHours
	}
	if cfg.Tracker.ClusterThreshold == 0 {
		cfg.Tracker.ClusterThreshold = def.Tracker.ClusterThreshold
	}
	if cfg.Tracker.MaxSessionHours == 0 {
		cfg.Tracker.MaxSessionHours = def.Tracker.MaxSessionHours
	}
	if cfg.Tracker.MinGapMinutes == 0 {
		cfg.Tracker.MinGapMinutes = def.Tracker.MinGapMinutes
	}
	if cfg.Tracker.PollIntervalSeconds == 0 {
		cfg.Tracker.PollIntervalSeconds = def.Tracker.PollIntervalSeconds
	}
	if cfg.Tracker.HistoryDays == 0 {
		cfg.Tracker.HistoryDays = def.Tracker.HistoryDays
	}
	return cfg, nil
}

// writeDefault creates the config directory and writes the annotated default
// config template.
func writeDefault(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}
	if err := os.WriteFile(path, []byte(configTemplate), 0o600); err != nil {
		return fmt.Errorf("writing default config: %w", err)
	}
	return nil
}
