package main

import (
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

const defaultConfigDir = ".weitoutiao"

// Settings represents the YAML configuration structure.
type Settings struct {
	Feed struct {
		APIURL   string            `yaml:"api_url"`
		Params   map[string]string `yaml:"params"`
		Limit    int               `yaml:"limit"`
		Language string            `yaml:"language"`
	} `yaml:"feed"`
	Publish struct {
		Origin          string   `yaml:"origin"`
		ComposeURL      string   `yaml:"compose_url"`
		ListURL         string   `yaml:"list_url"`
		LoginMarker     string   `yaml:"login_marker"`
		EditorSelector  string   `yaml:"editor_selector"`
		SubmitSelector  string   `yaml:"submit_selector"`
		OverlaySelector string   `yaml:"overlay_selector"`
		Tags            []string `yaml:"tags"`
	} `yaml:"publish"`
	Browser struct {
		Headless     bool `yaml:"headless"`
		WindowWidth  int  `yaml:"window_width"`
		WindowHeight int  `yaml:"window_height"`
	} `yaml:"browser"`
	Timing struct {
		PollIntervalSec int `yaml:"poll_interval_sec"`
		StepTimeoutSec  int `yaml:"step_timeout_sec"`
	} `yaml:"timing"`
	State struct {
		CookieFile string `yaml:"cookie_file"`
		MarkerFile string `yaml:"marker_file"`
	} `yaml:"state"`
}

// PollInterval returns the wait between polling cycles.
func (s *Settings) PollInterval() time.Duration {
	return time.Duration(s.Timing.PollIntervalSec) * time.Second
}

// StepTimeout returns the bound on each browser-involving step.
func (s *Settings) StepTimeout() time.Duration {
	return time.Duration(s.Timing.StepTimeoutSec) * time.Second
}

// defaultSettings is written to the config directory on first run so users
// have a file to customize.
const defaultSettings = `feed:
  api_url: ""
  params: {}
  limit: 10
  language: zh
publish:
  origin: https://mp.toutiao.com
  compose_url: https://mp.toutiao.com/profile_v4/weitoutiao/publish
  list_url: https://mp.toutiao.com/profile_v4/weitoutiao
  login_marker: login
  editor_selector: "#root p"
  submit_selector: '#root button:has-text("发布")'
  overlay_selector: '[class*="close"], [aria-label="关闭"], [class*="modal-close"]'
  tags:
    - "#美股#"
    - "#财经#"
browser:
  headless: false
  window_width: 1920
  window_height: 1080
timing:
  poll_interval_sec: 60
  step_timeout_sec: 25
state:
  cookie_file: .weitoutiao/cookies.json
  marker_file: .weitoutiao/last_published_id.txt
`

// getConfigPath returns the path to a config file in the .weitoutiao directory.
func getConfigPath(filename string) string {
	return filepath.Join(defaultConfigDir, filename)
}

// loadSettings loads settings from the YAML file with fallback to defaults
// when the file does not exist.
func loadSettings(settingsPath string) (*Settings, error) {
	data, err := os.ReadFile(settingsPath)
	if err != nil {
		if os.IsNotExist(err) {
			return parseSettings([]byte(defaultSettings))
		}
		return nil, fmt.Errorf("reading settings file %s: %w", settingsPath, err)
	}

	settings, err := parseSettings(data)
	if err != nil {
		return nil, fmt.Errorf("parsing settings YAML: %w", err)
	}
	return settings, nil
}

func parseSettings(data []byte) (*Settings, error) {
	var settings Settings
	if err := yaml.Unmarshal(data, &settings); err != nil {
		return nil, err
	}

	if settings.Feed.Limit <= 0 {
		settings.Feed.Limit = 10
	}
	if settings.Feed.Language == "" {
		settings.Feed.Language = "zh"
	}
	if settings.Timing.PollIntervalSec <= 0 {
		settings.Timing.PollIntervalSec = 60
	}
	if settings.Timing.StepTimeoutSec <= 0 {
		settings.Timing.StepTimeoutSec = 25
	}
	if settings.State.CookieFile == "" {
		settings.State.CookieFile = getConfigPath("cookies.json")
	}
	if settings.State.MarkerFile == "" {
		settings.State.MarkerFile = getConfigPath("last_published_id.txt")
	}

	return &settings, nil
}

// applyEnvOverrides layers the environment contract over file settings:
// FEED_API_URL replaces the endpoint, FEED_API_PARAMS (a JSON object of
// string values) replaces the query params.
func applyEnvOverrides(settings *Settings) {
	if url := os.Getenv("FEED_API_URL"); url != "" {
		settings.Feed.APIURL = url
	}
	if raw := os.Getenv("FEED_API_PARAMS"); raw != "" {
		var params map[string]string
		if err := json.Unmarshal([]byte(raw), &params); err != nil {
			log.Printf("[config] ignoring malformed FEED_API_PARAMS: %v", err)
			return
		}
		settings.Feed.Params = params
	}
}

// ensureConfigExists creates the config directory and writes the default
// settings file if it doesn't exist yet.
func ensureConfigExists() error {
	if err := os.MkdirAll(defaultConfigDir, 0755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	settingsPath := getConfigPath("settings.yaml")
	if _, err := os.Stat(settingsPath); os.IsNotExist(err) {
		if err := os.WriteFile(settingsPath, []byte(defaultSettings), 0644); err != nil {
			return fmt.Errorf("writing default settings: %w", err)
		}
	}

	return nil
}

var debugEnabled bool

// SetDebugMode enables or disables debug logging.
func SetDebugMode(enabled bool) {
	debugEnabled = enabled
}

func debugLog(format string, args ...interface{}) {
	if debugEnabled {
		log.Printf("[debug] "+format, args...)
	}
}

// runningInCI reports whether the process is executing inside an automated
// environment, which changes browser flags and enables failure screenshots.
func runningInCI() bool {
	return os.Getenv("CI") == "true" || os.Getenv("GITHUB_ACTIONS") == "true"
}
