package config

import (
	"os"
	"path/filepath"
	"strconv"

	"github.com/goccy/go-yaml"
	"github.com/localtaskrepo/lotar/pkg/logger"
	"github.com/localtaskrepo/lotar/pkg/workspace"
)

var log = logger.New("config:load")

// loadLayer reads one config file into its nested form. A missing file is an
// empty layer, not an error. Flat dotted keys are expanded before decoding.
func loadLayer(path string) (*fileConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return &fileConfig{}, nil
		}
		return nil, &IoError{Path: path, Op: "read", Err: err}
	}

	var raw map[string]any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, &ParseError{Path: path, Err: err}
	}
	if raw == nil {
		return &fileConfig{}, nil
	}

	expanded, err := yaml.Marshal(expandDottedKeys(raw))
	if err != nil {
		return nil, &ParseError{Path: path, Err: err}
	}

	var fc fileConfig
	if err := yaml.Unmarshal(expanded, &fc); err != nil {
		return nil, &ParseError{Path: path, Err: err}
	}
	return &fc, nil
}

// homeConfigPath locates the per-user config file. LOTAR_HOME_CONFIG
// overrides the location, mainly for tests.
func homeConfigPath() string {
	if override := os.Getenv("LOTAR_HOME_CONFIG"); override != "" {
		return override
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".lotar", "config.yml")
}

// envLayer materializes the environment overrides as a config layer.
// LOTAR_PROJECT is mapped through prefix generation like any project name.
func envLayer() *fileConfig {
	fc := &fileConfig{}

	if port := os.Getenv("LOTAR_PORT"); port != "" {
		if n, err := strconv.Atoi(port); err == nil && n > 0 && n < 65536 {
			fc.Server = &serverSection{Port: &n}
		} else {
			log.Printf("ignoring invalid LOTAR_PORT=%q", port)
		}
	}
	if project := os.Getenv("LOTAR_PROJECT"); project != "" {
		prefix := workspace.GeneratePrefix(project)
		ensureDefault(fc)
		fc.Default.Project = &project
		fc.Default.Prefix = &prefix
	}
	if assignee := os.Getenv("LOTAR_DEFAULT_ASSIGNEE"); assignee != "" {
		ensureDefault(fc)
		fc.Default.Assignee = &assignee
	}
	if reporter := os.Getenv("LOTAR_DEFAULT_REPORTER"); reporter != "" {
		ensureDefault(fc)
		fc.Default.Reporter = &reporter
	}

	return fc
}

func ensureDefault(fc *fileConfig) {
	if fc.Default == nil {
		fc.Default = &defaultSection{}
	}
}
