package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Profile is the optional YAML file the CLI reads (--config).
// Every field is optional; set fields override the environment.
//
//	api_url: https://app.watercrawl.dev
//	api_key: wc-...
//	agent_id: 7f0c...
//	response_mode: blocking
//	request_timeout: 90s
type Profile struct {
	APIURL         string `yaml:"api_url"`
	APIKey         string `yaml:"api_key"`
	AccessToken    string `yaml:"access_token"`
	TeamID         string `yaml:"team_id"`
	AgentID        string `yaml:"agent_id"`
	User           string `yaml:"user"`
	ResponseMode   string `yaml:"response_mode"`
	RequestTimeout string `yaml:"request_timeout"`
	LogDir         string `yaml:"log_dir"`
	Debug          *bool  `yaml:"debug"`
}

// LoadProfile reads a profile file. A missing file is not an error when
// optional is true.
func LoadProfile(path string, optional bool) (*Profile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if optional && errors.Is(err, os.ErrNotExist) {
			return &Profile{}, nil
		}
		return nil, fmt.Errorf("read profile: %w", err)
	}

	var p Profile
	if err := yaml.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("parse profile %s: %w", path, err)
	}
	return &p, nil
}

// Apply copies the profile's set fields onto cfg
func (p *Profile) Apply(cfg *Config) error {
	setString(&cfg.APIURL, strings.TrimRight(p.APIURL, "/"))
	setString(&cfg.APIKey, p.APIKey)
	setString(&cfg.AccessToken, p.AccessToken)
	setString(&cfg.TeamID, p.TeamID)
	setString(&cfg.AgentID, p.AgentID)
	setString(&cfg.UserID, p.User)
	setString(&cfg.ResponseMode, p.ResponseMode)
	setString(&cfg.LogDir, p.LogDir)

	if p.RequestTimeout != "" {
		d, err := time.ParseDuration(p.RequestTimeout)
		if err != nil {
			return fmt.Errorf("invalid request_timeout %q: %w", p.RequestTimeout, err)
		}
		cfg.RequestTimeout = d
	}
	if p.Debug != nil {
		cfg.Debug = *p.Debug
	}
	return nil
}

func setString(dst *string, value string) {
	if value != "" {
		*dst = value
	}
}
