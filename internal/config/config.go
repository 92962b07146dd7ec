package config

import (
	"os"
	"path/filepath"
	"time"

	"github.com/juju/errors"
	"gopkg.in/yaml.v2"
)

// Duration is a time.Duration written as a Go duration string ("5m", "30s").
type Duration time.Duration

func (d *Duration) UnmarshalYAML(unmarshal func(interface{}) error) error {
	var s string
	if err := unmarshal(&s); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return errors.NotValidf("duration %q", s)
	}
	*d = Duration(parsed)
	return nil
}

func (d Duration) MarshalYAML() (interface{}, error) {
	return time.Duration(d).String(), nil
}

type ServerConfig struct {
	ListenAddr            string   `yaml:"listen_addr,omitempty"`
	DataDir               string   `yaml:"data_dir,omitempty"`
	Database              string   `yaml:"database,omitempty"`
	LogLevel              string   `yaml:"log_level,omitempty"` // loggo spec, e.g. "<root>=INFO;agencyhub.panel=DEBUG"
	OwnerEmail            string   `yaml:"owner_email,omitempty"`
	OwnerPassword         string   `yaml:"owner_password,omitempty"`
	PermissionCacheTTL    Duration `yaml:"permission_cache_ttl,omitempty"`
	ActivityRetryInterval Duration `yaml:"activity_retry_interval,omitempty"`
	ActivityQueueSize     int      `yaml:"activity_queue_size,omitempty"`
	PanelIdleTimeout      Duration `yaml:"panel_idle_timeout,omitempty"`
}

// Load reads the YAML file at path. A missing file yields the defaults.
func Load(path string) (ServerConfig, error) {
	var conf ServerConfig
	f, err := os.ReadFile(path)
	switch {
	case os.IsNotExist(err):
	case err != nil:
		return conf, errors.Annotatef(err, "reading %s", path)
	default:
		if err := yaml.Unmarshal(f, &conf); err != nil {
			return conf, errors.Annotatef(err, "parsing %s", path)
		}
	}
	conf.applyDefaults()
	return conf, nil
}

func (c *ServerConfig) applyDefaults() {
	if c.ListenAddr == "" {
		c.ListenAddr = ":9090"
	}
	if c.DataDir == "" {
		c.DataDir = "data"
	}
	if c.Database == "" {
		c.Database = filepath.Join(c.DataDir, "agencyhub.db")
	}
	if c.LogLevel == "" {
		c.LogLevel = "<root>=INFO"
	}
	if c.OwnerEmail == "" {
		c.OwnerEmail = "owner@agency.local"
	}
	if c.OwnerPassword == "" {
		c.OwnerPassword = "admin123"
	}
	if c.PermissionCacheTTL == 0 {
		c.PermissionCacheTTL = Duration(5 * time.Minute)
	}
	if c.ActivityRetryInterval == 0 {
		c.ActivityRetryInterval = Duration(30 * time.Second)
	}
	if c.ActivityQueueSize == 0 {
		c.ActivityQueueSize = 256
	}
	if c.PanelIdleTimeout == 0 {
		c.PanelIdleTimeout = Duration(30 * time.Minute)
	}
}

// LoadOrCreate is Load, except that a missing file is written with the
// defaults so operators have something to edit.
func LoadOrCreate(path string) (conf ServerConfig, created bool, err error) {
	if _, statErr := os.Stat(path); statErr == nil || !os.IsNotExist(statErr) {
		conf, err = Load(path)
		return conf, false, err
	}
	conf, err = Load(path)
	if err != nil {
		return conf, false, err
	}
	if err := Save(path, conf); err != nil {
		return conf, false, errors.Annotatef(err, "writing default config to %s", path)
	}
	return conf, true, nil
}

// Save writes conf back to path.
func Save(path string, conf ServerConfig) error {
	data, err := yaml.Marshal(&conf)
	if err != nil {
		return errors.Trace(err)
	}
	return os.WriteFile(path, data, 0644)
}
