package core

import (
	"os"

	"github.com/goccy/go-yaml"
)

// Config is the daemon's top-level YAML configuration tree. Validating any
// particular topology is out of scope for the core (spec.md §1); this is
// just the struct the ambient CLI bootstrap reads into.
type Config struct {
	Core struct {
		LogLevel   string `yaml:"log_level"`
		CPUProfile string `yaml:"cpu_profile"`
		MemProfile string `yaml:"mem_profile"`
		BaseDir    string `yaml:"-"`
	} `yaml:"core"`

	Tables struct {
		CsCapacity              int    `yaml:"cs_capacity"`
		CsOverflowDir           string `yaml:"cs_overflow_dir"`
		DeadNonceListLifetimeMs int    `yaml:"dead_nonce_list_lifetime_ms"`
	} `yaml:"tables"`

	Faces struct {
		QueueSize      int    `yaml:"queue_size"`
		UnixSocketPath string `yaml:"unix_socket_path"`
		WebSocketAddr  string `yaml:"websocket_addr"`
	} `yaml:"faces"`
}

// DefaultConfig returns sane defaults that a YAML file can override,
// never a requirement to supply one.
func DefaultConfig() *Config {
	c := &Config{}
	c.Core.LogLevel = "INFO"
	c.Tables.CsCapacity = 65536
	c.Tables.DeadNonceListLifetimeMs = 6000
	c.Faces.QueueSize = 1024
	c.Faces.UnixSocketPath = "/run/ndnfwd.sock"
	c.Faces.WebSocketAddr = ":9696"
	return c
}

// ReadYamlConfig loads and merges a YAML file over cfg's existing defaults.
func ReadYamlConfig(cfg *Config, path string) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return yaml.Unmarshal(raw, cfg)
}
