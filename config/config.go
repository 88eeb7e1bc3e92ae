// Package config implements the ambient configuration surface of
// SPEC_FULL.md section 10.3: a YAML-hydrated Options struct and an
// optional .env loader that populates the process environment before
// the default demultiplexer backend is selected.
package config

import (
	"os"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Options mirrors the teacher's functional-option server.Options as a
// declarative, file-loadable struct — the two ways of configuring a
// TcpServer/TcpClient coexist: functional options for programmatic use,
// this struct for file/environment-driven deployment.
type Options struct {
	Name           string `yaml:"name"`
	Address        string `yaml:"address"`
	NumEventLoop   int    `yaml:"num_event_loop"`
	ReuseAddr      bool   `yaml:"reuse_addr"`
	ReusePort      bool   `yaml:"reuse_port"`
	TCPNoDelay     bool   `yaml:"tcp_nodelay"`
	IdleTimeoutSec int    `yaml:"idle_timeout_sec"`
	HighWaterMark  int    `yaml:"high_water_mark"`
}

// DefaultOptions mirrors the teacher's NewServer defaults (NumEventLoop
// defaults to 2 when unset, per server/options.go).
func DefaultOptions() *Options {
	return &Options{
		NumEventLoop:  2,
		ReuseAddr:     true,
		TCPNoDelay:    true,
		HighWaterMark: 64 * 1024 * 1024,
	}
}

// LoadYAML reads path and hydrates Options from it, starting from
// DefaultOptions so an incomplete file still yields sane values.
func LoadYAML(path string) (*Options, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	opts := DefaultOptions()
	if err := yaml.Unmarshal(data, opts); err != nil {
		return nil, err
	}
	return opts, nil
}

// LoadEnv loads an optional .env file into the process environment,
// silently continuing if the file is absent (checked with os.Stat
// before godotenv.Load is called), the same ambient-config pattern used
// by the corpus's consumer programs.
func LoadEnv(path string) error {
	if path == "" {
		path = ".env"
	}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil
	}
	return godotenv.Load(path)
}
