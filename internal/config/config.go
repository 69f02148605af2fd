// Package config reads the daemon's JSON configuration file, scaffolding a
// default one on first run. Grounded on the teacher's read-or-scaffold
// pattern (life-stream's internal/config/config.go), generalized from a
// database-connection config to a Bayeux server one.
package config

import (
	"encoding/json"
	"errors"
	"os"
)

// Config is the on-disk shape of a bayeuxd configuration file.
type Config struct {
	ListenAddr string `json:"listen_addr"`
	MountPath  string `json:"mount_path"`
	LogLevel   string `json:"log_level"`

	Timeout               int  `json:"timeout_ms"`
	Interval              int  `json:"interval_ms"`
	MaxInterval           int  `json:"max_interval_ms"`
	SweepPeriod           int  `json:"sweep_period_ms"`
	MaxSessionsPerBrowser int  `json:"max_sessions_per_browser"`
	MultiSessionInterval  int  `json:"multi_session_interval_ms"`
	EnableAck             bool `json:"enable_ack"`
}

// Default returns the configuration written out when no file exists yet.
func Default() Config {
	return Config{
		ListenAddr:            ":8080",
		MountPath:             "/bayeux",
		LogLevel:              "info",
		Timeout:               30000,
		Interval:              0,
		MaxInterval:           10000,
		SweepPeriod:           997,
		MaxSessionsPerBrowser: 1,
		MultiSessionInterval:  2000,
		EnableAck:             true,
	}
}

// Load reads path, scaffolding it with Default() and returning an error that
// asks the caller to try again if it does not exist yet - matching the
// teacher's ReadConfig contract.
func Load(path string) (Config, error) {
	bytes, err := os.ReadFile(path)
	if err != nil {
		cfg := Default()
		data, _ := json.MarshalIndent(cfg, "", "\t")
		if writeErr := os.WriteFile(path, data, 0644); writeErr != nil {
			return cfg, writeErr
		}
		return cfg, errors.New("the configuration file does not exist and has been created; edit it and try again")
	}

	cfg := Default()
	if err := json.Unmarshal(bytes, &cfg); err != nil {
		return cfg, errors.New("the configuration file does not contain valid JSON")
	}
	return cfg, nil
}
