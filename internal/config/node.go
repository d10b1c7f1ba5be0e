package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// maxDifficulty is the length of a hex SHA-256 digest.
const maxDifficulty = 64

type NodeConfig struct {
	ListenAddr        string
	AdvertiseAddr     string
	Peers             []string
	Difficulty        int
	GenesisTimestamp  float64
	ConsensusInterval time.Duration
	MineInterval      time.Duration
	RequestTimeout    time.Duration
	MaxConcurrency    uint
	CancelStaleMining bool
	EnablePrometheus  bool
	PrometheusAddr    string
}

func (c NodeConfig) Validate() error {
	if c.ListenAddr == "" {
		return fmt.Errorf("missing listen address")
	}
	if c.Difficulty < 0 || c.Difficulty > maxDifficulty {
		return fmt.Errorf("difficulty must be between 0 and %d, got %d", maxDifficulty, c.Difficulty)
	}
	if c.ConsensusInterval < 0 {
		return fmt.Errorf("consensus interval must not be negative")
	}
	if c.MineInterval < 0 {
		return fmt.Errorf("mine interval must not be negative")
	}
	if c.RequestTimeout <= 0 {
		return fmt.Errorf("request timeout must be positive")
	}
	if c.MaxConcurrency == 0 {
		return fmt.Errorf("max concurrency must be at least 1")
	}
	if c.EnablePrometheus && c.PrometheusAddr == "" {
		return fmt.Errorf("missing Prometheus address")
	}
	return nil
}

func LoadNodeConfigFromCLI() NodeConfig {
	return NodeConfig{
		ListenAddr:        viper.GetString("listen-addr"),
		AdvertiseAddr:     viper.GetString("advertise-addr"),
		Peers:             viper.GetStringSlice("peers"),
		Difficulty:        viper.GetInt("difficulty"),
		GenesisTimestamp:  viper.GetFloat64("genesis-timestamp"),
		ConsensusInterval: viper.GetDuration("consensus-interval"),
		MineInterval:      viper.GetDuration("mine-interval"),
		RequestTimeout:    viper.GetDuration("request-timeout"),
		MaxConcurrency:    viper.GetUint("max-concurrency"),
		CancelStaleMining: viper.GetBool("cancel-stale-mining"),
		EnablePrometheus:  viper.GetBool("enable-prometheus"),
		PrometheusAddr:    viper.GetString("prometheus-addr"),
	}
}
