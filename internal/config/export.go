package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

type ExportConfig struct {
	BlockStart     uint64
	BlockStop      uint64
	RequestTimeout time.Duration
}

func (c ExportConfig) Validate() error {
	if c.BlockStop != 0 && c.BlockStart > c.BlockStop {
		return fmt.Errorf("start block %d is after stop block %d", c.BlockStart, c.BlockStop)
	}
	if c.RequestTimeout <= 0 {
		return fmt.Errorf("request timeout must be positive")
	}
	return nil
}

func LoadExportConfigFromCLI() ExportConfig {
	return ExportConfig{
		BlockStart:     viper.GetUint64("start"),
		BlockStop:      viper.GetUint64("stop"),
		RequestTimeout: viper.GetDuration("request-timeout"),
	}
}
