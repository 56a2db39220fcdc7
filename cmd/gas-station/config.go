package main

import (
	"fmt"
	"os"

	"github.com/naoina/toml"

	"github.com/mantlenetworkio/gas-station/coinpool"
)

// fileConfig is the TOML layout accepted by --config. Flags override file
// values.
type fileConfig struct {
	RPC     string
	Sponsor string
	Pool    coinpool.Config
}

func loadConfig(path string) (*fileConfig, error) {
	cfg := &fileConfig{Pool: coinpool.DefaultConfig}
	if path == "" {
		return cfg, nil
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open config file: %w", err)
	}
	defer f.Close()
	if err := toml.NewDecoder(f).Decode(cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config file %s: %w", path, err)
	}
	return cfg, nil
}
