package config

import (
	"os"
	"time"

	"gopkg.in/yaml.v2"
)

type Config struct {
	Network     NetworkConfig `yaml:"network"`
	LevelDbPath string        `yaml:"level_db_path"`
	RPCTimeout  time.Duration `yaml:"rpc_timeout"`
}

type NetworkConfig struct {
	NetworkID   string   `yaml:"network_id"`
	ChainID     uint64   `yaml:"chain_id"`
	GenesisHash string   `yaml:"genesis_hash"`
	RPCURLs     []string `yaml:"rpc_urls"`
}

// DefaultNetwork is the catalyst testnet, the only public network today.
func DefaultNetwork() NetworkConfig {
	return NetworkConfig{
		NetworkID:   "catalyst-testnet",
		ChainID:     200820092,
		GenesisHash: "0xeea1b7a4c90f3d25861d44f17f2aeb46930a7d2db5c30814c5d2a14fe09fee5a",
		RPCURLs: []string{
			"https://rpc-eu.catalyst.network",
			"https://rpc-us.catalyst.network",
			"https://rpc-asia.catalyst.network",
		},
	}
}

func NewConfig(path string) (*Config, error) {
	var config = new(Config)
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	err = yaml.Unmarshal(data, config)
	if err != nil {
		return nil, err
	}
	applyDefaults(config)
	return config, nil
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	config := new(Config)
	applyDefaults(config)
	return config
}

func applyDefaults(config *Config) {
	defaults := DefaultNetwork()
	if config.Network.NetworkID == "" {
		config.Network.NetworkID = defaults.NetworkID
	}
	if config.Network.ChainID == 0 {
		config.Network.ChainID = defaults.ChainID
	}
	if config.Network.GenesisHash == "" {
		config.Network.GenesisHash = defaults.GenesisHash
	}
	if len(config.Network.RPCURLs) == 0 {
		config.Network.RPCURLs = defaults.RPCURLs
	}
	if config.LevelDbPath == "" {
		config.LevelDbPath = "./catalyst-wallet-db"
	}
	if config.RPCTimeout == 0 {
		config.RPCTimeout = 10 * time.Second
	}
}
