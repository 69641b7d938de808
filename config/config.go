package config

import (
	"fmt"

	"zchain/blockchain"
	"zchain/logx"
	"zchain/miner"
	"zchain/util"

	"github.com/pkg/errors"
	"gopkg.in/ini.v1"
)

type MinerConfig struct {
	Threads    int    `ini:"threads"`
	Strategy   string `ini:"strategy"`
	BatchSize  int    `ini:"batch_size"`
	NonceSpace uint64 `ini:"nonce_space"`
}

type ChainConfig struct {
	Difficulty      int    `ini:"difficulty"`
	BufferCharacter string `ini:"buffer_character"`
	Hasher          string `ini:"hasher"`
	PreimageLayout  string `ini:"preimage_layout"`
}

type LogConfig struct {
	File       string `ini:"file"`
	MaxSizeMB  int    `ini:"max_size_mb"`
	MaxAgeDays int    `ini:"max_age_days"`
	Level      string `ini:"level"`
}

type MonitoringConfig struct {
	MetricsAddr string `ini:"metrics_addr"`
}

type Config struct {
	Miner      MinerConfig
	Chain      ChainConfig
	Log        LogConfig
	Monitoring MonitoringConfig
}

func Default() Config {
	return Config{
		Miner: MinerConfig{
			Threads:    4,
			Strategy:   miner.RandomNonce.String(),
			BatchSize:  miner.DefaultBatchSize,
			NonceSpace: miner.DefaultNonceSpace,
		},
		Chain: ChainConfig{
			Difficulty:      4,
			BufferCharacter: string(blockchain.DefaultBufferCharacter),
			Hasher:          "sha256",
			PreimageLayout:  blockchain.ConcatLayout.String(),
		},
		Log: LogConfig{
			MaxSizeMB:  100,
			MaxAgeDays: 7,
			Level:      "info",
		},
	}
}

// Load overlays the sections found in the ini file at path on top of Default().
func Load(path string) (*Config, error) {
	logx.Info("CONFIG", fmt.Sprintf("Loading config from %s", path))
	file, err := ini.Load(path)
	if err != nil {
		return nil, errors.Wrapf(err, "load config %s", path)
	}

	cfg := Default()
	sections := []struct {
		name   string
		target interface{}
	}{
		{"miner", &cfg.Miner},
		{"chain", &cfg.Chain},
		{"log", &cfg.Log},
		{"monitoring", &cfg.Monitoring},
	}
	for _, s := range sections {
		if !file.HasSection(s.name) {
			continue
		}
		if err := file.Section(s.name).MapTo(s.target); err != nil {
			return nil, errors.Wrapf(err, "parse section [%s]", s.name)
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (cfg *Config) Validate() error {
	if _, err := cfg.MinerConfig(); err != nil {
		return err
	}
	if cfg.Chain.Difficulty <= 0 {
		return errors.Errorf("chain difficulty must exceed 0, got %d", cfg.Chain.Difficulty)
	}
	if _, err := cfg.BlockOptions(); err != nil {
		return err
	}
	if _, err := cfg.Hasher(); err != nil {
		return err
	}
	return nil
}

func (cfg *Config) MinerConfig() (miner.Config, error) {
	strategy, err := miner.ParseStrategy(cfg.Miner.Strategy)
	if err != nil {
		return miner.Config{}, err
	}
	mc := miner.Config{
		Threads:    cfg.Miner.Threads,
		Strategy:   strategy,
		BatchSize:  cfg.Miner.BatchSize,
		NonceSpace: cfg.Miner.NonceSpace,
	}
	if err := mc.Validate(); err != nil {
		return miner.Config{}, err
	}
	return mc, nil
}

func (cfg *Config) Hasher() (util.Hasher, error) {
	return util.HasherByName(cfg.Chain.Hasher)
}

func (cfg *Config) BlockOptions() ([]blockchain.Option, error) {
	if len(cfg.Chain.BufferCharacter) != 1 {
		return nil, errors.Errorf("buffer_character must be a single character, got %q", cfg.Chain.BufferCharacter)
	}
	layout, err := blockchain.ParsePreimageLayout(cfg.Chain.PreimageLayout)
	if err != nil {
		return nil, err
	}
	return []blockchain.Option{
		blockchain.WithBufferCharacter(cfg.Chain.BufferCharacter[0]),
		blockchain.WithPreimageLayout(layout),
	}, nil
}
