// Package config loads settings from an optional file, SUIML_* environment
// variables and defaults, in increasing order of precedence: defaults, file,
// environment.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"

	"suiml.io/suiml/logging"
	"suiml.io/suiml/sui"
)

type Config struct {
	Network  Network  `mapstructure:"network"`
	Contract Contract `mapstructure:"contract"`
	Gas      Gas      `mapstructure:"gas"`
	Key      Key      `mapstructure:"key"`
	Backend  Backend  `mapstructure:"backend"`
	Session  Session  `mapstructure:"session"`
	Storage  Storage  `mapstructure:"storage"`
	Server   Server   `mapstructure:"server"`
	Kafka    Kafka    `mapstructure:"kafka"`
	Metrics  Metrics  `mapstructure:"metrics"`
	Log      Log      `mapstructure:"log"`
}

type Network struct {
	Name           string        `mapstructure:"name"`
	RPCURL         string        `mapstructure:"rpc_url"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
	ReadRetries    int           `mapstructure:"read_retries"`
}

type Contract struct {
	PackageID string `mapstructure:"package_id"`
	Module    string `mapstructure:"module"`
}

type Gas struct {
	Budget uint64 `mapstructure:"budget"`
	Price  uint64 `mapstructure:"price"`
}

type Key struct {
	Name       string `mapstructure:"name"`
	Role       string `mapstructure:"role"`
	Dir        string `mapstructure:"dir"`
	PrivateKey string `mapstructure:"private_key"`
}

type Backend struct {
	BaseURL       string        `mapstructure:"base_url"`
	Timeout       time.Duration `mapstructure:"timeout"`
	ProverTimeout time.Duration `mapstructure:"prover_timeout"`
}

type Session struct {
	Path string `mapstructure:"path"`
}

type Storage struct {
	Config     string `mapstructure:"config"`
	LocalFSDir string `mapstructure:"localfs_dir"`
}

type Server struct {
	Addr        string   `mapstructure:"addr"`
	JWTSecret   string   `mapstructure:"jwt_secret"`
	CORSOrigins []string `mapstructure:"cors_origins"`
}

type Kafka struct {
	Brokers string `mapstructure:"brokers"`
	Topic   string `mapstructure:"topic"`
}

type Metrics struct {
	StatsdAddr string  `mapstructure:"statsd_addr"`
	SampleRate float64 `mapstructure:"sample_rate"`
}

type Log struct {
	Level   string `mapstructure:"level"`
	Console bool   `mapstructure:"console"`
}

var defaults = map[string]any{
	"network.name":            "testnet",
	"network.rpc_url":         "",
	"network.request_timeout": 30 * time.Second,
	"network.read_retries":    2,
	"contract.package_id":     "",
	"contract.module":         "model",
	"gas.budget":              uint64(3_000_000_000),
	"gas.price":               uint64(0),
	"key.name":                "",
	"key.role":                "",
	"key.dir":                 "",
	"key.private_key":         "",
	"backend.base_url":        "http://localhost:8000",
	"backend.timeout":         15 * time.Second,
	"backend.prover_timeout":  30 * time.Second,
	"session.path":            "~/.suiml/session.json",
	"storage.config":          "",
	"storage.localfs_dir":     "",
	"server.addr":             "127.0.0.1:8080",
	"server.jwt_secret":       "",
	"server.cors_origins":     []string{"*"},
	"kafka.brokers":           "",
	"kafka.topic":             "",
	"metrics.statsd_addr":     "",
	"metrics.sample_rate":     1.0,
	"log.level":               "INFO",
	"log.console":             true,
}

// Load reads path (YAML, JSON or TOML by extension; empty means none),
// overlays the environment and validates the result.
func Load(path string) (Config, error) {
	v := viper.New()
	for k, d := range defaults {
		v.SetDefault(k, d)
	}
	v.SetEnvPrefix("SUIML")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("decode config: %w", err)
	}
	if cfg.Network.RPCURL == "" {
		url, ok := sui.NetworkURL(cfg.Network.Name)
		if !ok {
			return Config{}, fmt.Errorf("unknown network %q and no network.rpc_url", cfg.Network.Name)
		}
		cfg.Network.RPCURL = url
	}
	cfg.Session.Path = expandHome(cfg.Session.Path)
	cfg.Key.Dir = expandHome(cfg.Key.Dir)
	cfg.Storage.LocalFSDir = expandHome(cfg.Storage.LocalFSDir)
	cfg.Storage.Config = expandHome(cfg.Storage.Config)
	return cfg, cfg.Validate()
}

func expandHome(p string) string {
	if p != "~" && !strings.HasPrefix(p, "~/") {
		return p
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return p
	}
	return filepath.Join(home, strings.TrimPrefix(p, "~"))
}

func (c Config) Validate() error {
	if c.Gas.Budget == 0 {
		return fmt.Errorf("gas.budget must be positive")
	}
	if c.Network.RequestTimeout <= 0 {
		return fmt.Errorf("network.request_timeout must be positive")
	}
	if c.Network.ReadRetries < 0 {
		return fmt.Errorf("network.read_retries must not be negative")
	}
	if c.Backend.Timeout <= 0 || c.Backend.ProverTimeout <= 0 {
		return fmt.Errorf("backend timeouts must be positive")
	}
	if c.Metrics.SampleRate <= 0 || c.Metrics.SampleRate > 1 {
		return fmt.Errorf("metrics.sample_rate must be in (0, 1]")
	}
	if _, err := logging.ParseLevel(c.Log.Level); err != nil {
		return err
	}
	if c.Contract.Module == "" {
		return fmt.Errorf("contract.module must not be empty")
	}
	if c.Contract.PackageID != "" {
		if _, err := sui.ParseAddress(c.Contract.PackageID); err != nil {
			return fmt.Errorf("contract.package_id: %w", err)
		}
	}
	if (c.Kafka.Brokers == "") != (c.Kafka.Topic == "") {
		return fmt.Errorf("kafka.brokers and kafka.topic must be set together")
	}
	return nil
}

// PackageID returns the contract package, failing when it is not configured.
func (c Config) PackageID() (sui.ObjectID, error) {
	if c.Contract.PackageID == "" {
		return sui.ObjectID{}, fmt.Errorf("contract.package_id is not configured (set SUIML_CONTRACT_PACKAGE_ID)")
	}
	return sui.ParseAddress(c.Contract.PackageID)
}
