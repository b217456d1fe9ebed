// Package config holds the runtime settings of the server.
package config

import (
	"bytes"
	"flag"
	"io"
	"os"
	"time"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"

	"github.com/alepar/aranet4/aranet"
	"github.com/alepar/aranet4/poller"
)

type Config struct {
	ListenAddress  string        `yaml:"listen_address"`
	ReadInterval   time.Duration `yaml:"read_interval"`
	ScanDuration   time.Duration `yaml:"scan_duration"`
	ConnectTimeout time.Duration `yaml:"connect_timeout"`
	NamePrefix     string        `yaml:"name_prefix"`
	DBPath         string        `yaml:"db"`
	LogLevel       string        `yaml:"log_level"`

	// command line only
	File        string `yaml:"-"`
	ShowVersion bool   `yaml:"-"`
}

func Default() Config {
	return Config{
		ListenAddress:  ":3000",
		ReadInterval:   poller.DefaultInterval,
		ScanDuration:   aranet.DefaultScanDuration,
		ConnectTimeout: 10 * time.Second,
		NamePrefix:     aranet.DefaultNamePrefix,
		DBPath:         "aranet4.db",
		LogLevel:       "info",
	}
}

// RegisterFlags binds the command line flags onto cfg. Current values of
// cfg are the flag defaults.
func RegisterFlags(fs *flag.FlagSet, cfg *Config) {
	fs.StringVar(&cfg.ListenAddress, "listen-address", cfg.ListenAddress, "The address to listen on for HTTP requests.")
	fs.DurationVar(&cfg.ReadInterval, "read-int", cfg.ReadInterval, "time interval between sensor reads")
	fs.DurationVar(&cfg.ScanDuration, "scan-dur", cfg.ScanDuration, "scan duration")
	fs.DurationVar(&cfg.ConnectTimeout, "connect-timeout", cfg.ConnectTimeout, "timeout for connecting to the sensor")
	fs.StringVar(&cfg.NamePrefix, "name-prefix", cfg.NamePrefix, "advertised name prefix of the sensor")
	fs.StringVar(&cfg.DBPath, "db", cfg.DBPath, "path to the sqlite history file")
	fs.StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "log level (debug, info, warn, error)")
	fs.StringVar(&cfg.File, "config", cfg.File, "optional YAML config file; flags win over it")
	fs.BoolVar(&cfg.ShowVersion, "version", cfg.ShowVersion, "print version information and exit")
}

// Parse builds the config from defaults, the optional YAML file named by
// -config and the command line, in that order of precedence.
func Parse(fs *flag.FlagSet, args []string) (Config, error) {
	cfg := Default()
	RegisterFlags(fs, &cfg)
	if err := fs.Parse(args); err != nil {
		return Config{}, err
	}
	if cfg.File != "" {
		if err := Load(cfg.File, &cfg); err != nil {
			return Config{}, err
		}
		// explicit flags override the file
		if err := fs.Parse(args); err != nil {
			return Config{}, err
		}
	}
	return cfg, cfg.Validate()
}

// Load overlays the YAML file at path onto cfg. Unknown keys are rejected.
func Load(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return errors.Wrap(err, "read config")
	}
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && err != io.EOF {
		return errors.Wrapf(err, "parse config %s", path)
	}
	return nil
}

func (c Config) Validate() error {
	if c.ListenAddress == "" {
		return errors.New("config: listen address required")
	}
	if c.ReadInterval <= 0 {
		return errors.New("config: read interval must be > 0")
	}
	if c.ScanDuration <= 0 {
		return errors.New("config: scan duration must be > 0")
	}
	if c.ConnectTimeout <= 0 {
		return errors.New("config: connect timeout must be > 0")
	}
	if c.NamePrefix == "" {
		return errors.New("config: name prefix required")
	}
	if c.DBPath == "" {
		return errors.New("config: db path required")
	}
	if _, err := log.ParseLevel(c.LogLevel); err != nil {
		return errors.Wrap(err, "config")
	}
	return nil
}
