// Package config loads the reference client/server binaries' runtime
// configuration, following the viper-plus-fsnotify pattern used elsewhere
// in the source ecosystem this module is built from.
package config

import (
	"sync"

	log "github.com/sirupsen/logrus"
	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
)

// Config holds everything the reference rpcserver/rpcclient binaries need
// to start: where to listen or dial, how chatty to log, and whether the
// wire codec should bother snappy-compressing frames.
type Config struct {
	Addr      string
	LogLevel  string
	UseSnappy bool
}

var (
	mu      sync.Mutex
	current *Config
)

func init() {
	viper.SetEnvPrefix("rpc")
	viper.AutomaticEnv()

	viper.SetDefault("addr", "127.0.0.1:9736")
	viper.SetDefault("log_level", "info")
	viper.SetDefault("use_snappy", true)
}

func load() *Config {
	cfg := &Config{
		Addr:      viper.GetString("addr"),
		LogLevel:  viper.GetString("log_level"),
		UseSnappy: viper.GetBool("use_snappy"),
	}

	if lvl, err := log.ParseLevel(cfg.LogLevel); err != nil {
		log.WithError(err).Warn("couldn't parse log level, leaving it unchanged")
	} else {
		log.SetLevel(lvl)
	}

	return cfg
}

// Get returns the current configuration, loading it from viper (RPC_-
// prefixed environment variables over the defaults set in init, plus any
// config file named with SetConfigFile) on first use.
func Get() *Config {
	mu.Lock()
	defer mu.Unlock()
	if current == nil {
		current = load()
	}
	return current
}

// SetConfigFile points viper at a config file, loads it immediately, and
// starts watching it for live log-level reloads; it is a thin wrapper so
// cmd/ binaries don't need to import viper directly. WatchConfig is only
// safe to call once viper actually has a config file, which is why this
// is not done in init.
func SetConfigFile(path string) error {
	viper.SetConfigFile(path)
	if err := viper.ReadInConfig(); err != nil {
		return err
	}
	mu.Lock()
	current = load()
	mu.Unlock()

	viper.OnConfigChange(func(e fsnotify.Event) {
		mu.Lock()
		current = load()
		mu.Unlock()
		log.WithField("file", e.Name).Info("config changed, reloaded log level")
	})
	viper.WatchConfig()
	return nil
}
