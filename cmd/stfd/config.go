package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/btcsuite/btclog/v2"
	flags "github.com/jessevdk/go-flags"
)

const (
	defaultConfigFilename = "stfd.conf"
	defaultDataDirname    = "data"
	defaultRPCListen      = "127.0.0.1:26658"
	defaultDebugLevel     = "info"
)

var defaultHomeDir = func() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return filepath.Join(home, ".stfd")
}()

// config defines the configuration options for stfd.
//
// See loadConfig for further details regarding the configuration
// loading+parsing process.
type config struct {
	HomeDir    string `long:"homedir" description:"The base directory that contains stfd's data and configuration file"`
	ConfigFile string `short:"C" long:"configfile" description:"Path to configuration file"`
	DataDir    string `short:"b" long:"datadir" description:"The directory to store the ledger within"`
	InMemory   bool   `long:"inmemory" description:"Keep the ledger in memory; nothing survives a restart"`

	Genesis string `long:"genesis" description:"Path to a JSON genesis document, built when the ledger is empty and the node sends none"`

	RPCListen     string `long:"rpclisten" description:"Address to serve the gRPC runtime service on"`
	MetricsListen string `long:"metricslisten" description:"Address to serve prometheus metrics on; empty disables metrics"`

	DebugLevel string `short:"d" long:"debuglevel" description:"Logging level for all subsystems {trace, debug, info, warn, error, critical}"`

	RequireTimestamp bool   `long:"require-timestamp" description:"Reject blocks without a timestamp.set inherent"`
	MaxBlockBytes    uint32 `long:"maxblockbytes" description:"Maximum total encoded extrinsic bytes per block; 0 uses the default"`
}

// defaultConfig returns a config with sane defaults.
func defaultConfig() config {
	return config{
		HomeDir:    defaultHomeDir,
		ConfigFile: filepath.Join(defaultHomeDir, defaultConfigFilename),
		DataDir:    filepath.Join(defaultHomeDir, defaultDataDirname),
		RPCListen:  defaultRPCListen,
		DebugLevel: defaultDebugLevel,
	}
}

// loadConfig initializes and parses the config using a config file
// and command line options.
//
// The configuration proceeds as follows:
//  1. Start with a default config with sane settings
//  2. Pre-parse the command line to check for an alternative config file
//  3. Load configuration file overwriting defaults with any specified options
//  4. Parse CLI options and overwrite/add any specified options
func loadConfig() (*config, error) {
	preCfg := defaultConfig()
	if _, err := flags.Parse(&preCfg); err != nil {
		return nil, err
	}

	// A custom home directory moves the default config file and data
	// directory with it.
	cfg := preCfg
	if preCfg.HomeDir != defaultHomeDir {
		if preCfg.ConfigFile == filepath.Join(defaultHomeDir, defaultConfigFilename) {
			cfg.ConfigFile = filepath.Join(preCfg.HomeDir, defaultConfigFilename)
		}
		if preCfg.DataDir == filepath.Join(defaultHomeDir, defaultDataDirname) {
			cfg.DataDir = filepath.Join(preCfg.HomeDir, defaultDataDirname)
		}
	}

	if err := flags.IniParse(cfg.ConfigFile, &cfg); err != nil {
		// A missing config file is fine; a malformed one is not.
		var iniErr *flags.IniError
		if errors.As(err, &iniErr) {
			return nil, err
		}
	}

	if _, err := flags.Parse(&cfg); err != nil {
		return nil, err
	}

	if _, ok := btclog.LevelFromString(cfg.DebugLevel); !ok {
		return nil, fmt.Errorf("invalid debuglevel %q", cfg.DebugLevel)
	}
	if cfg.RPCListen == "" {
		return nil, errors.New("rpclisten must be set")
	}
	return &cfg, nil
}
