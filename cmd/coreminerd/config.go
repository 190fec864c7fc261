package main

import (
	"encoding/hex"
	"errors"
	"os"
	"path/filepath"

	"github.com/jessevdk/go-flags"
)

const (
	defaultDataDir        = "coreminerd_data"
	defaultLogFilename    = "coreminerd.log"
	defaultErrLogFilename = "coreminerd_err.log"

	// defaultPayScriptHex stands in for a real pay-to address: this module
	// carries no script/address encoding, so the coinbase output script is
	// an opaque byte string AcceptVerifier never inspects.
	defaultPayScriptHex = "636f7265636f696e"
)

type config struct {
	DataDir     string `long:"datadir" description:"Directory to store the block index, block files, and tx index"`
	LogDir      string `long:"logdir" description:"Directory to write log files to"`
	PayScript   string `long:"pay-script" description:"Hex-encoded coinbase output script for mined blocks"`
	Generate    bool   `long:"generate" description:"Start mining immediately on launch"`
	DebugLevel  string `long:"debuglevel" description:"Logging level: trace, debug, info, warn, error, critical, or SUBSYSTEM=level,..." default:"info"`

	payScript []byte
}

func parseConfig() (*config, error) {
	cfg := &config{}
	parser := flags.NewParser(cfg, flags.PrintErrors|flags.HelpFlag)
	_, err := parser.Parse()
	if err != nil {
		return nil, err
	}

	if cfg.DataDir == "" {
		cfg.DataDir = defaultDataDir
	}
	if cfg.LogDir == "" {
		cfg.LogDir = cfg.DataDir
	}
	if cfg.PayScript == "" {
		cfg.PayScript = defaultPayScriptHex
	}

	payScript, err := hex.DecodeString(cfg.PayScript)
	if err != nil {
		return nil, errors.New("--pay-script must be valid hex")
	}
	cfg.payScript = payScript

	if err := os.MkdirAll(cfg.DataDir, 0700); err != nil {
		return nil, err
	}

	initLog(filepath.Join(cfg.LogDir, defaultLogFilename), filepath.Join(cfg.LogDir, defaultErrLogFilename), cfg.DebugLevel)

	return cfg, nil
}
