// Copyright 2025 The MoveChain Authors
// This file is part of the go-move library.

package main

import (
	"fmt"
	"os"

	"github.com/naoina/toml"

	"github.com/movechain/go-move/common"
	"github.com/movechain/go-move/movelang"
)

// tomlConfig mirrors the TOML surface of a build configuration:
//
//	[addresses]
//	std = "0x1"
//	acct = "0x2"
//
//	[build]
//	opt = "s"
type tomlConfig struct {
	Addresses map[string]string
	Build     struct {
		Opt    string
		EmitIR bool
	}
}

// loadConfig merges a TOML config file into the compile options. Flags given
// on the command line win over the file.
func loadConfig(path string, opts *movelang.Options) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("config %s: %w", path, err)
	}
	defer f.Close()

	var cfg tomlConfig
	if err := toml.NewDecoder(f).Decode(&cfg); err != nil {
		return fmt.Errorf("config %s: %w", path, err)
	}
	for name, addr := range cfg.Addresses {
		if _, ok := opts.NamedAddresses[name]; !ok {
			opts.NamedAddresses[name] = common.HexToAddress(addr)
		}
	}
	if opts.OptLevel == "" && cfg.Build.Opt != "" {
		opts.OptLevel = cfg.Build.Opt
	}
	if cfg.Build.EmitIR {
		opts.EmitIR = true
	}
	return nil
}
