// This Source Code Form is subject to the terms of the MIT License.
// If a copy of the MIT License was not distributed with this
// file, you can obtain one at https://opensource.org/licenses/MIT.

// Package config loads a node's startup configuration from a TOML file
// and, separately, a YAML-formatted validator seed list used to
// bootstrap a fresh network.
package config

import (
	"github.com/BurntSushi/toml"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v2"
)

// Config is a node's startup configuration (host process
// parameters).
type Config struct {
	Host             string   `toml:"host"`
	Port             int      `toml:"port"`
	ValidatorAddress string   `toml:"validator_address"`
	InitialPeers     []string `toml:"initial_peers"`
	MiningEnabled    bool     `toml:"mining_enabled"`
	APIEnabled       bool     `toml:"api_enabled"`
	APIPort          int      `toml:"api_port"`
	// DBPath is the leveldb directory backing the chain store. Empty
	// runs with an in-memory-only chain (no persistence across restarts).
	DBPath string `toml:"db_path"`
}

// Default returns the documented defaults.
func Default() Config {
	return Config{
		Host:          "0.0.0.0",
		Port:          8333,
		MiningEnabled: false,
		APIEnabled:    true,
		APIPort:       8080,
	}
}

// Load decodes a TOML config file at path on top of Default.
func Load(path string) (Config, error) {
	cfg := Default()
	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return Config{}, errors.Wrap(err, "config: decode toml")
	}
	return cfg, nil
}

// ValidatorSeed is one entry in a YAML validator seed file, used to
// pre-register a genesis validator set without waiting on gossip.
type ValidatorSeed struct {
	Address string  `yaml:"address"`
	Stake   float64 `yaml:"stake"`
}

// ValidatorSeedFile is the top-level shape of a validator seed YAML doc.
type ValidatorSeedFile struct {
	Validators []ValidatorSeed `yaml:"validators"`
}

// LoadValidatorSeeds decodes raw as a ValidatorSeedFile.
func LoadValidatorSeeds(raw []byte) (ValidatorSeedFile, error) {
	var seeds ValidatorSeedFile
	if err := yaml.Unmarshal(raw, &seeds); err != nil {
		return ValidatorSeedFile{}, errors.Wrap(err, "config: decode validator seeds")
	}
	return seeds, nil
}
