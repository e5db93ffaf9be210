// Copyright (c) 2025 The StakeMesh developers
//
// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package main

import (
	"math/big"
	"os"

	"github.com/ethereum/go-ethereum/common/math"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"github.com/stakemesh/mesh/ledger"
	"github.com/stakemesh/mesh/mesh"
	"github.com/stakemesh/mesh/staking"
)

// genesisConfig describes the initial state of a fresh data directory:
// the admin account, token balances to mint and the pools to open.
type genesisConfig struct {
	Admin      mesh.Address `yaml:"admin"`
	Engine     mesh.Address `yaml:"engine"`
	Custody    mesh.Address `yaml:"custody"`
	FeeAccount mesh.Address `yaml:"feeAccount"`
	FeeSink    mesh.Address `yaml:"feeSink"`

	Balances []balanceConfig `yaml:"balances"`
	Pools    []poolConfig    `yaml:"pools"`
}

type balanceConfig struct {
	Address mesh.Address          `yaml:"address"`
	Amount  *math.HexOrDecimal256 `yaml:"amount"`
}

type poolConfig struct {
	ID   mesh.Address          `yaml:"id"`
	Rate *math.HexOrDecimal256 `yaml:"rate"`
}

func loadGenesisConfig(path string) (*genesisConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.WithMessage(err, "read genesis file")
	}
	var cfg genesisConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, errors.WithMessage(err, "parse genesis file")
	}
	return &cfg, cfg.validate()
}

// defaultGenesisConfig is used when no genesis file is given. It opens a
// devnet-style instance with a single pool, a funded admin account and
// funded fee/reward treasuries. The custody account pays out rewards on
// top of returned principal, so it must carry a balance beyond the
// principal it accumulates; an unfunded custody makes every rewarded
// exit fail.
func defaultGenesisConfig() *genesisConfig {
	amount := math.HexOrDecimal256(*new(big.Int).Lsh(big.NewInt(1), 60))
	return &genesisConfig{
		Admin:      mesh.BytesToAddress([]byte("devnet-admin")),
		Engine:     mesh.BytesToAddress([]byte("mesh-engine")),
		Custody:    mesh.BytesToAddress([]byte("mesh-custody")),
		FeeAccount: mesh.BytesToAddress([]byte("mesh-fees")),
		Balances: []balanceConfig{
			{Address: mesh.BytesToAddress([]byte("devnet-admin")), Amount: &amount},
			{Address: mesh.BytesToAddress([]byte("mesh-custody")), Amount: &amount},
			{Address: mesh.BytesToAddress([]byte("mesh-fees")), Amount: &amount},
		},
		Pools: []poolConfig{
			{ID: mesh.BytesToAddress([]byte("devnet-pool")), Rate: math.NewHexOrDecimal256(int64(mesh.DefaultRewardRate))},
		},
	}
}

func (cfg *genesisConfig) validate() error {
	if cfg.Admin.IsZero() {
		return errors.New("genesis: admin address is required")
	}
	if cfg.Engine.IsZero() {
		cfg.Engine = mesh.BytesToAddress([]byte("mesh-engine"))
	}
	if cfg.Custody.IsZero() {
		cfg.Custody = mesh.BytesToAddress([]byte("mesh-custody"))
	}
	if cfg.FeeAccount.IsZero() {
		cfg.FeeAccount = mesh.BytesToAddress([]byte("mesh-fees"))
	}
	for i, b := range cfg.Balances {
		if b.Address.IsZero() || b.Amount == nil {
			return errors.Errorf("genesis: balances[%d]: address and amount are required", i)
		}
	}
	for i, p := range cfg.Pools {
		if p.ID.IsZero() || p.Rate == nil {
			return errors.Errorf("genesis: pools[%d]: id and rate are required", i)
		}
	}
	return nil
}

// apply seeds a fresh instance: it mints the configured balances, installs
// the admin and opens the initial pools. It is a no-op when the engine has
// already been initialized, so restarting over an existing data directory
// keeps its state.
func (cfg *genesisConfig) apply(engine *staking.Staking, led *ledger.Ledger, now uint64) error {
	admin, err := engine.Admin()
	if err != nil {
		return err
	}
	if !admin.IsZero() {
		if admin != cfg.Admin {
			logger.Warn("genesis admin differs from stored admin, keeping stored", "stored", admin, "genesis", cfg.Admin)
		}
		return nil
	}

	for _, b := range cfg.Balances {
		if err := led.Mint(b.Address, (*big.Int)(b.Amount)); err != nil {
			return errors.WithMessage(err, "mint genesis balance")
		}
	}
	if err := engine.Initialize(cfg.Admin); err != nil {
		return err
	}
	if !cfg.FeeSink.IsZero() {
		if err := engine.SetFeeSink(cfg.Admin, cfg.FeeSink); err != nil {
			return err
		}
	}
	for _, p := range cfg.Pools {
		if err := engine.AddPool(cfg.Admin, p.ID, (*big.Int)(p.Rate), now); err != nil {
			return errors.WithMessagef(err, "open genesis pool %v", p.ID)
		}
	}
	logger.Info("genesis state applied", "admin", cfg.Admin, "balances", len(cfg.Balances), "pools", len(cfg.Pools))
	return nil
}
