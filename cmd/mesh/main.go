// Copyright (c) 2025 The StakeMesh developers
//
// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package main

import (
	"fmt"
	"os"
	"time"

	cli "gopkg.in/urfave/cli.v1"

	"github.com/stakemesh/mesh/api"
	"github.com/stakemesh/mesh/eventdb"
	"github.com/stakemesh/mesh/events"
	"github.com/stakemesh/mesh/ledger"
	"github.com/stakemesh/mesh/log"
	"github.com/stakemesh/mesh/mesh"
	"github.com/stakemesh/mesh/metrics"
	"github.com/stakemesh/mesh/staking"
	"github.com/stakemesh/mesh/state"
	"github.com/stakemesh/mesh/storage"
)

var (
	version   = "0.1.0"
	gitCommit string
	release   = "dev"

	logger = log.WithContext("pkg", "main")
)

// ledgerAddress is the storage context of the token ledger. Engine, custody
// and fee accounts come from the genesis config.
var ledgerAddress = mesh.BytesToAddress([]byte("mesh-ledger"))

func fullVersion() string {
	if gitCommit == "" {
		return fmt.Sprintf("%s-%s", version, release)
	}
	return fmt.Sprintf("%s-%s-%s", version, release, gitCommit)
}

func main() {
	app := cli.App{
		Version:   fullVersion(),
		Name:      "mesh",
		Usage:     "Node of StakeMesh, the ledger-backed staking engine",
		Copyright: "(c) 2025 The StakeMesh developers",
		Flags: []cli.Flag{
			genesisFlag,
			dataDirFlag,
			apiAddrFlag,
			apiCorsFlag,
			apiEventsLimitFlag,
			verbosityFlag,
			enableMetricsFlag,
			skipEventsFlag,
		},
		Action: defaultAction,
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func defaultAction(ctx *cli.Context) error {
	if err := initLogger(ctx); err != nil {
		return err
	}
	if ctx.Bool(enableMetricsFlag.Name) {
		metrics.InitializePrometheusMetrics()
	}

	genesis := defaultGenesisConfig()
	if path := ctx.String(genesisFlag.Name); path != "" {
		loaded, err := loadGenesisConfig(path)
		if err != nil {
			return err
		}
		genesis = loaded
	}

	dataDir, err := makeDataDir(ctx)
	if err != nil {
		return err
	}

	mainDB, err := openMainDB(dataDir)
	if err != nil {
		return err
	}
	defer func() { logger.Info("closing main database..."); mainDB.Close() }()

	var sink events.Sink
	var eventDB *eventdb.EventDB
	if !ctx.Bool(skipEventsFlag.Name) {
		if eventDB, err = openEventDB(dataDir); err != nil {
			return err
		}
		defer func() { logger.Info("closing event database..."); eventDB.Close() }()
		sink = eventDB
	}

	st := state.New(mainDB)
	led := ledger.New(storage.NewContext(ledgerAddress, st))
	engine := staking.New(staking.Config{
		Address:    genesis.Engine,
		Custody:    genesis.Custody,
		FeeAccount: genesis.FeeAccount,
	}, st, led, sink)

	if err := genesis.apply(engine, led, uint64(time.Now().Unix())); err != nil {
		return err
	}

	handler, closeAPI := api.New(engine, eventDB, api.Options{
		AllowedOrigins: ctx.String(apiCorsFlag.Name),
		EventsLimit:    ctx.Uint64(apiEventsLimitFlag.Name),
		EnableMetrics:  ctx.Bool(enableMetricsFlag.Name),
	})
	defer func() { logger.Info("closing API..."); closeAPI() }()

	url, closeServer, err := startAPIServer(ctx.String(apiAddrFlag.Name), handler)
	if err != nil {
		return err
	}
	defer func() { logger.Info("stopping API server..."); closeServer() }()

	logger.Info("starting mesh node",
		"version", fullVersion(),
		"dataDir", dataDir,
		"apiURL", url,
	)

	<-handleExitSignal().Done()
	return nil
}
