// Copyright (c) 2025 The StakeMesh developers
//
// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package main

import (
	"context"
	"net"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/mattn/go-isatty"
	"github.com/pkg/errors"
	cli "gopkg.in/urfave/cli.v1"

	"github.com/stakemesh/mesh/co"
	"github.com/stakemesh/mesh/eventdb"
	"github.com/stakemesh/mesh/log"
	"github.com/stakemesh/mesh/lvldb"
)

func defaultDataDir() string {
	if home, err := os.UserHomeDir(); err == nil {
		return filepath.Join(home, ".mesh")
	}
	return ""
}

func initLogger(ctx *cli.Context) error {
	lvl, ok := log.ParseLevel(ctx.String(verbosityFlag.Name))
	if !ok {
		return errors.Errorf("invalid verbosity: %s", ctx.String(verbosityFlag.Name))
	}
	log.SetLevel(lvl)
	useColor := isatty.IsTerminal(os.Stderr.Fd()) || isatty.IsCygwinTerminal(os.Stderr.Fd())
	log.Init(os.Stderr, useColor)
	return nil
}

func makeDataDir(ctx *cli.Context) (string, error) {
	dir := ctx.String(dataDirFlag.Name)
	if dir == "" {
		return "", errors.Errorf("unable to infer default data dir, use -%s to specify one", dataDirFlag.Name)
	}
	if err := os.MkdirAll(dir, 0700); err != nil {
		return "", errors.WithMessagef(err, "create data dir [%s]", dir)
	}
	return dir, nil
}

func openMainDB(dataDir string) (*lvldb.LevelDB, error) {
	path := filepath.Join(dataDir, "main.db")
	db, err := lvldb.New(path, lvldb.Options{})
	if err != nil {
		return nil, errors.WithMessagef(err, "open main database [%s]", path)
	}
	return db, nil
}

func openEventDB(dataDir string) (*eventdb.EventDB, error) {
	path := filepath.Join(dataDir, "events.db")
	db, err := eventdb.New(path)
	if err != nil {
		return nil, errors.WithMessagef(err, "open event database [%s]", path)
	}
	return db, nil
}

// startAPIServer serves the handler until it fails or the server is stopped
// through the returned closer.
func startAPIServer(addr string, handler http.Handler) (string, func(), error) {
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return "", nil, errors.WithMessagef(err, "listen API addr [%s]", addr)
	}
	srv := &http.Server{Handler: handler, ReadHeaderTimeout: 10 * time.Second}
	var goes co.Goes
	goes.Go(func() {
		srv.Serve(listener)
	})
	return "http://" + listener.Addr().String() + "/", func() {
		srv.Close()
		goes.Wait()
	}, nil
}

// handleExitSignal returns a context canceled on SIGINT or SIGTERM.
func handleExitSignal() context.Context {
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		exit := make(chan os.Signal, 1)
		signal.Notify(exit, os.Interrupt, syscall.SIGTERM)

		sig := <-exit
		logger.Info("exit signal received", "signal", sig)
		cancel()
	}()
	return ctx
}
