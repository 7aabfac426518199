// Copyright 2014 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/nilsen-re/memscan/engine"
	"github.com/nilsen-re/memscan/internal/config"
	linuxprovider "github.com/nilsen-re/memscan/internal/provider/linux"
	"github.com/nilsen-re/memscan/internal/rpcserver"
	apirpc "github.com/nilsen-re/memscan/rpc"
)

func serveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the scan engine and serve it over a local RPC socket",
		RunE:  runServe,
	}
	return cmd
}

func runServe(cmd *cobra.Command, args []string) error {
	logger := logrus.StandardLogger()

	settings, err := config.Load()
	if err != nil {
		logger.WithError(err).Warn("memscan: using default settings")
		settings = config.DefaultSettings()
	}

	session := engine.New(linuxprovider.New(), settings, logger)
	handler := apirpc.NewHandler(session)

	srv, err := rpcserver.New(handler, logger)
	if err != nil {
		return fmt.Errorf("memscan: register handler: %w", err)
	}

	listener, err := rpcserver.Listen()
	if err != nil {
		return fmt.Errorf("memscan: listen: %w", err)
	}
	fmt.Printf("memscan serving pid %d — attach with: memscan repl --attach %d\n", os.Getpid(), os.Getpid())

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sig
		srv.Close()
	}()

	if err := srv.Serve(listener); err != nil {
		logger.WithError(err).Info("memscan: server stopped")
	}
	return nil
}
