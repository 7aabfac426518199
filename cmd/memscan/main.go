// Copyright 2014 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// The memscan command attaches the scan engine to a running Linux
// process, serves it over a local RPC socket (the serve subcommand),
// and, in a second invocation of the repl subcommand, drives it from an
// interactive shell — the command-tree shape ogleproxy/ogle split
// across two binaries, folded here into one cobra root with two
// subcommands.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "memscan",
		Short: "Live process memory scanner",
	}
	root.AddCommand(serveCmd())
	root.AddCommand(replCmd())
	return root
}
