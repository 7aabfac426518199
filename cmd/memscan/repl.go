// Copyright 2014 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package main

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/chzyer/readline"
	"github.com/spf13/cobra"

	"github.com/nilsen-re/memscan/compare"
	"github.com/nilsen-re/memscan/internal/rpcclient"
	apirpc "github.com/nilsen-re/memscan/rpc"
	"github.com/nilsen-re/memscan/results"
	"github.com/nilsen-re/memscan/valuetype"
)

func replCmd() *cobra.Command {
	var attachPID int
	cmd := &cobra.Command{
		Use:   "repl",
		Short: "Attach to a running memscan serve instance and drive it interactively",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRepl(attachPID)
		},
	}
	cmd.Flags().IntVar(&attachPID, "attach", 0, "PID of the memscan serve process to attach to")
	cmd.MarkFlagRequired("attach")
	return cmd
}

func runRepl(pid int) error {
	client, err := rpcclient.Dial(pid)
	if err != nil {
		return fmt.Errorf("memscan: dial pid %d: %w", pid, err)
	}
	defer client.Close()

	rl, err := readline.New("memscan> ")
	if err != nil {
		return fmt.Errorf("memscan: readline: %w", err)
	}
	defer rl.Close()

	r := &repl{client: client, out: rl.Stdout()}
	for {
		line, err := rl.Readline()
		if err == readline.ErrInterrupt {
			continue
		}
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}
		fields := strings.Fields(line)
		if len(fields) == 0 {
			continue
		}
		if fields[0] == "quit" || fields[0] == "exit" {
			return nil
		}
		if err := r.dispatch(fields); err != nil {
			fmt.Fprintf(r.out, "error: %v\n", err)
		}
	}
}

// repl holds the one live client connection and dispatches each typed
// command line, in the same one-verb-per-line shape as ogle's own CLI
// front end.
type repl struct {
	client *rpcclient.Client
	out    io.Writer
}

func (r *repl) dispatch(fields []string) error {
	switch fields[0] {
	case "list":
		return r.list()
	case "open":
		return r.open(fields[1:])
	case "close":
		return r.close()
	case "new":
		return r.scanNew()
	case "element":
		return r.scanElement(fields[1:])
	case "results":
		return r.results(fields[1:])
	case "freeze":
		return r.setFrozen(fields[1:], true)
	case "unfreeze":
		return r.setFrozen(fields[1:], false)
	default:
		return fmt.Errorf("unknown command %q (try: list, open, close, new, element, results, freeze, unfreeze, quit)", fields[0])
	}
}

func (r *repl) list() error {
	resp, err := r.client.ProcessList(&apirpc.ProcessListRequest{})
	if err != nil {
		return err
	}
	for _, p := range resp.Processes {
		fmt.Fprintf(r.out, "%6d  %s\n", p.PID, p.Name)
	}
	return nil
}

func (r *repl) open(args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("usage: open <pid|name>")
	}
	req := &apirpc.ProcessOpenRequest{}
	if pid, err := strconv.Atoi(args[0]); err == nil {
		req.ProcessID = pid
	} else {
		req.SearchName = args[0]
	}
	resp, err := r.client.ProcessOpen(req)
	if err != nil {
		return err
	}
	fmt.Fprintf(r.out, "opened %s [%d]\n", resp.OpenedProcess.Name, resp.OpenedProcess.PID)
	return nil
}

func (r *repl) close() error {
	_, err := r.client.ProcessClose(&apirpc.ProcessCloseRequest{})
	return err
}

func (r *repl) scanNew() error {
	_, err := r.client.ScanNew(&apirpc.ScanNewRequest{})
	return err
}

// scanElement parses "element <type> <compare> [value]", e.g.
// "element i32 equal 100" or "element f32 changed".
func (r *repl) scanElement(args []string) error {
	if len(args) < 2 {
		return fmt.Errorf("usage: element <type> <compare> [value]")
	}
	dt, err := valuetype.ParseKindName(args[0])
	if err != nil {
		return err
	}
	kind, err := compare.ParseKindName(args[1])
	if err != nil {
		return err
	}
	constraint := apirpc.ElementConstraint{
		DataType:  dt,
		Alignment: 1,
		Compare:   kind,
		Operand:   uint8(0), // scan.OperandImmediate
	}
	if kind.Category() == compare.CategoryRelative {
		constraint.Operand = uint8(1) // scan.OperandRelative
	}
	if len(args) >= 3 {
		anon, err := valuetype.ParseAnonymousString(args[2])
		if err != nil {
			return err
		}
		value, err := anon.Decode(dt)
		if err != nil {
			return err
		}
		buf := make([]byte, dt.SizeInBytes())
		valuetype.EncodeInto(buf, dt, value.Uint64(), value.Bytes())
		constraint.Immediate = buf
	}
	resp, err := r.client.ScanElement(&apirpc.ScanElementRequest{Constraints: []apirpc.ElementConstraint{constraint}})
	if err != nil {
		return err
	}
	fmt.Fprintf(r.out, "%d results (%d bytes)\n", resp.ResultCount, resp.TotalSizeInBytes)
	return nil
}

func (r *repl) results(args []string) error {
	page, size := 0, 20
	if len(args) >= 1 {
		if v, err := strconv.Atoi(args[0]); err == nil {
			page = v
		}
	}
	if len(args) >= 2 {
		if v, err := strconv.Atoi(args[1]); err == nil {
			size = v
		}
	}
	resp, err := r.client.ResultsQuery(&apirpc.ResultsQueryRequest{PageIndex: page, PageSize: size})
	if err != nil {
		return err
	}
	for _, res := range resp.Results {
		frozen := ""
		if res.IsFrozen {
			frozen = " [frozen]"
		}
		fmt.Fprintf(r.out, "0x%x  %v%s\n", res.Address, res.CurrentBytes, frozen)
	}
	fmt.Fprintf(r.out, "page %d/%d of %d results\n", resp.PageIndex, resp.LastPageIndex, resp.ResultCount)
	return nil
}

func (r *repl) setFrozen(args []string, frozen bool) error {
	if len(args) != 2 {
		return fmt.Errorf("usage: freeze|unfreeze <address> <type>")
	}
	addr, err := strconv.ParseUint(strings.TrimPrefix(args[0], "0x"), 16, 64)
	if err != nil {
		return err
	}
	dt, err := valuetype.ParseKindName(args[1])
	if err != nil {
		return err
	}
	refResp, err := r.client.ResultsMakeRef(&apirpc.ResultsMakeRefRequest{Address: addr, DataType: dt})
	if err != nil {
		return err
	}
	freezeResp, err := r.client.ResultsFreeze(&apirpc.ResultsFreezeRequest{
		Refs:     []results.Ref{refResp.Ref},
		IsFrozen: frozen,
	})
	if err != nil {
		return err
	}
	if len(freezeResp.FailedRefs) > 0 {
		return fmt.Errorf("address 0x%x is stale, run 'results' again", addr)
	}
	return nil
}
