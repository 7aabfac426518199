// Copyright 2014 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package rpcclient

import (
	"os"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/nilsen-re/memscan/engine"
	"github.com/nilsen-re/memscan/internal/config"
	"github.com/nilsen-re/memscan/internal/provider"
	"github.com/nilsen-re/memscan/internal/rpcserver"
	apirpc "github.com/nilsen-re/memscan/rpc"
)

type nopProvider struct{}

func (nopProvider) ListProcesses(windowed bool, name string, matchCase bool) ([]provider.Process, error) {
	return []provider.Process{{PID: 7, Name: "target"}}, nil
}
func (nopProvider) OpenProcess(pid int) (provider.Handle, error) { return provider.Handle{PID: pid}, nil }
func (nopProvider) CloseProcess(provider.Handle) error           { return nil }
func (nopProvider) EnumerateRegions(provider.Handle) ([]provider.Page, error) { return nil, nil }
func (nopProvider) EnumerateModules(provider.Handle) ([]provider.Module, error) { return nil, nil }
func (nopProvider) Read(provider.Handle, uint64, []byte) bool  { return false }
func (nopProvider) Write(provider.Handle, uint64, []byte) bool { return false }

// TestDialAndProcessListRoundTrip exercises the real Unix-socket path
// both Listen and Dial use, keyed off the test process's own PID so it
// never collides with another memscan engine on the same machine.
func TestDialAndProcessListRoundTrip(t *testing.T) {
	pid := os.Getpid()
	_, socketName := socketNames(os.Getuid(), pid)
	defer os.Remove(socketName)

	session := engine.New(nopProvider{}, config.DefaultSettings(), nil)
	handler := apirpc.NewHandler(session)
	srv, err := rpcserver.New(handler, nil)
	require.NoError(t, err)

	listener, err := rpcserver.Listen()
	require.NoError(t, err)
	go srv.Serve(listener)
	defer srv.Close()

	client, err := Dial(pid)
	require.NoError(t, err)
	defer client.Close()

	resp, err := client.ProcessList(&apirpc.ProcessListRequest{})
	require.NoError(t, err)
	require.Len(t, resp.Processes, 1)
	require.Equal(t, 7, resp.Processes[0].PID)
}
