// Copyright 2014 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package rpcserver

import (
	"net"
	"net/rpc"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/nilsen-re/memscan/engine"
	"github.com/nilsen-re/memscan/internal/config"
	"github.com/nilsen-re/memscan/internal/provider"
	apirpc "github.com/nilsen-re/memscan/rpc"
)

type nopProvider struct{}

func (nopProvider) ListProcesses(windowed bool, name string, matchCase bool) ([]provider.Process, error) {
	return []provider.Process{{PID: 1, Name: "target"}}, nil
}
func (nopProvider) OpenProcess(pid int) (provider.Handle, error) { return provider.Handle{PID: pid}, nil }
func (nopProvider) CloseProcess(provider.Handle) error           { return nil }
func (nopProvider) EnumerateRegions(provider.Handle) ([]provider.Page, error) { return nil, nil }
func (nopProvider) EnumerateModules(provider.Handle) ([]provider.Module, error) { return nil, nil }
func (nopProvider) Read(provider.Handle, uint64, []byte) bool  { return false }
func (nopProvider) Write(provider.Handle, uint64, []byte) bool { return false }

// TestServeOverPipeConnection exercises registration and one round
// trip over an in-memory net.Pipe rather than a real Unix socket, so
// the test never touches the filesystem.
func TestServeOverPipeConnection(t *testing.T) {
	session := engine.New(nopProvider{}, config.DefaultSettings(), nil)
	handler := apirpc.NewHandler(session)
	srv, err := New(handler, nil)
	require.NoError(t, err)

	clientConn, serverConn := net.Pipe()
	defer clientConn.Close()

	listener := &singleConnListener{conns: []net.Conn{serverConn}}
	go srv.Serve(listener)
	defer srv.Close()

	client := rpc.NewClient(clientConn)
	defer client.Close()

	var resp apirpc.ProcessListResponse
	require.NoError(t, client.Call("Handler.ProcessList", &apirpc.ProcessListRequest{}, &resp))
	require.Len(t, resp.Processes, 1)
	require.Equal(t, 1, resp.Processes[0].PID)
}

// singleConnListener hands out a fixed set of connections, then
// blocks until closed; it lets the test drive net.Pipe through the
// same Accept loop Serve uses in production.
type singleConnListener struct {
	conns  []net.Conn
	closed chan struct{}
}

func (l *singleConnListener) Accept() (net.Conn, error) {
	if len(l.conns) > 0 {
		c := l.conns[0]
		l.conns = l.conns[1:]
		return c, nil
	}
	if l.closed == nil {
		l.closed = make(chan struct{})
	}
	<-l.closed
	return nil, net.ErrClosed
}

func (l *singleConnListener) Close() error {
	if l.closed == nil {
		l.closed = make(chan struct{})
	}
	close(l.closed)
	return nil
}

func (l *singleConnListener) Addr() net.Addr { return dummyAddr{} }

type dummyAddr struct{}

func (dummyAddr) Network() string { return "pipe" }
func (dummyAddr) String() string  { return "pipe" }
