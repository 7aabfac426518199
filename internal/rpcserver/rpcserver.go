// Copyright 2014 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package rpcserver serves a rpc.Handler over net/rpc, the way
// ogle/cmd/ogleproxy registers its server.Server and serves it over a
// single connection. Unlike ogleproxy's stdin/stdout pipe (meant for
// one SSH-spawned child), memscan's engine is meant to be attached to
// from a separate CLI process on the same machine, so this package
// listens on a Unix domain socket instead, one per user and PID the
// way ogle/socket does.
package rpcserver

import (
	"net"
	"net/rpc"
	"os"
	"strconv"

	"github.com/sirupsen/logrus"

	apirpc "github.com/nilsen-re/memscan/rpc"
)

// socketNames mirrors ogle/socket's per-UID, per-PID naming so
// multiple users on one machine never collide.
func socketNames(uid, pid int) (dirName, socketName string) {
	dirName = "/tmp/memscan-socket-uid" + strconv.Itoa(uid)
	socketName = dirName + "/pid" + strconv.Itoa(pid)
	return
}

// Listen creates this process's PID-specific socket under a
// UID-specific directory, 0700 so only the same user can dial it.
func Listen() (net.Listener, error) {
	dirName, socketName := socketNames(os.Getuid(), os.Getpid())
	if err := os.MkdirAll(dirName, 0700); err != nil {
		return nil, err
	}
	if err := os.Remove(socketName); err != nil && !os.IsNotExist(err) {
		return nil, err
	}
	return net.Listen("unix", socketName)
}

// Server serves one rpc.Handler to any number of dialing clients.
type Server struct {
	handler  *apirpc.Handler
	rpc      *rpc.Server
	logger   *logrus.Logger
	listener net.Listener
}

// New registers handler's exported methods (one net/rpc method per
// command in spec.md §6) under the name "Handler".
func New(handler *apirpc.Handler, logger *logrus.Logger) (*Server, error) {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	srv := rpc.NewServer()
	if err := srv.RegisterName("Handler", handler); err != nil {
		return nil, err
	}
	return &Server{handler: handler, rpc: srv, logger: logger}, nil
}

// Serve listens on l, accepting connections and serving RPC on each
// until l is closed. It never returns a nil error on a clean Close;
// callers should ignore the error once they have called Close
// themselves.
func (s *Server) Serve(l net.Listener) error {
	s.listener = l
	for {
		conn, err := l.Accept()
		if err != nil {
			return err
		}
		go func() {
			s.logger.WithField("remote", conn.RemoteAddr()).Info("rpcserver: client connected")
			s.rpc.ServeConn(conn)
			s.logger.WithField("remote", conn.RemoteAddr()).Info("rpcserver: client disconnected")
		}()
	}
}

// Close stops accepting new connections.
func (s *Server) Close() error {
	if s.listener == nil {
		return nil
	}
	return s.listener.Close()
}
