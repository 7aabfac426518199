// Copyright 2014 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package rpcclient is the client side of internal/rpcserver: it
// dials the engine's Unix socket and exposes one method per command,
// the way program/client.Program wraps an *rpc.Client with one method
// per proxyrpc request/response pair.
package rpcclient

import (
	"net"
	"net/rpc"
	"os"
	"strconv"

	apirpc "github.com/nilsen-re/memscan/rpc"
)

// Dial connects to the memscan engine process identified by pid,
// owned by the calling user.
func Dial(pid int) (*Client, error) {
	_, socketName := socketNames(os.Getuid(), pid)
	conn, err := net.Dial("unix", socketName)
	if err != nil {
		return nil, err
	}
	return &Client{rpc: rpc.NewClient(conn)}, nil
}

func socketNames(uid, pid int) (dirName, socketName string) {
	dirName = "/tmp/memscan-socket-uid" + strconv.Itoa(uid)
	socketName = dirName + "/pid" + strconv.Itoa(pid)
	return
}

// Client is a thin, typed wrapper over an *rpc.Client talking to one
// engine's internal/rpcserver.Server.
type Client struct {
	rpc *rpc.Client
}

func (c *Client) Close() error { return c.rpc.Close() }

func (c *Client) ProcessList(req *apirpc.ProcessListRequest) (*apirpc.ProcessListResponse, error) {
	var resp apirpc.ProcessListResponse
	if err := c.rpc.Call("Handler.ProcessList", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *Client) ProcessOpen(req *apirpc.ProcessOpenRequest) (*apirpc.ProcessOpenResponse, error) {
	var resp apirpc.ProcessOpenResponse
	if err := c.rpc.Call("Handler.ProcessOpen", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *Client) ProcessClose(req *apirpc.ProcessCloseRequest) (*apirpc.ProcessCloseResponse, error) {
	var resp apirpc.ProcessCloseResponse
	if err := c.rpc.Call("Handler.ProcessClose", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *Client) MemoryRead(req *apirpc.MemoryReadRequest) (*apirpc.MemoryReadResponse, error) {
	var resp apirpc.MemoryReadResponse
	if err := c.rpc.Call("Handler.MemoryRead", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *Client) MemoryWrite(req *apirpc.MemoryWriteRequest) (*apirpc.MemoryWriteResponse, error) {
	var resp apirpc.MemoryWriteResponse
	if err := c.rpc.Call("Handler.MemoryWrite", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *Client) ScanNew(req *apirpc.ScanNewRequest) (*apirpc.ScanNewResponse, error) {
	var resp apirpc.ScanNewResponse
	if err := c.rpc.Call("Handler.ScanNew", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *Client) ScanReset(req *apirpc.ScanResetRequest) (*apirpc.ScanResetResponse, error) {
	var resp apirpc.ScanResetResponse
	if err := c.rpc.Call("Handler.ScanReset", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *Client) ScanCollectValues(req *apirpc.ScanCollectValuesRequest) (*apirpc.ScanCollectValuesResponse, error) {
	var resp apirpc.ScanCollectValuesResponse
	if err := c.rpc.Call("Handler.ScanCollectValues", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *Client) ScanElement(req *apirpc.ScanElementRequest) (*apirpc.ScanElementResponse, error) {
	var resp apirpc.ScanElementResponse
	if err := c.rpc.Call("Handler.ScanElement", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *Client) ResultsQuery(req *apirpc.ResultsQueryRequest) (*apirpc.ResultsQueryResponse, error) {
	var resp apirpc.ResultsQueryResponse
	if err := c.rpc.Call("Handler.ResultsQuery", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *Client) ResultsMakeRef(req *apirpc.ResultsMakeRefRequest) (*apirpc.ResultsMakeRefResponse, error) {
	var resp apirpc.ResultsMakeRefResponse
	if err := c.rpc.Call("Handler.ResultsMakeRef", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *Client) ResultsRefresh(req *apirpc.ResultsRefreshRequest) (*apirpc.ResultsRefreshResponse, error) {
	var resp apirpc.ResultsRefreshResponse
	if err := c.rpc.Call("Handler.ResultsRefresh", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *Client) ResultsFreeze(req *apirpc.ResultsFreezeRequest) (*apirpc.ResultsFreezeResponse, error) {
	var resp apirpc.ResultsFreezeResponse
	if err := c.rpc.Call("Handler.ResultsFreeze", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *Client) ResultsDelete(req *apirpc.ResultsDeleteRequest) (*apirpc.ResultsDeleteResponse, error) {
	var resp apirpc.ResultsDeleteResponse
	if err := c.rpc.Call("Handler.ResultsDelete", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *Client) ResultsSetProperty(req *apirpc.ResultsSetPropertyRequest) (*apirpc.ResultsSetPropertyResponse, error) {
	var resp apirpc.ResultsSetPropertyResponse
	if err := c.rpc.Call("Handler.ResultsSetProperty", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}
