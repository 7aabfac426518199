// Copyright 2014 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package rpc

import (
	"context"

	"github.com/nilsen-re/memscan/engine"
	"github.com/nilsen-re/memscan/internal/apierr"
	"github.com/nilsen-re/memscan/scan"
)

// Handler adapts one engine.Session to the request/response pairs in
// this package, the way program/server.Server adapts a core.Process
// to proxyrpc's request/response pairs. Each method is exported with
// the (*T, *U) error signature net/rpc requires, so Handler can be
// registered directly with an *rpc.Server by internal/rpcserver.
type Handler struct {
	Session *engine.Session
}

func NewHandler(session *engine.Session) *Handler {
	return &Handler{Session: session}
}

func (h *Handler) ProcessList(req *ProcessListRequest, resp *ProcessListResponse) error {
	// Listing candidate processes never requires an opened session;
	// it goes straight to the provider underneath the session.
	procs, err := h.Session.ListProcesses(req.RequireWindowed, req.SearchName, req.MatchCase, req.Limit)
	if err != nil {
		return err
	}
	resp.Processes = procs
	return nil
}

func (h *Handler) ProcessOpen(req *ProcessOpenRequest, resp *ProcessOpenResponse) error {
	proc, err := h.Session.OpenProcess(req.ProcessID, req.SearchName, req.MatchCase)
	if err != nil {
		return err
	}
	resp.OpenedProcess = proc
	return nil
}

func (h *Handler) ProcessClose(req *ProcessCloseRequest, resp *ProcessCloseResponse) error {
	return h.Session.CloseProcess()
}

func (h *Handler) MemoryRead(req *MemoryReadRequest, resp *MemoryReadResponse) error {
	buf := make([]byte, req.DataType.SizeInBytes())
	if err := h.Session.ReadMemory(req.Address, buf); err != nil {
		return err
	}
	resp.Success = true
	resp.Address = req.Address
	resp.Values = buf
	return nil
}

func (h *Handler) MemoryWrite(req *MemoryWriteRequest, resp *MemoryWriteResponse) error {
	if err := h.Session.WriteMemory(req.Address, req.Value); err != nil {
		return err
	}
	resp.Success = true
	return nil
}

func (h *Handler) ScanNew(req *ScanNewRequest, resp *ScanNewResponse) error {
	if err := h.Session.ScanNew(context.Background()); err != nil {
		return err
	}
	resp.Success = true
	return nil
}

func (h *Handler) ScanReset(req *ScanResetRequest, resp *ScanResetResponse) error {
	if err := h.Session.ScanReset(); err != nil {
		return err
	}
	resp.Success = true
	return nil
}

func (h *Handler) ScanCollectValues(req *ScanCollectValuesRequest, resp *ScanCollectValuesResponse) error {
	count, size, err := h.Session.CollectValues()
	if err != nil {
		return err
	}
	resp.ResultCount = count
	resp.TotalSizeInBytes = size
	return nil
}

func (h *Handler) ScanElement(req *ScanElementRequest, resp *ScanElementResponse) error {
	constraints := make([]scan.Constraint, len(req.Constraints))
	for i, c := range req.Constraints {
		constraints[i] = scan.Constraint{
			DataType:  c.DataType,
			Alignment: c.Alignment,
			Compare:   c.Compare,
			Operand:   scan.Operand(c.Operand),
			Immediate: c.Immediate,
			Delta:     c.Delta,
		}
	}
	if err := h.Session.ScanElement(context.Background(), constraints); err != nil {
		return err
	}
	count, size, err := h.Session.CollectValues()
	if err != nil {
		return err
	}
	resp.ResultCount = count
	resp.TotalSizeInBytes = size
	return nil
}

func (h *Handler) ResultsQuery(req *ResultsQueryRequest, resp *ResultsQueryResponse) error {
	page, err := h.Session.Query(req.PageIndex, req.PageSize)
	if err != nil {
		return err
	}
	count, size, err := h.Session.CollectValues()
	if err != nil {
		return err
	}
	resp.Results = page
	resp.PageIndex = req.PageIndex
	resp.PageSize = req.PageSize
	resp.ResultCount = count
	resp.TotalSize = size
	if req.PageSize > 0 && count > 0 {
		resp.LastPageIndex = int((count - 1) / uint64(req.PageSize))
	}
	return nil
}

// ResultsList is identical to ResultsQuery, per spec.md §6.
func (h *Handler) ResultsList(req *ResultsQueryRequest, resp *ResultsQueryResponse) error {
	return h.ResultsQuery(req, resp)
}

func (h *Handler) ResultsMakeRef(req *ResultsMakeRefRequest, resp *ResultsMakeRefResponse) error {
	ref, err := h.Session.MakeRef(req.Address, req.DataType)
	if err != nil {
		return err
	}
	resp.Ref = ref
	return nil
}

func (h *Handler) ResultsRefresh(req *ResultsRefreshRequest, resp *ResultsRefreshResponse) error {
	refreshed, err := h.Session.Refresh(req.Refs)
	if err != nil {
		return err
	}
	resp.Results = refreshed
	return nil
}

func (h *Handler) ResultsFreeze(req *ResultsFreezeRequest, resp *ResultsFreezeResponse) error {
	if h.Session.State() != engine.StateHasSnapshot {
		return apierr.New(apierr.InvalidState)
	}
	resp.FailedRefs = h.Session.SetFrozen(req.Refs, req.IsFrozen)
	return nil
}

func (h *Handler) ResultsDelete(req *ResultsDeleteRequest, resp *ResultsDeleteResponse) error {
	if err := h.Session.Delete(req.Refs); err != nil {
		return err
	}
	resp.Success = true
	return nil
}

func (h *Handler) ResultsSetProperty(req *ResultsSetPropertyRequest, resp *ResultsSetPropertyResponse) error {
	if err := h.Session.SetProperty(req.Refs, req.DataType, req.AnonymousValueString); err != nil {
		return err
	}
	resp.Success = true
	return nil
}
