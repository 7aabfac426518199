// Copyright 2014 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package rpc defines the command/event surface (spec.md §4.8, §6):
// one Request/Response struct pair per command, in the same flat,
// field-for-field style as the teacher's program/proxyrpc package, so
// this package can be dispatched over net/rpc by internal/rpcserver
// exactly the way proxyrpc is dispatched by program/server.
package rpc

import (
	"github.com/nilsen-re/memscan/compare"
	"github.com/nilsen-re/memscan/internal/apierr"
	"github.com/nilsen-re/memscan/internal/provider"
	"github.com/nilsen-re/memscan/results"
	"github.com/nilsen-re/memscan/valuetype"
)

// Error is the typed, wrapped error every command fails with; it is
// the apierr package's Error under the name spec.md §7 uses.
type Error = apierr.Error

// Kind re-exports apierr.Kind so callers never need to import
// internal/apierr directly.
type Kind = apierr.Kind

const (
	InvalidArgument      = apierr.InvalidArgument
	InvalidState         = apierr.InvalidState
	UnsupportedCompare   = apierr.UnsupportedCompare
	ProcessIOError       = apierr.ProcessIOError
	Cancelled            = apierr.Cancelled
	Timeout              = apierr.Timeout
	TransportUnavailable = apierr.TransportUnavailable
)

// Process::List

type ProcessListRequest struct {
	RequireWindowed bool
	SearchName      string
	MatchCase       bool
	Limit           int
	FetchIcons      bool
}

type ProcessListResponse struct {
	Processes []provider.Process
}

// Process::Open

type ProcessOpenRequest struct {
	ProcessID  int
	SearchName string
	MatchCase  bool
}

type ProcessOpenResponse struct {
	OpenedProcess provider.Process
}

// Process::Close

type ProcessCloseRequest struct{}

type ProcessCloseResponse struct {
	ProcessInfo provider.Process
}

// Memory::Read

type MemoryReadRequest struct {
	Address        uint64
	ModuleName     string
	DataType       valuetype.DataType
	SymbolicStruct bool
}

type MemoryReadResponse struct {
	Success bool
	Address uint64
	Values  []byte
}

// Memory::Write

type MemoryWriteRequest struct {
	Address    uint64
	ModuleName string
	Value      []byte
}

type MemoryWriteResponse struct {
	Success bool
}

// Scan::New

type ScanNewRequest struct{}

type ScanNewResponse struct {
	Success bool
}

// Scan::Reset

type ScanResetRequest struct{}

type ScanResetResponse struct {
	Success bool
}

// Scan::CollectValues

type ScanCollectValuesRequest struct{}

type ScanCollectValuesResponse struct {
	ResultCount      uint64
	TotalSizeInBytes uint64
}

// Scan::Element

// ElementConstraint is one Scan::Element request's compare step, over
// the wire representation of a scan.Constraint.
type ElementConstraint struct {
	DataType  valuetype.DataType
	Alignment uint64
	Compare   compare.Kind
	Operand   uint8
	Immediate []byte
	Delta     []byte
}

type ScanElementRequest struct {
	Constraints  []ElementConstraint
	DataTypeRefs []valuetype.DataType
}

type ScanElementResponse struct {
	ResultCount      uint64
	TotalSizeInBytes uint64
}

// Results::Query / Results::List

type ResultsQueryRequest struct {
	PageIndex int
	PageSize  int
}

type ResultsQueryResponse struct {
	Results       []results.Result
	PageIndex     int
	LastPageIndex int
	PageSize      int
	ResultCount   uint64
	TotalSize     uint64
}

// Results::MakeRef

type ResultsMakeRefRequest struct {
	Address  uint64
	DataType valuetype.DataType
}

type ResultsMakeRefResponse struct {
	Ref results.Ref
}

// Results::Refresh

type ResultsRefreshRequest struct {
	Refs []results.Ref
}

type ResultsRefreshResponse struct {
	Results []results.RefreshedResult
}

// Results::Freeze

type ResultsFreezeRequest struct {
	Refs     []results.Ref
	IsFrozen bool
}

type ResultsFreezeResponse struct {
	FailedRefs []results.Ref
}

// Results::Delete

type ResultsDeleteRequest struct {
	Refs []results.Ref
}

type ResultsDeleteResponse struct {
	Success bool
}

// Results::SetProperty

type ResultsSetPropertyRequest struct {
	Refs                 []results.Ref
	DataType             valuetype.DataType
	FieldNamespace       string
	AnonymousValueString string
}

type ResultsSetPropertyResponse struct {
	Success bool
}
