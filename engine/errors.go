// Copyright 2017 The Go Authors.  All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package engine

import "errors"

var (
	errProcessNotFound = errors.New("engine: no matching process")
	errReadFailed      = errors.New("engine: memory read failed")
	errWriteFailed     = errors.New("engine: memory write failed")
)
