// Copyright 2018 The Solid Core Data Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package flatbase

import "errors"

// Sentinel errors returned by Store methods. The original C++ API
// treated every one of these conditions as a silent no-op; this
// reimplementation surfaces them per spec.md section 7 instead.
var (
	// ErrSchema is returned by schemacfg.Load when a schema document
	// names a field type it does not know. Store searches against a
	// missing or mismatched field return no records instead, and
	// Record's Add methods ignore fields not in the bound Table.
	ErrSchema = errors.New("flatbase: schema error")

	// ErrNotFound is returned by Update when an identifier is zero, out
	// of range, or names an already-tombstoned slot. Remove treats the
	// same cases as a no-op.
	ErrNotFound = errors.New("flatbase: not found")

	// ErrNotLoaded is returned by a mutating call made before Create or
	// Load has established a database file.
	ErrNotLoaded = errors.New("flatbase: database not loaded")

	// ErrCorrupt is returned when a header or slot length read back
	// from disk is inconsistent with the engine's own bookkeeping.
	ErrCorrupt = errors.New("flatbase: corrupt file")
)
