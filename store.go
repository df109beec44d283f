// Copyright 2018 The Solid Core Data Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package flatbase

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/solidcoredata/flatbase/internal/telemetry"
)

// dbExt and tmpExt are the primary and compaction-scratch file
// extensions, matching the original format.
const (
	dbExt  = ".pb"
	tmpExt = ".tmp"

	// removedThresholdDenom is the denominator of the tombstone-ratio
	// compaction trigger: compaction runs once removed/record_count >=
	// 1/removedThresholdDenom.
	removedThresholdDenom = 2
)

// RecordSize returns the fixed serialized size, in bytes, of any
// sanitized Record bound to this Table: the sum of (8-byte name + value
// size) over every field, including the synthetic id field once
// present.
func (t *Table) RecordSize() int {
	size := 0
	for _, f := range t.Fields() {
		size += 8 + f.ValueSize()
	}
	return size
}

// Store is the database engine: file lifecycle, header I/O, and the
// insert/update/search/remove/compact operations. A Store is
// single-threaded, blocking, and synchronous — every method opens its
// own file handle, performs its I/O, and closes the handle before
// returning. No long-lived handle is shared across calls, and a Store
// is not safe for concurrent use by multiple goroutines: the contract
// is that one logical caller drives it at a time.
type Store struct {
	dbName       string
	table        *Table
	numFields    int
	fieldSize    uint32
	recordSize   int
	recordCount  uint32
	removedCount uint32
	logger       *zap.Logger
}

// Option configures a Store at construction time.
type Option func(*Store)

// WithLogger attaches a structured logger to the Store. Without this
// option, or with a nil logger, logging is a no-op.
func WithLogger(l *zap.Logger) Option {
	return func(s *Store) {
		if l != nil {
			s.logger = l
		}
	}
}

func newStore(dbName string, opts ...Option) *Store {
	s := &Store{
		dbName:    dbName,
		fieldSize: defaultFieldSize,
		logger:    telemetry.Nop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Store) path() string { return s.dbName + dbExt }

// tableOffset is T in spec.md's byte layout: 8 + num_fields*field_size,
// the offset of the record_count prefix.
func (s *Store) tableOffset() int64 {
	return headerSize(s.numFields, s.fieldSize)
}

// slotOffset is the byte offset of record id's slot: table_bytes + 8 +
// record_size*(id-1).
func (s *Store) slotOffset(id uint32) int64 {
	return s.tableOffset() + 8 + int64(s.recordSize)*int64(id-1)
}

// RecordCount returns the number of occupied slots on disk, including
// tombstones.
func (s *Store) RecordCount() uint32 { return s.recordCount }

// RemovedCount returns the number of tombstoned slots since the last
// compaction.
func (s *Store) RemovedCount() uint32 { return s.removedCount }

// Table returns the Store's authoritative schema.
func (s *Store) Table() *Table { return s.table }

// Create opens dbName+".pb", truncating any existing file, writes
// table's schema followed by a record_count of 0, and returns a Store
// bound to that file. table is copied by value into the Store; the
// Store's copy is authoritative for subsequent operations.
func Create(dbName string, table *Table, opts ...Option) (*Store, error) {
	s := newStore(dbName, opts...)

	f, err := os.Create(s.path())
	if err != nil {
		return nil, fmt.Errorf("flatbase: create %s: %w", s.path(), err)
	}
	defer f.Close()

	if err := table.Write(f); err != nil {
		return nil, fmt.Errorf("flatbase: create: write schema: %w", err)
	}
	if err := binary.Write(f, binary.LittleEndian, uint32(0)); err != nil {
		return nil, fmt.Errorf("flatbase: create: write record_count: %w", err)
	}

	owned := NewTable()
	for k, f := range table.fields {
		owned.fields[k] = f
	}
	s.table = owned
	s.numFields = len(owned.Fields())
	s.recordSize = owned.RecordSize()
	s.recordCount = 0
	s.removedCount = 0

	s.logger.Info("database created", zap.String("name", dbName), zap.Int("fields", s.numFields))
	return s, nil
}

// Load opens dbName+".pb" for reading, reads its schema and
// record_count, and scans every slot to count tombstones into
// RemovedCount. It does not retain records in memory; every Search
// call is a full scan.
func Load(dbName string, opts ...Option) (*Store, error) {
	s := newStore(dbName, opts...)

	f, err := os.Open(s.path())
	if err != nil {
		return nil, fmt.Errorf("flatbase: load %s: %w", s.path(), err)
	}
	defer f.Close()

	table := NewTable()
	if err := table.Read(f); err != nil {
		return nil, fmt.Errorf("flatbase: load: read schema: %w", err)
	}
	s.table = table
	s.numFields = len(table.Fields())
	s.recordSize = table.RecordSize()

	var recordCount uint32
	if err := binary.Read(f, binary.LittleEndian, &recordCount); err != nil {
		return nil, fmt.Errorf("flatbase: load: read record_count: %w", err)
	}
	s.recordCount = recordCount

	// record_size is only ever written to disk once the first Insert
	// has run; an empty freshly-created database has nothing past
	// record_count. Tolerate that by falling back to the table-derived
	// size computed above. Once present, it must agree with what the
	// loaded schema itself implies — any other value means the file was
	// written by a schema this Table disagrees with.
	var recordSize int32
	if err := binary.Read(f, binary.LittleEndian, &recordSize); err != nil {
		if !errors.Is(err, io.EOF) && !errors.Is(err, io.ErrUnexpectedEOF) {
			return nil, fmt.Errorf("flatbase: load: read record_size: %w", err)
		}
	} else if recordCount > 0 && int(recordSize) != s.recordSize {
		return nil, fmt.Errorf("flatbase: load %s: on-disk record_size %d, schema implies %d: %w",
			dbName, recordSize, s.recordSize, ErrCorrupt)
	}

	var removed uint32
	for i := uint32(0); i < recordCount; i++ {
		rec := NewRecord(table)
		if err := rec.Read(f); err != nil {
			return nil, fmt.Errorf("flatbase: load: read slot %d: %w", i+1, err)
		}
		if rec.GetID() == 0 {
			removed++
		}
	}
	s.removedCount = removed

	s.logger.Info("database loaded",
		zap.String("name", dbName),
		zap.Uint32("record_count", s.recordCount),
		zap.Uint32("removed_count", s.removedCount),
	)
	return s, nil
}

// Insert sanitizes record against the Store's Table, assigns it the
// next identifier, appends it to the record area, and updates the
// on-disk record_count and record_size.
func (s *Store) Insert(r *Record) error {
	if s.table == nil {
		return ErrNotLoaded
	}

	f, err := os.OpenFile(s.path(), os.O_RDWR, 0o644)
	if err != nil {
		return fmt.Errorf("flatbase: insert: %w", err)
	}
	defer f.Close()

	r.SetTable(s.table)
	r.Sanitize()

	s.recordCount++
	r.SetID(s.recordCount)
	s.recordSize = r.Size()

	if _, err := f.Seek(s.tableOffset(), io.SeekStart); err != nil {
		return fmt.Errorf("flatbase: insert: seek record prefix: %w", err)
	}
	if err := binary.Write(f, binary.LittleEndian, s.recordCount); err != nil {
		return fmt.Errorf("flatbase: insert: write record_count: %w", err)
	}
	if err := binary.Write(f, binary.LittleEndian, int32(s.recordSize)); err != nil {
		return fmt.Errorf("flatbase: insert: write record_size: %w", err)
	}

	if _, err := f.Seek(0, io.SeekEnd); err != nil {
		return fmt.Errorf("flatbase: insert: seek end: %w", err)
	}
	if err := r.Write(f); err != nil {
		return fmt.Errorf("flatbase: insert: write record: %w", err)
	}

	s.logger.Debug("insert", zap.Uint32("id", s.recordCount))
	return nil
}

// Update overwrites the slot named by record.GetID() with record's
// sanitized contents. It is a no-op-turned-error relative to the
// original format in two ways spec.md's redesign flags call for: a
// zero or out-of-range identifier returns ErrNotFound, and so does a
// target slot whose on-disk identifier is already 0 — the original
// would have silently resurrected the tombstone with new contents.
func (s *Store) Update(r *Record) error {
	if s.table == nil {
		return ErrNotLoaded
	}
	id := r.GetID()
	if id == 0 || id > s.recordCount {
		return ErrNotFound
	}

	f, err := os.OpenFile(s.path(), os.O_RDWR, 0o644)
	if err != nil {
		return fmt.Errorf("flatbase: update: %w", err)
	}
	defer f.Close()

	offset := s.slotOffset(id)
	if _, err := f.Seek(offset, io.SeekStart); err != nil {
		return fmt.Errorf("flatbase: update: seek slot %d: %w", id, err)
	}
	existing := NewRecord(s.table)
	if err := existing.Read(f); err != nil {
		return fmt.Errorf("flatbase: update: read slot %d: %w", id, err)
	}
	if existing.GetID() == 0 {
		return ErrNotFound
	}

	r.SetTable(s.table)
	r.Sanitize()
	if _, err := f.Seek(offset, io.SeekStart); err != nil {
		return fmt.Errorf("flatbase: update: seek slot %d: %w", id, err)
	}
	if err := r.Write(f); err != nil {
		return fmt.Errorf("flatbase: update: write slot %d: %w", id, err)
	}

	s.logger.Debug("update", zap.Uint32("id", id))
	return nil
}

// SearchInt returns every live record whose name field equals value. If
// name is not an int field of the bound Table, it returns (nil, nil)
// rather than an error, matching spec.md section 7's documented
// forgiving-search behavior.
func (s *Store) SearchInt(name string, value int32) ([]*Record, error) {
	return s.search(name, AttrInt, func(r *Record) bool { return r.GetInt(name) == value })
}

// SearchFloat returns every live record whose name field equals value
// by exact bitwise comparison (no tolerance). Forgiving on field
// mismatch, as SearchInt.
func (s *Store) SearchFloat(name string, value float32) ([]*Record, error) {
	return s.search(name, AttrFloat, func(r *Record) bool { return r.GetFloat(name) == value })
}

// SearchText16 returns every live record whose name field equals value.
// Forgiving on field mismatch, as SearchInt.
func (s *Store) SearchText16(name string, value string) ([]*Record, error) {
	padded := NewFixedString16(value).String()
	return s.search(name, AttrText16, func(r *Record) bool { return r.GetText16(name) == padded })
}

func (s *Store) search(name string, want AttrType, match func(*Record) bool) ([]*Record, error) {
	if s.table == nil {
		return nil, ErrNotLoaded
	}
	typ, ok := s.table.FieldType(name)
	if !ok || typ != want {
		return nil, nil
	}

	f, err := os.Open(s.path())
	if err != nil {
		return nil, fmt.Errorf("flatbase: search: %w", err)
	}
	defer f.Close()

	if _, err := f.Seek(s.tableOffset()+8, io.SeekStart); err != nil {
		return nil, fmt.Errorf("flatbase: search: seek record area: %w", err)
	}

	var out []*Record
	for i := uint32(0); i < s.recordCount; i++ {
		rec := NewRecord(s.table)
		if err := rec.Read(f); err != nil {
			return nil, fmt.Errorf("flatbase: search: read slot %d: %w", i+1, err)
		}
		if rec.GetID() != 0 && match(rec) {
			out = append(out, rec)
		}
	}
	return out, nil
}

// Remove marks id's slot as a tombstone. A zero id, an out-of-range id,
// or an already-tombstoned slot is a documented no-op (spec.md section
// 8's boundary behaviors), not an error. Once the tombstone ratio
// reaches 1/2, Remove compacts the file in place.
func (s *Store) Remove(id uint32) error {
	if s.table == nil {
		return ErrNotLoaded
	}
	if id == 0 || id > s.recordCount {
		return nil
	}

	offset := s.slotOffset(id)
	if err := func() error {
		f, err := os.OpenFile(s.path(), os.O_RDWR, 0o644)
		if err != nil {
			return fmt.Errorf("flatbase: remove: %w", err)
		}
		defer f.Close()

		if _, err := f.Seek(offset, io.SeekStart); err != nil {
			return fmt.Errorf("flatbase: remove: seek slot %d: %w", id, err)
		}
		rec := NewRecord(s.table)
		if err := rec.Read(f); err != nil {
			return fmt.Errorf("flatbase: remove: read slot %d: %w", id, err)
		}
		if rec.GetID() == 0 {
			return errAlreadyRemoved
		}
		rec.SetID(0)
		if _, err := f.Seek(offset, io.SeekStart); err != nil {
			return fmt.Errorf("flatbase: remove: seek slot %d: %w", id, err)
		}
		return rec.Write(f)
	}(); err != nil {
		if errors.Is(err, errAlreadyRemoved) {
			return nil
		}
		return err
	}

	s.removedCount++
	s.logger.Debug("remove", zap.Uint32("id", id), zap.Uint32("removed_count", s.removedCount))

	if uint64(s.removedCount)*removedThresholdDenom >= uint64(s.recordCount) {
		return s.compact()
	}
	return nil
}

// errAlreadyRemoved is an internal sentinel used to short-circuit
// Remove's file-scoped closure; it never escapes Remove.
var errAlreadyRemoved = errors.New("flatbase: slot already removed")

// compact rewrites the file without tombstoned slots, reassigning
// identifiers 1..new_record_count in original order, via a temporary
// shadow file and atomic rename. Per spec.md section 9's durability
// recommendation, the shadow file is fsynced before the rename and the
// containing directory is fsynced after.
func (s *Store) compact() error {
	tmpPath := s.path() + tmpExt
	if _, err := os.Stat(tmpPath); err == nil {
		s.logger.Warn("removing stale compaction scratch file", zap.String("path", tmpPath))
		if err := os.Remove(tmpPath); err != nil {
			return fmt.Errorf("flatbase: compact: remove stale temp file: %w", err)
		}
	}

	tmp, err := os.Create(tmpPath)
	if err != nil {
		return fmt.Errorf("flatbase: compact: create temp file: %w", err)
	}

	if err := s.table.Write(tmp); err != nil {
		tmp.Close()
		return fmt.Errorf("flatbase: compact: write schema: %w", err)
	}
	if err := binary.Write(tmp, binary.LittleEndian, s.recordCount); err != nil {
		tmp.Close()
		return fmt.Errorf("flatbase: compact: write placeholder record_count: %w", err)
	}
	if err := binary.Write(tmp, binary.LittleEndian, int32(s.recordSize)); err != nil {
		tmp.Close()
		return fmt.Errorf("flatbase: compact: write record_size: %w", err)
	}

	primary, err := os.Open(s.path())
	if err != nil {
		tmp.Close()
		return fmt.Errorf("flatbase: compact: open primary: %w", err)
	}
	if _, err := primary.Seek(s.tableOffset()+8, io.SeekStart); err != nil {
		primary.Close()
		tmp.Close()
		return fmt.Errorf("flatbase: compact: seek record area: %w", err)
	}

	var shift int64
	for i := uint32(0); i < s.recordCount; i++ {
		rec := NewRecord(s.table)
		if err := rec.Read(primary); err != nil {
			primary.Close()
			tmp.Close()
			return fmt.Errorf("flatbase: compact: read slot %d: %w", i+1, err)
		}
		if rec.GetID() == 0 {
			shift--
			continue
		}
		rec.SetID(uint32(int64(rec.GetID()) + shift))
		if err := rec.Write(tmp); err != nil {
			primary.Close()
			tmp.Close()
			return fmt.Errorf("flatbase: compact: write live record: %w", err)
		}
	}
	primary.Close()

	newRecordCount := uint32(int64(s.recordCount) + shift)

	if _, err := tmp.Seek(s.tableOffset(), io.SeekStart); err != nil {
		tmp.Close()
		return fmt.Errorf("flatbase: compact: seek final record_count: %w", err)
	}
	if err := binary.Write(tmp, binary.LittleEndian, newRecordCount); err != nil {
		tmp.Close()
		return fmt.Errorf("flatbase: compact: write final record_count: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("flatbase: compact: sync temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("flatbase: compact: close temp file: %w", err)
	}

	if err := os.Remove(s.path()); err != nil {
		return fmt.Errorf("flatbase: compact: remove primary: %w", err)
	}
	if err := os.Rename(tmpPath, s.path()); err != nil {
		return fmt.Errorf("flatbase: compact: rename temp file over primary: %w", err)
	}
	if dir, err := os.Open(filepath.Dir(s.path())); err == nil {
		_ = dir.Sync()
		_ = dir.Close()
	}

	before := s.recordCount
	s.recordCount = newRecordCount
	s.removedCount = 0

	s.logger.Info("compaction complete",
		zap.Uint32("record_count_before", before),
		zap.Uint32("record_count_after", s.recordCount),
	)
	return nil
}

// Close is a no-op: Store holds no long-lived file handle between
// calls. It exists so callers can defer a symmetric close the way they
// would for any other resource, and to leave room for future buffering
// without an API break.
func (s *Store) Close() error { return nil }
