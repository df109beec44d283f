// Copyright 2018 The Solid Core Data Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package flatbase

import (
	"fmt"
	"io"

	"github.com/solidcoredata/flatbase/internal/wire"
)

// Record is one row: a Table reference, an identifier cell, and three
// maps of named attribute cells. Not every Table field need be present
// when a caller builds a Record; Sanitize fills in type-appropriate
// zeros before any Write.
type Record struct {
	table   *Table
	id      uint32
	ints    map[FixedString8]int32
	floats  map[FixedString8]float32
	text16  map[FixedString8]string
}

// NewRecord returns an empty Record bound to table.
func NewRecord(table *Table) *Record {
	return &Record{
		table:  table,
		ints:   make(map[FixedString8]int32),
		floats: make(map[FixedString8]float32),
		text16: make(map[FixedString8]string),
	}
}

// SetTable rebinds the Record to a different Table, matching the
// original API's Record::set_table.
func (r *Record) SetTable(table *Table) { r.table = table }

// SetID replaces the identifier cell.
func (r *Record) SetID(id uint32) { r.id = id }

// GetID returns the record's identifier; 0 means unassigned or
// tombstoned.
func (r *Record) GetID() uint32 { return r.id }

// AddInt stores v under name if name is a field of the bound Table;
// otherwise the call is silently ignored.
func (r *Record) AddInt(name string, v int32) {
	if r.table == nil || !r.table.IsField(name) {
		return
	}
	r.ints[NewFixedString8(name)] = v
}

// AddFloat stores v under name if name is a field of the bound Table.
func (r *Record) AddFloat(name string, v float32) {
	if r.table == nil || !r.table.IsField(name) {
		return
	}
	r.floats[NewFixedString8(name)] = v
}

// AddText16 stores v, truncated or padded to 16 bytes immediately, under
// name if name is a field of the bound Table — matching the original
// API's AttrChar16::set_data, which constructs its fixed-width buffer at
// assignment time rather than deferring it to serialization.
func (r *Record) AddText16(name string, v string) {
	if r.table == nil || !r.table.IsField(name) {
		return
	}
	r.text16[NewFixedString8(name)] = NewFixedString16(v).String()
}

// GetInt returns the value stored under name, or 0 if absent.
func (r *Record) GetInt(name string) int32 {
	return r.ints[NewFixedString8(name)]
}

// GetFloat returns the value stored under name, or 0.0 if absent.
func (r *Record) GetFloat(name string) float32 {
	return r.floats[NewFixedString8(name)]
}

// GetText16 returns the value stored under name, or "" if absent.
func (r *Record) GetText16(name string) string {
	return r.text16[NewFixedString8(name)]
}

// Sanitize ensures every Table field of type int/float/text16 has a
// corresponding cell, creating a type-appropriate zero cell if absent.
// Write already emits a zero value for any absent cell, so the
// serialized size does not depend on it; Sanitize makes those zero
// cells present in the Record's own maps.
func (r *Record) Sanitize() {
	if r.table == nil {
		return
	}
	for _, f := range r.table.Fields() {
		switch f.Type {
		case AttrInt:
			if _, ok := r.ints[f.Name]; !ok {
				r.ints[f.Name] = 0
			}
		case AttrFloat:
			if _, ok := r.floats[f.Name]; !ok {
				r.floats[f.Name] = 0
			}
		case AttrText16:
			if _, ok := r.text16[f.Name]; !ok {
				r.text16[f.Name] = ""
			}
		}
	}
}

// Size returns the record's serialized size: the sum over the
// identifier cell and every Table field's cell of (8-byte name + value
// size).
func (r *Record) Size() int {
	if r.table == nil {
		return 0
	}
	size := 0
	for _, f := range r.table.Fields() {
		size += wire.NameSize + f.ValueSize()
	}
	return size
}

// Write serializes the record in Table field-iteration order (padded
// name lexicographic), the same order Read uses, so write and read are
// symmetric by construction.
func (r *Record) Write(w io.Writer) error {
	if r.table == nil {
		return fmt.Errorf("flatbase: record has no bound table")
	}
	for _, f := range r.table.Fields() {
		if _, err := w.Write(f.Name[:]); err != nil {
			return fmt.Errorf("flatbase: write cell name: %w", err)
		}
		var value interface{}
		switch f.Type {
		case AttrID:
			value = r.id
		case AttrInt:
			value = r.ints[f.Name]
		case AttrFloat:
			value = r.floats[f.Name]
		case AttrText16:
			value = r.text16[f.Name]
		default:
			value = int32(0)
		}
		coder := wire.CoderFor(int32(f.Type))
		b, err := coder.Encode(value)
		if err != nil {
			return fmt.Errorf("flatbase: encode cell %q: %w", f.Name, err)
		}
		if _, err := w.Write(b); err != nil {
			return fmt.Errorf("flatbase: write cell value: %w", err)
		}
	}
	return nil
}

// Read deserializes a record, driven by the bound Table's field order:
// for each field it consumes an 8-byte padded name from the stream,
// looks up the field's type, and dispatches to the matching cell
// decoder.
func (r *Record) Read(rd io.Reader) error {
	if r.table == nil {
		return fmt.Errorf("flatbase: record has no bound table")
	}
	if r.ints == nil {
		r.ints = make(map[FixedString8]int32)
	}
	if r.floats == nil {
		r.floats = make(map[FixedString8]float32)
	}
	if r.text16 == nil {
		r.text16 = make(map[FixedString8]string)
	}
	for _, f := range r.table.Fields() {
		var name FixedString8
		if _, err := io.ReadFull(rd, name[:]); err != nil {
			return fmt.Errorf("flatbase: read cell name: %w", err)
		}
		buf := make([]byte, f.ValueSize())
		if _, err := io.ReadFull(rd, buf); err != nil {
			return fmt.Errorf("flatbase: read cell value: %w", err)
		}
		coder := wire.CoderFor(int32(f.Type))
		value, err := coder.Decode(buf)
		if err != nil {
			return fmt.Errorf("flatbase: decode cell %q: %w", name, err)
		}
		switch f.Type {
		case AttrID:
			r.id = value.(uint32)
		case AttrInt:
			r.ints[f.Name] = value.(int32)
		case AttrFloat:
			r.floats[f.Name] = value.(float32)
		case AttrText16:
			r.text16[f.Name] = value.(string)
		}
	}
	return nil
}
