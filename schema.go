// Copyright 2018 The Solid Core Data Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package flatbase implements an embeddable, single-file flat-table
// record store. A caller declares a fixed schema of named, typed fields
// with a Table, then inserts, updates, searches, and removes Records
// against a file-backed Store.
package flatbase

import (
	"fmt"
	"sort"
)

// AttrType tags the payload of an attribute cell or schema Field.
type AttrType int32

const (
	AttrID     AttrType = -1
	AttrInt    AttrType = 0
	AttrFloat  AttrType = 1
	AttrText16 AttrType = 2
)

func (t AttrType) String() string {
	switch t {
	case AttrID:
		return "id"
	case AttrInt:
		return "int"
	case AttrFloat:
		return "float"
	case AttrText16:
		return "text16"
	default:
		return fmt.Sprintf("AttrType(%d)", int32(t))
	}
}

// idFieldName is the synthetic identifier field every Table carries once
// written, per spec.md section 3.
const idFieldName = "id"

// FixedString8 is an 8-byte, space-padded, truncated form of a name.
type FixedString8 [8]byte

// FixedString16 is a 16-byte, space-padded, truncated form of text.
type FixedString16 [16]byte

// NewFixedString8 truncates s to 8 bytes, right-padding shorter input
// with ASCII space.
func NewFixedString8(s string) FixedString8 {
	var out FixedString8
	fillFixed(out[:], s)
	return out
}

// NewFixedString16 truncates s to 16 bytes, right-padding shorter input
// with ASCII space.
func NewFixedString16(s string) FixedString16 {
	var out FixedString16
	fillFixed(out[:], s)
	return out
}

func fillFixed(dst []byte, s string) {
	n := copy(dst, s)
	for i := n; i < len(dst); i++ {
		dst[i] = ' '
	}
}

func (f FixedString8) String() string  { return string(f[:]) }
func (f FixedString16) String() string { return string(f[:]) }

// Field is one schema column: a fixed 8-byte name and a type tag. Its
// serialized size is fixed at 12 bytes (8 name + 4 tag) for the current
// format. A Field loaded from a file written by a newer format carries
// that file's declared field_size so trailing bytes are tolerated on
// read.
type Field struct {
	Name     FixedString8
	Type     AttrType
	rawSize  uint32 // declared on-disk size for this field, defaults to 12
}

const defaultFieldSize = 12

// NewField builds a Field with the current format's default size.
func NewField(name string, typ AttrType) Field {
	return Field{
		Name:    NewFixedString8(name),
		Type:    sanitizeType(typ),
		rawSize: defaultFieldSize,
	}
}

// fieldWithSize builds a Field that will be read with a caller-declared
// on-disk size, tolerating trailing bytes from a newer format version.
func fieldWithSize(size uint32) Field {
	return Field{rawSize: size}
}

func sanitizeType(typ AttrType) AttrType {
	switch typ {
	case AttrID, AttrInt, AttrFloat, AttrText16:
		return typ
	default:
		return AttrInt
	}
}

// SetType coerces unknown type tags to AttrInt, matching the original
// Field::set_type behavior.
func (f *Field) SetType(typ AttrType) {
	f.Type = sanitizeType(typ)
}

// Size returns this field's declared on-disk size (12 for the current
// format).
func (f Field) Size() uint32 {
	if f.rawSize == 0 {
		return defaultFieldSize
	}
	return f.rawSize
}

// ValueSize returns the size in bytes of the attribute value this field
// describes (not counting the 8-byte name prefix written alongside it).
func (f Field) ValueSize() int {
	switch f.Type {
	case AttrID:
		return 4
	case AttrInt:
		return 4
	case AttrFloat:
		return 4
	case AttrText16:
		return 16
	default:
		return 4
	}
}

// Table is an ordered set of Fields keyed by padded name. Iteration order
// for serialization is always lexicographic over the padded name, so
// write/read produce deterministic byte sequences.
type Table struct {
	fields map[FixedString8]Field
}

// NewTable returns an empty Table.
func NewTable() *Table {
	return &Table{fields: make(map[FixedString8]Field)}
}

// AddField inserts or overwrites a Field in the Table under its padded
// name. It does not assign the synthetic id field; that happens lazily
// the first time the Table is written.
func (t *Table) AddField(name string, typ AttrType) *Table {
	f := NewField(name, typ)
	t.fields[f.Name] = f
	return t
}

// IsField reports whether name (after padding/truncation) names a field
// in this Table.
func (t *Table) IsField(name string) bool {
	_, ok := t.fields[NewFixedString8(name)]
	return ok
}

// FieldType returns the type of name's field as if ok were also checked;
// ok is false if name is not a field in this Table.
func (t *Table) FieldType(name string) (AttrType, bool) {
	f, ok := t.fields[NewFixedString8(name)]
	return f.Type, ok
}

// ensureIDField injects the synthetic "id" field if it is not already
// present. This mutates the receiver, matching the original's
// Table::write behavior of adding the id field as a side effect of
// serialization.
func (t *Table) ensureIDField() {
	key := NewFixedString8(idFieldName)
	if _, ok := t.fields[key]; !ok {
		t.fields[key] = NewField(idFieldName, AttrID)
	}
}

// Fields returns a snapshot of the Table's fields in padded-name
// lexicographic order, the canonical order used for both serialization
// and record decoding.
func (t *Table) Fields() []Field {
	out := make([]Field, 0, len(t.fields))
	for _, f := range t.fields {
		out = append(out, f)
	}
	sort.Slice(out, func(i, j int) bool {
		return string(out[i].Name[:]) < string(out[j].Name[:])
	})
	return out
}

// Equal reports whether two tables have the same set of fields.
func (t *Table) Equal(other *Table) bool {
	if len(t.fields) != len(other.fields) {
		return false
	}
	for k, f := range t.fields {
		of, ok := other.fields[k]
		if !ok || of.Type != f.Type {
			return false
		}
	}
	return true
}
