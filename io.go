// Copyright 2018 The Solid Core Data Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package flatbase

import (
	"encoding/binary"
	"fmt"
	"io"
)

// write emits this field's 8-byte padded name followed by its 4-byte
// type tag.
func (f Field) write(w io.Writer) error {
	if _, err := w.Write(f.Name[:]); err != nil {
		return fmt.Errorf("flatbase: write field name: %w", err)
	}
	if err := binary.Write(w, binary.LittleEndian, int32(f.Type)); err != nil {
		return fmt.Errorf("flatbase: write field type: %w", err)
	}
	return nil
}

// readField reads one Field using the caller-declared on-disk field
// size, tolerating trailing bytes written by a newer format.
func readField(r io.Reader, size uint32) (Field, error) {
	f := fieldWithSize(size)
	if _, err := io.ReadFull(r, f.Name[:]); err != nil {
		return Field{}, fmt.Errorf("flatbase: read field name: %w", err)
	}
	var typ int32
	if err := binary.Read(r, binary.LittleEndian, &typ); err != nil {
		return Field{}, fmt.Errorf("flatbase: read field type: %w", err)
	}
	f.Type = sanitizeType(AttrType(typ))
	if extra := int(size) - defaultFieldSize; extra > 0 {
		if _, err := io.CopyN(io.Discard, r, int64(extra)); err != nil {
			return Field{}, fmt.Errorf("flatbase: skip trailing field bytes: %w", err)
		}
	}
	return f, nil
}

// Write serializes the Table: if it has no fields, this is a no-op.
// Otherwise it injects the synthetic "id" field if absent, then emits
// num_fields, field_size, and each Field in padded-name order.
func (t *Table) Write(w io.Writer) error {
	if len(t.fields) == 0 {
		return nil
	}
	t.ensureIDField()

	fields := t.Fields()
	if err := binary.Write(w, binary.LittleEndian, int32(len(fields))); err != nil {
		return fmt.Errorf("flatbase: write num_fields: %w", err)
	}
	if err := binary.Write(w, binary.LittleEndian, uint32(defaultFieldSize)); err != nil {
		return fmt.Errorf("flatbase: write field_size: %w", err)
	}
	for _, f := range fields {
		if err := f.write(w); err != nil {
			return err
		}
	}
	return nil
}

// Read populates the Table from a stream previously written by Write:
// num_fields, field_size, then num_fields Fields each read with the
// declared field_size.
func (t *Table) Read(r io.Reader) error {
	var numFields int32
	if err := binary.Read(r, binary.LittleEndian, &numFields); err != nil {
		return fmt.Errorf("flatbase: read num_fields: %w", err)
	}
	var fieldSize uint32
	if err := binary.Read(r, binary.LittleEndian, &fieldSize); err != nil {
		return fmt.Errorf("flatbase: read field_size: %w", err)
	}
	if t.fields == nil {
		t.fields = make(map[FixedString8]Field, numFields)
	}
	for i := int32(0); i < numFields; i++ {
		f, err := readField(r, fieldSize)
		if err != nil {
			return err
		}
		t.fields[f.Name] = f
	}
	return nil
}

// headerSize returns the byte offset of the record-count prefix for a
// Table with the given number of fields: 8 + num_fields*field_size.
func headerSize(numFields int, fieldSize uint32) int64 {
	return 8 + int64(numFields)*int64(fieldSize)
}
