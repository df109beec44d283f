// Copyright 2018 The Solid Core Data Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package wire holds the per-type binary codecs for attribute cells.
//
// This is adapted from the teacher's FieldCoder interface (one coder per
// type tag, dispatched without virtual calls) but finished out with the
// Decode half the teacher never wrote, and pinned to the four cell types
// a flat-table record actually carries: a 4-byte identifier, a 4-byte
// signed integer, a 4-byte IEEE-754 float, and a 16-byte fixed string.
package wire

import (
	"encoding/binary"
	"fmt"
	"math"
)

// IdentifierTombstone is the sentinel identifier value marking a
// deleted slot.
const IdentifierTombstone uint32 = 0

// NameSize is the width in bytes of a padded attribute or field name.
const NameSize = 8

// Text16Size is the width in bytes of a Text16 cell's value.
const Text16Size = 16

// Coder encodes and decodes one attribute cell's value bytes. It never
// touches the 8-byte name prefix; the caller reads/writes that
// separately, since the enclosing Record already knows (or is
// discovering) which field a slot belongs to.
type Coder interface {
	// Size returns the fixed number of bytes this coder's value
	// occupies on disk.
	Size() int
	// Encode renders value (the cell's Go-native payload) to exactly
	// Size() bytes.
	Encode(value interface{}) ([]byte, error)
	// Decode parses exactly Size() bytes back into the cell's Go-native
	// payload.
	Decode(b []byte) (interface{}, error)
}

type coderIdentifier struct{}

func (coderIdentifier) Size() int { return 4 }
func (coderIdentifier) Encode(value interface{}) ([]byte, error) {
	v, ok := value.(uint32)
	if !ok {
		return nil, fmt.Errorf("wire: identifier coder got %T, want uint32", value)
	}
	b := make([]byte, 4)
	binary.LittleEndian.PutUint32(b, v)
	return b, nil
}
func (coderIdentifier) Decode(b []byte) (interface{}, error) {
	if len(b) < 4 {
		return nil, fmt.Errorf("wire: short identifier buffer (%d bytes)", len(b))
	}
	return binary.LittleEndian.Uint32(b), nil
}

type coderInt32 struct{}

func (coderInt32) Size() int { return 4 }
func (coderInt32) Encode(value interface{}) ([]byte, error) {
	v, ok := value.(int32)
	if !ok {
		return nil, fmt.Errorf("wire: int32 coder got %T, want int32", value)
	}
	b := make([]byte, 4)
	binary.LittleEndian.PutUint32(b, uint32(v))
	return b, nil
}
func (coderInt32) Decode(b []byte) (interface{}, error) {
	if len(b) < 4 {
		return nil, fmt.Errorf("wire: short int32 buffer (%d bytes)", len(b))
	}
	return int32(binary.LittleEndian.Uint32(b)), nil
}

type coderFloat32 struct{}

func (coderFloat32) Size() int { return 4 }
func (coderFloat32) Encode(value interface{}) ([]byte, error) {
	v, ok := value.(float32)
	if !ok {
		return nil, fmt.Errorf("wire: float32 coder got %T, want float32", value)
	}
	b := make([]byte, 4)
	binary.LittleEndian.PutUint32(b, math.Float32bits(v))
	return b, nil
}
func (coderFloat32) Decode(b []byte) (interface{}, error) {
	if len(b) < 4 {
		return nil, fmt.Errorf("wire: short float32 buffer (%d bytes)", len(b))
	}
	return math.Float32frombits(binary.LittleEndian.Uint32(b)), nil
}

type coderText16 struct{}

func (coderText16) Size() int { return Text16Size }
func (coderText16) Encode(value interface{}) ([]byte, error) {
	v, ok := value.(string)
	if !ok {
		return nil, fmt.Errorf("wire: text16 coder got %T, want string", value)
	}
	b := make([]byte, Text16Size)
	n := copy(b, v)
	for i := n; i < Text16Size; i++ {
		b[i] = ' '
	}
	return b, nil
}
func (coderText16) Decode(b []byte) (interface{}, error) {
	if len(b) < Text16Size {
		return nil, fmt.Errorf("wire: short text16 buffer (%d bytes)", len(b))
	}
	// Byte-opaque: no UTF-8 validation. Text containing multibyte
	// characters truncated mid-codepoint by Encode is the caller's
	// problem, matching the original format.
	return string(b[:Text16Size]), nil
}

var coders = map[int32]Coder{
	-1: coderIdentifier{},
	0:  coderInt32{},
	1:  coderFloat32{},
	2:  coderText16{},
}

// CoderFor returns the Coder for a field's type tag. Unknown tags fall
// back to the int32 coder, matching Field.SetType's coercion.
func CoderFor(typeTag int32) Coder {
	if c, ok := coders[typeTag]; ok {
		return c
	}
	return coderInt32{}
}

// EncodeName pads or truncates name to the 8-byte key written ahead of
// every attribute cell and field record.
func EncodeName(name string) [NameSize]byte {
	var b [NameSize]byte
	n := copy(b[:], name)
	for i := n; i < len(b); i++ {
		b[i] = ' '
	}
	return b
}
