// Copyright 2018 The Solid Core Data Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Command flatdump reads and prints the structural contents of a
// flatbase .pb file: its schema, record_count, record_size, and every
// slot's raw field values including tombstones, the way
// original_source's file_viewer tool dumped a PowderBase file.
package main

import (
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"os"

	"github.com/spf13/cobra"
)

const (
	nameSize   = 8
	char16Size = 16
)

func main() {
	var file string
	var verbose bool

	cmd := &cobra.Command{
		Use:   "flatdump",
		Short: "Dump the structural contents of a flatbase .pb file",
		RunE: func(_ *cobra.Command, _ []string) error {
			if file == "" {
				return fmt.Errorf("-f/--file is required")
			}
			return dump(file, verbose)
		},
	}
	cmd.Flags().StringVarP(&file, "file", "f", "", "path to the .pb file (required)")
	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "print the byte offset before each value")
	cmd.MarkFlagRequired("file")

	if err := cmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func dump(path string, verbose bool) error {
	if verbose {
		info, err := os.Stat(path)
		if err != nil {
			return fmt.Errorf("stat: %w", err)
		}
		fmt.Printf("Database size (bytes) %d\n", info.Size())
	}

	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open: %w", err)
	}
	defer f.Close()

	var offset int64
	readAt := func(buf []byte) error {
		if verbose {
			fmt.Printf(" (byte %d) ", offset)
		}
		n, err := io.ReadFull(f, buf)
		offset += int64(n)
		return err
	}

	if verbose {
		fmt.Println("Table")
	}

	var numFields int32
	var numFieldsBuf [4]byte
	if err := readAt(numFieldsBuf[:]); err != nil {
		return fmt.Errorf("read num_fields: %w", err)
	}
	numFields = int32(binary.LittleEndian.Uint32(numFieldsBuf[:]))
	fmt.Println(numFields)

	var fieldSizeBuf [4]byte
	if err := readAt(fieldSizeBuf[:]); err != nil {
		return fmt.Errorf("read field_size: %w", err)
	}
	fieldSize := binary.LittleEndian.Uint32(fieldSizeBuf[:])
	fmt.Println(fieldSize)

	nameTypes := make(map[string]int32, numFields)
	names := make([]string, 0, numFields)
	for i := int32(0); i < numFields; i++ {
		nameBuf := make([]byte, nameSize)
		if err := readAt(nameBuf); err != nil {
			return fmt.Errorf("read field name: %w", err)
		}
		name := string(nameBuf)
		fmt.Println(name)

		var typeBuf [4]byte
		if err := readAt(typeBuf[:]); err != nil {
			return fmt.Errorf("read field type: %w", err)
		}
		typ := int32(binary.LittleEndian.Uint32(typeBuf[:]))
		fmt.Println(typ)

		nameTypes[name] = typ
		names = append(names, name)

		if extra := int64(fieldSize) - 12; extra > 0 {
			if _, err := io.CopyN(io.Discard, f, extra); err != nil {
				return fmt.Errorf("skip trailing field bytes: %w", err)
			}
			offset += extra
		}
	}

	if verbose {
		fmt.Println("Records")
	}

	var recordCountBuf [4]byte
	if err := readAt(recordCountBuf[:]); err != nil {
		return fmt.Errorf("read record_count: %w", err)
	}
	recordCount := binary.LittleEndian.Uint32(recordCountBuf[:])
	fmt.Println(recordCount)

	var recordSizeBuf [4]byte
	if err := readAt(recordSizeBuf[:]); err != nil {
		return fmt.Errorf("read record_size: %w", err)
	}
	recordSize := int32(binary.LittleEndian.Uint32(recordSizeBuf[:]))
	fmt.Println(recordSize)

	for i := uint32(0); i < recordCount; i++ {
		for range names {
			nameBuf := make([]byte, nameSize)
			if err := readAt(nameBuf); err != nil {
				return fmt.Errorf("read cell name: %w", err)
			}
			name := string(nameBuf)
			fmt.Println(name)

			typ := nameTypes[name]
			switch typ {
			case -1:
				var b [4]byte
				if err := readAt(b[:]); err != nil {
					return fmt.Errorf("read id cell: %w", err)
				}
				fmt.Println(binary.LittleEndian.Uint32(b[:]))
			case 0:
				var b [4]byte
				if err := readAt(b[:]); err != nil {
					return fmt.Errorf("read int cell: %w", err)
				}
				fmt.Println(int32(binary.LittleEndian.Uint32(b[:])))
			case 1:
				var b [4]byte
				if err := readAt(b[:]); err != nil {
					return fmt.Errorf("read float cell: %w", err)
				}
				bits := binary.LittleEndian.Uint32(b[:])
				fmt.Println(math.Float32frombits(bits))
			case 2:
				b := make([]byte, char16Size)
				if err := readAt(b); err != nil {
					return fmt.Errorf("read text16 cell: %w", err)
				}
				fmt.Println(string(b))
			}
		}
	}

	return nil
}
