// Copyright 2018 The Solid Core Data Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Command flatsample demonstrates core flatbase usage against a small
// powerlifting-team table: create, insert, update, search, remove, and
// a second search showing tombstoned records drop out of results.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/solidcoredata/flatbase"
	"github.com/solidcoredata/flatbase/internal/schemacfg"
	"github.com/solidcoredata/flatbase/internal/telemetry"
)

func main() {
	var schemaPath string

	cmd := &cobra.Command{
		Use:   "flatsample",
		Short: "Run the flatbase sample walkthrough",
		RunE: func(_ *cobra.Command, _ []string) error {
			return run(schemaPath)
		},
	}
	cmd.Flags().StringVar(&schemaPath, "schema", "", "TOML schema document (defaults to the hardcoded powerlifting table)")
	if err := cmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(schemaPath string) error {
	logger := telemetry.Development()
	defer logger.Sync()

	table, err := loadTable(schemaPath)
	if err != nil {
		return err
	}

	store, err := flatbase.Create("sample", table, flatbase.WithLogger(logger))
	if err != nil {
		return fmt.Errorf("create: %w", err)
	}
	defer store.Close()

	record := flatbase.NewRecord(table)
	record.AddText16("Name", "Josh")
	record.AddInt("Squat", 245)
	record.AddInt("Press", 105)
	if err := store.Insert(record); err != nil {
		return fmt.Errorf("insert: %w", err)
	}

	lifters := []struct {
		name                   string
		squat, press, deadlift int32
		wilks                  float32
	}{
		{"Joe Lifter", 315, 135, 365, 235.72},
		{"Jim Lifter", 315, 135, 365, 235.72},
		{"Tim Lifter", 315, 135, 365, 235.72},
	}
	for _, l := range lifters {
		r := flatbase.NewRecord(table)
		r.AddText16("Name", l.name)
		r.AddInt("Squat", l.squat)
		r.AddInt("Press", l.press)
		r.AddInt("Deadlift", l.deadlift)
		r.AddFloat("Wilks", l.wilks)
		if err := store.Insert(r); err != nil {
			return fmt.Errorf("insert %s: %w", l.name, err)
		}
	}

	record.SetID(1)
	record.AddInt("Deadlift", 305)
	record.AddFloat("Wilks", 235.72)
	if err := store.Update(record); err != nil {
		return fmt.Errorf("update: %w", err)
	}

	fmt.Println("Search 1")
	if err := printByWilks(store, 235.72); err != nil {
		return err
	}

	if err := store.Remove(2); err != nil {
		return fmt.Errorf("remove 2: %w", err)
	}
	if err := store.Remove(3); err != nil {
		return fmt.Errorf("remove 3: %w", err)
	}

	fmt.Println("Search 2")
	if err := printByWilks(store, 235.72); err != nil {
		return err
	}

	return nil
}

func loadTable(schemaPath string) (*flatbase.Table, error) {
	if schemaPath == "" {
		return flatbase.NewTable().
			AddField("Name", flatbase.AttrText16).
			AddField("Squat", flatbase.AttrInt).
			AddField("Press", flatbase.AttrInt).
			AddField("Deadlift", flatbase.AttrInt).
			AddField("Wilks", flatbase.AttrFloat), nil
	}
	table, err := schemacfg.Load(schemaPath)
	if err != nil {
		return nil, fmt.Errorf("load schema: %w", err)
	}
	return table, nil
}

func printByWilks(store *flatbase.Store, wilks float32) error {
	records, err := store.SearchFloat("Wilks", wilks)
	if err != nil {
		return fmt.Errorf("search: %w", err)
	}
	for _, r := range records {
		fmt.Printf("id: %d\n", r.GetID())
		fmt.Printf("Name: %s\n", r.GetText16("Name"))
		fmt.Printf("Squat: %d\n", r.GetInt("Squat"))
		fmt.Printf("Press: %d\n", r.GetInt("Press"))
		fmt.Printf("Deadlift: %d\n", r.GetInt("Deadlift"))
		fmt.Printf("Wilks: %g\n", r.GetFloat("Wilks"))
	}
	return nil
}
