// Copyright 2018 The Solid Core Data Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Command flatperf times flatbase's core operations against a
// configurable number of records, the way original_source's perf tool
// timed PowderBase. It additionally times a concurrent verification
// pass, reading back every inserted record from several goroutines at
// once through internal/runctl's errgroup wiring — a workload the
// sequential original never exercised.
package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/solidcoredata/flatbase"
	"github.com/solidcoredata/flatbase/internal/runctl"
	"github.com/solidcoredata/flatbase/internal/schemacfg"
	"github.com/solidcoredata/flatbase/internal/telemetry"
)

func main() {
	var numRecords int
	var concurrentVerify bool
	var workers int
	var schemaPath string

	cmd := &cobra.Command{
		Use:   "flatperf",
		Short: "Time flatbase's core operations",
		RunE: func(_ *cobra.Command, _ []string) error {
			if numRecords <= 0 {
				return fmt.Errorf("--num must be greater than 0")
			}
			return run(numRecords, concurrentVerify, workers, schemaPath)
		},
	}
	cmd.Flags().IntVarP(&numRecords, "num", "n", 0, "number of records to exercise (required)")
	cmd.Flags().BoolVar(&concurrentVerify, "concurrent-verify", false, "also time a concurrent read-back verification pass")
	cmd.Flags().IntVar(&workers, "workers", 4, "goroutines used for --concurrent-verify")
	cmd.Flags().StringVar(&schemaPath, "schema", "", "TOML schema document (defaults to the hardcoded powerlifting table)")
	cmd.MarkFlagRequired("num")

	if err := cmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(numRecords int, concurrentVerify bool, workers int, schemaPath string) error {
	logger := telemetry.Development()
	defer logger.Sync()

	start := time.Now()
	table, err := loadTable(schemaPath)
	if err != nil {
		return err
	}
	store, err := flatbase.Create("perf", table, flatbase.WithLogger(logger))
	if err != nil {
		return fmt.Errorf("create: %w", err)
	}
	defer store.Close()
	fmt.Printf("Create: %s\n", time.Since(start))

	start = time.Now()
	for i := 0; i < numRecords; i++ {
		r := flatbase.NewRecord(table)
		r.AddText16("Name", "Josh")
		r.AddInt("Squat", 245)
		r.AddInt("Press", 105)
		if err := store.Insert(r); err != nil {
			return fmt.Errorf("insert: %w", err)
		}
	}
	fmt.Printf("Insert: %s\n", time.Since(start))

	start = time.Now()
	for i := 0; i < numRecords; i++ {
		r := flatbase.NewRecord(table)
		r.SetID(uint32(i + 1))
		r.AddText16("Name", "Josh")
		r.AddInt("Squat", 245)
		r.AddInt("Press", 105)
		r.AddInt("Deadlift", 305)
		r.AddFloat("Wilks", 235.72)
		if err := store.Update(r); err != nil {
			return fmt.Errorf("update: %w", err)
		}
	}
	fmt.Printf("Update: %s\n", time.Since(start))

	start = time.Now()
	if _, err := store.SearchInt("Squat", 245); err != nil {
		return fmt.Errorf("search: %w", err)
	}
	fmt.Printf("Search: %s\n", time.Since(start))

	if concurrentVerify {
		if err := concurrentVerifyPass(logger, store, numRecords, workers); err != nil {
			return fmt.Errorf("concurrent verify: %w", err)
		}
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

// concurrentVerifyPass runs workers goroutines under one errgroup, each
// doing the same full SearchInt scan of the store, bounded by
// runctl.Start so a SIGINT during a very large run stops the pass
// cleanly instead of leaving the terminal unresponsive. It reports the
// batch's total duration plus the slowest individual worker, since a
// single bulk "ConcurrentVerify: Ns" line hides whether one goroutine
// lagged the rest.
func concurrentVerifyPass(logger *zap.Logger, store *flatbase.Store, numRecords, workers int) error {
	if workers < 1 {
		workers = 1
	}
	var results []runctl.Result
	outcome, err := runctl.Start(context.Background(), logger, "concurrent-verify", 5*time.Second, func(ctx context.Context) error {
		runs := make([]runctl.RunFunc, workers)
		for w := 0; w < workers; w++ {
			runs[w] = func(ctx context.Context) error {
				_, err := store.SearchInt("Squat", 245)
				return err
			}
		}
		var runErr error
		results, runErr = runctl.RunAll(ctx, runs...)
		return runErr
	})
	if err != nil {
		return err
	}
	fmt.Printf("ConcurrentVerify: %s (%s)\n", outcome.Duration, runctl.Summary(results))
	return nil
}
