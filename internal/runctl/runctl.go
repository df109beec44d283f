// Copyright 2018 The Solid Core Data Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package runctl bounds a CLI command's phases under one cancellable
// context, stopping on SIGINT, first error, or completion, and reports
// how each phase actually ran. Adapted from the teacher's internal/start
// package, which only ever reported success-or-error for a single
// long-lived service loop; flatperf needs more than that from a phase it
// is timing, so Start here also reports the phase's wall-clock duration
// and whether it had to be abandoned at stopTimeout, and RunAll reports
// a per-worker Result instead of collapsing the fan-out to one error.
package runctl

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// RunFunc is one phase of work to run under a controlled context.
type RunFunc func(ctx context.Context) error

// Outcome reports how Start's run finished.
type Outcome struct {
	// Duration is the wall-clock time from Start's call to run's return,
	// or to the forced-return deadline if run never returned in time.
	Duration time.Duration
	// TimedOut is true if run had not returned within stopTimeout of
	// cancellation and Start gave up on waiting for it.
	TimedOut bool
}

// Start runs run under a context that is canceled on SIGINT. If run has
// not returned within stopTimeout of cancellation, Start gives up and
// reports TimedOut in the returned Outcome; logger receives a Warn in
// that case so a caller timing flatperf phases can see which one stalled
// without inspecting the error alone. Start returns run's error, if any.
func Start(ctx context.Context, logger *zap.Logger, label string, stopTimeout time.Duration, run RunFunc) (Outcome, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	started := time.Now()

	notify := make(chan os.Signal, 3)
	signal.Notify(notify, os.Interrupt)
	defer signal.Stop(notify)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	once := &sync.Once{}
	fin := make(chan struct{})
	unlockOnce := func() { once.Do(func() { close(fin) }) }

	var runErr atomic.Value
	go func() {
		if err := run(ctx); err != nil {
			runErr.Store(err)
		}
		unlockOnce()
	}()

	select {
	case <-notify:
		logger.Warn("runctl: phase interrupted", zap.String("phase", label))
	case <-fin:
	}
	cancel()

	var timedOut atomic.Bool
	go func() {
		<-time.After(stopTimeout)
		timedOut.Store(true)
		unlockOnce()
	}()
	<-fin

	outcome := Outcome{Duration: time.Since(started), TimedOut: timedOut.Load()}
	if outcome.TimedOut {
		logger.Warn("runctl: phase did not finish within stop timeout",
			zap.String("phase", label), zap.Duration("stop_timeout", stopTimeout))
	}

	if err, ok := runErr.Load().(error); ok {
		return outcome, err
	}
	return outcome, nil
}

// Result is one RunFunc's outcome from RunAll, identified by its
// position in the runs slice passed in.
type Result struct {
	Index    int
	Duration time.Duration
	Err      error
}

// RunAll runs every function in runs concurrently under one
// errgroup.Group, timing each individually. It returns one Result per
// run, in the order runs was given, plus the first error encountered (if
// any); the shared context is canceled for the remaining functions as
// soon as one fails. flatperf uses the per-result durations to report
// its slowest search worker instead of only the batch's total time.
func RunAll(ctx context.Context, runs ...RunFunc) ([]Result, error) {
	results := make([]Result, len(runs))
	group, ctx := errgroup.WithContext(ctx)
	for i, run := range runs {
		i, run := i, run
		group.Go(func() error {
			start := time.Now()
			err := run(ctx)
			results[i] = Result{Index: i, Duration: time.Since(start), Err: err}
			return err
		})
	}
	err := group.Wait()
	return results, err
}

// Slowest returns the Result with the largest Duration. It panics if
// results is empty; callers only call it after a successful RunAll.
func Slowest(results []Result) Result {
	slowest := results[0]
	for _, r := range results[1:] {
		if r.Duration > slowest.Duration {
			slowest = r
		}
	}
	return slowest
}

// Summary renders a one-line digest of a RunAll batch: worker count and
// the slowest worker's duration, the way flatperf reports its
// concurrent-verify pass.
func Summary(results []Result) string {
	if len(results) == 0 {
		return "0 workers"
	}
	slowest := Slowest(results)
	return fmt.Sprintf("%d workers, slowest worker %s (#%d)", len(results), slowest.Duration, slowest.Index)
}
