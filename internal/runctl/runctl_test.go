// Copyright 2018 The Solid Core Data Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package runctl

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStartReturnsRunError(t *testing.T) {
	wantErr := errors.New("boom")
	outcome, err := Start(context.Background(), nil, "phase", time.Second, func(ctx context.Context) error {
		return wantErr
	})
	assert.ErrorIs(t, err, wantErr)
	assert.False(t, outcome.TimedOut)
}

func TestStartReturnsNilOnSuccess(t *testing.T) {
	outcome, err := Start(context.Background(), nil, "phase", time.Second, func(ctx context.Context) error {
		return nil
	})
	assert.NoError(t, err)
	assert.False(t, outcome.TimedOut)
}

func TestStartReportsTimedOutWhenRunOutlivesStopTimeout(t *testing.T) {
	blocked := make(chan struct{})
	outcome, err := Start(context.Background(), nil, "phase", 10*time.Millisecond, func(ctx context.Context) error {
		// Interrupt this process so Start cancels ctx; run then ignores
		// the cancellation and outlives the stop timeout.
		if p, err := os.FindProcess(os.Getpid()); err == nil {
			_ = p.Signal(os.Interrupt)
		}
		<-ctx.Done()
		<-blocked // closed only after Start has returned
		return nil
	})
	close(blocked)
	assert.NoError(t, err)
	assert.True(t, outcome.TimedOut)
	assert.GreaterOrEqual(t, outcome.Duration, 10*time.Millisecond)
}

func TestRunAllReturnsFirstError(t *testing.T) {
	wantErr := errors.New("one failed")
	results, err := RunAll(context.Background(),
		func(ctx context.Context) error { return nil },
		func(ctx context.Context) error { return wantErr },
	)
	assert.ErrorIs(t, err, wantErr)
	require.Len(t, results, 2)
	assert.NoError(t, results[0].Err)
	assert.ErrorIs(t, results[1].Err, wantErr)
}

func TestRunAllSucceedsWhenAllSucceed(t *testing.T) {
	results, err := RunAll(context.Background(),
		func(ctx context.Context) error { return nil },
		func(ctx context.Context) error { return nil },
		func(ctx context.Context) error { return nil },
	)
	assert.NoError(t, err)
	require.Len(t, results, 3)
	for i, r := range results {
		assert.Equal(t, i, r.Index)
		assert.NoError(t, r.Err)
	}
}

func TestSlowestPicksLargestDuration(t *testing.T) {
	results := []Result{
		{Index: 0, Duration: 5 * time.Millisecond},
		{Index: 1, Duration: 50 * time.Millisecond},
		{Index: 2, Duration: 20 * time.Millisecond},
	}
	assert.Equal(t, 1, Slowest(results).Index)
}

func TestSummaryReportsWorkerCountAndSlowest(t *testing.T) {
	results := []Result{
		{Index: 0, Duration: time.Millisecond},
		{Index: 1, Duration: 3 * time.Millisecond},
	}
	summary := Summary(results)
	assert.Contains(t, summary, "2 workers")
	assert.Contains(t, summary, "#1")
}
