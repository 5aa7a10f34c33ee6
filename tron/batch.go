// Copyright ©2025 curioloop. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package tron

import (
	"runtime"

	"golang.org/x/sync/errgroup"
)

// FitBatch solves one instance per initial guess concurrently and
// returns the results in matching order. Every instance gets a private
// workspace, so the optimizer itself may be shared freely; limit caps
// the number of concurrent solves (GOMAXPROCS when non-positive).
//
// Instances are fully independent: a panicking callback halts only its
// own solve, which comes back with Status HaltEvalPanic.
func (o *Optimizer) FitBatch(xs [][]float64, limit int) []*Result {

	if limit <= 0 {
		limit = runtime.GOMAXPROCS(0)
	}

	results := make([]*Result, len(xs))

	var grp errgroup.Group
	grp.SetLimit(limit)
	for i, x := range xs {
		i, x := i, x
		grp.Go(func() error {
			results[i] = o.Fit(x, o.Init())
			return nil
		})
	}
	_ = grp.Wait()

	return results
}
