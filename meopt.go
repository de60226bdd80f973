/*
 * Copyright 2022 CloudWeGo Authors
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package meopt

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/cloudwego/meopt/internal/cfg"
	"github.com/cloudwego/meopt/internal/opts"
	"github.com/cloudwego/meopt/internal/simplify"
	"github.com/cloudwego/meopt/internal/ssaup"
)

// Func is one function in SSA form.
type Func = cfg.Func

// Builder lays out a Func from named blocks.
type Builder = cfg.Builder

// SSAUpdater rebuilds the SSA form of the variables an optimization run
// has recorded as candidates.
type SSAUpdater = cfg.SSAUpdater

// EdgeSplitter splits the critical edges of a function that has been
// changed by an optimization run.
type EdgeSplitter = cfg.EdgeSplitter

// NewBuilder starts building a function named name.
func NewBuilder(name string) *Builder {
	return cfg.NewBuilder(name)
}

// Result describes what Optimize did to one function.
type Result struct {
	Changed bool
	Updated bool
	Split   bool
	Rounds  int
	Removed int
	Stats   map[string]int
}

const (
	_PhaseUpdate = "ssaupdate"
	_PhaseSplit  = "splitcritical"
)

// Optimize simplifies the control flow graph of fn in place. When the
// result reports a change, every dominance or loop analysis computed for
// fn beforehand is stale.
//
// A broken invariant of fn panics with an *InternalError.
func Optimize(fn *Func, options ...Option) Result {
	o := opts.GetDefaultOptions()
	for _, opt := range options {
		opt(&o)
	}
	return optimize(fn, o)
}

func optimize(fn *Func, o opts.Options) Result {
	ret := simplify.Run(fn, o)
	res := Result{
		Changed: ret.Changed,
		Rounds:  ret.Rounds,
		Removed: ret.Removed,
		Stats:   ret.Stats,
	}

	/* hand the candidates over to the SSA updater */
	if len(fn.Cands) != 0 {
		res.Updated = true
		updaterOf(o).Update(fn)
		check(fn, o, _PhaseUpdate)
	}

	/* critical edges may have been created */
	if ret.Changed {
		res.Split = splitterOf(o).Split(fn)
		check(fn, o, _PhaseSplit)
	}
	return res
}

func updaterOf(o opts.Options) SSAUpdater {
	if o.Updater != nil {
		return o.Updater
	} else {
		return ssaup.Updater{}
	}
}

func splitterOf(o opts.Options) EdgeSplitter {
	if o.Splitter != nil {
		return o.Splitter
	} else {
		return cfg.SplitCritical{}
	}
}

func check(fn *Func, o opts.Options, phase string) {
	if o.Verify {
		fn.Verify()
	}
	if o.CanDump(fn.Name, phase) {
		fmt.Fprintf(o.Output(), "=== %s: %s ===\n%s", phase, fn.Name, fn)
	}
}

// OptimizeModule optimizes independent functions concurrently, with at
// most Workers of them in flight at a time. It stops starting new
// functions once ctx is done or one of them has failed, and returns the
// first error. A broken invariant is reported as an error wrapping an
// *InternalError.
func OptimizeModule(ctx context.Context, fns []*Func, options ...Option) ([]Result, error) {
	o := opts.GetDefaultOptions()
	for _, opt := range options {
		opt(&o)
	}

	/* one slot per function, no locking needed */
	ret := make([]Result, len(fns))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(max(1, min(o.Workers, len(fns))))

	/* optimize every function */
	for i, fn := range fns {
		i, fn := i, fn
		g.Go(func() (err error) {
			select {
			case <-gctx.Done():
				return gctx.Err()
			default:
			}

			/* a broken function fails the whole module */
			defer func() {
				if v := recover(); v != nil {
					if e, ok := AsInternalError(v); ok {
						err = fmt.Errorf("meopt: %s: %w", fn.Name, e)
					} else {
						panic(v)
					}
				}
			}()

			/* functions are independent of each other */
			ret[i] = optimize(fn, o)
			return nil
		})
	}

	/* wait for all of them */
	if err := g.Wait(); err != nil {
		return nil, err
	} else {
		return ret, nil
	}
}
