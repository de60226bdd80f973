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
	"fmt"
	"io"
	"runtime"

	"github.com/cloudwego/meopt/internal/opts"
)

// Option is the property setter function for opts.Options.
type Option func(*opts.Options)

// WithFreq enables or disables frequency tracking. When disabled, the
// profile of every optimized function is dropped.
//
// This option can also be configured with the `MEOPT_FREQ` environment
// variable.
func WithFreq(v bool) Option {
	return func(o *opts.Options) { o.TrackFreq = v }
}

// WithVerify checks every invariant of the function after each rewrite.
// This is slow, and meant for tests and debugging.
func WithVerify(v bool) Option {
	return func(o *opts.Options) { o.Verify = v }
}

// WithDump dumps the function before and after each phase.
func WithDump(v bool) Option {
	return func(o *opts.Options) { o.Dump = v }
}

// WithDumpFilter restricts dumping to the listed functions and phases.
// Both are comma separated lists, an empty list matches everything.
func WithDumpFilter(funcs string, phases string) Option {
	return func(o *opts.Options) {
		o.DumpFunc = funcs
		o.DumpPhase = phases
	}
}

// WithDumpWriter sends the dumps to w instead of the standard error.
func WithDumpWriter(w io.Writer) Option {
	return func(o *opts.Options) { o.DumpTo = w }
}

// WithWorkers sets how many functions OptimizeModule works on at the same
// time. The value "0" means one per CPU.
func WithWorkers(n int) Option {
	if n < 0 {
		panic(fmt.Sprintf("meopt: invalid worker count: %d", n))
	} else if n == 0 {
		n = runtime.GOMAXPROCS(0)
	}
	return func(o *opts.Options) { o.Workers = n }
}

// WithSSAUpdater replaces the default SSA updater.
func WithSSAUpdater(u SSAUpdater) Option {
	return func(o *opts.Options) { o.Updater = u }
}

// WithEdgeSplitter replaces the default critical edge splitter.
func WithEdgeSplitter(s EdgeSplitter) Option {
	return func(o *opts.Options) { o.Splitter = s }
}

// SetWorkers sets the default worker count for all OptimizeModule calls
// from now on, and returns the old value.
func SetWorkers(n int) int {
	if n < 0 {
		panic(fmt.Sprintf("meopt: invalid worker count: %d", n))
	}
	n, opts.Workers = opts.Workers, n
	return n
}
