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

package opts

import (
	"io"
	"os"
	"strings"

	"github.com/cloudwego/meopt/internal/cfg"
)

// Options controls one run of the engine. A zero Options disables
// frequency tracking, verification and dumping. Nil collaborators are
// replaced with the defaults by the caller.
type Options struct {
	TrackFreq bool
	Verify    bool
	Dump      bool
	DumpFunc  string
	DumpPhase string
	DumpTo    io.Writer
	Workers   int
	Updater   cfg.SSAUpdater
	Splitter  cfg.EdgeSplitter
}

// CanDump reports whether the named phase of the named function should be
// dumped. Empty filters match everything, otherwise a filter is a comma
// separated list of names.
func (self *Options) CanDump(fn string, phase string) bool {
	return self.Dump && matches(self.DumpFunc, fn) && matches(self.DumpPhase, phase)
}

// Output returns the dump destination.
func (self *Options) Output() io.Writer {
	if self.DumpTo != nil {
		return self.DumpTo
	} else {
		return os.Stderr
	}
}

func matches(filter string, name string) bool {
	if filter == "" {
		return true
	}
	for _, v := range strings.Split(filter, ",") {
		if strings.TrimSpace(v) == name {
			return true
		}
	}
	return false
}

func GetDefaultOptions() Options {
	return Options{
		TrackFreq: TrackFreq,
		Verify:    Verify,
		Dump:      Dump,
		DumpFunc:  DumpFunc,
		DumpPhase: DumpPhase,
		Workers:   defaultWorkers(),
	}
}
