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
	"runtime"

	"github.com/xyproto/env/v2"
)

const (
	_DefaultWorkers = 0 // one worker per CPU
)

var (
	TrackFreq = env.Bool("MEOPT_FREQ")
	Verify    = env.Bool("MEOPT_VERIFY")
	Dump      = env.Bool("MEOPT_DUMP")
	DumpFunc  = env.Str("MEOPT_DUMP_FUNC", "")
	DumpPhase = env.Str("MEOPT_DUMP_PHASE", "")
	Workers   = parseOrDefault("MEOPT_WORKERS", _DefaultWorkers, 0)
)

func parseOrDefault(key string, def int, min int) int {
	if !env.Has(key) {
		return def
	} else if ret := env.Int(key, -1); ret < min {
		panic("meopt: invalid value for " + key)
	} else {
		return ret
	}
}

func defaultWorkers() int {
	if Workers != 0 {
		return Workers
	} else {
		return runtime.GOMAXPROCS(0)
	}
}
