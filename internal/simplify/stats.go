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

package simplify

import (
	"sync"
	"sync/atomic"
)

var (
	FuncCount    uint64
	ChangedCount uint64
	RoundCount   uint64
	RemovedCount uint64
)

var (
	totalsLock sync.Mutex
	totals     = make(Stats)
)

func record(ret *Result) {
	atomic.AddUint64(&FuncCount, 1)
	atomic.AddUint64(&RoundCount, uint64(ret.Rounds))
	atomic.AddUint64(&RemovedCount, uint64(ret.Removed))

	/* only count the functions that changed */
	if ret.Changed {
		atomic.AddUint64(&ChangedCount, 1)
	}

	/* merge the rewrite counters */
	totalsLock.Lock()
	for k, v := range ret.Stats {
		totals[k] += v
	}
	totalsLock.Unlock()
}

// Totals returns the rewrite counters accumulated by every run so far.
func Totals() Stats {
	totalsLock.Lock()
	defer totalsLock.Unlock()
	ret := make(Stats, len(totals))
	for k, v := range totals {
		ret[k] = v
	}
	return ret
}
