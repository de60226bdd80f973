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

package debug

import (
	"sync/atomic"

	"github.com/cloudwego/meopt/internal/simplify"
)

// A Stats records statistics about the optimizer.
type Stats struct {
	Engine   EngineStats
	Rewrites map[string]int
}

// An EngineStats records how much work the fixed-point driver has done.
type EngineStats struct {
	Funcs   int
	Changed int
	Rounds  int
	Removed int
}

// GetStats returns statistics of the optimizer since the process started.
func GetStats() Stats {
	return Stats{
		Engine: EngineStats{
			Funcs:   int(atomic.LoadUint64(&simplify.FuncCount)),
			Changed: int(atomic.LoadUint64(&simplify.ChangedCount)),
			Rounds:  int(atomic.LoadUint64(&simplify.RoundCount)),
			Removed: int(atomic.LoadUint64(&simplify.RemovedCount)),
		},
		Rewrites: simplify.Totals(),
	}
}
