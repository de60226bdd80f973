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
	"github.com/cloudwego/meopt/internal/cfg"
	"github.com/oleiade/lane"
)

// removeUnreachable deletes every block that cannot be reached from an
// entry, and returns the number of blocks removed.
func (self *simplifier) removeUnreachable() int {
	fn := self.fn
	q := lane.NewQueue()
	seen := make([]bool, fn.MaxBlock()+1)

	/* start from all the entries */
	for _, id := range fn.CommonEntry().Succ {
		seen[id] = true
		q.Enqueue(id)
	}

	/* mark everything reachable */
	for !q.Empty() {
		bb := fn.Block(q.Dequeue().(cfg.BBId))
		for _, id := range bb.Succ {
			if !seen[id] {
				seen[id] = true
				q.Enqueue(id)
			}
		}
	}

	/* collect the dead blocks */
	var dead []*cfg.BasicBlock
	for _, bb := range fn.Blocks() {
		if !seen[bb.Id] {
			dead = append(dead, bb)
		}
	}

	/* cut the outgoing edges first, which also clears every incoming edge
	 * of a dead block since its predecessors are all dead as well */
	for _, bb := range dead {
		fn.RemoveAllSuccs(bb, true)
	}

	/* then delete the blocks */
	for _, bb := range dead {
		fn.DeleteBlock(bb)
	}
	return len(dead)
}
