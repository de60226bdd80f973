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

package cfg

import (
	"github.com/oleiade/lane"

	"github.com/cloudwego/meopt/internal/ir"
)

// EdgeSplitter is invoked once after a run that changed the function.
type EdgeSplitter interface {
	Split(fn *Func) bool
}

type _CrEdge struct {
	from *BasicBlock
	succ int
}

// SplitCritical splits critical edges (those that go from a block with
// more than one outedge to a block with more than one inedge) by inserting
// an empty block.
type SplitCritical struct{}

func (SplitCritical) Split(fn *Func) bool {
	var ok bool
	var edges = lane.NewQueue()

	/* find all critical edges */
	for _, bb := range fn.Blocks() {
		if len(bb.Pred) > 1 {
			for i, id := range bb.Pred {
				if p := fn.Block(id); len(p.Succ) > 1 && bb.PredIndex(id) == i {
					for j, s := range p.Succ {
						if s == bb.Id {
							edges.Enqueue(_CrEdge{from: p, succ: j})
						}
					}
				}
			}
		}
	}

	/* insert empty block between the edges */
	for !edges.Empty() {
		ok = true
		fn.splitEdge(edges.Dequeue().(_CrEdge))
	}

	/* all done */
	return ok
}

func (self *Func) splitEdge(e _CrEdge) {
	to := self.Block(e.from.Succ[e.succ])
	slot := indexOf(to.Pred, e.from.Id, occurrence(e.from.Succ, e.succ))

	/* the new block keeps the fallthrough edge if it was one */
	bb := self.NewBlock(KindFallthrough)
	bb.Attr = e.from.Attr & AttrTry

	/* jump explicitly otherwise */
	if e.succ != 0 || !e.from.FallsInto(to.Id) {
		bb.Kind = KindGoto
		bb.Stmts = []ir.Stmt{&ir.Goto{Target: self.LabelOf(to)}}
	}

	/* update the successor, and the branch target */
	e.from.Succ[e.succ] = bb.Id
	self.retarget(e.from, e.succ, to, bb)

	/* the new block takes over the predecessor slot, so the phis stay */
	to.Pred[slot] = bb.Id
	bb.Pred = []BBId{e.from.Id}
	bb.Succ = []BBId{to.Id}

	/* the edge weight flows through the new block */
	if self.TrackFreq {
		bb.Freq = e.from.SuccFreq[e.succ]
		bb.SuccFreq = []uint64{bb.Freq}
	}
}
