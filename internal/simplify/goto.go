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
)

// mergeGotoIntoPreds retargets the predecessors of a block that only
// jumps somewhere else, so that they jump there directly.
func (self *simplifier) mergeGotoIntoPreds(bb *cfg.BasicBlock) bool {
	fn := self.fn
	ok := false

	/* must be nothing but a jump, to somewhere else */
	if !bb.IsEmpty() || bb.Has(cfg.AttrEntry) || bb.Has(cfg.AttrTryEnd) || bb.Succ[0] == bb.Id {
		return false
	}

	/* retarget every edge that can be retargeted */
	t := fn.Block(bb.Succ[0])
	for _, id := range uniquePreds(bb) {
		p := fn.Block(id)
		for i := p.SuccIndex(bb.Id); i >= 0 && sameTry(p, bb) && self.retargetEdge(p, i, bb, t); i = p.SuccIndex(bb.Id) {
			ok = true
		}
	}

	/* remove the block if nothing jumps into it anymore */
	if ok && len(bb.Pred) == 0 {
		fn.RemoveAllSuccs(bb, true)
		fn.DeleteBlock(bb)
	}
	return ok
}

// retargetEdge redirects the i-th edge of p from the jump block g to its
// target t, keeping at most one fallthrough predecessor for t.
func (self *simplifier) retargetEdge(p *cfg.BasicBlock, i int, g *cfg.BasicBlock, t *cfg.BasicBlock) bool {
	fn := self.fn
	f := fn.EdgeFreq(p, i)

	/* check whether the edge can be moved */
	switch p.Kind {
	default:
		return false

	/* explicit jumps can go anywhere */
	case cfg.KindGoto:
		break

	/* the fallthrough edge of a branch can not become a jump */
	case cfg.KindCondGoto:
		if i == 0 && !fn.CanFallInto(p, t) {
			return false
		}

	/* plain fallthrough blocks jump explicitly if needed */
	case cfg.KindFallthrough:
		if !fn.CanFallInto(p, t) {
			fn.MakeJump(p)
		}

	/* switch successors must stay unique */
	case cfg.KindSwitch:
		if j := p.SuccIndex(t.Id); j >= 0 {
			return self.mergeSwitchEdge(p, j, g, t)
		}
	}

	/* move the edge, t already received its weight through g */
	fn.ReplaceSuccAt(p, i, t, true)
	self.subFreq(t, f)
	return true
}

func (self *simplifier) mergeSwitchEdge(p *cfg.BasicBlock, j int, g *cfg.BasicBlock, t *cfg.BasicBlock) bool {
	fn := self.fn
	f := fn.EdgeFreq(p, p.SuccIndex(g.Id))

	/* both paths must carry the same values into t */
	for _, ph := range t.Phis {
		if ph.Opnds[fn.EdgeSlot(p, j)] != ph.Opnds[fn.EdgeSlot(g, 0)] {
			return false
		}
	}

	/* fold the edge */
	fn.MergeSwitchEdge(p, g, t)
	self.subFreq(t, f)
	return true
}
