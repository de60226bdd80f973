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

// eliminateDeadBlock removes a block that is not an entry and has no
// predecessor other than itself.
func (self *simplifier) eliminateDeadBlock(bb *cfg.BasicBlock) bool {
	if bb.Has(cfg.AttrEntry) {
		return false
	}

	/* every predecessor must be the block itself */
	for _, id := range bb.Pred {
		if id != bb.Id {
			return false
		}
	}

	/* disconnect and delete */
	self.fn.RemoveAllSuccs(bb, true)
	self.fn.DeleteBlock(bb)
	return true
}

func (self *simplifier) foldTrivialPhis(bb *cfg.BasicBlock) bool {
	return len(bb.Phis) != 0 && self.fn.FoldTrivialPhis(bb)
}

// disconnectNoReturn cuts the block right after the first statement that
// never completes, and turns it into a no-return block.
func (self *simplifier) disconnectNoReturn(bb *cfg.BasicBlock) bool {
	k := -1
	body := bb.Body()

	/* find the first trapping statement */
	for i, s := range body {
		if traps(s) {
			k = i
			break
		}
	}

	/* nothing traps, or already cut */
	if k < 0 || (bb.Kind == cfg.KindNoReturn && k == len(bb.Stmts)-1) {
		return false
	}

	/* drop everything after it */
	for i := k + 1; i < len(bb.Stmts); i++ {
		bb.Stmts[i] = nil
	}

	/* the block no longer goes anywhere */
	bb.Stmts = bb.Stmts[:k+1]
	self.fn.RemoveAllSuccs(bb, true)

	/* only the common exit post-dominates it now */
	bb.Kind = cfg.KindNoReturn
	bb.Clear(cfg.AttrExit)
	self.fn.AddExit(bb)
	return true
}

// mergeDistinctPair merges bb into its only predecessor when that
// predecessor has no other successor.
func (self *simplifier) mergeDistinctPair(bb *cfg.BasicBlock) bool {
	if len(bb.Pred) != 1 || bb.Has(cfg.AttrEntry) || bb.Has(cfg.AttrTryEnd) {
		return false
	}

	/* the predecessor must be a plain jump into bb */
	p := self.fn.Block(bb.Pred[0])
	if p == bb || len(p.Succ) != 1 || !sameTry(p, bb) {
		return false
	}

	/* conditional branches with both edges into bb are handled elsewhere */
	if p.Kind != cfg.KindFallthrough && p.Kind != cfg.KindGoto {
		return false
	}

	/* phis are folded before merging */
	if len(bb.Phis) != 0 {
		return false
	}

	/* merge the pair */
	self.fn.Absorb(p, bb)
	return true
}

// eliminateConnector removes an empty fallthrough block that only carries
// the edge from its predecessor to its successor.
func (self *simplifier) eliminateConnector(bb *cfg.BasicBlock) bool {
	if !bb.IsConnector() || bb.Has(cfg.AttrTryEnd) {
		return false
	}

	/* the predecessor takes over the edge */
	p := self.fn.Block(bb.Pred[0])
	if p == bb || !sameTry(p, bb) {
		return false
	}

	/* the connector is gone unless the edge could not be moved */
	return self.fn.EliminateEmptyConnectingBB(p, bb, nil) != bb
}
