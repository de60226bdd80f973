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
	"github.com/cloudwego/meopt/internal/ir"
)

// constantSwitch replaces a switch on a constant with a jump to the
// selected target.
func (self *simplifier) constantSwitch(bb *cfg.BasicBlock) bool {
	fn := self.fn
	sw := bb.Switch()

	/* the selector must be known */
	if !sw.Sel.IsConst() {
		return false
	}

	/* the selected edge takes all the weight */
	t := fn.BlockOf(sw.Target(sw.Sel.Imm))
	j := bb.SuccIndex(t.Id)
	for i := range bb.Succ {
		if i != j {
			self.shiftWeight(bb, i, j)
		}
	}

	/* keep the selected edge only */
	for i := len(bb.Succ) - 1; i >= 0; i-- {
		if i != j {
			fn.RemoveSuccAt(bb, i, true)
		}
	}

	/* jump there directly */
	self.toGoto(bb, t)
	return true
}

// singleTargetSwitch replaces a switch whose cases all go to the same block
// with a jump, if the selector can be dropped.
func (self *simplifier) singleTargetSwitch(bb *cfg.BasicBlock) bool {
	sel := bb.Switch().Sel
	if len(bb.Succ) != 1 || !IsSafeExpr(sel) || !isPure(sel) {
		return false
	} else {
		self.toGoto(bb, self.fn.Block(bb.Succ[0]))
		return true
	}
}

func (self *simplifier) toGoto(bb *cfg.BasicBlock, t *cfg.BasicBlock) {
	bb.RemoveTerm()
	bb.Kind = cfg.KindGoto
	bb.Stmts = append(bb.Stmts, &ir.Goto{Target: self.fn.LabelOf(t)})
}
